package dispatch

import (
	"sync"

	"github.com/mindfs/mindfs/fserr"
)

// Pool is a fixed set of workers draining an unbounded FIFO. Stop
// prevents new enqueues and lets in-flight jobs run to completion.
type Pool struct {
	mu      sync.Mutex
	cond    *sync.Cond
	queue   []func()
	stopped bool
	wg      sync.WaitGroup
	workers int
}

func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = defaultWorkers
	}
	p := &Pool{workers: workers}
	p.cond = sync.NewCond(&p.mu)
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for {
		p.mu.Lock()
		for !p.stopped && len(p.queue) == 0 {
			p.cond.Wait()
		}
		if p.stopped && len(p.queue) == 0 {
			p.mu.Unlock()
			return
		}
		job := p.queue[0]
		p.queue = p.queue[1:]
		p.mu.Unlock()
		job()
	}
}

// Enqueue appends a job; it fails once the pool is stopped.
func (p *Pool) Enqueue(job func()) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return fserr.New(fserr.InvalidArgument, "enqueue on stopped worker pool")
	}
	p.queue = append(p.queue, job)
	p.cond.Signal()
	return nil
}

// Shutdown signals stop, wakes every worker, and joins them. Queued
// jobs still run.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	p.stopped = true
	p.cond.Broadcast()
	p.mu.Unlock()
	p.wg.Wait()
}

func (p *Pool) Workers() int { return p.workers }
