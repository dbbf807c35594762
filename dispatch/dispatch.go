// dispatch serializes command execution over a worker pool under the
// engine's reader-writer discipline. Commands are classified by name:
// read-only commands share the lock, everything else takes it
// exclusively.
package dispatch

import (
	"strings"
	"sync"
)

const defaultWorkers = 4

// Runner executes one parsed command line and returns its exit status.
type Runner func(commandLine string) int

// sharedCommands are the read-only command names.
var sharedCommands = map[string]bool{
	"ls":   true,
	"cat":  true,
	"info": true,
}

// Dispatcher owns the coarse reader-writer lock above the facade's own
// lock; both entry paths (pool jobs and direct callers) honour it.
type Dispatcher struct {
	mu   sync.RWMutex
	pool *Pool
	run  Runner
}

func New(run Runner, workers int) *Dispatcher {
	return &Dispatcher{
		pool: NewPool(workers),
		run:  run,
	}
}

// Future carries one job's eventual exit status.
type Future struct {
	ch chan int
}

func (f *Future) Wait() int {
	return <-f.ch
}

func commandName(line string) string {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func (d *Dispatcher) runLocked(line string) int {
	if sharedCommands[commandName(line)] {
		d.mu.RLock()
		defer d.mu.RUnlock()
		return d.run(line)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.run(line)
}

// ExecuteAsync submits a command line to the pool and returns a future
// for its status. A rejected enqueue (stopped pool) resolves to 1.
func (d *Dispatcher) ExecuteAsync(line string) *Future {
	f := &Future{ch: make(chan int, 1)}
	err := d.pool.Enqueue(func() {
		f.ch <- d.runLocked(line)
	})
	if err != nil {
		f.ch <- 1
	}
	return f
}

// ExecuteSync runs a command line on the caller's goroutine under the
// same lock discipline as pool jobs.
func (d *Dispatcher) ExecuteSync(line string) int {
	return d.runLocked(line)
}

// Close drains the pool: no new enqueues, in-flight and queued jobs
// finish, workers join.
func (d *Dispatcher) Close() {
	d.pool.Shutdown()
}

func (d *Dispatcher) Workers() int {
	return d.pool.Workers()
}
