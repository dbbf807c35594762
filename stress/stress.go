// stress drives a sustained mixed workload against a mounted
// filesystem: a set of files spread over bucket directories, hammered
// by concurrent writer/reader workers until a deadline, with periodic
// progress reporting.
package stress

import (
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/mindfs/mindfs/common"
	"github.com/mindfs/mindfs/fs"
	"github.com/mindfs/mindfs/fserr"
)

// Config selects the stress workload shape.
type Config struct {
	Duration        time.Duration
	FileCount       int
	ThreadCount     int
	WriteSize       int
	MonitorInterval time.Duration
	WorkspacePath   string
	BucketCount     int // 0 selects one bucket per ~sqrt(files)
	CleanupAfter    bool
}

// DefaultConfig mirrors the long-haul defaults: 12 hours, 50 files,
// 8 workers, block-sized writes, 30-second monitor ticks.
func DefaultConfig() Config {
	return Config{
		Duration:        12 * time.Hour,
		FileCount:       50,
		ThreadCount:     8,
		WriteSize:       int(common.BlockSize),
		MonitorInterval: 30 * time.Second,
		WorkspacePath:   "/stress_suite",
	}
}

type counters struct {
	writes uint64
	reads  uint64
	errors uint64
}

// Run executes the workload and returns an error iff any operation
// failed.
func Run(fsys *fs.Filesystem, cfg Config) error {
	if cfg.FileCount <= 0 || cfg.ThreadCount <= 0 || cfg.WriteSize <= 0 {
		return fserr.New(fserr.InvalidArgument, "stress config requires positive files, threads, and write size")
	}
	buckets := cfg.BucketCount
	if buckets <= 0 {
		buckets = int(math.Sqrt(float64(cfg.FileCount)))
		if buckets < 1 {
			buckets = 1
		}
	}

	paths, err := setup(fsys, cfg, buckets)
	if err != nil {
		return err
	}

	var c counters
	deadline := time.Now().Add(cfg.Duration)
	stop := make(chan struct{})

	if cfg.MonitorInterval > 0 {
		go monitor(fsys, &c, cfg.MonitorInterval, stop)
	}

	var g errgroup.Group
	for w := 0; w < cfg.ThreadCount; w++ {
		worker := w
		g.Go(func() error {
			runWorker(fsys, cfg, paths, worker, deadline, &c)
			return nil
		})
	}
	g.Wait()
	close(stop)

	if cfg.CleanupAfter {
		cleanup(fsys, cfg, paths, buckets)
	}

	writes := atomic.LoadUint64(&c.writes)
	reads := atomic.LoadUint64(&c.reads)
	errs := atomic.LoadUint64(&c.errors)
	logrus.Infof("[Stress] done: %d writes, %d reads, %d errors", writes, reads, errs)
	if errs > 0 {
		return fserr.Newf(fserr.IOError, "stress test recorded %d errors", errs)
	}
	return nil
}

func bucketPath(cfg Config, bucket int) string {
	return fmt.Sprintf("%s/bucket%03d", cfg.WorkspacePath, bucket)
}

func setup(fsys *fs.Filesystem, cfg Config, buckets int) ([]string, error) {
	if !fsys.FileExists(cfg.WorkspacePath) {
		if err := fsys.CreateDirectory(cfg.WorkspacePath); err != nil {
			return nil, err
		}
	}
	for b := 0; b < buckets; b++ {
		p := bucketPath(cfg, b)
		if !fsys.FileExists(p) {
			if err := fsys.CreateDirectory(p); err != nil {
				return nil, err
			}
		}
	}
	paths := make([]string, 0, cfg.FileCount)
	for i := 0; i < cfg.FileCount; i++ {
		p := fmt.Sprintf("%s/f%04d.dat", bucketPath(cfg, i%buckets), i)
		if !fsys.FileExists(p) {
			if _, err := fsys.CreateFile(p, common.PermRead|common.PermWrite); err != nil {
				return nil, err
			}
		}
		paths = append(paths, p)
	}
	return paths, nil
}

// pattern fills buf with a per-file repeating byte sequence so readers
// can detect cross-contamination.
func pattern(buf []byte, seed int) {
	for i := range buf {
		buf[i] = byte('A' + (seed+i)%26)
	}
}

func runWorker(fsys *fs.Filesystem, cfg Config, paths []string, worker int, deadline time.Time, c *counters) {
	buf := make([]byte, cfg.WriteSize)
	readBuf := make([]byte, cfg.WriteSize)
	for i := worker; time.Now().Before(deadline); i++ {
		path := paths[i%len(paths)]
		pattern(buf, i%len(paths))

		fd, err := fsys.OpenFile(path, common.OpenWrite)
		if err != nil {
			atomic.AddUint64(&c.errors, 1)
			continue
		}
		if _, err := fsys.WriteFile(fd, buf); err != nil {
			atomic.AddUint64(&c.errors, 1)
			fsys.CloseFile(fd)
			continue
		}
		fsys.CloseFile(fd)
		atomic.AddUint64(&c.writes, 1)

		fd, err = fsys.OpenFile(path, common.OpenRead)
		if err != nil {
			atomic.AddUint64(&c.errors, 1)
			continue
		}
		n, err := fsys.ReadFile(fd, readBuf)
		if err != nil {
			atomic.AddUint64(&c.errors, 1)
			fsys.CloseFile(fd)
			continue
		}
		fsys.CloseFile(fd)
		if string(readBuf[:n]) != string(buf[:n]) {
			atomic.AddUint64(&c.errors, 1)
			continue
		}
		atomic.AddUint64(&c.reads, 1)
	}
}

func monitor(fsys *fs.Filesystem, c *counters, interval time.Duration, stop chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			freeInodes, freeBlocks := fsys.FreeCounts()
			logrus.Infof("[Stress] writes=%d reads=%d errors=%d free_inodes=%d free_blocks=%d",
				atomic.LoadUint64(&c.writes), atomic.LoadUint64(&c.reads),
				atomic.LoadUint64(&c.errors), freeInodes, freeBlocks)
		}
	}
}

func cleanup(fsys *fs.Filesystem, cfg Config, paths []string, buckets int) {
	for _, p := range paths {
		fsys.DeleteFile(p)
	}
	for b := 0; b < buckets; b++ {
		fsys.RemoveDirectory(bucketPath(cfg, b))
	}
	fsys.RemoveDirectory(cfg.WorkspacePath)
}
