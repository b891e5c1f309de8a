// Package resource provides a controller for global resource limits:
// worker parallelism for training and projection, managed memory for
// in-flight datasets, and IO throughput for snapshot transfers.
package resource

import (
	"context"
	"errors"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// ErrMemoryLimit indicates a reservation that would exceed the configured
// memory limit.
var ErrMemoryLimit = errors.New("resource: memory limit exceeded")

// Config holds resource limits.
type Config struct {
	// MaxWorkers is the maximum number of goroutines used by data-parallel
	// stages (training, assignment, projection). If 0, defaults to
	// runtime.GOMAXPROCS(0).
	MaxWorkers int64

	// MemoryLimitBytes is the hard limit for managed memory.
	// If 0, no hard limit is enforced (only tracking).
	MemoryLimitBytes int64

	// IOLimitBytesPerSec is the maximum IO throughput for snapshot and
	// blob transfers. If 0, unlimited.
	IOLimitBytesPerSec int64
}

// Controller manages global resources (workers, memory, IO).
type Controller struct {
	cfg Config

	workerSem *semaphore.Weighted
	workers   int

	memSem  *semaphore.Weighted // nil if unlimited
	memUsed atomic.Int64

	ioLimiter *rate.Limiter
}

// NewController creates a new resource controller.
func NewController(cfg Config) *Controller {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = int64(runtime.GOMAXPROCS(0))
	}

	c := &Controller{
		cfg:       cfg,
		workerSem: semaphore.NewWeighted(cfg.MaxWorkers),
		workers:   int(cfg.MaxWorkers),
	}

	if cfg.MemoryLimitBytes > 0 {
		c.memSem = semaphore.NewWeighted(cfg.MemoryLimitBytes)
	}

	if cfg.IOLimitBytesPerSec > 0 {
		c.ioLimiter = rate.NewLimiter(rate.Limit(cfg.IOLimitBytesPerSec), int(cfg.IOLimitBytesPerSec))
	}

	return c
}

// Workers returns the configured worker-pool size. Data-parallel stages
// size their goroutine pools from this value.
func (c *Controller) Workers() int {
	if c == nil {
		return runtime.GOMAXPROCS(0)
	}
	return c.workers
}

// AcquireWorkers reserves n worker slots, blocking until all are available
// or ctx is canceled. An operation reserves the slots for the goroutines it
// is about to spawn, so data-parallel stages sharing a controller cannot
// oversubscribe it. Requests above the pool size clamp down to it.
func (c *Controller) AcquireWorkers(ctx context.Context, n int) error {
	if c == nil || n <= 0 {
		return nil
	}
	if n > c.workers {
		n = c.workers
	}
	return c.workerSem.Acquire(ctx, int64(n))
}

// ReleaseWorkers releases n worker slots, clamped like AcquireWorkers so a
// paired call always balances.
func (c *Controller) ReleaseWorkers(n int) {
	if c == nil || n <= 0 {
		return
	}
	if n > c.workers {
		n = c.workers
	}
	c.workerSem.Release(int64(n))
}

// AcquireMemory attempts to reserve memory.
// If a hard limit is configured and usage would exceed it,
// this blocks until memory is available or ctx is canceled.
func (c *Controller) AcquireMemory(ctx context.Context, bytes int64) error {
	if c == nil {
		return nil
	}
	if bytes <= 0 {
		return nil
	}

	if c.memSem != nil {
		if err := c.memSem.Acquire(ctx, bytes); err != nil {
			return err
		}
	}

	c.memUsed.Add(bytes)
	return nil
}

// TryAcquireMemory attempts to reserve memory without blocking.
// Returns true if acquired, false if the limit would be exceeded.
func (c *Controller) TryAcquireMemory(bytes int64) bool {
	if c == nil {
		return true
	}
	if bytes <= 0 {
		return true
	}

	if c.memSem != nil {
		if !c.memSem.TryAcquire(bytes) {
			return false
		}
	}

	c.memUsed.Add(bytes)
	return true
}

// ReleaseMemory releases reserved memory.
func (c *Controller) ReleaseMemory(bytes int64) {
	if c == nil {
		return
	}
	if bytes <= 0 {
		return
	}

	if c.memSem != nil {
		c.memSem.Release(bytes)
	}
	c.memUsed.Add(-bytes)
}

// MemoryUsage returns the current memory usage in bytes.
func (c *Controller) MemoryUsage() int64 {
	if c == nil {
		return 0
	}
	return c.memUsed.Load()
}

// AcquireIO waits until the IO limit allows the specified number of bytes.
// Requests larger than the burst are split so a single big section write
// never exceeds what the limiter can grant.
func (c *Controller) AcquireIO(ctx context.Context, bytes int) error {
	if c == nil || c.ioLimiter == nil {
		return nil
	}
	burst := c.ioLimiter.Burst()
	for bytes > 0 {
		n := bytes
		if n > burst {
			n = burst
		}
		if err := c.ioLimiter.WaitN(ctx, n); err != nil {
			return err
		}
		bytes -= n
	}
	return nil
}
