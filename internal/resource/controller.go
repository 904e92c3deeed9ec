package resource

import (
	"context"
	"errors"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// ErrMemoryLimitExceeded is returned by Reserve when the budget is exhausted.
var ErrMemoryLimitExceeded = errors.New("memory limit exceeded")

// Config holds resource limits.
type Config struct {
	// MemoryLimitBytes bounds the bytes held by cached multi-column PLIs.
	// Zero only tracks usage.
	MemoryLimitBytes int64

	// IOLimitBytesPerSec bounds spill reads and writes. Zero means unlimited.
	IOLimitBytesPerSec int64
}

// Controller tracks the memory and spill IO of one discovery run.
type Controller struct {
	limit  int64
	budget *semaphore.Weighted // nil when unlimited
	inUse  atomic.Int64
	peak   atomic.Int64
	io     *rate.Limiter // nil when unlimited
}

// NewController creates a controller for cfg.
func NewController(cfg Config) *Controller {
	c := &Controller{limit: max(cfg.MemoryLimitBytes, 0)}
	if c.limit > 0 {
		c.budget = semaphore.NewWeighted(c.limit)
	}
	if cfg.IOLimitBytesPerSec > 0 {
		c.io = rate.NewLimiter(rate.Limit(cfg.IOLimitBytesPerSec), int(cfg.IOLimitBytesPerSec))
	}
	return c
}

// Reserve takes bytes from the budget without blocking.
func (c *Controller) Reserve(bytes int64) error {
	if c == nil || bytes <= 0 {
		return nil
	}
	if c.budget != nil && !c.budget.TryAcquire(bytes) {
		return ErrMemoryLimitExceeded
	}

	n := c.inUse.Add(bytes)
	for p := c.peak.Load(); n > p; p = c.peak.Load() {
		if c.peak.CompareAndSwap(p, n) {
			break
		}
	}
	return nil
}

// Release returns bytes taken by Reserve.
func (c *Controller) Release(bytes int64) {
	if c == nil || bytes <= 0 {
		return
	}
	if c.budget != nil {
		c.budget.Release(bytes)
	}
	c.inUse.Add(-bytes)
}

// InUse returns the reserved bytes.
func (c *Controller) InUse() int64 {
	if c == nil {
		return 0
	}
	return c.inUse.Load()
}

// Peak returns the highest number of bytes reserved at once.
func (c *Controller) Peak() int64 {
	if c == nil {
		return 0
	}
	return c.peak.Load()
}

// Limit returns the memory limit, 0 if unlimited.
func (c *Controller) Limit() int64 {
	if c == nil {
		return 0
	}
	return c.limit
}

// WaitIO blocks until bytes may be moved to or from the spill store. Large
// transfers are admitted in bucket-sized steps.
func (c *Controller) WaitIO(ctx context.Context, bytes int) error {
	if c == nil || c.io == nil {
		return nil
	}
	step := c.io.Burst()
	for bytes > 0 {
		n := min(bytes, step)
		if err := c.io.WaitN(ctx, n); err != nil {
			return err
		}
		bytes -= n
	}
	return nil
}
