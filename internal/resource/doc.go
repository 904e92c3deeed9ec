// Package resource enforces the process-wide budgets of a discovery run.
//
//   - Memory: bytes held by cached partition indexes (non-blocking, fail-fast)
//   - IO: token bucket for bytes written to and read from the spill store
//
// # Memory
//
// Reserve never blocks. When the budget is exhausted it returns
// ErrMemoryLimitExceeded and the caller decides whether to evict or to skip
// caching:
//
//	rc := resource.NewController(resource.Config{MemoryLimitBytes: 256 << 20})
//	if err := rc.Reserve(size); err != nil {
//	    // evict, retry once, or hand the index back uncached
//	}
//	defer rc.Release(size)
//
// # Nil Safety
//
// All methods handle a nil Controller gracefully and become no-ops, so an
// unlimited run carries no controller at all.
package resource
