package gcheap

import (
	"github.com/orizon-lang/preciseheap/internal/fault"
	"github.com/orizon-lang/preciseheap/ospage"
)

// Config controls a Heap's initial size and growth behavior. Use
// DefaultConfig and the With* options rather than constructing one
// directly, so future fields get sensible zero-cost defaults.
type Config struct {
	// InitialHeap is the size in bytes the from-space starts at. The
	// to-space is reserved at the first collection, and no to-space size
	// target is computed below this value.
	InitialHeap uintptr

	// SlowGrowthFactor scales the next to-space size when the previous
	// collection left the heap comfortably under-full.
	SlowGrowthFactor float64

	// FastGrowthFactor scales the next to-space size when the previous
	// collection left the heap more than 80% full.
	FastGrowthFactor float64

	pager    ospage.Pager
	observer Observer
}

// DefaultConfig returns the out-of-the-box sizing policy: a 16 MiB initial
// heap, 1.5x growth when comfortably under-full, 3x growth when nearly
// exhausted.
func DefaultConfig() Config {
	return Config{
		InitialHeap:      16 * 1024 * 1024,
		SlowGrowthFactor: 1.5,
		FastGrowthFactor: 3.0,
	}
}

// Option configures a Config; pass the results to New.
type Option func(*Config)

// WithInitialHeap overrides the initial (and minimum) semispace size.
func WithInitialHeap(bytes uintptr) Option {
	return func(c *Config) { c.InitialHeap = bytes }
}

// WithSlowGrowth overrides the growth factor applied after a comfortably
// under-full collection.
func WithSlowGrowth(factor float64) Option {
	return func(c *Config) { c.SlowGrowthFactor = factor }
}

// WithFastGrowth overrides the growth factor applied after a nearly
// exhausted collection.
func WithFastGrowth(factor float64) Option {
	return func(c *Config) { c.FastGrowthFactor = factor }
}

// WithObserver registers a hook invoked after every collection.
func WithObserver(o Observer) Option {
	return func(c *Config) { c.observer = o }
}

// WithPager overrides the page allocator a Heap reserves its semispaces
// from. Tests use this to inject ospage.NewFakePager instead of mapping
// real OS memory.
func WithPager(p ospage.Pager) Option {
	return func(c *Config) { c.pager = p }
}

func (c Config) validate() error {
	if c.InitialHeap == 0 {
		return fault.InvalidConfig("InitialHeap", "must be non-zero")
	}

	if c.SlowGrowthFactor <= 1.0 {
		return fault.InvalidConfig("SlowGrowthFactor", "must be greater than 1.0")
	}

	if c.FastGrowthFactor <= 1.0 {
		return fault.InvalidConfig("FastGrowthFactor", "must be greater than 1.0")
	}

	return nil
}
