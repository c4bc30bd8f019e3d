// Package allocator owns the memory region that memory-hog keeps at 90% of
// the cgroup memory ceiling.
package allocator

import (
	"errors"
	"fmt"
	"math"

	"github.com/container-resource-predictor/memory-hog/internal/cgroup"
)

// TargetPercent is the share of the memory ceiling kept allocated.
const TargetPercent = 90

var (
	// ErrUnboundedLimit means there is no finite ceiling to size against.
	ErrUnboundedLimit = errors.New("memory limit is unbounded")
	// ErrZeroLimit means the ceiling is 0 bytes.
	ErrZeroLimit = errors.New("memory limit is 0 bytes")
	// ErrZeroTarget means 90% of the ceiling rounds down to 0 bytes.
	ErrZeroTarget = errors.New("target allocation size is 0 bytes")
)

// AllocationError is returned when the system refuses to map or remap the
// region. It reports resource exhaustion, not a logic error.
type AllocationError struct {
	Op   string // "acquire" or "resize"
	Size int64
	Err  error
}

func (e *AllocationError) Error() string {
	return fmt.Sprintf("failed to %s %d bytes: %v", e.Op, e.Size, e.Err)
}

func (e *AllocationError) Unwrap() error {
	return e.Err
}

// TargetSize returns floor(0.90 * limit) in bytes.
func TargetSize(limit cgroup.Limit) (int64, error) {
	n, ok := limit.Value()
	if !ok {
		return 0, ErrUnboundedLimit
	}
	if n <= 0 {
		return 0, ErrZeroLimit
	}
	// Split to keep n*9 from overflowing int64.
	target := n/100*TargetPercent + n%100*TargetPercent/100
	if target == 0 {
		return 0, ErrZeroTarget
	}
	return target, nil
}

// Acquirer maps a fresh region of exactly n bytes.
type Acquirer func(n int) (Region, error)

// Allocation is the single tracked region. It is owned by the poll loop and
// is not safe for concurrent use.
type Allocation struct {
	region        Region
	limit         cgroup.Limit
	acquire       Acquirer
	onUsageChange func(bytes int64)
}

// Option configures an Allocation.
type Option func(*Allocation)

// WithAcquirer overrides how the region is mapped.
func WithAcquirer(fn Acquirer) Option {
	return func(a *Allocation) {
		a.acquire = fn
	}
}

// WithOnUsageChange sets a callback invoked with the region size after every
// acquire and resize.
func WithOnUsageChange(fn func(bytes int64)) Option {
	return func(a *Allocation) {
		a.onUsageChange = fn
	}
}

// Initialize maps and fills a region of TargetSize(limit) bytes. Nothing is
// mapped when the limit is unbounded, zero or too small.
func Initialize(limit cgroup.Limit, opts ...Option) (*Allocation, error) {
	a := &Allocation{acquire: NewRegion}
	for _, o := range opts {
		o(a)
	}

	target, err := TargetSize(limit)
	if err != nil {
		return nil, err
	}
	size, err := toInt(target)
	if err != nil {
		return nil, &AllocationError{Op: "acquire", Size: target, Err: err}
	}

	region, err := a.acquire(size)
	if err != nil {
		return nil, &AllocationError{Op: "acquire", Size: target, Err: err}
	}
	a.region = region
	a.limit = limit

	fill(a.region.Bytes())
	a.notify()
	return a, nil
}

// Size returns the current region size in bytes.
func (a *Allocation) Size() int {
	if a.region == nil {
		return 0
	}
	return len(a.region.Bytes())
}

// Limit returns the bounded limit the region is currently sized against.
func (a *Allocation) Limit() cgroup.Limit {
	return a.limit
}

// Bytes exposes the region for inspection. Callers must not retain it across
// a Reconcile.
func (a *Allocation) Bytes() []byte {
	if a.region == nil {
		return nil
	}
	return a.region.Bytes()
}

// Release unmaps the region. The Allocation is unusable afterwards.
func (a *Allocation) Release() error {
	if a.region == nil {
		return nil
	}
	err := a.region.Release()
	a.region = nil
	a.notify()
	return err
}

func (a *Allocation) notify() {
	if a.onUsageChange != nil {
		a.onUsageChange(int64(a.Size()))
	}
}

// fill writes byte(i % 256) at every offset so each page is touched.
func fill(b []byte) {
	for i := range b {
		b[i] = byte(i)
	}
}

func toInt(n int64) (int, error) {
	if n > math.MaxInt {
		return 0, fmt.Errorf("%d bytes exceeds the address space", n)
	}
	return int(n), nil
}
