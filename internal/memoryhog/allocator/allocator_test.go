package allocator

import (
	"errors"
	"testing"

	"github.com/container-resource-predictor/memory-hog/internal/cgroup"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingAcquirer records how many regions were requested.
type countingAcquirer struct {
	calls int
	err   error
}

func (c *countingAcquirer) acquire(n int) (Region, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return NewRegion(n)
}

// failingRegion refuses every resize.
type failingRegion struct {
	Region
}

func (failingRegion) Resize(int) error {
	return errors.New("cannot allocate memory")
}

func assertPattern(t *testing.T, b []byte) {
	t.Helper()
	for i, v := range b {
		if v != byte(i%256) {
			t.Fatalf("byte %d = %d, want %d", i, v, i%256)
		}
	}
}

func TestTargetSize(t *testing.T) {
	tests := []struct {
		name    string
		limit   cgroup.Limit
		want    int64
		wantErr error
	}{
		{name: "1000 bytes", limit: cgroup.Bytes(1000), want: 900},
		{name: "100MiB", limit: cgroup.Bytes(104857600), want: 94371840},
		{name: "rounds down", limit: cgroup.Bytes(1005), want: 904},
		{name: "smallest nonzero", limit: cgroup.Bytes(2), want: 1},
		{name: "near int64 max", limit: cgroup.Bytes(9223372036854775807), want: 8301034833169298226},
		{name: "unbounded", limit: cgroup.Unbounded, wantErr: ErrUnboundedLimit},
		{name: "zero", limit: cgroup.Bytes(0), wantErr: ErrZeroLimit},
		{name: "one byte", limit: cgroup.Bytes(1), wantErr: ErrZeroTarget},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := TargetSize(tt.limit)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInitialize(t *testing.T) {
	var usage int64
	a, err := Initialize(cgroup.Bytes(1000), WithOnUsageChange(func(b int64) { usage = b }))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Release() })

	assert.Equal(t, 900, a.Size())
	assert.Equal(t, int64(900), usage)
	assert.Equal(t, cgroup.Bytes(1000), a.Limit())
	assertPattern(t, a.Bytes())
}

func TestInitializeRejectsWithoutAllocating(t *testing.T) {
	tests := []struct {
		name    string
		limit   cgroup.Limit
		wantErr error
	}{
		{name: "unbounded", limit: cgroup.Unbounded, wantErr: ErrUnboundedLimit},
		{name: "zero", limit: cgroup.Bytes(0), wantErr: ErrZeroLimit},
		{name: "target rounds to zero", limit: cgroup.Bytes(1), wantErr: ErrZeroTarget},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acq := &countingAcquirer{}
			a, err := Initialize(tt.limit, WithAcquirer(acq.acquire))
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, a)
			assert.Zero(t, acq.calls, "no memory may be acquired")

			var aerr *AllocationError
			assert.False(t, errors.As(err, &aerr), "limit problems are not allocation failures")
		})
	}
}

func TestInitializeAcquireRefused(t *testing.T) {
	enomem := errors.New("cannot allocate memory")
	acq := &countingAcquirer{err: enomem}

	_, err := Initialize(cgroup.Bytes(1000), WithAcquirer(acq.acquire))

	var aerr *AllocationError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, "acquire", aerr.Op)
	assert.Equal(t, int64(900), aerr.Size)
	assert.ErrorIs(t, err, enomem)
}

func TestReconcileSameLimit(t *testing.T) {
	a, err := Initialize(cgroup.Bytes(104857600))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Release() })

	// Scribble on the region to prove Reconcile does not rewrite it.
	a.Bytes()[0] = 0xFF

	change, err := a.Reconcile(cgroup.Bytes(104857600), cgroup.Bytes(104857600))
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnchanged, change.Outcome)
	assert.Equal(t, 94371840, a.Size())
	assert.Equal(t, byte(0xFF), a.Bytes()[0])
}

func TestReconcileGrow(t *testing.T) {
	a, err := Initialize(cgroup.Bytes(1000))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Release() })

	change, err := a.Reconcile(cgroup.Bytes(2000), cgroup.Bytes(1000))
	require.NoError(t, err)
	assert.Equal(t, Change{Outcome: OutcomeResized, FromSize: 900, ToSize: 1800}, change)
	assert.Equal(t, 1800, a.Size())
	assert.Equal(t, cgroup.Bytes(2000), a.Limit())
	assertPattern(t, a.Bytes())
}

func TestReconcileShrink(t *testing.T) {
	a, err := Initialize(cgroup.Bytes(200000))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Release() })

	change, err := a.Reconcile(cgroup.Bytes(100000), cgroup.Bytes(200000))
	require.NoError(t, err)
	assert.Equal(t, OutcomeResized, change.Outcome)
	assert.Equal(t, 90000, a.Size())
	assertPattern(t, a.Bytes())
}

func TestReconcileRefillsWholeRegion(t *testing.T) {
	a, err := Initialize(cgroup.Bytes(1000))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Release() })

	for i := range a.Bytes() {
		a.Bytes()[i] = 0
	}

	_, err = a.Reconcile(cgroup.Bytes(2000), cgroup.Bytes(1000))
	require.NoError(t, err)
	assertPattern(t, a.Bytes())
}

func TestReconcileDegraded(t *testing.T) {
	tests := []struct {
		name       string
		newLimit   cgroup.Limit
		previous   cgroup.Limit
		wantReason Reason
	}{
		{name: "bounded to unbounded", newLimit: cgroup.Unbounded, previous: cgroup.Bytes(1000), wantReason: ReasonUnbounded},
		{name: "limit dropped to zero", newLimit: cgroup.Bytes(0), previous: cgroup.Bytes(1000), wantReason: ReasonTargetTooSmall},
		{name: "limit dropped to one byte", newLimit: cgroup.Bytes(1), previous: cgroup.Bytes(1000), wantReason: ReasonTargetTooSmall},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := Initialize(cgroup.Bytes(1000))
			require.NoError(t, err)
			t.Cleanup(func() { _ = a.Release() })

			change, err := a.Reconcile(tt.newLimit, tt.previous)
			require.NoError(t, err)
			assert.Equal(t, OutcomeDegraded, change.Outcome)
			assert.NotEqual(t, OutcomeUnchanged, change.Outcome)
			assert.Equal(t, tt.wantReason, change.Reason)
			assert.Equal(t, 900, a.Size())
			assert.Equal(t, cgroup.Bytes(1000), a.Limit())
			assertPattern(t, a.Bytes())
		})
	}
}

func TestReconcileBothUnbounded(t *testing.T) {
	a, err := Initialize(cgroup.Bytes(1000))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Release() })

	change, err := a.Reconcile(cgroup.Unbounded, cgroup.Unbounded)
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnchanged, change.Outcome)
}

func TestReconcileResizeRefused(t *testing.T) {
	wrap := func(n int) (Region, error) {
		r, err := NewRegion(n)
		if err != nil {
			return nil, err
		}
		return failingRegion{Region: r}, nil
	}
	a, err := Initialize(cgroup.Bytes(1000), WithAcquirer(wrap))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Release() })

	_, err = a.Reconcile(cgroup.Bytes(2000), cgroup.Bytes(1000))
	var aerr *AllocationError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, "resize", aerr.Op)
	assert.Equal(t, int64(1800), aerr.Size)
}

func TestRelease(t *testing.T) {
	var usage int64 = -1
	a, err := Initialize(cgroup.Bytes(4096), WithOnUsageChange(func(b int64) { usage = b }))
	require.NoError(t, err)

	require.NoError(t, a.Release())
	assert.Zero(t, a.Size())
	assert.Zero(t, usage)
	require.NoError(t, a.Release())
}
