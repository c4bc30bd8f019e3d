package allocator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegionResizeKeepsPrefix(t *testing.T) {
	r, err := NewRegion(8192)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Release() })

	fill(r.Bytes())

	require.NoError(t, r.Resize(3*4096+17))
	assert.Len(t, r.Bytes(), 3*4096+17)
	assertPattern(t, r.Bytes()[:8192])

	require.NoError(t, r.Resize(100))
	assert.Len(t, r.Bytes(), 100)
	assertPattern(t, r.Bytes())

	require.NoError(t, r.Resize(100))
	assert.Len(t, r.Bytes(), 100)
}

func TestRegionRelease(t *testing.T) {
	r, err := NewRegion(4096)
	require.NoError(t, err)

	require.NoError(t, r.Release())
	assert.Empty(t, r.Bytes())
	require.NoError(t, r.Release())
}
