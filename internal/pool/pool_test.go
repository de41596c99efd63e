package pool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocRoundsUpToSizeClass(t *testing.T) {
	p := New()
	b := p.Alloc(100)
	require.Len(t, b, 512)
	assert.Equal(t, 512, CapacityOf(100))
}

func TestAllocExactClassBoundary(t *testing.T) {
	assert.Equal(t, 4096, CapacityOf(4096))
	assert.Equal(t, 8192, CapacityOf(4097))
}

func TestAllocOversizedFallsBackToDirectAllocation(t *testing.T) {
	p := New()
	b := p.Alloc(1 << 20)
	assert.Len(t, b, 1<<20)
	assert.Equal(t, 1<<20, CapacityOf(1<<20))
}

func TestFreeRecyclesIntoSameClass(t *testing.T) {
	p := New()
	b := p.Alloc(2000)
	require.Len(t, b, 2048)
	p.Free(b)
	b2 := p.Alloc(2000)
	assert.Len(t, b2, 2048)
}

func TestFreeIgnoresUnrecognizedSlice(t *testing.T) {
	p := New()
	// A slice whose capacity doesn't match any class (e.g. an oversized
	// fallback allocation) must be silently dropped, not panic.
	odd := make([]byte, 10)
	assert.NotPanics(t, func() { p.Free(odd) })
}
