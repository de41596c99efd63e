package rbuf

import (
	"testing"

	"github.com/coro-io/corosock/internal/pool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnboundBufferHasZeroCapacity(t *testing.T) {
	b := NewBuffer(1024)
	assert.False(t, b.Bound())
	assert.Equal(t, 0, b.Capacity())
}

func TestFillSliceAllocatesLazilyOnFirstUse(t *testing.T) {
	p := pool.New()
	bd := NewBinder(p)
	b := NewBuffer(100)

	slice, err := bd.FillSlice(b)
	require.NoError(t, err)
	assert.True(t, b.Bound())
	assert.Equal(t, 512, b.Capacity()) // rounded up to the 512B size class
	assert.Len(t, slice, 512)
}

func TestAdvanceMovesWritePosAndNeverShrinksBound(t *testing.T) {
	p := pool.New()
	bd := NewBinder(p)
	b := NewBuffer(100)
	_, err := bd.FillSlice(b)
	require.NoError(t, err)

	bd.Advance(b, 200)
	assert.Equal(t, 200, b.WritePos())

	slice, err := bd.FillSlice(b)
	require.NoError(t, err)
	assert.Len(t, slice, 512-200, "a second fill must only offer the unused tail")
}

func TestConsumeReadAdvancesReadPosWithoutPassingWritePos(t *testing.T) {
	p := pool.New()
	bd := NewBinder(p)
	b := NewBuffer(100)
	_, err := bd.FillSlice(b)
	require.NoError(t, err)
	bd.Advance(b, 50)

	b.ConsumeRead(30)
	assert.Equal(t, 30, b.ReadPos())
	assert.Len(t, b.Bytes(), 20)

	b.ConsumeRead(1000)
	assert.Equal(t, b.WritePos(), b.ReadPos(), "read_pos must clamp at write_pos, never pass it")
}

func TestInvariantStartLEReadPosLEWritePosLEEnd(t *testing.T) {
	p := pool.New()
	bd := NewBinder(p)
	b := NewBuffer(100)
	_, err := bd.FillSlice(b)
	require.NoError(t, err)
	bd.Advance(b, 100)
	b.ConsumeRead(40)

	assert.GreaterOrEqual(t, b.ReadPos(), 0)
	assert.LessOrEqual(t, b.ReadPos(), b.WritePos())
	assert.LessOrEqual(t, b.WritePos(), b.Capacity())
}
