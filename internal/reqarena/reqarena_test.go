package reqarena

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocReturnsResetRequest(t *testing.T) {
	a := New(0)
	req, err := a.Alloc(KindWrite)
	require.NoError(t, err)
	assert.Equal(t, KindWrite, req.Kind)
	assert.Equal(t, 0, req.LoadN())
	assert.Nil(t, req.Result)
	assert.False(t, req.Async)
	assert.Equal(t, int64(1), a.InUse())
}

func TestFreeResetsAndReturnsToPool(t *testing.T) {
	a := New(0)
	req, err := a.Alloc(KindConnect)
	require.NoError(t, err)
	req.AddN(128)
	req.Async = true
	require.True(t, req.Claim.TryClaim())

	a.Free(req)
	assert.Equal(t, int64(0), a.InUse())

	req2, err := a.Alloc(KindShutdown)
	require.NoError(t, err)
	assert.Equal(t, 0, req2.LoadN())
	assert.False(t, req2.Async)
	assert.True(t, req2.Claim.TryClaim(), "a freed request's Claim must be reset for reuse")
}

func TestCeilingEnforcesOutOfMemory(t *testing.T) {
	a := New(2)
	_, err := a.Alloc(KindWrite)
	require.NoError(t, err)
	_, err = a.Alloc(KindWrite)
	require.NoError(t, err)

	_, err = a.Alloc(KindWrite)
	assert.Equal(t, ErrOutOfMemory, err)
	assert.Equal(t, int64(2), a.InUse(), "a failed Alloc must not leak into InUse")
}

func TestFreeingUnderCeilingAllowsFurtherAllocs(t *testing.T) {
	a := New(1)
	req, err := a.Alloc(KindWrite)
	require.NoError(t, err)

	_, err = a.Alloc(KindWrite)
	assert.Equal(t, ErrOutOfMemory, err)

	a.Free(req)
	_, err = a.Alloc(KindWrite)
	assert.NoError(t, err)
}

func TestAddNAccumulatesAcrossCalls(t *testing.T) {
	req := &Request{}
	req.AddN(10)
	req.AddN(5)
	assert.Equal(t, 15, req.LoadN())
}
