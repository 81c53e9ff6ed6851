package nwk

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_PoolAllocFreeRoundTrip(t *testing.T) {
	p := NewPool(2)
	require.Equal(t, 2, p.Count())
	require.Equal(t, 0, p.Allocated())

	f1 := p.Alloc(10)
	require.NotNil(t, f1)
	require.Equal(t, 1, p.Allocated())

	f2 := p.Alloc(20)
	require.NotNil(t, f2)
	require.Equal(t, 2, p.Allocated())
	require.NotEqual(t, f1.index, f2.index)

	require.Nil(t, p.Alloc(5))

	p.Free(f1)
	require.Equal(t, 1, p.Allocated())

	f3 := p.Alloc(3)
	require.NotNil(t, f3)
	require.Equal(t, f1.index, f3.index)
}

func Test_PoolAllocClearsPerFrameState(t *testing.T) {
	p := NewPool(1)
	f := p.Alloc(4)
	f.Header.NwkSeq = 42
	f.Tx.Status = StatusNoAck
	p.Free(f)

	f2 := p.Alloc(4)
	require.Equal(t, uint8(0), f2.Header.NwkSeq)
	require.Equal(t, StatusSuccess, f2.Tx.Status)
}

func Test_FramePayloadExcludesMIC(t *testing.T) {
	p := NewPool(1)
	f := p.Alloc(10)
	f.Size = HeaderSize + 10 + SecurityMICSize
	f.Header.SecurityEnabled = true
	require.Len(t, f.Payload(), 10)
	require.Len(t, f.MIC(), SecurityMICSize)
}
