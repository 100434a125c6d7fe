package pool

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestByteBuffer_WriteAndReset(t *testing.T) {
	bb := NewByteBuffer(16)
	bb.MustWrite([]byte("hello"))
	require.Equal(t, 5, bb.Len())
	require.Equal(t, []byte("hello"), bb.Bytes())

	bb.Reset()
	require.Equal(t, 0, bb.Len())
	require.GreaterOrEqual(t, bb.Cap(), 16)
}

func TestByteBuffer_SlicePatching(t *testing.T) {
	bb := NewByteBuffer(16)
	bb.MustWrite([]byte{0, 0, 0, 0, 0xAA})

	window := bb.Slice(0, 4)
	copy(window, []byte{0x05, 0x00, 0x00, 0x00})
	require.Equal(t, []byte{0x05, 0x00, 0x00, 0x00, 0xAA}, bb.Bytes())
}

func TestByteBuffer_Slice_PanicsOnBadIndices(t *testing.T) {
	bb := NewByteBuffer(4)
	require.Panics(t, func() { bb.Slice(-1, 2) })
	require.Panics(t, func() { bb.Slice(2, 1) })
}

func TestByteBuffer_Grow(t *testing.T) {
	bb := NewByteBuffer(8)
	bb.MustWrite([]byte("12345678"))
	bb.Grow(100)
	require.GreaterOrEqual(t, bb.Cap()-bb.Len(), 100)
	require.Equal(t, []byte("12345678"), bb.Bytes())
}

func TestByteBuffer_SetLength(t *testing.T) {
	bb := NewByteBuffer(8)
	bb.MustWrite([]byte("abc"))
	bb.SetLength(2)
	require.Equal(t, []byte("ab"), bb.Bytes())
	require.Panics(t, func() { bb.SetLength(-1) })
}

func TestByteBufferPool_Reuse(t *testing.T) {
	p := NewByteBufferPool(8, 64)
	bb := p.Get()
	bb.MustWrite([]byte("data"))
	p.Put(bb)

	got := p.Get()
	require.Equal(t, 0, got.Len())
}

func TestByteBufferPool_DiscardsOversized(t *testing.T) {
	p := NewByteBufferPool(8, 16)
	bb := p.Get()
	bb.Grow(1024)
	// Must not panic; oversized buffers are dropped.
	p.Put(bb)
	p.Put(nil)
}

func TestDocBufferDefaults(t *testing.T) {
	bb := GetDocBuffer()
	require.NotNil(t, bb)
	require.Equal(t, 0, bb.Len())
	bb.MustWrite([]byte{1})
	PutDocBuffer(bb)
}
