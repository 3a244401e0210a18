package dynbuf

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAppendAndBytes(t *testing.T) {
	b := New()
	b.Append([]byte("hello "))
	b.Append([]byte("world"))
	require.Equal(t, "hello world", string(b.Bytes()))
	require.Equal(t, 11, b.Len())
}

func TestAppendAcrossChunkBoundary(t *testing.T) {
	b := New()
	first := bytes.Repeat([]byte{'a'}, ChunkSize-2)
	b.Append(first)
	b.Append([]byte("bcde"))
	require.Equal(t, len(first)+4, b.Len())
	out := b.Bytes()
	require.Equal(t, byte('a'), out[0])
	require.Equal(t, "bcde", string(out[len(first):]))
}

func TestConsume(t *testing.T) {
	b := New()
	b.Append([]byte("0123456789"))
	b.Consume(4)
	require.Equal(t, "456789", string(b.Bytes()))
	require.Equal(t, 6, b.Len())
}

func TestConsumeAcrossChunks(t *testing.T) {
	b := New()
	b.Append(bytes.Repeat([]byte{'x'}, ChunkSize))
	b.Append([]byte("tail"))
	b.Consume(ChunkSize)
	require.Equal(t, "tail", string(b.Bytes()))
}

func TestTakeFront(t *testing.T) {
	b := New()
	b.Append(bytes.Repeat([]byte{'x'}, ChunkSize))
	b.Append([]byte("more"))
	front, ok := b.TakeFront()
	require.True(t, ok)
	require.Len(t, front, ChunkSize)
	require.Equal(t, "more", string(b.Bytes()))
}

func TestCloneIsIndependent(t *testing.T) {
	b := New()
	b.Append([]byte("abc"))
	c := b.Clone()
	b.Append([]byte("def"))
	require.Equal(t, "abc", string(c.Bytes()))
	require.Equal(t, "abcdef", string(b.Bytes()))
}

func TestReadUintLE(t *testing.T) {
	b := New()
	b.Append([]byte{0x01, 0x00, 0x02, 0x00, 0x00, 0x00, 0x03, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00})
	v16, ok := b.ReadUint16LE(0)
	require.True(t, ok)
	require.Equal(t, uint16(1), v16)

	v32, ok := b.ReadUint32LE(2)
	require.True(t, ok)
	require.Equal(t, uint32(2), v32)

	v64, ok := b.ReadUint64LE(6)
	require.True(t, ok)
	require.Equal(t, uint64(3), v64)
}

func TestClearResets(t *testing.T) {
	b := New()
	b.Append([]byte("data"))
	b.Clear()
	require.Equal(t, 0, b.Len())
	require.Empty(t, b.Bytes())
}
