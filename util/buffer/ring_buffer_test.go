package buffer

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRing() *ring {
	return &ring{buf: new(Block), next: none}
}

func TestRing_Accounting(t *testing.T) {
	testCases := []struct {
		name       string
		head, tail int
		used, free int
	}{
		{name: "empty-origin", head: 0, tail: 0, used: 0, free: NodeSize - 1},
		{name: "empty-middle", head: 100, tail: 100, used: 0, free: NodeSize - 1},
		{name: "forward", head: 10, tail: 30, used: 20, free: NodeSize - 21},
		{name: "full-forward", head: 0, tail: NodeSize - 1, used: NodeSize - 1, free: 0},
		{name: "wrapped", head: 4000, tail: 10, used: NodeSize - 3990, free: 3989},
		{name: "full-wrapped", head: 50, tail: 49, used: NodeSize - 1, free: 0},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r := newRing()
			r.head, r.tail = tc.head, tc.tail
			assert.Equal(t, tc.used, r.usedBytes())
			assert.Equal(t, tc.free, r.freeBytes())
			assert.Equal(t, NodeSize-1, r.usedBytes()+r.freeBytes())
		})
	}
}

func TestRing_WriteStopsAtCapacity(t *testing.T) {
	r := newRing()
	p := bytes.Repeat([]byte{0xab}, NodeSize+10)

	n := r.writeSome(p)
	assert.Equal(t, NodeSize-1, n)
	assert.Equal(t, 0, r.freeBytes())
	assert.Equal(t, 0, r.writeSome([]byte{1}))
}

func TestRing_WrapAround(t *testing.T) {
	r := newRing()
	first := make([]byte, NodeSize-100)
	for i := range first {
		first[i] = byte(i)
	}
	require.Equal(t, len(first), r.writeSome(first))

	// free the front so the next write has to wrap past the end
	sink := make([]byte, NodeSize-200)
	require.Equal(t, len(sink), r.readSome(sink))
	assert.Equal(t, first[:len(sink)], sink)

	second := bytes.Repeat([]byte{0x5a}, 150)
	require.Equal(t, len(second), r.writeSome(second))
	assert.Less(t, r.tail, r.head, "tail wrapped behind head")
	assert.Equal(t, 100+150, r.usedBytes())
	assert.Equal(t, NodeSize-1, r.usedBytes()+r.freeBytes())

	out := make([]byte, 250)
	require.Equal(t, 250, r.readSome(out))
	assert.Equal(t, first[len(sink):], out[:100])
	assert.Equal(t, second, out[100:])
	assert.Equal(t, 0, r.usedBytes())
	assert.Equal(t, r.head, r.tail)
}

func TestRing_ReadMoreThanBuffered(t *testing.T) {
	r := newRing()
	r.writeSome([]byte("hello"))
	out := make([]byte, 16)
	assert.Equal(t, 5, r.readSome(out))
	assert.Equal(t, "hello", string(out[:5]))
	assert.Equal(t, 0, r.readSome(out))
}

func TestRing_CommitBeyondWindowPanics(t *testing.T) {
	r := newRing()
	assert.Panics(t, func() { r.commit(NodeSize) })
	assert.Panics(t, func() { r.discard(1) })
}
