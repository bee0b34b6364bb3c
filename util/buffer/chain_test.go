package buffer

import (
	"bytes"
	"math/rand"
	"testing"

	"omapid/result"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// checkChain walks the chain and verifies the accounting invariants.
func checkChain(t *testing.T, c *Chain) {
	t.Helper()
	total, count := 0, 0
	for idx := c.head; idx != none; idx = c.nodes[idx].next {
		r := &c.nodes[idx]
		require.Equal(t, NodeSize-1, r.usedBytes()+r.freeBytes(), "node %d", idx)
		total += r.usedBytes()
		count++
	}
	require.Equal(t, c.Len(), total, "chain length equals sum of node usage")
	require.Equal(t, c.Nodes(), count)
	require.GreaterOrEqual(t, count, 1)
}

func pattern(n int) []byte {
	p := make([]byte, n)
	for i := range p {
		p[i] = byte(i*7 + i/251)
	}
	return p
}

func TestChain_Fresh(t *testing.T) {
	c, err := NewChain(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, 1, c.Nodes())
	assert.Nil(t, c.ReadWindow())
	checkChain(t, c)
}

func TestChain_GrowthTrigger(t *testing.T) {
	testCases := []struct {
		name  string
		size  int
		nodes int
	}{
		{name: "one-byte", size: 1, nodes: 1},
		{name: "fills-one-node", size: NodeSize - 1, nodes: 1},
		{name: "spills-into-second", size: NodeSize, nodes: 2},
		{name: "two-full-nodes", size: 2 * (NodeSize - 1), nodes: 2},
		{name: "third-node", size: 2*(NodeSize-1) + 1, nodes: 3},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c, err := NewChain(nil)
			require.NoError(t, err)
			n, err := c.Append(pattern(tc.size))
			require.NoError(t, err)
			assert.Equal(t, tc.size, n)
			assert.Equal(t, tc.nodes, c.Nodes())
			checkChain(t, c)
		})
	}
}

func TestChain_RoundTrip(t *testing.T) {
	c, err := NewChain(nil)
	require.NoError(t, err)
	rnd := rand.New(rand.NewSource(1))

	var written, read bytes.Buffer
	chunks := []int{1, 17, NodeSize - 1, 3, NodeSize, 2 * NodeSize, 500}
	for _, size := range chunks {
		p := make([]byte, size)
		rnd.Read(p)
		written.Write(p)
		_, err := c.Append(p)
		require.NoError(t, err)
		checkChain(t, c)
	}
	assert.GreaterOrEqual(t, c.Nodes(), 3)

	for c.Len() > 0 {
		out := make([]byte, 1+rnd.Intn(3000))
		n := c.Read(out)
		read.Write(out[:n])
		checkChain(t, c)
	}
	assert.Equal(t, written.Bytes(), read.Bytes())
	assert.Equal(t, 1, c.Nodes(), "drained chain keeps exactly one node")
	assert.Equal(t, 0, c.nodes[c.head].usedBytes())
}

func TestChain_InterleavedKeepsOrder(t *testing.T) {
	c, err := NewChain(nil)
	require.NoError(t, err)
	src := pattern(5 * NodeSize)

	var got []byte
	pos := 0
	for pos < len(src) || c.Len() > 0 {
		if pos < len(src) {
			end := pos + 1500
			if end > len(src) {
				end = len(src)
			}
			_, err := c.Append(src[pos:end])
			require.NoError(t, err)
			pos = end
		}
		out := make([]byte, 1000)
		n := c.Read(out)
		got = append(got, out[:n]...)
		checkChain(t, c)
	}
	assert.Equal(t, src, got)
}

func TestChain_AppendFailureLeavesChainUntouched(t *testing.T) {
	alloc := NewBoundedAllocator(2)
	c, err := NewChain(alloc)
	require.NoError(t, err)
	_, err = c.Append([]byte("keep"))
	require.NoError(t, err)

	_, err = c.Append(pattern(3 * NodeSize))
	assert.ErrorIs(t, err, result.NoMemory)
	assert.Equal(t, 4, c.Len())
	assert.Equal(t, 1, c.Nodes())
	assert.Equal(t, 1, alloc.InUse(), "nodes allocated for the failed append are returned")
	checkChain(t, c)

	out := make([]byte, 4)
	assert.Equal(t, 4, c.Read(out))
	assert.Equal(t, "keep", string(out))

	// the same budget allows a second node
	_, err = c.Append(pattern(NodeSize))
	assert.NoError(t, err)
	assert.Equal(t, 2, alloc.InUse())
}

func TestChain_NoMemoryOnCreate(t *testing.T) {
	alloc := NewBoundedAllocator(1)
	_, err := NewChain(alloc)
	require.NoError(t, err)
	_, err = NewChain(alloc)
	assert.ErrorIs(t, err, result.NoMemory)
}

func TestChain_Discard(t *testing.T) {
	c, err := NewChain(nil)
	require.NoError(t, err)
	src := pattern(2*NodeSize + 10)
	_, err = c.Append(src)
	require.NoError(t, err)

	assert.Equal(t, NodeSize+5, c.Discard(NodeSize+5))
	checkChain(t, c)
	assert.Equal(t, 2, c.Nodes(), "first node retired")

	rest := make([]byte, c.Len())
	c.Read(rest)
	assert.Equal(t, src[NodeSize+5:], rest)
	assert.Equal(t, 0, c.Discard(10))
}

func TestChain_WriteWindowCommit(t *testing.T) {
	alloc := NewBoundedAllocator(4)
	c, err := NewChain(alloc)
	require.NoError(t, err)

	w, err := c.WriteWindow()
	require.NoError(t, err)
	require.Equal(t, NodeSize-1, len(w))
	copy(w, pattern(len(w)))
	c.Commit(len(w))
	assert.Equal(t, NodeSize-1, c.Len())

	// tail is full, the next window comes from a spare node
	w, err = c.WriteWindow()
	require.NoError(t, err)
	assert.Equal(t, 2, alloc.InUse())
	assert.Equal(t, 1, c.Nodes())
	c.Commit(0)
	assert.Equal(t, 1, alloc.InUse(), "unused spare node is released")
	assert.Equal(t, 1, c.Nodes())

	w, err = c.WriteWindow()
	require.NoError(t, err)
	copy(w, "xyz")
	c.Commit(3)
	assert.Equal(t, 2, c.Nodes())
	assert.Equal(t, NodeSize+2, c.Len())
	checkChain(t, c)

	assert.Equal(t, pattern(NodeSize-1), c.ReadWindow())
	c.Discard(NodeSize - 1)
	assert.Equal(t, []byte("xyz"), c.ReadWindow())
}

func TestChain_Release(t *testing.T) {
	alloc := NewBoundedAllocator(8)
	c, err := NewChain(alloc)
	require.NoError(t, err)
	_, err = c.Append(pattern(4 * (NodeSize - 1)))
	require.NoError(t, err)
	_, err = c.WriteWindow()
	require.NoError(t, err)
	assert.Equal(t, 5, alloc.InUse())

	c.Release()
	assert.Equal(t, 0, alloc.InUse())
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, 0, c.Nodes())
	c.Release()

	_, err = c.Append([]byte{1})
	assert.ErrorIs(t, err, result.ConnectionClosed)
	_, err = c.WriteWindow()
	assert.ErrorIs(t, err, result.ConnectionClosed)
}
