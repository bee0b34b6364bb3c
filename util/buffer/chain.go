package buffer

import "omapid/result"

// Chain is an unbounded FIFO byte queue made of ring nodes. Nodes live in
// an arena and are linked by index; the chain owns every node exclusively.
// A live chain always holds at least one node.
//
// Chain is not safe for concurrent use.
type Chain struct {
	alloc Allocator
	nodes []ring
	free  []int

	head  int
	tail  int
	spare int // allocated for a write window, linked on Commit
	count int
	size  int
}

// NewChain returns a chain holding one empty node. A nil allocator means Heap.
func NewChain(alloc Allocator) (*Chain, error) {
	if alloc == nil {
		alloc = Heap
	}
	c := &Chain{alloc: alloc, head: none, tail: none, spare: none}
	idx, err := c.newNode()
	if err != nil {
		return nil, err
	}
	c.head, c.tail, c.count = idx, idx, 1
	return c, nil
}

// Len is the number of buffered bytes.
func (c *Chain) Len() int {
	return c.size
}

// Nodes is the number of nodes currently linked into the chain.
func (c *Chain) Nodes() int {
	return c.count
}

// Append queues p behind the buffered bytes. Every node p needs is
// allocated first, so on failure the chain is left untouched.
func (c *Chain) Append(p []byte) (int, error) {
	if c.head == none {
		return 0, result.ConnectionClosed
	}
	if len(p) == 0 {
		return 0, nil
	}
	var fresh []int
	for need := len(p) - c.nodes[c.tail].freeBytes(); need > 0; need -= NodeSize - 1 {
		idx, err := c.newNode()
		if err != nil {
			for _, i := range fresh {
				c.releaseNode(i)
			}
			return 0, err
		}
		fresh = append(fresh, idx)
	}
	n := c.nodes[c.tail].writeSome(p)
	for _, idx := range fresh {
		c.link(idx)
		n += c.nodes[idx].writeSome(p[n:])
	}
	c.size += n
	return n, nil
}

// Read consumes up to len(p) bytes from the front of the chain.
func (c *Chain) Read(p []byte) int {
	n := 0
	for n < len(p) && c.size > 0 {
		m := c.nodes[c.head].readSome(p[n:])
		n += m
		c.size -= m
		c.retireHead()
	}
	return n
}

// Discard drops up to n bytes from the front of the chain.
func (c *Chain) Discard(n int) int {
	dropped := 0
	for dropped < n && c.size > 0 {
		m := c.nodes[c.head].skip(n - dropped)
		dropped += m
		c.size -= m
		c.retireHead()
	}
	return dropped
}

// ReadWindow returns the contiguous buffered bytes at the front of the
// chain. The slice is borrowed and only valid until the next mutating call.
func (c *Chain) ReadWindow() []byte {
	if c.size == 0 {
		return nil
	}
	return c.nodes[c.head].readable()
}

// WriteWindow returns free space at the back of the chain, allocating a
// node when the tail is full. Bytes placed in it are queued by Commit; the
// slice is only valid until then.
func (c *Chain) WriteWindow() ([]byte, error) {
	if c.head == none {
		return nil, result.ConnectionClosed
	}
	if c.spare != none {
		return c.nodes[c.spare].writable(), nil
	}
	if w := c.nodes[c.tail].writable(); len(w) > 0 {
		return w, nil
	}
	idx, err := c.newNode()
	if err != nil {
		return nil, err
	}
	c.spare = idx
	return c.nodes[idx].writable(), nil
}

// Commit queues n bytes written into the last WriteWindow. Committing zero
// bytes gives back a node allocated for that window.
func (c *Chain) Commit(n int) {
	if c.spare != none {
		idx := c.spare
		c.spare = none
		if n == 0 {
			c.releaseNode(idx)
			return
		}
		c.link(idx)
	}
	c.nodes[c.tail].commit(n)
	c.size += n
}

// Release returns every node to the allocator. The chain is unusable afterwards.
func (c *Chain) Release() {
	if c.head == none {
		return
	}
	if c.spare != none {
		c.releaseNode(c.spare)
		c.spare = none
	}
	for idx := c.head; idx != none; {
		next := c.nodes[idx].next
		c.releaseNode(idx)
		idx = next
	}
	c.head, c.tail = none, none
	c.count, c.size = 0, 0
	c.nodes, c.free = nil, nil
}

// retireHead drops drained nodes from the front, keeping the last one.
func (c *Chain) retireHead() {
	for c.head != c.tail && c.nodes[c.head].usedBytes() == 0 {
		next := c.nodes[c.head].next
		c.releaseNode(c.head)
		c.head = next
		c.count--
	}
}

func (c *Chain) link(idx int) {
	c.nodes[c.tail].next = idx
	c.tail = idx
	c.count++
}

func (c *Chain) newNode() (int, error) {
	b, err := c.alloc.Alloc()
	if err != nil {
		return none, err
	}
	var idx int
	if n := len(c.free); n > 0 {
		idx = c.free[n-1]
		c.free = c.free[:n-1]
	} else {
		idx = len(c.nodes)
		c.nodes = append(c.nodes, ring{})
	}
	c.nodes[idx] = ring{buf: b, next: none}
	return idx, nil
}

func (c *Chain) releaseNode(idx int) {
	c.alloc.Free(c.nodes[idx].buf)
	c.nodes[idx] = ring{next: none}
	c.free = append(c.free, idx)
}
