package buffer

import (
	"omapid/result"
	"omapid/util/pool"
)

// NodeSize is the payload capacity of one ring node. One byte of every
// node stays unused, so a node holds at most NodeSize-1 bytes.
const NodeSize = 4048

const none = -1

// Block is the backing storage of one ring node.
type Block [NodeSize]byte

// Allocator hands out node storage. Alloc fails with result.NoMemory when
// no storage can be provided.
type Allocator interface {
	Alloc() (*Block, error)
	Free(*Block)
}

type heapAllocator struct{}

func (heapAllocator) Alloc() (*Block, error) {
	return new(Block), nil
}

func (heapAllocator) Free(*Block) {}

// Heap allocates every node from the Go heap and never fails.
var Heap Allocator = heapAllocator{}

// BoundedAllocator caps the number of node blocks alive at once and
// recycles released blocks. It is safe for use by many connections.
type BoundedAllocator struct {
	blocks *pool.Pool[*Block]
}

func NewBoundedAllocator(maxNodes int) *BoundedAllocator {
	return &BoundedAllocator{
		blocks: pool.Empty(maxNodes, func() *Block { return new(Block) }),
	}
}

func (a *BoundedAllocator) Alloc() (*Block, error) {
	b, ok := a.blocks.TryGet()
	if !ok {
		return nil, result.NoMemory
	}
	return b, nil
}

func (a *BoundedAllocator) Free(b *Block) {
	if b != nil {
		a.blocks.Put(b)
	}
}

// InUse reports how many blocks are currently held by chains.
func (a *BoundedAllocator) InUse() int {
	return a.blocks.Size() - a.blocks.Idle()
}
