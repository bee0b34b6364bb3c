package pool

import (
	"fmt"
	"sync"
)

// Pool is similar to sync.Pool, except that Pool has limited capacity:
// at most capacity elements are ever created, idle ones are cached for reuse.
type Pool[T any] struct {
	size     int
	capacity int
	cache    chan T
	lock     sync.Mutex
	newFunc  func() T
}

func Empty[T any](capacity int, newFunc func() T) *Pool[T] {
	return New(capacity, 0, newFunc)
}

func New[T any](capacity int, initSize int, newFunc func() T) *Pool[T] {
	if capacity <= 0 || initSize < 0 {
		panic(fmt.Errorf("invalid argument for New Pool"))
	}
	if initSize > capacity {
		initSize = capacity
	}
	p := new(Pool[T])
	p.capacity = capacity
	p.size = initSize
	p.newFunc = newFunc
	p.cache = make(chan T, capacity)
	for i := 0; i < initSize; i++ {
		p.cache <- newFunc()
	}
	return p
}

// Get a resource from Pool. Create a new resource or wait for a resource if Pool has no resource left
func (p *Pool[T]) Get() T {
	if e, ok := p.TryGet(); ok {
		return e
	}
	return <-p.cache
}

// TryGet returns an idle resource, or creates one while under capacity.
// It never blocks; ok is false when every resource is in use.
func (p *Pool[T]) TryGet() (e T, ok bool) {
	select {
	case e = <-p.cache:
		return e, true
	default:
	}
	return p.createNew()
}

// Put gives a resource back. Elements beyond capacity are dropped.
func (p *Pool[T]) Put(element T) {
	select {
	case p.cache <- element:
	default:
	}
}

func (p *Pool[T]) Cap() int {
	return p.capacity
}

// Size is the number of resources created so far.
func (p *Pool[T]) Size() int {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.size
}

// Idle is the number of cached resources ready for reuse.
func (p *Pool[T]) Idle() int {
	return len(p.cache)
}

func (p *Pool[T]) createNew() (e T, ok bool) {
	p.lock.Lock()
	defer p.lock.Unlock()
	if p.size < p.capacity {
		p.size++
		return p.newFunc(), true
	}
	return e, false
}
