package buffer

// ring is one fixed-capacity circular node of a Chain. Valid bytes start
// at head and end before tail; head == tail means empty, so the byte
// before head can never be written.
type ring struct {
	buf  *Block
	head int
	tail int
	next int // arena index of the next node, none at the chain tail
}

func (r *ring) usedBytes() int {
	if r.tail == r.head {
		return 0
	}
	if r.tail > r.head {
		return r.tail - r.head
	}
	return NodeSize - (r.head - r.tail)
}

func (r *ring) freeBytes() int {
	if r.tail == r.head {
		return NodeSize - 1
	}
	if r.tail > r.head {
		return NodeSize - (r.tail - r.head) - 1
	}
	return r.head - r.tail - 1
}

// readable is the contiguous run of valid bytes starting at head.
func (r *ring) readable() []byte {
	if r.tail >= r.head {
		return r.buf[r.head:r.tail]
	}
	return r.buf[r.head:]
}

// writable is the contiguous run of free bytes starting at tail.
func (r *ring) writable() []byte {
	if r.tail == r.head {
		r.head, r.tail = 0, 0
	}
	if r.tail < r.head {
		return r.buf[r.tail : r.head-1]
	}
	if r.head == 0 {
		return r.buf[r.tail : NodeSize-1]
	}
	return r.buf[r.tail:]
}

func (r *ring) commit(n int) {
	if n < 0 || n > len(r.writable()) {
		panic("buffer: commit beyond write window")
	}
	r.tail = (r.tail + n) % NodeSize
}

func (r *ring) discard(n int) {
	if n < 0 || n > len(r.readable()) {
		panic("buffer: discard beyond read window")
	}
	r.head = (r.head + n) % NodeSize
	if r.head == r.tail {
		r.head, r.tail = 0, 0
	}
}

// writeSome copies as much of p as fits and returns the count.
func (r *ring) writeSome(p []byte) int {
	n := 0
	for n < len(p) {
		m := copy(r.writable(), p[n:])
		if m == 0 {
			break
		}
		r.commit(m)
		n += m
	}
	return n
}

// readSome moves up to len(p) bytes into p and returns the count.
func (r *ring) readSome(p []byte) int {
	n := 0
	for n < len(p) {
		m := copy(p[n:], r.readable())
		if m == 0 {
			break
		}
		r.discard(m)
		n += m
	}
	return n
}

func (r *ring) skip(max int) int {
	n := 0
	for n < max {
		m := len(r.readable())
		if m == 0 {
			break
		}
		if m > max-n {
			m = max - n
		}
		r.discard(m)
		n += m
	}
	return n
}
