// Package omapi stages the bytes of an OMAPI control connection between the
// protocol layer and a non-blocking transport.
//
// Inbound bytes are pulled from the transport by Require and handed out by
// CopyOut and the GetUint helpers; outbound bytes are queued by CopyIn and
// the PutUint helpers and pushed to the transport by Flush. A Connection is
// driven by one goroutine at a time and does no locking of its own.
package omapi

import (
	"encoding/binary"
	"errors"
	"io"

	"omapid/interface/transport"
	"omapid/result"
	"omapid/util/buffer"

	"golang.org/x/sys/unix"
)

type Connection struct {
	id        uint64
	transport transport.Transport
	in        *buffer.Chain
	out       *buffer.Chain
	needed    int
	eof       bool
	closed    bool
	scratch   [4]byte
}

// NewConnection creates the inbound and outbound chains for t, each
// holding one empty node taken from alloc (nil means buffer.Heap).
func NewConnection(id uint64, t transport.Transport, alloc buffer.Allocator) (*Connection, error) {
	in, err := buffer.NewChain(alloc)
	if err != nil {
		return nil, err
	}
	out, err := buffer.NewChain(alloc)
	if err != nil {
		in.Release()
		return nil, err
	}
	return &Connection{
		id:        id,
		transport: t,
		in:        in,
		out:       out,
	}, nil
}

func (c *Connection) ID() uint64 {
	return c.id
}

// InBytes is the number of received bytes not yet consumed.
func (c *Connection) InBytes() int {
	return c.in.Len()
}

// OutBytes is the number of queued bytes not yet written to the transport.
func (c *Connection) OutBytes() int {
	return c.out.Len()
}

// Needed is the byte count of the last Require that could not be met, or 0.
func (c *Connection) Needed() int {
	return c.needed
}

// EOF reports whether the peer has closed its side of the transport.
func (c *Connection) EOF() bool {
	return c.eof
}

func (c *Connection) Closed() bool {
	return c.closed
}

// Require makes sure at least n bytes are buffered, reading from the
// transport as needed. It returns nil once they are, result.WouldBlock when
// the transport has nothing more for now, result.ConnectionClosed after the
// peer closed, result.NoMemory when no node could be allocated, or a
// *result.TransportError.
//
// Bytes read before a failure stay buffered and counted, so calling Require
// again later picks up where it stopped.
func (c *Connection) Require(n int) error {
	if c.closed {
		return result.ConnectionClosed
	}
	if c.in.Len() >= n {
		c.needed = 0
		return nil
	}
	c.needed = n
	if c.eof {
		return result.ConnectionClosed
	}
	for c.in.Len() < n {
		w, err := c.in.WriteWindow()
		if err != nil {
			return err
		}
		m, err := c.transport.Read(w)
		c.in.Commit(clamp(m, len(w)))
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			failure := transportFailure("read", err)
			if failure == result.ConnectionClosed {
				c.eof = true
			}
			if c.in.Len() >= n && isSoft(failure) {
				break
			}
			return failure
		}
		if m <= 0 {
			return result.WouldBlock
		}
	}
	c.needed = 0
	return nil
}

// CopyOut consumes exactly len(p) bytes into p. Without enough buffered
// bytes it fails with result.InsufficientData and consumes nothing.
func (c *Connection) CopyOut(p []byte) error {
	if c.closed {
		return result.ConnectionClosed
	}
	if c.in.Len() < len(p) {
		return result.InsufficientData
	}
	c.in.Read(p)
	return nil
}

// Skip drops exactly n buffered bytes, with the same contract as CopyOut.
func (c *Connection) Skip(n int) error {
	if c.closed {
		return result.ConnectionClosed
	}
	if c.in.Len() < n {
		return result.InsufficientData
	}
	c.in.Discard(n)
	return nil
}

// CopyIn queues p for the transport. It only fails when a buffer node
// cannot be allocated, in which case nothing is queued.
func (c *Connection) CopyIn(p []byte) error {
	if c.closed {
		return result.ConnectionClosed
	}
	_, err := c.out.Append(p)
	return err
}

// Flush writes queued bytes until the queue is empty or the transport
// would block. Bytes the transport did not take stay queued; check OutBytes
// to see whether another Flush is due.
func (c *Connection) Flush() error {
	if c.closed {
		return result.ConnectionClosed
	}
	for c.out.Len() > 0 {
		w := c.out.ReadWindow()
		n, err := c.transport.Write(w)
		c.out.Discard(clamp(n, len(w)))
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			failure := transportFailure("write", err)
			if failure == result.WouldBlock {
				return nil
			}
			return failure
		}
		if n <= 0 {
			return nil
		}
	}
	return nil
}

func (c *Connection) GetUint16() (uint16, error) {
	if err := c.Require(2); err != nil {
		return 0, err
	}
	if err := c.CopyOut(c.scratch[:2]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(c.scratch[:2]), nil
}

func (c *Connection) GetUint32() (uint32, error) {
	if err := c.Require(4); err != nil {
		return 0, err
	}
	if err := c.CopyOut(c.scratch[:4]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(c.scratch[:4]), nil
}

func (c *Connection) PutUint16(v uint16) error {
	binary.BigEndian.PutUint16(c.scratch[:2], v)
	return c.CopyIn(c.scratch[:2])
}

func (c *Connection) PutUint32(v uint32) error {
	binary.BigEndian.PutUint32(c.scratch[:4], v)
	return c.CopyIn(c.scratch[:4])
}

// Close releases every buffer node. Queued output that was not flushed is
// dropped. Close does not close the transport.
func (c *Connection) Close() {
	if c.closed {
		return
	}
	c.closed = true
	c.needed = 0
	c.in.Release()
	c.out.Release()
}

func transportFailure(op string, err error) error {
	switch {
	case errors.Is(err, unix.EAGAIN), errors.Is(err, unix.EWOULDBLOCK), errors.Is(err, result.WouldBlock):
		return result.WouldBlock
	case errors.Is(err, io.EOF):
		return result.ConnectionClosed
	}
	return result.NewTransportError(op, err)
}

func isSoft(err error) bool {
	return err == result.WouldBlock || err == result.ConnectionClosed
}

func clamp(n, max int) int {
	if n < 0 {
		return 0
	}
	if n > max {
		return max
	}
	return n
}
