package tcp

import (
	"errors"

	"omapid/omapi"
	"omapid/result"
)

// Handler drives the protocol side of a connection. Handle is called every
// time the connection may have become readable or writable; readiness is
// edge triggered, so it must keep consuming until Require reports
// result.WouldBlock or output stops draining. Returning result.ConnectionClosed
// ends the connection quietly, any other error ends it with a warning.
type Handler interface {
	Handle(conn *omapi.Connection) error
}

// mirrorHighWater bounds queued output before Mirror stops reading and
// waits for the peer to drain it.
const mirrorHighWater = 16 * bufferSize

// Mirror writes every received byte back to the peer.
type Mirror struct{}

func (Mirror) Handle(conn *omapi.Connection) error {
	buf := bytesPool.Get().([]byte)
	defer bytesPool.Put(buf)
	for {
		if conn.OutBytes() >= mirrorHighWater {
			if err := conn.Flush(); err != nil {
				return err
			}
			if conn.OutBytes() >= mirrorHighWater {
				return nil
			}
		}
		if err := conn.Require(1); err != nil {
			if errors.Is(err, result.WouldBlock) {
				break
			}
			if errors.Is(err, result.ConnectionClosed) {
				_ = conn.Flush()
			}
			return err
		}
		n := conn.InBytes()
		if n > len(buf) {
			n = len(buf)
		}
		if err := conn.CopyOut(buf[:n]); err != nil {
			return err
		}
		if err := conn.CopyIn(buf[:n]); err != nil {
			return err
		}
	}
	return conn.Flush()
}
