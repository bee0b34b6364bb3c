//go:build !linux

package tcp

import (
	"omapid/util/buffer"
	"omapid/util/log"
)

func newEpollServer(address string, opts Options, handler Handler, alloc buffer.Allocator) Server {
	log.Warn("epoll engine is only available on linux, using gnet")
	return NewGnetServer(address, opts, handler, alloc)
}
