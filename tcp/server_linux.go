//go:build linux

package tcp

import (
	"context"

	"omapid/util/buffer"
	"omapid/util/log"
)

type EpollServer struct {
	loop    *EpollEventLoop
	address string
}

func newEpollServer(address string, opts Options, handler Handler, alloc buffer.Allocator) Server {
	return &EpollServer{
		loop:    NewEpollEventLoop(opts, handler, alloc),
		address: address,
	}
}

func (es *EpollServer) Start(ctx context.Context) error {
	if err := es.loop.Listen(es.address); err != nil {
		return err
	}
	log.Info("server started, Ready to accept connections on %v", es.loop.Addr())
	err := es.loop.Handle(ctx)
	if err != nil {
		log.Errorf("epoll handler error: %v", err)
	}
	if cerr := es.loop.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}
