package tcp

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"time"

	"omapid/omapi"
	"omapid/result"
	"omapid/util/buffer"
	"omapid/util/log"
	"omapid/util/timewheel"

	"github.com/panjf2000/gnet/v2"
	"golang.org/x/sys/unix"
)

// gnetTransport adapts a gnet connection. gnet has already read the socket
// when OnTraffic runs, so an empty inbound buffer means would-block, and
// Write never blocks because gnet queues what the socket refuses.
type gnetTransport struct {
	c gnet.Conn
}

func (t gnetTransport) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if t.c.InboundBuffered() == 0 {
		return 0, unix.EAGAIN
	}
	n, err := t.c.Read(p)
	if n == 0 && (err == nil || errors.Is(err, io.ErrShortBuffer) || errors.Is(err, io.EOF)) {
		return 0, unix.EAGAIN
	}
	if errors.Is(err, io.ErrShortBuffer) {
		err = nil
	}
	return n, err
}

func (t gnetTransport) Write(p []byte) (int, error) {
	return t.c.Write(p)
}

// GnetServer runs the handler on gnet's event loops. Each connection is
// served by the loop that owns it.
type GnetServer struct {
	gnet.BuiltinEventEngine
	ctx       context.Context
	addr      string
	multicore bool
	numLoops  int
	handler   Handler
	alloc     buffer.Allocator
	nextID    uint64
	idle      time.Duration
	wheel     *timewheel.TimeWheel
}

func NewGnetServer(address string, opts Options, handler Handler, alloc buffer.Allocator) *GnetServer {
	if alloc == nil {
		alloc = buffer.Heap
	}
	return &GnetServer{
		ctx:       context.Background(),
		addr:      address,
		multicore: opts.Multicore,
		numLoops:  opts.IOWorkers,
		handler:   handler,
		alloc:     alloc,
		idle:      opts.IdleTimeout,
		wheel:     idleWheel(),
	}
}

// Start blocks until ctx is cancelled or the engine fails.
func (s *GnetServer) Start(ctx context.Context) error {
	s.ctx = ctx
	options := []gnet.Option{
		gnet.WithMulticore(s.multicore),
		gnet.WithReusePort(true),
		gnet.WithTCPNoDelay(gnet.TCPNoDelay),
		gnet.WithLogger(log.Default()),
	}
	if s.numLoops > 0 {
		options = append(options, gnet.WithNumEventLoop(s.numLoops))
	}
	log.Info("starting gnet engine on %s", s.addr)
	return gnet.Run(s, "tcp://"+s.addr, options...)
}

func (s *GnetServer) OnBoot(eng gnet.Engine) gnet.Action {
	log.Info("server started, listening on %s (multicore: %v)", s.addr, s.multicore)
	if s.idle > 0 {
		s.wheel.Start(s.ctx)
	}
	go func() {
		<-s.ctx.Done()
		stopCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := eng.Stop(stopCtx); err != nil {
			log.Errorf("stop gnet engine error: %v", err)
		}
	}()
	return gnet.None
}

func (s *GnetServer) OnOpen(c gnet.Conn) ([]byte, gnet.Action) {
	id := atomic.AddUint64(&s.nextID, 1)
	conn, err := omapi.NewConnection(id, gnetTransport{c: c}, s.alloc)
	if err != nil {
		log.Warn("reject connection from %v: %v", c.RemoteAddr(), err)
		return nil, gnet.Close
	}
	c.SetContext(conn)
	log.Debug("connection %d opened from %v", id, c.RemoteAddr())
	s.touch(c, conn)
	return nil, gnet.None
}

func (s *GnetServer) OnTraffic(c gnet.Conn) gnet.Action {
	conn, ok := c.Context().(*omapi.Connection)
	if !ok || conn.Closed() {
		return gnet.Close
	}
	if err := s.handler.Handle(conn); err != nil {
		if !errors.Is(err, result.ConnectionClosed) {
			log.Warn("connection %d: %v", conn.ID(), err)
		}
		return gnet.Close
	}
	s.touch(c, conn)
	return gnet.None
}

// touch pushes back the idle deadline of conn. gnet.Conn.Close may be
// called from any goroutine.
func (s *GnetServer) touch(c gnet.Conn, conn *omapi.Connection) {
	if s.idle <= 0 {
		return
	}
	s.wheel.Schedule(s.idle, idleKey(conn.ID()), func() {
		log.Debug("connection %d idle for %v, closing", conn.ID(), s.idle)
		_ = c.Close()
	})
}

func (s *GnetServer) OnClose(c gnet.Conn, err error) gnet.Action {
	conn, ok := c.Context().(*omapi.Connection)
	if !ok {
		return gnet.None
	}
	conn.Close()
	if s.idle > 0 {
		s.wheel.Cancel(idleKey(conn.ID()))
	}
	if err != nil {
		log.Debug("connection %d closed: %v", conn.ID(), err)
	} else {
		log.Debug("connection %d closed", conn.ID())
	}
	return gnet.None
}
