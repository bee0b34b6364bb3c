//go:build linux

package tcp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"omapid/omapi"
	"omapid/result"
	"omapid/util/buffer"
	"omapid/util/log"
	"omapid/util/pool"
	"omapid/util/timewheel"

	"golang.org/x/sys/unix"
)

const (
	EpollRead     = unix.EPOLLIN
	EpollClose    = unix.EPOLLRDHUP | unix.EPOLLHUP | unix.EPOLLERR
	EpollWritable = unix.EPOLLOUT

	epollConnEvents = EpollRead | EpollWritable | unix.EPOLLRDHUP | unix.EPOLLET

	// idleWaitMsec bounds how long epoll_wait sleeps so cancellation is noticed.
	idleWaitMsec = 100
)

// EpollEventLoop accepts connections on a non-blocking listener and hands
// their readiness events to a worker pool. Events are sharded by fd, so all
// work for one connection runs on one worker goroutine.
type EpollEventLoop struct {
	conns    sync.Map
	listenFd int
	epollFd  int
	waitMsec int
	handler  Handler
	alloc    buffer.Allocator
	workers  *pool.WorkerPool
	nextID   uint64
	idle     time.Duration
	wheel    *timewheel.TimeWheel
}

var _ Poller = (*EpollEventLoop)(nil)

type epollConn struct {
	fd   int
	conn *omapi.Connection
}

func NewEpollEventLoop(opts Options, handler Handler, alloc buffer.Allocator) *EpollEventLoop {
	if alloc == nil {
		alloc = buffer.Heap
	}
	return &EpollEventLoop{
		listenFd: -1,
		epollFd:  -1,
		handler:  handler,
		alloc:    alloc,
		workers:  pool.NewWorkerPool(opts.IOWorkers),
		idle:     opts.IdleTimeout,
		wheel:    idleWheel(),
	}
}

func (e *EpollEventLoop) Listen(address string) error {
	ipAddr, sockPort, err := parseIPAddr(address)
	if err != nil {
		return fmt.Errorf("invalid address format, parse IP Error: %w", err)
	}
	// 创建 TCP Socket，非阻塞
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, unix.IPPROTO_TCP)
	if err != nil {
		return fmt.Errorf("create socket error: %w", err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		_ = unix.Close(fd)
		return fmt.Errorf("set reuse addr error: %w", err)
	}
	// Socket Bind 地址
	if err := unix.Bind(fd, &unix.SockaddrInet4{Addr: ipAddr, Port: sockPort}); err != nil {
		_ = unix.Close(fd)
		return fmt.Errorf("bind socket error: %w", err)
	}
	// listen
	if err := unix.Listen(fd, 128); err != nil {
		_ = unix.Close(fd)
		return fmt.Errorf("listen fd error: %w", err)
	}
	// epoll create
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		_ = unix.Close(fd)
		return fmt.Errorf("epoll create error: %w", err)
	}
	// listener 也注册到 epoll，新连接作为读事件到达
	if err := epollCtl(epfd, fd, unix.EPOLL_CTL_ADD, EpollRead); err != nil {
		_ = unix.Close(epfd)
		_ = unix.Close(fd)
		return fmt.Errorf("epoll add listener error: %w", err)
	}
	e.listenFd, e.epollFd = fd, epfd
	return nil
}

// Addr is the bound listener address, useful after binding port 0.
func (e *EpollEventLoop) Addr() net.Addr {
	sa, err := unix.Getsockname(e.listenFd)
	if err != nil {
		return nil
	}
	if in4, ok := sa.(*unix.SockaddrInet4); ok {
		return &net.TCPAddr{IP: net.IPv4(in4.Addr[0], in4.Addr[1], in4.Addr[2], in4.Addr[3]), Port: in4.Port}
	}
	return nil
}

// Handle Epoll 事件循环, runs until ctx is cancelled.
func (e *EpollEventLoop) Handle(ctx context.Context) error {
	e.workers.Start(ctx)
	if e.idle > 0 {
		e.wheel.Start(ctx)
	}
	events := make([]unix.EpollEvent, 1024)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		n, err := unix.EpollWait(e.epollFd, events, e.waitMsec)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return fmt.Errorf("epoll wait error: %w", err)
		}
		// 没有事件，进入阻塞模式
		if n <= 0 {
			e.waitMsec = idleWaitMsec
			continue
		}
		// 有事件，继续无阻塞循环
		e.waitMsec = 0
		for i := 0; i < n; i++ {
			fd := int(events[i].Fd)
			if fd == e.listenFd {
				e.accept()
				continue
			}
			// 通过fd查询到一个连接对象
			v, ok := e.conns.Load(fd)
			if !ok {
				log.Debug("event for unknown connection fd: %d", fd)
				continue
			}
			c := v.(*epollConn)
			mask := events[i].Events
			// same fd, same worker
			e.workers.SubmitHashBalance(func() {
				e.handleConn(c, mask)
			}, fd)
		}
	}
}

// accept drains the listener until EAGAIN, the listener is edge triggered too.
func (e *EpollEventLoop) accept() {
	for {
		// Accept连接，获得非阻塞的连接fd，忽略远程地址
		nfd, _, err := unix.Accept4(e.listenFd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			if !errors.Is(err, unix.EAGAIN) {
				log.Errorf("accept conn error: %v", err)
			}
			return
		}
		id := atomic.AddUint64(&e.nextID, 1)
		conn, err := omapi.NewConnection(id, NewFDTransport(nfd), e.alloc)
		if err != nil {
			log.Warn("reject connection fd %d: %v", nfd, err)
			_ = unix.Close(nfd)
			continue
		}
		c := &epollConn{fd: nfd, conn: conn}
		e.conns.Store(nfd, c)
		// epoll ctrl，Read、Write、对端Close事件，边缘触发
		if err := epollCtl(e.epollFd, nfd, unix.EPOLL_CTL_ADD, epollConnEvents); err != nil {
			log.Errorf("epoll add conn error: %v", err)
			e.conns.Delete(nfd)
			conn.Close()
			_ = unix.Close(nfd)
			continue
		}
		log.Debug("connection %d accepted, fd: %d", id, nfd)
		e.touch(c)
	}
}

// handleConn runs on the worker owning c.fd.
func (e *EpollEventLoop) handleConn(c *epollConn, events uint32) {
	if c.conn.Closed() {
		return
	}
	// readable, writable or peer closed all mean the handler runs until would-block
	if events&(EpollRead|EpollWritable|EpollClose) == 0 {
		return
	}
	if err := e.handler.Handle(c.conn); err != nil {
		e.closeConn(c, err)
		return
	}
	e.touch(c)
}

// touch pushes back the idle deadline of c.
func (e *EpollEventLoop) touch(c *epollConn) {
	if e.idle <= 0 {
		return
	}
	e.wheel.Schedule(e.idle, idleKey(c.conn.ID()), func() {
		e.workers.SubmitHashBalance(func() {
			e.closeConn(c, result.TimedOut)
		}, c.fd)
	})
}

// closeConn 连接关闭事件处理
func (e *EpollEventLoop) closeConn(c *epollConn, cause error) {
	if c.conn.Closed() {
		return
	}
	// set conn inactive, release its buffers
	c.conn.Close()
	if e.idle > 0 {
		e.wheel.Cancel(idleKey(c.conn.ID()))
	}
	// forget the fd before closing it so a reused fd never maps to c
	e.conns.Delete(c.fd)
	// epoll ctrl del
	_ = unix.EpollCtl(e.epollFd, unix.EPOLL_CTL_DEL, c.fd, nil)
	// close connection
	_ = unix.Close(c.fd)
	if cause == nil || errors.Is(cause, result.ConnectionClosed) {
		log.Debug("connection %d closed", c.conn.ID())
		return
	}
	log.Warn("connection %d closed: %v", c.conn.ID(), cause)
}

// Close waits for the workers to stop, then closes every connection and
// the listener.
func (e *EpollEventLoop) Close() error {
	e.workers.Wait()
	e.conns.Range(func(_, v interface{}) bool {
		e.closeConn(v.(*epollConn), nil)
		return true
	})
	var err error
	if e.listenFd >= 0 {
		err = unix.Close(e.listenFd)
		e.listenFd = -1
	}
	if e.epollFd >= 0 {
		if cerr := unix.Close(e.epollFd); err == nil {
			err = cerr
		}
		e.epollFd = -1
	}
	return err
}

func epollCtl(epfd int, fd int, op int, events uint32) error {
	return unix.EpollCtl(epfd, op, fd, &unix.EpollEvent{
		Events: events,
		Fd:     int32(fd),
	})
}
