package tcp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	_ "net/http/pprof"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"omapid/util/buffer"
	"omapid/util/log"
	"omapid/util/timewheel"
)

const (
	EngineEpoll = "epoll"
	EngineGnet  = "gnet"
)

type Options struct {
	Engine    string
	IOWorkers int
	Multicore bool
	PprofPort int
	// IdleTimeout closes connections without traffic for this long; 0 disables it.
	IdleTimeout time.Duration
}

// idleWheel tracks idle deadlines with one second precision.
func idleWheel() *timewheel.TimeWheel {
	return timewheel.NewTimeWheel(time.Second, 60)
}

func idleKey(id uint64) string {
	return "conn-" + strconv.FormatUint(id, 10)
}

// Server serves connections until ctx is cancelled.
type Server interface {
	Start(ctx context.Context) error
}

func NewServer(address string, opts Options, handler Handler, alloc buffer.Allocator) (Server, error) {
	switch opts.Engine {
	case EngineEpoll, "":
		return newEpollServer(address, opts, handler, alloc), nil
	case EngineGnet:
		return NewGnetServer(address, opts, handler, alloc), nil
	default:
		return nil, fmt.Errorf("unknown engine %q", opts.Engine)
	}
}

// ListenAndServe starts the server and stops it on SIGHUP, SIGQUIT, SIGTERM
// or SIGINT.
func ListenAndServe(address string, opts Options, handler Handler, alloc buffer.Allocator) error {
	server, err := NewServer(address, opts, handler, alloc)
	if err != nil {
		return err
	}
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGHUP, syscall.SIGQUIT, syscall.SIGTERM, syscall.SIGINT)
	defer cancel()
	go func() {
		<-ctx.Done()
		log.Info("Shutting down omapid server...")
	}()

	if opts.PprofPort > 0 {
		startPprof(ctx, opts.PprofPort)
	}
	return server.Start(ctx)
}

// pprofAddr keeps the profiling endpoints on the loopback interface.
func pprofAddr(port int) string {
	return net.JoinHostPort("127.0.0.1", strconv.Itoa(port))
}

func startPprof(ctx context.Context, port int) {
	srv := &http.Server{Addr: pprofAddr(port)}
	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()
	go func() {
		log.Info("pprof listening on %s", srv.Addr)
		if err := servePprof(srv); err != nil {
			log.Errorf("pprof server error: %v", err)
		}
	}()
}

// servePprof blocks until srv fails or is closed. Closing is not an error.
func servePprof(srv *http.Server) error {
	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
