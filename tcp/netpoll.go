package tcp

import (
	"context"
	"errors"
	"net"
	"strconv"
)

// Poller owns a listening socket and the readiness loop of its connections.
type Poller interface {
	Listen(address string) error
	Handle(ctx context.Context) error
	Addr() net.Addr
	Close() error
}

func parseIPAddr(address string) (ipAddr [4]byte, sockPort int, parseErr error) {
	host, port, err := net.SplitHostPort(address)
	if err != nil {
		parseErr = err
		return
	}
	if sockPort, err = strconv.Atoi(port); err != nil || sockPort < 0 || sockPort > 65535 {
		parseErr = errors.New("invalid port " + port)
		return
	}
	if host == "" {
		return
	}
	ip := net.ParseIP(host).To4()
	if ip == nil {
		parseErr = errors.New("invalid IPv4 address " + host)
		return
	}
	copy(ipAddr[:], ip)
	return
}
