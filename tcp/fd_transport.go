//go:build unix

package tcp

import (
	"io"

	"golang.org/x/sys/unix"
)

// FDTransport reads and writes a non-blocking socket descriptor directly.
type FDTransport struct {
	fd int
}

func NewFDTransport(fd int) *FDTransport {
	return &FDTransport{fd: fd}
}

func (t *FDTransport) FD() int {
	return t.fd
}

// Read returns unix.EAGAIN when the socket has nothing to read and io.EOF
// once the peer has shut down its side.
func (t *FDTransport) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	n, err := unix.Read(t.fd, p)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}

func (t *FDTransport) Write(p []byte) (int, error) {
	n, err := unix.Write(t.fd, p)
	if n < 0 {
		n = 0
	}
	return n, err
}
