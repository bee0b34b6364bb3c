package transport

// Transport is the non-blocking byte pipe under an omapi connection.
//
// Read and Write never block. Would-block is reported as unix.EAGAIN (or
// EWOULDBLOCK/EINTR), an orderly close by the peer as io.EOF, and any other
// failure as the OS error, preferably a unix.Errno.
type Transport interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
}
