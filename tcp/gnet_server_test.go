package tcp

import (
	"bytes"
	"io"
	"net"
	"testing"

	"omapid/omapi"
	"omapid/result"
	"omapid/util/buffer"

	"github.com/panjf2000/gnet/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// fakeConn implements the parts of gnet.Conn the server touches.
type fakeConn struct {
	gnet.Conn
	in  bytes.Buffer
	out bytes.Buffer
	ctx interface{}
}

func (c *fakeConn) Read(p []byte) (int, error) {
	if c.in.Len() == 0 {
		return 0, io.ErrShortBuffer
	}
	return c.in.Read(p)
}

func (c *fakeConn) InboundBuffered() int {
	return c.in.Len()
}

func (c *fakeConn) Write(p []byte) (int, error) {
	return c.out.Write(p)
}

func (c *fakeConn) Context() interface{} {
	return c.ctx
}

func (c *fakeConn) SetContext(ctx interface{}) {
	c.ctx = ctx
}

func (c *fakeConn) RemoteAddr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 50000}
}

func TestGnetTransport_Outcomes(t *testing.T) {
	fc := &fakeConn{}
	tr := gnetTransport{c: fc}
	p := make([]byte, 4)

	_, err := tr.Read(p)
	assert.ErrorIs(t, err, unix.EAGAIN)

	fc.in.WriteString("abcdef")
	n, err := tr.Read(p)
	require.NoError(t, err)
	assert.Equal(t, "abcd", string(p[:n]))
	n, err = tr.Read(p)
	require.NoError(t, err)
	assert.Equal(t, "ef", string(p[:n]))
	_, err = tr.Read(p)
	assert.ErrorIs(t, err, unix.EAGAIN)

	n, err = tr.Write([]byte("xyz"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, "xyz", fc.out.String())
}

func TestGnetServer_Lifecycle(t *testing.T) {
	alloc := buffer.NewBoundedAllocator(4)
	s := NewGnetServer("127.0.0.1:0", Options{Engine: EngineGnet}, Mirror{}, alloc)
	fc := &fakeConn{}

	out, action := s.OnOpen(fc)
	assert.Nil(t, out)
	assert.Equal(t, gnet.None, action)
	conn, ok := fc.Context().(*omapi.Connection)
	require.True(t, ok)
	assert.Equal(t, uint64(1), conn.ID())
	assert.Equal(t, 2, alloc.InUse())

	fc.in.WriteString("hello")
	assert.Equal(t, gnet.None, s.OnTraffic(fc))
	assert.Equal(t, "hello", fc.out.String())
	assert.Equal(t, 0, conn.InBytes())

	assert.Equal(t, gnet.None, s.OnClose(fc, nil))
	assert.True(t, conn.Closed())
	assert.Equal(t, 0, alloc.InUse())
	assert.Equal(t, gnet.Close, s.OnTraffic(fc))
}

func TestGnetServer_RejectsWithoutMemory(t *testing.T) {
	alloc := buffer.NewBoundedAllocator(3)
	s := NewGnetServer("127.0.0.1:0", Options{}, Mirror{}, alloc)

	_, action := s.OnOpen(&fakeConn{})
	assert.Equal(t, gnet.None, action)
	second := &fakeConn{}
	_, action = s.OnOpen(second)
	assert.Equal(t, gnet.Close, action)
	assert.Nil(t, second.Context())
	assert.Equal(t, gnet.None, s.OnClose(second, nil))
}

type failingHandler struct{ err error }

func (h failingHandler) Handle(*omapi.Connection) error {
	return h.err
}

func TestGnetServer_HandlerErrorCloses(t *testing.T) {
	s := NewGnetServer("127.0.0.1:0", Options{}, failingHandler{err: result.NoMemory}, nil)
	fc := &fakeConn{}
	_, action := s.OnOpen(fc)
	require.Equal(t, gnet.None, action)
	assert.Equal(t, gnet.Close, s.OnTraffic(fc))
}

func TestNewServer_Engines(t *testing.T) {
	srv, err := NewServer("127.0.0.1:0", Options{Engine: EngineGnet}, Mirror{}, nil)
	require.NoError(t, err)
	assert.IsType(t, &GnetServer{}, srv)

	_, err = NewServer("127.0.0.1:0", Options{Engine: "kqueue"}, Mirror{}, nil)
	assert.Error(t, err)

	srv, err = NewServer("127.0.0.1:0", Options{}, Mirror{}, nil)
	require.NoError(t, err)
	assert.NotNil(t, srv)
}
