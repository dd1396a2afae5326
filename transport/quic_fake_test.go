package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/quic-go/quic-go"
)

// fakeConn is a minimal in-memory quic.Connection used to exercise
// MediaTransport without a real QUIC handshake. Streams opened by one
// side are delivered to the peer's AcceptStream via a shared channel,
// modeling the half where each side's outbound OpenStreamSync becomes
// the other side's inbound AcceptStream.
type fakeConn struct {
	mu       sync.Mutex
	peer     *fakeConn
	incoming chan quic.Stream
	closed   chan struct{}
	closeErr error
}

// newFakeConnPair returns two connections whose OpenStreamSync calls
// deliver the peer's end of a paired in-memory stream to the other
// connection's AcceptStream, modeling a real QUIC connection's
// bidirectional stream exchange.
func newFakeConnPair() (*fakeConn, *fakeConn) {
	a := &fakeConn{incoming: make(chan quic.Stream, 16), closed: make(chan struct{})}
	b := &fakeConn{incoming: make(chan quic.Stream, 16), closed: make(chan struct{})}
	a.peer = b
	b.peer = a
	return a, b
}

func (c *fakeConn) OpenStream() (quic.Stream, error) { return nil, errors.New("not implemented") }

func (c *fakeConn) OpenStreamSync(ctx context.Context) (quic.Stream, error) {
	mine, theirs := pairedFakeStream()
	select {
	case c.peer.incoming <- theirs:
	case <-c.peer.closed:
		return nil, errors.New("peer connection closed")
	}
	return mine, nil
}

func (c *fakeConn) OpenUniStream() (quic.SendStream, error) {
	return nil, errors.New("not implemented")
}

func (c *fakeConn) OpenUniStreamSync(ctx context.Context) (quic.SendStream, error) {
	return nil, errors.New("not implemented")
}

func (c *fakeConn) AcceptStream(ctx context.Context) (quic.Stream, error) {
	select {
	case s := <-c.incoming:
		return s, nil
	case <-c.closed:
		if c.closeErr != nil {
			return nil, c.closeErr
		}
		return nil, errors.New("connection closed")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *fakeConn) AcceptUniStream(ctx context.Context) (quic.ReceiveStream, error) {
	return nil, errors.New("not implemented")
}

func (c *fakeConn) LocalAddr() net.Addr  { return &net.UDPAddr{} }
func (c *fakeConn) RemoteAddr() net.Addr { return &net.UDPAddr{} }

func (c *fakeConn) CloseWithError(quic.ApplicationErrorCode, string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	select {
	case <-c.closed:
	default:
		close(c.closed)
	}
	return nil
}

func (c *fakeConn) Context() context.Context { return context.Background() }

func (c *fakeConn) ConnectionState() quic.ConnectionState { return quic.ConnectionState{} }

func (c *fakeConn) SendDatagram([]byte) error { return errors.New("not implemented") }

func (c *fakeConn) ReceiveDatagram(ctx context.Context) ([]byte, error) {
	return nil, errors.New("not implemented")
}

// fakeStream is an in-memory pipe-backed quic.Stream.
type fakeStream struct {
	r      *io.PipeReader
	w      *io.PipeWriter
	closed chan struct{}
	once   sync.Once
}

// pairedFakeStream returns two ends of one logical bidirectional
// stream: writes to one end are readable from the other.
func pairedFakeStream() (quic.Stream, quic.Stream) {
	r1, w1 := io.Pipe()
	r2, w2 := io.Pipe()
	a := &fakeStream{r: r1, w: w2, closed: make(chan struct{})}
	b := &fakeStream{r: r2, w: w1, closed: make(chan struct{})}
	return a, b
}

func (s *fakeStream) StreamID() quic.StreamID { return 0 }

func (s *fakeStream) Read(p []byte) (int, error) { return s.r.Read(p) }

func (s *fakeStream) CancelRead(quic.StreamErrorCode) { _ = s.r.Close() }

func (s *fakeStream) SetReadDeadline(t time.Time) error { return nil }

func (s *fakeStream) Write(p []byte) (int, error) { return s.w.Write(p) }

func (s *fakeStream) Close() error {
	s.once.Do(func() { close(s.closed) })
	return s.w.Close()
}

func (s *fakeStream) CancelWrite(quic.StreamErrorCode) { _ = s.w.Close() }

func (s *fakeStream) Context() context.Context { return context.Background() }

func (s *fakeStream) SetWriteDeadline(t time.Time) error { return nil }

func (s *fakeStream) SetDeadline(t time.Time) error { return nil }
