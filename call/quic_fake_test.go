package call

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/quic-go/quic-go"
)

// failingConn is a minimal quic.Connection whose outbound streams work
// normally but whose AcceptStream blocks until triggered, then returns
// an error — modeling a connection that drops mid-call. MediaTransport
// treats that as a connection-level failure and transitions to Failed.
type failingConn struct {
	trigger chan struct{}
}

func newFailingConn() *failingConn {
	return &failingConn{trigger: make(chan struct{})}
}

func (c *failingConn) OpenStream() (quic.Stream, error) { return nil, errors.New("not implemented") }

func (c *failingConn) OpenStreamSync(ctx context.Context) (quic.Stream, error) {
	return newStubStream(), nil
}

func (c *failingConn) OpenUniStream() (quic.SendStream, error) {
	return nil, errors.New("not implemented")
}

func (c *failingConn) OpenUniStreamSync(ctx context.Context) (quic.SendStream, error) {
	return nil, errors.New("not implemented")
}

func (c *failingConn) AcceptStream(ctx context.Context) (quic.Stream, error) {
	select {
	case <-c.trigger:
		return nil, errors.New("connection reset by peer")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *failingConn) AcceptUniStream(ctx context.Context) (quic.ReceiveStream, error) {
	return nil, errors.New("not implemented")
}

func (c *failingConn) LocalAddr() net.Addr  { return &net.UDPAddr{} }
func (c *failingConn) RemoteAddr() net.Addr { return &net.UDPAddr{} }

func (c *failingConn) CloseWithError(quic.ApplicationErrorCode, string) error { return nil }

func (c *failingConn) Context() context.Context { return context.Background() }

func (c *failingConn) ConnectionState() quic.ConnectionState { return quic.ConnectionState{} }

func (c *failingConn) SendDatagram([]byte) error { return errors.New("not implemented") }

func (c *failingConn) ReceiveDatagram(ctx context.Context) ([]byte, error) {
	return nil, errors.New("not implemented")
}

// stubStream is a quic.Stream whose reads block forever and whose
// writes are discarded; it exists only so OpenStreamSync has something
// to hand back.
type stubStream struct {
	r    *io.PipeReader
	w    *io.PipeWriter
	once sync.Once
}

func newStubStream() quic.Stream {
	r, w := io.Pipe()
	go io.Copy(io.Discard, r)
	return &stubStream{r: r, w: w}
}

func (s *stubStream) StreamID() quic.StreamID { return 0 }

func (s *stubStream) Read(p []byte) (int, error) {
	<-make(chan struct{}) // never returns; neither Close nor CancelRead unblocks it
	return 0, io.EOF
}

func (s *stubStream) CancelRead(quic.StreamErrorCode) { _ = s.r.Close() }

func (s *stubStream) SetReadDeadline(t time.Time) error { return nil }

func (s *stubStream) Write(p []byte) (int, error) { return s.w.Write(p) }

func (s *stubStream) Close() error {
	var err error
	s.once.Do(func() { err = s.w.Close() })
	return err
}

func (s *stubStream) CancelWrite(quic.StreamErrorCode) { _ = s.w.Close() }

func (s *stubStream) Context() context.Context { return context.Background() }

func (s *stubStream) SetWriteDeadline(t time.Time) error { return nil }

func (s *stubStream) SetDeadline(t time.Time) error { return nil }
