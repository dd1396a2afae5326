package track

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/quicmedia/transport"
)

func newUnconnectedTransport(t *testing.T) *transport.MediaTransport {
	t.Helper()
	tr := transport.New(transport.DefaultQueueBounds())
	// The transport is never connected: track_test exercises the
	// backend's own behavior (IsConnected, Send's not-connected path,
	// Deliver/Receive, Close, Kind) without a QUIC connection; the
	// transport package's own tests cover the QUIC-facing accept/read
	// loop against a fake connection pair.
	return tr
}

func TestNewQUICBackendRejectsInvalidKind(t *testing.T) {
	tr := newUnconnectedTransport(t)
	_, err := NewQUICBackend(tr, Kind(99))
	assert.ErrorIs(t, err, ErrInvalidKind)
}

func TestQUICBackendNotConnectedBeforeTransportConnects(t *testing.T) {
	tr := newUnconnectedTransport(t)
	b, err := NewQUICBackend(tr, KindAudio)
	require.NoError(t, err)
	assert.False(t, b.IsConnected())

	err = b.Send(context.Background(), []byte("x"))
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestQUICBackendDeliverAndReceive(t *testing.T) {
	tr := newUnconnectedTransport(t)
	b, err := NewQUICBackend(tr, KindVideo)
	require.NoError(t, err)

	b.Deliver([]byte("frame-1"))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	got, err := b.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("frame-1"), got)
}

func TestQUICBackendCloseUnblocksReceive(t *testing.T) {
	tr := newUnconnectedTransport(t)
	b, err := NewQUICBackend(tr, KindScreen)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := b.Receive(context.Background())
		done <- err
	}()

	b.Close()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrNotConnected)
	case <-time.After(time.Second):
		t.Fatal("receive did not unblock on Close")
	}
}

func TestQUICBackendKindString(t *testing.T) {
	assert.Equal(t, "audio", KindAudio.String())
	assert.Equal(t, "video", KindVideo.String())
	assert.Equal(t, "screen", KindScreen.String())
}
