// Package track implements the uniform send/receive contract that an
// audio, video, or screen-share producer/consumer binds to, with a
// concrete QUIC-backed implementation.
package track

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/quicmedia/transport"
)

// Kind identifies the media direction a Backend carries.
type Kind int

const (
	KindAudio Kind = iota
	KindVideo
	KindScreen
)

// String renders the kind for logs and diagnostics.
func (k Kind) String() string {
	switch k {
	case KindAudio:
		return "audio"
	case KindVideo:
		return "video"
	case KindScreen:
		return "screen"
	default:
		return "unknown"
	}
}

func (k Kind) streamType() (transport.StreamType, error) {
	switch k {
	case KindAudio:
		return transport.StreamAudio, nil
	case KindVideo:
		return transport.StreamVideo, nil
	case KindScreen:
		return transport.StreamScreen, nil
	default:
		return 0, ErrInvalidKind
	}
}

// KindForStreamType is the inverse of Kind.streamType, used by a
// caller demultiplexing MediaTransport.Receive results by stream type
// back to the bound track backend. RTCP feedback and generic data
// streams carry no dedicated track kind and are reported as not ok.
func KindForStreamType(st transport.StreamType) (Kind, bool) {
	switch st {
	case transport.StreamAudio:
		return KindAudio, true
	case transport.StreamVideo:
		return KindVideo, true
	case transport.StreamScreen:
		return KindScreen, true
	default:
		return 0, false
	}
}

// Stats mirrors the transport's per-stream counters at the resolution
// a track consumer cares about.
type Stats struct {
	BytesSent       uint64
	BytesReceived   uint64
	PacketsSent     uint64
	PacketsReceived uint64
}

// Backend is the uniform contract a track uses to push and pull media
// payloads, independent of what carries them underneath.
type Backend interface {
	Send(ctx context.Context, payload []byte) error
	Receive(ctx context.Context) ([]byte, error)
	IsConnected() bool
	Stats() Stats
	Kind() Kind
}

// QUICBackend binds one media kind to a shared Media Transport. Many
// QUICBackend instances may share the same transport; none of them
// extend the transport's lifetime past end-of-call (see
// call.Manager.EndCall, which revokes track handles explicitly).
type QUICBackend struct {
	kind      Kind
	transport *transport.MediaTransport
	streamTy  transport.StreamType

	// inbound is fed by a demux goroutine reading the shared
	// transport's Receive loop and filtering for this kind's stream
	// type, since MediaTransport.Receive is a single shared queue
	// across all types.
	inbound chan []byte
	done    chan struct{}
}

// NewQUICBackend constructs a Backend bound to kind on t. Payloads
// only arrive via Deliver, called by whatever owns the shared
// transport's single Receive loop (ordinarily the call.Manager, which
// fans inbound frames out to each bound track by kind).
func NewQUICBackend(t *transport.MediaTransport, kind Kind) (*QUICBackend, error) {
	st, err := kind.streamType()
	if err != nil {
		return nil, err
	}
	return &QUICBackend{
		kind:      kind,
		transport: t,
		streamTy:  st,
		inbound:   make(chan []byte, 64),
		done:      make(chan struct{}),
	}, nil
}

// Deliver pushes a payload the owning demultiplexer has already
// classified as belonging to this backend's stream type. It never
// blocks indefinitely: an overfull backend drops the oldest queued
// payload rather than stalling the shared demux loop.
func (b *QUICBackend) Deliver(payload []byte) {
	select {
	case <-b.done:
		return
	default:
	}
	select {
	case b.inbound <- payload:
	default:
		select {
		case <-b.inbound:
		default:
		}
		select {
		case b.inbound <- payload:
		default:
		}
	}
}

// Close stops this backend from accepting further deliveries and
// unblocks any pending Receive call.
func (b *QUICBackend) Close() {
	select {
	case <-b.done:
	default:
		close(b.done)
	}
}

// Send maps kind to the pinned StreamType and writes through the
// shared transport.
func (b *QUICBackend) Send(ctx context.Context, payload []byte) error {
	if !b.IsConnected() {
		return ErrNotConnected
	}
	if err := b.transport.Send(ctx, b.streamTy, payload); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "QUICBackend.Send",
			"kind":     b.kind,
			"error":    err,
		}).Debug("track send failed")
		return fmt.Errorf("%w: %v", ErrSendFailed, err)
	}
	return nil
}

// Receive returns the next payload delivered for this backend's kind.
func (b *QUICBackend) Receive(ctx context.Context) ([]byte, error) {
	select {
	case p := <-b.inbound:
		return p, nil
	case <-b.done:
		return nil, ErrNotConnected
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrReceiveFailed, ctx.Err())
	}
}

// IsConnected reports whether the underlying transport is Connected.
func (b *QUICBackend) IsConnected() bool {
	return b.transport.State() == transport.StateConnected
}

// Stats snapshots the shared transport's per-type counters for this
// backend's stream type.
func (b *QUICBackend) Stats() Stats {
	s := b.transport.Stats(b.streamTy)
	return Stats{
		BytesSent:       s.BytesSent,
		BytesReceived:   s.BytesReceived,
		PacketsSent:     s.PacketsSent,
		PacketsReceived: s.PacketsReceived,
	}
}

// Kind returns the media kind this backend was constructed for.
func (b *QUICBackend) Kind() Kind { return b.kind }
