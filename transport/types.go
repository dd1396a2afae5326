// Package transport implements the QUIC-native media transport: the
// framing codec, the per-connection stream multiplexer, and the
// inbound stream router.
package transport

import (
	"time"

	"github.com/quic-go/quic-go"
)

// StreamType tags the kind of media carried by a frame or a stream.
// Values outside this set are rejected on both inbound and outbound
// paths.
type StreamType byte

const (
	StreamAudio        StreamType = 0x20
	StreamVideo        StreamType = 0x21
	StreamScreen       StreamType = 0x22
	StreamRTCPFeedback StreamType = 0x23
	StreamData         StreamType = 0x24
)

// String renders the stream type for logs and diagnostics.
func (t StreamType) String() string {
	switch t {
	case StreamAudio:
		return "audio"
	case StreamVideo:
		return "video"
	case StreamScreen:
		return "screen"
	case StreamRTCPFeedback:
		return "rtcp"
	case StreamData:
		return "data"
	default:
		return "unknown"
	}
}

// Valid reports whether t is one of the five known stream types.
func (t StreamType) Valid() bool {
	switch t {
	case StreamAudio, StreamVideo, StreamScreen, StreamRTCPFeedback, StreamData:
		return true
	default:
		return false
	}
}

// AllStreamTypes lists every known stream type in a stable order,
// used by OpenAllStreams and by tests that iterate the full set.
var AllStreamTypes = []StreamType{StreamAudio, StreamVideo, StreamScreen, StreamRTCPFeedback, StreamData}

// StreamPriority orders streams for write scheduling and for the
// inbound fair-dequeue policy. Lower numeric value is higher priority.
type StreamPriority int

const (
	PriorityHigh StreamPriority = iota
	PriorityMedium
	PriorityLow
)

// String renders the priority for logs.
func (p StreamPriority) String() string {
	switch p {
	case PriorityHigh:
		return "high"
	case PriorityMedium:
		return "medium"
	case PriorityLow:
		return "low"
	default:
		return "unknown"
	}
}

// priorityFor derives the fixed StreamPriority for a StreamType.
// Audio and RtcpFeedback are latency-critical; video tolerates more
// jitter; screen and data are best-effort.
func priorityFor(t StreamType) StreamPriority {
	switch t {
	case StreamAudio, StreamRTCPFeedback:
		return PriorityHigh
	case StreamVideo:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

// PriorityFor exports priorityFor for callers outside this package
// that need to reason about scheduling without touching a transport.
func PriorityFor(t StreamType) StreamPriority { return priorityFor(t) }

// State is the connection-level lifecycle of a MediaTransport.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateFailed
)

// String renders the state for logs.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// StreamStats is a point-in-time snapshot of one stream's counters.
type StreamStats struct {
	Type            StreamType
	PacketsSent     uint64
	PacketsReceived uint64
	BytesSent       uint64
	BytesReceived   uint64
	OpenedAt        time.Time
	Open            bool
}

// TransportStats aggregates counters across every stream a transport
// has ever opened, plus connection-level error counts.
type TransportStats struct {
	PacketsSent     uint64
	PacketsReceived uint64
	BytesSent       uint64
	BytesReceived   uint64
	StreamErrors    uint64
	RTCPSent        uint64
	RTCPReceived    uint64
}

// streamRecord is the internal per-type bookkeeping for a multiplexed
// stream: the outbound stream handle plus sent and received counters.
// MediaTransport keys its records by StreamType, so at most one exists
// per type per transport.
type streamRecord struct {
	streamType StreamType
	stream     quic.Stream
	openedAt   time.Time
	closed     bool

	packetsSent     uint64
	packetsReceived uint64
	bytesSent       uint64
	bytesReceived   uint64
}

func (r *streamRecord) snapshot() StreamStats {
	return StreamStats{
		Type:            r.streamType,
		PacketsSent:     r.packetsSent,
		PacketsReceived: r.packetsReceived,
		BytesSent:       r.bytesSent,
		BytesReceived:   r.bytesReceived,
		OpenedAt:        r.openedAt,
		Open:            !r.closed,
	}
}
