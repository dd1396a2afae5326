// Package call implements per-call lifecycle bookkeeping and the call
// state machine: it creates a Media Transport per call, drives
// capability exchange over a signaling collaborator, maps transport
// state onto call state, and broadcasts call events to subscribers.
package call

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/opd-ai/quicmedia/identity"
	"github.com/opd-ai/quicmedia/track"
	"github.com/opd-ai/quicmedia/transport"
)

// ID is the opaque 128-bit call identifier, rendered as a canonical
// 36-character hyphenated hex string for human-readable contexts, and
// compared by bit equality rather than by string.
type ID uuid.UUID

// NewID generates a fresh call identifier.
func NewID() ID { return ID(uuid.New()) }

// ParseID parses the canonical hyphenated hex form back into an ID.
func ParseID(s string) (ID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return ID{}, err
	}
	return ID(u), nil
}

// String renders the canonical hyphenated hex form.
func (i ID) String() string { return uuid.UUID(i).String() }

// State is the per-call lifecycle stage.
type State int

const (
	StateIdle State = iota
	StateCalling
	StateConnecting
	StateConnected
	StateEnding
	StateFailed
)

// String renders the state for logs and events.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCalling:
		return "calling"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateEnding:
		return "ending"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// MediaConstraints captures what the local side wants from a call.
type MediaConstraints struct {
	Audio            bool
	Video            bool
	ScreenShare      bool
	MaxBandwidthKbps uint32
}

// MediaCapabilities captures what a side is willing to provide.
type MediaCapabilities struct {
	Audio            bool
	Video            bool
	DataChannel      bool
	MaxBandwidthKbps uint32
}

// deriveCapabilities implements the constraints -> capabilities
// mapping of the capability derivation rules: video capability covers
// either a video or a screen-share request, data channel is not yet
// requestable, and bandwidth passes through unchanged.
func deriveCapabilities(c MediaConstraints) MediaCapabilities {
	return MediaCapabilities{
		Audio:            c.Audio,
		Video:            c.Video || c.ScreenShare,
		DataChannel:      false,
		MaxBandwidthKbps: c.MaxBandwidthKbps,
	}
}

// minimumBandwidthKbps returns the bandwidth floor a remote side must
// declare given what the local side is asking for.
func minimumBandwidthKbps(c MediaConstraints) uint32 {
	switch {
	case c.ScreenShare:
		return 512
	case c.Video:
		return 256
	default:
		return 32
	}
}

// EventKind enumerates the broadcastable call lifecycle events.
type EventKind int

const (
	EventInitiated EventKind = iota
	EventIncomingCall
	EventAccepted
	EventRejected
	EventConnecting
	EventConnected
	EventEnded
	EventFailed
	// EventRateLimited is a supplement to the base CallEvent set: an
	// additive diagnostic emitted when inbound signaling for a peer is
	// dropped by the rate limiter.
	EventRateLimited
)

// String renders the event kind for logs.
func (k EventKind) String() string {
	switch k {
	case EventInitiated:
		return "initiated"
	case EventIncomingCall:
		return "incoming_call"
	case EventAccepted:
		return "accepted"
	case EventRejected:
		return "rejected"
	case EventConnecting:
		return "connecting"
	case EventConnected:
		return "connected"
	case EventEnded:
		return "ended"
	case EventFailed:
		return "failed"
	case EventRateLimited:
		return "rate_limited"
	default:
		return "unknown"
	}
}

// Event is one broadcast notification about a call's lifecycle.
type Event struct {
	CallID ID
	Kind   EventKind
	Reason string
	Peer   string
	At     time.Time
}

// Call is the per-call record the Manager owns. Its Media Transport
// handle is exclusively owned by the Call; Track Backends observe the
// transport through a shared, non-owning reference and must not
// extend its lifetime past end-of-call (Manager.EndCall explicitly
// revokes every bound track before releasing the transport).
type Call struct {
	mu sync.RWMutex

	id          ID
	remotePeer  identity.PeerIdentity
	state       State
	constraints MediaConstraints
	transport   *transport.MediaTransport
	tracks      map[track.Kind]*track.QUICBackend
	createdAt   time.Time

	localCapabilitiesSent bool
	peerCapabilities      *MediaCapabilities
	confirmed             bool
}

// ID returns the call's identifier.
func (c *Call) ID() ID { return c.id }

// RemotePeer returns the far side's identity.
func (c *Call) RemotePeer() identity.PeerIdentity { return c.remotePeer }

// State returns the current lifecycle stage.
func (c *Call) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Constraints returns the locally requested media constraints.
func (c *Call) Constraints() MediaConstraints {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.constraints
}

// Transport returns the call's Media Transport handle.
func (c *Call) Transport() *transport.MediaTransport { return c.transport }

// allowedTransition implements the call state transition table:
// self-transitions are no-ops only for Connected and Connecting; every
// other transition, including all other self-transitions, must appear
// explicitly below.
func allowedTransition(from, to State) bool {
	if from == to {
		return to == StateConnected || to == StateConnecting
	}
	switch from {
	case StateIdle:
		return to == StateCalling
	case StateCalling:
		return to == StateConnecting || to == StateEnding || to == StateFailed
	case StateConnecting:
		return to == StateConnected || to == StateEnding || to == StateFailed
	case StateConnected:
		return to == StateEnding || to == StateFailed
	case StateEnding:
		return to == StateIdle || to == StateFailed
	case StateFailed:
		return to == StateIdle
	default:
		return false
	}
}

// transition validates and applies a state change, returning
// *Error{Kind: InvalidStateTransition} without mutating state on a
// disallowed transition.
func (c *Call) transition(next State) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !allowedTransition(c.state, next) {
		return newErr(KindInvalidStateTransition, c.state.String()+" -> "+next.String())
	}
	c.state = next
	return nil
}

// Track returns the QUIC-backed track bound to kind, creating it
// lazily on first access.
func (c *Call) Track(kind track.Kind) (*track.QUICBackend, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if b, ok := c.tracks[kind]; ok {
		return b, nil
	}
	b, err := track.NewQUICBackend(c.transport, kind)
	if err != nil {
		return nil, err
	}
	c.tracks[kind] = b
	return b, nil
}
