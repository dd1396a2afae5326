package call

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/quic-go/quic-go"
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/quicmedia/config"
	"github.com/opd-ai/quicmedia/identity"
	"github.com/opd-ai/quicmedia/signaling"
	"github.com/opd-ai/quicmedia/track"
	"github.com/opd-ai/quicmedia/transport"
)

// Clock abstracts wall-clock timing so handshake-timeout behavior is
// testable without sleeping in real time.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// Manager owns the CallId -> Call mapping and drives every call's
// state machine. Reads (lookups) may proceed concurrently; creation,
// removal, and state changes take the write lock only long enough to
// mutate the map itself — never across a call into the transport or
// signaling collaborator.
type Manager struct {
	mu    sync.RWMutex
	calls map[ID]*Call

	cfg          config.Config
	collaborator signaling.Collaborator
	self         identity.PeerIdentity
	limiter      *rateLimiter
	clock        Clock
	router       *transport.Router

	subMu       sync.Mutex
	subscribers []chan Event
}

// NewManager constructs a Manager bound to a signaling collaborator.
// self is this side's identity, used as the "From" field on outgoing
// signaling messages.
func NewManager(cfg config.Config, collaborator signaling.Collaborator, self identity.PeerIdentity) *Manager {
	return &Manager{
		calls:        make(map[ID]*Call),
		cfg:          cfg,
		collaborator: collaborator,
		self:         self,
		limiter:      newRateLimiter(cfg.SignalingRateLimitPerPeerPerSecond, nil),
		clock:        realClock{},
		router:       transport.NewRouter(cfg.RTPPayloadTypeTable),
	}
}

// SetClock overrides the manager's time source; intended for tests
// exercising handshake-timeout behavior.
func (m *Manager) SetClock(c Clock) { m.clock = c }

// SubscribeEvents returns a receive-only channel of every Event this
// manager broadcasts from now on. The channel is buffered; a slow
// subscriber drops events rather than blocking the manager.
func (m *Manager) SubscribeEvents() <-chan Event {
	ch := make(chan Event, 64)
	m.subMu.Lock()
	m.subscribers = append(m.subscribers, ch)
	m.subMu.Unlock()
	return ch
}

func (m *Manager) emit(ev Event) {
	ev.At = m.clock.Now()
	m.subMu.Lock()
	defer m.subMu.Unlock()
	for _, ch := range m.subscribers {
		select {
		case ch <- ev:
		default:
			logrus.WithFields(logrus.Fields{
				"function": "emit",
				"call_id":  ev.CallID,
				"kind":     ev.Kind,
			}).Warn("dropping call event, subscriber channel full")
		}
	}
}

func (m *Manager) activeCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.calls)
}

func (m *Manager) getCall(id ID) (*Call, error) {
	m.mu.RLock()
	c, ok := m.calls[id]
	m.mu.RUnlock()
	if !ok {
		return nil, newErr(KindCallNotFound, id.String())
	}
	return c, nil
}

func (m *Manager) removeCall(id ID) {
	m.mu.Lock()
	delete(m.calls, id)
	m.mu.Unlock()
}

// InitiateCall creates a Call in the Calling state, sends CallRequest
// to peer via the signaling collaborator, and starts the handshake
// timeout watchdog.
func (m *Manager) InitiateCall(ctx context.Context, peer identity.PeerIdentity, constraints MediaConstraints) (ID, error) {
	if m.activeCount() >= m.cfg.MaxConcurrentCalls {
		return ID{}, newErr(KindLimitExceeded, fmt.Sprintf("max %d concurrent calls", m.cfg.MaxConcurrentCalls))
	}

	c := m.newCall(NewID(), peer, constraints, StateCalling)
	m.emit(Event{CallID: c.id, Kind: EventInitiated, Peer: peer.UniqueID()})

	if err := m.sendMessage(ctx, peer, signaling.Message{CallRequest: &signaling.CallRequest{
		CallID:      c.id.String(),
		From:        m.self.UniqueID(),
		Constraints: toWireConstraints(constraints),
	}}); err != nil {
		m.removeCall(c.id)
		return ID{}, newErr(KindTransportError, err.Error())
	}

	m.watchHandshakeTimeout(c.id)
	return c.id, nil
}

// InitiateQUICCall behaves like InitiateCall but immediately binds the
// call's Media Transport to conn and advances Calling -> Connecting.
func (m *Manager) InitiateQUICCall(ctx context.Context, peer identity.PeerIdentity, constraints MediaConstraints, conn quic.Connection) (ID, error) {
	id, err := m.InitiateCall(ctx, peer, constraints)
	if err != nil {
		return ID{}, err
	}
	c, err := m.getCall(id)
	if err != nil {
		return ID{}, err
	}
	if err := c.transport.Connect(ctx, conn); err != nil {
		m.failCall(id, KindTransportError, err.Error())
		return id, newErr(KindTransportError, err.Error())
	}
	if err := c.transition(StateConnecting); err != nil {
		return id, err
	}
	m.emit(Event{CallID: id, Kind: EventConnecting, Peer: peer.UniqueID()})
	return id, nil
}

// OnIncomingCallRequest creates a Call in the Calling state under the
// given identifier — the identifier travels on the wire in the
// CallRequest message, so both sides key the same call by the same
// ID rather than the callee minting its own.
func (m *Manager) OnIncomingCallRequest(from identity.PeerIdentity, id ID, constraints MediaConstraints) ID {
	c := m.newCall(id, from, constraints, StateCalling)
	m.emit(Event{CallID: c.id, Kind: EventIncomingCall, Peer: from.UniqueID()})
	return c.id
}

func (m *Manager) newCall(id ID, peer identity.PeerIdentity, constraints MediaConstraints, state State) *Call {
	c := &Call{
		id:          id,
		remotePeer:  peer,
		state:       state,
		constraints: constraints,
		transport:   transport.New(m.cfg.PerStreamQueueBounds),
		tracks:      make(map[track.Kind]*track.QUICBackend),
		createdAt:   m.clock.Now(),
	}
	m.mu.Lock()
	m.calls[id] = c
	m.mu.Unlock()
	return c
}

// AcceptCall transitions an incoming call from Calling to Connecting,
// derives local capabilities, and answers the caller with CallResponse
// — the explicit accept signal, carrying those capabilities so the
// caller can confirm without waiting on a second round trip.
func (m *Manager) AcceptCall(ctx context.Context, id ID) error {
	c, err := m.getCall(id)
	if err != nil {
		return err
	}
	if c.State() != StateCalling {
		return newErr(KindInvalidStateTransition, fmt.Sprintf("accept from %s", c.State()))
	}
	if m.activeCount() > m.cfg.MaxConcurrentCalls {
		return newErr(KindLimitExceeded, fmt.Sprintf("max %d concurrent calls", m.cfg.MaxConcurrentCalls))
	}

	if err := c.transition(StateConnecting); err != nil {
		return err
	}

	caps := deriveCapabilities(c.Constraints())
	c.mu.Lock()
	c.localCapabilitiesSent = true
	c.mu.Unlock()

	wireCaps := toWireCapabilities(caps)
	if err := m.sendMessage(ctx, c.remotePeer, signaling.Message{CallResponse: &signaling.CallResponse{
		CallID:       id.String(),
		From:         m.self.UniqueID(),
		Accepted:     true,
		Capabilities: &wireCaps,
	}}); err != nil {
		return newErr(KindTransportError, err.Error())
	}

	m.emit(Event{CallID: id, Kind: EventAccepted, Peer: c.remotePeer.UniqueID()})
	return nil
}

// RejectCall sends CallRejected and drives the call through Ending to
// Idle, removing its record.
func (m *Manager) RejectCall(ctx context.Context, id ID, reason string) error {
	c, err := m.getCall(id)
	if err != nil {
		return err
	}
	if c.State() != StateCalling {
		return newErr(KindInvalidStateTransition, fmt.Sprintf("reject from %s", c.State()))
	}

	_ = m.sendMessage(ctx, c.remotePeer, signaling.Message{CallRejected: &signaling.CallRejected{
		CallID: id.String(),
		Reason: reason,
	}})

	if err := c.transition(StateEnding); err != nil {
		return err
	}
	if err := c.transition(StateIdle); err != nil {
		return err
	}
	m.removeCall(id)
	m.emit(Event{CallID: id, Kind: EventRejected, Reason: reason, Peer: c.remotePeer.UniqueID()})
	return nil
}

// ExchangeCapabilities returns what this side will provide, derived
// from the call's stored constraints.
func (m *Manager) ExchangeCapabilities(id ID) (MediaCapabilities, error) {
	c, err := m.getCall(id)
	if err != nil {
		return MediaCapabilities{}, err
	}
	return deriveCapabilities(c.Constraints()), nil
}

// ConfirmConnection validates peerCaps against the call's local
// constraints. A duplicate confirmation with identical capabilities is
// idempotent; a duplicate with different capabilities fails with
// DuplicateCapabilityExchange without changing state.
func (m *Manager) ConfirmConnection(ctx context.Context, id ID, peerCaps MediaCapabilities) error {
	c, err := m.getCall(id)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.confirmed {
		already := c.peerCapabilities != nil && *c.peerCapabilities == peerCaps
		c.mu.Unlock()
		if already {
			return nil
		}
		return newErr(KindDuplicateCapabilityExchange, id.String())
	}
	c.mu.Unlock()

	if c.State() != StateConnecting {
		return newErr(KindInvalidStateTransition, fmt.Sprintf("confirm from %s", c.State()))
	}

	if verr := validateCapabilities(c.Constraints(), peerCaps); verr != nil {
		m.failCall(id, verr.Kind, verr.Detail)
		return verr
	}

	// Streams are only opened when a real QUIC connection has already
	// been bound via InitiateQUICCall; a signaling-only call (plain
	// InitiateCall, exercised by cmd/quicmediademo and most manager
	// tests) has nothing to open yet and still reaches Connected on the
	// signaling handshake alone.
	if c.transport.State() == transport.StateConnected {
		if err := c.transport.OpenAllStreams(ctx); err != nil {
			m.failCall(id, KindTransportError, err.Error())
			return newErr(KindTransportError, err.Error())
		}
	}

	c.mu.Lock()
	c.peerCapabilities = &peerCaps
	c.confirmed = true
	c.mu.Unlock()

	if err := c.transition(StateConnected); err != nil {
		return err
	}
	m.emit(Event{CallID: id, Kind: EventConnected, Peer: c.remotePeer.UniqueID()})
	go m.demuxInbound(c)

	_ = m.sendMessage(ctx, c.remotePeer, signaling.Message{ConnectionReady: &signaling.ConnectionReady{
		CallID: id.String(),
		From:   m.self.UniqueID(),
	}})
	return nil
}

// demuxInbound is the single reader of a call's Media Transport
// receive queue: it classifies each frame and forwards it to the
// matching track backend, creating the backend lazily on first
// delivery. RTCP feedback and generic data frames have no bound track
// and are dropped here; a future RTCP consumer would read them off the
// transport directly instead.
//
// The frame's own StreamType tag is trusted first; the manager's
// Router only overrides it when the payload itself is recognizable RTP
// or RTCP, so a peer that multiplexes RTCP onto the same stream as its
// RTP still gets routed by payload type rather than by whatever tag
// the sender happened to stamp on the frame. This is the only runtime
// consumer of the configured RTPPayloadTypeTable.
//
// Receive returns an error both when the transport was disconnected
// deliberately (EndCall) and when it failed on its own; the two are
// told apart by the transport's resulting state so a clean end-of-call
// teardown never gets misreported as a Failed event.
func (m *Manager) demuxInbound(c *Call) {
	for {
		st, payload, err := c.transport.Receive(context.Background())
		if err != nil {
			if c.transport.State() == transport.StateFailed {
				m.failCall(c.id, KindTransportError, err.Error())
			}
			return
		}
		if classified, cerr := m.router.Classify(payload); cerr == nil {
			st = classified
		}
		kind, ok := track.KindForStreamType(st)
		if !ok {
			continue
		}
		b, err := c.Track(kind)
		if err != nil {
			continue
		}
		b.Deliver(payload)
	}
}

func validateCapabilities(constraints MediaConstraints, remote MediaCapabilities) *Error {
	if constraints.Audio && !remote.Audio {
		return newErr(KindIncompatibleAudio, "remote does not offer audio")
	}
	if (constraints.Video || constraints.ScreenShare) && !remote.Video {
		return newErr(KindIncompatibleVideo, "remote does not offer video")
	}
	if remote.MaxBandwidthKbps != 0 {
		min := minimumBandwidthKbps(constraints)
		if remote.MaxBandwidthKbps < min {
			return newErr(KindInsufficientBandwidth, fmt.Sprintf("remote declared %d kbps, need >= %d", remote.MaxBandwidthKbps, min))
		}
	}
	return nil
}

// EndCall is allowed from any state except Idle and drives the call
// to Idle, closing its transport and revoking its tracks. It is
// idempotent: a call already gone or already Idle returns nil.
func (m *Manager) EndCall(ctx context.Context, id ID, reason string) error {
	c, err := m.getCall(id)
	if err != nil {
		return nil
	}
	if c.State() == StateIdle {
		return nil
	}

	c.mu.Lock()
	for _, tr := range c.tracks {
		tr.Close()
	}
	c.mu.Unlock()

	_ = c.transport.Disconnect()

	wasFailed := c.State() == StateFailed
	if !wasFailed {
		_ = c.transition(StateEnding)
		_ = c.transition(StateIdle)
	} else {
		_ = c.transition(StateIdle)
	}
	m.removeCall(id)

	_ = m.sendMessage(ctx, c.remotePeer, signaling.Message{CallEnded: &signaling.CallEnded{
		CallID: id.String(),
		Reason: reason,
	}})

	m.emit(Event{CallID: id, Kind: EventEnded, Reason: reason, Peer: c.remotePeer.UniqueID()})
	return nil
}

// UpdateStateFromTransport reads the call's Media Transport state and
// applies the transport -> call state mapping, emitting the matching
// event when a transition actually occurs. A call whose transport was
// never bound to a QUIC connection (a signaling-only call) has nothing
// to reconcile here — its Media Transport sits in Disconnected
// permanently, which must not be confused with a bound transport that
// dropped after reaching Connected.
func (m *Manager) UpdateStateFromTransport(id ID) error {
	c, err := m.getCall(id)
	if err != nil {
		return err
	}
	if !c.transport.Bound() {
		return nil
	}

	switch c.transport.State() {
	case transport.StateConnecting:
		if c.State() == StateCalling {
			if err := c.transition(StateConnecting); err == nil {
				m.emit(Event{CallID: id, Kind: EventConnecting, Peer: c.remotePeer.UniqueID()})
			}
		}
	case transport.StateConnected:
		if c.State() == StateConnecting || c.State() == StateCalling {
			if c.State() == StateCalling {
				_ = c.transition(StateConnecting)
			}
			if err := c.transition(StateConnected); err == nil {
				m.emit(Event{CallID: id, Kind: EventConnected, Peer: c.remotePeer.UniqueID()})
			}
		}
	case transport.StateDisconnected:
		if c.State() == StateConnected {
			_ = c.transition(StateEnding)
			_ = c.transition(StateIdle)
			m.removeCall(id)
			m.emit(Event{CallID: id, Kind: EventEnded, Reason: "transport disconnected", Peer: c.remotePeer.UniqueID()})
		}
	case transport.StateFailed:
		m.failCall(id, KindTransportError, "underlying transport failed")
	}
	return nil
}

// failCall transitions a call to Failed and emits exactly one Failed
// event, unless it is already Failed.
func (m *Manager) failCall(id ID, kind ErrorKind, detail string) {
	c, err := m.getCall(id)
	if err != nil {
		return
	}
	if c.State() == StateFailed {
		return
	}
	if err := c.transition(StateFailed); err != nil {
		return
	}
	m.emit(Event{CallID: id, Kind: EventFailed, Reason: kind.String() + ": " + detail, Peer: c.remotePeer.UniqueID()})
}

// watchHandshakeTimeout fails a call with Timeout if it has not
// reached Connected within the configured handshake budget.
func (m *Manager) watchHandshakeTimeout(id ID) {
	go func() {
		<-m.clock.After(m.cfg.HandshakeTimeout)
		c, err := m.getCall(id)
		if err != nil {
			return
		}
		if c.State() != StateConnected {
			m.failCall(id, KindTimeout, "handshake did not complete in time")
		}
	}()
}

func (m *Manager) sendMessage(ctx context.Context, peer identity.PeerIdentity, msg signaling.Message) error {
	return m.collaborator.Send(ctx, peer.UniqueID(), msg)
}

// RunSignalingLoop consumes the collaborator's inbound queue until ctx
// is cancelled, applying the per-peer rate limit and dispatching each
// message to the matching handler. It is the single consumer of the
// collaborator's inbound stream, preserving per-CallID ordering.
func (m *Manager) RunSignalingLoop(ctx context.Context) error {
	for {
		from, msg, err := m.collaborator.Receive(ctx)
		if err != nil {
			return err
		}

		if !m.limiter.Allow(from) {
			m.emit(Event{Kind: EventRateLimited, Peer: from, Reason: "signaling rate limit exceeded"})
			continue
		}

		m.dispatch(ctx, from, msg)
	}
}

func (m *Manager) dispatch(ctx context.Context, from string, msg signaling.Message) {
	peer := identity.Opaque(from)

	switch {
	case msg.CallRequest != nil:
		id, err := ParseID(msg.CallRequest.CallID)
		if err != nil {
			return
		}
		m.OnIncomingCallRequest(peer, id, fromWireConstraints(msg.CallRequest.Constraints))

	case msg.CallResponse != nil:
		id, err := ParseID(msg.CallResponse.CallID)
		if err != nil {
			return
		}
		c, err := m.getCall(id)
		if err != nil {
			return
		}
		if !msg.CallResponse.Accepted {
			_ = c.transition(StateEnding)
			_ = c.transition(StateIdle)
			m.removeCall(id)
			m.emit(Event{CallID: id, Kind: EventRejected, Peer: from})
			return
		}
		// The caller's own Call never goes through AcceptCall — only the
		// callee's does — so the caller is still sitting in Calling until
		// this explicit accept arrives. Advance it here so the
		// ConfirmConnection below has a Connecting call to confirm
		// instead of always failing with InvalidStateTransition.
		if c.State() == StateCalling {
			if err := c.transition(StateConnecting); err == nil {
				m.emit(Event{CallID: id, Kind: EventConnecting, Peer: peer.UniqueID()})
			}
		}
		if msg.CallResponse.Capabilities == nil {
			return
		}
		if err := m.ConfirmConnection(ctx, id, fromWireCapabilities(*msg.CallResponse.Capabilities)); err != nil {
			return
		}
		// Declare our own capabilities to the callee now that we've
		// accepted theirs; CapabilityExchange only ever travels this one
		// direction (caller -> callee) in this handshake.
		localCaps, err := m.ExchangeCapabilities(id)
		if err != nil {
			return
		}
		_ = m.sendMessage(ctx, peer, signaling.Message{CapabilityExchange: &signaling.CapabilityExchange{
			CallID:       id.String(),
			From:         m.self.UniqueID(),
			Capabilities: toWireCapabilities(localCaps),
		}})

	case msg.CapabilityExchange != nil:
		id, err := ParseID(msg.CapabilityExchange.CallID)
		if err != nil {
			return
		}
		remoteCaps := fromWireCapabilities(msg.CapabilityExchange.Capabilities)
		if err := m.ConfirmConnection(ctx, id, remoteCaps); err != nil {
			return
		}
		localCaps, err := m.ExchangeCapabilities(id)
		if err != nil {
			return
		}
		_ = m.sendMessage(ctx, peer, signaling.Message{ConnectionConfirm: &signaling.ConnectionConfirm{
			CallID:           id.String(),
			From:             m.self.UniqueID(),
			PeerCapabilities: toWireCapabilities(localCaps),
		}})

	case msg.ConnectionConfirm != nil:
		id, err := ParseID(msg.ConnectionConfirm.CallID)
		if err != nil {
			return
		}
		_ = m.ConfirmConnection(ctx, id, fromWireCapabilities(msg.ConnectionConfirm.PeerCapabilities))

	case msg.ConnectionReady != nil:
		id, err := ParseID(msg.ConnectionReady.CallID)
		if err != nil {
			return
		}
		_ = m.UpdateStateFromTransport(id)

	case msg.CallRejected != nil:
		id, err := ParseID(msg.CallRejected.CallID)
		if err != nil {
			return
		}
		c, err := m.getCall(id)
		if err != nil {
			return
		}
		_ = c.transition(StateEnding)
		_ = c.transition(StateIdle)
		m.removeCall(id)
		m.emit(Event{CallID: id, Kind: EventRejected, Reason: msg.CallRejected.Reason, Peer: from})

	case msg.CallEnded != nil:
		id, err := ParseID(msg.CallEnded.CallID)
		if err != nil {
			return
		}
		_ = m.EndCall(ctx, id, msg.CallEnded.Reason)

	}
}

func toWireConstraints(c MediaConstraints) signaling.MediaConstraints {
	return signaling.MediaConstraints{
		Audio:            c.Audio,
		Video:            c.Video,
		ScreenShare:      c.ScreenShare,
		MaxBandwidthKbps: c.MaxBandwidthKbps,
	}
}

func fromWireConstraints(c signaling.MediaConstraints) MediaConstraints {
	return MediaConstraints{
		Audio:            c.Audio,
		Video:            c.Video,
		ScreenShare:      c.ScreenShare,
		MaxBandwidthKbps: c.MaxBandwidthKbps,
	}
}

func toWireCapabilities(c MediaCapabilities) signaling.MediaCapabilities {
	return signaling.MediaCapabilities{
		Audio:            c.Audio,
		Video:            c.Video,
		DataChannel:      c.DataChannel,
		MaxBandwidthKbps: c.MaxBandwidthKbps,
	}
}

func fromWireCapabilities(c signaling.MediaCapabilities) MediaCapabilities {
	return MediaCapabilities{
		Audio:            c.Audio,
		Video:            c.Video,
		DataChannel:      c.DataChannel,
		MaxBandwidthKbps: c.MaxBandwidthKbps,
	}
}
