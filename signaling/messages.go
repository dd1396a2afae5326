// Package signaling defines the message schema the Call Manager
// exchanges with an external signaling collaborator, plus a minimal
// in-process collaborator used by tests and the demo CLI. The
// on-wire encoding is a collaborator concern; this package only fixes
// the semantic schema and provides JSON tags for collaborators that
// choose to serialize this way.
package signaling

// MediaConstraints captures what the local side wants from a call.
type MediaConstraints struct {
	Audio            bool   `json:"audio"`
	Video            bool   `json:"video"`
	ScreenShare      bool   `json:"screen_share"`
	MaxBandwidthKbps uint32 `json:"max_bandwidth_kbps"`
}

// MediaCapabilities captures what a side is willing to provide.
type MediaCapabilities struct {
	Audio            bool   `json:"audio"`
	Video            bool   `json:"video"`
	DataChannel      bool   `json:"data_channel"`
	MaxBandwidthKbps uint32 `json:"max_bandwidth_kbps"`
}

// CallRequest is sent caller to callee to initiate a call.
type CallRequest struct {
	CallID      string           `json:"call_id"`
	From        string           `json:"from"`
	Constraints MediaConstraints `json:"constraints"`
}

// CallResponse is the callee's explicit answer to a CallRequest: the
// accept signal, with the callee's derived capabilities attached so
// acceptance and capability declaration travel in one message. A
// callee that declines sends CallRejected instead and never sends
// this.
type CallResponse struct {
	CallID       string             `json:"call_id"`
	From         string             `json:"from"`
	Accepted     bool               `json:"accepted"`
	Capabilities *MediaCapabilities `json:"capabilities,omitempty"`
}

// CapabilityExchange carries the caller's derived capabilities back to
// the callee once CallResponse has accepted the call. At most one is
// sent per direction per call.
type CapabilityExchange struct {
	CallID       string            `json:"call_id"`
	From         string            `json:"from"`
	Capabilities MediaCapabilities `json:"capabilities"`
}

// ConnectionConfirm completes the capability handshake.
type ConnectionConfirm struct {
	CallID           string            `json:"call_id"`
	From             string            `json:"from"`
	PeerCapabilities MediaCapabilities `json:"peer_capabilities"`
}

// ConnectionReady announces that the sender's call reached Connected.
// It is sent whether or not the call's transport is bound to a QUIC
// connection.
type ConnectionReady struct {
	CallID string `json:"call_id"`
	From   string `json:"from"`
}

// CallRejected announces a callee's rejection of a CallRequest.
type CallRejected struct {
	CallID string `json:"call_id"`
	Reason string `json:"reason,omitempty"`
}

// CallEnded announces the end of a call from either side.
type CallEnded struct {
	CallID string `json:"call_id"`
	Reason string `json:"reason,omitempty"`
}

// Message is the union of every signaling schema type a Collaborator
// carries. Exactly one field-typed payload is set per Message;
// collaborators that serialize to JSON should tag the concrete
// message, not this envelope.
type Message struct {
	CallRequest        *CallRequest        `json:"call_request,omitempty"`
	CallResponse       *CallResponse       `json:"call_response,omitempty"`
	CapabilityExchange *CapabilityExchange `json:"capability_exchange,omitempty"`
	ConnectionConfirm  *ConnectionConfirm  `json:"connection_confirm,omitempty"`
	ConnectionReady    *ConnectionReady    `json:"connection_ready,omitempty"`
	CallRejected       *CallRejected       `json:"call_rejected,omitempty"`
	CallEnded          *CallEnded          `json:"call_ended,omitempty"`
}
