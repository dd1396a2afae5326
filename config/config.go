// Package config carries the recognized runtime options for the call
// manager, media transport, and stream router, following the
// toxcore-go convention of a single constructible Options-like struct
// with a documented default.
package config

import (
	"time"

	"github.com/opd-ai/quicmedia/transport"
)

// Config holds every option a caller may tune. Default returns a fully
// populated Config; zero-value fields of a bare literal are not filled
// in (only the queue bounds and the payload-type table fall back to
// their defaults where they are used), so a caller that only wants to
// override one knob should start from Default().
type Config struct {
	// MaxConcurrentCalls caps the number of simultaneously active
	// calls a single Manager will hold.
	MaxConcurrentCalls int

	// HandshakeTimeout bounds the Calling -> Connected path; exceeding
	// it fails the call with a Timeout error.
	HandshakeTimeout time.Duration

	// PerStreamQueueBounds sets the inbound frame queue depth per
	// stream type; the depths of types sharing a priority tier are
	// summed into that tier's single queue.
	PerStreamQueueBounds transport.QueueBounds

	// SignalingRateLimitPerPeerPerSecond bounds inbound signaling
	// messages accepted from a single peer.
	SignalingRateLimitPerPeerPerSecond int

	// RTPPayloadTypeTable is the injectable PT->kind table used by the
	// Stream Router; the zero value falls back to
	// transport.DefaultPayloadTypeTable.
	RTPPayloadTypeTable transport.PayloadTypeTable
}

// Default returns the module's documented defaults.
func Default() Config {
	return Config{
		MaxConcurrentCalls:                 8,
		HandshakeTimeout:                   30 * time.Second,
		PerStreamQueueBounds:               transport.DefaultQueueBounds(),
		SignalingRateLimitPerPeerPerSecond: 100,
		RTPPayloadTypeTable:                transport.DefaultPayloadTypeTable(),
	}
}
