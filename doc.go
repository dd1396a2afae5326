// Package quicmedia implements a QUIC-native real-time media transport:
// audio, video, screen-share, and RTCP feedback multiplexed over a
// single QUIC connection's streams, in place of the ICE/DTLS-SRTP
// stack a WebRTC-style transport would use.
//
// # Getting Started
//
// Wire a call manager to a signaling collaborator, then drive calls
// through it, binding each one to an established QUIC connection:
//
//	cfg := config.Default()
//	bus := signaling.NewInProcessBus()
//	mgr := call.NewManager(cfg, bus.Register("alice"), identity.Opaque("alice"))
//
//	events := mgr.SubscribeEvents()
//	go func() {
//	    for ev := range events {
//	        log.Printf("call %s: %s", ev.CallID, ev.Kind)
//	    }
//	}()
//
//	id, err := mgr.InitiateQUICCall(ctx, identity.Opaque("bob"),
//	    call.MediaConstraints{Audio: true, Video: true, MaxBandwidthKbps: 512}, conn)
//
// # Core Packages
//
//   - [transport]: framing codec, RTP/RTCP classification, and the
//     per-stream-type QUIC-backed Media Transport
//   - [track]: the uniform Track Backend contract media pipelines send
//     and receive through, decoupled from the QUIC transport beneath it
//   - [call]: the call lifecycle state machine, capability exchange,
//     per-peer signaling rate limiting, and event broadcast
//   - [signaling]: the wire message schema and the Collaborator
//     interface calls use to exchange them out of band
//   - [identity]: the PeerIdentity abstraction, with a string-backed
//     concrete implementation for collaborators with no richer
//     identity of their own
//   - [config]: transport and call manager configuration defaults
//   - [codec]: the audio/video encoder and decoder interfaces a media
//     pipeline plugs into a Track Backend (no codec implementations
//     ship here)
//
// # Framing
//
// Every payload placed on a QUIC stream is wrapped in a fixed 3-byte
// header identifying its stream type and length, so a receiver that
// only sees raw stream bytes can still demultiplex and resynchronize
// after a partial read:
//
//	frame, err := transport.Frame(transport.StreamAudio, opusPacket)
//
// # Concurrency
//
// MediaTransport and Call are safe for concurrent use. A lock is held
// only long enough to snapshot or mutate state, then released before
// any stream is opened or written; a MediaTransport guards all of its
// per-stream-type records with one shared mutex.
//
// # Deterministic Testing
//
// The call package accepts an injectable Clock so handshake-timeout
// behavior can be tested without a real timer, and the transport
// package's tests exercise MediaTransport against an in-memory fake of
// the quic-go Connection and Stream interfaces rather than a live
// handshake.
package quicmedia
