package track

// LegacyBackend is the named interface boundary for a non-QUIC
// transport that presents the same track contract as Backend (e.g. an
// SDP/ICE-negotiated WebRTC track). The core never constructs or owns
// a LegacyBackend; it only ever holds one behind the polymorphic
// Backend handle supplied by an external collaborator.
//
// LegacyBackend is declared, not implemented, here: SDP/ICE and any
// non-QUIC media path are explicitly out of this module's scope.
type LegacyBackend = Backend
