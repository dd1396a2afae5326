// Package identity provides the stringly-representable peer identity
// abstraction the call and signaling packages depend on.
package identity

import "fmt"

// PeerIdentity is a stringly-representable identity: it has a display
// form (String) and a stable unique-id form (UniqueID). The interface
// has no parse-from-string constructor; for Opaque, converting the
// display form back with Opaque(id.String()) yields id.
// Concrete identities (four-word addresses, opaque tokens, and richer
// cryptographic identities a future collaborator might add) plug in
// behind this abstraction.
//
// Invariant: UniqueID(id) is stable across the lifetime of any call
// that references it.
type PeerIdentity interface {
	fmt.Stringer

	// UniqueID returns the stable identifier used as a map key and for
	// equality comparisons; it need not be human-readable.
	UniqueID() string
}

// Opaque is a PeerIdentity backed by a plain string, for signaling
// collaborators (e.g. an in-process bus keyed by name) that carry no
// richer identity of their own.
type Opaque string

// String returns the wrapped string as the display form.
func (o Opaque) String() string { return string(o) }

// UniqueID returns the wrapped string, identical to String; an opaque
// identity has no separate stable form.
func (o Opaque) UniqueID() string { return string(o) }
