package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOpaqueStringIsUnderlyingValue(t *testing.T) {
	id := Opaque("bob")
	assert.Equal(t, "bob", id.String())
}

func TestOpaqueUniqueIDMatchesString(t *testing.T) {
	id := Opaque("bob")
	assert.Equal(t, id.String(), id.UniqueID())
}

func TestOpaqueDistinctValuesHaveDistinctUniqueIDs(t *testing.T) {
	a := Opaque("alice")
	b := Opaque("bob")
	assert.NotEqual(t, a.UniqueID(), b.UniqueID())
}

func TestOpaqueImplementsPeerIdentity(t *testing.T) {
	var _ PeerIdentity = Opaque("alice")
}
