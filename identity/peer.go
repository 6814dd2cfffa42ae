// Package identity implements peer identities and the generic vote/proof
// primitives used to accumulate quorum evidence (see package consensus).
package identity

import (
	"crypto/ed25519"

	"github.com/tolelom/xornet/xorname"
)

// PeerID names a single member of the network: its age and its long-lived
// Ed25519 public key. The name used for XOR routing is derived from the
// public key, never stored separately, so it can't drift out of sync.
type PeerID struct {
	Age       uint8
	PublicKey ed25519.PublicKey
}

// NewPeerID builds a PeerID for the given age and public key.
func NewPeerID(age uint8, pub ed25519.PublicKey) PeerID {
	return PeerID{Age: age, PublicKey: append(ed25519.PublicKey(nil), pub...)}
}

// Name derives the peer's address in the overlay name space.
func (p PeerID) Name() xorname.Name {
	return xorname.Hash(p.PublicKey)
}

// Equal reports whether two PeerIDs name the same key at the same age.
func (p PeerID) Equal(other PeerID) bool {
	return p.Age == other.Age && p.PublicKey.Equal(other.PublicKey)
}

// WithAge returns a copy of p with a new age (used on relocation, since the
// relocated peer keeps its key but not its age).
func (p PeerID) WithAge(age uint8) PeerID {
	return PeerID{Age: age, PublicKey: p.PublicKey}
}
