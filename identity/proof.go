package identity

import "crypto/ed25519"

// Proof is third-person evidence that PeerID signed a payload whose hash is
// payloadHash. Unlike a Vote, a Proof carries no copy of the payload itself
// — callers already know which payload they are accumulating proofs for
// (see consensus.Block), and only need the hash to check the signature.
type Proof struct {
	PeerID    PeerID
	Signature []byte
}

// Validate reports whether the proof's signature covers payloadHash under
// the proof's own PeerID public key.
func (p Proof) Validate(payloadHash Hash256) bool {
	return ed25519.Verify(p.PeerID.PublicKey, payloadHash.CanonicalBytes(), p.Signature)
}
