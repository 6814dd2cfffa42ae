package identity

import (
	"crypto/ed25519"
	"fmt"
)

// CanonicalPayload is anything that can be voted on: it must serialize to a
// fixed deterministic byte layout so every voter signs the same bytes.
type CanonicalPayload interface {
	CanonicalBytes() []byte
}

// Vote is a first-person signed declaration by a single peer that some
// payload is true. It is the unit every elder produces locally; once
// validated by an observer it becomes a Proof (third-person evidence).
type Vote[T CanonicalPayload] struct {
	Payload   T
	Signature []byte
}

// NewVote signs payload with secretKey, producing a Vote from this node.
func NewVote[T CanonicalPayload](secretKey ed25519.PrivateKey, payload T) Vote[T] {
	sig := ed25519.Sign(secretKey, payload.CanonicalBytes())
	return Vote[T]{Payload: payload, Signature: sig}
}

// Validate reports whether the vote's signature was produced by peer's key
// over this vote's payload.
func (v Vote[T]) Validate(peer PeerID) bool {
	return ed25519.Verify(peer.PublicKey, v.Payload.CanonicalBytes(), v.Signature)
}

// IntoProof turns a validated Vote into third-person Proof evidence. It
// fails if the vote does not in fact validate against peer's key, since a
// Proof is only meaningful as evidence of a signature that checks out.
func (v Vote[T]) IntoProof(peer PeerID) (Proof, error) {
	if !v.Validate(peer) {
		return Proof{}, fmt.Errorf("identity: vote signature does not validate for peer %s", peer.Name())
	}
	return Proof{
		PeerID:    peer,
		Signature: append([]byte(nil), v.Signature...),
	}, nil
}
