package identity

import "golang.org/x/crypto/sha3"

// Hash256Len is the length in bytes of a Hash256.
const Hash256Len = 32

// Hash256 is a 256-bit digest. Block payloads (package consensus) are always
// a Hash256: higher-level facts (an EldersInfo, a section key) are reduced to
// their hash before being voted on, so the accumulator never has to know the
// shape of what it is counting proofs for.
type Hash256 [Hash256Len]byte

// HashBytes derives a Hash256 from arbitrary bytes (SHA3-256).
func HashBytes(data []byte) Hash256 {
	return Hash256(sha3.Sum256(data))
}

// CanonicalBytes implements CanonicalPayload: a hash signs as itself.
func (h Hash256) CanonicalBytes() []byte {
	return h[:]
}
