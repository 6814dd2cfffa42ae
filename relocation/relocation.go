// Package relocation implements the churn-triggered relocation algorithm:
// deciding which aged member must move section on a churn event, where it
// moves to, and the signed payload a relocated node presents to link its
// new identity to the old one it names.
package relocation

import (
	"crypto/ed25519"
	"encoding/binary"

	"github.com/tolelom/xornet/identity"
	"github.com/tolelom/xornet/section"
	"github.com/tolelom/xornet/xerrors"
	"github.com/tolelom/xornet/xorname"
)

// Check evaluates the relocation formula for a member of the given age
// against a churn event's BLS signature: partial_signature(sig) % 2^age == 0.
// Older members are exponentially less likely to be picked, the same
// probability curve original_source/relocation.rs implements.
func Check(age uint8, churnSignature section.SectionSignature) bool {
	modulus := saturatingPow2(age)
	if modulus == 0 {
		return false
	}
	return partialSignature(churnSignature)%modulus == 0
}

// saturatingPow2 computes 2^exp for exp below 64 and returns 0 for larger
// exponents instead of overflowing. Check treats a 0 modulus as "never
// relocate", so members aged 64 or more are never relocation-eligible.
func saturatingPow2(exp uint8) uint64 {
	if exp >= 64 {
		return 0
	}
	return uint64(1) << exp
}

// partialSignature extracts the first 8 bytes of a signature's canonical
// encoding as a little-endian u64, so the relocation check can use native
// arithmetic instead of big-integer math.
func partialSignature(sig section.SectionSignature) uint64 {
	b := sig.Bytes()
	return binary.LittleEndian.Uint64(b[:8])
}

// Candidate pairs a member's info with the proof (signature) over it, the
// evidence needed to compare two relocation candidates' signatures.
type Candidate struct {
	Member identity.PeerID
	Proof  []byte // the accumulated signature bytes proving Member's info
}

// Select picks which of two relocation candidates actually relocates,
// breaking a tie between two members that both pass Check on the same
// churn event. At most one elder may relocate per churn event to avoid
// destabilizing the section, so ties must resolve deterministically on
// every node without further communication: prefer the older member, and
// if ages match (only possible for non-elders), break the tie by comparing
// proof bytes lexicographically — an arbitrary but universally reproducible
// order.
func Select(a, b Candidate) Candidate {
	if a.Member.Age != b.Member.Age {
		if a.Member.Age > b.Member.Age {
			return a
		}
		return b
	}
	if compareBytes(a.Proof, b.Proof) > 0 {
		return a
	}
	return b
}

func compareBytes(a, b []byte) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}

// ComputeDestination derives the destination address a relocating member
// should move toward: the section whose prefix matches this name will
// receive the relocated member. Combining both the relocating member's own
// name and the churn event's name means the destination cannot be
// predicted (and thus targeted) before the churn event actually happens.
func ComputeDestination(relocatingName, churnName xorname.Name) xorname.Name {
	combined := relocatingName.Xor(churnName)
	return xorname.Hash(combined[:])
}

// Details describes one relocation: who moves, where to, under which
// section key, and at what post-relocation age.
type Details struct {
	PeerID         identity.PeerID
	Destination    xorname.Name
	DestinationKey section.SectionPublicKey
	Age            uint8
}

// CanonicalBytes implements identity.CanonicalPayload so Details can be
// voted on and signed like any other consensus payload.
func (d Details) CanonicalBytes() []byte {
	keyBytes := d.DestinationKey.Bytes()
	out := make([]byte, 0, len(d.PeerID.PublicKey)+1+xorname.Len+len(keyBytes)+1)
	out = append(out, d.PeerID.PublicKey...)
	out = append(out, d.PeerID.Age)
	out = append(out, d.Destination[:]...)
	out = append(out, keyBytes[:]...)
	out = append(out, d.Age)
	return out
}

// SignedDetails carries Details alongside the section's proof that it was
// legitimately agreed (a quorum of elders voted to relocate this member),
// so a receiving section can verify it without trusting the relocating
// node's say-so. Unlike the original's SignedRelocateDetails (a panicking
// accessor wrapping a generic signed message), Details is accessed through
// a plain error return: a malformed or inapplicable message arriving over
// the wire is a routine condition, not a programming bug.
type SignedDetails struct {
	details Details
	proof   []byte // section signature over details.CanonicalBytes()
}

// NewSignedDetails wraps details with the section's proof over it.
func NewSignedDetails(details Details, proof []byte) SignedDetails {
	return SignedDetails{details: details, proof: proof}
}

// RelocateDetails returns the wrapped Details, or an error if s is the zero
// value (no details were ever attached) — the non-panicking accessor noted
// as a FIXME in the original implementation.
func (s SignedDetails) RelocateDetails() (Details, error) {
	if s.proof == nil {
		return Details{}, xerrors.InvalidMessage
	}
	return s.details, nil
}

// Verify checks proof against sectionKey.
func (s SignedDetails) Verify(sectionKey section.SectionPublicKey) bool {
	sig, err := sigFromBytes(s.proof)
	if err != nil {
		return false
	}
	return sectionKey.Verify(s.details.CanonicalBytes(), sig)
}

func sigFromBytes(b []byte) (section.SectionSignature, error) {
	var arr [48]byte
	if len(b) != len(arr) {
		return section.SectionSignature{}, xerrors.InvalidMessage
	}
	copy(arr[:], b)
	return section.SignatureFromBytes(arr)
}

// Payload is what a relocating node actually sends once it has connected
// to its destination section: the signed relocation details, plus proof
// that the node presenting a brand-new identity is the same physical node
// the old section approved for relocation.
type Payload struct {
	Details               SignedDetails
	SignatureOfNewIDOldID []byte // old identity's signature over the new public key
}

// NewPayload signs newPublicKey with the old identity's private key,
// binding the two identities together without ever revealing that binding
// to anyone but the destination section.
func NewPayload(details SignedDetails, newPublicKey ed25519.PublicKey, oldPrivateKey ed25519.PrivateKey) Payload {
	sig := ed25519.Sign(oldPrivateKey, newPublicKey)
	return Payload{Details: details, SignatureOfNewIDOldID: sig}
}

// VerifyIdentity checks that SignatureOfNewIDOldID is a valid signature by
// the old identity named in Details over newPublicKey, proving the node
// presenting newPublicKey is the one the relocation was approved for.
func (p Payload) VerifyIdentity(newPublicKey ed25519.PublicKey) bool {
	details, err := p.Details.RelocateDetails()
	if err != nil {
		return false
	}
	return ed25519.Verify(details.PeerID.PublicKey, newPublicKey, p.SignatureOfNewIDOldID)
}
