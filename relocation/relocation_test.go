package relocation

import (
	"crypto/ed25519"
	"testing"

	"github.com/tolelom/xornet/identity"
	"github.com/tolelom/xornet/section"
	"github.com/tolelom/xornet/xorname"
)

func TestCheckAgeZeroAlwaysPasses(t *testing.T) {
	secret, _, err := section.GenerateSectionKey()
	if err != nil {
		t.Fatalf("GenerateSectionKey: %v", err)
	}
	sig := secret.Sign([]byte("churn"))
	if !Check(0, sig) {
		t.Fatalf("age 0 should always pass the relocation check (x %% 1 == 0)")
	}
}

func TestCheckIsDeterministic(t *testing.T) {
	secret, _, err := section.GenerateSectionKey()
	if err != nil {
		t.Fatalf("GenerateSectionKey: %v", err)
	}
	sig := secret.Sign([]byte("churn"))
	first := Check(10, sig)
	second := Check(10, sig)
	if first != second {
		t.Fatalf("Check should be a pure function of (age, signature)")
	}
}

func TestSaturatingPow2AvoidsOverflow(t *testing.T) {
	if got := saturatingPow2(64); got != 0 {
		t.Fatalf("saturatingPow2(64) = %d, want 0 (out of range)", got)
	}
	if got := saturatingPow2(0); got != 1 {
		t.Fatalf("saturatingPow2(0) = %d, want 1", got)
	}
}

func TestSelectPrefersOlder(t *testing.T) {
	young := Candidate{Member: identity.PeerID{Age: 4}, Proof: []byte{1}}
	old := Candidate{Member: identity.PeerID{Age: 8}, Proof: []byte{0}}
	if got := Select(young, old); got.Member.Age != 8 {
		t.Fatalf("Select should prefer the older candidate regardless of argument order")
	}
	if got := Select(old, young); got.Member.Age != 8 {
		t.Fatalf("Select should prefer the older candidate regardless of argument order")
	}
}

func TestSelectBreaksTiesOnProof(t *testing.T) {
	a := Candidate{Member: identity.PeerID{Age: 5}, Proof: []byte{0x01}}
	b := Candidate{Member: identity.PeerID{Age: 5}, Proof: []byte{0x02}}
	got := Select(a, b)
	if got.Proof[0] != 0x02 {
		t.Fatalf("Select should break a same-age tie by the larger proof bytes")
	}
}

func TestComputeDestinationIsSymmetricAndDeterministic(t *testing.T) {
	relocating := xorname.Hash([]byte("relocating"))
	churn := xorname.Hash([]byte("churn"))

	d1 := ComputeDestination(relocating, churn)
	d2 := ComputeDestination(relocating, churn)
	if d1 != d2 {
		t.Fatalf("ComputeDestination should be deterministic")
	}

	d3 := ComputeDestination(churn, relocating)
	if d1 != d3 {
		t.Fatalf("ComputeDestination should not depend on argument order (xor is commutative)")
	}
}

func TestSignedDetailsRoundTrip(t *testing.T) {
	secret, public, err := section.GenerateSectionKey()
	if err != nil {
		t.Fatalf("GenerateSectionKey: %v", err)
	}
	pub, _, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	details := Details{
		PeerID:         identity.NewPeerID(5, pub),
		Destination:    xorname.Hash([]byte("dest")),
		DestinationKey: public,
		Age:            6,
	}
	sig := secret.Sign(details.CanonicalBytes())
	sigBytes := sig.Bytes()
	signed := NewSignedDetails(details, sigBytes[:])

	if !signed.Verify(public) {
		t.Fatalf("Verify should succeed for a correctly signed payload")
	}

	got, err := signed.RelocateDetails()
	if err != nil {
		t.Fatalf("RelocateDetails: %v", err)
	}
	if got.Age != details.Age || got.Destination != details.Destination {
		t.Fatalf("RelocateDetails returned mismatched details")
	}

	var zero SignedDetails
	if _, err := zero.RelocateDetails(); err == nil {
		t.Fatalf("RelocateDetails should error on a zero-value SignedDetails rather than panic")
	}
}

func TestPayloadVerifyIdentity(t *testing.T) {
	secret, public, err := section.GenerateSectionKey()
	if err != nil {
		t.Fatalf("GenerateSectionKey: %v", err)
	}
	oldPub, oldPriv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	newPub, _, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}

	details := Details{
		PeerID:         identity.NewPeerID(5, oldPub),
		Destination:    xorname.Hash([]byte("dest")),
		DestinationKey: public,
		Age:            6,
	}
	sig := secret.Sign(details.CanonicalBytes())
	sigBytes := sig.Bytes()
	signed := NewSignedDetails(details, sigBytes[:])

	payload := NewPayload(signed, newPub, oldPriv)
	if !payload.VerifyIdentity(newPub) {
		t.Fatalf("VerifyIdentity should succeed for the matching new public key")
	}

	otherPub, _, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	if payload.VerifyIdentity(otherPub) {
		t.Fatalf("VerifyIdentity should fail for a different public key")
	}
}
