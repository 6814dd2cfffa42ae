package section

import (
	"testing"

	"github.com/tolelom/xornet/xorname"
)

func TestSectionProofChainAppendAndTrust(t *testing.T) {
	secret0, public0, err := GenerateSectionKey()
	if err != nil {
		t.Fatalf("GenerateSectionKey: %v", err)
	}
	chain := NewSectionProofChain(public0)
	if chain.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", chain.Len())
	}
	if !chain.Tip().Equal(public0) {
		t.Fatalf("Tip() should be the genesis key")
	}

	secret1, public1, err := GenerateSectionKey()
	if err != nil {
		t.Fatalf("GenerateSectionKey: %v", err)
	}
	keyInfo1 := SectionKeyInfo{PublicKey: public1, Version: 1}
	sig1 := secret0.Sign(keyInfo1.CanonicalBytes())
	if err := chain.Append(public1, sig1); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if !chain.Tip().Equal(public1) {
		t.Fatalf("Tip() should now be public1")
	}

	status := CheckTrust(chain.Slice(0), []SectionPublicKey{public0})
	if status != Trusted {
		t.Fatalf("CheckTrust = %v, want Trusted", status)
	}

	_, strangerPublic, err := GenerateSectionKey()
	if err != nil {
		t.Fatalf("GenerateSectionKey: %v", err)
	}
	if status := CheckTrust(chain.Slice(0), []SectionPublicKey{strangerPublic}); status != Unknown {
		t.Fatalf("CheckTrust = %v, want Unknown for an unrelated key", status)
	}

	_ = secret1
}

func TestSectionProofChainRejectsBadSignature(t *testing.T) {
	_, public0, err := GenerateSectionKey()
	if err != nil {
		t.Fatalf("GenerateSectionKey: %v", err)
	}
	chain := NewSectionProofChain(public0)

	badSecret, _, err := GenerateSectionKey()
	if err != nil {
		t.Fatalf("GenerateSectionKey: %v", err)
	}
	_, public1, err := GenerateSectionKey()
	if err != nil {
		t.Fatalf("GenerateSectionKey: %v", err)
	}
	keyInfo1 := SectionKeyInfo{PublicKey: public1, Version: 1}
	badSig := badSecret.Sign(keyInfo1.CanonicalBytes())

	if err := chain.Append(public1, badSig); err == nil {
		t.Fatalf("expected Append to reject a signature from the wrong key")
	}
	if chain.Len() != 1 {
		t.Fatalf("chain should be unchanged after a rejected append, Len() = %d", chain.Len())
	}
}

func TestProvenVerify(t *testing.T) {
	secret, public, err := GenerateSectionKey()
	if err != nil {
		t.Fatalf("GenerateSectionKey: %v", err)
	}
	chain := NewSectionProofChain(public)

	info := NewEldersInfo(xorname.NewPrefix(xorname.Name{}, 0), []PeerAddress{peerAddr(1, "a")})
	proven := NewProven[EldersInfo](info, secret)

	if !proven.Verify(chain, []SectionPublicKey{public}) {
		t.Fatalf("Verify should succeed against its own signing key")
	}
	if proven.Verify(chain, nil) {
		t.Fatalf("Verify should fail with no trusted keys")
	}
}

// TestProvenVerifyRejectsSignerOutsideChain guards against a forged Proven
// that signs under a key with no relation to chain: even though chain is
// independently Trusted, SignedUnder never appearing in it must fail Verify.
func TestProvenVerifyRejectsSignerOutsideChain(t *testing.T) {
	_, public, err := GenerateSectionKey()
	if err != nil {
		t.Fatalf("GenerateSectionKey: %v", err)
	}
	chain := NewSectionProofChain(public)

	strangerSecret, _, err := GenerateSectionKey()
	if err != nil {
		t.Fatalf("GenerateSectionKey: %v", err)
	}
	info := NewEldersInfo(xorname.NewPrefix(xorname.Name{}, 0), []PeerAddress{peerAddr(1, "a")})
	forged := NewProven[EldersInfo](info, strangerSecret)

	if forged.Verify(chain, []SectionPublicKey{public}) {
		t.Fatalf("Verify should fail when SignedUnder never appears in chain, even though chain itself is trusted")
	}
}
