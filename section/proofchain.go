package section

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/tolelom/xornet/identity"
	"github.com/tolelom/xornet/xerrors"
)

// SectionKeyInfo names the BLS public key active from one proof-chain
// block forward.
type SectionKeyInfo struct {
	PublicKey SectionPublicKey
	// Version increases by one on every rotation, so two key infos for the
	// same key material at different points in the chain's history can
	// still be told apart.
	Version uint64
}

// CanonicalBytes gives a deterministic byte layout so every elder signs
// (and every verifier checks) the identical bytes for a key rotation.
func (k SectionKeyInfo) CanonicalBytes() []byte {
	b := k.PublicKey.Bytes()
	out := make([]byte, 8, 8+len(b))
	binary.BigEndian.PutUint64(out, k.Version)
	out = append(out, b[:]...)
	return out
}

// SectionProofBlock is one link in the chain: a new key, signed by the
// previous block's key.
type SectionProofBlock struct {
	KeyInfo   SectionKeyInfo
	Signature SectionSignature
}

// SectionProofChain is an append-only, strictly-growing history of a
// section's BLS keys. Modeled on the teacher's Blockchain (mutex-guarded,
// tip-tracked, strictly-linked append log), generalized from hash-linked
// blocks to BLS-key-signed blocks: each new tip must be signed under the
// current tip's key rather than merely reference its hash.
type SectionProofChain struct {
	mu     sync.RWMutex
	blocks []SectionProofBlock // blocks[0] is the genesis key, unsigned by a predecessor
}

// NewSectionProofChain starts a chain at genesisKey, the key of the section
// that first seeded the network (no predecessor to verify against).
func NewSectionProofChain(genesisKey SectionPublicKey) *SectionProofChain {
	return &SectionProofChain{
		blocks: []SectionProofBlock{{KeyInfo: SectionKeyInfo{PublicKey: genesisKey, Version: 0}}},
	}
}

// Tip returns the chain's current (most recent) key.
func (c *SectionProofChain) Tip() SectionPublicKey {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.blocks[len(c.blocks)-1].KeyInfo.PublicKey
}

// Len returns the number of blocks (including genesis) in the chain.
func (c *SectionProofChain) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.blocks)
}

// Append extends the chain with a new key, signed under the current tip's
// key. It fails, leaving the chain unchanged, if the signature does not
// verify.
func (c *SectionProofChain) Append(newKey SectionPublicKey, sig SectionSignature) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	tipKey := c.blocks[len(c.blocks)-1].KeyInfo.PublicKey
	nextInfo := SectionKeyInfo{PublicKey: newKey, Version: c.blocks[len(c.blocks)-1].KeyInfo.Version + 1}
	if !tipKey.Verify(nextInfo.CanonicalBytes(), sig) {
		return fmt.Errorf("section: append proof block: %w", xerrors.FailedSignature)
	}
	c.blocks = append(c.blocks, SectionProofBlock{KeyInfo: nextInfo, Signature: sig})
	return nil
}

// Slice returns a contiguous sub-chain from index from to the current tip
// (inclusive), used for compact proof transmission: a recipient trusting
// any key in the slice can verify forward to the tip without holding the
// whole history.
func (c *SectionProofChain) Slice(from int) []SectionProofBlock {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if from < 0 {
		from = 0
	}
	if from >= len(c.blocks) {
		return nil
	}
	out := make([]SectionProofBlock, len(c.blocks)-from)
	copy(out, c.blocks[from:])
	return out
}

// TrustStatus is the outcome of evaluating a chain or slice against a set
// of locally known keys.
type TrustStatus int

const (
	// Unknown means no key in trustedKeys appears anywhere in the chain.
	Unknown TrustStatus = iota
	// Trusted means a known key appears and every link onward verifies.
	Trusted
	// Invalid means a known key appears but a downstream signature fails.
	Invalid
)

func (s TrustStatus) String() string {
	switch s {
	case Trusted:
		return "trusted"
	case Invalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// CheckTrust evaluates a slice of proof blocks (as returned by Slice, or
// received over the wire) against a set of keys the caller already trusts.
func CheckTrust(blocks []SectionProofBlock, trustedKeys []SectionPublicKey) TrustStatus {
	if len(blocks) == 0 {
		return Unknown
	}
	trusted := make(map[[96]byte]struct{}, len(trustedKeys))
	for _, k := range trustedKeys {
		trusted[k.Bytes()] = struct{}{}
	}

	startIdx := -1
	for i, b := range blocks {
		if _, ok := trusted[b.KeyInfo.PublicKey.Bytes()]; ok {
			startIdx = i
			break
		}
	}
	if startIdx == -1 {
		return Unknown
	}

	for i := startIdx; i < len(blocks)-1; i++ {
		cur := blocks[i].KeyInfo.PublicKey
		next := blocks[i+1]
		if !cur.Verify(next.KeyInfo.CanonicalBytes(), next.Signature) {
			return Invalid
		}
	}
	return Trusted
}

// Proven is a value accompanied by a BLS signature under a section key,
// verifiable against a SectionProofChain.
type Proven[T identity.CanonicalPayload] struct {
	Value T
	Proof SectionSignature
	// SignedUnder names which chain key produced Proof, so a verifier can
	// check the slice is trusted before trusting Value.
	SignedUnder SectionPublicKey
}

// NewProven signs value under sectionKey and wraps it as a Proven[T].
func NewProven[T identity.CanonicalPayload](value T, sectionKey SectionSecretKey) Proven[T] {
	sig := sectionKey.Sign(value.CanonicalBytes())
	return Proven[T]{Value: value, Proof: sig, SignedUnder: sectionKey.Public()}
}

// Verify checks that Proof was produced by SignedUnder over Value, that
// chain is Trusted against trustedKeys, and that SignedUnder is itself one
// of the keys in chain's history — otherwise an attacker could sign Value
// under an arbitrary key unrelated to chain and Verify would pass as long
// as chain happened to be trusted on its own.
func (p Proven[T]) Verify(chain *SectionProofChain, trustedKeys []SectionPublicKey) bool {
	if !p.SignedUnder.Verify(p.Value.CanonicalBytes(), p.Proof) {
		return false
	}
	blocks := chain.Slice(0)
	if CheckTrust(blocks, trustedKeys) != Trusted {
		return false
	}
	signedUnder := p.SignedUnder.Bytes()
	for _, b := range blocks {
		if b.KeyInfo.PublicKey.Bytes() == signedUnder {
			return true
		}
	}
	return false
}
