// Package consensus accumulates peer proofs for a payload into a
// quorum-valid block: the unit of consensus for a single fact (a peer
// joined, left, or is being relocated).
package consensus

import (
	"fmt"

	"github.com/tolelom/xornet/identity"
	"github.com/tolelom/xornet/xerrors"
)

// QuorumCount returns the supermajority threshold over a leader set of size
// n: floor(n*2/3) + 1. Lives here (rather than in package section) so
// section can import consensus for elder-set math without an import cycle.
func QuorumCount(n int) int {
	return (n*2)/3 + 1
}

// Block is consensus over a single payload hash: the set of peer proofs
// attesting to it. Proofs have set-equality by peer key, so a block is
// safe for single-goroutine mutation only (per spec, not shared).
type Block struct {
	payload identity.Hash256
	proofs  map[string]identity.Proof // keyed by raw pubkey bytes, for set-by-key semantics
}

func keyOf(pub []byte) string {
	return string(pub)
}

// New creates a Block seeded with a proof derived from vote, which must
// validate against the peer identified by (age, pub).
func New(vote identity.Vote[identity.Hash256], pub []byte, age uint8) (*Block, error) {
	peer := identity.NewPeerID(age, pub)
	proof, err := vote.IntoProof(peer)
	if err != nil {
		return nil, fmt.Errorf("consensus: new block: %w", err)
	}
	b := &Block{
		payload: vote.Payload,
		proofs:  make(map[string]identity.Proof, 1),
	}
	b.proofs[keyOf(peer.PublicKey)] = proof
	return b, nil
}

// Payload returns the hash this block is consensus over.
func (b *Block) Payload() identity.Hash256 {
	return b.payload
}

// AddProof inserts proof if its signature verifies against the block's
// payload and no proof from that key is already present.
func (b *Block) AddProof(proof identity.Proof) error {
	if !proof.Validate(b.payload) {
		return fmt.Errorf("consensus: add proof: %w", xerrors.FailedSignature)
	}
	k := keyOf(proof.PeerID.PublicKey)
	if _, exists := b.proofs[k]; exists {
		return fmt.Errorf("consensus: add proof: duplicate proof for peer %s: %w", proof.PeerID.Name(), xerrors.FailedSignature)
	}
	b.proofs[k] = proof
	return nil
}

// RemoveProof discards any proof from pub, e.g. because the peer was found
// to be invalid.
func (b *Block) RemoveProof(pub []byte) {
	delete(b.proofs, keyOf(pub))
}

// PruneProofsExcept retains only the proofs whose key appears in keys. This
// is not destructive-on-failure: pruning a block down to zero proofs is a
// valid outcome, meaning the block currently has no authority.
func (b *Block) PruneProofsExcept(keys [][]byte) {
	allow := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		allow[keyOf(k)] = struct{}{}
	}
	for k := range b.proofs {
		if _, ok := allow[k]; !ok {
			delete(b.proofs, k)
		}
	}
}

// TotalProofs returns the current number of proofs in the block.
func (b *Block) TotalProofs() int {
	return len(b.proofs)
}

// TotalProofsAge sums the age of every peer that has contributed a proof.
// Ages are not deduplicated beyond the proof-set's own key uniqueness.
func (b *Block) TotalProofsAge() int {
	total := 0
	for _, p := range b.proofs {
		total += int(p.PeerID.Age)
	}
	return total
}

// Proofs returns a defensive copy of the current proof set.
func (b *Block) Proofs() []identity.Proof {
	out := make([]identity.Proof, 0, len(b.proofs))
	for _, p := range b.proofs {
		out = append(out, p)
	}
	return out
}

// IsQuorumValid reports whether the proofs whose keys appear in elders
// reach QuorumCount(len(elders)).
func (b *Block) IsQuorumValid(elders [][]byte) bool {
	present := 0
	allow := make(map[string]struct{}, len(elders))
	for _, k := range elders {
		allow[keyOf(k)] = struct{}{}
	}
	for k := range b.proofs {
		if _, ok := allow[k]; ok {
			present++
		}
	}
	return present >= QuorumCount(len(elders))
}

// IsFullConsensus reports whether every member of elders has contributed a
// proof to this block.
func (b *Block) IsFullConsensus(elders [][]byte) bool {
	for _, k := range elders {
		if _, ok := b.proofs[keyOf(k)]; !ok {
			return false
		}
	}
	return true
}

// Union merges other's proofs into b, skipping any key b already has.
// Two independent quorum-valid blocks over the same payload may be unioned
// into a stronger block — this is only meaningful when both blocks carry
// the same payload hash and a consistent view of the elder set.
func (b *Block) Union(other *Block) error {
	if b.payload != other.payload {
		return fmt.Errorf("consensus: union: payload mismatch")
	}
	for k, p := range other.proofs {
		if _, exists := b.proofs[k]; !exists {
			b.proofs[k] = p
		}
	}
	return nil
}
