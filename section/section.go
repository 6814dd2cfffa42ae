// Package section implements section state: elders, members, the BLS
// proof chain that carries a section's identity across key rotations, and
// elder selection / DKG triggering on churn.
package section

import (
	"fmt"
	"sort"

	"github.com/tolelom/xornet/xorname"
)

// Section is one node's view of its own section: the current (proven)
// elder set, the proof chain carrying that set's authority, and the
// member store backing elder selection.
type Section struct {
	EldersInfo Proven[EldersInfo]
	Chain      *SectionProofChain
	Members    *SectionMembers
	ElderSize  int // typically DefaultElderSize
}

// NewSection seeds a brand-new section (the "first=true" bootstrap case):
// a single-elder EldersInfo proven under a freshly generated genesis key.
func NewSection(prefix xorname.Prefix, founder PeerAddress, elderSize int) (*Section, SectionSecretKey, error) {
	secret, public, err := GenerateSectionKey()
	if err != nil {
		return nil, SectionSecretKey{}, fmt.Errorf("section: new section: %w", err)
	}
	info := NewEldersInfo(prefix, []PeerAddress{founder})
	proven := NewProven[EldersInfo](info, secret)
	chain := NewSectionProofChain(public)
	return &Section{
		EldersInfo: proven,
		Chain:      chain,
		Members:    NewSectionMembers(),
		ElderSize:  elderSize,
	}, secret, nil
}

// OurPrefix returns the section's prefix.
func (s *Section) OurPrefix() xorname.Prefix {
	return s.EldersInfo.Value.Prefix
}

// IsElder reports whether name currently serves as an elder.
func (s *Section) IsElder(name xorname.Name) bool {
	return s.EldersInfo.Value.Contains(name)
}

// SelectElders picks the top ElderSize members by age (ties broken by
// name-distance to the prefix's center, i.e. the all-zero-suffix name
// within the prefix), matching the "elder selection" rule in §4.3.
func (s *Section) SelectElders() []PeerAddress {
	adults := s.Members.Adults()
	center := s.OurPrefix().Name()

	sort.Slice(adults, func(i, j int) bool {
		ai, aj := adults[i], adults[j]
		if ai.Peer.Age != aj.Peer.Age {
			return ai.Peer.Age > aj.Peer.Age
		}
		return center.CmpDistance(ai.Peer.Name(), aj.Peer.Name()) < 0
	})

	n := s.ElderSize
	if n <= 0 {
		n = DefaultElderSize
	}
	if n > len(adults) {
		n = len(adults)
	}
	out := make([]PeerAddress, n)
	for i := 0; i < n; i++ {
		out[i] = PeerAddress{Name: adults[i].Peer.Name()}
	}
	return out
}

// EldersChanged reports whether candidates differs from the section's
// current elder set (by name), the trigger condition for a DKG round.
func (s *Section) EldersChanged(candidates []PeerAddress) bool {
	current := s.EldersInfo.Value.Names()
	if len(current) != len(candidates) {
		return true
	}
	currentSet := make(map[xorname.Name]struct{}, len(current))
	for _, n := range current {
		currentSet[n] = struct{}{}
	}
	for _, c := range candidates {
		if _, ok := currentSet[c.Name]; !ok {
			return true
		}
	}
	return false
}

// PromoteElders runs keygen for the new elder set and atomically replaces
// EldersInfo with a freshly proven value, extending Chain with the new
// key — the effect specified by §4.3's "elder changes trigger a DKG".
// The old chain is retained immutable (Append only ever grows it).
func (s *Section) PromoteElders(candidates []PeerAddress, keygen KeyGenerator, oldSecret SectionSecretKey) (SectionSecretKey, error) {
	n := len(candidates)
	threshold := n
	if threshold > 1 {
		threshold = (n*2)/3 + 1
	}
	newPublic, shares, err := keygen.Generate(n, threshold)
	if err != nil {
		return SectionSecretKey{}, fmt.Errorf("section: promote elders: %w", err)
	}

	keyInfo := SectionKeyInfo{PublicKey: newPublic, Version: uint64(s.Chain.Len())}
	sig := oldSecret.Sign(keyInfo.CanonicalBytes())
	if err := s.Chain.Append(newPublic, sig); err != nil {
		return SectionSecretKey{}, fmt.Errorf("section: promote elders: %w", err)
	}

	newInfo := NewEldersInfo(s.OurPrefix(), candidates)

	// Every elder would normally sign newInfo with its own share and the
	// signatures would be combined once threshold of them arrive; here the
	// local node holds every share already, so it combines them itself.
	sigShares := make(map[int]SectionSignature, len(shares))
	for _, share := range shares {
		sigShares[share.Index] = share.Secret.Sign(newInfo.CanonicalBytes())
	}
	proof, err := CombineSignatureShares(sigShares, threshold)
	if err != nil {
		return SectionSecretKey{}, fmt.Errorf("section: promote elders: %w", err)
	}
	s.EldersInfo = Proven[EldersInfo]{Value: newInfo, Proof: proof, SignedUnder: newPublic}

	var localSecret SectionSecretKey
	if len(shares) > 0 {
		localSecret = shares[0].Secret
	}
	return localSecret, nil
}
