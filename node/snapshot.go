package node

import (
	"sort"

	"github.com/tolelom/xornet/section"
	"github.com/tolelom/xornet/xorname"
)

// Every method here takes the state lock only long enough to copy what it
// needs, satisfying §6's "every state-reading operation returns an atomic
// snapshot" — callers never observe a section mid-mutation.

// Name returns the local node's address-space name.
func (n *Node) Name() xorname.Name {
	return n.peer.Name()
}

// OurPrefix returns the section's current prefix.
func (n *Node) OurPrefix() xorname.Prefix {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.section.OurPrefix()
}

// MatchesOurPrefix reports whether name falls within the section's prefix.
func (n *Node) MatchesOurPrefix(name xorname.Name) bool {
	return n.OurPrefix().Matches(name)
}

// IsElder reports whether name currently serves as one of the section's
// elders.
func (n *Node) IsElder(name xorname.Name) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.section.IsElder(name)
}

// OurElders returns a snapshot of the current elder set.
func (n *Node) OurElders() []section.PeerAddress {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]section.PeerAddress(nil), n.section.EldersInfo.Value.Elders...)
}

// OurEldersSortedByDistanceTo returns OurElders ordered by XOR distance to
// target, closest first — the distance-sorted variant §6 requires.
func (n *Node) OurEldersSortedByDistanceTo(target xorname.Name) []section.PeerAddress {
	elders := n.OurElders()
	sort.Slice(elders, func(i, j int) bool {
		return target.CmpDistance(elders[i].Name, elders[j].Name) < 0
	})
	return elders
}

// OurAdults returns a snapshot of every adult (non-infant, Joined) member.
func (n *Node) OurAdults() []section.MemberInfo {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.section.Members.Adults()
}

// OurAdultsSortedByDistanceTo returns OurAdults ordered by XOR distance to
// target, closest first.
func (n *Node) OurAdultsSortedByDistanceTo(target xorname.Name) []section.MemberInfo {
	adults := n.OurAdults()
	sort.Slice(adults, func(i, j int) bool {
		return target.CmpDistance(adults[i].Peer.Name(), adults[j].Peer.Name()) < 0
	})
	return adults
}

// SectionSnapshot is a point-in-time, defensively-copied view of the
// section's leadership epoch.
type SectionSnapshot struct {
	Prefix xorname.Prefix
	Elders []section.PeerAddress
}

// OurSection returns a snapshot of the local section's current EldersInfo.
func (n *Node) OurSection() SectionSnapshot {
	n.mu.Lock()
	defer n.mu.Unlock()
	return SectionSnapshot{
		Prefix: n.section.OurPrefix(),
		Elders: append([]section.PeerAddress(nil), n.section.EldersInfo.Value.Elders...),
	}
}

// NeighbourSections returns a snapshot of every other section's latest
// known EldersInfo.
func (n *Node) NeighbourSections() []section.EldersInfo {
	n.mu.Lock()
	nm := n.networkMap
	n.mu.Unlock()
	return nm.All()
}

// UpdateNeighbourSection records or replaces a neighbour section's known
// EldersInfo, e.g. on receipt of a NetworkMap update message.
func (n *Node) UpdateNeighbourSection(info section.EldersInfo) {
	n.mu.Lock()
	nm := n.networkMap
	n.mu.Unlock()
	nm.Update(info)
}

// PublicKeySet returns the section's current BLS public key, against which
// a quorum-combined signature verifies.
func (n *Node) PublicKeySet() section.SectionPublicKey {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.section.Chain.Tip()
}

// SecretKeyShare returns the local node's share of the section secret key,
// and whether it holds one at all (only elders do).
func (n *Node) SecretKeyShare() (section.SectionSecretKey, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.section.IsElder(n.peer.Name()) {
		return section.SectionSecretKey{}, false
	}
	return n.sectionSecret, true
}

// OurHistory returns the full proof-chain history of section keys.
func (n *Node) OurHistory() []section.SectionProofBlock {
	n.mu.Lock()
	chain := n.section.Chain
	n.mu.Unlock()
	return chain.Slice(0)
}

// OurConnectionInfo returns the address this node listens for incoming
// connections on.
func (n *Node) OurConnectionInfo() string {
	return n.addr
}

// OurIndex returns the local node's current age within the section — the
// value reported for §6's `our_index` in this design. It is the age itself
// (or the age the node was created with, when it is not a member), not a
// position in any ordering of members.
func (n *Node) OurIndex() uint8 {
	n.mu.Lock()
	defer n.mu.Unlock()
	if info, ok := n.section.Members.Get(n.peer.Name()); ok {
		return info.Peer.Age
	}
	return n.peer.Age
}
