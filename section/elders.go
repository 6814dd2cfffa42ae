package section

import (
	"sort"

	"github.com/tolelom/xornet/consensus"
	"github.com/tolelom/xornet/xorname"
)

// DefaultElderSize is the typical number of elders serving a section.
const DefaultElderSize = 7

// PeerAddress pairs a peer's address-space name with its current network
// address, the unit EldersInfo's elder map carries per entry.
type PeerAddress struct {
	Name xorname.Name
	Addr string
}

// EldersInfo is the leadership set of a section for one epoch: the
// section's prefix plus its ordered elder map.
type EldersInfo struct {
	Prefix xorname.Prefix
	Elders []PeerAddress // ordered by Name, see NewEldersInfo
}

// NewEldersInfo builds an EldersInfo with elders sorted by name, so two
// EldersInfo built from the same set always compare equal and hash
// identically regardless of insertion order.
func NewEldersInfo(prefix xorname.Prefix, elders []PeerAddress) EldersInfo {
	sorted := append([]PeerAddress(nil), elders...)
	sort.Slice(sorted, func(i, j int) bool {
		return lessName(sorted[i].Name, sorted[j].Name)
	})
	return EldersInfo{Prefix: prefix, Elders: sorted}
}

func lessName(a, b xorname.Name) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// Len returns the number of elders.
func (e EldersInfo) Len() int {
	return len(e.Elders)
}

// QuorumCount returns the supermajority threshold for this elder set.
func (e EldersInfo) QuorumCount() int {
	return consensus.QuorumCount(len(e.Elders))
}

// Contains reports whether name is one of the elders.
func (e EldersInfo) Contains(name xorname.Name) bool {
	for _, el := range e.Elders {
		if el.Name == name {
			return true
		}
	}
	return false
}

// Names returns the elder set as a list of names; used wherever a caller
// needs just the names (distance sort, membership check against Name
// rather than a cryptographic key).
func (e EldersInfo) Names() []xorname.Name {
	out := make([]xorname.Name, len(e.Elders))
	for i, el := range e.Elders {
		out[i] = el.Name
	}
	return out
}

// CanonicalBytes implements identity.CanonicalPayload so an EldersInfo can
// be voted on directly (e.g. during elder-change consensus) by signing the
// hash of its canonical encoding.
func (e EldersInfo) CanonicalBytes() []byte {
	buf := make([]byte, 0, e.Prefix.BitCount()/8+1+len(e.Elders)*(xorname.Len+32))
	buf = append(buf, byte(e.Prefix.BitCount()))
	pn := e.Prefix.Name()
	buf = append(buf, pn[:]...)
	for _, el := range e.Elders {
		buf = append(buf, el.Name[:]...)
		buf = append(buf, []byte(el.Addr)...)
		buf = append(buf, 0) // separator, since Addr is variable-length
	}
	return buf
}
