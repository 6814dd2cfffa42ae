package section

import (
	"sort"
	"sync"

	"github.com/tolelom/xornet/xorname"
)

// NetworkMap is the node's view of the whole network: the latest known
// EldersInfo for every section other than our own, keyed by prefix.
// Lookups resolve a name to its owning prefix by scanning every known
// prefix and keeping the longest match, rather than a direct key hit,
// since prefixes of different lengths can all be candidates for a given
// name.
type NetworkMap struct {
	mu    sync.RWMutex
	byKey map[xorname.Prefix]EldersInfo
}

// NewNetworkMap creates an empty map.
func NewNetworkMap() *NetworkMap {
	return &NetworkMap{byKey: make(map[xorname.Prefix]EldersInfo)}
}

// Update records or replaces the latest EldersInfo known for info.Prefix.
func (m *NetworkMap) Update(info EldersInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byKey[info.Prefix] = info
}

// Remove discards any EldersInfo held for prefix (e.g. after a merge).
func (m *NetworkMap) Remove(prefix xorname.Prefix) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byKey, prefix)
}

// SectionFor returns the EldersInfo whose prefix covers name, preferring
// the longest (most specific) matching prefix, and whether one was found.
func (m *NetworkMap) SectionFor(name xorname.Name) (EldersInfo, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var best EldersInfo
	found := false
	for prefix, info := range m.byKey {
		if !prefix.Matches(name) {
			continue
		}
		if !found || prefix.BitCount() > best.Prefix.BitCount() {
			best, found = info, true
		}
	}
	return best, found
}

// All returns every known section's EldersInfo, sorted by prefix bit
// length then by prefix name, for deterministic iteration (e.g. by the
// routing API's neighbour_sections).
func (m *NetworkMap) All() []EldersInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]EldersInfo, 0, len(m.byKey))
	for _, info := range m.byKey {
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Prefix.BitCount() != out[j].Prefix.BitCount() {
			return out[i].Prefix.BitCount() < out[j].Prefix.BitCount()
		}
		return lessName(out[i].Prefix.Name(), out[j].Prefix.Name())
	})
	return out
}
