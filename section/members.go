package section

import (
	"fmt"
	"sync"

	"github.com/tolelom/xornet/identity"
	"github.com/tolelom/xornet/xorname"
)

// MinAge is the age at which an infant is promoted to a full adult member.
const MinAge = 4

// MinAgeCounter is the age_counter value a brand-new member starts at.
const MinAgeCounter = 1

// ageCounterPerIncrement is the age_counter value at which OnChurn bumps a
// Joined member's Age by one and resets the counter to MinAgeCounter, so
// each bump takes ageCounterPerIncrement-MinAgeCounter churn events.
const ageCounterPerIncrement = 1 << (MinAge - 1)

// MemberState is the lifecycle state of one section member.
type MemberState int

const (
	Joined MemberState = iota
	Left
	Relocated
)

func (s MemberState) String() string {
	switch s {
	case Joined:
		return "joined"
	case Left:
		return "left"
	case Relocated:
		return "relocated"
	default:
		return "unknown"
	}
}

// MemberInfo is a section's view of one member: their peer identity,
// lifecycle state, and age bookkeeping.
type MemberInfo struct {
	Peer       identity.PeerID
	State      MemberState
	AgeCounter uint32
}

// IsAdult reports whether this member has aged past the infant threshold.
func (m MemberInfo) IsAdult() bool {
	return m.Peer.Age >= MinAge
}

// SectionMembers is the section's name -> MemberInfo store: a mutex-guarded
// map plus an insertion-ordered slice of names, the same "lock, mutate,
// unlock" shape as a pending-transaction mempool generalized to pending
// membership bookkeeping.
type SectionMembers struct {
	mu      sync.RWMutex
	members map[xorname.Name]MemberInfo
	order   []xorname.Name
}

// NewSectionMembers creates an empty member store.
func NewSectionMembers() *SectionMembers {
	return &SectionMembers{members: make(map[xorname.Name]MemberInfo)}
}

// Add inserts a newly joined member. Returns an error if the name is
// already present.
func (s *SectionMembers) Add(info MemberInfo) error {
	name := info.Peer.Name()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.members[name]; exists {
		return fmt.Errorf("section: member %s already present", name)
	}
	s.members[name] = info
	s.order = append(s.order, name)
	return nil
}

// Get returns the member info for name, if present.
func (s *SectionMembers) Get(name xorname.Name) (MemberInfo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	info, ok := s.members[name]
	return info, ok
}

// SetState transitions a member (Joined -> Left, Joined -> Relocated).
func (s *SectionMembers) SetState(name xorname.Name, state MemberState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	info, ok := s.members[name]
	if !ok {
		return fmt.Errorf("section: unknown member %s", name)
	}
	info.State = state
	s.members[name] = info
	return nil
}

// Remove discards a member entirely (used once a Left/Relocated transition
// has been fully processed and the name need no longer be tracked).
func (s *SectionMembers) Remove(name xorname.Name) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.members[name]; !ok {
		return
	}
	delete(s.members, name)
	filtered := s.order[:0]
	for _, n := range s.order {
		if n != name {
			filtered = append(filtered, n)
		}
	}
	s.order = filtered
}

// Joined returns every member currently in the Joined state, in insertion
// order.
func (s *SectionMembers) Joined() []MemberInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]MemberInfo, 0, len(s.order))
	for _, name := range s.order {
		if info := s.members[name]; info.State == Joined {
			out = append(out, info)
		}
	}
	return out
}

// Adults returns every Joined member whose Age has reached MinAge.
func (s *SectionMembers) Adults() []MemberInfo {
	all := s.Joined()
	out := make([]MemberInfo, 0, len(all))
	for _, m := range all {
		if m.IsAdult() {
			out = append(out, m)
		}
	}
	return out
}

// Len returns the number of tracked members (any state).
func (s *SectionMembers) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.members)
}

// OnChurn increments the age_counter of every remaining Joined member —
// infant and adult alike, since an infant's age_counter is exactly how it
// ever crosses MinAge and gets promoted in the first place — bumping Age by
// one wherever the counter crosses ageCounterPerIncrement.
func (s *SectionMembers) OnChurn() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, name := range s.order {
		info, ok := s.members[name]
		if !ok || info.State != Joined {
			continue
		}
		info.AgeCounter++
		if info.AgeCounter >= ageCounterPerIncrement {
			info.AgeCounter = MinAgeCounter
			info.Peer.Age++
		}
		s.members[name] = info
	}
}
