package section

import (
	"crypto/ed25519"
	"testing"

	"github.com/tolelom/xornet/identity"
)

func newMember(t *testing.T, age uint8) MemberInfo {
	t.Helper()
	pub, _, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	return MemberInfo{Peer: identity.NewPeerID(age, pub), State: Joined, AgeCounter: MinAgeCounter}
}

func TestSectionMembersAddGetRemove(t *testing.T) {
	members := NewSectionMembers()
	m := newMember(t, MinAge)
	if err := members.Add(m); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := members.Add(m); err == nil {
		t.Fatalf("expected error re-adding the same member")
	}
	got, ok := members.Get(m.Peer.Name())
	if !ok || !got.Peer.Equal(m.Peer) {
		t.Fatalf("Get returned wrong member")
	}
	members.Remove(m.Peer.Name())
	if _, ok := members.Get(m.Peer.Name()); ok {
		t.Fatalf("member should be gone after Remove")
	}
	if members.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", members.Len())
	}
}

func TestSectionMembersAdultsFiltersInfants(t *testing.T) {
	members := NewSectionMembers()
	infant := newMember(t, MinAge-1)
	adult := newMember(t, MinAge)
	if err := members.Add(infant); err != nil {
		t.Fatalf("Add infant: %v", err)
	}
	if err := members.Add(adult); err != nil {
		t.Fatalf("Add adult: %v", err)
	}
	adults := members.Adults()
	if len(adults) != 1 || !adults[0].Peer.Equal(adult.Peer) {
		t.Fatalf("Adults() = %v, want only the adult member", adults)
	}
}

func TestSectionMembersOnChurnAgesAdults(t *testing.T) {
	members := NewSectionMembers()
	adult := newMember(t, MinAge)
	if err := members.Add(adult); err != nil {
		t.Fatalf("Add: %v", err)
	}
	for i := 0; i < ageCounterPerIncrement; i++ {
		members.OnChurn()
	}
	got, _ := members.Get(adult.Peer.Name())
	if got.Peer.Age != MinAge+1 {
		t.Fatalf("Age = %d, want %d", got.Peer.Age, MinAge+1)
	}
}

func TestSectionMembersOnChurnPromotesInfantToAdult(t *testing.T) {
	members := NewSectionMembers()
	infant := newMember(t, 0)
	if err := members.Add(infant); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if members.Len() != 1 || len(members.Adults()) != 0 {
		t.Fatalf("a fresh infant must not already count as an adult")
	}

	// Enough churn events for Age to climb from 0 to MinAge: each time
	// age_counter reaches ageCounterPerIncrement, Age goes up by one.
	for i := 0; i < MinAge*ageCounterPerIncrement; i++ {
		members.OnChurn()
	}

	got, ok := members.Get(infant.Peer.Name())
	if !ok {
		t.Fatalf("member should still be tracked")
	}
	if got.Peer.Age < MinAge {
		t.Fatalf("Age = %d after repeated churn, want >= %d (infant must be able to reach adulthood)", got.Peer.Age, MinAge)
	}
	if len(members.Adults()) != 1 {
		t.Fatalf("promoted member should now be selectable as an adult")
	}
}

func TestSectionMembersSetState(t *testing.T) {
	members := NewSectionMembers()
	m := newMember(t, MinAge)
	if err := members.Add(m); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := members.SetState(m.Peer.Name(), Left); err != nil {
		t.Fatalf("SetState: %v", err)
	}
	if len(members.Joined()) != 0 {
		t.Fatalf("Joined() should be empty once member has left")
	}
	var unknown identity.PeerID
	if err := members.SetState(unknown.Name(), Left); err == nil {
		t.Fatalf("expected error transitioning an unknown member")
	}
}
