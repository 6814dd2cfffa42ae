package section

import (
	"testing"

	"github.com/tolelom/xornet/xorname"
)

func TestNewSectionBootstrap(t *testing.T) {
	founder := peerAddr(1, "127.0.0.1:9001")
	prefix := xorname.NewPrefix(xorname.Name{}, 0)

	sec, secret, err := NewSection(prefix, founder, DefaultElderSize)
	if err != nil {
		t.Fatalf("NewSection: %v", err)
	}
	if !sec.IsElder(founder.Name) {
		t.Fatalf("founder should be an elder of a freshly-seeded section")
	}
	if sec.Chain.Len() != 1 {
		t.Fatalf("Chain.Len() = %d, want 1", sec.Chain.Len())
	}
	if !sec.EldersInfo.Verify(sec.Chain, []SectionPublicKey{sec.Chain.Tip()}) {
		t.Fatalf("genesis EldersInfo should verify against the genesis chain key")
	}
	_ = secret
}

func TestSectionSelectEldersOrdersByAgeThenDistance(t *testing.T) {
	founder := peerAddr(1, "127.0.0.1:9001")
	prefix := xorname.NewPrefix(xorname.Name{}, 0)
	sec, _, err := NewSection(prefix, founder, 2)
	if err != nil {
		t.Fatalf("NewSection: %v", err)
	}

	old := newMember(t, MinAge+2)
	young := newMember(t, MinAge)
	for _, m := range []MemberInfo{old, young} {
		if err := sec.Members.Add(m); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}

	selected := sec.SelectElders()
	if len(selected) != 2 {
		t.Fatalf("len(selected) = %d, want 2", len(selected))
	}
	if selected[0].Name != old.Peer.Name() {
		t.Fatalf("the older member should be selected first")
	}
}

func TestSectionEldersChangedAndPromote(t *testing.T) {
	founder := peerAddr(1, "127.0.0.1:9001")
	prefix := xorname.NewPrefix(xorname.Name{}, 0)
	sec, secret, err := NewSection(prefix, founder, 1)
	if err != nil {
		t.Fatalf("NewSection: %v", err)
	}

	same := sec.EldersInfo.Value.Elders
	if sec.EldersChanged(same) {
		t.Fatalf("EldersChanged should be false when candidates match the current set")
	}

	newElder := peerAddr(2, "127.0.0.1:9002")
	if !sec.EldersChanged([]PeerAddress{newElder}) {
		t.Fatalf("EldersChanged should be true for a different elder set")
	}

	newSecret, err := sec.PromoteElders([]PeerAddress{newElder}, LocalKeyGen{}, secret)
	if err != nil {
		t.Fatalf("PromoteElders: %v", err)
	}
	if sec.Chain.Len() != 2 {
		t.Fatalf("Chain.Len() = %d, want 2 after promotion", sec.Chain.Len())
	}
	if !sec.IsElder(newElder.Name) {
		t.Fatalf("new elder should be recognized after promotion")
	}
	if !sec.EldersInfo.Verify(sec.Chain, []SectionPublicKey{sec.Chain.Tip()}) {
		t.Fatalf("promoted EldersInfo should verify against the new chain tip")
	}
	_ = newSecret
}
