package node

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"testing"
	"time"

	"github.com/tolelom/xornet/comm"
	"github.com/tolelom/xornet/events"
	"github.com/tolelom/xornet/identity"
	"github.com/tolelom/xornet/section"
	"github.com/tolelom/xornet/xorname"
)

func newTestNode(t *testing.T) (*Node, identity.PeerID, ed25519.PrivateKey) {
	t.Helper()
	founderPub, founderPriv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	founder := identity.NewPeerID(section.MinAge, founderPub)
	prefix := xorname.NewPrefix(xorname.Name{}, 0)

	sec, secret, err := section.NewSection(prefix, section.PeerAddress{Name: founder.Name(), Addr: "127.0.0.1:9001"}, 1)
	if err != nil {
		t.Fatalf("NewSection: %v", err)
	}
	if err := sec.Members.Add(section.MemberInfo{Peer: founder, State: section.Joined, AgeCounter: section.MinAgeCounter}); err != nil {
		t.Fatalf("Members.Add: %v", err)
	}

	transport, err := comm.New(nil)
	if err != nil {
		t.Fatalf("comm.New: %v", err)
	}

	n, _ := New(founderPriv, founder, sec, secret, transport, "127.0.0.1:9001")
	return n, founder, founderPriv
}

func TestNodeConnectedEventOnCreation(t *testing.T) {
	n, founder, _ := newTestNode(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	ev, ok := n.stream.Next(ctx)
	if !ok {
		t.Fatalf("expected a Connected event")
	}
	if ev.Type != events.Connected || ev.Name != founder.Name() {
		t.Fatalf("got %+v, want Connected for %v", ev, founder.Name())
	}
}

func TestHandleVoteMessageReachesQuorumAndAppliesFact(t *testing.T) {
	n, founder, founderPriv := newTestNode(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	// Drain the Connected event from node creation.
	if _, ok := n.stream.Next(ctx); !ok {
		t.Fatalf("expected Connected event")
	}

	joinerPub, _, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	joiner := identity.NewPeerID(0, joinerPub)
	fact := Fact{Kind: FactJoin, Peer: joiner}

	n.mu.Lock()
	n.pendingFacts[fact.Hash()] = fact
	n.mu.Unlock()

	vote := identity.NewVote[identity.Hash256](founderPriv, fact.Hash())
	payload, err := json.Marshal(votePayload{Hash: fact.Hash(), Signature: vote.Signature})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	n.mu.Lock()
	proof := n.section.Chain.Slice(0)
	n.mu.Unlock()
	msg := Message{Variant: VariantVote, Source: founder.Name(), Payload: payload, Proof: proof}
	n.handleMessage(HandleMessage{Msg: msg})

	ev, ok := n.stream.Next(ctx)
	if !ok {
		t.Fatalf("expected a MemberJoined event")
	}
	if ev.Name != joiner.Name() {
		t.Fatalf("event Name = %v, want %v", ev.Name, joiner.Name())
	}

	n.mu.Lock()
	_, isMember := n.section.Members.Get(joiner.Name())
	n.mu.Unlock()
	if !isMember {
		t.Fatalf("joiner should now be a section member")
	}
}

func TestHandleMessageDropsVoteWithUntrustedProof(t *testing.T) {
	n, founder, founderPriv := newTestNode(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, ok := n.stream.Next(ctx); !ok {
		t.Fatalf("expected Connected event")
	}

	joinerPub, _, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	joiner := identity.NewPeerID(0, joinerPub)
	fact := Fact{Kind: FactJoin, Peer: joiner}

	n.mu.Lock()
	n.pendingFacts[fact.Hash()] = fact
	n.mu.Unlock()

	vote := identity.NewVote[identity.Hash256](founderPriv, fact.Hash())
	payload, err := json.Marshal(votePayload{Hash: fact.Hash(), Signature: vote.Signature})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	// No Proof at all: trustMessage must reject this rather than process it
	// on faith, per the source-section-key check in §7.
	msg := Message{Variant: VariantVote, Source: founder.Name(), Payload: payload}
	n.handleMessage(HandleMessage{Msg: msg})

	drainCtx, drainCancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer drainCancel()
	if _, ok := n.stream.Next(drainCtx); ok {
		t.Fatalf("expected no event: untrusted vote message should have been dropped")
	}

	n.mu.Lock()
	_, isMember := n.section.Members.Get(joiner.Name())
	n.mu.Unlock()
	if isMember {
		t.Fatalf("joiner should not have been admitted via an untrusted message")
	}
}

func TestMessageEncodeDecodeRoundTrip(t *testing.T) {
	msg := Message{
		Variant:     VariantUserMessage,
		Source:      xorname.Hash([]byte("src")),
		Destination: xorname.Hash([]byte("dst")),
		Payload:     []byte("hello"),
	}
	b, err := msg.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := DecodeMessage(b)
	if err != nil {
		t.Fatalf("DecodeMessage: %v", err)
	}
	if decoded.Source != msg.Source || string(decoded.Payload) != string(msg.Payload) {
		t.Fatalf("decoded message mismatch: %+v", decoded)
	}
}

func TestFactHashIsDeterministic(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	peer := identity.NewPeerID(3, pub)
	f1 := Fact{Kind: FactJoin, Peer: peer}
	f2 := Fact{Kind: FactJoin, Peer: peer}
	if f1.Hash() != f2.Hash() {
		t.Fatalf("Hash should be deterministic for identical facts")
	}
	f3 := Fact{Kind: FactLeave, Peer: peer}
	if f1.Hash() == f3.Hash() {
		t.Fatalf("different fact kinds should hash differently")
	}
}

func TestScheduleAndHandleTimeout(t *testing.T) {
	n, _, _ := newTestNode(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go n.Run(ctx)

	token := n.NextToken()
	n.Submit(ScheduleTimeout{Token: token, Duration: 10 * time.Millisecond})

	time.Sleep(100 * time.Millisecond)
	n.mu.Lock()
	_, scheduled := n.timeouts[token]
	n.mu.Unlock()
	if !scheduled {
		t.Fatalf("timer should be recorded after ScheduleTimeout")
	}
}
