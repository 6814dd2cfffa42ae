package node

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/tolelom/xornet/comm"
	"github.com/tolelom/xornet/consensus"
	"github.com/tolelom/xornet/events"
	"github.com/tolelom/xornet/identity"
	"github.com/tolelom/xornet/relocation"
	"github.com/tolelom/xornet/section"
	"github.com/tolelom/xornet/xerrors"
	"github.com/tolelom/xornet/xorname"
)

// FactKind names what a VotePayload's hash commits to.
type FactKind int

const (
	FactJoin FactKind = iota
	FactLeave
	FactRelocate
)

// Fact is the thing a round of voting is establishing: that a particular
// peer joined, left, or should be relocated. Facts are reduced to a Hash256
// before being voted on (see identity.Hash256's doc comment), and the node
// tracks the mapping locally so it knows what to apply once a block
// referencing that hash reaches quorum.
type Fact struct {
	Kind FactKind
	Peer identity.PeerID
}

func (f Fact) canonicalBytes() []byte {
	out := make([]byte, 0, len(f.Peer.PublicKey)+2)
	out = append(out, byte(f.Kind))
	out = append(out, f.Peer.PublicKey...)
	out = append(out, f.Peer.Age)
	return out
}

// Hash is the Hash256 this fact is voted on under.
func (f Fact) Hash() identity.Hash256 {
	return identity.HashBytes(f.canonicalBytes())
}

// votePayload is the wire encoding of a Vote[identity.Hash256] carried by a
// VariantVote message.
type votePayload struct {
	Hash      identity.Hash256 `json:"hash"`
	Signature []byte           `json:"signature"`
}

// Node is the routing core's executor: section state, the communication
// fabric, and the pending-block accumulator, all guarded by a single lock
// per §5's shared-resource policy. Handlers hold mu only for the in-memory
// state mutation and release it before any network I/O (comm sends,
// scheduling) — the same discipline §4.6 specifies for the asynchronous
// lock, adapted to Go's goroutine-per-command model instead of cooperative
// tasks sharing one thread.
type Node struct {
	keypair ed25519.PrivateKey
	comm    *comm.Comm
	emitter *events.Emitter
	stream  *events.Stream

	addr string

	mu            sync.Mutex
	peer          identity.PeerID
	section       *section.Section
	sectionSecret section.SectionSecretKey
	networkMap    *section.NetworkMap
	pendingBlocks map[identity.Hash256]*consensus.Block
	pendingFacts  map[identity.Hash256]Fact
	timeouts      map[uint64]*time.Timer
	nextToken     uint64

	commands chan Command
}

// New creates a Node seeded with sec (typically from section.NewSection for
// a first=true bootstrap, or received during join for everyone else).
func New(keypair ed25519.PrivateKey, peer identity.PeerID, sec *section.Section, sectionSecret section.SectionSecretKey, transport *comm.Comm, addr string) (*Node, *events.Stream) {
	stream := events.NewStream()
	emitter := events.NewEmitter()
	for _, typ := range []events.EventType{
		events.Connected, events.PromotedToElder, events.MemberJoined,
		events.MemberLeft, events.MessageReceived, events.RelocationStarted,
	} {
		emitter.Subscribe(typ, stream.Push)
	}

	n := &Node{
		keypair:       keypair,
		comm:          transport,
		emitter:       emitter,
		stream:        stream,
		addr:          addr,
		peer:          peer,
		section:       sec,
		sectionSecret: sectionSecret,
		networkMap:    section.NewNetworkMap(),
		pendingBlocks: make(map[identity.Hash256]*consensus.Block),
		pendingFacts:  make(map[identity.Hash256]Fact),
		timeouts:      make(map[uint64]*time.Timer),
		commands:      make(chan Command, 256),
	}
	emitter.Emit(events.Event{Type: events.Connected, Name: peer.Name()})
	return n, stream
}

// EventStream returns the stream events are pushed to.
func (n *Node) EventStream() *events.Stream {
	return n.stream
}

// Submit enqueues cmd for processing by Run. Safe to call from any
// goroutine.
func (n *Node) Submit(cmd Command) {
	n.commands <- cmd
}

// Run drives the command dispatch loop until ctx is canceled. Intended to
// be the one goroutine that ever mutates Node state, so every command
// observes a consistent view without needing its own locking discipline
// beyond Node.mu for state shared with other accessors (e.g. the routing
// handle's read-only snapshot operations).
func (n *Node) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-n.commands:
			n.dispatch(ctx, cmd)
		}
	}
}

func (n *Node) dispatch(ctx context.Context, cmd Command) {
	switch c := cmd.(type) {
	case HandleMessage:
		n.handleMessage(c)
	case SendUserMessage:
		n.handleSendUserMessage(c)
	case SendMessage:
		n.handleSendMessage(c)
	case ScheduleTimeout:
		n.handleScheduleTimeout(ctx, c)
	case HandleTimeout:
		// Nothing intrinsic to do with a bare timeout; handlers that need
		// one (e.g. bootstrap retry) submit their own follow-up commands
		// from here. Present so the dispatch table matches §4.6's Command
		// set exactly.
		_ = c
	default:
		log.Printf("[node] unknown command type %T", cmd)
	}
}

func (n *Node) handleMessage(c HandleMessage) {
	if !n.trustMessage(c.Msg) {
		log.Printf("[node] dropping message from %s: %v", c.From, xerrors.Untrusted)
		return
	}

	switch c.Msg.Variant {
	case VariantUserMessage:
		n.emitter.Emit(events.Event{Type: events.MessageReceived, Name: c.Msg.Source, Message: c.Msg.Payload})

	case VariantVote:
		n.handleVoteMessage(c.Msg)

	case VariantJoinRequest:
		n.handleJoinRequest(c.Msg)

	case VariantRelocate:
		// A relocating node proving its new identity; application-level
		// verification of the RelocatePayload happens above this layer
		// once its new connection is accepted.

	default:
		log.Printf("[node] message from %s: unknown variant %q", c.From, c.Msg.Variant)
	}
}

// trustMessage checks msg.Proof — the source section's proof chain slice —
// against the keys this node already knows, per §7's rule that a message
// is accepted only once its source section's key is established by
// quorum-signed evidence traceable to a known key, never by the sender's
// say-so alone. A join request carries no section proof of its own (the
// prospective member isn't yet part of any chain we'd recognize), so it is
// the one variant let through unconditionally; everything else is dropped
// untrusted rather than processed on faith.
func (n *Node) trustMessage(msg Message) bool {
	if msg.Variant == VariantJoinRequest {
		return true
	}
	n.mu.Lock()
	trustedKeys := []section.SectionPublicKey{n.section.Chain.Tip()}
	n.mu.Unlock()
	return section.CheckTrust(msg.Proof, trustedKeys) == section.Trusted
}

func (n *Node) handleVoteMessage(msg Message) {
	var payload votePayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return
	}

	n.mu.Lock()
	memberInfo, ok := n.section.Members.Get(msg.Source)
	if !ok {
		n.mu.Unlock()
		return
	}
	vote := identity.Vote[identity.Hash256]{Payload: payload.Hash, Signature: payload.Signature}
	proof, err := vote.IntoProof(memberInfo.Peer)
	if err != nil {
		n.mu.Unlock()
		return
	}

	block, exists := n.pendingBlocks[payload.Hash]
	if !exists {
		newBlock, err := consensus.New(vote, memberInfo.Peer.PublicKey, memberInfo.Peer.Age)
		if err != nil {
			n.mu.Unlock()
			return
		}
		n.pendingBlocks[payload.Hash] = newBlock
		block = newBlock
	} else if err := block.AddProof(proof); err != nil {
		n.mu.Unlock()
		return
	}

	elderKeys := n.elderPublicKeysLocked()
	reached := block.IsQuorumValid(elderKeys)
	fact, haveFact := n.pendingFacts[payload.Hash]
	if reached {
		delete(n.pendingBlocks, payload.Hash)
		delete(n.pendingFacts, payload.Hash)
	}
	n.mu.Unlock()

	if reached && haveFact {
		n.applyFact(fact)
	}
}

// elderPublicKeysLocked resolves the current elder set's names to their
// full public keys via the member store (EldersInfo itself carries only
// names and addresses). Caller must hold n.mu.
func (n *Node) elderPublicKeysLocked() [][]byte {
	elders := n.section.EldersInfo.Value.Elders
	out := make([][]byte, 0, len(elders))
	for _, elder := range elders {
		if info, ok := n.section.Members.Get(elder.Name); ok {
			out = append(out, info.Peer.PublicKey)
		}
	}
	return out
}

func (n *Node) applyFact(fact Fact) {
	switch fact.Kind {
	case FactJoin:
		n.mu.Lock()
		_ = n.section.Members.Add(section.MemberInfo{Peer: fact.Peer, State: section.Joined, AgeCounter: section.MinAgeCounter})
		n.section.Members.OnChurn()
		n.mu.Unlock()
		n.emitter.Emit(events.Event{Type: events.MemberJoined, Name: fact.Peer.Name()})
		n.checkRelocation(fact.Peer.Name())

	case FactLeave:
		n.mu.Lock()
		_ = n.section.Members.SetState(fact.Peer.Name(), section.Left)
		n.section.Members.OnChurn()
		n.mu.Unlock()
		n.emitter.Emit(events.Event{Type: events.MemberLeft, Name: fact.Peer.Name()})
		n.checkRelocation(fact.Peer.Name())

	case FactRelocate:
		n.mu.Lock()
		_ = n.section.Members.SetState(fact.Peer.Name(), section.Relocated)
		n.mu.Unlock()
		n.emitter.Emit(events.Event{Type: events.RelocationStarted, Name: fact.Peer.Name()})
	}
}

// checkRelocation runs the relocation check against every adult member
// following a churn event named by churnName, emitting RelocationStarted
// for at most one selected candidate per §4.5's "relocate at most one
// elder per churn event" rule (generalized here to any member).
func (n *Node) checkRelocation(churnName xorname.Name) {
	n.mu.Lock()
	churnSig := n.sectionSecret.Sign(churnName[:])
	adults := n.section.Members.Adults()
	n.mu.Unlock()

	var candidate *relocation.Candidate
	for _, m := range adults {
		if !relocation.Check(m.Peer.Age, churnSig) {
			continue
		}
		sig := n.sectionSecret.Sign(m.Peer.PublicKey)
		sigBytes := sig.Bytes()
		c := relocation.Candidate{Member: m.Peer, Proof: sigBytes[:]}
		if candidate == nil {
			candidate = &c
		} else {
			selected := relocation.Select(*candidate, c)
			candidate = &selected
		}
	}
	if candidate == nil {
		return
	}

	destination := relocation.ComputeDestination(candidate.Member.Name(), churnName)
	fact := Fact{Kind: FactRelocate, Peer: candidate.Member}
	n.mu.Lock()
	n.pendingFacts[fact.Hash()] = fact
	_ = n.section.Members.SetState(fact.Peer.Name(), section.Relocated)
	n.mu.Unlock()
	n.emitter.Emit(events.Event{Type: events.RelocationStarted, Name: fact.Peer.Name(), Destination: destination})
}

func (n *Node) handleJoinRequest(msg Message) {
	var req struct {
		Age       uint8  `json:"age"`
		PublicKey []byte `json:"public_key"`
	}
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		return
	}
	peer := identity.NewPeerID(req.Age, req.PublicKey)
	fact := Fact{Kind: FactJoin, Peer: peer}

	n.mu.Lock()
	n.pendingFacts[fact.Hash()] = fact
	vote := identity.NewVote[identity.Hash256](n.keypair, fact.Hash())
	n.mu.Unlock()

	payload, err := json.Marshal(votePayload{Hash: fact.Hash(), Signature: vote.Signature})
	if err != nil {
		return
	}
	n.mu.Lock()
	proof := n.section.Chain.Slice(0)
	n.mu.Unlock()
	out := Message{Variant: VariantVote, Source: n.peer.Name(), Destination: peer.Name(), Payload: payload, Proof: proof}
	n.Submit(SendMessage{Recipients: []string{msg.Source.String()}, DeliveryGroupSize: 1, Bytes: mustEncode(out)})
}

func mustEncode(msg Message) []byte {
	b, err := msg.Encode()
	if err != nil {
		// Message contains only values this package produced; a marshal
		// failure here means a programming error, not bad input.
		panic(fmt.Sprintf("node: encode outgoing message: %v", err))
	}
	return b
}

func (n *Node) handleSendUserMessage(c SendUserMessage) {
	n.mu.Lock()
	proof := n.section.Chain.Slice(0)
	n.mu.Unlock()
	out := Message{Variant: VariantUserMessage, Source: n.peer.Name(), Payload: c.Payload, Proof: proof}
	n.Submit(SendMessage{Recipients: []string{string(c.Destination)}, DeliveryGroupSize: 1, Bytes: mustEncode(out)})
}

func (n *Node) handleSendMessage(c SendMessage) {
	// Dispatched as its own goroutine: Comm.SendMessageToTargets blocks on
	// network I/O, which must never happen while n.mu (or the dispatch
	// loop itself) is held.
	go n.comm.SendMessageToTargets(c.Recipients, c.DeliveryGroupSize, c.Bytes)
}

func (n *Node) handleScheduleTimeout(ctx context.Context, c ScheduleTimeout) {
	timer := time.AfterFunc(c.Duration, func() {
		select {
		case <-ctx.Done():
		default:
			n.Submit(HandleTimeout{Token: c.Token})
		}
	})
	n.mu.Lock()
	n.timeouts[c.Token] = timer
	n.mu.Unlock()
}

// NextToken allocates a fresh timeout token for a caller scheduling a
// ScheduleTimeout command.
func (n *Node) NextToken() uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.nextToken++
	return n.nextToken
}
