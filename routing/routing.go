// Package routing is the external API surface (§6): a handle onto a running
// node plus the event stream it emits to the embedding application. Every
// state-reading method takes its snapshot under the node's lock and returns
// a copy, so a caller never observes a torn read of section state.
package routing

import (
	"context"
	"crypto/ed25519"
	"fmt"

	"github.com/tolelom/xornet/comm"
	"github.com/tolelom/xornet/config"
	"github.com/tolelom/xornet/events"
	"github.com/tolelom/xornet/identity"
	"github.com/tolelom/xornet/node"
	"github.com/tolelom/xornet/section"
	"github.com/tolelom/xornet/xorname"
)

// Routing is the handle returned to the application embedding a node.
type Routing struct {
	n        *node.Node
	keypair  ed25519.PrivateKey
	listener *comm.Listener
}

// New starts a node from cfg, returning a handle and its event stream. If
// cfg.First is true, the node seeds a brand-new network as its sole elder.
// Joining an existing network is not supported: when cfg.First is false,
// New returns an error and no node.
func New(cfg config.Config) (*Routing, *events.Stream, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("routing: new: %w", err)
	}

	transport, err := comm.New(cfg.TLSConfig())
	if err != nil {
		return nil, nil, fmt.Errorf("routing: new: %w", err)
	}

	peer := identity.NewPeerID(0, cfg.Keypair.Public().(ed25519.PublicKey))

	var sec *section.Section
	var secret section.SectionSecretKey
	if cfg.First {
		prefix := xorname.NewPrefix(xorname.Name{}, 0)
		founder := section.PeerAddress{Name: peer.Name(), Addr: cfg.Transport.ListenAddr}
		sec, secret, err = section.NewSection(prefix, founder, cfg.NetworkParams.ElderSize)
		if err != nil {
			return nil, nil, fmt.Errorf("routing: new: %w", err)
		}
		if err := sec.Members.Add(section.MemberInfo{Peer: peer, State: section.Joined, AgeCounter: section.MinAgeCounter}); err != nil {
			return nil, nil, fmt.Errorf("routing: new: %w", err)
		}
	} else {
		return nil, nil, fmt.Errorf("routing: new: bootstrap join is not implemented by this handle (requires an external bootstrap contact)")
	}

	listener, err := comm.Listen(cfg.Transport.ListenAddr, cfg.TLSConfig())
	if err != nil {
		return nil, nil, fmt.Errorf("routing: new: %w", err)
	}

	n, stream := node.New(cfg.Keypair, peer, sec, secret, transport, cfg.Transport.ListenAddr)
	return &Routing{n: n, keypair: cfg.Keypair, listener: listener}, stream, nil
}

// Run drives the underlying node's command dispatch loop and its inbound
// connection acceptor until ctx ends.
func (r *Routing) Run(ctx context.Context) {
	go r.n.Serve(ctx, r.listener)
	r.n.Run(ctx)
}

// Close stops accepting new connections. Safe to call even if Run was
// never started.
func (r *Routing) Close() {
	r.listener.Close()
}

// Name returns the local node's address-space name.
func (r *Routing) Name() xorname.Name {
	return identity.NewPeerID(0, r.keypair.Public().(ed25519.PublicKey)).Name()
}

// PublicKey returns the local node's long-lived public key.
func (r *Routing) PublicKey() ed25519.PublicKey {
	return r.keypair.Public().(ed25519.PublicKey)
}

// Sign signs msg with the local node's long-lived key.
func (r *Routing) Sign(msg []byte) []byte {
	return ed25519.Sign(r.keypair, msg)
}

// Verify checks a signature produced by PublicKey over msg.
func (r *Routing) Verify(msg, sig []byte) bool {
	return ed25519.Verify(r.PublicKey(), msg, sig)
}

// SendUserMessage submits an application payload for delivery to dst.
func (r *Routing) SendUserMessage(dst []byte, payload []byte) {
	r.n.Submit(node.SendUserMessage{Destination: dst, Payload: payload})
}

// SendMessageToClient submits a raw payload to a single client address
// outside the section membership (e.g. an application-layer peer). It uses
// the same send path as SendMessage, as a delivery group of one.
func (r *Routing) SendMessageToClient(addr string, payload []byte) {
	r.n.Submit(node.SendMessage{Recipients: []string{addr}, DeliveryGroupSize: 1, Bytes: payload})
}

// SendMessage submits a raw payload, sent as given without signing, for
// delivery-group delivery to recipients: the send succeeds once
// deliveryGroupSize of them have received it.
func (r *Routing) SendMessage(recipients []string, deliveryGroupSize int, payload []byte) {
	r.n.Submit(node.SendMessage{Recipients: recipients, DeliveryGroupSize: deliveryGroupSize, Bytes: payload})
}

// OurPrefix returns the section's current prefix.
func (r *Routing) OurPrefix() xorname.Prefix {
	return r.n.OurPrefix()
}

// MatchesOurPrefix reports whether name falls within the section's prefix.
func (r *Routing) MatchesOurPrefix(name xorname.Name) bool {
	return r.n.MatchesOurPrefix(name)
}

// IsElder reports whether name currently serves as one of the section's
// elders.
func (r *Routing) IsElder(name xorname.Name) bool {
	return r.n.IsElder(name)
}

// OurElders returns the current elder set.
func (r *Routing) OurElders() []section.PeerAddress {
	return r.n.OurElders()
}

// OurEldersSortedByDistanceTo returns OurElders ordered by XOR distance to
// target, closest first.
func (r *Routing) OurEldersSortedByDistanceTo(target xorname.Name) []section.PeerAddress {
	return r.n.OurEldersSortedByDistanceTo(target)
}

// OurAdults returns every adult member of the section.
func (r *Routing) OurAdults() []section.MemberInfo {
	return r.n.OurAdults()
}

// OurAdultsSortedByDistanceTo returns OurAdults ordered by XOR distance to
// target, closest first.
func (r *Routing) OurAdultsSortedByDistanceTo(target xorname.Name) []section.MemberInfo {
	return r.n.OurAdultsSortedByDistanceTo(target)
}

// OurSection returns a snapshot of the local section's leadership.
func (r *Routing) OurSection() node.SectionSnapshot {
	return r.n.OurSection()
}

// NeighbourSections returns the latest known EldersInfo for every other
// section this node has heard of.
func (r *Routing) NeighbourSections() []section.EldersInfo {
	return r.n.NeighbourSections()
}

// PublicKeySet returns the section's current BLS public key.
func (r *Routing) PublicKeySet() section.SectionPublicKey {
	return r.n.PublicKeySet()
}

// SecretKeyShare returns the local node's share of the section secret key,
// and whether it holds one (only elders do).
func (r *Routing) SecretKeyShare() (section.SectionSecretKey, bool) {
	return r.n.SecretKeyShare()
}

// OurHistory returns the section's full proof-chain history of keys.
func (r *Routing) OurHistory() []section.SectionProofBlock {
	return r.n.OurHistory()
}

// OurIndex returns the local node's age within the section.
func (r *Routing) OurIndex() uint8 {
	return r.n.OurIndex()
}

// OurConnectionInfo returns the address this node listens for incoming
// connections on.
func (r *Routing) OurConnectionInfo() string {
	return r.n.OurConnectionInfo()
}
