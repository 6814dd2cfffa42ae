package rpc

import (
	"github.com/tolelom/xornet/routing"
	"github.com/tolelom/xornet/xorname"
)

// routingSnapshot adapts a *routing.Routing handle to the Snapshot
// interface, converting section-package types to this package's
// wire-friendly summaries.
type routingSnapshot struct {
	r *routing.Routing
}

// NewHandlerForRouting builds an RPC Handler backed by a running node's
// routing handle.
func NewHandlerForRouting(r *routing.Routing) *Handler {
	return NewHandler(routingSnapshot{r: r})
}

func (s routingSnapshot) Name() xorname.Name { return s.r.Name() }

func (s routingSnapshot) OurPrefix() xorname.Prefix { return s.r.OurPrefix() }

func (s routingSnapshot) MatchesOurPrefix(name xorname.Name) bool {
	return s.r.MatchesOurPrefix(name)
}

func (s routingSnapshot) IsElder(name xorname.Name) bool { return s.r.IsElder(name) }

func (s routingSnapshot) OurElders() []PeerAddress {
	elders := s.r.OurElders()
	out := make([]PeerAddress, len(elders))
	for i, e := range elders {
		out[i] = PeerAddress{Name: e.Name, Addr: e.Addr}
	}
	return out
}

func (s routingSnapshot) OurAdults() []MemberSummary {
	adults := s.r.OurAdults()
	out := make([]MemberSummary, len(adults))
	for i, m := range adults {
		out[i] = MemberSummary{Name: m.Peer.Name(), Age: m.Peer.Age}
	}
	return out
}

func (s routingSnapshot) OurConnectionInfo() string { return s.r.OurConnectionInfo() }

func (s routingSnapshot) OurIndex() uint8 { return s.r.OurIndex() }
