package rpc

import (
	"encoding/json"
	"fmt"

	"github.com/tolelom/xornet/xorname"
)

// Snapshot is the read-only subset of *routing.Routing the handler needs.
// Declaring it as an interface lets the handler run against a test fake;
// NewHandlerForRouting adapts a *routing.Routing to it.
type Snapshot interface {
	Name() xorname.Name
	OurPrefix() xorname.Prefix
	MatchesOurPrefix(name xorname.Name) bool
	IsElder(name xorname.Name) bool
	OurElders() []PeerAddress
	OurAdults() []MemberSummary
	OurConnectionInfo() string
	OurIndex() uint8
}

// PeerAddress mirrors section.PeerAddress, decoupling this package's public
// interface from the section package's internal representation.
type PeerAddress struct {
	Name xorname.Name `json:"name"`
	Addr string       `json:"addr"`
}

// MemberSummary is the subset of section.MemberInfo worth exposing over RPC.
type MemberSummary struct {
	Name xorname.Name `json:"name"`
	Age  uint8        `json:"age"`
}

// Handler holds all dependencies needed to serve RPC methods.
type Handler struct {
	snap Snapshot
}

// NewHandler creates an RPC Handler over a read-only node snapshot.
func NewHandler(snap Snapshot) *Handler {
	return &Handler{snap: snap}
}

// Dispatch routes an RPC request to the correct method.
func (h *Handler) Dispatch(req Request) Response {
	switch req.Method {
	case "our_prefix":
		return okResponse(req.ID, h.snap.OurPrefix().String())

	case "matches_our_prefix":
		return h.matchesOurPrefix(req)

	case "is_elder":
		return h.isElder(req)

	case "our_elders":
		return okResponse(req.ID, h.snap.OurElders())

	case "our_adults":
		return okResponse(req.ID, h.snap.OurAdults())

	case "our_section":
		return okResponse(req.ID, map[string]any{
			"prefix": h.snap.OurPrefix().String(),
			"elders": h.snap.OurElders(),
		})

	case "our_connection_info":
		return okResponse(req.ID, h.snap.OurConnectionInfo())

	case "our_index":
		return okResponse(req.ID, h.snap.OurIndex())

	case "our_name":
		return okResponse(req.ID, h.snap.Name().String())

	default:
		return errResponse(req.ID, CodeMethodNotFound, fmt.Sprintf("method %q not found", req.Method))
	}
}

func (h *Handler) matchesOurPrefix(req Request) Response {
	var params struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errResponse(req.ID, CodeInvalidParams, "params: "+err.Error())
	}
	name, err := parseName(params.Name)
	if err != nil {
		return errResponse(req.ID, CodeInvalidParams, err.Error())
	}
	return okResponse(req.ID, h.snap.MatchesOurPrefix(name))
}

func (h *Handler) isElder(req Request) Response {
	var params struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errResponse(req.ID, CodeInvalidParams, "params: "+err.Error())
	}
	name, err := parseName(params.Name)
	if err != nil {
		return errResponse(req.ID, CodeInvalidParams, err.Error())
	}
	return okResponse(req.ID, h.snap.IsElder(name))
}

func parseName(s string) (xorname.Name, error) {
	var n xorname.Name
	data, err := json.Marshal(s)
	if err != nil {
		return n, err
	}
	if err := n.UnmarshalJSON(data); err != nil {
		return n, fmt.Errorf("name: %w", err)
	}
	return n, nil
}
