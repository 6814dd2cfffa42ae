package rpc

import (
	"encoding/json"
	"testing"

	"github.com/tolelom/xornet/xorname"
)

type fakeSnapshot struct {
	name    xorname.Name
	prefix  xorname.Prefix
	elders  []PeerAddress
	adults  []MemberSummary
	addr    string
	idx     uint8
	isElder bool
}

func (f fakeSnapshot) Name() xorname.Name                      { return f.name }
func (f fakeSnapshot) OurPrefix() xorname.Prefix               { return f.prefix }
func (f fakeSnapshot) MatchesOurPrefix(name xorname.Name) bool { return f.prefix.Matches(name) }
func (f fakeSnapshot) IsElder(name xorname.Name) bool          { return f.isElder }
func (f fakeSnapshot) OurElders() []PeerAddress                { return f.elders }
func (f fakeSnapshot) OurAdults() []MemberSummary              { return f.adults }
func (f fakeSnapshot) OurConnectionInfo() string               { return f.addr }
func (f fakeSnapshot) OurIndex() uint8                         { return f.idx }

func newFakeHandler() *Handler {
	return NewHandler(fakeSnapshot{
		name:    xorname.Hash([]byte("self")),
		prefix:  xorname.NewPrefix(xorname.Name{}, 0),
		elders:  []PeerAddress{{Name: xorname.Hash([]byte("elder")), Addr: "127.0.0.1:7700"}},
		adults:  []MemberSummary{{Name: xorname.Hash([]byte("adult")), Age: 4}},
		addr:    "127.0.0.1:7700",
		idx:     4,
		isElder: true,
	})
}

func TestDispatchOurPrefix(t *testing.T) {
	h := newFakeHandler()
	resp := h.Dispatch(Request{JSONRPC: "2.0", ID: 1, Method: "our_prefix"})
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}
	if resp.Result != "" {
		// prefix(0) stringifies as empty bit string; just ensure no error path taken.
	}
}

func TestDispatchOurElders(t *testing.T) {
	h := newFakeHandler()
	resp := h.Dispatch(Request{JSONRPC: "2.0", ID: 1, Method: "our_elders"})
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}
	elders, ok := resp.Result.([]PeerAddress)
	if !ok || len(elders) != 1 {
		t.Fatalf("got %+v, want one elder", resp.Result)
	}
}

func TestDispatchIsElderWithParams(t *testing.T) {
	h := newFakeHandler()
	name := xorname.Hash([]byte("elder"))
	params, err := json.Marshal(map[string]string{"name": name.String()})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	resp := h.Dispatch(Request{JSONRPC: "2.0", ID: 1, Method: "is_elder", Params: params})
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}
	if v, ok := resp.Result.(bool); !ok || !v {
		t.Fatalf("got %+v, want true", resp.Result)
	}
}

func TestDispatchIsElderRejectsBadName(t *testing.T) {
	h := newFakeHandler()
	params, err := json.Marshal(map[string]string{"name": "not-hex"})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	resp := h.Dispatch(Request{JSONRPC: "2.0", ID: 1, Method: "is_elder", Params: params})
	if resp.Error == nil || resp.Error.Code != CodeInvalidParams {
		t.Fatalf("expected CodeInvalidParams, got %+v", resp.Error)
	}
}

func TestDispatchUnknownMethod(t *testing.T) {
	h := newFakeHandler()
	resp := h.Dispatch(Request{JSONRPC: "2.0", ID: 1, Method: "does_not_exist"})
	if resp.Error == nil || resp.Error.Code != CodeMethodNotFound {
		t.Fatalf("expected CodeMethodNotFound, got %+v", resp.Error)
	}
}

func TestDispatchOurConnectionInfoAndIndex(t *testing.T) {
	h := newFakeHandler()
	resp := h.Dispatch(Request{JSONRPC: "2.0", ID: 1, Method: "our_connection_info"})
	if resp.Result != "127.0.0.1:7700" {
		t.Fatalf("got %+v", resp.Result)
	}
	resp = h.Dispatch(Request{JSONRPC: "2.0", ID: 1, Method: "our_index"})
	if resp.Result != uint8(4) {
		t.Fatalf("got %+v", resp.Result)
	}
}
