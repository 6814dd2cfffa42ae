// Package events is the routing node's externally-observable event stream:
// a pub/sub broker the node pushes to, and the embedding application
// subscribes to, so the application learns about connections, membership
// changes, and incoming messages without polling node state directly.
package events

import (
	"log"
	"sync"

	"github.com/tolelom/xornet/xorname"
)

// EventType labels what happened. These are exactly the event classes
// §4.6 lists as observable to the embedding application.
type EventType string

const (
	// Connected fires once the node has joined a section and is routable.
	Connected EventType = "connected"
	// PromotedToElder labels the local node becoming (or ceasing to be) an
	// elder of its section. The node package does not emit it: nothing there
	// changes the elder set after the section is founded.
	PromotedToElder EventType = "promoted_to_elder"
	// MemberJoined fires when a new member is accepted into the section.
	MemberJoined EventType = "member_joined"
	// MemberLeft fires when a member departs the section (voluntarily or
	// via timeout).
	MemberLeft EventType = "member_left"
	// MessageReceived fires for every user message delivered to the local
	// node.
	MessageReceived EventType = "message_received"
	// RelocationStarted fires when the section has selected one of its
	// members (named by Name) for relocation and marked it Relocated.
	RelocationStarted EventType = "relocation_started"
)

// Event carries a typed payload describing one occurrence on the node.
type Event struct {
	Type EventType `json:"type"`
	// Name is the peer this event concerns (the connecting node, the
	// (de)promoted elder, the joining/leaving/relocating member), zero for
	// event types with no single associated peer.
	Name xorname.Name `json:"name"`
	// Message is the payload for MessageReceived; nil otherwise.
	Message []byte `json:"message,omitempty"`
	// Destination is the target section prefix name for RelocationStarted;
	// zero otherwise.
	Destination xorname.Name `json:"destination,omitempty"`
}

// Handler is a callback invoked for matching events.
type Handler func(Event)

// Emitter is a simple pub/sub broker. Subscribe before Emit.
type Emitter struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
}

// NewEmitter creates an Emitter with no subscribers.
func NewEmitter() *Emitter {
	return &Emitter{handlers: make(map[EventType][]Handler)}
}

// Subscribe registers h to be called whenever typ is emitted.
func (e *Emitter) Subscribe(typ EventType, h Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers[typ] = append(e.handlers[typ], h)
}

// Emit delivers ev to all subscribers for ev.Type synchronously, in the
// order they were subscribed. Each handler is guarded by panic recovery so
// a misbehaving subscriber cannot crash the node or stall message routing.
func (e *Emitter) Emit(ev Event) {
	e.mu.RLock()
	handlers := e.handlers[ev.Type]
	e.mu.RUnlock()
	for _, h := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Printf("[events] handler panicked for %s: %v", ev.Type, r)
				}
			}()
			h(ev)
		}()
	}
}
