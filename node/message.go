// Package node implements the executor and command dispatch (C6): the
// single serialized handler that demultiplexes inbound messages, accumulates
// votes into blocks, drives section membership and relocation, and exposes
// an event stream to the embedding application.
package node

import (
	"encoding/json"
	"fmt"

	"github.com/tolelom/xornet/section"
	"github.com/tolelom/xornet/xorname"
)

// Variant labels what a Message carries.
type Variant string

const (
	// VariantVote carries a Vote over some fact (join, leave, relocate).
	VariantVote Variant = "vote"
	// VariantUserMessage carries an application payload with no routing
	// semantics of its own.
	VariantUserMessage Variant = "user_message"
	// VariantJoinRequest carries a prospective member's request to join.
	VariantJoinRequest Variant = "join_request"
	// VariantRelocate carries a relocation payload for a node proving its
	// new identity to its destination section.
	VariantRelocate Variant = "relocate"
)

// Message is the wire envelope for every node-to-node datagram: a variant
// tag, source and destination names, a payload, and the proof chain slice
// justifying the source section's current key, so the recipient can
// establish trust without a prior round trip.
type Message struct {
	Variant     Variant                     `json:"variant"`
	Source      xorname.Name                `json:"source"`
	Destination xorname.Name                `json:"destination"`
	Payload     []byte                      `json:"payload"`
	Proof       []section.SectionProofBlock `json:"proof"`
}

// Encode serializes msg for transmission over comm.Conn.
func (m Message) Encode() ([]byte, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("node: encode message: %w", err)
	}
	return b, nil
}

// DecodeMessage parses a Message received from comm.Conn.
func DecodeMessage(b []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(b, &m); err != nil {
		return Message{}, fmt.Errorf("node: decode message: %w", err)
	}
	return m, nil
}
