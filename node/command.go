package node

import "time"

// Command is one unit of work pushed onto the node's serialized handler.
// The node processes commands one at a time from a single goroutine, so
// handlers never race each other regardless of how many producers are
// submitting commands concurrently.
type Command interface {
	isCommand()
}

// HandleMessage is pushed for every inbound datagram decoded off the wire.
type HandleMessage struct {
	From string // the transport address the message arrived from
	Msg  Message
}

// SendUserMessage asks the node to deliver an application payload to dst.
type SendUserMessage struct {
	Destination []byte // destination-addressed routing target (opaque to node)
	Payload     []byte
}

// SendMessage asks the node to deliver raw bytes to a delivery group.
type SendMessage struct {
	Recipients        []string
	DeliveryGroupSize int
	Bytes             []byte
}

// ScheduleTimeout asks the node to fire a HandleTimeout command after d
// elapses, identified by token so the handler can tell which timer fired.
type ScheduleTimeout struct {
	Token    uint64
	Duration time.Duration
}

// HandleTimeout is pushed back onto the command queue once a
// ScheduleTimeout's duration has elapsed.
type HandleTimeout struct {
	Token uint64
}

func (HandleMessage) isCommand()   {}
func (SendUserMessage) isCommand() {}
func (SendMessage) isCommand()     {}
func (ScheduleTimeout) isCommand() {}
func (HandleTimeout) isCommand()   {}
