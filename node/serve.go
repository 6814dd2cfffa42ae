package node

import (
	"context"
	"log"
	"time"

	"github.com/tolelom/xornet/comm"
)

// Serve accepts inbound connections on addr until ctx is canceled, decoding
// each frame as a Message and submitting it as a HandleMessage command.
// Mirrors the teacher's acceptLoop/readLoop split: one goroutine accepting
// new connections, one per-connection goroutine decoding frames off it,
// both feeding the same serialized command queue rather than mutating Node
// state directly.
func (n *Node) Serve(ctx context.Context, listener *comm.Listener) {
	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
				log.Printf("[node] accept error: %v", err)
				time.Sleep(100 * time.Millisecond)
				continue
			}
		}
		go n.readLoop(conn)
	}
}

func (n *Node) readLoop(conn *comm.Conn) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[node] readLoop panic from %s: %v", conn.Addr(), r)
		}
		conn.Close()
	}()
	loggedPeer := false
	for {
		frame, err := conn.Receive()
		if err != nil {
			return
		}
		if !loggedPeer {
			// The TLS handshake only completes lazily on first Read, so this
			// is the earliest point PeerName can resolve a client cert's
			// claimed identity; over plain TCP it's always !ok.
			if name, ok := conn.PeerName(); ok {
				log.Printf("[node] connection from %s presents certificate name %s", conn.Addr(), name)
			}
			loggedPeer = true
		}
		msg, err := DecodeMessage(frame)
		if err != nil {
			log.Printf("[node] decode message from %s: %v", conn.Addr(), err)
			continue
		}
		n.Submit(HandleMessage{From: conn.Addr(), Msg: msg})
	}
}
