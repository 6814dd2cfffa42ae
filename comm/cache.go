package comm

import (
	"crypto/tls"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// connectionsCacheSize bounds how many live peer connections Comm keeps
// open at once, evicting the least-recently-used when full — same
// capacity and LRU eviction policy as the original's node_conns cache.
const connectionsCacheSize = 1024

// Comm is the node's communication component: a connection cache plus
// delivery-group sends, mirroring comm.rs's Comm/Inner split but built on
// the teacher's length-prefixed TCP/TLS transport instead of QUIC.
type Comm struct {
	tlsConfig *tls.Config

	mu    sync.Mutex
	conns *lru.Cache[string, *Conn]
}

// New creates a Comm. If tlsConfig is non-nil, outgoing connections
// negotiate TLS.
func New(tlsConfig *tls.Config) (*Comm, error) {
	cache, err := lru.NewWithEvict[string, *Conn](connectionsCacheSize, func(_ string, conn *Conn) {
		conn.Close()
	})
	if err != nil {
		return nil, err
	}
	return &Comm{tlsConfig: tlsConfig, conns: cache}, nil
}

// connFor returns the cached connection to addr, dialing and caching a new
// one if none exists yet.
func (c *Comm) connFor(addr string) (*Conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if conn, ok := c.conns.Get(addr); ok {
		return conn, nil
	}
	conn, err := Dial(addr, c.tlsConfig)
	if err != nil {
		return nil, err
	}
	c.conns.Add(addr, conn)
	return conn, nil
}

// Forget evicts and closes any cached connection to addr, used after a
// send fails so the next attempt dials fresh rather than reusing a
// connection known to be broken.
func (c *Comm) Forget(addr string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conns.Remove(addr)
}

// send delivers msg to one recipient, reusing a cached connection if
// possible.
func (c *Comm) send(addr string, msg []byte) error {
	conn, err := c.connFor(addr)
	if err != nil {
		return err
	}
	if err := conn.Send(msg); err != nil {
		c.Forget(addr)
		return err
	}
	return nil
}
