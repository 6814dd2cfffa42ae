// Package comm is the communication fabric: length-prefixed TCP/TLS framing,
// a bounded connection cache, and delivery-group sends with retry, the way
// a routing node talks to its peers without caring which peer is which.
package comm

import (
	"crypto/tls"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/tolelom/xornet/config"
	"github.com/tolelom/xornet/xorname"
)

// maxMessageSize rejects a claimed frame length above this many bytes before
// ever allocating a buffer for it, so a corrupt or hostile length prefix
// can't be used to exhaust memory.
const maxMessageSize = 32 * 1024 * 1024

// readTimeout bounds how long Receive will wait for a frame before giving
// up, so one stalled peer can't wedge the whole read loop.
const readTimeout = 30 * time.Second

// Conn wraps a single transport connection to one peer, framing every
// message with a 4-byte big-endian length prefix.
type Conn struct {
	addr string
	conn net.Conn

	mu     sync.Mutex
	closed bool
}

// Dial opens a new connection to addr. If tlsConfig is non-nil the
// connection is established over TLS.
func Dial(addr string, tlsConfig *tls.Config) (*Conn, error) {
	var raw net.Conn
	var err error
	if tlsConfig != nil {
		raw, err = tls.Dial("tcp", addr, tlsConfig)
	} else {
		raw, err = net.Dial("tcp", addr)
	}
	if err != nil {
		return nil, fmt.Errorf("comm: dial %s: %w", addr, err)
	}
	return &Conn{addr: addr, conn: raw}, nil
}

// Wrap adapts an already-established net.Conn (e.g. one accepted by a
// Listener) as a framed Conn.
func Wrap(addr string, raw net.Conn) *Conn {
	return &Conn{addr: addr, conn: raw}
}

// Addr returns the remote address this connection was established to.
func (c *Conn) Addr() string {
	return c.addr
}

// PeerName reports the overlay name the remote end's certificate claims,
// if this connection is over TLS and the handshake presented a client
// certificate. ok is false for plain TCP connections, or if the
// certificate's CommonName isn't a well-formed name — the caller decides
// whether an unidentifiable peer is acceptable for its purpose.
func (c *Conn) PeerName() (name xorname.Name, ok bool) {
	tc, isTLS := c.conn.(*tls.Conn)
	if !isTLS {
		return name, false
	}
	state := tc.ConnectionState()
	if len(state.PeerCertificates) == 0 {
		return name, false
	}
	n, err := config.PeerName(state.PeerCertificates[0])
	if err != nil {
		return name, false
	}
	return n, true
}

// Send writes msg as one length-prefixed frame.
func (c *Conn) Send(msg []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return fmt.Errorf("comm: connection to %s is closed", c.addr)
	}
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(msg)))
	if _, err := c.conn.Write(header[:]); err != nil {
		return fmt.Errorf("comm: write header to %s: %w", c.addr, err)
	}
	if _, err := c.conn.Write(msg); err != nil {
		return fmt.Errorf("comm: write body to %s: %w", c.addr, err)
	}
	return nil
}

// Receive reads the next length-prefixed frame, bounded by readTimeout.
func (c *Conn) Receive() ([]byte, error) {
	_ = c.conn.SetReadDeadline(time.Now().Add(readTimeout))
	var header [4]byte
	if _, err := io.ReadFull(c.conn, header[:]); err != nil {
		return nil, fmt.Errorf("comm: read header from %s: %w", c.addr, err)
	}
	length := binary.BigEndian.Uint32(header[:])
	if length > maxMessageSize {
		return nil, fmt.Errorf("comm: frame from %s too large: %d bytes", c.addr, length)
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(c.conn, buf); err != nil {
		return nil, fmt.Errorf("comm: read body from %s: %w", c.addr, err)
	}
	return buf, nil
}

// Close terminates the connection. Safe to call more than once.
func (c *Conn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		c.conn.Close()
	}
}

// Listener accepts incoming connections and wraps each as a framed Conn.
// It starts no goroutines of its own: the caller of Accept runs the accept
// loop and decides how each connection is read.
type Listener struct {
	ln        net.Listener
	stopCh    chan struct{}
	closeOnce sync.Once
}

// Listen starts accepting connections on addr. If tlsConfig is non-nil,
// the listener terminates TLS.
func Listen(addr string, tlsConfig *tls.Config) (*Listener, error) {
	var ln net.Listener
	var err error
	if tlsConfig != nil {
		ln, err = tls.Listen("tcp", addr, tlsConfig)
	} else {
		ln, err = net.Listen("tcp", addr)
	}
	if err != nil {
		return nil, fmt.Errorf("comm: listen %s: %w", addr, err)
	}
	return &Listener{ln: ln, stopCh: make(chan struct{})}, nil
}

// Accept blocks for one incoming connection and wraps it as a Conn, or
// returns an error once Close has been called.
func (l *Listener) Accept() (*Conn, error) {
	raw, err := l.ln.Accept()
	if err != nil {
		select {
		case <-l.stopCh:
			return nil, fmt.Errorf("comm: listener closed")
		default:
			return nil, err
		}
	}
	return Wrap(raw.RemoteAddr().String(), raw), nil
}

// Close stops accepting new connections. Safe to call more than once.
func (l *Listener) Close() {
	l.closeOnce.Do(func() {
		close(l.stopCh)
		l.ln.Close()
	})
}

// Addr returns the address the listener is bound to.
func (l *Listener) Addr() net.Addr {
	return l.ln.Addr()
}
