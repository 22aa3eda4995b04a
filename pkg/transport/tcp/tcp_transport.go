package tcp

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"tarun-kavipurapu/rcmd/pkg/protocol"
	"tarun-kavipurapu/rcmd/pkg/transport"
)

// NodeOption configures a TCPNode.
type NodeOption func(*TCPNode)

// WithLimits bounds the frames this node accepts and sends.
func WithLimits(l Limits) NodeOption {
	return func(n *TCPNode) {
		n.limits = l.normalize()
	}
}

// WithIdleTimeout drops a peer that stays silent mid-read or mid-write for longer than d.
// Zero disables the deadline.
func WithIdleTimeout(d time.Duration) NodeOption {
	return func(n *TCPNode) {
		n.idleTimeout = d
	}
}

// TCPNode implements transport.Conn
type TCPNode struct {
	conn   net.Conn
	reader *bufio.Reader
	lock   sync.Mutex

	limits      Limits
	idleTimeout time.Duration
}

func NewTCPNode(conn net.Conn, opts ...NodeOption) *TCPNode {
	n := &TCPNode{
		conn:   conn,
		reader: bufio.NewReader(conn),
		limits: DefaultLimits(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

func (n *TCPNode) Send(msg protocol.Message) error {
	n.lock.Lock()
	defer n.lock.Unlock()

	if n.idleTimeout > 0 {
		_ = n.conn.SetWriteDeadline(time.Now().Add(n.idleTimeout))
	}
	return WriteFrame(n.conn, protocol.Marshal(msg), n.limits)
}

// Recv reads one frame and decodes its kind tag. Only one goroutine may call Recv at a time.
func (n *TCPNode) Recv() (protocol.Message, error) {
	if n.idleTimeout > 0 {
		_ = n.conn.SetReadDeadline(time.Now().Add(n.idleTimeout))
	}
	body, err := ReadFrame(n.reader, n.limits)
	if err != nil {
		return protocol.Message{}, err
	}
	return protocol.Unmarshal(body)
}

func (n *TCPNode) Close() error {
	return n.conn.Close()
}

func (n *TCPNode) Addr() string {
	return n.conn.RemoteAddr().String()
}

// TCPTransport implements transport.Transport
type TCPTransport struct {
	listenAddr string
	listener   net.Listener
	nodeOpts   []NodeOption
}

func NewTCPTransport(addr string, opts ...NodeOption) *TCPTransport {
	return &TCPTransport{
		listenAddr: addr,
		nodeOpts:   opts,
	}
}

func (t *TCPTransport) Listen() error {
	ln, err := net.Listen("tcp", t.listenAddr)
	if err != nil {
		return err
	}
	t.listener = ln
	return nil
}

// Accept blocks until the next inbound connection.
func (t *TCPTransport) Accept() (transport.Conn, error) {
	if t.listener == nil {
		return nil, fmt.Errorf("tcp transport %s: not listening", t.listenAddr)
	}
	conn, err := t.listener.Accept()
	if err != nil {
		return nil, err
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.SetNoDelay(true)
	}
	return NewTCPNode(conn, t.nodeOpts...), nil
}

func (t *TCPTransport) Dial(ctx context.Context, addr string) (transport.Conn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	return NewTCPNode(conn, t.nodeOpts...), nil
}

func (t *TCPTransport) Close() error {
	if t.listener == nil {
		return nil
	}
	return t.listener.Close()
}

// Addr returns the bound address once listening, so ":0" resolves to the real port.
func (t *TCPTransport) Addr() string {
	if t.listener != nil {
		return t.listener.Addr().String()
	}
	return t.listenAddr
}

var _ transport.Transport = (*TCPTransport)(nil)
