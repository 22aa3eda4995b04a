// Package client is the calling side of rcmd: it validates command lines locally,
// sends them over one persistent connection and collects the server's responses.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"syscall"

	"go.uber.org/zap"

	"tarun-kavipurapu/rcmd/pkg/protocol"
	"tarun-kavipurapu/rcmd/pkg/transport"
	"tarun-kavipurapu/rcmd/pkg/transport/tcp"
)

var (
	// ErrUsage wraps local validation failures; nothing was sent.
	ErrUsage        = errors.New("client: invalid command")
	ErrServerClosed = errors.New("client: server closed the connection")
	ErrClosed       = errors.New("client: connection closed")

	// ErrCommandFailed is returned by Shell.RunOnce when the server answered "False".
	ErrCommandFailed = errors.New("client: command failed")
)

// Result is the outcome of one command exchange.
type Result struct {
	Command string
	OK      bool
	// Listing holds the DIR response.
	Listing string
	// Image holds the SEND_PHOTO payload.
	Image []byte
}

type options struct {
	log    *zap.Logger
	limits tcp.Limits
}

type Option func(*options)

func WithLogger(log *zap.Logger) Option {
	return func(o *options) {
		o.log = log
	}
}

func WithLimits(l tcp.Limits) Option {
	return func(o *options) {
		o.limits = l
	}
}

type Client struct {
	conn transport.Conn
	log  *zap.Logger

	mu     sync.Mutex
	closed bool
}

// Dial connects to a server at addr.
func Dial(ctx context.Context, addr string, opts ...Option) (*Client, error) {
	o := options{log: zap.NewNop(), limits: tcp.DefaultLimits()}
	for _, opt := range opts {
		opt(&o)
	}

	conn, err := tcp.NewTCPTransport("", tcp.WithLimits(o.limits)).Dial(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("client: dial %s: %w", addr, err)
	}
	o.log.Info("connected", zap.String("server", conn.Addr()))
	return &Client{conn: conn, log: o.log}, nil
}

// NewClient wraps an established connection.
func NewClient(conn transport.Conn, opts ...Option) *Client {
	o := options{log: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	return &Client{conn: conn, log: o.log}
}

// Addr is the server's address.
func (c *Client) Addr() string {
	return c.conn.Addr()
}

// Do sends one command line and waits for its full response sequence.
// The line must name a known command with exactly the right number of arguments.
// After EXIT the connection is closed whatever the server answered.
func (c *Client) Do(line string) (Result, error) {
	cmd, spec, err := protocol.ParseLine(line)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrUsage, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return Result{}, ErrClosed
	}

	res, err := c.exchange(cmd, spec)
	if err != nil {
		c.closeLocked()
		return res, err
	}
	if cmd.Name == protocol.CmdExit {
		c.closeLocked()
	}
	return res, nil
}

func (c *Client) exchange(cmd protocol.Command, spec protocol.CommandSpec) (Result, error) {
	res := Result{Command: cmd.Name}

	c.log.Debug("send", zap.String("command", cmd.Name), zap.Strings("args", cmd.Args))
	if err := c.conn.Send(cmd.Message()); err != nil {
		return res, c.mapErr(cmd.Name, err)
	}

	status, err := c.conn.Recv()
	if err != nil {
		return res, c.mapErr(cmd.Name, err)
	}
	res.OK = status.OK()
	if !res.OK || !spec.Payload {
		return res, nil
	}

	payload, err := c.conn.Recv()
	if err != nil {
		return res, c.mapErr(cmd.Name, err)
	}
	switch cmd.Name {
	case protocol.CmdDir:
		res.Listing = payload.Text()
	case protocol.CmdSendPhoto:
		res.Image = payload.Bytes()
	}
	return res, nil
}

func (c *Client) mapErr(name string, err error) error {
	if isPeerClosed(err) {
		c.log.Info("server closed the connection", zap.String("command", name))
		return ErrServerClosed
	}
	c.log.Warn("exchange failed", zap.String("command", name), zap.Error(err))
	return fmt.Errorf("client: %s: %w", name, err)
}

func isPeerClosed(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, syscall.ECONNRESET)
}

// Close drops the connection without sending EXIT.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeLocked()
}

func (c *Client) closeLocked() error {
	if c.closed {
		return nil
	}
	c.closed = true
	c.log.Info("disconnected", zap.String("server", c.conn.Addr()))
	return c.conn.Close()
}
