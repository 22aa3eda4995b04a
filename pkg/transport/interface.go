package transport

import (
	"context"

	"tarun-kavipurapu/rcmd/pkg/protocol"
)

// Conn is one session's message stream. Send and Recv each move exactly one frame.
type Conn interface {
	Send(msg protocol.Message) error
	// Recv returns io.EOF when the peer has closed the connection.
	Recv() (protocol.Message, error)
	Close() error
	Addr() string
}

// Transport handles the network layer
type Transport interface {
	Listen() error
	Accept() (Conn, error)
	Dial(ctx context.Context, addr string) (Conn, error)
	Close() error
	Addr() string
}
