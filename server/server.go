// Package server runs the command side of rcmd: one client session at a time,
// each command answered with its fixed response sequence.
package server

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"

	"go.uber.org/zap"

	"tarun-kavipurapu/rcmd/pkg/monitor"
	"tarun-kavipurapu/rcmd/pkg/ops"
	"tarun-kavipurapu/rcmd/pkg/protocol"
	"tarun-kavipurapu/rcmd/pkg/transport"
	"tarun-kavipurapu/rcmd/pkg/transport/tcp"
)

type Server struct {
	Transport  transport.Transport
	dispatcher *Dispatcher
	log        *zap.Logger
	metrics    *monitor.Metrics
	limits     tcp.Limits

	mu      sync.Mutex
	current transport.Conn
	closed  bool
}

type Option func(*Server)

func WithLogger(log *zap.Logger) Option {
	return func(s *Server) {
		s.log = log
	}
}

func WithMetrics(m *monitor.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithLimits sets the frame bound the transport enforces. A payload response
// larger than it is answered with "False" alone.
func WithLimits(l tcp.Limits) Option {
	return func(s *Server) {
		s.limits = l
	}
}

func New(trans transport.Transport, o ops.Operations, opts ...Option) *Server {
	s := &Server{
		Transport: trans,
		log:       zap.NewNop(),
		limits:    tcp.DefaultLimits(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.dispatcher = NewDispatcher(o, s.log, WithFrameLimits(s.limits))
	return s
}

// Start binds the listener. Addr reports the bound address afterwards.
func (s *Server) Start() error {
	if err := s.Transport.Listen(); err != nil {
		return err
	}
	s.log.Info("server started", zap.String("addr", s.Transport.Addr()))
	return nil
}

func (s *Server) Addr() string {
	return s.Transport.Addr()
}

// ListenAndServe is Start followed by Serve.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if err := s.Start(); err != nil {
		return err
	}
	return s.Serve(ctx)
}

// Serve accepts connections one at a time and serves each to completion before
// accepting the next. It returns when ctx is canceled or Close is called.
func (s *Server) Serve(ctx context.Context) error {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = s.Close()
		case <-stop:
		}
	}()

	for {
		conn, err := s.Transport.Accept()
		if err != nil {
			if s.isClosed() {
				s.log.Info("server stopped", zap.String("addr", s.Transport.Addr()))
				return ctx.Err()
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			s.log.Error("accept error", zap.Error(err))
			return err
		}
		s.handleSession(conn)
	}
}

// Close stops accepting and drops the live session, if any. Safe to call twice.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	current := s.current
	s.mu.Unlock()

	if current != nil {
		_ = current.Close()
	}
	return s.Transport.Close()
}

func (s *Server) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Server) setCurrent(conn transport.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.current = conn
	return true
}

func (s *Server) handleSession(conn transport.Conn) {
	addr := conn.Addr()
	if !s.setCurrent(conn) {
		_ = conn.Close()
		return
	}
	defer func() {
		s.mu.Lock()
		s.current = nil
		s.mu.Unlock()
		_ = conn.Close()
		s.metrics.SessionEnded()
		s.log.Info("client disconnected", zap.String("remote", addr))
	}()

	s.log.Info("client connected", zap.String("remote", addr))
	s.metrics.SessionStarted()

	for {
		msg, err := conn.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) || s.isClosed() {
				return
			}
			reason := protocolErrorReason(err)
			s.metrics.RecordProtocolError(reason)
			s.log.Warn("closing session on protocol error",
				zap.String("remote", addr), zap.String("reason", reason), zap.Error(err))
			return
		}
		s.metrics.RecordReceived(len(msg.Body))

		res := s.dispatcher.Dispatch(msg)
		s.metrics.RecordCommand(res.Command, res.OK)

		for i, frame := range res.Frames {
			if err := conn.Send(frame); err != nil {
				s.log.Warn("send failed", zap.String("remote", addr), zap.String("command", res.Command), zap.Error(err))
				return
			}
			if i > 0 {
				s.metrics.RecordSent(len(frame.Body))
			}
		}

		if res.Exit {
			s.log.Info("client exit", zap.String("remote", addr))
			return
		}
	}
}

func protocolErrorReason(err error) string {
	var netErr net.Error
	switch {
	case errors.Is(err, tcp.ErrMalformedLength):
		return "malformed_length"
	case errors.Is(err, tcp.ErrHeaderTooLong):
		return "header_too_long"
	case errors.Is(err, tcp.ErrFrameTooLarge):
		return "frame_too_large"
	case errors.Is(err, protocol.ErrUnknownKind):
		return "unknown_kind"
	case errors.As(err, &netErr) && netErr.Timeout():
		return "idle_timeout"
	default:
		return "read_error"
	}
}
