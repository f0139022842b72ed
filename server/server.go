// Copyright (c) 2026 Substrate Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package server accepts TCP connections and dispatches each one to a
// parse-then-handle unit of work on a fixed worker pool.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/substratehq/wireframe/httpparse"
	"github.com/substratehq/wireframe/internal/fixedpool"
	"github.com/substratehq/wireframe/message"
)

var (
	// ErrAlreadyListening reports a second Serve on a running server.
	ErrAlreadyListening = errors.New("server: already listening")

	// ErrStopped reports Serve on a server that was already stopped.
	ErrStopped = errors.New("server: stopped")
)

// Handler is the application callback. The dispatcher invokes it at
// most once per successfully parsed request, after headers are
// available; body bytes are pulled lazily as the handler asks for them.
type Handler interface {
	Serve(req *message.Incoming, res *message.Outgoing)
}

// HandlerFunc is a func variant of the Handler interface.
type HandlerFunc func(req *message.Incoming, res *message.Outgoing)

// Serve implements the Handler interface.
func (f HandlerFunc) Serve(req *message.Incoming, res *message.Outgoing) {
	f(req, res)
}

type options struct {
	addr       string
	workers    int
	backlog    int
	chunkSize  int
	logHandler slog.Handler
	reasons    message.ReasonLookup
}

// Option configures a Server.
type Option func(*options)

// Addr sets the listen address for ListenAndServe and Run.
//
// Default is ":8080".
func Addr(addr string) Option {
	return func(o *options) {
		o.addr = addr
	}
}

// Workers sets the size of the connection-handling pool.
func Workers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}

// Backlog bounds how many accepted connections may wait for a free
// worker before the accept loop itself blocks.
func Backlog(n int) Option {
	return func(o *options) {
		o.backlog = n
	}
}

// ChunkSize sets the fixed transport read size used while parsing each
// connection.
func ChunkSize(n int) Option {
	return func(o *options) {
		o.chunkSize = n
	}
}

// LogHandler sets the slog.Handler the server logs through.
func LogHandler(h slog.Handler) Option {
	return func(o *options) {
		o.logHandler = h
	}
}

// Reasons replaces the status-reason lookup handed to each response.
func Reasons(lookup message.ReasonLookup) Option {
	return func(o *options) {
		o.reasons = lookup
	}
}

type serverState int8

const (
	stateIdle serverState = iota
	stateListening
	stateStopped
)

// Server owns the accept loop and the worker pool. Each accepted
// connection gets one Incoming/Outgoing pair and is serialized onto
// exactly one worker for its lifetime.
type Server struct {
	handler   Handler
	log       *slog.Logger
	addr      string
	workers   int
	backlog   int
	chunkSize int
	reasons   message.ReasonLookup
	tracer    trace.Tracer

	mu    sync.Mutex
	state serverState
	ls    net.Listener
}

// New returns a Server dispatching parsed requests to handler.
func New(handler Handler, opts ...Option) *Server {
	o := &options{
		addr:       ":8080",
		workers:    64,
		backlog:    128,
		chunkSize:  message.DefaultChunkSize,
		logHandler: noopLogHandler{},
	}
	for _, opt := range opts {
		opt(o)
	}

	return &Server{
		handler:   handler,
		log:       slog.New(o.logHandler),
		addr:      o.addr,
		workers:   o.workers,
		backlog:   o.backlog,
		chunkSize: o.chunkSize,
		reasons:   o.reasons,
		tracer:    otel.Tracer("github.com/substratehq/wireframe/server"),
	}
}

// ListenAndServe binds the configured address and serves until Stop is
// called or the listening socket fails.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.log.Error("failed to listen for connections", slog.String("addr", s.addr), slog.Any("error", err))
		return err
	}
	return s.Serve(ln)
}

// Run binds and serves until ctx is cancelled, then stops the accept
// loop. In-flight connection workers run to completion; only the
// accept path observes cancellation.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-gctx.Done()
		return s.Stop()
	})
	g.Go(func() error {
		// unblock the stop watcher if the accept loop exits on its own
		defer cancel()
		return s.Serve(ln)
	})

	err = g.Wait()
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, ErrStopped) {
		return nil
	}
	return err
}

// Serve runs the accept loop on ln. A per-connection failure never
// terminates the loop; it ends only on Stop or a fatal listener error.
func (s *Server) Serve(ln net.Listener) error {
	s.mu.Lock()
	switch s.state {
	case stateListening:
		s.mu.Unlock()
		ln.Close()
		return ErrAlreadyListening
	case stateStopped:
		s.mu.Unlock()
		ln.Close()
		return ErrStopped
	}
	s.state = stateListening
	s.ls = ln
	s.mu.Unlock()

	pool := fixedpool.New(s.workers, s.backlog, func(err error) {
		s.log.Error("connection worker panicked", slog.Any("error", err))
	})
	defer pool.Close()

	s.log.Info("accepting connections", slog.String("addr", ln.Addr().String()))

	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.stopped() || errors.Is(err, net.ErrClosed) {
				s.log.Info("accept loop stopped")
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				s.log.Warn("transient accept failure", slog.Any("error", err))
				continue
			}
			s.log.Error("listening socket failed", slog.Any("error", err))
			return err
		}

		pool.Submit(func() {
			s.handle(conn)
		})
	}
}

// Stop marks the server stopped and closes the listening socket so the
// accept loop's next iteration exits instead of failing. It is
// idempotent and does not cancel in-flight connections.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == stateStopped {
		return nil
	}
	s.state = stateStopped
	if s.ls == nil {
		return nil
	}
	return s.ls.Close()
}

func (s *Server) stopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == stateStopped
}

// handle runs one connection's parse-then-handle sequence. The outcome
// taxonomy decides whether the application handler runs, the peer gets
// a 400, or the connection is simply dropped.
func (s *Server) handle(conn net.Conn) {
	remote := conn.RemoteAddr().String()

	_, span := s.tracer.Start(context.Background(), "server.handle",
		trace.WithAttributes(attribute.String("net.peer.address", remote)),
	)
	defer span.End()

	incomingOpts := []message.IncomingOption{message.ChunkSize(s.chunkSize)}
	req := message.NewIncoming(conn, httpparse.ParseRequests, incomingOpts...)

	var outgoingOpts []message.OutgoingOption
	if s.reasons != nil {
		outgoingOpts = append(outgoingOpts, message.Reasons(s.reasons))
	}
	res := message.NewOutgoing(conn, outgoingOpts...)

	err := req.Parse()
	if err == nil {
		s.handler.Serve(req, res)
		if endErr := res.End(); endErr != nil {
			s.log.Warn("failed to finish response",
				slog.String("remote", remote),
				slog.Any("error", endErr),
			)
		}
		return
	}

	span.RecordError(err)

	var desync *message.DesyncError
	if errors.As(err, &desync) {
		// the stream is framable enough to refuse politely
		s.log.Warn("malformed request",
			slog.String("remote", remote),
			slog.Any("error", err),
		)
		if serr := res.SetStatus(400); serr == nil {
			res.End()
		}
		conn.Close()
		return
	}

	// UnexpectedEOF or internal failure: the peer is gone or local
	// state is unusable, nothing can be delivered
	s.log.Debug("dropping connection",
		slog.String("remote", remote),
		slog.Any("error", err),
	)
	conn.Close()
}
