// Copyright (c) 2026 Substrate Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package client issues HTTP/1.1 requests over raw TCP connections and
// assembles the responses with the same wire-protocol engine the
// server side uses. Requests flow through a circuit breaker so a
// misbehaving peer sheds load instead of stacking up blocked dials.
package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/substratehq/wireframe/httpparse"
	"github.com/substratehq/wireframe/message"
)

// ErrCircuitOpen reports a request refused because the breaker tripped.
var ErrCircuitOpen = errors.New("client: circuit breaker is open")

type options struct {
	name        string
	log         *zap.Logger
	maxRequests uint32
	interval    time.Duration
	timeout     time.Duration
	tripCount   uint32
	chunkSize   int
}

// Option configures a Client.
type Option func(*options)

// Name names the client's circuit, for log correlation.
func Name(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// Logger sets the logger used for circuit state changes.
func Logger(log *zap.Logger) Option {
	return func(o *options) {
		o.log = log
	}
}

// MaxRequests caps the requests allowed through a half-open circuit.
func MaxRequests(n uint32) Option {
	return func(o *options) {
		o.maxRequests = n
	}
}

// Interval is the cyclic period over which the closed circuit clears
// its failure counts.
func Interval(d time.Duration) Option {
	return func(o *options) {
		o.interval = d
	}
}

// Timeout is how long the circuit stays open before probing half-open.
func Timeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

// TripCount is the number of consecutive failures that trips the
// circuit.
func TripCount(n uint32) Option {
	return func(o *options) {
		o.tripCount = n
	}
}

// ChunkSize sets the fixed transport read size used while parsing
// responses.
func ChunkSize(n int) Option {
	return func(o *options) {
		o.chunkSize = n
	}
}

// Request describes one outgoing HTTP/1.1 request.
type Request struct {
	Method  string
	Target  string
	Headers map[string]string
	Body    []byte
}

// Response is an assembled incoming response plus ownership of its
// connection. Callers must Close it once the body has been read.
type Response struct {
	*message.Incoming

	conn net.Conn
}

// Close releases the response's connection.
func (r *Response) Close() error {
	return r.conn.Close()
}

// Client issues requests with a shared circuit breaker. A Client is
// safe for concurrent use; each request owns its own connection.
type Client struct {
	log       *zap.Logger
	breaker   *gobreaker.CircuitBreaker
	chunkSize int
}

// New returns a Client with the circuit closed.
func New(opts ...Option) *Client {
	o := &options{
		name:      "wireframe",
		log:       zap.NewNop(),
		tripCount: 5,
		chunkSize: message.DefaultChunkSize,
	}
	for _, opt := range opts {
		opt(o)
	}

	log := o.log
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        o.name,
		MaxRequests: o.maxRequests,
		Interval:    o.interval,
		Timeout:     o.timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= o.tripCount
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Info("circuit state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return &Client{
		log:       log,
		breaker:   breaker,
		chunkSize: o.chunkSize,
	}
}

// Do dials addr, writes the request and parses the response headers.
// The response body is pulled lazily through the returned Response.
func (c *Client) Do(ctx context.Context, addr string, req Request) (*Response, error) {
	v, err := c.breaker.Execute(func() (any, error) {
		return c.do(ctx, addr, req)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, ErrCircuitOpen
		}
		return nil, err
	}
	return v.(*Response), nil
}

func (c *Client) do(ctx context.Context, addr string, req Request) (*Response, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		c.log.Debug("dial failed", zap.String("addr", addr), zap.Error(err))
		return nil, err
	}
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	if _, err := conn.Write(encodeRequest(addr, req)); err != nil {
		conn.Close()
		return nil, err
	}

	resp := message.NewIncoming(conn, httpparse.ParseResponses, message.ChunkSize(c.chunkSize))
	if err := resp.Parse(); err != nil {
		conn.Close()
		return nil, err
	}

	return &Response{Incoming: resp, conn: conn}, nil
}

// encodeRequest frames the request line, headers and body. A Host
// header is derived from addr and a Content-Length from the body
// unless the caller set their own.
func encodeRequest(addr string, req Request) []byte {
	method := req.Method
	if method == "" {
		method = "GET"
	}
	target := req.Target
	if target == "" {
		target = "/"
	}

	headers := make(map[string]string, len(req.Headers)+2)
	hasHost, hasLength := false, false
	for name, value := range req.Headers {
		headers[name] = value
		switch {
		case strings.EqualFold(name, "Host"):
			hasHost = true
		case strings.EqualFold(name, "Content-Length"):
			hasLength = true
		}
	}
	if !hasHost {
		host := addr
		if h, _, err := net.SplitHostPort(addr); err == nil {
			host = h
		}
		headers["Host"] = host
	}
	if !hasLength && len(req.Body) > 0 {
		headers["Content-Length"] = strconv.Itoa(len(req.Body))
	}

	names := make([]string, 0, len(headers))
	for name := range headers {
		names = append(names, name)
	}
	sort.Strings(names)

	var wire bytes.Buffer
	fmt.Fprintf(&wire, "%s %s HTTP/1.1\r\n", method, target)
	for _, name := range names {
		fmt.Fprintf(&wire, "%s: %s\r\n", name, headers[name])
	}
	wire.WriteString("\r\n")
	wire.Write(req.Body)
	return wire.Bytes()
}
