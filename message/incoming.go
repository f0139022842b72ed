// Copyright (c) 2026 Substrate Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package message assembles parse events into readable incoming
// messages and frames writable outgoing ones. One Incoming/Outgoing
// pair exclusively owns its connection's transport for the life of a
// request/response cycle; none of the types here lock internally, the
// dispatcher serializes access per connection instead.
package message

import (
	"errors"
	"io"
	"net/textproto"
	"strings"

	"github.com/substratehq/wireframe/buffer"
	"github.com/substratehq/wireframe/httpparse"
)

// State tracks how much of an incoming message has been assembled.
type State int8

const (
	// StateInitial means the header block is still being read.
	StateInitial State = iota

	// StateHeadersComplete means method, version and headers are
	// readable; body bytes may still be in flight.
	StateHeadersComplete

	// StateMessageComplete means the body boundary was reached.
	StateMessageComplete

	// StateError is terminal and reachable from any other state.
	StateError
)

// DefaultChunkSize is the transport read size used when none is
// configured. It matches the fixed pull size the engine has always
// used on blocking sockets.
const DefaultChunkSize = 2000

// IncomingOption configures an Incoming message.
type IncomingOption func(*Incoming)

// ChunkSize sets the fixed size of each blocking transport pull.
func ChunkSize(n int) IncomingOption {
	return func(m *Incoming) {
		if n > 0 {
			m.chunk = make([]byte, n)
		}
	}
}

// Incoming assembles one HTTP message from blocking pulls on a
// transport. It implements httpparse.Sink, folding fragment events
// into header and body state.
//
// Parse and the body read methods must not be called concurrently; an
// Incoming assumes single-writer access for its whole lifetime.
type Incoming struct {
	transport io.Reader
	parser    *httpparse.Parser
	chunk     []byte

	state   State
	upgrade bool

	method string
	status int
	major  int
	minor  int

	target     strings.Builder
	headers    map[string]string
	rawHeaders []string
	body       buffer.Buffer

	field   strings.Builder
	value   strings.Builder
	inValue bool
}

// NewIncoming returns an Incoming that pulls bytes from transport and
// classifies them with the given grammar mode. Servers parse requests;
// clients parse responses.
func NewIncoming(transport io.Reader, mode httpparse.Mode, opts ...IncomingOption) *Incoming {
	m := &Incoming{
		transport: transport,
		headers:   make(map[string]string),
	}
	m.parser = httpparse.New(mode, m)
	for _, opt := range opts {
		opt(m)
	}
	if m.chunk == nil {
		m.chunk = make([]byte, DefaultChunkSize)
	}
	return m
}

// State reports the message's assembly progress.
func (m *Incoming) State() State {
	return m.state
}

// Method returns the request method. Valid once headers are complete.
func (m *Incoming) Method() string {
	return m.method
}

// StatusCode returns the response status code. Valid once headers are
// complete, response mode only.
func (m *Incoming) StatusCode() int {
	return m.status
}

// Version returns the message's HTTP version.
func (m *Incoming) Version() (major, minor int) {
	return m.major, m.minor
}

// Target returns the request target exactly as received.
func (m *Incoming) Target() string {
	return m.target.String()
}

// Upgraded reports whether the message negotiated a protocol switch.
func (m *Incoming) Upgraded() bool {
	return m.upgrade
}

// Header returns the value for a header name, canonicalized. When the
// peer repeated a name the last value wins; use RawHeaders to recover
// duplicates.
func (m *Incoming) Header(name string) (string, bool) {
	v, ok := m.headers[textproto.CanonicalMIMEHeaderKey(name)]
	return v, ok
}

// Headers returns the assembled header map, keyed by canonical names,
// last value winning per name. Callers must not mutate it.
func (m *Incoming) Headers() map[string]string {
	return m.headers
}

// RawHeaders returns the ordered, alternating name/value sequence as
// received, preserving duplicates and original casing.
func (m *Incoming) RawHeaders() []string {
	return m.rawHeaders
}

// Parse pulls fixed-size chunks from the transport until the header
// block completes. A nil return means the message is readable; any
// error is fatal to the connection and classified by the taxonomy in
// this package. Parse surfaces its outcome exactly once.
func (m *Incoming) Parse() error {
	if m.state != StateInitial {
		m.state = StateError
		return &InternalError{Reason: "parse called more than once"}
	}
	for m.state == StateInitial {
		n, err := m.transport.Read(m.chunk)
		if n > 0 {
			if ferr := m.feed(m.chunk[:n]); ferr != nil {
				return ferr
			}
			continue
		}
		// a zero-byte read is a clean EOF on this transport contract
		m.state = StateError
		if err == nil || errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return &UnexpectedEOFError{Cause: err}
	}
	return nil
}

// ReadData pulls decoded body bytes into p. Already-staged bytes are
// drained first; when none remain it performs further blocking
// transport reads until body bytes appear or the message completes.
// It returns (0, io.EOF) only at the true end of the body, so a
// handler that never calls it leaves unread body bytes on the wire.
func (m *Incoming) ReadData(p []byte) (int, error) {
	for {
		if m.body.Len() > 0 {
			return m.body.Fill(p), nil
		}
		switch m.state {
		case StateMessageComplete:
			return 0, io.EOF
		case StateInitial:
			return 0, &InternalError{Reason: "body read before headers completed"}
		case StateError:
			return 0, &InternalError{Reason: "body read on a failed message"}
		}

		n, err := m.transport.Read(m.chunk)
		if n > 0 {
			if ferr := m.feed(m.chunk[:n]); ferr != nil {
				return 0, ferr
			}
			continue
		}
		// EOF: legal only for close-delimited bodies
		if finErr := m.parser.Finish(); finErr == nil {
			continue
		}
		m.state = StateError
		if err == nil || errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return 0, &UnexpectedEOFError{Cause: err}
	}
}

// ReadString reads the next available body bytes as a string. It
// returns ("", io.EOF) when the body is exhausted.
func (m *Incoming) ReadString() (string, error) {
	n, err := m.ReadData(m.chunk)
	if err != nil {
		return "", err
	}
	return string(m.chunk[:n]), nil
}

// feed runs one chunk of transport bytes through the parser and
// classifies any shortfall.
func (m *Incoming) feed(data []byte) error {
	res, err := m.parser.Consume(data)
	m.upgrade = res.Upgrade
	if err != nil {
		m.state = StateError
		if errors.Is(err, httpparse.ErrConsumeAfterDone) {
			return &InternalError{Reason: "bytes fed after message completed"}
		}
		return &DesyncError{Consumed: res.Consumed, Read: len(data), Cause: err}
	}
	if res.Consumed < len(data) && !m.parser.Done() {
		m.state = StateError
		return &DesyncError{Consumed: res.Consumed, Read: len(data)}
	}
	// bytes past a completed message (pipelining, upgrade payload) are
	// deliberately left to the connection owner
	return nil
}

// OnMessageBegin implements httpparse.Sink.
func (m *Incoming) OnMessageBegin() {}

// OnURLFragment implements httpparse.Sink.
func (m *Incoming) OnURLFragment(p []byte) error {
	m.target.Write(p)
	return nil
}

// OnHeaderField implements httpparse.Sink.
func (m *Incoming) OnHeaderField(p []byte) error {
	if m.inValue {
		m.flushHeaderPair()
	}
	m.field.Write(p)
	return nil
}

// OnHeaderValue implements httpparse.Sink.
func (m *Incoming) OnHeaderValue(p []byte) error {
	m.inValue = true
	m.value.Write(p)
	return nil
}

// OnHeadersComplete implements httpparse.Sink.
func (m *Incoming) OnHeadersComplete(pro httpparse.Prologue) error {
	m.flushHeaderPair()
	m.method = pro.Method
	m.status = pro.StatusCode
	m.major = pro.VersionMajor
	m.minor = pro.VersionMinor
	m.state = StateHeadersComplete
	return nil
}

// OnBody implements httpparse.Sink.
func (m *Incoming) OnBody(p []byte) error {
	if m.state != StateHeadersComplete {
		// the parser must never classify body bytes this early
		return &InternalError{Reason: "body bytes before headers completed"}
	}
	m.body.Append(p)
	return nil
}

// OnMessageComplete implements httpparse.Sink.
func (m *Incoming) OnMessageComplete() error {
	// a chunked body's trailer pair may still be pending
	m.flushHeaderPair()
	m.state = StateMessageComplete
	return nil
}

// OnReset implements httpparse.Sink. A discarded interim response must
// not leak its provisional headers into the real message, so all
// accumulated state is cleared.
func (m *Incoming) OnReset() {
	m.state = StateInitial
	m.method = ""
	m.status = 0
	m.major = 0
	m.minor = 0
	m.target.Reset()
	m.headers = make(map[string]string)
	m.rawHeaders = nil
	m.body.Reset()
	m.field.Reset()
	m.value.Reset()
	m.inValue = false
}

func (m *Incoming) flushHeaderPair() {
	if m.field.Len() == 0 && !m.inValue {
		return
	}
	name := m.field.String()
	value := strings.TrimRight(m.value.String(), " \t")
	m.headers[textproto.CanonicalMIMEHeaderKey(name)] = value
	m.rawHeaders = append(m.rawHeaders, name, value)
	m.field.Reset()
	m.value.Reset()
	m.inValue = false
}
