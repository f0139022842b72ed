// Copyright (c) 2026 Substrate Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package message

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/textproto"
)

var (
	// ErrFlushed reports an attempt to mutate status or headers after
	// the status line and header block were written to the transport.
	ErrFlushed = errors.New("message: status and headers already flushed")

	// ErrEnded reports a write after End released the transport.
	ErrEnded = errors.New("message: response already ended")
)

// ReasonLookup resolves a status code to its reason phrase. A lookup
// returns the empty string for unknown codes, never an error.
type ReasonLookup func(code int) string

// OutgoingOption configures an Outgoing message.
type OutgoingOption func(*Outgoing)

// Reasons replaces the status-reason lookup collaborator. The default
// is http.StatusText.
func Reasons(lookup ReasonLookup) OutgoingOption {
	return func(o *Outgoing) {
		o.reason = lookup
	}
}

// Version sets the HTTP version written on the status line. The
// default is 1.1.
func Version(major, minor int) OutgoingOption {
	return func(o *Outgoing) {
		o.major = major
		o.minor = minor
	}
}

// Outgoing buffers a response's status and headers until the first
// body write (or End) and then flushes them exactly once. After the
// flush, status and header mutation fails fast and body bytes pass
// straight through to the transport.
type Outgoing struct {
	transport io.WriteCloser
	reason    ReasonLookup

	statusCode int
	major      int
	minor      int

	// single and multi are mutually exclusive per key: setting a key
	// in one store evicts it from the other
	single map[string]string
	multi  map[string][]string

	flushed bool
	ended   bool
}

// NewOutgoing returns an Outgoing writing to transport with status 200
// preset.
func NewOutgoing(transport io.WriteCloser, opts ...OutgoingOption) *Outgoing {
	o := &Outgoing{
		transport:  transport,
		reason:     http.StatusText,
		statusCode: http.StatusOK,
		major:      1,
		minor:      1,
		single:     make(map[string]string),
		multi:      make(map[string][]string),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// StatusCode returns the status code that was, or will be, written.
func (o *Outgoing) StatusCode() int {
	return o.statusCode
}

// Flushed reports whether the status line and headers hit the wire.
func (o *Outgoing) Flushed() bool {
	return o.flushed
}

// SetStatus changes the status code. It fails once headers are flushed.
func (o *Outgoing) SetStatus(code int) error {
	if o.flushed {
		return ErrFlushed
	}
	o.statusCode = code
	return nil
}

// SetHeader stores a single-valued header, evicting any multi-valued
// entry under the same name.
func (o *Outgoing) SetHeader(name, value string) error {
	if o.flushed {
		return ErrFlushed
	}
	key := textproto.CanonicalMIMEHeaderKey(name)
	delete(o.multi, key)
	o.single[key] = value
	return nil
}

// SetHeaderValues stores a repeated header, evicting any single-valued
// entry under the same name. Values are emitted as one line each, in
// the given order.
func (o *Outgoing) SetHeaderValues(name string, values []string) error {
	if o.flushed {
		return ErrFlushed
	}
	key := textproto.CanonicalMIMEHeaderKey(name)
	delete(o.single, key)
	o.multi[key] = append([]string(nil), values...)
	return nil
}

// Header reads back a single-valued header. It reports nothing for
// names held in the multi-valued store.
func (o *Outgoing) Header(name string) (string, bool) {
	v, ok := o.single[textproto.CanonicalMIMEHeaderKey(name)]
	return v, ok
}

// HeaderValues reads back a repeated header. It reports nothing for
// names held in the single-valued store.
func (o *Outgoing) HeaderValues(name string) ([]string, bool) {
	vs, ok := o.multi[textproto.CanonicalMIMEHeaderKey(name)]
	return vs, ok
}

// Write sends body bytes, flushing the status line and headers first
// if they have not gone out yet.
func (o *Outgoing) Write(p []byte) (int, error) {
	if o.ended {
		return 0, ErrEnded
	}
	if err := o.flushStart(); err != nil {
		return 0, err
	}
	return o.transport.Write(p)
}

// WriteString is Write for string payloads.
func (o *Outgoing) WriteString(s string) (int, error) {
	return o.Write([]byte(s))
}

// End completes the response: it performs the status/header flush if
// no body write already has, so even an empty response emits a status
// line and blank line, and then releases the transport. End is
// idempotent.
func (o *Outgoing) End() error {
	if o.ended {
		return nil
	}
	if err := o.flushStart(); err != nil {
		return err
	}
	o.ended = true
	return o.transport.Close()
}

// flushStart writes "HTTP/<major>.<minor> <status> <reason>\r\n", the
// buffered header lines and the terminating blank line, exactly once.
func (o *Outgoing) flushStart() error {
	if o.flushed {
		return nil
	}

	var wire bytes.Buffer
	fmt.Fprintf(&wire, "HTTP/%d.%d %d %s\r\n", o.major, o.minor, o.statusCode, o.reason(o.statusCode))
	for name, value := range o.single {
		fmt.Fprintf(&wire, "%s: %s\r\n", name, value)
	}
	for name, values := range o.multi {
		for _, value := range values {
			fmt.Fprintf(&wire, "%s: %s\r\n", name, value)
		}
	}
	wire.WriteString("\r\n")

	if _, err := o.transport.Write(wire.Bytes()); err != nil {
		return err
	}
	o.flushed = true
	return nil
}
