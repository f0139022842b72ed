// Copyright (c) 2026 Substrate Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package httpparse

// Prologue carries the fixed-size facts of a message's start line once
// the header block has been fully scanned. Method is empty in response
// mode and StatusCode is zero in request mode.
type Prologue struct {
	Method       string
	StatusCode   int
	VersionMajor int
	VersionMinor int
}

// Sink receives parse events as the Parser classifies a byte stream.
//
// URL, header field and header value events are fragments: a single
// logical token may arrive split across multiple events when the
// underlying stream is fragmented. Consumers concatenate fragments and
// treat a field-to-value or value-to-field transition as the boundary
// of a complete header pair.
//
// Returning a non-nil error from any method aborts the current Consume
// call; the stream must then be considered desynchronized.
type Sink interface {
	// OnMessageBegin is emitted once before any other event of a message.
	OnMessageBegin()

	// OnURLFragment carries request-target bytes. Request mode only.
	OnURLFragment(p []byte) error

	// OnHeaderField carries header name bytes. Also emitted for
	// trailer fields of a chunked body.
	OnHeaderField(p []byte) error

	// OnHeaderValue carries header value bytes.
	OnHeaderValue(p []byte) error

	// OnHeadersComplete is emitted exactly once per message, after the
	// blank line terminating the header block.
	OnHeadersComplete(pro Prologue) error

	// OnBody carries decoded body bytes. Chunked framing is removed
	// before emission; only payload bytes are delivered.
	OnBody(p []byte) error

	// OnMessageComplete is emitted when the message's body boundary is
	// reached. The parser stops consuming afterwards.
	OnMessageComplete() error

	// OnReset is emitted instead of OnMessageComplete when a final
	// "100 Continue" interim response was parsed. The consumer must
	// discard all state accumulated for the provisional message; the
	// real message follows in the same stream.
	OnReset()
}

// NopSink discards every event. It is useful for draining a stream and
// as an embeddable default in tests.
type NopSink struct{}

func (NopSink) OnMessageBegin()                  {}
func (NopSink) OnURLFragment(p []byte) error     { return nil }
func (NopSink) OnHeaderField(p []byte) error     { return nil }
func (NopSink) OnHeaderValue(p []byte) error     { return nil }
func (NopSink) OnHeadersComplete(Prologue) error { return nil }
func (NopSink) OnBody(p []byte) error            { return nil }
func (NopSink) OnMessageComplete() error         { return nil }
func (NopSink) OnReset()                         {}

// Result reports the outcome of a Consume call.
type Result struct {
	// Consumed is the number of input bytes the parser accepted. When
	// Consumed is less than the input length and no error occurred,
	// the message completed (or switched protocols) mid-input and the
	// remaining bytes were deliberately left untouched.
	Consumed int

	// Upgrade reports that the message negotiated a protocol switch
	// (a 101 response, a CONNECT request, or an Upgrade header). Bytes
	// past Consumed belong to the new protocol and must not be fed
	// back to this parser.
	Upgrade bool
}
