// Copyright (c) 2026 Substrate Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package httpparse implements an incremental HTTP/1.x message parser.
//
// The parser is a pure classifier over the RFC 7230 grammar: it owns no
// socket, performs no I/O and holds no opinion about transport framing.
// Callers feed it arbitrarily fragmented byte chunks via Consume and
// receive a stream of typed events through a Sink. Feeding identical
// bytes split at different chunk boundaries yields identical events up
// to fragment granularity.
package httpparse

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

// Mode selects the start-line grammar the parser accepts.
type Mode int

const (
	// ParseRequests accepts request-lines (method, target, version).
	ParseRequests Mode = iota

	// ParseResponses accepts status-lines (version, code, reason) and
	// enables interim-response handling (100 Continue, 101 Upgrade).
	ParseResponses
)

var (
	// ErrInvalidStartLine reports a malformed request- or status-line.
	ErrInvalidStartLine = errors.New("httpparse: invalid start line")

	// ErrInvalidVersion reports an HTTP-version token that is not of
	// the form HTTP/<digit>.<digit>.
	ErrInvalidVersion = errors.New("httpparse: invalid HTTP version")

	// ErrInvalidHeader reports a header line violating the field grammar.
	ErrInvalidHeader = errors.New("httpparse: invalid header line")

	// ErrInvalidCRLF reports a bare CR or missing LF in a line ending.
	ErrInvalidCRLF = errors.New("httpparse: invalid cr/lf sequence")

	// ErrInvalidContentLength reports an unparsable Content-Length value.
	ErrInvalidContentLength = errors.New("httpparse: invalid Content-Length")

	// ErrInvalidChunkSize reports a malformed or overflowing chunk-size line.
	ErrInvalidChunkSize = errors.New("httpparse: invalid chunk size")

	// ErrConsumeAfterDone reports bytes fed to a parser whose message
	// already completed. The caller owns any trailing bytes.
	ErrConsumeAfterDone = errors.New("httpparse: consume called after message completed")

	// ErrIncompleteMessage reports Finish being called before the
	// current message reached a valid boundary.
	ErrIncompleteMessage = errors.New("httpparse: stream ended mid-message")
)

const (
	stateBegin int8 = iota

	// request line
	stateMethod
	stateURLBefore
	stateURL

	// HTTP-version, shared by both line forms
	stateVersionLit
	stateVersionMajor
	stateVersionDot
	stateVersionMinor
	stateStartLineCR
	stateStartLineLF

	// status line tail
	stateStatusCodeBefore
	stateStatusCode
	stateReason

	// header block, also reused for chunked trailers
	stateHeaderStart
	stateHeaderField
	stateHeaderValueBefore
	stateHeaderValue
	stateHeaderLF
	stateHeadersAlmostDone

	// bodies
	stateBodyIdentity
	stateBodyEOF
	stateChunkSizeStart
	stateChunkSize
	stateChunkExt
	stateChunkSizeLF
	stateChunkData
	stateChunkDataCR
	stateChunkDataLF

	stateDone
)

// header names the parser itself must understand for framing
type framingHeader int8

const (
	hdrNone framingHeader = iota
	hdrContentLength
	hdrTransferEncoding
	hdrUpgrade
	hdrIgnored
)

// longest framing header name; longer fields can never match
const maxFramingFieldLen = len("transfer-encoding")

const versionLit = "HTTP/"

// Parser incrementally classifies one HTTP/1.x message. A Parser is not
// safe for concurrent use; within a connection all Consume calls must be
// serialized onto one goroutine.
type Parser struct {
	mode Mode
	sink Sink

	state  int8
	litIdx int

	method  []byte
	major   int
	minor   int
	status  int
	statusN int

	contentLength int64 // -1 means no declared length
	remain        int64
	chunked       bool
	upgradeSeen   bool
	upgrade       bool
	inTrailer     bool

	fieldBuf []byte
	fieldCut bool
	hdrKind  framingHeader
	valueBuf []byte

	// fragment start within the chunk currently being consumed,
	// -1 when no token is open
	mark int
}

// New returns a Parser delivering events for the given mode to sink.
func New(mode Mode, sink Sink) *Parser {
	if sink == nil {
		sink = NopSink{}
	}
	return &Parser{
		mode:          mode,
		sink:          sink,
		contentLength: -1,
	}
}

// Done reports whether the current message has fully completed. Once
// done, the parser accepts no further bytes.
func (p *Parser) Done() bool {
	return p.state == stateDone
}

// Upgraded reports whether the completed message negotiated a protocol
// switch. Remaining stream bytes belong to the new protocol.
func (p *Parser) Upgraded() bool {
	return p.upgrade
}

// Consume feeds a chunk of stream bytes through the state machine,
// emitting events to the sink as tokens are classified. Zero-length
// input is a no-op.
//
// When the returned Result's Consumed count is less than len(data) and
// the error is nil, the message completed (or upgraded) mid-chunk; the
// remaining bytes were intentionally not parsed. Any other shortfall is
// reported through a non-nil error and leaves the stream unusable.
func (p *Parser) Consume(data []byte) (Result, error) {
	if len(data) == 0 {
		return Result{Upgrade: p.upgrade}, nil
	}
	if p.state == stateDone {
		return Result{Upgrade: p.upgrade}, ErrConsumeAfterDone
	}

	p.mark = -1
	switch p.state {
	case stateURL, stateHeaderField, stateHeaderValue:
		// token continues from the previous chunk
		p.mark = 0
	}

	for i := 0; i < len(data); i++ {
		c := data[i]

		switch p.state {
		case stateBegin:
			// tolerate blank lines between messages
			if c == '\r' || c == '\n' {
				continue
			}
			p.sink.OnMessageBegin()
			if p.mode == ParseResponses {
				if c != versionLit[0] {
					return p.fail(i, ErrInvalidStartLine)
				}
				p.litIdx = 1
				p.state = stateVersionLit
				continue
			}
			if !isMethodChar(c) {
				return p.fail(i, ErrInvalidStartLine)
			}
			p.method = append(p.method[:0], c)
			p.state = stateMethod

		case stateMethod:
			if c == ' ' {
				p.state = stateURLBefore
				continue
			}
			if !isMethodChar(c) {
				return p.fail(i, ErrInvalidStartLine)
			}
			p.method = append(p.method, c)

		case stateURLBefore:
			if c == ' ' {
				continue
			}
			if !isTargetChar(c) {
				return p.fail(i, ErrInvalidStartLine)
			}
			p.mark = i
			p.state = stateURL

		case stateURL:
			if c == ' ' {
				if err := p.sink.OnURLFragment(data[p.mark:i]); err != nil {
					return p.fail(i, err)
				}
				p.mark = -1
				p.litIdx = 0
				p.state = stateVersionLit
				continue
			}
			if !isTargetChar(c) {
				return p.fail(i, ErrInvalidStartLine)
			}

		case stateVersionLit:
			if p.litIdx < len(versionLit) && c == versionLit[p.litIdx] {
				p.litIdx++
				if p.litIdx == len(versionLit) {
					p.state = stateVersionMajor
				}
				continue
			}
			return p.fail(i, ErrInvalidVersion)

		case stateVersionMajor:
			if !isDigit(c) {
				return p.fail(i, ErrInvalidVersion)
			}
			p.major = int(c - '0')
			p.state = stateVersionDot

		case stateVersionDot:
			if c != '.' {
				return p.fail(i, ErrInvalidVersion)
			}
			p.state = stateVersionMinor

		case stateVersionMinor:
			if !isDigit(c) {
				return p.fail(i, ErrInvalidVersion)
			}
			p.minor = int(c - '0')
			if p.mode == ParseResponses {
				p.state = stateStatusCodeBefore
			} else {
				p.state = stateStartLineCR
			}

		case stateStartLineCR:
			if c != '\r' {
				return p.fail(i, ErrInvalidStartLine)
			}
			p.state = stateStartLineLF

		case stateStartLineLF:
			if c != '\n' {
				return p.fail(i, ErrInvalidCRLF)
			}
			p.state = stateHeaderStart

		case stateStatusCodeBefore:
			if c == ' ' {
				continue
			}
			if !isDigit(c) {
				return p.fail(i, ErrInvalidStartLine)
			}
			p.status = int(c - '0')
			p.statusN = 1
			p.state = stateStatusCode

		case stateStatusCode:
			switch {
			case isDigit(c):
				if p.statusN == 3 {
					return p.fail(i, ErrInvalidStartLine)
				}
				p.status = p.status*10 + int(c-'0')
				p.statusN++
			case c == ' ':
				p.state = stateReason
			case c == '\r':
				p.state = stateStartLineLF
			default:
				return p.fail(i, ErrInvalidStartLine)
			}

		case stateReason:
			// reason phrase is human-facing only; scan past it
			if c == '\r' {
				p.state = stateStartLineLF
			}

		case stateHeaderStart:
			if c == '\r' {
				p.state = stateHeadersAlmostDone
				continue
			}
			if !isTokenChar(c) {
				return p.fail(i, ErrInvalidHeader)
			}
			p.beginField()
			p.appendFieldByte(c)
			p.mark = i
			p.state = stateHeaderField

		case stateHeaderField:
			if c == ':' {
				if err := p.sink.OnHeaderField(data[p.mark:i]); err != nil {
					return p.fail(i, err)
				}
				p.mark = -1
				p.endField()
				p.state = stateHeaderValueBefore
				continue
			}
			if !isTokenChar(c) {
				return p.fail(i, ErrInvalidHeader)
			}
			p.appendFieldByte(c)

		case stateHeaderValueBefore:
			if c == ' ' || c == '\t' {
				continue
			}
			if c == '\r' {
				// explicit empty fragment so consumers still observe
				// the field-to-value transition
				if err := p.emitValue(data[i:i]); err != nil {
					return p.fail(i, err)
				}
				if err := p.endHeaderLine(); err != nil {
					return p.fail(i, err)
				}
				p.state = stateHeaderLF
				continue
			}
			if c == '\n' {
				return p.fail(i, ErrInvalidHeader)
			}
			p.mark = i
			p.state = stateHeaderValue

		case stateHeaderValue:
			if c == '\r' {
				if err := p.emitValue(data[p.mark:i]); err != nil {
					return p.fail(i, err)
				}
				p.mark = -1
				if err := p.endHeaderLine(); err != nil {
					return p.fail(i, err)
				}
				p.state = stateHeaderLF
				continue
			}
			if c == '\n' {
				return p.fail(i, ErrInvalidCRLF)
			}

		case stateHeaderLF:
			if c != '\n' {
				return p.fail(i, ErrInvalidCRLF)
			}
			p.state = stateHeaderStart

		case stateHeadersAlmostDone:
			if c != '\n' {
				return p.fail(i, ErrInvalidCRLF)
			}
			pause, err := p.endHeaderBlock()
			if err != nil {
				return p.fail(i, err)
			}
			if pause {
				return Result{Consumed: i + 1, Upgrade: p.upgrade}, nil
			}

		case stateBodyIdentity:
			n := int64(len(data) - i)
			if n > p.remain {
				n = p.remain
			}
			if err := p.sink.OnBody(data[i : i+int(n)]); err != nil {
				return p.fail(i, err)
			}
			p.remain -= n
			i += int(n) - 1
			if p.remain == 0 {
				if err := p.completeMessage(); err != nil {
					return p.fail(i, err)
				}
				return Result{Consumed: i + 1, Upgrade: p.upgrade}, nil
			}

		case stateBodyEOF:
			if err := p.sink.OnBody(data[i:]); err != nil {
				return p.fail(i, err)
			}
			i = len(data) - 1

		case stateChunkSizeStart:
			v, ok := hexValue(c)
			if !ok {
				return p.fail(i, ErrInvalidChunkSize)
			}
			p.remain = int64(v)
			p.state = stateChunkSize

		case stateChunkSize:
			if v, ok := hexValue(c); ok {
				if p.remain > math.MaxInt64/32 {
					return p.fail(i, ErrInvalidChunkSize)
				}
				p.remain = p.remain*16 + int64(v)
				continue
			}
			switch c {
			case ';':
				p.state = stateChunkExt
			case '\r':
				p.state = stateChunkSizeLF
			default:
				return p.fail(i, ErrInvalidChunkSize)
			}

		case stateChunkExt:
			// chunk extensions are scanned past, never interpreted
			if c == '\r' {
				p.state = stateChunkSizeLF
			}

		case stateChunkSizeLF:
			if c != '\n' {
				return p.fail(i, ErrInvalidCRLF)
			}
			if p.remain == 0 {
				// last-chunk: trailer section follows
				p.inTrailer = true
				p.state = stateHeaderStart
			} else {
				p.state = stateChunkData
			}

		case stateChunkData:
			n := int64(len(data) - i)
			if n > p.remain {
				n = p.remain
			}
			if err := p.sink.OnBody(data[i : i+int(n)]); err != nil {
				return p.fail(i, err)
			}
			p.remain -= n
			i += int(n) - 1
			if p.remain == 0 {
				p.state = stateChunkDataCR
			}

		case stateChunkDataCR:
			if c != '\r' {
				return p.fail(i, ErrInvalidCRLF)
			}
			p.state = stateChunkDataLF

		case stateChunkDataLF:
			if c != '\n' {
				return p.fail(i, ErrInvalidCRLF)
			}
			p.state = stateChunkSizeStart
		}
	}

	if err := p.flushOpenToken(data); err != nil {
		return p.fail(len(data), err)
	}
	return Result{Consumed: len(data), Upgrade: p.upgrade}, nil
}

// Finish signals clean end-of-stream. For messages whose body length is
// delimited only by connection close it emits the final completion
// events; any other mid-message state is an error.
func (p *Parser) Finish() error {
	switch p.state {
	case stateDone:
		return nil
	case stateBodyEOF:
		return p.completeMessage()
	case stateBegin:
		// no message was started; nothing to complete
		return nil
	default:
		return ErrIncompleteMessage
	}
}

func (p *Parser) fail(i int, err error) (Result, error) {
	return Result{Consumed: i, Upgrade: p.upgrade}, err
}

// flushOpenToken emits the tail fragment of a token that the end of the
// current chunk split in half.
func (p *Parser) flushOpenToken(data []byte) error {
	if p.mark < 0 || p.mark >= len(data) {
		return nil
	}
	frag := data[p.mark:]
	switch p.state {
	case stateURL:
		return p.sink.OnURLFragment(frag)
	case stateHeaderField:
		return p.sink.OnHeaderField(frag)
	case stateHeaderValue:
		return p.emitValue(frag)
	}
	return nil
}

func (p *Parser) beginField() {
	p.fieldBuf = p.fieldBuf[:0]
	p.fieldCut = false
	p.hdrKind = hdrNone
	p.valueBuf = p.valueBuf[:0]
}

func (p *Parser) appendFieldByte(c byte) {
	if p.fieldCut {
		return
	}
	if len(p.fieldBuf) == maxFramingFieldLen {
		// too long to be a framing header, stop mirroring it
		p.fieldCut = true
		return
	}
	p.fieldBuf = append(p.fieldBuf, lower(c))
}

func (p *Parser) endField() {
	if p.fieldCut {
		p.hdrKind = hdrIgnored
		return
	}
	switch string(p.fieldBuf) {
	case "content-length":
		p.hdrKind = hdrContentLength
	case "transfer-encoding":
		p.hdrKind = hdrTransferEncoding
	case "upgrade":
		p.hdrKind = hdrUpgrade
	default:
		p.hdrKind = hdrIgnored
	}
}

func (p *Parser) emitValue(frag []byte) error {
	switch p.hdrKind {
	case hdrContentLength, hdrTransferEncoding:
		p.valueBuf = append(p.valueBuf, frag...)
	}
	return p.sink.OnHeaderValue(frag)
}

// endHeaderLine folds a completed framing header into the parser's own
// body-delimiting state.
func (p *Parser) endHeaderLine() error {
	if p.inTrailer {
		// trailer fields never influence framing
		return nil
	}
	switch p.hdrKind {
	case hdrContentLength:
		if p.chunked {
			// chunked framing overrides any declared length
			return nil
		}
		v := strings.TrimSpace(string(p.valueBuf))
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			return ErrInvalidContentLength
		}
		p.contentLength = n
	case hdrTransferEncoding:
		if encodingListContains(string(p.valueBuf), "chunked") {
			p.chunked = true
			p.contentLength = -1
		}
	case hdrUpgrade:
		p.upgradeSeen = true
	}
	return nil
}

// endHeaderBlock is invoked at the blank line ending a header section.
// The returned pause flag tells Consume to stop accepting bytes because
// the message completed or switched protocols.
func (p *Parser) endHeaderBlock() (bool, error) {
	if p.inTrailer {
		return true, p.completeMessage()
	}

	pro := Prologue{
		Method:       string(p.method),
		StatusCode:   p.status,
		VersionMajor: p.major,
		VersionMinor: p.minor,
	}
	if err := p.sink.OnHeadersComplete(pro); err != nil {
		return false, err
	}

	if p.mode == ParseResponses {
		switch {
		case p.status == 100:
			// interim response: discard it and parse the real message
			p.sink.OnReset()
			p.restart()
			return false, nil
		case p.status == 101:
			p.upgrade = true
			return true, p.completeMessage()
		}
	}

	if p.mode == ParseRequests && (p.upgradeSeen || string(p.method) == "CONNECT") {
		p.upgrade = true
		return true, p.completeMessage()
	}

	switch {
	case p.chunked:
		p.state = stateChunkSizeStart
		return false, nil
	case p.contentLength > 0:
		p.remain = p.contentLength
		p.state = stateBodyIdentity
		return false, nil
	case p.contentLength == 0:
		return true, p.completeMessage()
	}

	// no declared length
	if p.mode == ParseRequests {
		return true, p.completeMessage()
	}
	if p.status/100 == 1 || p.status == 204 || p.status == 304 {
		return true, p.completeMessage()
	}
	p.state = stateBodyEOF
	return false, nil
}

func (p *Parser) completeMessage() error {
	p.state = stateDone
	return p.sink.OnMessageComplete()
}

// restart rewinds the machine after a discarded interim response.
func (p *Parser) restart() {
	p.state = stateBegin
	p.litIdx = 0
	p.method = p.method[:0]
	p.major = 0
	p.minor = 0
	p.status = 0
	p.statusN = 0
	p.contentLength = -1
	p.remain = 0
	p.chunked = false
	p.upgradeSeen = false
	p.inTrailer = false
	p.fieldBuf = p.fieldBuf[:0]
	p.fieldCut = false
	p.hdrKind = hdrNone
	p.valueBuf = p.valueBuf[:0]
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func lower(c byte) byte {
	if c >= 'A' && c <= 'Z' {
		return c + ('a' - 'A')
	}
	return c
}

func isMethodChar(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || c == '-'
}

func isTargetChar(c byte) bool {
	return c > ' ' && c != 0x7f
}

// isTokenChar reports whether c is an RFC 7230 tchar.
func isTokenChar(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	}
	switch c {
	case '!', '#', '$', '%', '&', '\'', '*', '+', '-', '.', '^', '_', '`', '|', '~':
		return true
	}
	return false
}

func hexValue(c byte) (int, bool) {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0'), true
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10, true
	case c >= 'A' && c <= 'F':
		return int(c-'A') + 10, true
	}
	return 0, false
}

// encodingListContains reports whether a comma-separated coding list
// names the given coding, matching case-insensitively.
func encodingListContains(list, coding string) bool {
	for _, part := range strings.Split(list, ",") {
		if strings.EqualFold(strings.TrimSpace(part), coding) {
			return true
		}
	}
	return false
}
