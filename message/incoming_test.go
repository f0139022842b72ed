// Copyright (c) 2026 Substrate Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package message

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/substratehq/wireframe/httpparse"
)

// scriptedTransport serves one scripted chunk per Read call, then
// signals EOF, mimicking a blocking socket's arbitrary fragmentation.
type scriptedTransport struct {
	chunks [][]byte
	reads  int
}

func (t *scriptedTransport) Read(p []byte) (int, error) {
	t.reads++
	if len(t.chunks) == 0 {
		return 0, io.EOF
	}
	n := copy(p, t.chunks[0])
	if n == len(t.chunks[0]) {
		t.chunks = t.chunks[1:]
	} else {
		t.chunks[0] = t.chunks[0][n:]
	}
	return n, nil
}

func chunksOf(ss ...string) *scriptedTransport {
	t := &scriptedTransport{}
	for _, s := range ss {
		t.chunks = append(t.chunks, []byte(s))
	}
	return t
}

func drainBody(t *testing.T, m *Incoming) []byte {
	t.Helper()
	var body []byte
	p := make([]byte, 8)
	for {
		n, err := m.ReadData(p)
		body = append(body, p[:n]...)
		if err == io.EOF {
			return body
		}
		require.NoError(t, err)
	}
}

func TestIncoming_SimpleGet(t *testing.T) {
	m := NewIncoming(chunksOf("GET /x?a=1 HTTP/1.1\r\nHost: h\r\n\r\n"), httpparse.ParseRequests)

	require.NoError(t, m.Parse())
	require.Equal(t, "GET", m.Method())
	major, minor := m.Version()
	require.Equal(t, 1, major)
	require.Equal(t, 1, minor)
	require.Equal(t, "/x?a=1", m.Target())
	require.Equal(t, map[string]string{"Host": "h"}, m.Headers())

	require.Empty(t, drainBody(t, m))
	require.Equal(t, StateMessageComplete, m.State())
}

func TestIncoming_HeaderSplitAcrossReads(t *testing.T) {
	split := NewIncoming(chunksOf("GET / HTTP/1.1\r\nHost: ", "h\r\n\r\n"), httpparse.ParseRequests)
	whole := NewIncoming(chunksOf("GET / HTTP/1.1\r\nHost: h\r\n\r\n"), httpparse.ParseRequests)

	require.NoError(t, split.Parse())
	require.NoError(t, whole.Parse())

	require.Equal(t, whole.Method(), split.Method())
	require.Equal(t, whole.Headers(), split.Headers())
	require.Equal(t, whole.RawHeaders(), split.RawHeaders())
}

func TestIncoming_RawHeadersPreserveDuplicatesAndOrder(t *testing.T) {
	m := NewIncoming(chunksOf(
		"GET / HTTP/1.1\r\n"+
			"Accept: text/html\r\n"+
			"accept: application/json\r\n"+
			"Host: h\r\n\r\n",
	), httpparse.ParseRequests)

	require.NoError(t, m.Parse())

	// the flat map loses the duplicate: last value wins
	v, ok := m.Header("Accept")
	require.True(t, ok)
	require.Equal(t, "application/json", v)

	require.Equal(t, []string{
		"Accept", "text/html",
		"accept", "application/json",
		"Host", "h",
	}, m.RawHeaders())
}

func TestIncoming_ContentLengthBody(t *testing.T) {
	m := NewIncoming(chunksOf(
		"POST /u HTTP/1.1\r\nContent-Length: 11\r\n\r\n",
		"hello",
		" world",
	), httpparse.ParseRequests)

	require.NoError(t, m.Parse())
	require.Equal(t, StateHeadersComplete, m.State())
	require.Equal(t, []byte("hello world"), drainBody(t, m))
	require.Equal(t, StateMessageComplete, m.State())
}

func TestIncoming_ChunkedBodyMatchesContentLength(t *testing.T) {
	plain := NewIncoming(chunksOf(
		"POST / HTTP/1.1\r\nContent-Length: 9\r\n\r\nchunk-one",
	), httpparse.ParseRequests)
	chunked := NewIncoming(chunksOf(
		"POST / HTTP/1.1\r\nTransfer-Encoding: chunked\r\n\r\n",
		"5\r\nchunk\r\n", "4\r\n-one\r\n", "0\r\n\r\n",
	), httpparse.ParseRequests)

	require.NoError(t, plain.Parse())
	require.NoError(t, chunked.Parse())
	require.Equal(t, drainBody(t, plain), drainBody(t, chunked))
}

func TestIncoming_BodyIsReadLazily(t *testing.T) {
	transport := chunksOf(
		"POST / HTTP/1.1\r\nContent-Length: 5\r\n\r\n",
		"abcde",
	)
	m := NewIncoming(transport, httpparse.ParseRequests)

	require.NoError(t, m.Parse())
	readsAfterParse := transport.reads

	// a handler that only inspects headers never pulls the body
	_, ok := m.Header("Content-Length")
	require.True(t, ok)
	require.Equal(t, readsAfterParse, transport.reads)

	require.Equal(t, []byte("abcde"), drainBody(t, m))
	require.Greater(t, transport.reads, readsAfterParse)
}

func TestIncoming_ReadString(t *testing.T) {
	m := NewIncoming(chunksOf(
		"POST / HTTP/1.1\r\nContent-Length: 4\r\n\r\nnope",
	), httpparse.ParseRequests)

	require.NoError(t, m.Parse())

	s, err := m.ReadString()
	require.NoError(t, err)
	require.Equal(t, "nope", s)

	s, err = m.ReadString()
	require.ErrorIs(t, err, io.EOF)
	require.Empty(t, s)
}

func TestIncoming_ShortBodyIsUnexpectedEOF(t *testing.T) {
	m := NewIncoming(chunksOf(
		"POST / HTTP/1.1\r\nContent-Length: 100\r\n\r\n",
		"only a few bytes",
	), httpparse.ParseRequests)

	require.NoError(t, m.Parse())

	_, err := m.ReadData(make([]byte, 64)) // drains the staged bytes
	require.NoError(t, err)

	_, err = m.ReadData(make([]byte, 64))
	var eofErr *UnexpectedEOFError
	require.ErrorAs(t, err, &eofErr)
	require.Equal(t, StateError, m.State())
}

func TestIncoming_EOFBeforeHeaders(t *testing.T) {
	m := NewIncoming(chunksOf("GET / HTTP/1.1\r\nHost"), httpparse.ParseRequests)

	err := m.Parse()
	var eofErr *UnexpectedEOFError
	require.ErrorAs(t, err, &eofErr)
	require.Equal(t, StateError, m.State())
}

func TestIncoming_GrammarViolationIsDesync(t *testing.T) {
	m := NewIncoming(chunksOf("GET / HTTP/1.1\r\nHost : h\r\n\r\n"), httpparse.ParseRequests)

	err := m.Parse()
	var desync *DesyncError
	require.ErrorAs(t, err, &desync)
	require.Less(t, desync.Consumed, desync.Read)
	require.Equal(t, StateError, m.State())
}

func TestIncoming_ParseTwiceIsInternalError(t *testing.T) {
	m := NewIncoming(chunksOf("GET / HTTP/1.1\r\n\r\n"), httpparse.ParseRequests)
	require.NoError(t, m.Parse())

	err := m.Parse()
	var internal *InternalError
	require.ErrorAs(t, err, &internal)
}

func TestIncoming_BodyReadBeforeParse(t *testing.T) {
	m := NewIncoming(chunksOf("GET / HTTP/1.1\r\n\r\n"), httpparse.ParseRequests)

	_, err := m.ReadData(make([]byte, 8))
	var internal *InternalError
	require.ErrorAs(t, err, &internal)
}

func TestIncoming_Response100ContinueDiscardsProvisionalHeaders(t *testing.T) {
	m := NewIncoming(chunksOf(
		"HTTP/1.1 100 Continue\r\nX-Interim: yes\r\n\r\n",
		"HTTP/1.1 200 OK\r\nContent-Length: 2\r\n\r\nok",
	), httpparse.ParseResponses)

	require.NoError(t, m.Parse())
	require.Equal(t, 200, m.StatusCode())

	_, interim := m.Header("X-Interim")
	require.False(t, interim, "provisional headers must be cleared by the reset")

	require.Equal(t, []byte("ok"), drainBody(t, m))
}

func TestIncoming_ResponseBodyUntilClose(t *testing.T) {
	m := NewIncoming(chunksOf(
		"HTTP/1.0 200 OK\r\n\r\n",
		"stream until ",
		"close",
	), httpparse.ParseResponses)

	require.NoError(t, m.Parse())
	require.Equal(t, []byte("stream until close"), drainBody(t, m))
	require.Equal(t, StateMessageComplete, m.State())
}

func TestIncoming_UpgradeSignal(t *testing.T) {
	m := NewIncoming(chunksOf(
		"GET /chat HTTP/1.1\r\nUpgrade: websocket\r\nConnection: Upgrade\r\n\r\n",
	), httpparse.ParseRequests)

	require.NoError(t, m.Parse())
	require.True(t, m.Upgraded())
	require.Equal(t, StateMessageComplete, m.State())
}
