// Copyright (c) 2026 Substrate Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package message

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// captureTransport records everything written and how often it was closed.
type captureTransport struct {
	bytes.Buffer
	closed int
}

func (t *captureTransport) Close() error {
	t.closed++
	return nil
}

func TestOutgoing_WireFormat(t *testing.T) {
	transport := &captureTransport{}
	o := NewOutgoing(transport)

	require.NoError(t, o.SetStatus(404))
	require.NoError(t, o.SetHeader("Content-Type", "text/plain"))
	_, err := o.WriteString("nope")
	require.NoError(t, err)
	require.NoError(t, o.End())

	require.Equal(t,
		"HTTP/1.1 404 Not Found\r\nContent-Type: text/plain\r\n\r\nnope",
		transport.String(),
	)
	require.Equal(t, 1, transport.closed)
}

func TestOutgoing_EmptyResponseStillEmitsStatusLine(t *testing.T) {
	transport := &captureTransport{}
	o := NewOutgoing(transport)

	require.NoError(t, o.End())
	require.Equal(t, "HTTP/1.1 200 OK\r\n\r\n", transport.String())
}

func TestOutgoing_EndTwiceFlushesOnce(t *testing.T) {
	transport := &captureTransport{}
	o := NewOutgoing(transport)

	require.NoError(t, o.End())
	require.NoError(t, o.End())

	require.Equal(t, 1, strings.Count(transport.String(), "HTTP/1.1"))
	require.Equal(t, 1, transport.closed)
}

func TestOutgoing_SingleAndMultiStoresAreExclusive(t *testing.T) {
	o := NewOutgoing(&captureTransport{})

	require.NoError(t, o.SetHeader("X-Tag", "one"))
	require.NoError(t, o.SetHeaderValues("X-Tag", []string{"a", "b"}))

	_, single := o.Header("X-Tag")
	require.False(t, single)
	vs, multi := o.HeaderValues("X-Tag")
	require.True(t, multi)
	require.Equal(t, []string{"a", "b"}, vs)

	// and back again
	require.NoError(t, o.SetHeader("X-Tag", "two"))
	_, multi = o.HeaderValues("X-Tag")
	require.False(t, multi)
	v, single := o.Header("X-Tag")
	require.True(t, single)
	require.Equal(t, "two", v)
}

func TestOutgoing_MultiValueOrderOnWire(t *testing.T) {
	transport := &captureTransport{}
	o := NewOutgoing(transport)

	require.NoError(t, o.SetHeaderValues("Set-Cookie", []string{"a=1", "b=2", "c=3"}))
	require.NoError(t, o.End())

	wire := transport.String()
	first := strings.Index(wire, "Set-Cookie: a=1\r\n")
	second := strings.Index(wire, "Set-Cookie: b=2\r\n")
	third := strings.Index(wire, "Set-Cookie: c=3\r\n")
	require.NotEqual(t, -1, first)
	require.NotEqual(t, -1, second)
	require.NotEqual(t, -1, third)
	require.Less(t, first, second)
	require.Less(t, second, third)
}

func TestOutgoing_MutationAfterFlushFailsFast(t *testing.T) {
	o := NewOutgoing(&captureTransport{})
	_, err := o.WriteString("body")
	require.NoError(t, err)

	require.ErrorIs(t, o.SetStatus(500), ErrFlushed)
	require.ErrorIs(t, o.SetHeader("X", "y"), ErrFlushed)
	require.ErrorIs(t, o.SetHeaderValues("X", []string{"y"}), ErrFlushed)
}

func TestOutgoing_WriteAfterEnd(t *testing.T) {
	o := NewOutgoing(&captureTransport{})
	require.NoError(t, o.End())

	_, err := o.WriteString("late")
	require.ErrorIs(t, err, ErrEnded)
}

func TestOutgoing_UnknownStatusHasEmptyReason(t *testing.T) {
	transport := &captureTransport{}
	o := NewOutgoing(transport)

	require.NoError(t, o.SetStatus(799))
	require.NoError(t, o.End())
	require.True(t, strings.HasPrefix(transport.String(), "HTTP/1.1 799 \r\n"))
}

func TestOutgoing_CustomReasonLookup(t *testing.T) {
	transport := &captureTransport{}
	o := NewOutgoing(transport, Reasons(func(code int) string {
		if code == 799 {
			return "Teapot Adjacent"
		}
		return ""
	}))

	require.NoError(t, o.SetStatus(799))
	require.NoError(t, o.End())
	require.True(t, strings.HasPrefix(transport.String(), "HTTP/1.1 799 Teapot Adjacent\r\n"))
}

func TestOutgoing_BodyBytesBypassBufferAfterFlush(t *testing.T) {
	transport := &captureTransport{}
	o := NewOutgoing(transport)

	_, err := o.WriteString("first")
	require.NoError(t, err)
	flushedLen := transport.Len()

	_, err = o.WriteString("second")
	require.NoError(t, err)
	require.Equal(t, flushedLen+len("second"), transport.Len())
}
