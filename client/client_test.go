// Copyright (c) 2026 Substrate Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package client

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/substratehq/wireframe/message"
	"github.com/substratehq/wireframe/server"
)

func startServer(t *testing.T, h server.Handler) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := server.New(h)
	go srv.Serve(ln)
	t.Cleanup(func() {
		srv.Stop()
	})

	return ln.Addr().String()
}

func TestClient_RoundTrip(t *testing.T) {
	addr := startServer(t, server.HandlerFunc(func(req *message.Incoming, res *message.Outgoing) {
		body, err := req.ReadString()
		require.NoError(t, err)

		res.SetStatus(200)
		res.SetHeader("Content-Type", "text/plain")
		res.WriteString("echo: " + body)
		res.End()
	}))

	c := New()
	resp, err := c.Do(context.Background(), addr, Request{
		Method: "POST",
		Target: "/echo",
		Body:   []byte("hello"),
	})
	require.NoError(t, err)
	defer resp.Close()

	require.Equal(t, 200, resp.StatusCode())
	contentType, ok := resp.Header("Content-Type")
	require.True(t, ok)
	require.Equal(t, "text/plain", contentType)

	body, err := resp.ReadString()
	require.NoError(t, err)
	require.Equal(t, "echo: hello", body)
}

func TestClient_DefaultsHostAndMethod(t *testing.T) {
	addr := startServer(t, server.HandlerFunc(func(req *message.Incoming, res *message.Outgoing) {
		host, _ := req.Header("Host")

		res.SetStatus(200)
		res.SetHeader("X-Saw-Method", req.Method())
		res.SetHeader("X-Saw-Host", host)
		res.End()
	}))

	c := New()
	resp, err := c.Do(context.Background(), addr, Request{Target: "/"})
	require.NoError(t, err)
	defer resp.Close()

	method, _ := resp.Header("X-Saw-Method")
	require.Equal(t, "GET", method)
	host, _ := resp.Header("X-Saw-Host")
	require.Equal(t, "127.0.0.1", host)
}

func TestClient_CircuitTripsAfterConsecutiveFailures(t *testing.T) {
	// Grab a port that nothing listens on.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	c := New(TripCount(2), Timeout(time.Minute))

	_, err = c.Do(context.Background(), addr, Request{Target: "/"})
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrCircuitOpen)

	_, err = c.Do(context.Background(), addr, Request{Target: "/"})
	require.Error(t, err)

	_, err = c.Do(context.Background(), addr, Request{Target: "/"})
	require.ErrorIs(t, err, ErrCircuitOpen)
}

func TestClient_ContextDeadlineBoundsTheDial(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := New()
	_, err := c.Do(ctx, "127.0.0.1:1", Request{Target: "/"})
	require.Error(t, err)
}
