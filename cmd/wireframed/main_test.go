// Copyright (c) 2026 Substrate Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/substratehq/wireframe/server"
)

func startEcho(t *testing.T) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := server.New(echoHandler())
	go srv.Serve(ln)
	t.Cleanup(func() {
		srv.Stop()
	})

	return ln.Addr().String()
}

func roundTrip(t *testing.T, addr, request string) string {
	t.Helper()

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte(request))
	require.NoError(t, err)

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	reply, err := io.ReadAll(conn)
	require.NoError(t, err)
	return string(reply)
}

func TestEchoHandler_BodylessGetIsNotAnError(t *testing.T) {
	addr := startEcho(t)

	reply := roundTrip(t, addr, "GET /x HTTP/1.1\r\nHost: h\r\n\r\n")
	require.Contains(t, reply, "HTTP/1.1 200 OK\r\n")
	require.Contains(t, reply, "GET /x\n")
}

func TestEchoHandler_EchoesTheBody(t *testing.T) {
	addr := startEcho(t)

	reply := roundTrip(t, addr, "POST /u HTTP/1.1\r\nHost: h\r\nContent-Length: 5\r\n\r\nhello")
	require.Contains(t, reply, "HTTP/1.1 200 OK\r\n")
	require.Contains(t, reply, "POST /u\nhello")
}
