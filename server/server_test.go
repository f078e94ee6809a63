package server_test

import (
	"bufio"
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nullstream/asyncweb/httpparse"
	"github.com/nullstream/asyncweb/response"
	"github.com/nullstream/asyncweb/router"
	"github.com/nullstream/asyncweb/server"
)

func TestServerServesRegisteredRoute(t *testing.T) {
	rt := router.New()
	rt.Use(router.NewCallbackHandler(httpparse.MethodGet, router.MatchExact, "/hello",
		func(req *httpparse.Request) {
			req.Send(response.NewBasic(200, "text/plain", []byte("hello world")))
		}))

	cfg := server.DefaultConfig()
	cfg.ListenAddr = "127.0.0.1:0"
	cfg.UseEpoll = false

	srv, err := server.New(cfg, rt)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	conn, err := net.DialTimeout("tcp", srv.Addr(), time.Second)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("GET /hello HTTP/1.1\r\nHost: x\r\n\r\n"))
	require.NoError(t, err)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	reader := bufio.NewReader(conn)
	statusLine, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Contains(t, statusLine, "200")

	snap := srv.Metrics().GetSnapshot()
	assert.EqualValues(t, 1, snap["connections.accepted"])
	assert.EqualValues(t, 1, snap["requests.handled"])

	state := srv.DebugProbes().DumpState()
	assert.Contains(t, state, "pool.len")
	assert.EqualValues(t, 1, state["connections.active"])

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("server did not shut down in time")
	}
}

func TestServerSendsConfiguredDefaultHeaders(t *testing.T) {
	response.ClearDefaultHeaders()
	defer response.ClearDefaultHeaders()

	rt := router.New()
	rt.Use(router.NewCallbackHandler(httpparse.MethodGet, router.MatchExact, "/hello",
		func(req *httpparse.Request) {
			req.Send(response.NewBasic(200, "text/plain", []byte("hello world")))
		}))

	cfg := server.DefaultConfig()
	cfg.ListenAddr = "127.0.0.1:0"
	cfg.UseEpoll = false

	srv, err := server.New(cfg, rt, server.WithDefaultHeaders(map[string]string{"Server": "asyncweb"}))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	conn, err := net.DialTimeout("tcp", srv.Addr(), time.Second)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("GET /hello HTTP/1.1\r\nHost: x\r\n\r\n"))
	require.NoError(t, err)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 4096)
	n, err := conn.Read(buf)
	require.NoError(t, err)
	assert.Contains(t, string(buf[:n]), "Server: asyncweb\r\n")

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("server did not shut down in time")
	}
}
