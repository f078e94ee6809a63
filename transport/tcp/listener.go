// Copyright (c) 2025

// Package tcp provides a concrete, runnable transport.Conn over real TCP
// sockets. Listener here accepts plain TCP connections; the HTTP/1.x
// request line and WebSocket upgrade handshake are parsed by httpparse
// and wsocket, not duplicated at the transport layer, so every
// connection — HTTP or WebSocket — goes through the same request state
// machine spec.md §4 describes.
package tcp

import (
	"net"

	"github.com/nullstream/asyncweb/transport"
)

// Listener accepts plain TCP connections and wraps each as a
// goroutine-driven transport.Conn. It requires no platform-specific
// syscalls and is the default used by server.Server when no epoll
// Listener (Linux-only, see listener_linux.go) is requested.
type Listener struct {
	ln net.Listener
}

// NewListener listens on addr ("host:port") and returns a portable Listener.
func NewListener(addr string) (*Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Listener{ln: ln}, nil
}

// Accept blocks until a new TCP connection arrives and returns it wrapped
// as a transport.Conn.
func (l *Listener) Accept() (transport.Conn, error) {
	nc, err := l.ln.Accept()
	if err != nil {
		return nil, err
	}
	if tc, ok := nc.(*net.TCPConn); ok {
		_ = tc.SetNoDelay(true)
	}
	return newConn(nc, false), nil
}

// Close shuts down the listening socket.
func (l *Listener) Close() error { return l.ln.Close() }

// Addr reports the bound local address.
func (l *Listener) Addr() string { return l.ln.Addr().String() }

var _ transport.Listener = (*Listener)(nil)
