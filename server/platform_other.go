//go:build !linux
// +build !linux

package server

import (
	"github.com/nullstream/asyncweb/transport"
	"github.com/nullstream/asyncweb/transport/tcp"
)

func newListener(cfg *Config) (transport.Listener, error) {
	return tcp.NewListener(cfg.ListenAddr)
}
