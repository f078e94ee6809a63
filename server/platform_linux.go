//go:build linux
// +build linux

package server

import (
	"github.com/nullstream/asyncweb/transport"
	"github.com/nullstream/asyncweb/transport/tcp"
)

func newListener(cfg *Config) (transport.Listener, error) {
	if cfg.UseEpoll {
		return tcp.NewEpollListener(cfg.ListenAddr)
	}
	return tcp.NewListener(cfg.ListenAddr)
}
