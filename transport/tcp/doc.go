// Package tcp implements transport.Conn and transport.Listener over real
// TCP sockets: a portable goroutine-driven Listener (listener.go) plus,
// on Linux, an epoll-multiplexed Listener (listener_linux.go) that polls
// many connections' readability from a single goroutine.
package tcp
