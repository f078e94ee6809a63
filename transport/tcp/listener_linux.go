//go:build linux
// +build linux

// Linux epoll-backed Listener: reads for every accepted connection are
// driven by one poller goroutine calling epoll_wait, rather than one
// goroutine-per-connection blocking read. Grounded on the teacher's
// reactor/epoll_reactor.go and reactor/reactor_linux.go, which used the
// identical EpollCreate1/EpollCtl/EpollWait sequence from
// golang.org/x/sys/unix to multiplex readiness across file descriptors.
package tcp

import (
	"net"
	"sync"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/nullstream/asyncweb/transport"
	"github.com/nullstream/asyncweb/wlog"
)

// EpollListener is a Linux-only transport.Listener that multiplexes
// connection reads through a single epoll instance instead of spawning a
// read goroutine per connection.
type EpollListener struct {
	ln   net.Listener
	epfd int

	mu    sync.Mutex
	conns map[int]*epollPeer
}

type epollPeer struct {
	rawConn syscall.RawConn
	c       *conn
}

// NewEpollListener listens on addr and multiplexes reads via epoll.
func NewEpollListener(addr string) (*EpollListener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	epfd, err := unix.EpollCreate1(0)
	if err != nil {
		ln.Close()
		return nil, err
	}
	l := &EpollListener{ln: ln, epfd: epfd, conns: make(map[int]*epollPeer)}
	go l.pollLoop()
	return l, nil
}

func (l *EpollListener) Accept() (transport.Conn, error) {
	nc, err := l.ln.Accept()
	if err != nil {
		return nil, err
	}
	tcpConn, ok := nc.(*net.TCPConn)
	if !ok {
		nc.Close()
		return nil, syscall.EINVAL
	}
	_ = tcpConn.SetNoDelay(true)

	rc, err := tcpConn.SyscallConn()
	if err != nil {
		nc.Close()
		return nil, err
	}

	c := newConn(nc, true)

	var fd int
	rc.Control(func(sysfd uintptr) { fd = int(sysfd) })

	ev := &unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(fd)}
	if err := unix.EpollCtl(l.epfd, unix.EPOLL_CTL_ADD, fd, ev); err != nil {
		wlog.Logger().WithError(err).Warn("asyncweb/transport/tcp: epoll_ctl add failed, falling back to blocking reads")
		go c.readLoop()
		return c, nil
	}

	l.mu.Lock()
	l.conns[fd] = &epollPeer{rawConn: rc, c: c}
	l.mu.Unlock()

	c.addInternalDisconnectHook(func() {
		l.mu.Lock()
		delete(l.conns, fd)
		l.mu.Unlock()
		unix.EpollCtl(l.epfd, unix.EPOLL_CTL_DEL, fd, nil)
	})

	return c, nil
}

func (l *EpollListener) pollLoop() {
	var events [128]unix.EpollEvent
	for {
		n, err := unix.EpollWait(l.epfd, events[:], -1)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return
		}
		for i := 0; i < n; i++ {
			fd := int(events[i].Fd)
			l.mu.Lock()
			peer, ok := l.conns[fd]
			l.mu.Unlock()
			if !ok {
				continue
			}
			l.readReady(fd, peer)
		}
	}
}

func (l *EpollListener) readReady(fd int, peer *epollPeer) {
	buf := make([]byte, 4096)
	var n int
	var readErr error
	err := peer.rawConn.Read(func(sysfd uintptr) bool {
		n, readErr = unix.Read(int(sysfd), buf)
		if readErr == unix.EAGAIN {
			return false // not ready yet, keep waiting for epoll
		}
		return true
	})
	if err != nil {
		return
	}
	if n > 0 {
		peer.c.deliver(append([]byte(nil), buf[:n]...))
	}
	if n == 0 && readErr == nil {
		peer.c.postEvent(peer.c.teardown)
	}
}

func (l *EpollListener) Close() error {
	unix.Close(l.epfd)
	return l.ln.Close()
}

func (l *EpollListener) Addr() string { return l.ln.Addr().String() }

var _ transport.Listener = (*EpollListener)(nil)
