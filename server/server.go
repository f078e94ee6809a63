package server

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/nullstream/asyncweb/control"
	"github.com/nullstream/asyncweb/httpparse"
	"github.com/nullstream/asyncweb/response"
	"github.com/nullstream/asyncweb/router"
	"github.com/nullstream/asyncweb/transport"
	"github.com/nullstream/asyncweb/wlog"
)

// Server accepts connections on a transport.Listener, binds each one to
// a pooled httpparse.Request, and drives that request's parser and
// response pump entirely from the connection's callbacks (spec.md §5).
type Server struct {
	cfg      *Config
	router   *router.Router
	pool     *httpparse.Pool
	listener transport.Listener

	configStore *control.ConfigStore
	metrics     *control.MetricsRegistry
	debug       *control.DebugProbes

	activeConns int64

	shutdownOnce sync.Once
	shutdownCh   chan struct{}
	acceptDone   chan struct{}
}

// Option customizes Server construction (teacher's functional-options
// pattern, see server/options.go).
type Option func(*Server)

// WithConfigStore wires a live control.ConfigStore: response template
// defaults are synced from it at startup and on every reload.
func WithConfigStore(cs *control.ConfigStore) Option {
	return func(s *Server) { s.configStore = cs }
}

// WithDefaultHeaders registers headers sent on every response this
// server builds, via response.AddDefaultHeader (spec.md §9's explicit-
// injection guidance for the process-wide default-headers singleton).
func WithDefaultHeaders(headers map[string]string) Option {
	return func(s *Server) {
		for name, value := range headers {
			response.AddDefaultHeader(name, value)
		}
	}
}

// New builds a Server bound to rt, ready for Run. cfg may be nil to use
// DefaultConfig.
func New(cfg *Config, rt *router.Router, opts ...Option) (*Server, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	ln, err := newListener(cfg)
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:        cfg,
		router:     rt,
		pool:       httpparse.NewPool(cfg.PoolCapacity),
		listener:   ln,
		metrics:    control.NewMetricsRegistry(),
		debug:      control.NewDebugProbes(),
		shutdownCh: make(chan struct{}),
		acceptDone: make(chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	if s.configStore == nil {
		s.configStore = control.NewConfigStore()
	}
	s.debug.RegisterProbe("pool.len", func() any { return s.pool.Len() })
	s.debug.RegisterProbe("connections.active", func() any { return atomic.LoadInt64(&s.activeConns) })
	return s, nil
}

// Metrics returns the server's runtime counter registry
// (connections.accepted, requests.handled, requests.parse_failed); the
// active connection count is a debug probe, not a counter here.
func (s *Server) Metrics() *control.MetricsRegistry { return s.metrics }

// DebugProbes returns the server's registered internal-state probes
// (pool occupancy, active connection count).
func (s *Server) DebugProbes() *control.DebugProbes { return s.debug }

// Addr reports the bound listen address.
func (s *Server) Addr() string { return s.listener.Addr() }

// ConfigStore returns the live configuration store backing this server.
func (s *Server) ConfigStore() *control.ConfigStore { return s.configStore }

// Run applies the current configuration, starts the accept loop, and
// blocks until Shutdown is called or ctx is canceled.
func (s *Server) Run(ctx context.Context) error {
	s.syncTemplateDefaults(s.configStore.Snapshot())
	s.configStore.OnReload(func(cfg *control.Config) { s.syncTemplateDefaults(*cfg) })

	wlog.Logger().WithFields(wlog.Fields{"addr": s.Addr()}).Info("asyncweb: listening")

	go s.acceptLoop()

	select {
	case <-ctx.Done():
		return s.Shutdown()
	case <-s.shutdownCh:
		<-s.acceptDone
		return nil
	}
}

func (s *Server) syncTemplateDefaults(cfg control.Config) {
	response.SetTemplateDefaults(cfg.TemplatePlaceholder, cfg.TemplateParamNameLen)
}

func (s *Server) acceptLoop() {
	defer close(s.acceptDone)
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.shutdownCh:
				return
			default:
				wlog.Logger().WithFields(wlog.Fields{"err": err}).Warn("asyncweb: accept failed")
				continue
			}
		}
		s.handleConn(conn)
	}
}

// handleConn wires a freshly accepted connection's callbacks to a pooled
// Request's parser and response pump (spec.md §5's connection
// lifecycle). It returns immediately; everything afterwards happens on
// the connection's own callback stream.
func (s *Server) handleConn(conn transport.Conn) {
	req := s.pool.Allocate()
	req.Bind(conn, s.router)
	conn.SetRxTimeoutSeconds(s.cfg.RxTimeoutSeconds)

	s.metrics.Inc("connections.accepted", 1)
	atomic.AddInt64(&s.activeConns, 1)

	conn.OnDataReceived(func(data []byte) {
		req.Feed(data)
		if req.State == httpparse.StateFail {
			s.metrics.Inc("requests.parse_failed", 1)
			wlog.Logger().WithFields(wlog.Fields{
				"err":  req.Err,
				"peer": conn.RemoteIP(),
			}).Debug("asyncweb: request parse failed")
			_ = conn.Close()
			return
		}
		if req.Response() != nil {
			s.metrics.Inc("requests.handled", 1)
			s.settle(conn, req.LastAck())
		}
	})
	conn.OnAck(func(n int, timeMs int64) {
		resp := req.Response()
		if resp == nil {
			return
		}
		s.settle(conn, resp.Ack(req, n, timeMs))
	})
	conn.OnTimeout(func(int64) {
		_ = conn.Close()
	})
	conn.OnDisconnected(func() {
		atomic.AddInt64(&s.activeConns, -1)
		req.OnDisconnect()
		s.pool.Recycle(req)
	})
}

// settle acts on a response pump's AckResult: close the connection once
// the response is fully flushed, or leave it alone for a WebSocket
// handoff (spec.md §4.6) to take over.
func (s *Server) settle(conn transport.Conn, result httpparse.AckResult) {
	switch result {
	case httpparse.AckFinishedClose:
		_ = conn.Close()
	case httpparse.AckFinishedHandoff, httpparse.AckContinue:
		// AckFinishedHandoff: wsocket.Handler already replaced this
		// conn's callbacks with its own Client; nothing left to do.
		// AckContinue: more of the response is queued, waiting for the
		// next Ack.
	}
}

// Shutdown stops accepting new connections and waits (up to
// cfg.ShutdownTimeout) for the accept loop to exit.
func (s *Server) Shutdown() error {
	var result *multierror.Error
	s.shutdownOnce.Do(func() {
		close(s.shutdownCh)
		if err := s.listener.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	})

	select {
	case <-s.acceptDone:
	case <-time.After(s.cfg.ShutdownTimeout):
		result = multierror.Append(result, context.DeadlineExceeded)
	}
	return result.ErrorOrNil()
}
