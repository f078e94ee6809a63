// Command asyncwebd is an example hosting program demonstrating how an
// embedding application wires server.Server to a router and a static
// file root. It is not part of the asyncweb core (spec.md §1's
// Non-goals exclude a bundled standalone server binary); it exists to
// exercise the library end to end. Grounded on the cobra root-command
// style in docker-compose/ecs/cmd/main/main.go.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/nullstream/asyncweb/httpparse"
	"github.com/nullstream/asyncweb/response"
	"github.com/nullstream/asyncweb/router"
	"github.com/nullstream/asyncweb/server"
	"github.com/nullstream/asyncweb/staticfs"
	"github.com/nullstream/asyncweb/wlog"
	"github.com/nullstream/asyncweb/wsocket"
)

type rootOptions struct {
	listenAddr string
	staticRoot string
	logLevel   logLevelFlag
	useEpoll   bool
}

// logLevelFlag is a pflag.Value wrapping a logrus.Level so an invalid
// --log-level is rejected at flag-parse time with the full set of valid
// level names, rather than deferred to a separate parse step in run().
type logLevelFlag struct {
	level logrus.Level
}

func (f *logLevelFlag) String() string {
	return f.level.String()
}

func (f *logLevelFlag) Set(s string) error {
	lvl, err := logrus.ParseLevel(s)
	if err != nil {
		return err
	}
	f.level = lvl
	return nil
}

func (f *logLevelFlag) Type() string { return "level" }

var _ pflag.Value = (*logLevelFlag)(nil)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{logLevel: logLevelFlag{level: logrus.InfoLevel}}
	cmd := &cobra.Command{
		Use:   "asyncwebd",
		Short: "Example asyncweb hosting program",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(opts)
		},
	}
	cmd.Flags().StringVar(&opts.listenAddr, "listen", ":8080", "address to listen on")
	cmd.Flags().StringVar(&opts.staticRoot, "static-root", "", "directory to serve static files from, empty disables")
	cmd.Flags().Var(&opts.logLevel, "log-level", "logrus level: debug, info, warn, error")
	cmd.Flags().BoolVar(&opts.useEpoll, "epoll", true, "use the Linux epoll listener when available")
	return cmd
}

func run(opts *rootOptions) error {
	logger := logrus.New()
	logger.SetLevel(opts.logLevel.level)
	wlog.SetLogger(logger)

	rt := router.New()
	rt.Use(router.NewCallbackHandler(httpparse.MethodGet, router.MatchExact, "/healthz",
		func(req *httpparse.Request) {
			req.Send(response.NewBasic(200, "text/plain", []byte("ok")))
		}))

	ws := wsocket.NewHandler("/ws", 0, 32)
	ws.OnConnect = func(client *wsocket.Client) {
		client.OnMessage = func(c *wsocket.Client, opcode wsocket.Opcode, payload []byte) {
			_ = c.SendBuffer(opcode, wsocket.NewMessageBuffer(
				wsocket.EncodeFrame(true, opcode, payload, false), 1))
		}
	}
	rt.Use(ws)

	if opts.staticRoot != "" {
		fs := staticfs.New("/", opts.staticRoot)
		fs.DefaultFile = "index.html"
		rt.DefaultHandler = fs
	}

	cfg := server.DefaultConfig()
	cfg.ListenAddr = opts.listenAddr
	cfg.UseEpoll = opts.useEpoll

	srv, err := server.New(cfg, rt)
	if err != nil {
		return fmt.Errorf("starting listener: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.WithField("addr", srv.Addr()).Info("asyncwebd: listening")
	return srv.Run(ctx)
}
