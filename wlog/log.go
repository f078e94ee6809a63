// Package wlog provides the structured logger injected throughout
// asyncweb. It replaces the teacher's ad-hoc fmt.Printf("[LOG] ...")
// style (see highlevel/server.go's LoggingMiddleware/MetricsMiddleware
// in the reference pack) with github.com/sirupsen/logrus, the logging
// library the rest of the retrieved pack (docker-compose) uses.
package wlog

import (
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	mu      sync.RWMutex
	current = newDefault()
)

func newDefault() *logrus.Logger {
	l := logrus.New()
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	l.SetOutput(os.Stderr)
	l.SetLevel(logrus.InfoLevel)
	return l
}

// Logger returns the process-wide logger. Safe for concurrent use.
func Logger() *logrus.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// SetLogger replaces the process-wide logger, e.g. from cmd/asyncwebd
// after parsing --log-level.
func SetLogger(l *logrus.Logger) {
	mu.Lock()
	defer mu.Unlock()
	current = l
}

// Fields is a short alias so call sites read like logrus.Fields without
// an extra import.
type Fields = logrus.Fields
