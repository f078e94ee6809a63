// control/config.go
//
// Thread-safe configuration store with dynamic update and hot-reload
// propagation. Adapted from the teacher's generic map[string]any store
// into the fixed set of knobs spec.md §6 names, since asyncweb's runtime
// configuration is closed (queue limits, client caps, template syntax)
// rather than open-ended.

package control

import (
	"sync"

	"github.com/nullstream/asyncweb/wlog"
)

// Defaults for spec.md §6's configuration knobs.
const (
	DefaultWSMaxQueueMessages   = 32
	DefaultMaxWSClients         = 8
	DefaultTemplatePlaceholder  = '%'
	DefaultTemplateParamNameLen = 32
)

// Config is the set of runtime-tunable knobs spec.md §6 names.
type Config struct {
	WSMaxQueueMessages   int
	MaxWSClients         int
	TemplatePlaceholder  byte
	TemplateParamNameLen int
}

// DefaultConfig returns the spec-mandated defaults.
func DefaultConfig() *Config {
	return &Config{
		WSMaxQueueMessages:   DefaultWSMaxQueueMessages,
		MaxWSClients:         DefaultMaxWSClients,
		TemplatePlaceholder:  DefaultTemplatePlaceholder,
		TemplateParamNameLen: DefaultTemplateParamNameLen,
	}
}

// ConfigStore is a dynamic configuration holder with atomic snapshot and
// listener support.
type ConfigStore struct {
	mu        sync.RWMutex
	cfg       *Config
	listeners []func(*Config)
}

// NewConfigStore initializes a new config store seeded with DefaultConfig.
func NewConfigStore() *ConfigStore {
	return &ConfigStore{cfg: DefaultConfig()}
}

// Snapshot returns a copy of the current configuration.
func (cs *ConfigStore) Snapshot() Config {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return *cs.cfg
}

// Set replaces the configuration and dispatches reload to listeners.
func (cs *ConfigStore) Set(cfg Config) {
	cs.mu.Lock()
	cs.cfg = &cfg
	listeners := append([]func(*Config){}, cs.listeners...)
	cs.mu.Unlock()

	cs.dispatchReload(listeners, &cfg)
	wlog.Logger().WithFields(wlog.Fields{
		"ws_max_queue_messages": cfg.WSMaxQueueMessages,
		"max_ws_clients":        cfg.MaxWSClients,
	}).Debug("asyncweb: configuration reloaded")
}

// OnReload registers a listener hook called on config changes.
func (cs *ConfigStore) OnReload(fn func(*Config)) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.listeners = append(cs.listeners, fn)
}

// dispatchReload invokes all listeners on their own goroutine.
func (cs *ConfigStore) dispatchReload(listeners []func(*Config), cfg *Config) {
	for _, fn := range listeners {
		go fn(cfg)
	}
}
