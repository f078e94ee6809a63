package response

import (
	"sync"

	"github.com/nullstream/asyncweb/httpparse"
)

// defaultHeaders is the process-wide header list every Response seeds
// itself from before any per-response AddHeader calls (spec.md §3, §9),
// grounded on original_source/src/header/DefaultHeaders.cc's Instance()
// singleton. Go has no static-local equivalent of the original's
// function-local Meyers singleton, so it's a package-level slice guarded
// by a mutex instead.
var (
	defaultHeadersMu sync.RWMutex
	defaultHeaders   []httpparse.Header
)

// AddDefaultHeader registers a header sent on every Response built
// afterwards, in addition to any headers the handler adds itself.
// Mirrors DefaultHeaders::addHeader.
func AddDefaultHeader(name, value string) {
	defaultHeadersMu.Lock()
	defer defaultHeadersMu.Unlock()
	defaultHeaders = append(defaultHeaders, httpparse.Header{Name: name, Value: value})
}

// ClearDefaultHeaders removes every registered default header. Mainly
// useful for tests that don't want state leaking across cases, since
// the original has no equivalent (its singleton lives for the process).
func ClearDefaultHeaders() {
	defaultHeadersMu.Lock()
	defer defaultHeadersMu.Unlock()
	defaultHeaders = nil
}

func snapshotDefaultHeaders() []httpparse.Header {
	defaultHeadersMu.RLock()
	defer defaultHeadersMu.RUnlock()
	if len(defaultHeaders) == 0 {
		return nil
	}
	return append([]httpparse.Header(nil), defaultHeaders...)
}
