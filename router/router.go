package router

import (
	"github.com/nullstream/asyncweb/httpparse"
	"github.com/nullstream/asyncweb/wsutil"
)

// Router is the default httpparse.Router: an ordered handler chain with
// first-match-wins dispatch, preceded by a single rewrite pass, falling
// back to DefaultHandler when nothing matches (spec.md §4.3).
type Router struct {
	handlers *wsutil.List[httpparse.Handler]
	rewrites []RewriteRule

	// DefaultHandler is dispatched when no registered handler's
	// Filter+CanHandle accept the request. May be nil.
	DefaultHandler httpparse.Handler
}

// New creates an empty Router.
func New() *Router {
	return &Router{handlers: wsutil.NewList[httpparse.Handler](nil)}
}

// Use appends h to the end of the dispatch chain. Handlers are tried in
// registration order, so more specific routes should be registered
// before broader catch-alls.
func (rt *Router) Use(h httpparse.Handler) {
	rt.handlers.Add(h)
}

// AddRewriteRule registers a URL rewrite rule, evaluated in registration
// order against every request before dispatch. Named distinctly from
// the httpparse.Router.Rewrite method below, which applies the
// already-registered rules to one *httpparse.Request.
func (rt *Router) AddRewriteRule(rule RewriteRule) {
	rt.rewrites = append(rt.rewrites, rule)
}

// Rewrite implements httpparse.Router: applies every registered rule
// whose from matches req.URL, in registration order (spec.md §4.2 "each
// rule whose from==url … is applied"; original_source's
// internalRewriteRequest never breaks out of its loop).
func (rt *Router) Rewrite(req *httpparse.Request) {
	for _, rule := range rt.rewrites {
		rule.apply(req)
	}
}

// Dispatch implements httpparse.Router: returns the first handler whose
// Filter and CanHandle both accept req, or DefaultHandler. Mirrors
// original_source's AsyncWebServer::internalAttachHandler: falling
// through to DefaultHandler marks every header interesting, since the
// default handler never gets a CanHandle call of its own to register
// the specific ones it wants; a matched handler that reports itself
// IsTrivial gets the same blanket treatment.
func (rt *Router) Dispatch(req *httpparse.Request) httpparse.Handler {
	var found httpparse.Handler
	rt.handlers.ForEach(func(h httpparse.Handler) bool {
		if !h.Filter(req) {
			return true
		}
		if h.CanHandle(req) {
			found = h
			return false
		}
		return true
	})
	if found == nil {
		req.AddInterestingHeader("*")
		return rt.DefaultHandler
	}
	if found.IsTrivial() {
		req.AddInterestingHeader("*")
	}
	return found
}

var _ httpparse.Router = (*Router)(nil)
