package router_test

import (
	"bytes"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nullstream/asyncweb/httpparse"
	"github.com/nullstream/asyncweb/router"
	"github.com/nullstream/asyncweb/transport"
)

func newReq(method httpparse.Method, url string) *httpparse.Request {
	r := httpparse.New()
	r.Method = method
	r.URL = url
	return r
}

func TestDispatchFirstMatchWins(t *testing.T) {
	rt := router.New()

	var hitA, hitB bool
	rt.Use(router.NewCallbackHandler(httpparse.MethodGet, router.MatchPrefix, "/api/", func(req *httpparse.Request) {
		hitA = true
	}))
	rt.Use(router.NewCallbackHandler(httpparse.MethodGet, router.MatchPrefix, "/", func(req *httpparse.Request) {
		hitB = true
	}))

	req := newReq(httpparse.MethodGet, "/api/widgets")
	h := rt.Dispatch(req)
	require.NotNil(t, h)
	h.HandleRequest(req)

	assert.True(t, hitA)
	assert.False(t, hitB)
}

func TestDispatchFallsBackToDefault(t *testing.T) {
	rt := router.New()
	var defaultHit bool
	rt.DefaultHandler = router.NewCallbackHandler(httpparse.MethodAny, router.MatchPrefix, "", func(req *httpparse.Request) {
		defaultHit = true
	})

	req := newReq(httpparse.MethodGet, "/nowhere")
	h := rt.Dispatch(req)
	require.NotNil(t, h)
	h.HandleRequest(req)
	assert.True(t, defaultHit)
}

func TestDispatchMethodMismatchSkipsHandler(t *testing.T) {
	rt := router.New()
	rt.Use(router.NewCallbackHandler(httpparse.MethodPost, router.MatchExact, "/submit", func(req *httpparse.Request) {}))

	req := newReq(httpparse.MethodGet, "/submit")
	h := rt.Dispatch(req)
	assert.Nil(t, h)
}

func TestRegexCaptureBecomesPathParams(t *testing.T) {
	rt := router.New()
	re := regexp.MustCompile(`^/users/(\d+)$`)
	var captured []string
	rt.Use(router.NewRegexCallbackHandler(httpparse.MethodGet, re, func(req *httpparse.Request) {
		captured = append([]string(nil), req.PathParams...)
	}))

	req := newReq(httpparse.MethodGet, "/users/42")
	h := rt.Dispatch(req)
	require.NotNil(t, h)
	h.HandleRequest(req)

	require.Len(t, captured, 1)
	assert.Equal(t, "42", captured[0])
}

func TestRewriteAppliesBeforeDispatch(t *testing.T) {
	rt := router.New()
	rt.AddRewriteRule(router.NewRewriteRule("/old", "/new?src=rewrite"))

	var handledURL string
	rt.Use(router.NewCallbackHandler(httpparse.MethodGet, router.MatchExact, "/new", func(req *httpparse.Request) {
		handledURL = req.URL
	}))

	req := newReq(httpparse.MethodGet, "/old")
	rt.Rewrite(req)
	h := rt.Dispatch(req)
	require.NotNil(t, h)
	h.HandleRequest(req)

	assert.Equal(t, "/new", handledURL)
	require.Len(t, req.Params, 1)
	assert.Equal(t, "src", req.Params[0].Name)
	assert.Equal(t, "rewrite", req.Params[0].Value)
}

func TestExactMatchAllowsTrailingSlash(t *testing.T) {
	rt := router.New()
	var hit bool
	rt.Use(router.NewCallbackHandler(httpparse.MethodGet, router.MatchExact, "/about", func(req *httpparse.Request) {
		hit = true
	}))

	req := newReq(httpparse.MethodGet, "/about/")
	h := rt.Dispatch(req)
	require.NotNil(t, h)
	h.HandleRequest(req)
	assert.True(t, hit)
}

func TestExactMatchAllowsArbitraryNestedDepth(t *testing.T) {
	rt := router.New()
	var hit bool
	rt.Use(router.NewCallbackHandler(httpparse.MethodGet, router.MatchExact, "/about", func(req *httpparse.Request) {
		hit = true
	}))

	req := newReq(httpparse.MethodGet, "/about/nested/path")
	h := rt.Dispatch(req)
	require.NotNil(t, h)
	h.HandleRequest(req)
	assert.True(t, hit)
}

func TestRewriteAppliesEveryMatchingRuleExactly(t *testing.T) {
	rt := router.New()
	rt.AddRewriteRule(router.NewRewriteRule("/old", "/mid"))
	rt.AddRewriteRule(router.NewRewriteRule("/mid", "/new"))
	// Should not fire: exact match only, "/oldXYZ" != "/old".
	rt.AddRewriteRule(router.NewRewriteRule("/oldXYZ", "/wrong"))

	req := newReq(httpparse.MethodGet, "/old")
	rt.Rewrite(req)
	assert.Equal(t, "/new", req.URL)
}

func TestRewriteExactMatchDoesNotMatchAsPrefix(t *testing.T) {
	rt := router.New()
	rt.AddRewriteRule(router.NewRewriteRule("/old", "/new"))

	req := newReq(httpparse.MethodGet, "/oldXYZ")
	rt.Rewrite(req)
	assert.Equal(t, "/oldXYZ", req.URL)
}

func TestCallbackHandlerRequiresBasicAuth(t *testing.T) {
	rt := router.New()
	var called bool
	h := router.NewCallbackHandler(httpparse.MethodGet, router.MatchExact, "/admin", func(req *httpparse.Request) {
		called = true
	})
	h.Username = "admin"
	h.Password = "hunter2"
	rt.Use(h)

	conn := &noopConn{}
	req := httpparse.New()
	req.Bind(conn, rt)
	req.Method = httpparse.MethodGet
	req.URL = "/admin"

	matched := rt.Dispatch(req)
	require.NotNil(t, matched)
	matched.HandleRequest(req)

	assert.False(t, called)
	assert.Contains(t, conn.out.String(), "401")
	assert.Contains(t, conn.out.String(), `WWW-Authenticate: Basic realm="Login Required"`)
}

// noopConn is a minimal transport.Conn double that records everything
// written, for tests that need to inspect a handler's response bytes
// without a real socket.
type noopConn struct{ out bytes.Buffer }

func (c *noopConn) Close() error { return nil }
func (c *noopConn) Send() error  { return nil }
func (c *noopConn) Add(buf []byte, _ transport.AddFlag) error {
	c.out.Write(buf)
	return nil
}
func (c *noopConn) Write(buf []byte, _ transport.AddFlag) (int, error) {
	c.out.Write(buf)
	return len(buf), nil
}
func (c *noopConn) SendBufferFree() int         { return 1 << 20 }
func (c *noopConn) TaskID() uint64              { return 1 }
func (c *noopConn) RemoteIP() string            { return "127.0.0.1" }
func (c *noopConn) RemotePort() int             { return 1 }
func (c *noopConn) SetRxTimeoutSeconds(int)     {}
func (c *noopConn) SetDeferAck(bool)            {}
func (c *noopConn) OnDataReceived(func([]byte)) {}
func (c *noopConn) OnAck(func(int, int64))      {}
func (c *noopConn) OnError(func(int))           {}
func (c *noopConn) OnPoll(func())               {}
func (c *noopConn) OnTimeout(func(int64))       {}
func (c *noopConn) OnDisconnected(func())       {}

var _ transport.Conn = (*noopConn)(nil)
