package staticfs_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nullstream/asyncweb/httpparse"
	"github.com/nullstream/asyncweb/router"
	"github.com/nullstream/asyncweb/staticfs"
	"github.com/nullstream/asyncweb/transport"
)

type fakeConn struct{ out bytes.Buffer }

func (f *fakeConn) Close() error                       { return nil }
func (f *fakeConn) Send() error                        { return nil }
func (f *fakeConn) Add(buf []byte, _ transport.AddFlag) error {
	f.out.Write(buf)
	return nil
}
func (f *fakeConn) Write(buf []byte, _ transport.AddFlag) (int, error) {
	f.out.Write(buf)
	return len(buf), nil
}
func (f *fakeConn) SendBufferFree() int         { return 1 << 20 }
func (f *fakeConn) TaskID() uint64              { return 1 }
func (f *fakeConn) RemoteIP() string            { return "127.0.0.1" }
func (f *fakeConn) RemotePort() int             { return 1 }
func (f *fakeConn) SetRxTimeoutSeconds(int)     {}
func (f *fakeConn) SetDeferAck(bool)            {}
func (f *fakeConn) OnDataReceived(func([]byte)) {}
func (f *fakeConn) OnAck(func(int, int64))      {}
func (f *fakeConn) OnError(func(int))           {}
func (f *fakeConn) OnPoll(func())               {}
func (f *fakeConn) OnTimeout(func(int64))       {}
func (f *fakeConn) OnDisconnected(func())       {}

func TestStaticHandlerServesFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>hi</h1>"), 0o644))

	h := staticfs.New("/static", dir)
	h.DefaultFile = "index.html"

	conn := &fakeConn{}
	req := httpparse.New()
	req.Bind(conn, nil)
	req.Method = httpparse.MethodGet
	req.URL = "/static/index.html"

	require.True(t, h.CanHandle(req))
	h.HandleRequest(req)

	out := conn.out.String()
	assert.Contains(t, out, "200 OK")
	assert.Contains(t, out, "Content-Type: text/html")
	assert.Contains(t, out, "<h1>hi</h1>")
	assert.Contains(t, out, `Content-Disposition: inline; filename="index.html"`)
}

func TestStaticHandlerDownloadSendsAttachmentDisposition(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "report.csv"), []byte("a,b,c"), 0o644))

	h := staticfs.New("/static", dir)
	h.Download = true

	conn := &fakeConn{}
	req := httpparse.New()
	req.Bind(conn, nil)
	req.Method = httpparse.MethodGet
	req.URL = "/static/report.csv"

	require.True(t, h.CanHandle(req))
	h.HandleRequest(req)

	assert.Contains(t, conn.out.String(), `Content-Disposition: attachment; filename="report.csv"`)
}

func TestStaticHandlerServesGzipOnlyFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt.gz"), []byte("gzip-only-bytes"), 0o644))

	h := staticfs.New("/static", dir)

	conn := &fakeConn{}
	req := httpparse.New()
	req.Bind(conn, nil)
	req.Method = httpparse.MethodGet
	req.URL = "/static/a.txt"

	require.True(t, h.CanHandle(req))

	req.State = httpparse.StateHeaders
	req.Feed([]byte("Accept-Encoding: gzip, deflate\r\n"))
	h.HandleRequest(req)

	out := conn.out.String()
	assert.Contains(t, out, "200 OK")
	assert.Contains(t, out, "Content-Encoding: gzip")
	assert.Contains(t, out, "gzip-only-bytes")
}

func TestStaticHandlerRejectsPathEscape(t *testing.T) {
	dir := t.TempDir()
	h := staticfs.New("/static", dir)

	req := httpparse.New()
	req.Method = httpparse.MethodGet
	req.URL = "/static/../../etc/passwd"

	assert.False(t, h.CanHandle(req))
}

func TestStaticHandlerServesGzipSibling(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.js"), []byte("plain"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.js.gz"), []byte("gzipped-bytes"), 0o644))

	h := staticfs.New("/static", dir)
	rt := router.New()
	rt.DefaultHandler = h

	conn := &fakeConn{}
	req := httpparse.New()
	req.Bind(conn, rt)
	req.Feed([]byte("GET /static/app.js HTTP/1.1\r\nHost: x\r\nAccept-Encoding: gzip, deflate\r\n\r\n"))

	require.Equal(t, httpparse.StateEnd, req.State)
	out := conn.out.String()
	assert.Contains(t, out, "gzipped-bytes")
	assert.Contains(t, out, "Content-Encoding: gzip")
}
