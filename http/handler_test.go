package httpx

import (
	"bytes"
	"errors"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"static-httpd/docroot"
)

type mockAddr struct {
	str string
}

func (m mockAddr) Network() string { return "" }
func (m mockAddr) String() string  { return m.str }

// mockConn replays in as the client's request and records what is written.
type mockConn struct {
	in       *strings.Reader
	out      bytes.Buffer
	closed   bool
	deadline time.Time
}

func newMockConn(request string) *mockConn {
	return &mockConn{in: strings.NewReader(request)}
}

func (m *mockConn) Read(b []byte) (int, error)         { return m.in.Read(b) }
func (m *mockConn) Write(b []byte) (int, error)        { return m.out.Write(b) }
func (m *mockConn) Close() error                       { m.closed = true; return nil }
func (m *mockConn) LocalAddr() net.Addr                { return mockAddr{"(server)"} }
func (m *mockConn) RemoteAddr() net.Addr               { return mockAddr{"(client)"} }
func (m *mockConn) SetDeadline(t time.Time) error      { m.deadline = t; return nil }
func (m *mockConn) SetReadDeadline(t time.Time) error  { m.deadline = t; return nil }
func (m *mockConn) SetWriteDeadline(t time.Time) error { m.deadline = t; return nil }

type rawResponse struct {
	statusLine string
	headers    map[string]string
	body       string
}

func parseRawResponse(t *testing.T, s string) rawResponse {
	t.Helper()
	head, body, ok := strings.Cut(s, "\r\n\r\n")
	require.True(t, ok, "no header terminator in %q", s)
	lines := strings.Split(head, "\r\n")
	r := rawResponse{statusLine: lines[0], headers: map[string]string{}, body: body}
	for _, l := range lines[1:] {
		name, value, ok := strings.Cut(l, ": ")
		require.True(t, ok, "bad header line %q", l)
		r.headers[name] = value
	}
	return r
}

var fileTime = time.Date(2024, 1, 7, 10, 0, 0, 0, time.UTC)

func newTestConfig(t *testing.T) Config {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"index.html":      "<h1>home</h1>\n",
		"hello.txt":       "Hello, World!",
		"docs/index.html": "<h1>docs</h1>",
		"empty.txt":       "",
	}
	for name, content := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
		require.NoError(t, os.Chtimes(p, fileTime, fileTime))
	}
	root, err := docroot.New(dir, "index.html")
	require.NoError(t, err)
	return Config{Port: 8080, Root: root, ReadTimeout: time.Second, WriteTimeout: time.Second}
}

func serve(t *testing.T, cfg Config, request string) rawResponse {
	t.Helper()
	conn := newMockConn(request)
	ServeConn(conn, cfg, nil)
	assert.True(t, conn.closed, "connection must be closed")
	return parseRawResponse(t, conn.out.String())
}

func TestServeGet(t *testing.T) {
	cfg := newTestConfig(t)
	res := serve(t, cfg, "GET /hello.txt HTTP/1.1\r\nHost: localhost\r\n\r\n")

	assert.Equal(t, "HTTP/1.1 200 OK", res.statusLine)
	assert.Equal(t, "Hello, World!", res.body)
	assert.Equal(t, strconv.Itoa(len("Hello, World!")), res.headers["Content-Length"])
	assert.Equal(t, "Sun Jan 07 10:00:00 GMT 2024", res.headers["Last-Modified"])
	assert.Equal(t, DefaultServerName, res.headers["Server"])
	assert.NotEmpty(t, res.headers["Date"])
}

func TestServeHeaderOrder(t *testing.T) {
	cfg := newTestConfig(t)
	conn := newMockConn("GET /hello.txt HTTP/1.1\r\n\r\n")
	ServeConn(conn, cfg, nil)

	out := conn.out.String()
	order := []string{"HTTP/1.1 200 OK\r\n", "Server: ", "Date: ", "Last-Modified: ", "Content-Length: ", "\r\n\r\nHello"}
	pos := 0
	for _, s := range order {
		i := strings.Index(out[pos:], s)
		require.GreaterOrEqual(t, i, 0, "%q missing or out of order", s)
		pos += i + len(s)
	}
}

func TestServeHead(t *testing.T) {
	cfg := newTestConfig(t)
	get := serve(t, cfg, "GET /hello.txt HTTP/1.1\r\n\r\n")
	head := serve(t, cfg, "HEAD /hello.txt HTTP/1.1\r\n\r\n")

	assert.Equal(t, "HTTP/1.1 200 OK", head.statusLine)
	assert.Empty(t, head.body)
	assert.Equal(t, get.headers["Content-Length"], head.headers["Content-Length"])
	assert.Equal(t, get.headers["Last-Modified"], head.headers["Last-Modified"])
}

func TestServeHeadIgnoresIfModifiedSince(t *testing.T) {
	cfg := newTestConfig(t)
	res := serve(t, cfg, "HEAD /hello.txt HTTP/1.1\r\nIf-Modified-Since: Mon Jan 01 00:00:00 GMT 2035\r\n\r\n")
	assert.Equal(t, "HTTP/1.1 200 OK", res.statusLine)
}

func TestServeConditionalGet(t *testing.T) {
	cfg := newTestConfig(t)
	cases := []struct {
		ims    string
		status string
	}{
		{"Sun Jan 07 10:00:00 GMT 2024", "HTTP/1.1 304 Not Modified"},
		{"Sun Jan 07 10:00:01 GMT 2024", "HTTP/1.1 304 Not Modified"},
		{"Mon Jan 01 00:00:00 GMT 2035", "HTTP/1.1 304 Not Modified"},
		{"Sun Jan 07 09:59:59 GMT 2024", "HTTP/1.1 200 OK"},
		{"Thu Jan 01 00:00:00 GMT 1970", "HTTP/1.1 200 OK"},
		{"Sun Jan 07 06:00:00 EST 2024", "HTTP/1.1 304 Not Modified"},
		{"Sun Jan 07 04:59:59 EST 2024", "HTTP/1.1 200 OK"},
	}
	plain := serve(t, cfg, "GET /hello.txt HTTP/1.1\r\n\r\n")
	for _, c := range cases {
		t.Run(c.ims, func(t *testing.T) {
			res := serve(t, cfg, "GET /hello.txt HTTP/1.1\r\nIf-Modified-Since: "+c.ims+"\r\n\r\n")
			assert.Equal(t, c.status, res.statusLine)
			if c.status == "HTTP/1.1 200 OK" {
				assert.Equal(t, plain.body, res.body)
				assert.Equal(t, plain.headers["Content-Length"], res.headers["Content-Length"])
			} else {
				assert.Equal(t, string(errorPage(StatusNotModified, "")), res.body)
				assert.NotContains(t, res.headers, "Content-Length")
			}
		})
	}
}

func TestServeLastModifiedRoundTrip(t *testing.T) {
	cfg := newTestConfig(t)
	first := serve(t, cfg, "GET /index.html HTTP/1.1\r\n\r\n")
	res := serve(t, cfg, "GET /index.html HTTP/1.1\r\nIf-Modified-Since: "+first.headers["Last-Modified"]+"\r\n\r\n")
	assert.Equal(t, "HTTP/1.1 304 Not Modified", res.statusLine)
}

func TestServeNotFound(t *testing.T) {
	cfg := newTestConfig(t)
	for _, target := range []string{"/missing.html", "/docs", "/nodir/", "/../../../etc/passwd"} {
		res := serve(t, cfg, "GET "+target+" HTTP/1.1\r\n\r\n")
		assert.Equal(t, "HTTP/1.1 404 Not Found", res.statusLine, target)
		assert.Contains(t, res.body, target)
	}
	res := serve(t, cfg, "HEAD /missing.html HTTP/1.1\r\n\r\n")
	assert.Equal(t, "HTTP/1.1 404 Not Found", res.statusLine)

	// the root's own absolute path is not a prefix that maps back onto the root
	target := filepath.ToSlash(cfg.Root.Dir()) + "/hello.txt"
	res = serve(t, cfg, "GET "+target+" HTTP/1.1\r\n\r\n")
	assert.Equal(t, "HTTP/1.1 404 Not Found", res.statusLine, target)
}

func TestServeNotImplemented(t *testing.T) {
	cfg := newTestConfig(t)
	for _, m := range []string{"POST", "PUT", "DELETE", "OPTIONS"} {
		res := serve(t, cfg, m+" /x HTTP/1.1\r\n\r\n")
		assert.Equal(t, "HTTP/1.1 501 Not Implemented", res.statusLine, m)
		assert.Contains(t, res.body, m)
	}
	res := serve(t, cfg, "post /hello.txt HTTP/1.1\r\n\r\n")
	assert.Contains(t, res.body, "POST")
}

func TestServeBadRequest(t *testing.T) {
	cfg := newTestConfig(t)
	for _, req := range []string{
		"GET\r\n\r\n",
		"GET /hello.txt HTTP/1.1\r\nIf-Modified-Since: not-a-date\r\n\r\n",
		"POST /x HTTP/1.1\r\nIf-Modified-Since: not-a-date\r\n\r\n",
		"GET /hello.txt HTTP/1.1\r\n",
		"",
	} {
		res := serve(t, cfg, req)
		assert.Equal(t, "HTTP/1.1 400 Bad Request", res.statusLine, "%q", req)
		assert.Contains(t, res.body, "Bad Request")
	}
}

func TestServeIndex(t *testing.T) {
	cfg := newTestConfig(t)
	res := serve(t, cfg, "GET / HTTP/1.1\r\n\r\n")
	assert.Equal(t, "HTTP/1.1 200 OK", res.statusLine)
	assert.Equal(t, "<h1>home</h1>\n", res.body)

	res = serve(t, cfg, "GET /docs/ HTTP/1.1\r\n\r\n")
	assert.Equal(t, "<h1>docs</h1>", res.body)
}

func TestServeEmptyFile(t *testing.T) {
	cfg := newTestConfig(t)
	res := serve(t, cfg, "GET /empty.txt HTTP/1.1\r\n\r\n")
	assert.Equal(t, "HTTP/1.1 200 OK", res.statusLine)
	assert.Equal(t, "0", res.headers["Content-Length"])
	assert.Empty(t, res.body)
}

func TestServeIdempotent(t *testing.T) {
	cfg := newTestConfig(t)
	a := serve(t, cfg, "GET /hello.txt HTTP/1.1\r\n\r\n")
	b := serve(t, cfg, "GET /hello.txt HTTP/1.1\r\n\r\n")
	assert.Equal(t, a.body, b.body)
	assert.Equal(t, a.headers["Content-Length"], b.headers["Content-Length"])
}

func TestServeSetsDeadline(t *testing.T) {
	cfg := newTestConfig(t)
	at := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	fixClock(t, at)
	conn := newMockConn("GET /hello.txt HTTP/1.1\r\n\r\n")
	ServeConn(conn, cfg, nil)
	assert.Equal(t, at.Add(cfg.WriteTimeout), conn.deadline)
}

func TestServeSubSecondModTime(t *testing.T) {
	cfg := newTestConfig(t)
	p := filepath.Join(cfg.Root.Dir(), "hello.txt")
	mtime := fileTime.Add(500 * time.Millisecond)
	require.NoError(t, os.Chtimes(p, mtime, mtime))

	res := serve(t, cfg, "GET /hello.txt HTTP/1.1\r\nIf-Modified-Since: Sun Jan 07 10:00:00 GMT 2024\r\n\r\n")
	assert.Equal(t, "HTTP/1.1 200 OK", res.statusLine)
	assert.Equal(t, "Hello, World!", res.body)
	assert.Equal(t, "Sun Jan 07 10:00:01 GMT 2024", res.headers["Last-Modified"])

	res = serve(t, cfg, "GET /hello.txt HTTP/1.1\r\nIf-Modified-Since: "+res.headers["Last-Modified"]+"\r\n\r\n")
	assert.Equal(t, "HTTP/1.1 304 Not Modified", res.statusLine)
}

var errDisk = errors.New("input/output error")

// faultyFS fails or panics for selected paths and defers to memfs otherwise.
type faultyFS struct {
	billy.Filesystem
	statErr   string
	openErr   string
	statPanic string
}

func (f faultyFS) Stat(name string) (os.FileInfo, error) {
	switch name {
	case f.statErr:
		return nil, errDisk
	case f.statPanic:
		panic("stat " + name)
	}
	return f.Filesystem.Stat(name)
}

func (f faultyFS) Open(name string) (billy.File, error) {
	if name == f.openErr {
		return nil, errDisk
	}
	return f.Filesystem.Open(name)
}

func newFaultyConfig(t *testing.T) Config {
	t.Helper()
	fs := memfs.New()
	for _, name := range []string{"/stat.txt", "/open.txt", "/panic.txt", "/ok.txt"} {
		require.NoError(t, util.WriteFile(fs, name, []byte("data"), 0o644))
	}
	ffs := faultyFS{Filesystem: fs, statErr: "/stat.txt", openErr: "/open.txt", statPanic: "/panic.txt"}
	return Config{Root: docroot.NewFS(ffs, "")}
}

func TestServeIOFailure(t *testing.T) {
	cfg := newFaultyConfig(t)

	res := serve(t, cfg, "GET /ok.txt HTTP/1.1\r\n\r\n")
	assert.Equal(t, "HTTP/1.1 200 OK", res.statusLine)

	for _, req := range []string{
		"GET /stat.txt HTTP/1.1\r\n\r\n",
		"HEAD /stat.txt HTTP/1.1\r\n\r\n",
		"GET /open.txt HTTP/1.1\r\n\r\n",
	} {
		res := serve(t, cfg, req)
		assert.Equal(t, "HTTP/1.1 400 Bad Request", res.statusLine, "%q", req)
		assert.Contains(t, res.body, "Bad Request")
	}
}

func TestServeRecoversPanic(t *testing.T) {
	cfg := newFaultyConfig(t)
	conn := newMockConn("GET /panic.txt HTTP/1.1\r\n\r\n")
	require.NotPanics(t, func() { ServeConn(conn, cfg, nil) })
	assert.True(t, conn.closed)

	res := parseRawResponse(t, conn.out.String())
	assert.Equal(t, "HTTP/1.1 400 Bad Request", res.statusLine)
	assert.Equal(t, 1, strings.Count(conn.out.String(), "HTTP/1.1 "))
}
