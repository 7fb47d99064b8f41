package httpx

import (
	"bufio"
	"log"
	"net"
	"runtime/debug"

	"static-httpd/docroot"
)

// connState carries one connection through the request states.
type connState struct {
	conn   net.Conn
	br     *bufio.Reader
	cfg    Config
	logger *log.Logger

	req   *Request
	path  string
	res   docroot.Resource
	out   *Response
	wrote bool
}

type stateFunc func(*connState) stateFunc

// ServeConn handles exactly one request on conn and closes it.
func ServeConn(conn net.Conn, cfg Config, logger *log.Logger) {
	defer conn.Close()

	c := &connState{
		conn:   conn,
		br:     bufio.NewReader(conn),
		cfg:    cfg,
		logger: logger,
	}
	defer func() {
		if p := recover(); p != nil {
			c.logf("panic serving %s: %v\n%s", conn.RemoteAddr(), p, debug.Stack())
			if !c.wrote {
				c.out = errorResponse(StatusBadRequest, "")
				sendResponse(c)
			}
		}
	}()

	for state := readRequest; state != nil; {
		state = state(c)
	}
}

func (c *connState) logf(format string, args ...any) {
	if c.logger != nil {
		c.logger.Printf(format, args...)
	}
}

func (c *connState) fail(s Status, detail string) stateFunc {
	c.out = errorResponse(s, detail)
	return sendResponse
}

// failLookup maps a docroot error kind to its response.
func (c *connState) failLookup(err error) stateFunc {
	if docroot.KindOf(err) == docroot.NotFound {
		return c.fail(StatusNotFound, c.req.Target)
	}
	c.logf("%s %s: %v", c.req.Method, c.req.Target, err)
	return c.fail(StatusBadRequest, "")
}

// state funcs

func readRequest(c *connState) stateFunc {
	if c.cfg.ReadTimeout > 0 {
		c.conn.SetReadDeadline(now().Add(c.cfg.ReadTimeout))
	}
	req, err := ReadRequest(c.br)
	if err != nil {
		c.logf("%s bad request: %v", c.conn.RemoteAddr(), err)
		return c.fail(StatusBadRequest, "")
	}
	c.req = req
	return validateMethod
}

func validateMethod(c *connState) stateFunc {
	switch c.req.Method {
	case MethodGet, MethodHead:
		return resolvePath
	}
	return c.fail(StatusNotImplemented, string(c.req.Method))
}

func resolvePath(c *connState) stateFunc {
	c.path = c.cfg.Root.Resolve(c.req.Target)
	return statResource
}

func statResource(c *connState) stateFunc {
	res, err := c.cfg.Root.StatPath(c.path)
	if err != nil {
		return c.failLookup(err)
	}
	c.res = res
	if c.req.Method == MethodHead {
		return serveHead
	}
	return checkModified
}

func serveHead(c *connState) stateFunc {
	c.out = fileResponse(c.res, nil)
	return sendResponse
}

func checkModified(c *connState) stateFunc {
	if c.req.HasIfModifiedSince && !modifiedSince(c.res, c.req) {
		return c.fail(StatusNotModified, "")
	}
	return serveFile
}

// modifiedSince compares at full precision; only a strictly later mtime
// counts as modified.
func modifiedSince(res docroot.Resource, req *Request) bool {
	return res.ModTime.After(req.IfModifiedSince)
}

func serveFile(c *connState) stateFunc {
	data, err := c.cfg.Root.ReadAll(c.res)
	if err != nil {
		return c.failLookup(err)
	}
	c.out = fileResponse(c.res, data)
	return sendResponse
}

func sendResponse(c *connState) stateFunc {
	c.wrote = true
	if c.cfg.WriteTimeout > 0 {
		c.conn.SetWriteDeadline(now().Add(c.cfg.WriteTimeout))
	}
	err := WriteResponse(c.conn, c.out, c.cfg.ServerName)

	method, target := "-", "-"
	if c.req != nil {
		method, target = string(c.req.Method), c.req.Target
	}
	if err != nil {
		c.logf("%s %s %q -> %d write error: %v", c.conn.RemoteAddr(), method, target, c.out.Status, err)
		return nil
	}
	c.logf("%s %s %q -> %d (%d bytes)", c.conn.RemoteAddr(), method, target, c.out.Status, len(c.out.Body))
	return nil
}
