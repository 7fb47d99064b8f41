// Package httpx is a one-request-per-connection HTTP/1.1 static file server.
package httpx

import (
	"errors"
	"fmt"
	"log"
	"net"
	"time"

	"static-httpd/utils"
)

// StartHTTPServer listens on addr (":<cfg.Port>" when empty) and serves
// connections in the background. It returns the listener so the caller can
// stop the server by closing it.
func StartHTTPServer(addr string, cfg Config, logger *log.Logger) (net.Listener, error) {
	cfg, err := cfg.validate()
	if err != nil {
		return nil, err
	}
	if addr == "" {
		addr = fmt.Sprintf(":%d", cfg.Port)
	}
	ln, err := utils.Listen("tcp", addr, cfg.ReusePort)
	if err != nil {
		return nil, err
	}
	go func() {
		if logger != nil {
			logger.Printf("http server listening on %s root=%q index=%q", ln.Addr(), cfg.Root.Dir(), cfg.Root.Index())
		}
		if err := Serve(ln, cfg, logger); err != nil && logger != nil {
			logger.Printf("http serve error: %v", err)
		}
	}()
	return ln, nil
}

// Serve accepts connections on ln until it is closed, handling each on its own
// goroutine. It returns nil once ln is closed.
func Serve(ln net.Listener, cfg Config, logger *log.Logger) error {
	cfg, err := cfg.validate()
	if err != nil {
		return err
	}
	var delay time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			// back off like net/http does on accept failures such as EMFILE
			if delay == 0 {
				delay = 5 * time.Millisecond
			} else if delay *= 2; delay > time.Second {
				delay = time.Second
			}
			if logger != nil {
				logger.Printf("accept error: %v; retrying in %v", err, delay)
			}
			time.Sleep(delay)
			continue
		}
		delay = 0
		go ServeConn(conn, cfg, logger)
	}
}
