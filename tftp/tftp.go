// Package tftp mirrors the document root read-only over TFTP.
package tftp

import (
	"io"
	"log"
	"net"
	"strings"
	"time"

	tftp "github.com/pin/tftp/v3"

	"static-httpd/docroot"
)

const DefaultTimeout = 5 * time.Second

func serveFile(root *docroot.Root, filename string, rf io.ReaderFrom) (int64, error) {
	f, res, err := root.Open(filename)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	if ot, ok := rf.(tftp.OutgoingTransfer); ok {
		ot.SetSize(res.Size)
	}
	return rf.ReadFrom(f)
}

// NewServer returns a TFTP server resolving filenames the way the HTTP server
// resolves targets: a leading "/" is optional and a trailing "/" names the
// index file. Write requests are refused.
func NewServer(root *docroot.Root, logger *log.Logger) *tftp.Server {
	readHandler := func(filename string, rf io.ReaderFrom) error {
		name := strings.TrimSpace(filename)
		peer := "-"
		if ot, ok := rf.(tftp.OutgoingTransfer); ok {
			raddr := ot.RemoteAddr()
			peer = raddr.String()
		}
		n, err := serveFile(root, name, rf)
		if logger != nil {
			if err != nil {
				logger.Printf("%s RRQ %q -> %s: %v", peer, name, root.Resolve(name), err)
			} else {
				logger.Printf("%s RRQ %q -> %s (%d bytes)", peer, name, root.Resolve(name), n)
			}
		}
		return err
	}

	// Write handler not used.
	srv := tftp.NewServer(readHandler, nil)
	srv.SetTimeout(DefaultTimeout)
	return srv
}

// StartTFTPServer listens on addr (":69" when empty) and serves in the background.
func StartTFTPServer(addr string, root *docroot.Root, logger *log.Logger) (*tftp.Server, net.Addr, error) {
	if addr == "" {
		addr = ":69"
	}
	uaddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, nil, err
	}
	conn, err := net.ListenUDP("udp", uaddr)
	if err != nil {
		return nil, nil, err
	}
	srv := NewServer(root, logger)
	go func() {
		if logger != nil {
			logger.Printf("TFTP server listening on %s, root=%q", conn.LocalAddr(), root.Dir())
		}
		if err := srv.Serve(conn); err != nil && logger != nil {
			logger.Printf("TFTP server error: %v", err)
		}
	}()
	return srv, conn.LocalAddr(), nil
}
