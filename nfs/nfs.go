// Package nfs exports the document root read-only over NFSv3.
package nfs

import (
	"errors"
	"log"
	"net"

	gonfs "github.com/willscott/go-nfs"
	nfshelper "github.com/willscott/go-nfs/helpers"

	"static-httpd/docroot"
)

// HandleCacheSize bounds the number of file handles remembered per server.
const HandleCacheSize = 1024

// NewHandler mounts the root's read-only filesystem for any client without auth.
func NewHandler(root *docroot.Root) gonfs.Handler {
	h := nfshelper.NewNullAuthHandler(root.Filesystem())
	return nfshelper.NewCachingHandler(h, HandleCacheSize)
}

// StartNFSServer listens on addr (":2049" when empty) and serves in the background.
// Clients mount with explicit ports since no portmapper is run, e.g.
// mount -o port=2049,mountport=2049,nfsvers=3,tcp,nolock server:/ /mnt
func StartNFSServer(addr string, root *docroot.Root, logger *log.Logger) (net.Listener, error) {
	if addr == "" {
		addr = ":2049"
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	handler := NewHandler(root)
	go func() {
		if logger != nil {
			logger.Printf("nfsd v3 listening on %s base=%q", ln.Addr(), root.Dir())
		}
		if err := gonfs.Serve(ln, handler); err != nil && !errors.Is(err, net.ErrClosed) {
			if logger != nil {
				logger.Printf("nfsd serve error: %v", err)
			}
		}
	}()
	return ln, nil
}
