package main

import (
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"

	"static-httpd/docroot"
	httpx "static-httpd/http"
	"static-httpd/nfs"
	"static-httpd/tftp"
	"static-httpd/utils"
)

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] [port [root]]\n", os.Args[0])
	flag.PrintDefaults()
}

// positionalArgs applies the "port [root]" form, overriding the flags.
func positionalArgs(args []string, port *int, root *string) error {
	if len(args) > 2 {
		return fmt.Errorf("too many arguments: %q", args)
	}
	if len(args) > 0 {
		p, err := utils.ParsePort(args[0])
		if err != nil {
			return err
		}
		*port = p
	}
	if len(args) > 1 {
		*root = args[1]
	}
	return nil
}

func main() {
	port := flag.Int("port", 8080, "HTTP port to listen on")
	root := flag.String("root", ".", "document root directory")
	index := flag.String("index", docroot.DefaultIndex, "file served for paths ending in /")
	iface := flag.String("iface", "", "bind to the first IPv4 address of this interface (default all)")
	reuse := flag.Bool("reuseport", false, "set SO_REUSEADDR/SO_REUSEPORT on the HTTP listener")
	readTimeout := flag.Duration("read-timeout", httpx.DefaultTimeout, "deadline for reading a request")
	writeTimeout := flag.Duration("write-timeout", httpx.DefaultTimeout, "deadline for writing a response")
	tftpAddr := flag.String("tftp", "", "also serve the root read-only over TFTP on this address, e.g. :69")
	nfsAddr := flag.String("nfs", "", "also export the root read-only over NFSv3 on this address, e.g. :2049")
	flag.Usage = usage
	flag.Parse()

	if err := positionalArgs(flag.Args(), port, root); err != nil {
		log.Fatalf("invalid arguments: %v", err)
	}

	docRoot, err := docroot.New(*root, *index)
	if err != nil {
		log.Fatalf("invalid document root: %v", err)
	}

	var bindIP net.IP
	if *iface != "" {
		bindIP, err = utils.FirstIPv4Addr(*iface)
		if err != nil {
			log.Fatalf("interface %s: %v", *iface, err)
		}
	}

	cfg := httpx.Config{
		Port:         *port,
		Root:         docRoot,
		ReadTimeout:  *readTimeout,
		WriteTimeout: *writeTimeout,
		ReusePort:    *reuse,
	}

	loggerHTTP := log.New(os.Stdout, "http ", log.LstdFlags)
	ln, err := httpx.StartHTTPServer(utils.HostPort(bindIP, cfg.Port), cfg, loggerHTTP)
	if err != nil {
		log.Fatalf("start http failure: %v", err)
	}
	defer ln.Close()

	if *tftpAddr != "" {
		loggerTFTP := log.New(os.Stdout, "tftp ", log.LstdFlags)
		srv, _, err := tftp.StartTFTPServer(*tftpAddr, docRoot, loggerTFTP)
		if err != nil {
			log.Fatalf("start tftp failure: %v", err)
		}
		defer srv.Shutdown()
	}

	if *nfsAddr != "" {
		loggerNFS := log.New(os.Stdout, "nfs ", log.LstdFlags)
		nln, err := nfs.StartNFSServer(*nfsAddr, docRoot, loggerNFS)
		if err != nil {
			log.Fatalf("start nfs failure: %v", err)
		}
		defer nln.Close()
	}

	// Block until termination signal to keep goroutine servers alive
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	sig := <-stop
	log.Printf("received signal %s, exiting", sig)
}
