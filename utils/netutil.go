package utils

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

// Listen opens a stream listener. With reuse set, SO_REUSEADDR and
// SO_REUSEPORT are enabled so a restarted server can rebind at once.
func Listen(network, addr string, reuse bool) (net.Listener, error) {
	lc := net.ListenConfig{}
	if reuse {
		lc.Control = reuseControl
	}
	return lc.Listen(context.Background(), network, addr)
}

func reuseControl(network, address string, c syscall.RawConn) error {
	var serr error
	err := c.Control(func(fd uintptr) {
		serr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
		if serr == nil {
			serr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
		}
	})
	if err != nil {
		return err
	}
	return serr
}

func IfaceByName(name string) (*net.Interface, error) {
	ifc, err := net.InterfaceByName(name)
	if err != nil {
		return nil, err
	}
	if (ifc.Flags & net.FlagUp) == 0 {
		return nil, fmt.Errorf("interface %s is down", name)
	}
	return ifc, nil
}

// FirstIPv4Addr returns the first IPv4 address configured on the named interface.
func FirstIPv4Addr(name string) (net.IP, error) {
	ifc, err := IfaceByName(name)
	if err != nil {
		return nil, err
	}
	addrs, err := ifc.Addrs()
	if err != nil {
		return nil, err
	}
	for _, a := range addrs {
		switch v := a.(type) {
		case *net.IPNet:
			ip := v.IP.To4()
			if ip != nil {
				return ip, nil
			}
		}
	}
	return nil, errors.New("no IPv4 on interface")
}
