package utils

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// ParsePort accepts "8080", ":8080" or "host:8080".
func ParsePort(addr string) (int, error) {
	p := addr
	if strings.Contains(addr, ":") {
		var err error
		_, p, err = net.SplitHostPort(addr)
		if err != nil {
			return 0, fmt.Errorf("invalid addr %q: %w", addr, err)
		}
	}
	v, err := strconv.Atoi(p)
	if err != nil || v < 0 || v > 65535 {
		return 0, fmt.Errorf("invalid port in %q", addr)
	}
	return v, nil
}

// HostPort joins an optional IP with a port; a nil IP listens on all addresses.
func HostPort(ip net.IP, port int) string {
	host := ""
	if ip != nil {
		host = ip.String()
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}
