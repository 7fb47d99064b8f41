package httpx

import (
	"errors"
	"time"

	"static-httpd/docroot"
)

const DefaultTimeout = 30 * time.Second

// Config is built once at startup and shared read-only by every connection.
type Config struct {
	Port         int
	Root         *docroot.Root
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	ServerName   string
	ReusePort    bool
}

func (c Config) validate() (Config, error) {
	if c.Root == nil {
		return c, errors.New("invalid HTTP config: missing document root")
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = DefaultTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = DefaultTimeout
	}
	if c.ServerName == "" {
		c.ServerName = DefaultServerName
	}
	return c, nil
}
