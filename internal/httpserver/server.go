package httpserver

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Timeouts bounds how long a connection may spend in each phase. Zero values
// fall back to the defaults below.
type Timeouts struct {
	ReadHeader time.Duration
	Write      time.Duration
	Idle       time.Duration
}

const (
	defaultReadHeaderTimeout = 5 * time.Second
	// Uploads stream whole video files through the handler.
	defaultWriteTimeout = 5 * time.Minute
	defaultIdleTimeout  = 2 * time.Minute
)

// Server wraps the http.Server with sensible defaults.
type Server struct {
	inner *http.Server
}

// New constructs a server listening on the provided port.
func New(port int, handler http.Handler, timeouts Timeouts) *Server {
	return &Server{
		inner: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           handler,
			ReadHeaderTimeout: orDefault(timeouts.ReadHeader, defaultReadHeaderTimeout),
			WriteTimeout:      orDefault(timeouts.Write, defaultWriteTimeout),
			IdleTimeout:       orDefault(timeouts.Idle, defaultIdleTimeout),
		},
	}
}

// Addr reports the configured listen address.
func (s *Server) Addr() string {
	return s.inner.Addr
}

// Start begins serving HTTP traffic.
func (s *Server) Start() error {
	return s.inner.ListenAndServe()
}

// Shutdown gracefully terminates the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.inner.Shutdown(ctx)
}

func orDefault(v, fallback time.Duration) time.Duration {
	if v <= 0 {
		return fallback
	}
	return v
}
