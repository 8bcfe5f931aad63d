package httpserver

import "time"

// ShutdownTimeout is used when the configured drain period is not positive.
var ShutdownTimeout = 10 * time.Second

// DrainTimeout returns configured, or ShutdownTimeout when it is not positive.
func DrainTimeout(configured time.Duration) time.Duration {
	if configured <= 0 {
		return ShutdownTimeout
	}
	return configured
}
