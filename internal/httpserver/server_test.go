package httpserver

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewAppliesDefaults(t *testing.T) {
	srv := New(8080, http.NotFoundHandler(), Timeouts{Write: time.Minute})

	assert.Equal(t, ":8080", srv.Addr())
	assert.Equal(t, defaultReadHeaderTimeout, srv.inner.ReadHeaderTimeout)
	assert.Equal(t, time.Minute, srv.inner.WriteTimeout)
	assert.Equal(t, defaultIdleTimeout, srv.inner.IdleTimeout)
}

func TestDrainTimeout(t *testing.T) {
	assert.Equal(t, ShutdownTimeout, DrainTimeout(0))
	assert.Equal(t, 3*time.Second, DrainTimeout(3*time.Second))
}
