package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/vidtube/backend/internal/apperrors"
	"github.com/vidtube/backend/internal/logging"
)

// HealthHandler responds with service health information.
type HealthHandler struct {
	DB      Pinger
	Timeout time.Duration
}

// Handle implements GET /healthz.
func (h HealthHandler) Handle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.DB != nil {
		timeout := h.Timeout
		if timeout <= 0 {
			timeout = 2 * time.Second
		}
		pingCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		if err := h.DB.Ping(pingCtx); err != nil {
			logging.FromContext(ctx).Error("health check database ping failed", "error", err)
			respondError(ctx, w, apperrors.Unavailable("database unavailable").WithCause(err))
			return
		}
	}

	respondJSON(ctx, w, http.StatusOK, healthStatus{Status: "ok", Database: "up"}, "service healthy")
}

type healthStatus struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}
