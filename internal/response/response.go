// Package response writes the JSON envelopes shared by every endpoint.
package response

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/vidtube/backend/internal/apperrors"
	"github.com/vidtube/backend/internal/logging"
)

// Envelope wraps successful responses.
type Envelope struct {
	StatusCode int    `json:"statusCode"`
	Data       any    `json:"data"`
	Message    string `json:"message"`
	Success    bool   `json:"success"`
}

// ErrorEnvelope wraps failed responses. Errors lists per-field validation
// problems when there are any.
type ErrorEnvelope struct {
	StatusCode int               `json:"statusCode"`
	Message    string            `json:"message"`
	Success    bool              `json:"success"`
	Errors     map[string]string `json:"errors,omitempty"`
}

// JSON writes data inside a success envelope.
func JSON(ctx context.Context, w http.ResponseWriter, status int, data any, message string) {
	write(ctx, w, status, Envelope{StatusCode: status, Data: data, Message: message, Success: true})
}

// Error converts err into an error envelope. Unknown errors are reported as
// internal failures without exposing their text.
func Error(ctx context.Context, w http.ResponseWriter, err error) {
	appErr := apperrors.From(err)
	status := appErr.Status()

	logger := logging.FromContext(ctx)
	switch {
	case status >= http.StatusInternalServerError:
		logger.Error("request failed", "status", status, "error", err)
	default:
		logger.Warn("request returned client error", "status", status, "error", err)
	}

	write(ctx, w, status, ErrorEnvelope{
		StatusCode: status,
		Message:    appErr.Message,
		Success:    false,
		Errors:     appErr.Fields,
	})
}

func write(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.FromContext(ctx).Error("encode response body", "status", status, "error", err)
	}
}
