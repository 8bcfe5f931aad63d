package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/vidtube/backend/internal/apperrors"
	"github.com/vidtube/backend/internal/auth"
	"github.com/vidtube/backend/internal/logging"
	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/response"
	"github.com/vidtube/backend/internal/storage"
)

const (
	maxJSONBytes   = 1 << 20
	maxImageBytes  = 10 << 20
	maxUploadBytes = 512 << 20
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return field.Name
		}
		return name
	})
	return v
}

// decodeAndValidate reads a JSON body into dst and checks its validate tags.
// An empty body is accepted when allowEmpty is set.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any, allowEmpty bool) error {
	if err := decodeJSON(w, r, dst, allowEmpty); err != nil {
		return err
	}
	return validateRequest(dst)
}

// normalizer is implemented by request bodies that trim their text fields.
type normalizer interface {
	normalize()
}

// validateRequest normalizes dst when it supports it, then checks its tags.
func validateRequest(dst any) error {
	if n, ok := dst.(normalizer); ok {
		n.normalize()
	}
	return validateStruct(dst)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any, allowEmpty bool) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if !(allowEmpty && errors.Is(err, io.EOF)) {
			return apperrors.InvalidInput("invalid request body").WithCause(err)
		}
	}
	return nil
}

func validateStruct(dst any) error {
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make(map[string]string, len(verrs))
			for _, fe := range verrs {
				fields[fe.Field()] = messageForTag(fe)
			}
			return apperrors.Validation("invalid request body", fields)
		}
		return apperrors.InvalidInput("invalid request body").WithCause(err)
	}
	return nil
}

func messageForTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "alphanum":
		return "must contain only letters and digits"
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", fe.Param())
	default:
		return fmt.Sprintf("failed on '%s' validation", fe.Tag())
	}
}

// callerFrom returns the user attached by the auth gate.
func callerFrom(r *http.Request) (models.User, error) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok || user.ID == "" {
		return models.User{}, apperrors.Unauthorized("unauthorized request")
	}
	return user, nil
}

// idParam reads a UUID path parameter.
func idParam(r *http.Request, name, label string) (string, error) {
	raw := strings.TrimSpace(chi.URLParam(r, name))
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", apperrors.InvalidInput(fmt.Sprintf("invalid %s id", label))
	}
	return id.String(), nil
}

// intQuery parses an optional integer query parameter. Missing values yield 0.
func intQuery(r *http.Request, name string) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperrors.InvalidInput(fmt.Sprintf("%s must be a number", name))
	}
	return v, nil
}

// canModify is the single ownership predicate for mutating owned resources.
func canModify(ownerID, callerID string) bool {
	return ownerID != "" && ownerID == callerID
}

// saveFormFile stores an uploaded multipart file under prefix and returns its
// location. Missing optional files yield "".
func saveFormFile(r *http.Request, media storage.Store, field, prefix string, required bool) (string, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			if required {
				return "", apperrors.Validation("invalid request body", map[string]string{field: "is required"})
			}
			return "", nil
		}
		return "", apperrors.InvalidInput("invalid multipart body").WithCause(err)
	}
	defer file.Close()

	if media == nil {
		return "", apperrors.Internal(errors.New("media store is not configured"))
	}

	location, err := media.Save(r.Context(), storage.ObjectKey(prefix, header.Filename), file, contentType(header))
	if err != nil {
		if errors.Is(err, storage.ErrUnavailable) {
			return "", apperrors.Unavailable("media store unavailable").WithCause(err)
		}
		return "", apperrors.Internal(err)
	}
	return location, nil
}

func contentType(header *multipart.FileHeader) string {
	if header == nil {
		return ""
	}
	return header.Header.Get("Content-Type")
}

func parseMultipart(w http.ResponseWriter, r *http.Request, limit int64) error {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		return apperrors.InvalidInput("invalid multipart body").WithCause(err)
	}
	return nil
}

func respondJSON(ctx context.Context, w http.ResponseWriter, status int, data any, message string) {
	response.JSON(ctx, w, status, data, message)
}

func respondError(ctx context.Context, w http.ResponseWriter, err error) {
	response.Error(ctx, w, err)
}

// discardMedia removes a stored object without failing the request.
func discardMedia(r *http.Request, media storage.Store, location string) {
	if media == nil || location == "" {
		return
	}
	if err := media.Delete(r.Context(), location); err != nil {
		logging.FromContext(r.Context()).Warn("discard media failed", "location", location, "error", err)
	}
}

func isMultipart(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data")
}
