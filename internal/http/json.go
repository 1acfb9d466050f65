package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	domainauth "github.com/target/gatekeeper/internal/domain/auth"
	apperrors "github.com/target/gatekeeper/internal/errors"
	"github.com/target/gatekeeper/internal/service"
)

const maxBodyBytes = 64 << 10

// DecodeJSON decodes JSON from the request body into the destination and handles errors.
// Returns true if successful, false if there was an error (error response already written).
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_json", Err: err})
		return false
	}

	return true
}

// WriteJSON writes a JSON response with the given status code and data.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := buf.WriteTo(w); err != nil {
		// Response writer errors (e.g., client disconnect) can't be recovered from here.
		return
	}
}

// ErrorParams groups parameters for WriteError.
type ErrorParams struct {
	Code    int
	ErrCode string
	Err     error
	// Field names the offending input for validation errors.
	Field string
}

// WriteError writes a JSON error response using ErrorParams.
func WriteError(w http.ResponseWriter, p ErrorParams) {
	body := map[string]string{"error": p.ErrCode, "message": p.Err.Error()}
	if p.Field != "" {
		body["field"] = p.Field
	}
	WriteJSON(w, p.Code, body)
}

// writeServiceError maps service errors to responses. Internal details are
// logged, never returned.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var appErr *apperrors.AppError
	switch {
	case errors.Is(err, domainauth.ErrInvalidCredentials):
		WriteError(w, ErrorParams{Code: http.StatusUnauthorized, ErrCode: "invalid_credentials", Err: domainauth.ErrInvalidCredentials})
	case errors.Is(err, domainauth.ErrThrottled):
		writeThrottled(w, 0)
	case errors.Is(err, domainauth.ErrUserNotFound):
		WriteError(w, ErrorParams{Code: http.StatusNotFound, ErrCode: "not_found", Err: domainauth.ErrUserNotFound})
	case errors.Is(err, domainauth.ErrIdentifierTaken):
		WriteError(w, ErrorParams{Code: http.StatusConflict, ErrCode: "conflict", Err: domainauth.ErrIdentifierTaken, Field: "username"})
	case errors.Is(err, service.ErrSelfModification):
		WriteError(w, ErrorParams{Code: http.StatusForbidden, ErrCode: "self_modification", Err: service.ErrSelfModification})
	case apperrors.IsValidation(err) && errors.As(err, &appErr):
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "validation", Err: errors.New(appErr.Message), Field: appErr.Field})
	case domainauth.IsRetryable(err):
		logger.WarnContext(r.Context(), "store unavailable", "path", r.URL.Path, "error", err)
		w.Header().Set("Retry-After", "1")
		WriteError(w, ErrorParams{Code: http.StatusServiceUnavailable, ErrCode: "unavailable", Err: errors.New("service temporarily unavailable")})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		logger.InfoContext(r.Context(), "request abandoned", "path", r.URL.Path, "error", err)
		WriteError(w, ErrorParams{Code: http.StatusServiceUnavailable, ErrCode: "canceled", Err: errors.New("request canceled")})
	default:
		logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		WriteError(w, ErrorParams{Code: http.StatusInternalServerError, ErrCode: "internal_error", Err: errors.New("internal server error")})
	}
}
