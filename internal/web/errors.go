package web

// errors.go provides unified error response handling for the web layer.
//
// Every error is:
//   - Logged with full technical details and the request id (server-side)
//   - Returned to clients as a user-friendly message with a code and action
//
// The error flow:
//  1. Handler encounters an error
//  2. Calls respondError(w, r, err)
//  3. The status code is derived from the sentinel the error wraps
//  4. Error is mapped via core.MapError to get the user-friendly message
//  5. Technical error + context is logged for correlation

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/Luuk00/eco-costa-track/internal/core"
	"github.com/Luuk00/eco-costa-track/internal/logging"
	"github.com/Luuk00/eco-costa-track/internal/statement"
)

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`

	// Set for commits that need confirmation.
	Unlinked int `json:"unlinked,omitempty"`

	// Set for commits aborted by an invalid date.
	Record *int   `json:"record,omitempty"`
	Value  string `json:"value,omitempty"`
}

var errNoFile = errors.New("no file provided")

// statusFor maps an error to its HTTP status code.
func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrMissingTenant),
		errors.Is(err, core.ErrInvalidDirection),
		errors.Is(err, statement.ErrInvalidFile),
		errors.Is(err, statement.ErrEmptyFile),
		errors.Is(err, errNoFile),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, statement.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, core.ErrSessionNotFound),
		errors.Is(err, core.ErrIndexOutOfRange):
		return http.StatusNotFound
	case errors.Is(err, core.ErrConfirmationRequired),
		errors.Is(err, core.ErrCommitInFlight),
		errors.Is(err, core.ErrSessionClosed):
		return http.StatusConflict
	case errors.Is(err, core.ErrInvalidDate),
		errors.Is(err, core.ErrNothingLinked),
		errors.Is(err, core.ErrUnknownCostCenter),
		errors.Is(err, core.ErrUnknownProject):
		return http.StatusUnprocessableEntity
	case errors.Is(err, errRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, core.ErrStoreRejected):
		return http.StatusBadGateway
	case errors.Is(err, core.ErrTooManyImports),
		errors.Is(err, core.ErrTooManySessions):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// respondError logs the technical error server-side and writes a
// user-friendly JSON error response.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	respondErrorWith(w, r, err, status, newErrorResponse(err))
}

func respondErrorWith(w http.ResponseWriter, r *http.Request, err error, status int, resp ErrorResponse) {
	log := logging.FromContext(r.Context())
	attrs := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", resp.Code,
	}
	if status >= http.StatusInternalServerError {
		log.Error("request error", attrs...)
	} else {
		log.Warn("request error", attrs...)
	}

	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "5")
	}
	writeJSON(w, status, resp)
}

func newErrorResponse(err error) ErrorResponse {
	msg := core.MapError(err)
	resp := ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	}

	var dateErr *core.DateError
	if errors.As(err, &dateErr) {
		idx := dateErr.Index
		resp.Record = &idx
		resp.Value = dateErr.Value
	}
	return resp
}

// writeJSON encodes v as JSON with the given status.
// Encoding errors are logged since headers are already sent.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
