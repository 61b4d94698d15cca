package web

// errors.go maps service errors onto HTTP responses.
//
// Every failure is logged server-side with its technical detail and
// request ID, while the client only ever sees the UserError half: a
// stable kind, a message in the product language, an optional action,
// and a support code. Raw database or filesystem errors never leak.

import (
	"net/http"

	"github.com/keihiworks/keihi/internal/core"
	"github.com/keihiworks/keihi/internal/logging"
)

// ErrorResponse is the JSON body for all error responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// respondError normalizes err to a UserError, logs the technical half,
// and writes the client-safe half with the status its kind maps to.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	ue := core.AsUserError(err)
	status := statusForKind(ue.Kind)

	logger := logging.FromContext(r.Context())
	attrs := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"kind", string(ue.Kind),
		"code", ue.User.Code,
		"error", ue.Error(),
	}
	if status >= 500 {
		logger.Error("request failed", attrs...)
	} else {
		logger.Info("request rejected", attrs...)
	}

	if ue.Kind == core.KindTooManyUploads {
		w.Header().Set("Retry-After", "30")
	}

	writeJSON(w, status, ErrorResponse{
		Error:   string(ue.Kind),
		Message: ue.User.Message,
		Action:  ue.User.Action,
		Code:    ue.User.Code,
	})
}

// statusForKind maps an error kind to its HTTP status code.
func statusForKind(kind core.Kind) int {
	switch kind {
	case core.KindPayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case core.KindNotFound:
		return http.StatusNotFound
	case core.KindUnauthorized:
		return http.StatusUnauthorized
	case core.KindTooManyUploads:
		return http.StatusServiceUnavailable
	case core.KindInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}
