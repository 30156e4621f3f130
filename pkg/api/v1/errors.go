package v1

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/catalyst-dev/catalyst-creds/pkg/errors"
	"github.com/catalyst-dev/catalyst-creds/pkg/logger"
)

// errorResponse is the JSON error body for API consumers.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// writeError maps a service error to its HTTP status and writes the JSON
// body. Messages for 5xx responses are generic; the detailed cause goes
// to the log, never to the caller.
func writeError(w http.ResponseWriter, err error) {
	status, body := classify(err)
	if status >= http.StatusInternalServerError {
		logger.Errorw("request failed", "error", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if encodeErr := json.NewEncoder(w).Encode(body); encodeErr != nil {
		logger.Errorf("Failed to write error response: %v", encodeErr)
	}
}

func classify(err error) (int, errorResponse) {
	switch {
	case errors.IsUnauthenticated(err), errors.IsUnbound(err):
		// Unbound deliberately maps to 401 rather than 404 so probing for
		// namespaces and installations yields nothing.
		return http.StatusUnauthorized, errorResponse{Error: "unauthorized", Message: "authentication required"}
	case errors.IsForbidden(err):
		return http.StatusForbidden, errorResponse{Error: "forbidden", Message: "access denied"}
	case errors.IsNotFound(err):
		return http.StatusNotFound, errorResponse{Error: "not_found", Message: "resource not found"}
	case errors.IsConflict(err):
		return http.StatusConflict, errorResponse{Error: "conflict", Message: messageOf(err)}
	case errors.IsInvalidArgument(err):
		return http.StatusBadRequest, errorResponse{Error: "invalid_argument", Message: messageOf(err)}
	case errors.IsAuthBackendUnavailable(err):
		return http.StatusServiceUnavailable, errorResponse{Error: "unavailable", Message: "try again later"}
	default:
		return http.StatusInternalServerError, errorResponse{Error: "internal", Message: "internal error"}
	}
}

func messageOf(err error) string {
	var svcErr *errors.Error
	if stderrors.As(err, &svcErr) {
		return svcErr.Message
	}
	return err.Error()
}
