package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/joseph-ayodele/bloodwork-tracker/internal/common"
)

// errorResponse is the body of every non-2xx response.
type errorResponse struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("http.write_failed", "error", err)
	}
}

// writeError maps err onto a status and a stable code. Server-side failures are
// logged with the request's logger; client errors only at debug.
func writeError(w http.ResponseWriter, r *http.Request, fallback *slog.Logger, err error) {
	status := common.HTTPStatus(err)
	logger := common.LoggerFromContext(r.Context(), fallback)
	if status >= http.StatusInternalServerError {
		logger.Error("http.request_failed", "status", status, "error", err)
	} else {
		logger.Debug("http.request_rejected", "status", status, "error", err)
	}
	writeJSON(w, status, errorResponse{Code: common.ErrorCode(err), Error: common.ErrorMessage(err)})
}
