package gateway

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"paluwagan/errors"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}

// writeError translates a domain error into its HTTP shape. Internal
// errors are logged but never leaked to the client.
func writeError(w http.ResponseWriter, log *slog.Logger, err error) {
	status := errors.MapToHTTPStatus(err)
	body := errorResponse{Error: err.Error(), Code: errors.Code(err)}
	if status == http.StatusInternalServerError {
		log.Error("Request failed", "error", err)
		body.Error = "internal error"
	}
	writeJSON(w, status, body)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed request body", Code: "bad_request"})
		return false
	}
	return true
}
