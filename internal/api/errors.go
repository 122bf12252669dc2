package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/kalambet/reelkit/internal/dispatch"
)

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}

// dispatchError maps an operation failure to an HTTP status by class.
func dispatchError(w http.ResponseWriter, err error) {
	switch dispatch.Classify(err) {
	case dispatch.ClassParse:
		httpError(w, http.StatusBadRequest, "parse_error", "%v", err)
	case dispatch.ClassResolve:
		httpError(w, http.StatusNotFound, "not_found", "%v", err)
	case dispatch.ClassCollaborator:
		httpError(w, http.StatusBadGateway, "upstream_error", "%v", err)
	case dispatch.ClassCanceled:
		httpError(w, http.StatusServiceUnavailable, "canceled", "%v", err)
	default:
		httpError(w, http.StatusInternalServerError, "api_error", "%v", err)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
