package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/dmphub/dmphub/pkg/registry"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{Code: code, Message: message})
}

// writeRegistryError translates a registry error kind into an HTTP status.
func writeRegistryError(w http.ResponseWriter, err error) {
	kind := registry.KindOf(err)
	status := http.StatusInternalServerError
	switch kind {
	case registry.KindNotFound:
		status = http.StatusNotFound
	case registry.KindForbidden:
		status = http.StatusForbidden
	case registry.KindConflict:
		status = http.StatusConflict
	case registry.KindValidationFailed:
		status = http.StatusBadRequest
	case registry.KindUnchanged:
		// No new version was written, so there is nothing to notify about.
		w.WriteHeader(http.StatusNotModified)
		return
	case registry.KindStoreUnavailable:
		status = http.StatusServiceUnavailable
	}
	writeError(w, status, string(kind), err.Error())
}
