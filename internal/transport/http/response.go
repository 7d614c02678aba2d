package http

import (
	"encoding/json"
	"net/http"

	"github.com/cwrk-planet/session-hub/pkg/logger"
)

type envelope map[string]any

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.FromContext(r.Context()).Error("write json response failed", "err", err)
	}
}

func ok(w http.ResponseWriter, r *http.Request, data any) {
	writeJSON(w, r, http.StatusOK, envelope{"data": data})
}

func fail(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, r, status, envelope{"error": envelope{"message": msg}})
}
