// internal/server/respond.go
package server

import (
	"encoding/json"
	"net/http"

	apperrors "policy-monitor/internal/common/errors"
)

// envelope is the JSON shape every endpoint answers with. Failure
// details ride alongside data for partial-success responses; an error
// never hides behind a 200.
type envelope struct {
	Success  bool        `json:"success"`
	Data     interface{} `json:"data,omitempty"`
	Message  string      `json:"message,omitempty"`
	Failures interface{} `json:"failures,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondOK(w http.ResponseWriter, data interface{}) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: data})
}

func respondCreated(w http.ResponseWriter, data interface{}) {
	writeJSON(w, http.StatusCreated, envelope{Success: true, Data: data})
}

func respondPartial(w http.ResponseWriter, data interface{}, failures interface{}) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: data, Failures: failures})
}

func respondError(w http.ResponseWriter, err error) {
	writeJSON(w, apperrors.HTTPStatus(err), envelope{
		Success: false,
		Message: apperrors.UserMessage(err),
	})
}
