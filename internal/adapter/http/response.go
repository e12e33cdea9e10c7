package http

import (
	"encoding/json"
	"net/http"

	"github.com/campusiq/campusiq/pkg/apperror"
)

// Envelope is the uniform JSON response shape.
type Envelope struct {
	Status  bool        `json:"status"`
	Message string      `json:"message"`
	Code    string      `json:"code,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, statusCode int, envelope Envelope) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(envelope)
}

func respondSuccess(w http.ResponseWriter, statusCode int, message string, data interface{}) {
	writeJSON(w, statusCode, Envelope{Status: true, Message: message, Data: data})
}

func respondError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, Envelope{Status: false, Message: message})
}

// respondDomainError maps a governance error onto its HTTP status and
// stable code. Anything unclassified becomes a 500 with a generic message
// so internals never leak.
func respondDomainError(w http.ResponseWriter, err error) {
	code, status := apperror.Classify(err)
	message := err.Error()
	if code == "" {
		message = "internal server error"
	}
	writeJSON(w, status, Envelope{Status: false, Message: message, Code: code})
}
