// Package api provides shared HTTP helpers and service-level handlers.
package api

import (
	"encoding/json"
	"net/http"
)

// ServiceName is reported by the status endpoint.
const ServiceName = "PC Doctor Agent"

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// Status handles GET / and reports that the service is up.
func Status(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, map[string]string{
		"status":  "online",
		"service": ServiceName,
	})
}
