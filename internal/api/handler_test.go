//nolint:revive // "api" package name is intentionally concise for this layer.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestJSON(t *testing.T) {
	w := httptest.NewRecorder()
	data := map[string]string{"foo": "bar"}

	JSON(w, http.StatusOK, data)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected application/json, got %q", ct)
	}

	var got map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if got["foo"] != "bar" {
		t.Errorf("Expected foo=bar, got %v", got["foo"])
	}
}

func TestError(t *testing.T) {
	w := httptest.NewRecorder()

	Error(w, http.StatusBadRequest, "message is required")

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
	var got map[string]string
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if got["error"] != "message is required" {
		t.Errorf("Unexpected error body: %v", got)
	}
}

func TestStatus(t *testing.T) {
	w := httptest.NewRecorder()
	Status(w, httptest.NewRequest(http.MethodGet, "/", nil))

	var got map[string]string
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if got["status"] != "online" || got["service"] != "PC Doctor Agent" {
		t.Errorf("Unexpected status body: %v", got)
	}
}

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

func TestReady(t *testing.T) {
	tests := []struct {
		name        string
		journal     Pinger
		wantCode    int
		wantJournal string
	}{
		{"disabled", nil, http.StatusOK, "disabled"},
		{"reachable", stubPinger{}, http.StatusOK, "ok"},
		{"unreachable", stubPinger{err: errors.New("database is closed")}, http.StatusServiceUnavailable, "unreachable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			NewHealthHandler(tt.journal).Ready(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

			if w.Code != tt.wantCode {
				t.Errorf("Expected status %d, got %d", tt.wantCode, w.Code)
			}
			var got struct {
				Status string            `json:"status"`
				Checks map[string]string `json:"checks"`
			}
			if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
				t.Fatalf("Failed to decode response: %v", err)
			}
			if got.Checks["journal"] != tt.wantJournal {
				t.Errorf("Expected journal=%s, got %s", tt.wantJournal, got.Checks["journal"])
			}
		})
	}
}
