package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func serveCORS(origins []string, method, origin string) *httptest.ResponseRecorder {
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	req := httptest.NewRequest(method, "/api/agent/chat", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	w := httptest.NewRecorder()
	CORS(origins)(next).ServeHTTP(w, req)
	return w
}

func TestCORSWildcardEchoesOriginWithoutCredentials(t *testing.T) {
	w := serveCORS([]string{"*"}, http.MethodPost, "http://localhost:5173")

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Errorf("Allow-Origin = %q", got)
	}
	if got := w.Header().Get("Access-Control-Allow-Credentials"); got != "" {
		t.Errorf("Allow-Credentials should be unset for wildcard, got %q", got)
	}
	if w.Code != http.StatusTeapot {
		t.Errorf("Expected request to reach next handler, got %d", w.Code)
	}
}

func TestCORSExplicitOriginAllowsCredentials(t *testing.T) {
	w := serveCORS([]string{"http://app.local"}, http.MethodGet, "http://app.local")

	if got := w.Header().Get("Access-Control-Allow-Credentials"); got != "true" {
		t.Errorf("Allow-Credentials = %q, want true", got)
	}
}

func TestCORSUnknownOriginGetsNoHeaders(t *testing.T) {
	w := serveCORS([]string{"http://app.local"}, http.MethodGet, "http://evil.example")

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Allow-Origin should be unset, got %q", got)
	}
}

func TestCORSPreflightShortCircuits(t *testing.T) {
	w := serveCORS([]string{"*"}, http.MethodOptions, "http://localhost:5173")

	if w.Code != http.StatusOK {
		t.Errorf("Expected 200 for preflight, got %d", w.Code)
	}
}
