// Package middleware provides HTTP middleware for the agent API.
package middleware

import "net/http"

// CORS returns middleware that handles CORS headers for the configured
// origins. "*" admits any origin; the request origin is echoed back.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	wildcard := false
	explicit := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if o == "*" {
			wildcard = true
			continue
		}
		explicit[o] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			_, isExplicit := explicit[origin]

			if origin != "" && (wildcard || isExplicit) {
				w.Header().Add("Vary", "Origin")
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
				// Credentials only for explicit origins; a wildcard-echoed origin would enable CSRF.
				if isExplicit {
					w.Header().Set("Access-Control-Allow-Credentials", "true")
				}
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
