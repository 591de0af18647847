package middleware

import (
	"net/http"
)

// SecurityHeaders adds security-related HTTP headers to all responses.
//
// Headers added:
//   - X-Frame-Options: DENY (prevents clickjacking via iframe embedding)
//   - X-Content-Type-Options: nosniff (prevents MIME sniffing attacks)
//   - Referrer-Policy: strict-origin-when-cross-origin
//   - Content-Security-Policy: same-origin defaults for the login/signup pages
//
// Production-only (requireHTTPS): Strict-Transport-Security.
func SecurityHeaders(requireHTTPS bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()

			h.Set("X-Frame-Options", "DENY")
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			h.Set("Content-Security-Policy", "default-src 'self'; style-src 'self' 'unsafe-inline'; img-src 'self' data:")

			if requireHTTPS && r.TLS != nil {
				h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			}

			next.ServeHTTP(w, r)
		})
	}
}
