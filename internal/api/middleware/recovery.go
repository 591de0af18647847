package middleware

import (
	"net/http"

	"github.com/gatherly/server/internal/api/problem"
	"github.com/rs/zerolog"
)

// Recovery is the single top-level handler for panics: every escaping panic
// becomes a generic 500 with the cause logged internally, never echoed to the
// client.
func Recovery(logger zerolog.Logger, env string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error().
						Interface("panic", rec).
						Str("method", r.Method).
						Str("path", r.URL.Path).
						Msg("handler panic")
					problem.Write(w, r, http.StatusInternalServerError, "https://gatherly.events/problems/server-error", "Server error", nil, env)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
