package api

import (
	"net/http"
	"sort"
	"strings"

	"github.com/gatherly/server/internal/api/handlers"
	"github.com/gatherly/server/internal/api/middleware"
	"github.com/gatherly/server/internal/config"
	"github.com/gatherly/server/internal/metrics"
	"github.com/gatherly/server/internal/session"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Deps carries everything the router wires together. The serve command owns
// the lifecycle of each dependency; the router only routes.
type Deps struct {
	Auth     *handlers.AuthHandler
	Events   *handlers.EventsHandler
	Health   *handlers.HealthHandler
	Sessions *session.Manager
}

func NewRouter(cfg config.Config, logger zerolog.Logger, deps Deps) http.Handler {
	mux := http.NewServeMux()

	mux.Handle("/healthz", http.HandlerFunc(deps.Health.Healthz))
	mux.Handle("/readyz", http.HandlerFunc(deps.Health.Readyz))
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	requireSession := middleware.RequireSession(deps.Sessions, cfg.Session.CookieName, cfg.Environment)

	mux.Handle("/{$}", methodMux(map[string]http.Handler{
		http.MethodGet: http.HandlerFunc(deps.Auth.Root),
	}))
	mux.Handle("/login", methodMux(map[string]http.Handler{
		http.MethodGet:  http.HandlerFunc(deps.Auth.LoginPage),
		http.MethodPost: http.HandlerFunc(deps.Auth.Login),
	}))
	mux.Handle("/signup", methodMux(map[string]http.Handler{
		http.MethodGet:  http.HandlerFunc(deps.Auth.SignupPage),
		http.MethodPost: http.HandlerFunc(deps.Auth.Signup),
	}))
	mux.Handle("/logout", methodMux(map[string]http.Handler{
		http.MethodGet: http.HandlerFunc(deps.Auth.Logout),
	}))

	mux.Handle("/events", requireSession(methodMux(map[string]http.Handler{
		http.MethodGet: http.HandlerFunc(deps.Events.List),
	})))
	mux.Handle("/events/{id}", requireSession(methodMux(map[string]http.Handler{
		http.MethodGet:    http.HandlerFunc(deps.Events.Get),
		http.MethodPut:    http.HandlerFunc(deps.Events.Update),
		http.MethodDelete: http.HandlerFunc(deps.Events.Delete),
	})))
	mux.Handle("/createEvent", requireSession(methodMux(map[string]http.Handler{
		http.MethodPost: http.HandlerFunc(deps.Events.Create),
	})))

	if deps.Events != nil && deps.Events.UploadDir != "" {
		fs := http.FileServer(http.Dir(deps.Events.UploadDir))
		mux.Handle("/uploads/", http.StripPrefix("/uploads/", fs))
	}

	var handler http.Handler = mux
	handler = middleware.RateLimit(cfg.RateLimit)(handler)
	handler = middleware.SecurityHeaders(cfg.Environment == "production")(handler)
	handler = metrics.HTTPMiddleware(handler)
	handler = middleware.RequestLogging(logger)(handler)
	handler = middleware.Recovery(logger, cfg.Environment)(handler)
	return handler
}

func methodMux(handlers map[string]http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if handler, ok := handlers[r.Method]; ok {
			handler.ServeHTTP(w, r)
			return
		}
		w.Header().Set("Allow", allowedMethods(handlers))
		w.WriteHeader(http.StatusMethodNotAllowed)
	})
}

func allowedMethods(handlers map[string]http.Handler) string {
	methods := make([]string, 0, len(handlers))
	for method := range handlers {
		methods = append(methods, method)
	}
	sort.Strings(methods)
	return strings.Join(methods, ", ")
}
