package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gatherly/server/internal/accounts"
	"github.com/gatherly/server/internal/api/problem"
	"github.com/gatherly/server/internal/session"
)

type contextKeyAccount string

const accountKey contextKeyAccount = "account"

// RequireSession is the authorization gate for protected routes. It resolves
// the session cookie before the handler runs; an anonymous connection gets a
// uniform structured 401 and the handler body never executes. Only a storage
// failure during resolution is a 500.
func RequireSession(manager *session.Manager, cookieName, env string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if manager == nil {
				problem.Write(w, r, http.StatusUnauthorized, "https://gatherly.events/problems/unauthorized", "Unauthorized", problem.ErrUnauthorized, env)
				return
			}

			account, err := manager.Resolve(r.Context(), sessionToken(r, cookieName))
			if err != nil {
				problem.Write(w, r, http.StatusInternalServerError, "https://gatherly.events/problems/server-error", "Server error", err, env)
				return
			}
			if account == nil {
				problem.Write(w, r, http.StatusUnauthorized, "https://gatherly.events/problems/unauthorized", "Authentication required", problem.ErrUnauthorized, env)
				return
			}

			ctx := contextWithAccount(r.Context(), account)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func sessionToken(r *http.Request, cookieName string) string {
	cookie, err := r.Cookie(cookieName)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(cookie.Value)
}

func contextWithAccount(ctx context.Context, account *accounts.Account) context.Context {
	return context.WithValue(ctx, accountKey, account)
}

// CurrentAccount returns the authenticated account injected by
// RequireSession, or nil on an unprotected route.
func CurrentAccount(r *http.Request) *accounts.Account {
	if r == nil {
		return nil
	}
	if account, ok := r.Context().Value(accountKey).(*accounts.Account); ok {
		return account
	}
	return nil
}
