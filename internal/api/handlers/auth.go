package handlers

import (
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/gatherly/server/internal/accounts"
	"github.com/gatherly/server/internal/api/middleware"
	"github.com/gatherly/server/internal/api/problem"
	"github.com/gatherly/server/internal/audit"
	"github.com/gatherly/server/internal/metrics"
	"github.com/gatherly/server/internal/session"
)

type AuthHandler struct {
	Authenticator *accounts.Authenticator
	Accounts      *accounts.Service
	Sessions      *session.Manager
	Audit         *audit.Logger
	Templates     *template.Template
	CookieName    string
	SessionTTL    time.Duration
	Env           string
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
}

type userInfo struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// decodeCredentials accepts JSON or form-encoded bodies; the login and
// signup pages post forms while API clients send JSON.
func decodeCredentials(r *http.Request) (credentialsRequest, error) {
	var req credentialsRequest
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return req, err
		}
		return req, nil
	}
	if err := r.ParseForm(); err != nil {
		return req, err
	}
	req.Username = r.PostFormValue("username")
	req.Password = r.PostFormValue("password")
	req.Email = r.PostFormValue("email")
	return req, nil
}

// Login handles POST /login. On success the session cookie is set and the
// response carries the account summary. Unknown users and bad passwords get
// the same client-visible rejection.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	req, err := decodeCredentials(r)
	if err != nil {
		problem.Write(w, r, http.StatusBadRequest, "https://gatherly.events/problems/validation-error", "Invalid request", err, h.Env)
		return
	}
	if req.Username == "" || req.Password == "" {
		problem.Write(w, r, http.StatusBadRequest, "https://gatherly.events/problems/validation-error", "Username and password are required", nil, h.Env)
		return
	}

	result, err := h.Authenticator.Verify(r.Context(), req.Username, req.Password)
	if err != nil {
		metrics.LoginAttempts.WithLabelValues("error").Inc()
		problem.Write(w, r, http.StatusInternalServerError, "https://gatherly.events/problems/server-error", "Server error", err, h.Env)
		return
	}

	switch result.Status {
	case accounts.AuthAccepted:
		// fall through below
	case accounts.AuthUnknownUser:
		metrics.LoginAttempts.WithLabelValues("unknown_user").Inc()
		h.Audit.LogFailure("auth.login", req.Username, audit.ClientIP(r), map[string]string{"reason": "unknown user"})
		problem.Write(w, r, http.StatusUnauthorized, "https://gatherly.events/problems/unauthorized", "Invalid credentials", nil, h.Env)
		return
	case accounts.AuthBadPassword:
		metrics.LoginAttempts.WithLabelValues("bad_password").Inc()
		h.Audit.LogFailure("auth.login", req.Username, audit.ClientIP(r), map[string]string{"reason": "bad password"})
		problem.Write(w, r, http.StatusUnauthorized, "https://gatherly.events/problems/unauthorized", "Invalid credentials", nil, h.Env)
		return
	default:
		problem.Write(w, r, http.StatusInternalServerError, "https://gatherly.events/problems/server-error", "Server error", nil, h.Env)
		return
	}

	token, err := h.Sessions.Start(result.Account)
	if err != nil {
		problem.Write(w, r, http.StatusInternalServerError, "https://gatherly.events/problems/server-error", "Server error", err, h.Env)
		return
	}

	cookie := &http.Cookie{
		Name:     h.CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	}
	if h.SessionTTL > 0 {
		cookie.Expires = time.Now().Add(h.SessionTTL)
	}
	http.SetCookie(w, cookie)

	metrics.LoginAttempts.WithLabelValues("accepted").Inc()
	h.Audit.LogSuccess("auth.login", result.Account.Username, "account", result.Account.ID, audit.ClientIP(r), nil)

	writeJSON(w, http.StatusOK, map[string]any{
		"user": userInfo{
			ID:       result.Account.ID,
			Username: result.Account.Username,
			Email:    result.Account.Email,
		},
	})
}

// Signup handles POST /signup.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	req, err := decodeCredentials(r)
	if err != nil {
		problem.Write(w, r, http.StatusBadRequest, "https://gatherly.events/problems/validation-error", "Invalid request", err, h.Env)
		return
	}

	account, err := h.Accounts.Signup(r.Context(), accounts.SignupParams{
		Username: strings.TrimSpace(req.Username),
		Password: req.Password,
		Email:    strings.TrimSpace(req.Email),
	})
	if err != nil {
		var validationErr accounts.ValidationError
		if errors.As(err, &validationErr) {
			problem.Write(w, r, http.StatusBadRequest, "https://gatherly.events/problems/validation-error", "Invalid request", err, h.Env)
			return
		}
		// Duplicate usernames surface as a store failure, matching the
		// behavior this service replaces; the race loser sees a 500.
		h.Audit.LogFailure("auth.signup", req.Username, audit.ClientIP(r), map[string]string{"error": "store failure"})
		problem.Write(w, r, http.StatusInternalServerError, "https://gatherly.events/problems/server-error", "Server error", err, h.Env)
		return
	}

	h.Audit.LogSuccess("auth.signup", account.Username, "account", account.ID, audit.ClientIP(r), nil)

	writeJSON(w, http.StatusCreated, map[string]any{
		"user": userInfo{
			ID:       account.ID,
			Username: account.Username,
			Email:    account.Email,
		},
	})
}

// Logout handles GET /logout. Destroying an absent session is a no-op; the
// cookie is cleared either way.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(h.CookieName); err == nil && cookie.Value != "" {
		if h.Sessions.End(cookie.Value) {
			h.Audit.LogSuccess("auth.logout", "", "session", "", audit.ClientIP(r), nil)
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     h.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

// LoginPage handles GET /login.
func (h *AuthHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	h.renderPage(w, r, "login.html", "Log in")
}

// SignupPage handles GET /signup.
func (h *AuthHandler) SignupPage(w http.ResponseWriter, r *http.Request) {
	h.renderPage(w, r, "signup.html", "Sign up")
}

// Root handles GET /: authenticated connections land on the event list,
// anonymous ones on the login page.
func (h *AuthHandler) Root(w http.ResponseWriter, r *http.Request) {
	if account := h.resolve(r); account != nil {
		http.Redirect(w, r, "/events", http.StatusFound)
		return
	}
	http.Redirect(w, r, "/login", http.StatusFound)
}

func (h *AuthHandler) renderPage(w http.ResponseWriter, r *http.Request, name, title string) {
	// Already authenticated: skip the form.
	if account := h.resolve(r); account != nil {
		http.Redirect(w, r, "/events", http.StatusFound)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	data := map[string]any{"Title": title}
	if err := h.Templates.ExecuteTemplate(w, name, data); err != nil {
		http.Error(w, "Template error", http.StatusInternalServerError)
		return
	}
}

func (h *AuthHandler) resolve(r *http.Request) *accounts.Account {
	if account := middleware.CurrentAccount(r); account != nil {
		return account
	}
	cookie, err := r.Cookie(h.CookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}
	account, err := h.Sessions.Resolve(r.Context(), cookie.Value)
	if err != nil {
		return nil
	}
	return account
}
