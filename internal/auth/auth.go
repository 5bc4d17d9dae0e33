// Package auth guards the dashboard with a single static login kept in a
// signed cookie session.
package auth

import (
	"crypto/subtle"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/gorilla/sessions"

	"scout-dashboard/internal/errors"
	"scout-dashboard/internal/observability"
)

const (
	SessionName = "scout_session"
	LoginPath   = "/login"

	keyUser     = "user"
	keyLoggedIn = "logged_in_at"
)

var ErrInvalidCredentials = stderrors.New("invalid username or password")

// exemptPaths and exemptPrefixes never require a session.
var (
	exemptPaths    = []string{"/health", LoginPath}
	exemptPrefixes = []string{"/static/"}
)

type Config struct {
	Username     string
	Password     string
	Secret       string
	MaxAge       time.Duration
	SecureCookie bool
}

type Authenticator struct {
	username string
	password string
	store    *sessions.CookieStore
	logger   *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Authenticator {
	if logger == nil {
		logger = slog.Default()
	}
	store := sessions.NewCookieStore([]byte(cfg.Secret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(cfg.MaxAge.Seconds()),
		HttpOnly: true,
		Secure:   cfg.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	}
	return &Authenticator{
		username: cfg.Username,
		password: cfg.Password,
		store:    store,
		logger:   logger,
	}
}

func (a *Authenticator) Store() sessions.Store { return a.store }

// Check compares both fields in constant time. An unset password never
// matches.
func (a *Authenticator) Check(username, password string) bool {
	if a.password == "" {
		return false
	}
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(a.username))
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(a.password))
	return userOK&passOK == 1
}

// Login verifies the pair and starts a session.
func (a *Authenticator) Login(w http.ResponseWriter, r *http.Request, username, password string) error {
	if !a.Check(strings.TrimSpace(username), password) {
		observability.LoggerFrom(r.Context(), a.logger).Warn("login rejected", "username", username)
		return ErrInvalidCredentials
	}

	sess, _ := a.store.Get(r, SessionName)
	sess.Values[keyUser] = a.username
	sess.Values[keyLoggedIn] = time.Now().Unix()
	if err := sess.Save(r, w); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Logout expires the session cookie.
func (a *Authenticator) Logout(w http.ResponseWriter, r *http.Request) error {
	sess, _ := a.store.Get(r, SessionName)
	sess.Values = map[any]any{}
	sess.Options.MaxAge = -1
	if err := sess.Save(r, w); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// User returns the logged-in user of r.
func (a *Authenticator) User(r *http.Request) (string, bool) {
	sess, err := a.store.Get(r, SessionName)
	if err != nil {
		return "", false
	}
	user, ok := sess.Values[keyUser].(string)
	return user, ok && user != ""
}

// RequireLogin sends unauthenticated page requests to the login form and
// answers everything else with 401.
func (a *Authenticator) RequireLogin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if exempt(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}
		if _, ok := a.User(r); ok {
			next.ServeHTTP(w, r)
			return
		}

		if wantsHTML(r) {
			target := LoginPath + "?next=" + url.QueryEscape(r.URL.RequestURI())
			http.Redirect(w, r, target, http.StatusSeeOther)
			return
		}
		requestID := observability.GetRequestID(r.Context())
		errors.WriteError(w, a.logger, errors.Unauthorized("Login required"), requestID)
	})
}

func exempt(path string) bool {
	if slices.Contains(exemptPaths, path) {
		return true
	}
	return slices.ContainsFunc(exemptPrefixes, func(p string) bool {
		return strings.HasPrefix(path, p)
	})
}

// wantsHTML reports whether r is a browser page load rather than an API,
// SSE or datastar fetch.
func wantsHTML(r *http.Request) bool {
	if r.Method != http.MethodGet || r.Header.Get("Datastar-Request") != "" {
		return false
	}
	if strings.HasPrefix(r.URL.Path, "/api/") || strings.HasPrefix(r.URL.Path, "/sse/") {
		return false
	}
	accept := r.Header.Get("Accept")
	return accept == "" || strings.Contains(accept, "text/html")
}

// SafeNext returns next when it is a local path, else "/".
func SafeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "/"
	}
	return next
}
