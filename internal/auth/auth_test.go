package auth

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuth() *Authenticator {
	return New(Config{
		Username: "twba-admin",
		Password: "s3cret",
		Secret:   "test-secret-key-32-bytes-long!!!",
		MaxAge:   time.Hour,
	}, slog.New(slog.DiscardHandler))
}

func TestCheck(t *testing.T) {
	a := newAuth()
	tests := []struct {
		user, pass string
		want       bool
	}{
		{"twba-admin", "s3cret", true},
		{"twba-admin", "wrong", false},
		{"admin", "s3cret", false},
		{"", "", false},
		{"twba-admin", "s3cret ", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, a.Check(tt.user, tt.pass), "%q/%q", tt.user, tt.pass)
	}

	noPassword := New(Config{Username: "twba-admin", Secret: "x"}, nil)
	assert.False(t, noPassword.Check("twba-admin", ""))
}

// loginCookie logs in and returns the session cookie.
func loginCookie(t *testing.T, a *Authenticator) *http.Cookie {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	require.NoError(t, a.Login(rec, req, " twba-admin ", "s3cret"))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, SessionName, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	return cookies[0]
}

func TestLoginLogout(t *testing.T) {
	a := newAuth()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	assert.ErrorIs(t, a.Login(rec, req, "twba-admin", "nope"), ErrInvalidCredentials)
	assert.Empty(t, rec.Result().Cookies())

	cookie := loginCookie(t, a)
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	user, ok := a.User(req)
	require.True(t, ok)
	assert.Equal(t, "twba-admin", user)

	rec = httptest.NewRecorder()
	require.NoError(t, a.Logout(rec, req))
	cleared := rec.Result().Cookies()
	require.Len(t, cleared, 1)
	assert.Negative(t, cleared[0].MaxAge)
}

func TestUser_TamperedCookie(t *testing.T) {
	a := newAuth()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionName, Value: "forged"})
	_, ok := a.User(req)
	assert.False(t, ok)
}

func TestRequireLogin(t *testing.T) {
	a := newAuth()
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	h := a.RequireLogin(ok)
	cookie := loginCookie(t, a)

	tests := []struct {
		name       string
		method     string
		path       string
		headers    map[string]string
		withCookie bool
		wantStatus int
		wantLoc    string
	}{
		{name: "health exempt", method: http.MethodGet, path: "/health", wantStatus: http.StatusTeapot},
		{name: "login exempt", method: http.MethodGet, path: "/login", wantStatus: http.StatusTeapot},
		{name: "static exempt", method: http.MethodGet, path: "/static/app.css", wantStatus: http.StatusTeapot},
		{name: "login lookalike 401", method: http.MethodPost, path: "/loginx", wantStatus: http.StatusUnauthorized},
		{name: "health lookalike 401", method: http.MethodPost, path: "/healthz/extra", wantStatus: http.StatusUnauthorized},
		{
			name: "page redirects", method: http.MethodGet, path: "/?tab=tobacco",
			headers:    map[string]string{"Accept": "text/html,application/xhtml+xml"},
			wantStatus: http.StatusSeeOther, wantLoc: "/login?next=%2F%3Ftab%3Dtobacco",
		},
		{name: "api 401", method: http.MethodGet, path: "/api/charts", wantStatus: http.StatusUnauthorized},
		{name: "sse 401", method: http.MethodGet, path: "/sse/tab/general", wantStatus: http.StatusUnauthorized},
		{
			name: "datastar fetch 401", method: http.MethodGet, path: "/",
			headers:    map[string]string{"Datastar-Request": "true"},
			wantStatus: http.StatusUnauthorized,
		},
		{name: "post 401", method: http.MethodPost, path: "/api/sql", wantStatus: http.StatusUnauthorized},
		{name: "logged in", method: http.MethodGet, path: "/api/charts", withCookie: true, wantStatus: http.StatusTeapot},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if tt.withCookie {
				req.AddCookie(cookie)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantLoc != "" {
				assert.Equal(t, tt.wantLoc, rec.Header().Get("Location"))
			}
			if tt.wantStatus == http.StatusUnauthorized {
				var body map[string]any
				require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
				assert.Equal(t, false, body["success"])
			}
		})
	}
}

func TestSafeNext(t *testing.T) {
	tests := map[string]string{
		"":                    "/",
		"/":                   "/",
		"/?tab=laundry":       "/?tab=laundry",
		"https://evil.test/":  "/",
		"//evil.test":         "/",
		"/\\evil.test":        "/",
		"javascript:alert(1)": "/",
	}
	for in, want := range tests {
		assert.Equal(t, want, SafeNext(in), "input %q", in)
	}
}
