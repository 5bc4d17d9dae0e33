package handlers

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scout-dashboard/internal/auth"
	"scout-dashboard/internal/ui/templates"
)

func testAuth() *auth.Authenticator {
	return auth.New(auth.Config{
		Username: "twba-admin",
		Password: "s3cret",
		Secret:   "0123456789abcdef0123456789abcdef",
		MaxAge:   time.Hour,
	}, quiet)
}

func pageRouter(h *PageHandlers) http.Handler {
	r := chi.NewRouter()
	r.Get("/", h.HandleDashboard)
	r.Get("/login", h.HandleLoginPage)
	r.Post("/login", h.HandleLogin)
	r.Post("/logout", h.HandleLogout)
	return r
}

func postForm(h http.Handler, target string, form url.Values, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestPages_LoginFlow(t *testing.T) {
	router := pageRouter(NewPageHandlers(testAuth(), testDashboard(t), false, quiet))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/login?next=%2F%3Ftab%3Dlaundry", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), templates.AppTitle)
	assert.Contains(t, rec.Body.String(), `value="/?tab=laundry"`)

	rec = postForm(router, "/login", url.Values{"username": {"twba-admin"}, "password": {"wrong"}, "next": {"/"}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid username or password")
	assert.Empty(t, rec.Result().Cookies())

	rec = postForm(router, "/login", url.Values{"username": {"twba-admin"}, "password": {"s3cret"}, "next": {"/?tab=laundry"}})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/?tab=laundry", rec.Header().Get("Location"))
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "twba-admin")
	assert.Contains(t, rec.Body.String(), "<option>Female</option>")
	assert.NotContains(t, rec.Body.String(), `id="ask-results"`)

	req = httptest.NewRequest(http.MethodGet, "/login", nil)
	req.AddCookie(cookies[0])
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusSeeOther, rec.Code)

	rec = postForm(router, "/logout", nil, cookies[0])
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, auth.LoginPath, rec.Header().Get("Location"))
}

func TestPages_LoginRejectsOffsiteNext(t *testing.T) {
	router := pageRouter(NewPageHandlers(testAuth(), testDashboard(t), true, quiet))

	rec := postForm(router, "/login", url.Values{"username": {"twba-admin"}, "password": {"s3cret"}, "next": {"https://evil.test"}})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
}
