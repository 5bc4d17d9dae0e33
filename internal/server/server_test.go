package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scout-dashboard/internal/auth"
	"scout-dashboard/internal/config"
	"scout-dashboard/internal/dataset"
	"scout-dashboard/internal/services"
)

var quiet = slog.New(slog.DiscardHandler)

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			ReadTimeout:     time.Second,
			WriteTimeout:    time.Second,
			ShutdownTimeout: time.Second,
			LoadTimeout:     time.Second,
		},
		Security: config.SecurityConfig{
			RateLimitRPS:   100,
			RateLimitBurst: 100,
			AllowedOrigins: []string{"http://localhost:8050"},
		},
	}
}

func testServer(t *testing.T) *Server {
	t.Helper()
	d := services.NewDashboard(quiet)
	d.SetSnapshot(dataset.Snapshot{
		Source: "test",
		Transactions: dataset.TransactionTable{
			Schema: dataset.NewSchema(dataset.ColInteractionID, dataset.ColGender, dataset.ColBasketTotal),
			Rows: []dataset.Transaction{
				{ID: "T1", Gender: "Female", BasketTotal: sql.NullFloat64{Float64: 700, Valid: true}},
				{ID: "T2", Gender: "Male", BasketTotal: sql.NullFloat64{Float64: 900, Valid: true}},
			},
		},
	})
	a := auth.New(auth.Config{
		Username: "twba-admin",
		Password: "s3cret",
		Secret:   "0123456789abcdef0123456789abcdef",
		MaxAge:   time.Hour,
	}, quiet)
	return NewServer(Deps{Config: testConfig(), Dashboard: d, Auth: a, Logger: quiet})
}

func login(t *testing.T, s *Server) *http.Cookie {
	t.Helper()
	form := url.Values{"username": {"twba-admin"}, "password": {"s3cret"}}
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	return cookies[0]
}

func TestServer_Routes(t *testing.T) {
	s := testServer(t)
	cookie := login(t, s)

	tests := []struct {
		method     string
		path       string
		wantStatus int
	}{
		{http.MethodGet, "/", http.StatusOK},
		{http.MethodGet, "/health", http.StatusOK},
		{http.MethodGet, "/admin/stats", http.StatusOK},
		{http.MethodPost, "/admin/reload", http.StatusServiceUnavailable},
		{http.MethodGet, "/api/charts", http.StatusOK},
		{http.MethodGet, "/api/charts/general.gender", http.StatusOK},
		{http.MethodGet, "/api/charts/general.missing", http.StatusNotFound},
		{http.MethodGet, "/api/tabs/general", http.StatusOK},
		{http.MethodGet, "/api/filters", http.StatusOK},
		{http.MethodGet, "/api/preview/twba_items", http.StatusServiceUnavailable},
		{http.MethodGet, "/sse/tab/tobacco", http.StatusOK},
		{http.MethodGet, "/sse/charts/general.gender", http.StatusOK},
		{http.MethodGet, "/nonexistent", http.StatusNotFound},
		{http.MethodDelete, "/api/charts", http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			req.AddCookie(cookie)
			rec := httptest.NewRecorder()
			s.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
			assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
		})
	}
}

func TestServer_RequiresLogin(t *testing.T) {
	s := testServer(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept", "text/html")
	s.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login?next=%2F", rec.Header().Get("Location"))

	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/charts", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_JSONResponse(t *testing.T) {
	s := testServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/charts/general.gender?gender=Male", nil)
	req.AddCookie(login(t, s))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body struct {
		Success bool `json:"success"`
		Data    struct {
			ID    string `json:"id"`
			Table struct {
				Rows [][]string `json:"rows"`
			} `json:"table"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.True(t, body.Success)
	assert.Equal(t, "general.gender", body.Data.ID)
	assert.Equal(t, [][]string{{"Male", "1", "₱900.00"}}, body.Data.Table.Rows)
}

func TestServer_SSEContentType(t *testing.T) {
	s := testServer(t)
	req := httptest.NewRequest(http.MethodGet, "/sse/tab/general", nil)
	req.AddCookie(login(t, s))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/event-stream")
	assert.Contains(t, rec.Body.String(), `id="tab-general"`)
}

func TestServer_Recovery(t *testing.T) {
	s := testServer(t)
	s.router.Get("/panic", func(http.ResponseWriter, *http.Request) { panic("boom") })

	req := httptest.NewRequest(http.MethodGet, "/panic", nil)
	req.AddCookie(login(t, s))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestGracefulServer_Serve(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	httpServer := &http.Server{Handler: testServer(t)}
	gs := NewGracefulServer(httpServer, quiet, testConfig())

	hookRan := make(chan struct{})
	gs.RegisterShutdownHook(func(ctx context.Context) error {
		close(hookRan)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- gs.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/health")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
	<-hookRan
}

func TestGracefulServer_HookError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	gs := NewGracefulServer(&http.Server{Handler: http.NotFoundHandler()}, quiet, testConfig())
	gs.RegisterShutdownHook(func(ctx context.Context) error { return errors.New("flush failed") })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = gs.Serve(ctx, ln)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "flush failed")
}
