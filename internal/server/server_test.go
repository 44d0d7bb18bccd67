package server

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/aristath/vrp-sentinel/internal/budget"
	"github.com/aristath/vrp-sentinel/internal/cache"
	"github.com/aristath/vrp-sentinel/internal/clock"
	"github.com/aristath/vrp-sentinel/internal/database"
)

func testDB(t *testing.T) *database.DB {
	t.Helper()
	dir := t.TempDir()
	db, err := database.New(database.Config{Path: filepath.Join(dir, "test.db")})
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func testServer(t *testing.T, sharedKey, botSecret string) *Server {
	t.Helper()
	db := testDB(t)
	log := zerolog.Nop()
	clk := clock.New(log)
	budgetTracker := budget.New(db, clk, 40, 5.00, log)
	cacheStore := cache.New(db, 128, "v1", log)

	return New(Config{
		Log:                  log,
		AlertIngestSharedKey: sharedKey,
		BotWebhookSecret:     botSecret,
		Budget:               budgetTracker,
		Cache:                cacheStore,
		DB:                   db,
	})
}

func TestHealth_DatabaseReachable_OK(t *testing.T) {
	s := testServer(t, "", "")
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestStatus_UnconfiguredSharedKey_FailsClosed(t *testing.T) {
	s := testServer(t, "", "")
	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestStatus_WrongKey_Unauthorized(t *testing.T) {
	s := testServer(t, "secret123", "")
	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestStatus_CorrectKey_OK(t *testing.T) {
	s := testServer(t, "secret123", "")
	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.Header.Set("Authorization", "Bearer secret123")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"db_healthy":true`)
}

func TestWebhook_UnknownCommand_BadRequest(t *testing.T) {
	s := testServer(t, "", "botsecret")
	req := httptest.NewRequest(http.MethodPost, "/api/webhook", strings.NewReader(`{"command":"/bogus"}`))
	req.Header.Set("Authorization", "Bearer botsecret")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebhook_HealthCommand_OK(t *testing.T) {
	s := testServer(t, "", "botsecret")
	req := httptest.NewRequest(http.MethodPost, "/api/webhook", strings.NewReader(`{"command":"/health"}`))
	req.Header.Set("Authorization", "Bearer botsecret")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestWebhook_WrongSecret_Unauthorized(t *testing.T) {
	s := testServer(t, "", "botsecret")
	req := httptest.NewRequest(http.MethodPost, "/api/webhook", strings.NewReader(`{"command":"/health"}`))
	req.Header.Set("Authorization", "Bearer wrong")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestValidJWT_GarbageTokenRejected(t *testing.T) {
	require.False(t, validJWT("not-a-jwt", "secret"))
}
