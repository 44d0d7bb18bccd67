// Package server provides the minimal HTTP surface the digest service
// exposes: a health check, a budget/cache status endpoint, and a
// webhook command endpoint bot integrations post slash-style commands
// to ("/health", "/whisper", "/analyze TICKER", "/council TICKER",
// "/dashboard").
package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/aristath/vrp-sentinel/internal/budget"
	"github.com/aristath/vrp-sentinel/internal/cache"
	"github.com/aristath/vrp-sentinel/internal/database"
	"github.com/aristath/vrp-sentinel/internal/jobs"
	"github.com/aristath/vrp-sentinel/internal/pipeline"
	"github.com/aristath/vrp-sentinel/internal/ticker"
)

// Config configures the server's dependencies and auth secrets.
type Config struct {
	Log    zerolog.Logger
	DevMode bool

	BotWebhookSecret     string
	AlertIngestSharedKey string

	Budget *budget.Tracker
	Cache  *cache.Cache
	Jobs   *jobs.Runner
	Orch   *pipeline.Orchestrator
	DB     *database.DB
}

// Server wraps a chi router exposing the admin/webhook HTTP surface.
type Server struct {
	router *chi.Mux
	log    zerolog.Logger
	cfg    Config
}

// New builds a Server and wires its routes.
func New(cfg Config) *Server {
	s := &Server{
		router: chi.NewRouter(),
		log:    cfg.Log.With().Str("component", "server").Logger(),
		cfg:    cfg,
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// Router exposes the configured http.Handler for use with http.Server.
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(60 * time.Second))
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/status", s.withSharedKeyAuth(s.handleStatus))
		r.Post("/webhook", s.withBearerAuth(s.handleWebhook))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.cfg.DB.QuickCheck(r.Context()); err != nil {
		s.log.Error().Err(err).Msg("health check: database unreachable")
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":  "unhealthy",
			"service": "vrp-sentinel",
			"error":   "database unreachable",
		})
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"service": "vrp-sentinel",
	})
}

// handleStatus reports budget and cache counters, gated behind the
// alert-ingest shared key.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	summary, err := s.cfg.Budget.StatusSummary(r.Context())
	if err != nil {
		s.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "budget status unavailable"})
		return
	}
	stats := s.cfg.Cache.Stats()

	dbHealthy := true
	if err := s.cfg.DB.HealthCheck(r.Context()); err != nil {
		s.log.Warn().Err(err).Msg("status: database integrity check failed")
		dbHealthy = false
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"calls_today":   summary.CallsToday,
		"cost_today":    summary.CostToday.StringFixed(2),
		"month_to_date": summary.MonthToDate.StringFixed(2),
		"cache_hits":    stats.Hits,
		"cache_misses":  stats.Misses,
		"db_healthy":    dbHealthy,
	})
}

// webhookRequest is the expected shape of a bot-webhook command post.
type webhookRequest struct {
	Command string `json:"command"`
}

const maxCommandLength = 500

// handleWebhook dispatches one of the fixed slash commands. Unknown
// commands and malformed ticker arguments return 400 rather than
// silently ignoring the request.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	var req webhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed request body"})
		return
	}

	cmd := req.Command
	if len(cmd) > maxCommandLength {
		cmd = cmd[:maxCommandLength]
	}
	cmd = strings.TrimSpace(cmd)

	switch {
	case cmd == "/health":
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	case cmd == "/dashboard":
		summary, err := s.cfg.Budget.StatusSummary(r.Context())
		if err != nil {
			s.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "status unavailable"})
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]interface{}{"calls_today": summary.CallsToday})
	case strings.HasPrefix(cmd, "/analyze "):
		s.handleAnalyze(w, r, strings.TrimPrefix(cmd, "/analyze "))
	case strings.HasPrefix(cmd, "/council "):
		s.handleAnalyze(w, r, strings.TrimPrefix(cmd, "/council "))
	case cmd == "/whisper":
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "acknowledged"})
	default:
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown command"})
	}
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request, arg string) {
	tk, err := ticker.Normalize(arg)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid ticker"})
		return
	}

	rec := s.cfg.Orch.EnrichSentiment(r.Context(), pipeline.Candidate{Ticker: tk})
	if rec == nil {
		s.writeJSON(w, http.StatusOK, map[string]interface{}{"ticker": tk, "sentiment": "unavailable"})
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"ticker":    tk,
		"direction": rec.Direction,
		"score":     rec.Score,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("failed to encode JSON response")
	}
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
