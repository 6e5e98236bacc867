// Package api provides the HTTP REST API server for MarketMind.
//
// It exposes endpoints for the sentiment gauge and history, cached market
// data, pipeline and analytics triggers, AI research briefs, feedback, and
// per-user watchlists.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sasidharan-s/marketmind/internal/analytics"
	"github.com/sasidharan-s/marketmind/internal/config"
	"github.com/sasidharan-s/marketmind/internal/gateway"
	"github.com/sasidharan-s/marketmind/internal/llm"
	"github.com/sasidharan-s/marketmind/internal/marketdata"
	"github.com/sasidharan-s/marketmind/internal/pipeline"
	"github.com/sasidharan-s/marketmind/internal/research"
	"github.com/sasidharan-s/marketmind/internal/store"
	"github.com/sasidharan-s/marketmind/pkg/models"
	"github.com/sasidharan-s/marketmind/pkg/utils"
)

// Version is stamped at build time.
var Version = "dev"

// maxSubmissionBody caps the request body on user-mutation endpoints. The
// largest legal submission is a 2000-char feedback message, so 16 KiB leaves
// ample headroom for encoding overhead.
const maxSubmissionBody = 16 << 10

// Deps bundles the services the server routes to.
type Deps struct {
	Store    store.Store
	Pipeline *pipeline.Pipeline
	Daily    *analytics.Daily
	Market   *marketdata.Service
	Gateway  *gateway.Service
	Research *research.Service // nil when no AI key is configured
}

// Server is the HTTP API server.
type Server struct {
	router chi.Router
	cfg    *config.Config
	deps   Deps
	log    *slog.Logger
}

// NewServer creates a configured API server with all routes and middleware.
func NewServer(cfg *config.Config, deps Deps, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{cfg: cfg, deps: deps, log: log}
	s.router = s.buildRouter()
	return s
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// ListenAndServe starts the HTTP server with graceful shutdown.
func (s *Server) ListenAndServe(addr string) error {
	httpSrv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-done:
	}
	s.log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return httpSrv.Shutdown(ctx)
}

// buildRouter configures all routes and middleware.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	origins := []string{"*"}
	if len(s.cfg.API.CORSOrigins) > 0 {
		origins = s.cfg.API.CORSOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	throttle := newClientLimiter(s.cfg.API.RateRPS, s.cfg.API.RateBurst)

	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		// Reads
		r.Get("/sentiment/current", s.handleSentimentCurrent)
		r.Get("/sentiment/history", s.handleSentimentHistory)
		r.Get("/market-data", s.handleMarketData)

		// Triggers
		r.Post("/pipeline/run", s.handlePipelineRun)
		r.Post("/analytics/run", s.handleAnalyticsRun)

		// AI research
		r.Post("/research", s.handleResearch)

		// User submissions, throttled per client address and bounded in
		// size before any decoding happens
		r.Group(func(r chi.Router) {
			r.Use(throttle.middleware)
			r.Use(middleware.RequestSize(maxSubmissionBody))
			r.Post("/feedback", s.handleFeedback)
			r.Post("/users/{userID}/watchlist", s.handleWatchlistAdd)
			r.Delete("/users/{userID}/watchlist/{itemID}", s.handleWatchlistRemove)
		})
	})

	return r
}

// ============================================================
// Request / Response types
// ============================================================

// APIResponse is the standard JSON envelope.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// ResearchRequest is the body for POST /api/v1/research.
type ResearchRequest struct {
	Question string `json:"question"`
}

// WatchlistAddRequest is the body for POST /api/v1/users/{userID}/watchlist.
type WatchlistAddRequest struct {
	Ticker string `json:"ticker"`
}

// ============================================================
// Handlers
// ============================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	data := map[string]interface{}{
		"status":        "ok",
		"version":       Version,
		"market_status": utils.MarketStatus(),
		"time_ist":      utils.FormatDateTimeIST(utils.NowIST()),
	}
	if s.deps.Pipeline != nil {
		data["pipeline_state"] = string(s.deps.Pipeline.State())
		if last := s.deps.Pipeline.LastRun(); !last.IsZero() {
			data["pipeline_last_run"] = last.Format(time.RFC3339)
		}
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: data})
}

func (s *Server) handleSentimentCurrent(w http.ResponseWriter, r *http.Request) {
	snap, err := s.deps.Store.CurrentSnapshot(r.Context())
	if errors.Is(err, store.ErrNotFound) {
		// No pipeline run yet; serve the neutral zero state.
		snap = &models.SentimentSnapshot{
			WindowHours: models.SentimentWindowHours,
			LastUpdated: time.Now().UTC(),
		}
	} else if err != nil {
		s.log.Error("load snapshot failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load sentiment snapshot")
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: snap})
}

func (s *Server) handleSentimentHistory(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()
	from := r.URL.Query().Get("from")
	to := r.URL.Query().Get("to")
	if to == "" {
		to = utils.FormatDateUTC(now)
	}
	if from == "" {
		from = utils.FormatDateUTC(now.AddDate(0, 0, -7))
	}
	for _, d := range []string{from, to} {
		if _, err := time.Parse("2006-01-02", d); err != nil {
			writeError(w, http.StatusBadRequest, "dates must be YYYY-MM-DD")
			return
		}
	}
	if from > to {
		writeError(w, http.StatusBadRequest, "from is after to")
		return
	}

	records, err := s.deps.Store.DailyRecords(r.Context(), from, to)
	if err != nil {
		s.log.Error("load history failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load sentiment history")
		return
	}
	if records == nil {
		records = []models.DailySentimentRecord{}
	}
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: map[string]interface{}{
			"from":    from,
			"to":      to,
			"records": records,
		},
	})
}

func (s *Server) handleMarketData(w http.ResponseWriter, r *http.Request) {
	budget := s.cfg.MarketData.RequestTimeout()
	if budget <= 0 {
		budget = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(r.Context(), budget)
	defer cancel()

	res, err := s.deps.Market.Get(ctx)
	if err != nil {
		if errors.Is(err, marketdata.ErrUnavailable) {
			writeError(w, http.StatusServiceUnavailable, "market data unavailable")
			return
		}
		s.log.Error("market data failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load market data")
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: res})
}

func (s *Server) handlePipelineRun(w http.ResponseWriter, r *http.Request) {
	stats, err := s.deps.Pipeline.Run(r.Context())
	if errors.Is(err, pipeline.ErrRunInProgress) {
		// Overlap is a no-op, not a failure.
		writeJSON(w, http.StatusOK, APIResponse{
			Success: true,
			Data:    map[string]interface{}{"skipped": true, "reason": "run already in progress"},
		})
		return
	}
	if err != nil {
		if errors.Is(err, llm.ErrNoAPIKey) {
			writeError(w, http.StatusInternalServerError, "configuration error: AI provider key missing")
			return
		}
		s.log.Error("pipeline run failed", "error", err)
		writeError(w, http.StatusInternalServerError, "pipeline run failed")
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: stats})
}

func (s *Server) handleAnalyticsRun(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		date = utils.FormatDateUTC(time.Now())
	}
	if _, err := time.Parse("2006-01-02", date); err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	rec, err := s.deps.Daily.Run(r.Context(), date)
	if errors.Is(err, analytics.ErrRunInProgress) {
		writeJSON(w, http.StatusOK, APIResponse{
			Success: true,
			Data:    map[string]interface{}{"skipped": true, "reason": "run already in progress"},
		})
		return
	}
	if err != nil {
		s.log.Error("analytics run failed", "date", date, "error", err)
		writeError(w, http.StatusInternalServerError, "analytics run failed")
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: rec})
}

func (s *Server) handleResearch(w http.ResponseWriter, r *http.Request) {
	if s.deps.Research == nil {
		writeError(w, http.StatusServiceUnavailable, "research unavailable: AI provider not configured")
		return
	}

	var req ResearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	brief, err := s.deps.Research.ResearchBrief(r.Context(), req.Question)
	if err != nil {
		switch {
		case errors.Is(err, research.ErrEmptyQuestion):
			writeError(w, http.StatusBadRequest, "question is required")
		case errors.Is(err, research.ErrMalformedResponse):
			writeError(w, http.StatusBadGateway, "AI response malformed")
		case errors.Is(err, llm.ErrRateLimit):
			writeError(w, http.StatusTooManyRequests, "AI provider rate limit exceeded")
		default:
			s.log.Error("research failed", "error", err)
			writeError(w, http.StatusInternalServerError, "research failed")
		}
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: brief})
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var in gateway.FeedbackInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	rec, err := s.deps.Gateway.SubmitFeedback(r.Context(), in)
	if err != nil {
		s.writeGatewayError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, APIResponse{Success: true, Data: rec})
}

func (s *Server) handleWatchlistAdd(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	var req WatchlistAddRequest
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	item, err := s.deps.Gateway.AddWatchlistItem(r.Context(), userID, req.Ticker)
	if err != nil {
		s.writeGatewayError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, APIResponse{Success: true, Data: item})
}

func (s *Server) handleWatchlistRemove(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	itemID := chi.URLParam(r, "itemID")

	if err := s.deps.Gateway.RemoveWatchlistItem(r.Context(), userID, itemID); err != nil {
		s.writeGatewayError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    map[string]interface{}{"removed": itemID},
	})
}

func (s *Server) writeGatewayError(w http.ResponseWriter, err error) {
	var rej *gateway.Rejection
	switch {
	case errors.As(err, &rej):
		writeError(w, http.StatusBadRequest, rej.Error())
	case errors.Is(err, gateway.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, "submission rate limit exceeded, try again shortly")
	case errors.Is(err, gateway.ErrDuplicateTicker):
		writeError(w, http.StatusConflict, "ticker already on watchlist")
	case errors.Is(err, gateway.ErrItemNotFound):
		writeError(w, http.StatusNotFound, "watchlist item not found")
	default:
		s.log.Error("gateway error", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, APIResponse{
		Success: false,
		Error:   msg,
	})
}

// clientAddr extracts the bare client address for rate-limit keying.
func clientAddr(r *http.Request) string {
	addr := r.RemoteAddr
	if i := strings.LastIndex(addr, ":"); i > 0 {
		addr = addr[:i]
	}
	return addr
}
