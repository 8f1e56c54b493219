// Package resultapi serves persisted backtest runs over HTTP as JSON.
package resultapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"ashare/internal/domain"
	"ashare/internal/metrics"
	"ashare/internal/report"
	"ashare/internal/store"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

// Server exposes a read-only view of a RunStore.
type Server struct {
	runs   store.RunStore
	log    zerolog.Logger
	router chi.Router
}

// NewServer creates a Server over runs.
func NewServer(runs store.RunStore, log zerolog.Logger) *Server {
	s := &Server{
		runs:   runs,
		log:    log.With().Str("component", "resultapi").Logger(),
		router: chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// Handler returns an http.Handler with all routes registered.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(30 * time.Second))
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	s.router.Method(http.MethodGet, "/metrics", metrics.Handler())

	s.router.Route("/api/runs", func(r chi.Router) {
		r.Get("/", s.handleListRuns)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetRun)
			r.Get("/trades", s.handleTrades)
			r.Get("/daily", s.handleDaily)
			r.Get("/annual", s.handleAnnual)
			r.Get("/equity", s.handleEquity)
		})
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := defaultLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid limit parameter")
			return
		}
		limit = min(n, maxLimit)
	}
	runs, err := s.runs.ListRuns(r.Context(), limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if runs == nil {
		runs = []store.RunSummary{}
	}
	writeJSON(w, http.StatusOK, RunsResponse{Runs: runs})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.runs.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	trades, err := s.runs.RunTrades(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if code := r.URL.Query().Get("code"); code != "" {
		filtered := trades[:0]
		for _, t := range trades {
			if t.Code == code {
				filtered = append(filtered, t)
			}
		}
		trades = filtered
	}
	writeJSON(w, http.StatusOK, trades)
}

func (s *Server) handleDaily(w http.ResponseWriter, r *http.Request) {
	daily, err := s.runs.RunDaily(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, daily)
}

func (s *Server) handleAnnual(w http.ResponseWriter, r *http.Request) {
	annual, err := s.runs.RunAnnual(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, annual)
}

func (s *Server) handleEquity(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	daily, err := s.runs.RunDaily(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	sampled, gran := report.Resample(daily)
	resp := EquityResponse{
		RunID:       id,
		Granularity: gran.String(),
		Dates:       make([]string, len(sampled)),
		ReturnsPct:  make([]float64, len(sampled)),
		TotalAsset:  make([]float64, len(sampled)),
	}
	for i, rec := range sampled {
		resp.Dates[i] = rec.Date.Format(domain.DateLayout)
		resp.ReturnsPct[i] = rec.CumulativeReturnPct
		resp.TotalAsset[i] = rec.TotalAsset
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	metrics.RecordStoreError(routePattern(r))
	s.log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	writeError(w, http.StatusInternalServerError, "internal error")
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		elapsed := time.Since(start)
		metrics.ObserveRequest(r.Method, routePattern(r), ww.Status(), elapsed)
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", elapsed).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("http request")
	})
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		return rctx.RoutePattern()
	}
	return ""
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}
