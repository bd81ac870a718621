// Package server exposes the decision queue, item evidence and title list
// over HTTP for the presentation layer.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/fmv-cli/internal/config"
	"github.com/sells-group/fmv-cli/internal/decision"
	"github.com/sells-group/fmv-cli/internal/monitoring"
	"github.com/sells-group/fmv-cli/internal/store"
	"github.com/sells-group/fmv-cli/internal/valuation"
)

// Options configures a Server.
type Options struct {
	Assumptions     decision.Assumptions
	Server          config.ServerConfig
	StaleAfterHours int
}

// Server is the read-only HTTP API.
type Server struct {
	router      chi.Router
	store       store.Store
	valuations  *valuation.Service
	stats       *monitoring.Collector
	assumptions decision.Assumptions
	staleHours  int
	limiter     *rate.Limiter
}

// New builds a Server. A zero RatePerSecond disables request limiting.
func New(st store.Store, svc *valuation.Service, opts Options) *Server {
	cfg := opts.Server
	s := &Server{
		router:      chi.NewRouter(),
		store:       st,
		valuations:  svc,
		stats:       monitoring.NewCollector(st),
		assumptions: opts.Assumptions,
		staleHours:  opts.StaleAfterHours,
	}
	if cfg.RatePerSecond > 0 {
		burst := cfg.RateBurst
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(s.logRequests)
	s.router.Use(s.rateLimit)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	s.router.Get("/health", s.handleHealth)
	s.router.Route("/api", func(r chi.Router) {
		r.Get("/decision-queue", s.handleDecisionQueue)
		r.Get("/items/{id}/evidence", s.handleEvidence)
		r.Get("/titles", s.handleTitles)
		r.Get("/stats", s.handleStats)
	})
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Run serves on port until ctx is cancelled, then shuts down gracefully.
func Run(ctx context.Context, h http.Handler, port int) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- eris.Wrap(err, "server: listen")
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	zap.L().Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return eris.Wrap(err, "server: shutdown")
	}
	return <-errCh
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		zap.L().Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && !s.limiter.Allow() {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("server: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type queueResponse struct {
	Items       []decision.Decision  `json:"items"`
	Count       int                  `json:"count"`
	Assumptions decision.Assumptions `json:"assumptions"`
}

func parseFloatParam(r *http.Request, name string) (float64, bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, false, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false, eris.Errorf("%s must be a number", name)
	}
	return v, true, nil
}

func parseIntParam(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, eris.Errorf("%s must be a non-negative integer", name)
	}
	return v, nil
}

func (s *Server) handleDecisionQueue(w http.ResponseWriter, r *http.Request) {
	a := s.assumptions
	for _, name := range decision.AssumptionFields {
		v, ok, err := parseFloatParam(r, name)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if ok {
			a.Set(name, v)
		}
	}

	minMarket, _, err := parseFloatParam(r, "min_market")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit, err := parseIntParam(r, "limit")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	offset, err := parseIntParam(r, "offset")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	q := r.URL.Query()
	sortBy := q.Get("sort")
	if sortBy != "" && sortBy != decision.SortPriority && sortBy != decision.SortFMVDesc {
		writeError(w, http.StatusBadRequest, "sort must be priority or fmv_desc")
		return
	}

	items, err := decision.LoadQueue(r.Context(), s.store, a, decision.QueueOptions{
		Action:       decision.Action(q.Get("action")),
		GradeClasses: decision.ParseGradeClasses(q.Get("grade_classes")),
		MinMarket:    minMarket,
		SortBy:       sortBy,
		Limit:        limit,
		Offset:       offset,
	})
	if err != nil {
		zap.L().Error("decision queue failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to build decision queue")
		return
	}
	if items == nil {
		items = []decision.Decision{}
	}
	writeJSON(w, http.StatusOK, queueResponse{Items: items, Count: len(items), Assumptions: a})
}

func (s *Server) handleEvidence(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	view, err := s.valuations.Evidence(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "item not found")
		return
	}
	if err != nil {
		zap.L().Error("evidence failed", zap.Int64("item_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load evidence")
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleTitles(w http.ResponseWriter, r *http.Request) {
	titles, err := s.store.ListTitles(r.Context())
	if err != nil {
		zap.L().Error("list titles failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list titles")
		return
	}
	if titles == nil {
		titles = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"titles": titles})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	snap, err := s.stats.Collect(r.Context(), s.staleHours)
	if err != nil {
		zap.L().Error("collect stats failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to collect stats")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}
