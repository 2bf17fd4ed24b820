// Package api serves computed statistics over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/mobility-stats/internal/stats"
	"github.com/sells-group/mobility-stats/internal/store"
)

// Handler serves statistics computed from a record store.
type Handler struct {
	store  store.RecordStore
	engine *stats.Engine
}

// NewHandler creates a Handler.
func NewHandler(st store.RecordStore, engine *stats.Engine) *Handler {
	return &Handler{store: st, engine: engine}
}

// Options configures the router.
type Options struct {
	CORSOrigins []string
	RateLimit   float64 // requests per second on stats endpoints; <= 0 disables
	RateBurst   int
}

// NewRouter returns the HTTP handler with CORS and rate limiting applied.
// /health and /metrics are exempt from the rate limit.
func NewRouter(h *Handler, opts Options) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(instrument)

	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", h.HandleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Group(func(r chi.Router) {
		if opts.RateLimit > 0 {
			r.Use(rateLimit(rate.NewLimiter(rate.Limit(opts.RateLimit), max(opts.RateBurst, 1))))
		}
		h.RegisterRoutes(r)
	})
	return r
}

// RegisterRoutes registers the stats routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/stats", h.HandleStats)
	r.Get("/campaigns/{id}/stats", h.HandleCampaignStats)
}

// HandleHealth reports whether the store is reachable.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		zap.L().Warn("health check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleStats computes Stats over the records matching the query:
// campaign_id, company_id and since (RFC3339 or YYYY-MM-DD).
func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.RecordFilter{
		CampaignID: q.Get("campaign_id"),
		CompanyID:  q.Get("company_id"),
	}
	if s := q.Get("since"); s != "" {
		since, err := parseSince(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid since")
			return
		}
		filter.Since = since
	}

	recs, err := h.store.ListRecords(r.Context(), filter)
	if err != nil {
		zap.L().Error("list records failed", zap.String("campaign_id", filter.CampaignID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load records")
		return
	}

	recordsAggregated.WithLabelValues("stats").Add(float64(len(recs)))
	writeJSON(w, http.StatusOK, h.engine.Compute(store.Table(recs)))
}

// HandleCampaignStats returns the participation summary of one campaign.
func (h *Handler) HandleCampaignStats(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	c, err := h.store.GetCampaign(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "campaign not found")
		return
	}
	if err != nil {
		zap.L().Error("get campaign failed", zap.String("campaign_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load campaign")
		return
	}

	recs, err := h.store.ListRecords(r.Context(), store.RecordFilter{CampaignID: id})
	if err != nil {
		zap.L().Error("list records failed", zap.String("campaign_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load records")
		return
	}

	recordsAggregated.WithLabelValues("campaign").Add(float64(len(recs)))
	writeJSON(w, http.StatusOK, h.engine.Campaign(*c, store.Table(recs)))
}

func parseSince(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse(time.DateOnly, s)
}

func rateLimit(l *rate.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.Allow() {
				w.Header().Set("Retry-After", "1")
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("encode response failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
