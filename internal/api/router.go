package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ladderhq/ladderd/internal/config"
	"github.com/ladderhq/ladderd/internal/events"
	"github.com/ladderhq/ladderd/internal/rank"
	"github.com/ladderhq/ladderd/internal/store"
)

func NewRouter(s store.Store, r *rank.Ranker, ev events.Client, cfg *config.Config, logger *slog.Logger) http.Handler {
	router := chi.NewRouter()

	router.Use(chiMiddleware.Recoverer)
	router.Use(chiMiddleware.RequestID)
	router.Use(RequestLogger(logger))
	router.Use(RateLimitMiddleware(cfg.Server.RateLimitPerMinute))

	ladders := NewLaddersHandler(s, r, ev, cfg.Defaults)
	matches := NewMatchesHandler(s, ev)

	router.Route("/api/v1/ladders/{ladder}", func(router chi.Router) {
		router.Get("/ranking", ladders.Ranking)
		router.Post("/recalculate", ladders.Recalculate)
		router.Get("/players/{name}/history", ladders.PlayerHistory)

		router.Post("/matches", matches.Submit)
		router.Get("/matches", matches.List)

		router.Group(func(router chi.Router) {
			router.Use(AdminAuthMiddleware(cfg.Server.AdminToken))
			router.Post("/settings", ladders.Settings)
			router.Delete("/matches/{id}", matches.Delete)
		})
	})

	return router
}

func NewMetricsRouter() http.Handler {
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())
	return r
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
