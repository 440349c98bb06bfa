// Package api serves the streamer's HTTP control and query surface.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"tickerwatch/internal/logger"
)

// NewRouter creates a chi router with all routes. live may be nil, in which
// case GET /api/v1/stream/live is not served.
func NewRouter(h *Handler, live *Live) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(TraceMiddleware)
	r.Use(middleware.Recoverer)

	r.Route("/api/v1", func(r chi.Router) {
		if live != nil {
			// Long-lived; must stay outside the request timeout.
			r.Get("/stream/live", live.ServeHTTP)
		}

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(30 * time.Second))

			r.Get("/health", h.HandleHealth)

			r.Get("/snapshots", h.HandleGetSnapshots)
			r.Get("/snapshots/{symbol}", h.HandleGetSnapshot)

			r.Get("/frames", h.HandleGetFrames)
			r.Delete("/frames", h.HandleClearFrames)

			r.Get("/analyze/{symbol}", h.HandleAnalyze)

			r.Put("/stream/endpoint", h.HandleSetEndpoint)
			r.Put("/stream/symbols", h.HandleSetSymbols)
		})
	})

	return r
}

// TraceMiddleware copies chi's request id into the logging trace id.
func TraceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := middleware.GetReqID(r.Context()); id != "" {
			r = r.WithContext(logger.WithTraceID(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}
