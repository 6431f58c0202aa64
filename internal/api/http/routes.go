package http

import (
	"floors-indexer/internal/api/http/mw"
	"floors-indexer/internal/metrics"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func BuildRouter(
	h *Handler,
	logMW *mw.LoggingMiddleware,
	gzipMW *mw.GzipMiddleware,
	rateLimitMW *mw.RateLimitMiddleware,
	jwtMW *mw.JWTMiddleware,
	corsMW *mw.CORSMiddleware,
) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	if logMW != nil {
		r.Use(logMW.Handler)
	}
	if gzipMW != nil {
		r.Use(gzipMW.Handler)
	}
	if corsMW != nil {
		r.Use(corsMW.Handler())
	}

	// tech endpoint not auth
	r.Get("/healthz", h.Healthz)
	r.Get("/readiness", h.Readiness)
	r.Mount("/metrics", metrics.Handler())

	// read API with rate limit and optional jwt
	r.Route("/api", func(apiR chi.Router) {
		if rateLimitMW != nil {
			apiR.Use(rateLimitMW.Handler)
		}
		if jwtMW != nil {
			apiR.Use(jwtMW.Handler)
		}

		apiR.Get("/global", h.GlobalStats)
		apiR.Route("/markets", func(mm chi.Router) {
			mm.Get("/{id}/stats", h.MarketStats)
			mm.Get("/{id}/candles", h.MarketCandles)
		})
	})

	return r
}
