package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/api/health", s.handleHealthCheck)

	// Same-origin fetch fallback used by the gateway.
	r.Method(http.MethodGet, "/api/proxy", s.proxy)
	r.Method(http.MethodHead, "/api/proxy", s.proxy)

	r.Route("/api", func(r chi.Router) {
		r.Post("/scan", s.handleScan)
		r.Get("/scan/status", s.handleScanStatus)
		r.Post("/scan/bulk", s.handleBulkScan)
		r.Get("/scan/bulk", s.handleBulkStatus)
		r.Delete("/scan/bulk", s.handleBulkAbort)
		r.Get("/sites", s.handleListSites)
	})

	return r
}
