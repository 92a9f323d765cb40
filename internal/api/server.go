package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/gboone/site-scanner-analyzer/internal/config"
	"github.com/gboone/site-scanner-analyzer/internal/fetch"
	"github.com/gboone/site-scanner-analyzer/internal/monitoring"
	"github.com/gboone/site-scanner-analyzer/internal/scan"
	"github.com/gboone/site-scanner-analyzer/internal/storage"
)

// Server holds the dependencies for the HTTP server.
type Server struct {
	config     *config.Config
	router     http.Handler
	httpServer *http.Server
	scanner    *scan.Scanner
	proxy      *fetch.Proxy
	pgStore    *storage.PostgresStore
	scanCache  *storage.ScanCache
	metrics    *monitoring.Metrics
	logger     *zap.Logger

	bulk *bulkState
}

func NewServer(cfg *config.Config, sc *scan.Scanner, proxy *fetch.Proxy, ps *storage.PostgresStore, cache *storage.ScanCache, m *monitoring.Metrics, l *zap.Logger) *Server {
	s := &Server{
		config:    cfg,
		scanner:   sc,
		proxy:     proxy,
		pgStore:   ps,
		scanCache: cache,
		metrics:   m,
		logger:    l,
		bulk:      &bulkState{},
	}
	s.router = s.setupRouter()
	return s
}

func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%s", s.config.ServerPort),
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 120 * time.Second, // scans answer inline
	}
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
