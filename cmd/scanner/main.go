package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/gboone/site-scanner-analyzer/internal/api"
	"github.com/gboone/site-scanner-analyzer/internal/config"
	"github.com/gboone/site-scanner-analyzer/internal/fetch"
	"github.com/gboone/site-scanner-analyzer/internal/monitoring"
	"github.com/gboone/site-scanner-analyzer/internal/scan"
	"github.com/gboone/site-scanner-analyzer/internal/storage"
)

func main() {
	// Initialize structured logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("could not load config", zap.Error(err))
	}

	// Initialize Storage Layer
	pgStore, err := storage.NewPostgresStore(cfg.PostgresURL)
	if err != nil {
		logger.Fatal("failed to connect to postgres", zap.Error(err))
	}
	scanCache := storage.NewScanCache(cfg.RedisAddr)

	// Initialize Monitoring and the fetch gateway. The gateway falls
	// back through our own proxy endpoint on network failures.
	metrics := monitoring.NewMetrics()
	proxyBase := "http://127.0.0.1:" + cfg.ServerPort + "/api/proxy"
	fetchClient := fetch.NewClient(proxyBase, logger)
	fetchClient.SetDefaultTimeout(time.Duration(cfg.FetchTimeout) * time.Second)
	proxy := fetch.NewProxy(logger)

	// Initialize Core Scanner
	scanner := scan.NewScanner(fetchClient, cfg.DoHEndpoint, logger, metrics)

	// Initialize API Server
	server := api.NewServer(cfg, scanner, proxy, pgStore, scanCache, metrics, logger)

	// Graceful Shutdown
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("could not start server", zap.Error(err))
		}
	}()

	logger.Info("server started", zap.String("port", cfg.ServerPort))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server exiting")
}
