package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/gboone/site-scanner-analyzer/internal/domain"
	"github.com/gboone/site-scanner-analyzer/internal/scan"
	"github.com/gboone/site-scanner-analyzer/internal/storage"
)

// bulkState tracks the single in-flight bulk run. Counters are atomic
// because the workers race on them; abort is advisory and only observed
// at task boundaries.
type bulkState struct {
	mu        sync.Mutex
	running   bool
	total     int
	completed atomic.Int64
	failed    atomic.Int64
	abort     atomic.Bool
}

type scanResponse struct {
	Result *domain.ScanResult `json:"result"`
	Diff   *domain.DiffResult `json:"diff,omitempty"`
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	var req domain.ScanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.URL == "" {
		s.respondWithError(w, http.StatusBadRequest, "url is required")
		return
	}

	siteDomain := storage.DomainOf(req.URL)
	if req.ForceScan {
		if err := s.scanCache.RemoveScanned(r.Context(), siteDomain); err != nil {
			s.logger.Warn("failed to clear recent-scan marker", zap.String("domain", siteDomain), zap.Error(err))
		}
	} else {
		recent, err := s.scanCache.IsRecentlyScanned(r.Context(), siteDomain)
		if err != nil {
			s.logger.Error("recent-scan check failed", zap.String("domain", siteDomain), zap.Error(err))
		}
		if recent {
			s.respondWithJSON(w, http.StatusConflict, map[string]string{
				"message": "domain was scanned recently; set force_scan to override",
			})
			return
		}
	}

	result, diff, err := s.scanAndPersist(r.Context(), req.URL)
	if err != nil {
		s.respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.respondWithJSON(w, http.StatusOK, scanResponse{Result: result, Diff: diff})
}

// scanAndPersist runs the orchestrator, diffs against the stored
// baseline, and hands both to the persistence collaborator.
func (s *Server) scanAndPersist(ctx context.Context, rawURL string) (*domain.ScanResult, *domain.DiffResult, error) {
	result, err := s.scanner.Scan(ctx, rawURL, nil)
	if err != nil {
		return nil, nil, err
	}

	siteDomain := storage.DomainOf(result.TargetURL)
	baseline, err := s.pgStore.GetBaselineFields(ctx, siteDomain)
	if err != nil {
		s.logger.Error("baseline lookup failed", zap.String("domain", siteDomain), zap.Error(err))
		baseline = map[string]any{}
	}
	diff := scan.Diff(baseline, storage.ProjectFields(result))

	if err := s.pgStore.SaveScan(ctx, result, diff); err != nil {
		s.logger.Error("failed to persist scan", zap.String("domain", siteDomain), zap.Error(err))
	} else if err := s.scanCache.MarkScanned(ctx, siteDomain, s.config.RescanTTL()); err != nil {
		s.logger.Warn("failed to mark domain scanned", zap.String("domain", siteDomain), zap.Error(err))
	}

	return result, diff, nil
}

func (s *Server) handleScanStatus(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Query().Get("domain")
	if target == "" {
		s.respondWithError(w, http.StatusBadRequest, "domain is required")
		return
	}
	siteDomain := storage.DomainOf(target)

	recent, err := s.scanCache.IsRecentlyScanned(r.Context(), siteDomain)
	if err != nil {
		s.logger.Error("recent-scan check failed", zap.String("domain", siteDomain), zap.Error(err))
		s.respondWithError(w, http.StatusInternalServerError, "Could not check scan status")
		return
	}
	s.respondWithJSON(w, http.StatusOK, map[string]any{
		"domain":           siteDomain,
		"recently_scanned": recent,
	})
}

func (s *Server) handleBulkScan(w http.ResponseWriter, r *http.Request) {
	var req domain.BulkScanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(req.Domains) == 0 {
		s.respondWithError(w, http.StatusBadRequest, "domains list cannot be empty")
		return
	}

	s.bulk.mu.Lock()
	if s.bulk.running {
		s.bulk.mu.Unlock()
		s.respondWithError(w, http.StatusConflict, "a bulk run is already in progress")
		return
	}
	s.bulk.running = true
	s.bulk.total = len(req.Domains)
	s.bulk.completed.Store(0)
	s.bulk.failed.Store(0)
	s.bulk.abort.Store(false)
	s.bulk.mu.Unlock()

	workers := req.Concurrency
	if workers <= 0 {
		workers = s.config.BulkWorkers
	}
	s.metrics.IncBulkRuns()

	go func() {
		runner := &scan.BulkRunner{Workers: workers, Logger: s.logger}
		runner.Run(context.Background(), req.Domains, func(ctx context.Context, d string) error {
			_, _, err := s.scanAndPersist(ctx, d)
			if err != nil {
				s.bulk.failed.Add(1)
				return err
			}
			s.bulk.completed.Add(1)
			return nil
		}, s.bulk.abort.Load)

		s.bulk.mu.Lock()
		s.bulk.running = false
		s.bulk.mu.Unlock()
		s.logger.Info("bulk run finished",
			zap.Int64("completed", s.bulk.completed.Load()),
			zap.Int64("failed", s.bulk.failed.Load()))
	}()

	s.respondWithJSON(w, http.StatusAccepted, map[string]any{
		"message": "bulk scan started",
		"domains": len(req.Domains),
		"workers": workers,
	})
}

func (s *Server) handleBulkStatus(w http.ResponseWriter, r *http.Request) {
	s.bulk.mu.Lock()
	running := s.bulk.running
	total := s.bulk.total
	s.bulk.mu.Unlock()

	s.respondWithJSON(w, http.StatusOK, map[string]any{
		"running":   running,
		"total":     total,
		"completed": s.bulk.completed.Load(),
		"failed":    s.bulk.failed.Load(),
		"aborted":   s.bulk.abort.Load(),
	})
}

func (s *Server) handleBulkAbort(w http.ResponseWriter, r *http.Request) {
	s.bulk.abort.Store(true)
	s.respondWithJSON(w, http.StatusAccepted, map[string]string{
		"message": "abort requested; in-flight scans will finish",
	})
}

func (s *Server) handleListSites(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	status := r.URL.Query().Get("status")

	sites, err := s.pgStore.ListSites(r.Context(), limit, offset, status)
	if err != nil {
		s.logger.Error("failed to list sites", zap.Error(err))
		s.respondWithError(w, http.StatusInternalServerError, "Could not list sites")
		return
	}
	if sites == nil {
		sites = []domain.SiteRecord{}
	}
	s.respondWithJSON(w, http.StatusOK, map[string]any{"sites": sites})
}

func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	healthStatus := make(map[string]string)

	if err := s.pgStore.Ping(ctx); err != nil {
		healthStatus["postgres"] = "unhealthy"
		s.logger.Error("health check failed for postgres", zap.Error(err))
	} else {
		healthStatus["postgres"] = "healthy"
	}

	if err := s.scanCache.Ping(ctx); err != nil {
		healthStatus["redis"] = "unhealthy"
		s.logger.Error("health check failed for redis", zap.Error(err))
	} else {
		healthStatus["redis"] = "healthy"
	}

	if healthStatus["postgres"] != "healthy" || healthStatus["redis"] != "healthy" {
		s.respondWithJSON(w, http.StatusServiceUnavailable, healthStatus)
		return
	}
	s.respondWithJSON(w, http.StatusOK, healthStatus)
}

// --- Helper Functions ---

func (s *Server) respondWithError(w http.ResponseWriter, code int, message string) {
	s.respondWithJSON(w, code, map[string]string{"error": message})
}

func (s *Server) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
