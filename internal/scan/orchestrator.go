package scan

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gboone/site-scanner-analyzer/internal/domain"
	"github.com/gboone/site-scanner-analyzer/internal/fetch"
	"github.com/gboone/site-scanner-analyzer/internal/monitoring"
	"github.com/gboone/site-scanner-analyzer/internal/probe"
	"github.com/gboone/site-scanner-analyzer/internal/probe/tech"
)

// statusPartialMax is the highest probe-error count still classified as
// a partial scan; anything above it is a failed scan. Calibration
// constant, kept alongside the CMS threshold.
const statusPartialMax = 2

// ProgressFunc receives a phase name and whether that phase finished.
// Safe to pass nil.
type ProgressFunc func(step string, done bool)

// Scanner runs one full fingerprint scan: redirect resolution first,
// then the five probes in parallel, then signal merging and liveness.
// A Scanner is immutable after construction and safe for concurrent
// scans; every scan's data is local to its invocation.
type Scanner struct {
	redirect  *probe.RedirectResolver
	sitemap   *probe.SitemapAnalyzer
	robots    *probe.RobotsParser
	tech      *tech.Detector
	dns       *probe.DNSResolver
	wellKnown *probe.WellKnownProbe
	logger    *zap.Logger
	metrics   *monitoring.Metrics
}

// NewScanner wires the probes around one shared fetch client. metrics
// may be nil (tests).
func NewScanner(client *fetch.Client, dohEndpoint string, logger *zap.Logger, metrics *monitoring.Metrics) *Scanner {
	return &Scanner{
		redirect:  probe.NewRedirectResolver(client, logger),
		sitemap:   probe.NewSitemapAnalyzer(client, logger),
		robots:    probe.NewRobotsParser(client, logger),
		tech:      tech.NewDetector(client, logger),
		dns:       probe.NewDNSResolver(client, dohEndpoint, logger),
		wellKnown: probe.NewWellKnownProbe(client, logger),
		logger:    logger,
		metrics:   metrics,
	}
}

// Scan produces a ScanResult for rawURL. It only fails hard on local
// input problems (an unparseable URL); every network failure is caught
// and reported inside the result.
func (s *Scanner) Scan(ctx context.Context, rawURL string, onProgress ProgressFunc) (*domain.ScanResult, error) {
	if onProgress == nil {
		onProgress = func(string, bool) {}
	}

	targetURL, err := normalizeURL(rawURL)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	result := &domain.ScanResult{
		ID:        uuid.New().String(),
		TargetURL: targetURL,
		ScannedAt: start.UTC(),
		Errors:    []string{},
	}

	// The redirect step must settle before anything else: every later
	// probe targets the resolved URL, not the original.
	onProgress("redirect", false)
	chain, err := s.redirect.Resolve(ctx, targetURL)
	if err != nil {
		s.logger.Warn("redirect resolution failed", zap.String("url", targetURL), zap.Error(err))
		result.Errors = append(result.Errors, fmt.Sprintf("redirect: %v", err))
		s.countProbeError("redirect")
	} else {
		result.RedirectChain = chain
	}
	onProgress("redirect", true)

	resolved := targetURL
	if chain != nil {
		resolved = chain.FinalURL
	}
	host := hostOf(resolved)

	// Fan out the remaining probes. The join never short-circuits: a
	// failed probe reports through its result object while its
	// siblings run to completion.
	var (
		wg       sync.WaitGroup
		declared *string
	)
	probes := []struct {
		step string
		run  func()
	}{
		{"sitemap", func() { result.Sitemap = s.sitemap.Analyze(ctx, resolved) }},
		{"robots", func() { result.Robots = s.robots.Parse(ctx, resolved) }},
		{"tech", func() { result.TechStack = s.tech.Detect(ctx, resolved) }},
		{"dns", func() { result.DNS = s.dns.Resolve(ctx, host) }},
		{"", func() { declared = s.wellKnown.Probe(ctx, resolved) }},
	}
	for _, p := range probes {
		wg.Add(1)
		go func(step string, run func()) {
			defer wg.Done()
			if step != "" {
				onProgress(step, false)
			}
			run()
			if step != "" {
				onProgress(step, true)
			}
		}(p.step, p.run)
	}
	wg.Wait()

	s.collectErrors(result)
	s.mergeHostingProvider(result, declared)
	result.Live = computeLiveness(result)
	result.Status = classifyStatus(len(result.Errors))
	result.DurationMs = time.Since(start).Milliseconds()

	if s.metrics != nil {
		s.metrics.ObserveScan(string(result.Status), time.Since(start))
	}
	s.logger.Info("scan finished",
		zap.String("url", targetURL),
		zap.String("status", string(result.Status)),
		zap.Int("errors", len(result.Errors)),
		zap.Int64("duration_ms", result.DurationMs))

	return result, nil
}

// collectErrors aggregates every individually caught probe failure.
func (s *Scanner) collectErrors(result *domain.ScanResult) {
	add := func(probeName, msg string) {
		if msg == "" {
			return
		}
		result.Errors = append(result.Errors, fmt.Sprintf("%s: %s", probeName, msg))
		s.countProbeError(probeName)
	}
	if result.Sitemap != nil {
		add("sitemap", result.Sitemap.Error)
	}
	if result.Robots != nil {
		add("robots", result.Robots.Error)
	}
	if result.TechStack != nil {
		add("tech", result.TechStack.Error)
	}
	if result.DNS != nil {
		add("dns", result.DNS.Error)
	}
}

// mergeHostingProvider resolves the competing signals with strict
// priority: the operator's well-known declaration beats the DNS
// inference, which beats nothing. Sources are only consulted after all
// of them have settled; arrival order never matters.
func (s *Scanner) mergeHostingProvider(result *domain.ScanResult, declared *string) {
	if result.TechStack == nil {
		return
	}
	sources := []*string{declared}
	if result.DNS != nil {
		sources = append(sources, result.DNS.HostingProvider)
	}
	for _, src := range sources {
		if src != nil {
			result.TechStack.HostingProvider = src
			return
		}
	}
}

// computeLiveness derives the live flag once everything has settled:
// live means the final redirect hop answered 2xx and the landing page is
// not an authentication gate. When the resolver itself failed there are
// no hops to judge, so the flag stays nil.
func computeLiveness(result *domain.ScanResult) *bool {
	if result.RedirectChain == nil || len(result.RedirectChain.Hops) == 0 {
		return nil
	}
	last := result.RedirectChain.Hops[len(result.RedirectChain.Hops)-1]
	live := last.StatusCode >= 200 && last.StatusCode <= 299
	if result.TechStack != nil && result.TechStack.LoginGate {
		live = false
	}
	return &live
}

func classifyStatus(errorCount int) domain.ScanStatus {
	switch {
	case errorCount == 0:
		return domain.ScanCompleted
	case errorCount <= statusPartialMax:
		return domain.ScanPartial
	default:
		return domain.ScanFailed
	}
}

func (s *Scanner) countProbeError(probeName string) {
	if s.metrics != nil {
		s.metrics.IncProbeError(probeName)
	}
}

// normalizeURL validates the scan input, defaulting a bare domain to
// https.
func normalizeURL(rawURL string) (string, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return "", fmt.Errorf("%w: empty", fetch.ErrInvalidURL)
	}
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		rawURL = "https://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", fetch.ErrInvalidURL, err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: missing host", fetch.ErrInvalidURL)
	}
	return u.String(), nil
}

func hostOf(rawURL string) string {
	if u, err := url.Parse(rawURL); err == nil {
		return u.Hostname()
	}
	return rawURL
}
