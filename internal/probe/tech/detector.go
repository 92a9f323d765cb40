package tech

import (
	"context"
	"net/url"
	"regexp"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/gboone/site-scanner-analyzer/internal/domain"
	"github.com/gboone/site-scanner-analyzer/internal/fetch"
)

const maxStylesheetFetches = 3

// Detector classifies the technology stack of a landing page from one
// HTML fetch plus conditional enrichment probes.
type Detector struct {
	client *fetch.Client
	logger *zap.Logger
}

func NewDetector(client *fetch.Client, logger *zap.Logger) *Detector {
	return &Detector{client: client, logger: logger}
}

var securityHeaderNames = []string{
	"Strict-Transport-Security",
	"Content-Security-Policy",
	"X-Frame-Options",
	"X-Content-Type-Options",
	"Referrer-Policy",
	"Permissions-Policy",
}

// Detect fetches pageURL once and runs the full detection pipeline. A
// 403 body is still analyzed, since gated sites leak fingerprints in it.
// Any fetch failure yields a structurally complete but empty result.
func (d *Detector) Detect(ctx context.Context, pageURL string) *domain.TechStackResult {
	result := &domain.TechStackResult{
		DesignSystem: &domain.DesignSystemResult{},
		Analytics:    &domain.AnalyticsResult{},
	}

	resp, err := d.client.Fetch(ctx, pageURL, fetch.Options{Timeout: fetch.DefaultTimeout, FollowRedirects: true})
	if err != nil {
		result.Error = err.Error()
		return result
	}

	html := string(resp.Body)
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		result.Error = err.Error()
		return result
	}

	signals := collectPageSignals(doc, html, resp)

	result.HTTPS = strings.HasPrefix(strings.ToLower(resp.FinalURL), "https://")
	result.HSTS = resp.Header.Get("Strict-Transport-Security") != ""
	result.WebServer = resp.Header.Get("Server")
	result.CDN = detectCDN(resp)
	result.SecurityHeaders = collectSecurityHeaders(resp)
	result.Technologies = detectTechnologies(signals.bodyLower)

	name, score := scoreCMS(signals)
	result.CMSScore = score
	if name != "" {
		result.CMS = &name
	}

	// External CSS fetch and the WordPress content probe run in
	// parallel; each is best-effort.
	var (
		wg  sync.WaitGroup
		css string
		wp  *domain.WordPressResult
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		css = d.fetchStylesheets(ctx, resp.FinalURL, doc)
	}()
	if result.CMS != nil && *result.CMS == "WordPress" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			wp = d.probeWordPress(ctx, resp.FinalURL)
		}()
	}
	wg.Wait()

	if wp != nil {
		wp.Version = extractWordPressVersion(signals.generator)
		wp.Theme = extractWordPressTheme(signals.bodyLower)
		result.WordPress = wp
	}

	result.DesignSystem = detectDesignSystem(html, css)
	result.Analytics = detectAnalytics(html)
	result.LoginGate = detectLoginGate(resp.StatusCode, resp.FinalURL, doc)

	return result
}

func collectPageSignals(doc *goquery.Document, html string, resp *fetch.Response) pageSignals {
	generator, _ := doc.Find(`meta[name="generator"]`).First().Attr("content")
	return pageSignals{
		bodyLower: strings.ToLower(html),
		generator: strings.ToLower(generator),
		headers:   resp.Header,
		cookies:   strings.ToLower(strings.Join(resp.Header.Values("Set-Cookie"), "; ")),
	}
}

func scoreCMS(signals pageSignals) (string, int) {
	return scoreCMSWith(cmsRules, signals)
}

// scoreCMSWith runs a rule table and returns the winning CMS name, or
// "" when no candidate clears the threshold.
func scoreCMSWith(rules []CMSRule, signals pageSignals) (string, int) {
	bestName, bestScore := "", 0
	for _, rule := range rules {
		score := 0
		for _, sig := range rule.Signals {
			if matchSignal(sig, signals) {
				score += sig.Weight
			}
		}
		if score > bestScore {
			bestName, bestScore = rule.Name, score
		}
	}
	if bestScore < cmsScoreThreshold {
		return "", bestScore
	}
	return bestName, bestScore
}

func matchSignal(sig Signal, signals pageSignals) bool {
	switch sig.Kind {
	case SignalHTML:
		return strings.Contains(signals.bodyLower, sig.Pattern)
	case SignalGenerator:
		return signals.generator != "" && strings.Contains(signals.generator, sig.Pattern)
	case SignalHeader:
		value := signals.headers.Get(sig.Header)
		if value == "" {
			return false
		}
		return sig.Pattern == "" || strings.Contains(strings.ToLower(value), sig.Pattern)
	case SignalCookie:
		return signals.cookies != "" && strings.Contains(signals.cookies, sig.Pattern)
	}
	return false
}

func detectCDN(resp *fetch.Response) string {
	switch {
	case resp.Header.Get("CF-Ray") != "":
		return "Cloudflare"
	case strings.Contains(strings.ToLower(resp.Header.Get("X-Served-By")), "cache-"):
		return "Fastly"
	case resp.Header.Get("X-Amz-Cf-Id") != "":
		return "CloudFront"
	case resp.Header.Get("X-Akamai-Transformed") != "":
		return "Akamai"
	case strings.Contains(strings.ToLower(resp.Header.Get("Server")), "cloudflare"):
		return "Cloudflare"
	}
	return ""
}

func collectSecurityHeaders(resp *fetch.Response) map[string]string {
	out := make(map[string]string)
	for _, name := range securityHeaderNames {
		if v := resp.Header.Get(name); v != "" {
			out[name] = v
		}
	}
	return out
}

func detectTechnologies(bodyLower string) []string {
	var found []string
	for _, sig := range techSignatures {
		if strings.Contains(bodyLower, sig.pattern) {
			found = append(found, sig.name)
		}
	}
	return found
}

// fetchStylesheets pulls the first few external stylesheets so the
// design-system pass can see class definitions the HTML alone hides.
func (d *Detector) fetchStylesheets(ctx context.Context, pageURL string, doc *goquery.Document) string {
	base, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}

	var hrefs []string
	doc.Find(`link[rel="stylesheet"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, ok := s.Attr("href")
		if ok && href != "" {
			if ref, err := url.Parse(href); err == nil {
				hrefs = append(hrefs, base.ResolveReference(ref).String())
			}
		}
		return len(hrefs) < maxStylesheetFetches
	})

	var (
		mu     sync.Mutex
		chunks []string
		wg     sync.WaitGroup
	)
	for _, href := range hrefs {
		wg.Add(1)
		go func(href string) {
			defer wg.Done()
			resp, err := d.client.Fetch(ctx, href, fetch.Options{Timeout: fetch.FeedTimeout, FollowRedirects: true})
			if err != nil || resp.StatusCode != 200 {
				return
			}
			mu.Lock()
			chunks = append(chunks, string(resp.Body))
			mu.Unlock()
		}(href)
	}
	wg.Wait()
	return strings.Join(chunks, "\n")
}

var (
	wpVersionPattern = regexp.MustCompile(`wordpress\s+([\d.]+)`)
	wpThemePattern   = regexp.MustCompile(`/wp-content/themes/([a-z0-9_-]+)/`)
)

func extractWordPressVersion(generator string) string {
	if m := wpVersionPattern.FindStringSubmatch(generator); m != nil {
		return m[1]
	}
	return ""
}

func extractWordPressTheme(bodyLower string) string {
	if m := wpThemePattern.FindStringSubmatch(bodyLower); m != nil {
		return m[1]
	}
	return ""
}
