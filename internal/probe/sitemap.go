package probe

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/gboone/site-scanner-analyzer/internal/domain"
	"github.com/gboone/site-scanner-analyzer/internal/fetch"
)

const (
	// sitemapChildCap bounds the fan-out into a sitemap index.
	sitemapChildCap = 20
	sitemapTimeout  = 15 * time.Second
	topPatternCount = 5
)

// SitemapAnalyzer fetches sitemap.xml and, when it is a sitemap index,
// recurses one level into the children and aggregates URL-shape
// statistics over the collected leaf URLs. It never returns an error;
// failures are carried on the result.
type SitemapAnalyzer struct {
	client *fetch.Client
	logger *zap.Logger
}

func NewSitemapAnalyzer(client *fetch.Client, logger *zap.Logger) *SitemapAnalyzer {
	return &SitemapAnalyzer{client: client, logger: logger}
}

type sitemapIndexDoc struct {
	XMLName  xml.Name `xml:"sitemapindex"`
	Sitemaps []struct {
		Loc string `xml:"loc"`
	} `xml:"sitemap"`
}

type urlSetDoc struct {
	XMLName xml.Name       `xml:"urlset"`
	URLs    []sitemapEntry `xml:"url"`
}

type sitemapEntry struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod"`
}

// Analyze fetches and analyzes the sitemap rooted at baseURL.
func (a *SitemapAnalyzer) Analyze(ctx context.Context, baseURL string) *domain.SitemapResult {
	result := &domain.SitemapResult{}

	sitemapURL, err := joinPath(baseURL, "/sitemap.xml")
	if err != nil {
		result.Error = fmt.Sprintf("invalid base url: %v", err)
		return result
	}
	result.URL = sitemapURL

	resp, err := a.client.Fetch(ctx, sitemapURL, fetch.Options{Timeout: sitemapTimeout, FollowRedirects: true})
	if err != nil {
		result.Error = err.Error()
		return result
	}
	result.StatusCode = resp.StatusCode
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		result.Error = fmt.Sprintf("http %d fetching sitemap", resp.StatusCode)
		return result
	}
	result.FilesizeKB = int64(len(resp.Body)) / 1024

	var index sitemapIndexDoc
	if xml.Unmarshal(resp.Body, &index) == nil && len(index.Sitemaps) > 0 {
		result.Detected = true
		result.IsIndex = true
		result.SitemapsFound = len(index.Sitemaps)
		entries := a.fetchChildren(ctx, index)
		a.aggregate(result, entries)
		return result
	}

	var set urlSetDoc
	if err := xml.Unmarshal(resp.Body, &set); err != nil {
		result.Error = fmt.Sprintf("malformed sitemap xml: %v", err)
		return result
	}
	result.Detected = true
	a.aggregate(result, set.URLs)
	return result
}

// fetchChildren fetches up to sitemapChildCap child sitemaps concurrently.
// A failing child is skipped, not fatal.
func (a *SitemapAnalyzer) fetchChildren(ctx context.Context, index sitemapIndexDoc) []sitemapEntry {
	children := index.Sitemaps
	if len(children) > sitemapChildCap {
		children = children[:sitemapChildCap]
	}

	var (
		mu      sync.Mutex
		entries []sitemapEntry
		wg      sync.WaitGroup
	)
	for _, child := range children {
		loc := strings.TrimSpace(child.Loc)
		if loc == "" {
			continue
		}
		wg.Add(1)
		go func(loc string) {
			defer wg.Done()
			resp, err := a.client.Fetch(ctx, loc, fetch.Options{Timeout: sitemapTimeout, FollowRedirects: true})
			if err != nil || resp.StatusCode < 200 || resp.StatusCode > 299 {
				a.logger.Debug("child sitemap skipped", zap.String("url", loc), zap.Error(err))
				return
			}
			var set urlSetDoc
			if err := xml.Unmarshal(resp.Body, &set); err != nil {
				a.logger.Debug("child sitemap unparseable", zap.String("url", loc), zap.Error(err))
				return
			}
			mu.Lock()
			entries = append(entries, set.URLs...)
			mu.Unlock()
		}(loc)
	}
	wg.Wait()
	return entries
}

// aggregate fills counts and lastmod from the collected leaf entries.
// The publishing histograms and URL-shape statistics are index-only
// enrichment; a plain sitemap carries only the basic fields.
func (a *SitemapAnalyzer) aggregate(result *domain.SitemapResult, entries []sitemapEntry) {
	result.PageCount = len(entries)

	var latest time.Time
	byYear := make(map[string]int)
	byMonth := make(map[string]int)
	var locs []string

	for _, e := range entries {
		loc := strings.TrimSpace(e.Loc)
		if loc != "" {
			locs = append(locs, loc)
			if strings.HasSuffix(strings.ToLower(loc), ".pdf") {
				result.PDFCount++
			}
		}
		if t, ok := parseLastMod(e.LastMod); ok {
			if t.After(latest) {
				latest = t
			}
			byYear[t.Format("2006")]++
			byMonth[t.Format("2006-01")]++
		}
	}
	if !latest.IsZero() {
		result.LastModified = &latest
	}

	if !result.IsIndex {
		return
	}
	if len(byYear) > 0 {
		result.ByYear = byYear
		result.ByMonth = byMonth
	}
	analyzeURLShapes(result, locs)
}

// analyzeURLShapes buckets URLs by their first path segment, ranks
// normalized path patterns, and derives the clean-URL and node-id flags.
func analyzeURLShapes(result *domain.SitemapResult, locs []string) {
	if len(locs) == 0 {
		return
	}
	result.HasCleanURLs = true

	segments := make(map[string]int)
	patterns := make(map[string]int)
	var depthSum int

	for _, loc := range locs {
		u, err := url.Parse(loc)
		if err != nil {
			continue
		}
		if u.RawQuery != "" || hasScriptExtension(u.Path) {
			result.HasCleanURLs = false
		}
		if nodeIDPattern.MatchString(loc) {
			result.HasNodeIDs = true
		}

		parts := splitPath(u.Path)
		depthSum += len(parts)
		if len(parts) == 0 {
			segments["/"]++
		} else {
			segments[parts[0]]++
		}
		patterns[normalizePattern(parts)]++
	}

	result.AvgPathDepth = roundTenth(float64(depthSum) / float64(len(locs)))

	total := len(locs)
	for seg, count := range segments {
		result.ContentTypes = append(result.ContentTypes, domain.ContentTypeBucket{
			Segment: seg,
			Count:   count,
			Percent: roundTenth(float64(count) / float64(total) * 100),
		})
	}
	sort.Slice(result.ContentTypes, func(i, j int) bool {
		if result.ContentTypes[i].Count != result.ContentTypes[j].Count {
			return result.ContentTypes[i].Count > result.ContentTypes[j].Count
		}
		return result.ContentTypes[i].Segment < result.ContentTypes[j].Segment
	})

	for p, count := range patterns {
		result.TopPatterns = append(result.TopPatterns, domain.URLPattern{Pattern: p, Count: count})
	}
	sort.Slice(result.TopPatterns, func(i, j int) bool {
		if result.TopPatterns[i].Count != result.TopPatterns[j].Count {
			return result.TopPatterns[i].Count > result.TopPatterns[j].Count
		}
		return result.TopPatterns[i].Pattern < result.TopPatterns[j].Pattern
	})
	if len(result.TopPatterns) > topPatternCount {
		result.TopPatterns = result.TopPatterns[:topPatternCount]
	}
}

var (
	nodeIDPattern   = regexp.MustCompile(`(?i)/node/\d+|[?&](?:id|nid|p|pageid)=\d+`)
	yearSegment     = regexp.MustCompile(`^(19|20)\d{2}$`)
	numericSegment  = regexp.MustCompile(`^\d+$`)
	scriptExtension = regexp.MustCompile(`(?i)\.(php|asp|aspx|jsp|cgi|pl|cfm)$`)
)

func hasScriptExtension(path string) bool {
	return scriptExtension.MatchString(path)
}

func splitPath(path string) []string {
	var parts []string
	for _, p := range strings.Split(path, "/") {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

// normalizePattern collapses variable segments so that structurally equal
// URLs rank together ("/news/2024/budget" -> "/news/{year}/{slug}").
func normalizePattern(parts []string) string {
	if len(parts) == 0 {
		return "/"
	}
	out := make([]string, len(parts))
	for i, p := range parts {
		switch {
		case yearSegment.MatchString(p):
			out[i] = "{year}"
		case numericSegment.MatchString(p):
			out[i] = "{id}"
		case i == len(parts)-1 && i > 0:
			out[i] = "{slug}"
		default:
			out[i] = p
		}
	}
	return "/" + strings.Join(out, "/")
}

func parseLastMod(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02", "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func roundTenth(v float64) float64 {
	return float64(int(v*10+0.5)) / 10
}

// joinPath resolves a well-known path against the scan's base URL.
func joinPath(baseURL, path string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}
	if u.Host == "" {
		return "", fmt.Errorf("url %q has no host", baseURL)
	}
	u.Path = path
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}
