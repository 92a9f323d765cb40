package probe

import (
	"bufio"
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/gboone/site-scanner-analyzer/internal/domain"
	"github.com/gboone/site-scanner-analyzer/internal/fetch"
)

const robotsTimeout = 10 * time.Second

// RobotsParser fetches robots.txt and scans it for crawl-delay and
// sitemap declarations. It never returns an error.
type RobotsParser struct {
	client *fetch.Client
	logger *zap.Logger
}

func NewRobotsParser(client *fetch.Client, logger *zap.Logger) *RobotsParser {
	return &RobotsParser{client: client, logger: logger}
}

// Parse fetches and line-scans robots.txt at baseURL. The first numeric
// crawl-delay wins; sitemap declarations are collected as-is, without
// deduplication against the sitemap analyzer's own findings.
func (p *RobotsParser) Parse(ctx context.Context, baseURL string) *domain.RobotsResult {
	result := &domain.RobotsResult{}

	robotsURL, err := joinPath(baseURL, "/robots.txt")
	if err != nil {
		result.Error = fmt.Sprintf("invalid base url: %v", err)
		return result
	}

	resp, err := p.client.Fetch(ctx, robotsURL, fetch.Options{Timeout: robotsTimeout, FollowRedirects: true})
	if err != nil {
		result.Error = err.Error()
		return result
	}
	result.StatusCode = resp.StatusCode
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		result.Error = fmt.Sprintf("http %d fetching robots.txt", resp.StatusCode)
		return result
	}

	result.Detected = true
	result.FilesizeKB = int64(len(resp.Body)) / 1024

	scanner := bufio.NewScanner(strings.NewReader(string(resp.Body)))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		lower := strings.ToLower(line)
		switch {
		case strings.HasPrefix(lower, "crawl-delay:"):
			if result.CrawlDelay != nil {
				continue
			}
			raw := strings.TrimSpace(line[len("crawl-delay:"):])
			if delay, err := strconv.ParseFloat(raw, 64); err == nil {
				result.CrawlDelay = &delay
			}
		case strings.HasPrefix(lower, "sitemap:"):
			loc := strings.TrimSpace(line[len("sitemap:"):])
			if loc != "" {
				result.Sitemaps = append(result.Sitemaps, loc)
			}
		}
	}
	return result
}
