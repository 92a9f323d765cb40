package probe

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gboone/site-scanner-analyzer/internal/domain"
	"github.com/gboone/site-scanner-analyzer/internal/fetch"
)

func newTestAnalyzer() *SitemapAnalyzer {
	return NewSitemapAnalyzer(fetch.NewClient("", zap.NewNop()), zap.NewNop())
}

func urlSetXML(locs []string) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?><urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">`)
	for _, loc := range locs {
		fmt.Fprintf(&b, "<url><loc>%s</loc><lastmod>2024-03-01</lastmod></url>", loc)
	}
	b.WriteString("</urlset>")
	return b.String()
}

func TestAnalyze_PlainSitemap(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/sitemap.xml" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, urlSetXML([]string{
			"https://example.gov/news/2024/budget",
			"https://example.gov/news/2023/report",
			"https://example.gov/files/annual.pdf",
		}))
	}))
	defer ts.Close()

	result := newTestAnalyzer().Analyze(context.Background(), ts.URL)

	assert.True(t, result.Detected)
	assert.False(t, result.IsIndex)
	assert.Equal(t, 3, result.PageCount)
	assert.Equal(t, 1, result.PDFCount)
	assert.Empty(t, result.Error)
	require.NotNil(t, result.LastModified)
	assert.Equal(t, 2024, result.LastModified.Year())

	// URL-shape enrichment is reserved for sitemap indexes.
	assert.Empty(t, result.ContentTypes)
	assert.Empty(t, result.TopPatterns)
	assert.Empty(t, result.ByYear)
	assert.Empty(t, result.ByMonth)
	assert.False(t, result.HasCleanURLs)
	assert.Zero(t, result.AvgPathDepth)
}

func TestAnalyze_IndexAggregatesChildren(t *testing.T) {
	mux := http.NewServeMux()
	ts := httptest.NewServer(mux)
	defer ts.Close()

	var aLocs []string
	for i := 0; i < 97; i++ {
		aLocs = append(aLocs, fmt.Sprintf("https://example.gov/page/%d", i))
	}
	aLocs = append(aLocs,
		"https://example.gov/doc/one.pdf",
		"https://example.gov/doc/two.pdf",
		"https://example.gov/doc/three.pdf",
	)
	var bLocs []string
	for i := 0; i < 50; i++ {
		bLocs = append(bLocs, fmt.Sprintf("https://example.gov/news/%d", i))
	}

	mux.HandleFunc("/sitemap.xml", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<?xml version="1.0"?><sitemapindex xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
			<sitemap><loc>%s/sitemap-a.xml</loc></sitemap>
			<sitemap><loc>%s/sitemap-b.xml</loc></sitemap>
		</sitemapindex>`, ts.URL, ts.URL)
	})
	mux.HandleFunc("/sitemap-a.xml", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, urlSetXML(aLocs))
	})
	mux.HandleFunc("/sitemap-b.xml", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, urlSetXML(bLocs))
	})

	result := newTestAnalyzer().Analyze(context.Background(), ts.URL)

	assert.True(t, result.Detected)
	assert.True(t, result.IsIndex)
	assert.Equal(t, 2, result.SitemapsFound)
	assert.Equal(t, 150, result.PageCount)
	assert.Equal(t, 3, result.PDFCount)

	require.NotEmpty(t, result.ContentTypes)
	assert.NotEmpty(t, result.TopPatterns)
	assert.NotEmpty(t, result.ByYear)
	assert.True(t, result.HasCleanURLs)
	assert.Greater(t, result.AvgPathDepth, 0.0)
}

func TestAnalyze_FailingChildIsSkipped(t *testing.T) {
	mux := http.NewServeMux()
	ts := httptest.NewServer(mux)
	defer ts.Close()

	mux.HandleFunc("/sitemap.xml", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<sitemapindex>
			<sitemap><loc>%s/good.xml</loc></sitemap>
			<sitemap><loc>%s/missing.xml</loc></sitemap>
		</sitemapindex>`, ts.URL, ts.URL)
	})
	mux.HandleFunc("/good.xml", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, urlSetXML([]string{"https://example.gov/a", "https://example.gov/b"}))
	})

	result := newTestAnalyzer().Analyze(context.Background(), ts.URL)

	assert.True(t, result.Detected)
	assert.Equal(t, 2, result.SitemapsFound)
	assert.Equal(t, 2, result.PageCount)
	assert.Empty(t, result.Error)
}

func TestAnalyze_NotFound(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	defer ts.Close()

	result := newTestAnalyzer().Analyze(context.Background(), ts.URL)

	assert.False(t, result.Detected)
	assert.Equal(t, http.StatusNotFound, result.StatusCode)
	assert.NotEmpty(t, result.Error)
}

func TestAnalyze_MalformedXML(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<urlset><url><loc>unclosed")
	}))
	defer ts.Close()

	result := newTestAnalyzer().Analyze(context.Background(), ts.URL)

	assert.False(t, result.Detected)
	assert.NotEmpty(t, result.Error)
}

func TestAnalyzeURLShapes(t *testing.T) {
	result := &domain.SitemapResult{}
	analyzeURLShapes(result, []string{
		"https://example.gov/news/2024/budget",
		"https://example.gov/news/2024/parks",
		"https://example.gov/services/permits",
		"https://example.gov/index.php?page=3",
		"https://example.gov/node/4821",
	})

	assert.False(t, result.HasCleanURLs)
	assert.True(t, result.HasNodeIDs)
	require.NotEmpty(t, result.ContentTypes)
	assert.Equal(t, "news", result.ContentTypes[0].Segment)
	assert.Equal(t, 2, result.ContentTypes[0].Count)
	assert.Equal(t, 40.0, result.ContentTypes[0].Percent)

	var percentSum float64
	for _, bucket := range result.ContentTypes {
		percentSum += bucket.Percent
	}
	assert.InDelta(t, 100.0, percentSum, 1.0)

	require.NotEmpty(t, result.TopPatterns)
	assert.Equal(t, "/news/{year}/{slug}", result.TopPatterns[0].Pattern)
	assert.Equal(t, 2, result.TopPatterns[0].Count)
}

func TestNormalizePattern(t *testing.T) {
	assert.Equal(t, "/", normalizePattern(nil))
	assert.Equal(t, "/news/{year}/{slug}", normalizePattern([]string{"news", "2023", "budget-update"}))
	assert.Equal(t, "/node/{id}", normalizePattern([]string{"node", "4821"}))
	assert.Equal(t, "/about", normalizePattern([]string{"about"}))
}
