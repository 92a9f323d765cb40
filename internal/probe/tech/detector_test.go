package tech

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gboone/site-scanner-analyzer/internal/fetch"
)

func newTestDetector() *Detector {
	return NewDetector(fetch.NewClient("", zap.NewNop()), zap.NewNop())
}

func TestScoreCMS_Threshold(t *testing.T) {
	rules := []CMSRule{{
		Name: "TestCMS",
		Signals: []Signal{
			{Kind: SignalHTML, Pattern: "signal-a", Weight: 39},
			{Kind: SignalHTML, Pattern: "signal-b", Weight: 1},
		},
	}}

	// One below the threshold: no CMS reported.
	name, score := scoreCMSWith(rules, pageSignals{bodyLower: "has signal-a only"})
	assert.Equal(t, 39, score)
	assert.Equal(t, "", name)

	// Exactly at the threshold: the CMS wins.
	name, score = scoreCMSWith(rules, pageSignals{bodyLower: "has signal-a and signal-b"})
	assert.Equal(t, 40, score)
	assert.Equal(t, "TestCMS", name)
}

func TestScoreCMS_HighestCandidateWins(t *testing.T) {
	signals := pageSignals{
		bodyLower: `<link href="/wp-content/themes/gov/style.css"> /wp-includes/js/jquery.js drupal.js`,
		generator: "wordpress 6.4.2",
	}
	name, score := scoreCMS(signals)
	assert.Equal(t, "WordPress", name)
	assert.GreaterOrEqual(t, score, cmsScoreThreshold)
}

func TestScoreCMS_HeaderAndCookieSignals(t *testing.T) {
	headers := http.Header{}
	headers.Set("X-Generator", "Drupal 10 (https://www.drupal.org)")
	headers.Set("X-Drupal-Cache", "HIT")
	name, _ := scoreCMS(pageSignals{bodyLower: "plain page", headers: headers})
	assert.Equal(t, "Drupal", name)
}

func TestDetect_WordPressLandingPage(t *testing.T) {
	mux := http.NewServeMux()
	ts := httptest.NewServer(mux)
	defer ts.Close()

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", "nginx")
		w.Header().Set("Strict-Transport-Security", "max-age=31536000")
		fmt.Fprint(w, `<html><head>
			<meta name="generator" content="WordPress 6.4.2">
			<title>City of Exampleton</title>
			</head><body>
			<img src="/wp-content/themes/exampleton/logo.png">
			<script src="/wp-includes/js/jquery/jquery.min.js"></script>
			</body></html>`)
	})
	mux.HandleFunc("/wp-json/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"namespaces":["wp/v2","oembed/1.0","gravityforms/v2"],"routes":{}}`)
	})
	mux.HandleFunc("/wp-json/wp/v2/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-WP-Total", "12")
		fmt.Fprint(w, `[{}]`)
	})

	result := newTestDetector().Detect(context.Background(), ts.URL)

	require.NotNil(t, result.CMS)
	assert.Equal(t, "WordPress", *result.CMS)
	assert.Equal(t, "nginx", result.WebServer)
	assert.True(t, result.HSTS)
	assert.Contains(t, result.Technologies, "jQuery")
	require.NotNil(t, result.WordPress)
	assert.True(t, result.WordPress.JSONAPIActive)
	assert.Equal(t, "6.4.2", result.WordPress.Version)
	assert.Equal(t, "exampleton", result.WordPress.Theme)
	assert.Contains(t, result.WordPress.Plugins, "gravityforms")
	assert.Empty(t, result.Error)
}

func TestDetect_403BodyStillAnalyzed(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `<html><head><meta name="generator" content="Drupal 9"></head><body></body></html>`)
	}))
	defer ts.Close()

	result := newTestDetector().Detect(context.Background(), ts.URL)

	require.NotNil(t, result.CMS)
	assert.Equal(t, "Drupal", *result.CMS)
	assert.Empty(t, result.Error)
}

func TestDetect_UnreachableYieldsEmptyResult(t *testing.T) {
	result := newTestDetector().Detect(context.Background(), "http://127.0.0.1:1")

	assert.Nil(t, result.CMS)
	assert.Nil(t, result.WordPress)
	assert.False(t, result.LoginGate)
	require.NotNil(t, result.DesignSystem)
	assert.Equal(t, 0, result.DesignSystem.Score)
	assert.NotEmpty(t, result.Error)
}

func TestDetectCDN(t *testing.T) {
	header := http.Header{}
	header.Set("CF-Ray", "8abc-IAD")
	assert.Equal(t, "Cloudflare", detectCDN(&fetch.Response{Header: header}))

	header = http.Header{}
	header.Set("X-Served-By", "cache-iad-kiad7000021-IAD")
	assert.Equal(t, "Fastly", detectCDN(&fetch.Response{Header: header}))

	assert.Equal(t, "", detectCDN(&fetch.Response{Header: http.Header{}}))
}
