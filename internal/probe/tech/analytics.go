package tech

import (
	"regexp"
	"strings"

	"github.com/gboone/site-scanner-analyzer/internal/domain"
)

// dapScriptPattern matches the federal Digital Analytics Program tag and
// captures its query string (agency/subagency parameters).
var dapScriptPattern = regexp.MustCompile(`(?i)dap\.digitalgov\.gov/Universal-Federated-Analytics[^"'\s]*?(?:\?([^"'\s]*))?["'\s]`)

// analyticsSignatures maps recognized analytics and marketing script
// substrings to display names.
var analyticsSignatures = []struct {
	name    string
	pattern string
}{
	{"Google Analytics", "google-analytics.com/analytics.js"},
	{"Google Analytics 4", "googletagmanager.com/gtag"},
	{"Google Tag Manager", "googletagmanager.com/gtm.js"},
	{"Siteimprove", "siteimproveanalytics"},
	{"Matomo", "matomo.js"},
	{"Matomo", "piwik.js"},
	{"Adobe Analytics", "omtrdc.net"},
	{"Adobe Analytics", "assets.adobedtm.com"},
	{"Meta Pixel", "connect.facebook.net"},
	{"Hotjar", "static.hotjar.com"},
	{"LinkedIn Insight", "snap.licdn.com"},
	{"Crazy Egg", "crazyegg.com"},
	{"Qualtrics", "qualtrics.com"},
	{"ForeSee", "foresee.com"},
}

// detectAnalytics scans the page HTML for known analytics tags.
func detectAnalytics(html string) *domain.AnalyticsResult {
	result := &domain.AnalyticsResult{}
	htmlLower := strings.ToLower(html)

	if m := dapScriptPattern.FindStringSubmatch(html); m != nil {
		result.HasDAP = true
		if len(m) > 1 {
			result.DAPParameters = m[1]
		}
	}

	seen := make(map[string]bool)
	for _, sig := range analyticsSignatures {
		if seen[sig.name] {
			continue
		}
		if strings.Contains(htmlLower, sig.pattern) {
			seen[sig.name] = true
			result.Tags = append(result.Tags, sig.name)
		}
	}
	return result
}
