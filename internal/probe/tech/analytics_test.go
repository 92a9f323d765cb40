package tech

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectAnalytics_DAP(t *testing.T) {
	html := `<script src="https://dap.digitalgov.gov/Universal-Federated-Analytics-Min.js?agency=DOI&subagency=NPS" id="_fed_an_ua_tag"></script>`

	result := detectAnalytics(html)

	assert.True(t, result.HasDAP)
	assert.Equal(t, "agency=DOI&subagency=NPS", result.DAPParameters)
}

func TestDetectAnalytics_KnownTags(t *testing.T) {
	html := `
		<script src="https://www.googletagmanager.com/gtag/js?id=G-XYZ"></script>
		<script src="https://siteimproveanalytics.com/js/siteanalyze.js"></script>
		<script src="https://static.hotjar.com/c/hotjar-1.js"></script>`

	result := detectAnalytics(html)

	assert.False(t, result.HasDAP)
	assert.ElementsMatch(t, []string{"Google Analytics 4", "Siteimprove", "Hotjar"}, result.Tags)
}

func TestDetectAnalytics_Nothing(t *testing.T) {
	result := detectAnalytics(`<html><body>static page</body></html>`)

	assert.False(t, result.HasDAP)
	assert.Empty(t, result.Tags)
}
