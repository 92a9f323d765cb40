package tech

import (
	"regexp"
	"strings"

	"github.com/gboone/site-scanner-analyzer/internal/domain"
)

// uswdsScoreThreshold is the composite score at which we call the page
// a USWDS site. Like the CMS threshold this is a calibration constant.
const uswdsScoreThreshold = 20

const usaClassCountCap = 20

var uswdsVersionPattern = regexp.MustCompile(`(?i)uswds[^0-9]{0,20}v?(\d+\.\d+(?:\.\d+)?)`)

// detectDesignSystem scores U.S. Web Design System usage from several
// independent signals over the page HTML and its external CSS. Purely
// computational; no I/O.
func detectDesignSystem(html, css string) *domain.DesignSystemResult {
	result := &domain.DesignSystemResult{}
	htmlLower := strings.ToLower(html)
	cssLower := strings.ToLower(css)
	combined := htmlLower + "\n" + cssLower

	// Class-usage count, capped so one long page can't dominate.
	usaClasses := strings.Count(htmlLower, `class="usa-`) + strings.Count(htmlLower, ` usa-`)
	if usaClasses > usaClassCountCap {
		usaClasses = usaClassCountCap
	}
	result.Score += usaClasses

	// Direct asset references.
	if strings.Contains(combined, "uswds.min.css") || strings.Contains(combined, "uswds.css") {
		result.Score += 20
	}
	if strings.Contains(combined, "uswds.min.js") || strings.Contains(combined, "uswds-init") {
		result.Score += 15
	}

	// Font signatures shipped with the design system.
	for _, font := range []string{"public sans", "publicsans", "source sans pro", "merriweather"} {
		if strings.Contains(combined, font) {
			result.Score += 5
		}
	}

	// Favicon and banner-flag image signatures.
	if strings.Contains(htmlLower, "/img/favicons/favicon") {
		result.Score += 5
	}
	if strings.Contains(htmlLower, "us_flag_small") || strings.Contains(htmlLower, "usa-banner") {
		result.Score += 10
	}

	// CSS custom properties from the USWDS token system.
	if strings.Contains(cssLower, "--usa-") {
		result.Score += 10
	}

	if m := uswdsVersionPattern.FindStringSubmatch(combined); m != nil {
		result.Version = m[1]
	}

	result.Detected = result.Score >= uswdsScoreThreshold
	return result
}
