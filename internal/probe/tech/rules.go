package tech

import "net/http"

// cmsScoreThreshold is the score a CMS candidate must clear before we
// report it at all. The value is a calibration constant; changing it
// shifts every detection, so treat it with care.
const cmsScoreThreshold = 40

// SignalKind says where a signal pattern is matched.
type SignalKind int

const (
	// SignalHTML matches a substring anywhere in the lowercased body.
	SignalHTML SignalKind = iota
	// SignalGenerator matches a substring of the generator meta tag.
	SignalGenerator
	// SignalHeader matches a substring of a named response header.
	SignalHeader
	// SignalCookie matches a substring of the Set-Cookie headers.
	SignalCookie
)

// Signal is one weighted, independent fingerprint of a CMS.
type Signal struct {
	Kind    SignalKind
	Header  string // only for SignalHeader
	Pattern string // matched case-insensitively
	Weight  int
}

// CMSRule is the full signal set for one CMS candidate. Scores are
// additive across signals.
type CMSRule struct {
	Name    string
	Signals []Signal
}

var cmsRules = []CMSRule{
	{
		Name: "WordPress",
		Signals: []Signal{
			{Kind: SignalGenerator, Pattern: "wordpress", Weight: 60},
			{Kind: SignalHTML, Pattern: "/wp-content/", Weight: 30},
			{Kind: SignalHTML, Pattern: "/wp-includes/", Weight: 20},
			{Kind: SignalHTML, Pattern: "/wp-json/", Weight: 15},
			{Kind: SignalCookie, Pattern: "wordpress_", Weight: 20},
		},
	},
	{
		Name: "Drupal",
		Signals: []Signal{
			{Kind: SignalGenerator, Pattern: "drupal", Weight: 60},
			{Kind: SignalHeader, Header: "X-Generator", Pattern: "drupal", Weight: 50},
			{Kind: SignalHeader, Header: "X-Drupal-Cache", Pattern: "", Weight: 40},
			{Kind: SignalHTML, Pattern: "/sites/default/files", Weight: 30},
			{Kind: SignalHTML, Pattern: "drupal-settings-json", Weight: 30},
			{Kind: SignalHTML, Pattern: "drupal.js", Weight: 20},
		},
	},
	{
		Name: "Joomla",
		Signals: []Signal{
			{Kind: SignalGenerator, Pattern: "joomla", Weight: 60},
			{Kind: SignalHTML, Pattern: "/media/jui/", Weight: 30},
			{Kind: SignalHTML, Pattern: "option=com_content", Weight: 30},
			{Kind: SignalHTML, Pattern: "/media/system/js/", Weight: 20},
		},
	},
	{
		Name: "Sitecore",
		Signals: []Signal{
			{Kind: SignalGenerator, Pattern: "sitecore", Weight: 60},
			{Kind: SignalCookie, Pattern: "sc_analytics", Weight: 40},
			{Kind: SignalHTML, Pattern: "/sitecore/", Weight: 30},
			{Kind: SignalHTML, Pattern: "/-/media/", Weight: 20},
		},
	},
	{
		Name: "Squarespace",
		Signals: []Signal{
			{Kind: SignalGenerator, Pattern: "squarespace", Weight: 60},
			{Kind: SignalHTML, Pattern: "static1.squarespace.com", Weight: 40},
			{Kind: SignalHTML, Pattern: "this is squarespace", Weight: 30},
			{Kind: SignalCookie, Pattern: "crumb=", Weight: 10},
		},
	},
	{
		Name: "Wix",
		Signals: []Signal{
			{Kind: SignalGenerator, Pattern: "wix.com", Weight: 60},
			{Kind: SignalHeader, Header: "X-Wix-Request-Id", Pattern: "", Weight: 50},
			{Kind: SignalHTML, Pattern: "wixstatic.com", Weight: 40},
			{Kind: SignalHTML, Pattern: "wix-code", Weight: 20},
		},
	},
	{
		Name: "Shopify",
		Signals: []Signal{
			{Kind: SignalHeader, Header: "X-Shopid", Pattern: "", Weight: 50},
			{Kind: SignalHTML, Pattern: "cdn.shopify.com", Weight: 50},
			{Kind: SignalHTML, Pattern: "shopify.theme", Weight: 30},
			{Kind: SignalCookie, Pattern: "_shopify_", Weight: 20},
		},
	},
}

// pageSignals is everything the scorer can see from one page fetch.
type pageSignals struct {
	bodyLower string
	generator string // lowercased content of <meta name="generator">
	headers   http.Header
	cookies   string // lowercased, joined Set-Cookie values
}

// techSignature is one entry of the generic technology table.
type techSignature struct {
	name    string
	pattern string
}

var techSignatures = []techSignature{
	{"jQuery", "jquery"},
	{"React", "react-dom"},
	{"Angular", "ng-version"},
	{"Vue.js", "vue.js"},
	{"Bootstrap", "bootstrap"},
	{"Font Awesome", "font-awesome"},
	{"Google Fonts", "fonts.googleapis.com"},
	{"Cloudflare Insights", "cloudflareinsights.com"},
	{"reCAPTCHA", "google.com/recaptcha"},
}
