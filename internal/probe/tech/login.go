package tech

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// loginKeywords mark a URL path or page title as an authentication
// surface. Deliberately narrow; see detectLoginGate.
var loginKeywords = []string{
	"login", "log-in", "log in",
	"signin", "sign-in", "sign in",
	"sso", "single sign",
	"authenticate",
}

// detectLoginGate classifies the landing page as an authentication wall.
// A password input alone is not enough: plenty of public pages embed a
// login widget in a corner, so the input must coincide with a login-ish
// URL path or title before we call the whole page gated.
func detectLoginGate(statusCode int, pageURL string, doc *goquery.Document) bool {
	if statusCode == http.StatusUnauthorized {
		return true
	}

	if doc.Find(`input[type="password"]`).Length() == 0 {
		return false
	}

	path := ""
	if u, err := url.Parse(pageURL); err == nil {
		path = strings.ToLower(u.Path)
	}
	title := strings.ToLower(strings.TrimSpace(doc.Find("title").First().Text()))

	for _, kw := range loginKeywords {
		if strings.Contains(path, kw) || strings.Contains(title, kw) {
			return true
		}
	}
	return false
}
