package probe

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/gboone/site-scanner-analyzer/internal/fetch"
)

// wellKnownPath carries an operator's own hosting-provider declaration.
// When present it outranks every heuristic inference.
const wellKnownPath = "/.well-known/hosting-provider"

const maxDeclarationLen = 100

// WellKnownProbe checks the hosting-provider well-known path. Only a
// short, non-HTML plain-text body counts as a valid declaration.
type WellKnownProbe struct {
	client *fetch.Client
	logger *zap.Logger
}

func NewWellKnownProbe(client *fetch.Client, logger *zap.Logger) *WellKnownProbe {
	return &WellKnownProbe{client: client, logger: logger}
}

// Probe returns the declared provider, or nil when the path is missing
// or the body does not look like a plain-text declaration.
func (p *WellKnownProbe) Probe(ctx context.Context, baseURL string) *string {
	target, err := joinPath(baseURL, wellKnownPath)
	if err != nil {
		return nil
	}

	resp, err := p.client.Fetch(ctx, target, fetch.Options{Timeout: fetch.FeedTimeout, FollowRedirects: true})
	if err != nil || resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil
	}

	body := strings.TrimSpace(string(resp.Body))
	if body == "" || len(body) >= maxDeclarationLen {
		return nil
	}
	if strings.HasPrefix(body, "<") || strings.Contains(strings.ToLower(body), "<html") {
		return nil
	}
	if strings.Contains(strings.ToLower(resp.Header.Get("Content-Type")), "text/html") {
		return nil
	}
	return &body
}
