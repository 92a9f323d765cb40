package probe

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/gboone/site-scanner-analyzer/internal/domain"
	"github.com/gboone/site-scanner-analyzer/internal/fetch"
)

const (
	maxRedirectHops = 10
	hopTimeout      = 10 * time.Second
)

// RedirectResolver follows HTTP redirects hop-by-hop to find the final
// reachable URL. Every later probe targets that resolved URL, so this is
// the one probe whose failure the orchestrator has to handle specially.
type RedirectResolver struct {
	client *fetch.Client
	logger *zap.Logger
}

func NewRedirectResolver(client *fetch.Client, logger *zap.Logger) *RedirectResolver {
	return &RedirectResolver{client: client, logger: logger}
}

// Resolve walks the redirect chain starting from rawURL. It prefers HEAD
// and downgrades to GET when the server rejects it. The chain ends on a
// non-3xx status, a missing or unparseable Location, a revisited URL, or
// the hop cap.
func (r *RedirectResolver) Resolve(ctx context.Context, rawURL string) (*domain.RedirectChain, error) {
	visited := make(map[string]bool)
	var hops []domain.Hop

	current := rawURL
	method := http.MethodHead
	visited[current] = true

	for len(hops) < maxRedirectHops {
		resp, err := r.request(ctx, current, &method)
		if err != nil {
			if len(hops) == 0 {
				return nil, fmt.Errorf("resolving %s: %w", rawURL, err)
			}
			// A mid-chain failure still leaves us with an observed chain.
			r.logger.Warn("redirect hop failed", zap.String("url", current), zap.Error(err))
			break
		}

		hops = append(hops, domain.Hop{
			URL:        current,
			StatusCode: resp.StatusCode,
			Timestamp:  time.Now().UTC(),
		})

		if resp.StatusCode < 300 || resp.StatusCode > 399 {
			break
		}

		next, ok := resolveLocation(current, resp.Header.Get("Location"))
		if !ok || visited[next] {
			break
		}
		visited[next] = true
		current = next
	}

	chain := &domain.RedirectChain{
		FinalURL: rawURL,
		Hops:     hops,
	}
	if len(hops) > 0 {
		chain.FinalURL = hops[len(hops)-1].URL
	}
	chain.WasRedirected = len(hops) >= 2 || (len(hops) == 1 && hops[0].URL != rawURL)
	return chain, nil
}

// request tries the current preferred method, downgrading HEAD to GET on
// a transport failure or a 405/501 and sticking with GET from then on.
func (r *RedirectResolver) request(ctx context.Context, u string, method *string) (*fetch.Response, error) {
	opts := fetch.Options{Method: *method, Timeout: hopTimeout, FollowRedirects: false}
	resp, err := r.client.Fetch(ctx, u, opts)
	if *method == http.MethodHead {
		if err != nil || resp.StatusCode == http.StatusMethodNotAllowed || resp.StatusCode == http.StatusNotImplemented {
			*method = http.MethodGet
			opts.Method = *method
			return r.client.Fetch(ctx, u, opts)
		}
	}
	return resp, err
}

// resolveLocation resolves a Location header value, absolute or relative,
// against the URL of the hop that issued it.
func resolveLocation(current, location string) (string, bool) {
	if location == "" {
		return "", false
	}
	base, err := url.Parse(current)
	if err != nil {
		return "", false
	}
	next, err := url.Parse(location)
	if err != nil {
		return "", false
	}
	resolved := base.ResolveReference(next)
	if resolved.Host == "" || (resolved.Scheme != "http" && resolved.Scheme != "https") {
		return "", false
	}
	return resolved.String(), true
}
