package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/gboone/site-scanner-analyzer/internal/domain"
	"github.com/gboone/site-scanner-analyzer/internal/fetch"
)

// DefaultDoHEndpoint is Cloudflare's JSON DNS API.
const DefaultDoHEndpoint = "https://cloudflare-dns.com/dns-query"

const dohTimeout = 8 * time.Second

// DNS record type codes as used by the DoH JSON API.
const (
	typeA    = 1
	typeNS   = 2
	typeMX   = 15
	typeAAAA = 28
)

// DNSResolver issues DNS-over-HTTPS queries and infers a hosting
// provider from the answers. Each record type degrades independently to
// an empty list on failure.
type DNSResolver struct {
	client   *fetch.Client
	endpoint string
	logger   *zap.Logger
}

func NewDNSResolver(client *fetch.Client, endpoint string, logger *zap.Logger) *DNSResolver {
	if endpoint == "" {
		endpoint = DefaultDoHEndpoint
	}
	return &DNSResolver{client: client, endpoint: endpoint, logger: logger}
}

type dohAnswer struct {
	Name string `json:"name"`
	Type int    `json:"type"`
	Data string `json:"data"`
}

type dohResponse struct {
	Status int         `json:"Status"`
	Answer []dohAnswer `json:"Answer"`
}

// Resolve runs the four record queries in parallel and attaches the
// hosting inference. It never returns an error.
func (r *DNSResolver) Resolve(ctx context.Context, host string) *domain.DNSResult {
	result := &domain.DNSResult{}

	queries := []struct {
		qtype int
		name  string
		dest  *[]string
	}{
		{typeA, "A", &result.A},
		{typeAAAA, "AAAA", &result.AAAA},
		{typeMX, "MX", &result.MX},
		{typeNS, "NS", &result.NS},
	}

	var wg sync.WaitGroup
	var errMu sync.Mutex
	var failures []string
	for _, q := range queries {
		wg.Add(1)
		go func(qtype int, name string, dest *[]string) {
			defer wg.Done()
			records, err := r.query(ctx, host, qtype)
			if err != nil {
				r.logger.Debug("doh query failed",
					zap.String("host", host), zap.String("type", name), zap.Error(err))
				errMu.Lock()
				failures = append(failures, fmt.Sprintf("%s: %v", name, err))
				errMu.Unlock()
				return
			}
			*dest = records
		}(q.qtype, q.name, q.dest)
	}
	wg.Wait()

	result.IPv6 = len(result.AAAA) > 0
	result.HostingProvider = inferHostingProvider(result.NS, result.A)
	if len(failures) == len(queries) {
		result.Error = strings.Join(failures, "; ")
	}
	return result
}

func (r *DNSResolver) query(ctx context.Context, host string, qtype int) ([]string, error) {
	q := fmt.Sprintf("%s?name=%s&type=%d", r.endpoint, url.QueryEscape(host), qtype)
	resp, err := r.client.Fetch(ctx, q, fetch.Options{
		Timeout:         dohTimeout,
		FollowRedirects: true,
		Headers:         map[string]string{"Accept": "application/dns-json"},
	})
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != 200 {
		return nil, &fetch.HTTPError{StatusCode: resp.StatusCode, URL: q}
	}

	var parsed dohResponse
	if err := json.Unmarshal(resp.Body, &parsed); err != nil {
		return nil, fmt.Errorf("decoding doh response: %w", err)
	}

	var records []string
	for _, ans := range parsed.Answer {
		if ans.Type != qtype {
			continue
		}
		data := strings.TrimSpace(ans.Data)
		if qtype == typeMX {
			// MX answers arrive as "10 mail.example.gov."; keep the host.
			if fields := strings.Fields(data); len(fields) == 2 {
				data = fields[1]
			}
		}
		data = strings.TrimSuffix(data, ".")
		if data != "" {
			records = append(records, data)
		}
	}
	return records, nil
}
