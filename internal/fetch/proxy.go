package fetch

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// Proxy is the same-origin fallback endpoint. It performs the real request
// server-side and mirrors status, headers, and body back to the caller.
// Only GET and HEAD pass through, and every dialed address is re-checked
// against private/reserved ranges at connect time, so a hostname that
// resolves somewhere unexpected mid-request still gets refused.
type Proxy struct {
	client *http.Client
	logger *zap.Logger
}

func NewProxy(logger *zap.Logger) *Proxy {
	dialer := &net.Dialer{
		Timeout: 10 * time.Second,
		Control: func(network, address string, _ syscall.RawConn) error {
			host, _, err := net.SplitHostPort(address)
			if err != nil {
				return ErrInvalidURL
			}
			ip := net.ParseIP(host)
			if ip == nil || !ipAllowed(ip) {
				return ErrPrivateIP
			}
			return nil
		},
	}
	return &Proxy{
		client: &http.Client{
			Timeout: DefaultTimeout,
			Transport: &http.Transport{
				DialContext:         dialer.DialContext,
				TLSHandshakeTimeout: 10 * time.Second,
			},
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
		logger: logger,
	}
}

// hopByHopHeaders must not be forwarded between connections.
var hopByHopHeaders = map[string]bool{
	"Connection":          true,
	"Keep-Alive":          true,
	"Proxy-Authenticate":  true,
	"Proxy-Authorization": true,
	"Te":                  true,
	"Trailer":             true,
	"Transfer-Encoding":   true,
	"Upgrade":             true,
}

func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, ErrMethodNotAllowed.Error(), http.StatusMethodNotAllowed)
		return
	}

	target := r.URL.Query().Get("url")
	parsed, err := url.Parse(target)
	if err != nil || parsed.Host == "" {
		http.Error(w, ErrInvalidURL.Error(), http.StatusBadRequest)
		return
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		http.Error(w, ErrInvalidScheme.Error(), http.StatusBadRequest)
		return
	}
	if err := checkResolvedHost(r.Context(), parsed.Hostname()); err != nil {
		p.logger.Warn("proxy refused target", zap.String("url", target), zap.Error(err))
		http.Error(w, err.Error(), http.StatusForbidden)
		return
	}

	req, err := http.NewRequestWithContext(r.Context(), r.Method, target, nil)
	if err != nil {
		http.Error(w, ErrInvalidURL.Error(), http.StatusBadRequest)
		return
	}
	req.Header.Set("User-Agent", userAgent)
	if accept := r.Header.Get("Accept"); accept != "" {
		req.Header.Set("Accept", accept)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.Warn("proxy upstream fetch failed", zap.String("url", target), zap.Error(err))
		http.Error(w, "upstream fetch failed", http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	for k, vv := range resp.Header {
		if hopByHopHeaders[http.CanonicalHeaderKey(k)] {
			continue
		}
		for _, v := range vv {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(resp.StatusCode)
	io.Copy(w, io.LimitReader(resp.Body, maxBodyBytes))
}

// checkResolvedHost resolves host and validates every returned address.
// A target with even one private A record is rejected outright, since a
// scanner must never be usable to reach internal infrastructure.
func checkResolvedHost(ctx context.Context, host string) error {
	if strings.EqualFold(host, "localhost") || strings.EqualFold(host, "metadata.google.internal") {
		return ErrPrivateIP
	}
	if ip := net.ParseIP(host); ip != nil {
		if !ipAllowed(ip) {
			return ErrPrivateIP
		}
		return nil
	}
	ips, err := net.DefaultResolver.LookupIP(ctx, "ip", host)
	if err != nil || len(ips) == 0 {
		return ErrNetwork
	}
	for _, ip := range ips {
		if !ipAllowed(ip) {
			return ErrPrivateIP
		}
	}
	return nil
}

var cgnatNet = func() *net.IPNet {
	_, n, _ := net.ParseCIDR("100.64.0.0/10")
	return n
}()

// ipAllowed reports whether ip is a publicly routable unicast address.
func ipAllowed(ip net.IP) bool {
	if ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() || ip.IsMulticast() {
		return false
	}
	if ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() {
		return false
	}
	if cgnatNet.Contains(ip) {
		return false
	}
	if ip4 := ip.To4(); ip4 != nil {
		// IPv4-mapped IPv6 must not bypass the IPv4 checks.
		if ip4.IsLoopback() || ip4.IsPrivate() || ip4.IsLinkLocalUnicast() || cgnatNet.Contains(ip4) {
			return false
		}
	}
	return true
}
