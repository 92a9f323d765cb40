package probe

import (
	"net"
	"strings"
)

// hostingRule maps an NS-hostname substring to a provider name. Rules
// are evaluated in order and the first match wins, so the more specific
// government and managed-CMS entries sit above the generic clouds.
type hostingRule struct {
	substring string
	provider  string
}

var nsHostingRules = []hostingRule{
	// Government and civic-specific infrastructure.
	{"cloud.gov", "cloud.gov"},
	{"census.gov", "U.S. Census Bureau"},
	{"akadns", "Akamai"},

	// Managed CMS / site platforms.
	{"govaccess", "Granicus"},
	{"civicplus", "CivicPlus"},
	{"revize", "Revize"},
	{"wpengine", "WP Engine"},
	{"pantheon", "Pantheon"},
	{"acquia", "Acquia"},
	{"squarespacedns", "Squarespace"},
	{"wixdns", "Wix"},
	{"shopify", "Shopify"},

	// CDNs and big clouds.
	{"cloudflare", "Cloudflare"},
	{"awsdns", "Amazon Web Services"},
	{"azure-dns", "Microsoft Azure"},
	{"googledomains", "Google Cloud"},
	{"google.com", "Google Cloud"},
	{"fastly", "Fastly"},
	{"akam.net", "Akamai"},
	{"nsone", "NS1"},
	{"ultradns", "UltraDNS"},

	// Traditional hosts and registrars.
	{"domaincontrol", "GoDaddy"},
	{"godaddy", "GoDaddy"},
	{"bluehost", "Bluehost"},
	{"hostgator", "HostGator"},
	{"dreamhost", "DreamHost"},
	{"networksolutions", "Network Solutions"},
	{"register.com", "Register.com"},
	{"name-services", "eNom"},
	{"digitalocean", "DigitalOcean"},
	{"linode", "Linode"},
}

// ipHostingRange is the coarse fallback used only when no NS rule hit.
type ipHostingRange struct {
	cidr     string
	provider string
}

var ipHostingRanges = []ipHostingRange{
	{"23.185.0.0/16", "Pantheon"},
	{"104.16.0.0/13", "Cloudflare"},
	{"172.64.0.0/13", "Cloudflare"},
	{"151.101.0.0/16", "Fastly"},
	{"199.60.103.0/24", "HubSpot"},
	{"192.0.78.0/24", "WordPress.com"},
	{"3.0.0.0/8", "Amazon Web Services"},
	{"52.0.0.0/8", "Amazon Web Services"},
	{"34.64.0.0/10", "Google Cloud"},
	{"35.184.0.0/13", "Google Cloud"},
	{"20.33.0.0/16", "Microsoft Azure"},
	{"40.64.0.0/10", "Microsoft Azure"},
}

var parsedIPRanges = func() []struct {
	net      *net.IPNet
	provider string
} {
	out := make([]struct {
		net      *net.IPNet
		provider string
	}, 0, len(ipHostingRanges))
	for _, r := range ipHostingRanges {
		_, n, err := net.ParseCIDR(r.cidr)
		if err != nil {
			continue
		}
		out = append(out, struct {
			net      *net.IPNet
			provider string
		}{n, r.provider})
	}
	return out
}()

// inferHostingProvider attributes infrastructure ownership from NS
// hostnames, falling back to IP-range heuristics over A records only
// when no NS rule matched. Returns nil when nothing matches.
func inferHostingProvider(nsRecords, aRecords []string) *string {
	for _, rule := range nsHostingRules {
		for _, ns := range nsRecords {
			if strings.Contains(strings.ToLower(ns), rule.substring) {
				p := rule.provider
				return &p
			}
		}
	}

	for _, raw := range aRecords {
		ip := net.ParseIP(raw)
		if ip == nil {
			continue
		}
		for _, r := range parsedIPRanges {
			if r.net.Contains(ip) {
				p := r.provider
				return &p
			}
		}
	}
	return nil
}
