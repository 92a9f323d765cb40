package probe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInferHostingProvider_NSRules(t *testing.T) {
	tests := []struct {
		name string
		ns   []string
		want string
	}{
		{"cloud.gov", []string{"ns1.cloud.gov"}, "cloud.gov"},
		{"granicus", []string{"dns1.govaccess.com"}, "Granicus"},
		{"cloudflare", []string{"ada.ns.cloudflare.com"}, "Cloudflare"},
		{"aws route53", []string{"ns-1234.awsdns-12.org"}, "Amazon Web Services"},
		{"godaddy", []string{"ns55.domaincontrol.com"}, "GoDaddy"},
		{"case insensitive", []string{"NS1.WPENGINE.COM"}, "WP Engine"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := inferHostingProvider(tt.ns, nil)
			require.NotNil(t, got)
			assert.Equal(t, tt.want, *got)
		})
	}
}

func TestInferHostingProvider_FirstMatchWins(t *testing.T) {
	// cloud.gov sits above cloudflare in the rule order, so the first
	// rule to match anywhere in the NS set decides.
	got := inferHostingProvider([]string{"ada.ns.cloudflare.com", "ns1.cloud.gov"}, nil)
	require.NotNil(t, got)
	assert.Equal(t, "cloud.gov", *got)
}

func TestInferHostingProvider_IPFallback(t *testing.T) {
	got := inferHostingProvider(nil, []string{"23.185.0.4"})
	require.NotNil(t, got)
	assert.Equal(t, "Pantheon", *got)
}

func TestInferHostingProvider_NSBeatsIP(t *testing.T) {
	// IP ranges are consulted only when no NS rule matched.
	got := inferHostingProvider([]string{"ns1.wpengine.com"}, []string{"23.185.0.4"})
	require.NotNil(t, got)
	assert.Equal(t, "WP Engine", *got)
}

func TestInferHostingProvider_NoMatch(t *testing.T) {
	assert.Nil(t, inferHostingProvider([]string{"ns1.example.org"}, []string{"198.51.100.1"}))
}
