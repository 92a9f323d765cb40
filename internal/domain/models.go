package domain

import "time"

// ScanStatus classifies a finished scan by how many probes failed.
type ScanStatus string

const (
	ScanCompleted ScanStatus = "completed"
	ScanPartial   ScanStatus = "partial"
	ScanFailed    ScanStatus = "failed"
)

// ScanRequest is the payload for the scan API.
type ScanRequest struct {
	URL       string `json:"url"`
	ForceScan bool   `json:"force_scan"` // Bypass the recent-scan cache
}

// BulkScanRequest triggers a re-scan across many domains.
type BulkScanRequest struct {
	Domains     []string `json:"domains"`
	Concurrency int      `json:"concurrency"`
}

// Hop is a single step in an observed redirect chain.
type Hop struct {
	URL        string    `json:"url"`
	StatusCode int       `json:"status_code"`
	Timestamp  time.Time `json:"timestamp"`
}

// RedirectChain records every hop followed from the original URL to the
// final reachable one.
type RedirectChain struct {
	FinalURL      string `json:"final_url"`
	WasRedirected bool   `json:"was_redirected"`
	Hops          []Hop  `json:"hops"`
}

// SitemapResult aggregates everything learned from sitemap.xml. The
// enrichment fields are only populated when the root document is a
// sitemap index.
type SitemapResult struct {
	Detected      bool       `json:"detected"`
	URL           string     `json:"url,omitempty"`
	StatusCode    int        `json:"status_code,omitempty"`
	PageCount     int        `json:"page_count"`
	PDFCount      int        `json:"pdf_count"`
	FilesizeKB    int64      `json:"filesize_kb,omitempty"`
	LastModified  *time.Time `json:"last_modified,omitempty"`
	IsIndex       bool       `json:"is_index"`
	SitemapsFound int        `json:"sitemaps_found,omitempty"`

	ContentTypes []ContentTypeBucket `json:"content_types,omitempty"`
	TopPatterns  []URLPattern        `json:"top_patterns,omitempty"`
	ByYear       map[string]int      `json:"publishing_by_year,omitempty"`
	ByMonth      map[string]int      `json:"publishing_by_month,omitempty"`
	HasCleanURLs bool                `json:"has_clean_urls"`
	HasNodeIDs   bool                `json:"has_node_ids"`
	AvgPathDepth float64             `json:"avg_path_depth,omitempty"`

	Error string `json:"error,omitempty"`
}

// ContentTypeBucket groups sitemap URLs by their first path segment.
type ContentTypeBucket struct {
	Segment string  `json:"segment"`
	Count   int     `json:"count"`
	Percent float64 `json:"percent"`
}

// URLPattern is one ranked URL shape (e.g. "/news/{year}/{slug}").
type URLPattern struct {
	Pattern string `json:"pattern"`
	Count   int    `json:"count"`
}

// RobotsResult captures robots.txt hints.
type RobotsResult struct {
	Detected   bool     `json:"detected"`
	StatusCode int      `json:"status_code,omitempty"`
	FilesizeKB int64    `json:"filesize_kb,omitempty"`
	CrawlDelay *float64 `json:"crawl_delay,omitempty"`
	Sitemaps   []string `json:"sitemaps,omitempty"`
	Error      string   `json:"error,omitempty"`
}

// WordPressResult is the REST-API content enrichment, populated only when
// the CMS resolved to WordPress and /wp-json/ answered.
type WordPressResult struct {
	JSONAPIActive     bool     `json:"json_api_active"`
	Version           string   `json:"version,omitempty"`
	Theme             string   `json:"theme,omitempty"`
	Plugins           []string `json:"plugins,omitempty"`
	PostCount         *int     `json:"post_count,omitempty"`
	PageCount         *int     `json:"page_count,omitempty"`
	AuthorCount       *int     `json:"author_count,omitempty"`
	CategoryCount     *int     `json:"category_count,omitempty"`
	TagCount          *int     `json:"tag_count,omitempty"`
	MediaCount        *int     `json:"media_count,omitempty"`
	MediaSizeBytes    int64    `json:"media_size_bytes,omitempty"`
	MediaScanComplete bool     `json:"media_scan_complete"`
	CustomPostTypes   []string `json:"custom_post_types,omitempty"`
}

// DesignSystemResult is the composite USWDS detection score.
type DesignSystemResult struct {
	Detected bool   `json:"detected"`
	Score    int    `json:"score"`
	Version  string `json:"version,omitempty"`
}

// AnalyticsResult reports recognized analytics and marketing tags.
type AnalyticsResult struct {
	HasDAP        bool     `json:"has_dap"`
	DAPParameters string   `json:"dap_parameters,omitempty"`
	Tags          []string `json:"tags,omitempty"`
}

// TechStackResult classifies the technology stack of the landing page.
// HostingProvider is filled in by the orchestrator after merging the
// well-known declaration with the DNS inference.
type TechStackResult struct {
	CMS             *string             `json:"cms"`
	CMSScore        int                 `json:"cms_score,omitempty"`
	WebServer       string              `json:"web_server,omitempty"`
	CDN             string              `json:"cdn,omitempty"`
	HostingProvider *string             `json:"hosting_provider,omitempty"`
	WordPress       *WordPressResult    `json:"wordpress,omitempty"`
	Technologies    []string            `json:"technologies,omitempty"`
	SecurityHeaders map[string]string   `json:"security_headers,omitempty"`
	DesignSystem    *DesignSystemResult `json:"design_system,omitempty"`
	Analytics       *AnalyticsResult    `json:"analytics,omitempty"`
	HTTPS           bool                `json:"https"`
	HSTS            bool                `json:"hsts"`
	LoginGate       bool                `json:"login_gate"`
	Error           string              `json:"error,omitempty"`
}

// DNSResult holds the four DoH record sets plus the heuristic hosting
// inference derived from them.
type DNSResult struct {
	A               []string `json:"a,omitempty"`
	AAAA            []string `json:"aaaa,omitempty"`
	MX              []string `json:"mx,omitempty"`
	NS              []string `json:"ns,omitempty"`
	IPv6            bool     `json:"ipv6"`
	HostingProvider *string  `json:"hosting_provider,omitempty"`
	Error           string   `json:"error,omitempty"`
}

// ScanResult is the full fingerprint produced by one scan invocation.
// It is owned by that invocation and immutable once returned; Live stays
// nil when the redirect resolver itself failed.
type ScanResult struct {
	ID            string           `json:"id"`
	TargetURL     string           `json:"target_url"`
	ScannedAt     time.Time        `json:"scanned_at"`
	Status        ScanStatus       `json:"status"`
	RedirectChain *RedirectChain   `json:"redirect_chain,omitempty"`
	Sitemap       *SitemapResult   `json:"sitemap,omitempty"`
	Robots        *RobotsResult    `json:"robots,omitempty"`
	TechStack     *TechStackResult `json:"tech_stack,omitempty"`
	DNS           *DNSResult       `json:"dns,omitempty"`
	Errors        []string         `json:"errors"`
	DurationMs    int64            `json:"duration_ms"`
	Live          *bool            `json:"live"`
}

// FieldChange is one changed field reported by the diff engine.
type FieldChange struct {
	Field  string `json:"field"`
	Before any    `json:"before"`
	After  any    `json:"after"`
}

// DiffResult is the structural comparison of a stored baseline against a
// fresh scan's projected fields.
type DiffResult struct {
	Changed        []FieldChange `json:"changed"`
	UnchangedCount int           `json:"unchanged_count"`
}

// SiteRecord is the long-lived row the persistence layer projects scan
// fields onto.
type SiteRecord struct {
	Domain      string         `json:"domain"`
	LastScanned *time.Time     `json:"last_scanned,omitempty"`
	ScanStatus  string         `json:"scan_status,omitempty"`
	Live        *bool          `json:"live,omitempty"`
	Fields      map[string]any `json:"fields,omitempty"`
	UpdatedAt   time.Time      `json:"updated_at"`
}
