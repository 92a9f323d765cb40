package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gboone/site-scanner-analyzer/internal/domain"
)

// ErrNotFound is returned when a site has no stored record yet.
var ErrNotFound = errors.New("site not found")

// PostgresStore is the persistence collaborator: it appends scan
// history and projects selected scan fields onto the long-lived site
// record. The scan core itself never writes durable state.
type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(connStr string) (*PostgresStore, error) {
	db, err := pgxpool.New(context.Background(), connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// SaveScan appends the scan to history and upserts the site record,
// all within a single transaction.
func (s *PostgresStore) SaveScan(ctx context.Context, result *domain.ScanResult, diff *domain.DiffResult) error {
	siteDomain := DomainOf(result.TargetURL)

	resultJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encoding scan result: %w", err)
	}
	diffJSON, err := json.Marshal(diff)
	if err != nil {
		return fmt.Errorf("encoding diff: %w", err)
	}
	fieldsJSON, err := json.Marshal(ProjectFields(result))
	if err != nil {
		return fmt.Errorf("encoding projected fields: %w", err)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO sites (domain, last_scanned, scan_status, live, fields)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (domain) DO UPDATE SET
		   last_scanned = EXCLUDED.last_scanned,
		   scan_status = EXCLUDED.scan_status,
		   live = EXCLUDED.live,
		   fields = EXCLUDED.fields,
		   updated_at = NOW()`,
		siteDomain, result.ScannedAt, string(result.Status), result.Live, fieldsJSON)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO scan_history (id, domain, result, diff, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		result.ID, siteDomain, resultJSON, diffJSON, result.ScannedAt)
	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// GetBaselineFields returns the previously projected fields for a
// domain, or an empty map when the site has never been scanned.
func (s *PostgresStore) GetBaselineFields(ctx context.Context, siteDomain string) (map[string]any, error) {
	var raw []byte
	err := s.db.QueryRow(ctx,
		`SELECT fields FROM sites WHERE domain = $1`, siteDomain,
	).Scan(&raw)
	if err == pgx.ErrNoRows {
		return map[string]any{}, nil
	}
	if err != nil {
		return nil, err
	}

	fields := make(map[string]any)
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, fmt.Errorf("decoding stored fields: %w", err)
		}
	}
	return fields, nil
}

// ListSites returns a page of site records, optionally filtered by scan
// status.
func (s *PostgresStore) ListSites(ctx context.Context, limit, offset int, status string) ([]domain.SiteRecord, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	query := `SELECT domain, last_scanned, scan_status, live, fields, updated_at FROM sites`
	args := []any{}
	if status != "" {
		query += ` WHERE scan_status = $1`
		args = append(args, status)
	}
	query += fmt.Sprintf(` ORDER BY domain LIMIT %d OFFSET %d`, limit, offset)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sites []domain.SiteRecord
	for rows.Next() {
		var rec domain.SiteRecord
		var raw []byte
		if err := rows.Scan(&rec.Domain, &rec.LastScanned, &rec.ScanStatus, &rec.Live, &raw, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		if len(raw) > 0 {
			_ = json.Unmarshal(raw, &rec.Fields)
		}
		sites = append(sites, rec)
	}
	return sites, rows.Err()
}

// ProjectFields flattens the diff-relevant subset of a scan onto the
// field map stored with the site record. JSON-encoding the list-valued
// fields keeps the diff engine's structural comparison applicable.
func ProjectFields(result *domain.ScanResult) map[string]any {
	fields := map[string]any{}

	if chain := result.RedirectChain; chain != nil {
		fields["final_url"] = chain.FinalURL
		fields["was_redirected"] = chain.WasRedirected
	}
	if sm := result.Sitemap; sm != nil {
		fields["sitemap_detected"] = sm.Detected
		fields["page_count"] = sm.PageCount
		fields["pdf_count"] = sm.PDFCount
		fields["has_clean_urls"] = sm.HasCleanURLs
	}
	if rb := result.Robots; rb != nil {
		fields["robots_detected"] = rb.Detected
		if rb.CrawlDelay != nil {
			fields["crawl_delay"] = *rb.CrawlDelay
		}
	}
	if ts := result.TechStack; ts != nil {
		if ts.CMS != nil {
			fields["cms"] = *ts.CMS
		}
		if ts.HostingProvider != nil {
			fields["hosting_provider"] = *ts.HostingProvider
		}
		fields["web_server"] = ts.WebServer
		fields["cdn"] = ts.CDN
		fields["https"] = ts.HTTPS
		fields["hsts"] = ts.HSTS
		fields["login_gate"] = ts.LoginGate
		fields["technologies"] = encodeJSONField(ts.Technologies)
		if ts.DesignSystem != nil {
			fields["uswds_detected"] = ts.DesignSystem.Detected
		}
		if ts.Analytics != nil {
			fields["has_dap"] = ts.Analytics.HasDAP
			fields["analytics_tags"] = encodeJSONField(ts.Analytics.Tags)
		}
	}
	if dns := result.DNS; dns != nil {
		fields["ipv6"] = dns.IPv6
		fields["ns_records"] = encodeJSONField(dns.NS)
	}
	if result.Live != nil {
		fields["live"] = *result.Live
	}
	return fields
}

func encodeJSONField(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return "[]"
	}
	return string(raw)
}

// DomainOf extracts the bare hostname used as the site key.
func DomainOf(rawURL string) string {
	if u, err := url.Parse(rawURL); err == nil && u.Hostname() != "" {
		return strings.ToLower(u.Hostname())
	}
	return strings.ToLower(rawURL)
}
