package tech

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/gboone/site-scanner-analyzer/internal/domain"
	"github.com/gboone/site-scanner-analyzer/internal/fetch"
)

const wpProbeTimeout = 10 * time.Second

// coreNamespaces are the REST namespaces WordPress itself registers;
// anything else was added by a plugin.
var coreNamespaces = map[string]bool{
	"wp/v2":              true,
	"wp-site-health/v1":  true,
	"wp-block-editor/v1": true,
	"oembed/1.0":         true,
	"batch/v1":           true,
}

// builtinRouteTypes are the wp/v2 collection routes WordPress ships
// with; a route outside this set marks a custom post type.
var builtinRouteTypes = map[string]bool{
	"posts": true, "pages": true, "media": true, "blocks": true,
	"types": true, "statuses": true, "taxonomies": true,
	"categories": true, "tags": true, "users": true, "comments": true,
	"search": true, "settings": true, "themes": true, "plugins": true,
	"block-directory": true, "block-patterns": true, "block-types": true,
	"block-renderer": true, "global-styles": true, "navigation": true,
	"menu-items": true, "menus": true, "menu-locations": true,
	"sidebars": true, "widget-types": true, "widgets": true,
	"templates": true, "template-parts": true, "font-families": true,
	"font-collections": true, "pattern-directory": true,
}

type wpRootDoc struct {
	Namespaces []string                   `json:"namespaces"`
	Routes     map[string]json.RawMessage `json:"routes"`
}

type wpMediaItem struct {
	MediaDetails struct {
		Filesize int64 `json:"filesize"`
	} `json:"media_details"`
}

// probeWordPress queries the REST API for content enrichment. It always
// returns a result; every failure degrades to JSONAPIActive=false.
func (d *Detector) probeWordPress(ctx context.Context, baseURL string) *domain.WordPressResult {
	result := &domain.WordPressResult{}

	root := d.fetchWPJSON(ctx, baseURL, "/wp-json/")
	if root == nil {
		return result
	}

	var rootDoc wpRootDoc
	if err := json.Unmarshal(root, &rootDoc); err != nil {
		d.logger.Debug("wp-json root unparseable", zap.String("url", baseURL), zap.Error(err))
		return result
	}
	result.JSONAPIActive = true
	result.Plugins = inferPlugins(rootDoc.Namespaces)
	result.CustomPostTypes = inferCustomPostTypes(rootDoc.Routes)

	counts := []struct {
		resource string
		dest     **int
	}{
		{"posts", &result.PostCount},
		{"pages", &result.PageCount},
		{"users", &result.AuthorCount},
		{"categories", &result.CategoryCount},
		{"tags", &result.TagCount},
	}

	var wg sync.WaitGroup
	for _, c := range counts {
		wg.Add(1)
		go func(resource string, dest **int) {
			defer wg.Done()
			if n, ok := d.countResource(ctx, baseURL, resource); ok {
				*dest = &n
			}
		}(c.resource, c.dest)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		d.scanMedia(ctx, baseURL, result)
	}()
	wg.Wait()

	return result
}

func (d *Detector) fetchWPJSON(ctx context.Context, baseURL, path string) []byte {
	target := strings.TrimRight(baseURL, "/") + path
	resp, err := d.client.Fetch(ctx, target, fetch.Options{Timeout: wpProbeTimeout, FollowRedirects: true})
	if err != nil || resp.StatusCode != 200 {
		return nil
	}
	return resp.Body
}

// countResource reads the collection total from the X-WP-Total header,
// falling back to the returned array length when the header is absent
// (blocked author enumeration commonly strips it).
func (d *Detector) countResource(ctx context.Context, baseURL, resource string) (int, bool) {
	target := strings.TrimRight(baseURL, "/") + "/wp-json/wp/v2/" + resource + "?per_page=1"
	resp, err := d.client.Fetch(ctx, target, fetch.Options{Timeout: wpProbeTimeout, FollowRedirects: true})
	if err != nil || resp.StatusCode != 200 {
		return 0, false
	}
	if total := resp.Header.Get("X-WP-Total"); total != "" {
		if n, err := strconv.Atoi(total); err == nil {
			return n, true
		}
	}
	var items []json.RawMessage
	if err := json.Unmarshal(resp.Body, &items); err != nil {
		return 0, false
	}
	return len(items), true
}

// scanMedia sums media item filesizes over one page of results and flags
// the scan incomplete when the declared total exceeds what we saw.
func (d *Detector) scanMedia(ctx context.Context, baseURL string, result *domain.WordPressResult) {
	target := strings.TrimRight(baseURL, "/") + "/wp-json/wp/v2/media?per_page=100"
	resp, err := d.client.Fetch(ctx, target, fetch.Options{Timeout: wpProbeTimeout, FollowRedirects: true})
	if err != nil || resp.StatusCode != 200 {
		return
	}

	total := -1
	if raw := resp.Header.Get("X-WP-Total"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			total = n
		}
	}

	var items []wpMediaItem
	if err := json.Unmarshal(resp.Body, &items); err != nil {
		return
	}
	if total < 0 {
		total = len(items)
	}

	var size int64
	for _, item := range items {
		size += item.MediaDetails.Filesize
	}

	result.MediaCount = &total
	result.MediaSizeBytes = size
	result.MediaScanComplete = len(items) >= total
}

func inferPlugins(namespaces []string) []string {
	seen := make(map[string]bool)
	var plugins []string
	for _, ns := range namespaces {
		if coreNamespaces[ns] || strings.HasPrefix(ns, "wp/") {
			continue
		}
		name := ns
		if i := strings.IndexByte(ns, '/'); i > 0 {
			name = ns[:i]
		}
		if !seen[name] {
			seen[name] = true
			plugins = append(plugins, name)
		}
	}
	sort.Strings(plugins)
	return plugins
}

func inferCustomPostTypes(routes map[string]json.RawMessage) []string {
	seen := make(map[string]bool)
	var types []string
	for route := range routes {
		parts := strings.Split(strings.TrimPrefix(route, "/"), "/")
		// Only top-level wp/v2 collection routes name a post type.
		if len(parts) != 3 || parts[0] != "wp" || parts[1] != "v2" {
			continue
		}
		name := parts[2]
		if strings.ContainsAny(name, "(<") || builtinRouteTypes[name] {
			continue
		}
		if !seen[name] {
			seen[name] = true
			types = append(types, name)
		}
	}
	sort.Strings(types)
	return types
}
