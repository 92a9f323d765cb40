package scan

import (
	"encoding/json"
	"reflect"
	"sort"
	"strings"

	"github.com/gboone/site-scanner-analyzer/internal/domain"
)

// volatileFields change on every scan and would register as noise, so
// the diff skips them.
var volatileFields = map[string]bool{
	"id":               true,
	"scanned_at":       true,
	"last_scanned":     true,
	"scan_status":      true,
	"scan_duration_ms": true,
	"updated_at":       true,
}

// Diff structurally compares a stored baseline against freshly scanned
// fields. It walks the union of keys; a key present on only one side
// counts as changed. String values that parse as JSON arrays or objects
// are compared structurally after a round-trip, so key order or
// whitespace differences never register. Everything else gets a
// type-sensitive raw compare. Pure and deterministic.
func Diff(before, after map[string]any) *domain.DiffResult {
	result := &domain.DiffResult{Changed: []domain.FieldChange{}}

	keys := make(map[string]bool, len(before)+len(after))
	for k := range before {
		keys[k] = true
	}
	for k := range after {
		keys[k] = true
	}

	ordered := make([]string, 0, len(keys))
	for k := range keys {
		if !volatileFields[k] {
			ordered = append(ordered, k)
		}
	}
	sort.Strings(ordered)

	for _, key := range ordered {
		b, inBefore := before[key]
		a, inAfter := after[key]
		if inBefore && inAfter && valuesEqual(b, a) {
			result.UnchangedCount++
			continue
		}
		result.Changed = append(result.Changed, domain.FieldChange{Field: key, Before: b, After: a})
	}
	return result
}

func valuesEqual(b, a any) bool {
	if bs, ok := b.(string); ok {
		if as, ok := a.(string); ok {
			if bj, bok := parseJSONValue(bs); bok {
				if aj, aok := parseJSONValue(as); aok {
					return reflect.DeepEqual(bj, aj)
				}
			}
			return bs == as
		}
	}
	return reflect.DeepEqual(b, a)
}

// parseJSONValue decodes s when it is a JSON-encoded array or object.
// Scalars stay raw strings so "1" and 1 remain distinct.
func parseJSONValue(s string) (any, bool) {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "[") && !strings.HasPrefix(trimmed, "{") {
		return nil, false
	}
	var v any
	if err := json.Unmarshal([]byte(trimmed), &v); err != nil {
		return nil, false
	}
	return v, true
}
