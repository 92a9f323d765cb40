package scan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiff_TypeSensitiveScalarCompare(t *testing.T) {
	result := Diff(map[string]any{"a": "1"}, map[string]any{"a": 1})

	require.Len(t, result.Changed, 1)
	assert.Equal(t, "a", result.Changed[0].Field)
	assert.Equal(t, 0, result.UnchangedCount)
}

func TestDiff_JSONFieldsCompareStructurally(t *testing.T) {
	// Whitespace and key order must never register as a change.
	result := Diff(
		map[string]any{
			"tags": `["x","y"]`,
			"meta": `{"a":1,"b":2}`,
		},
		map[string]any{
			"tags": `["x", "y"]`,
			"meta": `{"b": 2, "a": 1}`,
		},
	)

	assert.Empty(t, result.Changed)
	assert.Equal(t, 2, result.UnchangedCount)
}

func TestDiff_JSONContentChangeDetected(t *testing.T) {
	result := Diff(
		map[string]any{"tags": `["x","y"]`},
		map[string]any{"tags": `["x","z"]`},
	)

	require.Len(t, result.Changed, 1)
	assert.Equal(t, "tags", result.Changed[0].Field)
}

func TestDiff_OneSidedKeysCountAsChanged(t *testing.T) {
	result := Diff(
		map[string]any{"removed": "old", "kept": true},
		map[string]any{"added": "new", "kept": true},
	)

	assert.Equal(t, 1, result.UnchangedCount)
	require.Len(t, result.Changed, 2)
	// Changed fields come back in deterministic (sorted) order.
	assert.Equal(t, "added", result.Changed[0].Field)
	assert.Equal(t, "removed", result.Changed[1].Field)
}

func TestDiff_VolatileFieldsSkipped(t *testing.T) {
	result := Diff(
		map[string]any{"last_scanned": "2024-01-01", "scan_status": "partial", "cms": "Drupal"},
		map[string]any{"last_scanned": "2025-06-01", "scan_status": "completed", "cms": "Drupal"},
	)

	assert.Empty(t, result.Changed)
	assert.Equal(t, 1, result.UnchangedCount)
}

func TestDiff_Deterministic(t *testing.T) {
	before := map[string]any{"a": 1, "b": "two", "c": `["x"]`}
	after := map[string]any{"a": 2, "b": "two", "c": `["y"]`}

	first := Diff(before, after)
	second := Diff(before, after)
	assert.Equal(t, first, second)
}
