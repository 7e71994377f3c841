package diag

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"count", "count", 0},
		{"count", "counts", 1},
		{"cont", "count", 1},
		{"kitten", "sitting", 3},
		{"", "abc", 3},
	}
	for _, tt := range tests {
		if got := levenshtein(tt.a, tt.b); got != tt.want {
			t.Errorf("levenshtein(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestSuggest(t *testing.T) {
	candidates := []string{"count", "items", "title"}

	assert.Equal(t, "count", Suggest("cont", candidates))
	assert.Equal(t, "items", Suggest("item", candidates))

	// Nothing within the distance cutoff.
	assert.Equal(t, "", Suggest("completelyDifferent", candidates))
}

func TestNewUndefined(t *testing.T) {
	e := NewUndefined(UndefinedState, "/view/children/0/value", "state", "cont", []string{"count", "title"})

	assert.Equal(t, UndefinedState, e.Code)
	assert.Equal(t, "/view/children/0/value", e.Path)
	assert.Equal(t, SeverityError, e.Severity)
	assert.Equal(t, "count", e.Suggestion)
	assert.Equal(t, "cont", e.Actual)
	require.NotNil(t, e.Context)
	assert.Equal(t, []string{"count", "title"}, e.Context.AvailableNames)
	assert.Contains(t, e.Message, `did you mean "count"?`)
}

func TestErrorToJSON(t *testing.T) {
	e := NewUndefined(UndefinedAction, "/view/props/onClick", "action", "incr", []string{"inc"})

	data, err := e.ToJSON()
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))

	assert.Equal(t, "UNDEFINED_ACTION", out["code"])
	assert.Equal(t, "/view/props/onClick", out["path"])
	assert.Equal(t, "error", out["severity"])
	assert.Equal(t, "inc", out["suggestion"])

	ctx, ok := out["context"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, []any{"inc"}, ctx["availableNames"])
}

func TestErrorInterface(t *testing.T) {
	e := New(DuplicateAction, "/actions/1", "duplicate action %q", "inc")
	assert.Contains(t, e.Error(), "DUPLICATE_ACTION")
	assert.Contains(t, e.Error(), "/actions/1")
}
