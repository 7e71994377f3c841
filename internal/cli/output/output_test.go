package output

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEffectiveMode(t *testing.T) {
	tests := []struct {
		mode Mode
		want Mode
	}{
		{ModeAuto, ModeText},
		{ModeText, ModeText},
		{ModeJSON, ModeJSON},
		{"", ModeText},
	}
	for _, tt := range tests {
		r := NewRenderer(new(bytes.Buffer), new(bytes.Buffer), tt.mode)
		assert.Equal(t, tt.want, r.EffectiveMode(), "mode %q", tt.mode)
	}
}

func TestPlainStylesWhenNotTerminal(t *testing.T) {
	out := new(bytes.Buffer)
	r := NewRenderer(out, new(bytes.Buffer), ModeAuto)

	r.Success("done")
	assert.Equal(t, "✓ done\n", out.String())
}

func TestJSON(t *testing.T) {
	out := new(bytes.Buffer)
	r := NewRenderer(out, new(bytes.Buffer), ModeJSON)

	require.NoError(t, r.JSON(map[string]int{"pages": 3}))

	var decoded map[string]int
	require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
	assert.Equal(t, 3, decoded["pages"])
}

func TestErrorfWritesToStderr(t *testing.T) {
	out := new(bytes.Buffer)
	errOut := new(bytes.Buffer)
	r := NewRenderer(out, errOut, ModeText)

	r.Errorf("boom: %d", 7)
	assert.Empty(t, out.String())
	assert.Equal(t, "boom: 7\n", errOut.String())
}
