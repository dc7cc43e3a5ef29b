package emit

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWriterMessageShape(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	w.now = func() time.Time {
		return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	}

	err := w.Schema("checks",
		map[string]any{"type": "object"},
		[]string{"id"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	err = w.Record("checks", map[string]any{"id": float64(7), "name": "homepage"})
	if err != nil {
		t.Fatal(err)
	}
	err = w.State(map[string]any{"bookmarks": map[string]any{"actions": map[string]any{"time": float64(1717243200)}}})
	if err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)

	var schema map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &schema))
	require.Equal(t, "SCHEMA", schema["type"])
	require.Equal(t, "checks", schema["stream"])
	require.Equal(t, []any{"id"}, schema["key_properties"])

	var record map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &record))
	require.Equal(t, "RECORD", record["type"])
	require.Equal(t, "homepage", record["record"].(map[string]any)["name"])
	require.Equal(t, "2025-06-01T12:00:00Z", record["time_extracted"])

	var state map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[2]), &state))
	require.Equal(t, "STATE", state["type"])
	require.Contains(t, state["value"].(map[string]any), "bookmarks")
}
