package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateGroupSchema(t *testing.T) {
	schema := generateGroupSchema(groups[0])
	defs, ok := schema["$defs"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, defs, "ColumnMap")
	assert.Contains(t, defs, "IngestionRun")
}

func TestGenerateWritesEveryGroup(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, generate(dir))

	for _, g := range groups {
		raw, err := os.ReadFile(filepath.Join(dir, g.Output))
		require.NoError(t, err, g.Output)

		var doc map[string]any
		require.NoError(t, json.Unmarshal(raw, &doc))
		assert.Equal(t, "https://json-schema.org/draft/2020-12/schema", doc["$schema"])
	}
}
