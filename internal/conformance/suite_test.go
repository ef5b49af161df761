package conformance

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSuite(t *testing.T) {
	suite, err := LoadSuite("testdata/kv_suite.yaml")
	require.NoError(t, err)

	assert.Equal(t, "kv-conformance", suite.Name)
	assert.Equal(t, filepath.Join("testdata", "specs", "kv.cue"), suite.Spec,
		"spec path resolves relative to the suite file")
	assert.Equal(t, int64(2000), suite.Runners.TimeoutMS)
	require.NotNil(t, suite.Runners.KV)
	require.NotNil(t, suite.Runners.Log)
	assert.True(t, suite.Runners.Log.Discard)
	assert.Nil(t, suite.Runners.DB)
	assert.Nil(t, suite.Runners.HTTP)
}

func writeSuite(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()

	specPath := filepath.Join(dir, "m.cue")
	require.NoError(t, os.WriteFile(specPath, []byte(`machine: {name: "m"}`), 0o644))

	path := filepath.Join(dir, "suite.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadSuite_RejectsUnknownFields(t *testing.T) {
	path := writeSuite(t, `
name: s
description: d
spec: m.cue
runers:
  kv: {}
`)
	_, err := LoadSuite(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing suite YAML")
}

func TestLoadSuite_Validation(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantMsg string
	}{
		{
			"missing name",
			"description: d\nspec: m.cue\nrunners:\n  kv: {}\n",
			"name is required",
		},
		{
			"missing description",
			"name: s\nspec: m.cue\nrunners:\n  kv: {}\n",
			"description is required",
		},
		{
			"missing spec",
			"name: s\ndescription: d\nrunners:\n  kv: {}\n",
			"spec is required",
		},
		{
			"spec file absent",
			"name: s\ndescription: d\nspec: nope.cue\nrunners:\n  kv: {}\n",
			"spec file not found",
		},
		{
			"no runners",
			"name: s\ndescription: d\nspec: m.cue\n",
			"at least one runner",
		},
		{
			"negative timeout",
			"name: s\ndescription: d\nspec: m.cue\nrunners:\n  timeout_ms: -1\n  kv: {}\n",
			"timeout_ms must be non-negative",
		},
		{
			"db without path",
			"name: s\ndescription: d\nspec: m.cue\nrunners:\n  db: {}\n",
			"db.path is required",
		},
		{
			"preload without key",
			"name: s\ndescription: d\nspec: m.cue\nrunners:\n  kv:\n    preload:\n      - value: 1\n",
			"key is required",
		},
		{
			"preload without value",
			"name: s\ndescription: d\nspec: m.cue\nrunners:\n  kv:\n    preload:\n      - key: k\n",
			"value is required",
		},
		{
			"preload negative ttl",
			"name: s\ndescription: d\nspec: m.cue\nrunners:\n  kv:\n    preload:\n      - key: k\n        value: 1\n        ttl_ms: -5\n",
			"ttl_ms must be non-negative",
		},
		{
			"negative max_steps",
			"name: s\ndescription: d\nspec: m.cue\nmax_steps: -1\nrunners:\n  kv: {}\n",
			"max_steps must be non-negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeSuite(t, tt.body)
			_, err := LoadSuite(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestLoadSuite_MissingFile(t *testing.T) {
	_, err := LoadSuite(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading suite file")
}
