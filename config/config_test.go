package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 15, cfg.Cluster.TopEnd)
	assert.Equal(t, 3, cfg.Embedding.MinTokenLength)
	assert.Equal(t, "pca", cfg.Viz.Method)
	assert.Equal(t, uint64(42), cfg.Cluster.Seed)
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobmap.yaml")
	data := []byte(`
embedding:
  mode: word
  word_vectors_path: glove.txt
  min_token_length: 4
cluster:
  top_end: 11
  sensitivity: 2.5
viz:
  method: tsne
  show_text: true
`)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	t.Setenv("JOBMAP_API_PORT", "9000")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "word", cfg.Embedding.Mode)
	assert.Equal(t, 4, cfg.Embedding.MinTokenLength)
	assert.Equal(t, 11, cfg.Cluster.TopEnd)
	assert.Equal(t, "tsne", cfg.Viz.Method)
	assert.True(t, cfg.Viz.ShowText)
	assert.Equal(t, 9000, cfg.API.Port)
	assert.Equal(t, 30, cfg.Cluster.Restarts)
	assert.Equal(t, 2.5, cfg.Cluster.Sensitivity)
}

func TestLoad_Invalid(t *testing.T) {
	testCases := []struct {
		name string
		yaml string
	}{
		{"TopEndTooSmall", "cluster:\n  top_end: 1\n"},
		{"UnknownMethod", "viz:\n  method: umap\n"},
		{"WordModeWithoutTable", "embedding:\n  mode: word\n"},
		{"UnknownProvider", "embedding:\n  provider: cohere\n"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "jobmap.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tc.yaml), 0o644))

			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestLoad_BadEnv(t *testing.T) {
	t.Setenv("JOBMAP_TOP_END", "many")
	_, err := Load("")
	assert.Error(t, err)
}
