package conf

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lk2023060901/seo-research-backend/internal/research/types"
)

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.False(t, cfg.Redis.Enabled)
	assert.False(t, cfg.Database.Enabled)
	assert.Equal(t, 24*time.Hour, cfg.Cache.TTL.For(types.CategorySerp))
	assert.Equal(t, types.AlgorithmCentroid, cfg.Clustering.DefaultAlgorithm)
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9090
cache:
  ttl:
    serp: 2h
orchestrator:
  max_keywords: 50
sources:
  serp:
    rate: 0.2
`), 0o600))

	t.Setenv("SEO_SOURCES_EMBEDDING_API_KEY", "k1,k2")
	t.Setenv("SEO_LOG_LEVEL", "debug")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0:9090", cfg.Server.Addr())
	assert.Equal(t, 2*time.Hour, cfg.Cache.TTL.Serp)
	assert.Equal(t, 7*24*time.Hour, cfg.Cache.TTL.KeywordMetrics)
	assert.Equal(t, 50, cfg.Orchestrator.MaxKeywords)
	assert.Equal(t, 0.2, cfg.Sources.Serp.Rate)
	assert.NotEmpty(t, cfg.Sources.Serp.Scrape.UserAgents)
	assert.Equal(t, "k1,k2", cfg.Sources.Embedding.APIKey)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadConfig_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("cache:\n  optimize_target_ratio: 2\n"), 0o600))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}
