package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
oas: api.yaml
scenarios: scenarios.yaml
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Listen)
	require.NotNil(t, cfg.Store.Memory)
	assert.Equal(t, "sandbox", cfg.Metrics.Namespace)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
}

func TestLoadRejectsMissingOAS(t *testing.T) {
	path := writeConfig(t, `
scenarios: scenarios.yaml
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "oas is required")
}

func TestLoadRejectsMultipleStoreBackends(t *testing.T) {
	path := writeConfig(t, `
oas: api.yaml
store:
  memory: {}
  file:
    path: /tmp/x
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exactly one of")
}

func TestLoadRejectsUnknownField(t *testing.T) {
	path := writeConfig(t, `
oas: api.yaml
bogus_field: true
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRejectsInvalidValidateResponses(t *testing.T) {
	path := writeConfig(t, `
oas: api.yaml
validate:
  responses: aggressive
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validate.responses")
}

func TestLoadRejectsOutOfRangeErrorRate(t *testing.T) {
	path := writeConfig(t, `
oas: api.yaml
chaos:
  errorRate: 1.5
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chaos.errorRate")
}

func TestSeedInt64IsDeterministic(t *testing.T) {
	a := Config{Seed: "release-42"}
	b := Config{Seed: "release-42"}
	c := Config{Seed: "other"}
	assert.Equal(t, a.SeedInt64(), b.SeedInt64())
	assert.NotEqual(t, a.SeedInt64(), c.SeedInt64())
}

func TestDefaultTTLOnlyAppliesToMemoryBackend(t *testing.T) {
	cfg := Config{Store: StoreConfig{File: &FileStoreConfig{Path: "/tmp/x"}}}
	assert.Equal(t, time.Duration(0), cfg.DefaultTTL())
}
