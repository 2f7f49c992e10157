package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("COLUMN_ORDER", "")
	t.Setenv("QUEUE_BACKEND", "")
	t.Setenv("BAND_HEIGHT_DIVISOR", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 20, cfg.BandHeightDivisor)
	assert.Equal(t, ColumnOrderCurrentFirst, cfg.ColumnOrder)
	assert.Equal(t, QueueBackendAsynq, cfg.QueueBackend)
	assert.Equal(t, 2000, cfg.YearMin)
	assert.Equal(t, 2050, cfg.YearMax)
	assert.False(t, cfg.StrictContinuation)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("STRICT_CONTINUATION", "true")
	t.Setenv("COLUMN_ORDER", "Prior-First")
	t.Setenv("PAGE_CONCURRENCY", "8")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.True(t, cfg.StrictContinuation)
	assert.Equal(t, ColumnOrderPriorFirst, cfg.ColumnOrder)
	assert.Equal(t, 8, cfg.PageConcurrency)
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"year range", func(c *Config) { c.YearMin, c.YearMax = 2050, 2000 }},
		{"column order", func(c *Config) { c.ColumnOrder = "sideways" }},
		{"queue backend", func(c *Config) { c.QueueBackend = "kafka" }},
		{"divisor", func(c *Config) { c.BandHeightDivisor = 0 }},
		{"page concurrency", func(c *Config) { c.PageConcurrency = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadConfig()
			require.NoError(t, err)
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidateWorkerRequiresDatabase(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.EqualError(t, cfg.ValidateWorker(), "DATABASE_URL is required")
}

func TestDefaultCatalogue(t *testing.T) {
	c, err := DefaultCatalogue()
	require.NoError(t, err)
	require.NotEmpty(t, c.Statistics)

	names := map[string]bool{}
	for _, s := range c.Statistics {
		names[s.Name] = true
		assert.NotEmpty(t, s.Phrases)
	}
	assert.True(t, names["net_assets"])
	assert.True(t, names["net_current_assets"])
}

func TestLoadCatalogueFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stats.yaml")
	require.NoError(t, os.WriteFile(path, []byte("statistics:\n  - name: turnover\n    phrases: [\" turnover \", \"\"]\n"), 0o644))

	c, err := LoadCatalogue(path)
	require.NoError(t, err)
	require.Len(t, c.Statistics, 1)
	assert.Equal(t, []string{"turnover"}, c.Statistics[0].Phrases)
}

func TestParseCatalogueErrors(t *testing.T) {
	_, err := ParseCatalogue([]byte("statistics:\n  - phrases: [a]\n"))
	assert.ErrorContains(t, err, "no name")

	_, err = ParseCatalogue([]byte("statistics:\n  - name: a\n    phrases: [x]\n  - name: a\n    phrases: [y]\n"))
	assert.ErrorContains(t, err, "duplicate")

	_, err = ParseCatalogue([]byte("statistics:\n  - name: a\n"))
	assert.ErrorContains(t, err, "no phrases")
}

func TestAdHoc(t *testing.T) {
	c := AdHoc([]string{"Net assets", " ", "cash at bank"})
	require.Len(t, c.Statistics, 2)
	assert.Equal(t, "net_assets", c.Statistics[0].Name)
	assert.Equal(t, []string{"cash at bank"}, c.Statistics[1].Phrases)
}
