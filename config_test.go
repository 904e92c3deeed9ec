package pyro

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/pyro/internal/compress"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 0.01, cfg.MaxError)
	assert.Equal(t, "error", cfg.LaunchPadOrder)
	assert.True(t, cfg.FindFDs)
	assert.True(t, cfg.FindKeys)
	assert.Positive(t, cfg.Parallelism)
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pyro.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
max_error: 0.05
sample_size: 1000
launch_pad_order: arity
parallelism: 3
find_keys: false
caching_method: coin
caching_value: 0.25
eviction_method: least-used
memory_limit: 1048576
spill_compression: lz4
`), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 0.05, cfg.MaxError)
	assert.Equal(t, 1000, cfg.SampleSize)
	assert.Equal(t, "arity", cfg.LaunchPadOrder)
	assert.Equal(t, 3, cfg.Parallelism)
	assert.False(t, cfg.FindKeys)
	assert.True(t, cfg.FindFDs)
	assert.Equal(t, "coin", cfg.CachingMethod)
	assert.Equal(t, 0.25, cfg.CachingValue)
	assert.Equal(t, "least-used", cfg.EvictionMethod)
	assert.Equal(t, int64(1<<20), cfg.MemoryLimit)
	assert.Equal(t, compress.LZ4.String(), cfg.SpillCompression)

	// untouched keys keep their defaults
	assert.Equal(t, DefaultConfig().SampleBooster, cfg.SampleBooster)
	assert.Equal(t, DefaultConfig().NaryIntersectionSize, cfg.NaryIntersectionSize)
}

func TestLoadConfigErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadConfig(filepath.Join(dir, "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	malformed := filepath.Join(dir, "malformed.yaml")
	require.NoError(t, os.WriteFile(malformed, []byte("max_error: [1, 2"), 0o600))
	_, err = LoadConfig(malformed)
	assert.Error(t, err)

	invalid := filepath.Join(dir, "invalid.yaml")
	require.NoError(t, os.WriteFile(invalid, []byte("eviction_method: fifo\n"), 0o600))
	_, err = LoadConfig(invalid)
	assert.ErrorIs(t, err, ErrUnsupportedEvictionMethod)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		option string
		target error
	}{
		{"negative max error", func(c *Config) { c.MaxError = -0.1 }, "max_error", nil},
		{"max error above one", func(c *Config) { c.MaxError = 1.1 }, "max_error", nil},
		{"negative deviation", func(c *Config) { c.ErrorDeviation = -1 }, "error_deviation", nil},
		{"negative sample size", func(c *Config) { c.SampleSize = -1 }, "sample_size", nil},
		{"small booster", func(c *Config) { c.SampleBooster = 0.5 }, "sample_booster", nil},
		{"certain confidence", func(c *Config) { c.EstimateConfidence = 1 }, "estimate_confidence", nil},
		{"negative max lhs", func(c *Config) { c.MaxLHS = -1 }, "max_lhs", nil},
		{"no workers", func(c *Config) { c.Parallelism = 0 }, "parallelism", nil},
		{"unary intersection", func(c *Config) { c.NaryIntersectionSize = 1 }, "nary_intersection_size", nil},
		{"negative memory limit", func(c *Config) { c.MemoryLimit = -1 }, "memory_limit", nil},
		{"negative io limit", func(c *Config) { c.SpillIOLimit = -1 }, "spill_io_limit", nil},
		{"nothing to find", func(c *Config) { c.FindFDs, c.FindKeys = false, false }, "find_fds", nil},
		{"unknown measure", func(c *Config) { c.ErrorMeasure = "g3" }, "error_measure", ErrUnknownErrorMeasure},
		{"unknown order", func(c *Config) { c.LaunchPadOrder = "size" }, "launch_pad_order", ErrUnknownComparator},
		{"unknown caching", func(c *Config) { c.CachingMethod = "lru" }, "caching_method", ErrUnsupportedCachingMethod},
		{"unknown eviction", func(c *Config) { c.EvictionMethod = "fifo" }, "eviction_method", ErrUnsupportedEvictionMethod},
		{"unknown compression", func(c *Config) { c.SpillCompression = "snappy" }, "spill_compression", compress.ErrUnknownType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			var invalid *ErrInvalidOption
			require.ErrorAs(t, err, &invalid)
			assert.Equal(t, tt.option, invalid.Name)
			if tt.target != nil {
				assert.ErrorIs(t, err, tt.target)
			}
		})
	}
}

func TestConfigOptions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxError = 0.2
	cfg.Parallelism = 1

	o := applyOptions(cfg.Options())
	assert.Equal(t, cfg, o.cfg)

	o = applyOptions(append(cfg.Options(), WithMaxError(0.3, 0.01)))
	assert.Equal(t, 0.3, o.cfg.MaxError)
	assert.Equal(t, 0.01, o.cfg.ErrorDeviation)
}

func TestApplyOptionsDefaults(t *testing.T) {
	o := applyOptions([]Option{WithLogger(nil), WithMetricsCollector(nil)})
	assert.NotNil(t, o.logger)
	assert.Equal(t, NoopMetricsCollector{}, o.metricsCollector)
	assert.Equal(t, "pyro", o.spillPrefix)
}
