package pyro

import (
	"fmt"
	"os"
	"runtime"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/pyro/internal/compress"
	"github.com/hupe1980/pyro/lattice"
	"github.com/hupe1980/pyro/plicache"
)

// Config holds every tunable of a discovery run. It can be loaded from YAML
// and converted into functional options.
type Config struct {
	// MaxError is the g1' error up to which a dependency is accepted.
	MaxError float64 `json:"max_error" yaml:"max_error"`

	// ErrorDeviation widens the decision band to [MaxError-d, MaxError+d].
	ErrorDeviation float64 `json:"error_deviation" yaml:"error_deviation"`

	// ErrorMeasure names the error measure. Only "g1prime" is supported.
	ErrorMeasure string `json:"error_measure" yaml:"error_measure"`

	SampleSize         int     `json:"sample_size" yaml:"sample_size"`
	SampleBooster      float64 `json:"sample_booster" yaml:"sample_booster"`
	EstimateConfidence float64 `json:"estimate_confidence" yaml:"estimate_confidence"`

	// LaunchPadOrder is "arity" or "error".
	LaunchPadOrder string `json:"launch_pad_order" yaml:"launch_pad_order"`

	DeferFailedLaunchPads bool `json:"defer_failed_launch_pads" yaml:"defer_failed_launch_pads"`
	MaxLHS                int  `json:"max_lhs" yaml:"max_lhs"`
	EstimateOnly          bool `json:"estimate_only" yaml:"estimate_only"`
	CheckEstimates        bool `json:"check_estimates" yaml:"check_estimates"`
	AscendRandomly        bool `json:"ascend_randomly" yaml:"ascend_randomly"`
	FindFDs               bool `json:"find_fds" yaml:"find_fds"`
	FindKeys              bool `json:"find_keys" yaml:"find_keys"`

	// Parallelism is the number of search spaces processed concurrently.
	Parallelism int `json:"parallelism" yaml:"parallelism"`

	Seed uint64 `json:"seed" yaml:"seed"`

	CachingMethod        string  `json:"caching_method" yaml:"caching_method"`
	CachingValue         float64 `json:"caching_value" yaml:"caching_value"`
	EvictionMethod       string  `json:"eviction_method" yaml:"eviction_method"`
	NaryIntersectionSize int     `json:"nary_intersection_size" yaml:"nary_intersection_size"`

	// MemoryLimit bounds the bytes of cached multi-column PLIs. Zero means unlimited.
	MemoryLimit int64 `json:"memory_limit" yaml:"memory_limit"`

	// SpillCompression is "none", "lz4" or "zstd".
	SpillCompression string `json:"spill_compression" yaml:"spill_compression"`

	// SpillIOLimit bounds spill uploads in bytes per second. Zero means unlimited.
	SpillIOLimit int64 `json:"spill_io_limit" yaml:"spill_io_limit"`

	// NullEqualsNull controls whether nulls agree with each other when a
	// relation is loaded.
	NullEqualsNull bool `json:"null_equals_null" yaml:"null_equals_null"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	lc := lattice.DefaultConfig()
	return Config{
		MaxError:              0.01,
		ErrorMeasure:          lattice.ErrorMeasureG1Prime,
		SampleSize:            lc.SampleSize,
		SampleBooster:         lc.SampleBooster,
		EstimateConfidence:    lc.EstimateConfidence,
		LaunchPadOrder:        "error",
		DeferFailedLaunchPads: lc.DeferFailedLaunchPads,
		FindFDs:               true,
		FindKeys:              true,
		Parallelism:           runtime.NumCPU(),
		CachingMethod:         plicache.CachingAll.String(),
		CachingValue:          0.5,
		EvictionMethod:        plicache.EvictionNone.String(),
		NaryIntersectionSize:  plicache.DefaultNaryIntersectionSize,
		SpillCompression:      compress.ZSTD.String(),
		NullEqualsNull:        true,
	}
}

// LoadConfig reads a YAML file. Keys missing from the file keep their
// default values.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks ranges and names. Unknown names wrap the matching
// sentinel errors.
func (c Config) Validate() error {
	switch {
	case c.MaxError < 0 || c.MaxError > 1:
		return invalidOption("max_error", c.MaxError, nil)
	case c.ErrorDeviation < 0:
		return invalidOption("error_deviation", c.ErrorDeviation, nil)
	case c.SampleSize < 0:
		return invalidOption("sample_size", c.SampleSize, nil)
	case c.SampleBooster < 1:
		return invalidOption("sample_booster", c.SampleBooster, nil)
	case c.EstimateConfidence >= 1:
		return invalidOption("estimate_confidence", c.EstimateConfidence, nil)
	case c.MaxLHS < 0:
		return invalidOption("max_lhs", c.MaxLHS, nil)
	case c.Parallelism < 1:
		return invalidOption("parallelism", c.Parallelism, nil)
	case c.NaryIntersectionSize < 2:
		return invalidOption("nary_intersection_size", c.NaryIntersectionSize, nil)
	case c.MemoryLimit < 0:
		return invalidOption("memory_limit", c.MemoryLimit, nil)
	case c.SpillIOLimit < 0:
		return invalidOption("spill_io_limit", c.SpillIOLimit, nil)
	case !c.FindFDs && !c.FindKeys:
		return invalidOption("find_fds", c.FindFDs, fmt.Errorf("nothing to discover"))
	}

	if c.ErrorMeasure != lattice.ErrorMeasureG1Prime {
		return invalidOption("error_measure", c.ErrorMeasure, fmt.Errorf("%w: %q", ErrUnknownErrorMeasure, c.ErrorMeasure))
	}
	if _, err := lattice.ParseComparator(c.LaunchPadOrder); err != nil {
		return invalidOption("launch_pad_order", c.LaunchPadOrder, err)
	}
	if _, err := plicache.ParseCachingMethod(c.CachingMethod); err != nil {
		return invalidOption("caching_method", c.CachingMethod, err)
	}
	if _, err := plicache.ParseEvictionMethod(c.EvictionMethod); err != nil {
		return invalidOption("eviction_method", c.EvictionMethod, err)
	}
	if _, err := compress.ParseType(c.SpillCompression); err != nil {
		return invalidOption("spill_compression", c.SpillCompression, err)
	}
	return nil
}

// Options converts the configuration into functional options.
func (c Config) Options() []Option {
	return []Option{WithConfig(c)}
}

func (c Config) latticeConfig() lattice.Config {
	return lattice.Config{
		SampleSize:            c.SampleSize,
		SampleBooster:         c.SampleBooster,
		EstimateConfidence:    c.EstimateConfidence,
		MaxLHS:                c.MaxLHS,
		DeferFailedLaunchPads: c.DeferFailedLaunchPads,
		EstimateOnly:          c.EstimateOnly,
		CheckEstimates:        c.CheckEstimates,
		AscendRandomly:        c.AscendRandomly,
	}
}
