// Package config loads the settings of an analysis run from defaults, an
// optional YAML file, environment variables, and command-line flags.
package config

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/sarchlab/rowpressure/analysis/overhead"
	"github.com/sarchlab/rowpressure/logging"
	"github.com/sarchlab/rowpressure/mem/cache"
	"github.com/sarchlab/rowpressure/mem/dram/rowcounter"
	"github.com/sarchlab/rowpressure/mem/trace"
)

// EnvPrefix prefixes the environment variables that override settings, e.g.
// ROWPRESSURE_WINDOW_DURATION.
const EnvPrefix = "ROWPRESSURE"

// Config is the full configuration of a run.
type Config struct {
	Cache       CacheConfig    `mapstructure:"cache"`
	DRAM        DRAMConfig     `mapstructure:"dram"`
	Window      WindowConfig   `mapstructure:"window"`
	Trace       TraceConfig    `mapstructure:"trace"`
	Output      OutputConfig   `mapstructure:"output"`
	Log         logging.Config `mapstructure:"log"`
	Parallelism int            `mapstructure:"parallelism"`
}

// CacheConfig is the geometry of the tracking cache.
type CacheConfig struct {
	Size     uint64 `mapstructure:"size"`
	SetAssoc uint64 `mapstructure:"set_assoc"`
	LineSize uint64 `mapstructure:"line_size"`
}

// DRAMConfig is the organization covered by the row counters.
type DRAMConfig struct {
	Size         uint64 `mapstructure:"size"`
	RowSize      uint64 `mapstructure:"row_size"`
	CounterWidth uint   `mapstructure:"counter_width"`
}

// WindowConfig holds the constants of the overhead model.
type WindowConfig struct {
	Duration         uint64 `mapstructure:"duration"`
	RefreshThreshold uint64 `mapstructure:"refresh_threshold"`
	AvgDRAMLatency   uint64 `mapstructure:"avg_dram_latency"`
}

// TraceConfig selects the lines of the log that are replayed.
type TraceConfig struct {
	SideMarker string `mapstructure:"side_marker"`
}

// OutputConfig selects where results go besides the log.
type OutputConfig struct {
	DB      string `mapstructure:"db"`
	CSV     string `mapstructure:"csv"`
	TopRows int    `mapstructure:"top_rows"`
}

// SetDefaults registers the default of every setting.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("cache.size", 32*1024)
	v.SetDefault("cache.set_assoc", 8)
	v.SetDefault("cache.line_size", 8)

	v.SetDefault("dram.size", rowcounter.DefaultDRAMSize)
	v.SetDefault("dram.row_size", rowcounter.DefaultRowSize)
	v.SetDefault("dram.counter_width", rowcounter.DefaultCounterWidth)

	v.SetDefault("window.duration", overhead.DefaultWindowDuration)
	v.SetDefault("window.refresh_threshold", overhead.DefaultRefreshThreshold)
	v.SetDefault("window.avg_dram_latency", overhead.DefaultAvgDRAMLatency)

	v.SetDefault("trace.side_marker", trace.DefaultSideMarker)

	v.SetDefault("output.db", "")
	v.SetDefault("output.csv", "")
	v.SetDefault("output.top_rows", 10)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("parallelism", runtime.NumCPU())
}

// Load reads the configuration. An empty file searches for rowpressure.yaml in
// the working directory and ./config, and is not an error if none is found.
func Load(v *viper.Viper, file string) (*Config, error) {
	SetDefaults(v)

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("rowpressure")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || file != "" {
			return nil, errors.Wrap(err, "reading config file")
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, errors.Wrap(err, "decoding config")
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}

	return &c, nil
}

// Validate checks every setting that would otherwise fail deep inside a run.
func (c *Config) Validate() error {
	if _, err := c.CacheBuilder().Build(); err != nil {
		return err
	}

	if err := c.RowCounterConfig().Validate(); err != nil {
		return err
	}

	if err := c.OverheadConfig().Validate(); err != nil {
		return err
	}

	if c.Trace.SideMarker == "" {
		return errors.New("trace side marker must not be empty")
	}

	if c.Parallelism <= 0 {
		return fmt.Errorf("parallelism must be positive, got %d", c.Parallelism)
	}

	return nil
}

// CacheBuilder returns a builder for the tracking cache.
func (c *Config) CacheBuilder() cache.Builder {
	return cache.MakeBuilder().
		WithByteSize(c.Cache.Size).
		WithWayAssociativity(c.Cache.SetAssoc).
		WithLineSize(c.Cache.LineSize)
}

// RowCounterConfig returns the DRAM organization.
func (c *Config) RowCounterConfig() rowcounter.Config {
	return rowcounter.Config{
		DRAMSize:     c.DRAM.Size,
		RowSize:      c.DRAM.RowSize,
		CounterWidth: c.DRAM.CounterWidth,
	}
}

// OverheadConfig returns the constants of the overhead model.
func (c *Config) OverheadConfig() overhead.Config {
	return overhead.Config{
		WindowDuration:   c.Window.Duration,
		RefreshThreshold: c.Window.RefreshThreshold,
		AvgDRAMLatency:   c.Window.AvgDRAMLatency,
	}
}

// EstimatorBuilder returns a builder that creates one estimator per trace.
func (c *Config) EstimatorBuilder() overhead.Builder {
	return overhead.MakeBuilder().
		WithConfig(c.OverheadConfig()).
		WithCacheBuilder(c.CacheBuilder()).
		WithRowCounterConfig(c.RowCounterConfig())
}
