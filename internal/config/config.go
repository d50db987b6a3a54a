package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/djdv/go-rescache"
	"github.com/docker/go-units"
	"gopkg.in/yaml.v3"
)

// Bytes is a size that may be written as "512MiB", "1g", or a plain number.
type Bytes int64

// CacheConfig holds resource cache settings
type CacheConfig struct {
	Policy          rescache.Policy `yaml:"policy"`
	BundlePolicy    rescache.Policy `yaml:"bundle_policy"`
	MemoryThreshold Bytes           `yaml:"memory_threshold"`
}

// LogConfig holds logger settings
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig holds metrics exposition settings
type MetricsConfig struct {
	Addr      string `yaml:"addr"`
	Namespace string `yaml:"namespace"`
	OTel      bool   `yaml:"otel"`
}

// SimulationConfig holds frame loop workload settings
type SimulationConfig struct {
	Assets           string `yaml:"assets"`
	Frames           int    `yaml:"frames"`
	RequestsPerFrame int    `yaml:"requests_per_frame"`
	Seed             int64  `yaml:"seed"`
}

// Config is the central configuration struct embedding all component configs
type Config struct {
	Cache      CacheConfig      `yaml:"cache"`
	Log        LogConfig        `yaml:"log"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Simulation SimulationConfig `yaml:"simulation"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Cache: CacheConfig{
			Policy:       rescache.UserDefined,
			BundlePolicy: rescache.Immediate,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Namespace: "rescache",
		},
		Simulation: SimulationConfig{
			Assets:           ".",
			Frames:           600,
			RequestsPerFrame: 16,
			Seed:             1,
		},
	}
}

// LoadFromFile loads configuration from a YAML file on top of the defaults
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return cfg, nil
}

// LoadFromEnv applies environment variable overrides to the config
func LoadFromEnv(cfg *Config) error {
	var errs []error
	if v := os.Getenv("RESCACHE_POLICY"); v != "" {
		errs = append(errs, cfg.Cache.Policy.UnmarshalText([]byte(v)))
	}
	if v := os.Getenv("RESCACHE_BUNDLE_POLICY"); v != "" {
		errs = append(errs, cfg.Cache.BundlePolicy.UnmarshalText([]byte(v)))
	}
	if v := os.Getenv("RESCACHE_MEMORY_THRESHOLD"); v != "" {
		errs = append(errs, cfg.Cache.MemoryThreshold.UnmarshalText([]byte(v)))
	}
	if v := os.Getenv("RESCACHE_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("RESCACHE_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("RESCACHE_METRICS_ADDR"); v != "" {
		cfg.Metrics.Addr = v
	}
	if v := os.Getenv("RESCACHE_OTEL"); v != "" {
		enabled, err := strconv.ParseBool(v)
		errs = append(errs, err)
		if err == nil {
			cfg.Metrics.OTel = enabled
		}
	}
	if v := os.Getenv("RESCACHE_ASSETS"); v != "" {
		cfg.Simulation.Assets = v
	}
	if v := os.Getenv("RESCACHE_FRAMES"); v != "" {
		frames, err := strconv.Atoi(v)
		errs = append(errs, err)
		if err == nil {
			cfg.Simulation.Frames = frames
		}
	}
	return errors.Join(errs...)
}

// Validate reports settings that cannot be used
func (cfg *Config) Validate() error {
	var errs []error
	if cfg.Simulation.Frames < 0 {
		errs = append(errs, fmt.Errorf("simulation.frames must be >= 0, got %d", cfg.Simulation.Frames))
	}
	if cfg.Simulation.RequestsPerFrame < 1 {
		errs = append(errs, fmt.Errorf("simulation.requests_per_frame must be >= 1, got %d",
			cfg.Simulation.RequestsPerFrame))
	}
	switch cfg.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", cfg.Log.Format))
	}
	return errors.Join(errs...)
}

// UnmarshalText implements encoding.TextUnmarshaler
func (b *Bytes) UnmarshalText(text []byte) error {
	size, err := units.RAMInBytes(string(text))
	if err != nil {
		return fmt.Errorf("invalid size %q: %w", text, err)
	}
	*b = Bytes(size)
	return nil
}

// MarshalText implements encoding.TextMarshaler
func (b Bytes) MarshalText() ([]byte, error) {
	return []byte(units.BytesSize(float64(b))), nil
}

func (b Bytes) String() string { return units.BytesSize(float64(b)) }
