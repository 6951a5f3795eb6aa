// Package config loads the devplane configuration file
// (~/.config/devplane/config.yaml) and the DEVPLANE_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/samcharles93/devplane/internal/logger"
)

const (
	EnvSeed         = "DEVPLANE_SEED"
	EnvTrueFP16Gemm = "DEVPLANE_TRUE_FP16_GEMM"
	EnvLogLevel     = "DEVPLANE_LOG_LEVEL"
	EnvLogFormat    = "DEVPLANE_LOG_FORMAT"
	EnvBackend      = "DEVPLANE_BACKEND"
	EnvConfig       = "DEVPLANE_CONFIG"
)

// Config is the on-disk configuration. Pointer fields distinguish "not set"
// from zero values.
type Config struct {
	// Seed derives every device RNG state.
	Seed *uint64 `yaml:"seed"`
	// TrueFP16Gemm is the baseline GEMM accumulation mode.
	TrueFP16Gemm *bool `yaml:"true_fp16_gemm"`

	Backend   string `yaml:"backend"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	Server Server `yaml:"server"`
}

type Server struct {
	Address string `yaml:"address"`
	// RateLimit is requests per second across the API. Zero disables it.
	RateLimit *float64 `yaml:"rate_limit"`
	Burst     *int     `yaml:"burst"`
}

// Defaults applied by Resolved when nothing else sets a field.
const (
	DefaultAddress   = "127.0.0.1:9464"
	DefaultLogLevel  = "info"
	DefaultLogFormat = logger.FormatPretty
	DefaultRateLimit = 20.0
	DefaultBurst     = 40
)

// Path returns the config file location. DEVPLANE_CONFIG wins over the user
// config directory.
func Path() string {
	if p := os.Getenv(EnvConfig); p != "" {
		return p
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "devplane", "config.yaml")
}

// Load reads the config file at path. A missing file yields a zero Config.
func Load(path string) (Config, error) {
	if path == "" {
		return Config{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Config{}, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadDefault reads the file at Path and applies the environment.
func LoadDefault() (Config, error) {
	cfg, err := Load(Path())
	if err != nil {
		return Config{}, err
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from the environment. lookup is os.LookupEnv
// outside tests.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvSeed); ok && v != "" {
		seed, err := strconv.ParseUint(strings.TrimSpace(v), 0, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvSeed, err)
		}
		c.Seed = &seed
	}
	if v, ok := lookup(EnvTrueFP16Gemm); ok && v != "" {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %w", EnvTrueFP16Gemm, err)
		}
		c.TrueFP16Gemm = &b
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.LogLevel = v
	}
	if v, ok := lookup(EnvLogFormat); ok && v != "" {
		c.LogFormat = v
	}
	if v, ok := lookup(EnvBackend); ok && v != "" {
		c.Backend = v
	}
	return nil
}

// Validate rejects values nothing downstream can use.
func (c Config) Validate() error {
	var errs []error
	if c.LogLevel != "" && !logger.ValidLevel(c.LogLevel) {
		errs = append(errs, fmt.Errorf("invalid log_level %q", c.LogLevel))
	}
	switch normalFormat(c.LogFormat) {
	case "", logger.FormatPretty, logger.FormatJSON, logger.FormatText:
	default:
		errs = append(errs, fmt.Errorf("invalid log_format %q", c.LogFormat))
	}
	if c.Server.RateLimit != nil && *c.Server.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("server.rate_limit must be >= 0"))
	}
	if c.Server.Burst != nil && *c.Server.Burst < 1 {
		errs = append(errs, fmt.Errorf("server.burst must be >= 1"))
	}
	return errors.Join(errs...)
}

// Resolved returns a copy with every unset field at its default.
func (c Config) Resolved() Config {
	out := c
	if out.Seed == nil {
		out.Seed = new(uint64)
	}
	if out.TrueFP16Gemm == nil {
		t := true
		out.TrueFP16Gemm = &t
	}
	if out.LogLevel == "" {
		out.LogLevel = DefaultLogLevel
	}
	out.LogFormat = normalFormat(out.LogFormat)
	if out.LogFormat == "" {
		out.LogFormat = DefaultLogFormat
	}
	if out.Server.Address == "" {
		out.Server.Address = DefaultAddress
	}
	if out.Server.RateLimit == nil {
		r := DefaultRateLimit
		out.Server.RateLimit = &r
	}
	if out.Server.Burst == nil {
		b := DefaultBurst
		out.Server.Burst = &b
	}
	return out
}

// normalFormat folds a log format name to the spelling logger.NewFormat
// accepts.
func normalFormat(format string) string {
	return strings.ToLower(strings.TrimSpace(format))
}
