// Package config loads worldsim settings from defaults, an optional YAML
// file and command-line flags, in that order of precedence. Secrets only
// come from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// Reasoner backends.
const (
	ReasonerNone      = "none"
	ReasonerAnthropic = "anthropic"
	ReasonerGemini    = "gemini"
)

// Environment variables holding secrets.
const (
	EnvAnthropicKey = "ANTHROPIC_API_KEY"
	EnvGeminiKey    = "GEMINI_API_KEY"
	EnvAdminKey     = "WORLDSIM_ADMIN_KEY"
)

// Defaults.
const (
	defaultDBPath       = "data/automon.db"
	defaultAddr         = ":8080"
	defaultTickInterval = 2 * time.Second
	defaultTicksPerDay  = 24
	defaultMaxEvents    = 200
	defaultTimeout      = 8 * time.Second
	defaultRateLimit    = 60
	defaultLogLevel     = "info"
	defaultLogFormat    = "text"
)

// Config is the full runtime configuration.
type Config struct {
	Seed         int64         `koanf:"seed"`
	DBPath       string        `koanf:"db"`
	Addr         string        `koanf:"addr"`
	TickInterval time.Duration `koanf:"tick-interval"`
	TicksPerDay  int           `koanf:"ticks-per-day"`
	Speeds       []int         `koanf:"speeds"`
	MaxEvents    int           `koanf:"max-events"`
	AutoStart    bool          `koanf:"autostart"`

	Reasoner  string        `koanf:"reasoner"`
	Model     string        `koanf:"model"`
	Timeout   time.Duration `koanf:"timeout"`
	RateLimit int           `koanf:"rate-limit"`

	LogLevel  string `koanf:"log-level"`
	LogFormat string `koanf:"log-format"`

	AnthropicKey string `koanf:"-"`
	GeminiKey    string `koanf:"-"`
	AdminKey     string `koanf:"-"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		DBPath:       defaultDBPath,
		Addr:         defaultAddr,
		TickInterval: defaultTickInterval,
		TicksPerDay:  defaultTicksPerDay,
		Speeds:       []int{1, 2, 5, 10},
		MaxEvents:    defaultMaxEvents,
		AutoStart:    true,
		Reasoner:     ReasonerAnthropic,
		Timeout:      defaultTimeout,
		RateLimit:    defaultRateLimit,
		LogLevel:     defaultLogLevel,
		LogFormat:    defaultLogFormat,
	}
}

// RegisterFlags adds every setting to fs with its default value.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.Int64("seed", d.Seed, "world seed (0 = random)")
	fs.String("db", d.DBPath, "SQLite snapshot path (empty = in-memory)")
	fs.String("addr", d.Addr, "HTTP listen address (empty = disabled)")
	fs.Duration("tick-interval", d.TickInterval, "wall time between ticks at 1x")
	fs.Int("ticks-per-day", d.TicksPerDay, "ticks per in-game day")
	fs.IntSlice("speeds", d.Speeds, "allowed speed multipliers")
	fs.Int("max-events", d.MaxEvents, "event log capacity")
	fs.Bool("autostart", d.AutoStart, "start ticking immediately")
	fs.String("reasoner", d.Reasoner, "decision backend: anthropic, gemini or none")
	fs.String("model", d.Model, "reasoner model (empty = backend default)")
	fs.Duration("timeout", d.Timeout, "per-decision reasoning timeout")
	fs.Int("rate-limit", d.RateLimit, "reasoning calls per minute")
	fs.String("log-level", d.LogLevel, "debug, info, warn or error")
	fs.String("log-format", d.LogFormat, "text or json")
}

// Load merges defaults, the YAML file at path (if not empty) and the flags
// the user actually set, then reads secrets from the environment.
func Load(path string, fs *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}
	if fs != nil {
		if err := k.Load(posflag.Provider(fs, ".", k), nil); err != nil {
			return nil, fmt.Errorf("load flags: %w", err)
		}
	}

	cfg := Default()
	if k.Exists("speeds") {
		// Decoding into a non-empty slice would keep trailing defaults.
		cfg.Speeds = nil
	}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.AnthropicKey = os.Getenv(EnvAnthropicKey)
	cfg.GeminiKey = os.Getenv(EnvGeminiKey)
	cfg.AdminKey = os.Getenv(EnvAdminKey)
	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	var errs []error
	if c.TickInterval <= 0 {
		errs = append(errs, fmt.Errorf("tick-interval must be positive, got %s", c.TickInterval))
	}
	if c.TicksPerDay <= 0 {
		errs = append(errs, fmt.Errorf("ticks-per-day must be positive, got %d", c.TicksPerDay))
	}
	if c.MaxEvents <= 0 {
		errs = append(errs, fmt.Errorf("max-events must be positive, got %d", c.MaxEvents))
	}
	if !slices.Contains(c.Speeds, 1) {
		errs = append(errs, fmt.Errorf("speeds must include 1, got %v", c.Speeds))
	}
	for _, s := range c.Speeds {
		if s <= 0 {
			errs = append(errs, fmt.Errorf("speed multipliers must be positive, got %d", s))
		}
	}
	if c.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("timeout must be positive, got %s", c.Timeout))
	}
	if !slices.Contains([]string{ReasonerNone, ReasonerAnthropic, ReasonerGemini}, c.Reasoner) {
		errs = append(errs, fmt.Errorf("reasoner must be anthropic, gemini or none, got %q", c.Reasoner))
	}
	if !slices.Contains([]string{"debug", "info", "warn", "error"}, c.LogLevel) {
		errs = append(errs, fmt.Errorf("log-level must be debug, info, warn or error, got %q", c.LogLevel))
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		errs = append(errs, fmt.Errorf("log-format must be 'json' or 'text', got %q", c.LogFormat))
	}
	return errors.Join(errs...)
}
