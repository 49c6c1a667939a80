// Package config loads server configuration using Viper.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/hsche/edureg/pkg/logging"
)

// Known submission sinks.
const (
	SinkLog    = "log"
	SinkNATS   = "nats"
	SinkSQLite = "sqlite"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Config holds all configuration values for edureg.
type Config struct {
	Addr           string        `mapstructure:"addr" yaml:"addr"`
	DataDir        string        `mapstructure:"data_dir" yaml:"data_dir"`
	LogLevel       string        `mapstructure:"log_level" yaml:"log_level"`
	LogJSON        bool          `mapstructure:"log_json" yaml:"log_json"`
	ResetDelay     time.Duration `mapstructure:"reset_delay" yaml:"reset_delay"`
	SessionTTL     time.Duration `mapstructure:"session_ttl" yaml:"session_ttl"`
	Sinks          []string      `mapstructure:"sinks" yaml:"sinks"`
	CSRFSecret     string        `mapstructure:"csrf_secret" yaml:"csrf_secret,omitempty"`
	RateLimit      float64       `mapstructure:"rate_limit" yaml:"rate_limit"`
	RateBurst      int           `mapstructure:"rate_burst" yaml:"rate_burst"`
	MaxConnsPerIP  int           `mapstructure:"max_conns_per_ip" yaml:"max_conns_per_ip"`
	AllowedOrigins []string      `mapstructure:"allowed_origins" yaml:"allowed_origins"`
	InsecureDev    bool          `mapstructure:"insecure_dev" yaml:"insecure_dev"`
	AuditLog       string        `mapstructure:"audit_log" yaml:"audit_log"`
}

var defaults = map[string]any{
	"addr":             ":8080",
	"data_dir":         ".edureg",
	"log_level":        "info",
	"log_json":         false,
	"reset_delay":      5 * time.Second,
	"session_ttl":      30 * time.Minute,
	"sinks":            []string{SinkLog},
	"csrf_secret":      "",
	"rate_limit":       5.0,
	"rate_burst":       20,
	"max_conns_per_ip": 20,
	"allowed_origins":  []string{},
	"insecure_dev":     false,
	"audit_log":        "audit.jsonl",
}

// Load reads configuration with precedence flags > EDUREG_ env vars >
// config file > defaults. path may be empty, in which case ./edureg.yml is
// used when present. flags may be nil.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix("EDUREG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	// AutomaticEnv only covers keys viper already knows through Get; bind
	// explicitly so Unmarshal sees them too.
	for key := range defaults {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("binding %s env: %w", key, err)
		}
	}

	if flags != nil {
		var err error
		flags.VisitAll(func(f *pflag.Flag) {
			key := strings.ReplaceAll(f.Name, "-", "_")
			if _, known := defaults[key]; known && err == nil {
				err = v.BindPFlag(key, f)
			}
		})
		if err != nil {
			return nil, fmt.Errorf("binding flags: %w", err)
		}
	}

	if path == "" && fileExists(ProjectPath()) {
		path = ProjectPath()
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges and names.
func (c *Config) Validate() error {
	var errs []error
	if c.Addr == "" {
		errs = append(errs, errors.New("addr is empty"))
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.ResetDelay <= 0 {
		errs = append(errs, fmt.Errorf("reset_delay must be positive, got %s", c.ResetDelay))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, fmt.Errorf("session_ttl must be positive, got %s", c.SessionTTL))
	}
	if c.RateLimit < 0 || c.RateBurst < 0 {
		errs = append(errs, errors.New("rate_limit and rate_burst must not be negative"))
	}
	if len(c.Sinks) == 0 {
		errs = append(errs, errors.New("at least one sink is required"))
	}
	for _, s := range c.Sinks {
		if !slices.Contains([]string{SinkLog, SinkNATS, SinkSQLite}, s) {
			errs = append(errs, fmt.Errorf("unknown sink %q", s))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}

// HasSink reports whether name is configured.
func (c *Config) HasSink(name string) bool {
	return slices.Contains(c.Sinks, name)
}

// Path resolves name inside the data directory unless it is absolute.
func (c *Config) Path(name string) string {
	if name == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.DataDir, name)
}

// Logger builds the process logger from the log settings.
func (c *Config) Logger() logging.Logger {
	level, err := logging.ParseLevel(c.LogLevel)
	if err != nil {
		level, _ = logging.ParseLevel("info")
	}
	return logging.NewSlogLogger(
		logging.WithLevel(level),
		logging.WithJSON(c.LogJSON),
		logging.WithOutput(os.Stderr),
	)
}

// ProjectPath returns the default config file path, ./edureg.yml.
func ProjectPath() string {
	return "edureg.yml"
}

// Write writes cfg as YAML to path, creating parent directories. The CSRF
// secret is never written.
func Write(path string, cfg *Config) error {
	out := *cfg
	out.CSRFSecret = ""

	data, err := yaml.Marshal(&out)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
