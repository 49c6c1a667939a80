package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	orig, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(orig) })
}

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, 5*time.Second, cfg.ResetDelay)
	assert.Equal(t, 30*time.Minute, cfg.SessionTTL)
	assert.Equal(t, []string{SinkLog}, cfg.Sinks)
	assert.Equal(t, filepath.Join(".edureg", "audit.jsonl"), cfg.Path(cfg.AuditLog))
	assert.True(t, cfg.HasSink(SinkLog))
	assert.False(t, cfg.HasSink(SinkNATS))
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	require.NoError(t, os.WriteFile(ProjectPath(), []byte(
		"addr: \":9000\"\nreset_delay: 2s\nsinks: [log, sqlite]\nlog_level: debug\n"), 0o644))
	t.Setenv("EDUREG_LOG_LEVEL", "warn")
	t.Setenv("EDUREG_RATE_BURST", "7")

	flags := pflag.NewFlagSet("serve", pflag.ContinueOnError)
	flags.String("addr", ":8080", "")
	flags.Bool("insecure-dev", false, "")
	require.NoError(t, flags.Parse([]string{"--addr", ":7000", "--insecure-dev"}))

	cfg, err := Load("", flags)
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.Addr, "flag beats file")
	assert.Equal(t, "warn", cfg.LogLevel, "env beats file")
	assert.Equal(t, 7, cfg.RateBurst)
	assert.Equal(t, 2*time.Second, cfg.ResetDelay)
	assert.Equal(t, []string{SinkLog, SinkSQLite}, cfg.Sinks)
	assert.True(t, cfg.InsecureDev)
}

func TestLoadEnvList(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("EDUREG_SINKS", "log,nats")

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{SinkLog, SinkNATS}, cfg.Sinks)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"empty addr", func(c *Config) { c.Addr = "" }, false},
		{"bad level", func(c *Config) { c.LogLevel = "loud" }, false},
		{"zero reset delay", func(c *Config) { c.ResetDelay = 0 }, false},
		{"unknown sink", func(c *Config) { c.Sinks = []string{"kafka"} }, false},
		{"no sinks", func(c *Config) { c.Sinks = nil }, false},
		{"negative rate", func(c *Config) { c.RateLimit = -1 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{
				Addr:       ":8080",
				LogLevel:   "info",
				ResetDelay: time.Second,
				SessionTTL: time.Minute,
				Sinks:      []string{SinkLog},
			}
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalid)
			}
		})
	}
}

func TestWriteRoundTrip(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load("", nil)
	require.NoError(t, err)
	cfg.CSRFSecret = "hunter2"
	cfg.Sinks = []string{SinkNATS}

	path := filepath.Join("conf", "edureg.yml")
	require.NoError(t, Write(path, cfg))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "hunter2")

	loaded, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{SinkNATS}, loaded.Sinks)
	assert.Equal(t, cfg.ResetDelay, loaded.ResetDelay)
}
