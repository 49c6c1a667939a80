package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hsche/edureg/internal/config"
	"github.com/hsche/edureg/pkg/health"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load("", nil)
	require.NoError(t, err)
	cfg.DataDir = t.TempDir()
	cfg.LogLevel = "error"
	cfg.Sinks = []string{config.SinkLog, config.SinkSQLite}
	cfg.CSRFSecret = "server-test-secret"
	return cfg
}

func TestServer(t *testing.T) {
	cfg := testConfig(t)
	s, err := NewServer(context.Background(), cfg, "test")
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var report health.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, "test", report.Version)
	assert.Contains(t, report.Checks, "archive")
	assert.Contains(t, report.Checks, "snapshot_store")
	assert.Contains(t, report.Checks, "sink_sqlite")

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/forms/university", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Content-Security-Policy"))
	assert.NotEmpty(t, rec.Result().Cookies())

	req := httptest.NewRequest(http.MethodPost, "/forms/university", strings.NewReader(url.Values{"_event": {"next_step"}}.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `edureg_forms_opened_total{form="university"} 1`)
	assert.Contains(t, rec.Body.String(), "edureg_csrf_rejected_total 1\n")
	assert.Contains(t, rec.Body.String(), "edureg_live_sockets 0\n")

	require.NoError(t, s.Shutdown())

	trail, err := os.ReadFile(cfg.Path(cfg.AuditLog))
	require.NoError(t, err)
	assert.Contains(t, string(trail), `"type":"form_opened"`)
	assert.Contains(t, string(trail), `"type":"csrf_violation"`)
	assert.FileExists(t, cfg.Path(ArchiveFile))
}

func TestServerUnknownSink(t *testing.T) {
	cfg := testConfig(t)
	cfg.Sinks = []string{"carrier-pigeon"}

	_, err := NewServer(context.Background(), cfg, "test")
	assert.ErrorIs(t, err, config.ErrInvalid)
}
