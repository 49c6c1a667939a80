package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hsche/edureg/internal/app"
	"github.com/hsche/edureg/pkg/forms"
	"github.com/hsche/edureg/pkg/sink"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	configFile = ""
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "edureg "+version+"\n", out)
}

func TestFormsCommand(t *testing.T) {
	out, err := run(t, "forms")
	require.NoError(t, err)
	assert.Contains(t, out, "SLUG")
	assert.Contains(t, out, "college-programs")
	assert.Contains(t, out, "University Registration")

	out, err = run(t, "forms", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"slug": "department"`)
}

func TestSubmissionsCommand(t *testing.T) {
	dir := t.TempDir()

	out, err := run(t, "submissions", "--data-dir", dir)
	require.NoError(t, err)
	assert.Equal(t, "No submissions.\n", out)

	archive, err := sink.OpenArchive(filepath.Join(dir, app.ArchiveFile))
	require.NoError(t, err)
	for i, form := range []string{"program", "faculty"} {
		require.NoError(t, archive.Submit(context.Background(), sink.Submission{
			ID:          form + "-1",
			Form:        form,
			Values:      forms.Values{"programName": "Physics"},
			SubmittedAt: time.Date(2026, 3, 1, 10, i, 0, 0, time.UTC),
		}))
	}
	require.NoError(t, archive.Close())

	out, err = run(t, "submissions", "--data-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "program-1")
	assert.Contains(t, out, "faculty-1")

	out, err = run(t, "submissions", "--data-dir", dir, "--form", "program", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"id": "program-1"`)
	assert.NotContains(t, out, "faculty-1")
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "edureg.yml")

	out, err := run(t, "config", "init", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote "+path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "reset_delay: 5s")

	_, err = run(t, "config", "init", path)
	assert.ErrorContains(t, err, "already exists")

	out, err = run(t, "--config", path, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "8080")
	assert.Contains(t, out, "sinks:")
}

func TestFillUnknownForm(t *testing.T) {
	_, err := run(t, "fill", "nope", "--dry-run")
	assert.Error(t, err)
}
