package client

import (
	"io/fs"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScriptEmbedded(t *testing.T) {
	data, err := fs.ReadFile(Assets(), ScriptName)
	require.NoError(t, err)
	assert.Contains(t, string(data), "lv-click")
	assert.Contains(t, string(data), "data-live-view")
}

func TestHandler(t *testing.T) {
	srv := http.StripPrefix("/_live/", Handler())

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/_live/"+ScriptName, nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "javascript")

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/_live/missing.js", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
