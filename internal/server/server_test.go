// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sitegraph/internal/graph"
	"sitegraph/internal/logging"
)

func TestHealthzAlwaysOK(t *testing.T) {
	s := New("", "", t.TempDir(), nil, logging.NewDefault(false))
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	s.srv.Handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGraphRequiresSecret(t *testing.T) {
	s := New("", "topsecret", t.TempDir(), graph.New(), logging.NewDefault(false))
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/graph", nil)
	s.srv.Handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/graph", nil)
	req.Header.Set("Authorization", "Bearer topsecret")
	s.srv.Handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGraphReturns503BeforeBuild(t *testing.T) {
	s := New("", "", t.TempDir(), nil, logging.NewDefault(false))
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/graph", nil)
	s.srv.Handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestFileRejectsPathTraversal(t *testing.T) {
	dir := t.TempDir()
	s := New("", "", dir, nil, logging.NewDefault(false))
	rec := httptest.NewRecorder()
	// Call handleFile directly: net/http.ServeMux would otherwise clean
	// and redirect a ".."-bearing path before our handler ever sees it.
	req := httptest.NewRequest(http.MethodGet, "/files/../../etc/passwd", nil)
	s.handleFile(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFileServesExistingFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "out.gpkg"), []byte("data"), 0o644))
	s := New("", "", dir, nil, logging.NewDefault(false))
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/files/out.gpkg", nil)
	s.srv.Handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "data", rec.Body.String())
}
