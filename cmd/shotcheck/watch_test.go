package main

import (
	"context"
	"image/color"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shotcheck/internal/config"
	"shotcheck/internal/health"
	"shotcheck/internal/logging"
)

func TestMetricsMux(t *testing.T) {
	dir := isolate(t)
	shots := filepath.Join(dir, "shots")
	writePNG(t, filepath.Join(shots, "engineA/duck/default/chrome.png"), color.NRGBA{R: 255, A: 255})

	cfg := config.DefaultConfig()
	r, err := newRunner(cfg, logging.Discard(), io.Discard)
	require.NoError(t, err)
	defer r.Close()

	checker := health.NewChecker()
	checker.RegisterFunc("roots", true, health.DirsCheck(shots))

	srv := httptest.NewServer(metricsMux(r, checker))
	defer srv.Close()

	get := func(path string) (int, string) {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return resp.StatusCode, string(body)
	}

	code, _ := get("/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, code, "not ready before the first run")

	_, err = r.run(context.Background(), cfg, filepath.Join(dir, "report.html"), []string{shots})
	require.NoError(t, err)
	checker.Check(context.Background())
	checker.SetReady(true)

	code, _ = get("/readyz")
	assert.Equal(t, http.StatusOK, code)

	code, body := get("/metrics")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "shotcheck_files_ingested_total 1")

	code, body = get("/healthz")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "alive")
}
