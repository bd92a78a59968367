package api_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"exposureshield/internal/api"
	"exposureshield/pkg/controller"
	"exposureshield/pkg/logger"

	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	logger.Setup(logger.DevelopmentEnvironment)
	m.Run()
}

func newOptions() api.Options {
	return api.Options{
		Addr:           ":0",
		RequestTimeout: time.Second,
		MetricsPath:    "/metrics",
		AllowedOrigins: []string{"*"},
		SecurityHeaders: controller.SecurityHeaders{
			ContentSecurityPolicy: "default-src 'none'",
		},
	}
}

func get(h http.Handler, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

	return rec
}

func TestNewHandler_Routes(t *testing.T) {
	h := api.NewHandler(api.Deps{}, newOptions())

	health := get(h, "/health")
	require.Equal(t, http.StatusOK, health.Code)
	require.Equal(t, "default-src 'none'", health.Header().Get("Content-Security-Policy"))
	require.NotEmpty(t, health.Header().Get("X-Request-Id"))

	doc := get(h, "/specs/v1.yaml")
	require.Equal(t, http.StatusOK, doc.Code)
	require.Equal(t, "application/yaml", doc.Header().Get("Content-Type"))
	require.Contains(t, doc.Body.String(), "openapi: 3.0.3")

	docs := get(h, "/docs/")
	require.Equal(t, http.StatusOK, docs.Code)
	require.Empty(t, docs.Header().Get("Content-Security-Policy"), "swagger ui runs inline scripts")

	require.Equal(t, http.StatusOK, get(h, "/metrics").Code)
	require.Equal(t, http.StatusNotFound, get(h, "/debug/pprof/").Code)
}

func TestNewHandler_Pprof(t *testing.T) {
	opts := newOptions()
	opts.EnablePprof = true
	h := api.NewHandler(api.Deps{}, opts)

	require.Equal(t, http.StatusOK, get(h, "/debug/pprof/").Code)
}

func TestNewServer(t *testing.T) {
	opts := newOptions()
	opts.ReadHeaderTimeout = 2 * time.Second
	srv := api.NewServer(api.Deps{}, opts)

	require.Equal(t, ":0", srv.Addr)
	require.Equal(t, 2*time.Second, srv.ReadHeaderTimeout)
	require.Equal(t, http.StatusOK, get(srv.Handler, "/health").Code)
}
