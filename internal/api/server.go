// Package api configures and exposes the HTTP server, routes,
// metrics, docs and related middleware for the ExposureShield service.
package api

import (
	_ "embed"
	"net/http"
	"time"

	"exposureshield/internal/api/handler/v1handler"
	"exposureshield/internal/config"
	"exposureshield/pkg/controller"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/swaggest/swgui/v5emb"
)

// v1Spec contains the embedded OpenAPI specification for version 1 of the API.
//
//go:embed specs/v1.yaml
var v1Spec []byte

// Options holds configuration for the HTTP server and its dependencies.
// It is typically created from a config.Config via NewOptions.
// All durations are used to configure server timeouts, and zero values
// should be considered as using the defaults provided by net/http where applicable.
type Options struct {
	// HandlerOptions configures the v1 endpoints.
	HandlerOptions v1handler.Options

	// Addr is the TCP address the server listens on, e.g. ":8080".
	Addr string
	// ReadTimeout is the maximum duration for reading the entire request, including the body.
	ReadTimeout time.Duration
	// ReadHeaderTimeout is the amount of time allowed to read request headers.
	ReadHeaderTimeout time.Duration
	// WriteTimeout is the maximum duration before timing out writes of the response.
	WriteTimeout time.Duration
	// IdleTimeout is the maximum amount of time to wait for the next request when keep-alives are enabled.
	IdleTimeout time.Duration
	// RequestTimeout is the global timeout applied via http.TimeoutHandler for handling requests.
	RequestTimeout time.Duration
	// MaxHeaderBytes controls the maximum number of bytes the server
	// will read parsing the request header's keys and values, including the request line.
	MaxHeaderBytes int
	// MetricsPath is the HTTP path at which Prometheus metrics are served.
	MetricsPath string
	// EnablePprof mounts the pprof handlers under /debug/pprof.
	EnablePprof bool

	// AllowedOrigins and CORSMaxAge configure CORS.
	AllowedOrigins []string
	CORSMaxAge     int
	// SecurityHeaders are set on every API response.
	SecurityHeaders controller.SecurityHeaders
}

// NewOptions constructs an Options value from the provided application configuration.
// It maps HTTP server-related settings from config.Config to the Options used by the API server.
func NewOptions(cfg *config.Config) Options {
	return Options{
		HandlerOptions: v1handler.NewOptions(cfg),

		Addr:              cfg.HTTP.Addr,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		IdleTimeout:       cfg.HTTP.IdleTimeout,
		RequestTimeout:    cfg.HTTP.RequestTimeout,
		MaxHeaderBytes:    cfg.HTTP.MaxHeaderBytes,
		MetricsPath:       cfg.HTTP.MetricsPath,
		EnablePprof:       cfg.HTTP.EnablePprof,

		AllowedOrigins: cfg.CORS.AllowedOrigins,
		CORSMaxAge:     cfg.CORS.MaxAge,

		SecurityHeaders: controller.SecurityHeaders{
			ContentSecurityPolicy:   cfg.HTTP.ContentSecurityPolicy,
			StrictTransportSecurity: cfg.HTTP.StrictTransportSecurity,
		},
	}
}

type Deps struct {
	v1handler.Deps
}

// NewHandler builds the router of the service:
// - Prometheus metrics endpoint (MetricsPath)
// - Embedded OpenAPI v1 spec and Swagger UI under /docs/
// - v1 API routes with security headers
// - pprof endpoints for profiling, when enabled
// It also wraps the router with logging, panic recovery and CORS middlewares.
func NewHandler(deps Deps, opts Options) http.Handler {
	r := chi.NewRouter()
	r.Use(controller.WithLogger)
	r.Use(middleware.Recoverer)
	r.Use(controller.WithCORS(opts.AllowedOrigins, opts.CORSMaxAge))

	// prometheus metrics server, fed by the otel exporter registered in metrics.Setup
	r.Handle(opts.MetricsPath, promhttp.Handler())

	// v1 specs file
	r.Get("/specs/v1.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		_, _ = w.Write(v1Spec)
	})
	// v1 api swagger playground
	r.Handle("/docs/*", v5emb.New(
		"ExposureShield API",
		"/specs/v1.yaml",
		"/docs/",
	))

	// pprof
	if opts.EnablePprof {
		r.Mount("/debug/pprof", controller.PprofRouter())
	}

	// v1 api
	r.Group(func(r chi.Router) {
		r.Use(controller.WithSecurityHeaders(opts.SecurityHeaders))
		v1handler.New(deps.Deps, opts.HandlerOptions).Register(r)
	})

	return r
}

// NewServer wires up and returns a configured *http.Server using the provided
// Options. Every request is bounded by RequestTimeout.
func NewServer(deps Deps, opts Options) *http.Server {
	handler := NewHandler(deps, opts)
	if opts.RequestTimeout > 0 {
		handler = http.TimeoutHandler(handler, opts.RequestTimeout,
			`{"code":"TIMEOUT","message":"request timed out"}`)
	}

	return &http.Server{
		Addr:              opts.Addr,
		Handler:           handler,
		ReadTimeout:       opts.ReadTimeout,
		ReadHeaderTimeout: opts.ReadHeaderTimeout,
		WriteTimeout:      opts.WriteTimeout,
		IdleTimeout:       opts.IdleTimeout,
		MaxHeaderBytes:    opts.MaxHeaderBytes,
	}
}
