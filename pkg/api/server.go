// Package api assembles the REST API of the credential service.
package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	v1 "github.com/catalyst-dev/catalyst-creds/pkg/api/v1"
	"github.com/catalyst-dev/catalyst-creds/pkg/auth"
	"github.com/catalyst-dev/catalyst-creds/pkg/logger"
	"github.com/catalyst-dev/catalyst-creds/pkg/secrets"
	"github.com/catalyst-dev/catalyst-creds/pkg/telemetry"
)

const requestTimeout = 30 * time.Second

// RouterConfig carries the dependencies of the HTTP surface.
type RouterConfig struct {
	// Validator authenticates bearer tokens against the cluster. All /api
	// routes sit behind it.
	Validator *auth.Validator

	// Issuer produces git tokens and secret bundles for delivery routes.
	Issuer v1.CredentialIssuer

	// Secrets backs the management CRUD routes.
	Secrets *secrets.Service

	// Health is pinged by the healthcheck route.
	Health v1.Pinger

	// Metrics collects request and issuance metrics and serves /metrics.
	Metrics *telemetry.Metrics
}

// NewRouter builds the full route tree. The healthcheck and metrics
// endpoints are unauthenticated; everything under /api requires a valid
// cluster bearer token.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Timeout(requestTimeout),
		requestMetrics(cfg.Metrics),
	)

	r.Mount("/health", v1.HealthcheckRouter(cfg.Health))
	r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(cfg.Validator, cfg.Metrics))
		r.Mount("/api/internal/secrets", v1.InternalSecretsRouter(cfg.Issuer, cfg.Metrics))
		r.Mount("/api/git-token", v1.GitTokenRouter(cfg.Issuer, cfg.Metrics))
		r.Mount("/api/v1beta/secrets", v1.SecretsRouter(cfg.Secrets))
	})

	return r
}

// requestMetrics records per-request latency by route pattern and logs
// completed requests. URL parameters are folded into the pattern so
// secret-bearing path segments never reach the metrics labels or logs.
func requestMetrics(metrics *telemetry.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			route := chi.RouteContext(r.Context()).RoutePattern()
			if route == "" {
				route = "unmatched"
			}
			elapsed := time.Since(start)
			metrics.ObserveRequest(route, strconv.Itoa(ww.Status()), elapsed.Seconds())
			logger.Debugw("request completed",
				"method", r.Method,
				"route", route,
				"status", ww.Status(),
				"duration_ms", elapsed.Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()))
		})
	}
}
