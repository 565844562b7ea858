// Package middleware provides net/http middleware for the dashboard server.
//
// This package includes:
//   - Prometheus request metrics
//   - OpenTelemetry request spans
//   - Structured request logging
//
// Each constructor returns a func(http.Handler) http.Handler, so the
// middleware plugs straight into a chi router:
//
//	r := chi.NewRouter()
//	r.Use(middleware.Prometheus(middleware.WithRegistry(reg)))
//	r.Use(middleware.OpenTelemetry(middleware.WithTracerName("stakeview")))
//	r.Use(middleware.Logger(logger))
//
// Metrics and spans are labelled with the chi route pattern rather than the
// raw path, so /validators/{id} is a single series.
package middleware
