// Package observability provides structured logging, Prometheus metrics, and OpenTelemetry tracing.
//
// # Overview
//
// This package centralizes observability infrastructure for the evalhub
// services: logrus loggers, the Prometheus metric set, health checks,
// OpenTelemetry providers and graceful shutdown.
//
// # Structured Logging
//
// Create logger:
//
//	logger, err := observability.NewLogger("info", "json", os.Stdout)
//	logger.WithField("run_id", runID).Info("Cleanup started")
//
// Context-aware logging:
//
//	ctx = observability.WithLogger(ctx, logger.WithField("request_id", reqID))
//	observability.FromContext(ctx).Warn("Slow query")
//
// # Prometheus Metrics
//
// Initialize metrics:
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	metrics.QuotaIncrementsTotal.WithLabelValues("demo", "ok").Inc()
//
// A nil *Metrics is valid and records nothing.
//
// # Health Checks
//
//	checker := observability.NewHealthChecker(store, redisClient)
//	status := checker.Check(ctx)
//
// # OpenTelemetry
//
//	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
//		Enabled:     true,
//		Endpoint:    "otel-collector:4317",
//		ServiceName: "evalhub-lifecycle",
//	}, logger)
//	defer observability.ShutdownOTel(ctx, providers, logger)
//
// # Related Packages
//
//   - pkg/config: Observability configuration
//   - pkg/admin: HTTP surface exposing /metrics and health probes
package observability
