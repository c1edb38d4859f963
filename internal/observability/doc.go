// Package observability provides logging, metrics, and tracing
// functionality for the gateway.
//
// # Logging
//
// The Logger interface provides structured logging backed by zap:
//
//	logger, err := observability.NewLogger(observability.LogConfig{Level: "info", Format: "json"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer logger.Sync()
//
//	logger.Info("route saved", observability.String("route_id", id))
//
// # Metrics
//
// A dedicated Prometheus registry shared by the route store, the filters
// and the metrics endpoint:
//
//	metrics := observability.NewMetrics("gateway")
//	handler := metrics.Handler()
//
// # Tracing
//
// OpenTelemetry tracing with optional OTLP gRPC export:
//
//	tracer, err := observability.NewTracer(observability.TracerConfig{ServiceName: "filtergw"})
//	defer tracer.Shutdown(ctx)
package observability
