// Package observability provides the orchestrator's logging, metrics, and
// tracing surfaces. The flowctl CLI reports through them; the graph, flow,
// and tool packages do not import this package.
//
// # Metrics
//
// Metrics are implemented with Prometheus and track graph run outcomes,
// per-node latency, tool execution, flow strategy results, event bus
// volume, and pending HITL suspensions.
//
//	metrics := observability.NewMetrics()
//	start := time.Now()
//	// ... run a graph ...
//	metrics.RecordRun(graphID, string(report.Status), time.Since(start).Seconds())
//
// # Logging
//
// Logging is built on log/slog with request correlation and redaction of
// sensitive fields (API keys, tokens, passwords).
//
//	logger := observability.NewLogger(observability.LogConfig{Level: "info", Format: "json"})
//	ctx = observability.AddRunID(ctx, runID)
//	logger.Info(ctx, "node completed", "node_id", nodeID, "status", status)
//
// # Tracing
//
// Distributed tracing uses OpenTelemetry to follow a run's node-by-node
// execution and tool calls across process boundaries.
//
//	tracer, shutdown := observability.NewTracer(observability.TraceConfig{ServiceName: "orchestrator"})
//	defer shutdown(context.Background())
//	ctx, span := tracer.Start(ctx, "graph.run")
//	defer span.End()
package observability
