package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides a centralized interface for collecting orchestrator
// metrics.
//
// The metrics system is built on Prometheus and tracks:
//   - Graph run outcomes and latency
//   - Per-node execution counts and latency
//   - Tool execution patterns and latencies
//   - Flow strategy outcomes (sequential/parallel/competition/pipeline)
//   - Event bus publish/subscribe volume
//   - Error rates categorized by component
//
// Usage:
//
//	metrics := observability.NewMetrics()
//	metrics.NodeDuration.WithLabelValues("classifier").Observe(time.Since(start).Seconds())
type Metrics struct {
	// RunCounter tracks graph runs by terminal status.
	// Labels: graph_id, status (success|failed|waiting|cancelled)
	RunCounter *prometheus.CounterVec

	// RunDuration measures end-to-end graph run latency in seconds.
	// Labels: graph_id
	RunDuration *prometheus.HistogramVec

	// NodeCounter counts node executions by outcome.
	// Labels: node_id, status (success|error)
	NodeCounter *prometheus.CounterVec

	// NodeDuration measures per-node execution time in seconds.
	// Labels: node_id
	NodeDuration *prometheus.HistogramVec

	// ToolExecutionCounter counts tool invocations.
	// Labels: tool_name, status (success|error|waiting_hitl|timeout|cancelled)
	ToolExecutionCounter *prometheus.CounterVec

	// ToolExecutionDuration measures tool execution time in seconds.
	// Labels: tool_name
	ToolExecutionDuration *prometheus.HistogramVec

	// FlowCounter counts flow runs by strategy and outcome.
	// Labels: strategy (sequential|parallel|competition|pipeline), status
	FlowCounter *prometheus.CounterVec

	// EventBusPublished counts events published per channel.
	// Labels: channel, event_type
	EventBusPublished *prometheus.CounterVec

	// EventBusSubscribers tracks current subscriber count per channel.
	// Labels: channel
	EventBusSubscribers *prometheus.GaugeVec

	// HitlPending tracks runs currently suspended awaiting a human response.
	HitlPending prometheus.Gauge

	// ErrorCounter tracks errors by component and error code.
	// Labels: component, code
	ErrorCounter *prometheus.CounterVec

	// CheckpointCounter counts checkpoint store operations.
	// Labels: operation (save|load|load_by_token), status
	CheckpointCounter *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics. This should be
// called once at process startup.
func NewMetrics() *Metrics {
	return &Metrics{
		RunCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orchestrator_runs_total",
				Help: "Total number of graph runs by graph id and terminal status",
			},
			[]string{"graph_id", "status"},
		),

		RunDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "orchestrator_run_duration_seconds",
				Help:    "Duration of graph runs in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
			},
			[]string{"graph_id"},
		),

		NodeCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orchestrator_node_executions_total",
				Help: "Total number of node executions by node id and status",
			},
			[]string{"node_id", "status"},
		),

		NodeDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "orchestrator_node_duration_seconds",
				Help:    "Duration of node executions in seconds",
				Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
			},
			[]string{"node_id"},
		),

		ToolExecutionCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orchestrator_tool_executions_total",
				Help: "Total number of tool executions by tool name and status",
			},
			[]string{"tool_name", "status"},
		),

		ToolExecutionDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "orchestrator_tool_execution_duration_seconds",
				Help:    "Duration of tool executions in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
			},
			[]string{"tool_name"},
		),

		FlowCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orchestrator_flow_runs_total",
				Help: "Total number of multi-agent flow runs by strategy and status",
			},
			[]string{"strategy", "status"},
		),

		EventBusPublished: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orchestrator_eventbus_published_total",
				Help: "Total number of events published by channel and event type",
			},
			[]string{"channel", "event_type"},
		),

		EventBusSubscribers: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "orchestrator_eventbus_subscribers",
				Help: "Current number of active subscribers per channel",
			},
			[]string{"channel"},
		),

		HitlPending: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "orchestrator_hitl_pending",
				Help: "Current number of runs suspended awaiting a human response",
			},
		),

		ErrorCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orchestrator_errors_total",
				Help: "Total number of errors by component and error code",
			},
			[]string{"component", "code"},
		),

		CheckpointCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orchestrator_checkpoint_operations_total",
				Help: "Total number of checkpoint store operations by kind and status",
			},
			[]string{"operation", "status"},
		),
	}
}

// RecordRun records a completed graph run's terminal status and duration.
func (m *Metrics) RecordRun(graphID, status string, durationSeconds float64) {
	m.RunCounter.WithLabelValues(graphID, status).Inc()
	m.RunDuration.WithLabelValues(graphID).Observe(durationSeconds)
}

// RecordNode records a single node execution's outcome and duration.
func (m *Metrics) RecordNode(nodeID, status string, durationSeconds float64) {
	m.NodeCounter.WithLabelValues(nodeID, status).Inc()
	m.NodeDuration.WithLabelValues(nodeID).Observe(durationSeconds)
}

// RecordToolExecution records metrics for a tool execution.
func (m *Metrics) RecordToolExecution(toolName, status string, durationSeconds float64) {
	m.ToolExecutionCounter.WithLabelValues(toolName, status).Inc()
	m.ToolExecutionDuration.WithLabelValues(toolName).Observe(durationSeconds)
}

// RecordFlow records a completed multi-agent flow run.
func (m *Metrics) RecordFlow(strategy, status string) {
	m.FlowCounter.WithLabelValues(strategy, status).Inc()
}

// RecordEventPublished records an event bus publish.
func (m *Metrics) RecordEventPublished(channel, eventType string) {
	m.EventBusPublished.WithLabelValues(channel, eventType).Inc()
}

// SetEventBusSubscribers sets the current subscriber gauge for a channel.
func (m *Metrics) SetEventBusSubscribers(channel string, count int) {
	m.EventBusSubscribers.WithLabelValues(channel).Set(float64(count))
}

// HitlSuspended increments the pending-HITL gauge.
func (m *Metrics) HitlSuspended() { m.HitlPending.Inc() }

// HitlResumed decrements the pending-HITL gauge.
func (m *Metrics) HitlResumed() { m.HitlPending.Dec() }

// RecordError increments the error counter for a given component and code.
func (m *Metrics) RecordError(component, code string) {
	m.ErrorCounter.WithLabelValues(component, code).Inc()
}

// RecordCheckpointOp records a checkpoint store operation's outcome.
func (m *Metrics) RecordCheckpointOp(operation, status string) {
	m.CheckpointCounter.WithLabelValues(operation, status).Inc()
}
