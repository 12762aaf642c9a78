package main

import (
	"github.com/flowctl/orchestrator/graph"
	"github.com/flowctl/orchestrator/internal/observability"
)

// metricsSink adapts observability.Metrics to graph.EventSink, translating
// the events a run emits into the corresponding Prometheus counters.
type metricsSink struct {
	metrics *observability.Metrics
}

func newMetricsSink(metrics *observability.Metrics) *metricsSink {
	return &metricsSink{metrics: metrics}
}

func (s *metricsSink) Publish(eventType string, payload any) {
	switch eventType {
	case "HitlRequired":
		s.metrics.HitlSuspended()
	case "WorkflowCompleted":
		if evt, ok := payload.(graph.WorkflowCompletedEvent); ok {
			s.metrics.RecordRun(evt.GraphID, "completed", 0)
		}
	case "NodeExecution":
		if evt, ok := payload.(graph.NodeExecutionEvent); ok {
			s.metrics.RecordNode(evt.NodeID, evt.Event, 0)
		}
	}
}
