package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "agentrelay"

// Metrics holds all AgentRelay metric instruments.
type Metrics struct {
	TasksStarted         metric.Int64Counter
	TasksCompleted       metric.Int64Counter
	TasksFailed          metric.Int64Counter
	TaskTimeouts         metric.Int64Counter
	TaskDispatchFailures metric.Int64Counter
	TaskDuration         metric.Float64Histogram
}

// NewMetrics creates all metric instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.TasksStarted, err = meter.Int64Counter("agentrelay.tasks.started",
		metric.WithDescription("Number of task passes started"))
	if err != nil {
		return nil, err
	}

	m.TasksCompleted, err = meter.Int64Counter("agentrelay.tasks.completed",
		metric.WithDescription("Number of task passes completed successfully"))
	if err != nil {
		return nil, err
	}

	m.TasksFailed, err = meter.Int64Counter("agentrelay.tasks.failed",
		metric.WithDescription("Number of task passes that failed"))
	if err != nil {
		return nil, err
	}

	m.TaskTimeouts, err = meter.Int64Counter("agentrelay.tasks.timeouts",
		metric.WithDescription("Number of tasks killed at the hard deadline"))
	if err != nil {
		return nil, err
	}

	m.TaskDispatchFailures, err = meter.Int64Counter("agentrelay.tasks.dispatch_failed",
		metric.WithDescription("Number of tasks whose output could not be delivered to its sink"))
	if err != nil {
		return nil, err
	}

	m.TaskDuration, err = meter.Float64Histogram("agentrelay.task.duration",
		metric.WithDescription("Task pass duration in seconds"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	return m, nil
}
