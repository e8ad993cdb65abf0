package abstraction

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/seantiz/agentflow/internal/errors"
	"github.com/seantiz/agentflow/internal/model"
)

// Outcome label values of agentflow_executions_total.
const (
	outcomeSuccess   = "success"
	outcomeFailure   = "failure"
	outcomeTimeout   = "timeout"
	outcomeCancelled = "cancelled"
)

var (
	executionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentflow_executions_total",
			Help: "Total number of workflow executions by outcome.",
		},
		[]string{"framework", "outcome"},
	)

	executionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agentflow_execution_duration_seconds",
			Help:    "Workflow execution wall-clock duration in seconds.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"framework"},
	)

	activeExecutions = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "agentflow_active_executions",
			Help: "Number of workflow executions in flight.",
		},
		[]string{"framework"},
	)
)

func init() {
	prometheus.MustRegister(executionsTotal)
	prometheus.MustRegister(executionDuration)
	prometheus.MustRegister(activeExecutions)
}

// observe records one finished execution.
func observe(ft model.FrameworkType, res model.ExecutionResult, elapsed time.Duration) {
	executionsTotal.WithLabelValues(string(ft), outcome(res)).Inc()
	executionDuration.WithLabelValues(string(ft)).Observe(elapsed.Seconds())
}

func outcome(res model.ExecutionResult) string {
	switch {
	case res.Success:
		return outcomeSuccess
	case res.Error != nil && res.Error.Code == errors.CodeTimeout:
		return outcomeTimeout
	case res.Error != nil && res.Error.Code == errors.CodeCancelled:
		return outcomeCancelled
	default:
		return outcomeFailure
	}
}
