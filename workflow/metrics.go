package workflow

import (
	"errors"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	operationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assetmgt_workflow_operations_total",
			Help: "Workflow operations by name and outcome.",
		},
		[]string{"operation", "outcome"},
	)

	registerOnce sync.Once
)

// RegisterMetrics adds the workflow collectors to the default registry.
func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(operationsTotal)
	})
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrExhausted):
		return "exhausted"
	case errors.Is(err, ErrCapacityExceeded):
		return "capacity_exceeded"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	}
	return "error"
}

func observe(op string, err error) {
	operationsTotal.WithLabelValues(op, outcome(err)).Inc()
}
