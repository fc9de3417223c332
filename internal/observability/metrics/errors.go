package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tphakala/audiobridge/internal/errors"
)

// ErrorMetrics counts built errors by component and category
type ErrorMetrics struct {
	errorsTotal *prometheus.CounterVec
}

// NewErrorMetrics creates and registers new error metrics
func NewErrorMetrics(registry *prometheus.Registry) (*ErrorMetrics, error) {
	m := &ErrorMetrics{
		errorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "audiobridge_errors_total",
				Help: "Total number of errors by component and category",
			},
			[]string{LabelComponent, LabelCategory},
		),
	}
	if err := registry.Register(m.errorsTotal); err != nil {
		return nil, err
	}
	return m, nil
}

// RecordError counts one error
func (m *ErrorMetrics) RecordError(component string, category errors.ErrorCategory) {
	m.errorsTotal.WithLabelValues(component, string(category)).Inc()
}

// Hook returns an error hook that counts every built error
func (m *ErrorMetrics) Hook() errors.ErrorHook {
	return func(ee *errors.EnhancedError) {
		m.RecordError(ee.GetComponent(), ee.Category)
	}
}
