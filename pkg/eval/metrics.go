package eval

import "github.com/prometheus/client_golang/prometheus"

var (
	evaluations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lurk",
		Name:      "evaluations_total",
		Help:      "Evaluations by outcome: value, error value or aborted.",
	}, []string{"outcome"})

	evalSteps = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "lurk",
		Name:      "eval_steps",
		Help:      "Machine steps per evaluation.",
		Buckets:   prometheus.ExponentialBuckets(16, 4, 10),
	})
)

const (
	outcomeValue   = "value"
	outcomeErr     = "error_value"
	outcomeAborted = "aborted"
)

// Collectors returns the evaluator's metrics for registration.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{evaluations, evalSteps}
}
