package prover

import "github.com/prometheus/client_golang/prometheus"

var proofsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "lurk",
	Name:      "proofs_total",
	Help:      "Proof operations by kind and result.",
}, []string{"op", "result"})

const (
	opProve     = "prove"
	opVerify    = "verify"
	opCacheHit  = "cache_hit"
	resultOK    = "ok"
	resultError = "error"
)

func observe(op string, err error) {
	result := resultOK
	if err != nil {
		result = resultError
	}
	proofsTotal.WithLabelValues(op, result).Inc()
}

// Collectors returns the prover's metrics for registration.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{proofsTotal}
}
