package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		reconciliationApplied,
		reconciliationPolls,
	)
}

var (
	reconciliationApplied = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconciliation_applied_total",
			Help: "Gateway events applied by the poller, by event kind.",
		},
		[]string{"kind"},
	)

	// result: ok|gateway_error
	reconciliationPolls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconciliation_polls_total",
			Help: "Reconciliation polls against the gateway event feed.",
		},
		[]string{"result"},
	)
)

func IncReconciliation(kind string) {
	reconciliationApplied.WithLabelValues(norm(kind)).Inc()
}

func IncReconciliationPoll(result string) {
	reconciliationPolls.WithLabelValues(norm(result)).Inc()
}
