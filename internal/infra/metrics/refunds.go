package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(refundsTotal)
}

var (
	// stage: requested|approved|rejected
	refundsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refunds_total",
			Help: "Refund workflow events by stage.",
		},
		[]string{"stage"},
	)
)

func IncRefund(stage string) {
	refundsTotal.WithLabelValues(norm(stage)).Inc()
}
