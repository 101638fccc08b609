package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(tierRecalcRunsTotal) }

var tierRecalcRunsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "tier_recalc_runs_total",
		Help: "Total number of tier recalculation sweeps, labeled by status.",
	},
	[]string{"status"}, // 'completed', 'failed'
)

func IncTierRecalc(status string) {
	tierRecalcRunsTotal.WithLabelValues(norm(status)).Inc()
}
