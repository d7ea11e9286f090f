package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(warmupMessagesTotal, warmupChipsInProgress) }

var warmupMessagesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "warmup_messages_total",
		Help: "Total warm-up messages attempted, labeled by status.",
	},
	[]string{"status"}, // 'sent', 'failed'
)

var warmupChipsInProgress = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "warmup_chips_in_progress",
		Help: "Number of chips currently warming up.",
	},
)

func IncWarmupMessage(status string) {
	warmupMessagesTotal.WithLabelValues(status).Inc()
}

func SetWarmupChipsInProgress(n int) {
	warmupChipsInProgress.Set(float64(n))
}
