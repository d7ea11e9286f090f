package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(messagesSentTotal, chipsPausedTotal, chipRiskScore, rotationSelectionTotal)
}

var messagesSentTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "messages_sent_total",
		Help: "Total outbound messages attempted, labeled by result.",
	},
	[]string{"result"}, // 'sent', 'failed'
)

var chipsPausedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "chips_paused_total",
		Help: "Total automatic chip pauses, labeled by cause.",
	},
	[]string{"cause"}, // 'risk', 'daily_limit', 'total_limit', 'disconnected'
)

var chipRiskScore = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "chip_risk_score",
		Help: "Current risk score per chip (0-100).",
	},
	[]string{"chip"},
)

var rotationSelectionTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "rotation_selection_total",
		Help: "Rotation selector outcomes.",
	},
	[]string{"outcome"}, // 'selected', 'no_chips', 'all_exhausted'
)

func IncMessageSent(result string) {
	messagesSentTotal.WithLabelValues(result).Inc()
}

func IncChipPaused(cause string) {
	chipsPausedTotal.WithLabelValues(cause).Inc()
}

func SetChipRiskScore(chipName string, score int) {
	chipRiskScore.WithLabelValues(chipName).Set(float64(score))
}

func IncRotationSelection(outcome string) {
	rotationSelectionTotal.WithLabelValues(outcome).Inc()
}
