package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(SessionQueueDepth, SessionInitTotal, SessionInitSeconds) }

var SessionQueueDepth = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "session_queue_depth",
		Help: "Sessions waiting in the initialization queue.",
	},
)

var SessionInitTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "session_init_total",
		Help: "Session initialization attempts, labeled by result.",
	},
	[]string{"result"}, // 'ok', 'error'
)

var SessionInitSeconds = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "session_init_seconds",
		Help:    "Wall time of one session initialization attempt.",
		Buckets: []float64{1, 5, 10, 30, 60, 90, 120},
	},
)
