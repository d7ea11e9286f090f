package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(webhookDeliveriesTotal) }

var webhookDeliveriesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "webhook_deliveries_total",
		Help: "Webhook delivery attempts, labeled by event and result.",
	},
	[]string{"event", "result"},
)

func IncWebhookDelivery(event, result string) {
	webhookDeliveriesTotal.WithLabelValues(event, result).Inc()
}
