package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"sentinelzap/internal/config"
	"sentinelzap/internal/domain/ports/adapter"
	"sentinelzap/internal/infra/metrics"
	"sentinelzap/internal/infra/worker"
)

var _ adapter.EventPublisher = (*Dispatcher)(nil)

// envelope is the wire format posted to the configured webhook endpoint.
type envelope struct {
	ID        string    `json:"id"`
	Event     string    `json:"event"`
	UserID    int64     `json:"userId"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// Dispatcher delivers domain events to the configured webhook URL. Delivery
// is asynchronous on the shared worker pool; a failed delivery is logged and
// dropped, never retried into the caller's path.
type Dispatcher struct {
	url    string
	secret string
	client *http.Client
	pool   *worker.Pool
	logger zerolog.Logger
}

func NewDispatcher(cfg *config.WebhookConfig, pool *worker.Pool, logger *zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		url:    cfg.URL,
		secret: cfg.Secret,
		client: &http.Client{Timeout: cfg.Timeout},
		pool:   pool,
		logger: logger.With().Str("component", "webhook_dispatcher").Logger(),
	}
}

func (d *Dispatcher) Publish(ctx context.Context, userID int64, event string, payload any) error {
	if d.url == "" {
		return nil
	}
	env := envelope{
		ID:        ulid.Make().String(),
		Event:     event,
		UserID:    userID,
		Timestamp: time.Now().UTC(),
		Data:      payload,
	}
	body, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return d.pool.Submit(func(taskCtx context.Context) error {
		return d.deliver(taskCtx, event, env.ID, body)
	})
}

func (d *Dispatcher) deliver(ctx context.Context, event, id string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Delivery-ID", id)
	if d.secret != "" {
		req.Header.Set("X-Webhook-Secret", d.secret)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		metrics.IncWebhookDelivery(event, "error")
		d.logger.Warn().Err(err).Str("event", event).Str("delivery_id", id).Msg("webhook delivery failed")
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		metrics.IncWebhookDelivery(event, "error")
		err := fmt.Errorf("webhook responded %d", resp.StatusCode)
		d.logger.Warn().Err(err).Str("event", event).Str("delivery_id", id).Msg("webhook delivery rejected")
		return err
	}
	metrics.IncWebhookDelivery(event, "ok")
	return nil
}
