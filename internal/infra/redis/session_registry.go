package redis

import (
	"context"
	"errors"
	"time"

	"sentinelzap/internal/domain"
	"sentinelzap/internal/domain/ports/adapter"

	"github.com/go-redis/redis/v8"
)

var _ adapter.SessionRegistry = (*SessionRegistry)(nil)

// SessionRegistry caches per-session QR codes with a TTL so a stale code is
// never served after the pairing window closes.
type SessionRegistry struct {
	client *Client
	ttl    time.Duration
}

func NewSessionRegistry(client *Client, ttl time.Duration) *SessionRegistry {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &SessionRegistry{client: client, ttl: ttl}
}

func qrKey(sessionID string) string { return "session_qr:" + sessionID }

func (r *SessionRegistry) SetQRCode(ctx context.Context, sessionID, qr string) error {
	return r.client.Set(ctx, qrKey(sessionID), qr, r.ttl)
}

func (r *SessionRegistry) GetQRCode(ctx context.Context, sessionID string) (string, error) {
	v, err := r.client.Get(ctx, qrKey(sessionID))
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", domain.ErrNotFound
		}
		return "", err
	}
	return v, nil
}

func (r *SessionRegistry) DeleteQRCode(ctx context.Context, sessionID string) error {
	return r.client.Del(ctx, qrKey(sessionID))
}
