package adapter

import (
	"context"

	"sentinelzap/internal/domain/model"
)

// Notifier delivers operator-facing alerts. Implementations must be
// non-blocking for the caller's critical path (fire-and-forget semantics).
type Notifier interface {
	ChipPaused(ctx context.Context, chip *model.Chip, reason string) error
	ChipNearLimit(ctx context.Context, chip *model.Chip, usagePercent int) error
}

// EventPublisher dispatches domain events to the user's configured webhook.
type EventPublisher interface {
	Publish(ctx context.Context, userID int64, event string, payload any) error
}
