package notify

import (
	"context"

	"github.com/rs/zerolog"

	"sentinelzap/internal/domain/model"
	"sentinelzap/internal/domain/ports/adapter"
)

var _ adapter.Notifier = (*NoopNotifier)(nil)

// NoopNotifier logs alerts instead of delivering them. Used in dev and tests.
type NoopNotifier struct {
	logger zerolog.Logger
}

func NewNoopNotifier(logger *zerolog.Logger) *NoopNotifier {
	return &NoopNotifier{logger: logger.With().Str("component", "noop_notifier").Logger()}
}

func (n *NoopNotifier) ChipPaused(ctx context.Context, chip *model.Chip, reason string) error {
	n.logger.Info().Int64("chip_id", chip.ID).Str("reason", reason).Msg("chip paused (noop)")
	return nil
}

func (n *NoopNotifier) ChipNearLimit(ctx context.Context, chip *model.Chip, usagePercent int) error {
	n.logger.Info().Int64("chip_id", chip.ID).Int("usage_pct", usagePercent).Msg("chip near limit (noop)")
	return nil
}
