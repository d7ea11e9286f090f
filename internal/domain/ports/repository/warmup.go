package repository

import (
	"context"

	"sentinelzap/internal/domain/model"
)

type WarmupSettingsRepository interface {
	FindByUser(ctx context.Context, qx Tx, userID int64) (*model.WarmupSettings, error)
	// Save upserts on user_id: exactly one settings row per user.
	Save(ctx context.Context, qx Tx, settings *model.WarmupSettings) error
}

// WarmupHistoryRepository is append-only; rows are never updated.
type WarmupHistoryRepository interface {
	Append(ctx context.Context, qx Tx, entry *model.WarmupHistory) error
	FindByChip(ctx context.Context, qx Tx, chipID int64, limit int) ([]*model.WarmupHistory, error)
}
