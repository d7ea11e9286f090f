package repository

import (
	"context"

	"sentinelzap/internal/domain/model"
)

// MessageHistoryRepository records outbound user messages for reporting.
type MessageHistoryRepository interface {
	Append(ctx context.Context, qx Tx, entry *model.MessageHistory) error
	FindByChip(ctx context.Context, qx Tx, chipID int64, limit int) ([]*model.MessageHistory, error)
}
