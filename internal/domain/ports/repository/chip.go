package repository

import (
	"context"

	"sentinelzap/internal/domain/model"
)

// ChipRepository is the port for chip records. All mutating methods accept a
// `qx Tx` so the counter pipeline can run them under one advisory-locked
// transaction.
type ChipRepository interface {
	Create(ctx context.Context, qx Tx, chip *model.Chip) error
	Update(ctx context.Context, qx Tx, chip *model.Chip) error
	Delete(ctx context.Context, qx Tx, id int64) error

	FindByID(ctx context.Context, qx Tx, id int64) (*model.Chip, error)
	FindBySessionID(ctx context.Context, qx Tx, sessionID string) (*model.Chip, error)
	FindByUser(ctx context.Context, qx Tx, userID int64) ([]*model.Chip, error)
	FindActiveByUser(ctx context.Context, qx Tx, userID int64) ([]*model.Chip, error)
	FindConnectedByUser(ctx context.Context, qx Tx, userID int64) ([]*model.Chip, error)
	FindByWarmupStatus(ctx context.Context, qx Tx, status model.WarmupStatus) ([]*model.Chip, error)
	FindAll(ctx context.Context, qx Tx) ([]*model.Chip, error)

	// ResetDailyCounters zeroes messages_sent_today for every chip and
	// returns the number of rows touched.
	ResetDailyCounters(ctx context.Context, qx Tx) (int64, error)
}
