package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"sentinelzap/internal/domain"
	"sentinelzap/internal/domain/model"
	"sentinelzap/internal/domain/ports/repository"
)

var _ repository.WarmupSettingsRepository = (*warmupSettingsRepo)(nil)

type warmupSettingsRepo struct{ pool *pgxpool.Pool }

func NewWarmupSettingsRepo(pool *pgxpool.Pool) *warmupSettingsRepo {
	return &warmupSettingsRepo{pool: pool}
}

func (r *warmupSettingsRepo) FindByUser(ctx context.Context, tx repository.Tx, userID int64) (*model.WarmupSettings, error) {
	const q = `
SELECT id, user_id, duration_days,
       phase1_messages_per_day, phase2_messages_per_day, phase3_messages_per_day,
       phase1_duration, phase2_duration, phase3_duration,
       block_unwarmed_chips, created_at, updated_at
FROM warmup_settings WHERE user_id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, userID)
	if err != nil {
		return nil, err
	}

	s := &model.WarmupSettings{}
	if err := row.Scan(&s.ID, &s.UserID, &s.DurationDays,
		&s.Phase1MessagesPerDay, &s.Phase2MessagesPerDay, &s.Phase3MessagesPerDay,
		&s.Phase1Duration, &s.Phase2Duration, &s.Phase3Duration,
		&s.BlockUnwarmedChips, &s.CreatedAt, &s.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return s, nil
}

func (r *warmupSettingsRepo) Save(ctx context.Context, tx repository.Tx, s *model.WarmupSettings) error {
	const q = `
INSERT INTO warmup_settings (
  user_id, duration_days,
  phase1_messages_per_day, phase2_messages_per_day, phase3_messages_per_day,
  phase1_duration, phase2_duration, phase3_duration,
  block_unwarmed_chips, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
ON CONFLICT (user_id) DO UPDATE SET
  duration_days=$2,
  phase1_messages_per_day=$3, phase2_messages_per_day=$4, phase3_messages_per_day=$5,
  phase1_duration=$6, phase2_duration=$7, phase3_duration=$8,
  block_unwarmed_chips=$9, updated_at=NOW()
RETURNING id;`

	row, err := pickRow(ctx, r.pool, tx, q,
		s.UserID, s.DurationDays,
		s.Phase1MessagesPerDay, s.Phase2MessagesPerDay, s.Phase3MessagesPerDay,
		s.Phase1Duration, s.Phase2Duration, s.Phase3Duration,
		s.BlockUnwarmedChips, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return err
	}
	if err := row.Scan(&s.ID); err != nil {
		return domain.ErrOperationFailed
	}
	return nil
}
