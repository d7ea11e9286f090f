package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"

	"sentinelzap/internal/domain"
	"sentinelzap/internal/domain/model"
	"sentinelzap/internal/domain/ports/repository"
)

var _ repository.WarmupHistoryRepository = (*warmupHistoryRepo)(nil)

type warmupHistoryRepo struct{ pool *pgxpool.Pool }

func NewWarmupHistoryRepo(pool *pgxpool.Pool) *warmupHistoryRepo {
	return &warmupHistoryRepo{pool: pool}
}

func (r *warmupHistoryRepo) Append(ctx context.Context, tx repository.Tx, e *model.WarmupHistory) error {
	const q = `
INSERT INTO warmup_history (
  id, chip_id, user_id, sender_chip_id, recipient_number, message_content,
  status, error_message, warmup_phase, warmup_day, sent_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11);`

	_, err := execSQL(ctx, r.pool, tx, q,
		e.ID, e.ChipID, e.UserID, e.SenderChipID, e.RecipientNumber, e.MessageContent,
		e.Status, e.ErrorMessage, e.WarmupPhase, e.WarmupDay, e.SentAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *warmupHistoryRepo) FindByChip(ctx context.Context, tx repository.Tx, chipID int64, limit int) ([]*model.WarmupHistory, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `
SELECT id, chip_id, user_id, sender_chip_id, recipient_number, message_content,
       status, error_message, warmup_phase, warmup_day, sent_at
FROM warmup_history WHERE chip_id=$1 ORDER BY sent_at DESC LIMIT $2;`

	rows, err := queryRows(ctx, r.pool, tx, q, chipID, limit)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return nil, err
		default:
			return nil, domain.ErrOperationFailed
		}
	}
	defer rows.Close()

	var out []*model.WarmupHistory
	for rows.Next() {
		e := new(model.WarmupHistory)
		if err := rows.Scan(&e.ID, &e.ChipID, &e.UserID, &e.SenderChipID, &e.RecipientNumber, &e.MessageContent,
			&e.Status, &e.ErrorMessage, &e.WarmupPhase, &e.WarmupDay, &e.SentAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, e)
	}
	return out, nil
}
