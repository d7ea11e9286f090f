package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"

	"sentinelzap/internal/domain"
	"sentinelzap/internal/domain/model"
	"sentinelzap/internal/domain/ports/repository"
)

var _ repository.MessageHistoryRepository = (*messageHistoryRepo)(nil)

type messageHistoryRepo struct{ pool *pgxpool.Pool }

func NewMessageHistoryRepo(pool *pgxpool.Pool) *messageHistoryRepo {
	return &messageHistoryRepo{pool: pool}
}

func (r *messageHistoryRepo) Append(ctx context.Context, tx repository.Tx, e *model.MessageHistory) error {
	const q = `
INSERT INTO message_history (
  id, chip_id, user_id, recipient_number, message_content, status, error_message, sent_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8);`

	_, err := execSQL(ctx, r.pool, tx, q,
		e.ID, e.ChipID, e.UserID, e.RecipientNumber, e.MessageContent, e.Status, e.ErrorMessage, e.SentAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *messageHistoryRepo) FindByChip(ctx context.Context, tx repository.Tx, chipID int64, limit int) ([]*model.MessageHistory, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `
SELECT id, chip_id, user_id, recipient_number, message_content, status, error_message, sent_at
FROM message_history WHERE chip_id=$1 ORDER BY sent_at DESC LIMIT $2;`

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

	var out []*model.MessageHistory
	for rows.Next() {
		e := new(model.MessageHistory)
		if err := rows.Scan(&e.ID, &e.ChipID, &e.UserID, &e.RecipientNumber, &e.MessageContent,
			&e.Status, &e.ErrorMessage, &e.SentAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, e)
	}
	return out, nil
}
