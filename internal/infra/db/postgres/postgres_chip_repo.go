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

var _ repository.ChipRepository = (*chipRepo)(nil)

const chipColumns = `id, user_id, name, phone_number, session_id, status, is_connected, last_connected_at,
daily_limit, total_limit, messages_sent_today, messages_sent_total, last_message_at,
risk_score, paused_reason, warmup_status, warmup_start_date, warmup_end_date,
warmup_current_day, warmup_messages_today, created_at, updated_at`

type chipRepo struct{ pool *pgxpool.Pool }

func NewChipRepo(pool *pgxpool.Pool) *chipRepo {
	return &chipRepo{pool: pool}
}

func (r *chipRepo) Create(ctx context.Context, tx repository.Tx, c *model.Chip) error {
	const q = `
INSERT INTO chips (
  user_id, name, phone_number, session_id, status, is_connected, last_connected_at,
  daily_limit, total_limit, messages_sent_today, messages_sent_total, last_message_at,
  risk_score, paused_reason, warmup_status, warmup_start_date, warmup_end_date,
  warmup_current_day, warmup_messages_today, created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21
) RETURNING id;`

	row, err := pickRow(ctx, r.pool, tx, q,
		c.UserID, c.Name, c.PhoneNumber, c.SessionID, c.Status, c.IsConnected, c.LastConnectedAt,
		c.DailyLimit, c.TotalLimit, c.MessagesSentToday, c.MessagesSentTotal, c.LastMessageAt,
		c.RiskScore, c.PausedReason, c.WarmupStatus, c.WarmupStartDate, c.WarmupEndDate,
		c.WarmupCurrentDay, c.WarmupMessagesToday, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return err
	}
	if err := row.Scan(&c.ID); err != nil {
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *chipRepo) Update(ctx context.Context, tx repository.Tx, c *model.Chip) error {
	const q = `
UPDATE chips SET
  name=$2, phone_number=$3, session_id=$4, status=$5, is_connected=$6, last_connected_at=$7,
  daily_limit=$8, total_limit=$9, messages_sent_today=$10, messages_sent_total=$11, last_message_at=$12,
  risk_score=$13, paused_reason=$14, warmup_status=$15, warmup_start_date=$16, warmup_end_date=$17,
  warmup_current_day=$18, warmup_messages_today=$19, updated_at=NOW()
WHERE id=$1;`

	cmd, err := execSQL(ctx, r.pool, tx, q,
		c.ID, c.Name, c.PhoneNumber, c.SessionID, c.Status, c.IsConnected, c.LastConnectedAt,
		c.DailyLimit, c.TotalLimit, c.MessagesSentToday, c.MessagesSentTotal, c.LastMessageAt,
		c.RiskScore, c.PausedReason, c.WarmupStatus, c.WarmupStartDate, c.WarmupEndDate,
		c.WarmupCurrentDay, c.WarmupMessagesToday)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *chipRepo) Delete(ctx context.Context, tx repository.Tx, id int64) error {
	const q = `DELETE FROM chips WHERE id=$1;`
	cmd, err := execSQL(ctx, r.pool, tx, q, id)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *chipRepo) FindByID(ctx context.Context, tx repository.Tx, id int64) (*model.Chip, error) {
	q := `SELECT ` + chipColumns + ` FROM chips WHERE id=$1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	c, err := scanChip(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return c, nil
}

func (r *chipRepo) FindBySessionID(ctx context.Context, tx repository.Tx, sessionID string) (*model.Chip, error) {
	q := `SELECT ` + chipColumns + ` FROM chips WHERE session_id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, sessionID)
	if err != nil {
		return nil, err
	}
	c, err := scanChip(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return c, nil
}

func (r *chipRepo) FindByUser(ctx context.Context, tx repository.Tx, userID int64) ([]*model.Chip, error) {
	q := `SELECT ` + chipColumns + ` FROM chips WHERE user_id=$1 ORDER BY id;`
	return r.findMany(ctx, tx, q, userID)
}

func (r *chipRepo) FindActiveByUser(ctx context.Context, tx repository.Tx, userID int64) ([]*model.Chip, error) {
	q := `SELECT ` + chipColumns + ` FROM chips WHERE user_id=$1 AND status='active' ORDER BY id;`
	return r.findMany(ctx, tx, q, userID)
}

func (r *chipRepo) FindConnectedByUser(ctx context.Context, tx repository.Tx, userID int64) ([]*model.Chip, error) {
	q := `SELECT ` + chipColumns + ` FROM chips WHERE user_id=$1 AND is_connected=TRUE ORDER BY id;`
	return r.findMany(ctx, tx, q, userID)
}

func (r *chipRepo) FindByWarmupStatus(ctx context.Context, tx repository.Tx, status model.WarmupStatus) ([]*model.Chip, error) {
	q := `SELECT ` + chipColumns + ` FROM chips WHERE warmup_status=$1 ORDER BY id;`
	return r.findMany(ctx, tx, q, status)
}

func (r *chipRepo) FindAll(ctx context.Context, tx repository.Tx) ([]*model.Chip, error) {
	q := `SELECT ` + chipColumns + ` FROM chips ORDER BY id;`
	return r.findMany(ctx, tx, q)
}

func (r *chipRepo) ResetDailyCounters(ctx context.Context, tx repository.Tx) (int64, error) {
	const q = `UPDATE chips SET messages_sent_today=0, updated_at=NOW() WHERE messages_sent_today > 0;`
	cmd, err := execSQL(ctx, r.pool, tx, q)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return 0, err
		}
		return 0, domain.ErrOperationFailed
	}
	return cmd.RowsAffected(), nil
}

func (r *chipRepo) findMany(ctx context.Context, tx repository.Tx, q string, args ...interface{}) ([]*model.Chip, error) {
	rows, err := queryRows(ctx, r.pool, tx, q, args...)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return nil, err
		default:
			return nil, domain.ErrOperationFailed
		}
	}
	defer rows.Close()

	var out []*model.Chip
	for rows.Next() {
		c, err := scanChip(rows)
		if err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, c)
	}
	return out, nil
}

func scanChip(row pgx.Row) (*model.Chip, error) {
	c := &model.Chip{}
	err := row.Scan(
		&c.ID, &c.UserID, &c.Name, &c.PhoneNumber, &c.SessionID, &c.Status, &c.IsConnected, &c.LastConnectedAt,
		&c.DailyLimit, &c.TotalLimit, &c.MessagesSentToday, &c.MessagesSentTotal, &c.LastMessageAt,
		&c.RiskScore, &c.PausedReason, &c.WarmupStatus, &c.WarmupStartDate, &c.WarmupEndDate,
		&c.WarmupCurrentDay, &c.WarmupMessagesToday, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return c, nil
}
