package repo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/munnorthwest/conference-messaging/internal/model"
)

type PostgresMessageRepo struct {
	db *sql.DB
}

func NewPostgresMessageRepo(db *sql.DB) *PostgresMessageRepo {
	return &PostgresMessageRepo{db: db}
}

func (r *PostgresMessageRepo) Create(ctx context.Context, msg *model.Message, participantIDs []int64) error {
	if len(participantIDs) == 0 {
		return errors.New("participantIDs must not be empty")
	}

	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	msg.RecipientCount = len(participantIDs)
	msg.CreatedAt = time.Now().UTC()

	err = tx.QueryRowContext(ctx, `
		INSERT INTO messages (content, sent_by, recipient_count, status, scheduled_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, msg.Content, msg.SentBy, msg.RecipientCount, string(msg.Status), msg.ScheduledAt, msg.CreatedAt).Scan(&msg.ID)
	if err != nil {
		return err
	}

	for _, pid := range participantIDs {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO message_recipients (message_id, participant_id, status)
			VALUES ($1, $2, 'pending')
		`, msg.ID, pid); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *PostgresMessageRepo) ListDue(ctx context.Context, now time.Time) ([]model.Message, error) {
	return r.list(ctx, `
		SELECT id, content, sent_by, recipient_count, status, scheduled_at, sent_at, created_at
		FROM messages
		WHERE status = 'scheduled' AND scheduled_at <= $1
		ORDER BY scheduled_at ASC
	`, now.UTC())
}

func (r *PostgresMessageRepo) ListScheduled(ctx context.Context) ([]model.Message, error) {
	return r.list(ctx, `
		SELECT id, content, sent_by, recipient_count, status, scheduled_at, sent_at, created_at
		FROM messages
		WHERE status = 'scheduled'
		ORDER BY scheduled_at ASC
	`)
}

func (r *PostgresMessageRepo) list(ctx context.Context, query string, args ...any) ([]model.Message, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Message
	for rows.Next() {
		var m model.Message
		var status string
		var scheduledAt, sentAt sql.NullTime

		if err := rows.Scan(
			&m.ID,
			&m.Content,
			&m.SentBy,
			&m.RecipientCount,
			&status,
			&scheduledAt,
			&sentAt,
			&m.CreatedAt,
		); err != nil {
			return nil, err
		}

		m.Status = model.MessageStatus(status)
		if scheduledAt.Valid {
			t := scheduledAt.Time
			m.ScheduledAt = &t
		}
		if sentAt.Valid {
			t := sentAt.Time
			m.SentAt = &t
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *PostgresMessageRepo) MarkSent(ctx context.Context, id int64, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE messages
		SET status = 'sent', sent_at = $2
		WHERE id = $1
	`, id, at.UTC())
	return err
}

func (r *PostgresMessageRepo) MarkError(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE messages
		SET status = 'error'
		WHERE id = $1
	`, id)
	return err
}

func (r *PostgresMessageRepo) CompleteDispatch(ctx context.Context, messageID int64, results []model.MessageRecipient, at time.Time) error {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, res := range results {
		if err := saveResult(ctx, tx, res); err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE messages
		SET status = 'sent', sent_at = $2
		WHERE id = $1
	`, messageID, at.UTC()); err != nil {
		return err
	}

	return tx.Commit()
}

func (r *PostgresMessageRepo) SaveRecipientResult(ctx context.Context, result model.MessageRecipient) error {
	return saveResult(ctx, r.db, result)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func saveResult(ctx context.Context, db execer, res model.MessageRecipient) error {
	_, err := db.ExecContext(ctx, `
		UPDATE message_recipients
		SET status = $3, sent_at = $4, error_message = $5
		WHERE message_id = $1 AND participant_id = $2
	`, res.MessageID, res.ParticipantID, string(res.Status), res.SentAt, res.ErrorMessage)
	return err
}

func (r *PostgresMessageRepo) DeleteScheduled(ctx context.Context, id, userID int64) error {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var sentBy int64
	var status string
	err = tx.QueryRowContext(ctx, `
		SELECT sent_by, status FROM messages WHERE id = $1 FOR UPDATE
	`, id).Scan(&sentBy, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if sentBy != userID {
		return ErrNotOwner
	}
	if model.MessageStatus(status) != model.MessageScheduled {
		return ErrNotScheduled
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM message_recipients WHERE message_id = $1`, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE id = $1`, id); err != nil {
		return err
	}

	return tx.Commit()
}
