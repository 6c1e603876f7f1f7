package repo

import (
	"context"
	"database/sql"
	"strconv"

	"github.com/munnorthwest/conference-messaging/internal/model"
)

type PostgresParticipantRepo struct {
	db *sql.DB
}

func NewPostgresParticipantRepo(db *sql.DB) *PostgresParticipantRepo {
	return &PostgresParticipantRepo{db: db}
}

const participantColumns = `id, conference_id, first_name, last_name, phone, participant_type, created_at`

func (r *PostgresParticipantRepo) ListByTypes(ctx context.Context, conferenceID int64, types []string) ([]model.Participant, error) {
	if len(types) == 0 {
		return nil, nil
	}

	args := make([]any, 0, len(types)+1)
	args = append(args, conferenceID)
	placeholders := ""
	for i, t := range types {
		if i > 0 {
			placeholders += ", "
		}
		placeholders += "$" + strconv.Itoa(i+2)
		args = append(args, t)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+participantColumns+`
		FROM participants
		WHERE conference_id = $1 AND participant_type IN (`+placeholders+`)
		ORDER BY last_name ASC, first_name ASC
	`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanParticipants(rows)
}

func (r *PostgresParticipantRepo) FindSecretariatByName(ctx context.Context, conferenceID int64, first, last string) ([]model.Participant, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+participantColumns+`
		FROM participants
		WHERE conference_id = $1
		  AND participant_type = 'Secretariat'
		  AND lower(first_name) = lower($2)
		  AND lower(last_name) = lower($3)
	`, conferenceID, first, last)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanParticipants(rows)
}

func (r *PostgresParticipantRepo) ListForMessage(ctx context.Context, messageID int64) ([]model.Participant, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT p.id, p.conference_id, p.first_name, p.last_name, p.phone, p.participant_type, p.created_at
		FROM participants p
		JOIN message_recipients mr ON mr.participant_id = p.id
		WHERE mr.message_id = $1
		ORDER BY p.id ASC
	`, messageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanParticipants(rows)
}

func scanParticipants(rows *sql.Rows) ([]model.Participant, error) {
	var out []model.Participant
	for rows.Next() {
		var p model.Participant
		if err := rows.Scan(
			&p.ID,
			&p.ConferenceID,
			&p.FirstName,
			&p.LastName,
			&p.Phone,
			&p.ParticipantType,
			&p.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
