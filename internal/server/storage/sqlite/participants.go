package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iudanet/chatsync/internal/models"
	"github.com/iudanet/chatsync/internal/server/storage"
)

// UpsertParticipant creates or updates a participant
func (s *Storage) UpsertParticipant(ctx context.Context, p models.Participant, at time.Time) error {
	query := `
		INSERT INTO participants (id, name, avatar_url, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			avatar_url = excluded.avatar_url,
			updated_at = excluded.updated_at
	`

	var avatar any
	if p.AvatarURL != nil {
		avatar = *p.AvatarURL
	}

	if _, err := s.db.ExecContext(ctx, query, p.ID, p.Name, avatar, at.UnixNano()); err != nil {
		return fmt.Errorf("failed to upsert participant: %w", err)
	}
	return nil
}

// GetParticipant retrieves a participant by ID
func (s *Storage) GetParticipant(ctx context.Context, id string) (*models.Participant, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, name, avatar_url FROM participants WHERE id = ?`, id)
	p, err := scanParticipant(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrParticipantNotFound
		}
		return nil, fmt.Errorf("failed to get participant: %w", err)
	}
	return &p, nil
}

// ParticipantsSince retrieves participants changed after since
func (s *Storage) ParticipantsSince(ctx context.Context, since time.Time) ([]models.Participant, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, avatar_url FROM participants WHERE updated_at > ? ORDER BY id`,
		nanos(since))
	if err != nil {
		return nil, fmt.Errorf("failed to query participants: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	participants := make([]models.Participant, 0)
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		participants = append(participants, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating participants: %w", err)
	}
	return participants, nil
}

func scanParticipant(row rowScanner) (models.Participant, error) {
	var (
		p      models.Participant
		avatar sql.NullString
	)
	if err := row.Scan(&p.ID, &p.Name, &avatar); err != nil {
		return models.Participant{}, err
	}
	if avatar.Valid {
		url := avatar.String
		p.AvatarURL = &url
	}
	return p, nil
}
