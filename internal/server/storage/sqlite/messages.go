package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/iudanet/chatsync/internal/models"
	"github.com/iudanet/chatsync/internal/server/storage"
)

const selectMessage = `
	SELECT m.id, COALESCE(m.client_id, ''), m.author_id, COALESCE(p.name, ''),
	       m.text, COALESCE(m.reply_to_id, ''), m.status, m.created_at, m.edited_at
	FROM messages m
	LEFT JOIN participants p ON p.id = m.author_id
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (models.Message, error) {
	var (
		m         models.Message
		replyTo   string
		status    string
		createdAt int64
		editedAt  sql.NullInt64
	)

	err := row.Scan(
		&m.ID,
		&m.ClientID,
		&m.Author.ID,
		&m.Author.Name,
		&m.Text,
		&replyTo,
		&status,
		&createdAt,
		&editedAt,
	)
	if err != nil {
		return models.Message{}, err
	}

	m.Status, err = models.ParseMessageStatus(status)
	if err != nil {
		return models.Message{}, fmt.Errorf("message %s: %w", m.ID, err)
	}
	m.CreatedAt = time.Unix(0, createdAt).UTC()
	if editedAt.Valid {
		edited := time.Unix(0, editedAt.Int64).UTC()
		m.EditedAt = &edited
	}
	if replyTo != "" {
		m.ReplyTo = &models.MessageRef{ID: replyTo}
	}
	return m, nil
}

// CreateMessage stores a new message; a repeated client id returns the stored one
func (s *Storage) CreateMessage(ctx context.Context, msg *models.Message, at time.Time) (*models.Message, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var clientID any
	if msg.ClientID != "" {
		clientID = msg.ClientID

		var existingID string
		err := tx.QueryRowContext(ctx,
			`SELECT id FROM messages WHERE author_id = ? AND client_id = ?`,
			msg.Author.ID, msg.ClientID).Scan(&existingID)
		switch {
		case err == nil:
			if err := tx.Commit(); err != nil {
				return nil, false, fmt.Errorf("failed to commit transaction: %w", err)
			}
			existing, err := s.GetMessage(ctx, existingID)
			return existing, false, err
		case !errors.Is(err, sql.ErrNoRows):
			return nil, false, fmt.Errorf("failed to check client id: %w", err)
		}
	}

	id := msg.ID
	if id == "" {
		id = uuid.NewString()
	}
	createdAt := msg.CreatedAt
	if createdAt.IsZero() {
		createdAt = at
	}
	var replyTo any
	if msg.ReplyTo != nil {
		replyTo = msg.ReplyTo.ID
	}

	query := `
		INSERT INTO messages (
			id, client_id, author_id, text, reply_to_id,
			status, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = tx.ExecContext(ctx, query,
		id,
		clientID,
		msg.Author.ID,
		msg.Text,
		replyTo,
		models.StatusSent.String(),
		createdAt.UnixNano(),
		at.UnixNano(),
	)
	if err != nil {
		return nil, false, fmt.Errorf("failed to insert message: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("failed to commit transaction: %w", err)
	}

	stored, err := s.GetMessage(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return stored, true, nil
}

// GetMessage retrieves a single message by ID
func (s *Storage) GetMessage(ctx context.Context, id string) (*models.Message, error) {
	row := s.db.QueryRowContext(ctx, selectMessage+` WHERE m.id = ?`, id)
	m, err := scanMessage(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrMessageNotFound
		}
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	if err := s.loadReactions(ctx, []*models.Message{&m}); err != nil {
		return nil, err
	}
	return &m, nil
}

// MessagesSince retrieves messages changed after since, oldest first
func (s *Storage) MessagesSince(ctx context.Context, since time.Time) ([]models.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		selectMessage+` WHERE m.updated_at > ? ORDER BY m.created_at, m.id`,
		nanos(since))
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	messages := make([]models.Message, 0)
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}

	ptrs := make([]*models.Message, len(messages))
	for i := range messages {
		ptrs[i] = &messages[i]
	}
	if err := s.loadReactions(ctx, ptrs); err != nil {
		return nil, err
	}
	return messages, nil
}

// EditMessage replaces the text of a message written by authorID
func (s *Storage) EditMessage(ctx context.Context, id, authorID, text string, at time.Time) (*models.Message, error) {
	if err := s.checkAuthor(ctx, id, authorID); err != nil {
		return nil, err
	}

	_, err := s.db.ExecContext(ctx,
		`UPDATE messages SET text = ?, edited_at = ?, updated_at = ? WHERE id = ?`,
		text, at.UnixNano(), at.UnixNano(), id)
	if err != nil {
		return nil, fmt.Errorf("failed to edit message: %w", err)
	}
	return s.GetMessage(ctx, id)
}

// DeleteMessage marks message as deleted
func (s *Storage) DeleteMessage(ctx context.Context, id, authorID string, at time.Time) error {
	if err := s.checkAuthor(ctx, id, authorID); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx,
		`UPDATE messages SET status = ?, updated_at = ? WHERE id = ?`,
		models.StatusDeleted.String(), at.UnixNano(), id)
	if err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	return nil
}

func (s *Storage) checkAuthor(ctx context.Context, id, authorID string) error {
	var author string
	err := s.db.QueryRowContext(ctx, `SELECT author_id FROM messages WHERE id = ?`, id).Scan(&author)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.ErrMessageNotFound
		}
		return fmt.Errorf("failed to get message author: %w", err)
	}
	if author != authorID {
		return storage.ErrNotAuthor
	}
	return nil
}

// AddReaction adds actorID to the emoji reaction of a message
func (s *Storage) AddReaction(ctx context.Context, messageID, emoji, actorID string, at time.Time) (*models.Message, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM messages WHERE id = ?`, messageID).Scan(&exists)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrMessageNotFound
		}
		return nil, fmt.Errorf("failed to check message: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO reactions (message_id, emoji, actor_id, created_at) VALUES (?, ?, ?, ?)`,
		messageID, emoji, actorID, at.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("failed to insert reaction: %w", err)
	}

	// Повторная реакция ничего не меняет, курсор клиентов не сдвигаем
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		if _, err := tx.ExecContext(ctx, `UPDATE messages SET updated_at = ? WHERE id = ?`, at.UnixNano(), messageID); err != nil {
			return nil, fmt.Errorf("failed to touch message: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit reaction: %w", err)
	}
	return s.GetMessage(ctx, messageID)
}

// loadReactions заполняет реакции сообщений в порядке их появления
func (s *Storage) loadReactions(ctx context.Context, messages []*models.Message) error {
	if len(messages) == 0 {
		return nil
	}

	byID := make(map[string]*models.Message, len(messages))
	args := make([]any, 0, len(messages))
	placeholders := make([]byte, 0, len(messages)*2)
	for i, m := range messages {
		byID[m.ID] = m
		args = append(args, m.ID)
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}

	query := `SELECT message_id, emoji, actor_id FROM reactions
		WHERE message_id IN (` + string(placeholders) + `)
		ORDER BY created_at, rowid`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to query reactions: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	for rows.Next() {
		var messageID, emoji, actorID string
		if err := rows.Scan(&messageID, &emoji, &actorID); err != nil {
			return fmt.Errorf("failed to scan reaction: %w", err)
		}
		if m, ok := byID[messageID]; ok {
			m.AddReaction(emoji, actorID)
		}
	}
	return rows.Err()
}
