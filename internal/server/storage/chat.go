package storage

import (
	"context"
	"time"

	"github.com/iudanet/chatsync/internal/models"
)

// MessageStorage defines interface for chat messages persistence.
// Every mutation stamps the row with the given time; *Since methods return rows
// stamped strictly after since (all rows for the zero time).
type MessageStorage interface {
	// CreateMessage stores a new message authored by msg.Author.ID.
	// If the author already sent a message with the same ClientID, the stored
	// message is returned and created is false.
	CreateMessage(ctx context.Context, msg *models.Message, at time.Time) (stored *models.Message, created bool, err error)

	// GetMessage retrieves a single message by ID
	// Returns ErrMessageNotFound if message doesn't exist
	GetMessage(ctx context.Context, id string) (*models.Message, error)

	// MessagesSince retrieves messages (including deleted) changed after since
	MessagesSince(ctx context.Context, since time.Time) ([]models.Message, error)

	// EditMessage replaces the text of a message and sets EditedAt
	// Returns ErrNotAuthor if authorID did not write the message
	EditMessage(ctx context.Context, id, authorID, text string, at time.Time) (*models.Message, error)

	// DeleteMessage marks message as deleted (soft delete)
	DeleteMessage(ctx context.Context, id, authorID string, at time.Time) error

	// AddReaction adds actorID to the emoji reaction of a message.
	// Adding an existing reaction is a no-op.
	AddReaction(ctx context.Context, messageID, emoji, actorID string, at time.Time) (*models.Message, error)
}

// ParticipantStorage defines interface for chat participants persistence
type ParticipantStorage interface {
	// UpsertParticipant creates or updates a participant
	UpsertParticipant(ctx context.Context, p models.Participant, at time.Time) error

	// GetParticipant retrieves a participant by ID
	// Returns ErrParticipantNotFound if participant doesn't exist
	GetParticipant(ctx context.Context, id string) (*models.Participant, error)

	// ParticipantsSince retrieves participants changed after since
	ParticipantsSince(ctx context.Context, since time.Time) ([]models.Participant, error)
}
