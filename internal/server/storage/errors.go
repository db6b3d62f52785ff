package storage

import "errors"

// Common storage errors
var (
	// ErrMessageNotFound indicates that message was not found in storage
	ErrMessageNotFound = errors.New("message not found")

	// ErrParticipantNotFound indicates that participant was not found in storage
	ErrParticipantNotFound = errors.New("participant not found")

	// ErrNotAuthor indicates that only the author may change the message
	ErrNotAuthor = errors.New("participant is not the message author")
)
