package handlers

import (
	"context"

	"github.com/iudanet/chatsync/internal/models"
)

// contextKey тип для ключей контекста
type contextKey string

// ParticipantIDKey ключ для хранения id участника в контексте
const ParticipantIDKey contextKey = "participant_id"

// ParticipantHeader заголовок, в котором клиент передаёт свой id
const ParticipantHeader = "X-Participant-ID"

// WithParticipantID кладёт id участника в контекст
func WithParticipantID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ParticipantIDKey, id)
}

// GetParticipantID извлекает id участника из контекста; по умолчанию локальный пользователь
func GetParticipantID(ctx context.Context) string {
	if id, ok := ctx.Value(ParticipantIDKey).(string); ok && id != "" {
		return id
	}
	return models.LocalParticipantID
}
