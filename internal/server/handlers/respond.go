package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/iudanet/chatsync/internal/models"
	"github.com/iudanet/chatsync/pkg/api"
)

// sendJSON отправляет JSON ответ
func sendJSON(w http.ResponseWriter, logger *slog.Logger, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode JSON response", slog.Any("error", err))
	}
}

// sendError отправляет JSON ответ с ошибкой
func sendError(w http.ResponseWriter, logger *slog.Logger, message string, statusCode int) {
	resp := api.ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
	}
	sendJSON(w, logger, resp, statusCode)
}

func messageToAPI(m *models.Message) api.Message {
	out := api.Message{
		CreatedAt: m.CreatedAt,
		EditedAt:  m.EditedAt,
		Author: api.ParticipantRef{
			ID:   m.Author.ID,
			Name: m.Author.Name,
		},
		ID:       m.ID,
		ClientID: m.ClientID,
		Text:     m.Text,
		Status:   m.Status.String(),
	}
	if m.ReplyTo != nil {
		out.ReplyToID = m.ReplyTo.ID
	}
	for _, r := range m.Reactions {
		out.Reactions = append(out.Reactions, api.Reaction{
			Emoji:    r.Emoji,
			Reactors: r.Reactors,
			Count:    r.Count,
		})
	}
	return out
}

func participantToAPI(p models.Participant) api.Participant {
	return api.Participant{
		AvatarURL: p.AvatarURL,
		ID:        p.ID,
		Name:      p.Name,
	}
}
