package api

import (
	"github.com/iudanet/chatsync/internal/models"
	"github.com/iudanet/chatsync/pkg/api"
)

func messageFromAPI(m api.Message) (models.Message, error) {
	status, err := models.ParseMessageStatus(m.Status)
	if err != nil {
		return models.Message{}, err
	}

	msg := models.Message{
		CreatedAt: m.CreatedAt,
		EditedAt:  m.EditedAt,
		Author: models.ParticipantRef{
			ID:   m.Author.ID,
			Name: m.Author.Name,
		},
		ID:       m.ID,
		ClientID: m.ClientID,
		Text:     m.Text,
		Status:   status,
	}
	if m.ReplyToID != "" {
		msg.ReplyTo = &models.MessageRef{ID: m.ReplyToID}
	}

	if len(m.Reactions) > 0 {
		reactions := make([]models.Reaction, 0, len(m.Reactions))
		for _, r := range m.Reactions {
			reactions = append(reactions, models.Reaction{
				Emoji:    r.Emoji,
				Reactors: r.Reactors,
				Count:    r.Count,
			})
		}
		// сервер не обязан соблюдать инвариант Count == len(Reactors)
		msg.Reactions = models.NormalizeReactions(reactions)
	}

	return msg, nil
}

func participantsFromAPI(in []api.Participant) []models.Participant {
	out := make([]models.Participant, 0, len(in))
	for _, p := range in {
		out = append(out, models.Participant{
			AvatarURL: p.AvatarURL,
			ID:        p.ID,
			Name:      p.Name,
		})
	}
	return out
}
