package server

import (
	"context"
	"fmt"
	"time"

	"github.com/iudanet/chatsync/internal/models"
)

// SeedParticipants участники демонстрационного чата
var SeedParticipants = []models.Participant{
	{ID: models.LocalParticipantID, Name: "You"},
	{ID: "ann", Name: "Ann"},
	{ID: "bob", Name: "Bob"},
}

type seedMessage struct {
	author string
	text   string
	ago    time.Duration
}

var seedMessages = []seedMessage{
	{author: "ann", text: "Hi everyone 👋", ago: 26 * time.Hour},
	{author: "bob", text: "Morning! Anyone up for lunch?", ago: 25*time.Hour + 50*time.Minute},
	{author: "ann", text: "Count me in", ago: 25*time.Hour + 48*time.Minute},
	{author: "bob", text: "Release is out 🎉", ago: 2 * time.Hour},
}

// Seed наполняет пустую базу демонстрационными данными. Если сообщения уже
// есть, добавляются только недостающие участники.
func (s *Server) Seed(ctx context.Context, now time.Time) (int, error) {
	for _, p := range SeedParticipants {
		if _, err := s.storage.GetParticipant(ctx, p.ID); err == nil {
			continue
		}
		if err := s.storage.UpsertParticipant(ctx, p, now); err != nil {
			return 0, fmt.Errorf("seed participant %s: %w", p.ID, err)
		}
	}

	existing, err := s.storage.MessagesSince(ctx, time.Time{})
	if err != nil {
		return 0, fmt.Errorf("seed: %w", err)
	}
	if len(existing) > 0 {
		return 0, nil
	}

	for i, sm := range seedMessages {
		msg := &models.Message{
			CreatedAt: now.Add(-sm.ago),
			Author:    models.ParticipantRef{ID: sm.author},
			ClientID:  fmt.Sprintf("seed-%d", i),
			Text:      sm.text,
		}
		if _, _, err := s.storage.CreateMessage(ctx, msg, now); err != nil {
			return i, fmt.Errorf("seed message %d: %w", i, err)
		}
	}

	s.logger.Info("Database seeded",
		"participants", len(SeedParticipants),
		"messages", len(seedMessages))
	return len(seedMessages), nil
}
