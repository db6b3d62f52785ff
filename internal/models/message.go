package models

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// LocalIDPrefix префикс временных идентификаторов локально созданных сообщений
const LocalIDPrefix = "local-"

// MessageStatus represents the lifecycle status of a chat message.
type MessageStatus uint8

const (
	// StatusSending — сообщение создано локально и ещё не подтверждено сервером.
	StatusSending MessageStatus = iota
	// StatusSent — сообщение подтверждено сервером (постоянный ID).
	StatusSent
	// StatusFailed — отправка не удалась, доступны повтор или отмена.
	StatusFailed
	// StatusDeleted — сообщение помечено удалённым (hard delete не используется).
	StatusDeleted
)

// String returns a human-readable version of MessageStatus.
func (s MessageStatus) String() string {
	switch s {
	case StatusSending:
		return "sending"
	case StatusSent:
		return "sent"
	case StatusFailed:
		return "failed"
	case StatusDeleted:
		return "deleted"
	default:
		return fmt.Sprintf("MessageStatus(%d)", uint8(s))
	}
}

// MarshalText implements encoding.TextMarshaler so statuses are stored as strings.
func (s MessageStatus) MarshalText() ([]byte, error) {
	switch s {
	case StatusSending, StatusSent, StatusFailed, StatusDeleted:
		return []byte(s.String()), nil
	default:
		return nil, fmt.Errorf("invalid message status: %d", uint8(s))
	}
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *MessageStatus) UnmarshalText(text []byte) error {
	status, err := ParseMessageStatus(string(text))
	if err != nil {
		return err
	}
	*s = status
	return nil
}

// ParseMessageStatus parses the string form produced by MessageStatus.String.
func ParseMessageStatus(s string) (MessageStatus, error) {
	switch strings.ToLower(s) {
	case "sending":
		return StatusSending, nil
	case "sent", "":
		// сервер может не присылать статус: всё, что пришло с сервера, уже отправлено
		return StatusSent, nil
	case "failed":
		return StatusFailed, nil
	case "deleted":
		return StatusDeleted, nil
	default:
		return 0, fmt.Errorf("unknown message status %q", s)
	}
}

// ParticipantRef is a lightweight reference to a message author.
type ParticipantRef struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// MessageRef references another message (reply target).
type MessageRef struct {
	ID string `json:"id"`
}

// Message is a chat message as known to the client.
type Message struct {
	CreatedAt time.Time      `json:"created_at"`           // CreatedAt время создания (серверное или локальное для placeholder)
	EditedAt  *time.Time     `json:"edited_at,omitempty"`  // EditedAt время последнего редактирования
	ReplyTo   *MessageRef    `json:"reply_to,omitempty"`   // ReplyTo ссылка на сообщение, на которое отвечаем
	Author    ParticipantRef `json:"author"`               // Author автор сообщения
	ID        string         `json:"id"`                   // ID постоянный ID или временный local-<uuid>
	ClientID  string         `json:"client_id,omitempty"`  // ClientID временный ID, с которым сообщение отправлялось
	Text      string         `json:"text"`                 // Text текст сообщения
	Reactions []Reaction     `json:"reactions,omitempty"`  // Reactions реакции в порядке появления
	Status    MessageStatus  `json:"status"`               // Status статус жизненного цикла
}

// IsLocal reports whether the message still carries a temporary client-side id.
func (m *Message) IsLocal() bool {
	return strings.HasPrefix(m.ID, LocalIDPrefix)
}

// Clone создает глубокую копию сообщения
func (m *Message) Clone() Message {
	c := *m
	if m.EditedAt != nil {
		edited := *m.EditedAt
		c.EditedAt = &edited
	}
	if m.ReplyTo != nil {
		reply := *m.ReplyTo
		c.ReplyTo = &reply
	}
	if m.Reactions != nil {
		c.Reactions = make([]Reaction, len(m.Reactions))
		for i, r := range m.Reactions {
			c.Reactions[i] = r.Clone()
		}
	}
	return c
}

// HasReaction reports whether actorID already reacted to the message with emoji.
func (m *Message) HasReaction(emoji, actorID string) bool {
	idx := m.reactionIndex(emoji)
	if idx < 0 {
		return false
	}
	return slices.Contains(m.Reactions[idx].Reactors, actorID)
}

// AddReaction adds actorID to the reactors of emoji, creating the reaction if needed.
// Returns false if the actor already has this reaction.
func (m *Message) AddReaction(emoji, actorID string) bool {
	idx := m.reactionIndex(emoji)
	if idx < 0 {
		m.Reactions = append(m.Reactions, Reaction{
			Emoji:    emoji,
			Count:    1,
			Reactors: []string{actorID},
		})
		return true
	}

	r := &m.Reactions[idx]
	if slices.Contains(r.Reactors, actorID) {
		return false
	}
	r.Reactors = append(r.Reactors, actorID)
	r.Count = len(r.Reactors)
	return true
}

// RemoveReaction removes actorID from the reactors of emoji. The reaction itself is
// dropped once nobody reacts with it anymore. Returns false if there was nothing to remove.
func (m *Message) RemoveReaction(emoji, actorID string) bool {
	idx := m.reactionIndex(emoji)
	if idx < 0 {
		return false
	}

	r := &m.Reactions[idx]
	pos := slices.Index(r.Reactors, actorID)
	if pos < 0 {
		return false
	}
	r.Reactors = slices.Delete(r.Reactors, pos, pos+1)
	r.Count = len(r.Reactors)

	if r.Count == 0 {
		m.Reactions = slices.Delete(m.Reactions, idx, idx+1)
		if len(m.Reactions) == 0 {
			m.Reactions = nil
		}
	}
	return true
}

func (m *Message) reactionIndex(emoji string) int {
	return slices.IndexFunc(m.Reactions, func(r Reaction) bool {
		return r.Emoji == emoji
	})
}
