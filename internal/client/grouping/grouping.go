// Package grouping turns an ordered message list into display groups.
package grouping

import (
	"time"

	"github.com/iudanet/chatsync/internal/models"
)

// MessageGroup is a run of consecutive messages by one author on one local day.
type MessageGroup struct {
	Day           time.Time // полночь дня группы в локации группировки
	AuthorID      string
	Messages      []models.Message
	DateSeparator bool // группа начинает новый календарный день
}

// Group splits messages (ordered oldest→newest) into groups. A message starts
// a new group when its author or its calendar day in loc differs from the
// previous message. Group has no side effects; the input is not modified.
func Group(messages []models.Message, loc *time.Location) []MessageGroup {
	if len(messages) == 0 {
		return nil
	}
	if loc == nil {
		loc = time.Local
	}

	groups := make([]MessageGroup, 0, len(messages))
	var prevDay time.Time
	for i := range messages {
		m := messages[i].Clone()
		day := startOfDay(m.CreatedAt, loc)

		newDay := i == 0 || !day.Equal(prevDay)
		if newDay || groups[len(groups)-1].AuthorID != m.Author.ID {
			groups = append(groups, MessageGroup{
				Day:           day,
				AuthorID:      m.Author.ID,
				DateSeparator: newDay,
			})
		}

		last := &groups[len(groups)-1]
		last.Messages = append(last.Messages, m)
		prevDay = day
	}
	return groups
}

// Visible отбрасывает сообщения, помеченные удалёнными
func Visible(messages []models.Message) []models.Message {
	out := make([]models.Message, 0, len(messages))
	for _, m := range messages {
		if m.Status != models.StatusDeleted {
			out = append(out, m)
		}
	}
	return out
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
