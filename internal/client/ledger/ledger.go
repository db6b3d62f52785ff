// Package ledger tracks optimistic reaction mutations that were applied to the
// message state before the server confirmed them.
//
// Lock order: the ledger lock is always taken before the message state lock.
// Change listeners of the message state run after both locks are released, so a
// listener may call back into the ledger.
package ledger

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iudanet/chatsync/internal/client/state"
	"github.com/iudanet/chatsync/internal/models"
)

var (
	// ErrDuplicate возвращается, если участник уже поставил эту реакцию (в состоянии или в ожидании)
	ErrDuplicate = errors.New("reaction already present")
	// ErrMessageNotFound возвращается, если целевого сообщения нет локально
	ErrMessageNotFound = state.ErrMessageNotFound
	// ErrNotReactable возвращается для сообщений, ещё не подтверждённых сервером
	ErrNotReactable = errors.New("message does not accept reactions")
)

// Token identifies one optimistic mutation.
type Token string

// Kind вид оптимистичной мутации
type Kind uint8

const (
	// KindAdd добавление реакции
	KindAdd Kind = iota + 1
)

// Entry is a pending optimistic mutation.
type Entry struct {
	CreatedAt time.Time
	Token     Token
	MessageID string
	Emoji     string
	ActorID   string
	Kind      Kind
}

func (e Entry) matches(messageID, emoji, actorID string) bool {
	return e.MessageID == messageID && e.Emoji == emoji && e.ActorID == actorID
}

// Ledger owns the pending optimistic entries.
type Ledger struct {
	messages *state.Messages
	logger   *slog.Logger
	now      func() time.Time
	entries  map[Token]Entry
	mu       sync.Mutex
}

// New создает ledger поверх агрегата сообщений
func New(messages *state.Messages, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{
		messages: messages,
		logger:   logger,
		now:      time.Now,
		entries:  make(map[Token]Entry),
	}
}

// Begin applies the reaction to the message state and records an entry for it.
func (l *Ledger) Begin(ctx context.Context, messageID, emoji, actorID string) (Token, error) {
	l.mu.Lock()
	token, notify, err := l.beginLocked(ctx, messageID, emoji, actorID)
	l.mu.Unlock()

	notify()
	return token, err
}

func (l *Ledger) beginLocked(ctx context.Context, messageID, emoji, actorID string) (Token, func(), error) {
	for _, e := range l.entries {
		if e.matches(messageID, emoji, actorID) {
			return "", func() {}, ErrDuplicate
		}
	}

	notify, err := l.messages.MutateDeferred(ctx, messageID, func(m *models.Message) error {
		if m.Status != models.StatusSent {
			return fmt.Errorf("%w: status %s", ErrNotReactable, m.Status)
		}
		if !m.AddReaction(emoji, actorID) {
			return ErrDuplicate
		}
		return nil
	})
	if err != nil {
		return "", notify, err
	}

	entry := Entry{
		Token:     Token(uuid.New().String()),
		MessageID: messageID,
		Emoji:     emoji,
		ActorID:   actorID,
		Kind:      KindAdd,
		CreatedAt: l.now(),
	}
	l.entries[entry.Token] = entry

	l.logger.Debug("Optimistic reaction applied",
		"token", entry.Token,
		"message_id", messageID,
		"emoji", emoji)
	return entry.Token, notify, nil
}

// Confirm removes the entry; the applied mutation stays as is.
// Returns false for an unknown (already resolved or swept) token.
func (l *Ledger) Confirm(token Token) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.entries[token]; !ok {
		return false
	}
	delete(l.entries, token)
	return true
}

// Revert removes the entry and undoes exactly the recorded mutation:
// only the recorded reactor is removed, other reactors are kept.
func (l *Ledger) Revert(ctx context.Context, token Token) bool {
	l.mu.Lock()
	entry, ok := l.entries[token]
	if !ok {
		l.mu.Unlock()
		return false
	}
	delete(l.entries, token)

	var removed bool
	notify, err := l.messages.MutateDeferred(ctx, entry.MessageID, func(m *models.Message) error {
		removed = m.RemoveReaction(entry.Emoji, entry.ActorID)
		return nil
	})
	l.mu.Unlock()
	notify()

	if err != nil {
		// сообщение могло исчезнуть при сбросе сессии
		l.logger.Debug("Revert target is gone",
			"token", token,
			"message_id", entry.MessageID,
			"error", err)
		return true
	}

	l.logger.Debug("Optimistic reaction reverted",
		"token", token,
		"message_id", entry.MessageID,
		"removed", removed)
	return true
}

// SweepStale drops entries older than maxAge without touching message state.
func (l *Ledger) SweepStale(maxAge time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-maxAge)
	swept := 0
	for token, e := range l.entries {
		if e.CreatedAt.Before(cutoff) {
			delete(l.entries, token)
			swept++
		}
	}

	if swept > 0 {
		l.logger.Info("Stale optimistic entries swept", "count", swept)
	}
	return swept
}

// Reapply restores pending mutations that a sync merge overwrote.
// Returns the number of reactions re-added.
func (l *Ledger) Reapply(ctx context.Context) int {
	l.mu.Lock()
	applied := 0
	notify := func() {}
	for _, e := range l.sortedLocked() {
		var added bool
		n, err := l.messages.MutateDeferred(ctx, e.MessageID, func(m *models.Message) error {
			added = m.AddReaction(e.Emoji, e.ActorID)
			return nil
		})
		if err != nil {
			continue
		}
		if added {
			applied++
			notify = n
		}
	}
	l.mu.Unlock()
	notify()

	if applied > 0 {
		l.logger.Debug("Pending reactions reapplied", "count", applied)
	}
	return applied
}

// Reset drops every entry. Used on session rotation when message state is cleared.
func (l *Ledger) Reset() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := len(l.entries)
	clear(l.entries)
	return n
}

// Pending возвращает ожидающие записи в порядке создания
func (l *Ledger) Pending() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sortedLocked()
}

// Len возвращает количество ожидающих записей
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Run periodically sweeps entries older than maxAge until ctx is done.
func (l *Ledger) Run(ctx context.Context, interval, maxAge time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.SweepStale(maxAge)
		case <-ctx.Done():
			return
		}
	}
}

func (l *Ledger) sortedLocked() []Entry {
	out := make([]Entry, 0, len(l.entries))
	for _, e := range l.entries {
		out = append(out, e)
	}
	slices.SortFunc(out, func(a, b Entry) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.Token, b.Token)
	})
	return out
}
