package state

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/iudanet/chatsync/internal/client/storage"
	"github.com/iudanet/chatsync/internal/models"
)

// MergeStats описывает результат применения дельты
type MergeStats struct {
	Added      int // новых сообщений
	Updated    int // обновлённых по ID
	Reconciled int // placeholder'ов, заменённых по ClientID
}

// Messages is the message aggregate. The list is kept ordered oldest→newest by
// CreatedAt; all mutation goes through its methods.
type Messages struct {
	store     *storage.Store
	logger    *slog.Logger
	items     []models.Message
	listeners listeners
	mu        sync.RWMutex
}

// NewMessages создает пустой агрегат сообщений
func NewMessages(store *storage.Store, logger *slog.Logger) *Messages {
	if logger == nil {
		logger = slog.Default()
	}
	return &Messages{store: store, logger: logger}
}

// OnChange регистрирует callback, вызываемый после каждого изменения
func (s *Messages) OnChange(fn func()) {
	s.listeners.add(fn)
}

// Load восстанавливает сообщения из хранилища. Возвращает false, если снимка нет.
func (s *Messages) Load(ctx context.Context) bool {
	var items []models.Message
	if !s.store.Load(ctx, KeyMessages, &items) {
		return false
	}

	for i := range items {
		items[i].Reactions = models.NormalizeReactions(items[i].Reactions)
	}
	sortMessages(items)

	s.mu.Lock()
	s.items = items
	s.mu.Unlock()

	s.logger.Debug("Messages restored from storage", "count", len(items))
	s.listeners.notify()
	return true
}

// All возвращает копию всех сообщений в порядке от старых к новым
func (s *Messages) All() []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Message, len(s.items))
	for i := range s.items {
		out[i] = s.items[i].Clone()
	}
	return out
}

// Len возвращает количество сообщений
func (s *Messages) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Get возвращает копию сообщения по ID
func (s *Messages) Get(id string) (models.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx := s.indexOf(id)
	if idx < 0 {
		return models.Message{}, false
	}
	return s.items[idx].Clone(), true
}

// HasReaction reports whether actorID has reacted to message id with emoji.
func (s *Messages) HasReaction(id, emoji, actorID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx := s.indexOf(id)
	if idx < 0 {
		return false
	}
	return s.items[idx].HasReaction(emoji, actorID)
}

// Add inserts a new message (a local placeholder on send).
func (s *Messages) Add(ctx context.Context, msg models.Message) error {
	s.mu.Lock()
	if s.indexOf(msg.ID) >= 0 {
		s.mu.Unlock()
		return fmt.Errorf("add %s: %w", msg.ID, ErrDuplicateID)
	}
	s.items = append(s.items, msg.Clone())
	sortMessages(s.items)
	s.persist(ctx)
	s.mu.Unlock()

	s.listeners.notify()
	return nil
}

// Merge upserts server deltas by id. A delta whose ClientID matches a local
// placeholder replaces that placeholder.
func (s *Messages) Merge(ctx context.Context, deltas []models.Message) MergeStats {
	var stats MergeStats
	if len(deltas) == 0 {
		return stats
	}

	s.mu.Lock()
	for _, d := range deltas {
		msg := d.Clone()
		msg.Reactions = models.NormalizeReactions(msg.Reactions)

		if idx := s.indexOf(msg.ID); idx >= 0 {
			s.items[idx] = msg
			stats.Updated++
			// placeholder мог остаться, если ответ на отправку ещё не пришёл
			s.dropPlaceholder(msg.ClientID)
			s.logger.Debug("Message updated from delta", "id", msg.ID)
			continue
		}

		if msg.ClientID != "" && msg.ClientID != msg.ID {
			if idx := s.indexOf(msg.ClientID); idx >= 0 {
				s.items[idx] = msg
				stats.Reconciled++
				s.logger.Debug("Placeholder reconciled from delta",
					"local_id", msg.ClientID,
					"id", msg.ID)
				continue
			}
		}

		s.items = append(s.items, msg)
		stats.Added++
		s.logger.Debug("Message added from delta", "id", msg.ID)
	}
	sortMessages(s.items)
	s.persist(ctx)
	s.mu.Unlock()

	s.listeners.notify()
	return stats
}

// ReplaceLocal replaces the placeholder localID with the server-confirmed message.
// If a sync delta already delivered the server message, the placeholder is dropped.
func (s *Messages) ReplaceLocal(ctx context.Context, localID string, msg models.Message) {
	msg = msg.Clone()
	msg.Reactions = models.NormalizeReactions(msg.Reactions)

	s.mu.Lock()
	localIdx := s.indexOf(localID)
	serverIdx := s.indexOf(msg.ID)

	switch {
	case serverIdx >= 0:
		s.items[serverIdx] = msg
		if localIdx >= 0 && localIdx != serverIdx {
			s.items = slices.Delete(s.items, localIdx, localIdx+1)
		}
	case localIdx >= 0:
		s.items[localIdx] = msg
	default:
		s.items = append(s.items, msg)
	}
	sortMessages(s.items)
	s.persist(ctx)
	s.mu.Unlock()

	s.logger.Debug("Placeholder replaced", "local_id", localID, "id", msg.ID)
	s.listeners.notify()
}

// SetStatus меняет статус сообщения
func (s *Messages) SetStatus(ctx context.Context, id string, status models.MessageStatus) error {
	return s.Mutate(ctx, id, func(m *models.Message) error {
		m.Status = status
		return nil
	})
}

// AddReaction добавляет реакцию участника. Возвращает false, если она уже была.
func (s *Messages) AddReaction(ctx context.Context, id, emoji, actorID string) (bool, error) {
	var changed bool
	err := s.Mutate(ctx, id, func(m *models.Message) error {
		changed = m.AddReaction(emoji, actorID)
		return nil
	})
	return changed, err
}

// RemoveReaction удаляет реакцию участника. Возвращает false, если её не было.
func (s *Messages) RemoveReaction(ctx context.Context, id, emoji, actorID string) (bool, error) {
	var changed bool
	err := s.Mutate(ctx, id, func(m *models.Message) error {
		changed = m.RemoveReaction(emoji, actorID)
		return nil
	})
	return changed, err
}

// Mutate applies fn to message id atomically. If fn returns an error, the
// message is left untouched and the error is returned as is.
func (s *Messages) Mutate(ctx context.Context, id string, fn func(m *models.Message) error) error {
	notify, err := s.MutateDeferred(ctx, id, fn)
	notify()
	return err
}

// MutateDeferred is Mutate without the change notification: the caller runs the
// returned func once its own locks are released. The func is never nil and does
// nothing when the mutation failed.
func (s *Messages) MutateDeferred(ctx context.Context, id string, fn func(m *models.Message) error) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(id)
	if idx < 0 {
		return func() {}, fmt.Errorf("message %s: %w", id, ErrMessageNotFound)
	}

	msg := s.items[idx].Clone()
	if err := fn(&msg); err != nil {
		return func() {}, err
	}
	s.items[idx] = msg
	sortMessages(s.items)
	s.persist(ctx)

	return s.listeners.notify, nil
}

// Clear удаляет все сообщения
func (s *Messages) Clear(ctx context.Context) {
	s.mu.Lock()
	s.items = nil
	s.store.Delete(ctx, KeyMessages)
	s.mu.Unlock()

	s.listeners.notify()
}

func (s *Messages) indexOf(id string) int {
	if id == "" {
		return -1
	}
	return slices.IndexFunc(s.items, func(m models.Message) bool {
		return m.ID == id
	})
}

func (s *Messages) dropPlaceholder(clientID string) {
	if clientID == "" {
		return
	}
	s.items = slices.DeleteFunc(s.items, func(m models.Message) bool {
		return m.ID == clientID && m.IsLocal()
	})
}

// persist вызывается под блокировкой, чтобы снимки писались в порядке изменений
func (s *Messages) persist(ctx context.Context) {
	s.store.Save(ctx, KeyMessages, s.items)
}

func sortMessages(items []models.Message) {
	slices.SortStableFunc(items, func(a, b models.Message) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
}
