package state

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/iudanet/chatsync/internal/client/storage"
	"github.com/iudanet/chatsync/internal/models"
)

// Participants is the participant aggregate, kept in first-seen order.
type Participants struct {
	store     *storage.Store
	logger    *slog.Logger
	items     []models.Participant
	listeners listeners
	mu        sync.RWMutex
}

// NewParticipants создает пустой агрегат участников
func NewParticipants(store *storage.Store, logger *slog.Logger) *Participants {
	if logger == nil {
		logger = slog.Default()
	}
	return &Participants{store: store, logger: logger}
}

// OnChange регистрирует callback, вызываемый после каждого изменения
func (s *Participants) OnChange(fn func()) {
	s.listeners.add(fn)
}

// Load восстанавливает участников из хранилища
func (s *Participants) Load(ctx context.Context) bool {
	var items []models.Participant
	if !s.store.Load(ctx, KeyParticipants, &items) {
		return false
	}

	s.mu.Lock()
	s.items = items
	s.mu.Unlock()

	s.listeners.notify()
	return true
}

// All возвращает копию списка участников
func (s *Participants) All() []models.Participant {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.items)
}

// Len возвращает количество участников
func (s *Participants) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Get возвращает участника по ID
func (s *Participants) Get(id string) (models.Participant, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx := s.indexOf(id)
	if idx < 0 {
		return models.Participant{}, false
	}
	return s.items[idx], true
}

// Upsert обновляет или добавляет участников по ID. Возвращает число изменённых записей.
func (s *Participants) Upsert(ctx context.Context, deltas []models.Participant) int {
	if len(deltas) == 0 {
		return 0
	}

	s.mu.Lock()
	for _, p := range deltas {
		if idx := s.indexOf(p.ID); idx >= 0 {
			s.items[idx] = p
			continue
		}
		s.items = append(s.items, p)
	}
	s.store.Save(ctx, KeyParticipants, s.items)
	s.mu.Unlock()

	s.logger.Debug("Participants upserted", "count", len(deltas))
	s.listeners.notify()
	return len(deltas)
}

// ReplaceAll заменяет весь список участников
func (s *Participants) ReplaceAll(ctx context.Context, all []models.Participant) {
	items := make([]models.Participant, 0, len(all))
	for _, p := range all {
		// сервер может прислать повторы, оставляем последнюю версию
		if idx := slices.IndexFunc(items, func(x models.Participant) bool { return x.ID == p.ID }); idx >= 0 {
			items[idx] = p
			continue
		}
		items = append(items, p)
	}

	s.mu.Lock()
	s.items = items
	s.store.Save(ctx, KeyParticipants, s.items)
	s.mu.Unlock()

	s.listeners.notify()
}

// Clear удаляет всех участников
func (s *Participants) Clear(ctx context.Context) {
	s.mu.Lock()
	s.items = nil
	s.store.Delete(ctx, KeyParticipants)
	s.mu.Unlock()

	s.listeners.notify()
}

func (s *Participants) indexOf(id string) int {
	return slices.IndexFunc(s.items, func(p models.Participant) bool {
		return p.ID == id
	})
}
