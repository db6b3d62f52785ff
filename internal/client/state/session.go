package state

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/iudanet/chatsync/internal/client/storage"
	"github.com/iudanet/chatsync/internal/models"
)

// Session holds the locally known server session and the sync cursor.
type Session struct {
	store  *storage.Store
	logger *slog.Logger
	cur    models.Session
	mu     sync.RWMutex
}

// NewSession создает пустой агрегат сессии
func NewSession(store *storage.Store, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{store: store, logger: logger}
}

// Load восстанавливает сессию из хранилища
func (s *Session) Load(ctx context.Context) bool {
	var cur models.Session
	if !s.store.Load(ctx, KeySession, &cur) {
		return false
	}

	s.mu.Lock()
	s.cur = cur
	s.mu.Unlock()
	return true
}

// Get возвращает текущую сессию
func (s *Session) Get() models.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur
}

// Adopt принимает новый дескриптор сессии и сбрасывает курсор в нулевое время
func (s *Session) Adopt(ctx context.Context, info models.SessionInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cur = models.Session{
		SessionID:  info.SessionID,
		APIVersion: info.APIVersion,
	}
	s.store.Save(ctx, KeySession, s.cur)
}

// AdvanceCursor moves the sync cursor forward. A cursor that would not move
// forward is ignored; returns whether the cursor changed.
func (s *Session) AdvanceCursor(ctx context.Context, to time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !to.After(s.cur.LastSyncCursor) {
		s.logger.Debug("Sync cursor not advanced",
			"current", s.cur.LastSyncCursor,
			"proposed", to)
		return false
	}
	s.cur.LastSyncCursor = to
	s.store.Save(ctx, KeySession, s.cur)
	return true
}

// Clear сбрасывает сессию
func (s *Session) Clear(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cur = models.Session{}
	s.store.Delete(ctx, KeySession)
}
