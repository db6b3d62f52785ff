package handlers

import (
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/iudanet/chatsync/pkg/api"
)

// APIVersion версия REST API
const APIVersion = 1

// SessionHandler выдаёт дескриптор сессии. Новая сессия заставляет клиентов
// сбросить локальное состояние и перечитать историю с нуля.
type SessionHandler struct {
	logger *slog.Logger
	now    func() time.Time
	id     atomic.Pointer[string]
}

// NewSessionHandler создает handler с новой сессией
func NewSessionHandler(logger *slog.Logger) *SessionHandler {
	h := &SessionHandler{logger: logger, now: time.Now}
	h.Rotate()
	return h
}

// SessionID возвращает текущий id сессии
func (h *SessionHandler) SessionID() string {
	return *h.id.Load()
}

// Rotate выпускает новый id сессии и возвращает его
func (h *SessionHandler) Rotate() string {
	id := uuid.NewString()
	h.id.Store(&id)
	return id
}

// Get обрабатывает GET /api/v1/session
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	sendJSON(w, h.logger, h.response(), http.StatusOK)
}

// HandleRotate обрабатывает POST /api/v1/session/rotate
func (h *SessionHandler) HandleRotate(w http.ResponseWriter, r *http.Request) {
	id := h.Rotate()
	h.logger.InfoContext(r.Context(), "session rotated",
		slog.String("session_id", id),
		slog.String("participant_id", GetParticipantID(r.Context())))
	sendJSON(w, h.logger, h.response(), http.StatusOK)
}

func (h *SessionHandler) response() api.SessionResponse {
	return api.SessionResponse{
		ServerTime: h.now().UTC(),
		SessionID:  h.SessionID(),
		APIVersion: APIVersion,
	}
}
