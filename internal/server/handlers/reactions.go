package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/iudanet/chatsync/internal/models"
	"github.com/iudanet/chatsync/internal/server/storage"
	"github.com/iudanet/chatsync/internal/validation"
	"github.com/iudanet/chatsync/pkg/api"
)

// ReactionHandler обрабатывает реакции. Реакции на одно сообщение применяются
// по одной; параллельная реакция получает 409 и должна быть повторена.
type ReactionHandler struct {
	logger   *slog.Logger
	messages storage.MessageStorage
	now      func() time.Time
	inFlight map[string]struct{} // сообщения, на которые сейчас применяется реакция
	hold     time.Duration
	mu       sync.Mutex
}

// NewReactionHandler создает handler реакций.
// hold задерживает применение реакции, расширяя окно конфликта (0 для продакшена).
func NewReactionHandler(logger *slog.Logger, messages storage.MessageStorage, hold time.Duration) *ReactionHandler {
	return &ReactionHandler{
		logger:   logger,
		messages: messages,
		now:      time.Now,
		inFlight: make(map[string]struct{}),
		hold:     hold,
	}
}

// Add обрабатывает POST /api/v1/messages/{id}/reactions
func (h *ReactionHandler) Add(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	messageID := r.PathValue("id")
	actorID := GetParticipantID(ctx)

	var req api.SendReactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(w, h.logger, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := validation.ValidateReaction(req.Emoji); err != nil {
		sendError(w, h.logger, err.Error(), http.StatusBadRequest)
		return
	}

	if !h.acquire(messageID) {
		h.logger.InfoContext(ctx, "reaction conflict",
			slog.String("message_id", messageID),
			slog.String("actor_id", actorID))
		sendError(w, h.logger, "another reaction on this message is in progress", http.StatusConflict)
		return
	}
	defer h.release(messageID)

	msg, err := h.messages.GetMessage(ctx, messageID)
	if err != nil {
		h.sendLookupError(w, r, err)
		return
	}
	if msg.Status == models.StatusDeleted {
		sendError(w, h.logger, "message not found", http.StatusNotFound)
		return
	}

	if h.hold > 0 {
		select {
		case <-time.After(h.hold):
		case <-ctx.Done():
			return
		}
	}

	if _, err := h.messages.AddReaction(ctx, messageID, req.Emoji, actorID, h.now()); err != nil {
		h.sendLookupError(w, r, err)
		return
	}

	h.logger.InfoContext(ctx, "reaction added",
		slog.String("message_id", messageID),
		slog.String("emoji", req.Emoji),
		slog.String("actor_id", actorID))

	sendJSON(w, h.logger, api.SendReactionResponse{
		MessageID: messageID,
		Emoji:     req.Emoji,
		OK:        true,
	}, http.StatusOK)
}

// acquire помечает сообщение занятым; false, если реакция на него уже применяется.
// Запись удаляется в release, так что в карте только текущие запросы.
func (h *ReactionHandler) acquire(messageID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, busy := h.inFlight[messageID]; busy {
		return false
	}
	h.inFlight[messageID] = struct{}{}
	return true
}

func (h *ReactionHandler) release(messageID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.inFlight, messageID)
}

func (h *ReactionHandler) sendLookupError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, storage.ErrMessageNotFound) {
		sendError(w, h.logger, "message not found", http.StatusNotFound)
		return
	}
	h.logger.ErrorContext(r.Context(), "failed to add reaction", slog.Any("error", err))
	sendError(w, h.logger, "internal server error", http.StatusInternalServerError)
}
