package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/iudanet/chatsync/internal/models"
	"github.com/iudanet/chatsync/internal/server/storage"
	"github.com/iudanet/chatsync/internal/validation"
	"github.com/iudanet/chatsync/pkg/api"
)

// MessageHandler обрабатывает запросы к сообщениям
type MessageHandler struct {
	logger       *slog.Logger
	messages     storage.MessageStorage
	participants storage.ParticipantStorage
	now          func() time.Time
}

// NewMessageHandler создает новый handler для сообщений
func NewMessageHandler(logger *slog.Logger, messages storage.MessageStorage, participants storage.ParticipantStorage) *MessageHandler {
	return &MessageHandler{
		logger:       logger,
		messages:     messages,
		participants: participants,
		now:          time.Now,
	}
}

// List обрабатывает GET /api/v1/messages?since=RFC3339
// Возвращает сообщения (включая удалённые), изменённые после since
func (h *MessageHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	since, err := parseSince(r)
	if err != nil {
		h.logger.WarnContext(ctx, "invalid since parameter", slog.Any("error", err))
		sendError(w, h.logger, "invalid since parameter", http.StatusBadRequest)
		return
	}

	messages, err := h.messages.MessagesSince(ctx, since)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list messages", slog.Any("error", err))
		sendError(w, h.logger, "internal server error", http.StatusInternalServerError)
		return
	}

	resp := api.MessagesResponse{Messages: make([]api.Message, 0, len(messages))}
	for i := range messages {
		resp.Messages = append(resp.Messages, messageToAPI(&messages[i]))
	}

	h.logger.DebugContext(ctx, "messages listed",
		slog.Time("since", since),
		slog.Int("count", len(resp.Messages)))
	sendJSON(w, h.logger, resp, http.StatusOK)
}

// Create обрабатывает POST /api/v1/messages
// Повторная отправка с тем же client_id возвращает исходное сообщение
func (h *MessageHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authorID := GetParticipantID(ctx)

	var req api.SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "failed to decode send request", slog.Any("error", err))
		sendError(w, h.logger, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := validation.ValidateMessageText(req.Text); err != nil {
		sendError(w, h.logger, err.Error(), http.StatusBadRequest)
		return
	}

	if req.ReplyToID != "" {
		if _, err := h.messages.GetMessage(ctx, req.ReplyToID); err != nil {
			if errors.Is(err, storage.ErrMessageNotFound) {
				sendError(w, h.logger, "reply target not found", http.StatusBadRequest)
				return
			}
			h.logger.ErrorContext(ctx, "failed to get reply target", slog.Any("error", err))
			sendError(w, h.logger, "internal server error", http.StatusInternalServerError)
			return
		}
	}

	now := h.now()
	if err := h.ensureParticipant(r, authorID, now); err != nil {
		h.logger.ErrorContext(ctx, "failed to register participant", slog.Any("error", err))
		sendError(w, h.logger, "internal server error", http.StatusInternalServerError)
		return
	}

	msg := &models.Message{
		CreatedAt: now,
		Author:    models.ParticipantRef{ID: authorID},
		ClientID:  req.ClientID,
		Text:      req.Text,
	}
	if req.ReplyToID != "" {
		msg.ReplyTo = &models.MessageRef{ID: req.ReplyToID}
	}

	stored, created, err := h.messages.CreateMessage(ctx, msg, now)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to create message", slog.Any("error", err))
		sendError(w, h.logger, "internal server error", http.StatusInternalServerError)
		return
	}

	status := http.StatusCreated
	if !created {
		status = http.StatusOK
		h.logger.InfoContext(ctx, "duplicate send, returning stored message",
			slog.String("message_id", stored.ID),
			slog.String("client_id", req.ClientID))
	} else {
		h.logger.InfoContext(ctx, "message created",
			slog.String("message_id", stored.ID),
			slog.String("author_id", authorID))
	}

	sendJSON(w, h.logger, api.SendMessageResponse{Message: messageToAPI(stored)}, status)
}

// Edit обрабатывает PATCH /api/v1/messages/{id}
func (h *MessageHandler) Edit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	var req api.EditMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(w, h.logger, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := validation.ValidateMessageText(req.Text); err != nil {
		sendError(w, h.logger, err.Error(), http.StatusBadRequest)
		return
	}

	edited, err := h.messages.EditMessage(ctx, id, GetParticipantID(ctx), req.Text, h.now())
	if err != nil {
		h.sendStorageError(w, r, "failed to edit message", err)
		return
	}

	sendJSON(w, h.logger, api.SendMessageResponse{Message: messageToAPI(edited)}, http.StatusOK)
}

// Delete обрабатывает DELETE /api/v1/messages/{id}
// Сообщение помечается удалённым и остаётся в дельтах
func (h *MessageHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	if err := h.messages.DeleteMessage(ctx, id, GetParticipantID(ctx), h.now()); err != nil {
		h.sendStorageError(w, r, "failed to delete message", err)
		return
	}

	h.logger.InfoContext(ctx, "message deleted", slog.String("message_id", id))
	w.WriteHeader(http.StatusNoContent)
}

func (h *MessageHandler) ensureParticipant(r *http.Request, id string, at time.Time) error {
	_, err := h.participants.GetParticipant(r.Context(), id)
	if !errors.Is(err, storage.ErrParticipantNotFound) {
		return err
	}
	return h.participants.UpsertParticipant(r.Context(), models.Participant{ID: id, Name: id}, at)
}

func (h *MessageHandler) sendStorageError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	switch {
	case errors.Is(err, storage.ErrMessageNotFound):
		sendError(w, h.logger, "message not found", http.StatusNotFound)
	case errors.Is(err, storage.ErrNotAuthor):
		sendError(w, h.logger, "only the author can change a message", http.StatusForbidden)
	default:
		h.logger.ErrorContext(r.Context(), msg, slog.Any("error", err))
		sendError(w, h.logger, "internal server error", http.StatusInternalServerError)
	}
}

// parseSince читает курсор ?since=; отсутствие означает полную выборку
func parseSince(r *http.Request) (time.Time, error) {
	raw := r.URL.Query().Get("since")
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, raw)
}
