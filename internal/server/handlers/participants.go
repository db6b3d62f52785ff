package handlers

import (
	"log/slog"
	"net/http"

	"github.com/iudanet/chatsync/internal/server/storage"
	"github.com/iudanet/chatsync/pkg/api"
)

// ParticipantHandler обрабатывает запросы к участникам
type ParticipantHandler struct {
	logger  *slog.Logger
	storage storage.ParticipantStorage
}

// NewParticipantHandler создает новый handler для участников
func NewParticipantHandler(logger *slog.Logger, storage storage.ParticipantStorage) *ParticipantHandler {
	return &ParticipantHandler{
		logger:  logger,
		storage: storage,
	}
}

// List обрабатывает GET /api/v1/participants[?since=RFC3339]
func (h *ParticipantHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	since, err := parseSince(r)
	if err != nil {
		sendError(w, h.logger, "invalid since parameter", http.StatusBadRequest)
		return
	}

	participants, err := h.storage.ParticipantsSince(ctx, since)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list participants", slog.Any("error", err))
		sendError(w, h.logger, "internal server error", http.StatusInternalServerError)
		return
	}

	resp := api.ParticipantsResponse{Participants: make([]api.Participant, 0, len(participants))}
	for _, p := range participants {
		resp.Participants = append(resp.Participants, participantToAPI(p))
	}
	sendJSON(w, h.logger, resp, http.StatusOK)
}
