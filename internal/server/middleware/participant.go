package middleware

import (
	"log/slog"
	"net/http"
	"unicode"

	"github.com/iudanet/chatsync/internal/server/handlers"
)

const (
	participantHeader = handlers.ParticipantHeader
	maxParticipantLen = 64
)

// ParticipantMiddleware кладёт id участника из заголовка X-Participant-ID в
// контекст запроса. Без заголовка запрос выполняется от имени локального пользователя.
func ParticipantMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(participantHeader)
			if id == "" {
				next.ServeHTTP(w, r)
				return
			}

			if !validParticipantID(id) {
				logger.Warn("Invalid participant id", "participant", id)
				writeError(w, http.StatusBadRequest, "invalid "+participantHeader+" header")
				return
			}

			next.ServeHTTP(w, r.WithContext(handlers.WithParticipantID(r.Context(), id)))
		})
	}
}

func validParticipantID(id string) bool {
	if len(id) > maxParticipantLen {
		return false
	}
	for _, r := range id {
		if unicode.IsSpace(r) || !unicode.IsPrint(r) {
			return false
		}
	}
	return true
}
