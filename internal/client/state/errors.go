package state

import "errors"

var (
	// ErrMessageNotFound возвращается, когда сообщение с указанным ID отсутствует
	ErrMessageNotFound = errors.New("message not found")
	// ErrDuplicateID возвращается при попытке добавить сообщение с уже существующим ID
	ErrDuplicateID = errors.New("message id already exists")
)

// Ключи, под которыми агрегаты сохраняют снимки
const (
	KeyMessages     = "messages"
	KeyParticipants = "participants"
	KeySession      = "session"
)
