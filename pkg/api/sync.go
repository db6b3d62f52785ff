package api

import "time"

// SessionResponse представляет дескриптор серверной сессии
type SessionResponse struct {
	ServerTime time.Time `json:"server_time,omitzero"` // часы сервера; клиент берёт их как курсор дельт
	SessionID  string    `json:"session_id"`           // идентификатор сессии; смена означает сброс состояния
	APIVersion int       `json:"api_version"`          // версия API сервера
}

// ParticipantRef ссылка на автора сообщения
type ParticipantRef struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// Reaction агрегированная реакция на сообщение
type Reaction struct {
	Emoji    string   `json:"emoji"`
	Reactors []string `json:"reactors"`
	Count    int      `json:"count"`
}

// Message представляет сообщение в формате API
type Message struct {
	CreatedAt time.Time      `json:"created_at"`
	EditedAt  *time.Time     `json:"edited_at,omitempty"`
	Author    ParticipantRef `json:"author"`
	ID        string         `json:"id"`
	ClientID  string         `json:"client_id,omitempty"` // nonce клиента, с которым сообщение было отправлено
	Text      string         `json:"text"`
	Status    string         `json:"status,omitempty"` // "sent" или "deleted"
	ReplyToID string         `json:"reply_to_id,omitempty"`
	Reactions []Reaction     `json:"reactions,omitempty"`
}

// Participant представляет участника чата в формате API
type Participant struct {
	AvatarURL *string `json:"avatar_url,omitempty"`
	ID        string  `json:"id"`
	Name      string  `json:"name"`
}

// MessagesResponse ответ на запрос сообщений, изменённых после курсора
type MessagesResponse struct {
	Messages []Message `json:"messages"`
}

// ParticipantsResponse ответ на запрос участников
type ParticipantsResponse struct {
	Participants []Participant `json:"participants"`
}

// SendMessageRequest запрос на отправку сообщения
type SendMessageRequest struct {
	Text      string `json:"text"`
	ClientID  string `json:"client_id,omitempty"`
	ReplyToID string `json:"reply_to_id,omitempty"`
}

// SendMessageResponse ответ с созданным сообщением
type SendMessageResponse struct {
	Message Message `json:"message"`
}

// SendReactionRequest запрос на добавление реакции
type SendReactionRequest struct {
	Emoji string `json:"emoji"`
}

// SendReactionResponse подтверждение реакции
type SendReactionResponse struct {
	MessageID string `json:"message_id"`
	Emoji     string `json:"emoji"`
	OK        bool   `json:"ok"`
}

// EditMessageRequest запрос на изменение текста сообщения
type EditMessageRequest struct {
	Text string `json:"text"`
}
