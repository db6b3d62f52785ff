package models

import "time"

// LocalParticipantID is the reserved participant id of the local user.
const LocalParticipantID = "me"

// Participant represents a chat member.
type Participant struct {
	AvatarURL *string `json:"avatar_url,omitempty"`
	ID        string  `json:"id"`
	Name      string  `json:"name"`
}

// IsLocal reports whether the participant is the local user.
func (p Participant) IsLocal() bool {
	return p.ID == LocalParticipantID
}

// SessionInfo is the lightweight session descriptor returned by the server.
type SessionInfo struct {
	ServerTime time.Time `json:"server_time"` // ServerTime часы сервера в момент ответа, нулевое если сервер их не сообщает
	SessionID  string    `json:"session_id"`
	APIVersion int       `json:"api_version"`
}

// Session is the locally known server session.
// LastSyncCursor монотонно растёт и сбрасывается только при смене сессии.
type Session struct {
	LastSyncCursor time.Time `json:"last_sync_cursor"`
	SessionID      string    `json:"session_id"`
	APIVersion     int       `json:"api_version"`
}

// SendInput is the structured input of a message send.
type SendInput struct {
	ReplyToID string // ReplyToID пустая строка, если это не ответ
	Text      string
	ClientID  string // ClientID временный ID placeholder'а, передаётся серверу как nonce
}
