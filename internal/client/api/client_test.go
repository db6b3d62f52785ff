package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/iudanet/chatsync/internal/models"
	"github.com/iudanet/chatsync/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNewClient проверяет создание нового клиента
func TestNewClient(t *testing.T) {
	baseURL := "http://localhost:8080"
	client := NewClient(baseURL)

	assert.NotNil(t, client)
	assert.Equal(t, baseURL, client.baseURL)
	assert.NotNil(t, client.httpClient)
	assert.Equal(t, 30*time.Second, client.httpClient.Timeout)

	client = NewClient(baseURL, WithTimeout(5*time.Second))
	assert.Equal(t, 5*time.Second, client.httpClient.Timeout)
}

func TestClient_FetchSessionInfo(t *testing.T) {
	serverTime := time.Date(2024, 3, 1, 12, 0, 0, 123, time.UTC)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/v1/session", r.URL.Path)

		_ = json.NewEncoder(w).Encode(api.SessionResponse{SessionID: "s-1", APIVersion: 2, ServerTime: serverTime})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	info, err := client.FetchSessionInfo(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "s-1", info.SessionID)
	assert.Equal(t, 2, info.APIVersion)
	assert.True(t, info.ServerTime.Equal(serverTime))
}

func TestClient_FetchSessionInfo_WithoutServerTime(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"session_id":"s-1","api_version":1}`))
	}))
	defer server.Close()

	info, err := NewClient(server.URL).FetchSessionInfo(context.Background())
	require.NoError(t, err)
	assert.True(t, info.ServerTime.IsZero())
}

func TestClient_FetchMessageDeltas(t *testing.T) {
	since := time.Date(2024, 3, 1, 12, 0, 0, 500, time.UTC)
	created := time.Date(2024, 3, 1, 12, 5, 0, 0, time.UTC)

	tests := []struct {
		name      string
		since     time.Time
		wantQuery string
	}{
		{name: "zero cursor fetches everything", since: time.Time{}, wantQuery: ""},
		{name: "cursor is sent as RFC3339Nano", since: since, wantQuery: since.Format(time.RFC3339Nano)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/api/v1/messages", r.URL.Path)
				assert.Equal(t, tt.wantQuery, r.URL.Query().Get("since"))

				_ = json.NewEncoder(w).Encode(api.MessagesResponse{Messages: []api.Message{
					{
						ID:        "m1",
						ClientID:  "local-abc",
						Text:      "hello",
						Author:    api.ParticipantRef{ID: "u1", Name: "Ann"},
						CreatedAt: created,
						ReplyToID: "m0",
						Reactions: []api.Reaction{
							// некорректный счётчик и повтор участника
							{Emoji: "👍", Reactors: []string{"u1", "u1", "u2"}, Count: 7},
						},
					},
					{ID: "m2", Text: "bye", Status: "deleted", Author: api.ParticipantRef{ID: "u2"}},
				}})
			}))
			defer server.Close()

			client := NewClient(server.URL)
			messages, err := client.FetchMessageDeltas(context.Background(), tt.since)
			require.NoError(t, err)
			require.Len(t, messages, 2)

			m := messages[0]
			assert.Equal(t, "m1", m.ID)
			assert.Equal(t, "local-abc", m.ClientID)
			assert.Equal(t, models.StatusSent, m.Status)
			assert.True(t, m.CreatedAt.Equal(created))
			require.NotNil(t, m.ReplyTo)
			assert.Equal(t, "m0", m.ReplyTo.ID)
			require.Len(t, m.Reactions, 1)
			assert.Equal(t, []string{"u1", "u2"}, m.Reactions[0].Reactors)
			assert.Equal(t, 2, m.Reactions[0].Count)

			assert.Equal(t, models.StatusDeleted, messages[1].Status)
			assert.Nil(t, messages[1].ReplyTo)
		})
	}
}

func TestClient_FetchParticipants(t *testing.T) {
	avatar := "https://example.com/a.png"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/participants", r.URL.Path)
		_ = json.NewEncoder(w).Encode(api.ParticipantsResponse{Participants: []api.Participant{
			{ID: "u1", Name: "Ann", AvatarURL: &avatar},
			{ID: "u2", Name: "Bob"},
		}})
	}))
	defer server.Close()

	client := NewClient(server.URL)

	all, err := client.FetchAllParticipants(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.NotNil(t, all[0].AvatarURL)
	assert.Equal(t, avatar, *all[0].AvatarURL)

	delta, err := client.FetchParticipantDeltas(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Len(t, delta, 2)
}

func TestClient_SendMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/messages", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req api.SendMessageRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "hi", req.Text)
		assert.Equal(t, "local-1", req.ClientID)
		assert.Equal(t, "m9", req.ReplyToID)

		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(api.SendMessageResponse{Message: api.Message{
			ID:       "srv-1",
			ClientID: req.ClientID,
			Text:     req.Text,
			Author:   api.ParticipantRef{ID: models.LocalParticipantID},
		}})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	msg, err := client.SendMessage(context.Background(), models.SendInput{
		Text:      "hi",
		ClientID:  "local-1",
		ReplyToID: "m9",
	})

	require.NoError(t, err)
	assert.Equal(t, "srv-1", msg.ID)
	assert.Equal(t, "local-1", msg.ClientID)
	assert.Equal(t, models.StatusSent, msg.Status)
}

func TestClient_SendReaction(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/messages/a%2Fb/reactions", r.URL.EscapedPath())

		var req api.SendReactionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "🔥", req.Emoji)

		_ = json.NewEncoder(w).Encode(api.SendReactionResponse{MessageID: "a/b", Emoji: req.Emoji, OK: true})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	err := client.SendReaction(context.Background(), "a/b", "🔥")
	require.NoError(t, err)
}

// TestClient_ErrorCategories проверяет классификацию ошибок по статусу ответа
func TestClient_ErrorCategories(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantKind  ErrorKind
		retryable bool
	}{
		{name: "conflict", status: http.StatusConflict, body: `{"error":"conflict"}`, wantKind: KindConflict},
		{name: "bad request", status: http.StatusBadRequest, body: `{"error":"bad","message":"text too long"}`, wantKind: KindClient},
		{name: "not found", status: http.StatusNotFound, body: "nope", wantKind: KindClient},
		{name: "server error", status: http.StatusInternalServerError, body: "", wantKind: KindServer, retryable: true},
		{name: "unavailable", status: http.StatusServiceUnavailable, body: "", wantKind: KindServer, retryable: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := NewClient(server.URL)
			_, err := client.FetchSessionInfo(context.Background())
			require.Error(t, err)

			assert.Equal(t, tt.wantKind, KindOf(err))
			assert.Equal(t, tt.retryable, IsRetryable(err))

			var apiErr *Error
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tt.status, apiErr.StatusCode)
		})
	}
}

func TestClient_ErrorMessageFromBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"bad_request","message":"text too long"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	err := client.SendReaction(context.Background(), "m1", "👍")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "text too long")
	assert.ErrorIs(t, err, ErrClient)
	assert.ErrorIs(t, err, &Error{Kind: KindClient, StatusCode: http.StatusBadRequest})
	assert.NotErrorIs(t, err, &Error{Kind: KindClient, StatusCode: http.StatusNotFound})
}

func TestClient_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := NewClient(url)
	_, err := client.FetchSessionInfo(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNetwork)
	assert.True(t, IsRetryable(err))
}

func TestClient_InvalidJSONIsServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("{not json"))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	_, err := client.FetchMessageDeltas(context.Background(), time.Time{})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrServer)
}

func TestClient_CanceledContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewClient(server.URL)
	_, err := client.FetchSessionInfo(ctx)

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, ErrorKind(0), KindOf(err))
}
