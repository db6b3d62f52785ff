package chat

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/chatsync/internal/client/api"
	"github.com/iudanet/chatsync/internal/client/ledger"
	"github.com/iudanet/chatsync/internal/client/queue"
	"github.com/iudanet/chatsync/internal/client/state"
	"github.com/iudanet/chatsync/internal/models"
	"github.com/iudanet/chatsync/internal/validation"
)

type fixture struct {
	chat     *Chat
	client   *api.ClientAPIMock
	messages *state.Messages
	ledger   *ledger.Ledger
}

func newFixture(t *testing.T, client *api.ClientAPIMock) *fixture {
	t.Helper()

	messages := state.NewMessages(nil, nil)
	participants := state.NewParticipants(nil, nil)
	participants.ReplaceAll(context.Background(), []models.Participant{
		{ID: models.LocalParticipantID, Name: "Me"},
	})
	l := ledger.New(messages, nil)
	q := queue.New(queue.Config{ConflictDelay: time.Millisecond, MaxConflictRetries: 3}, nil)

	cfg := DefaultConfig()
	cfg.Location = time.UTC
	cfg.ReactionRetryInitial = time.Millisecond
	cfg.ReactionRetryMax = 2 * time.Millisecond

	c := New(cfg, Deps{
		Client:       client,
		Messages:     messages,
		Participants: participants,
		Ledger:       l,
		Queue:        q,
	}, nil)
	t.Cleanup(c.Stop)

	return &fixture{chat: c, client: client, messages: messages, ledger: l}
}

func sentMessage(id string) models.Message {
	return models.Message{
		ID:        id,
		Text:      "hi",
		CreatedAt: time.Date(2024, 4, 1, 10, 0, 0, 0, time.UTC),
		Author:    models.ParticipantRef{ID: "u1"},
		Status:    models.StatusSent,
	}
}

// TestChat_SendConfirm проверяет сценарий отправки с подтверждением
func TestChat_SendConfirm(t *testing.T) {
	client := &api.ClientAPIMock{}
	f := newFixture(t, client)

	client.SendMessageFunc = func(ctx context.Context, in models.SendInput) (*models.Message, error) {
		// placeholder виден до ответа сервера
		all := f.messages.All()
		require.Len(t, all, 1)
		assert.Equal(t, models.StatusSending, all[0].Status)
		assert.True(t, all[0].IsLocal())
		assert.Equal(t, "Me", all[0].Author.Name)
		assert.Equal(t, all[0].ID, in.ClientID)

		return &models.Message{
			ID:        "srv-1",
			ClientID:  in.ClientID,
			Text:      in.Text,
			CreatedAt: time.Now(),
			Author:    models.ParticipantRef{ID: models.LocalParticipantID},
			Status:    models.StatusSent,
		}, nil
	}

	msg, err := f.chat.Send(context.Background(), models.SendInput{Text: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "srv-1", msg.ID)

	all := f.messages.All()
	require.Len(t, all, 1)
	assert.Equal(t, "srv-1", all[0].ID)
	assert.Equal(t, models.StatusSent, all[0].Status)
	assert.Equal(t, "hello", all[0].Text)
}

func TestChat_SendWithReply(t *testing.T) {
	client := &api.ClientAPIMock{
		SendMessageFunc: func(ctx context.Context, in models.SendInput) (*models.Message, error) {
			assert.Equal(t, "m0", in.ReplyToID)
			return &models.Message{ID: "srv-2", Text: in.Text, ReplyTo: &models.MessageRef{ID: "m0"}}, nil
		},
	}
	f := newFixture(t, client)

	msg, err := f.chat.Send(context.Background(), models.SendInput{Text: "re", ReplyToID: "m0"})
	require.NoError(t, err)
	require.NotNil(t, msg.ReplyTo)
	assert.Equal(t, "m0", msg.ReplyTo.ID)
	assert.True(t, msg.ClientID != "")
}

func TestChat_SendInvalidText(t *testing.T) {
	f := newFixture(t, &api.ClientAPIMock{})

	_, err := f.chat.Send(context.Background(), models.SendInput{Text: "   "})
	assert.Error(t, err)
	assert.Zero(t, f.messages.Len())
	assert.Empty(t, f.client.SendMessageCalls())
}

// TestChat_FailedSendAndRetry проверяет статус failed и повтор с тем же placeholder
func TestChat_FailedSendAndRetry(t *testing.T) {
	var calls atomic.Int32
	client := &api.ClientAPIMock{
		SendMessageFunc: func(ctx context.Context, in models.SendInput) (*models.Message, error) {
			if calls.Add(1) == 1 {
				return nil, &api.Error{Kind: api.KindServer, StatusCode: http.StatusServiceUnavailable}
			}
			return &models.Message{ID: "srv-1", ClientID: in.ClientID, Text: in.Text, Status: models.StatusSent}, nil
		},
	}
	f := newFixture(t, client)

	_, err := f.chat.Send(context.Background(), models.SendInput{Text: "hello"})
	require.Error(t, err)
	assert.ErrorIs(t, err, api.ErrServer)

	all := f.messages.All()
	require.Len(t, all, 1)
	localID := all[0].ID
	assert.Equal(t, models.StatusFailed, all[0].Status)
	assert.Equal(t, "hello", all[0].Text)

	msg, err := f.chat.RetrySend(context.Background(), localID)
	require.NoError(t, err)
	assert.Equal(t, "srv-1", msg.ID)

	sendCalls := client.SendMessageCalls()
	require.Len(t, sendCalls, 2)
	assert.Equal(t, sendCalls[0].In, sendCalls[1].In)
	assert.Equal(t, localID, sendCalls[1].In.ClientID)

	all = f.messages.All()
	require.Len(t, all, 1)
	assert.Equal(t, models.StatusSent, all[0].Status)

	// подтверждённое сообщение повторить нельзя
	_, err = f.chat.RetrySend(context.Background(), localID)
	assert.ErrorIs(t, err, ErrNotRetryable)
}

// TestChat_RetrySendAfterRestart проверяет повтор отправки, сохранённой прошлым запуском
func TestChat_RetrySendAfterRestart(t *testing.T) {
	client := &api.ClientAPIMock{
		SendMessageFunc: func(ctx context.Context, in models.SendInput) (*models.Message, error) {
			return &models.Message{ID: "srv-9", ClientID: in.ClientID, Text: in.Text, Status: models.StatusSent}, nil
		},
	}
	f := newFixture(t, client)

	localID := models.LocalIDPrefix + "persisted"
	require.NoError(t, f.messages.Add(context.Background(), models.Message{
		ID:        localID,
		ClientID:  localID,
		Text:      "from yesterday",
		CreatedAt: time.Date(2024, 4, 1, 10, 0, 0, 0, time.UTC),
		Author:    models.ParticipantRef{ID: models.LocalParticipantID},
		ReplyTo:   &models.MessageRef{ID: "m0"},
		Status:    models.StatusFailed,
	}))

	msg, err := f.chat.RetrySend(context.Background(), localID)
	require.NoError(t, err)
	assert.Equal(t, "srv-9", msg.ID)

	calls := client.SendMessageCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, models.SendInput{Text: "from yesterday", ReplyToID: "m0", ClientID: localID}, calls[0].In)
	assert.Equal(t, 1, f.messages.Len())
}

func TestChat_Discard(t *testing.T) {
	client := &api.ClientAPIMock{
		SendMessageFunc: func(ctx context.Context, in models.SendInput) (*models.Message, error) {
			return nil, &api.Error{Kind: api.KindNetwork}
		},
	}
	f := newFixture(t, client)

	_, err := f.chat.Send(context.Background(), models.SendInput{Text: "hello"})
	require.Error(t, err)
	localID := f.messages.All()[0].ID

	require.NoError(t, f.chat.Discard(context.Background(), localID))

	m, ok := f.messages.Get(localID)
	require.True(t, ok)
	assert.Equal(t, models.StatusDeleted, m.Status)
	assert.Empty(t, f.chat.Groups())

	assert.ErrorIs(t, f.chat.Discard(context.Background(), localID), ErrNotRetryable)
}

func TestChat_ReactConfirmed(t *testing.T) {
	client := &api.ClientAPIMock{
		SendReactionFunc: func(ctx context.Context, messageID, emoji string) error {
			return nil
		},
	}
	f := newFixture(t, client)
	f.messages.Merge(context.Background(), []models.Message{sentMessage("m1")})

	require.NoError(t, f.chat.React(context.Background(), "m1", "👍"))

	assert.True(t, f.messages.HasReaction("m1", "👍", models.LocalParticipantID))
	assert.Zero(t, f.ledger.Len())

	err := f.chat.React(context.Background(), "m1", "👍")
	assert.ErrorIs(t, err, ledger.ErrDuplicate)
	assert.Len(t, client.SendReactionCalls(), 1)
}

func TestChat_ReactRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	client := &api.ClientAPIMock{
		SendReactionFunc: func(ctx context.Context, messageID, emoji string) error {
			if calls.Add(1) < 3 {
				return &api.Error{Kind: api.KindServer, StatusCode: http.StatusInternalServerError}
			}
			return nil
		},
	}
	f := newFixture(t, client)
	f.messages.Merge(context.Background(), []models.Message{sentMessage("m1")})

	require.NoError(t, f.chat.React(context.Background(), "m1", "🔥"))
	assert.Equal(t, int32(3), calls.Load())
	assert.True(t, f.messages.HasReaction("m1", "🔥", models.LocalParticipantID))
}

func TestChat_ReactConflictRequeued(t *testing.T) {
	var calls atomic.Int32
	client := &api.ClientAPIMock{
		SendReactionFunc: func(ctx context.Context, messageID, emoji string) error {
			if calls.Add(1) == 1 {
				return &api.Error{Kind: api.KindConflict, StatusCode: http.StatusConflict}
			}
			return nil
		},
	}
	f := newFixture(t, client)
	f.messages.Merge(context.Background(), []models.Message{sentMessage("m1")})

	require.NoError(t, f.chat.React(context.Background(), "m1", "👍"))
	assert.Equal(t, int32(2), calls.Load())
}

// TestChat_ReactRevertedOnFailure проверяет откат реакции при отказе сервера
func TestChat_ReactRevertedOnFailure(t *testing.T) {
	tests := []struct {
		err       error
		name      string
		wantCalls int32
	}{
		{
			name:      "client error is not retried",
			err:       &api.Error{Kind: api.KindClient, StatusCode: http.StatusForbidden},
			wantCalls: 1,
		},
		{
			name:      "server errors exhaust retries",
			err:       &api.Error{Kind: api.KindServer, StatusCode: http.StatusBadGateway},
			wantCalls: 4,
		},
		{
			name:      "conflicts exhaust queue retries",
			err:       &api.Error{Kind: api.KindConflict, StatusCode: http.StatusConflict},
			wantCalls: 4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			client := &api.ClientAPIMock{
				SendReactionFunc: func(ctx context.Context, messageID, emoji string) error {
					calls.Add(1)
					return tt.err
				},
			}
			f := newFixture(t, client)
			msg := sentMessage("m1")
			msg.Reactions = []models.Reaction{{Emoji: "👍", Reactors: []string{"u1"}, Count: 1}}
			f.messages.Merge(context.Background(), []models.Message{msg})
			before, _ := f.messages.Get("m1")

			err := f.chat.React(context.Background(), "m1", "👍")

			require.Error(t, err)
			assert.ErrorIs(t, err, ErrReactionFailed)
			assert.True(t, errors.Is(err, tt.err))
			assert.Equal(t, tt.wantCalls, calls.Load())

			after, _ := f.messages.Get("m1")
			assert.Equal(t, before.Reactions, after.Reactions)
			assert.Zero(t, f.ledger.Len())
		})
	}
}

func TestChat_ReactValidation(t *testing.T) {
	f := newFixture(t, &api.ClientAPIMock{})
	f.messages.Merge(context.Background(), []models.Message{sentMessage("m1")})

	err := f.chat.React(context.Background(), "m1", "nope")
	assert.ErrorIs(t, err, validation.ErrInvalidReaction)

	err = f.chat.React(context.Background(), "missing", "👍")
	assert.ErrorIs(t, err, ledger.ErrMessageNotFound)
}

func TestChat_GroupsAndOnChange(t *testing.T) {
	f := newFixture(t, &api.ClientAPIMock{})

	var changes atomic.Int32
	f.chat.OnChange(func() { changes.Add(1) })

	a := sentMessage("m1")
	b := sentMessage("m2")
	b.CreatedAt = a.CreatedAt.Add(time.Minute)
	c := sentMessage("m3")
	c.Author = models.ParticipantRef{ID: "u2"}
	c.CreatedAt = a.CreatedAt.Add(2 * time.Minute)
	f.messages.Merge(context.Background(), []models.Message{a, b, c})

	groups := f.chat.Groups()
	require.Len(t, groups, 2)
	assert.Len(t, groups[0].Messages, 2)
	assert.True(t, groups[0].DateSeparator)
	assert.False(t, groups[1].DateSeparator)
	assert.Equal(t, int32(1), changes.Load())
}
