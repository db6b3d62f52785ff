package cli

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/chatsync/internal/client/api"
	"github.com/iudanet/chatsync/internal/client/chat"
	"github.com/iudanet/chatsync/internal/client/iocli"
	"github.com/iudanet/chatsync/internal/client/ledger"
	"github.com/iudanet/chatsync/internal/client/metrics"
	"github.com/iudanet/chatsync/internal/client/queue"
	"github.com/iudanet/chatsync/internal/client/state"
	syncengine "github.com/iudanet/chatsync/internal/client/sync"
	"github.com/iudanet/chatsync/internal/models"
)

var testNow = time.Date(2024, 4, 1, 12, 0, 0, 0, time.UTC)

// output собирает вывод CLI; callbacks watch приходят из других горутин
type output struct {
	b  strings.Builder
	mu sync.Mutex
}

func (o *output) mock() *iocli.IOMock {
	return &iocli.IOMock{
		PrintlnFunc: func(a ...any) {
			o.mu.Lock()
			defer o.mu.Unlock()
			fmt.Fprintln(&o.b, a...)
		},
		PrintfFunc: func(format string, a ...any) {
			o.mu.Lock()
			defer o.mu.Unlock()
			fmt.Fprintf(&o.b, format, a...)
		},
		WriteFunc: func(p []byte) (int, error) {
			o.mu.Lock()
			defer o.mu.Unlock()
			return o.b.Write(p)
		},
	}
}

func (o *output) String() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.b.String()
}

type fixture struct {
	cli          *Cli
	io           *iocli.IOMock
	out          *output
	client       *api.ClientAPIMock
	messages     *state.Messages
	participants *state.Participants
	session      *state.Session
	registry     *prometheus.Registry
}

func newFixture(t *testing.T, client *api.ClientAPIMock) *fixture {
	t.Helper()

	f := &fixture{
		out:          &output{},
		client:       client,
		messages:     state.NewMessages(nil, nil),
		participants: state.NewParticipants(nil, nil),
		session:      state.NewSession(nil, nil),
		registry:     prometheus.NewRegistry(),
	}

	rec, err := metrics.NewSync(f.registry)
	require.NoError(t, err)

	l := ledger.New(f.messages, nil)
	q := queue.New(queue.Config{ConflictDelay: time.Millisecond, MaxConflictRetries: 1}, nil)

	engCfg := syncengine.DefaultConfig()
	engCfg.ForegroundInterval = 20 * time.Millisecond
	engCfg.BackoffInitial = 10 * time.Millisecond
	engCfg.BackoffMax = 20 * time.Millisecond
	engCfg.RefreshMinSpacing = 0
	engine := syncengine.NewEngine(engCfg, syncengine.Deps{
		Client:       client,
		Messages:     f.messages,
		Participants: f.participants,
		Session:      f.session,
		Ledger:       l,
		Queue:        q,
		Metrics:      rec,
	}, nil)

	chatCfg := chat.DefaultConfig()
	chatCfg.Location = time.UTC
	chatCfg.ReactionRetryInitial = time.Millisecond
	chatCfg.ReactionRetryMax = 2 * time.Millisecond
	c := chat.New(chatCfg, chat.Deps{
		Client:       client,
		Messages:     f.messages,
		Participants: f.participants,
		Ledger:       l,
		Queue:        q,
		Engine:       engine,
	}, nil)
	t.Cleanup(c.Stop)

	f.io = f.out.mock()
	f.cli = New(f.io, Deps{
		Chat:         c,
		Engine:       engine,
		Messages:     f.messages,
		Participants: f.participants,
		Session:      f.session,
		Gatherer:     f.registry,
	}, nil)
	f.cli.now = func() time.Time { return testNow }
	return f
}

func sessionClient(messages ...models.Message) *api.ClientAPIMock {
	return &api.ClientAPIMock{
		FetchSessionInfoFunc: func(ctx context.Context) (*models.SessionInfo, error) {
			return &models.SessionInfo{SessionID: "s1", APIVersion: 2}, nil
		},
		FetchAllParticipantsFunc: func(ctx context.Context) ([]models.Participant, error) {
			return []models.Participant{{ID: "u1", Name: "Ann"}, {ID: models.LocalParticipantID, Name: "Me"}}, nil
		},
		FetchMessageDeltasFunc: func(ctx context.Context, since time.Time) ([]models.Message, error) {
			return messages, nil
		},
		FetchParticipantDeltasFunc: func(ctx context.Context, since time.Time) ([]models.Participant, error) {
			return nil, nil
		},
	}
}

func serverMessage(id, text string) models.Message {
	return models.Message{
		ID:        id,
		Text:      text,
		CreatedAt: time.Date(2024, 4, 1, 10, 30, 0, 0, time.UTC),
		Author:    models.ParticipantRef{ID: "u1"},
		Status:    models.StatusSent,
	}
}

func TestCli_Run_UnknownCommand(t *testing.T) {
	f := newFixture(t, &api.ClientAPIMock{})
	err := f.cli.Run(context.Background(), "register", nil)
	assert.ErrorIs(t, err, ErrUnknownCommand)
}

// TestCli_runSync_SessionReset проверяет отчёт о первой синхронизации
func TestCli_runSync_SessionReset(t *testing.T) {
	f := newFixture(t, sessionClient())

	require.NoError(t, f.cli.Run(context.Background(), "sync", nil))

	output := f.out.String()
	assert.Contains(t, output, "Starting synchronization with server...")
	assert.Contains(t, output, "Server session changed")
	assert.Contains(t, output, "Pulled participants:  2")
	assert.Contains(t, output, "Synchronization completed successfully")
	assert.Equal(t, "s1", f.session.Get().SessionID)
}

func TestCli_runSync_Deltas(t *testing.T) {
	f := newFixture(t, sessionClient(serverMessage("m1", "hi"), serverMessage("m2", "there")))
	f.session.Adopt(context.Background(), models.SessionInfo{SessionID: "s1", APIVersion: 2})

	require.NoError(t, f.cli.Run(context.Background(), "sync", nil))

	output := f.out.String()
	assert.NotContains(t, output, "Server session changed")
	assert.Contains(t, output, "Pulled messages:      2")
	assert.Contains(t, output, "Added locally:        2")
	assert.Equal(t, 2, f.messages.Len())
}

func TestCli_runSync_Failure(t *testing.T) {
	client := &api.ClientAPIMock{
		FetchSessionInfoFunc: func(ctx context.Context) (*models.SessionInfo, error) {
			return nil, &api.Error{Kind: api.KindServer, StatusCode: http.StatusServiceUnavailable}
		},
	}
	f := newFixture(t, client)

	err := f.cli.Run(context.Background(), "sync", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, api.ErrServer)
	assert.Contains(t, err.Error(), "synchronization failed")
	assert.NotContains(t, f.out.String(), "completed successfully")
}

func TestCli_runSend(t *testing.T) {
	client := &api.ClientAPIMock{
		SendMessageFunc: func(ctx context.Context, in models.SendInput) (*models.Message, error) {
			return &models.Message{ID: "srv-1", ClientID: in.ClientID, Text: in.Text, Status: models.StatusSent}, nil
		},
	}
	f := newFixture(t, client)

	err := f.cli.Run(context.Background(), "send", []string{"--reply-to", "m0", "hello", "world"})
	require.NoError(t, err)

	calls := client.SendMessageCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "hello world", calls[0].In.Text)
	assert.Equal(t, "m0", calls[0].In.ReplyToID)
	assert.Contains(t, f.out.String(), "Message sent (id: srv-1)")
}

func TestCli_runSend_PromptsForText(t *testing.T) {
	client := &api.ClientAPIMock{
		SendMessageFunc: func(ctx context.Context, in models.SendInput) (*models.Message, error) {
			return &models.Message{ID: "srv-2", ClientID: in.ClientID, Text: in.Text, Status: models.StatusSent}, nil
		},
	}
	f := newFixture(t, client)
	f.io.ReadInputFunc = func(prompt string) (string, error) {
		return "typed text", nil
	}

	require.NoError(t, f.cli.Run(context.Background(), "send", nil))

	require.Len(t, f.io.ReadInputCalls(), 1)
	assert.Equal(t, "Message: ", f.io.ReadInputCalls()[0].Prompt)
	assert.Equal(t, "typed text", client.SendMessageCalls()[0].In.Text)
}

// TestCli_FailedSendRetry проверяет подсказку после неудачной отправки и повтор
func TestCli_FailedSendRetry(t *testing.T) {
	var calls atomic.Int32
	client := &api.ClientAPIMock{
		SendMessageFunc: func(ctx context.Context, in models.SendInput) (*models.Message, error) {
			if calls.Add(1) == 1 {
				return nil, &api.Error{Kind: api.KindNetwork}
			}
			return &models.Message{ID: "srv-3", ClientID: in.ClientID, Text: in.Text, Status: models.StatusSent}, nil
		},
	}
	f := newFixture(t, client)

	err := f.cli.Run(context.Background(), "send", []string{"hello"})
	require.Error(t, err)
	assert.ErrorIs(t, err, api.ErrNetwork)

	all := f.messages.All()
	require.Len(t, all, 1)
	localID := all[0].ID
	assert.Contains(t, f.out.String(), "chatsync retry "+localID)

	require.NoError(t, f.cli.Run(context.Background(), "retry", []string{localID}))
	assert.Contains(t, f.out.String(), "Message sent (id: srv-3)")

	err = f.cli.Run(context.Background(), "retry", nil)
	assert.ErrorContains(t, err, "usage")
}

func TestCli_runDiscard(t *testing.T) {
	client := &api.ClientAPIMock{
		SendMessageFunc: func(ctx context.Context, in models.SendInput) (*models.Message, error) {
			return nil, &api.Error{Kind: api.KindServer, StatusCode: http.StatusBadGateway}
		},
	}
	f := newFixture(t, client)

	require.Error(t, f.cli.Run(context.Background(), "send", []string{"hello"}))
	localID := f.messages.All()[0].ID

	require.NoError(t, f.cli.Run(context.Background(), "discard", []string{localID}))
	assert.Contains(t, f.out.String(), "Message discarded")

	m, ok := f.messages.Get(localID)
	require.True(t, ok)
	assert.Equal(t, models.StatusDeleted, m.Status)

	err := f.cli.Run(context.Background(), "discard", []string{localID})
	assert.ErrorIs(t, err, chat.ErrNotRetryable)
}

func TestCli_runReact(t *testing.T) {
	tests := []struct {
		reactErr   error
		name       string
		args       []string
		wantOutput string
		wantErr    bool
	}{
		{
			name:       "accepted",
			args:       []string{"m1", "👍"},
			wantOutput: "Reacted 👍 to m1",
		},
		{
			name:       "rejected and reverted",
			args:       []string{"m1", "👍"},
			reactErr:   &api.Error{Kind: api.KindClient, StatusCode: http.StatusForbidden},
			wantOutput: "has been reverted",
			wantErr:    true,
		},
		{
			name:    "missing emoji",
			args:    []string{"m1"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &api.ClientAPIMock{
				SendReactionFunc: func(ctx context.Context, messageID, emoji string) error {
					return tt.reactErr
				},
			}
			f := newFixture(t, client)
			f.messages.Merge(context.Background(), []models.Message{serverMessage("m1", "hi")})

			err := f.cli.Run(context.Background(), "react", tt.args)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Contains(t, f.out.String(), tt.wantOutput)
			assert.Equal(t, !tt.wantErr, f.messages.HasReaction("m1", "👍", models.LocalParticipantID))
		})
	}
}

func TestCli_runStatus(t *testing.T) {
	t.Run("no session", func(t *testing.T) {
		f := newFixture(t, &api.ClientAPIMock{})

		require.NoError(t, f.cli.Run(context.Background(), "status", nil))

		output := f.out.String()
		assert.Contains(t, output, "Session: none")
		assert.Contains(t, output, "Messages:     0")
		assert.Contains(t, output, "All messages delivered")
	})

	t.Run("synced with failed send", func(t *testing.T) {
		f := newFixture(t, &api.ClientAPIMock{})
		ctx := context.Background()
		f.session.Adopt(ctx, models.SessionInfo{SessionID: "s1", APIVersion: 2})
		f.session.AdvanceCursor(ctx, testNow.Add(-3*time.Minute))
		f.participants.ReplaceAll(ctx, []models.Participant{{ID: "u1", Name: "Ann"}})

		failed := serverMessage(models.LocalIDPrefix+"x", "oops")
		failed.Status = models.StatusFailed
		f.messages.Merge(ctx, []models.Message{serverMessage("m1", "hi"), failed})

		require.NoError(t, f.cli.Run(ctx, "status", nil))

		output := f.out.String()
		assert.Contains(t, output, "Session:      s1 (API v2)")
		assert.Contains(t, output, "Last sync:    3 minutes ago")
		assert.Contains(t, output, "Messages:     2")
		assert.Contains(t, output, "Participants: 1")
		assert.Contains(t, output, "1 message(s) failed to send")
	})
}

// TestCli_runWatch проверяет вывод ленты после фоновой синхронизации
func TestCli_runWatch(t *testing.T) {
	f := newFixture(t, sessionClient(serverMessage("m1", "hello from Ann")))
	f.session.Adopt(context.Background(), models.SessionInfo{SessionID: "s1", APIVersion: 2})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- f.cli.Run(ctx, "watch", nil)
	}()

	assert.Eventually(t, func() bool {
		output := f.out.String()
		return strings.Contains(output, "hello from Ann") && strings.Contains(output, "[connected]")
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop")
	}

	output := f.out.String()
	assert.Contains(t, output, "No messages yet.")
	assert.Contains(t, output, "--- Mon, 01 Apr 2024 ---")
	assert.Contains(t, output, "u1:")
	assert.Contains(t, output, "[connected]")
	assert.Contains(t, output, "Stopped.")
}

func TestCli_runWatch_MetricsRequireGatherer(t *testing.T) {
	f := newFixture(t, &api.ClientAPIMock{})
	f.cli.gatherer = nil

	err := f.cli.Run(context.Background(), "watch", []string{"--metrics-addr", "127.0.0.1:0"})
	assert.ErrorContains(t, err, "metrics are not configured")
}

func TestCli_MetricsEndpoint(t *testing.T) {
	f := newFixture(t, sessionClient())
	require.NoError(t, f.cli.Run(context.Background(), "sync", nil))

	srv := httptest.NewServer(f.cli.metricsMux())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `chatsync_sync_polls_total{result="reset"} 1`)
}

func TestFormatMessage(t *testing.T) {
	edited := time.Date(2024, 4, 1, 11, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		want string
		msg  models.Message
	}{
		{
			name: "plain",
			msg:  serverMessage("m1", "hi"),
			want: "[10:30] #m1 hi",
		},
		{
			name: "reply with reactions",
			msg: func() models.Message {
				m := serverMessage("m2", "yes")
				m.ReplyTo = &models.MessageRef{ID: "m1"}
				m.Reactions = []models.Reaction{{Emoji: "👍", Reactors: []string{"u1", "u2"}, Count: 2}}
				return m
			}(),
			want: "[10:30] #m2 (reply to #m1) yes  👍 2",
		},
		{
			name: "edited and sending",
			msg: func() models.Message {
				m := serverMessage("local-1", "draft")
				m.EditedAt = &edited
				m.Status = models.StatusSending
				return m
			}(),
			want: "[10:30] #local-1 draft (edited) [sending]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatMessage(&tt.msg, time.UTC))
		})
	}
}
