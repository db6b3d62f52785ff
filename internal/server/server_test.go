package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/chatsync/internal/client/api"
	"github.com/iudanet/chatsync/internal/client/chat"
	"github.com/iudanet/chatsync/internal/client/ledger"
	"github.com/iudanet/chatsync/internal/client/queue"
	"github.com/iudanet/chatsync/internal/client/state"
	syncengine "github.com/iudanet/chatsync/internal/client/sync"
	"github.com/iudanet/chatsync/internal/models"
	"github.com/iudanet/chatsync/internal/server/storage/sqlite"
	wire "github.com/iudanet/chatsync/pkg/api"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T, cfg Config) (*Server, *httptest.Server) {
	t.Helper()

	st, err := sqlite.New(context.Background(), ":memory:")
	require.NoError(t, err)

	srv, err := NewWithStorage(cfg, st, discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = srv.Close()
	})

	_, err = srv.Seed(context.Background(), time.Now())
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, ts
}

func postJSON(t *testing.T, url, participant string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(data))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if participant != "" {
		req.Header.Set("X-Participant-ID", participant)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func TestServer_Seed(t *testing.T) {
	srv, _ := newTestServer(t, Config{})

	// повторный seed не дублирует сообщения
	n, err := srv.Seed(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Zero(t, n)

	all, err := srv.Storage().MessagesSince(context.Background(), time.Time{})
	require.NoError(t, err)
	assert.Len(t, all, len(seedMessages))
	assert.Equal(t, "Ann", all[0].Author.Name)
}

func TestServer_ClientRoundTrip(t *testing.T) {
	srv, ts := newTestServer(t, Config{})
	ctx := context.Background()
	client := api.NewClient(ts.URL)

	info, err := client.FetchSessionInfo(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, info.SessionID)
	assert.Equal(t, 1, info.APIVersion)

	participants, err := client.FetchAllParticipants(ctx)
	require.NoError(t, err)
	assert.Len(t, participants, len(SeedParticipants))

	messages, err := client.FetchMessageDeltas(ctx, time.Time{})
	require.NoError(t, err)
	assert.Len(t, messages, len(seedMessages))

	sent, err := client.SendMessage(ctx, models.SendInput{Text: "hello", ClientID: "local-1", ReplyToID: messages[0].ID})
	require.NoError(t, err)
	assert.Equal(t, "local-1", sent.ClientID)
	assert.Equal(t, models.LocalParticipantID, sent.Author.ID)
	assert.Equal(t, "You", sent.Author.Name)
	require.NotNil(t, sent.ReplyTo)
	assert.Equal(t, messages[0].ID, sent.ReplyTo.ID)

	t.Run("retried send is idempotent", func(t *testing.T) {
		again, err := client.SendMessage(ctx, models.SendInput{Text: "hello", ClientID: "local-1"})
		require.NoError(t, err)
		assert.Equal(t, sent.ID, again.ID)
	})

	t.Run("reaction shows up in deltas", func(t *testing.T) {
		cursor := time.Now()
		require.NoError(t, client.SendReaction(ctx, sent.ID, "👍"))

		changed, err := client.FetchMessageDeltas(ctx, cursor)
		require.NoError(t, err)
		require.Len(t, changed, 1)
		assert.Equal(t, sent.ID, changed[0].ID)
		assert.True(t, changed[0].HasReaction("👍", models.LocalParticipantID))
	})

	t.Run("errors are classified", func(t *testing.T) {
		err := client.SendReaction(ctx, "missing", "👍")
		assert.ErrorIs(t, err, api.ErrClient)

		_, err = client.SendMessage(ctx, models.SendInput{Text: ""})
		assert.ErrorIs(t, err, api.ErrClient)
	})

	t.Run("rotation changes the session", func(t *testing.T) {
		srv.RotateSession()
		rotated, err := client.FetchSessionInfo(ctx)
		require.NoError(t, err)
		assert.NotEqual(t, info.SessionID, rotated.SessionID)
	})
}

func TestServer_ParticipantHeader(t *testing.T) {
	_, ts := newTestServer(t, Config{})

	resp := postJSON(t, ts.URL+"/api/v1/messages", "ann", wire.SendMessageRequest{Text: "from ann"})
	defer func() {
		_ = resp.Body.Close()
	}()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created wire.SendMessageResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	assert.Equal(t, "ann", created.Message.Author.ID)
	assert.Equal(t, "Ann", created.Message.Author.Name)
}

func TestServer_ReactionConflict(t *testing.T) {
	srv, ts := newTestServer(t, Config{ReactionHold: 300 * time.Millisecond})

	all, err := srv.Storage().MessagesSince(context.Background(), time.Time{})
	require.NoError(t, err)
	url := ts.URL + "/api/v1/messages/" + all[0].ID + "/reactions"

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		codes []int
	)
	for _, who := range []string{"ann", "bob"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp := postJSON(t, url, who, wire.SendReactionRequest{Emoji: "🎉"})
			_ = resp.Body.Close()

			mu.Lock()
			codes = append(codes, resp.StatusCode)
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.ElementsMatch(t, []int{http.StatusOK, http.StatusConflict}, codes)
}

func TestServer_RateLimitAndMetrics(t *testing.T) {
	_, ts := newTestServer(t, Config{RatePerSecond: 0.001, RateBurst: 2})

	get := func(path string) int {
		req, err := http.NewRequest(http.MethodGet, ts.URL+path, nil)
		require.NoError(t, err)
		req.Header.Set("X-Participant-ID", "bob")
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		_ = resp.Body.Close()
		return resp.StatusCode
	}

	assert.Equal(t, http.StatusOK, get("/api/v1/session"))
	assert.Equal(t, http.StatusOK, get("/api/v1/session"))
	assert.Equal(t, http.StatusTooManyRequests, get("/api/v1/session"))

	// /metrics без заголовка участника: отдельный лимит по IP
	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer func() {
		_ = resp.Body.Close()
	}()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), `chatsync_http_requests_total{code="200",route="GET /api/v1/session"} 2`)
	assert.Contains(t, string(body), "chatsync_http_request_duration_seconds")
}

func TestServer_EngineSync(t *testing.T) {
	srv, ts := newTestServer(t, Config{})
	ctx := context.Background()
	client := api.NewClient(ts.URL)

	messages := state.NewMessages(nil, nil)
	participants := state.NewParticipants(nil, nil)
	session := state.NewSession(nil, nil)
	l := ledger.New(messages, nil)
	q := queue.New(queue.Config{ConflictDelay: 10 * time.Millisecond, MaxConflictRetries: 3}, nil)

	engine := syncengine.NewEngine(syncengine.DefaultConfig(), syncengine.Deps{
		Client:       client,
		Messages:     messages,
		Participants: participants,
		Session:      session,
		Ledger:       l,
		Queue:        q,
	}, nil)

	c := chat.New(chat.DefaultConfig(), chat.Deps{
		Client:       client,
		Messages:     messages,
		Participants: participants,
		Ledger:       l,
		Queue:        q,
		Engine:       engine,
	}, nil)
	t.Cleanup(c.Stop)

	res, err := engine.Poll(ctx)
	require.NoError(t, err)
	require.NoError(t, res.Err)
	assert.True(t, res.SessionReset)
	assert.Equal(t, len(SeedParticipants), participants.Len())

	res, err = engine.Poll(ctx)
	require.NoError(t, err)
	require.NoError(t, res.Err)
	assert.Equal(t, len(seedMessages), res.PulledMessages)
	assert.Equal(t, len(seedMessages), messages.Len())

	sent, err := c.Send(ctx, models.SendInput{Text: "synced"})
	require.NoError(t, err)
	assert.False(t, sent.IsLocal())

	require.NoError(t, c.React(ctx, sent.ID, "🔥"))

	res, err = engine.Poll(ctx)
	require.NoError(t, err)
	require.NoError(t, res.Err)
	assert.Equal(t, len(seedMessages)+1, messages.Len(), "confirmed send must not be duplicated")

	got, ok := messages.Get(sent.ID)
	require.True(t, ok)
	require.Len(t, got.Reactions, 1)
	assert.Equal(t, 1, got.Reactions[0].Count)

	t.Run("session rotation resets and reloads", func(t *testing.T) {
		srv.RotateSession()

		res, err := engine.Poll(ctx)
		require.NoError(t, err)
		assert.True(t, res.SessionReset)
		assert.Zero(t, messages.Len())

		res, err = engine.Poll(ctx)
		require.NoError(t, err)
		require.NoError(t, res.Err)
		assert.Equal(t, len(seedMessages)+1, messages.Len())
	})
}

func TestServer_Run(t *testing.T) {
	st, err := sqlite.New(context.Background(), ":memory:")
	require.NoError(t, err)
	srv, err := NewWithStorage(Config{Addr: "127.0.0.1:0", ShutdownTimeout: time.Second}, st, discardLogger())
	require.NoError(t, err)
	defer func() {
		_ = srv.Close()
	}()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- srv.Run(ctx)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
