// Package chat is the surface a UI shell binds to: optimistic message sends,
// optimistic reactions and the grouped message view.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	stdsync "sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/iudanet/chatsync/internal/client/api"
	"github.com/iudanet/chatsync/internal/client/grouping"
	"github.com/iudanet/chatsync/internal/client/ledger"
	"github.com/iudanet/chatsync/internal/client/queue"
	"github.com/iudanet/chatsync/internal/client/state"
	syncengine "github.com/iudanet/chatsync/internal/client/sync"
	"github.com/iudanet/chatsync/internal/models"
	"github.com/iudanet/chatsync/internal/validation"
)

var (
	// ErrReactionFailed оборачивает причину неудачной реакции; UI предлагает повторить
	ErrReactionFailed = errors.New("reaction failed")
	// ErrNotRetryable возвращается для сообщений, которые не в статусе failed
	ErrNotRetryable = errors.New("message is not a failed send")
)

// Config параметры фасада
type Config struct {
	Location             *time.Location // часовой пояс для группировки по дням
	ReactionRetryInitial time.Duration
	ReactionRetryMax     time.Duration
	ReactionMaxRetries   uint64
	LedgerMaxAge         time.Duration // возраст, после которого запись ledger считается потерянной
	LedgerSweepInterval  time.Duration
}

// DefaultConfig возвращает параметры по умолчанию
func DefaultConfig() Config {
	return Config{
		Location:             time.Local,
		ReactionRetryInitial: 500 * time.Millisecond,
		ReactionRetryMax:     5 * time.Second,
		ReactionMaxRetries:   3,
		LedgerMaxAge:         2 * time.Minute,
		LedgerSweepInterval:  30 * time.Second,
	}
}

// Deps collaborators of the facade. Engine is optional.
type Deps struct {
	Client       api.ClientAPI
	Messages     *state.Messages
	Participants *state.Participants
	Ledger       *ledger.Ledger
	Queue        *queue.Queue
	Engine       *syncengine.Engine
}

// Chat is the chat facade.
type Chat struct {
	client       api.ClientAPI
	messages     *state.Messages
	participants *state.Participants
	ledger       *ledger.Ledger
	queue        *queue.Queue
	engine       *syncengine.Engine
	logger       *slog.Logger
	now          func() time.Time
	inputs       map[string]models.SendInput // исходный ввод неподтверждённых отправок
	cfg          Config
	mu           stdsync.Mutex
}

// New создает фасад чата
func New(cfg Config, deps Deps, logger *slog.Logger) *Chat {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	return &Chat{
		client:       deps.Client,
		messages:     deps.Messages,
		participants: deps.Participants,
		ledger:       deps.Ledger,
		queue:        deps.Queue,
		engine:       deps.Engine,
		logger:       logger,
		now:          time.Now,
		inputs:       make(map[string]models.SendInput),
		cfg:          cfg,
	}
}

// Start starts the sync engine and the ledger sweeper.
func (c *Chat) Start(ctx context.Context) error {
	if c.cfg.LedgerSweepInterval > 0 {
		go c.ledger.Run(ctx, c.cfg.LedgerSweepInterval, c.cfg.LedgerMaxAge)
	}
	if c.engine == nil {
		return nil
	}
	return c.engine.Start(ctx)
}

// Stop stops polling and the request queue.
func (c *Chat) Stop() {
	if c.engine != nil {
		c.engine.Stop()
	}
	c.queue.Close()
}

// Send inserts a placeholder with status sending and delivers the message.
// On success the placeholder is replaced by the server message; on failure it
// stays in the list with status failed and can be retried or discarded.
func (c *Chat) Send(ctx context.Context, in models.SendInput) (*models.Message, error) {
	if err := validation.ValidateMessageText(in.Text); err != nil {
		return nil, err
	}

	localID := models.LocalIDPrefix + uuid.NewString()
	in.ClientID = localID

	placeholder := models.Message{
		ID:        localID,
		ClientID:  localID,
		Text:      in.Text,
		CreatedAt: c.now(),
		Author:    c.localAuthor(),
		Status:    models.StatusSending,
	}
	if in.ReplyToID != "" {
		placeholder.ReplyTo = &models.MessageRef{ID: in.ReplyToID}
	}

	if err := c.messages.Add(ctx, placeholder); err != nil {
		return nil, fmt.Errorf("failed to add placeholder: %w", err)
	}

	c.mu.Lock()
	c.inputs[localID] = in
	c.mu.Unlock()

	if c.engine != nil {
		c.engine.NotifyActivity()
	}

	return c.deliver(ctx, localID, in)
}

// RetrySend re-sends a failed message with its original input and the same
// placeholder id.
func (c *Chat) RetrySend(ctx context.Context, localID string) (*models.Message, error) {
	m, found := c.messages.Get(localID)
	if !found || m.Status != models.StatusFailed {
		return nil, fmt.Errorf("retry %s: %w", localID, ErrNotRetryable)
	}

	c.mu.Lock()
	in, ok := c.inputs[localID]
	c.mu.Unlock()
	if !ok {
		// ввод не пережил перезапуск: восстанавливаем его из placeholder
		in = models.SendInput{Text: m.Text, ClientID: localID}
		if m.ReplyTo != nil {
			in.ReplyToID = m.ReplyTo.ID
		}
	}

	if err := c.messages.SetStatus(ctx, localID, models.StatusSending); err != nil {
		return nil, err
	}
	return c.deliver(ctx, localID, in)
}

// Discard flags a failed send as deleted.
func (c *Chat) Discard(ctx context.Context, localID string) error {
	m, found := c.messages.Get(localID)
	if !found || m.Status != models.StatusFailed {
		return fmt.Errorf("discard %s: %w", localID, ErrNotRetryable)
	}

	c.mu.Lock()
	delete(c.inputs, localID)
	c.mu.Unlock()

	return c.messages.SetStatus(ctx, localID, models.StatusDeleted)
}

func (c *Chat) deliver(ctx context.Context, localID string, in models.SendInput) (*models.Message, error) {
	msg, err := c.client.SendMessage(ctx, in)
	if err != nil {
		c.logger.Warn("Message send failed",
			"local_id", localID,
			"kind", api.KindOf(err),
			"error", err)
		if statusErr := c.messages.SetStatus(ctx, localID, models.StatusFailed); statusErr != nil {
			// placeholder мог исчезнуть при сбросе сессии
			c.logger.Debug("Failed send placeholder is gone", "local_id", localID, "error", statusErr)
		}
		return nil, fmt.Errorf("send message: %w", err)
	}

	confirmed := msg.Clone()
	if confirmed.ClientID == "" {
		confirmed.ClientID = localID
	}
	c.messages.ReplaceLocal(ctx, localID, confirmed)

	c.mu.Lock()
	delete(c.inputs, localID)
	c.mu.Unlock()

	c.logger.Debug("Message sent", "local_id", localID, "id", confirmed.ID)
	return &confirmed, nil
}

// React applies the local user's reaction optimistically and sends it through
// the request queue. On failure the reaction is reverted and the returned
// error wraps ErrReactionFailed.
func (c *Chat) React(ctx context.Context, messageID, emoji string) error {
	if err := validation.ValidateReaction(emoji); err != nil {
		return err
	}

	token, err := c.ledger.Begin(ctx, messageID, emoji, models.LocalParticipantID)
	if err != nil {
		return err
	}

	if c.engine != nil {
		c.engine.NotifyActivity()
	}

	err = c.queue.Enqueue(ctx, func(ctx context.Context) error {
		return c.sendReaction(ctx, messageID, emoji)
	})
	if err == nil {
		c.ledger.Confirm(token)
		return nil
	}

	c.ledger.Revert(ctx, token)
	c.logger.Warn("Reaction reverted",
		"message_id", messageID,
		"emoji", emoji,
		"error", err)
	return fmt.Errorf("%w: %w", ErrReactionFailed, err)
}

// sendReaction retries network and server errors with backoff. A conflict is
// returned as is so that the queue requeues the operation.
func (c *Chat) sendReaction(ctx context.Context, messageID, emoji string) error {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     c.cfg.ReactionRetryInitial,
		RandomizationFactor: backoff.DefaultRandomizationFactor,
		Multiplier:          backoff.DefaultMultiplier,
		MaxInterval:         c.cfg.ReactionRetryMax,
		MaxElapsedTime:      0,
		Stop:                backoff.Stop,
		Clock:               backoff.SystemClock,
	}
	b.Reset()

	op := func() error {
		err := c.client.SendReaction(ctx, messageID, emoji)
		if err == nil || api.IsRetryable(err) {
			return err
		}
		return backoff.Permanent(err)
	}

	notify := func(err error, delay time.Duration) {
		c.logger.Debug("Reaction send failed, retrying",
			"message_id", messageID,
			"delay", delay,
			"error", err)
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(b, c.cfg.ReactionMaxRetries), ctx)
	return backoff.RetryNotify(op, policy, notify)
}

// Groups returns the grouped view of visible messages.
func (c *Chat) Groups() []grouping.MessageGroup {
	return grouping.Group(grouping.Visible(c.messages.All()), c.cfg.Location)
}

// OnChange регистрирует callback на изменение сообщений
func (c *Chat) OnChange(fn func()) {
	c.messages.OnChange(fn)
}

// Refresh запрашивает ручное обновление
func (c *Chat) Refresh() {
	if c.engine != nil {
		c.engine.Refresh()
	}
}

// SetForeground сообщает о видимости приложения
func (c *Chat) SetForeground(foreground bool) {
	if c.engine != nil {
		c.engine.SetForeground(foreground)
	}
}

// ConnectionStatus возвращает статус соединения движка синхронизации
func (c *Chat) ConnectionStatus() syncengine.ConnectionStatus {
	if c.engine == nil {
		return syncengine.StatusDisconnected
	}
	return c.engine.ConnectionStatus()
}

func (c *Chat) localAuthor() models.ParticipantRef {
	ref := models.ParticipantRef{ID: models.LocalParticipantID}
	if p, ok := c.participants.Get(models.LocalParticipantID); ok {
		ref.Name = p.Name
	}
	return ref
}
