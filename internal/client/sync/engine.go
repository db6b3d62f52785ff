// Package sync keeps local chat state eventually consistent with the server by
// polling: it detects session rotation, merges deltas, and adapts the polling
// interval to app visibility, user activity and consecutive failures.
package sync

import (
	"context"
	"log/slog"
	stdsync "sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"github.com/iudanet/chatsync/internal/client/api"
	"github.com/iudanet/chatsync/internal/client/state"
)

// Ledger is the part of the optimistic ledger the engine drives.
type Ledger interface {
	Reapply(ctx context.Context) int
	Reset() int
}

// Queue is the part of the request queue the engine drives.
type Queue interface {
	Clear() int
}

// Deps collaborators of the engine
type Deps struct {
	Client       api.ClientAPI
	Messages     *state.Messages
	Participants *state.Participants
	Session      *state.Session
	Ledger       Ledger
	Queue        Queue
	Metrics      Recorder
}

type trigger uint8

const (
	triggerTimer trigger = iota
	triggerManual
	triggerRefresh
	triggerForeground
)

func (t trigger) String() string {
	switch t {
	case triggerTimer:
		return "timer"
	case triggerManual:
		return "manual"
	case triggerRefresh:
		return "refresh"
	default:
		return "foreground"
	}
}

// Engine is the polling state machine.
type Engine struct {
	client       api.ClientAPI
	messages     *state.Messages
	participants *state.Participants
	session      *state.Session
	ledger       Ledger
	queue        Queue
	metrics      Recorder
	logger       *slog.Logger
	now          func() time.Time

	limiter *rate.Limiter
	backoff *backoff.ExponentialBackOff

	baseCtx      context.Context
	timer        *time.Timer
	refreshTimer *time.Timer
	lastActivity time.Time
	statusFns    []func(ConnectionStatus)
	pollFns      []func(PollResult)
	cfg          Config
	failures     int
	retries      int
	mu           stdsync.Mutex
	phase        Phase
	status       ConnectionStatus

	polling        bool
	trailing       bool
	refreshPending bool
	running        bool
	stopped        bool
	foreground     bool
}

// NewEngine создает движок синхронизации. Ledger, Queue и Metrics необязательны.
func NewEngine(cfg Config, deps Deps, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Metrics == nil {
		deps.Metrics = noopRecorder{}
	}

	limit := rate.Inf
	if cfg.RefreshMinSpacing > 0 {
		limit = rate.Every(cfg.RefreshMinSpacing)
	}

	e := &Engine{
		client:       deps.Client,
		messages:     deps.Messages,
		participants: deps.Participants,
		session:      deps.Session,
		ledger:       deps.Ledger,
		queue:        deps.Queue,
		metrics:      deps.Metrics,
		logger:       logger,
		now:          time.Now,
		cfg:          cfg,
		limiter:      rate.NewLimiter(limit, 1),
		backoff:      newBackoff(cfg),
		baseCtx:      context.Background(),
		foreground:   true,
		status:       StatusDisconnected,
	}
	e.lastActivity = e.now()
	return e
}

func newBackoff(cfg Config) *backoff.ExponentialBackOff {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     cfg.BackoffInitial,
		RandomizationFactor: cfg.BackoffJitter,
		Multiplier:          cfg.BackoffMultiplier,
		MaxInterval:         cfg.BackoffMax,
		MaxElapsedTime:      0, // число повторов ограничивает MaxRetries, а не время
		Stop:                backoff.Stop,
		Clock:               backoff.SystemClock,
	}
	b.Reset()
	return b
}

// Start begins periodic polling; the first cycle runs immediately.
// ctx is used for every cycle started by the engine itself.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stopped {
		return ErrStopped
	}
	if e.running {
		return nil
	}
	e.running = true
	e.baseCtx = ctx
	e.lastActivity = e.now()
	e.scheduleLocked(0)

	e.logger.Info("Sync engine started",
		"foreground_interval", e.cfg.ForegroundInterval,
		"background_interval", e.cfg.BackgroundInterval)
	return nil
}

// Stop clears all timers and marks the engine inactive. A cycle already in
// flight completes, but its results are not applied.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stopped {
		return
	}
	e.stopped = true
	e.running = false
	e.stopTimersLocked()
	e.phase = PhaseIdle

	e.logger.Info("Sync engine stopped")
}

// Poll runs one cycle now. It returns ErrPollInProgress if a cycle is already
// running; the engine's own errors are absorbed into PollResult.
func (e *Engine) Poll(ctx context.Context) (PollResult, error) {
	return e.poll(ctx, triggerManual)
}

// Refresh requests a manual refresh. Calls are throttled to RefreshMinSpacing;
// a throttled call is executed once the spacing has elapsed, and a call that
// lands during an active cycle runs right after it.
func (e *Engine) Refresh() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stopped {
		return
	}
	e.lastActivity = e.now()

	// уже есть отложенное обновление: оно и выполнит этот запрос
	if e.refreshPending {
		return
	}

	delay := e.limiter.Reserve().Delay()
	if delay == 0 {
		go e.runRefresh()
		return
	}

	e.refreshPending = true
	e.refreshTimer = time.AfterFunc(delay, func() {
		e.mu.Lock()
		e.refreshPending = false
		e.refreshTimer = nil
		stopped := e.stopped
		e.mu.Unlock()

		if !stopped {
			e.runRefresh()
		}
	})
	e.logger.Debug("Refresh throttled", "delay", delay)
}

func (e *Engine) runRefresh() {
	if _, err := e.poll(e.context(), triggerRefresh); err != nil {
		e.logger.Debug("Refresh deferred", "error", err)
	}
}

// SetForeground reports app visibility. A background→foreground transition
// triggers an immediate poll and resets the backoff schedule.
func (e *Engine) SetForeground(foreground bool) {
	e.mu.Lock()
	wasForeground := e.foreground
	e.foreground = foreground
	if foreground {
		e.lastActivity = e.now()
	}

	resume := foreground && !wasForeground && e.running
	if resume {
		e.retries = 0
		e.backoff.Reset()
		if e.timer != nil {
			e.timer.Stop()
			e.timer = nil
		}
	}
	e.mu.Unlock()

	if resume {
		e.logger.Debug("App returned to foreground, polling now")
		go func() {
			_, _ = e.poll(e.context(), triggerForeground)
		}()
	}
}

// NotifyActivity records local user activity; it keeps the short interval.
func (e *Engine) NotifyActivity() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastActivity = e.now()
}

// ConnectionStatus возвращает текущий статус соединения
func (e *Engine) ConnectionStatus() ConnectionStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// Phase возвращает текущее состояние автомата
func (e *Engine) Phase() Phase {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.phase
}

// ConsecutiveFailures возвращает число неудачных циклов подряд
func (e *Engine) ConsecutiveFailures() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.failures
}

// OnStatusChange регистрирует callback смены статуса соединения
func (e *Engine) OnStatusChange(fn func(ConnectionStatus)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.statusFns = append(e.statusFns, fn)
}

// OnPoll регистрирует callback, вызываемый после каждого применённого цикла
func (e *Engine) OnPoll(fn func(PollResult)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pollFns = append(e.pollFns, fn)
}

// NextInterval returns the delay before the next regular cycle for the
// current visibility, activity and failure count.
func (e *Engine) NextInterval() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.intervalLocked()
}

func (e *Engine) intervalLocked() time.Duration {
	// бездействие дольше IdleAfter даёт самый длинный интервал, в том числе в фоне
	base := e.cfg.ForegroundInterval
	switch {
	case e.cfg.IdleAfter > 0 && e.now().Sub(e.lastActivity) > e.cfg.IdleAfter:
		base = e.cfg.IdleInterval
	case !e.foreground:
		base = e.cfg.BackgroundInterval
	}

	factor := 1 + e.cfg.FailurePenalty*float64(e.failures)
	if e.cfg.MaxPenalty >= 1 && factor > e.cfg.MaxPenalty {
		factor = e.cfg.MaxPenalty
	}
	return time.Duration(float64(base) * factor)
}

func (e *Engine) context() context.Context {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.baseCtx
}

func (e *Engine) alive() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return !e.stopped
}

func (e *Engine) setPhase(p Phase) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.phase = p
}

func (e *Engine) scheduleLocked(delay time.Duration) {
	if e.timer != nil {
		e.timer.Stop()
	}
	e.timer = time.AfterFunc(delay, func() {
		if _, err := e.poll(e.context(), triggerTimer); err != nil {
			e.logger.Debug("Scheduled poll skipped", "error", err)
		}
	})
}

func (e *Engine) stopTimersLocked() {
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	if e.refreshTimer != nil {
		e.refreshTimer.Stop()
		e.refreshTimer = nil
	}
	e.refreshPending = false
	e.trailing = false
}
