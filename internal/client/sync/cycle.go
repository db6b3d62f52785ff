package sync

import (
	"context"
	"errors"
	"fmt"
	stdsync "sync"
	"time"

	"github.com/iudanet/chatsync/internal/client/api"
	"github.com/iudanet/chatsync/internal/models"
)

func (e *Engine) poll(ctx context.Context, t trigger) (PollResult, error) {
	if err := e.begin(t); err != nil {
		return PollResult{}, err
	}

	e.logger.Debug("Starting sync cycle", "trigger", t)

	res := e.cycle(ctx)
	res.Duration = e.now().Sub(res.StartedAt)

	e.finish(&res)
	return res, nil
}

// begin takes the in-progress flag. A refresh landing on an active cycle is
// remembered and executed right after it.
func (e *Engine) begin(t trigger) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stopped {
		return ErrStopped
	}
	if e.polling {
		if t == triggerRefresh {
			e.trailing = true
		}
		return ErrPollInProgress
	}

	e.polling = true
	e.phase = PhasePolling
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	return nil
}

func (e *Engine) cycle(ctx context.Context) PollResult {
	res := PollResult{StartedAt: e.now()}

	info, err := e.client.FetchSessionInfo(ctx)
	if err != nil {
		res.Err = fmt.Errorf("fetch session: %w", err)
		res.Outcome = classify(err)
		return res
	}

	if !e.alive() {
		res.Discarded = true
		return res
	}

	if e.session.Get().SessionID != info.SessionID {
		e.resetSession(ctx, *info, &res)
		return res
	}

	e.applyDeltas(ctx, info.ServerTime, &res)
	return res
}

// resetSession drops everything that belonged to the previous session and
// adopts the new one. The cursor restarts from the zero time.
func (e *Engine) resetSession(ctx context.Context, info models.SessionInfo, res *PollResult) {
	e.setPhase(PhaseSessionResetting)
	res.SessionReset = true

	previous := e.session.Get().SessionID
	e.logger.Info("Session changed, resetting local state",
		"previous_session", previous,
		"session", info.SessionID,
		"api_version", info.APIVersion)

	dropped, swept := 0, 0
	if e.queue != nil {
		dropped = e.queue.Clear()
	}
	if e.ledger != nil {
		swept = e.ledger.Reset()
	}
	e.messages.Clear(ctx)
	e.participants.Clear(ctx)
	e.session.Clear(ctx)
	e.session.Adopt(ctx, info)

	e.logger.Debug("Session reset dropped pending work",
		"queued_operations", dropped,
		"optimistic_entries", swept)

	participants, err := e.client.FetchAllParticipants(ctx)
	if err != nil {
		// дельты с нулевого курсора всё равно вернут полный список
		e.logger.Warn("Failed to load participants after session reset", "error", err)
		return
	}
	if !e.alive() {
		res.Discarded = true
		return
	}
	e.participants.ReplaceAll(ctx, participants)
	res.PulledParticipants = len(participants)
}

// applyDeltas fetches and merges deltas. The cursor is taken from the server
// clock when the session descriptor carries it (deltas are filtered by the
// server's updated_at), otherwise from the local cycle start.
func (e *Engine) applyDeltas(ctx context.Context, serverTime time.Time, res *PollResult) {
	since := e.session.Get().LastSyncCursor
	cursor := res.StartedAt
	if !serverTime.IsZero() {
		cursor = serverTime
	}

	var (
		wg           stdsync.WaitGroup
		messages     []models.Message
		participants []models.Participant
		msgErr       error
		partErr      error
	)

	// выборки независимы: ошибка одной не блокирует другую
	wg.Add(2)
	go func() {
		defer wg.Done()
		messages, msgErr = e.client.FetchMessageDeltas(ctx, since)
	}()
	go func() {
		defer wg.Done()
		participants, partErr = e.client.FetchParticipantDeltas(ctx, since)
	}()
	wg.Wait()

	if !e.alive() {
		res.Discarded = true
		return
	}

	e.setPhase(PhaseApplying)

	if msgErr == nil {
		res.PulledMessages = len(messages)
		res.Merged = e.messages.Merge(ctx, messages)
	} else {
		msgErr = fmt.Errorf("fetch messages: %w", msgErr)
		e.logFetchError("messages", msgErr)
	}

	if partErr == nil {
		res.PulledParticipants = len(participants)
		e.participants.Upsert(ctx, participants)
	} else {
		partErr = fmt.Errorf("fetch participants: %w", partErr)
		e.logFetchError("participants", partErr)
	}

	// слияние могло перезаписать ещё не подтверждённые реакции
	if e.ledger != nil {
		res.Reapplied = e.ledger.Reapply(ctx)
	}

	if msgErr == nil || partErr == nil {
		e.session.AdvanceCursor(ctx, cursor)
	}

	res.Err = errors.Join(msgErr, partErr)
	res.Outcome = worst(classify(msgErr), classify(partErr))
}

func (e *Engine) logFetchError(kind string, err error) {
	switch classify(err) {
	case OutcomeConflict:
		e.logger.Info("Delta fetch conflict, ignoring", "kind", kind, "error", err)
	case OutcomeRejected:
		e.logger.Warn("Delta fetch rejected by server", "kind", kind, "error", err)
	case OutcomeCanceled:
		e.logger.Debug("Delta fetch canceled", "kind", kind)
	default:
		e.logger.Warn("Delta fetch failed", "kind", kind, "error", err)
	}
}

// finish updates failure counters, schedules the next cycle and releases the
// in-progress flag. Callbacks run without the engine lock held.
func (e *Engine) finish(res *PollResult) {
	e.mu.Lock()
	e.polling = false

	if res.Discarded || e.stopped {
		res.Discarded = true
		e.phase = PhaseIdle
		e.mu.Unlock()
		e.logger.Debug("Sync results discarded, engine stopped")
		return
	}

	prevStatus := e.status
	res.NextDelay = e.nextDelayLocked(res)
	if e.running {
		e.scheduleLocked(res.NextDelay)
	}

	trailing := e.trailing
	e.trailing = false
	status := e.status
	failures := e.failures
	statusFns := append([]func(ConnectionStatus){}, e.statusFns...)
	pollFns := append([]func(PollResult){}, e.pollFns...)
	e.mu.Unlock()

	e.metrics.PollCompleted(res.Label(), res.Duration)
	e.metrics.ConsecutiveFailures(failures)
	if res.SessionReset {
		e.metrics.SessionReset()
	}

	e.logger.Info("Sync cycle completed",
		"result", res.Label(),
		"pulled_messages", res.PulledMessages,
		"pulled_participants", res.PulledParticipants,
		"reapplied", res.Reapplied,
		"next_delay", res.NextDelay)

	if status != prevStatus {
		e.logger.Info("Connection status changed", "status", status)
		for _, fn := range statusFns {
			fn(status)
		}
	}
	for _, fn := range pollFns {
		fn(*res)
	}

	if trailing {
		go e.runRefresh()
	}
}

// nextDelayLocked applies the cycle outcome to the failure counters and
// returns the delay before the next cycle.
func (e *Engine) nextDelayLocked(res *PollResult) time.Duration {
	switch res.Outcome {
	case OutcomeOK, OutcomeConflict:
		e.failures = 0
		e.retries = 0
		e.backoff.Reset()
		e.status = StatusConnected
		e.phase = PhaseIdle
		if res.SessionReset {
			return 0
		}
		return e.intervalLocked()

	case OutcomeRetryable:
		e.failures++
		e.status = StatusDisconnected
		if e.retries < e.cfg.MaxRetries {
			e.retries++
			e.phase = PhaseBackoff
			return e.backoff.NextBackOff()
		}
		e.logger.Warn("Sync retries exhausted, falling back to regular interval",
			"retries", e.retries,
			"consecutive_failures", e.failures)
		e.retries = 0
		e.backoff.Reset()
		e.phase = PhaseIdle
		return e.intervalLocked()

	case OutcomeRejected:
		e.failures++
		e.retries = 0
		e.backoff.Reset()
		// сервер ответил, значит соединение есть
		e.status = StatusConnected
		e.phase = PhaseIdle
		return e.intervalLocked()

	default:
		e.phase = PhaseIdle
		return e.intervalLocked()
	}
}

func classify(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, context.Canceled):
		return OutcomeCanceled
	case errors.Is(err, api.ErrConflict):
		return OutcomeConflict
	case api.IsRetryable(err):
		return OutcomeRetryable
	default:
		return OutcomeRejected
	}
}

// worst returns the outcome that drives scheduling when both fetches fail.
func worst(a, b Outcome) Outcome {
	rank := func(o Outcome) int {
		switch o {
		case OutcomeRetryable:
			return 4
		case OutcomeRejected:
			return 3
		case OutcomeCanceled:
			return 2
		case OutcomeConflict:
			return 1
		default:
			return 0
		}
	}
	if rank(a) >= rank(b) {
		return a
	}
	return b
}
