package sync

import (
	"errors"
	"fmt"
	"time"

	"github.com/iudanet/chatsync/internal/client/state"
)

var (
	// ErrPollInProgress возвращается, если цикл синхронизации уже выполняется
	ErrPollInProgress = errors.New("poll already in progress")
	// ErrStopped возвращается после остановки движка
	ErrStopped = errors.New("sync engine stopped")
)

// Phase is the state of the polling state machine.
type Phase uint8

const (
	PhaseIdle Phase = iota
	PhasePolling
	PhaseApplying
	PhaseSessionResetting
	PhaseBackoff
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhasePolling:
		return "polling"
	case PhaseApplying:
		return "applying"
	case PhaseSessionResetting:
		return "session_resetting"
	case PhaseBackoff:
		return "backoff"
	default:
		return fmt.Sprintf("Phase(%d)", uint8(p))
	}
}

// ConnectionStatus is the only way sync failures surface to the UI.
type ConnectionStatus uint8

const (
	StatusDisconnected ConnectionStatus = iota
	StatusConnected
)

func (s ConnectionStatus) String() string {
	if s == StatusConnected {
		return "connected"
	}
	return "disconnected"
}

// Outcome классифицирует завершение цикла
type Outcome uint8

const (
	OutcomeOK Outcome = iota
	// OutcomeConflict 409, только логируется
	OutcomeConflict
	// OutcomeRetryable сеть или 5xx
	OutcomeRetryable
	// OutcomeRejected прочие 4xx
	OutcomeRejected
	// OutcomeCanceled отмена контекста вызывающей стороной
	OutcomeCanceled
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeConflict:
		return "conflict"
	case OutcomeRetryable:
		return "retryable"
	case OutcomeRejected:
		return "rejected"
	case OutcomeCanceled:
		return "canceled"
	default:
		return fmt.Sprintf("Outcome(%d)", uint8(o))
	}
}

// PollResult contains the results of one sync cycle.
type PollResult struct {
	StartedAt          time.Time
	Err                error            // ошибки цикла, поглощённые движком
	Merged             state.MergeStats // результат слияния сообщений
	Duration           time.Duration
	NextDelay          time.Duration // через сколько запланирован следующий цикл
	PulledMessages     int           // количество полученных сообщений
	PulledParticipants int           // количество полученных участников
	Reapplied          int           // восстановленных оптимистичных реакций
	Outcome            Outcome
	SessionReset       bool // обнаружена смена сессии
	Discarded          bool // движок остановлен, результаты отброшены
}

// Label is the cycle result name used in metrics and logs.
func (r PollResult) Label() string {
	switch {
	case r.Discarded:
		return "discarded"
	case r.SessionReset && r.Outcome == OutcomeOK:
		return "reset"
	default:
		return r.Outcome.String()
	}
}

// Recorder receives per-cycle observations.
type Recorder interface {
	PollCompleted(result string, duration time.Duration)
	SessionReset()
	ConsecutiveFailures(n int)
}

type noopRecorder struct{}

func (noopRecorder) PollCompleted(string, time.Duration) {}
func (noopRecorder) SessionReset()                       {}
func (noopRecorder) ConsecutiveFailures(int)             {}
