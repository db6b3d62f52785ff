// Package queue serializes outbound mutation calls: at most one operation is in
// flight, operations start in submission order, conflicts are retried at the
// head of the queue with a bounded per-operation counter.
package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"go.uber.org/ratelimit"

	"github.com/iudanet/chatsync/internal/client/api"
)

var (
	// ErrCleared возвращается операциям, удалённым из очереди до запуска
	ErrCleared = errors.New("operation dropped from queue")
	// ErrQueueClosed возвращается операциям, не выполненным до закрытия очереди
	ErrQueueClosed = errors.New("queue closed")
	// ErrPanic оборачивает панику внутри операции
	ErrPanic = errors.New("operation panicked")
)

// Operation is a queued unit of work.
type Operation func(ctx context.Context) error

// Config параметры очереди
type Config struct {
	ConflictDelay      time.Duration // задержка перед повтором после 409
	MaxConflictRetries int           // предел повторов после 409 на одну операцию
	RatePerSecond      int           // 0 отключает ограничение частоты
}

type job struct {
	ctx       context.Context
	notBefore time.Time
	op        Operation
	result    chan error
	conflicts int
}

func (j *job) finish(err error) {
	j.result <- err
}

// Queue is a single-worker FIFO of operations.
type Queue struct {
	logger     *slog.Logger
	limiter    ratelimit.Limiter
	isConflict func(error) bool
	wake       chan struct{}
	stop       chan struct{}
	done       chan struct{}
	jobs       []*job
	cfg        Config
	closeOnce  sync.Once
	mu         sync.Mutex
	closed     bool
}

// New создает очередь и запускает её worker
func New(cfg Config, logger *slog.Logger) *Queue {
	if logger == nil {
		logger = slog.Default()
	}

	q := &Queue{
		logger: logger,
		cfg:    cfg,
		isConflict: func(err error) bool {
			return errors.Is(err, api.ErrConflict)
		},
		wake: make(chan struct{}, 1),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	if cfg.RatePerSecond > 0 {
		q.limiter = ratelimit.New(cfg.RatePerSecond, ratelimit.WithoutSlack)
	}

	go q.run()
	return q
}

// Enqueue adds op to the tail and blocks until it completes or ctx is done.
// ctx is also passed to the operation.
func (q *Queue) Enqueue(ctx context.Context, op Operation) error {
	result := q.submit(ctx, op)
	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Submit adds op to the tail and returns a channel receiving its result.
func (q *Queue) Submit(op Operation) <-chan error {
	return q.submit(context.Background(), op)
}

func (q *Queue) submit(ctx context.Context, op Operation) <-chan error {
	j := &job{ctx: ctx, op: op, result: make(chan error, 1)}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		j.finish(ErrQueueClosed)
		return j.result
	}
	q.jobs = append(q.jobs, j)
	q.mu.Unlock()

	q.signal()
	return j.result
}

// Len возвращает количество ожидающих (не запущенных) операций
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

// Clear drops every queued operation that has not started yet; each caller
// receives ErrCleared. The in-flight operation is not affected.
func (q *Queue) Clear() int {
	q.mu.Lock()
	dropped := q.jobs
	q.jobs = nil
	q.mu.Unlock()

	for _, j := range dropped {
		j.finish(ErrCleared)
	}
	if len(dropped) > 0 {
		q.logger.Info("Request queue cleared", "dropped", len(dropped))
	}
	q.signal()
	return len(dropped)
}

// Close stops the worker. Queued operations fail with ErrQueueClosed; Close
// waits for the in-flight operation to finish.
func (q *Queue) Close() {
	q.closeOnce.Do(func() {
		q.mu.Lock()
		q.closed = true
		pending := q.jobs
		q.jobs = nil
		q.mu.Unlock()

		close(q.stop)
		for _, j := range pending {
			j.finish(ErrQueueClosed)
		}
		<-q.done
	})
}

func (q *Queue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *Queue) run() {
	defer close(q.done)

	for {
		j, wait := q.next()
		if j == nil {
			if wait < 0 {
				return
			}
			if !q.sleep(wait) {
				return
			}
			continue
		}
		q.execute(j)
	}
}

// next pops the head job if it is due. Otherwise it returns how long to wait:
// 0 means until woken, a negative value means the queue is closed.
func (q *Queue) next() (*job, time.Duration) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil, -1
	}
	if len(q.jobs) == 0 {
		return nil, 0
	}

	head := q.jobs[0]
	if d := time.Until(head.notBefore); d > 0 {
		return nil, d
	}
	q.jobs[0] = nil
	q.jobs = q.jobs[1:]
	return head, 0
}

func (q *Queue) sleep(d time.Duration) bool {
	if d == 0 {
		select {
		case <-q.wake:
			return true
		case <-q.stop:
			return false
		}
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-q.wake:
		return true
	case <-q.stop:
		return false
	}
}

func (q *Queue) execute(j *job) {
	if err := j.ctx.Err(); err != nil {
		j.finish(err)
		return
	}

	if q.limiter != nil {
		q.limiter.Take()
	}

	err := q.call(j)
	if err == nil || !q.isConflict(err) {
		j.finish(err)
		return
	}

	if j.conflicts >= q.cfg.MaxConflictRetries {
		q.logger.Warn("Conflict retries exhausted",
			"attempts", j.conflicts+1,
			"error", err)
		j.finish(err)
		return
	}

	j.conflicts++
	j.notBefore = time.Now().Add(q.cfg.ConflictDelay)

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		j.finish(ErrQueueClosed)
		return
	}
	// повтор после 409 выполняется раньше остальных операций
	q.jobs = append([]*job{j}, q.jobs...)
	q.mu.Unlock()

	q.logger.Debug("Conflict, operation requeued at head",
		"retry", j.conflicts,
		"delay", q.cfg.ConflictDelay)
}

func (q *Queue) call(j *job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("Panic recovered",
				"error", r,
				"stack", string(debug.Stack()),
			)
			err = fmt.Errorf("%w: %v", ErrPanic, r)
		}
	}()

	return j.op(j.ctx)
}
