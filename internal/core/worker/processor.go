// Package worker delivers push events in the background so that ledger
// operations never wait on a notification channel.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/ibrahimkeyboad/digibank/internal/core/domain"
	"github.com/ibrahimkeyboad/digibank/internal/core/notifications"
)

var (
	ErrQueueFull   = errors.New("notification queue full")
	ErrQueueClosed = errors.New("notification queue closed")
)

type Config struct {
	Workers     int
	QueueSize   int
	MaxAttempts int
	// RetryDelay is multiplied by the attempt number before each retry.
	RetryDelay time.Duration
	// DispatchTimeout bounds a single delivery attempt.
	DispatchTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = 2
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 1024
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 2 * time.Second
	}
	if c.DispatchTimeout <= 0 {
		c.DispatchTimeout = 10 * time.Second
	}
	return c
}

type job struct {
	event    domain.PushEvent
	target   int
	attempts int
}

// Queue is a bounded in-memory job queue drained by a fixed worker pool.
// Each (event, dispatcher) pair is retried on its own, so one failing
// channel never re-sends through a healthy one.
type Queue struct {
	cfg         Config
	dispatchers []notifications.Dispatcher
	logger      *slog.Logger

	mu     sync.RWMutex
	closed bool
	jobs   chan job
	stop   chan struct{}
	wg     sync.WaitGroup
	once   sync.Once

	// base parents every dispatch; it is cancelled together with stop.
	base   context.Context
	cancel context.CancelFunc
}

func NewQueue(cfg Config, logger *slog.Logger, dispatchers ...notifications.Dispatcher) *Queue {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	base, cancel := context.WithCancel(context.Background())
	return &Queue{
		cfg:         cfg,
		dispatchers: dispatchers,
		logger:      logger,
		jobs:        make(chan job, cfg.QueueSize),
		stop:        make(chan struct{}),
		base:        base,
		cancel:      cancel,
	}
}

// Start launches the worker pool.
func (q *Queue) Start() {
	q.once.Do(func() {
		q.logger.Info("Notification workers started", "workers", q.cfg.Workers, "dispatchers", len(q.dispatchers))
		for i := 0; i < q.cfg.Workers; i++ {
			q.wg.Add(1)
			go func() {
				defer q.wg.Done()
				abandoned := 0
				for j := range q.jobs {
					if q.stopped() {
						abandoned++
						continue
					}
					q.process(j)
				}
				if abandoned > 0 {
					q.logger.Warn("Queued push events abandoned on shutdown", "count", abandoned)
				}
			}()
		}
	})
}

// Publish enqueues events without blocking. Jobs that don't fit are dropped
// and reported with ErrQueueFull.
func (q *Queue) Publish(_ context.Context, events ...domain.PushEvent) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}

	dropped := 0
	for _, ev := range events {
		for target := range q.dispatchers {
			select {
			case q.jobs <- job{event: ev, target: target}:
			default:
				dropped++
			}
		}
	}
	if dropped > 0 {
		q.logger.Warn("Notification queue full, events dropped", "dropped", dropped)
		return ErrQueueFull
	}
	return nil
}

// Close stops accepting events and waits for queued jobs to finish. When ctx
// expires first, in-flight deliveries are cancelled and everything still
// queued or waiting for a retry is abandoned.
func (q *Queue) Close(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.jobs)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		q.cancel()
		return nil
	case <-ctx.Done():
		close(q.stop)
		q.cancel()
		<-done
		return ctx.Err()
	}
}

func (q *Queue) stopped() bool {
	select {
	case <-q.stop:
		return true
	default:
		return false
	}
}

func (q *Queue) process(j job) {
	d := q.dispatchers[j.target]
	for {
		if q.stopped() {
			q.logger.Warn("Push event abandoned on shutdown", "event_id", j.event.ID)
			return
		}
		ctx, cancel := context.WithTimeout(q.base, q.cfg.DispatchTimeout)
		err := d.Dispatch(ctx, j.event)
		cancel()

		if err == nil {
			q.logger.Debug("Push event delivered", "event_id", j.event.ID, "user_id", j.event.UserID, "type", j.event.Type)
			return
		}

		j.attempts++
		if j.attempts >= q.cfg.MaxAttempts {
			q.logger.Error("Push event dropped, max attempts reached", "event_id", j.event.ID, "attempts", j.attempts, "error", err)
			return
		}

		delay := time.Duration(j.attempts) * q.cfg.RetryDelay
		q.logger.Warn("Push event failed, scheduling retry", "event_id", j.event.ID, "attempts", j.attempts, "next_in", delay, "error", err)

		t := time.NewTimer(delay)
		select {
		case <-t.C:
		case <-q.stop:
			t.Stop()
			q.logger.Warn("Push event abandoned on shutdown", "event_id", j.event.ID)
			return
		}
	}
}
