package uow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ibrahimkeyboad/digibank/internal/core/domain"
)

const defaultRetryDelay = 20 * time.Millisecond

type runConfig struct {
	retries    int
	retryDelay time.Duration
	logger     *slog.Logger
}

type Option func(*runConfig)

// WithRetries re-runs the whole scope up to n extra times when it fails
// with a retryable persistence error (serialization failure, deadlock,
// lock timeout).
func WithRetries(n int) Option {
	return func(c *runConfig) {
		if n > 0 {
			c.retries = n
		}
	}
}

// WithRetryDelay sets the base backoff; the wait before retry n is n*d.
func WithRetryDelay(d time.Duration) Option {
	return func(c *runConfig) {
		if d > 0 {
			c.retryDelay = d
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *runConfig) { c.logger = l }
}

// Run executes fn inside a scope and commits it. Any error or panic from fn
// rolls the scope back. When ctx already carries a scope, fn joins it and
// the outer Run owns commit and rollback.
func Run(ctx context.Context, u UnitOfWork, fn func(ctx context.Context, s Scope) error, opts ...Option) error {
	if s, ok := FromContext(ctx); ok {
		return fn(ctx, s)
	}

	cfg := runConfig{retryDelay: defaultRetryDelay, logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}

	var err error
	for attempt := 0; ; attempt++ {
		err = runOnce(ctx, u, fn)
		if err == nil || !domain.IsRetryable(err) || ctx.Err() != nil || attempt == cfg.retries {
			return err
		}

		delay := time.Duration(attempt+1) * cfg.retryDelay
		cfg.logger.Warn("Unit of work conflict, retrying", "attempt", attempt+1, "next_in", delay, "error", err)

		t := time.NewTimer(delay)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return err
		}
	}
}

func runOnce(ctx context.Context, u UnitOfWork, fn func(ctx context.Context, s Scope) error) (err error) {
	s, err := u.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			_ = s.Rollback(ctx)
			panic(p)
		}
		if err != nil {
			if rbErr := s.Rollback(ctx); rbErr != nil {
				err = fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
			}
		}
	}()

	if err = fn(WithScope(ctx, s), s); err != nil {
		return err
	}
	return s.Commit(ctx)
}
