// Package ledger moves money between accounts. Every operation runs inside
// exactly one unit of work; push notifications leave only after commit and
// can never undo a committed result.
package ledger

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ibrahimkeyboad/digibank/internal/core/domain"
	"github.com/ibrahimkeyboad/digibank/internal/core/uow"
)

// Publisher hands "balance changed" events to the notification channel.
// Implementations must not block on delivery.
type Publisher interface {
	Publish(ctx context.Context, events ...domain.PushEvent) error
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, ...domain.PushEvent) error { return nil }

// Options carries the collaborators shared by the ledger services.
type Options struct {
	Publisher Publisher
	Logger    *slog.Logger
	// Retries is how many times a scope that failed on a lock conflict is
	// re-run before the failure is surfaced.
	Retries int
	Now     func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Publisher == nil {
		o.Publisher = nopPublisher{}
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

func (o Options) runOptions() []uow.Option {
	return []uow.Option{uow.WithRetries(o.Retries), uow.WithLogger(o.Logger)}
}

// storeErr keeps typed failures and turns anything else from the store into
// a PersistenceFailure.
func storeErr(msg string, err error) error {
	var de *domain.Error
	if errors.As(err, &de) {
		return err
	}
	return domain.Persistence(msg, err, false)
}

// publish is fire-and-forget: a failure is logged, never returned.
func publish(ctx context.Context, o Options, events ...domain.PushEvent) {
	if err := o.Publisher.Publish(context.WithoutCancel(ctx), events...); err != nil {
		o.Logger.Warn("Push notification not queued", "error", err, "events", len(events))
	}
}
