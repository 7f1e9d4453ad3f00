// Package notifications delivers committed "balance changed" events to
// connected clients. Nothing here runs inside a ledger scope.
package notifications

import (
	"context"

	"github.com/ibrahimkeyboad/digibank/internal/core/domain"
)

// Dispatcher delivers one push event. Errors are worth a retry.
type Dispatcher interface {
	Dispatch(ctx context.Context, event domain.PushEvent) error
}

// DispatcherFunc adapts a function to Dispatcher.
type DispatcherFunc func(ctx context.Context, event domain.PushEvent) error

func (f DispatcherFunc) Dispatch(ctx context.Context, event domain.PushEvent) error {
	return f(ctx, event)
}
