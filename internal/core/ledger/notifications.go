package ledger

import (
	"context"
	"errors"

	"github.com/ibrahimkeyboad/digibank/internal/core/domain"
	"github.com/ibrahimkeyboad/digibank/internal/core/uow"
)

// Notifications serves the in-app notification inbox written by transfers.
type Notifications struct {
	uow  uow.UnitOfWork
	opts Options
}

func NewNotifications(u uow.UnitOfWork, opts Options) *Notifications {
	return &Notifications{uow: u, opts: opts.withDefaults()}
}

func (n *Notifications) Unread(ctx context.Context, userID int64) ([]domain.Notification, error) {
	var out []domain.Notification
	err := uow.Run(ctx, n.uow, func(ctx context.Context, s uow.Scope) error {
		var err error
		out, err = s.Notifications().Query(ctx, uow.NotificationQuery{UserID: userID, UnreadOnly: true})
		return err
	})
	if err != nil {
		return nil, storeErr("failed to load notifications", err)
	}
	return out, nil
}

// MarkRead flags one notification as read. Notifications of other users are
// reported as not found.
func (n *Notifications) MarkRead(ctx context.Context, userID, notificationID int64) error {
	err := uow.Run(ctx, n.uow, func(ctx context.Context, s uow.Scope) error {
		note, err := s.Notifications().GetByID(ctx, notificationID)
		if errors.Is(err, uow.ErrNotFound) || (err == nil && note.UserID != userID) {
			return domain.NewError(domain.KindNotificationNotFound, "notification not found")
		}
		if err != nil {
			return err
		}
		if note.IsRead {
			return nil
		}
		note.IsRead = true
		return s.Notifications().Update(ctx, note)
	})
	if err != nil {
		return storeErr("failed to update notification", err)
	}
	return nil
}

func (n *Notifications) MarkAllRead(ctx context.Context, userID int64) (int64, error) {
	var count int64
	err := uow.Run(ctx, n.uow, func(ctx context.Context, s uow.Scope) error {
		var err error
		count, err = s.Notifications().MarkAllRead(ctx, userID)
		return err
	})
	if err != nil {
		return 0, storeErr("failed to update notifications", err)
	}
	return count, nil
}
