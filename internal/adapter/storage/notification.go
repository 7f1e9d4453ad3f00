package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/ibrahimkeyboad/digibank/internal/core/domain"
	"github.com/ibrahimkeyboad/digibank/internal/core/uow"
)

type NotificationRepository struct {
	db DBTX
}

func NewNotificationRepository(db DBTX) *NotificationRepository {
	return &NotificationRepository{db: db}
}

const notificationColumns = `id, user_id, message, is_read, created_at`

func scanNotification(row interface{ Scan(...any) error }) (domain.Notification, error) {
	var n domain.Notification
	err := row.Scan(&n.ID, &n.UserID, &n.Message, &n.IsRead, &n.CreatedAt)
	return n, err
}

func (r *NotificationRepository) GetByID(ctx context.Context, id int64) (*domain.Notification, error) {
	n, err := scanNotification(r.db.QueryRow(ctx, `SELECT `+notificationColumns+` FROM notifications WHERE id = $1`, id))
	if err != nil {
		return nil, mapErr("get notification", err)
	}
	return &n, nil
}

func (r *NotificationRepository) Add(ctx context.Context, n *domain.Notification) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO notifications (user_id, message, is_read) VALUES ($1, $2, $3) RETURNING id, created_at`,
		n.UserID, n.Message, n.IsRead,
	).Scan(&n.ID, &n.CreatedAt)
	if err != nil {
		return mapErr("add notification", err)
	}
	return nil
}

func (r *NotificationRepository) Update(ctx context.Context, n *domain.Notification) error {
	tag, err := r.db.Exec(ctx, `UPDATE notifications SET message = $2, is_read = $3 WHERE id = $1`, n.ID, n.Message, n.IsRead)
	if err != nil {
		return mapErr("update notification", err)
	}
	if tag.RowsAffected() == 0 {
		return uow.ErrNotFound
	}
	return nil
}

func (r *NotificationRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM notifications WHERE id = $1`, id)
	if err != nil {
		return mapErr("delete notification", err)
	}
	if tag.RowsAffected() == 0 {
		return uow.ErrNotFound
	}
	return nil
}

func (r *NotificationRepository) Query(ctx context.Context, q uow.NotificationQuery) ([]domain.Notification, error) {
	var (
		where []string
		args  []any
	)
	if q.UserID != 0 {
		args = append(args, q.UserID)
		where = append(where, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if q.UnreadOnly {
		where = append(where, "NOT is_read")
	}

	query := `SELECT ` + notificationColumns + ` FROM notifications`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if q.Limit > 0 {
		args = append(args, q.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, mapErr("query notifications", err)
	}
	defer rows.Close()

	var out []domain.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, mapErr("scan notification", err)
		}
		out = append(out, n)
	}
	return out, mapErr("query notifications", rows.Err())
}

func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID int64) (int64, error) {
	tag, err := r.db.Exec(ctx, `UPDATE notifications SET is_read = TRUE WHERE user_id = $1 AND NOT is_read`, userID)
	if err != nil {
		return 0, mapErr("mark notifications read", err)
	}
	return tag.RowsAffected(), nil
}

type PaymentEventRepository struct {
	db DBTX
}

// Record inserts the event id; a second insert of the same id (even one
// racing in another transaction) reports false instead of failing.
func (r *PaymentEventRepository) Record(ctx context.Context, e *domain.PaymentEvent) (bool, error) {
	query := `
		INSERT INTO payment_events (event_id, account_id, amount)
		VALUES ($1, $2, $3)
		ON CONFLICT (event_id) DO NOTHING
		RETURNING processed_at
	`
	err := r.db.QueryRow(ctx, query, e.EventID, e.AccountID, e.Amount).Scan(&e.ProcessedAt)
	if err != nil {
		mapped := mapErr("record payment event", err)
		if mapped == uow.ErrNotFound {
			return false, nil
		}
		return false, mapped
	}
	return true, nil
}
