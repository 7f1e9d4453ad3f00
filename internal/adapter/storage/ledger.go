package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/ibrahimkeyboad/digibank/internal/core/domain"
	"github.com/ibrahimkeyboad/digibank/internal/core/uow"
)

// LedgerRepository appends and reads ledger entries. Entries are never
// updated or deleted.
type LedgerRepository struct {
	db DBTX
}

func NewLedgerRepository(db DBTX) *LedgerRepository {
	return &LedgerRepository{db: db}
}

const entryColumns = `id, sender_account_id, receiver_account_id, amount, COALESCE(description, ''), status, created_at`

func scanEntry(row interface{ Scan(...any) error }) (domain.LedgerEntry, error) {
	var e domain.LedgerEntry
	var status string
	err := row.Scan(&e.ID, &e.SenderAccountID, &e.ReceiverAccountID, &e.Amount, &e.Description, &status, &e.CreatedAt)
	e.Status = domain.EntryStatus(status)
	return e, err
}

func (r *LedgerRepository) GetByID(ctx context.Context, id int64) (*domain.LedgerEntry, error) {
	e, err := scanEntry(r.db.QueryRow(ctx, `SELECT `+entryColumns+` FROM ledger_entries WHERE id = $1`, id))
	if err != nil {
		return nil, mapErr("get ledger entry", err)
	}
	return &e, nil
}

func (r *LedgerRepository) Add(ctx context.Context, e *domain.LedgerEntry) error {
	query := `
		INSERT INTO ledger_entries (sender_account_id, receiver_account_id, amount, description, status)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5)
		RETURNING id, created_at
	`
	err := r.db.QueryRow(ctx, query,
		e.SenderAccountID, e.ReceiverAccountID, e.Amount, e.Description, string(e.Status),
	).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return mapErr("append ledger entry", err)
	}
	return nil
}

// Query lists entries newest first.
func (r *LedgerRepository) Query(ctx context.Context, q uow.LedgerQuery) ([]domain.LedgerEntry, error) {
	var (
		where []string
		args  []any
	)
	if q.AccountID != 0 {
		args = append(args, q.AccountID)
		where = append(where, fmt.Sprintf("(sender_account_id = $%d OR receiver_account_id = $%d)", len(args), len(args)))
	}
	if !q.From.IsZero() {
		args = append(args, q.From)
		where = append(where, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if !q.To.IsZero() {
		args = append(args, q.To)
		where = append(where, fmt.Sprintf("created_at <= $%d", len(args)))
	}

	query := `SELECT ` + entryColumns + ` FROM ledger_entries`
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
		return nil, mapErr("query ledger", err)
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, mapErr("scan ledger entry", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr("query ledger", err)
	}
	return entries, nil
}
