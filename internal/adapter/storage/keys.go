package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// KeyRepository stores hashed API keys and cached idempotent responses.
// Both live outside ledger scopes.
type KeyRepository struct {
	db DBTX
}

func NewKeyRepository(db DBTX) *KeyRepository {
	return &KeyRepository{db: db}
}

// SaveAPIKey stores the hashed key for the account
func (r *KeyRepository) SaveAPIKey(ctx context.Context, accountID int64, keyHash string, keyPrefix string) error {
	query := `INSERT INTO api_keys (account_id, key_hash, key_prefix) VALUES ($1, $2, $3)`
	if _, err := r.db.Exec(ctx, query, accountID, keyHash, keyPrefix); err != nil {
		return fmt.Errorf("failed to save api key: %w", mapErr("save api key", err))
	}
	return nil
}

func (r *KeyRepository) ResolveAPIKey(ctx context.Context, keyHash string) (int64, error) {
	var accountID int64
	err := r.db.QueryRow(ctx, `SELECT account_id FROM api_keys WHERE key_hash = $1`, keyHash).Scan(&accountID)
	if err != nil {
		return 0, mapErr("resolve api key", err)
	}
	return accountID, nil
}

func (r *KeyRepository) LookupResponse(ctx context.Context, key string) (int, []byte, bool, error) {
	var status int
	var body []byte
	err := r.db.QueryRow(ctx,
		`SELECT response_status, response_body FROM idempotency_keys WHERE key_id = $1`, key,
	).Scan(&status, &body)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil, false, nil
	}
	if err != nil {
		return 0, nil, false, mapErr("lookup idempotency key", err)
	}
	return status, body, true, nil
}

func (r *KeyRepository) SaveResponse(ctx context.Context, key string, status int, body []byte) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO idempotency_keys (key_id, response_status, response_body) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`,
		key, status, body,
	)
	if err != nil {
		return mapErr("save idempotency key", err)
	}
	return nil
}
