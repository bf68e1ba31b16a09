package kv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/assettrack/internal/dbx"
)

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// WithDB returns a repository bound to db, typically a transaction handle
// from dbx.WithTx.
func (r *SQLiteRepository) WithDB(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Get(ctx context.Context, scope, key string) ([]byte, error) {
	var value []byte
	err := r.db.QueryRowContext(ctx,
		`SELECT value FROM storage WHERE scope = ? AND key = ?`, scope, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s[%s]: %w", scope, key, err)
	}
	return value, nil
}

func (r *SQLiteRepository) Set(ctx context.Context, scope, key string, value []byte) error {
	if value == nil {
		value = []byte{}
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO storage (scope, key, value) VALUES (?, ?, ?)
		ON CONFLICT(scope, key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
	`, scope, key, value)
	if err != nil {
		return fmt.Errorf("failed to set %s[%s]: %w", scope, key, err)
	}
	return nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, scope string, keys ...string) error {
	for _, key := range keys {
		if _, err := r.db.ExecContext(ctx,
			`DELETE FROM storage WHERE scope = ? AND key = ?`, scope, key); err != nil {
			return fmt.Errorf("failed to delete %s[%s]: %w", scope, key, err)
		}
	}
	return nil
}

func (r *SQLiteRepository) List(ctx context.Context, scope string) (map[string][]byte, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT key, value FROM storage WHERE scope = ?`, scope)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", scope, err)
	}
	defer rows.Close()

	result := make(map[string][]byte)
	for rows.Next() {
		var key string
		var value []byte
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", scope, err)
		}
		result[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s rows: %w", scope, err)
	}
	return result, nil
}

func (r *SQLiteRepository) ClearPrefix(ctx context.Context, prefix string) error {
	pattern := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(prefix) + "%"
	_, err := r.db.ExecContext(ctx, `DELETE FROM storage WHERE scope LIKE ? ESCAPE '\'`, pattern)
	if err != nil {
		return fmt.Errorf("failed to clear scopes %s*: %w", prefix, err)
	}
	return nil
}
