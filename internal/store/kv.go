package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
)

// KV is a generic key-value store over the kv_store table. Values are JSON.
type KV struct {
	db *sql.DB
}

// NewKV wraps an open database.
func NewKV(db *sql.DB) *KV {
	return &KV{db: db}
}

// Get returns the raw values of the requested keys. Missing keys are absent
// from the result.
func (kv *KV) Get(ctx context.Context, keys ...string) (map[string]json.RawMessage, error) {
	out := make(map[string]json.RawMessage, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(keys)), ",")
	args := make([]any, len(keys))
	for i, key := range keys {
		args[i] = key
	}
	rows, err := kv.db.QueryContext(ctx, `SELECT key, value FROM kv_store WHERE key IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("query kv_store: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scan kv_store: %w", err)
		}
		out[key] = json.RawMessage(value)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Set writes every entry in one transaction. Each key is last-write-wins.
func (kv *KV) Set(ctx context.Context, entries map[string]any) error {
	if len(entries) == 0 {
		return nil
	}
	encoded := make(map[string]string, len(entries))
	for key, value := range entries {
		data, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("encode %q: %w", key, err)
		}
		encoded[key] = string(data)
	}

	tx, err := kv.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for key, value := range encoded {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO kv_store (key, value, updated_at)
			VALUES (?, ?, strftime('%s', 'now'))
			ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
		`, key, value); err != nil {
			return fmt.Errorf("write %q: %w", key, err)
		}
	}
	return tx.Commit()
}

// Remove deletes the given keys. Missing keys are ignored.
func (kv *KV) Remove(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	tx, err := kv.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, key := range keys {
		if _, err := tx.ExecContext(ctx, `DELETE FROM kv_store WHERE key = ?`, key); err != nil {
			return fmt.Errorf("remove %q: %w", key, err)
		}
	}
	return tx.Commit()
}

func (kv *KV) getJSON(ctx context.Context, key string, dest any) (bool, error) {
	values, err := kv.Get(ctx, key)
	if err != nil {
		return false, err
	}
	raw, ok := values[key]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, fmt.Errorf("decode %q: %w", key, err)
	}
	return true, nil
}
