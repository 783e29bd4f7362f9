package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// PropertyStore is a process-wide persistent key/value store
type PropertyStore struct {
	db *DB
}

// NewPropertyStore creates a new PropertyStore
func NewPropertyStore(db *DB) *PropertyStore {
	return &PropertyStore{db: db}
}

// Get returns the value stored under key, or ErrNotFound
func (s *PropertyStore) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM properties WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get property %s: %w", key, err)
	}
	return value, nil
}

// Set stores value under key, replacing any previous value
func (s *PropertyStore) Set(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO properties (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`
	if _, err := s.db.ExecContext(ctx, query, key, value, time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("failed to set property %s: %w", key, err)
	}
	return nil
}

