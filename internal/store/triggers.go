package store

import (
	"context"
	"fmt"
	"time"

	"sheetsync/internal/triggers"
)

// TriggerRepository implements triggers.Repository for SQLite
type TriggerRepository struct {
	db *DB
}

// NewTriggerRepository creates a new TriggerRepository
func NewTriggerRepository(db *DB) *TriggerRepository {
	return &TriggerRepository{db: db}
}

// List returns every installed trigger, oldest first
func (r *TriggerRepository) List(ctx context.Context) ([]triggers.Trigger, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, handler, kind, source, interval_seconds, created_at
		FROM triggers
		ORDER BY created_at, id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list triggers: %w", err)
	}
	defer rows.Close()

	var result []triggers.Trigger
	for rows.Next() {
		var (
			t         triggers.Trigger
			kind      string
			seconds   int64
			createdAt int64
		)
		if err := rows.Scan(&t.ID, &t.Handler, &kind, &t.Source, &seconds, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan trigger: %w", err)
		}
		t.Kind = triggers.Kind(kind)
		t.Interval = time.Duration(seconds) * time.Second
		t.CreatedAt = time.Unix(0, createdAt).UTC()
		result = append(result, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate triggers: %w", err)
	}
	return result, nil
}

// Create inserts a trigger. created_at is stored as unix nanoseconds so it
// sorts chronologically
func (r *TriggerRepository) Create(ctx context.Context, t *triggers.Trigger) error {
	createdAt := t.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	query := `
		INSERT INTO triggers (id, handler, kind, source, interval_seconds, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		t.ID,
		t.Handler,
		string(t.Kind),
		t.Source,
		int64(t.Interval/time.Second),
		createdAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to create trigger: %w", err)
	}

	t.CreatedAt = createdAt
	return nil
}

// Delete removes a trigger by ID
func (r *TriggerRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM triggers WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete trigger: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check deleted trigger: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
