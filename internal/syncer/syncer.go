package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"sheetsync/internal/mapping"
	"sheetsync/internal/supabase"
)

// ErrMissingSerial is reported for records without a conflict key.
var ErrMissingSerial = errors.New("record has no serial number")

// Table is the subset of the remote table client the syncer writes through.
type Table interface {
	Upsert(ctx context.Context, payload interface{}) (*supabase.Response, error)
	Update(ctx context.Context, key string, payload interface{}) (*supabase.Response, error)
	Insert(ctx context.Context, payload interface{}) (*supabase.Response, error)
}

// Syncer pushes canonical records to the remote table.
type Syncer struct {
	table Table
}

func New(table Table) *Syncer {
	return &Syncer{table: table}
}

// UpsertRecords sends all keyed records in one merge-on-conflict batch. When
// the batch is rejected it falls back to syncing records one at a time. The
// returned count is what the server echoed, or the number of records sent
// when the response carried no usable body.
func (s *Syncer) UpsertRecords(ctx context.Context, records []mapping.Record) (int, error) {
	keyed := make([]mapping.Record, 0, len(records))
	for _, rec := range records {
		if rec.SLNumber == "" {
			log.Debug().Str("sheet", rec.SheetSource).Msg("Skipping record without serial number")
			continue
		}
		keyed = append(keyed, rec)
	}
	if len(keyed) == 0 {
		return 0, nil
	}

	resp, err := s.table.Upsert(ctx, keyed)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert records: %w", err)
	}

	if !resp.OK() {
		log.Warn().
			Err(resp.Err()).
			Int("records", len(keyed)).
			Msg("Bulk upsert rejected, syncing records individually")
		return s.updateRecordsIndividually(ctx, keyed), nil
	}

	var echoed []json.RawMessage
	if len(resp.Body) > 0 && json.Unmarshal(resp.Body, &echoed) == nil {
		log.Debug().Int("records", len(echoed)).Msg("Bulk upsert complete")
		return len(echoed), nil
	}

	log.Debug().
		Int("status_code", resp.StatusCode).
		Int("records", len(keyed)).
		Msg("Bulk upsert returned no row data, counting payload")
	return len(keyed), nil
}

// updateRecordsIndividually syncs records in order. Failures are logged and skipped.
func (s *Syncer) updateRecordsIndividually(ctx context.Context, records []mapping.Record) int {
	synced := 0
	for _, rec := range records {
		if s.SyncRecord(ctx, rec.SLNumber, rec) {
			synced++
		}
	}
	log.Info().
		Int("synced", synced).
		Int("failed", len(records)-synced).
		Msg("Individual sync complete")
	return synced
}

// SyncRecord updates the row keyed by slNumber, creating it when no row
// matched. It reports whether the row now holds the record; failures are
// logged.
func (s *Syncer) SyncRecord(ctx context.Context, slNumber string, rec mapping.Record) bool {
	if err := s.Sync(ctx, slNumber, rec); err != nil {
		log.Error().Err(err).Str("sl_number", slNumber).Msg("Failed to sync record")
		return false
	}
	return true
}

// Sync is SyncRecord returning the failure instead of logging it.
func (s *Syncer) Sync(ctx context.Context, slNumber string, rec mapping.Record) error {
	if slNumber == "" {
		return ErrMissingSerial
	}

	resp, err := s.table.Update(ctx, slNumber, rec)
	if err != nil {
		return fmt.Errorf("failed to update record: %w", err)
	}

	if !notFound(resp) {
		if err := resp.Err(); err != nil {
			return fmt.Errorf("failed to update record: %w", err)
		}
		log.Debug().Str("sl_number", slNumber).Msg("Updated record")
		return nil
	}

	resp, err = s.table.Insert(ctx, rec)
	if err != nil {
		return fmt.Errorf("failed to create record: %w", err)
	}
	if err := resp.Err(); err != nil {
		return fmt.Errorf("failed to create record: %w", err)
	}
	log.Debug().Str("sl_number", slNumber).Msg("Created record")
	return nil
}

// notFound reports a PATCH that matched nothing: either a 404 or a 2xx whose
// Content-Range says zero rows were affected.
func notFound(resp *supabase.Response) bool {
	if !resp.OK() {
		return supabase.IsNotFound(resp.Err())
	}
	n, ok := resp.AffectedRows()
	return ok && n == 0
}
