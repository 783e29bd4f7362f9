package processing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"sheetsync/internal/mapping"
	"sheetsync/internal/providers"
	"sheetsync/internal/resolution"
	"sheetsync/internal/sheets"
	"sheetsync/internal/supabase"
)

var (
	// ErrRowRejected means the remote table refused the edited row.
	ErrRowRejected = errors.New("remote table did not accept the row")

	// ErrInvalidRow means a row number outside the data area was requested.
	ErrInvalidRow = errors.New("please enter a valid row number (2 or higher)")
)

// Spreadsheet is the spreadsheet surface the workflows need.
type Spreadsheet interface {
	ReadSheet(ctx context.Context, range_ string) ([][]interface{}, error)
	UpdateRange(ctx context.Context, range_ string, values [][]interface{}) error
	SheetTitles(ctx context.Context) ([]string, error)
	EnsureSheet(ctx context.Context, title string) (int64, error)
	FormatHeader(ctx context.Context, sheetID int64, columns int) error
}

// RecordSyncer writes canonical records to the remote table.
type RecordSyncer interface {
	UpsertRecords(ctx context.Context, records []mapping.Record) (int, error)
	Sync(ctx context.Context, slNumber string, rec mapping.Record) error
}

// RemoteReader reads the remote table back.
type RemoteReader interface {
	SelectOrdered(ctx context.Context) ([]supabase.Row, error)
}

type apiCallCounter interface {
	GetAPICallCount() int64
}

type Options struct {
	PrimarySheet string
	Alternatives []string
	ViewSheet    string
	Now          func() time.Time
}

// Workflows ties one spreadsheet to the remote table.
type Workflows struct {
	sheet  Spreadsheet
	syncer RecordSyncer
	remote RemoteReader
	opts   Options
}

func New(sheet Spreadsheet, syncer RecordSyncer, remote RemoteReader, opts Options) *Workflows {
	if opts.PrimarySheet == "" {
		opts.PrimarySheet = "sheet1"
	}
	if opts.ViewSheet == "" {
		opts.ViewSheet = "Supabase Data"
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Workflows{sheet: sheet, syncer: syncer, remote: remote, opts: opts}
}

// ResolveTargetSheet finds the tab that holds the checklist.
func (w *Workflows) ResolveTargetSheet(ctx context.Context) (string, error) {
	return resolution.ResolveTarget(ctx, w.sheet, w.opts.PrimarySheet, w.opts.Alternatives)
}

// SyncAll resolves the target tab and pushes all of its rows.
func (w *Workflows) SyncAll(ctx context.Context) (string, int, error) {
	sheetName, err := w.ResolveTargetSheet(ctx)
	if err != nil {
		return "", 0, err
	}
	count, err := w.SyncSheet(ctx, sheetName)
	return sheetName, count, err
}

// SyncSheet maps every non-empty data row of the tab and upserts the batch.
func (w *Workflows) SyncSheet(ctx context.Context, sheetName string) (int, error) {
	values, err := w.sheet.ReadSheet(ctx, sheets.A1(sheetName, ""))
	if err != nil {
		return 0, err
	}

	records := mapping.MapRows(values, sheetName, w.opts.Now())
	if len(records) == 0 {
		log.Info().Str("sheet", sheetName).Msg("No data rows to sync")
		return 0, nil
	}

	callsBefore := w.apiCallCount()
	count, err := w.syncer.UpsertRecords(ctx, records)
	callsAfter := w.apiCallCount()
	if err != nil {
		log.Debug().
			Str("sheet", sheetName).
			Int64("api_calls", callsAfter-callsBefore).
			Msg("Sheet sync aborted")
		return 0, err
	}

	log.Info().
		Str("sheet", sheetName).
		Int("rows", len(records)).
		Int("synced", count).
		Int64("api_calls", callsAfter-callsBefore).
		Msg("Sheet sync complete")
	return count, nil
}

// apiCallCount reads the remote client's request counter, or 0 when the
// remote does not keep one.
func (w *Workflows) apiCallCount() int64 {
	if c, ok := w.remote.(apiCallCounter); ok {
		return c.GetAPICallCount()
	}
	return 0
}

// SyncEditedRow pushes a single data row. It returns false without an error
// when the row is blank or has no serial number.
func (w *Workflows) SyncEditedRow(ctx context.Context, sheetName string, row int) (bool, error) {
	header, err := w.sheet.ReadSheet(ctx, sheets.A1(sheetName, "1:1"))
	if err != nil {
		return false, err
	}
	if len(header) == 0 || len(header[0]) == 0 {
		log.Debug().Str("sheet", sheetName).Msg("Sheet has no header row")
		return false, nil
	}

	data, err := w.sheet.ReadSheet(ctx, sheets.A1(sheetName, fmt.Sprintf("%d:%d", row, row)))
	if err != nil {
		return false, err
	}
	var cells []interface{}
	if len(data) > 0 {
		cells = data[0]
	}

	src := mapping.BuildSourceRow(header[0], cells)
	if src.IsEmpty() {
		log.Debug().Str("sheet", sheetName).Int("row", row).Msg("Edited row is empty")
		return false, nil
	}

	rec := mapping.MapRecord(src, sheetName, w.opts.Now())
	if rec.SLNumber == "" {
		log.Debug().Str("sheet", sheetName).Int("row", row).Msg("Edited row has no serial number")
		return false, nil
	}

	if err := w.syncer.Sync(ctx, rec.SLNumber, rec); err != nil {
		var apiErr *supabase.APIError
		switch {
		case errors.Is(err, providers.ErrMissingAPIKey):
			return false, providers.ErrMissingAPIKey
		case errors.As(err, &apiErr):
			return false, fmt.Errorf("row %d (S/L %s): %w: %w", row, rec.SLNumber, ErrRowRejected, apiErr)
		default:
			return false, fmt.Errorf("row %d (S/L %s): %w", row, rec.SLNumber, err)
		}
	}
	return true, nil
}

// TestRow runs the edited-row sync for one row of the target tab.
func (w *Workflows) TestRow(ctx context.Context, row int) (bool, error) {
	if row < 2 {
		return false, ErrInvalidRow
	}
	sheetName, err := w.ResolveTargetSheet(ctx)
	if err != nil {
		return false, err
	}
	return w.SyncEditedRow(ctx, sheetName, row)
}
