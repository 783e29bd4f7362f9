package processing

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"sheetsync/internal/sheets"
	"sheetsync/internal/supabase"
)

// ViewSyncedData copies the remote table into the view tab, ordered by serial
// number, and returns the number of rows shown. The header follows the
// column order of the first remote row.
func (w *Workflows) ViewSyncedData(ctx context.Context) (int, error) {
	rows, err := w.remote.SelectOrdered(ctx)
	if err != nil {
		return 0, err
	}

	sheetID, err := w.sheet.EnsureSheet(ctx, w.opts.ViewSheet)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		log.Info().Str("sheet", w.opts.ViewSheet).Msg("Remote table is empty")
		return 0, nil
	}

	headers := rows[0].Keys()
	values := make([][]interface{}, 0, len(rows)+1)
	values = append(values, toCells(headers))
	for _, r := range rows {
		values = append(values, alignRow(r, headers))
	}

	if err := w.sheet.UpdateRange(ctx, sheets.A1(w.opts.ViewSheet, "A1"), values); err != nil {
		return 0, err
	}
	if err := w.sheet.FormatHeader(ctx, sheetID, len(headers)); err != nil {
		return 0, err
	}

	log.Info().
		Str("sheet", w.opts.ViewSheet).
		Int("rows", len(rows)).
		Int("columns", len(headers)).
		Msg("Displayed remote data")
	return len(rows), nil
}

// ViewMessage is the alert shown after ViewSyncedData.
func ViewMessage(n int) string {
	return fmt.Sprintf("Displaying %d records from Supabase (ordered by SL number)", n)
}

func toCells(headers []string) []interface{} {
	out := make([]interface{}, len(headers))
	for i, h := range headers {
		out[i] = h
	}
	return out
}

// alignRow lays a row out in header order. Missing and null columns are "".
func alignRow(r supabase.Row, headers []string) []interface{} {
	out := make([]interface{}, len(headers))
	for i, h := range headers {
		out[i] = cellValue(r.Get(h))
	}
	return out
}

func cellValue(v interface{}) interface{} {
	switch t := v.(type) {
	case nil:
		return ""
	case string, bool, json.Number:
		return t
	default:
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(data)
	}
}
