package mapping

import (
	"fmt"
	"strings"
	"time"
)

// SourceRow maps a trimmed sheet header to the raw cell value under it.
type SourceRow map[string]interface{}

// BuildSourceRow pairs the header row with one data row. Blank headers are
// dropped and cells past the end of a short row read as "".
func BuildSourceRow(headers []interface{}, cells []interface{}) SourceRow {
	row := make(SourceRow, len(headers))
	for i, header := range headers {
		name := strings.TrimSpace(CellString(header))
		if name == "" {
			continue
		}
		var value interface{} = ""
		if i < len(cells) && cells[i] != nil {
			value = cells[i]
		}
		row[name] = value
	}
	return row
}

// IsEmpty reports whether every cell of the row renders as "".
func (r SourceRow) IsEmpty() bool {
	for _, v := range r {
		if CellString(v) != "" {
			return false
		}
	}
	return true
}

// Text returns the cell under header rendered as a string.
func (r SourceRow) Text(header string) string {
	v, ok := r[header]
	if !ok {
		return ""
	}
	return CellString(v)
}

// CellString renders a sheet cell the way it should appear in a text column.
func CellString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		// Sheets returns whole numbers as float64 when values are unformatted.
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%v", t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

// lookup returns the first alias present in row with a non-empty value.
func lookup(row SourceRow, aliases []string) (interface{}, bool) {
	for _, alias := range aliases {
		v, ok := row[alias]
		if !ok {
			continue
		}
		if CellString(v) != "" {
			return v, true
		}
	}
	return nil, false
}

func lookupText(row SourceRow, f Field) string {
	if v, ok := lookup(row, f.Aliases); ok {
		return CellString(v)
	}
	return f.Default
}

// MapRecord converts a source row into the canonical record for sheetName.
// now becomes last_synced, so a record is stamped when it is mapped, not when
// the cell was edited.
func MapRecord(row SourceRow, sheetName string, now time.Time) Record {
	text := func(name string) string {
		f, _ := FieldByName(name)
		return lookupText(row, f)
	}

	var dueDate *string
	if v, ok := lookup(row, dueDateAliases); ok {
		dueDate = NormalizeDate(v)
	}

	count := 0
	if v, ok := lookup(row, reminderCountAliases); ok {
		count = ParseLeadingInt(CellString(v))
	}

	return Record{
		SLNumber:                     text("sl_number"),
		ChecklistCategory:            text("checklist_category"),
		OversightManager:             text("oversight_manager"),
		ActionItem:                   text("action_item"),
		ResponsiblePersonName:        text("responsible_person_name"),
		ResponsiblePersonDesignation: text("responsible_person_designation"),
		ResponsiblePersonEmail:       text("responsible_person_email"),
		ReminderCCEmail:              text("reminder_cc_email"),
		DueDate:                      dueDate,
		ReminderDays:                 text("reminder_days"),
		ReminderSent:                 text("reminder_sent"),
		ReminderCount:                count,
		Status:                       text("status"),
		Comments:                     text("comments"),
		SheetSource:                  sheetName,
		LastSynced:                   now.UTC().Format(LastSyncedLayout),
	}
}

// MapRows builds records for every non-empty data row. values[0] is the header row.
func MapRows(values [][]interface{}, sheetName string, now time.Time) []Record {
	if len(values) < 2 {
		return nil
	}
	headers := values[0]
	var records []Record
	for _, cells := range values[1:] {
		row := BuildSourceRow(headers, cells)
		if row.IsEmpty() {
			continue
		}
		records = append(records, MapRecord(row, sheetName, now))
	}
	return records
}

// ParseLeadingInt reads an optionally signed run of leading digits, ignoring
// surrounding whitespace and anything after the digits. No digits yields 0.
func ParseLeadingInt(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	sign := 1
	switch s[0] {
	case '-':
		sign = -1
		s = s[1:]
	case '+':
		s = s[1:]
	}
	n := 0
	digits := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			break
		}
		n = n*10 + int(c-'0')
		digits++
		if digits > 18 {
			break
		}
	}
	return sign * n
}
