package mapping

import (
	"math"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/rs/zerolog/log"
)

// DateLayout is the calendar date format of the due_date column.
const DateLayout = "2006-01-02"

// Spreadsheet serial dates count days from 1899-12-30.
var sheetEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

const maxSerialDate = 2958465 // 9999-12-31

// NormalizeDate converts a cell value to a YYYY-MM-DD string. It never fails:
// anything it cannot read as a date becomes nil.
func NormalizeDate(v interface{}) (out *string) {
	defer func() {
		if r := recover(); r != nil {
			log.Debug().Interface("value", v).Interface("panic", r).Msg("Date normalization recovered")
			out = nil
		}
	}()

	switch t := v.(type) {
	case nil:
		return nil
	case time.Time:
		if t.IsZero() {
			return nil
		}
		return formatDate(t)
	case *time.Time:
		if t == nil || t.IsZero() {
			return nil
		}
		return formatDate(*t)
	case string:
		return parseDateString(t)
	case float64:
		return serialDate(t)
	case float32:
		return serialDate(float64(t))
	case int:
		return serialDate(float64(t))
	case int64:
		return serialDate(float64(t))
	default:
		return nil
	}
}

func formatDate(t time.Time) *string {
	s := t.UTC().Format(DateLayout)
	return &s
}

func parseDateString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return nil
	}
	return formatDate(t)
}

func serialDate(days float64) *string {
	if math.IsNaN(days) || math.IsInf(days, 0) || days < 1 || days > maxSerialDate {
		return nil
	}
	t := sheetEpoch.AddDate(0, 0, int(math.Floor(days)))
	return formatDate(t)
}
