package resolution

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
)

// ErrSheetNotFound means neither the primary nor any alternative tab exists.
var ErrSheetNotFound = errors.New("no matching sheet found")

// TitleLister lists the tabs of a spreadsheet.
type TitleLister interface {
	SheetTitles(ctx context.Context) ([]string, error)
}

// ResolveSheet picks primary when present, otherwise the first alternative
// present. Matching is exact.
func ResolveSheet(titles []string, primary string, alternatives []string) (string, error) {
	present := make(map[string]bool, len(titles))
	for _, t := range titles {
		present[t] = true
	}

	if present[primary] {
		return primary, nil
	}
	for _, alt := range alternatives {
		if present[alt] {
			log.Debug().
				Str("primary", primary).
				Str("sheet", alt).
				Msg("Primary sheet missing, using alternative")
			return alt, nil
		}
	}
	return "", fmt.Errorf("%w: tried %q and %v", ErrSheetNotFound, primary, alternatives)
}

// ResolveTarget lists the spreadsheet's tabs and resolves the target among them.
func ResolveTarget(ctx context.Context, lister TitleLister, primary string, alternatives []string) (string, error) {
	titles, err := lister.SheetTitles(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to list sheets: %w", err)
	}
	return ResolveSheet(titles, primary, alternatives)
}
