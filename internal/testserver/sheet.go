package testserver

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// Sheet is an in-memory spreadsheet understanding 'Title', 'Title'!N:N and
// 'Title'!A1 ranges.
type Sheet struct {
	// ReadErr, when set, fails every read.
	ReadErr error

	mu     sync.Mutex
	order  []string
	tabs   map[string][][]interface{}
	ids    map[string]int64
	header map[int64]int
}

func NewSheet() *Sheet {
	return &Sheet{
		tabs:   map[string][][]interface{}{},
		ids:    map[string]int64{},
		header: map[int64]int{},
	}
}

// Put replaces a tab's contents, creating it if needed.
func (s *Sheet) Put(title string, rows ...[]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.add(title)
	s.tabs[title] = rows
}

func (s *Sheet) add(title string) {
	if _, ok := s.tabs[title]; !ok {
		s.order = append(s.order, title)
		s.ids[title] = int64(len(s.order))
	}
}

func (s *Sheet) Tab(title string) [][]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tabs[title]
}

// HeaderColumns reports how many header cells of the tab were formatted.
func (s *Sheet) HeaderColumns(title string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.header[s.ids[title]]
}

func splitRange(r string) (string, string) {
	title, cells, _ := strings.Cut(r, "!")
	return strings.ReplaceAll(strings.Trim(title, "'"), "''", "'"), cells
}

func (s *Sheet) ReadSheet(ctx context.Context, r string) ([][]interface{}, error) {
	if s.ReadErr != nil {
		return nil, s.ReadErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	title, cells := splitRange(r)
	rows, ok := s.tabs[title]
	if !ok {
		return nil, fmt.Errorf("Unable to parse range: %s", r)
	}
	if cells == "" {
		return rows, nil
	}
	from, _, _ := strings.Cut(cells, ":")
	n, err := strconv.Atoi(from)
	if err != nil {
		return nil, err
	}
	if n > len(rows) {
		return nil, nil
	}
	return rows[n-1 : n], nil
}

func (s *Sheet) UpdateRange(ctx context.Context, r string, values [][]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	title, _ := splitRange(r)
	s.tabs[title] = values
	return nil
}

func (s *Sheet) SheetTitles(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.order...), nil
}

func (s *Sheet) EnsureSheet(ctx context.Context, title string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.add(title)
	s.tabs[title] = nil
	return s.ids[title], nil
}

func (s *Sheet) FormatHeader(ctx context.Context, sheetID int64, columns int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.header[sheetID] = columns
	return nil
}
