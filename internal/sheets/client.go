package sheets

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"sheetsync/internal/config"
	"sheetsync/internal/retry"
)

// Client reads and writes one spreadsheet.
type Client struct {
	service       *sheets.Service
	spreadsheetID string
	resilience    config.ResilienceConfig
}

func NewClient(ctx context.Context, credentialsFile, spreadsheetID string, resilience config.ResilienceConfig) (*Client, error) {
	return NewClientWithOptions(ctx, spreadsheetID, resilience, option.WithCredentialsFile(credentialsFile))
}

// NewClientWithOptions builds a client from explicit API options, such as a
// custom endpoint.
func NewClientWithOptions(ctx context.Context, spreadsheetID string, resilience config.ResilienceConfig, opts ...option.ClientOption) (*Client, error) {
	service, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	return &Client{
		service:       service,
		spreadsheetID: spreadsheetID,
		resilience:    resilience,
	}, nil
}

// ReadSheet returns the displayed values in range_. Trailing empty rows and
// cells are omitted by the API.
func (c *Client) ReadSheet(ctx context.Context, range_ string) ([][]interface{}, error) {
	values, err := retry.WithRetry(ctx, c.resilience.SheetRead, func(ctx context.Context) ([][]interface{}, error) {
		resp, err := c.service.Spreadsheets.Values.Get(c.spreadsheetID, range_).
			ValueRenderOption("FORMATTED_VALUE").
			Context(ctx).
			Do()
		if err != nil {
			return nil, classify(err)
		}
		return resp.Values, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet: %w", err)
	}

	log.Debug().Str("range", range_).Int("rows", len(values)).Msg("Read sheet range")
	return values, nil
}

func (c *Client) UpdateRange(ctx context.Context, range_ string, values [][]interface{}) error {
	valueRange := &sheets.ValueRange{
		Values: values,
	}

	_, err := retry.WithRetry(ctx, c.resilience.SheetWrite, func(ctx context.Context) (*sheets.UpdateValuesResponse, error) {
		resp, err := c.service.Spreadsheets.Values.Update(c.spreadsheetID, range_, valueRange).
			ValueInputOption("USER_ENTERED").
			Context(ctx).
			Do()
		return resp, classify(err)
	})
	if err != nil {
		return fmt.Errorf("failed to update range: %w", err)
	}

	log.Debug().Str("range", range_).Int("rows", len(values)).Msg("Updated sheet range")
	return nil
}

// SheetTitles lists the titles of every tab in order.
func (c *Client) SheetTitles(ctx context.Context) ([]string, error) {
	props, err := c.properties(ctx)
	if err != nil {
		return nil, err
	}
	titles := make([]string, 0, len(props))
	for _, p := range props {
		titles = append(titles, p.Title)
	}
	return titles, nil
}

// EnsureSheet returns the ID of the tab named title, emptied of values. The
// tab is created when missing.
func (c *Client) EnsureSheet(ctx context.Context, title string) (int64, error) {
	props, err := c.properties(ctx)
	if err != nil {
		return 0, err
	}

	for _, p := range props {
		if p.Title != title {
			continue
		}
		_, err := retry.WithRetry(ctx, c.resilience.SheetWrite, func(ctx context.Context) (*sheets.ClearValuesResponse, error) {
			resp, err := c.service.Spreadsheets.Values.Clear(c.spreadsheetID, QuoteSheet(title), &sheets.ClearValuesRequest{}).
				Context(ctx).
				Do()
			return resp, classify(err)
		})
		if err != nil {
			return 0, fmt.Errorf("failed to clear sheet %q: %w", title, err)
		}
		log.Debug().Str("sheet", title).Msg("Cleared existing sheet")
		return p.SheetId, nil
	}

	resp, err := c.batchUpdate(ctx, &sheets.Request{
		AddSheet: &sheets.AddSheetRequest{
			Properties: &sheets.SheetProperties{Title: title},
		},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to add sheet %q: %w", title, err)
	}
	if len(resp.Replies) == 0 || resp.Replies[0].AddSheet == nil || resp.Replies[0].AddSheet.Properties == nil {
		return 0, fmt.Errorf("failed to add sheet %q: empty reply", title)
	}

	id := resp.Replies[0].AddSheet.Properties.SheetId
	log.Debug().Str("sheet", title).Int64("sheet_id", id).Msg("Added sheet")
	return id, nil
}

// FormatHeader bolds the first row of the tab and fits the first columns to
// their contents.
func (c *Client) FormatHeader(ctx context.Context, sheetID int64, columns int) error {
	if columns <= 0 {
		return nil
	}

	_, err := c.batchUpdate(ctx,
		&sheets.Request{
			RepeatCell: &sheets.RepeatCellRequest{
				Range: &sheets.GridRange{
					SheetId:          sheetID,
					StartRowIndex:    0,
					EndRowIndex:      1,
					StartColumnIndex: 0,
					EndColumnIndex:   int64(columns),
					ForceSendFields:  []string{"SheetId", "StartRowIndex", "StartColumnIndex"},
				},
				Cell: &sheets.CellData{
					UserEnteredFormat: &sheets.CellFormat{
						TextFormat: &sheets.TextFormat{Bold: true},
					},
				},
				Fields: "userEnteredFormat.textFormat.bold",
			},
		},
		&sheets.Request{
			AutoResizeDimensions: &sheets.AutoResizeDimensionsRequest{
				Dimensions: &sheets.DimensionRange{
					SheetId:         sheetID,
					Dimension:       "COLUMNS",
					StartIndex:      0,
					EndIndex:        int64(columns),
					ForceSendFields: []string{"SheetId", "StartIndex"},
				},
			},
		},
	)
	if err != nil {
		return fmt.Errorf("failed to format header: %w", err)
	}
	return nil
}

func (c *Client) properties(ctx context.Context) ([]*sheets.SheetProperties, error) {
	ss, err := retry.WithRetry(ctx, c.resilience.SheetRead, func(ctx context.Context) (*sheets.Spreadsheet, error) {
		resp, err := c.service.Spreadsheets.Get(c.spreadsheetID).
			Fields("sheets.properties(sheetId,title)").
			Context(ctx).
			Do()
		return resp, classify(err)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read spreadsheet metadata: %w", err)
	}

	props := make([]*sheets.SheetProperties, 0, len(ss.Sheets))
	for _, s := range ss.Sheets {
		if s.Properties != nil {
			props = append(props, s.Properties)
		}
	}
	return props, nil
}

func (c *Client) batchUpdate(ctx context.Context, requests ...*sheets.Request) (*sheets.BatchUpdateSpreadsheetResponse, error) {
	req := &sheets.BatchUpdateSpreadsheetRequest{Requests: requests}
	return retry.WithRetry(ctx, c.resilience.SheetWrite, func(ctx context.Context) (*sheets.BatchUpdateSpreadsheetResponse, error) {
		resp, err := c.service.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do()
		return resp, classify(err)
	})
}

// classify marks client errors other than rate limiting as not worth retrying.
func classify(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) &&
		apiErr.Code >= 400 && apiErr.Code < 500 &&
		apiErr.Code != http.StatusTooManyRequests {
		return retry.Permanent(err)
	}
	return err
}

// QuoteSheet renders a sheet title as an A1 range prefix target.
func QuoteSheet(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'"
}

// A1 joins a sheet title and a cell range, e.g. A1("Data", "1:1") is 'Data'!1:1.
func A1(title, cells string) string {
	if cells == "" {
		return QuoteSheet(title)
	}
	return QuoteSheet(title) + "!" + cells
}
