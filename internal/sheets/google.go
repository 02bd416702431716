package sheets

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"
)

// Google implements Gateway against the Google Sheets API.
type Google struct {
	svc *sheetsapi.Service
}

// NewGoogle builds a gateway authenticated with a service-account
// credentials file.
func NewGoogle(ctx context.Context, credentialsFile string) (*Google, error) {
	svc, err := sheetsapi.NewService(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(sheetsapi.SpreadsheetsScope),
	)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return &Google{svc: svc}, nil
}

// NewGoogleWithCredentialsJSON builds a gateway from in-memory credentials.
func NewGoogleWithCredentialsJSON(ctx context.Context, credentialsJSON []byte) (*Google, error) {
	svc, err := sheetsapi.NewService(ctx,
		option.WithCredentialsJSON(credentialsJSON),
		option.WithScopes(sheetsapi.SpreadsheetsScope),
	)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return &Google{svc: svc}, nil
}

func (g *Google) GetRange(ctx context.Context, table Table, a1Range string, mode RenderMode) ([][]any, error) {
	call := g.svc.Spreadsheets.Values.Get(table.SpreadsheetID, a1Range).
		ValueRenderOption(string(mode))
	if mode == RenderUnformatted {
		// Dates must come back as serial numbers, never display strings.
		call = call.DateTimeRenderOption("SERIAL_NUMBER")
	}
	resp, err := call.Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("get range %s: %w", a1Range, err)
	}
	return resp.Values, nil
}

func (g *Google) AppendRows(ctx context.Context, table Table, a1Range string, rows [][]any) error {
	_, err := g.svc.Spreadsheets.Values.Append(table.SpreadsheetID, a1Range,
		&sheetsapi.ValueRange{Values: rows}).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append rows to %s: %w", a1Range, err)
	}
	return nil
}

func (g *Google) UpdateRange(ctx context.Context, table Table, a1Range string, rows [][]any) error {
	_, err := g.svc.Spreadsheets.Values.Update(table.SpreadsheetID, a1Range,
		&sheetsapi.ValueRange{Values: rows}).
		ValueInputOption("RAW").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("update range %s: %w", a1Range, err)
	}
	return nil
}

func (g *Google) BatchUpdateValues(ctx context.Context, table Table, updates []RangeUpdate) error {
	data := make([]*sheetsapi.ValueRange, 0, len(updates))
	for _, update := range updates {
		data = append(data, &sheetsapi.ValueRange{
			Range:  update.Range,
			Values: update.Rows,
		})
	}
	_, err := g.svc.Spreadsheets.Values.BatchUpdate(table.SpreadsheetID,
		&sheetsapi.BatchUpdateValuesRequest{
			ValueInputOption: "RAW",
			Data:             data,
		}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("batch update %d ranges: %w", len(updates), err)
	}
	return nil
}

func (g *Google) DeleteRows(ctx context.Context, table Table, sheetID, startIndex, endIndex int64) error {
	_, err := g.svc.Spreadsheets.BatchUpdate(table.SpreadsheetID,
		&sheetsapi.BatchUpdateSpreadsheetRequest{
			Requests: []*sheetsapi.Request{{
				DeleteDimension: &sheetsapi.DeleteDimensionRequest{
					Range: &sheetsapi.DimensionRange{
						SheetId:    sheetID,
						Dimension:  "ROWS",
						StartIndex: startIndex,
						EndIndex:   endIndex,
					},
				},
			}},
		}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("delete rows %d-%d: %w", startIndex, endIndex, err)
	}
	return nil
}

func (g *Google) InsertRows(ctx context.Context, table Table, sheetID, startIndex, endIndex int64) error {
	_, err := g.svc.Spreadsheets.BatchUpdate(table.SpreadsheetID,
		&sheetsapi.BatchUpdateSpreadsheetRequest{
			Requests: []*sheetsapi.Request{{
				InsertDimension: &sheetsapi.InsertDimensionRequest{
					Range: &sheetsapi.DimensionRange{
						SheetId:    sheetID,
						Dimension:  "ROWS",
						StartIndex: startIndex,
						EndIndex:   endIndex,
					},
					InheritFromBefore: false,
				},
			}},
		}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("insert rows %d-%d: %w", startIndex, endIndex, err)
	}
	return nil
}

func (g *Google) CreateTab(ctx context.Context, table Table) error {
	_, err := g.svc.Spreadsheets.BatchUpdate(table.SpreadsheetID,
		&sheetsapi.BatchUpdateSpreadsheetRequest{
			Requests: []*sheetsapi.Request{{
				AddSheet: &sheetsapi.AddSheetRequest{
					Properties: &sheetsapi.SheetProperties{Title: table.Tab},
				},
			}},
		}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("create tab %s: %w", table.Tab, err)
	}
	return nil
}

func (g *Google) TabExists(ctx context.Context, table Table) (bool, error) {
	_, err := g.SheetID(ctx, table)
	if err == nil {
		return true, nil
	}
	var notFound *TabNotFoundError
	if errors.As(err, &notFound) {
		return false, nil
	}
	return false, err
}

func (g *Google) SheetID(ctx context.Context, table Table) (int64, error) {
	spreadsheet, err := g.svc.Spreadsheets.Get(table.SpreadsheetID).
		Fields("sheets.properties.sheetId", "sheets.properties.title").
		Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("get spreadsheet %s: %w", table.SpreadsheetID, err)
	}
	for _, sheet := range spreadsheet.Sheets {
		if sheet.Properties != nil && sheet.Properties.Title == table.Tab {
			return sheet.Properties.SheetId, nil
		}
	}
	return 0, &TabNotFoundError{Tab: table.Tab}
}

// TabNotFoundError reports a missing tab distinctly from transport failures
// so callers can create the tab instead of giving up.
type TabNotFoundError struct {
	Tab string
}

func (e *TabNotFoundError) Error() string {
	return fmt.Sprintf("tab %q not found", e.Tab)
}
