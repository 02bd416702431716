// Package sheets is the transport layer between the row store and a
// spreadsheet backend. The Gateway interface carries the small set of
// primitives the engines need; Google talks to the Sheets API and Memory is
// an in-process workbook with the same index semantics, used in tests.
package sheets

import (
	"context"
	"fmt"
	"strings"
)

// RenderMode selects how the backend renders cell values on read.
type RenderMode string

const (
	// RenderFormatted returns display strings as the user would see them.
	RenderFormatted RenderMode = "FORMATTED_VALUE"
	// RenderUnformatted returns raw values: dates come back as serial
	// numbers, not locale-formatted strings.
	RenderUnformatted RenderMode = "UNFORMATTED_VALUE"
)

// Table identifies one tab within a remote workbook.
type Table struct {
	SpreadsheetID string
	Tab           string
}

func (t Table) String() string {
	return t.Tab
}

// RangeUpdate pairs an A1 range with the rows to write there. Used by the
// multi-range batch write path.
type RangeUpdate struct {
	Range string
	Rows  [][]any
}

// Gateway is the contract a spreadsheet-like backend must provide. Row and
// column indices on DeleteRows/InsertRows are 0-based and end-exclusive;
// deleting shifts every subsequent row up, so multi-row deletes must be
// issued in descending order.
type Gateway interface {
	GetRange(ctx context.Context, table Table, a1Range string, mode RenderMode) ([][]any, error)
	AppendRows(ctx context.Context, table Table, a1Range string, rows [][]any) error
	UpdateRange(ctx context.Context, table Table, a1Range string, rows [][]any) error
	BatchUpdateValues(ctx context.Context, table Table, updates []RangeUpdate) error
	DeleteRows(ctx context.Context, table Table, sheetID int64, startIndex, endIndex int64) error
	InsertRows(ctx context.Context, table Table, sheetID int64, startIndex, endIndex int64) error
	CreateTab(ctx context.Context, table Table) error
	TabExists(ctx context.Context, table Table) (bool, error)
	// SheetID resolves the tab's numeric sheet id. The numeric id survives
	// row mutations, unlike any cached row index, so callers resolve it
	// fresh before structural requests.
	SheetID(ctx context.Context, table Table) (int64, error)
}

// ColumnLetter converts a 0-based column index to its A1 letter ("A", "Z",
// "AA", ...).
func ColumnLetter(index int) string {
	letters := ""
	n := index + 1
	for n > 0 {
		n--
		letters = string(rune('A'+n%26)) + letters
		n /= 26
	}
	return letters
}

// quoteTab wraps tab names that A1 notation would otherwise misparse.
func quoteTab(tab string) string {
	if strings.ContainsAny(tab, " !'") {
		return "'" + strings.ReplaceAll(tab, "'", "''") + "'"
	}
	return tab
}

// WholeTableRange addresses every cell of a tab.
func WholeTableRange(table Table) string {
	return quoteTab(table.Tab)
}

// RowRange addresses a single data row (1-based) across numCols columns.
func RowRange(table Table, row, numCols int) string {
	return fmt.Sprintf("%s!A%d:%s%d", quoteTab(table.Tab), row, ColumnLetter(numCols-1), row)
}

// RowsRange addresses numRows rows starting at startRow (1-based).
func RowsRange(table Table, startRow, numRows, numCols int) string {
	return fmt.Sprintf("%s!A%d:%s%d", quoteTab(table.Tab), startRow,
		ColumnLetter(numCols-1), startRow+numRows-1)
}

// HeaderRange addresses the tab's first row in full.
func HeaderRange(table Table) string {
	return quoteTab(table.Tab) + "!1:1"
}

// ColumnRange addresses one full column by 0-based index.
func ColumnRange(table Table, col int) string {
	letter := ColumnLetter(col)
	return fmt.Sprintf("%s!%s:%s", quoteTab(table.Tab), letter, letter)
}
