package sheetdb

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"opsdesk/api/internal/sheets"
)

// NextID allocates the next surrogate row id by scanning the id column and
// taking max+1 (1 for an empty table). There is no atomic counter: two
// concurrent allocations against the same table can observe the same max
// and hand out duplicate ids. That race is a property of the store, not a
// bug in this function.
func (c *Client) NextID(ctx context.Context, def TableDef) (int, error) {
	return c.nextInColumn(ctx, def, ColID)
}

// NextGroupID allocates the next group identifier for a grouped table by
// independently scanning the group column. Grouped tables run two counters:
// group ids here, row ids via NextID.
func (c *Client) NextGroupID(ctx context.Context, def TableDef) (int, error) {
	if def.GroupColumn == "" {
		return 0, &SchemaError{Table: def.Table.Tab, Column: "(group column)"}
	}
	return c.nextInColumn(ctx, def, def.GroupColumn)
}

func (c *Client) nextInColumn(ctx context.Context, def TableDef, column string) (int, error) {
	pos, ok := def.Schema.Position(column)
	if !ok {
		return 0, &SchemaError{Table: def.Table.Tab, Column: column}
	}
	cells, err := c.gw.GetRange(ctx, def.Table, sheets.ColumnRange(def.Table, pos), sheets.RenderUnformatted)
	if err != nil {
		return 0, fmt.Errorf("scan %s column of %s: %w", column, def.Table, err)
	}

	max := 0
	for i, row := range cells {
		if i == 0 || len(row) == 0 {
			// Header row, or an empty cell.
			continue
		}
		if n, ok := cellInt(row[0]); ok && n > max {
			max = n
		}
	}
	return max + 1, nil
}

// cellInt parses a cell as an integer key, tolerating the number and string
// renderings the backend produces. Non-numeric cells are skipped by the
// allocator rather than failing the scan.
func cellInt(value any) (int, bool) {
	switch v := value.(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	case int64:
		return int(v), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}
