package sheetdb

import (
	"context"
	"fmt"

	"opsdesk/api/internal/dates"
	"opsdesk/api/internal/sheets"
)

// Create appends a new row: schema ensured, id allocated, created_at and
// updated_at stamped. The returned record is the decoded form of what was
// written (dates as ISO strings).
func (c *Client) Create(ctx context.Context, def TableDef, partial Record) (Record, error) {
	if err := c.EnsureTable(ctx, def); err != nil {
		return nil, err
	}
	if err := validate(def, partial); err != nil {
		return nil, err
	}

	id, err := c.NextID(ctx, def)
	if err != nil {
		return nil, err
	}

	now := dates.Format(c.now())
	rec := partial.Clone()
	rec[ColID] = id
	rec[ColCreatedAt] = now
	rec[ColUpdatedAt] = now
	formatDates(def.Schema, rec)

	row := Encode(def.Schema, rec)
	if err := c.gw.AppendRows(ctx, def.Table, sheets.WholeTableRange(def.Table), [][]any{row}); err != nil {
		return nil, fmt.Errorf("append to %s: %w", def.Table, err)
	}
	return Decode(def.Schema, row), nil
}

// FindRow scans the id column for the first row holding id and returns its
// 0-based grid index (the header sits at index 0, so data rows start at 1).
// Duplicate ids are undefined behavior: the first match wins. The index is
// only valid until the next delete on the same table.
func (c *Client) FindRow(ctx context.Context, def TableDef, id int) (int, error) {
	pos, ok := def.Schema.Position(ColID)
	if !ok {
		return 0, &SchemaError{Table: def.Table.Tab, Column: ColID}
	}
	cells, err := c.gw.GetRange(ctx, def.Table, sheets.ColumnRange(def.Table, pos), sheets.RenderUnformatted)
	if err != nil {
		return 0, fmt.Errorf("scan %s for id %d: %w", def.Table, id, err)
	}
	for i, row := range cells {
		if i == 0 || len(row) == 0 {
			continue
		}
		if n, ok := cellInt(row[0]); ok && n == id {
			return i, nil
		}
	}
	return 0, notFound(def.Table.Tab, id)
}

// Get fetches and decodes a single record by id.
func (c *Client) Get(ctx context.Context, def TableDef, id int) (Record, error) {
	if err := c.EnsureTable(ctx, def); err != nil {
		return nil, err
	}
	rowIndex, err := c.FindRow(ctx, def, id)
	if err != nil {
		return nil, err
	}
	rows, err := c.gw.GetRange(ctx, def.Table, sheets.RowRange(def.Table, rowIndex+1, def.Schema.Len()), sheets.RenderUnformatted)
	if err != nil {
		return nil, fmt.Errorf("read row %d of %s: %w", rowIndex, def.Table, err)
	}
	if len(rows) == 0 {
		return nil, notFound(def.Table.Tab, id)
	}
	return Decode(def.Schema, rows[0]), nil
}

// Update performs a read-modify-write on one row: the stored record is
// decoded, patch is shallow-merged over it, and the row is rewritten in
// place. created_at is always restored to its pre-update value regardless
// of what the patch says; updated_at is stamped. The id cannot be changed.
func (c *Client) Update(ctx context.Context, def TableDef, id int, patch Record) (Record, error) {
	if err := c.EnsureTable(ctx, def); err != nil {
		return nil, err
	}
	if err := validate(def, patch); err != nil {
		return nil, err
	}

	rowIndex, err := c.FindRow(ctx, def, id)
	if err != nil {
		return nil, err
	}
	rng := sheets.RowRange(def.Table, rowIndex+1, def.Schema.Len())
	rows, err := c.gw.GetRange(ctx, def.Table, rng, sheets.RenderUnformatted)
	if err != nil {
		return nil, fmt.Errorf("read row %d of %s: %w", rowIndex, def.Table, err)
	}
	if len(rows) == 0 {
		return nil, notFound(def.Table.Tab, id)
	}

	current := Decode(def.Schema, rows[0])
	merged := current.Clone()
	for name, value := range patch {
		merged[name] = value
	}
	merged[ColID] = id
	// Creation time is immutable at this layer, not by caller discipline.
	merged[ColCreatedAt] = current[ColCreatedAt]
	merged[ColUpdatedAt] = dates.Format(c.now())
	formatDates(def.Schema, merged)

	row := Encode(def.Schema, merged)
	if err := c.gw.UpdateRange(ctx, def.Table, rng, [][]any{row}); err != nil {
		return nil, fmt.Errorf("write row %d of %s: %w", rowIndex, def.Table, err)
	}
	return Decode(def.Schema, row), nil
}

// Remove deletes the physical row holding id. The delete addresses the tab
// by its numeric sheet id, resolved fresh here: row indices shift on every
// delete but the numeric id never changes. Any row index the caller cached
// before this call is invalid afterwards.
func (c *Client) Remove(ctx context.Context, def TableDef, id int) error {
	if err := c.EnsureTable(ctx, def); err != nil {
		return err
	}
	rowIndex, err := c.FindRow(ctx, def, id)
	if err != nil {
		return err
	}
	sheetID, err := c.gw.SheetID(ctx, def.Table)
	if err != nil {
		return fmt.Errorf("resolve sheet id of %s: %w", def.Table, err)
	}
	if err := c.gw.DeleteRows(ctx, def.Table, sheetID, int64(rowIndex), int64(rowIndex+1)); err != nil {
		return fmt.Errorf("delete row %d of %s: %w", rowIndex, def.Table, err)
	}
	return nil
}

// List reads the whole table and decodes every data row, skipping rows
// without a usable id. Ordering is the physical row order; domain-specific
// sorts belong to the caller.
func (c *Client) List(ctx context.Context, def TableDef) ([]Record, error) {
	if err := c.EnsureTable(ctx, def); err != nil {
		return nil, err
	}
	rows, err := c.gw.GetRange(ctx, def.Table, sheets.WholeTableRange(def.Table), sheets.RenderUnformatted)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", def.Table, err)
	}
	records := make([]Record, 0)
	for i, row := range rows {
		if i == 0 {
			continue
		}
		rec := Decode(def.Schema, row)
		if _, ok := rec.Int(ColID); !ok {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}
