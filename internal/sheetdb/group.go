package sheetdb

import (
	"context"
	"fmt"
	"sort"

	"opsdesk/api/internal/dates"
	"opsdesk/api/internal/sheets"
)

// groupRow pairs a located physical row with its grid index.
type groupRow struct {
	index  int
	record Record
}

// CreateGroup writes a grouped entity: one group id, one physical row per
// line item, every row carrying the shared fields and the group id, each
// with its own row id.
func (c *Client) CreateGroup(ctx context.Context, def TableDef, shared Record, items []Record) (int, error) {
	if def.GroupColumn == "" {
		return 0, &SchemaError{Table: def.Table.Tab, Column: "(group column)"}
	}
	if err := c.EnsureTable(ctx, def); err != nil {
		return 0, err
	}
	if err := validate(def, shared); err != nil {
		return 0, err
	}
	for _, item := range items {
		if err := validate(def, item); err != nil {
			return 0, err
		}
	}

	groupID, err := c.NextGroupID(ctx, def)
	if err != nil {
		return 0, err
	}
	// One scan; the items of this batch take consecutive ids from it.
	baseID, err := c.NextID(ctx, def)
	if err != nil {
		return 0, err
	}

	now := dates.Format(c.now())
	rows := make([][]any, 0, len(items))
	for i, item := range items {
		rec := shared.Clone()
		for name, value := range item {
			rec[name] = value
		}
		rec[ColID] = baseID + i
		rec[def.GroupColumn] = groupID
		rec[ColCreatedAt] = now
		rec[ColUpdatedAt] = now
		if def.Derive != nil {
			def.Derive(rec)
		}
		formatDates(def.Schema, rec)
		rows = append(rows, Encode(def.Schema, rec))
	}
	if err := c.gw.AppendRows(ctx, def.Table, sheets.WholeTableRange(def.Table), rows); err != nil {
		return 0, fmt.Errorf("append group to %s: %w", def.Table, err)
	}
	return groupID, nil
}

// locateGroup scans the whole table for rows sharing groupID, in ascending
// grid order.
func (c *Client) locateGroup(ctx context.Context, def TableDef, groupID int) ([]groupRow, error) {
	rows, err := c.gw.GetRange(ctx, def.Table, sheets.WholeTableRange(def.Table), sheets.RenderUnformatted)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", def.Table, err)
	}
	located := make([]groupRow, 0)
	for i, row := range rows {
		if i == 0 {
			continue
		}
		rec := Decode(def.Schema, row)
		if n, ok := rec.Int(def.GroupColumn); ok && n == groupID {
			located = append(located, groupRow{index: i, record: rec})
		}
	}
	return located, nil
}

// UpdateGroup rewrites a grouped entity whose new line list may differ in
// cardinality from the stored one. The stored rows are snapshotted by row
// id, deleted, and the merged lines reinserted at the original anchor (the
// lowest grid index the group occupied): blank rows first, values second,
// because the gateway has no atomic insert-populated-rows primitive.
//
// A failure between the delete and the reinsertion leaves the group
// partially or fully missing; that data-loss window is an accepted cost of
// the delete-then-reinsert strategy, as is the stale-anchor hazard when two
// edits to the same group race.
func (c *Client) UpdateGroup(ctx context.Context, def TableDef, groupID int, shared Record, items []Record) error {
	if def.GroupColumn == "" {
		return &SchemaError{Table: def.Table.Tab, Column: "(group column)"}
	}
	// Zero lines would delete the group and then have nothing to reinsert;
	// a group always occupies at least one row.
	if len(items) == 0 {
		return fmt.Errorf("update group %d of %s: a group needs at least one row", groupID, def.Table.Tab)
	}
	if err := c.EnsureTable(ctx, def); err != nil {
		return err
	}
	if err := validate(def, shared); err != nil {
		return err
	}
	for _, item := range items {
		if err := validate(def, item); err != nil {
			return err
		}
	}

	located, err := c.locateGroup(ctx, def, groupID)
	if err != nil {
		return err
	}
	if len(located) == 0 {
		return groupNotFound(def.Table.Tab, groupID)
	}

	anchor := located[0].index
	snapshot := make(map[int]Record, len(located))
	for _, row := range located {
		if id, ok := row.record.Int(ColID); ok {
			snapshot[id] = row.record
		}
	}

	// New-line ids are allocated before the delete so the scan still sees
	// the rows about to be reused; allocating after would let a fresh id
	// collide with a preserved one.
	baseID, err := c.NextID(ctx, def)
	if err != nil {
		return err
	}

	merged := mergeLines(def, snapshot, shared, items, groupID, baseID, dates.Format(c.now()))

	sheetID, err := c.gw.SheetID(ctx, def.Table)
	if err != nil {
		return fmt.Errorf("resolve sheet id of %s: %w", def.Table, err)
	}

	// Descending order keeps the remaining indices valid while earlier
	// rows are still pending deletion.
	indices := make([]int, 0, len(located))
	for _, row := range located {
		indices = append(indices, row.index)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(indices)))
	for _, index := range indices {
		if err := c.gw.DeleteRows(ctx, def.Table, sheetID, int64(index), int64(index+1)); err != nil {
			return fmt.Errorf("delete group row %d of %s: %w", index, def.Table, err)
		}
	}

	if err := c.gw.InsertRows(ctx, def.Table, sheetID, int64(anchor), int64(anchor+len(merged))); err != nil {
		return fmt.Errorf("insert %d rows at %d of %s: %w", len(merged), anchor, def.Table, err)
	}
	encoded := make([][]any, 0, len(merged))
	for _, rec := range merged {
		encoded = append(encoded, Encode(def.Schema, rec))
	}
	rng := sheets.RowsRange(def.Table, anchor+1, len(merged), def.Schema.Len())
	if err := c.gw.UpdateRange(ctx, def.Table, rng, encoded); err != nil {
		return fmt.Errorf("fill %d rows at %d of %s: %w", len(merged), anchor, def.Table, err)
	}
	return nil
}

// mergeLines is the pure core of UpdateGroup: it combines the snapshot of
// the old physical rows with the incoming line list. A line carrying an id
// found in the snapshot keeps that row's preserved columns and its original
// created_at; a line without one becomes a new row with a fresh id and a
// fresh created_at. Derived fields are recomputed here, after the merge.
func mergeLines(def TableDef, snapshot map[int]Record, shared Record, items []Record, groupID, baseID int, now string) []Record {
	merged := make([]Record, 0, len(items))
	nextID := baseID
	for _, item := range items {
		rec := shared.Clone()
		for name, value := range item {
			rec[name] = value
		}
		rec[def.GroupColumn] = groupID
		rec[ColUpdatedAt] = now

		if id, ok := item.Int(ColID); ok {
			if old, known := snapshot[id]; known {
				rec[ColID] = id
				rec[ColCreatedAt] = old[ColCreatedAt]
				for _, name := range def.Preserved {
					if _, supplied := item[name]; !supplied {
						rec[name] = old[name]
					}
				}
				if def.Derive != nil {
					def.Derive(rec)
				}
				formatDates(def.Schema, rec)
				merged = append(merged, rec)
				continue
			}
		}

		rec[ColID] = nextID
		nextID++
		rec[ColCreatedAt] = now
		if def.Derive != nil {
			def.Derive(rec)
		}
		formatDates(def.Schema, rec)
		merged = append(merged, rec)
	}
	return merged
}

// UpdateGroupFollowUp merges patch into every physical row of a group
// without changing cardinality: each row is read back, merged, re-derived,
// and all rows are written in one multi-range batch. Used for pipeline
// stage edits, where line identity fields stay untouched because the patch
// simply does not carry them.
func (c *Client) UpdateGroupFollowUp(ctx context.Context, def TableDef, groupID int, patch Record) error {
	if def.GroupColumn == "" {
		return &SchemaError{Table: def.Table.Tab, Column: "(group column)"}
	}
	if err := c.EnsureTable(ctx, def); err != nil {
		return err
	}
	if err := validate(def, patch); err != nil {
		return err
	}

	located, err := c.locateGroup(ctx, def, groupID)
	if err != nil {
		return err
	}
	if len(located) == 0 {
		return groupNotFound(def.Table.Tab, groupID)
	}

	now := dates.Format(c.now())
	updates := make([]sheets.RangeUpdate, 0, len(located))
	for _, row := range located {
		merged := row.record.Clone()
		for name, value := range patch {
			merged[name] = value
		}
		merged[ColCreatedAt] = row.record[ColCreatedAt]
		merged[ColUpdatedAt] = now
		if def.Derive != nil {
			def.Derive(merged)
		}
		formatDates(def.Schema, merged)
		updates = append(updates, sheets.RangeUpdate{
			Range: sheets.RowRange(def.Table, row.index+1, def.Schema.Len()),
			Rows:  [][]any{Encode(def.Schema, merged)},
		})
	}
	if err := c.gw.BatchUpdateValues(ctx, def.Table, updates); err != nil {
		return fmt.Errorf("batch update group %d of %s: %w", groupID, def.Table, err)
	}
	return nil
}

// GetGroup returns the decoded physical rows of one group, in row order.
func (c *Client) GetGroup(ctx context.Context, def TableDef, groupID int) ([]Record, error) {
	if err := c.EnsureTable(ctx, def); err != nil {
		return nil, err
	}
	located, err := c.locateGroup(ctx, def, groupID)
	if err != nil {
		return nil, err
	}
	if len(located) == 0 {
		return nil, groupNotFound(def.Table.Tab, groupID)
	}
	records := make([]Record, 0, len(located))
	for _, row := range located {
		records = append(records, row.record)
	}
	return records, nil
}

// ListGroups reads the whole table and buckets decoded rows by group id,
// in first-appearance order. Rows without a usable group id are skipped.
func (c *Client) ListGroups(ctx context.Context, def TableDef) ([][]Record, error) {
	if def.GroupColumn == "" {
		return nil, &SchemaError{Table: def.Table.Tab, Column: "(group column)"}
	}
	records, err := c.List(ctx, def)
	if err != nil {
		return nil, err
	}
	order := make([]int, 0)
	buckets := make(map[int][]Record)
	for _, rec := range records {
		groupID, ok := rec.Int(def.GroupColumn)
		if !ok {
			continue
		}
		if _, seen := buckets[groupID]; !seen {
			order = append(order, groupID)
		}
		buckets[groupID] = append(buckets[groupID], rec)
	}
	groups := make([][]Record, 0, len(order))
	for _, groupID := range order {
		groups = append(groups, buckets[groupID])
	}
	return groups, nil
}

// RemoveGroup deletes every physical row of a group, descending.
func (c *Client) RemoveGroup(ctx context.Context, def TableDef, groupID int) error {
	if err := c.EnsureTable(ctx, def); err != nil {
		return err
	}
	located, err := c.locateGroup(ctx, def, groupID)
	if err != nil {
		return err
	}
	if len(located) == 0 {
		return groupNotFound(def.Table.Tab, groupID)
	}
	sheetID, err := c.gw.SheetID(ctx, def.Table)
	if err != nil {
		return fmt.Errorf("resolve sheet id of %s: %w", def.Table, err)
	}
	for i := len(located) - 1; i >= 0; i-- {
		index := located[i].index
		if err := c.gw.DeleteRows(ctx, def.Table, sheetID, int64(index), int64(index+1)); err != nil {
			return fmt.Errorf("delete group row %d of %s: %w", index, def.Table, err)
		}
	}
	return nil
}
