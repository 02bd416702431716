package sheets

import (
	"context"
	"testing"
)

var testTable = Table{SpreadsheetID: "wb", Tab: "Records"}

func newTestMemory(t *testing.T) *Memory {
	t.Helper()
	m := NewMemory()
	if err := m.CreateTab(context.Background(), testTable); err != nil {
		t.Fatalf("create tab: %v", err)
	}
	return m
}

func TestColumnLetter(t *testing.T) {
	cases := map[int]string{0: "A", 1: "B", 25: "Z", 26: "AA", 27: "AB", 51: "AZ", 52: "BA"}
	for index, want := range cases {
		if got := ColumnLetter(index); got != want {
			t.Errorf("ColumnLetter(%d): expected %s, got %s", index, want, got)
		}
	}
}

func TestRangeHelpers(t *testing.T) {
	table := Table{SpreadsheetID: "wb", Tab: "Orders"}
	if got := RowRange(table, 3, 4); got != "Orders!A3:D3" {
		t.Errorf("RowRange: got %q", got)
	}
	if got := RowsRange(table, 5, 2, 3); got != "Orders!A5:C6" {
		t.Errorf("RowsRange: got %q", got)
	}
	if got := ColumnRange(table, 1); got != "Orders!B:B" {
		t.Errorf("ColumnRange: got %q", got)
	}
	if got := HeaderRange(table); got != "Orders!1:1" {
		t.Errorf("HeaderRange: got %q", got)
	}
	spaced := Table{SpreadsheetID: "wb", Tab: "My Orders"}
	if got := ColumnRange(spaced, 0); got != "'My Orders'!A:A" {
		t.Errorf("quoted ColumnRange: got %q", got)
	}
}

func TestAppendAndGetWholeTable(t *testing.T) {
	m := newTestMemory(t)
	ctx := context.Background()

	rows := [][]any{
		{"ID", "Name"},
		{float64(1), "first"},
		{float64(2), "second"},
	}
	if err := m.AppendRows(ctx, testTable, WholeTableRange(testTable), rows); err != nil {
		t.Fatalf("append: %v", err)
	}

	got, err := m.GetRange(ctx, testTable, WholeTableRange(testTable), RenderUnformatted)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(got))
	}
	if got[1][1] != "first" {
		t.Errorf("expected first, got %v", got[1][1])
	}
}

func TestColumnRead(t *testing.T) {
	m := newTestMemory(t)
	ctx := context.Background()
	seed := [][]any{
		{"ID", "Name"},
		{float64(1), "a"},
		{float64(2), "b"},
	}
	if err := m.AppendRows(ctx, testTable, WholeTableRange(testTable), seed); err != nil {
		t.Fatalf("append: %v", err)
	}

	got, err := m.GetRange(ctx, testTable, ColumnRange(testTable, 0), RenderUnformatted)
	if err != nil {
		t.Fatalf("get column: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 column cells, got %d", len(got))
	}
	if got[2][0] != float64(2) {
		t.Errorf("expected 2, got %v", got[2][0])
	}
}

func TestDeleteShiftsRows(t *testing.T) {
	m := newTestMemory(t)
	ctx := context.Background()
	seed := [][]any{
		{"ID"}, {float64(1)}, {float64(2)}, {float64(3)},
	}
	if err := m.AppendRows(ctx, testTable, WholeTableRange(testTable), seed); err != nil {
		t.Fatalf("append: %v", err)
	}
	sheetID, err := m.SheetID(ctx, testTable)
	if err != nil {
		t.Fatalf("sheet id: %v", err)
	}

	// Delete the row holding id 2 (grid index 2, end-exclusive).
	if err := m.DeleteRows(ctx, testTable, sheetID, 2, 3); err != nil {
		t.Fatalf("delete: %v", err)
	}

	got, err := m.GetRange(ctx, testTable, WholeTableRange(testTable), RenderUnformatted)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 rows after delete, got %d", len(got))
	}
	// Row previously at index 3 now sits at index 2.
	if got[2][0] != float64(3) {
		t.Errorf("expected id 3 at shifted index, got %v", got[2][0])
	}
}

func TestInsertThenFill(t *testing.T) {
	m := newTestMemory(t)
	ctx := context.Background()
	seed := [][]any{
		{"ID"}, {float64(1)}, {float64(4)},
	}
	if err := m.AppendRows(ctx, testTable, WholeTableRange(testTable), seed); err != nil {
		t.Fatalf("append: %v", err)
	}
	sheetID, err := m.SheetID(ctx, testTable)
	if err != nil {
		t.Fatalf("sheet id: %v", err)
	}

	if err := m.InsertRows(ctx, testTable, sheetID, 2, 4); err != nil {
		t.Fatalf("insert: %v", err)
	}
	fill := [][]any{{float64(2)}, {float64(3)}}
	if err := m.UpdateRange(ctx, testTable, RowsRange(testTable, 3, 2, 1), fill); err != nil {
		t.Fatalf("fill: %v", err)
	}

	got, err := m.GetRange(ctx, testTable, WholeTableRange(testTable), RenderUnformatted)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	want := []float64{1, 2, 3, 4}
	for i, id := range want {
		if got[i+1][0] != id {
			t.Errorf("row %d: expected id %v, got %v", i+1, id, got[i+1][0])
		}
	}
}

func TestBatchUpdateValues(t *testing.T) {
	m := newTestMemory(t)
	ctx := context.Background()
	seed := [][]any{
		{"ID", "Status"}, {float64(1), "old"}, {float64(2), "old"},
	}
	if err := m.AppendRows(ctx, testTable, WholeTableRange(testTable), seed); err != nil {
		t.Fatalf("append: %v", err)
	}

	updates := []RangeUpdate{
		{Range: RowRange(testTable, 2, 2), Rows: [][]any{{float64(1), "new"}}},
		{Range: RowRange(testTable, 3, 2), Rows: [][]any{{float64(2), "newer"}}},
	}
	if err := m.BatchUpdateValues(ctx, testTable, updates); err != nil {
		t.Fatalf("batch update: %v", err)
	}

	got, err := m.GetRange(ctx, testTable, WholeTableRange(testTable), RenderUnformatted)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got[1][1] != "new" || got[2][1] != "newer" {
		t.Errorf("batch update not applied: %v", got)
	}
}

func TestGetRangeUnknownTab(t *testing.T) {
	m := NewMemory()
	_, err := m.GetRange(context.Background(), Table{SpreadsheetID: "wb", Tab: "Missing"}, "Missing!A:A", RenderUnformatted)
	if err == nil {
		t.Fatal("expected error for unknown tab")
	}
}

func TestTabExists(t *testing.T) {
	m := newTestMemory(t)
	ctx := context.Background()
	exists, err := m.TabExists(ctx, testTable)
	if err != nil || !exists {
		t.Fatalf("expected tab to exist, got %v %v", exists, err)
	}
	exists, err = m.TabExists(ctx, Table{SpreadsheetID: "wb", Tab: "Nope"})
	if err != nil || exists {
		t.Fatalf("expected tab to be absent, got %v %v", exists, err)
	}
}
