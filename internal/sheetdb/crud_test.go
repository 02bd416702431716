package sheetdb

import (
	"context"
	"errors"
	"testing"
)

func TestCreateStampsIDAndTimestamps(t *testing.T) {
	client, gw := newTestClient()
	ctx := context.Background()
	def := simpleDef()

	rec, err := client.Create(ctx, def, Record{"question": "Submit report", "due_date": "2024-03-01T09:00:00Z"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if id, _ := rec.Int("id"); id != 1 {
		t.Errorf("expected id 1, got %v", rec["id"])
	}
	if rec["created_at"] != "2024-03-01T09:00:00.000Z" {
		t.Errorf("expected stamped created_at, got %v", rec["created_at"])
	}

	// The stored cell is the day-first display string, never ISO.
	rows := gw.Rows(def.Table)
	duePos, _ := def.Schema.Position("due_date")
	if rows[1][duePos] != "01/03/2024 09:00:00" {
		t.Errorf("expected display-format stored date, got %v", rows[1][duePos])
	}
}

func TestListDecodesStoredDates(t *testing.T) {
	client, _ := newTestClient()
	ctx := context.Background()
	def := simpleDef()

	if _, err := client.Create(ctx, def, Record{"question": "Submit report", "due_date": "2024-03-01T09:00:00Z"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	records, err := client.List(ctx, def)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0]["due_date"] != "2024-03-01T09:00:00.000Z" {
		t.Errorf("expected ISO due_date after decode, got %v", records[0]["due_date"])
	}
}

func TestGet(t *testing.T) {
	client, _ := newTestClient()
	ctx := context.Background()
	def := simpleDef()

	created, err := client.Create(ctx, def, Record{"question": "first"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := client.Create(ctx, def, Record{"question": "second"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	id, _ := created.Int("id")
	got, err := client.Get(ctx, def, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got["question"] != "first" {
		t.Errorf("expected first, got %v", got["question"])
	}
}

func TestGetNotFound(t *testing.T) {
	client, _ := newTestClient()
	ctx := context.Background()
	def := simpleDef()
	if err := client.EnsureTable(ctx, def); err != nil {
		t.Fatalf("ensure: %v", err)
	}

	_, err := client.Get(ctx, def, 99)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateMergesPatch(t *testing.T) {
	client, _ := newTestClient()
	ctx := context.Background()
	def := simpleDef()

	created, err := client.Create(ctx, def, Record{"question": "draft", "done": false})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	id, _ := created.Int("id")

	updated, err := client.Update(ctx, def, id, Record{"done": true})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated["done"] != true {
		t.Errorf("expected done=true, got %v", updated["done"])
	}
	if updated["question"] != "draft" {
		t.Errorf("expected untouched question, got %v", updated["question"])
	}
}

func TestUpdateRestoresCreatedAt(t *testing.T) {
	client, _ := newTestClient()
	ctx := context.Background()
	def := simpleDef()

	created, err := client.Create(ctx, def, Record{"question": "q"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	id, _ := created.Int("id")

	updated, err := client.Update(ctx, def, id, Record{"created_at": "bogus", "question": "q2"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated["created_at"] != created["created_at"] {
		t.Errorf("created_at changed: was %v, now %v", created["created_at"], updated["created_at"])
	}
	if updated["question"] != "q2" {
		t.Errorf("rest of patch not applied: %v", updated["question"])
	}
}

func TestUpdateNotFound(t *testing.T) {
	client, _ := newTestClient()
	ctx := context.Background()
	def := simpleDef()
	if err := client.EnsureTable(ctx, def); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if _, err := client.Update(ctx, def, 42, Record{"question": "x"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRemoveShiftsSubsequentRows(t *testing.T) {
	client, _ := newTestClient()
	ctx := context.Background()
	def := simpleDef()

	for _, q := range []string{"a", "b", "c"} {
		if _, err := client.Create(ctx, def, Record{"question": q}); err != nil {
			t.Fatalf("create %s: %v", q, err)
		}
	}

	// id 2 sits at grid index 2; id 3 at index 3.
	before, err := client.FindRow(ctx, def, 3)
	if err != nil {
		t.Fatalf("find before: %v", err)
	}
	if err := client.Remove(ctx, def, 2); err != nil {
		t.Fatalf("remove: %v", err)
	}
	after, err := client.FindRow(ctx, def, 3)
	if err != nil {
		t.Fatalf("find after: %v", err)
	}
	if after != before-1 {
		t.Errorf("expected row to shift from %d to %d, got %d", before, before-1, after)
	}

	if err := client.Remove(ctx, def, 2); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for deleted id, got %v", err)
	}
}

func TestListSkipsRowsWithoutID(t *testing.T) {
	client, gw := newTestClient()
	ctx := context.Background()
	def := simpleDef()

	if _, err := client.Create(ctx, def, Record{"question": "keep"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	junk := [][]any{{"", "stray note", "", "", "", ""}}
	if err := gw.AppendRows(ctx, def.Table, "Checklists", junk); err != nil {
		t.Fatalf("seed junk: %v", err)
	}

	records, err := client.List(ctx, def)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("expected 1 record, got %d", len(records))
	}
}
