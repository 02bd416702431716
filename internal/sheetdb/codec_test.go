package sheetdb

import (
	"reflect"
	"testing"
)

func codecSchema() Schema {
	return NewSchema(
		Column{Name: "id", Kind: KindNumber},
		Column{Name: "title", Kind: KindText},
		Column{Name: "done", Kind: KindBool},
		Column{Name: "due_date", Kind: KindDate},
		Column{Name: "meta", Kind: KindJSON},
		Column{Name: "count", Kind: KindNumber},
	)
}

func TestDecodeBoolCoercion(t *testing.T) {
	schema := codecSchema()
	cases := []struct {
		raw  any
		want any
	}{
		{"TRUE", true},
		{"true", true},
		{"False", false},
		{true, true},
		{false, false},
	}
	for _, tc := range cases {
		rec := Decode(schema, []any{float64(1), "x", tc.raw, "", "", float64(0)})
		if rec["done"] != tc.want {
			t.Errorf("bool %v: expected %v, got %v", tc.raw, tc.want, rec["done"])
		}
	}
}

func TestDecodeDateColumn(t *testing.T) {
	schema := codecSchema()
	rec := Decode(schema, []any{float64(1), "x", "FALSE", "01/03/2024 09:00:00", "", float64(0)})
	if rec["due_date"] != "2024-03-01T09:00:00.000Z" {
		t.Errorf("expected ISO date, got %v", rec["due_date"])
	}

	rec = Decode(schema, []any{float64(1), "x", "FALSE", 44927.5, "", float64(0)})
	if rec["due_date"] != "2023-01-01T12:00:00.000Z" {
		t.Errorf("expected serial decode, got %v", rec["due_date"])
	}

	rec = Decode(schema, []any{float64(1), "x", "FALSE", "bogus", "", float64(0)})
	if rec["due_date"] != nil {
		t.Errorf("expected nil for bogus date, got %v", rec["due_date"])
	}
}

func TestDecodeJSONSniffing(t *testing.T) {
	schema := codecSchema()
	rec := Decode(schema, []any{float64(1), `{"a":1}`, "", "", `["x","y"]`, float64(0)})

	title, ok := rec["title"].(map[string]any)
	if !ok || title["a"] != float64(1) {
		t.Errorf("expected parsed object in title, got %v", rec["title"])
	}
	meta, ok := rec["meta"].([]any)
	if !ok || len(meta) != 2 {
		t.Errorf("expected parsed array in meta, got %v", rec["meta"])
	}

	// Malformed JSON keeps the raw string.
	rec = Decode(schema, []any{float64(1), "{not json", "", "", "", float64(0)})
	if rec["title"] != "{not json" {
		t.Errorf("expected raw string kept, got %v", rec["title"])
	}
}

func TestDecodeEmptyAndMissing(t *testing.T) {
	schema := codecSchema()
	// Short row: trailing columns undefined.
	rec := Decode(schema, []any{float64(7), ""})
	if rec["title"] != nil {
		t.Errorf("expected nil for empty string, got %v", rec["title"])
	}
	if rec["count"] != nil {
		t.Errorf("expected nil for missing cell, got %v", rec["count"])
	}
	if rec["id"] != float64(7) {
		t.Errorf("expected passthrough id, got %v", rec["id"])
	}
}

func TestEncode(t *testing.T) {
	schema := codecSchema()
	rec := Record{
		"id":       1,
		"title":    "hello",
		"done":     true,
		"due_date": "01/03/2024 09:00:00",
		"meta":     map[string]any{"k": "v"},
		"count":    nil,
	}
	row := Encode(schema, rec)
	want := []any{1, "hello", true, "01/03/2024 09:00:00", `{"k":"v"}`, ""}
	if !reflect.DeepEqual(row, want) {
		t.Errorf("expected %v, got %v", want, row)
	}
}

func TestEncodeNilTypedValues(t *testing.T) {
	// A nil slice or map is not the nil interface but must still encode
	// as the empty cell, and round-trip back to nil.
	schema := codecSchema()
	cases := []struct {
		name  string
		value any
	}{
		{"nil string slice", []string(nil)},
		{"nil map", map[string]any(nil)},
		{"nil pointer", (*int)(nil)},
	}
	for _, tc := range cases {
		row := Encode(schema, Record{"meta": tc.value})
		if row[4] != "" {
			t.Errorf("%s: expected empty cell, got %q", tc.name, row[4])
		}
		decoded := Decode(schema, row)
		if decoded["meta"] != nil {
			t.Errorf("%s: expected nil after round trip, got %v", tc.name, decoded["meta"])
		}
	}
}

func TestEncodeDoesNotFormatDates(t *testing.T) {
	// Encode is deliberately date-blind: whatever string the caller put in
	// a date column is written verbatim.
	schema := codecSchema()
	row := Encode(schema, Record{"due_date": "2024-03-01T09:00:00.000Z"})
	if row[3] != "2024-03-01T09:00:00.000Z" {
		t.Errorf("encode touched a date value: %v", row[3])
	}
}

func TestRoundTrip(t *testing.T) {
	schema := codecSchema()
	original := Record{
		"id":       float64(3),
		"title":    "report",
		"done":     true,
		"due_date": "2024-03-01T09:00:00.000Z",
		"meta":     map[string]any{"tags": []any{"a", "b"}},
		"count":    float64(12),
	}
	staged := original.Clone()
	formatDates(schema, staged)
	decoded := Decode(schema, Encode(schema, staged))
	if !reflect.DeepEqual(decoded, original) {
		t.Errorf("round trip mismatch:\n  want %v\n  got  %v", original, decoded)
	}
}

func TestFormatDates(t *testing.T) {
	schema := codecSchema()
	rec := Record{"due_date": "2024-03-01T09:00:00Z"}
	formatDates(schema, rec)
	if rec["due_date"] != "01/03/2024 09:00:00" {
		t.Errorf("expected display format, got %v", rec["due_date"])
	}

	rec = Record{"due_date": "garbage"}
	formatDates(schema, rec)
	if rec["due_date"] != nil {
		t.Errorf("expected nil for garbage date, got %v", rec["due_date"])
	}
}
