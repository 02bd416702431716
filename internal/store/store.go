// Package store persists the application's business tables in a
// spreadsheet workbook, one tab per table. Simple entities map to one
// row each; orders are grouped entities spanning one row per line, all
// sharing a party id.
package store

import (
	"context"
	"fmt"
	"time"

	"opsdesk/api/internal/dates"
	"opsdesk/api/internal/sheetdb"
)

type Store struct {
	db            *sheetdb.Client
	spreadsheetID string
}

func New(db *sheetdb.Client, spreadsheetID string) *Store {
	return &Store{db: db, spreadsheetID: spreadsheetID}
}

// DB exposes the underlying table client, mainly for tests.
func (s *Store) DB() *sheetdb.Client {
	return s.db
}

// EnsureAll creates every missing tab and writes canonical headers.
// Called once at startup.
func (s *Store) EnsureAll(ctx context.Context) error {
	for _, def := range s.Defs() {
		if err := s.db.EnsureTable(ctx, def); err != nil {
			return fmt.Errorf("ensure %s: %w", def.Table.Tab, err)
		}
	}
	return nil
}

// Ping verifies the workbook is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if _, err := s.db.Gateway().TabExists(ctx, s.usersDef().Table); err != nil {
		return fmt.Errorf("ping workbook: %w", err)
	}
	return nil
}

// recTime reads a decoded date column as time.Time. Decoded date cells
// hold ISO strings; anything unparseable comes back as the zero time.
func recTime(rec sheetdb.Record, name string) time.Time {
	raw := rec.String(name)
	if raw == "" {
		return time.Time{}
	}
	t, kind := dates.Parse(raw)
	if kind == dates.KindInvalid {
		return time.Time{}
	}
	return t
}

func recInt(rec sheetdb.Record, name string) int {
	n, _ := rec.Int(name)
	return n
}

func recFloat(rec sheetdb.Record, name string) float64 {
	f, _ := rec.Float(name)
	return f
}

// recStrings reads a JSON column decoded to a list of strings.
func recStrings(rec sheetdb.Record, name string) []string {
	switch v := rec[name].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// timeCell encodes a time for a date column, leaving empty cells for
// the zero time.
func timeCell(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return dates.Format(t)
}
