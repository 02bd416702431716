// Package sheetdb makes a spreadsheet tab behave like a schema-enforcing,
// row-oriented record store: header management, row↔record marshalling with
// type coercion, surrogate integer keys, single-row CRUD, and a grouped
// multi-row entity protocol for records that span a variable number of
// physical rows. The backend offers no indexes, no transactions, and no
// concurrency control; the gaps that follow from that are documented on the
// operations they affect, not papered over.
package sheetdb

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"opsdesk/api/internal/sheets"
)

// Kind classifies a column for the codec. Only Bool and Date change decode
// behavior; Text, Number and JSON share the generic path (JSON detection is
// value-driven). The kinds still matter as documentation of the table's
// intended shape.
type Kind int

const (
	KindText Kind = iota
	KindNumber
	KindBool
	KindDate
	KindJSON
)

// Column is one named, position-significant column.
type Column struct {
	Name string
	Kind Kind
}

// Schema is the ordered column list of a table. Position is the column
// address in the backing store, so order is part of the contract.
type Schema struct {
	columns []Column
	index   map[string]int
}

func NewSchema(columns ...Column) Schema {
	index := make(map[string]int, len(columns))
	for i, col := range columns {
		index[col.Name] = i
	}
	return Schema{columns: columns, index: index}
}

func (s Schema) Len() int { return len(s.columns) }

func (s Schema) Headers() []string {
	headers := make([]string, len(s.columns))
	for i, col := range s.columns {
		headers[i] = col.Name
	}
	return headers
}

// Position resolves a column name to its 0-based position.
func (s Schema) Position(name string) (int, bool) {
	i, ok := s.index[name]
	return i, ok
}

func (s Schema) KindOf(name string) (Kind, bool) {
	i, ok := s.index[name]
	if !ok {
		return KindText, false
	}
	return s.columns[i].Kind, true
}

// Record maps column names to typed values: string, float64, bool, nil, or
// nested JSON (map[string]any / []any).
type Record map[string]any

// Clone returns a shallow copy.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Int reads a column as an integer, tolerating the float64 and string forms
// the backend hands back. ok is false when the value is absent or not
// numeric.
func (r Record) Int(name string) (int, bool) {
	switch v := r[name].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
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

// Float reads a column as a float64.
func (r Record) Float(name string) (float64, bool) {
	switch v := r[name].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// String reads a column as a string ("" when absent or not a string).
func (r Record) String(name string) string {
	s, _ := r[name].(string)
	return s
}

// Bool reads a column as a boolean.
func (r Record) Bool(name string) bool {
	b, _ := r[name].(bool)
	return b
}

// TableDef binds a remote table to its schema and, for grouped tables, the
// shared group-identifier column plus the merge rules of the grouped-entity
// protocol.
type TableDef struct {
	Table  sheets.Table
	Schema Schema

	// GroupColumn names the shared identifier column of a grouped table
	// ("" for simple tables).
	GroupColumn string
	// Preserved lists the per-line columns whose values survive a grouped
	// update when the incoming line carries a known row id (pipeline
	// timestamps, status, cost fields). created_at is always preserved.
	Preserved []string
	// Derive recomputes derived fields (e.g. a line total) on a merged row.
	// It runs during the merge, after preserved and incoming fields are
	// settled.
	Derive func(Record)
}

// Well-known columns every table carries.
const (
	ColID        = "id"
	ColCreatedAt = "created_at"
	ColUpdatedAt = "updated_at"
)

// Client is the store abstraction over a Gateway. One Client serves many
// tables; the per-table "ensured" state is cached for the process lifetime.
type Client struct {
	gw  sheets.Gateway
	now func() time.Time

	mu      sync.Mutex
	ensured map[string]struct{}
}

func New(gw sheets.Gateway) *Client {
	return &Client{
		gw:      gw,
		now:     time.Now,
		ensured: make(map[string]struct{}),
	}
}

// SetNow overrides the clock. Tests use it to pin created_at/updated_at.
func (c *Client) SetNow(now func() time.Time) {
	c.now = now
}

// Gateway exposes the underlying transport for callers that need a
// primitive the engines do not wrap (health checks).
func (c *Client) Gateway() sheets.Gateway {
	return c.gw
}

func (c *Client) ensureKey(def TableDef) string {
	return def.Table.SpreadsheetID + "\x00" + def.Table.Tab
}

// EnsureTable brings a tab into line with its schema, idempotently: a
// missing tab is created, an empty header row is written, and a header row
// that differs from the canonical set is overwritten in place.
//
// Overwriting the header does not touch existing data rows, so only
// additive changes that append columns after the existing prefix are safe;
// a rename or reorder silently desynchronizes stored rows from their column
// meanings. The rewrite also covers only the canonical columns: when the
// stored header is longer, trailing cells keep their stale names. Callers
// own those constraints.
func (c *Client) EnsureTable(ctx context.Context, def TableDef) error {
	key := c.ensureKey(def)
	c.mu.Lock()
	if _, ok := c.ensured[key]; ok {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	exists, err := c.gw.TabExists(ctx, def.Table)
	if err != nil {
		return fmt.Errorf("check tab %s: %w", def.Table, err)
	}
	if !exists {
		if err := c.gw.CreateTab(ctx, def.Table); err != nil {
			return fmt.Errorf("create tab %s: %w", def.Table, err)
		}
	}

	headerRows, err := c.gw.GetRange(ctx, def.Table, sheets.HeaderRange(def.Table), sheets.RenderUnformatted)
	if err != nil {
		return fmt.Errorf("read header of %s: %w", def.Table, err)
	}

	canonical := def.Schema.Headers()
	if !headerMatches(headerRows, canonical) {
		row := make([]any, len(canonical))
		for i, name := range canonical {
			row[i] = name
		}
		rng := sheets.RowRange(def.Table, 1, len(canonical))
		if err := c.gw.UpdateRange(ctx, def.Table, rng, [][]any{row}); err != nil {
			return fmt.Errorf("write header of %s: %w", def.Table, err)
		}
	}

	c.mu.Lock()
	c.ensured[key] = struct{}{}
	c.mu.Unlock()
	return nil
}

func headerMatches(headerRows [][]any, canonical []string) bool {
	if len(headerRows) == 0 {
		return false
	}
	header := headerRows[0]
	if len(header) != len(canonical) {
		return false
	}
	for i, cell := range header {
		name, ok := cell.(string)
		if !ok || name != canonical[i] {
			return false
		}
	}
	return true
}

// validate rejects record columns the schema does not know.
func validate(def TableDef, rec Record) error {
	for name := range rec {
		if _, ok := def.Schema.Position(name); !ok {
			return &SchemaError{Table: def.Table.Tab, Column: name}
		}
	}
	return nil
}
