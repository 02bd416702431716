package sheets

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// Memory is an in-process Gateway backed by plain slices. It mirrors the
// backend's index semantics (0-based end-exclusive structural ranges, row
// shifts on delete, trailing empty cells trimmed from reads) so engine
// behavior under test matches production.
type Memory struct {
	mu          sync.Mutex
	tabs        map[string]*memTab
	nextSheetID int64
}

type memTab struct {
	sheetID int64
	rows    [][]any
}

func NewMemory() *Memory {
	return &Memory{tabs: make(map[string]*memTab)}
}

func (m *Memory) key(table Table) string {
	return table.SpreadsheetID + "\x00" + table.Tab
}

func (m *Memory) tab(table Table) (*memTab, error) {
	tab, ok := m.tabs[m.key(table)]
	if !ok {
		return nil, &TabNotFoundError{Tab: table.Tab}
	}
	return tab, nil
}

func (m *Memory) tabBySheetID(table Table, sheetID int64) (*memTab, error) {
	prefix := table.SpreadsheetID + "\x00"
	for key, tab := range m.tabs {
		if strings.HasPrefix(key, prefix) && tab.sheetID == sheetID {
			return tab, nil
		}
	}
	return nil, fmt.Errorf("sheet id %d not found", sheetID)
}

func (m *Memory) GetRange(ctx context.Context, table Table, a1Range string, mode RenderMode) ([][]any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tab, err := m.tab(table)
	if err != nil {
		return nil, err
	}
	area, err := parseA1(a1Range)
	if err != nil {
		return nil, err
	}

	lastRow := len(tab.rows)
	endRow := area.endRow
	if endRow < 0 || endRow > lastRow {
		endRow = lastRow
	}
	result := make([][]any, 0)
	for r := area.startRow; r < endRow; r++ {
		if r >= len(tab.rows) {
			break
		}
		row := tab.rows[r]
		endCol := area.endCol
		if endCol < 0 || endCol > len(row) {
			endCol = len(row)
		}
		out := make([]any, 0)
		for c := area.startCol; c < endCol; c++ {
			if c >= len(row) || row[c] == nil {
				out = append(out, "")
			} else {
				out = append(out, row[c])
			}
		}
		// The backend trims trailing empty cells from each returned row.
		for len(out) > 0 {
			if s, ok := out[len(out)-1].(string); ok && s == "" {
				out = out[:len(out)-1]
				continue
			}
			break
		}
		result = append(result, out)
	}
	// ...and trailing empty rows from the grid.
	for len(result) > 0 && len(result[len(result)-1]) == 0 {
		result = result[:len(result)-1]
	}
	return result, nil
}

func (m *Memory) AppendRows(ctx context.Context, table Table, a1Range string, rows [][]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tab, err := m.tab(table)
	if err != nil {
		return err
	}
	// Appends land after the last non-empty row.
	for len(tab.rows) > 0 && rowEmpty(tab.rows[len(tab.rows)-1]) {
		tab.rows = tab.rows[:len(tab.rows)-1]
	}
	for _, row := range rows {
		tab.rows = append(tab.rows, append([]any(nil), row...))
	}
	return nil
}

func (m *Memory) UpdateRange(ctx context.Context, table Table, a1Range string, rows [][]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateLocked(table, a1Range, rows)
}

func (m *Memory) updateLocked(table Table, a1Range string, rows [][]any) error {
	tab, err := m.tab(table)
	if err != nil {
		return err
	}
	area, err := parseA1(a1Range)
	if err != nil {
		return err
	}
	for i, row := range rows {
		r := area.startRow + i
		for len(tab.rows) <= r {
			tab.rows = append(tab.rows, nil)
		}
		for j, value := range row {
			c := area.startCol + j
			for len(tab.rows[r]) <= c {
				tab.rows[r] = append(tab.rows[r], nil)
			}
			tab.rows[r][c] = value
		}
	}
	return nil
}

func (m *Memory) BatchUpdateValues(ctx context.Context, table Table, updates []RangeUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, update := range updates {
		if err := m.updateLocked(table, update.Range, update.Rows); err != nil {
			return err
		}
	}
	return nil
}

func (m *Memory) DeleteRows(ctx context.Context, table Table, sheetID, startIndex, endIndex int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tab, err := m.tabBySheetID(table, sheetID)
	if err != nil {
		return err
	}
	start, end := int(startIndex), int(endIndex)
	if start < 0 || end > len(tab.rows) || start >= end {
		return fmt.Errorf("delete rows %d-%d out of range (have %d rows)", start, end, len(tab.rows))
	}
	tab.rows = append(tab.rows[:start], tab.rows[end:]...)
	return nil
}

func (m *Memory) InsertRows(ctx context.Context, table Table, sheetID, startIndex, endIndex int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tab, err := m.tabBySheetID(table, sheetID)
	if err != nil {
		return err
	}
	start, end := int(startIndex), int(endIndex)
	if start < 0 || start > len(tab.rows) || start >= end {
		return fmt.Errorf("insert rows %d-%d out of range (have %d rows)", start, end, len(tab.rows))
	}
	blanks := make([][]any, end-start)
	tab.rows = append(tab.rows[:start], append(blanks, tab.rows[start:]...)...)
	return nil
}

func (m *Memory) CreateTab(ctx context.Context, table Table) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := m.key(table)
	if _, ok := m.tabs[key]; ok {
		return fmt.Errorf("tab %q already exists", table.Tab)
	}
	m.nextSheetID++
	m.tabs[key] = &memTab{sheetID: m.nextSheetID}
	return nil
}

func (m *Memory) TabExists(ctx context.Context, table Table) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.tabs[m.key(table)]
	return ok, nil
}

func (m *Memory) SheetID(ctx context.Context, table Table) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tab, err := m.tab(table)
	if err != nil {
		return 0, err
	}
	return tab.sheetID, nil
}

// Rows exposes a copy of the tab grid for test assertions.
func (m *Memory) Rows(table Table) [][]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	tab, ok := m.tabs[m.key(table)]
	if !ok {
		return nil
	}
	out := make([][]any, len(tab.rows))
	for i, row := range tab.rows {
		out[i] = append([]any(nil), row...)
	}
	return out
}

func rowEmpty(row []any) bool {
	for _, value := range row {
		if value == nil {
			continue
		}
		if s, ok := value.(string); ok && s == "" {
			continue
		}
		return false
	}
	return true
}

// area is a parsed A1 range, 0-based, end-exclusive; -1 means unbounded.
type area struct {
	startRow, endRow int
	startCol, endCol int
}

func parseA1(a1Range string) (area, error) {
	cellPart := a1Range
	if strings.HasPrefix(a1Range, "'") {
		closing := strings.Index(a1Range[1:], "'")
		if closing < 0 {
			return area{}, fmt.Errorf("malformed range %q", a1Range)
		}
		cellPart = a1Range[closing+2:]
		cellPart = strings.TrimPrefix(cellPart, "!")
	} else if bang := strings.Index(a1Range, "!"); bang >= 0 {
		cellPart = a1Range[bang+1:]
	} else {
		// Bare tab name addresses the whole grid.
		return area{startRow: 0, endRow: -1, startCol: 0, endCol: -1}, nil
	}
	if cellPart == "" {
		return area{startRow: 0, endRow: -1, startCol: 0, endCol: -1}, nil
	}

	refs := strings.SplitN(cellPart, ":", 2)
	startCol, startRow, err := parseRef(refs[0])
	if err != nil {
		return area{}, fmt.Errorf("malformed range %q: %w", a1Range, err)
	}
	endCol, endRow := startCol, startRow
	if len(refs) == 2 {
		endCol, endRow, err = parseRef(refs[1])
		if err != nil {
			return area{}, fmt.Errorf("malformed range %q: %w", a1Range, err)
		}
	}

	out := area{startRow: 0, endRow: -1, startCol: 0, endCol: -1}
	if startRow >= 0 {
		out.startRow = startRow
	}
	if endRow >= 0 {
		out.endRow = endRow + 1
	}
	if startCol >= 0 {
		out.startCol = startCol
	}
	if endCol >= 0 {
		out.endCol = endCol + 1
	}
	return out, nil
}

// parseRef splits a reference like "C7" into 0-based column and row, either
// of which may be absent (-1) for open-ended ranges like "A:A" or "1:1".
func parseRef(ref string) (col, row int, err error) {
	i := 0
	for i < len(ref) && ref[i] >= 'A' && ref[i] <= 'Z' {
		i++
	}
	col, row = -1, -1
	if i > 0 {
		col = 0
		for _, r := range ref[:i] {
			col = col*26 + int(r-'A'+1)
		}
		col--
	}
	if i < len(ref) {
		n, convErr := strconv.Atoi(ref[i:])
		if convErr != nil || n < 1 {
			return 0, 0, fmt.Errorf("bad cell reference %q", ref)
		}
		row = n - 1
	}
	if col < 0 && row < 0 {
		return 0, 0, fmt.Errorf("bad cell reference %q", ref)
	}
	return col, row, nil
}
