package sheetdb

import (
	"errors"
	"fmt"
)

// ErrNotFound reports that an exhaustive scan of the key column yielded no
// matching row.
var ErrNotFound = errors.New("record not found")

func notFound(table string, id int) error {
	return fmt.Errorf("%w: table %s id %d", ErrNotFound, table, id)
}

func groupNotFound(table string, groupID int) error {
	return fmt.Errorf("%w: table %s group %d", ErrNotFound, table, groupID)
}

// SchemaError reports a column the codec needs that the table's schema does
// not carry, or a caller-supplied column the schema does not know.
type SchemaError struct {
	Table  string
	Column string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("table %s: unknown column %q", e.Table, e.Column)
}
