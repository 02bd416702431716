package sheetdb

import (
	"encoding/json"
	"reflect"
	"strings"

	"opsdesk/api/internal/dates"
)

// Decode maps a header-ordered raw row onto a Record. Per column, in
// priority order: boolean columns coerce "TRUE"/"FALSE" or native bools;
// date columns normalize to ISO-8601 strings; strings that look like JSON
// are parsed (the raw string is kept when parsing fails); empty or missing
// cells become nil; everything else passes through unchanged.
func Decode(schema Schema, raw []any) Record {
	rec := make(Record, schema.Len())
	for i, col := range schema.columns {
		var value any
		if i < len(raw) {
			value = raw[i]
		}
		rec[col.Name] = decodeValue(col.Kind, value)
	}
	return rec
}

func decodeValue(kind Kind, value any) any {
	switch kind {
	case KindBool:
		switch v := value.(type) {
		case bool:
			return v
		case string:
			switch strings.ToUpper(strings.TrimSpace(v)) {
			case "TRUE":
				return true
			case "FALSE":
				return false
			}
		}
	case KindDate:
		if iso := dates.ToISO(value); iso != "" {
			return iso
		}
		return nil
	}

	switch v := value.(type) {
	case nil:
		return nil
	case string:
		if v == "" {
			return nil
		}
		if strings.HasPrefix(v, "{") || strings.HasPrefix(v, "[") {
			var parsed any
			if err := json.Unmarshal([]byte(v), &parsed); err == nil {
				return parsed
			}
		}
		return v
	default:
		return value
	}
}

// Encode maps a Record onto a header-ordered raw row. Objects and arrays
// are JSON-stringified, nil becomes the empty string, everything else
// passes through as-is. Encode does not format dates: date values must
// already be display strings when they reach this point, which is the
// caller's contract (the engines call formatDates first).
func Encode(schema Schema, rec Record) []any {
	row := make([]any, schema.Len())
	for i, col := range schema.columns {
		row[i] = encodeValue(rec[col.Name])
	}
	return row
}

func encodeValue(value any) any {
	switch v := value.(type) {
	case nil:
		return ""
	case string, bool, float64, float32, int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64:
		return v
	default:
		// A nil slice, map, or pointer arrives as a non-nil interface and
		// would marshal to the literal "null"; it is still a null value.
		rv := reflect.ValueOf(value)
		switch rv.Kind() {
		case reflect.Pointer, reflect.Slice, reflect.Map, reflect.Interface:
			if rv.IsNil() {
				return ""
			}
		}
		encoded, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(encoded)
	}
}

// formatDates rewrites every date-kind column of rec to the display string
// format. Values already in display form round-trip unchanged; ISO strings
// and serial numbers are converted; unparseable values become nil.
func formatDates(schema Schema, rec Record) {
	for _, col := range schema.columns {
		if col.Kind != KindDate {
			continue
		}
		value, ok := rec[col.Name]
		if !ok || value == nil {
			continue
		}
		if t, kind := dates.Parse(value); kind != dates.KindInvalid {
			rec[col.Name] = dates.Format(t)
		} else {
			rec[col.Name] = nil
		}
	}
}
