// Package dates normalizes the date representations found in spreadsheet
// cells. Incoming values arrive in three shapes: a serial day count (the
// backend's native number form), a day-first display string, or an ISO
// string. Outgoing values are always written as day-first display strings so
// the backend never reinterprets them under a month-first locale.
package dates

import (
	"regexp"
	"strings"
	"time"
)

// Kind reports which input shape a parse matched.
type Kind int

const (
	KindInvalid Kind = iota
	KindSerial
	KindDayFirst
	KindISO
)

// DisplayLayout is the storage format for every date column. Day comes
// first and all fields are zero-padded, so a locale-naive reader can never
// confuse it with a month-first date.
const DisplayLayout = "02/01/2006 15:04:05"

const isoLayout = "2006-01-02T15:04:05.000Z07:00"

// serialEpoch is day zero of the spreadsheet serial calendar.
var serialEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

var dayFirstRe = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{4})(?:[ ]+(\d{1,2}):(\d{2})(?::(\d{2}))?)?$`)

var isoPrefixRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`)

// Parse interprets a raw cell value as a date. Numbers are serial day
// counts, strings are tried as ISO and then as day-first display strings.
// Anything else, including unparseable strings, yields KindInvalid; Parse
// never panics or errors.
func Parse(value any) (time.Time, Kind) {
	switch v := value.(type) {
	case nil:
		return time.Time{}, KindInvalid
	case float64:
		return FromSerial(v), KindSerial
	case int:
		return FromSerial(float64(v)), KindSerial
	case int64:
		return FromSerial(float64(v)), KindSerial
	case time.Time:
		return v.UTC(), KindISO
	case string:
		return parseString(v)
	default:
		return time.Time{}, KindInvalid
	}
}

func parseString(s string) (time.Time, Kind) {
	s = strings.TrimSpace(s)
	// A leading apostrophe forces text mode in the backend; it is not part
	// of the value.
	s = strings.TrimPrefix(s, "'")
	if s == "" {
		return time.Time{}, KindInvalid
	}

	if strings.ContainsRune(s, 'T') || isoPrefixRe.MatchString(s) {
		for _, layout := range []string{
			time.RFC3339Nano,
			"2006-01-02T15:04:05",
			"2006-01-02 15:04:05",
			"2006-01-02",
		} {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC(), KindISO
			}
		}
		return time.Time{}, KindInvalid
	}

	m := dayFirstRe.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, KindInvalid
	}
	day := atoi(m[1])
	month := atoi(m[2])
	year := atoi(m[3])
	hour, minute, sec := atoi(m[4]), atoi(m[5]), atoi(m[6])

	t := time.Date(year, time.Month(month), day, hour, minute, sec, 0, time.UTC)
	// time.Date normalizes out-of-range fields (32/01 becomes 01/02); a
	// normalized result means the input was not a real calendar date.
	if t.Day() != day || t.Month() != time.Month(month) || t.Year() != year ||
		t.Hour() != hour || t.Minute() != minute || t.Second() != sec {
		return time.Time{}, KindInvalid
	}
	return t, KindDayFirst
}

func atoi(s string) int {
	n := 0
	for _, r := range s {
		n = n*10 + int(r-'0')
	}
	return n
}

// FromSerial converts a spreadsheet serial day count to an instant. The
// integer part is whole days since 1899-12-30; the fraction is time of day.
// A small epsilon counters the float truncation the backend introduces when
// it stores times as day fractions.
func FromSerial(serial float64) time.Time {
	days := int(serial)
	frac := serial - float64(days)
	if frac < 0 {
		frac = 0
	}
	seconds := int((frac + 1e-7) * 86400)
	return serialEpoch.AddDate(0, 0, days).Add(time.Duration(seconds) * time.Second)
}

// ToISO normalizes a raw cell value to an ISO-8601 UTC string, or "" when
// the value is not a recognizable date.
func ToISO(value any) string {
	t, kind := Parse(value)
	if kind == KindInvalid {
		return ""
	}
	return t.UTC().Format(isoLayout)
}

// Format renders an instant in the storage format, second precision, UTC.
func Format(t time.Time) string {
	return t.UTC().Format(DisplayLayout)
}
