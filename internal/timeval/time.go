// Package timeval implements the calendar date value used throughout the
// deformation model: parsing, total-ordering comparison, decimal-year
// conversion and day-difference arithmetic.
package timeval

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/geocrust/defmodel/internal/dmerrors"
)

// Time represents an instant with calendar and optional hour/minute/second
// resolution, or the absence of a date ("None"/""/"0").
type Time struct {
	t       time.Time
	present bool
}

var decimalYearPattern = regexp.MustCompile(`^-?[0-9]+\.[0-9]+$`)

// Parse converts a string into a Time per the rules in spec.md §4.1:
//
//	YYYY-MM-DD, YYYYMMDD, "YYYY-MM-DD hh:mm:ss", the literal "now", a decimal
//	year Y.FFF, or empty/"None"/"0" for an absent value.
func Parse(s string) (Time, error) {
	s = strings.TrimSpace(s)

	switch s {
	case "", "None", "0":
		return Time{}, nil
	case "now":
		return Time{t: time.Now().UTC(), present: true}, nil
	}

	if decimalYearPattern.MatchString(s) {
		return parseDecimalYear(s)
	}

	if len(s) == 8 && isAllDigits(s) {
		t, err := time.Parse("20060102", s)
		if err != nil {
			return Time{}, &dmerrors.InvalidValueError{Field: "time", Value: s, Reason: err.Error()}
		}
		return Time{t: t.UTC(), present: true}, nil
	}

	for _, layout := range []string{"2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return Time{t: t.UTC(), present: true}, nil
		}
	}

	return Time{}, &dmerrors.InvalidValueError{
		Field:  "time",
		Value:  s,
		Reason: "not a recognised date, datetime, decimal year, or 'now'",
	}
}

// ParseAny accepts a string, a Time (identity), or nil/absent sentinel.
func ParseAny(v any) (Time, error) {
	switch x := v.(type) {
	case nil:
		return Time{}, nil
	case Time:
		return x, nil
	case string:
		return Parse(x)
	default:
		return Time{}, &dmerrors.InvalidValueError{
			Field:  "time",
			Value:  fmt.Sprintf("%v", v),
			Reason: "unsupported time input type",
		}
	}
}

func isAllDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func parseDecimalYear(s string) (Time, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Time{}, &dmerrors.InvalidValueError{Field: "time", Value: s, Reason: "malformed decimal year"}
	}
	year := int(f)
	frac := f - float64(year)
	jan1, jan1Next := yearStart(year), yearStart(year+1)
	span := jan1Next.Sub(jan1)
	return Time{t: jan1.Add(time.Duration(frac * float64(span))), present: true}, nil
}

func yearStart(year int) time.Time {
	return time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)
}

// Present reports whether the value carries an actual instant.
func (t Time) Present() bool { return t.present }

// Compare implements total ordering: an absent Time is less than any present
// instant; two absent values compare equal.
func (t Time) Compare(other Time) int {
	if !t.present && !other.present {
		return 0
	}
	if !t.present {
		return -1
	}
	if !other.present {
		return 1
	}
	if t.t.Before(other.t) {
		return -1
	}
	if t.t.After(other.t) {
		return 1
	}
	return 0
}

// Before reports whether t is strictly before other under Compare.
func (t Time) Before(other Time) bool { return t.Compare(other) < 0 }

// After reports whether t is strictly after other under Compare.
func (t Time) After(other Time) bool { return t.Compare(other) > 0 }

// DaysAfter returns the number of days (as a real number, seconds included)
// that t lies after other. Negative if t is earlier.
func (t Time) DaysAfter(other Time) float64 {
	return t.t.Sub(other.t).Hours() / 24.0
}

// AsYear returns the decimal-year representation of t: the integer year plus
// the fraction of the calendar year elapsed, where the denominator is the
// actual length in days of that specific year (365 or 366).
func (t Time) AsYear() float64 {
	year := t.t.Year()
	jan1, jan1Next := yearStart(year), yearStart(year+1)
	span := jan1Next.Sub(jan1)
	return float64(year) + t.t.Sub(jan1).Seconds()/span.Seconds()
}

// Strftime formats t using a small subset of strftime directives
// (%Y %m %d %H %M %S); defaults to "%Y-%m-%d" when format is empty.
func (t Time) Strftime(format string) string {
	if format == "" {
		format = "%Y-%m-%d"
	}
	replacer := strings.NewReplacer(
		"%Y", fmt.Sprintf("%04d", t.t.Year()),
		"%m", fmt.Sprintf("%02d", int(t.t.Month())),
		"%d", fmt.Sprintf("%02d", t.t.Day()),
		"%H", fmt.Sprintf("%02d", t.t.Hour()),
		"%M", fmt.Sprintf("%02d", t.t.Minute()),
		"%S", fmt.Sprintf("%02d", t.t.Second()),
	)
	return replacer.Replace(format)
}

// String implements fmt.Stringer using the default strftime format.
func (t Time) String() string {
	if !t.present {
		return ""
	}
	return t.Strftime("")
}
