// Package tabular defines the in-memory data model the engines evaluate:
// typed scalar cells, records, and immutable named datasets. A cell is
// one of string, number, date, or null, with a single canonical coercion
// step per target type so checks never cast ad hoc.
package tabular

import (
	"strconv"
	"strings"
	"time"

	"github.com/crosscheckhq/crosscheck/pkg/errors"
)

// Kind identifies the underlying type of a Value.
type Kind int

const (
	// KindNull is a missing or null cell.
	KindNull Kind = iota
	// KindString is a text cell.
	KindString
	// KindNumber is a numeric cell, held as float64.
	KindNumber
	// KindDate is a calendar date or timestamp cell.
	KindDate
)

// String returns a string representation of the Kind.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindDate:
		return "date"
	default:
		return "unknown"
	}
}

// Value is a typed scalar cell. The zero value is null.
type Value struct {
	kind Kind
	str  string
	num  float64
	date time.Time
}

// Null returns the null Value.
func Null() Value {
	return Value{}
}

// String creates a string Value.
func String(s string) Value {
	return Value{kind: KindString, str: s}
}

// Number creates a numeric Value.
func Number(f float64) Value {
	return Value{kind: KindNumber, num: f}
}

// Date creates a date Value.
func Date(t time.Time) Value {
	return Value{kind: KindDate, date: t}
}

// Infer creates a Value from raw text, detecting numbers, dates in
// ISO form, and nulls (empty or "null"/"NULL"). Anything else is a
// string. Loaders use this once per cell at load time.
func Infer(raw string) Value {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || strings.EqualFold(trimmed, "null") {
		return Null()
	}
	if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return Number(f)
	}
	if t, err := time.Parse("2006-01-02", trimmed); err == nil {
		return Date(t)
	}
	if t, err := time.Parse(time.RFC3339, trimmed); err == nil {
		return Date(t)
	}
	return String(raw)
}

// Kind returns the Value's type.
func (v Value) Kind() Kind {
	return v.kind
}

// IsNull reports whether the cell is null or missing.
func (v Value) IsNull() bool {
	return v.kind == KindNull
}

// String returns the canonical string form of the value. Numbers render
// without trailing zeros so "1" and 1 share a key representation, and
// dates render as ISO 8601.
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return ""
	case KindString:
		return v.str
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindDate:
		if v.date.Hour() == 0 && v.date.Minute() == 0 && v.date.Second() == 0 {
			return v.date.Format("2006-01-02")
		}
		return v.date.Format(time.RFC3339)
	default:
		return ""
	}
}

// AsNumber coerces the value to a float64. Strings are parsed; dates
// and nulls fail with a CoercionError.
func (v Value) AsNumber() (float64, error) {
	switch v.kind {
	case KindNumber:
		return v.num, nil
	case KindString:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.str), 64)
		if err != nil {
			return 0, errors.NewCoercionError(v.str, "number", err)
		}
		return f, nil
	default:
		return 0, errors.NewCoercionError(v.String(), "number", nil)
	}
}

// AsInteger coerces the value to an integer, failing on fractional
// numbers as well as non-numeric values.
func (v Value) AsInteger() (int64, error) {
	f, err := v.AsNumber()
	if err != nil {
		return 0, errors.NewCoercionError(v.String(), "integer", err)
	}
	if f != float64(int64(f)) {
		return 0, errors.NewCoercionError(v.String(), "integer", nil)
	}
	return int64(f), nil
}

// AsDate coerces the value to a date using the given layout. Layout
// accepts both Go reference layouts and the spreadsheet-style forms
// (YYYY-MM-DD, MM/DD/YYYY, ...). An empty layout means ISO 8601.
func (v Value) AsDate(layout string) (time.Time, error) {
	switch v.kind {
	case KindDate:
		return v.date, nil
	case KindString:
		goLayout := DateLayout(layout)
		t, err := time.Parse(goLayout, strings.TrimSpace(v.str))
		if err != nil {
			return time.Time{}, errors.NewCoercionError(v.str, "date", err)
		}
		return t, nil
	default:
		return time.Time{}, errors.NewCoercionError(v.String(), "date", nil)
	}
}

// Equal reports structural equality: same kind and same content, with
// string/number cross-kind comparison falling back to canonical strings.
func (v Value) Equal(other Value) bool {
	if v.kind == other.kind {
		switch v.kind {
		case KindNull:
			return true
		case KindNumber:
			return v.num == other.num
		case KindDate:
			return v.date.Equal(other.date)
		default:
			return v.str == other.str
		}
	}
	if v.kind == KindNull || other.kind == KindNull {
		return false
	}
	return v.String() == other.String()
}

// dateLayouts maps spreadsheet-style date format names to Go layouts.
var dateLayouts = map[string]string{
	"YYYY-MM-DD": "2006-01-02",
	"MM/DD/YYYY": "01/02/2006",
	"DD/MM/YYYY": "02/01/2006",
	"YYYY/MM/DD": "2006/01/02",
	"DD-MM-YYYY": "02-01-2006",
}

// DateLayout translates a spreadsheet-style date format into a Go time
// layout. Unrecognized input is returned unchanged so callers may pass
// Go layouts directly; empty input defaults to ISO 8601.
func DateLayout(format string) string {
	if format == "" {
		return "2006-01-02"
	}
	if layout, ok := dateLayouts[strings.ToUpper(format)]; ok {
		return layout
	}
	return format
}
