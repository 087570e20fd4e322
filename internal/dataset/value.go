package dataset

import (
	"math"
	"strconv"
	"time"
)

// ValueType tags the content of a single cell.
type ValueType uint8

const (
	TypeMissing ValueType = iota
	TypeNumber
	TypeText
	TypeTime
)

// Value is a nullable cell. The zero Value is missing.
type Value struct {
	typ  ValueType
	num  float64
	text string
	ts   time.Time
}

// Missing returns the missing marker.
func Missing() Value { return Value{} }

// Number wraps f. NaN and infinities become missing.
func Number(f float64) Value {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Value{}
	}
	return Value{typ: TypeNumber, num: f}
}

// Text wraps s as-is. Use Missing for absent cells.
func Text(s string) Value { return Value{typ: TypeText, text: s} }

// Time wraps t. The zero time becomes missing.
func Time(t time.Time) Value {
	if t.IsZero() {
		return Value{}
	}
	return Value{typ: TypeTime, ts: t}
}

func (v Value) Type() ValueType { return v.typ }
func (v Value) IsMissing() bool { return v.typ == TypeMissing }
func (v Value) IsNumber() bool { return v.typ == TypeNumber }
func (v Value) IsTime() bool { return v.typ == TypeTime }

// Float returns the numeric content.
func (v Value) Float() (float64, bool) {
	if v.typ != TypeNumber {
		return 0, false
	}
	return v.num, true
}

// TimeValue returns the temporal content.
func (v Value) TimeValue() (time.Time, bool) {
	if v.typ != TypeTime {
		return time.Time{}, false
	}
	return v.ts, true
}

// String renders the cell for display, search and export. Missing renders as "".
func (v Value) String() string {
	switch v.typ {
	case TypeNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case TypeText:
		return v.text
	case TypeTime:
		if v.ts.Hour() == 0 && v.ts.Minute() == 0 && v.ts.Second() == 0 && v.ts.Nanosecond() == 0 {
			return v.ts.Format("2006-01-02")
		}
		return v.ts.Format("2006-01-02 15:04:05")
	default:
		return ""
	}
}

// Equal reports whether both cells hold the same typed content.
// Missing is never equal to anything, itself included.
func (v Value) Equal(o Value) bool {
	if v.typ == TypeMissing || o.typ == TypeMissing || v.typ != o.typ {
		return false
	}
	switch v.typ {
	case TypeNumber:
		return v.num == o.num
	case TypeTime:
		return v.ts.Equal(o.ts)
	default:
		return v.text == o.text
	}
}

// Compare orders two cells: numbers numerically, times chronologically, everything
// else by string form. Missing sorts after every present value.
func Compare(a, b Value) int {
	switch {
	case a.IsMissing() && b.IsMissing():
		return 0
	case a.IsMissing():
		return 1
	case b.IsMissing():
		return -1
	}
	if a.typ == TypeNumber && b.typ == TypeNumber {
		return cmpFloat(a.num, b.num)
	}
	if a.typ == TypeTime && b.typ == TypeTime {
		return a.ts.Compare(b.ts)
	}
	as, bs := a.String(), b.String()
	switch {
	case as < bs:
		return -1
	case as > bs:
		return 1
	}
	return 0
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
