package filter

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/KaramelBytes/datasift-cli/internal/dataset"
)

var (
	// ErrUnknownColumn is returned when a predicate names a column the dataset lacks.
	ErrUnknownColumn = errors.New("unknown column")
	// ErrKindMismatch is returned when a range predicate targets a column of the wrong kind.
	ErrKindMismatch = errors.New("column kind mismatch")
	// ErrInvalidRange is returned when a range has its low bound above its high bound.
	ErrInvalidRange = errors.New("invalid range")
	// ErrSchemaChanged is returned when a view does not share the engine's columns.
	ErrSchemaChanged = errors.New("view schema differs from reference dataset")
)

type rowFunc func(row []dataset.Value) bool

// Predicate is one condition over a dataset row. Predicates are pure; a set of them is
// combined with logical AND.
type Predicate interface {
	fmt.Stringer
	compile(e *Engine) (rowFunc, error)
}

// In keeps rows whose column value is one of Values. An empty Values keeps every row,
// and so does a selection covering every option present in the reference dataset.
type In struct {
	Column string
	Values []string
}

func (p In) String() string { return fmt.Sprintf("%s in [%s]", p.Column, strings.Join(p.Values, ", ")) }

func (p In) compile(e *Engine) (rowFunc, error) {
	idx, err := e.index(p.Column)
	if err != nil {
		return nil, err
	}
	if len(p.Values) == 0 {
		return nil, nil
	}
	set := make(map[string]struct{}, len(p.Values))
	for _, v := range p.Values {
		set[v] = struct{}{}
	}
	all := true
	for _, opt := range e.Options(p.Column) {
		if _, ok := set[opt]; !ok {
			all = false
			break
		}
	}
	if all {
		return nil, nil
	}
	return func(row []dataset.Value) bool {
		v := row[idx]
		if v.IsMissing() {
			return false
		}
		_, ok := set[v.String()]
		return ok
	}, nil
}

// Range keeps rows whose numeric value lies in [Low, High]. Missing values are dropped
// unless the range spans the column's full reference min/max.
type Range struct {
	Column    string
	Low, High float64
}

func (p Range) String() string { return fmt.Sprintf("%s in [%g, %g]", p.Column, p.Low, p.High) }

func (p Range) compile(e *Engine) (rowFunc, error) {
	idx, err := e.index(p.Column)
	if err != nil {
		return nil, err
	}
	if k := e.ref.Columns[idx].Kind; k != dataset.Numeric {
		return nil, fmt.Errorf("%w: range on %s column %q", ErrKindMismatch, k, p.Column)
	}
	if p.Low > p.High {
		return nil, fmt.Errorf("%w: %s low %g > high %g", ErrInvalidRange, p.Column, p.Low, p.High)
	}
	keepMissing := true
	if b, ok := e.NumericBounds(p.Column); ok {
		keepMissing = p.Low <= b.Low && p.High >= b.High
	}
	low, high := p.Low, p.High
	return func(row []dataset.Value) bool {
		f, ok := row[idx].Float()
		if !ok {
			return keepMissing
		}
		return f >= low && f <= high
	}, nil
}

// DateRange keeps rows whose temporal value lies in [From, To]. A zero bound is open.
// Missing values follow the same spanning rule as Range.
type DateRange struct {
	Column   string
	From, To time.Time
}

func (p DateRange) String() string {
	return fmt.Sprintf("%s in [%s, %s]", p.Column, fmtDate(p.From), fmtDate(p.To))
}

func fmtDate(t time.Time) string {
	if t.IsZero() {
		return "*"
	}
	return t.Format("2006-01-02")
}

func (p DateRange) compile(e *Engine) (rowFunc, error) {
	idx, err := e.index(p.Column)
	if err != nil {
		return nil, err
	}
	if k := e.ref.Columns[idx].Kind; k != dataset.Temporal {
		return nil, fmt.Errorf("%w: date range on %s column %q", ErrKindMismatch, k, p.Column)
	}
	if !p.From.IsZero() && !p.To.IsZero() && p.From.After(p.To) {
		return nil, fmt.Errorf("%w: %s from %s after to %s", ErrInvalidRange, p.Column, fmtDate(p.From), fmtDate(p.To))
	}
	keepMissing := true
	if b, ok := e.DateBounds(p.Column); ok {
		keepMissing = (p.From.IsZero() || !p.From.After(b.From)) && (p.To.IsZero() || !p.To.Before(b.To))
	}
	from, to := p.From, p.To
	return func(row []dataset.Value) bool {
		t, ok := row[idx].TimeValue()
		if !ok {
			return keepMissing
		}
		if !from.IsZero() && t.Before(from) {
			return false
		}
		if !to.IsZero() && t.After(to) {
			return false
		}
		return true
	}, nil
}

// Contains keeps rows where Term occurs, case-insensitively, in the string form of any
// present cell. An empty term keeps every row.
type Contains struct {
	Term string
}

func (p Contains) String() string { return fmt.Sprintf("any column contains %q", p.Term) }

func (p Contains) compile(_ *Engine) (rowFunc, error) {
	term := strings.ToLower(strings.TrimSpace(p.Term))
	if term == "" {
		return nil, nil
	}
	return func(row []dataset.Value) bool {
		for _, v := range row {
			if v.IsMissing() {
				continue
			}
			if strings.Contains(strings.ToLower(v.String()), term) {
				return true
			}
		}
		return false
	}, nil
}
