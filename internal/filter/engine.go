// Package filter narrows a dataset with a conjunction of predicates.
//
// An Engine is built once per loaded dataset. Predicates are compiled against that
// reference, so the "does this range span the data" and "is every option selected"
// decisions do not depend on which view is being filtered. That keeps filtering
// order-independent and idempotent: Apply(Apply(d, p), p) == Apply(d, p).
package filter

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/KaramelBytes/datasift-cli/internal/dataset"
)

// Bounds is an inclusive numeric interval.
type Bounds struct {
	Low  float64 `json:"low" yaml:"low"`
	High float64 `json:"high" yaml:"high"`
}

// DateBounds is an inclusive temporal interval; zero ends are open.
type DateBounds struct {
	From time.Time `json:"from" yaml:"from"`
	To   time.Time `json:"to" yaml:"to"`
}

// Engine filters views of a reference dataset.
// It is safe for concurrent use; the reference dataset is never modified.
type Engine struct {
	ref     *dataset.Dataset
	mu      sync.Mutex
	options map[string][]string
	nums    map[string]Bounds
	dates   map[string]DateBounds
}

// NewEngine returns an engine for ref. Column statistics are computed lazily.
func NewEngine(ref *dataset.Dataset) *Engine {
	return &Engine{
		ref:     ref,
		options: map[string][]string{},
		nums:    map[string]Bounds{},
		dates:   map[string]DateBounds{},
	}
}

// Reference returns the dataset predicates are compiled against.
func (e *Engine) Reference() *dataset.Dataset { return e.ref }

func (e *Engine) index(col string) (int, error) {
	i, ok := e.ref.Index(col)
	if !ok {
		return -1, fmt.Errorf("%w: %q", ErrUnknownColumn, col)
	}
	return i, nil
}

// Options lists the sorted distinct non-missing values of a column.
func (e *Engine) Options(col string) []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if o, ok := e.options[col]; ok {
		return o
	}
	o := e.ref.Distinct(col)
	e.options[col] = o
	return o
}

// NumericBounds returns the min/max of a numeric column's present values.
func (e *Engine) NumericBounds(col string) (Bounds, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if b, ok := e.nums[col]; ok {
		return b, true
	}
	vals := e.ref.Floats(col)
	if len(vals) == 0 {
		return Bounds{}, false
	}
	b := Bounds{Low: math.Inf(1), High: math.Inf(-1)}
	for _, f := range vals {
		b.Low = math.Min(b.Low, f)
		b.High = math.Max(b.High, f)
	}
	e.nums[col] = b
	return b, true
}

// DateBounds returns the earliest and latest present values of a temporal column.
func (e *Engine) DateBounds(col string) (DateBounds, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if b, ok := e.dates[col]; ok {
		return b, true
	}
	i, ok := e.ref.Index(col)
	if !ok {
		return DateBounds{}, false
	}
	var b DateBounds
	for _, row := range e.ref.Rows {
		t, ok := row[i].TimeValue()
		if !ok {
			continue
		}
		if b.From.IsZero() || t.Before(b.From) {
			b.From = t
		}
		if b.To.IsZero() || t.After(b.To) {
			b.To = t
		}
	}
	if b.From.IsZero() {
		return DateBounds{}, false
	}
	e.dates[col] = b
	return b, true
}

// Filter is a compiled set of predicates.
type Filter struct {
	funcs []rowFunc
}

// Match reports whether row satisfies every predicate.
func (f Filter) Match(row []dataset.Value) bool {
	for _, fn := range f.funcs {
		if !fn(row) {
			return false
		}
	}
	return true
}

// Active reports how many predicates actually constrain rows.
func (f Filter) Active() int { return len(f.funcs) }

// Compile binds predicates to the reference dataset. Predicates that keep every row
// are dropped from the compiled filter.
func (e *Engine) Compile(preds []Predicate) (Filter, error) {
	var f Filter
	for _, p := range preds {
		fn, err := p.compile(e)
		if err != nil {
			return Filter{}, err
		}
		if fn != nil {
			f.funcs = append(f.funcs, fn)
		}
	}
	return f, nil
}

// Apply returns the rows of view matching every predicate, in their original order.
// view must share the reference dataset's columns (the reference itself, or a prior
// result of Apply). The input is never modified.
func (e *Engine) Apply(view *dataset.Dataset, preds ...Predicate) (*dataset.Dataset, error) {
	if err := e.sameSchema(view); err != nil {
		return nil, err
	}
	f, err := e.Compile(preds)
	if err != nil {
		return nil, err
	}
	if f.Active() == 0 {
		return view.View(view.Rows), nil
	}
	rows := make([][]dataset.Value, 0, len(view.Rows))
	for _, row := range view.Rows {
		if f.Match(row) {
			rows = append(rows, row)
		}
	}
	return view.View(rows), nil
}

// ApplyParams applies the predicates described by p.
func (e *Engine) ApplyParams(view *dataset.Dataset, p Params) (*dataset.Dataset, error) {
	return e.Apply(view, p.Predicates()...)
}

func (e *Engine) sameSchema(view *dataset.Dataset) error {
	if view == nil {
		return fmt.Errorf("%w: nil view", ErrSchemaChanged)
	}
	if len(view.Columns) != len(e.ref.Columns) {
		return ErrSchemaChanged
	}
	for i, c := range view.Columns {
		if c.Name != e.ref.Columns[i].Name {
			return fmt.Errorf("%w: column %d is %q, want %q", ErrSchemaChanged, i, c.Name, e.ref.Columns[i].Name)
		}
	}
	return nil
}

// Apply filters ds by p using ds itself as the reference.
func Apply(ds *dataset.Dataset, p Params) (*dataset.Dataset, error) {
	return NewEngine(ds).ApplyParams(ds, p)
}
