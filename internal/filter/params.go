package filter

import (
	"math"
	"sort"

	"github.com/KaramelBytes/datasift-cli/internal/dataset"
)

// Params is the full set of user-chosen filter settings for one recomputation.
// It is passed explicitly on every call; nothing is remembered between calls.
type Params struct {
	Categories map[string][]string   `json:"categories,omitempty" yaml:"categories,omitempty"`
	Ranges     map[string]Bounds     `json:"ranges,omitempty" yaml:"ranges,omitempty"`
	Dates      map[string]DateBounds `json:"dates,omitempty" yaml:"dates,omitempty"`
	Search     string                `json:"search,omitempty" yaml:"search,omitempty"`
}

// IsZero reports whether p constrains nothing.
func (p Params) IsZero() bool {
	return len(p.Categories) == 0 && len(p.Ranges) == 0 && len(p.Dates) == 0 && p.Search == ""
}

// Predicates expands p in a deterministic order: categories, ranges and dates by column
// name, then the free-text search.
func (p Params) Predicates() []Predicate {
	var out []Predicate
	for _, col := range sortedKeys(p.Categories) {
		out = append(out, In{Column: col, Values: p.Categories[col]})
	}
	for _, col := range sortedKeys(p.Ranges) {
		b := p.Ranges[col]
		out = append(out, Range{Column: col, Low: b.Low, High: b.High})
	}
	for _, col := range sortedKeys(p.Dates) {
		b := p.Dates[col]
		out = append(out, DateRange{Column: col, From: b.From, To: b.To})
	}
	if p.Search != "" {
		out = append(out, Contains{Term: p.Search})
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Merge overlays o onto p: o's entries replace p's per column, and a non-empty search wins.
func (p Params) Merge(o Params) Params {
	out := Params{Search: p.Search}
	if o.Search != "" {
		out.Search = o.Search
	}
	out.Categories = mergeMap(p.Categories, o.Categories)
	out.Ranges = mergeMap(p.Ranges, o.Ranges)
	out.Dates = mergeMap(p.Dates, o.Dates)
	return out
}

func mergeMap[V any](a, b map[string]V) map[string]V {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	out := make(map[string]V, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		out[k] = v
	}
	return out
}

// Control describes one filter control for a shell: the column and its reference
// options or bounds.
type Control struct {
	Column  string       `json:"column"`
	Kind    dataset.Kind `json:"kind"`
	Options []string     `json:"options,omitempty"`
	Bounds  *Bounds      `json:"bounds,omitempty"`
	Dates   *DateBounds  `json:"dates,omitempty"`
}

// Controls describes the filter controls for the given columns. Unknown columns are skipped.
func (e *Engine) Controls(cols []string) []Control {
	var out []Control
	for _, name := range cols {
		col, ok := e.ref.Column(name)
		if !ok {
			continue
		}
		c := Control{Column: name, Kind: col.Kind}
		switch col.Kind {
		case dataset.Numeric:
			if b, ok := e.NumericBounds(name); ok {
				c.Bounds = &b
			}
		case dataset.Temporal:
			if b, ok := e.DateBounds(name); ok {
				c.Dates = &b
			}
		default:
			c.Options = e.Options(name)
		}
		out = append(out, c)
	}
	return out
}

// Defaults returns params that select every option and span every range of the given
// columns; applying them keeps every row.
func (e *Engine) Defaults(cols []string) Params {
	p := Params{}
	for _, c := range e.Controls(cols) {
		switch {
		case c.Bounds != nil:
			if p.Ranges == nil {
				p.Ranges = map[string]Bounds{}
			}
			p.Ranges[c.Column] = *c.Bounds
		case c.Dates != nil:
			if p.Dates == nil {
				p.Dates = map[string]DateBounds{}
			}
			p.Dates[c.Column] = *c.Dates
		case c.Options != nil:
			if p.Categories == nil {
				p.Categories = map[string][]string{}
			}
			p.Categories[c.Column] = append([]string(nil), c.Options...)
		}
	}
	return p
}

// ClampBounds narrows b to [lo, hi], the way a fixed-scale slider clamps the
// data-derived default (GPA on a 0–4 scale).
func ClampBounds(b Bounds, lo, hi float64) Bounds {
	return Bounds{Low: math.Max(lo, b.Low), High: math.Min(hi, b.High)}
}

// IntegerBounds rounds b outward to whole numbers, as an integer slider would.
func IntegerBounds(b Bounds) Bounds {
	return Bounds{Low: math.Floor(b.Low), High: math.Ceil(b.High)}
}
