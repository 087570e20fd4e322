// Package aggregate groups a dataset by one column and reduces a metric per group.
package aggregate

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/KaramelBytes/datasift-cli/internal/dataset"
)

// Reducer names a per-group reduction.
type Reducer string

const (
	Sum    Reducer = "sum"
	Mean   Reducer = "mean"
	Median Reducer = "median"
	Count  Reducer = "count"
)

// Reducers lists the supported reducers.
var Reducers = []Reducer{Sum, Mean, Median, Count}

// MissingBucket labels the group of rows whose group-by value is missing. When a real
// group value already renders as MissingBucket, the bucket is labelled
// "(missing group)" instead ("(missing group 2)", ... on further collisions).
const MissingBucket = "(missing)"

// CountColumn names the value column of a count aggregation.
const CountColumn = "Count"

var (
	ErrUnknownReducer = errors.New("unknown reducer")
	ErrUnknownColumn  = errors.New("unknown column")
	ErrNotNumeric     = errors.New("metric column is not numeric")
)

// ParseReducer maps a case-insensitive name to a Reducer.
func ParseReducer(s string) (Reducer, error) {
	r := Reducer(strings.ToLower(strings.TrimSpace(s)))
	for _, k := range Reducers {
		if r == k {
			return r, nil
		}
	}
	return "", fmt.Errorf("%w: %q (want one of sum, mean, median, count)", ErrUnknownReducer, s)
}

// Spec describes one aggregation. Metric is ignored for Count.
type Spec struct {
	GroupBy string  `json:"group_by" yaml:"group_by" validate:"required"`
	Metric  string  `json:"metric,omitempty" yaml:"metric,omitempty"`
	Reducer Reducer `json:"reducer" yaml:"reducer" validate:"required,oneof=sum mean median count"`
}

// ValueColumn is the output column name for the reduced value.
func (s Spec) ValueColumn() string {
	if s.Reducer == Count || s.Metric == "" {
		return CountColumn
	}
	return s.Metric
}

// Validate checks s against the columns of ds.
func (s Spec) Validate(ds *dataset.Dataset) error {
	if _, err := ParseReducer(string(s.Reducer)); err != nil {
		return err
	}
	if !ds.Has(s.GroupBy) {
		return fmt.Errorf("%w: group-by %q", ErrUnknownColumn, s.GroupBy)
	}
	if s.Reducer == Count {
		return nil
	}
	col, ok := ds.Column(s.Metric)
	if !ok {
		return fmt.Errorf("%w: metric %q", ErrUnknownColumn, s.Metric)
	}
	if col.Kind != dataset.Numeric {
		return fmt.Errorf("%w: %q is %s", ErrNotNumeric, s.Metric, col.Kind)
	}
	return nil
}

// Row is one group of an aggregation result.
type Row struct {
	Group dataset.Value `json:"-"`
	Label string        `json:"group"`
	Value dataset.Value `json:"-"`
	// Size counts every row in the group, including rows with a missing metric.
	Size int `json:"size"`
}

// MarshalJSON writes the group label, the value (null when missing) and the size.
func (r Row) MarshalJSON() ([]byte, error) {
	var v *float64
	if f, ok := r.Value.Float(); ok {
		v = &f
	}
	return json.Marshal(struct {
		Group string   `json:"group"`
		Value *float64 `json:"value"`
		Size  int      `json:"size"`
	}{r.Label, v, r.Size})
}

// Table is an aggregation result, one row per distinct group value.
type Table struct {
	Spec      Spec         `json:"spec"`
	GroupKind dataset.Kind `json:"group_kind"`
	Rows      []Row        `json:"rows"`
	// MissingLabel is the label of the missing bucket in this table.
	MissingLabel string `json:"missing_label"`
}

// Len reports the number of groups.
func (t *Table) Len() int { return len(t.Rows) }

// Missing returns the missing bucket, if the table has one.
func (t *Table) Missing() (Row, bool) {
	for _, r := range t.Rows {
		if r.Group.IsMissing() {
			return r, true
		}
	}
	return Row{}, false
}

// Lookup finds a group by its label.
func (t *Table) Lookup(label string) (Row, bool) {
	for _, r := range t.Rows {
		if r.Label == label {
			return r, true
		}
	}
	return Row{}, false
}

type group struct {
	key  dataset.Value
	vals []float64
	size int
}

// Aggregate groups ds by spec.GroupBy and reduces spec.Metric in each group.
// Rows with a missing group value share the MissingBucket group, ordered last.
// An empty dataset yields an empty table.
func Aggregate(ds *dataset.Dataset, spec Spec) (*Table, error) {
	if err := spec.Validate(ds); err != nil {
		return nil, fmt.Errorf("aggregate: %w", err)
	}
	gi, _ := ds.Index(spec.GroupBy)
	gcol, _ := ds.Column(spec.GroupBy)
	mi := -1
	if spec.Reducer != Count {
		mi, _ = ds.Index(spec.Metric)
	}

	groups := map[string]*group{}
	var order []*group
	for _, row := range ds.Rows {
		key := row[gi]
		id := MissingBucket
		if !key.IsMissing() {
			id = fmt.Sprintf("%d:%s", key.Type(), key.String())
		}
		g := groups[id]
		if g == nil {
			g = &group{key: key}
			groups[id] = g
			order = append(order, g)
		}
		g.size++
		if mi >= 0 {
			if f, ok := row[mi].Float(); ok {
				g.vals = append(g.vals, f)
			}
		}
	}
	sort.SliceStable(order, func(i, j int) bool {
		return dataset.Compare(order[i].key, order[j].key) < 0
	})

	taken := make(map[string]bool, len(order))
	for _, g := range order {
		if !g.key.IsMissing() {
			taken[g.key.String()] = true
		}
	}
	t := &Table{Spec: spec, GroupKind: gcol.Kind, Rows: make([]Row, 0, len(order)), MissingLabel: missingLabel(taken)}
	for _, g := range order {
		label := t.MissingLabel
		if !g.key.IsMissing() {
			label = g.key.String()
		}
		t.Rows = append(t.Rows, Row{Group: g.key, Label: label, Value: reduce(spec.Reducer, g), Size: g.size})
	}
	return t, nil
}

func missingLabel(taken map[string]bool) string {
	if !taken[MissingBucket] {
		return MissingBucket
	}
	label := "(missing group)"
	for n := 2; taken[label]; n++ {
		label = fmt.Sprintf("(missing group %d)", n)
	}
	return label
}

func reduce(r Reducer, g *group) dataset.Value {
	switch r {
	case Count:
		return dataset.Number(float64(g.size))
	case Sum:
		var s float64
		for _, v := range g.vals {
			s += v
		}
		return dataset.Number(s)
	case Mean:
		if len(g.vals) == 0 {
			return dataset.Missing()
		}
		return dataset.Number(MeanOf(g.vals))
	case Median:
		if len(g.vals) == 0 {
			return dataset.Missing()
		}
		return dataset.Number(MedianOf(g.vals))
	}
	return dataset.Missing()
}

// MeanOf returns the arithmetic mean of vals, or NaN when vals is empty.
func MeanOf(vals []float64) float64 {
	if len(vals) == 0 {
		return math.NaN()
	}
	var s float64
	for _, v := range vals {
		s += v
	}
	return s / float64(len(vals))
}

// MedianOf returns the median of vals (the midpoint of the two middle values for an
// even count), or NaN when vals is empty. vals is not modified.
func MedianOf(vals []float64) float64 {
	if len(vals) == 0 {
		return math.NaN()
	}
	cp := append([]float64(nil), vals...)
	sort.Float64s(cp)
	n := len(cp)
	if n%2 == 1 {
		return cp[n/2]
	}
	return (cp[n/2-1] + cp[n/2]) / 2
}

// TopN re-sorts groups by value (descending when desc is set) and keeps the first n.
// Groups with a missing value sort last; ties keep group order. n <= 0 keeps every group.
func (t *Table) TopN(n int, desc bool) *Table {
	rows := append([]Row(nil), t.Rows...)
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i].Value, rows[j].Value
		if a.IsMissing() || b.IsMissing() {
			return !a.IsMissing() && b.IsMissing()
		}
		c := dataset.Compare(a, b)
		if desc {
			return c > 0
		}
		return c < 0
	})
	if n > 0 && len(rows) > n {
		rows = rows[:n]
	}
	return &Table{Spec: t.Spec, GroupKind: t.GroupKind, Rows: rows, MissingLabel: t.MissingLabel}
}

// ValueCounts counts rows per distinct value of col.
func ValueCounts(ds *dataset.Dataset, col string) (*Table, error) {
	return Aggregate(ds, Spec{GroupBy: col, Reducer: Count})
}

// Dataset renders the table as a two-column dataset: the group column and the
// reduced value. The missing bucket is written as MissingLabel, which makes the
// group column categorical.
func (t *Table) Dataset() *dataset.Dataset {
	kind := t.GroupKind
	rows := make([][]dataset.Value, len(t.Rows))
	for i, r := range t.Rows {
		g := r.Group
		if g.IsMissing() {
			g = dataset.Text(r.Label)
			kind = dataset.Categorical
		}
		rows[i] = []dataset.Value{g, r.Value}
	}
	name := t.Spec.ValueColumn()
	if name == t.Spec.GroupBy {
		name = fmt.Sprintf("%s(%s)", t.Spec.Reducer, name)
	}
	cols := []dataset.Column{
		{Name: t.Spec.GroupBy, Kind: kind},
		{Name: name, Kind: dataset.Numeric},
	}
	return dataset.New(t.Spec.GroupBy+" by "+string(t.Spec.Reducer), cols, rows)
}
