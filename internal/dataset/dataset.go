package dataset

import (
	"fmt"
	"sort"
)

// Kind is the declared or inferred type of a column.
type Kind string

const (
	Numeric     Kind = "numeric"
	Categorical Kind = "categorical"
	Temporal    Kind = "temporal"
)

// Column describes one column of a Dataset.
type Column struct {
	Name string `json:"name"`
	Kind Kind   `json:"kind"`
}

// Dataset is an ordered, rectangular collection of rows.
// Rows are treated as read-only; operations that change shape return new datasets.
type Dataset struct {
	Name    string
	Columns []Column
	Rows    [][]Value
	index   map[string]int
}

// New builds a dataset and pads or truncates rows to the column count.
func New(name string, cols []Column, rows [][]Value) *Dataset {
	n := len(cols)
	for i, r := range rows {
		if len(r) == n {
			continue
		}
		fixed := make([]Value, n)
		copy(fixed, r)
		rows[i] = fixed
	}
	d := &Dataset{Name: name, Columns: cols, Rows: rows}
	d.reindex()
	return d
}

func (d *Dataset) reindex() {
	d.index = make(map[string]int, len(d.Columns))
	for i, c := range d.Columns {
		if _, dup := d.index[c.Name]; !dup {
			d.index[c.Name] = i
		}
	}
}

// Len returns the number of rows.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Rows)
}

// Index returns the position of the named column.
func (d *Dataset) Index(name string) (int, bool) {
	if d == nil {
		return -1, false
	}
	i, ok := d.index[name]
	return i, ok
}

// Has reports whether the named column exists.
func (d *Dataset) Has(name string) bool {
	_, ok := d.Index(name)
	return ok
}

// Column returns the descriptor of the named column.
func (d *Dataset) Column(name string) (Column, bool) {
	i, ok := d.Index(name)
	if !ok {
		return Column{}, false
	}
	return d.Columns[i], true
}

// Names lists column names in order.
func (d *Dataset) Names() []string {
	out := make([]string, len(d.Columns))
	for i, c := range d.Columns {
		out[i] = c.Name
	}
	return out
}

// Values returns the cells of the named column in row order.
func (d *Dataset) Values(name string) ([]Value, error) {
	i, ok := d.Index(name)
	if !ok {
		return nil, fmt.Errorf("column %q not found", name)
	}
	out := make([]Value, len(d.Rows))
	for r, row := range d.Rows {
		out[r] = row[i]
	}
	return out, nil
}

// Floats returns the non-missing numeric cells of the named column.
func (d *Dataset) Floats(name string) []float64 {
	i, ok := d.Index(name)
	if !ok {
		return nil
	}
	out := make([]float64, 0, len(d.Rows))
	for _, row := range d.Rows {
		if f, ok := row[i].Float(); ok {
			out = append(out, f)
		}
	}
	return out
}

// Distinct returns the sorted distinct non-missing string forms of a column.
func (d *Dataset) Distinct(name string) []string {
	i, ok := d.Index(name)
	if !ok {
		return nil
	}
	seen := map[string]Value{}
	for _, row := range d.Rows {
		v := row[i]
		if v.IsMissing() {
			continue
		}
		if _, ok := seen[v.String()]; !ok {
			seen[v.String()] = v
		}
	}
	vals := make([]Value, 0, len(seen))
	for _, v := range seen {
		vals = append(vals, v)
	}
	sort.SliceStable(vals, func(a, b int) bool { return Compare(vals[a], vals[b]) < 0 })
	out := make([]string, len(vals))
	for k, v := range vals {
		out[k] = v.String()
	}
	return out
}

// View returns a dataset sharing this dataset's schema that holds the given rows.
func (d *Dataset) View(rows [][]Value) *Dataset {
	return &Dataset{Name: d.Name, Columns: d.Columns, Rows: rows, index: d.index}
}

// WithColumn returns a copy with col set to vals, replacing an existing column of the
// same name or appending a new one. The receiver is left untouched.
func (d *Dataset) WithColumn(col Column, vals []Value) (*Dataset, error) {
	if len(vals) != len(d.Rows) {
		return nil, fmt.Errorf("column %q: got %d values for %d rows", col.Name, len(vals), len(d.Rows))
	}
	pos, replace := d.Index(col.Name)
	cols := make([]Column, len(d.Columns), len(d.Columns)+1)
	copy(cols, d.Columns)
	if replace {
		cols[pos] = col
	} else {
		pos = len(cols)
		cols = append(cols, col)
	}
	rows := make([][]Value, len(d.Rows))
	for r, row := range d.Rows {
		nr := make([]Value, len(cols))
		copy(nr, row)
		nr[pos] = vals[r]
		rows[r] = nr
	}
	out := &Dataset{Name: d.Name, Columns: cols, Rows: rows}
	out.reindex()
	return out, nil
}

// Rename returns a copy with columns renamed per mapping (old → new).
// Row slices are shared since cells are not modified.
func (d *Dataset) Rename(mapping map[string]string) *Dataset {
	cols := make([]Column, len(d.Columns))
	for i, c := range d.Columns {
		if n, ok := mapping[c.Name]; ok {
			c.Name = n
		}
		cols[i] = c
	}
	out := &Dataset{Name: d.Name, Columns: cols, Rows: d.Rows}
	out.reindex()
	return out
}

// Project returns a dataset restricted to the named columns that exist, in the given order.
func (d *Dataset) Project(names []string) *Dataset {
	var idx []int
	var cols []Column
	for _, n := range names {
		if i, ok := d.Index(n); ok {
			idx = append(idx, i)
			cols = append(cols, d.Columns[i])
		}
	}
	rows := make([][]Value, len(d.Rows))
	for r, row := range d.Rows {
		nr := make([]Value, len(idx))
		for k, i := range idx {
			nr[k] = row[i]
		}
		rows[r] = nr
	}
	out := &Dataset{Name: d.Name, Columns: cols, Rows: rows}
	out.reindex()
	return out
}

// Head returns at most n leading rows as a view.
func (d *Dataset) Head(n int) *Dataset {
	if n < 0 || n >= len(d.Rows) {
		return d
	}
	return d.View(d.Rows[:n])
}

// Slice returns rows [offset, offset+limit) as a view. limit <= 0 means to the end.
func (d *Dataset) Slice(offset, limit int) *Dataset {
	if offset < 0 {
		offset = 0
	}
	if offset > len(d.Rows) {
		offset = len(d.Rows)
	}
	end := len(d.Rows)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return d.View(d.Rows[offset:end])
}

// Strings renders every row with Value.String.
func (d *Dataset) Strings() [][]string {
	out := make([][]string, len(d.Rows))
	for r, row := range d.Rows {
		rec := make([]string, len(row))
		for i, v := range row {
			rec[i] = v.String()
		}
		out[r] = rec
	}
	return out
}
