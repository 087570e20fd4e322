package coerce

import (
	"github.com/KaramelBytes/datasift-cli/internal/dataset"
)

const (
	// InferSample is how many leading non-missing values are inspected to infer a kind.
	InferSample = 50
	// InferRatio is the share of sampled values that must parse for a kind to be inferred.
	InferRatio = 0.6
)

// Gaps counts, per column, the present cells that failed to parse and became missing.
type Gaps map[string]int

// Total sums gaps across columns.
func (g Gaps) Total() int {
	n := 0
	for _, v := range g {
		n += v
	}
	return n
}

// Values converts cells to kind. Cells that already hold the target type are kept as-is,
// so converting twice is a no-op. Unparseable cells become missing and are counted.
func Values(vals []dataset.Value, kind dataset.Kind, loc Locale) ([]dataset.Value, int) {
	out := make([]dataset.Value, len(vals))
	gaps := 0
	for i, v := range vals {
		if v.IsMissing() {
			continue
		}
		switch kind {
		case dataset.Numeric:
			if v.IsNumber() {
				out[i] = v
				continue
			}
			if v.Type() == dataset.TypeText {
				if f, ok := ParseNumber(v.String(), loc); ok {
					out[i] = dataset.Number(f)
					continue
				}
			}
			gaps++
		case dataset.Temporal:
			if v.IsTime() {
				out[i] = v
				continue
			}
			if v.Type() == dataset.TypeText {
				if t, ok := ParseTime(v.String()); ok {
					out[i] = dataset.Time(t)
					continue
				}
			}
			gaps++
		default:
			out[i] = v
		}
	}
	return out, gaps
}

// Apply converts the columns named in kinds and records the resulting column kinds.
// Columns absent from the dataset are skipped. Categorical columns keep their cells.
func Apply(ds *dataset.Dataset, kinds map[string]dataset.Kind, loc Locale) (*dataset.Dataset, Gaps) {
	gaps := Gaps{}
	out := ds
	for _, col := range ds.Columns {
		kind, ok := kinds[col.Name]
		if !ok {
			continue
		}
		vals, _ := out.Values(col.Name)
		conv, n := Values(vals, kind, loc)
		if n > 0 {
			gaps[col.Name] = n
		}
		next, err := out.WithColumn(dataset.Column{Name: col.Name, Kind: kind}, conv)
		if err != nil {
			// lengths always match since vals came from out
			continue
		}
		out = next
	}
	return out, gaps
}

// InferKind guesses a column kind from its leading non-missing values: numeric when at
// least InferRatio of the sample parse as numbers, temporal when that share parses as
// dates, categorical otherwise.
func InferKind(vals []dataset.Value, loc Locale) dataset.Kind {
	var sampled, nums, dates int
	for _, v := range vals {
		if v.IsMissing() {
			continue
		}
		if sampled == InferSample {
			break
		}
		sampled++
		switch {
		case v.IsNumber():
			nums++
		case v.IsTime():
			dates++
		default:
			s := v.String()
			if _, ok := ParseNumber(s, loc); ok {
				nums++
			} else if _, ok := ParseTime(s); ok {
				dates++
			}
		}
	}
	if sampled == 0 {
		return dataset.Categorical
	}
	switch {
	case float64(nums)/float64(sampled) >= InferRatio:
		return dataset.Numeric
	case float64(dates)/float64(sampled) >= InferRatio:
		return dataset.Temporal
	}
	return dataset.Categorical
}

// Infer fills in kinds for every column not already declared.
func Infer(ds *dataset.Dataset, declared map[string]dataset.Kind, loc Locale) map[string]dataset.Kind {
	out := make(map[string]dataset.Kind, len(ds.Columns))
	for k, v := range declared {
		out[k] = v
	}
	for _, col := range ds.Columns {
		if _, ok := out[col.Name]; ok {
			continue
		}
		vals, _ := ds.Values(col.Name)
		out[col.Name] = InferKind(vals, loc)
	}
	return out
}
