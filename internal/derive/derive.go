// Package derive computes row-level columns from already-coerced canonical fields.
package derive

import (
	"fmt"
	"sort"
	"strings"

	"github.com/KaramelBytes/datasift-cli/internal/dataset"
)

// Names of derived columns.
const (
	PerformanceBandColumn = "PerformanceBand"
	FullNameColumn        = "FullName"
)

// UnknownBand labels a missing score.
const UnknownBand = "Unknown"

// Band is a half-open score interval starting at Min.
type Band struct {
	Min   float64 `mapstructure:"min" yaml:"min" json:"min"`
	Label string  `mapstructure:"label" yaml:"label" json:"label"`
}

// BandTable maps a score to an ordered label. Bands are closed-open from each Min
// upward; scores below every Min receive Lowest.
type BandTable struct {
	Bands  []Band `yaml:"bands" json:"bands"`
	Lowest string `yaml:"lowest" json:"lowest"`
}

// DefaultBands is the four-band GPA table with cutoffs 3.7/3.0/2.0.
func DefaultBands() BandTable {
	return BandTable{
		Bands: []Band{
			{Min: 3.7, Label: "Excellent (3.7+)"},
			{Min: 3.0, Label: "Good (3.0–3.69)"},
			{Min: 2.0, Label: "Average (2.0–2.99)"},
		},
		Lowest: "At Risk (<2.0)",
	}
}

// Validate checks that thresholds are distinct and labels non-empty.
func (t BandTable) Validate() error {
	if t.Lowest == "" {
		return fmt.Errorf("band table: lowest label is empty")
	}
	seen := map[float64]bool{}
	for _, b := range t.Bands {
		if b.Label == "" {
			return fmt.Errorf("band table: empty label for threshold %v", b.Min)
		}
		if seen[b.Min] {
			return fmt.Errorf("band table: duplicate threshold %v", b.Min)
		}
		seen[b.Min] = true
	}
	return nil
}

// Labels lists band labels from highest to lowest, followed by UnknownBand.
func (t BandTable) Labels() []string {
	sorted := t.sorted()
	out := make([]string, 0, len(sorted)+2)
	for _, b := range sorted {
		out = append(out, b.Label)
	}
	return append(out, t.Lowest, UnknownBand)
}

func (t BandTable) sorted() []Band {
	out := append([]Band(nil), t.Bands...)
	sort.Slice(out, func(i, j int) bool { return out[i].Min > out[j].Min })
	return out
}

// Label bands a single score.
func (t BandTable) Label(score dataset.Value) string {
	f, ok := score.Float()
	if !ok {
		return UnknownBand
	}
	for _, b := range t.sorted() {
		if f >= b.Min {
			return b.Label
		}
	}
	return t.Lowest
}

// FullName joins trimmed first and last parts with a single space. A missing part is
// skipped; both missing yields missing.
func FullName(first, last dataset.Value) dataset.Value {
	var parts []string
	for _, v := range []dataset.Value{first, last} {
		if v.IsMissing() {
			continue
		}
		if s := strings.TrimSpace(v.String()); s != "" {
			parts = append(parts, s)
		}
	}
	if len(parts) == 0 {
		return dataset.Missing()
	}
	return dataset.Text(strings.Join(parts, " "))
}

// Rule computes one derived column. Sources must all be present for the rule to run.
type Rule struct {
	Column  string
	Sources []string
	Compute func(src []dataset.Value) dataset.Value
}

// BandRule derives PerformanceBand from the given score column.
func BandRule(scoreColumn string, table BandTable) Rule {
	return Rule{
		Column:  PerformanceBandColumn,
		Sources: []string{scoreColumn},
		Compute: func(src []dataset.Value) dataset.Value {
			return dataset.Text(table.Label(src[0]))
		},
	}
}

// FullNameRule derives FullName from first and last name columns.
func FullNameRule(first, last string) Rule {
	return Rule{
		Column:  FullNameColumn,
		Sources: []string{first, last},
		Compute: func(src []dataset.Value) dataset.Value {
			return FullName(src[0], src[1])
		},
	}
}

// Apply evaluates rules in order and appends their columns as categorical columns.
// Rules whose sources are absent are skipped and reported.
func Apply(ds *dataset.Dataset, rules []Rule) (*dataset.Dataset, []string, error) {
	out := ds
	var skipped []string
	for _, r := range rules {
		idx := make([]int, len(r.Sources))
		ok := true
		for i, s := range r.Sources {
			j, found := out.Index(s)
			if !found {
				ok = false
				break
			}
			idx[i] = j
		}
		if !ok {
			skipped = append(skipped, r.Column)
			continue
		}
		vals := make([]dataset.Value, out.Len())
		src := make([]dataset.Value, len(idx))
		for n, row := range out.Rows {
			for i, j := range idx {
				src[i] = row[j]
			}
			vals[n] = r.Compute(src)
		}
		next, err := out.WithColumn(dataset.Column{Name: r.Column, Kind: dataset.Categorical}, vals)
		if err != nil {
			return nil, nil, fmt.Errorf("derive %s: %w", r.Column, err)
		}
		out = next
	}
	return out, skipped, nil
}
