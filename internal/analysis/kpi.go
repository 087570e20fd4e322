package analysis

import (
	"strconv"
	"strings"

	"github.com/KaramelBytes/datasift-cli/internal/dataset"
)

// NotAvailable is shown for a measure with no present values.
const NotAvailable = "N/A"

// KPI is one headline figure. Value is display-ready; Raw is nil when not available.
type KPI struct {
	Label string   `json:"label"`
	Value string   `json:"value"`
	Raw   *float64 `json:"raw"`
}

// Measure is a mean-of-column KPI definition.
type Measure struct {
	Label    string `json:"label" yaml:"label"`
	Column   string `json:"column" yaml:"column"`
	Decimals int    `json:"decimals" yaml:"decimals"`
	Suffix   string `json:"suffix,omitempty" yaml:"suffix,omitempty"`
}

// KPIs reports the row count under countLabel followed by the mean of each measure.
// A measure whose column is absent or entirely missing reads NotAvailable.
func KPIs(ds *dataset.Dataset, countLabel string, measures []Measure) []KPI {
	n := float64(ds.Len())
	out := []KPI{{Label: countLabel, Value: Thousands(ds.Len()), Raw: &n}}
	for _, m := range measures {
		k := KPI{Label: m.Label, Value: NotAvailable}
		vals := ds.Floats(m.Column)
		if len(vals) > 0 {
			var sum float64
			for _, v := range vals {
				sum += v
			}
			mean := sum / float64(len(vals))
			k.Raw = &mean
			k.Value = strconv.FormatFloat(mean, 'f', m.Decimals, 64) + m.Suffix
		}
		out = append(out, k)
	}
	return out
}

// GenericKPIs describes the shape of ds: rows, columns, numeric columns and missing cells.
func GenericKPIs(ds *dataset.Dataset) []KPI {
	var numeric, missing int
	for i, c := range ds.Columns {
		if c.Kind == dataset.Numeric {
			numeric++
		}
		for _, row := range ds.Rows {
			if row[i].IsMissing() {
				missing++
			}
		}
	}
	mk := func(label string, v int) KPI {
		f := float64(v)
		return KPI{Label: label, Value: Thousands(v), Raw: &f}
	}
	return []KPI{
		mk("Rows", ds.Len()),
		mk("Columns", len(ds.Columns)),
		mk("Numeric columns", numeric),
		mk("Missing cells", missing),
	}
}

// Thousands formats n with comma grouping.
func Thousands(n int) string {
	s := strconv.Itoa(n)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}
