// Package analysis summarizes dataset views and computes chart-ready series.
package analysis

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/KaramelBytes/datasift-cli/internal/aggregate"
	"github.com/KaramelBytes/datasift-cli/internal/dataset"
)

// Options controls summary behavior for a prepared dataset.
type Options struct {
	// SampleRows is how many leading rows the report includes; 0 omits them.
	SampleRows int
	// GroupBy computes per-group summaries for the given column names.
	GroupBy []string
	// Correlations computes Pearson correlations among numeric columns.
	Correlations bool
	// CorrPerGroup computes correlations per group key.
	CorrPerGroup bool
	// Outlier detection via robust Z-score (MAD). If Outliers is true, counts |z|>threshold.
	Outliers         bool
	OutlierThreshold float64
	// TopValues caps the categorical top-value list; 0 means 8.
	TopValues int
}

// DefaultOptions returns reasonable defaults for dataset summaries.
func DefaultOptions() Options {
	return Options{
		SampleRows:       5,
		Outliers:         true,
		OutlierThreshold: 3.5,
	}
}

// Report is a markdown-friendly summary of a dataset view.
type Report struct {
	Name string `json:"name"`
	// Rows is the source row count; Processed is how many rows were summarized.
	Rows      int             `json:"rows"`
	Processed int             `json:"processed"`
	KPIs      []KPI           `json:"kpis,omitempty"`
	Cols      []ColumnSummary `json:"columns"`
	Samples   [][]string      `json:"samples,omitempty"`
	Warnings  []string        `json:"warnings,omitempty"`
	Groups    []GroupResult   `json:"groups,omitempty"`
	Corr      *CorrMatrix     `json:"correlations,omitempty"`
}

// ColumnSummary captures kind and statistics per column.
type ColumnSummary struct {
	Name    string       `json:"name"`
	Kind    dataset.Kind `json:"kind"`
	Unit    string       `json:"unit,omitempty"`
	NonNull int          `json:"non_null"`
	Missing int          `json:"missing"`
	Unique  int          `json:"unique"`
	// Numeric stats
	Min  float64 `json:"min,omitempty"`
	Max  float64 `json:"max,omitempty"`
	Mean float64 `json:"mean,omitempty"`
	Std  float64 `json:"std,omitempty"`
	// Outliers (robust Z via MAD)
	OutliersCount    int     `json:"outliers,omitempty"`
	OutliersMaxAbsZ  float64 `json:"outliers_max_abs_z,omitempty"`
	OutlierThreshold float64 `json:"outlier_threshold,omitempty"`
	// Temporal span
	Earliest string `json:"earliest,omitempty"`
	Latest   string `json:"latest,omitempty"`
	// Categorical top values
	TopValues []CategoryCount `json:"top_values,omitempty"`
}

type CategoryCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// GroupResult captures aggregated metrics per group key.
type GroupResult struct {
	Key       string                `json:"key"`
	Size      int                   `json:"size"`
	Metrics   map[string]NumSummary `json:"metrics"`
	CorrPairs []PairCorr            `json:"corr_pairs,omitempty"`
}

type NumSummary struct {
	Count          int
	Min, Max, Mean float64
}

// Summarize builds a Report over every column of ds.
func Summarize(ds *dataset.Dataset, opt Options) *Report {
	rep := &Report{Name: ds.Name, Rows: ds.Len(), Processed: ds.Len()}
	if opt.SampleRows > 0 {
		rep.Samples = ds.Head(opt.SampleRows).Strings()
	}

	topN := opt.TopValues
	if topN <= 0 {
		topN = 8
	}
	var numCols []string
	for _, col := range ds.Columns {
		s := summarizeColumn(ds, col, opt, topN)
		if col.Kind == dataset.Numeric && s.NonNull > 0 {
			numCols = append(numCols, col.Name)
		}
		rep.Cols = append(rep.Cols, s)
	}

	if len(opt.GroupBy) > 0 {
		rep.Groups = summarizeGroups(ds, opt, numCols)
	}
	if opt.Correlations && len(numCols) >= 2 {
		rep.Corr = Correlation(ds, numCols)
	}
	return rep
}

func summarizeColumn(ds *dataset.Dataset, col dataset.Column, opt Options, topN int) ColumnSummary {
	clean, unit := splitUnits(col.Name)
	s := ColumnSummary{Name: clean, Kind: col.Kind, Unit: unit}
	i, _ := ds.Index(col.Name)
	cats := map[string]int{}
	var nums []float64
	var n int
	var mean, m2 float64
	s.Min, s.Max = math.Inf(1), math.Inf(-1)
	var earliest, latest dataset.Value
	for _, row := range ds.Rows {
		v := row[i]
		if v.IsMissing() {
			s.Missing++
			continue
		}
		s.NonNull++
		cats[v.String()]++
		switch col.Kind {
		case dataset.Numeric:
			x, ok := v.Float()
			if !ok {
				continue
			}
			// Welford update
			n++
			s.Min = math.Min(s.Min, x)
			s.Max = math.Max(s.Max, x)
			delta := x - mean
			mean += delta / float64(n)
			m2 += delta * (x - mean)
			nums = append(nums, x)
		case dataset.Temporal:
			if earliest.IsMissing() || dataset.Compare(v, earliest) < 0 {
				earliest = v
			}
			if latest.IsMissing() || dataset.Compare(v, latest) > 0 {
				latest = v
			}
		}
	}
	s.Unique = len(cats)
	if n == 0 {
		s.Min, s.Max = 0, 0
	}

	switch col.Kind {
	case dataset.Numeric:
		s.Mean = mean
		if n > 1 {
			s.Std = math.Sqrt(m2 / float64(n-1))
		}
		if opt.Outliers && len(nums) >= 8 {
			s.OutliersCount, s.OutliersMaxAbsZ, s.OutlierThreshold = robustOutliers(nums, opt.OutlierThreshold)
		}
	case dataset.Temporal:
		s.Earliest, s.Latest = earliest.String(), latest.String()
	default:
		tops := make([]CategoryCount, 0, len(cats))
		for k, v := range cats {
			tops = append(tops, CategoryCount{Value: k, Count: v})
		}
		sort.Slice(tops, func(i, j int) bool {
			if tops[i].Count == tops[j].Count {
				return tops[i].Value < tops[j].Value
			}
			return tops[i].Count > tops[j].Count
		})
		if len(tops) > topN {
			tops = tops[:topN]
		}
		s.TopValues = tops
	}
	return s
}

func robustOutliers(vals []float64, thr float64) (count int, maxAbsZ, threshold float64) {
	if thr <= 0 {
		thr = 3.5
	}
	median, mad := medianMAD(vals)
	if mad > 0 {
		for _, v := range vals {
			az := math.Abs(0.6745 * (v - median) / mad)
			if az > thr {
				count++
			}
			if az > maxAbsZ {
				maxAbsZ = az
			}
		}
	}
	return count, maxAbsZ, thr
}

func summarizeGroups(ds *dataset.Dataset, opt Options, numCols []string) []GroupResult {
	type gAcc struct {
		size int
		sum  map[string]float64
		cnt  map[string]int
		min  map[string]float64
		max  map[string]float64
		rows [][]dataset.Value
	}
	var gIdx []int
	var gNames []string
	for _, name := range opt.GroupBy {
		if i, ok := ds.Index(strings.TrimSpace(name)); ok {
			gIdx = append(gIdx, i)
			gNames = append(gNames, ds.Columns[i].Name)
		}
	}
	if len(gIdx) == 0 {
		return nil
	}
	numIdx := make(map[string]int, len(numCols))
	for _, c := range numCols {
		numIdx[c], _ = ds.Index(c)
	}

	groups := map[string]*gAcc{}
	for _, row := range ds.Rows {
		parts := make([]string, len(gIdx))
		for k, i := range gIdx {
			val := aggregate.MissingBucket
			if !row[i].IsMissing() {
				val = row[i].String()
			}
			parts[k] = fmt.Sprintf("%s=%s", gNames[k], safeVal(val))
		}
		key := strings.Join(parts, " | ")
		ga := groups[key]
		if ga == nil {
			ga = &gAcc{sum: map[string]float64{}, cnt: map[string]int{}, min: map[string]float64{}, max: map[string]float64{}}
			groups[key] = ga
		}
		ga.size++
		if opt.CorrPerGroup {
			ga.rows = append(ga.rows, row)
		}
		for _, c := range numCols {
			x, ok := row[numIdx[c]].Float()
			if !ok {
				continue
			}
			ga.sum[c] += x
			ga.cnt[c]++
			if _, ok := ga.min[c]; !ok || x < ga.min[c] {
				ga.min[c] = x
			}
			if _, ok := ga.max[c]; !ok || x > ga.max[c] {
				ga.max[c] = x
			}
		}
	}

	out := make([]GroupResult, 0, len(groups))
	for k, ga := range groups {
		gr := GroupResult{Key: k, Size: ga.size, Metrics: map[string]NumSummary{}}
		for _, c := range numCols {
			if ga.cnt[c] == 0 {
				continue
			}
			gr.Metrics[c] = NumSummary{Count: ga.cnt[c], Min: ga.min[c], Max: ga.max[c], Mean: ga.sum[c] / float64(ga.cnt[c])}
		}
		if opt.CorrPerGroup && len(numCols) >= 2 {
			gr.CorrPairs = Correlation(ds.View(ga.rows), numCols).TopPairs(10)
		}
		out = append(out, gr)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Size == out[j].Size {
			return out[i].Key < out[j].Key
		}
		return out[i].Size > out[j].Size
	})
	if len(out) > 20 {
		out = out[:20]
	}
	return out
}

func safeName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "(unnamed)"
	}
	return s
}
func safeVal(s string) string { return strings.ReplaceAll(strings.ReplaceAll(s, "\n", " "), "|", "/") }

var unitPatterns = []struct {
	re   *regexp.Regexp
	pick int
}{
	{regexp.MustCompile(`^(.*)\s*\(([^)]+)\)\s*$`), 2},  // e.g., Attendance (%)
	{regexp.MustCompile(`^(.*)\s*\[([^\]]+)\]\s*$`), 2}, // e.g., Hours [h/week]
	{regexp.MustCompile(`^(.*?)[_\s-]+(%|pct|hrs|h|yrs|kg|cm|km)$`), 2},
}

func splitUnits(name string) (clean string, unit string) {
	s := strings.TrimSpace(name)
	for _, p := range unitPatterns {
		if m := p.re.FindStringSubmatch(s); len(m) >= 3 {
			base := strings.TrimSpace(m[1])
			u := strings.TrimSpace(m[p.pick])
			if base != "" && u != "" {
				return base, u
			}
		}
	}
	return s, ""
}

// medianMAD computes median and MAD (median absolute deviation) of values.
func medianMAD(vals []float64) (median, mad float64) {
	if len(vals) == 0 {
		return 0, 0
	}
	cp := make([]float64, len(vals))
	copy(cp, vals)
	sort.Float64s(cp)
	median = quantile(cp, 0.5)
	dev := make([]float64, len(cp))
	for i, v := range cp {
		dev[i] = math.Abs(v - median)
	}
	sort.Float64s(dev)
	mad = quantile(dev, 0.5)
	return
}

func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	w := pos - float64(lo)
	return sorted[lo]*(1-w) + sorted[hi]*w
}
