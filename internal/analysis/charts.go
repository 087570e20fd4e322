package analysis

import (
	"fmt"
	"math"
	"sort"

	"github.com/KaramelBytes/datasift-cli/internal/aggregate"
	"github.com/KaramelBytes/datasift-cli/internal/dataset"
)

// CorrMatrix holds a symmetric Pearson correlation matrix across numeric columns.
type CorrMatrix struct {
	Columns []string    `json:"columns"`
	Values  [][]float64 `json:"values"` // row-major, Values[i][j]
}

// PairCorr is a simple correlation pair summary.
type PairCorr struct {
	A string  `json:"a"`
	B string  `json:"b"`
	R float64 `json:"r"`
}

type pairAcc struct {
	n     float64
	sumX  float64
	sumY  float64
	sumXX float64
	sumYY float64
	sumXY float64
}

func (pa *pairAcc) add(x, y float64) {
	pa.n++
	pa.sumX += x
	pa.sumY += y
	pa.sumXX += x * x
	pa.sumYY += y * y
	pa.sumXY += x * y
}

func (pa *pairAcc) r() (float64, bool) {
	if pa == nil || pa.n < 2 {
		return 0, false
	}
	denom := math.Sqrt((pa.n*pa.sumXX - pa.sumX*pa.sumX) * (pa.n*pa.sumYY - pa.sumY*pa.sumY))
	if denom == 0 {
		return 0, false
	}
	r := (pa.n*pa.sumXY - pa.sumX*pa.sumY) / denom
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0, false
	}
	return math.Max(-1, math.Min(1, r)), true
}

// Correlation computes pairwise-complete Pearson correlations among cols. Pairs without
// at least two shared present values, or without variance, are 0.
func Correlation(ds *dataset.Dataset, cols []string) *CorrMatrix {
	idx := make([]int, 0, len(cols))
	names := make([]string, 0, len(cols))
	for _, c := range cols {
		if i, ok := ds.Index(c); ok {
			idx = append(idx, i)
			names = append(names, c)
		}
	}
	n := len(idx)
	acc := make([]pairAcc, n*n)
	for _, row := range ds.Rows {
		for a := 1; a < n; a++ {
			x, ok := row[idx[a]].Float()
			if !ok {
				continue
			}
			for b := 0; b < a; b++ {
				y, ok := row[idx[b]].Float()
				if !ok {
					continue
				}
				acc[a*n+b].add(x, y)
			}
		}
	}
	mat := make([][]float64, n)
	for a := range mat {
		mat[a] = make([]float64, n)
		mat[a][a] = 1
	}
	for a := 1; a < n; a++ {
		for b := 0; b < a; b++ {
			r, _ := acc[a*n+b].r()
			mat[a][b], mat[b][a] = r, r
		}
	}
	return &CorrMatrix{Columns: names, Values: mat}
}

// TopPairs lists the upper-triangle pairs by descending |r|.
func (m *CorrMatrix) TopPairs(limit int) []PairCorr {
	if m == nil {
		return nil
	}
	var pairs []PairCorr
	n := len(m.Columns)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if m.Values[i][j] == 0 {
				continue
			}
			pairs = append(pairs, PairCorr{A: m.Columns[i], B: m.Columns[j], R: m.Values[i][j]})
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		ai, aj := math.Abs(pairs[i].R), math.Abs(pairs[j].R)
		if ai == aj {
			return pairs[i].A+pairs[i].B < pairs[j].A+pairs[j].B
		}
		return ai > aj
	})
	if limit > 0 && len(pairs) > limit {
		pairs = pairs[:limit]
	}
	return pairs
}

func numericIndex(ds *dataset.Dataset, col string) (int, error) {
	c, ok := ds.Column(col)
	if !ok {
		return -1, fmt.Errorf("%w: %q", aggregate.ErrUnknownColumn, col)
	}
	if c.Kind != dataset.Numeric {
		return -1, fmt.Errorf("%w: %q is %s", aggregate.ErrNotNumeric, col, c.Kind)
	}
	i, _ := ds.Index(col)
	return i, nil
}

// Bin is one histogram bucket, [Low, High) except the last, which is closed.
type Bin struct {
	Low   float64 `json:"low"`
	High  float64 `json:"high"`
	Count int     `json:"count"`
}

// Histogram buckets the present values of a numeric column into equal-width bins
// spanning its min and max. Missing values are left out and counted.
type Histogram struct {
	Column  string `json:"column"`
	Bins    []Bin  `json:"bins"`
	Missing int    `json:"missing"`
}

// DefaultBins is the histogram bin count used when none is given.
const DefaultBins = 20

// BuildHistogram computes a histogram of col. An empty or all-missing column yields no bins.
func BuildHistogram(ds *dataset.Dataset, col string, bins int) (*Histogram, error) {
	i, err := numericIndex(ds, col)
	if err != nil {
		return nil, err
	}
	if bins <= 0 {
		bins = DefaultBins
	}
	h := &Histogram{Column: col}
	var vals []float64
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, row := range ds.Rows {
		x, ok := row[i].Float()
		if !ok {
			h.Missing++
			continue
		}
		vals = append(vals, x)
		lo, hi = math.Min(lo, x), math.Max(hi, x)
	}
	if len(vals) == 0 {
		return h, nil
	}
	if lo == hi {
		h.Bins = []Bin{{Low: lo, High: hi, Count: len(vals)}}
		return h, nil
	}
	width := (hi - lo) / float64(bins)
	h.Bins = make([]Bin, bins)
	for b := range h.Bins {
		h.Bins[b] = Bin{Low: lo + float64(b)*width, High: lo + float64(b+1)*width}
	}
	h.Bins[bins-1].High = hi
	for _, x := range vals {
		b := int((x - lo) / width)
		if b >= bins {
			b = bins - 1
		}
		h.Bins[b].Count++
	}
	return h, nil
}

// BoxStats is the five-number summary of one group, with Tukey whiskers at 1.5 IQR.
type BoxStats struct {
	Group        string    `json:"group"`
	N            int       `json:"n"`
	Min          float64   `json:"min"`
	Q1           float64   `json:"q1"`
	Median       float64   `json:"median"`
	Q3           float64   `json:"q3"`
	Max          float64   `json:"max"`
	LowerWhisker float64   `json:"lower_whisker"`
	UpperWhisker float64   `json:"upper_whisker"`
	Outliers     []float64 `json:"outliers,omitempty"`
}

// BoxPlot summarizes metric per distinct value of groupBy, in group order. An empty
// groupBy summarizes the whole view as a single group named after the metric.
// Groups with no present metric values are omitted.
func BoxPlot(ds *dataset.Dataset, metric, groupBy string) ([]BoxStats, error) {
	mi, err := numericIndex(ds, metric)
	if err != nil {
		return nil, err
	}
	if groupBy == "" {
		var vals []float64
		for _, row := range ds.Rows {
			if x, ok := row[mi].Float(); ok {
				vals = append(vals, x)
			}
		}
		if len(vals) == 0 {
			return nil, nil
		}
		return []BoxStats{boxStats(metric, vals)}, nil
	}
	gi, ok := ds.Index(groupBy)
	if !ok {
		return nil, fmt.Errorf("%w: %q", aggregate.ErrUnknownColumn, groupBy)
	}
	type grp struct {
		key  dataset.Value
		vals []float64
	}
	byKey := map[string]*grp{}
	var order []*grp
	for _, row := range ds.Rows {
		x, ok := row[mi].Float()
		if !ok {
			continue
		}
		label := aggregate.MissingBucket
		if !row[gi].IsMissing() {
			label = row[gi].String()
		}
		g := byKey[label]
		if g == nil {
			g = &grp{key: row[gi]}
			byKey[label] = g
			order = append(order, g)
		}
		g.vals = append(g.vals, x)
	}
	sort.SliceStable(order, func(i, j int) bool { return dataset.Compare(order[i].key, order[j].key) < 0 })
	out := make([]BoxStats, 0, len(order))
	for _, g := range order {
		label := aggregate.MissingBucket
		if !g.key.IsMissing() {
			label = g.key.String()
		}
		out = append(out, boxStats(label, g.vals))
	}
	return out, nil
}

func boxStats(group string, vals []float64) BoxStats {
	cp := append([]float64(nil), vals...)
	sort.Float64s(cp)
	b := BoxStats{
		Group:  group,
		N:      len(cp),
		Min:    cp[0],
		Q1:     quantile(cp, 0.25),
		Median: quantile(cp, 0.5),
		Q3:     quantile(cp, 0.75),
		Max:    cp[len(cp)-1],
	}
	iqr := b.Q3 - b.Q1
	lo, hi := b.Q1-1.5*iqr, b.Q3+1.5*iqr
	b.LowerWhisker, b.UpperWhisker = b.Max, b.Min
	for _, v := range cp {
		if v < lo || v > hi {
			b.Outliers = append(b.Outliers, v)
			continue
		}
		b.LowerWhisker = math.Min(b.LowerWhisker, v)
		b.UpperWhisker = math.Max(b.UpperWhisker, v)
	}
	return b
}

// Point is one scatter-plot point. Group carries the optional color column value.
type Point struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Group string  `json:"group,omitempty"`
}

// Scatter pairs x and y for rows where both are present, in row order.
func Scatter(ds *dataset.Dataset, x, y, color string) ([]Point, error) {
	xi, err := numericIndex(ds, x)
	if err != nil {
		return nil, err
	}
	yi, err := numericIndex(ds, y)
	if err != nil {
		return nil, err
	}
	ci := -1
	if color != "" {
		i, ok := ds.Index(color)
		if !ok {
			return nil, fmt.Errorf("%w: %q", aggregate.ErrUnknownColumn, color)
		}
		ci = i
	}
	var out []Point
	for _, row := range ds.Rows {
		xv, okx := row[xi].Float()
		yv, oky := row[yi].Float()
		if !okx || !oky {
			continue
		}
		p := Point{X: xv, Y: yv}
		if ci >= 0 {
			p.Group = aggregate.MissingBucket
			if !row[ci].IsMissing() {
				p.Group = row[ci].String()
			}
		}
		out = append(out, p)
	}
	return out, nil
}

// LinePoint is the mean of y at one ordered x.
type LinePoint struct {
	X string  `json:"x"`
	Y float64 `json:"y"`
	N int     `json:"n"`
}

// Line computes the mean of y per distinct x, ordered by x. Rows with a missing x are
// dropped; x values with no present y are omitted.
func Line(ds *dataset.Dataset, x, y string) ([]LinePoint, error) {
	tbl, err := aggregate.Aggregate(ds, aggregate.Spec{GroupBy: x, Metric: y, Reducer: aggregate.Mean})
	if err != nil {
		return nil, err
	}
	var out []LinePoint
	for _, r := range tbl.Rows {
		f, ok := r.Value.Float()
		if r.Group.IsMissing() || !ok {
			continue
		}
		out = append(out, LinePoint{X: r.Label, Y: f, N: r.Size})
	}
	return out, nil
}

// BandCounts counts rows per value of a band column, most frequent first.
func BandCounts(ds *dataset.Dataset, bandColumn string) (*aggregate.Table, error) {
	tbl, err := aggregate.ValueCounts(ds, bandColumn)
	if err != nil {
		return nil, err
	}
	return tbl.TopN(0, true), nil
}

// MeanByGroup averages metric per group, drops the missing group, and keeps the top n
// by descending mean.
func MeanByGroup(ds *dataset.Dataset, groupBy, metric string, n int) (*aggregate.Table, error) {
	tbl, err := aggregate.Aggregate(ds, aggregate.Spec{GroupBy: groupBy, Metric: metric, Reducer: aggregate.Mean})
	if err != nil {
		return nil, err
	}
	rows := tbl.Rows[:0:0]
	for _, r := range tbl.Rows {
		if !r.Group.IsMissing() {
			rows = append(rows, r)
		}
	}
	tbl.Rows = rows
	return tbl.TopN(n, true), nil
}
