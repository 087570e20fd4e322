package analysis

import (
	"errors"
	"testing"

	"github.com/KaramelBytes/datasift-cli/internal/aggregate"
	"github.com/KaramelBytes/datasift-cli/internal/dataset"
)

func students() *dataset.Dataset {
	cols := []dataset.Column{
		{Name: "Program", Kind: dataset.Categorical},
		{Name: "GPA", Kind: dataset.Numeric},
		{Name: "StudyHoursPerWeek", Kind: dataset.Numeric},
		{Name: "PerformanceBand", Kind: dataset.Categorical},
		{Name: "YearOfStudy", Kind: dataset.Numeric},
	}
	n := dataset.Number
	s := dataset.Text
	rows := [][]dataset.Value{
		{s("CS"), n(3.9), n(20), s("Excellent"), n(1)},
		{s("CS"), n(3.1), n(12), s("Good"), n(2)},
		{s("Math"), n(2.5), n(8), s("Average"), n(1)},
		{s("Math"), dataset.Missing(), n(10), s("Unknown"), n(3)},
		{dataset.Missing(), n(3.8), n(18), s("Excellent"), n(2)},
		{s("Bio"), n(1.5), dataset.Missing(), s("At Risk"), n(1)},
	}
	return dataset.New("students", cols, rows)
}

func TestHistogram(t *testing.T) {
	h, err := BuildHistogram(students(), "GPA", 4)
	if err != nil {
		t.Fatalf("BuildHistogram: %v", err)
	}
	if h.Missing != 1 || len(h.Bins) != 4 {
		t.Fatalf("histogram = %+v", h)
	}
	total := 0
	for _, b := range h.Bins {
		total += b.Count
	}
	if total != 5 {
		t.Fatalf("binned %d values, want 5", total)
	}
	if h.Bins[0].Low != 1.5 || h.Bins[3].High != 3.9 || h.Bins[3].Count != 2 {
		t.Fatalf("bins = %+v", h.Bins)
	}
	if _, err := BuildHistogram(students(), "Program", 4); !errors.Is(err, aggregate.ErrNotNumeric) {
		t.Fatalf("categorical histogram err = %v", err)
	}
	empty, err := BuildHistogram(students().View(nil), "GPA", 4)
	if err != nil || len(empty.Bins) != 0 {
		t.Fatalf("empty histogram = %+v, %v", empty, err)
	}
}

func TestBoxPlot(t *testing.T) {
	boxes, err := BoxPlot(students(), "GPA", "Program")
	if err != nil {
		t.Fatalf("BoxPlot: %v", err)
	}
	want := []string{"Bio", "CS", "Math", aggregate.MissingBucket}
	if len(boxes) != len(want) {
		t.Fatalf("boxes = %+v", boxes)
	}
	for i, b := range boxes {
		if b.Group != want[i] {
			t.Fatalf("box[%d] = %s, want %s", i, b.Group, want[i])
		}
	}
	cs := boxes[1]
	if cs.N != 2 || cs.Min != 3.1 || cs.Max != 3.9 || !almostEqual(cs.Median, 3.5, 1e-9) {
		t.Fatalf("CS box = %+v", cs)
	}
	all, _ := BoxPlot(students(), "GPA", "")
	if len(all) != 1 || all[0].N != 5 || all[0].Group != "GPA" {
		t.Fatalf("ungrouped box = %+v", all)
	}
}

func TestBoxStatsWhiskers(t *testing.T) {
	b := boxStats("x", []float64{1, 2, 3, 4, 100})
	if len(b.Outliers) != 1 || b.Outliers[0] != 100 || b.UpperWhisker != 4 || b.LowerWhisker != 1 {
		t.Fatalf("box = %+v", b)
	}
}

func TestScatterAndLine(t *testing.T) {
	pts, err := Scatter(students(), "StudyHoursPerWeek", "GPA", "Program")
	if err != nil {
		t.Fatalf("Scatter: %v", err)
	}
	if len(pts) != 4 || pts[0].X != 20 || pts[0].Y != 3.9 || pts[3].Group != aggregate.MissingBucket {
		t.Fatalf("points = %+v", pts)
	}
	line, err := Line(students(), "YearOfStudy", "GPA")
	if err != nil {
		t.Fatalf("Line: %v", err)
	}
	if len(line) != 2 || line[0].X != "1" || line[1].X != "2" {
		t.Fatalf("line = %+v", line)
	}
	if !almostEqual(line[0].Y, (3.9+2.5+1.5)/3, 1e-9) || !almostEqual(line[1].Y, (3.1+3.8)/2, 1e-9) {
		t.Fatalf("line means = %+v", line)
	}
}

func TestBandCountsAndMeanByGroup(t *testing.T) {
	bands, err := BandCounts(students(), "PerformanceBand")
	if err != nil {
		t.Fatalf("BandCounts: %v", err)
	}
	if bands.Rows[0].Label != "Excellent" || bands.Rows[0].Size != 2 {
		t.Fatalf("bands = %+v", bands.Rows)
	}
	top, err := MeanByGroup(students(), "Program", "GPA", 2)
	if err != nil {
		t.Fatalf("MeanByGroup: %v", err)
	}
	if len(top.Rows) != 2 || top.Rows[0].Label != "CS" || top.Rows[1].Label != "Math" {
		t.Fatalf("top = %+v", top.Rows)
	}
	if _, ok := top.Lookup(aggregate.MissingBucket); ok {
		t.Fatalf("missing program should be dropped")
	}
}

func TestKPIs(t *testing.T) {
	ds := students()
	kpis := KPIs(ds, "Students", []Measure{
		{Label: "Avg GPA", Column: "GPA", Decimals: 2},
		{Label: "Avg Attendance", Column: "AttendanceRate", Decimals: 1, Suffix: "%"},
	})
	if kpis[0].Value != "6" || kpis[1].Value != "2.96" || kpis[2].Value != NotAvailable || kpis[2].Raw != nil {
		t.Fatalf("kpis = %+v", kpis)
	}
	g := GenericKPIs(ds)
	if g[0].Value != "6" || g[1].Value != "5" || g[2].Value != "3" || g[3].Value != "3" {
		t.Fatalf("generic kpis = %+v", g)
	}
	if Thousands(1234567) != "1,234,567" || Thousands(999) != "999" || Thousands(-1000) != "-1,000" {
		t.Fatalf("Thousands formatting wrong")
	}
}

func TestCorrelationPairwiseComplete(t *testing.T) {
	m := Correlation(students(), []string{"GPA", "StudyHoursPerWeek", "Nope"})
	if len(m.Columns) != 2 || m.Values[0][0] != 1 {
		t.Fatalf("matrix = %+v", m)
	}
	if m.Values[0][1] <= 0.9 || m.Values[0][1] != m.Values[1][0] {
		t.Fatalf("r = %v", m.Values[0][1])
	}
	if pairs := m.TopPairs(5); len(pairs) != 1 {
		t.Fatalf("pairs = %+v", pairs)
	}
}
