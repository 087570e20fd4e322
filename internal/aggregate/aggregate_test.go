package aggregate

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/KaramelBytes/datasift-cli/internal/dataset"
)

func groups(rows [][]dataset.Value) *dataset.Dataset {
	return dataset.New("t", []dataset.Column{
		{Name: "Program", Kind: dataset.Categorical},
		{Name: "Score", Kind: dataset.Numeric},
	}, rows)
}

func TestMeanAndCountPerGroup(t *testing.T) {
	ds := groups([][]dataset.Value{
		{dataset.Text("A"), dataset.Number(10)},
		{dataset.Text("A"), dataset.Number(20)},
		{dataset.Text("B"), dataset.Number(5)},
	})
	mean, err := Aggregate(ds, Spec{GroupBy: "Program", Metric: "Score", Reducer: Mean})
	if err != nil {
		t.Fatalf("Aggregate mean: %v", err)
	}
	if mean.Len() != 2 {
		t.Fatalf("groups = %d", mean.Len())
	}
	for label, want := range map[string]float64{"A": 15, "B": 5} {
		r, ok := mean.Lookup(label)
		if !ok {
			t.Fatalf("group %s missing", label)
		}
		if f, _ := r.Value.Float(); f != want {
			t.Fatalf("mean %s = %v, want %v", label, f, want)
		}
	}
	count, err := Aggregate(ds, Spec{GroupBy: "Program", Reducer: Count})
	if err != nil {
		t.Fatalf("Aggregate count: %v", err)
	}
	if a, _ := count.Rows[0].Value.Float(); a != 2 || count.Rows[0].Label != "A" {
		t.Fatalf("count A = %v", count.Rows[0])
	}
	if b, _ := count.Rows[1].Value.Float(); b != 1 {
		t.Fatalf("count B = %v", b)
	}
}

func TestMissingGroupBucket(t *testing.T) {
	ds := groups([][]dataset.Value{
		{dataset.Missing(), dataset.Number(1)},
		{dataset.Text("B"), dataset.Number(2)},
		{dataset.Text("A"), dataset.Missing()},
		{dataset.Missing(), dataset.Number(3)},
	})
	tbl, err := Aggregate(ds, Spec{GroupBy: "Program", Metric: "Score", Reducer: Sum})
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	labels := []string{}
	for _, r := range tbl.Rows {
		labels = append(labels, r.Label)
	}
	if len(labels) != 3 || labels[0] != "A" || labels[1] != "B" || labels[2] != MissingBucket {
		t.Fatalf("labels = %v", labels)
	}
	if f, _ := tbl.Rows[2].Value.Float(); f != 4 {
		t.Fatalf("missing bucket sum = %v", f)
	}
	// a group whose metric is entirely missing sums to zero but has no mean
	if f, ok := tbl.Rows[0].Value.Float(); !ok || f != 0 {
		t.Fatalf("sum of nothing = %v %v", f, ok)
	}
	mean, _ := Aggregate(ds, Spec{GroupBy: "Program", Metric: "Score", Reducer: Mean})
	if !mean.Rows[0].Value.IsMissing() {
		t.Fatalf("mean of nothing should be missing")
	}
	count, _ := Aggregate(ds, Spec{GroupBy: "Program", Reducer: Count})
	if f, _ := count.Rows[0].Value.Float(); f != 1 {
		t.Fatalf("count ignores metric: got %v", f)
	}
}

func TestMissingBucketLabelAvoidsRealValue(t *testing.T) {
	ds := groups([][]dataset.Value{
		{dataset.Text("(missing)"), dataset.Number(1)},
		{dataset.Missing(), dataset.Number(2)},
		{dataset.Missing(), dataset.Number(3)},
	})
	tbl, err := Aggregate(ds, Spec{GroupBy: "Program", Reducer: Count})
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if tbl.MissingLabel != "(missing group)" || tbl.Len() != 2 {
		t.Fatalf("missing label = %q, groups = %d", tbl.MissingLabel, tbl.Len())
	}
	if r, ok := tbl.Lookup(MissingBucket); !ok || r.Group.IsMissing() || r.Size != 1 {
		t.Fatalf("real (missing) group = %#v", r)
	}
	if r, ok := tbl.Missing(); !ok || r.Label != "(missing group)" || r.Size != 2 {
		t.Fatalf("missing bucket = %#v", r)
	}
	out := tbl.Dataset().Strings()
	if out[0][0] != "(missing)" || out[1][0] != "(missing group)" {
		t.Fatalf("dataset rows = %v", out)
	}

	plain, _ := Aggregate(groups([][]dataset.Value{{dataset.Missing(), dataset.Number(1)}}), Spec{GroupBy: "Program", Reducer: Count})
	if plain.MissingLabel != MissingBucket {
		t.Fatalf("missing label = %q", plain.MissingLabel)
	}
}

func TestMedianAndEmptyInput(t *testing.T) {
	ds := groups([][]dataset.Value{
		{dataset.Text("A"), dataset.Number(1)},
		{dataset.Text("A"), dataset.Number(9)},
		{dataset.Text("A"), dataset.Number(4)},
		{dataset.Text("A"), dataset.Number(2)},
	})
	tbl, err := Aggregate(ds, Spec{GroupBy: "Program", Metric: "Score", Reducer: Median})
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if f, _ := tbl.Rows[0].Value.Float(); f != 3 {
		t.Fatalf("median = %v", f)
	}
	empty, err := Aggregate(ds.View(nil), Spec{GroupBy: "Program", Metric: "Score", Reducer: Mean})
	if err != nil {
		t.Fatalf("empty input should not fail: %v", err)
	}
	if empty.Len() != 0 {
		t.Fatalf("empty input produced %d groups", empty.Len())
	}
}

func TestSpecErrors(t *testing.T) {
	ds := groups(nil)
	cases := []struct {
		spec Spec
		want error
	}{
		{Spec{GroupBy: "Program", Metric: "Score", Reducer: "mode"}, ErrUnknownReducer},
		{Spec{GroupBy: "Nope", Reducer: Count}, ErrUnknownColumn},
		{Spec{GroupBy: "Program", Metric: "Nope", Reducer: Sum}, ErrUnknownColumn},
		{Spec{GroupBy: "Score", Metric: "Program", Reducer: Mean}, ErrNotNumeric},
	}
	for _, c := range cases {
		if _, err := Aggregate(ds, c.spec); !errors.Is(err, c.want) {
			t.Errorf("%+v: err = %v, want %v", c.spec, err, c.want)
		}
	}
	if r, err := ParseReducer(" Median "); err != nil || r != Median {
		t.Fatalf("ParseReducer = %v, %v", r, err)
	}
}

func TestTopNAndDataset(t *testing.T) {
	ds := groups([][]dataset.Value{
		{dataset.Text("A"), dataset.Number(1)},
		{dataset.Text("B"), dataset.Number(3)},
		{dataset.Text("C"), dataset.Missing()},
		{dataset.Text("D"), dataset.Number(2)},
		{dataset.Missing(), dataset.Number(5)},
	})
	tbl, _ := Aggregate(ds, Spec{GroupBy: "Program", Metric: "Score", Reducer: Mean})
	top := tbl.TopN(3, true)
	want := []string{MissingBucket, "B", "D"}
	for i, r := range top.Rows {
		if r.Label != want[i] {
			t.Fatalf("top[%d] = %s, want %s", i, r.Label, want[i])
		}
	}
	if all := tbl.TopN(0, true); all.Rows[len(all.Rows)-1].Label != "C" {
		t.Fatalf("missing value should sort last, got %s", all.Rows[len(all.Rows)-1].Label)
	}
	if tbl.Rows[0].Label != "A" {
		t.Fatalf("TopN mutated the source table")
	}

	out := tbl.Dataset()
	if got := out.Names(); got[0] != "Program" || got[1] != "Score" {
		t.Fatalf("columns = %v", got)
	}
	if col, _ := out.Column("Program"); col.Kind != dataset.Categorical {
		t.Fatalf("group column kind = %s", col.Kind)
	}
	last := out.Rows[out.Len()-1]
	if last[0].String() != MissingBucket || last[1].String() != "5" {
		t.Fatalf("last row = %v", last)
	}

	b, err := json.Marshal(tbl.Rows[2])
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `{"group":"C","value":null,"size":1}` {
		t.Fatalf("json = %s", b)
	}
}

func TestValueCounts(t *testing.T) {
	ds := groups([][]dataset.Value{
		{dataset.Text("x"), dataset.Number(1)},
		{dataset.Text("y"), dataset.Number(1)},
		{dataset.Text("x"), dataset.Missing()},
	})
	vc, err := ValueCounts(ds, "Program")
	if err != nil {
		t.Fatalf("ValueCounts: %v", err)
	}
	if r, _ := vc.Lookup("x"); r.Size != 2 {
		t.Fatalf("x size = %d", r.Size)
	}
	if vc.Dataset().Names()[1] != CountColumn {
		t.Fatalf("count column = %v", vc.Dataset().Names())
	}
}
