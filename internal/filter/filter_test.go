package filter

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/KaramelBytes/datasift-cli/internal/dataset"
)

func date(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func sample() *dataset.Dataset {
	cols := []dataset.Column{
		{Name: "Name", Kind: dataset.Categorical},
		{Name: "Program", Kind: dataset.Categorical},
		{Name: "GPA", Kind: dataset.Numeric},
		{Name: "Enrolled", Kind: dataset.Temporal},
	}
	rows := [][]dataset.Value{
		{dataset.Text("Ada"), dataset.Text("Math"), dataset.Number(3.9), dataset.Time(date("2021-09-01"))},
		{dataset.Text("Alan"), dataset.Text("CS"), dataset.Number(2.4), dataset.Time(date("2020-09-01"))},
		{dataset.Text("Grace"), dataset.Text("CS"), dataset.Missing(), dataset.Time(date("2022-01-15"))},
		{dataset.Text("Edsger"), dataset.Missing(), dataset.Number(3.1), dataset.Missing()},
		{dataset.Text("Barbara"), dataset.Text("Physics"), dataset.Number(1.8), dataset.Time(date("2019-09-01"))},
	}
	return dataset.New("students", cols, rows)
}

func names(t *testing.T, ds *dataset.Dataset) []string {
	t.Helper()
	var out []string
	i, ok := ds.Index("Name")
	if !ok {
		t.Fatalf("Name column missing")
	}
	for _, r := range ds.Rows {
		out = append(out, r[i].String())
	}
	return out
}

func TestInSelection(t *testing.T) {
	ds := sample()
	e := NewEngine(ds)
	out, err := e.Apply(ds, In{Column: "Program", Values: []string{"CS"}})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if got, want := names(t, out), []string{"Alan", "Grace"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestEmptySelectionEqualsAllSelected(t *testing.T) {
	ds := sample()
	e := NewEngine(ds)
	none, err := e.Apply(ds, In{Column: "Program"})
	if err != nil {
		t.Fatalf("Apply empty: %v", err)
	}
	all, err := e.Apply(ds, In{Column: "Program", Values: e.Options("Program")})
	if err != nil {
		t.Fatalf("Apply all: %v", err)
	}
	if none.Len() != ds.Len() || all.Len() != ds.Len() {
		t.Fatalf("empty=%d all=%d, want %d", none.Len(), all.Len(), ds.Len())
	}
}

func TestRangeSpanningKeepsMissing(t *testing.T) {
	ds := sample()
	e := NewEngine(ds)
	full, _ := e.NumericBounds("GPA")
	if full.Low != 1.8 || full.High != 3.9 {
		t.Fatalf("bounds = %+v", full)
	}
	out, err := e.Apply(ds, Range{Column: "GPA", Low: full.Low, High: full.High})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if out.Len() != ds.Len() {
		t.Fatalf("spanning range dropped rows: %v", names(t, out))
	}
	out, err = e.Apply(ds, Range{Column: "GPA", Low: 2.0, High: 4.0})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if got, want := names(t, out), []string{"Ada", "Alan", "Edsger"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("narrowed range: got %v, want %v", got, want)
	}
}

func TestDateRange(t *testing.T) {
	ds := sample()
	e := NewEngine(ds)
	out, err := e.Apply(ds, DateRange{Column: "Enrolled", From: date("2020-09-01"), To: date("2021-09-01")})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if got, want := names(t, out), []string{"Ada", "Alan"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	// open bounds span everything, so the missing date survives
	out, err = e.Apply(ds, DateRange{Column: "Enrolled"})
	if err != nil {
		t.Fatalf("Apply open: %v", err)
	}
	if out.Len() != ds.Len() {
		t.Fatalf("open date range dropped rows")
	}
}

func TestSearchCaseInsensitive(t *testing.T) {
	ds := sample()
	e := NewEngine(ds)
	out, err := e.Apply(ds, Contains{Term: "  gRaCe "})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if got := names(t, out); !reflect.DeepEqual(got, []string{"Grace"}) {
		t.Fatalf("got %v", got)
	}
	// numbers match by their string form; missing cells never match
	out, _ = e.Apply(ds, Contains{Term: "3.1"})
	if got := names(t, out); !reflect.DeepEqual(got, []string{"Edsger"}) {
		t.Fatalf("numeric search got %v", got)
	}
	out, _ = e.Apply(ds, Contains{Term: ""})
	if out.Len() != ds.Len() {
		t.Fatalf("empty term should keep all rows")
	}
}

func TestFilterCommutativeAndIdempotent(t *testing.T) {
	ds := sample()
	e := NewEngine(ds)
	a := In{Column: "Program", Values: []string{"CS", "Math"}}
	b := Range{Column: "GPA", Low: 1.8, High: 3.9}
	c := Contains{Term: "a"}

	ab, err := e.Apply(ds, a, b, c)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	step, _ := e.Apply(ds, c)
	step, _ = e.Apply(step, b)
	ba, _ := e.Apply(step, a)
	if !reflect.DeepEqual(names(t, ab), names(t, ba)) {
		t.Fatalf("order changed result: %v vs %v", names(t, ab), names(t, ba))
	}
	again, _ := e.Apply(ab, a, b, c)
	if !reflect.DeepEqual(names(t, ab), names(t, again)) {
		t.Fatalf("not idempotent: %v vs %v", names(t, ab), names(t, again))
	}
}

func TestApplyPreservesOrderAndInput(t *testing.T) {
	ds := sample()
	before := ds.Strings()
	out, err := Apply(ds, Params{Search: "a"})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if got, want := names(t, out), []string{"Ada", "Alan", "Grace", "Barbara"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	if !reflect.DeepEqual(before, ds.Strings()) {
		t.Fatalf("input mutated")
	}
}

func TestFilterErrors(t *testing.T) {
	ds := sample()
	e := NewEngine(ds)
	cases := []struct {
		name string
		pred Predicate
		want error
	}{
		{"unknown column", In{Column: "Nope", Values: []string{"x"}}, ErrUnknownColumn},
		{"range on text", Range{Column: "Program", Low: 0, High: 1}, ErrKindMismatch},
		{"dates on number", DateRange{Column: "GPA"}, ErrKindMismatch},
		{"inverted range", Range{Column: "GPA", Low: 3, High: 2}, ErrInvalidRange},
		{"inverted dates", DateRange{Column: "Enrolled", From: date("2022-01-01"), To: date("2021-01-01")}, ErrInvalidRange},
	}
	for _, c := range cases {
		if _, err := e.Apply(ds, c.pred); !errors.Is(err, c.want) {
			t.Errorf("%s: err = %v, want %v", c.name, err, c.want)
		}
	}
	other := ds.Project([]string{"Name", "GPA"})
	if _, err := e.Apply(other); !errors.Is(err, ErrSchemaChanged) {
		t.Fatalf("projected view: err = %v", err)
	}
}

func TestDefaultsKeepEveryRow(t *testing.T) {
	ds := sample()
	e := NewEngine(ds)
	p := e.Defaults([]string{"Program", "GPA", "Enrolled", "Missing"})
	if len(p.Categories) != 1 || len(p.Ranges) != 1 || len(p.Dates) != 1 {
		t.Fatalf("defaults = %+v", p)
	}
	out, err := e.ApplyParams(ds, p)
	if err != nil {
		t.Fatalf("ApplyParams: %v", err)
	}
	if out.Len() != ds.Len() {
		t.Fatalf("defaults dropped rows: %d of %d", out.Len(), ds.Len())
	}
	if ctl := e.Controls([]string{"Program"}); len(ctl) != 1 || !reflect.DeepEqual(ctl[0].Options, []string{"CS", "Math", "Physics"}) {
		t.Fatalf("controls = %+v", ctl)
	}
}

func TestParamsMergeAndBounds(t *testing.T) {
	base := Params{Categories: map[string][]string{"Program": {"CS"}}, Search: "a"}
	over := Params{Categories: map[string][]string{"Program": {"Math"}}, Ranges: map[string]Bounds{"GPA": {Low: 2, High: 3}}}
	m := base.Merge(over)
	if m.Search != "a" || m.Categories["Program"][0] != "Math" || m.Ranges["GPA"].High != 3 {
		t.Fatalf("merge = %+v", m)
	}
	if got := len(m.Predicates()); got != 3 {
		t.Fatalf("predicates = %d", got)
	}
	if !(Params{}).IsZero() || m.IsZero() {
		t.Fatalf("IsZero wrong")
	}
	if b := ClampBounds(Bounds{Low: -1, High: 4.3}, 0, 4); b.Low != 0 || b.High != 4 {
		t.Fatalf("clamp = %+v", b)
	}
	if b := IntegerBounds(Bounds{Low: 17.5, High: 24.2}); b.Low != 17 || b.High != 25 {
		t.Fatalf("integer = %+v", b)
	}
}
