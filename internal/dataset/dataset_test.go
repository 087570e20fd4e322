package dataset

import (
	"math"
	"testing"
	"time"
)

func sample() *Dataset {
	return New("t", []Column{{Name: "g", Kind: Categorical}, {Name: "x", Kind: Numeric}}, [][]Value{
		{Text("b"), Number(2)},
		{Text("a"), Number(10)},
		{Missing(), Missing()},
		{Text("b")},
	})
}

func TestMissingNeverEqual(t *testing.T) {
	if Missing().Equal(Missing()) {
		t.Fatalf("missing must not equal itself")
	}
	if Number(1).Equal(Text("1")) {
		t.Fatalf("number and text must not compare equal")
	}
	if !Number(1.5).Equal(Number(1.5)) {
		t.Fatalf("equal numbers should be equal")
	}
	if !Number(math.NaN()).IsMissing() {
		t.Fatalf("NaN should map to missing")
	}
	if !Time(time.Time{}).IsMissing() {
		t.Fatalf("zero time should map to missing")
	}
}

func TestNewPadsShortRows(t *testing.T) {
	d := sample()
	if len(d.Rows[3]) != 2 || !d.Rows[3][1].IsMissing() {
		t.Fatalf("short row should be padded with missing, got %v", d.Rows[3])
	}
}

func TestDistinctSortedWithoutMissing(t *testing.T) {
	d := sample()
	got := d.Distinct("g")
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("unexpected distinct values: %v", got)
	}
	nums := New("n", []Column{{Name: "y", Kind: Numeric}}, [][]Value{{Number(10)}, {Number(9)}, {Number(10)}})
	if v := nums.Distinct("y"); len(v) != 2 || v[0] != "9" || v[1] != "10" {
		t.Fatalf("numeric distinct should sort numerically: %v", v)
	}
}

func TestWithColumnDoesNotMutateSource(t *testing.T) {
	d := sample()
	vals := []Value{Text("p"), Text("q"), Text("r"), Text("s")}
	out, err := d.WithColumn(Column{Name: "z", Kind: Categorical}, vals)
	if err != nil {
		t.Fatalf("WithColumn: %v", err)
	}
	if d.Has("z") || len(d.Rows[0]) != 2 {
		t.Fatalf("source dataset was modified")
	}
	if i, ok := out.Index("z"); !ok || out.Rows[2][i].String() != "r" {
		t.Fatalf("new column not set correctly")
	}
	if _, err := d.WithColumn(Column{Name: "z"}, vals[:1]); err == nil {
		t.Fatalf("expected length mismatch error")
	}
}

func TestRenameProjectSlice(t *testing.T) {
	d := sample().Rename(map[string]string{"x": "Score"})
	if !d.Has("Score") || d.Has("x") {
		t.Fatalf("rename failed: %v", d.Names())
	}
	p := d.Project([]string{"Score", "nope", "g"})
	if names := p.Names(); len(names) != 2 || names[0] != "Score" || names[1] != "g" {
		t.Fatalf("project order wrong: %v", names)
	}
	s := d.Slice(1, 2)
	if s.Len() != 2 || s.Rows[0][0].String() != "a" {
		t.Fatalf("slice wrong: %v", s.Strings())
	}
	if d.Slice(10, 5).Len() != 0 {
		t.Fatalf("slice past end should be empty")
	}
}

func TestCompareMissingLast(t *testing.T) {
	if Compare(Missing(), Number(1)) <= 0 {
		t.Fatalf("missing should sort after values")
	}
	if Compare(Number(2), Number(10)) >= 0 {
		t.Fatalf("numbers should compare numerically")
	}
}
