package coerce

import (
	"testing"

	"github.com/KaramelBytes/datasift-cli/internal/dataset"
)

func TestParseNumberLocales(t *testing.T) {
	cases := []struct {
		in   string
		loc  Locale
		want float64
		ok   bool
	}{
		{"3.9", Locale{}, 3.9, true},
		{"  12.5% ", Locale{}, 12.5, true},
		{"1.000,5", Locale{}, 1000.5, true},
		{"1,000.5", Locale{}, 1000.5, true},
		{"1,000", Locale{}, 1000, true},
		{"0,5", Locale{}, 0.5, true},
		{"3,5", Locale{DecimalSeparator: ','}, 3.5, true},
		{"1 200", Locale{}, 1200, true},
		{"abc", Locale{}, 0, false},
		{"NaN", Locale{}, 0, false},
		{"Inf", Locale{}, 0, false},
		{"", Locale{}, 0, false},
	}
	for _, c := range cases {
		got, ok := ParseNumber(c.in, c.loc)
		if ok != c.ok || (ok && got != c.want) {
			t.Errorf("ParseNumber(%q) = %v,%v want %v,%v", c.in, got, ok, c.want, c.ok)
		}
	}
}

func TestParseTime(t *testing.T) {
	for _, s := range []string{"2024-08-10", "2024/08/10", "2024-08-10 13:45:00", "2024-08-10T13:45:00Z"} {
		if _, ok := ParseTime(s); !ok {
			t.Errorf("ParseTime(%q) failed", s)
		}
	}
	if _, ok := ParseTime("A1"); ok {
		t.Errorf("ParseTime should reject non-dates")
	}
}

func TestIsNA(t *testing.T) {
	for _, s := range []string{"", " NA ", "N/A", "null", "NaN"} {
		if !IsNA(s) {
			t.Errorf("IsNA(%q) = false", s)
		}
	}
	if IsNA("0") {
		t.Errorf("IsNA(0) should be false")
	}
}

func raw(vals ...string) []dataset.Value {
	out := make([]dataset.Value, len(vals))
	for i, v := range vals {
		if v == "" {
			out[i] = dataset.Missing()
			continue
		}
		out[i] = dataset.Text(v)
	}
	return out
}

func TestValuesNumericGapsBecomeMissing(t *testing.T) {
	out, gaps := Values(raw("3.9", "oops", "", "2"), dataset.Numeric, Locale{})
	if gaps != 1 {
		t.Fatalf("gaps = %d, want 1", gaps)
	}
	if f, _ := out[0].Float(); f != 3.9 {
		t.Fatalf("out[0] = %v", out[0])
	}
	if !out[1].IsMissing() || !out[2].IsMissing() {
		t.Fatalf("failed and empty cells should be missing: %v", out)
	}
}

func TestCoercionIdempotent(t *testing.T) {
	ds := dataset.New("t", []dataset.Column{{Name: "n"}, {Name: "d"}}, [][]dataset.Value{
		raw("1.5", "2024-01-02"),
		raw("x", "not a date"),
		raw("", "2024-03-04"),
	})
	kinds := map[string]dataset.Kind{"n": dataset.Numeric, "d": dataset.Temporal}
	once, gaps := Apply(ds, kinds, Locale{})
	if gaps["n"] != 1 || gaps["d"] != 1 {
		t.Fatalf("unexpected gaps: %v", gaps)
	}
	twice, gaps2 := Apply(once, kinds, Locale{})
	if gaps2.Total() != 0 {
		t.Fatalf("second coercion introduced gaps: %v", gaps2)
	}
	for r := range once.Rows {
		for c := range once.Rows[r] {
			a, b := once.Rows[r][c], twice.Rows[r][c]
			if a.IsMissing() != b.IsMissing() || (!a.IsMissing() && !a.Equal(b)) {
				t.Fatalf("row %d col %d changed: %v -> %v", r, c, a, b)
			}
		}
	}
	if col, _ := twice.Column("d"); col.Kind != dataset.Temporal {
		t.Fatalf("kind not recorded: %v", col)
	}
	if ds.Rows[0][0].IsNumber() {
		t.Fatalf("source dataset mutated")
	}
}

func TestInferKindThreshold(t *testing.T) {
	// 3 of 5 dates is exactly 60%.
	if k := InferKind(raw("2024-01-01", "2024-01-02", "2024-01-03", "x", "y"), Locale{}); k != dataset.Temporal {
		t.Fatalf("expected temporal at 60%%, got %s", k)
	}
	if k := InferKind(raw("2024-01-01", "2024-01-02", "x", "y", "z"), Locale{}); k != dataset.Categorical {
		t.Fatalf("expected categorical below 60%%, got %s", k)
	}
	if k := InferKind(raw("1", "2", "", "3.5"), Locale{}); k != dataset.Numeric {
		t.Fatalf("expected numeric, got %s", k)
	}
	if k := InferKind(raw("", ""), Locale{}); k != dataset.Categorical {
		t.Fatalf("all-missing should be categorical, got %s", k)
	}
}

func TestInferKindSamplesFirstFifty(t *testing.T) {
	vals := make([]string, 0, 120)
	for i := 0; i < 50; i++ {
		vals = append(vals, "2024-05-06")
	}
	for i := 0; i < 70; i++ {
		vals = append(vals, "text")
	}
	if k := InferKind(raw(vals...), Locale{}); k != dataset.Temporal {
		t.Fatalf("only the first 50 values should be sampled, got %s", k)
	}
}
