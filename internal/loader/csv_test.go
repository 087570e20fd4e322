package loader_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/KaramelBytes/datasift-cli/internal/loader"
)

func TestLoadFileCSV(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "students.csv")
	content := "\xEF\xBB\xBFFirstName,LastName,GPA\n" +
		"Ada, Lovelace ,3.9\n" +
		"Alan,Turing,\n" +
		"\"Hopper, Grace\",,3.5\n"
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	tbl, err := loader.LoadFile(p, loader.Options{})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if tbl.Name != "students.csv" || tbl.Total != 4 || len(tbl.Records) != 4 {
		t.Fatalf("table = %+v", tbl)
	}
	if tbl.Records[0][0] != "FirstName" {
		t.Fatalf("BOM not stripped: %q", tbl.Records[0][0])
	}
	if tbl.Records[1][1] != "Lovelace" || tbl.Records[2][2] != "" || tbl.Records[3][0] != "Hopper, Grace" {
		t.Fatalf("records = %#v", tbl.Records)
	}
}

func TestLoadCSVDelimiters(t *testing.T) {
	semi := []byte("a;b;c\n1;2,5;3\n")
	tbl, err := loader.Load("x.csv", semi, loader.Options{})
	if err != nil {
		t.Fatalf("load semicolon: %v", err)
	}
	if tbl.Width() != 3 || tbl.Records[1][1] != "2,5" {
		t.Fatalf("semicolon records = %#v", tbl.Records)
	}
	tsv := []byte("a\tb\n1\t2\n")
	tbl, err = loader.Load("x.tsv", tsv, loader.Options{})
	if err != nil {
		t.Fatalf("load tsv: %v", err)
	}
	if tbl.Width() != 2 {
		t.Fatalf("tsv records = %#v", tbl.Records)
	}
	forced, err := loader.Load("x.txt", []byte("a|b\n1|2\n"), loader.Options{Delimiter: '|'})
	if err != nil || forced.Width() != 2 {
		t.Fatalf("forced delimiter = %#v, %v", forced, err)
	}
}

func TestLoadCSVMaxRows(t *testing.T) {
	content := []byte("h\n1\n2\n3\n4\n")
	tbl, err := loader.Load("x.csv", content, loader.Options{MaxRows: 2})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(tbl.Records) != 3 || tbl.Total != 5 || !tbl.Truncated() {
		t.Fatalf("records=%d total=%d", len(tbl.Records), tbl.Total)
	}
}
