// Package pipeline turns a raw loaded table into a prepared dataset and recomputes the
// filtered view, KPIs and chart series for one interaction.
package pipeline

import (
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/KaramelBytes/datasift-cli/internal/coerce"
	"github.com/KaramelBytes/datasift-cli/internal/dataset"
	"github.com/KaramelBytes/datasift-cli/internal/derive"
	"github.com/KaramelBytes/datasift-cli/internal/loader"
	"github.com/KaramelBytes/datasift-cli/internal/schema"
)

// HeaderMode controls first-row handling.
type HeaderMode string

const (
	HeaderAuto HeaderMode = "auto"
	HeaderYes  HeaderMode = "yes"
	HeaderNo   HeaderMode = "no"
)

// ParseHeaderMode accepts auto|yes|no (and true/false); empty means auto.
func ParseHeaderMode(s string) (HeaderMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return HeaderAuto, nil
	case "yes", "true", "1":
		return HeaderYes, nil
	case "no", "false", "0":
		return HeaderNo, nil
	}
	return "", fmt.Errorf("invalid header mode %q (want auto, yes or no)", s)
}

// Options configures Prepare.
type Options struct {
	Profile Profile
	Locale  coerce.Locale
	Header  HeaderMode
	Logger  *slog.Logger
}

// Prepared is a dataset ready for filtering, plus what happened on the way.
type Prepared struct {
	Dataset    *dataset.Dataset
	Profile    Profile
	Binding    schema.Binding
	Headerless bool
	Gaps       coerce.Gaps
	// Skipped lists derived columns whose sources were unbound.
	Skipped  []string
	Source   string
	Sheet    string
	Total    int
	Warnings []string
}

// Prepare resolves headers, renames bound columns to their canonical names, coerces
// declared and inferred kinds, and appends derived columns.
func Prepare(raw *loader.RawTable, opt Options) (*Prepared, error) {
	log := opt.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	log = log.With(slog.String("component", "pipeline"), slog.String("source", raw.Name))
	prof := opt.Profile
	if prof.Name == "" {
		prof = Generic()
	}

	p := &Prepared{Profile: prof, Source: raw.Name, Sheet: raw.Sheet, Total: raw.Total}
	width := raw.Width()
	var first []string
	if len(raw.Records) > 0 {
		first = pad(raw.Records[0], width)
	}
	switch opt.Header {
	case HeaderNo:
		p.Headerless = true
	case HeaderYes:
	default:
		p.Headerless = first != nil && schema.LooksHeaderless(first, prof.Keywords)
	}

	var headers []string
	body := raw.Records
	if p.Headerless {
		headers = schema.PositionalHeaders(width, schema.Names(prof.Fields))
		log.Debug("first row treated as data", slog.Int("columns", width))
	} else {
		headers = schema.SyntheticHeaders(first)
		if len(body) > 0 {
			body = body[1:]
		}
	}

	cols := make([]dataset.Column, len(headers))
	for i, h := range headers {
		cols[i] = dataset.Column{Name: h, Kind: dataset.Categorical}
	}
	rows := make([][]dataset.Value, len(body))
	for i, rec := range body {
		row := make([]dataset.Value, len(headers))
		for j := range row {
			if j < len(rec) && !coerce.IsNA(rec[j]) {
				row[j] = dataset.Text(rec[j])
			}
		}
		rows[i] = row
	}
	ds := dataset.New(raw.Name, cols, rows)

	declared := map[string]dataset.Kind{}
	if len(prof.Fields) > 0 {
		b, err := schema.Resolve(headers, prof.Fields)
		if err != nil {
			return nil, err
		}
		p.Binding = b
		ds = ds.Rename(b.Renames())
		for _, f := range prof.Fields {
			if b.Bound(f.Name) && f.Kind != "" {
				declared[f.Name] = f.Kind
			}
		}
		log.Debug("schema resolved", slog.Int("bound", len(b)), slog.Int("fields", len(prof.Fields)))
	}

	kinds := coerce.Infer(ds, declared, opt.Locale)
	ds, p.Gaps = coerce.Apply(ds, kinds, opt.Locale)
	for _, col := range sortedGapColumns(p.Gaps) {
		n := p.Gaps[col]
		log.Debug("coercion gaps", slog.String("column", col), slog.Int("cells", n))
		p.Warnings = append(p.Warnings, fmt.Sprintf("%s: %d value(s) could not be parsed and were treated as missing", col, n))
	}

	ds, skipped, err := derive.Apply(ds, prof.Rules)
	if err != nil {
		return nil, fmt.Errorf("derive columns: %w", err)
	}
	p.Skipped = skipped
	for _, s := range skipped {
		p.Warnings = append(p.Warnings, fmt.Sprintf("%s not derived: source columns are unbound", s))
	}
	if raw.Truncated() {
		p.Warnings = append(p.Warnings, fmt.Sprintf("processed only the first %d of %d rows (max_rows)", ds.Len(), dataRows(raw.Total, p.Headerless)))
	}
	p.Dataset = ds
	log.Debug("dataset prepared", slog.Int("rows", ds.Len()), slog.Int("columns", len(ds.Columns)))
	return p, nil
}

// LoadAndPrepare loads path and prepares it.
func LoadAndPrepare(path string, lopt loader.Options, opt Options) (*Prepared, error) {
	raw, err := loader.LoadFile(path, lopt)
	if err != nil {
		return nil, err
	}
	return Prepare(raw, opt)
}

func pad(rec []string, n int) []string {
	out := make([]string, n)
	copy(out, rec)
	return out
}

func dataRows(total int, headerless bool) int {
	if headerless || total == 0 {
		return total
	}
	return total - 1
}

func sortedGapColumns(g coerce.Gaps) []string {
	out := make([]string, 0, len(g))
	for k := range g {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
