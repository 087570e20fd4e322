package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/KaramelBytes/datasift-cli/internal/analysis"
	"github.com/KaramelBytes/datasift-cli/internal/coerce"
	cfgpkg "github.com/KaramelBytes/datasift-cli/internal/config"
	"github.com/KaramelBytes/datasift-cli/internal/dataset"
	"github.com/KaramelBytes/datasift-cli/internal/filter"
	"github.com/KaramelBytes/datasift-cli/internal/pipeline"
	"github.com/KaramelBytes/datasift-cli/internal/preset"
)

// sourceFlags selects and parses a source file. Unset flags fall back to config.
type sourceFlags struct {
	profile    string
	header     string
	delimiter  string
	decimal    string
	thousands  string
	sheetName  string
	sheetIndex int
	maxRows    int
}

func (f *sourceFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.profile, "profile", "", "dataset profile: students|generic (default from config)")
	fs.StringVar(&f.header, "has-header", "", "header row: auto|yes|no (default from config)")
	fs.StringVar(&f.delimiter, "delimiter", "", "CSV delimiter: ',' | ';' | 'tab' (auto-detect if omitted)")
	fs.StringVar(&f.decimal, "decimal", "", "decimal separator for numbers: '.'|'comma' (auto-detect if omitted)")
	fs.StringVar(&f.thousands, "thousands", "", "thousands separator for numbers: ','|'.'|'space' (auto-detect if omitted)")
	fs.StringVar(&f.sheetName, "sheet-name", "", "XLSX: sheet name to load")
	fs.IntVar(&f.sheetIndex, "sheet-index", 0, "XLSX: 1-based sheet index (used if --sheet-name not provided)")
	fs.IntVar(&f.maxRows, "max-rows", 0, "maximum data rows to process (0 = unlimited)")
}

func (f *sourceFlags) options(fs *pflag.FlagSet) (cfgpkg.Global, error) {
	c, err := config()
	if err != nil {
		return cfgpkg.Global{}, err
	}
	g := *c
	if fs.Changed("profile") {
		g.Profile = f.profile
	}
	if fs.Changed("has-header") {
		g.HasHeader = f.header
	}
	if fs.Changed("delimiter") {
		g.Delimiter = f.delimiter
	}
	if fs.Changed("sheet-name") {
		g.SheetName = f.sheetName
	}
	if fs.Changed("sheet-index") {
		g.SheetIndex = f.sheetIndex
	}
	if fs.Changed("max-rows") {
		g.MaxRows = f.maxRows
	}
	switch strings.ToLower(strings.TrimSpace(f.decimal)) {
	case ",", "comma":
		g.DecimalSeparator = ","
	case ".", "dot":
		g.DecimalSeparator = "."
	case "":
	default:
		return g, fmt.Errorf("unsupported --decimal: %s (use '.'|'comma')", f.decimal)
	}
	switch strings.ToLower(strings.TrimSpace(f.thousands)) {
	case ",":
		g.ThousandsSeparator = ","
	case ".":
		g.ThousandsSeparator = "."
	case "space", " ":
		g.ThousandsSeparator = " "
	case "":
	default:
		return g, fmt.Errorf("unsupported --thousands: %s (use ','|'.'|'space')", f.thousands)
	}
	if err := g.Validate(); err != nil {
		return g, err
	}
	return g, nil
}

// open loads and prepares path, printing preparation warnings to stderr.
func (f *sourceFlags) open(cmd *cobra.Command, path string) (*pipeline.Session, error) {
	g, err := f.options(cmd.Flags())
	if err != nil {
		return nil, err
	}
	sess, err := prepareFile(g, path)
	if err != nil {
		return nil, err
	}
	for _, w := range sess.Prepared.Warnings {
		fmt.Fprintf(cmd.ErrOrStderr(), "⚠ Warning: %s\n", w)
	}
	return sess, nil
}

func prepareFile(g cfgpkg.Global, path string) (*pipeline.Session, error) {
	popt, err := g.PipelineOptions("")
	if err != nil {
		return nil, err
	}
	popt.Logger = logger
	prep, err := pipeline.LoadAndPrepare(path, g.LoaderOptions(), popt)
	if err != nil {
		return nil, err
	}
	return pipeline.NewSession(prep), nil
}

// filterFlags builds filter parameters from a saved preset plus explicit flags.
type filterFlags struct {
	where  []string
	ranges []string
	dates  []string
	search string
	preset string
}

func (f *filterFlags) register(fs *pflag.FlagSet) {
	fs.StringArrayVar(&f.where, "where", nil, "keep rows whose column is one of the values: Column=v1,v2 (repeatable)")
	fs.StringArrayVar(&f.ranges, "range", nil, "numeric range: Column=low..high; an empty side uses the column bound (repeatable)")
	fs.StringArrayVar(&f.dates, "date", nil, "date range: Column=from..to; an empty side is open (repeatable)")
	fs.StringVar(&f.search, "search", "", "case-insensitive text that must appear in some cell")
	fs.StringVar(&f.preset, "preset", "", "start from a saved preset; explicit flags override its columns")
}

// params returns the preset (if any) and the merged parameters.
func (f *filterFlags) params(ds *dataset.Dataset) (filter.Params, *preset.Preset, error) {
	var (
		base filter.Params
		p    *preset.Preset
	)
	if f.preset != "" {
		c, err := config()
		if err != nil {
			return base, nil, err
		}
		if p, err = preset.Load(c.PresetsDir, f.preset); err != nil {
			return base, nil, err
		}
		base = p.Params
	}
	own, err := parseFilterArgs(ds, f.where, f.ranges, f.dates)
	if err != nil {
		return base, nil, err
	}
	own.Search = f.search
	return base.Merge(own), p, nil
}

func parseFilterArgs(ds *dataset.Dataset, where, ranges, dates []string) (filter.Params, error) {
	var p filter.Params
	for _, arg := range where {
		col, vals, err := splitArg("--where", arg)
		if err != nil {
			return p, err
		}
		if p.Categories == nil {
			p.Categories = map[string][]string{}
		}
		for _, v := range strings.Split(vals, ",") {
			p.Categories[col] = append(p.Categories[col], strings.TrimSpace(v))
		}
	}
	for _, arg := range ranges {
		col, spec, err := splitArg("--range", arg)
		if err != nil {
			return p, err
		}
		lo, hi, ok := strings.Cut(spec, "..")
		if !ok {
			return p, fmt.Errorf("invalid --range %q (want Column=low..high)", arg)
		}
		ref, known := columnBounds(ds, col)
		b := ref
		if lo = strings.TrimSpace(lo); lo != "" {
			if b.Low, err = strconv.ParseFloat(lo, 64); err != nil {
				return p, fmt.Errorf("invalid --range low %q: %w", lo, err)
			}
		} else if !known {
			return p, fmt.Errorf("--range %s: column has no numeric values to bound the empty side", col)
		}
		if hi = strings.TrimSpace(hi); hi != "" {
			if b.High, err = strconv.ParseFloat(hi, 64); err != nil {
				return p, fmt.Errorf("invalid --range high %q: %w", hi, err)
			}
		} else if !known {
			return p, fmt.Errorf("--range %s: column has no numeric values to bound the empty side", col)
		}
		if p.Ranges == nil {
			p.Ranges = map[string]filter.Bounds{}
		}
		p.Ranges[col] = b
	}
	for _, arg := range dates {
		col, spec, err := splitArg("--date", arg)
		if err != nil {
			return p, err
		}
		from, to, ok := strings.Cut(spec, "..")
		if !ok {
			return p, fmt.Errorf("invalid --date %q (want Column=from..to)", arg)
		}
		var b filter.DateBounds
		if from = strings.TrimSpace(from); from != "" {
			if b.From, ok = coerce.ParseTime(from); !ok {
				return p, fmt.Errorf("invalid --date from %q", from)
			}
		}
		if to = strings.TrimSpace(to); to != "" {
			if b.To, ok = coerce.ParseTime(to); !ok {
				return p, fmt.Errorf("invalid --date to %q", to)
			}
		}
		if p.Dates == nil {
			p.Dates = map[string]filter.DateBounds{}
		}
		p.Dates[col] = b
	}
	return p, nil
}

func splitArg(flag, arg string) (string, string, error) {
	col, rest, ok := strings.Cut(arg, "=")
	col = strings.TrimSpace(col)
	if !ok || col == "" {
		return "", "", fmt.Errorf("invalid %s %q (want Column=...)", flag, arg)
	}
	return col, rest, nil
}

func columnBounds(ds *dataset.Dataset, col string) (filter.Bounds, bool) {
	if ds == nil || !ds.Has(col) {
		return filter.Bounds{}, false
	}
	vals := ds.Floats(col)
	if len(vals) == 0 {
		return filter.Bounds{}, false
	}
	sort.Float64s(vals)
	return filter.Bounds{Low: vals[0], High: vals[len(vals)-1]}, true
}

// printKPIs writes "Label: value" lines.
func printKPIs(w io.Writer, kpis []analysis.KPI) {
	for _, k := range kpis {
		fmt.Fprintf(w, "%s: %s\n", k.Label, k.Value)
	}
}

// printTable renders up to limit rows of ds; limit <= 0 prints every row.
func printTable(w io.Writer, ds *dataset.Dataset, limit int) {
	rows := ds
	if limit > 0 {
		rows = ds.Head(limit)
	}
	table := tablewriter.NewWriter(w)
	table.SetHeader(ds.Names())
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.AppendBulk(rows.Strings())
	table.Render()
	if rows.Len() < ds.Len() {
		fmt.Fprintf(w, "(%d of %d rows shown)\n", rows.Len(), ds.Len())
	}
}

// expandInputs resolves globs to a sorted, de-duplicated file list.
func expandInputs(args []string) ([]string, error) {
	var files []string
	seen := map[string]struct{}{}
	for _, arg := range args {
		matches, _ := filepath.Glob(arg)
		if len(matches) == 0 {
			// treat as literal path if exists
			if _, err := os.Stat(arg); err == nil {
				matches = []string{arg}
			}
		}
		for _, m := range matches {
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			files = append(files, m)
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no input files matched")
	}
	sort.Strings(files)
	return files, nil
}
