package analysis

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/KaramelBytes/datasift-cli/internal/dataset"
)

const (
	maxGroupMetrics = 6
	maxGroupPairs   = 8
	maxCorrPairs    = 10
	maxCellWidth    = 80
)

// Markdown renders the report as plain sections for terminals or standalone docs.
func (r *Report) Markdown() string {
	var b strings.Builder
	r.writeHeader(&b)
	if len(r.KPIs) > 0 {
		fmt.Fprint(&b, "\n[KPIS]\n")
		for _, k := range r.KPIs {
			fmt.Fprintf(&b, "- %s: %s\n", k.Label, k.Value)
		}
	}
	fmt.Fprint(&b, "\n[SCHEMA]\n")
	for _, c := range r.Cols {
		writeColumn(&b, c)
	}
	r.writeGroups(&b)
	if pairs := r.Corr.TopPairs(maxCorrPairs); len(pairs) > 0 {
		fmt.Fprint(&b, "\n[CORRELATIONS]\n")
		writePairs(&b, "- ", pairs)
	}
	if len(r.Samples) > 0 {
		fmt.Fprint(&b, "\n[HEAD AND SAMPLE ROWS]\n")
		writeTable(&b, r.Cols, r.Samples)
	}
	if len(r.Warnings) > 0 {
		fmt.Fprint(&b, "\n[NOTES]\n")
		for _, w := range r.Warnings {
			fmt.Fprintf(&b, "- %s\n", w)
		}
	}
	return b.String()
}

func (r *Report) writeHeader(w io.Writer) {
	fmt.Fprint(w, "[DATASET SUMMARY]\n")
	if r.Name != "" {
		fmt.Fprintf(w, "File: %s\n", r.Name)
	}
	if r.Processed > 0 && r.Processed < r.Rows {
		fmt.Fprintf(w, "Rows: %d of %d\n", r.Processed, r.Rows)
	} else {
		fmt.Fprintf(w, "Rows: %d\n", r.Rows)
	}
	fmt.Fprintf(w, "Columns: %d\n", len(r.Cols))
}

func writeColumn(w io.Writer, c ColumnSummary) {
	name := safeName(c.Name)
	if c.Unit != "" {
		name += " [" + c.Unit + "]"
	}
	var missPct float64
	if total := c.NonNull + c.Missing; total > 0 {
		missPct = 100 * float64(c.Missing) / float64(total)
	}
	fmt.Fprintf(w, "- %s: %s (non-null %d, missing %.1f%%)", name, c.Kind, c.NonNull, missPct)

	switch c.Kind {
	case dataset.Numeric:
		if c.NonNull > 0 {
			fmt.Fprintf(w, "; min %.4g, max %.4g, mean %.4g, std %.4g", c.Min, c.Max, c.Mean, c.Std)
		}
		if c.OutlierThreshold > 0 {
			fmt.Fprintf(w, "; outliers: %d above |z|>%.1f", c.OutliersCount, c.OutlierThreshold)
			if c.OutliersMaxAbsZ > 0 {
				fmt.Fprintf(w, " (max |z|≈%.2f)", c.OutliersMaxAbsZ)
			}
		}
	case dataset.Temporal:
		if c.Earliest != "" {
			fmt.Fprintf(w, "; %s to %s", c.Earliest, c.Latest)
		}
	default:
		if len(c.TopValues) == 0 {
			break
		}
		top := make([]string, len(c.TopValues))
		for i, kv := range c.TopValues {
			top[i] = fmt.Sprintf("%s(%d)", safeVal(kv.Value), kv.Count)
		}
		fmt.Fprintf(w, "; top: %s", strings.Join(top, ", "))
		if c.Unique > len(c.TopValues) {
			fmt.Fprintf(w, "; unique=%d", c.Unique)
		}
	}
	fmt.Fprintln(w)
}

func (r *Report) writeGroups(w io.Writer) {
	if len(r.Groups) == 0 {
		return
	}
	fmt.Fprint(w, "\n[GROUP-BY SUMMARY]\n")
	withPairs := 0
	for _, g := range r.Groups {
		fmt.Fprintf(w, "- %s (n=%d)\n", g.Key, g.Size)
		names := make([]string, 0, len(g.Metrics))
		for k := range g.Metrics {
			names = append(names, k)
		}
		sort.Strings(names)
		if len(names) > maxGroupMetrics {
			names = names[:maxGroupMetrics]
		}
		for _, k := range names {
			m := g.Metrics[k]
			fmt.Fprintf(w, "  • %s: mean %.4g (min %.4g, max %.4g)\n", k, m.Mean, m.Min, m.Max)
		}
		if len(g.CorrPairs) > 0 {
			withPairs++
		}
	}
	if withPairs == 0 {
		return
	}
	fmt.Fprint(w, "\n[PER-GROUP CORRELATIONS]\n")
	for _, g := range r.Groups {
		if len(g.CorrPairs) == 0 {
			continue
		}
		fmt.Fprintf(w, "- %s:\n", g.Key)
		pairs := g.CorrPairs
		if len(pairs) > maxGroupPairs {
			pairs = pairs[:maxGroupPairs]
		}
		writePairs(w, "  • ", pairs)
	}
}

func writePairs(w io.Writer, bullet string, pairs []PairCorr) {
	for _, p := range pairs {
		fmt.Fprintf(w, "%s%s ~ %s: r=%.3f\n", bullet, p.A, p.B, p.R)
	}
}

func writeTable(w io.Writer, cols []ColumnSummary, rows [][]string) {
	header := make([]string, len(cols))
	rule := make([]string, len(cols))
	for i, c := range cols {
		header[i] = safeName(c.Name)
		rule[i] = "---"
	}
	fmt.Fprintf(w, "| %s |\n| %s |\n", strings.Join(header, " | "), strings.Join(rule, " | "))
	cells := make([]string, len(cols))
	for _, row := range rows {
		for i := range cols {
			v := ""
			if i < len(row) {
				v = row[i]
			}
			if len(v) > maxCellWidth {
				v = v[:maxCellWidth-3] + "..."
			}
			cells[i] = safeVal(v)
		}
		fmt.Fprintf(w, "| %s |\n", strings.Join(cells, " | "))
	}
}
