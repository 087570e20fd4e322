package pipeline

import (
	"fmt"

	"github.com/KaramelBytes/datasift-cli/internal/aggregate"
	"github.com/KaramelBytes/datasift-cli/internal/analysis"
	"github.com/KaramelBytes/datasift-cli/internal/dataset"
	"github.com/KaramelBytes/datasift-cli/internal/filter"
)

// Session holds one prepared dataset and recomputes everything downstream of it on
// request. Nothing derived from a filter is cached.
type Session struct {
	Prepared *Prepared
	engine   *filter.Engine
}

// NewSession wraps a prepared dataset.
func NewSession(p *Prepared) *Session {
	return &Session{Prepared: p, engine: filter.NewEngine(p.Dataset)}
}

// Dataset returns the prepared, unfiltered dataset.
func (s *Session) Dataset() *dataset.Dataset { return s.Prepared.Dataset }

// ControlColumns lists the columns that get filter controls. The generic profile uses
// every column; categorical columns with too many distinct values are left out.
func (s *Session) ControlColumns() []string {
	prof := s.Prepared.Profile
	if len(prof.CategoryColumns)+len(prof.RangeColumns) > 0 {
		out := append([]string(nil), prof.CategoryColumns...)
		return append(out, prof.RangeColumns...)
	}
	const maxOptions = 50
	var out []string
	for _, c := range s.Dataset().Columns {
		if c.Kind == dataset.Categorical && len(s.engine.Options(c.Name)) > maxOptions {
			continue
		}
		out = append(out, c.Name)
	}
	return out
}

// Controls describes filter controls with the profile's default adjustments applied.
func (s *Session) Controls() []filter.Control {
	ctrls := s.engine.Controls(s.ControlColumns())
	for i, c := range ctrls {
		if adj, ok := s.Prepared.Profile.AdjustDefault[c.Column]; ok && c.Bounds != nil {
			b := adj(*c.Bounds)
			ctrls[i].Bounds = &b
		}
	}
	return ctrls
}

// Defaults returns the initial parameters a shell shows: every option selected and every
// range at its (adjusted) default.
func (s *Session) Defaults() filter.Params {
	p := s.engine.Defaults(s.ControlColumns())
	for col, adj := range s.Prepared.Profile.AdjustDefault {
		if b, ok := p.Ranges[col]; ok {
			p.Ranges[col] = adj(b)
		}
	}
	return p
}

// View is the result of one recomputation.
type View struct {
	Params filter.Params
	Rows   *dataset.Dataset
	KPIs   []analysis.KPI
}

// Empty reports whether no rows matched.
func (v *View) Empty() bool { return v.Rows.Len() == 0 }

// Recompute filters the prepared dataset with p and computes the KPIs.
func (s *Session) Recompute(p filter.Params) (*View, error) {
	rows, err := s.engine.ApplyParams(s.Dataset(), p)
	if err != nil {
		return nil, err
	}
	return &View{Params: p, Rows: rows, KPIs: s.KPIs(rows)}, nil
}

// KPIs computes the profile's headline figures for a view.
func (s *Session) KPIs(view *dataset.Dataset) []analysis.KPI {
	prof := s.Prepared.Profile
	if len(prof.Measures) == 0 {
		return analysis.GenericKPIs(view)
	}
	return analysis.KPIs(view, prof.CountLabel, prof.Measures)
}

// Display projects a view onto the profile's display columns that are present.
func (s *Session) Display(view *dataset.Dataset) *dataset.Dataset {
	cols := s.Prepared.Profile.DisplayColumns
	if len(cols) == 0 {
		return view
	}
	return view.Project(cols)
}

// Aggregate groups a view per spec. top > 0 keeps that many groups by descending value.
func (s *Session) Aggregate(view *dataset.Dataset, spec aggregate.Spec, top int) (*aggregate.Table, error) {
	tbl, err := aggregate.Aggregate(view, spec)
	if err != nil {
		return nil, err
	}
	if top > 0 {
		tbl = tbl.TopN(top, true)
	}
	return tbl, nil
}

// ChartRequest selects the optional charts. Empty column names skip a chart.
type ChartRequest struct {
	Histogram    string `json:"histogram,omitempty"`
	Bins         int    `json:"bins,omitempty" validate:"omitempty,min=1,max=200"`
	BoxMetric    string `json:"box_metric,omitempty"`
	BoxGroup     string `json:"box_group,omitempty"`
	ScatterX     string `json:"scatter_x,omitempty"`
	ScatterY     string `json:"scatter_y,omitempty" validate:"required_with=ScatterX"`
	ScatterColor string `json:"scatter_color,omitempty"`
	LineX        string `json:"line_x,omitempty"`
	LineY        string `json:"line_y,omitempty" validate:"required_with=LineX"`
	Correlation  bool   `json:"correlation,omitempty"`
}

// Charts is chart-ready data for one view.
type Charts struct {
	Bands      *aggregate.Table     `json:"bands,omitempty"`
	GroupMeans *aggregate.Table     `json:"group_means,omitempty"`
	Histogram  *analysis.Histogram  `json:"histogram,omitempty"`
	Box        []analysis.BoxStats  `json:"box,omitempty"`
	Scatter    []analysis.Point     `json:"scatter,omitempty"`
	Line       []analysis.LinePoint `json:"line,omitempty"`
	Corr       *analysis.CorrMatrix `json:"correlation,omitempty"`
}

// Charts computes the profile's fixed charts plus those requested. The fixed charts are
// skipped when their columns are absent; requested charts on absent columns fail.
func (s *Session) Charts(view *dataset.Dataset, req ChartRequest) (*Charts, error) {
	prof := s.Prepared.Profile
	out := &Charts{}
	var err error
	if prof.BandColumn != "" && view.Has(prof.BandColumn) {
		if out.Bands, err = analysis.BandCounts(view, prof.BandColumn); err != nil {
			return nil, fmt.Errorf("band counts: %w", err)
		}
	}
	if gm := prof.GroupMean; gm != nil && view.Has(gm.GroupBy) && view.Has(gm.Metric) {
		if out.GroupMeans, err = analysis.MeanByGroup(view, gm.GroupBy, gm.Metric, gm.Top); err != nil {
			return nil, fmt.Errorf("group means: %w", err)
		}
	}
	if req.Histogram != "" {
		bins := req.Bins
		if bins <= 0 {
			bins = analysis.DefaultBins
		}
		if out.Histogram, err = analysis.BuildHistogram(view, req.Histogram, bins); err != nil {
			return nil, fmt.Errorf("histogram: %w", err)
		}
	}
	if req.BoxMetric != "" {
		if out.Box, err = analysis.BoxPlot(view, req.BoxMetric, req.BoxGroup); err != nil {
			return nil, fmt.Errorf("box plot: %w", err)
		}
	}
	if req.ScatterX != "" {
		if out.Scatter, err = analysis.Scatter(view, req.ScatterX, req.ScatterY, req.ScatterColor); err != nil {
			return nil, fmt.Errorf("scatter: %w", err)
		}
	}
	if req.LineX != "" {
		if out.Line, err = analysis.Line(view, req.LineX, req.LineY); err != nil {
			return nil, fmt.Errorf("line: %w", err)
		}
	}
	if req.Correlation {
		out.Corr = analysis.Correlation(view, NumericColumns(view))
	}
	return out, nil
}

// Report summarizes a view. The profile KPIs and the preparation warnings are included.
func (s *Session) Report(view *dataset.Dataset, opt analysis.Options) *analysis.Report {
	r := analysis.Summarize(view, opt)
	r.Rows = s.Dataset().Len()
	r.KPIs = s.KPIs(view)
	r.Warnings = append(append([]string(nil), s.Prepared.Warnings...), r.Warnings...)
	return r
}

// NumericColumns lists the numeric columns of ds in order.
func NumericColumns(ds *dataset.Dataset) []string {
	var out []string
	for _, c := range ds.Columns {
		if c.Kind == dataset.Numeric {
			out = append(out, c.Name)
		}
	}
	return out
}
