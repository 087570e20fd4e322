package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/KaramelBytes/datasift-cli/internal/aggregate"
	"github.com/KaramelBytes/datasift-cli/internal/analysis"
	"github.com/KaramelBytes/datasift-cli/internal/dataset"
	"github.com/KaramelBytes/datasift-cli/internal/export"
	"github.com/KaramelBytes/datasift-cli/internal/filter"
	"github.com/KaramelBytes/datasift-cli/internal/pipeline"
)

type ctxKey struct{}

const (
	defaultPageSize = 100
	maxPageSize     = 5000
	maxBodyBytes    = 1 << 20
)

// loadRequest loads a file already on the server's filesystem.
type loadRequest struct {
	Path       string `json:"path" validate:"required"`
	Profile    string `json:"profile,omitempty" validate:"omitempty,oneof=students generic"`
	SheetName  string `json:"sheet_name,omitempty"`
	SheetIndex int    `json:"sheet_index,omitempty" validate:"min=0"`
	HasHeader  string `json:"has_header,omitempty" validate:"omitempty,oneof=auto yes no"`
}

type datasetInfo struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Sheet      string            `json:"sheet,omitempty"`
	Profile    string            `json:"profile"`
	Rows       int               `json:"rows"`
	Headerless bool              `json:"headerless"`
	Columns    []dataset.Column  `json:"columns"`
	Binding    map[string]string `json:"binding,omitempty"`
	Controls   []filter.Control  `json:"controls,omitempty"`
	Defaults   *filter.Params    `json:"defaults,omitempty"`
	Warnings   []string          `json:"warnings,omitempty"`
	Cached     bool              `json:"cached,omitempty"`
	LoadedAt   time.Time         `json:"loaded_at"`
}

func info(e *Entry, detail bool) datasetInfo {
	p := e.Session.Prepared
	out := datasetInfo{
		ID:         e.ID,
		Name:       p.Source,
		Sheet:      p.Sheet,
		Profile:    p.Profile.Name,
		Rows:       p.Dataset.Len(),
		Headerless: p.Headerless,
		Columns:    p.Dataset.Columns,
		Warnings:   p.Warnings,
		LoadedAt:   e.LoadedAt,
	}
	if detail {
		out.Binding = p.Binding
		out.Controls = e.Session.Controls()
		d := e.Session.Defaults()
		out.Defaults = &d
	}
	return out
}

// DatasetCtx loads the {id} session into the request context.
func (s *Server) DatasetCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		e, err := s.store.Get(chi.URLParam(r, "id"))
		if err != nil {
			renderError(w, r, fromError(err))
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, e)))
	})
}

func entryFrom(r *http.Request) *Entry {
	e, _ := r.Context().Value(ctxKey{}).(*Entry)
	return e
}

// decode reads an optional JSON body into v and validates it.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v interface{}) *APIError {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := render.DecodeJSON(body, v); err != nil && !errors.Is(err, io.EOF) {
		return errInvalidRequest(err)
	}
	if err := s.validate.Struct(v); err != nil {
		return errValidation(err)
	}
	return nil
}

func (s *Server) createDataset(w http.ResponseWriter, r *http.Request) {
	var (
		name, profile, header string
		content               []byte
		lopt                  = s.opt.Loader
	)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		r.Body = http.MaxBytesReader(w, r.Body, s.opt.MaxUploadBytes)
		if err := r.ParseMultipartForm(s.opt.MaxUploadBytes); err != nil {
			renderError(w, r, newError(http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "Upload could not be read", err.Error()))
			return
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			renderError(w, r, newError(http.StatusBadRequest, "MISSING_PARAMETER", "multipart field \"file\" is required", nil))
			return
		}
		defer f.Close()
		if content, err = io.ReadAll(f); err != nil {
			renderError(w, r, errInvalidRequest(err))
			return
		}
		name = hdr.Filename
		profile = r.FormValue("profile")
		header = r.FormValue("has_header")
		if v := r.FormValue("sheet_name"); v != "" {
			lopt.SheetName = v
		}
		if v := r.FormValue("sheet_index"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				renderError(w, r, newError(http.StatusBadRequest, "INVALID_PARAMETER", "sheet_index must be a non-negative integer", v))
				return
			}
			lopt.SheetIndex = n
		}
	} else {
		var req loadRequest
		if apiErr := s.decode(w, r, &req); apiErr != nil {
			renderError(w, r, apiErr)
			return
		}
		if !s.opt.AllowPaths {
			renderError(w, r, newError(http.StatusForbidden, "FORBIDDEN", "Loading by path is disabled; upload the file instead", nil))
			return
		}
		var err error
		if content, err = os.ReadFile(req.Path); err != nil {
			renderError(w, r, newError(http.StatusNotFound, "NOT_FOUND", "source file could not be read", err.Error()))
			return
		}
		name, profile, header = req.Path, req.Profile, req.HasHeader
		if req.SheetName != "" {
			lopt.SheetName = req.SheetName
		}
		if req.SheetIndex > 0 {
			lopt.SheetIndex = req.SheetIndex
		}
	}

	raw, hit, err := s.cache.Load(name, content, lopt)
	if err != nil {
		s.metrics.observeLoad("failed")
		renderError(w, r, fromError(err))
		return
	}
	popt, err := s.opt.Pipeline(profile)
	if err != nil {
		renderError(w, r, newError(http.StatusBadRequest, "INVALID_PARAMETER", err.Error(), nil))
		return
	}
	if header != "" {
		mode, err := pipeline.ParseHeaderMode(header)
		if err != nil {
			renderError(w, r, newError(http.StatusBadRequest, "INVALID_PARAMETER", err.Error(), nil))
			return
		}
		popt.Header = mode
	}
	popt.Logger = s.log
	prep, err := pipeline.Prepare(raw, popt)
	if err != nil {
		s.metrics.observeLoad("failed")
		renderError(w, r, fromError(err))
		return
	}
	if hit {
		s.metrics.observeLoad("cached")
	} else {
		s.metrics.observeLoad("loaded")
	}
	e := s.store.Put(pipeline.NewSession(prep))
	s.metrics.sessions.Set(float64(s.store.Len()))
	s.log.InfoContext(r.Context(), "dataset loaded",
		slog.String("id", e.ID),
		slog.String("source", prep.Source),
		slog.Int("rows", prep.Dataset.Len()),
		slog.Bool("cached", hit),
	)
	out := info(e, false)
	out.Cached = hit
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, out)
}

func (s *Server) listDatasets(w http.ResponseWriter, r *http.Request) {
	entries := s.store.List()
	out := make([]datasetInfo, 0, len(entries))
	for _, e := range entries {
		out = append(out, info(e, false))
	}
	render.JSON(w, r, out)
}

func (s *Server) describeDataset(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, info(entryFrom(r), true))
}

func (s *Server) deleteDataset(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Delete(entryFrom(r).ID); err != nil {
		renderError(w, r, fromError(err))
		return
	}
	s.metrics.sessions.Set(float64(s.store.Len()))
	w.WriteHeader(http.StatusNoContent)
}

type viewRequest struct {
	Params     filter.Params `json:"params"`
	Offset     int           `json:"offset" validate:"min=0"`
	Limit      int           `json:"limit" validate:"min=0,max=5000"`
	AllColumns bool          `json:"all_columns"`
}

type viewResponse struct {
	Total   int             `json:"total"`
	Offset  int             `json:"offset"`
	Empty   bool            `json:"empty"`
	Columns []string        `json:"columns"`
	Rows    [][]interface{} `json:"rows"`
	KPIs    []analysis.KPI  `json:"kpis"`
}

func cell(v dataset.Value) interface{} {
	switch {
	case v.IsMissing():
		return nil
	case v.IsNumber():
		f, _ := v.Float()
		return f
	}
	return v.String()
}

func (s *Server) view(w http.ResponseWriter, r *http.Request) {
	var req viewRequest
	if apiErr := s.decode(w, r, &req); apiErr != nil {
		renderError(w, r, apiErr)
		return
	}
	sess := entryFrom(r).Session
	v, err := sess.Recompute(req.Params)
	if err != nil {
		renderError(w, r, fromError(err))
		return
	}
	s.metrics.observeRecompute("view")
	rows := v.Rows
	if !req.AllColumns {
		rows = sess.Display(rows)
	}
	limit := req.Limit
	if limit == 0 {
		limit = defaultPageSize
	}
	page := rows.Slice(req.Offset, min(limit, maxPageSize))
	out := viewResponse{
		Total:   v.Rows.Len(),
		Offset:  req.Offset,
		Empty:   v.Empty(),
		Columns: page.Names(),
		Rows:    make([][]interface{}, len(page.Rows)),
		KPIs:    v.KPIs,
	}
	for i, row := range page.Rows {
		rec := make([]interface{}, len(row))
		for j, c := range row {
			rec[j] = cell(c)
		}
		out.Rows[i] = rec
	}
	render.JSON(w, r, out)
}

type aggregateRequest struct {
	Params filter.Params  `json:"params"`
	Spec   aggregate.Spec `json:"spec"`
	Top    int            `json:"top" validate:"min=0"`
}

func (s *Server) aggregate(w http.ResponseWriter, r *http.Request) {
	var req aggregateRequest
	if apiErr := s.decode(w, r, &req); apiErr != nil {
		renderError(w, r, apiErr)
		return
	}
	sess := entryFrom(r).Session
	v, err := sess.Recompute(req.Params)
	if err != nil {
		renderError(w, r, fromError(err))
		return
	}
	s.metrics.observeRecompute("aggregate")
	tbl, err := sess.Aggregate(v.Rows, req.Spec, req.Top)
	if err != nil {
		renderError(w, r, fromError(err))
		return
	}
	render.JSON(w, r, tbl)
}

type chartsRequest struct {
	Params filter.Params         `json:"params"`
	Charts pipeline.ChartRequest `json:"charts"`
}

func (s *Server) charts(w http.ResponseWriter, r *http.Request) {
	var req chartsRequest
	if apiErr := s.decode(w, r, &req); apiErr != nil {
		renderError(w, r, apiErr)
		return
	}
	sess := entryFrom(r).Session
	v, err := sess.Recompute(req.Params)
	if err != nil {
		renderError(w, r, fromError(err))
		return
	}
	s.metrics.observeRecompute("charts")
	if req.Charts.Bins == 0 {
		req.Charts.Bins = s.opt.HistogramBins
	}
	c, err := sess.Charts(v.Rows, req.Charts)
	if err != nil {
		renderError(w, r, fromError(err))
		return
	}
	render.JSON(w, r, c)
}

type reportRequest struct {
	Params       filter.Params `json:"params"`
	GroupBy      []string      `json:"group_by"`
	Correlations bool          `json:"correlations"`
	SampleRows   int           `json:"sample_rows" validate:"min=0,max=50"`
}

type reportResponse struct {
	Report   *analysis.Report `json:"report"`
	Markdown string           `json:"markdown"`
}

func (s *Server) report(w http.ResponseWriter, r *http.Request) {
	var req reportRequest
	if apiErr := s.decode(w, r, &req); apiErr != nil {
		renderError(w, r, apiErr)
		return
	}
	sess := entryFrom(r).Session
	v, err := sess.Recompute(req.Params)
	if err != nil {
		renderError(w, r, fromError(err))
		return
	}
	s.metrics.observeRecompute("report")
	opt := analysis.DefaultOptions()
	opt.GroupBy = req.GroupBy
	opt.Correlations = req.Correlations
	if req.SampleRows > 0 {
		opt.SampleRows = req.SampleRows
	}
	rep := sess.Report(v.Rows, opt)
	render.JSON(w, r, reportResponse{Report: rep, Markdown: rep.Markdown()})
}

type exportRequest struct {
	Params    filter.Params   `json:"params"`
	Aggregate *aggregate.Spec `json:"aggregate,omitempty"`
	Top       int             `json:"top" validate:"min=0"`

	// DisplayColumns narrows the filtered export to the profile's display projection.
	DisplayColumns bool `json:"display_columns"`
}

func (s *Server) export(w http.ResponseWriter, r *http.Request) {
	var req exportRequest
	if apiErr := s.decode(w, r, &req); apiErr != nil {
		renderError(w, r, apiErr)
		return
	}
	sess := entryFrom(r).Session
	v, err := sess.Recompute(req.Params)
	if err != nil {
		renderError(w, r, fromError(err))
		return
	}
	s.metrics.observeRecompute("export")

	out := v.Rows
	filename := sess.Prepared.Profile.ExportName
	if req.Aggregate != nil {
		tbl, err := sess.Aggregate(v.Rows, *req.Aggregate, req.Top)
		if err != nil {
			renderError(w, r, fromError(err))
			return
		}
		out, filename = tbl.Dataset(), export.AggregateFile
	} else if req.DisplayColumns {
		out = sess.Display(out)
	}
	var buf bytes.Buffer
	if err := export.WriteCSV(&buf, out, export.Options{BOM: s.opt.ExportBOM}); err != nil {
		renderError(w, r, fromError(err))
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
