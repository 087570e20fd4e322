package server

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/datasift-cli/internal/derive"
	"github.com/KaramelBytes/datasift-cli/internal/pipeline"
)

const students = "FirstName,LastName,University,Campus,School,Program,YearOfStudy,Gender,Age,County,AttendanceRate,StudyHoursPerWeek,GPA,MentalWellbeingScore,FinancialStressScore,CreditsRegistered\n" +
	"Ada,Lovelace,Uni A,Main,Science,CS,1,F,20,Nairobi,90,10,3.9,7,3,60\n" +
	"Alan,Turing,Uni A,Main,Science,CS,2,M,22,Mombasa,80,8,2.5,6,5,60\n" +
	"Grace,Hopper,Uni B,East,Engineering,EE,3,F,21,Nairobi,70,12,3.1,8,2,45\n" +
	"Edsger,Dijkstra,Uni B,East,Engineering,EE,1,M,23,Kisumu,60,6,1.0,5,6,30\n"

func newTestServer(t *testing.T, mutate func(*Options)) *Server {
	t.Helper()
	opt := Options{
		Pipeline: func(name string) (pipeline.Options, error) {
			prof, err := pipeline.Lookup(name, derive.DefaultBands())
			return pipeline.Options{Profile: prof}, err
		},
	}
	if mutate != nil {
		mutate(&opt)
	}
	return New(opt)
}

func upload(t *testing.T, srv http.Handler, name, content string, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/api/datasets", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func post(t *testing.T, srv http.Handler, path string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func loadStudents(t *testing.T, srv http.Handler) string {
	t.Helper()
	rec := upload(t, srv, "students.csv", students, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var info datasetInfo
	decodeBody(t, rec, &info)
	require.NotEmpty(t, info.ID)
	assert.Equal(t, 4, info.Rows)
	assert.Equal(t, pipeline.ProfileStudents, info.Profile)
	return info.ID
}

func TestUploadDescribeAndView(t *testing.T) {
	srv := newTestServer(t, nil)
	id := loadStudents(t, srv)

	req := httptest.NewRequest(http.MethodGet, "/api/datasets/"+id, nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var info datasetInfo
	decodeBody(t, rec, &info)
	assert.Equal(t, "GPA", info.Binding["GPA"])
	require.NotNil(t, info.Defaults)
	assert.Equal(t, []string{"CS", "EE"}, info.Defaults.Categories["Program"])
	assert.NotEmpty(t, info.Controls)

	rec = post(t, srv, "/api/datasets/"+id+"/view", map[string]interface{}{
		"params": map[string]interface{}{"categories": map[string][]string{"Program": {"CS"}}},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var view viewResponse
	decodeBody(t, rec, &view)
	assert.Equal(t, 2, view.Total)
	assert.False(t, view.Empty)
	assert.Equal(t, "FullName", view.Columns[0])
	assert.Equal(t, "Ada Lovelace", view.Rows[0][0])
	assert.Equal(t, "Students", view.KPIs[0].Label)
	assert.Equal(t, "2", view.KPIs[0].Value)
	assert.Equal(t, "3.20", view.KPIs[1].Value)

	rec = post(t, srv, "/api/datasets/"+id+"/view", map[string]interface{}{"limit": 1, "offset": 3, "all_columns": true})
	require.Equal(t, http.StatusOK, rec.Code)
	decodeBody(t, rec, &view)
	assert.Equal(t, 4, view.Total)
	require.Len(t, view.Rows, 1)
	assert.Equal(t, "FirstName", view.Columns[0])
	assert.Equal(t, "Edsger", view.Rows[0][0])

	rec = post(t, srv, "/api/datasets/"+id+"/view", map[string]interface{}{
		"params": map[string]interface{}{"ranges": map[string]interface{}{"GPA": map[string]float64{"low": 3, "high": 2}}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "INVALID_RANGE")
}

func TestLoadErrors(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := upload(t, srv, "bad.csv", "Name,GPA\nAda,3.9\n", nil)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var apiErr struct {
		Code    string              `json:"error_code"`
		Details map[string][]string `json:"details"`
	}
	decodeBody(t, rec, &apiErr)
	assert.Equal(t, "SCHEMA_MISMATCH", apiErr.Code)
	assert.Contains(t, apiErr.Details["missing"], "FirstName")
	assert.Equal(t, []string{"Name", "GPA"}, apiErr.Details["detected"])

	rec = upload(t, srv, "report.pdf", "%PDF-1.4", nil)
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	assert.Contains(t, rec.Body.String(), "UNSUPPORTED_SOURCE")

	rec = upload(t, srv, "x.csv", "a\n1\n", map[string]string{"profile": "sales"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = post(t, srv, "/api/datasets/missing/view", map[string]interface{}{})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = post(t, srv, "/api/datasets", map[string]string{"path": "/etc/hosts.csv"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = post(t, srv, "/api/datasets", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "VALIDATION_FAILED")
}

func TestLoadByPathUsesCache(t *testing.T) {
	srv := newTestServer(t, func(o *Options) { o.AllowPaths = true })
	path := filepath.Join(t.TempDir(), "weather.csv")
	require.NoError(t, os.WriteFile(path, []byte("city,temp\nNairobi,21\nMombasa,29\n"), 0o644))

	body := map[string]string{"path": path, "profile": "generic"}
	first := post(t, srv, "/api/datasets", body)
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())
	second := post(t, srv, "/api/datasets", body)
	require.Equal(t, http.StatusCreated, second.Code)

	var a, b datasetInfo
	decodeBody(t, first, &a)
	decodeBody(t, second, &b)
	assert.False(t, a.Cached)
	assert.True(t, b.Cached)
	assert.NotEqual(t, a.ID, b.ID)

	req := httptest.NewRequest(http.MethodGet, "/api/datasets", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	var list []datasetInfo
	decodeBody(t, rec, &list)
	assert.Len(t, list, 2)

	req = httptest.NewRequest(http.MethodDelete, "/api/datasets/"+a.ID, nil)
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 1, srv.store.Len())
}

func TestAggregateChartsReport(t *testing.T) {
	srv := newTestServer(t, nil)
	id := loadStudents(t, srv)

	rec := post(t, srv, "/api/datasets/"+id+"/aggregate", map[string]interface{}{
		"spec": map[string]string{"group_by": "Program", "metric": "GPA", "reducer": "mean"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var tbl struct {
		Rows []struct {
			Group string   `json:"group"`
			Value *float64 `json:"value"`
			Size  int      `json:"size"`
		} `json:"rows"`
	}
	decodeBody(t, rec, &tbl)
	require.Len(t, tbl.Rows, 2)
	assert.Equal(t, "CS", tbl.Rows[0].Group)
	assert.InDelta(t, 3.2, *tbl.Rows[0].Value, 1e-9)
	assert.InDelta(t, 2.05, *tbl.Rows[1].Value, 1e-9)

	rec = post(t, srv, "/api/datasets/"+id+"/aggregate", map[string]interface{}{
		"spec": map[string]string{"group_by": "Program", "reducer": "max"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "reducer")

	rec = post(t, srv, "/api/datasets/"+id+"/charts", map[string]interface{}{
		"charts": map[string]interface{}{"histogram": "GPA", "bins": 4, "box_metric": "GPA", "box_group": "Program", "correlation": true},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var charts map[string]json.RawMessage
	decodeBody(t, rec, &charts)
	for _, k := range []string{"bands", "group_means", "histogram", "box", "correlation"} {
		assert.Contains(t, charts, k)
	}

	rec = post(t, srv, "/api/datasets/"+id+"/charts", map[string]interface{}{
		"charts": map[string]interface{}{"scatter_x": "GPA"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = post(t, srv, "/api/datasets/"+id+"/report", map[string]interface{}{"group_by": []string{"Program"}, "correlations": true})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var rep struct {
		Report struct {
			Rows int `json:"rows"`
		} `json:"report"`
		Markdown string `json:"markdown"`
	}
	decodeBody(t, rec, &rep)
	assert.Contains(t, rep.Markdown, "[GROUP-BY SUMMARY]")
	assert.Equal(t, 4, rep.Report.Rows)
}

func TestExportCSV(t *testing.T) {
	srv := newTestServer(t, func(o *Options) { o.ExportBOM = true })
	id := loadStudents(t, srv)

	rec := post(t, srv, "/api/datasets/"+id+"/export", map[string]interface{}{
		"params": map[string]interface{}{"search": "uni b"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "filtered_students.csv")
	body := rec.Body.Bytes()
	require.True(t, bytes.HasPrefix(body, []byte{0xEF, 0xBB, 0xBF}))
	records, err := csv.NewReader(bytes.NewReader(body[3:])).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "FirstName", records[0][0])
	assert.Equal(t, "LastName", records[0][1])
	assert.Contains(t, records[0], "FullName")
	assert.Contains(t, records[0], "PerformanceBand")
	assert.Equal(t, "Grace", records[1][0])

	rec = post(t, srv, "/api/datasets/"+id+"/export", map[string]interface{}{
		"params":          map[string]interface{}{"search": "uni b"},
		"display_columns": true,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	records, err = csv.NewReader(strings.NewReader(strings.TrimPrefix(rec.Body.String(), "\xEF\xBB\xBF"))).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, "FullName", records[0][0])
	assert.NotContains(t, records[0], "FirstName")
	assert.Equal(t, "Grace Hopper", records[1][0])

	rec = post(t, srv, "/api/datasets/"+id+"/export", map[string]interface{}{
		"aggregate": map[string]string{"group_by": "Campus", "reducer": "count"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "aggregate.csv")
	assert.Equal(t, "Campus,Count\nEast,2\nMain,2\n", strings.TrimPrefix(rec.Body.String(), "\xEF\xBB\xBF"))
}

func TestRateLimitAndRequestID(t *testing.T) {
	srv := newTestServer(t, func(o *Options) { o.RateLimit = 0.5; o.RateBurst = 1 })

	req := httptest.NewRequest(http.MethodGet, "/api/datasets", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "abc-123", rec.Header().Get(requestIDHeader))

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/datasets", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("Retry-After"))
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code, "health is outside the limited routes")
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, nil)
	loadStudents(t, srv)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `datasift_dataset_loads_total{result="loaded"} 1`)
	assert.Regexp(t, `datasift_http_requests_total\{method="POST",route="/api/datasets/?",status="201"\} 1`, body)
	assert.Contains(t, body, "datasift_sessions 1")
}

func TestStoreEvictsOldest(t *testing.T) {
	st := NewStore(2)
	prep := &pipeline.Prepared{Profile: pipeline.Generic()}
	a := st.Put(pipeline.NewSession(prep))
	st.Put(pipeline.NewSession(prep))
	st.Put(pipeline.NewSession(prep))
	assert.Equal(t, 2, st.Len())
	_, err := st.Get(a.ID)
	assert.ErrorIs(t, err, errSessionNotFound)
	assert.ErrorIs(t, st.Delete(a.ID), errSessionNotFound)
}
