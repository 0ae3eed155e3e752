package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skillgrid/internal/batch"
	"github.com/skillgrid/internal/grid"
	"github.com/skillgrid/internal/inference"
	"github.com/skillgrid/internal/matrix"
	"github.com/skillgrid/internal/workspace"
)

func fixture() *matrix.Matrix {
	return &matrix.Matrix{
		ID: "trees",
		Columns: []matrix.Column{
			{ID: "species", Title: "Species", Kind: matrix.KindText, IsPrimaryKey: true},
			{ID: "growth", Title: "Growth", Kind: matrix.KindAI, Skill: &matrix.SkillConfig{ID: "sk", TemplateID: "growth-rate"}},
			{ID: "notes", Title: "Notes", Kind: matrix.KindText},
		},
		Rows: []matrix.Row{
			{ID: "r1", Cells: map[string]matrix.Cell{"species": {Value: "Acer campestre"}}},
			{ID: "r2", Cells: map[string]matrix.Cell{"species": {Value: "Betula pendula"}}},
		},
	}
}

type fakeQueue struct {
	matrixID, columnID string
	mode               batch.Mode
	confirmed          bool
}

func (q *fakeQueue) EnqueueColumnRun(ctx context.Context, matrixID, columnID string, mode batch.Mode, confirmed bool) (int64, error) {
	if mode.Destructive() && !confirmed {
		return 0, batch.ErrConfirmationRequired
	}
	q.matrixID, q.columnID, q.mode, q.confirmed = matrixID, columnID, mode, confirmed
	return 42, nil
}

func newServer(t *testing.T, queue Enqueuer) (*Server, *workspace.Workspace) {
	t.Helper()
	nop := zerolog.Nop()
	runner := inference.RunnerFunc(func(ctx context.Context, req inference.Request) (inference.Response, error) {
		res := inference.Apply(req, "Moderate - typical for the genus")
		return inference.Response{OK: res.OK, DisplayValue: res.DisplayValue, Reasoning: res.Reasoning, Normalized: res.Normalized, Model: "stub", Error: res.Error}, nil
	})
	ws := workspace.New(context.Background(), workspace.Options{
		Store:  matrix.NewInMemoryStore(fixture()),
		Runner: runner,
		Batch:  batch.Config{FlushEvery: 1, FlushInterval: time.Second},
		Logger: &nop,
	})
	t.Cleanup(ws.Close)
	opts := Options{Logger: &nop, Viewport: grid.DefaultViewport(96, 0)}
	if queue != nil {
		opts.Queue = queue
	}
	return NewServer(ws, opts), ws
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func TestHealthAndMetrics(t *testing.T) {
	s, _ := newServer(t, nil)
	rec := do(t, s, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")

	rec = do(t, s, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestValidateEndpoint(t *testing.T) {
	s, _ := newServer(t, nil)

	rec := do(t, s, http.MethodPost, "/api/v1/validate", `{"raw":"72/100 - hardy once established","kind":"score"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var res map[string]interface{}
	decode(t, rec, &res)
	assert.Equal(t, true, res["ok"])
	assert.Equal(t, "hardy once established", res["reasoning"])

	rec = do(t, s, http.MethodPost, "/api/v1/validate", `{"raw":"Purple - x","kind":"enum","constraints":{"allowedEnums":["Red","Blue"]}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &res)
	assert.Equal(t, false, res["ok"])

	rec = do(t, s, http.MethodPost, "/api/v1/validate", `{"raw":"x - y","kind":"colour"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = do(t, s, http.MethodPost, "/api/v1/validate", `{"kind":"text"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSkillsEndpoints(t *testing.T) {
	s, _ := newServer(t, nil)
	rec := do(t, s, http.MethodGet, "/api/v1/skills", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []map[string]interface{}
	decode(t, rec, &list)
	assert.Len(t, list, 8)

	rec = do(t, s, http.MethodGet, "/api/v1/skills/growth-rate", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"outputKind":"enum"`)

	rec = do(t, s, http.MethodGet, "/api/v1/skills/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMatrixEndpoints(t *testing.T) {
	s, _ := newServer(t, nil)

	rec := do(t, s, http.MethodGet, "/api/v1/matrices", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"id":"trees"`)

	rec = do(t, s, http.MethodGet, "/api/v1/matrices/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, s, http.MethodPut, "/api/v1/matrices/trees/rows/r1/cells/notes", `{"value":"by the gate"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "by the gate")

	rec = do(t, s, http.MethodPost, "/api/v1/matrices/trees/rows/r1/cells/growth/run", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"success"`)

	rec = do(t, s, http.MethodPost, "/api/v1/matrices/trees/rows/r1/cells/notes/run", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = do(t, s, http.MethodDelete, "/api/v1/matrices/trees/rows/r1/cells/growth/run", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"cancelled":false`)

	rec = do(t, s, http.MethodPut, "/api/v1/matrices/shrubs", `{"id":"other"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = do(t, s, http.MethodPut, "/api/v1/matrices/shrubs", `{"title":"Shrubs"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"id":"shrubs"`)
}

func TestColumnRunLifecycle(t *testing.T) {
	s, ws := newServer(t, nil)

	rec := do(t, s, http.MethodPost, "/api/v1/matrices/trees/columns/growth/runs", `{"mode":"all"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, s, http.MethodPost, "/api/v1/matrices/trees/columns/growth/runs", `{"mode":"bogus"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodPost, "/api/v1/matrices/trees/columns/growth/runs", `{"mode":"fill_empty"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	var resp columnRunResponse
	decode(t, rec, &resp)
	require.NotEmpty(t, resp.RunID)
	assert.False(t, resp.Queued)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := ws.WaitRun(ctx, resp.RunID)
	require.NoError(t, err)

	rec = do(t, s, http.MethodGet, "/api/v1/runs/"+resp.RunID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var st batch.RunStatus
	decode(t, rec, &st)
	assert.Equal(t, batch.RunCompleted, st.State)
	assert.Equal(t, 2, st.Progress.Total)

	rec = do(t, s, http.MethodDelete, "/api/v1/runs/"+resp.RunID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"cancelled":false`)

	rec = do(t, s, http.MethodGet, "/api/v1/runs/unknown", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestColumnRunQueued(t *testing.T) {
	q := &fakeQueue{}
	s, _ := newServer(t, q)

	rec := do(t, s, http.MethodPost, "/api/v1/matrices/trees/columns/growth/runs", `{"mode":"retry-failed"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	var resp columnRunResponse
	decode(t, rec, &resp)
	assert.True(t, resp.Queued)
	assert.EqualValues(t, 42, resp.JobID)
	assert.Equal(t, batch.ModeRetryFailed, q.mode)
	assert.Equal(t, "growth", q.columnID)

	rec = do(t, s, http.MethodPost, "/api/v1/matrices/missing/columns/growth/runs", `{}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPreviewAndViewport(t *testing.T) {
	s, _ := newServer(t, nil)

	rec := do(t, s, http.MethodPost, "/api/v1/matrices/trees/columns/growth/preview", `{"rowId":"r2"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var p map[string]interface{}
	decode(t, rec, &p)
	assert.Contains(t, p["prompt"], "Betula pendula")
	assert.Equal(t, false, p["legacyPromptIgnored"])

	rec = do(t, s, http.MethodPost, "/api/v1/matrices/trees/columns/growth/preview", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodGet, "/api/v1/matrices/trees/viewport?height=48&scroll=48&overscan=0", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var f grid.Frame
	decode(t, rec, &f)
	require.Len(t, f.Rows, 1)
	assert.Equal(t, "r2", f.Rows[0].ID)

	rec = do(t, s, http.MethodGet, "/api/v1/matrices/trees/viewport?height=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	for _, q := range []string{"scroll=NaN", "scroll=Inf", "height=%2BInf", "scrollLeft=-Inf", "rowHeight=NaN"} {
		rec = do(t, s, http.MethodGet, "/api/v1/matrices/trees/viewport?"+q, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}

	rec = do(t, s, http.MethodGet, "/api/v1/matrices/trees/viewport?height=480&scroll=1e30", "")
	require.Equal(t, http.StatusOK, rec.Code)
	f = grid.Frame{}
	decode(t, rec, &f)
	assert.Empty(t, f.Rows)
	assert.Equal(t, f.TotalRows, f.RowWindow.Start)
}
