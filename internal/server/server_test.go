// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/report-extract/internal/docx"
	"github.com/pdiddy/report-extract/internal/docx/docxtest"
	"github.com/pdiddy/report-extract/internal/extract"
	"github.com/pdiddy/report-extract/internal/output"
	"github.com/pdiddy/report-extract/internal/pipeline"
	"github.com/pdiddy/report-extract/internal/render"
	"github.com/pdiddy/report-extract/internal/store"
	"github.com/pdiddy/report-extract/pkg/types"
)

type fakeRuns struct {
	runs     []store.Run
	entities map[string]types.Entities
	gotLimit int
}

func (f *fakeRuns) ListRuns(_ context.Context, limit int) ([]store.Run, error) {
	f.gotLimit = limit
	return f.runs, nil
}

func (f *fakeRuns) RunEntities(_ context.Context, id string) (types.Entities, error) {
	e, ok := f.entities[id]
	if !ok {
		return types.Entities{}, fmt.Errorf("%w: %s", store.ErrRunNotFound, id)
	}
	return e, nil
}

// unitlessBackend returns a KPI without a unit.
type unitlessBackend struct{}

func (unitlessBackend) Extract(context.Context, string) (extract.Response, error) {
	return extract.Response{KPIs: []json.RawMessage{json.RawMessage(`{"name":"OEE","value":78.5,"confidence":0.9}`)}}, nil
}

func newTestServer(t *testing.T, backend extract.Backend, runs Runs) *httptest.Server {
	t.Helper()
	deps := pipeline.Deps{Backend: backend, BackendName: "rules", Renderer: render.TextBoxRenderer{}}
	cfg := types.PipelineConfig{
		Render:     types.RenderConfig{Enabled: true},
		Extraction: types.ExtractionConfig{Strict: true},
		Server:     types.ServerConfig{WorkDir: t.TempDir()},
	}
	ts := httptest.NewServer(New(deps, cfg, runs).Handler())
	t.Cleanup(ts.Close)
	return ts
}

func upload(t *testing.T, url, filename string, content []byte) *http.Response {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile(uploadField, filename)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp, err := http.Post(url+"/v1/extract", mw.FormDataContentType(), &body)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func gearheadBytes(t *testing.T) []byte {
	t.Helper()
	path := docxtest.Write(t, filepath.Join(t.TempDir(), "gearhead_weekly_report.docx"), docxtest.GearheadReport())
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return data
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, extract.RulesBackend{}, nil)
	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, "rules", body["backend"])
	assert.Equal(t, false, body["history"])
}

func TestExtract(t *testing.T) {
	ts := newTestServer(t, extract.RulesBackend{}, nil)
	resp := upload(t, ts.URL, "gearhead_weekly_report.docx", gearheadBytes(t))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var o types.Output
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&o))
	assert.Equal(t, "gearhead_weekly_report.docx", o.Document.Filename)
	assert.NotEmpty(t, o.Document.RunID)
	assert.Empty(t, o.Document.PDFPath)
	assert.NoError(t, output.CheckAcceptance(o))
}

func TestExtract_Errors(t *testing.T) {
	tests := []struct {
		name     string
		backend  extract.Backend
		filename string
		content  []byte
		want     int
	}{
		{"not a docx", extract.RulesBackend{}, "report.txt", []byte("hello"), http.StatusUnsupportedMediaType},
		{"corrupt docx", extract.RulesBackend{}, "report.docx", []byte("not a zip"), http.StatusUnsupportedMediaType},
		{"invalid model reply", unitlessBackend{}, "r.docx", nil, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			content := tt.content
			if content == nil {
				content = gearheadBytes(t)
			}
			ts := newTestServer(t, tt.backend, nil)
			resp := upload(t, ts.URL, tt.filename, content)
			assert.Equal(t, tt.want, resp.StatusCode)

			var body map[string]string
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestExtract_MissingField(t *testing.T) {
	ts := newTestServer(t, extract.RulesBackend{}, nil)
	resp, err := http.Post(ts.URL+"/v1/extract", "text/plain", bytes.NewReader([]byte("x")))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRuns(t *testing.T) {
	runs := &fakeRuns{
		runs: []store.Run{{ID: "run-1", Filename: "w45.docx", ExtractedAt: "2025-11-10T08:00:00Z", Statistics: types.Statistics{TotalEntities: 1, OrgCount: 1}}},
		entities: map[string]types.Entities{
			"run-1": types.Entities{Organizations: []types.Organization{{Name: "Gearhead Cycles", Confidence: 0.9}}}.Normalize(),
		},
	}
	ts := newTestServer(t, extract.RulesBackend{}, runs)

	t.Run("list", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/v1/runs?limit=5")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, 5, runs.gotLimit)

		var body struct {
			Runs []runJSON `json:"runs"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		require.Len(t, body.Runs, 1)
		assert.Equal(t, "run-1", body.Runs[0].ID)
		assert.Equal(t, 1, body.Runs[0].Statistics.OrgCount)
	})

	t.Run("bad limit", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/v1/runs?limit=many")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("entities", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/v1/runs/run-1")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
		data, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Contains(t, string(data), "Gearhead Cycles")
		assert.Contains(t, string(data), `"org_count": 1`)
	})

	t.Run("unknown run", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/v1/runs/missing")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestRuns_Disabled(t *testing.T) {
	ts := newTestServer(t, extract.RulesBackend{}, nil)
	resp, err := http.Get(ts.URL + "/v1/runs")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&pipeline.StageError{Stage: pipeline.StageRead, Err: docx.ErrNotFound}, http.StatusNotFound},
		{&pipeline.StageError{Stage: pipeline.StageRead, Err: docx.ErrFormatMismatch}, http.StatusUnsupportedMediaType},
		{&pipeline.StageError{Stage: pipeline.StageExtract, Err: extract.ErrInvalidResponse}, http.StatusUnprocessableEntity},
		{&pipeline.StageError{Stage: pipeline.StageValidate, Err: output.ErrInvalidOutput}, http.StatusUnprocessableEntity},
		{&pipeline.StageError{Stage: pipeline.StageExtract, Err: errors.New("connection refused")}, http.StatusBadGateway},
		{&pipeline.StageError{Stage: pipeline.StageExtract, Err: context.DeadlineExceeded}, http.StatusGatewayTimeout},
		{fmt.Errorf("%w: x", store.ErrRunNotFound), http.StatusNotFound},
		{errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}
