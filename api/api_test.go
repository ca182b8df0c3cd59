package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"jobmap/cluster"
	"jobmap/pipeline"
	"jobmap/pkg/embedding"
	"jobmap/pkg/qdrantdb"
	"jobmap/record"
	"jobmap/reduce"
	"jobmap/vectorize"
	"jobmap/viz"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	table, err := embedding.NewWordTable(map[string][]float32{
		"golang":  {5, 0},
		"docker":  {4.9, 0.1},
		"nurse":   {0, 5},
		"clinic":  {0.1, 4.9},
		"backend": {5.1, 0},
		"ward":    {0, 5.1},
	})
	require.NoError(t, err)

	runner := pipeline.NewRunner(
		&vectorize.WordAverage{Source: table, MinTokenLength: 3},
		cluster.NewEngine(cluster.Config{Restarts: 3}, zap.NewNop()),
		reduce.PCA{},
		zap.NewNop(),
	)
	defaults := pipeline.Options{TextField: record.FieldSummary, TopEnd: 4}
	return NewServer(runner, defaults, &reduce.TSNE{Iterations: 100}, 0, zap.NewNop())
}

func records() []record.Record {
	return []record.Record{
		{Company: "A", Summary: "golang docker"},
		{Company: "B", Summary: "backend golang"},
		{Company: "C", Summary: "docker backend"},
		{Company: "D", Summary: "nurse clinic"},
		{Company: "E", Summary: "clinic ward"},
		{Company: "F", Summary: "ward nurse"},
	}
}

func post(t *testing.T, h http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestClusterHandler(t *testing.T) {
	h := newTestServer(t).Handler()
	show := true

	rec := post(t, h, "/api/cluster", ClusterRequest{
		Records: records(),
		Options: ClusterOptions{DisplayFields: []string{"company"}, ShowText: &show},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp ClusterResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.GreaterOrEqual(t, resp.K, 1)
	assert.Len(t, resp.Curve, 4)
	require.Len(t, resp.Points, 6)
	assert.Equal(t, "A", resp.Points[0].Label)
	assert.Equal(t, []viz.HoverField{{Field: record.FieldCompany, Value: "A"}}, resp.Points[0].Hover)
}

type countingSink struct{ calls int }

func (s *countingSink) SaveJobs(_ context.Context, _ []qdrantdb.JobPoint) error {
	s.calls++
	return nil
}

func TestClusterHandler_SkipsSink(t *testing.T) {
	s := newTestServer(t)
	sink := &countingSink{}
	s.runner.Sink = sink

	rec := post(t, s.Handler(), "/api/cluster", ClusterRequest{Records: records()})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Zero(t, sink.calls)
	assert.Same(t, sink, s.runner.Sink)
}

func TestClusterHandler_TSNE(t *testing.T) {
	h := newTestServer(t).Handler()
	rec := post(t, h, "/api/cluster", ClusterRequest{Records: records(), Options: ClusterOptions{Method: "tsne"}})
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestClusterHandler_Errors(t *testing.T) {
	h := newTestServer(t).Handler()

	tests := []struct {
		name string
		body any
		want int
	}{
		{"UnknownField", ClusterRequest{Records: records(), Options: ClusterOptions{TextField: "salary"}}, http.StatusBadRequest},
		{"UnknownMethod", ClusterRequest{Records: records(), Options: ClusterOptions{Method: "umap"}}, http.StatusBadRequest},
		{"TopEndTooSmall", ClusterRequest{Records: records(), Options: ClusterOptions{TopEnd: 1}}, http.StatusBadRequest},
		{"NoUsableRecords", ClusterRequest{Records: []record.Record{{Summary: "unknown"}}}, http.StatusUnprocessableEntity},
		{"BadLink", ClusterRequest{Records: []record.Record{{Summary: "golang", Link: "relative"}}}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := post(t, h, "/api/cluster", tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}

	req := httptest.NewRequest(http.MethodGet, "/api/cluster", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/cluster", bytes.NewReader([]byte("{")))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCountHandler(t *testing.T) {
	h := newTestServer(t).Handler()
	recs := []record.Record{{Company: "b"}, {Company: "a"}, {Company: "b"}}

	rec := post(t, h, "/api/counts", CountRequest{Records: recs, Field: "company", Limit: 1})
	require.Equal(t, http.StatusOK, rec.Code)

	var counts []viz.Count
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &counts))
	assert.Equal(t, []viz.Count{{Value: "b", Count: 2}}, counts)
}

func TestHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestServer(t).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}
