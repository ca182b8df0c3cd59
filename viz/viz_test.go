package viz

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobmap/cluster"
	"jobmap/record"
	"jobmap/reduce"
)

func sampleRecords() []record.Record {
	return []record.Record{
		{Title: "Senior Data Scientist for Machine Learning Platforms", Company: "Acme Analytics International", Summary: "Build models"},
		{Title: "Backend Engineer", Company: "Globex", Summary: "Go services"},
		{Title: "Nurse", Company: "Hospital", Summary: "Care"},
	}
}

func TestPreview(t *testing.T) {
	tests := []struct {
		name string
		text string
		n    int
		want string
	}{
		{"Short", "hello", 40, "hello"},
		{"Exact", "hello", 5, "hello"},
		{"Cut", "hello world", 5, "hello..."},
		{"Runes", "Zürich Bahnhof", 3, "Zür..."},
		{"Empty", "", 3, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Preview(tt.text, tt.n))
		})
	}
}

func TestAssemble(t *testing.T) {
	recs := sampleRecords()
	labels := map[int]int{0: 1, 1: 0}
	proj := reduce.Projection{0: {X: 1, Y: 2}, 1: {X: 3, Y: 4}, 2: {X: 5, Y: 6}}

	points := Assemble(recs, labels, proj, Options{
		DisplayFields: []record.Field{record.FieldTitle, record.FieldCompany},
		PreviewLength: 10,
		ShowText:      true,
	})
	require.Len(t, points, 2)

	assert.Equal(t, 0, points[0].Index)
	assert.Equal(t, "1", points[0].Cluster)
	assert.Equal(t, 1.0, points[0].X)
	assert.Equal(t, "Senior Dat...", points[0].Hover[0].Value)
	// company is not free text and is shown in full
	assert.Equal(t, "Acme Analytics International", points[0].Hover[1].Value)
	assert.Equal(t, "Acme Analytics ...", points[0].Label)

	assert.Equal(t, 1, points[1].Index)
	assert.Equal(t, "0", points[1].Cluster)
	assert.Equal(t, "Globex", points[1].Label)
}

func TestAssemble_DropsMissingCoordinate(t *testing.T) {
	recs := sampleRecords()
	labels := map[int]int{0: 0, 1: 0, 2: 1}
	proj := reduce.Projection{0: {}, 2: {}}

	points := Assemble(recs, labels, proj, Options{})
	require.Len(t, points, 2)
	assert.Equal(t, 0, points[0].Index)
	assert.Equal(t, 2, points[1].Index)
	assert.Empty(t, points[0].Label)
}

func TestDatasetRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "points.json")
	points := []Point{{Index: 3, X: 1.5, Y: -2, Cluster: "2", Label: "Acme"}}

	require.NoError(t, WriteDataset(path, points))
	got, err := ReadDataset(path)
	require.NoError(t, err)
	assert.Equal(t, points, got)
}

func TestTitle(t *testing.T) {
	title := Title{
		Date:      time.Date(2026, time.March, 4, 0, 0, 0, 0, time.UTC),
		TextField: record.FieldSummary,
		Source:    "word2vec",
		Method:    reduce.MethodPCA,
		Query:     "data scientist",
	}
	assert.Equal(t, "Mar-04-2026 viz Jobs by 'summary' via word2vec + pca | data scientist", title.String())
	assert.Equal(t, "Elbow Method for Optimal k - word2vec-data scientist", title.Elbow())
	assert.Equal(t, "Mar-04-2026_viz_Jobs_by_summary_via_word2vec_pca_data_scientist.html", FileName(title.String(), ".html"))
}

func TestCountBy(t *testing.T) {
	recs := []record.Record{{Company: "b"}, {Company: "a"}, {Company: "b"}, {Company: "c"}}
	assert.Equal(t, []Count{{"b", 2}, {"a", 1}, {"c", 1}}, CountBy(recs, record.FieldCompany))
}

func TestRenderScatter(t *testing.T) {
	points := []Point{
		{Index: 0, X: 1, Y: 1, Cluster: "10", Label: "Acme", Hover: []HoverField{{record.FieldCompany, "<b>Acme</b>"}}},
		{Index: 1, X: 2, Y: 2, Cluster: "2", Label: "Globex"},
	}
	var buf bytes.Buffer
	require.NoError(t, RenderScatter(&buf, points, ChartOptions{Title: "jobs", Method: reduce.MethodPCA, ShowText: true}))

	out := buf.String()
	assert.Contains(t, out, "PCA X")
	assert.Contains(t, out, "960px")
	assert.NotContains(t, out, "<b>Acme</b>")
	// the label formatter is emitted as a function, not a quoted string
	assert.Contains(t, out, "p.value[2]")
	assert.NotContains(t, out, `"function (p) { return p.value[2]; }"`)
}

func TestSaveElbow(t *testing.T) {
	dir := t.TempDir()
	curve := cluster.InertiaCurve{{K: 1, SSE: 100}, {K: 2, SSE: 40}, {K: 3, SSE: 35}}

	path, err := SaveElbow(dir, curve, 2, "Elbow Method for Optimal k - test")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "Elbow_Method_for_Optimal_k_-_test.html"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "k=2")
}
