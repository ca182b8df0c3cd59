package vectorize

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobmap/pkg/embedding"
)

func testTable(t *testing.T) *embedding.WordTable {
	t.Helper()
	table, err := embedding.NewWordTable(map[string][]float32{
		"data":     {1, 0, 0},
		"engineer": {0, 1, 0},
		"python":   {0, 0, 1},
		"manag":    {2, 2, 2},
	})
	require.NoError(t, err)
	return table
}

func TestWordAverage_VectorizeText(t *testing.T) {
	w := &WordAverage{Source: testTable(t), MinTokenLength: 3}

	testCases := []struct {
		name     string
		text     string
		want     []float64
		tokens   int
		excluded int
		degraded bool
	}{
		{"Mean", "Data Engineer", []float64{0.5, 0.5, 0}, 2, 0, false},
		{"SkipsShortTokens", "a data of it", []float64{1, 0, 0}, 1, 0, false},
		{"CountsExcluded", "data wizard python", []float64{0.5, 0, 0.5}, 3, 1, false},
		{"EmptyText", "", nil, 0, 0, true},
		{"OnlyShortTokens", "to be or", nil, 0, 0, true},
		{"OnlyUnknown", "blockchain synergy", nil, 2, 2, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			res := w.VectorizeText(tc.text)
			assert.Equal(t, tc.tokens, res.Tokens)
			assert.Equal(t, tc.excluded, res.Excluded)
			assert.Equal(t, tc.degraded, res.Degraded)
			require.Len(t, res.Vector, 3)
			if tc.degraded {
				for _, x := range res.Vector {
					assert.True(t, math.IsNaN(x))
				}
				assert.True(t, IsUndefined(res.Vector))
				return
			}
			assert.InDeltaSlice(t, tc.want, res.Vector, 1e-9)
		})
	}
}

func TestWordAverage_Deterministic(t *testing.T) {
	w := &WordAverage{Source: testTable(t), MinTokenLength: 3}
	a := w.VectorizeText("python data engineer data")
	b := w.VectorizeText("python data engineer data")
	assert.Equal(t, a, b)
}

func TestWordAverage_StemFallback(t *testing.T) {
	plain := &WordAverage{Source: testTable(t), MinTokenLength: 3}
	stemmed := &WordAverage{Source: testTable(t), MinTokenLength: 3, StemFallback: true}

	assert.True(t, plain.VectorizeText("managers").Degraded)

	res := stemmed.VectorizeText("managers")
	assert.False(t, res.Degraded)
	assert.Equal(t, []float64{2, 2, 2}, res.Vector)
}

func TestWordAverage_Vectorize(t *testing.T) {
	w := &WordAverage{Source: testTable(t), MinTokenLength: 3, Workers: 2}
	texts := []string{"data", "", "python engineer", "unknown words"}

	results, err := w.Vectorize(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, results, len(texts))

	assert.Equal(t, []float64{1, 0, 0}, results[0].Vector)
	assert.True(t, results[1].Degraded)
	assert.Equal(t, []float64{0, 0.5, 0.5}, results[2].Vector)
	assert.True(t, results[3].Degraded)

	s := Summarize(results)
	assert.Equal(t, []int{1, 3}, s.Degraded)
	assert.Equal(t, 2, s.Excluded)
}

func TestWordAverage_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	w := &WordAverage{Source: testTable(t), MinTokenLength: 3}
	_, err := w.Vectorize(ctx, []string{"data"})
	assert.ErrorIs(t, err, context.Canceled)
}
