package vectorize

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	batches [][]string
	failAt  int
}

func (f *fakeClient) GetEmbeddings(_ context.Context, texts []string) ([][]float32, error) {
	f.batches = append(f.batches, append([]string(nil), texts...))
	if f.failAt > 0 && len(f.batches) == f.failAt {
		return nil, errors.New("connection refused")
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = []float32{float32(len(text)), 1}
	}
	return out, nil
}

func TestPassage_Vectorize(t *testing.T) {
	client := &fakeClient{}
	p := &Passage{Client: client, BatchSize: 2}

	results, err := p.Vectorize(context.Background(), []string{"abc", "  ", "de", "fghi"})
	require.NoError(t, err)
	require.Len(t, results, 4)

	assert.Equal(t, [][]string{{"abc", "de"}, {"fghi"}}, client.batches)
	assert.Equal(t, []float64{3, 1}, results[0].Vector)
	assert.Equal(t, []float64{2, 1}, results[2].Vector)
	assert.Equal(t, []float64{4, 1}, results[3].Vector)

	assert.True(t, results[1].Degraded)
	assert.Len(t, results[1].Vector, 2)
	assert.True(t, IsUndefined(results[1].Vector))
}

func TestPassage_SourceFailureCarriesRecordRange(t *testing.T) {
	client := &fakeClient{failAt: 2}
	p := &Passage{Client: client, BatchSize: 2}

	_, err := p.Vectorize(context.Background(), []string{"a", "b", "c", "d", "e"})
	require.Error(t, err)

	var srcErr *SourceError
	require.ErrorAs(t, err, &srcErr)
	assert.Equal(t, 2, srcErr.First)
	assert.Equal(t, 3, srcErr.Last)
	assert.Contains(t, err.Error(), "connection refused")
}
