package cluster

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testEngine() *Engine {
	return NewEngine(Config{Restarts: 10, MaxIter: 100, Seed: 42, Workers: 4}, zap.NewNop())
}

func mustStandardize(t *testing.T, vectors [][]float64) *Features {
	t.Helper()
	f, err := Standardize(vectors)
	require.NoError(t, err)
	return f
}

func TestStandardize(t *testing.T) {
	f := mustStandardize(t, [][]float64{{1, 7}, {3, 7}, {5, 7}})

	assert.Equal(t, []float64{3, 7}, f.Scaler.Mean)
	assert.InDelta(t, math.Sqrt(8.0/3.0), f.Scaler.Scale[0], 1e-12)
	assert.Equal(t, 1.0, f.Scaler.Scale[1])

	var sum, sq float64
	for i := 0; i < f.Len(); i++ {
		x := f.X.At(i, 0)
		sum += x
		sq += x * x
		assert.Equal(t, 0.0, f.X.At(i, 1))
	}
	assert.InDelta(t, 0, sum, 1e-12)
	assert.InDelta(t, 3, sq, 1e-12)
}

func TestStandardize_Rejects(t *testing.T) {
	_, err := Standardize(nil)
	assert.ErrorIs(t, err, ErrNoVectors)

	_, err = Standardize([][]float64{{1, 2}, {1}})
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	_, err = Standardize([][]float64{{1, 2}, {math.NaN(), 1}})
	assert.ErrorIs(t, err, ErrUndefinedVector)
}

func TestSelectK_FindsFourGroups(t *testing.T) {
	f := mustStandardize(t, blobs(12, 50, 4, 7))

	sel, err := testEngine().SelectK(context.Background(), f, 11)
	require.NoError(t, err)

	assert.Equal(t, 4, sel.K)
	assert.Equal(t, 11, sel.TopEnd)
	assert.Len(t, sel.Curve, 11)
	assert.Empty(t, sel.Warnings)
}

func TestSelectK_Deterministic(t *testing.T) {
	f := mustStandardize(t, blobs(20, 8, 3, 3))
	e := testEngine()

	a, err := e.SelectK(context.Background(), f, 8)
	require.NoError(t, err)
	b, err := e.SelectK(context.Background(), f, 8)
	require.NoError(t, err)

	assert.Equal(t, a.K, b.K)
	assert.Equal(t, a.Curve, b.Curve)
}

func TestSelectK_CurveIsNonIncreasing(t *testing.T) {
	for _, seed := range []uint64{1, 2, 3, 4} {
		f := mustStandardize(t, blobs(15, 6, 5, seed))
		sel, err := testEngine().SelectK(context.Background(), f, 10)
		require.NoError(t, err)

		for i := 1; i < len(sel.Curve); i++ {
			assert.LessOrEqual(t, sel.Curve[i].SSE, sel.Curve[i-1].SSE+1e-9,
				"seed %d: sse(k=%d) > sse(k=%d)", seed, i+1, i)
		}
	}
}

func TestSelectK_ClampsTopEnd(t *testing.T) {
	f := mustStandardize(t, blobs(3, 4, 3, 9))

	sel, err := testEngine().SelectK(context.Background(), f, 11)
	require.NoError(t, err)

	assert.Equal(t, 3, sel.TopEnd)
	assert.Len(t, sel.Curve, 3)
	assert.GreaterOrEqual(t, sel.K, 1)
	assert.LessOrEqual(t, sel.K, 3)
}

func TestSelectK_KneeAtBoundary(t *testing.T) {
	f := mustStandardize(t, blobs(4, 4, 2, 5))

	sel, err := testEngine().SelectK(context.Background(), f, 2)
	require.NoError(t, err)

	assert.Equal(t, 2, sel.K)
	require.Len(t, sel.Warnings, 1)
	assert.Equal(t, WarnKneeAtBoundary, sel.Warnings[0].Kind)
}

func TestSelectK_NoKnee(t *testing.T) {
	// Identical vectors: every k has zero inertia.
	vectors := [][]float64{{1, 1}, {1, 1}, {1, 1}, {1, 1}}
	f := mustStandardize(t, vectors)

	sel, err := testEngine().SelectK(context.Background(), f, 3)
	require.NoError(t, err)

	assert.Equal(t, 3, sel.K)
	require.Len(t, sel.Warnings, 1)
	assert.Equal(t, WarnNoKnee, sel.Warnings[0].Kind)
}

func TestSelectK_InvalidTopEnd(t *testing.T) {
	f := mustStandardize(t, blobs(5, 2, 2, 1))
	_, err := testEngine().SelectK(context.Background(), f, 1)
	assert.ErrorIs(t, err, ErrInvalidTopEnd)
}

func TestSelectK_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := mustStandardize(t, blobs(10, 3, 2, 1))
	_, err := testEngine().SelectK(ctx, f, 5)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCluster(t *testing.T) {
	vectors := blobs(30, 10, 3, 11)
	f := mustStandardize(t, vectors)

	for k := 1; k <= 5; k++ {
		a, err := testEngine().Cluster(context.Background(), f, k)
		require.NoError(t, err)
		require.Len(t, a.Labels, len(vectors))

		distinct := map[int]bool{}
		for _, l := range a.Labels {
			assert.GreaterOrEqual(t, l, 0)
			assert.Less(t, l, k)
			distinct[l] = true
		}
		assert.Len(t, distinct, k)
		assert.Empty(t, a.Empty())
	}
}

func TestCluster_RecoversGroups(t *testing.T) {
	vectors := blobs(12, 9, 3, 13)
	a, err := Cluster(context.Background(), vectors, 3, Config{Restarts: 5, Seed: 42})
	require.NoError(t, err)

	for i := range vectors {
		for j := range vectors {
			assert.Equal(t, i%3 == j%3, a.Labels[i] == a.Labels[j], "records %d and %d", i, j)
		}
	}
}

func TestCluster_InvalidCount(t *testing.T) {
	f := mustStandardize(t, blobs(4, 2, 2, 1))
	for _, k := range []int{0, -1, 5} {
		_, err := testEngine().Cluster(context.Background(), f, k)
		assert.ErrorIs(t, err, ErrInvalidClusterCount, "k=%d", k)
	}
}

func TestCluster_UndefinedVector(t *testing.T) {
	_, err := Cluster(context.Background(), [][]float64{{1, 2}, {math.NaN(), 0}}, 1, DefaultConfig())
	assert.ErrorIs(t, err, ErrUndefinedVector)
}

func TestCluster_EmptyClustersAreReported(t *testing.T) {
	f := mustStandardize(t, [][]float64{{2, 2}, {2, 2}, {2, 2}})

	a, err := testEngine().Cluster(context.Background(), f, 2)
	require.NoError(t, err)

	assert.Len(t, a.Labels, 3)
	assert.Equal(t, []int{1}, a.Empty())
}
