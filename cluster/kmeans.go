package cluster

import (
	"context"
	"math"
	"math/rand/v2"

	"golang.org/x/sync/errgroup"
)

type kmeansResult struct {
	centroids [][]float64
	labels    []int
	sizes     []int
	sse       float64
	iters     int
}

func squaredL2(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

// nearest returns the closest centroid and its squared distance. Ties keep
// the lowest centroid index.
func nearest(vec []float64, centroids [][]float64) (int, float64) {
	best, bestDist := 0, math.Inf(1)
	for j, c := range centroids {
		if d := squaredL2(vec, c); d < bestDist {
			best, bestDist = j, d
		}
	}
	return best, bestDist
}

// seedPlusPlus picks k initial centroids with k-means++ sampling.
func seedPlusPlus(f *Features, k int, rng *rand.Rand) [][]float64 {
	n := f.Len()
	centroids := make([][]float64, 0, k)
	centroids = append(centroids, clone(f.row(rng.IntN(n))))

	dist := make([]float64, n)
	for i := range dist {
		dist[i] = squaredL2(f.row(i), centroids[0])
	}

	for len(centroids) < k {
		var total float64
		for _, d := range dist {
			total += d
		}

		next := 0
		if total > 0 {
			target := rng.Float64() * total
			for i, d := range dist {
				target -= d
				if target < 0 {
					next = i
					break
				}
				next = i
			}
		} else {
			// All remaining points coincide with a centroid.
			next = rng.IntN(n)
		}

		c := clone(f.row(next))
		centroids = append(centroids, c)
		for i := range dist {
			if d := squaredL2(f.row(i), c); d < dist[i] {
				dist[i] = d
			}
		}
	}
	return centroids
}

// lloyd refines centroids in place until assignments stop changing or
// maxIter is reached.
func lloyd(f *Features, centroids [][]float64, maxIter int) kmeansResult {
	n, d, k := f.Len(), f.Dim(), len(centroids)
	labels := make([]int, n)
	for i := range labels {
		labels[i] = -1
	}
	dists := make([]float64, n)

	assign := func() bool {
		changed := false
		for i := 0; i < n; i++ {
			j, dist := nearest(f.row(i), centroids)
			dists[i] = dist
			if labels[i] != j {
				labels[i] = j
				changed = true
			}
		}
		return changed
	}

	iters := 0
	for ; iters < maxIter; iters++ {
		if !assign() {
			break
		}

		counts := make([]int, k)
		sums := make([][]float64, k)
		for j := range sums {
			sums[j] = make([]float64, d)
		}
		for i := 0; i < n; i++ {
			j := labels[i]
			counts[j]++
			for c, x := range f.row(i) {
				sums[j][c] += x
			}
		}

		for j := 0; j < k; j++ {
			if counts[j] > 0 {
				for c := range sums[j] {
					centroids[j][c] = sums[j][c] / float64(counts[j])
				}
				continue
			}
			// Move an empty centroid onto the worst-fit point.
			far := 0
			for i := 1; i < n; i++ {
				if dists[i] > dists[far] {
					far = i
				}
			}
			copy(centroids[j], f.row(far))
			dists[far] = 0
		}
	}
	assign()

	res := kmeansResult{centroids: centroids, labels: labels, sizes: make([]int, k), iters: iters}
	for i, j := range labels {
		res.sizes[j]++
		res.sse += dists[i]
	}
	return res
}

// fit runs the configured number of seeded restarts for k clusters and
// keeps the one with the lowest SSE; ties go to the earliest restart.
func (e *Engine) fit(ctx context.Context, f *Features, k int) (kmeansResult, error) {
	runs := make([]kmeansResult, e.cfg.Restarts)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers())
	for r := range runs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			rng := rand.New(rand.NewPCG(e.cfg.Seed, uint64(k)<<32|uint64(r)))
			runs[r] = lloyd(f, seedPlusPlus(f, k, rng), e.cfg.MaxIter)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return kmeansResult{}, err
	}

	best := 0
	for r := 1; r < len(runs); r++ {
		if runs[r].sse < runs[best].sse {
			best = r
		}
	}
	return runs[best], nil
}

// extend starts k+1 clusters from a k-cluster solution by adding the point
// farthest from its centroid. The result never has a higher SSE than prev.
func extend(f *Features, prev kmeansResult, maxIter int) kmeansResult {
	centroids := make([][]float64, 0, len(prev.centroids)+1)
	for _, c := range prev.centroids {
		centroids = append(centroids, clone(c))
	}

	far, farDist := 0, -1.0
	for i := 0; i < f.Len(); i++ {
		if _, d := nearest(f.row(i), prev.centroids); d > farDist {
			far, farDist = i, d
		}
	}
	centroids = append(centroids, clone(f.row(far)))
	return lloyd(f, centroids, maxIter)
}

func clone(v []float64) []float64 {
	return append([]float64(nil), v...)
}
