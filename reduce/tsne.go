package reduce

import (
	"context"
	"math"
	"math/rand/v2"
)

const (
	defaultPerplexity   = 30
	defaultIterations   = 1000
	minLearningRate     = 50
	exaggerationIters   = 250
	earlyExaggeration   = 12
	perplexityTol       = 1e-5
	perplexityTries     = 50
	minGain             = 0.01
)

// TSNE is exact t-SNE with a seeded initial layout. The same input and seed
// always give the same projection. A zero LearningRate scales with the
// number of points.
type TSNE struct {
	Perplexity   float64
	Iterations   int
	LearningRate float64
	Seed         uint64
}

func (*TSNE) Method() Method { return MethodTSNE }

func (t *TSNE) Reduce(ctx context.Context, vectors [][]float64) (Projection, error) {
	rows, index, err := defined(vectors)
	if err != nil {
		return nil, err
	}
	out := make(Projection, len(rows))
	if len(rows) < 2 {
		for _, i := range index {
			out[i] = Point{}
		}
		return out, nil
	}

	y, err := t.embed(ctx, rows)
	if err != nil {
		return nil, err
	}
	for r, i := range index {
		out[i] = Point{X: y[r][0], Y: y[r][1]}
	}
	return out, nil
}

func (t *TSNE) params(n int) (perp float64, iters int, lr float64) {
	perp, iters, lr = t.Perplexity, t.Iterations, t.LearningRate
	if perp <= 0 {
		perp = defaultPerplexity
	}
	if iters <= 0 {
		iters = defaultIterations
	}
	if lr <= 0 {
		lr = math.Max(float64(n)/earlyExaggeration/4, minLearningRate)
	}
	// a row cannot have more effective neighbours than other points
	if limit := float64(n-1) / 3; perp > limit {
		perp = math.Max(limit, 1)
	}
	return perp, iters, lr
}

func (t *TSNE) embed(ctx context.Context, x [][]float64) ([][2]float64, error) {
	n := len(x)
	perp, iters, lr := t.params(n)
	p := jointProbabilities(pairwiseSquared(x), perp)

	rng := rand.New(rand.NewPCG(t.Seed, 0x74736e65))
	y := make([][2]float64, n)
	for i := range y {
		y[i] = [2]float64{rng.NormFloat64() * 1e-4, rng.NormFloat64() * 1e-4}
	}
	update := make([][2]float64, n)
	gains := make([][2]float64, n)
	for i := range gains {
		gains[i] = [2]float64{1, 1}
	}
	num := make([]float64, n*n)
	grad := make([][2]float64, n)

	for it := 0; it < iters; it++ {
		if it%50 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		exag, momentum := 1.0, 0.8
		if it < exaggerationIters {
			exag, momentum = earlyExaggeration, 0.5
		}

		sumQ := 0.0
		for i := 0; i < n; i++ {
			for j := i + 1; j < n; j++ {
				dx, dy := y[i][0]-y[j][0], y[i][1]-y[j][1]
				q := 1 / (1 + dx*dx + dy*dy)
				num[i*n+j], num[j*n+i] = q, q
				sumQ += 2 * q
			}
		}
		sumQ = math.Max(sumQ, 1e-12)

		for i := 0; i < n; i++ {
			var g [2]float64
			for j := 0; j < n; j++ {
				if i == j {
					continue
				}
				q := num[i*n+j]
				m := (exag*p[i*n+j] - q/sumQ) * q
				g[0] += m * (y[i][0] - y[j][0])
				g[1] += m * (y[i][1] - y[j][1])
			}
			grad[i] = [2]float64{4 * g[0], 4 * g[1]}
		}

		var mean [2]float64
		for i := 0; i < n; i++ {
			for c := 0; c < 2; c++ {
				if update[i][c]*grad[i][c] < 0 {
					gains[i][c] += 0.2
				} else {
					gains[i][c] *= 0.8
				}
				gains[i][c] = math.Max(gains[i][c], minGain)
				update[i][c] = momentum*update[i][c] - lr*gains[i][c]*grad[i][c]
				y[i][c] += update[i][c]
				mean[c] += y[i][c]
			}
		}
		for i := range y {
			y[i][0] -= mean[0] / float64(n)
			y[i][1] -= mean[1] / float64(n)
		}
	}
	return y, nil
}

func pairwiseSquared(x [][]float64) []float64 {
	n := len(x)
	d := make([]float64, n*n)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			s := 0.0
			for k := range x[i] {
				diff := x[i][k] - x[j][k]
				s += diff * diff
			}
			d[i*n+j], d[j*n+i] = s, s
		}
	}
	return d
}

// jointProbabilities finds a per-row precision matching the perplexity,
// then symmetrizes the conditional affinities.
func jointProbabilities(dist []float64, perp float64) []float64 {
	n := int(math.Sqrt(float64(len(dist))))
	cond := make([]float64, n*n)
	target := math.Log(perp)
	row := make([]float64, n)

	for i := 0; i < n; i++ {
		floor := math.Inf(1)
		for j := 0; j < n; j++ {
			if j != i && dist[i*n+j] < floor {
				floor = dist[i*n+j]
			}
		}
		beta, lo, hi := 1.0, math.Inf(-1), math.Inf(1)
		for try := 0; try < perplexityTries; try++ {
			sum, weighted := 0.0, 0.0
			for j := 0; j < n; j++ {
				if j == i {
					row[j] = 0
					continue
				}
				shifted := dist[i*n+j] - floor
				row[j] = math.Exp(-shifted * beta)
				sum += row[j]
				weighted += shifted * row[j]
			}
			h := math.Log(sum) + beta*weighted/sum
			for j := range row {
				row[j] /= sum
			}
			diff := h - target
			if math.Abs(diff) < perplexityTol {
				break
			}
			if diff > 0 {
				lo = beta
				if math.IsInf(hi, 1) {
					beta *= 2
				} else {
					beta = (beta + hi) / 2
				}
			} else {
				hi = beta
				if math.IsInf(lo, -1) {
					beta /= 2
				} else {
					beta = (beta + lo) / 2
				}
			}
		}
		copy(cond[i*n:(i+1)*n], row)
	}

	p := make([]float64, n*n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			p[i*n+j] = math.Max((cond[i*n+j]+cond[j*n+i])/(2*float64(n)), 1e-12)
		}
	}
	return p
}
