package cluster

import (
	"context"
	"fmt"
	"runtime"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type Config struct {
	Restarts int
	MaxIter  int
	Seed     uint64
	Workers  int
	// Sensitivity of the knee search; 0 means 1.
	Sensitivity float64
}

// DefaultConfig mirrors the settings the elbow plots were tuned with.
func DefaultConfig() Config {
	return Config{Restarts: 30, MaxIter: 300, Seed: 42, Sensitivity: 1}
}

// Engine runs the optimal-k sweep and the final clustering with one fixed
// configuration.
type Engine struct {
	cfg    Config
	logger *zap.Logger
}

func NewEngine(cfg Config, logger *zap.Logger) *Engine {
	def := DefaultConfig()
	if cfg.Restarts <= 0 {
		cfg.Restarts = def.Restarts
	}
	if cfg.MaxIter <= 0 {
		cfg.MaxIter = def.MaxIter
	}
	if cfg.Sensitivity <= 0 {
		cfg.Sensitivity = def.Sensitivity
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{cfg: cfg, logger: logger}
}

func (e *Engine) workers() int {
	if e.cfg.Workers > 0 {
		return e.cfg.Workers
	}
	return runtime.GOMAXPROCS(0)
}

type WarningKind string

const (
	// WarnNoKnee: the search found no elbow and fell back to top_end.
	WarnNoKnee WarningKind = "no_knee"
	// WarnKneeAtBoundary: the elbow sits at top_end; a larger top_end may
	// move it.
	WarnKneeAtBoundary WarningKind = "knee_at_boundary"
)

type Warning struct {
	Kind    WarningKind `json:"kind"`
	Message string      `json:"message"`
}

func (w Warning) String() string { return w.Message }

// Selection is the outcome of SelectK.
type Selection struct {
	K        int          `json:"k"`
	TopEnd   int          `json:"top_end"`
	Curve    InertiaCurve `json:"curve"`
	Warnings []Warning    `json:"warnings,omitempty"`
}

// SelectK sweeps k = 1..topEnd over f and picks k at the elbow of the
// inertia curve. topEnd is clamped to the number of vectors.
func (e *Engine) SelectK(ctx context.Context, f *Features, topEnd int) (*Selection, error) {
	if topEnd < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidTopEnd, topEnd)
	}
	n := f.Len()
	if n == 0 {
		return nil, ErrNoVectors
	}
	if n < topEnd {
		e.logger.Info("clamping top_end to the number of vectors",
			zap.Int("top_end", topEnd), zap.Int("vectors", n))
		topEnd = n
	}

	runs := make([]kmeansResult, topEnd)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers())
	for i := range runs {
		g.Go(func() error {
			res, err := e.fit(gctx, f, i+1)
			if err != nil {
				return err
			}
			runs[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i := 1; i < len(runs); i++ {
		if runs[i].sse <= runs[i-1].sse {
			continue
		}
		warm := extend(f, runs[i-1], e.cfg.MaxIter)
		e.logger.Debug("re-ran k from the previous solution",
			zap.Int("k", i+1),
			zap.Float64("sse", runs[i].sse),
			zap.Float64("warm_sse", warm.sse))
		if warm.sse < runs[i].sse {
			runs[i] = warm
		}
	}

	sel := &Selection{TopEnd: topEnd, Curve: make(InertiaCurve, len(runs))}
	for i, r := range runs {
		sel.Curve[i] = InertiaPoint{K: i + 1, SSE: r.sse}
	}

	knee, ok := FindKnee(sel.Curve, e.cfg.Sensitivity)
	switch {
	case !ok:
		sel.K = topEnd
		sel.Warnings = append(sel.Warnings, Warning{
			Kind:    WarnNoKnee,
			Message: fmt.Sprintf("no elbow found, returning the maximum allowed number of clusters (%d)", topEnd),
		})
	case knee == topEnd:
		sel.K = knee
		sel.Warnings = append(sel.Warnings, Warning{
			Kind:    WarnKneeAtBoundary,
			Message: fmt.Sprintf("elbow found at the maximum allowed number of clusters (%d), consider increasing top_end and re-running", topEnd),
		})
	default:
		sel.K = knee
	}

	for _, w := range sel.Warnings {
		e.logger.Warn("degenerate knee search", zap.String("kind", string(w.Kind)), zap.String("detail", w.Message))
	}
	e.logger.Info("optimal k selected", zap.Int("k", sel.K), zap.Int("top_end", topEnd))
	return sel, nil
}

// Assignment maps each vector (by row) to a cluster label in [0, k).
type Assignment struct {
	K      int
	Labels []int
	Sizes  []int
	SSE    float64
}

// Empty returns the labels that ended up with no members.
func (a *Assignment) Empty() []int {
	var out []int
	for j, s := range a.Sizes {
		if s == 0 {
			out = append(out, j)
		}
	}
	return out
}

// Cluster partitions f into k clusters.
func (e *Engine) Cluster(ctx context.Context, f *Features, k int) (*Assignment, error) {
	n := f.Len()
	if k < 1 || k > n {
		return nil, fmt.Errorf("%w: k=%d with %d vectors", ErrInvalidClusterCount, k, n)
	}

	res, err := e.fit(ctx, f, k)
	if err != nil {
		return nil, err
	}

	a := &Assignment{K: k, Labels: res.labels, Sizes: res.sizes, SSE: res.sse}
	if empty := a.Empty(); len(empty) > 0 {
		e.logger.Warn("clusters ended up empty", zap.Ints("labels", empty), zap.Int("k", k))
	}
	e.logger.Info("clustering complete",
		zap.Int("k", k),
		zap.Float64("sse", res.sse),
		zap.Int("iterations", res.iters))
	return a, nil
}

// SelectK standardizes vectors and runs the sweep with cfg.
func SelectK(ctx context.Context, vectors [][]float64, topEnd int, cfg Config) (*Selection, error) {
	f, err := Standardize(vectors)
	if err != nil {
		return nil, err
	}
	return NewEngine(cfg, nil).SelectK(ctx, f, topEnd)
}

// Cluster standardizes vectors and partitions them into k clusters.
func Cluster(ctx context.Context, vectors [][]float64, k int, cfg Config) (*Assignment, error) {
	f, err := Standardize(vectors)
	if err != nil {
		return nil, err
	}
	return NewEngine(cfg, nil).Cluster(ctx, f, k)
}
