// Package pipeline runs records through vectorization, optimal-k
// selection, clustering, projection and assembly.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"jobmap/cluster"
	"jobmap/pkg/qdrantdb"
	"jobmap/record"
	"jobmap/reduce"
	"jobmap/vectorize"
	"jobmap/viz"
)

type Stage string

const (
	StageValidate  Stage = "validate"
	StageVectorize Stage = "vectorize"
	StageSelect    Stage = "select_k"
	StageCluster   Stage = "cluster"
	StageReduce    Stage = "reduce"
	StagePersist   Stage = "persist"
	StageSink      Stage = "sink"
)

// DefaultTopEnd caps the k sweep when Options leaves it unset.
const DefaultTopEnd = 15

var ErrNoUsableRecords = errors.New("no usable records")

// StageError reports the stage that failed and, when known, the first
// record involved. Record is -1 otherwise.
type StageError struct {
	Stage  Stage
	Record int
	Err    error
}

func (e *StageError) Error() string {
	if e.Record >= 0 {
		return fmt.Sprintf("%s failed at record %d: %v", e.Stage, e.Record, e.Err)
	}
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Sink receives clustered postings, e.g. a vector database.
type Sink interface {
	SaveJobs(ctx context.Context, points []qdrantdb.JobPoint) error
}

type Options struct {
	TextField record.Field
	TopEnd    int
	Viz       viz.Options

	// Save writes the dataset and both charts to OutputDir.
	Save      bool
	OutputDir string
	Query     string
	Height    int
}

// Report is everything a run produced.
type Report struct {
	RunID     string               `json:"run_id"`
	K         int                  `json:"k"`
	TopEnd    int                  `json:"top_end"`
	Curve     cluster.InertiaCurve `json:"curve"`
	Warnings  []cluster.Warning    `json:"warnings,omitempty"`
	Points    []viz.Point          `json:"points"`
	Degraded  []int                `json:"degraded,omitempty"`
	Excluded  int                  `json:"excluded_tokens"`
	Tokens    int                  `json:"tokens"`
	Empty     []int                `json:"empty_clusters,omitempty"`
	Artifacts []string             `json:"artifacts,omitempty"`
}

type Runner struct {
	Strategy vectorize.Strategy
	Engine   *cluster.Engine
	Reducer  reduce.Reducer
	Sink     Sink
	Logger   *zap.Logger

	now func() time.Time
}

func NewRunner(strategy vectorize.Strategy, engine *cluster.Engine, reducer reduce.Reducer, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{Strategy: strategy, Engine: engine, Reducer: reducer, Logger: logger, now: time.Now}
}

func (r *Runner) Run(ctx context.Context, records []record.Record, opts Options) (*Report, error) {
	if opts.TextField == "" {
		opts.TextField = record.FieldSummary
	}
	if opts.TopEnd == 0 {
		opts.TopEnd = DefaultTopEnd
	}
	report := &Report{RunID: uuid.NewString()}
	log := r.Logger.With(zap.String("run_id", report.RunID))

	if len(records) == 0 {
		return nil, ErrNoUsableRecords
	}
	recs := slices.Clone(records)
	if err := record.Validate(recs); err != nil {
		idx := -1
		var invalid *record.InvalidError
		if errors.As(err, &invalid) {
			idx = invalid.Index
		}
		return nil, &StageError{Stage: StageValidate, Record: idx, Err: err}
	}

	log.Info("vectorizing records",
		zap.Int("records", len(recs)),
		zap.String("field", string(opts.TextField)),
		zap.String("strategy", r.Strategy.Name()))
	results, err := r.Strategy.Vectorize(ctx, record.Texts(recs, opts.TextField))
	if err != nil {
		idx := -1
		var src *vectorize.SourceError
		if errors.As(err, &src) {
			idx = src.First
		}
		return nil, &StageError{Stage: StageVectorize, Record: idx, Err: err}
	}
	summary := vectorize.Summarize(results)
	report.Degraded = summary.Degraded
	report.Excluded = summary.Excluded
	report.Tokens = summary.Tokens

	// degraded records leave the run here, before any stage sees them
	var vectors [][]float64
	var index []int
	for i, res := range results {
		if res.Degraded || vectorize.IsUndefined(res.Vector) {
			continue
		}
		vectors = append(vectors, res.Vector)
		index = append(index, i)
	}
	if len(report.Degraded) > 0 {
		log.Warn("dropping degraded records",
			zap.Int("degraded", len(report.Degraded)),
			zap.Int("usable", len(vectors)))
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("%w: all %d records degraded", ErrNoUsableRecords, len(recs))
	}

	features, err := cluster.Standardize(vectors)
	if err != nil {
		return nil, &StageError{Stage: StageSelect, Record: -1, Err: err}
	}
	sel, err := r.Engine.SelectK(ctx, features, opts.TopEnd)
	if err != nil {
		return nil, &StageError{Stage: StageSelect, Record: -1, Err: err}
	}
	report.K, report.TopEnd, report.Curve, report.Warnings = sel.K, sel.TopEnd, sel.Curve, sel.Warnings

	asg, err := r.Engine.Cluster(ctx, features, sel.K)
	if err != nil {
		return nil, &StageError{Stage: StageCluster, Record: -1, Err: err}
	}
	report.Empty = asg.Empty()

	labels := make(map[int]int, len(index))
	raw := make([][]float64, len(recs))
	for row, i := range index {
		labels[i] = asg.Labels[row]
		raw[i] = vectors[row]
	}

	proj, err := r.Reducer.Reduce(ctx, raw)
	if err != nil {
		return nil, &StageError{Stage: StageReduce, Record: -1, Err: err}
	}
	report.Points = viz.Assemble(recs, labels, proj, opts.Viz)
	log.Info("clustered records",
		zap.Int("k", report.K),
		zap.Int("points", len(report.Points)),
		zap.Int("excluded_tokens", report.Excluded))

	if opts.Save {
		paths, err := r.persist(report, opts)
		if err != nil {
			return nil, &StageError{Stage: StagePersist, Record: -1, Err: err}
		}
		report.Artifacts = paths
		log.Info("saved artifacts", zap.Strings("paths", paths))
	}

	if r.Sink != nil {
		if err := r.Sink.SaveJobs(ctx, jobPoints(report, recs, raw, labels)); err != nil {
			return nil, &StageError{Stage: StageSink, Record: -1, Err: err}
		}
	}
	return report, nil
}

func (r *Runner) persist(report *Report, opts Options) ([]string, error) {
	dir := opts.OutputDir
	if dir == "" {
		dir = "."
	}
	now := r.now
	if now == nil {
		now = time.Now
	}
	title := viz.Title{
		Date:      now(),
		TextField: opts.TextField,
		Source:    r.Strategy.Name(),
		Method:    r.Reducer.Method(),
		Query:     opts.Query,
	}

	dataset := filepath.Join(dir, viz.FileName(title.String(), ".json"))
	if err := viz.WriteDataset(dataset, report.Points); err != nil {
		return nil, err
	}
	scatter, err := viz.SaveScatter(dir, report.Points, viz.ChartOptions{
		Title:    title.String(),
		Method:   r.Reducer.Method(),
		Height:   opts.Height,
		ShowText: opts.Viz.ShowText,
	})
	if err != nil {
		return nil, err
	}
	elbow, err := viz.SaveElbow(dir, report.Curve, report.K, title.Elbow())
	if err != nil {
		return nil, err
	}
	return []string{dataset, scatter, elbow}, nil
}

func jobPoints(report *Report, recs []record.Record, raw [][]float64, labels map[int]int) []qdrantdb.JobPoint {
	out := make([]qdrantdb.JobPoint, 0, len(report.Points))
	for _, p := range report.Points {
		rec := recs[p.Index]
		vec := make([]float32, len(raw[p.Index]))
		for j, x := range raw[p.Index] {
			vec[j] = float32(x)
		}
		out = append(out, qdrantdb.JobPoint{
			RunID:   report.RunID,
			Index:   p.Index,
			Title:   rec.Title,
			Company: rec.Company,
			Summary: rec.Summary,
			Link:    rec.Link,
			Cluster: labels[p.Index],
			X:       p.X,
			Y:       p.Y,
			Vector:  vec,
		})
	}
	return out
}
