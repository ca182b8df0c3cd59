package vectorize

import (
	"context"
	"runtime"
	"strings"
	"unicode/utf8"

	"github.com/kljensen/snowball"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"jobmap/pkg/embedding"
)

// WordAverage represents a text as the mean of its word vectors.
type WordAverage struct {
	Source         embedding.WordSource
	MinTokenLength int
	// StemFallback retries a vocabulary miss with its English stem.
	StemFallback bool
	Workers      int
	Logger       *zap.Logger
}

func (w *WordAverage) Name() string { return "word-average" }

// VectorizeText lower-cases text, splits it on whitespace, drops tokens
// shorter than MinTokenLength runes and averages the vectors of the tokens
// the source knows. With no known token the result is degraded.
func (w *WordAverage) VectorizeText(text string) Result {
	dim := w.Source.Dimension()
	sum := make([]float64, dim)
	var res Result

	for _, token := range strings.Fields(strings.ToLower(text)) {
		if utf8.RuneCountInString(token) < w.MinTokenLength {
			continue
		}
		res.Tokens++

		vec, ok := w.lookup(token)
		if !ok {
			res.Excluded++
			continue
		}
		for i, x := range vec {
			sum[i] += float64(x)
		}
	}

	found := res.Tokens - res.Excluded
	if found == 0 {
		res.Vector = Undefined(dim)
		res.Degraded = true
		return res
	}
	for i := range sum {
		sum[i] /= float64(found)
	}
	res.Vector = sum
	return res
}

func (w *WordAverage) lookup(token string) ([]float32, bool) {
	if vec, ok := w.Source.Lookup(token); ok {
		return vec, true
	}
	if !w.StemFallback {
		return nil, false
	}
	stem, err := snowball.Stem(token, "english", true)
	if err != nil || stem == token {
		return nil, false
	}
	return w.Source.Lookup(stem)
}

// Vectorize runs VectorizeText over texts concurrently.
func (w *WordAverage) Vectorize(ctx context.Context, texts []string) ([]Result, error) {
	logger := w.logger()
	results := make([]Result, len(texts))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(w.workers())
	for i, text := range texts {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = w.VectorizeText(text)
			if results[i].Excluded > 0 {
				logger.Debug("excluded tokens missing from vocabulary",
					zap.Int("record", i),
					zap.Int("excluded", results[i].Excluded),
					zap.Int("tokens", results[i].Tokens))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (w *WordAverage) workers() int {
	if w.Workers > 0 {
		return w.Workers
	}
	return runtime.GOMAXPROCS(0)
}

func (w *WordAverage) logger() *zap.Logger {
	if w.Logger != nil {
		return w.Logger
	}
	return zap.NewNop()
}
