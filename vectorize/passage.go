package vectorize

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"jobmap/pkg/embedding"
)

// Passage embeds each text whole through an embedding client. Texts that
// are empty after trimming are not sent and come back degraded.
type Passage struct {
	Client    embedding.Client
	BatchSize int
	Logger    *zap.Logger
}

func (p *Passage) Name() string { return "passage" }

func (p *Passage) Vectorize(ctx context.Context, texts []string) ([]Result, error) {
	results := make([]Result, len(texts))

	var idx []int
	var batch []string
	dim := 0

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		vectors, err := p.Client.GetEmbeddings(ctx, batch)
		if err != nil {
			return &SourceError{First: idx[0], Last: idx[len(idx)-1], Err: err}
		}
		if len(vectors) != len(batch) {
			return &SourceError{First: idx[0], Last: idx[len(idx)-1],
				Err: fmt.Errorf("%w: got %d for %d inputs", embedding.ErrCountMismatch, len(vectors), len(batch))}
		}
		for j, i := range idx {
			if dim == 0 {
				dim = len(vectors[j])
			}
			if len(vectors[j]) != dim || dim == 0 {
				return &SourceError{First: i, Last: i,
					Err: fmt.Errorf("embedding has %d dimensions, expected %d", len(vectors[j]), dim)}
			}
			results[i] = Result{Vector: toFloat64(vectors[j]), Tokens: 1}
		}
		p.logger().Debug("embedded batch", zap.Int("first", idx[0]), zap.Int("size", len(batch)))
		idx, batch = idx[:0], batch[:0]
		return nil
	}

	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			results[i] = Result{Degraded: true}
			continue
		}
		idx = append(idx, i)
		batch = append(batch, text)
		if len(batch) >= p.batchSize() {
			if err := flush(); err != nil {
				return nil, err
			}
		}
	}
	if err := flush(); err != nil {
		return nil, err
	}

	for i := range results {
		if results[i].Degraded {
			results[i].Vector = Undefined(dim)
		}
	}
	return results, nil
}

func (p *Passage) batchSize() int {
	if p.BatchSize > 0 {
		return p.BatchSize
	}
	return 32
}

func (p *Passage) logger() *zap.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return zap.NewNop()
}
