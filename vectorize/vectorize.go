// Package vectorize turns record text into fixed-length vectors using an
// embedding source. Two strategies exist: averaging pre-trained word
// vectors, and embedding the whole text at once.
package vectorize

import (
	"context"
	"fmt"
	"math"
)

// Result is the vector for one text plus how much of the text was usable.
// A degraded result carries an all-NaN vector.
type Result struct {
	Vector   []float64
	Tokens   int
	Excluded int
	Degraded bool
}

// Strategy vectorizes a batch of texts. The output is aligned with texts.
type Strategy interface {
	Name() string
	Vectorize(ctx context.Context, texts []string) ([]Result, error)
}

// SourceError reports a failed call to the embedding source together with
// the range of record indices the call covered.
type SourceError struct {
	First int
	Last  int
	Err   error
}

func (e *SourceError) Error() string {
	if e.First == e.Last {
		return fmt.Sprintf("embedding source failed for record %d: %v", e.First, e.Err)
	}
	return fmt.Sprintf("embedding source failed for records %d-%d: %v", e.First, e.Last, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

// Undefined returns a vector of dim NaN components.
func Undefined(dim int) []float64 {
	v := make([]float64, dim)
	for i := range v {
		v[i] = math.NaN()
	}
	return v
}

// IsUndefined reports whether v contains a NaN or infinite component.
func IsUndefined(v []float64) bool {
	if len(v) == 0 {
		return true
	}
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return true
		}
	}
	return false
}

// Summary totals a batch of results.
type Summary struct {
	Degraded []int
	Excluded int
	Tokens   int
}

func Summarize(results []Result) Summary {
	var s Summary
	for i, r := range results {
		if r.Degraded {
			s.Degraded = append(s.Degraded, i)
		}
		s.Excluded += r.Excluded
		s.Tokens += r.Tokens
	}
	return s
}

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}
