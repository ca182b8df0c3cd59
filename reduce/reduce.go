// Package reduce projects record vectors onto two dimensions for plotting.
// Projections are for display only and never feed clustering.
package reduce

import (
	"context"
	"fmt"
	"math"
	"strings"
)

// Point is a 2D coordinate.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Projection maps a record index to its coordinate. Records with undefined
// vectors have no entry.
type Projection map[int]Point

type Method string

const (
	MethodPCA  Method = "pca"
	MethodTSNE Method = "tsne"
)

// ParseMethod accepts "pca" or "tsne" in any case.
func ParseMethod(s string) (Method, error) {
	switch m := Method(strings.ToLower(strings.TrimSpace(s))); m {
	case MethodPCA, MethodTSNE:
		return m, nil
	}
	return "", fmt.Errorf("unknown projection method %q", s)
}

// Reducer is one projection strategy.
type Reducer interface {
	Method() Method
	Reduce(ctx context.Context, vectors [][]float64) (Projection, error)
}

// ForMethod returns the reducer for m. tsne may be nil for defaults.
func ForMethod(m Method, tsne *TSNE) (Reducer, error) {
	switch m {
	case MethodPCA:
		return PCA{}, nil
	case MethodTSNE:
		if tsne == nil {
			tsne = &TSNE{}
		}
		return tsne, nil
	}
	return nil, fmt.Errorf("unknown projection method %q", m)
}

// defined drops vectors with NaN or Inf components and returns the kept
// rows with their original indices.
func defined(vectors [][]float64) ([][]float64, []int, error) {
	var rows [][]float64
	var index []int
	dim := -1
	for i, v := range vectors {
		if len(v) == 0 || !finite(v) {
			continue
		}
		if dim == -1 {
			dim = len(v)
		} else if len(v) != dim {
			return nil, nil, fmt.Errorf("vector %d has %d dimensions, expected %d", i, len(v), dim)
		}
		rows = append(rows, v)
		index = append(index, i)
	}
	return rows, index, nil
}

func finite(v []float64) bool {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}
