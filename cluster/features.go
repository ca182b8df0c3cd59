package cluster

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Scaler holds per-dimension standardization parameters. Scale uses the
// population standard deviation; constant dimensions get scale 1.
type Scaler struct {
	Mean  []float64
	Scale []float64
}

// FitScaler computes the parameters for the rows of x.
func FitScaler(x mat.Matrix) Scaler {
	n, d := x.Dims()
	s := Scaler{Mean: make([]float64, d), Scale: make([]float64, d)}
	col := make([]float64, n)
	for j := 0; j < d; j++ {
		mat.Col(col, j, x)
		mean, std := stat.PopMeanStdDev(col, nil)
		if std == 0 || math.IsNaN(std) {
			std = 1
		}
		s.Mean[j] = mean
		s.Scale[j] = std
	}
	return s
}

// Transform returns the standardized copy of x.
func (s Scaler) Transform(x mat.Matrix) *mat.Dense {
	n, d := x.Dims()
	out := mat.NewDense(n, d, nil)
	out.Apply(func(_, j int, v float64) float64 {
		return (v - s.Mean[j]) / s.Scale[j]
	}, x)
	return out
}

// Features is a standardized matrix (one row per vector) plus the scaler
// that produced it. Fit it once per run and share it between SelectK and
// Cluster.
type Features struct {
	X      *mat.Dense
	Scaler Scaler
}

// Len returns the number of rows.
func (f *Features) Len() int {
	n, _ := f.X.Dims()
	return n
}

// Dim returns the number of columns.
func (f *Features) Dim() int {
	_, d := f.X.Dims()
	return d
}

func (f *Features) row(i int) []float64 {
	return f.X.RawRowView(i)
}

// Standardize validates vectors and fits the scaler on them.
func Standardize(vectors [][]float64) (*Features, error) {
	raw, err := Matrix(vectors)
	if err != nil {
		return nil, err
	}
	scaler := FitScaler(raw)
	return &Features{X: scaler.Transform(raw), Scaler: scaler}, nil
}

// Matrix copies vectors into a dense matrix, rejecting empty input, ragged
// rows and undefined components.
func Matrix(vectors [][]float64) (*mat.Dense, error) {
	if len(vectors) == 0 {
		return nil, ErrNoVectors
	}
	d := len(vectors[0])
	if d == 0 {
		return nil, fmt.Errorf("%w: vector 0 is empty", ErrDimensionMismatch)
	}
	m := mat.NewDense(len(vectors), d, nil)
	for i, v := range vectors {
		if len(v) != d {
			return nil, fmt.Errorf("%w: vector %d has %d, expected %d", ErrDimensionMismatch, i, len(v), d)
		}
		for _, x := range v {
			if math.IsNaN(x) || math.IsInf(x, 0) {
				return nil, fmt.Errorf("%w: vector %d", ErrUndefinedVector, i)
			}
		}
		m.SetRow(i, v)
	}
	return m, nil
}
