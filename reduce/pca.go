package reduce

import (
	"context"
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// PCA projects onto the first two principal components. Component signs
// are fixed so the largest loading of each component is positive.
type PCA struct{}

func (PCA) Method() Method { return MethodPCA }

func (PCA) Reduce(_ context.Context, vectors [][]float64) (Projection, error) {
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

	n, d := len(rows), len(rows[0])
	x := mat.NewDense(n, d, nil)
	for i, r := range rows {
		x.SetRow(i, r)
	}

	var pc stat.PC
	if ok := pc.PrincipalComponents(x, nil); !ok {
		return nil, errors.New("pca: decomposition failed")
	}
	var vecs mat.Dense
	pc.VectorsTo(&vecs)
	_, nc := vecs.Dims()
	nc = min(nc, 2)

	means := make([]float64, d)
	for j := range means {
		means[j] = stat.Mean(mat.Col(nil, j, x), nil)
	}
	centered := mat.NewDense(n, d, nil)
	centered.Apply(func(_, j int, v float64) float64 { return v - means[j] }, x)

	components := mat.DenseCopyOf(vecs.Slice(0, d, 0, nc))
	for c := 0; c < nc; c++ {
		flipSign(components, c)
	}

	var proj mat.Dense
	proj.Mul(centered, components)

	for r, i := range index {
		p := Point{X: proj.At(r, 0)}
		if nc > 1 {
			p.Y = proj.At(r, 1)
		}
		out[i] = p
	}
	return out, nil
}

func flipSign(m *mat.Dense, col int) {
	rows, _ := m.Dims()
	best := 0.0
	for r := 0; r < rows; r++ {
		if v := m.At(r, col); math.Abs(v) > math.Abs(best) {
			best = v
		}
	}
	if best >= 0 {
		return
	}
	for r := 0; r < rows; r++ {
		m.Set(r, col, -m.At(r, col))
	}
}
