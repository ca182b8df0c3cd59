package cluster

import (
	"math/rand/v2"
)

// blobs returns n vectors of dimension dim split round-robin over the given
// number of well separated groups. Dimension j carries the signal of group
// j%groups.
func blobs(n, dim, groups int, seed uint64) [][]float64 {
	rng := rand.New(rand.NewPCG(seed, seed+1))
	out := make([][]float64, n)
	for i := range out {
		g := i % groups
		v := make([]float64, dim)
		for j := range v {
			v[j] = rng.NormFloat64() * 0.05
			if j%groups == g {
				v[j] += 5
			}
		}
		out[i] = v
	}
	return out
}
