package cluster

// InertiaPoint is the SSE obtained with K clusters.
type InertiaPoint struct {
	K   int     `json:"k"`
	SSE float64 `json:"sse"`
}

// InertiaCurve is ordered by increasing K.
type InertiaCurve []InertiaPoint

// FindKnee locates the elbow of a convex, decreasing curve using the
// normalized difference-curve method with the given sensitivity (1 is the
// usual choice). It returns the K at the elbow, or false when the curve has
// no elbow.
//
// A two-point curve has no interior to search; it reports an elbow at its
// second point whenever the SSE drops.
func FindKnee(curve InertiaCurve, sensitivity float64) (int, bool) {
	n := len(curve)
	switch {
	case n < 2:
		return 0, false
	case n == 2:
		if curve[1].SSE < curve[0].SSE {
			return curve[1].K, true
		}
		return 0, false
	}

	xMin, xMax := float64(curve[0].K), float64(curve[n-1].K)
	yMin, yMax := curve[0].SSE, curve[0].SSE
	for _, p := range curve {
		yMin = min(yMin, p.SSE)
		yMax = max(yMax, p.SSE)
	}
	if xMax == xMin || yMax == yMin {
		return 0, false
	}

	xn := make([]float64, n)
	diff := make([]float64, n)
	for i, p := range curve {
		xn[i] = (float64(p.K) - xMin) / (xMax - xMin)
		yn := (p.SSE - yMin) / (yMax - yMin)
		// Flip the decreasing convex curve so the elbow becomes a maximum.
		diff[i] = (1 - yn) - xn[i]
	}

	var maxima, minima []int
	for i := range diff {
		prev, next := diff[max(i-1, 0)], diff[min(i+1, n-1)]
		if diff[i] >= prev && diff[i] >= next {
			maxima = append(maxima, i)
		}
		if diff[i] <= prev && diff[i] <= next {
			minima = append(minima, i)
		}
	}
	if len(maxima) == 0 {
		return 0, false
	}

	var step float64
	for i := 1; i < n; i++ {
		step += xn[i] - xn[i-1]
	}
	step /= float64(n - 1)

	isIn := func(set []int, i int) bool {
		for _, v := range set {
			if v == i {
				return true
			}
		}
		return false
	}

	var threshold float64
	thresholdIndex := -1
	for i := maxima[0]; i < n-1; i++ {
		if isIn(maxima, i) {
			threshold = diff[i] - sensitivity*step
			thresholdIndex = i
		}
		if isIn(minima, i) {
			threshold = 0
		}
		if diff[i+1] < threshold && thresholdIndex >= 0 {
			return curve[thresholdIndex].K, true
		}
	}
	return 0, false
}
