package cluster

import "errors"

var (
	ErrNoVectors           = errors.New("no vectors to cluster")
	ErrDimensionMismatch   = errors.New("vectors have different dimensions")
	ErrUndefinedVector     = errors.New("vector contains NaN or Inf")
	ErrInvalidClusterCount = errors.New("invalid cluster count")
	ErrInvalidTopEnd       = errors.New("top_end must be at least 2")
)
