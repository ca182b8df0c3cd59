// Package cluster standardizes record vectors, chooses a cluster count with
// an elbow search over k-means inertia, and partitions the vectors.
//
// All k-means runs are seeded: restart r for k clusters draws from a PCG
// source keyed by (Seed, k, r), so SelectK and Cluster see identical runs
// for the same k. Assignment ties between equidistant centroids go to the
// centroid with the lowest index.
package cluster
