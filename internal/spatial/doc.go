// Package spatial answers nearest-neighbour questions over one cloud's
// positions.
//
// Responsibilities: the k-d tree spatial index, k-nearest-neighbour queries,
// local neighbourhood extraction and the reference-to-test correspondence
// map.
// Key types: KDTree, Searcher, Correspondence.
//
// Results are fully deterministic: neighbours are ordered by ascending
// squared distance and equal distances are ordered by ascending point index,
// or by a caller-supplied rank (BuildOrdered). A rank derived from point
// content rather than storage order makes every query independent of how
// the cloud was ordered.
// A built tree is immutable and may be queried from any number of goroutines.
package spatial
