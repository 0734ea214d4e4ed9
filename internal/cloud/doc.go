// Package cloud owns the typed point cloud handed to the metric.
//
// Responsibilities: input validation (shape, emptiness, finiteness), the
// fixed RGB to Y'CbCr transform, the content order used to break distance
// ties (Ranks), and optional merging of points that share a position.
// Key types: Cloud, RGB, YCbCr.
//
// A Cloud is validated once in New and is treated as immutable afterwards;
// no package downstream re-checks it.
package cloud
