// Package features turns local frames into scalar descriptors and compares
// a reference neighbourhood with its matched test neighbourhood.
//
// Extract derives geometric descriptors (eigenvalue shape measures, spread
// and higher moments along each axis, roughness) and colour descriptors
// (per-channel Y'CbCr moments, colour PCA spread and colour/geometry
// correlation) for one neighbourhood. Predict combines the descriptors of a
// reference and a test neighbourhood into the 20 per-point predictors that
// the aggregate package pools.
//
// No descriptor depends on absolute position or on eigenvector signs, and
// every ratio with a zero denominator evaluates to zero.
package features
