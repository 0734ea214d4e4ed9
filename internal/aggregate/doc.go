// Package aggregate pools per-point predictor rows into the fixed-length
// quality vector.
//
// Rows are reduced in fixed chunks of consecutive points and the chunk
// partials are merged in chunk order, so the result depends only on the
// rows and never on how many goroutines produced the partials.
package aggregate
