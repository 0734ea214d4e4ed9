// Package cloudio reads and writes coloured point clouds in PLY, LAS and
// delimited text formats.
//
// PLY and text colours are coerced the same way: when every channel lies
// in [0,1] the values are taken as normalised and scaled by 255, then each
// value is clamped to 0..255 and truncated. Clouds without colour are rejected.
package cloudio
