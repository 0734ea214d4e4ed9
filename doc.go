// Package pointpca2 computes PointPCA2, a full-reference quality metric for
// coloured point clouds.
//
// Every reference point is matched to its nearest test point. The
// neighbourhoods around both are described with local PCA geometry and
// Y'CbCr colour statistics, compared into 20 per-point predictors, and
// pooled into a 40-element vector of means and standard deviations.
//
// The result is a pure function of the two clouds and the search size:
// worker count and verbosity never change a single bit of it.
package pointpca2
