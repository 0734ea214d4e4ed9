// Package pca computes the local frame of a point neighbourhood: centroid,
// covariance eigenvalues and an oriented orthonormal eigenbasis.
//
// Eigenvector signs follow a fixed convention so that projections are
// comparable between neighbourhoods: the first component of magnitude above
// 1e-12 of the first and second axes is positive, and the third axis is
// their cross product.
//
// Whether a neighbourhood is degenerate depends only on its own extent, so
// moving it elsewhere in space does not change the decision.
package pca
