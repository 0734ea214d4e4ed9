package features

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat"
)

// NumPredictors is the number of per-point predictors produced by Predict.
const NumPredictors = 20

// Predictor indices within a Row. Indices up to PointToPoint depend on
// positions only.
const (
	LinearityDiff = iota
	PlanarityDiff
	SphericityDiff
	SurfaceVariationDiff
	RoughnessDiff
	SkewnessDiff
	KurtosisDiff
	PointToPlane
	PointToPoint
	SpreadSimilarity
	LumaMeanDiff
	ChromaMeanDiff
	LumaVarianceDiff
	ChromaVarianceDiff
	LumaMADDiff
	ChromaMADDiff
	ColorSpreadSimilarity
	LumaAxisCorrelationDiff
	ChromaAxisCorrelationDiff
	LumaStructureSimilarity
)

// Stabilising constants for the similarity predictors. spreadC is in squared
// position units. colorSpreadC and structureC are in squared colour units on
// a unit dynamic range (SSIM's C2 and C2/2).
const (
	spreadC      = 1e-12
	colorSpreadC = 9e-4
	structureC   = 4.5e-4
)

// predictorNames documents each Row entry. Per-axis and per-channel terms
// are averaged: over the three principal axes (skewness, kurtosis, spread),
// over Cb and Cr (chroma variance, chroma MAD), over the three colour
// principal components (colour spread) and over channel/axis pairs (axis
// correlations). chroma_mean_diff is the Euclidean distance between the
// (Cb, Cr) means.
var predictorNames = [NumPredictors]string{
	"linearity_diff",
	"planarity_diff",
	"sphericity_diff",
	"surface_variation_diff",
	"roughness_diff",
	"skewness_diff",
	"kurtosis_diff",
	"point_to_plane",
	"point_to_point",
	"spread_similarity",
	"luma_mean_diff",
	"chroma_mean_diff",
	"luma_variance_diff",
	"chroma_variance_diff",
	"luma_mad_diff",
	"chroma_mad_diff",
	"color_spread_similarity",
	"luma_axis_correlation_diff",
	"chroma_axis_correlation_diff",
	"luma_structure_similarity",
}

// Names returns the predictor names in Row order.
func Names() [NumPredictors]string {
	return predictorNames
}

// IsSimilarity reports whether predictor i is a similarity (1 for identical
// neighbourhoods) rather than a difference (0 for identical neighbourhoods).
func IsSimilarity(i int) bool {
	return i == SpreadSimilarity || i == ColorSpreadSimilarity || i == LumaStructureSimilarity
}

// Row holds the predictors of one reference point.
type Row [NumPredictors]float64

// Predict compares a reference neighbourhood with its matched test
// neighbourhood.
func Predict(ref, test Sample) Row {
	return Compare(ref, test, Extract(ref), Extract(test))
}

// Compare builds a Row from already extracted descriptors. The samples are
// still needed for the terms that pair raw data across the two sides.
func Compare(ref, test Sample, dr, dt Descriptors) Row {
	var row Row

	row[LinearityDiff] = math.Abs(dr.Linearity - dt.Linearity)
	row[PlanarityDiff] = math.Abs(dr.Planarity - dt.Planarity)
	row[SphericityDiff] = math.Abs(dr.Sphericity - dt.Sphericity)
	row[SurfaceVariationDiff] = math.Abs(dr.SurfaceVariation - dt.SurfaceVariation)
	row[RoughnessDiff] = math.Abs(dr.Roughness - dt.Roughness)
	row[SkewnessDiff] = meanAbsDiff(dr.Skewness[:], dt.Skewness[:])
	row[KurtosisDiff] = meanAbsDiff(dr.Kurtosis[:], dt.Kurtosis[:])

	offset := r3.Sub(test.Anchor, ref.Anchor)
	if !ref.Frame.RankDeficient() {
		row[PointToPlane] = math.Abs(r3.Dot(offset, ref.Frame.Normal()))
	}
	row[PointToPoint] = r3.Norm(offset)
	row[SpreadSimilarity] = spreadSimilarity(dr.Spread, dt.Spread, spreadC)

	row[LumaMeanDiff] = math.Abs(dr.ColorMean[0] - dt.ColorMean[0])
	row[ChromaMeanDiff] = math.Hypot(dr.ColorMean[1]-dt.ColorMean[1], dr.ColorMean[2]-dt.ColorMean[2])
	row[LumaVarianceDiff] = math.Abs(dr.ColorVariance[0] - dt.ColorVariance[0])
	row[ChromaVarianceDiff] = meanAbsDiff(dr.ColorVariance[1:], dt.ColorVariance[1:])
	row[LumaMADDiff] = math.Abs(dr.ColorMAD[0] - dt.ColorMAD[0])
	row[ChromaMADDiff] = meanAbsDiff(dr.ColorMAD[1:], dt.ColorMAD[1:])
	row[ColorSpreadSimilarity] = spreadSimilarity(dr.ColorSpread, dt.ColorSpread, colorSpreadC)

	row[LumaAxisCorrelationDiff] = meanAbsDiff(dr.AxisCorrelation[0][:], dt.AxisCorrelation[0][:])
	row[ChromaAxisCorrelationDiff] = (meanAbsDiff(dr.AxisCorrelation[1][:], dt.AxisCorrelation[1][:]) +
		meanAbsDiff(dr.AxisCorrelation[2][:], dt.AxisCorrelation[2][:])) / 2

	row[LumaStructureSimilarity] = structureSimilarity(ref, test)
	return row
}

// spreadSimilarity averages the SSIM contrast term over three paired
// standard deviations.
func spreadSimilarity(r, t [3]float64, c float64) float64 {
	var sum float64
	for k := 0; k < 3; k++ {
		sum += (2*r[k]*t[k] + c) / (r[k]*r[k] + t[k]*t[k] + c)
	}
	return sum / 3
}

func meanAbsDiff(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += math.Abs(a[i] - b[i])
	}
	return sum / float64(len(a))
}

// structureSimilarity is the SSIM structure term between reference and test
// luma. Neighbours are paired by their place in query order, which depends
// only on distance from the anchor and on point content, so identical
// neighbourhoods pair every point with itself.
func structureSimilarity(ref, test Sample) float64 {
	n := min(len(ref.Colors), len(test.Colors))
	if n == 0 {
		return 1
	}
	yr := make([]float64, n)
	yt := make([]float64, n)
	for i := 0; i < n; i++ {
		yr[i] = ref.Colors[i].Y
		yt[i] = test.Colors[i].Y
	}
	mr, mt := stat.Mean(yr, nil), stat.Mean(yt, nil)

	var vr, vt, cov float64
	for i := 0; i < n; i++ {
		dr, dt := yr[i]-mr, yt[i]-mt
		vr += dr * dr
		vt += dt * dt
		cov += dr * dt
	}
	nf := float64(n)
	vr, vt, cov = vr/nf, vt/nf, cov/nf

	return (cov + structureC) / (math.Sqrt(vr*vt) + structureC)
}
