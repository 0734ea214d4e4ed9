package features

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/pointpca2/internal/cloud"
	"github.com/banshee-data/pointpca2/internal/pca"
)

const (
	// colorVarianceFloor is the channel variance below which a neighbourhood
	// is treated as flat-coloured. 8-bit quantisation alone produces
	// variances several orders of magnitude larger.
	colorVarianceFloor = 1e-12
	// momentPoints is the smallest neighbourhood for which per-axis skewness
	// and kurtosis are defined.
	momentPoints = 4
)

// Sample is one neighbourhood ready for description: its geometric frame,
// its positions projected into that frame, its colours and the principal
// frame of those colours. Points are in query order: ascending distance from
// the anchor position, ties in content order.
type Sample struct {
	Frame      pca.Frame
	Projected  []r3.Vec
	Colors     []cloud.YCbCr
	ColorFrame pca.Frame
	Anchor     r3.Vec
}

// NewSample analyses positions and colours and projects the positions into
// their own frame.
func NewSample(positions []r3.Vec, colors []cloud.YCbCr, anchor r3.Vec) (Sample, error) {
	if len(positions) != len(colors) {
		return Sample{}, fmt.Errorf("%w: %d positions but %d colors in neighbourhood", cloud.ErrInvalidInput, len(positions), len(colors))
	}
	f, err := pca.Analyze(positions)
	if err != nil {
		return Sample{}, err
	}
	cf, err := pca.Analyze(colorVectors(colors))
	if err != nil {
		return Sample{}, fmt.Errorf("colour frame: %w", err)
	}
	return Sample{
		Frame:      f,
		Projected:  f.ProjectAll(positions, nil),
		Colors:     colors,
		ColorFrame: cf,
		Anchor:     anchor,
	}, nil
}

// Descriptors are the per-neighbourhood scalars compared between reference
// and test. Colour arrays are indexed Y, Cb, Cr; axis arrays by principal
// axis, largest variance first.
type Descriptors struct {
	// Eigenvalue shape measures.
	Linearity        float64
	Planarity        float64
	Sphericity       float64
	SurfaceVariation float64

	// Spread is the standard deviation of the projections along each axis.
	Spread [3]float64
	// Skewness is |skewness| of the projections along each axis and Kurtosis
	// their excess kurtosis. Both are zero on undefined axes and for fewer
	// than four points.
	Skewness [3]float64
	Kurtosis [3]float64
	// Roughness is the mean absolute projection on the least-variance axis.
	Roughness float64

	ColorMean     [3]float64
	ColorVariance [3]float64
	// ColorMAD is the mean absolute deviation of each channel.
	ColorMAD [3]float64
	// ColorSpread is the square root of each colour covariance eigenvalue.
	ColorSpread [3]float64

	// AxisCorrelation[ch][k] is |Pearson r| between channel ch and the
	// projection on axis k, zero where either side has no variance.
	AxisCorrelation [3][3]float64
}

// Extract computes the descriptors of s.
func Extract(s Sample) Descriptors {
	var d Descriptors
	shape(&d, s.Frame)

	axes := splitAxes(s.Projected)
	for k := 0; k < 3; k++ {
		d.Spread[k] = math.Sqrt(s.Frame.Values[k])
		d.ColorSpread[k] = math.Sqrt(s.ColorFrame.Values[k])
		if s.Frame.AxisDefined(k) && len(axes[k]) >= momentPoints {
			d.Skewness[k] = finiteOrZero(math.Abs(stat.Skew(axes[k], nil)))
			d.Kurtosis[k] = finiteOrZero(stat.ExKurtosis(axes[k], nil))
		}
	}
	if len(s.Projected) > 0 {
		var sum float64
		for _, z := range axes[2] {
			sum += math.Abs(z)
		}
		d.Roughness = sum / float64(len(s.Projected))
	}

	channels := splitChannels(s.Colors)
	for ch := 0; ch < 3; ch++ {
		d.ColorMean[ch], d.ColorVariance[ch] = stat.PopMeanVariance(channels[ch], nil)
		d.ColorMAD[ch] = meanAbsDeviation(channels[ch], d.ColorMean[ch])

		if d.ColorVariance[ch] <= colorVarianceFloor {
			continue
		}
		for k := 0; k < 3; k++ {
			if !s.Frame.AxisDefined(k) {
				continue
			}
			d.AxisCorrelation[ch][k] = finiteOrZero(math.Abs(stat.Correlation(axes[k], channels[ch], nil)))
		}
	}
	return d
}

// shape fills the eigenvalue-derived descriptors.
func shape(d *Descriptors, f pca.Frame) {
	l1, l2, l3 := f.Values[0], f.Values[1], f.Values[2]

	d.Linearity = ratio(l1-l2, l1)
	d.Planarity = ratio(l2-l3, l1)
	d.Sphericity = ratio(l3, l1)
	d.SurfaceVariation = ratio(l3, l1+l2+l3)
}

// ratio returns num/den, or 0 when den is not positive.
func ratio(num, den float64) float64 {
	if den <= 0 {
		return 0
	}
	return num / den
}

func finiteOrZero(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func meanAbsDeviation(x []float64, mean float64) float64 {
	if len(x) == 0 {
		return 0
	}
	var sum float64
	for _, v := range x {
		sum += math.Abs(v - mean)
	}
	return sum / float64(len(x))
}

func colorVectors(colors []cloud.YCbCr) []r3.Vec {
	out := make([]r3.Vec, len(colors))
	for i, c := range colors {
		out[i] = r3.Vec{X: c.Y, Y: c.Cb, Z: c.Cr}
	}
	return out
}

func splitChannels(colors []cloud.YCbCr) [3][]float64 {
	var out [3][]float64
	for ch := range out {
		out[ch] = make([]float64, len(colors))
	}
	for i, c := range colors {
		out[0][i] = c.Y
		out[1][i] = c.Cb
		out[2][i] = c.Cr
	}
	return out
}

func splitAxes(projected []r3.Vec) [3][]float64 {
	var out [3][]float64
	for k := range out {
		out[k] = make([]float64, len(projected))
	}
	for i, p := range projected {
		out[0][i] = p.X
		out[1][i] = p.Y
		out[2][i] = p.Z
	}
	return out
}
