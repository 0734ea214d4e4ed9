package pca

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/pointpca2/internal/cloud"
)

// ErrNumericalInstability is returned when the eigen-decomposition of a
// neighbourhood covariance fails. It aborts the whole computation.
var ErrNumericalInstability = errors.New("numerical instability")

const (
	// degenerateTolerance bounds λ1 relative to the largest squared distance
	// from the centroid. A real spread keeps λ1 at or above that distance
	// divided by the point count.
	degenerateTolerance = 1e-15
	// rankTolerance bounds λ2/λ1 below which a neighbourhood is treated as
	// collinear.
	rankTolerance = 1e-12
	signTolerance = 1e-12
)

// Frame is the principal-axis frame of a neighbourhood.
type Frame struct {
	Centroid r3.Vec
	// Values holds the covariance eigenvalues in descending order, all >= 0.
	Values [3]float64
	// Axes holds the unit eigenvectors matching Values.
	Axes [3]r3.Vec
	// Degenerate is set when every eigenvalue is numerically zero, i.e. all
	// points coincide. Values are then zero and Axes the canonical basis.
	Degenerate bool
}

// Analyze computes the frame of points using the population covariance.
func Analyze(points []r3.Vec) (Frame, error) {
	n := len(points)
	if n == 0 {
		return Frame{}, fmt.Errorf("%w: empty neighbourhood", cloud.ErrInvalidInput)
	}

	var sum r3.Vec
	for _, p := range points {
		sum = r3.Add(sum, p)
	}
	centroid := r3.Scale(1/float64(n), sum)

	coincident := true
	for _, p := range points[1:] {
		if p != points[0] {
			coincident = false
			break
		}
	}
	if coincident {
		return degenerate(points[0]), nil
	}

	var cxx, cxy, cxz, cyy, cyz, czz, extent float64
	for _, p := range points {
		d := r3.Sub(p, centroid)
		extent = max(extent, r3.Norm2(d))
		cxx += d.X * d.X
		cxy += d.X * d.Y
		cxz += d.X * d.Z
		cyy += d.Y * d.Y
		cyz += d.Y * d.Z
		czz += d.Z * d.Z
	}
	nf := float64(n)
	cov := mat.NewSymDense(3, []float64{
		cxx / nf, cxy / nf, cxz / nf,
		cxy / nf, cyy / nf, cyz / nf,
		cxz / nf, cyz / nf, czz / nf,
	})

	var es mat.EigenSym
	if ok := es.Factorize(cov, true); !ok {
		return Frame{}, fmt.Errorf("%w: eigen-decomposition of %d-point neighbourhood did not converge", ErrNumericalInstability, n)
	}
	vals := es.Values(nil) // ascending
	var vecs mat.Dense
	es.VectorsTo(&vecs)

	f := Frame{Centroid: centroid}
	for k := 0; k < 3; k++ {
		col := 2 - k
		f.Values[k] = max(vals[col], 0)
		f.Axes[k] = r3.Vec{X: vecs.At(0, col), Y: vecs.At(1, col), Z: vecs.At(2, col)}
	}

	if f.Values[0] <= degenerateTolerance*extent {
		return degenerate(centroid), nil
	}

	f.Axes[0] = orient(f.Axes[0])
	f.Axes[1] = orient(f.Axes[1])
	f.Axes[2] = r3.Cross(f.Axes[0], f.Axes[1])
	return f, nil
}

func degenerate(centroid r3.Vec) Frame {
	return Frame{
		Centroid: centroid,
		Axes: [3]r3.Vec{
			{X: 1},
			{Y: 1},
			{Z: 1},
		},
		Degenerate: true,
	}
}

// orient flips v so that its first significant component is positive.
func orient(v r3.Vec) r3.Vec {
	for _, c := range [3]float64{v.X, v.Y, v.Z} {
		if c > signTolerance {
			return v
		}
		if c < -signTolerance {
			return r3.Scale(-1, v)
		}
	}
	return v
}

// RankDeficient reports whether the neighbourhood spans fewer than two
// dimensions (coincident or collinear points). Quantities that depend on the
// second or third axis are ill-defined for such frames.
func (f Frame) RankDeficient() bool {
	return f.Degenerate || f.Values[1] <= rankTolerance*f.Values[0]
}

// AxisDefined reports whether axis k carries a numerically non-zero
// variance.
func (f Frame) AxisDefined(k int) bool {
	return !f.Degenerate && f.Values[k] > rankTolerance*f.Values[0]
}

// Normal returns the axis of least variance.
func (f Frame) Normal() r3.Vec {
	return f.Axes[2]
}

// TotalVariance returns the sum of the eigenvalues.
func (f Frame) TotalVariance() float64 {
	return f.Values[0] + f.Values[1] + f.Values[2]
}

// Project returns the coordinates of p - centroid along the frame axes.
func (f Frame) Project(p r3.Vec) r3.Vec {
	d := r3.Sub(p, f.Centroid)
	return r3.Vec{
		X: r3.Dot(d, f.Axes[0]),
		Y: r3.Dot(d, f.Axes[1]),
		Z: r3.Dot(d, f.Axes[2]),
	}
}

// ProjectAll projects every point into the frame, appending to dst[:0].
func (f Frame) ProjectAll(points []r3.Vec, dst []r3.Vec) []r3.Vec {
	dst = dst[:0]
	for _, p := range points {
		dst = append(dst, f.Project(p))
	}
	return dst
}
