package cloud

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// ErrInvalidInput reports malformed or incompatible clouds: mismatched
// lengths, empty clouds, non-finite coordinates, or a neighbourhood size the
// cloud cannot satisfy. It is always returned wrapped with context.
var ErrInvalidInput = errors.New("invalid input")

// RGB is an 8-bit colour triple.
type RGB [3]uint8

// Cloud is an ordered set of coloured points. Positions[i] and Colors[i]
// describe the same point.
type Cloud struct {
	Positions []r3.Vec
	Colors    []RGB
}

// New validates and copies the given positions and colours into a Cloud.
func New(positions []r3.Vec, colors []RGB) (*Cloud, error) {
	if len(positions) != len(colors) {
		return nil, fmt.Errorf("%w: %d positions but %d colors", ErrInvalidInput, len(positions), len(colors))
	}
	if len(positions) == 0 {
		return nil, fmt.Errorf("%w: empty point cloud", ErrInvalidInput)
	}
	for i, p := range positions {
		if !finite(p) {
			return nil, fmt.Errorf("%w: point %d has non-finite coordinates (%g, %g, %g)", ErrInvalidInput, i, p.X, p.Y, p.Z)
		}
	}

	c := &Cloud{
		Positions: make([]r3.Vec, len(positions)),
		Colors:    make([]RGB, len(colors)),
	}
	copy(c.Positions, positions)
	copy(c.Colors, colors)
	return c, nil
}

// FromArrays builds a Cloud from plain N×3 arrays, the shape produced by most
// point cloud readers.
func FromArrays(points [][3]float64, colors [][3]uint8) (*Cloud, error) {
	pos := make([]r3.Vec, len(points))
	for i, p := range points {
		pos[i] = r3.Vec{X: p[0], Y: p[1], Z: p[2]}
	}
	cols := make([]RGB, len(colors))
	for i, c := range colors {
		cols[i] = RGB(c)
	}
	return New(pos, cols)
}

// Len returns the number of points.
func (c *Cloud) Len() int {
	return len(c.Positions)
}

// YCbCr returns the colours of the given point indices converted to Y'CbCr.
// A nil indices slice converts every point.
func (c *Cloud) YCbCr(indices []int) []YCbCr {
	if indices == nil {
		out := make([]YCbCr, len(c.Colors))
		for i, col := range c.Colors {
			out[i] = ToYCbCr(col)
		}
		return out
	}
	out := make([]YCbCr, len(indices))
	for i, idx := range indices {
		out[i] = ToYCbCr(c.Colors[idx])
	}
	return out
}

// Gather returns the positions of the given point indices.
func (c *Cloud) Gather(indices []int) []r3.Vec {
	out := make([]r3.Vec, len(indices))
	for i, idx := range indices {
		out[i] = c.Positions[idx]
	}
	return out
}

func finite(p r3.Vec) bool {
	return !math.IsNaN(p.X) && !math.IsNaN(p.Y) && !math.IsNaN(p.Z) &&
		!math.IsInf(p.X, 0) && !math.IsInf(p.Y, 0) && !math.IsInf(p.Z, 0)
}
