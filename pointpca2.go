package pointpca2

import (
	"runtime"

	"github.com/banshee-data/pointpca2/internal/aggregate"
	"github.com/banshee-data/pointpca2/internal/cloud"
	"github.com/banshee-data/pointpca2/internal/features"
	"github.com/banshee-data/pointpca2/internal/pca"
)

// Type aliases re-export the data types of the internal packages.

// Cloud is an ordered set of coloured points.
type Cloud = cloud.Cloud

// RGB is an 8-bit colour triple.
type RGB = cloud.RGB

// Vector is the 40-element predictor vector.
type Vector = aggregate.Vector

// Row holds the 20 predictors of one reference point.
type Row = features.Row

// NewCloud validates and copies positions and colours into a Cloud.
var NewCloud = cloud.New

// CloudFromArrays builds a Cloud from N×3 position and colour arrays.
var CloudFromArrays = cloud.FromArrays

// Names returns the channel names of a Vector in order.
var Names = aggregate.Names

// Errors returned by Compute, always wrapped; test with errors.Is.
var (
	ErrInvalidInput         = cloud.ErrInvalidInput
	ErrNumericalInstability = pca.ErrNumericalInstability
)

// DefaultSearchSize is the neighbourhood size used by DefaultOptions.
const DefaultSearchSize = 81

// Size is the length of a Vector.
const Size = aggregate.Size

// Options control a computation.
type Options struct {
	// SearchSize is the number of points in every neighbourhood, counted
	// from the anchor's position outwards. It must not exceed the size of
	// either cloud.
	SearchSize int
	// Verbose logs progress through the diagnostic log stream.
	Verbose bool
	// Workers bounds the goroutines used. Zero or less means GOMAXPROCS.
	Workers int
	// MergeDuplicates collapses points sharing an exact position into one
	// point with the mean colour before anything else is done.
	MergeDuplicates bool
}

// DefaultOptions returns the standard options.
func DefaultOptions() Options {
	return Options{SearchSize: DefaultSearchSize}
}

func (o Options) workers() int {
	if o.Workers > 0 {
		return o.Workers
	}
	return runtime.GOMAXPROCS(0)
}
