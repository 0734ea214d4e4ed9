// Package testutil provides shared test utilities and fixtures.
//
// Fixtures are seeded so every test run sees the same clouds.
package testutil

import (
	"math"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/pointpca2/internal/cloud"
)

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// AssertFinite fails the test if any value is NaN or infinite.
func AssertFinite(t *testing.T, values []float64) {
	t.Helper()
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Errorf("value %d = %g, want finite", i, v)
		}
	}
}

// Surface returns n points sampled from a gently curved surface patch with
// a colour gradient across it plus a little colour texture.
func Surface(seed int64, n int) *cloud.Cloud {
	rng := rand.New(rand.NewSource(seed))
	pos := make([]r3.Vec, n)
	cols := make([]cloud.RGB, n)
	for i := range pos {
		x, y := rng.Float64(), rng.Float64()
		z := 0.1*math.Sin(3*x) + 0.05*math.Cos(5*y) + 0.002*rng.NormFloat64()
		pos[i] = r3.Vec{X: x, Y: y, Z: z}
		cols[i] = cloud.RGB{
			clamp(255*x + 10*rng.NormFloat64()),
			clamp(255*y + 10*rng.NormFloat64()),
			clamp(128 + 60*math.Sin(7*x*y)),
		}
	}
	return mustCloud(pos, cols)
}

// RandomCloud returns n points uniformly distributed in the unit cube with
// uniform random colours.
func RandomCloud(seed int64, n int) *cloud.Cloud {
	rng := rand.New(rand.NewSource(seed))
	pos := make([]r3.Vec, n)
	cols := make([]cloud.RGB, n)
	for i := range pos {
		pos[i] = r3.Vec{X: rng.Float64(), Y: rng.Float64(), Z: rng.Float64()}
		cols[i] = cloud.RGB{uint8(rng.Intn(256)), uint8(rng.Intn(256)), uint8(rng.Intn(256))}
	}
	return mustCloud(pos, cols)
}

// Grid returns an nx×ny lattice in the z = 0 plane with unit spacing and
// copies points per site, each with its own random colour. Lattices are full
// of exactly equidistant neighbours.
func Grid(seed int64, nx, ny, copies int) *cloud.Cloud {
	rng := rand.New(rand.NewSource(seed))
	var pos []r3.Vec
	var cols []cloud.RGB
	for x := 0; x < nx; x++ {
		for y := 0; y < ny; y++ {
			for c := 0; c < copies; c++ {
				pos = append(pos, r3.Vec{X: float64(x), Y: float64(y)})
				cols = append(cols, cloud.RGB{uint8(rng.Intn(256)), uint8(rng.Intn(256)), uint8(rng.Intn(256))})
			}
		}
	}
	return mustCloud(pos, cols)
}

// ColorNoise returns a copy of c with zero-mean Gaussian noise of the given
// standard deviation (in 8-bit levels) added to every channel. Positions are
// copied unchanged.
func ColorNoise(c *cloud.Cloud, seed int64, sigma float64) *cloud.Cloud {
	rng := rand.New(rand.NewSource(seed))
	cols := make([]cloud.RGB, c.Len())
	for i, col := range c.Colors {
		for ch := range col {
			cols[i][ch] = clamp(float64(col[ch]) + sigma*rng.NormFloat64())
		}
	}
	return mustCloud(c.Positions, cols)
}

// PositionNoise returns a copy of c with isotropic Gaussian noise added to
// every coordinate. Colours are copied unchanged.
func PositionNoise(c *cloud.Cloud, seed int64, sigma float64) *cloud.Cloud {
	rng := rand.New(rand.NewSource(seed))
	pos := make([]r3.Vec, c.Len())
	for i, p := range c.Positions {
		pos[i] = r3.Add(p, r3.Vec{X: sigma * rng.NormFloat64(), Y: sigma * rng.NormFloat64(), Z: sigma * rng.NormFloat64()})
	}
	return mustCloud(pos, c.Colors)
}

// Permute returns c with its points shuffled.
func Permute(c *cloud.Cloud, seed int64) *cloud.Cloud {
	rng := rand.New(rand.NewSource(seed))
	perm := rng.Perm(c.Len())
	pos := make([]r3.Vec, c.Len())
	cols := make([]cloud.RGB, c.Len())
	for i, j := range perm {
		pos[i] = c.Positions[j]
		cols[i] = c.Colors[j]
	}
	return mustCloud(pos, cols)
}

// Transform returns c rotated by angle radians about axis and then
// translated by shift.
func Transform(c *cloud.Cloud, axis r3.Vec, angle float64, shift r3.Vec) *cloud.Cloud {
	rot := r3.NewRotation(angle, axis)
	pos := make([]r3.Vec, c.Len())
	for i, p := range c.Positions {
		pos[i] = r3.Add(rot.Rotate(p), shift)
	}
	return mustCloud(pos, c.Colors)
}

func clamp(v float64) uint8 {
	return uint8(math.Round(math.Min(255, math.Max(0, v))))
}

func mustCloud(pos []r3.Vec, cols []cloud.RGB) *cloud.Cloud {
	c, err := cloud.New(pos, cols)
	if err != nil {
		panic(err)
	}
	return c
}
