package features

import (
	"math"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/pointpca2/internal/cloud"
)

const tol = 1e-9

func approx(a, b float64) bool {
	return math.Abs(a-b) <= tol*(1+math.Abs(a)+math.Abs(b))
}

func randomSample(t *testing.T, rng *rand.Rand, n int) Sample {
	t.Helper()
	pos := make([]r3.Vec, n)
	cols := make([]cloud.YCbCr, n)
	for i := range pos {
		pos[i] = r3.Vec{X: rng.Float64(), Y: rng.Float64() * 0.5, Z: rng.Float64() * 0.1}
		cols[i] = cloud.ToYCbCr(cloud.RGB{uint8(rng.Intn(256)), uint8(rng.Intn(256)), uint8(rng.Intn(256))})
	}
	s, err := NewSample(pos, cols, pos[0])
	if err != nil {
		t.Fatalf("NewSample: %v", err)
	}
	return s
}

func TestNewSample_Mismatch(t *testing.T) {
	_, err := NewSample(make([]r3.Vec, 3), make([]cloud.YCbCr, 2), r3.Vec{})
	if err == nil {
		t.Fatal("expected error for mismatched lengths")
	}
}

func TestExtract_ShapeOfLine(t *testing.T) {
	pos := []r3.Vec{{X: 0}, {X: 1}, {X: 2}, {X: 3}}
	cols := make([]cloud.YCbCr, len(pos))
	s, err := NewSample(pos, cols, pos[0])
	if err != nil {
		t.Fatal(err)
	}
	d := Extract(s)
	if !approx(d.Linearity, 1) {
		t.Errorf("Linearity = %g, want 1", d.Linearity)
	}
	if !approx(d.Planarity, 0) || !approx(d.Sphericity, 0) || !approx(d.SurfaceVariation, 0) {
		t.Errorf("line should have zero planarity, sphericity, surface variation: %+v", d)
	}
	if !approx(d.Spread[0], math.Sqrt(1.25)) {
		t.Errorf("Spread[0] = %g, want %g", d.Spread[0], math.Sqrt(1.25))
	}
	// Symmetric along the line, undefined across it.
	if !approx(d.Skewness[0], 0) {
		t.Errorf("Skewness[0] = %g, want 0", d.Skewness[0])
	}
	for k := 1; k < 3; k++ {
		if d.Skewness[k] != 0 || d.Kurtosis[k] != 0 {
			t.Errorf("axis %d: skewness %g kurtosis %g, want 0", k, d.Skewness[k], d.Kurtosis[k])
		}
	}
}

func TestExtract_HigherMoments(t *testing.T) {
	// Seven points at the origin and one far out along x: a long right tail.
	pos := make([]r3.Vec, 8)
	pos[7] = r3.Vec{X: 10}
	cols := make([]cloud.YCbCr, len(pos))
	s, err := NewSample(pos, cols, pos[0])
	if err != nil {
		t.Fatal(err)
	}
	d := Extract(s)
	if d.Skewness[0] < 2 {
		t.Errorf("Skewness[0] = %g, want > 2", d.Skewness[0])
	}
	if d.Kurtosis[0] < 3 {
		t.Errorf("Kurtosis[0] = %g, want > 3", d.Kurtosis[0])
	}

	// Too few points for the moments to be defined.
	s, err = NewSample(pos[5:], cols[5:], pos[5])
	if err != nil {
		t.Fatal(err)
	}
	if d := Extract(s); d.Skewness != [3]float64{} || d.Kurtosis != [3]float64{} {
		t.Errorf("three points: skewness %v kurtosis %v, want zeros", d.Skewness, d.Kurtosis)
	}
}

func TestExtract_CoincidentPoints(t *testing.T) {
	pos := make([]r3.Vec, 5)
	for i := range pos {
		pos[i] = r3.Vec{X: 2, Y: 2, Z: 2}
	}
	cols := make([]cloud.YCbCr, len(pos))
	for i := range cols {
		cols[i] = cloud.ToYCbCr(cloud.RGB{uint8(40 * i), 0, 0})
	}
	s, err := NewSample(pos, cols, pos[0])
	if err != nil {
		t.Fatal(err)
	}
	d := Extract(s)
	for name, v := range map[string]float64{
		"linearity":         d.Linearity,
		"surface_variation": d.SurfaceVariation,
		"roughness":         d.Roughness,
	} {
		if v != 0 {
			t.Errorf("%s = %g, want 0", name, v)
		}
	}
	if d.Skewness != [3]float64{} || d.Kurtosis != [3]float64{} {
		t.Errorf("skewness %v kurtosis %v, want zeros", d.Skewness, d.Kurtosis)
	}
	if d.AxisCorrelation != [3][3]float64{} {
		t.Errorf("AxisCorrelation = %v, want zeros", d.AxisCorrelation)
	}
	if d.ColorSpread[0] == 0 {
		t.Error("colour varies, ColorSpread[0] should be positive")
	}
}

func TestExtract_LumaFollowsAxis(t *testing.T) {
	var pos []r3.Vec
	var cols []cloud.YCbCr
	for i := 0; i < 10; i++ {
		pos = append(pos, r3.Vec{X: float64(i), Y: float64(i%2) * 0.1})
		cols = append(cols, cloud.ToYCbCr(cloud.RGB{uint8(20 * i), uint8(20 * i), uint8(20 * i)}))
	}
	s, err := NewSample(pos, cols, pos[0])
	if err != nil {
		t.Fatal(err)
	}
	d := Extract(s)
	if d.AxisCorrelation[0][0] < 0.99 {
		t.Errorf("luma/axis 0 correlation = %g, want close to 1", d.AxisCorrelation[0][0])
	}
	if d.AxisCorrelation[0][2] != 0 {
		t.Errorf("undefined third axis should give 0, got %g", d.AxisCorrelation[0][2])
	}
	// Grey ramp: chroma is constant.
	for ch := 1; ch < 3; ch++ {
		if d.AxisCorrelation[ch] != [3]float64{} {
			t.Errorf("channel %d correlation = %v, want zeros", ch, d.AxisCorrelation[ch])
		}
	}
}

func TestExtract_ChromaFollowsAxis(t *testing.T) {
	var pos []r3.Vec
	var cols []cloud.YCbCr
	for i := 0; i < 10; i++ {
		pos = append(pos, r3.Vec{X: float64(i), Y: float64(i%2) * 0.1})
		cols = append(cols, cloud.YCbCr{Y: 0.5, Cb: 0.04*float64(i) - 0.2, Cr: 0.1 * float64(i%2)})
	}
	s, err := NewSample(pos, cols, pos[0])
	if err != nil {
		t.Fatal(err)
	}
	d := Extract(s)
	if d.AxisCorrelation[1][0] < 0.99 {
		t.Errorf("Cb/axis 0 correlation = %g, want close to 1", d.AxisCorrelation[1][0])
	}
	if d.AxisCorrelation[0] != [3]float64{} {
		t.Errorf("flat luma correlation = %v, want zeros", d.AxisCorrelation[0])
	}
	if !approx(d.ColorMAD[2], 0.05) {
		t.Errorf("Cr MAD = %g, want 0.05", d.ColorMAD[2])
	}
	if d.ColorMAD[0] != 0 {
		t.Errorf("luma MAD = %g, want 0", d.ColorMAD[0])
	}
}

func TestExtract_ColorSpread(t *testing.T) {
	// Only luma varies, so the colour frame has a single non-zero component
	// whose spread is the luma standard deviation.
	pos := []r3.Vec{{X: 0}, {X: 1}, {Y: 1}, {Z: 1}}
	cols := []cloud.YCbCr{{Y: 0.2}, {Y: 0.4}, {Y: 0.6}, {Y: 0.8}}
	s, err := NewSample(pos, cols, pos[0])
	if err != nil {
		t.Fatal(err)
	}
	d := Extract(s)
	want := math.Sqrt(d.ColorVariance[0])
	if !approx(d.ColorSpread[0], want) {
		t.Errorf("ColorSpread[0] = %g, want %g", d.ColorSpread[0], want)
	}
	if d.ColorSpread[1] > 1e-9 || d.ColorSpread[2] > 1e-9 {
		t.Errorf("ColorSpread = %v, want one non-zero component", d.ColorSpread)
	}
}

func TestPredict_Identical(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	s := randomSample(t, rng, 30)
	row := Predict(s, s)
	for i, v := range row {
		want := 0.0
		if IsSimilarity(i) {
			want = 1
		}
		if !approx(v, want) {
			t.Errorf("%s = %g, want %g", Names()[i], v, want)
		}
	}
}

func TestPredict_IdenticalExact(t *testing.T) {
	rng := rand.New(rand.NewSource(8))
	for trial := 0; trial < 10; trial++ {
		s := randomSample(t, rng, 9)
		for i, v := range Predict(s, s) {
			want := 0.0
			if IsSimilarity(i) {
				want = 1
			}
			if v != want {
				t.Errorf("trial %d: %s = %v, want exactly %v", trial, Names()[i], v, want)
			}
		}
	}
}

func TestPredict_Finite(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	for trial := 0; trial < 20; trial++ {
		row := Predict(randomSample(t, rng, 12), randomSample(t, rng, 12))
		for i, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				t.Fatalf("trial %d: %s = %g", trial, Names()[i], v)
			}
			if !IsSimilarity(i) && v < 0 {
				t.Errorf("trial %d: %s = %g, want >= 0", trial, Names()[i], v)
			}
		}
	}
}

func TestPredict_PointOffsets(t *testing.T) {
	// Reference lies in the z = 0 plane; the test anchor is lifted by 0.5
	// and shifted by 0.3 within the plane.
	var pos []r3.Vec
	for x := 0; x < 3; x++ {
		for y := 0; y < 3; y++ {
			pos = append(pos, r3.Vec{X: float64(x), Y: float64(y) * 0.7})
		}
	}
	cols := make([]cloud.YCbCr, len(pos))
	ref, err := NewSample(pos, cols, r3.Vec{})
	if err != nil {
		t.Fatal(err)
	}
	test := ref
	test.Anchor = r3.Vec{X: 0.3, Z: 0.5}

	row := Predict(ref, test)
	if !approx(row[PointToPlane], 0.5) {
		t.Errorf("point_to_plane = %g, want 0.5", row[PointToPlane])
	}
	if !approx(row[PointToPoint], math.Hypot(0.3, 0.5)) {
		t.Errorf("point_to_point = %g, want %g", row[PointToPoint], math.Hypot(0.3, 0.5))
	}
}

func TestPredict_PointToPlaneRankDeficient(t *testing.T) {
	pos := []r3.Vec{{X: 0}, {X: 1}, {X: 2}}
	cols := make([]cloud.YCbCr, len(pos))
	ref, err := NewSample(pos, cols, pos[0])
	if err != nil {
		t.Fatal(err)
	}
	test := ref
	test.Anchor = r3.Vec{Y: 1}
	row := Predict(ref, test)
	if row[PointToPlane] != 0 {
		t.Errorf("point_to_plane on a line = %g, want 0", row[PointToPlane])
	}
	if !approx(row[PointToPoint], 1) {
		t.Errorf("point_to_point = %g, want 1", row[PointToPoint])
	}
}

func TestPredict_ColorShift(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	ref := randomSample(t, rng, 20)
	test := ref
	test.Colors = make([]cloud.YCbCr, len(ref.Colors))
	for i, c := range ref.Colors {
		test.Colors[i] = cloud.YCbCr{Y: c.Y + 0.1, Cb: c.Cb, Cr: c.Cr}
	}
	row := Predict(ref, test)
	if !approx(row[LumaMeanDiff], 0.1) {
		t.Errorf("luma_mean_diff = %g, want 0.1", row[LumaMeanDiff])
	}
	for _, i := range []int{LumaStructureSimilarity, ColorSpreadSimilarity} {
		if !approx(row[i], 1) {
			t.Errorf("a constant luma offset should keep %s, got %g", Names()[i], row[i])
		}
	}
	for _, i := range []int{LinearityDiff, RoughnessDiff, KurtosisDiff, PointToPoint, ChromaMeanDiff, LumaVarianceDiff, LumaMADDiff} {
		if !approx(row[i], 0) {
			t.Errorf("%s = %g, want 0", Names()[i], row[i])
		}
	}
}

func TestIsSimilarity(t *testing.T) {
	var got []int
	for i := 0; i < NumPredictors; i++ {
		if IsSimilarity(i) {
			got = append(got, i)
		}
	}
	want := []int{SpreadSimilarity, ColorSpreadSimilarity, LumaStructureSimilarity}
	if len(got) != len(want) {
		t.Fatalf("similarities = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("similarities = %v, want %v", got, want)
		}
	}
}

func TestNames_Unique(t *testing.T) {
	seen := map[string]bool{}
	for _, n := range Names() {
		if n == "" || seen[n] {
			t.Errorf("bad or duplicate name %q", n)
		}
		seen[n] = true
	}
}
