package cloud

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestNew_Valid(t *testing.T) {
	pos := []r3.Vec{{X: 0, Y: 0, Z: 0}, {X: 1, Y: 2, Z: 3}}
	cols := []RGB{{255, 0, 0}, {0, 255, 0}}

	c, err := New(pos, cols)
	require.NoError(t, err)
	assert.Equal(t, 2, c.Len())

	// New must copy its inputs.
	pos[0].X = 42
	cols[0][0] = 7
	assert.Equal(t, 0.0, c.Positions[0].X)
	assert.Equal(t, uint8(255), c.Colors[0][0])
}

func TestNew_Invalid(t *testing.T) {
	tests := []struct {
		name string
		pos  []r3.Vec
		cols []RGB
	}{
		{"empty", nil, nil},
		{"length mismatch", []r3.Vec{{}, {}}, []RGB{{}}},
		{"NaN coordinate", []r3.Vec{{X: math.NaN()}}, []RGB{{}}},
		{"Inf coordinate", []r3.Vec{{Z: math.Inf(-1)}}, []RGB{{}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.pos, tt.cols)
			if !errors.Is(err, ErrInvalidInput) {
				t.Errorf("New() error = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestFromArrays(t *testing.T) {
	c, err := FromArrays([][3]float64{{1, 2, 3}}, [][3]uint8{{10, 20, 30}})
	require.NoError(t, err)
	assert.Equal(t, r3.Vec{X: 1, Y: 2, Z: 3}, c.Positions[0])
	assert.Equal(t, RGB{10, 20, 30}, c.Colors[0])

	_, err = FromArrays([][3]float64{{1, 2, 3}}, nil)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestGatherAndYCbCr(t *testing.T) {
	c, err := New(
		[]r3.Vec{{X: 0}, {X: 1}, {X: 2}},
		[]RGB{{0, 0, 0}, {255, 255, 255}, {255, 0, 0}},
	)
	require.NoError(t, err)

	got := c.Gather([]int{2, 0})
	assert.Equal(t, []r3.Vec{{X: 2}, {X: 0}}, got)

	cols := c.YCbCr([]int{1})
	require.Len(t, cols, 1)
	assert.InDelta(t, 1.0, cols[0].Y, 1e-12)

	assert.Len(t, c.YCbCr(nil), 3)
}

func TestToYCbCr(t *testing.T) {
	tests := []struct {
		name      string
		in        RGB
		y, cb, cr float64
	}{
		{"black", RGB{0, 0, 0}, 0, 0, 0},
		{"white", RGB{255, 255, 255}, 1, 0, 0},
		{"red", RGB{255, 0, 0}, 0.2126, -0.2126 / 1.8556, 0.7874 / 1.5748},
		{"blue", RGB{0, 0, 255}, 0.0722, 0.9278 / 1.8556, -0.0722 / 1.5748},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ToYCbCr(tt.in)
			if math.Abs(got.Y-tt.y) > 1e-12 || math.Abs(got.Cb-tt.cb) > 1e-12 || math.Abs(got.Cr-tt.cr) > 1e-12 {
				t.Errorf("ToYCbCr(%v) = %+v, want {%g %g %g}", tt.in, got, tt.y, tt.cb, tt.cr)
			}
		})
	}
}

func TestToYCbCr_ChromaRange(t *testing.T) {
	for _, c := range []RGB{{255, 0, 0}, {0, 255, 0}, {0, 0, 255}, {255, 255, 0}, {0, 255, 255}, {255, 0, 255}} {
		got := ToYCbCr(c)
		if got.Cb < -0.5-1e-12 || got.Cb > 0.5+1e-12 || got.Cr < -0.5-1e-12 || got.Cr > 0.5+1e-12 {
			t.Errorf("ToYCbCr(%v) = %+v, chroma outside [-0.5, 0.5]", c, got)
		}
	}
}

func TestYCbCrChannel(t *testing.T) {
	c := YCbCr{Y: 1, Cb: 2, Cr: 3}
	assert.Equal(t, 1.0, c.Channel(0))
	assert.Equal(t, 2.0, c.Channel(1))
	assert.Equal(t, 3.0, c.Channel(2))
}
