package cloudio

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/pointpca2/internal/cloud"
)

// Read loads the cloud stored at path, choosing the format by extension.
func Read(path string) (*cloud.Cloud, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".ply":
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		c, err := ReadPLY(bufio.NewReader(f))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return c, nil
	case ".las":
		return ReadLAS(path)
	case ".csv", ".xyz", ".txt":
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		c, err := ReadText(f)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return c, nil
	default:
		return nil, fmt.Errorf("do not know how to read file %q", path)
	}
}

// Write stores c at path, choosing the format by extension. PLY files are
// written as ASCII.
func Write(path string, c *cloud.Cloud) (err error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".las" {
		return WriteLAS(path, c)
	}
	if ext != ".ply" && ext != ".csv" && ext != ".xyz" && ext != ".txt" {
		return fmt.Errorf("do not know how to write file %q", path)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	w := bufio.NewWriter(f)
	if ext == ".ply" {
		err = WritePLY(w, c)
	} else {
		sep := " "
		if ext == ".csv" {
			sep = ","
		}
		err = WriteText(w, c, sep)
	}
	if err != nil {
		return err
	}
	return w.Flush()
}

// rawCloud collects points and unnormalised colours before coercion.
type rawCloud struct {
	positions []r3.Vec
	colors    [][3]float64
}

func (r *rawCloud) add(x, y, z, red, green, blue float64) {
	r.positions = append(r.positions, r3.Vec{X: x, Y: y, Z: z})
	r.colors = append(r.colors, [3]float64{red, green, blue})
}

func (r *rawCloud) build() (*cloud.Cloud, error) {
	cols, err := CoerceColors(r.colors)
	if err != nil {
		return nil, err
	}
	return cloud.New(r.positions, cols)
}

// CoerceColors converts floating point colours to 8-bit. If every value lies
// in [0,1] they are scaled by 255 first. Values are clamped to [0,255] and
// truncated toward zero, so 0.5 becomes 127. Non-finite values are rejected.
func CoerceColors(colors [][3]float64) ([]cloud.RGB, error) {
	normalised := true
	for i, c := range colors {
		for _, v := range c {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("%w: colour %d is not finite", cloud.ErrInvalidInput, i)
			}
			if v < 0 || v > 1 {
				normalised = false
			}
		}
	}
	scale := 1.0
	if normalised {
		scale = 255
	}
	out := make([]cloud.RGB, len(colors))
	for i, c := range colors {
		for ch, v := range c {
			out[i][ch] = uint8(math.Trunc(math.Min(255, math.Max(0, v*scale))))
		}
	}
	return out, nil
}
