package cloudio

import (
	"fmt"

	"github.com/edaniels/lidario"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/pointpca2/internal/cloud"
)

// ReadLAS reads a LAS file. Only point formats carrying RGB are accepted;
// 16-bit channels are reduced to 8 bits.
func ReadLAS(path string) (*cloud.Cloud, error) {
	lf, err := lidario.NewLasFile(path, "r")
	if err != nil {
		return nil, err
	}
	defer lf.Close()

	positions := make([]r3.Vec, 0, lf.Header.NumberPoints)
	colors := make([]cloud.RGB, 0, lf.Header.NumberPoints)
	for i := 0; i < lf.Header.NumberPoints; i++ {
		p, err := lf.LasPoint(i)
		if err != nil {
			return nil, fmt.Errorf("%s: point %d: %w", path, i, err)
		}
		rgb := p.RgbData()
		if rgb == nil {
			return nil, fmt.Errorf("%w: %s: point format %d has no colour", cloud.ErrInvalidInput, path, lf.Header.PointFormatID)
		}
		data := p.PointData()
		positions = append(positions, r3.Vec{X: data.X, Y: data.Y, Z: data.Z})
		colors = append(colors, cloud.RGB{uint8(rgb.Red >> 8), uint8(rgb.Green >> 8), uint8(rgb.Blue >> 8)})
	}
	c, err := cloud.New(positions, colors)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// WriteLAS writes c as LAS point format 2 (with RGB).
func WriteLAS(path string, c *cloud.Cloud) (err error) {
	lf, err := lidario.NewLasFile(path, "w")
	if err != nil {
		return err
	}
	defer func() {
		if cerr := lf.Close(); err == nil {
			err = cerr
		}
	}()

	if err = lf.AddHeader(lidario.LasHeader{PointFormatID: 2}); err != nil {
		return err
	}
	for i, p := range c.Positions {
		col := c.Colors[i]
		pr0 := &lidario.PointRecord0{
			X: p.X,
			Y: p.Y,
			Z: p.Z,
			BitField: lidario.PointBitField{
				Value: (1) | (1 << 3),
			},
			PointSourceID: 1,
		}
		lp := &lidario.PointRecord2{
			PointRecord0: pr0,
			RGB: &lidario.RgbData{
				Red:   uint16(col[0]) << 8,
				Green: uint16(col[1]) << 8,
				Blue:  uint16(col[2]) << 8,
			},
		}
		if err = lf.AddLasPoint(lp); err != nil {
			return err
		}
	}
	return nil
}
