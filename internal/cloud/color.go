package cloud

// ITU-R BT.709 luma coefficients.
const (
	lumaR = 0.2126
	lumaG = 0.7152
	lumaB = 0.0722

	// Chroma scale factors: 2(1-Kb) and 2(1-Kr).
	cbScale = 1.8556
	crScale = 1.5748
)

// YCbCr is a colour in BT.709 Y'CbCr on a unit scale: Y in [0, 1], Cb and
// Cr in [-0.5, 0.5].
type YCbCr struct {
	Y, Cb, Cr float64
}

// Channel returns channel ch (0 = Y, 1 = Cb, 2 = Cr).
func (c YCbCr) Channel(ch int) float64 {
	switch ch {
	case 0:
		return c.Y
	case 1:
		return c.Cb
	default:
		return c.Cr
	}
}

// ToYCbCr converts an 8-bit RGB colour to BT.709 Y'CbCr. The same transform
// is applied to reference and test clouds.
func ToYCbCr(c RGB) YCbCr {
	r := float64(c[0]) / 255
	g := float64(c[1]) / 255
	b := float64(c[2]) / 255

	y := lumaR*r + lumaG*g + lumaB*b
	return YCbCr{
		Y:  y,
		Cb: (b - y) / cbScale,
		Cr: (r - y) / crScale,
	}
}
