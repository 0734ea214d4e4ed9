package cloud

import (
	"cmp"
	"math"
	"slices"

	"gonum.org/v1/gonum/spatial/r3"
)

// MergeDuplicates returns a cloud in which points sharing an exact position
// are collapsed into one point carrying the rounded mean colour. Output
// points are ordered by position (x, then y, then z), so the result does not
// depend on the input ordering. The second return value is the number of
// points removed.
func MergeDuplicates(c *Cloud) (*Cloud, int) {
	order := make([]int, c.Len())
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		return comparePositions(c.Positions[a], c.Positions[b])
	})

	out := &Cloud{
		Positions: make([]r3.Vec, 0, c.Len()),
		Colors:    make([]RGB, 0, c.Len()),
	}
	for start := 0; start < len(order); {
		end := start + 1
		for end < len(order) && c.Positions[order[end]] == c.Positions[order[start]] {
			end++
		}

		var sum [3]float64
		for _, idx := range order[start:end] {
			for ch := 0; ch < 3; ch++ {
				sum[ch] += float64(c.Colors[idx][ch])
			}
		}
		n := float64(end - start)
		var col RGB
		for ch := 0; ch < 3; ch++ {
			col[ch] = uint8(math.Round(sum[ch] / n))
		}

		out.Positions = append(out.Positions, c.Positions[order[start]])
		out.Colors = append(out.Colors, col)
		start = end
	}
	return out, c.Len() - out.Len()
}

func comparePositions(a, b r3.Vec) int {
	if c := cmp.Compare(a.X, b.X); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Y, b.Y); c != 0 {
		return c
	}
	return cmp.Compare(a.Z, b.Z)
}
