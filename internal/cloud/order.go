package cloud

import (
	"cmp"
	"slices"
)

// Ranks orders the points by content: position (x, then y, then z), then
// colour (R, G, B), then index. rank[i] is the place of point i in that
// order. Points only share a relative order that depends on storage order
// when they are identical in position and colour.
func Ranks(c *Cloud) []int {
	order := make([]int, c.Len())
	for i := range order {
		order[i] = i
	}
	slices.SortFunc(order, func(a, b int) int {
		if d := comparePositions(c.Positions[a], c.Positions[b]); d != 0 {
			return d
		}
		for ch := 0; ch < 3; ch++ {
			if d := cmp.Compare(c.Colors[a][ch], c.Colors[b][ch]); d != 0 {
				return d
			}
		}
		return cmp.Compare(a, b)
	})

	rank := make([]int, len(order))
	for r, i := range order {
		rank[i] = r
	}
	return rank
}
