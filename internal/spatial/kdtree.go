package spatial

import (
	"cmp"
	"container/heap"
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/pointpca2/internal/cloud"
)

// leafSize is the maximum number of points stored in a leaf bucket.
const leafSize = 8

type node struct {
	lo, hi      int // range of perm covered by this node
	axis        int // split axis, -1 for leaves
	split       float64
	left, right int32
}

// KDTree is a balanced k-d tree over a fixed set of 3D positions.
type KDTree struct {
	points []r3.Vec
	perm   []int
	nodes  []node
	// rank orders equidistant points; nil means index order.
	rank []int
}

// Build constructs a KDTree over points. Equidistant points are ordered by
// ascending index. The slice is retained and must not be modified while the
// tree is in use.
func Build(points []r3.Vec) (*KDTree, error) {
	return build(points, nil)
}

// BuildOrdered is Build with equidistant points ordered by ascending
// rank[i] instead of index. rank must be a permutation of 0..len(points)-1.
func BuildOrdered(points []r3.Vec, rank []int) (*KDTree, error) {
	if len(rank) != len(points) {
		return nil, fmt.Errorf("%w: %d ranks for %d points", cloud.ErrInvalidInput, len(rank), len(points))
	}
	seen := make([]bool, len(rank))
	for i, r := range rank {
		if r < 0 || r >= len(rank) || seen[r] {
			return nil, fmt.Errorf("%w: rank %d of point %d is not a permutation entry", cloud.ErrInvalidInput, r, i)
		}
		seen[r] = true
	}
	return build(points, rank)
}

func build(points []r3.Vec, rank []int) (*KDTree, error) {
	if len(points) == 0 {
		return nil, fmt.Errorf("%w: cannot index an empty cloud", cloud.ErrInvalidInput)
	}
	for i, p := range points {
		if !finite(p.X) || !finite(p.Y) || !finite(p.Z) {
			return nil, fmt.Errorf("%w: point %d has non-finite coordinates", cloud.ErrInvalidInput, i)
		}
	}

	t := &KDTree{
		points: points,
		perm:   make([]int, len(points)),
		nodes:  make([]node, 0, 2*len(points)/leafSize+1),
		rank:   rank,
	}
	for i := range t.perm {
		t.perm[i] = i
	}
	t.build(0, len(points))
	return t, nil
}

func (t *KDTree) build(lo, hi int) int32 {
	id := int32(len(t.nodes))
	t.nodes = append(t.nodes, node{lo: lo, hi: hi, axis: -1})
	if hi-lo <= leafSize {
		return id
	}

	axis, extent := t.widestAxis(lo, hi)
	if extent == 0 {
		// All points coincide; no split can separate them.
		return id
	}

	idx := t.perm[lo:hi]
	slices.SortFunc(idx, func(a, b int) int {
		if c := cmp.Compare(coord(t.points[a], axis), coord(t.points[b], axis)); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})
	mid := lo + (hi-lo)/2
	split := coord(t.points[t.perm[mid]], axis)

	left := t.build(lo, mid)
	right := t.build(mid, hi)
	n := &t.nodes[id]
	n.axis = axis
	n.split = split
	n.left = left
	n.right = right
	return id
}

// widestAxis returns the axis with the largest bounding-box extent over
// perm[lo:hi] and that extent.
func (t *KDTree) widestAxis(lo, hi int) (int, float64) {
	minP, maxP := t.points[t.perm[lo]], t.points[t.perm[lo]]
	for _, i := range t.perm[lo+1 : hi] {
		p := t.points[i]
		minP = r3.Vec{X: math.Min(minP.X, p.X), Y: math.Min(minP.Y, p.Y), Z: math.Min(minP.Z, p.Z)}
		maxP = r3.Vec{X: math.Max(maxP.X, p.X), Y: math.Max(maxP.Y, p.Y), Z: math.Max(maxP.Z, p.Z)}
	}
	ext := r3.Sub(maxP, minP)
	axis, extent := 0, ext.X
	if ext.Y > extent {
		axis, extent = 1, ext.Y
	}
	if ext.Z > extent {
		axis, extent = 2, ext.Z
	}
	return axis, extent
}

// Len returns the number of indexed points.
func (t *KDTree) Len() int {
	return len(t.points)
}

// Point returns the position of indexed point i.
func (t *KDTree) Point(i int) r3.Vec {
	return t.points[i]
}

// QueryKNN returns the indices of the k points nearest to q, in ascending
// distance order with ties broken by ascending index (or rank, for trees
// from BuildOrdered).
func (t *KDTree) QueryKNN(q r3.Vec, k int) ([]int, error) {
	return t.NewSearcher().KNN(q, k, nil)
}

// Nearest returns the index of the point nearest to q, preferring the lowest
// index (or rank) among equidistant points.
func (t *KDTree) Nearest(q r3.Vec) int {
	s := t.NewSearcher()
	s.reset(1)
	t.search(0, q, s)
	return s.heap.items[0].index
}

// Neighborhood returns the k points nearest to the position of indexed point
// anchor, in query order. The list always starts at the anchor's position.
// The anchor itself is included unless more than k points share its position
// and it orders after k of them; the chosen points then all sit at the
// anchor's position.
func (t *KDTree) Neighborhood(anchor, k int) ([]int, error) {
	return t.NewSearcher().Neighborhood(anchor, k, nil)
}

// Searcher runs queries against a KDTree while reusing its scratch buffers.
// A Searcher is not safe for concurrent use; create one per goroutine.
type Searcher struct {
	tree *KDTree
	heap candidateHeap
}

// NewSearcher returns a Searcher bound to t.
func (t *KDTree) NewSearcher() *Searcher {
	return &Searcher{tree: t}
}

// KNN appends the k nearest indices of q to dst[:0] and returns it.
func (s *Searcher) KNN(q r3.Vec, k int, dst []int) ([]int, error) {
	if k < 1 || k > s.tree.Len() {
		return nil, fmt.Errorf("%w: k=%d outside [1, %d]", cloud.ErrInvalidInput, k, s.tree.Len())
	}
	s.reset(k)
	s.tree.search(0, q, s)

	items := s.heap.items
	slices.SortFunc(items, func(a, b candidate) int {
		if c := cmp.Compare(a.dist2, b.dist2); c != 0 {
			return c
		}
		return cmp.Compare(a.key, b.key)
	})
	dst = dst[:0]
	for _, c := range items {
		dst = append(dst, c.index)
	}
	return dst, nil
}

// Neighborhood is the buffer-reusing form of KDTree.Neighborhood.
func (s *Searcher) Neighborhood(anchor, k int, dst []int) ([]int, error) {
	if anchor < 0 || anchor >= s.tree.Len() {
		return nil, fmt.Errorf("%w: anchor %d outside cloud of %d points", cloud.ErrInvalidInput, anchor, s.tree.Len())
	}
	return s.KNN(s.tree.points[anchor], k, dst)
}

func (s *Searcher) reset(k int) {
	s.heap.items = s.heap.items[:0]
	s.heap.k = k
}

func (t *KDTree) search(id int32, q r3.Vec, s *Searcher) {
	n := &t.nodes[id]
	if n.axis < 0 {
		for _, i := range t.perm[n.lo:n.hi] {
			s.heap.offer(candidate{dist2: r3.Norm2(r3.Sub(q, t.points[i])), key: t.key(i), index: i})
		}
		return
	}

	diff := coord(q, n.axis) - n.split
	near, far := n.left, n.right
	if diff > 0 {
		near, far = n.right, n.left
	}
	t.search(near, q, s)
	// Equal bounds are still visited so that equidistant points with lower
	// keys in the far subtree can displace the current worst candidate.
	if !s.heap.full() || diff*diff <= s.heap.worst().dist2 {
		t.search(far, q, s)
	}
}

func (t *KDTree) key(i int) int {
	if t.rank == nil {
		return i
	}
	return t.rank[i]
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func coord(p r3.Vec, axis int) float64 {
	switch axis {
	case 0:
		return p.X
	case 1:
		return p.Y
	default:
		return p.Z
	}
}

type candidate struct {
	dist2 float64
	key   int
	index int
}

// after reports whether a ranks after b in (distance, key) order.
func after(a, b candidate) bool {
	if a.dist2 != b.dist2 {
		return a.dist2 > b.dist2
	}
	return a.key > b.key
}

// candidateHeap is a bounded max-heap whose root is the worst kept candidate.
type candidateHeap struct {
	items []candidate
	k     int
}

func (h *candidateHeap) Len() int           { return len(h.items) }
func (h *candidateHeap) Less(i, j int) bool { return after(h.items[i], h.items[j]) }
func (h *candidateHeap) Swap(i, j int)      { h.items[i], h.items[j] = h.items[j], h.items[i] }
func (h *candidateHeap) Push(x any)         { h.items = append(h.items, x.(candidate)) }
func (h *candidateHeap) Pop() any {
	last := h.items[len(h.items)-1]
	h.items = h.items[:len(h.items)-1]
	return last
}

func (h *candidateHeap) full() bool       { return len(h.items) >= h.k }
func (h *candidateHeap) worst() candidate { return h.items[0] }

func (h *candidateHeap) offer(c candidate) {
	if !h.full() {
		heap.Push(h, c)
		return
	}
	if after(h.items[0], c) {
		h.items[0] = c
		heap.Fix(h, 0)
	}
}
