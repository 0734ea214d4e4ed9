package spatial

import (
	"runtime"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/spatial/r3"
)

// correspondChunk is the number of consecutive query points handled by one
// task. Chunk boundaries do not depend on the worker count.
const correspondChunk = 1024

// Correspondence maps each query point index to the index of its nearest
// point in the indexed cloud.
type Correspondence []int

// Correspond maps every point of reference to its nearest point in test,
// using position only. Ties go to the lowest test index, or the lowest rank
// when test was built with BuildOrdered. Work is spread over
// at most workers goroutines (GOMAXPROCS when workers < 1); the result does
// not depend on the worker count.
//
// Roles can be swapped to obtain the test-to-reference direction.
func Correspond(reference []r3.Vec, test *KDTree, workers int) (Correspondence, error) {
	if workers < 1 {
		workers = runtime.GOMAXPROCS(0)
	}
	out := make(Correspondence, len(reference))

	var g errgroup.Group
	g.SetLimit(workers)
	for lo := 0; lo < len(reference); lo += correspondChunk {
		hi := min(lo+correspondChunk, len(reference))
		g.Go(func() error {
			s := test.NewSearcher()
			for i := lo; i < hi; i++ {
				s.reset(1)
				test.search(0, reference[i], s)
				out[i] = s.heap.items[0].index
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Distances returns, for each entry of c, the Euclidean distance between the
// query point and its match.
func (c Correspondence) Distances(reference []r3.Vec, test *KDTree) []float64 {
	out := make([]float64, len(c))
	for i, j := range c {
		out[i] = r3.Norm(r3.Sub(reference[i], test.Point(j)))
	}
	return out
}
