package aggregate

import (
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/pointpca2/internal/cloud"
	"github.com/banshee-data/pointpca2/internal/features"
	"github.com/banshee-data/pointpca2/internal/pca"
)

// Size is the length of the pooled vector: a mean and a standard deviation
// for every predictor.
const Size = 2 * features.NumPredictors

// chunkSize is the number of consecutive rows reduced together before
// merging.
const chunkSize = 4096

// Vector is the pooled quality vector. Index c < 20 is the mean of
// predictor c, index 20+c its population standard deviation.
type Vector [Size]float64

// Names returns the vector's channel names in order.
func Names() [Size]string {
	var out [Size]string
	for i, n := range features.Names() {
		out[i] = n + "_mean"
		out[features.NumPredictors+i] = n + "_std"
	}
	return out
}

// moments is a running count, mean and sum of squared deviations for every
// predictor.
type moments struct {
	n    float64
	mean features.Row
	m2   features.Row
}

// merge folds b into a (Chan et al. pairwise update).
func (a *moments) merge(b moments) {
	if b.n == 0 {
		return
	}
	if a.n == 0 {
		*a = b
		return
	}
	n := a.n + b.n
	for c := range a.mean {
		delta := b.mean[c] - a.mean[c]
		a.mean[c] += delta * b.n / n
		a.m2[c] += b.m2[c] + delta*delta*a.n*b.n/n
	}
	a.n = n
}

// reduce computes the moments of one chunk of rows. offset is the index of
// the chunk's first row, used in errors.
func reduce(rows []features.Row, offset int) (moments, error) {
	m := moments{n: float64(len(rows))}
	col := make([]float64, len(rows))
	names := features.Names()
	for c := 0; c < features.NumPredictors; c++ {
		for i := range rows {
			v := rows[i][c]
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return moments{}, fmt.Errorf("%w: row %d %s is %g", pca.ErrNumericalInstability, offset+i, names[c], v)
			}
			col[i] = v
		}
		mean, variance := stat.PopMeanVariance(col, nil)
		m.mean[c] = mean
		m.m2[c] = variance * m.n
	}
	return m, nil
}

func chunks(n int) int {
	return (n + chunkSize - 1) / chunkSize
}

func chunk(rows []features.Row, i int) []features.Row {
	lo := i * chunkSize
	return rows[lo:min(lo+chunkSize, len(rows))]
}

// Pool reduces rows to the quality vector.
func Pool(rows []features.Row) (Vector, error) {
	if len(rows) == 0 {
		return Vector{}, fmt.Errorf("%w: no predictor rows to pool", cloud.ErrInvalidInput)
	}
	var total moments
	for i := 0; i < chunks(len(rows)); i++ {
		m, err := reduce(chunk(rows, i), i*chunkSize)
		if err != nil {
			return Vector{}, err
		}
		total.merge(m)
	}
	return finish(total)
}

// PoolParallel is Pool with the chunk reductions spread over at most
// workers goroutines. The result is bit-identical to Pool.
func PoolParallel(rows []features.Row, workers int) (Vector, error) {
	if len(rows) == 0 {
		return Vector{}, fmt.Errorf("%w: no predictor rows to pool", cloud.ErrInvalidInput)
	}
	nc := chunks(len(rows))
	if workers <= 1 || nc == 1 {
		return Pool(rows)
	}

	partials := make([]moments, nc)
	var g errgroup.Group
	g.SetLimit(workers)
	for i := 0; i < nc; i++ {
		g.Go(func() error {
			m, err := reduce(chunk(rows, i), i*chunkSize)
			partials[i] = m
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return Vector{}, err
	}

	var total moments
	for _, p := range partials {
		total.merge(p)
	}
	return finish(total)
}

func finish(m moments) (Vector, error) {
	var v Vector
	for c := 0; c < features.NumPredictors; c++ {
		v[c] = m.mean[c]
		v[features.NumPredictors+c] = math.Sqrt(max(m.m2[c]/m.n, 0))
	}
	names := Names()
	for i, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return Vector{}, fmt.Errorf("%w: pooled %s is %g", pca.ErrNumericalInstability, names[i], x)
		}
	}
	return v, nil
}
