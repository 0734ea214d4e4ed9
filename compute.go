package pointpca2

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/pointpca2/internal/aggregate"
	"github.com/banshee-data/pointpca2/internal/cloud"
	"github.com/banshee-data/pointpca2/internal/features"
	"github.com/banshee-data/pointpca2/internal/monitoring"
	"github.com/banshee-data/pointpca2/internal/spatial"
)

// Counts is a per-side tally.
type Counts struct {
	Reference int
	Test      int
}

// Result is the outcome of ComputeDetailed.
type Result struct {
	Predictors Vector
	// PerPoint holds the unpooled predictors, one row per reference point
	// (after duplicate merging, when enabled).
	PerPoint []Row
	// Correspondence maps each reference point to its nearest test point.
	Correspondence []int
	// Degenerate counts the rank-deficient neighbourhoods on each side:
	// coincident or collinear points, for which plane and cross-axis terms
	// fall back to zero.
	Degenerate    Counts
	ReferenceSize int
	TestSize      int
	// Merged is the number of duplicate points removed from each cloud.
	Merged   Counts
	Duration time.Duration
}

// Compute returns the predictor vector of test against reference.
func Compute(reference, test *Cloud, opts Options) (Vector, error) {
	res, err := ComputeContext(context.Background(), reference, test, opts)
	if err != nil {
		return Vector{}, err
	}
	return res.Predictors, nil
}

// ComputeDetailed is Compute returning the intermediate results as well.
func ComputeDetailed(reference, test *Cloud, opts Options) (*Result, error) {
	return ComputeContext(context.Background(), reference, test, opts)
}

// ComputeContext is ComputeDetailed with cancellation. A cancelled context
// stops the per-point workers and its error is returned.
func ComputeContext(ctx context.Context, reference, test *Cloud, opts Options) (*Result, error) {
	start := time.Now()
	if reference == nil || test == nil {
		return nil, fmt.Errorf("%w: nil point cloud", ErrInvalidInput)
	}
	if opts.SearchSize < 1 {
		return nil, fmt.Errorf("%w: search size %d must be at least 1", ErrInvalidInput, opts.SearchSize)
	}

	res := &Result{}
	if opts.MergeDuplicates {
		reference, res.Merged.Reference = cloud.MergeDuplicates(reference)
		test, res.Merged.Test = cloud.MergeDuplicates(test)
		if res.Merged.Reference > 0 || res.Merged.Test > 0 {
			monitoring.Opsf("merged duplicate points: %d reference, %d test", res.Merged.Reference, res.Merged.Test)
		}
	}
	res.ReferenceSize, res.TestSize = reference.Len(), test.Len()
	if opts.SearchSize > res.ReferenceSize || opts.SearchSize > res.TestSize {
		return nil, fmt.Errorf("%w: search size %d exceeds cloud size (reference %d, test %d)",
			ErrInvalidInput, opts.SearchSize, res.ReferenceSize, res.TestSize)
	}

	workers := opts.workers()
	progress := func(format string, args ...interface{}) {
		if opts.Verbose {
			monitoring.Diagf(format, args...)
		}
	}

	// Content ranks make every neighbourhood, and its order, independent of
	// how each cloud happens to be stored.
	refTree, err := spatial.BuildOrdered(reference.Positions, cloud.Ranks(reference))
	if err != nil {
		return nil, fmt.Errorf("index reference cloud: %w", err)
	}
	testTree, err := spatial.BuildOrdered(test.Positions, cloud.Ranks(test))
	if err != nil {
		return nil, fmt.Errorf("index test cloud: %w", err)
	}
	progress("indexed %d reference and %d test points", res.ReferenceSize, res.TestSize)

	corr, err := spatial.Correspond(reference.Positions, testTree, workers)
	if err != nil {
		return nil, fmt.Errorf("correspondence: %w", err)
	}
	res.Correspondence = corr
	progress("matched %d reference points", len(corr))

	p := &pipeline{
		reference: reference,
		test:      test,
		refTree:   refTree,
		testTree:  testTree,
		refColors: reference.YCbCr(nil),
		tstColors: test.YCbCr(nil),
		corr:      corr,
		k:         opts.SearchSize,
		rows:      make([]features.Row, res.ReferenceSize),
		progress:  progress,
	}
	if err := p.run(ctx, workers); err != nil {
		return nil, err
	}
	res.PerPoint = p.rows
	res.Degenerate = Counts{
		Reference: int(p.degenerateRef.Load()),
		Test:      int(p.degenerateTest.Load()),
	}
	if res.Degenerate.Reference > 0 || res.Degenerate.Test > 0 {
		monitoring.Opsf("rank-deficient neighbourhoods: %d reference, %d test (of %d)",
			res.Degenerate.Reference, res.Degenerate.Test, res.ReferenceSize)
	}

	res.Predictors, err = aggregate.PoolParallel(p.rows, workers)
	if err != nil {
		return nil, err
	}
	res.Duration = time.Since(start)
	progress("pooled %d rows in %s", len(p.rows), res.Duration)
	return res, nil
}

// pipeline holds the shared, read-only state of the per-point stage.
type pipeline struct {
	reference, test      *Cloud
	refTree, testTree    *spatial.KDTree
	refColors, tstColors []cloud.YCbCr
	corr                 spatial.Correspondence
	k                    int
	rows                 []features.Row
	progress             func(format string, args ...interface{})

	done                          atomic.Int64
	degenerateRef, degenerateTest atomic.Int64
}

// run fills p.rows. Each worker owns one contiguous block of reference
// points and writes only its own rows.
func (p *pipeline) run(ctx context.Context, workers int) error {
	n := len(p.rows)
	block := (n + workers - 1) / workers
	g, ctx := errgroup.WithContext(ctx)
	for lo := 0; lo < n; lo += block {
		hi := min(lo+block, n)
		g.Go(func() error {
			return p.runBlock(ctx, lo, hi)
		})
	}
	return g.Wait()
}

// scratch is the per-worker buffer set.
type scratch struct {
	refSearch, testSearch *spatial.Searcher
	refIdx, testIdx       []int
	refPos, testPos       []r3.Vec
	refCol, testCol       []cloud.YCbCr
}

func (p *pipeline) runBlock(ctx context.Context, lo, hi int) error {
	s := &scratch{
		refSearch:  p.refTree.NewSearcher(),
		testSearch: p.testTree.NewSearcher(),
		refPos:     make([]r3.Vec, p.k),
		testPos:    make([]r3.Vec, p.k),
		refCol:     make([]cloud.YCbCr, p.k),
		testCol:    make([]cloud.YCbCr, p.k),
	}
	trace := monitoring.TraceEnabled()
	var degRef, degTest int64
	for i := lo; i < hi; i++ {
		if (i-lo)%256 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		ref, tst, err := p.samples(s, i)
		if err != nil {
			return fmt.Errorf("point %d: %w", i, err)
		}
		if ref.Frame.RankDeficient() {
			degRef++
		}
		if tst.Frame.RankDeficient() {
			degTest++
		}
		p.rows[i] = features.Predict(ref, tst)
		if trace {
			monitoring.Tracef("point %d matched %d: %v", i, p.corr[i], p.rows[i])
		}
	}
	p.degenerateRef.Add(degRef)
	p.degenerateTest.Add(degTest)
	done := p.done.Add(int64(hi - lo))
	p.progress("described %d/%d neighbourhoods", done, len(p.rows))
	return nil
}

// samples builds the reference neighbourhood around point i and the test
// neighbourhood around its match. Both are taken in query order, so the
// structure term can pair them point by point.
func (p *pipeline) samples(s *scratch, i int) (features.Sample, features.Sample, error) {
	var err error
	s.refIdx, err = s.refSearch.Neighborhood(i, p.k, s.refIdx)
	if err != nil {
		return features.Sample{}, features.Sample{}, err
	}
	j := p.corr[i]
	s.testIdx, err = s.testSearch.Neighborhood(j, p.k, s.testIdx)
	if err != nil {
		return features.Sample{}, features.Sample{}, err
	}

	for n, idx := range s.refIdx {
		s.refPos[n] = p.reference.Positions[idx]
		s.refCol[n] = p.refColors[idx]
	}
	for n, idx := range s.testIdx {
		s.testPos[n] = p.test.Positions[idx]
		s.testCol[n] = p.tstColors[idx]
	}

	ref, err := features.NewSample(s.refPos, s.refCol, p.reference.Positions[i])
	if err != nil {
		return features.Sample{}, features.Sample{}, err
	}
	tst, err := features.NewSample(s.testPos, s.testCol, p.test.Positions[j])
	if err != nil {
		return features.Sample{}, features.Sample{}, err
	}
	return ref, tst, nil
}
