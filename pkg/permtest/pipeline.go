// Package permtest drives the permutation loop: a generator feeds a bounded
// work queue, a pool of workers computes the GLM statistic and its TFCE
// enhancement for every permutation, and the per-permutation maxima
// accumulate into the empirical null distributions that rank the observed
// images into p-values.
package permtest

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/andrealuppi/mrtrix3/pkg/connectivity"
	"github.com/andrealuppi/mrtrix3/pkg/glm"
	"github.com/andrealuppi/mrtrix3/pkg/permutation"
	"github.com/andrealuppi/mrtrix3/pkg/tfce"
)

// Sentinel errors for run parameters.
var (
	// ErrPermutationCount indicates a requested permutation count below 1.
	ErrPermutationCount = errors.New("permtest: permutation count must be at least 1")
	// ErrWorkerCount indicates a negative worker count.
	ErrWorkerCount = errors.New("permtest: worker count must not be negative")
	// ErrNodeCount indicates a data matrix whose row count differs from the
	// graph's node count.
	ErrNodeCount = errors.New("permtest: data rows do not match graph node count")
)

// Params are the caller-tunable knobs of a run. The zero value of Workers
// and QueueDepth selects sensible defaults; everything else mirrors the
// historical command-line defaults (see config.DefaultConfig).
type Params struct {
	// NumPermutations counts the identity permutation, so the null
	// distributions end up with NumPermutations-1 entries each.
	NumPermutations int
	// DH is the TFCE integration step.
	DH float64
	// ExtentExponent and HeightExponent are the TFCE E and H parameters.
	ExtentExponent float64
	HeightExponent float64
	// Workers sizes the pool; 0 means one worker per CPU.
	Workers int
	// QueueDepth bounds the descriptor channel; 0 means twice the workers.
	QueueDepth int
	// Seed makes the permutation sequence reproducible when non-zero.
	Seed int64
	// SignFlip switches the generator from row reordering to sign flipping,
	// for designs symmetric about zero.
	SignFlip bool
}

func (p *Params) validate() error {
	if p.NumPermutations < 1 {
		return fmt.Errorf("%w: %d", ErrPermutationCount, p.NumPermutations)
	}
	if p.DH <= 0 {
		return fmt.Errorf("%w: %g", tfce.ErrInvalidStep, p.DH)
	}
	if p.Workers < 0 {
		return fmt.Errorf("%w: %d", ErrWorkerCount, p.Workers)
	}
	return nil
}

// Result holds everything a run produces. All images are indexed by graph
// node order; re-embedding them into volumetric form is the business of the
// imaging I/O tools.
type Result struct {
	// ObservedStatistic is the identity permutation's raw t image.
	ObservedStatistic []float64
	// ObservedPos and ObservedNeg are the enhanced images of the identity
	// statistic and its negation.
	ObservedPos []float64
	ObservedNeg []float64
	// NullPos and NullNeg hold the maximum enhanced value of every
	// non-identity permutation; length NumPermutations-1.
	NullPos []float64
	NullNeg []float64
	// PValuesPos and PValuesNeg rank the observed images against the nulls.
	PValuesPos []float64
	PValuesNeg []float64
	// Elapsed is the wall-clock duration of the permutation loop.
	Elapsed time.Duration
}

// Run executes the full pipeline against a prebuilt graph and data matrix.
// The graph, data, design and contrast are shared read-only across workers;
// the null accumulators and the observed slot are the only mutable shared
// state and sit behind a single mutex. On worker failure the remaining
// workers drain at their next queue pull, everything is joined, and the
// first failure is returned with no partial result.
func Run(graph *connectivity.Graph, data, design *mat.Dense, contrast []float64, params Params, logger *zap.Logger) (*Result, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := params.validate(); err != nil {
		return nil, err
	}
	if err := glm.Validate(data, design, contrast); err != nil {
		return nil, err
	}
	nodes, subjects := data.Dims()
	if nodes != graph.NumNodes() {
		return nil, fmt.Errorf("%w: data has %d rows, graph has %d nodes",
			ErrNodeCount, nodes, graph.NumNodes())
	}

	workers := params.Workers
	if workers == 0 {
		workers = runtime.NumCPU()
	}
	queueDepth := params.QueueDepth
	if queueDepth == 0 {
		queueDepth = 2 * workers
	}

	logger.Info("starting permutation testing",
		zap.Int("permutations", params.NumPermutations),
		zap.Int("workers", workers),
		zap.Int("nodes", nodes),
		zap.Int("subjects", subjects),
		zap.Float64("dh", params.DH),
		zap.Float64("tfce_e", params.ExtentExponent),
		zap.Float64("tfce_h", params.HeightExponent))

	gen := permutation.NewGenerator(params.NumPermutations, subjects, params.SignFlip, params.Seed)

	res := &Result{
		NullPos: make([]float64, 0, params.NumPermutations-1),
		NullNeg: make([]float64, 0, params.NumPermutations-1),
	}
	var mu sync.Mutex

	start := time.Now()
	eg, ctx := errgroup.WithContext(context.Background())

	work := make(chan permutation.Descriptor, queueDepth)
	eg.Go(func() error {
		defer close(work)
		for {
			desc, ok := gen.Next()
			if !ok {
				return nil
			}
			select {
			case work <- desc:
			case <-ctx.Done():
				// A worker failed; stop feeding so the pool drains.
				return nil
			}
		}
	})

	for w := 0; w < workers; w++ {
		eg.Go(func() error {
			for desc := range work {
				if ctx.Err() != nil {
					return nil
				}
				if err := processOne(graph, data, design, contrast, params, desc, res, &mu); err != nil {
					return fmt.Errorf("permutation %d: %w", desc.Index, err)
				}
			}
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		logger.Error("permutation run failed", zap.Error(err))
		return nil, err
	}
	res.Elapsed = time.Since(start)

	res.PValuesPos = PValues(res.NullPos, res.ObservedPos)
	res.PValuesNeg = PValues(res.NullNeg, res.ObservedNeg)

	logger.Info("permutation testing complete",
		zap.Duration("elapsed", res.Elapsed),
		zap.Int("null_size", len(res.NullPos)))
	return res, nil
}

// processOne runs the statistic and enhancement stages for one descriptor
// and folds the outcome into the shared accumulators.
func processOne(graph *connectivity.Graph, data, design *mat.Dense, contrast []float64,
	params Params, desc permutation.Descriptor, res *Result, mu *sync.Mutex) error {

	statistic, err := glm.ComputeStatistic(data, design, contrast, desc)
	if err != nil {
		return err
	}
	enhPos, err := tfce.Enhance(statistic, graph, params.DH, params.ExtentExponent, params.HeightExponent)
	if err != nil {
		return err
	}
	enhNeg, err := tfce.Enhance(tfce.Negate(statistic), graph, params.DH, params.ExtentExponent, params.HeightExponent)
	if err != nil {
		return err
	}

	mu.Lock()
	defer mu.Unlock()
	if desc.Identity {
		// The generator issues the identity exactly once, so this slot is
		// written exactly once regardless of which worker got it.
		res.ObservedStatistic = statistic
		res.ObservedPos = enhPos
		res.ObservedNeg = enhNeg
		return nil
	}
	res.NullPos = append(res.NullPos, maxValue(enhPos))
	res.NullNeg = append(res.NullNeg, maxValue(enhNeg))
	return nil
}

func maxValue(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v > m {
			m = v
		}
	}
	return m
}
