// Package permutation produces the bounded sequence of relabelings the
// permutation test iterates over: row reorderings of the design matrix, or
// sign-flip assignments for symmetric designs.
package permutation

import (
	"math/rand"
	"sync"
	"time"
)

// Descriptor describes one permutation. Exactly one of Order or Signs is
// populated, depending on the generator mode. The first descriptor issued by
// a Generator is always the identity, marked by the Identity flag; workers
// use the flag, not processing order, to recognise the observed case.
type Descriptor struct {
	// Index is the position in the issue sequence, 0 for the identity.
	Index int
	// Order maps output row i to input row Order[i]. Nil in sign-flip mode.
	Order []int
	// Signs holds +1/-1 per subject row. Nil in reordering mode.
	Signs []int8
	// Identity marks the unpermuted descriptor.
	Identity bool
}

// Generator issues up to a fixed number of descriptors, the identity first,
// then uniformly random permutations (or sign assignments). It is safe for
// concurrent use: the worker pool calls Next from every worker.
//
// Duplicate random permutations are tolerated; they affect the smoothness of
// the empirical null, not its correctness.
type Generator struct {
	mu       sync.Mutex
	rng      *rand.Rand
	issued   int
	total    int
	subjects int
	signFlip bool
}

// NewGenerator creates a generator for total descriptors over the given
// subject count. In sign-flip mode descriptors carry Signs, otherwise Order.
// A non-zero seed makes the sequence reproducible; seed 0 seeds from the
// wall clock, the production default.
func NewGenerator(total, subjects int, signFlip bool, seed int64) *Generator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Generator{
		rng:      rand.New(rand.NewSource(seed)),
		total:    total,
		subjects: subjects,
		signFlip: signFlip,
	}
}

// Next returns the next descriptor, or ok == false once the requested count
// has been issued.
func (g *Generator) Next() (Descriptor, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.issued >= g.total {
		return Descriptor{}, false
	}
	idx := g.issued
	g.issued++

	d := Descriptor{Index: idx, Identity: idx == 0}
	if g.signFlip {
		d.Signs = make([]int8, g.subjects)
		for i := range d.Signs {
			d.Signs[i] = 1
		}
		if !d.Identity {
			for i := range d.Signs {
				if g.rng.Intn(2) == 1 {
					d.Signs[i] = -1
				}
			}
		}
		return d, true
	}

	d.Order = make([]int, g.subjects)
	for i := range d.Order {
		d.Order[i] = i
	}
	if !d.Identity {
		g.rng.Shuffle(g.subjects, func(i, j int) {
			d.Order[i], d.Order[j] = d.Order[j], d.Order[i]
		})
	}
	return d, true
}
