// Package evaluation implements the memory-adaptive batched evaluation
// engine for link prediction: the batch loop that scores both corruption
// sides of every test triple, applies positive filtering, and streams the
// score matrices to metric accumulators, plus the size controller that
// discovers a workable batch or slice size by probing.
package evaluation

import (
	"gonum.org/v1/gonum/mat"

	"github.com/tessera-labs/kgeval/internal/triples"
)

// Result is a finalized set of metric values keyed by metric name.
type Result map[string]float64

// Accumulator consumes per-batch score matrices and maintains running metric
// state. Accumulators declare their capabilities up front; Evaluate
// partitions them once per call instead of re-inspecting them per batch.
type Accumulator interface {
	// Filtered reports whether the accumulator needs NaN-filtered scores.
	Filtered() bool

	// RequiresPositiveMask reports whether the accumulator needs a dense
	// 0/1 positive mask alongside raw scores. Only consulted for
	// unfiltered accumulators.
	RequiresPositiveMask() bool

	// Process consumes one corruption side of one batch. trueScores holds,
	// per row, the score of the batch's own true entity on that side.
	// positiveMask is nil unless the accumulator requires it. The scores
	// matrix must not be retained past the call.
	Process(side triples.Side, batch triples.TripleSet, trueScores []float64, scores *mat.Dense, positiveMask *mat.Dense)

	// Finalize computes the final result and releases internal buffers.
	// Called exactly once at the end of an evaluation.
	Finalize() Result
}

// partitionAccumulators splits the accumulators into those needing filtered
// scores and those working on raw scores.
func partitionAccumulators(accs []Accumulator) (filtered, unfiltered []Accumulator) {
	for _, a := range accs {
		if a.Filtered() {
			filtered = append(filtered, a)
		} else {
			unfiltered = append(unfiltered, a)
		}
	}
	return filtered, unfiltered
}
