// Package metrics implements a rank-based metric accumulator: mean rank,
// mean reciprocal rank, and hits@k over the score matrices streamed by the
// evaluation loop.
package metrics

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/tessera-labs/kgeval/internal/evaluation"
	"github.com/tessera-labs/kgeval/internal/triples"
)

// RankBased accumulates realistic ranks, i.e. the mean of the optimistic and
// pessimistic rank of the true score within its row. NaN entries, written by
// the positive filter, are skipped.
type RankBased struct {
	filtered bool
	hitsAt   []int
	ranks    []float64
}

// RankBasedOption configures a RankBased accumulator.
type RankBasedOption func(*RankBased)

// WithFiltered requests NaN-filtered scores.
func WithFiltered() RankBasedOption {
	return func(r *RankBased) {
		r.filtered = true
	}
}

// WithHitsAt sets the cutoffs for the hits@k metrics.
func WithHitsAt(ks ...int) RankBasedOption {
	return func(r *RankBased) {
		r.hitsAt = ks
	}
}

// NewRankBased constructs a rank-based accumulator. The default is
// unfiltered with hits@1, hits@3 and hits@10.
func NewRankBased(opts ...RankBasedOption) *RankBased {
	r := &RankBased{
		hitsAt: []int{1, 3, 10},
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

func (r *RankBased) Filtered() bool {
	return r.filtered
}

func (r *RankBased) RequiresPositiveMask() bool {
	return false
}

// Process ranks every row's true score against the candidate scores of that
// row. Higher scores rank better.
func (r *RankBased) Process(
	_ triples.Side,
	batch triples.TripleSet,
	trueScores []float64,
	scores *mat.Dense,
	_ *mat.Dense,
) {
	for i := range batch {
		row := scores.RawRowView(i)

		better := 0
		betterOrEqual := 0
		for _, v := range row {
			if math.IsNaN(v) {
				continue
			}
			if v > trueScores[i] {
				better++
			}
			if v >= trueScores[i] {
				betterOrEqual++
			}
		}

		optimistic := float64(better + 1)
		pessimistic := float64(betterOrEqual)
		r.ranks = append(r.ranks, (optimistic+pessimistic)/2)
	}
}

// Finalize computes the aggregate metrics and clears the rank buffer.
func (r *RankBased) Finalize() evaluation.Result {
	res := evaluation.Result{}

	n := float64(len(r.ranks))
	if n == 0 {
		return res
	}

	res["mean_rank"] = floats.Sum(r.ranks) / n

	reciprocal := 0.0
	for _, rank := range r.ranks {
		reciprocal += 1 / rank
	}
	res["mean_reciprocal_rank"] = reciprocal / n

	for _, k := range r.hitsAt {
		hits := 0
		for _, rank := range r.ranks {
			if rank <= float64(k) {
				hits++
			}
		}
		res[fmt.Sprintf("hits_at_%d", k)] = float64(hits) / n
	}

	r.ranks = nil
	return res
}
