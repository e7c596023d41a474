package evaluation

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/mat"

	"github.com/tessera-labs/kgeval/internal/filtering"
	"github.com/tessera-labs/kgeval/internal/model"
	"github.com/tessera-labs/kgeval/internal/triples"
)

// Evaluate scores both corruption sides of every triple with the given
// scorer and streams the score matrices to the accumulators. The expensive
// score computation against all entities happens once per batch and side and
// is shared by every accumulator. Results are returned in accumulator order.
func Evaluate(
	scorer model.Scorer,
	ts triples.TripleSet,
	accs []Accumulator,
	opts ...Option,
) ([]Result, error) {
	options := evalOptions{batchSize: 1}
	for _, opt := range opts {
		opt(&options)
	}
	if options.batchSize < 1 {
		return nil, fmt.Errorf("batch size must be positive, got %d", options.batchSize)
	}

	start := time.Now()

	if options.restrictEntities != nil || options.restrictRelations != nil {
		log.Info().Msg("Restricting triples to those of interest")
		mask := triples.RestrictionMask(ts, options.restrictEntities, options.restrictRelations, options.memoryIntense)
		ts = ts.Select(mask)
	}

	filtered, unfiltered := partitionAccumulators(accs)
	filteringNecessary := len(filtered) > 0

	// Positive masks can only be requested by unfiltered accumulators.
	masksRequired := false
	for _, a := range unfiltered {
		if a.RequiresPositiveMask() {
			masksRequired = true
			break
		}
	}

	var positives triples.TripleSet
	if filteringNecessary || masksRequired {
		positives = triples.PositiveIndex(scorer.KnownPositives(), ts)
	}

	evaluatedOnce := false
	for lo := 0; lo < len(ts); lo += options.batchSize {
		hi := min(lo+options.batchSize, len(ts))
		batch := ts[lo:hi]

		// The relation filter depends only on the batch, so the head pass
		// computes it and the tail pass reuses it.
		var relFilter *filtering.RelationFilter
		var err error
		for _, side := range []triples.Side{triples.SideHead, triples.SideTail} {
			relFilter, err = evaluateSide(scorer, batch, side, sideContext{
				filtered:           filtered,
				unfiltered:         unfiltered,
				sliceSize:          options.sliceSize,
				positives:          positives,
				relFilter:          relFilter,
				restrictEntities:   options.restrictEntities,
				masksRequired:      masksRequired,
				filteringNecessary: filteringNecessary,
			})
			if err != nil {
				return nil, err
			}
		}

		// One batch alone may not trigger failure modes that only appear
		// once memory from a prior batch has not been released.
		if options.sizeProbing && evaluatedOnce {
			break
		}
		evaluatedOnce = true
	}

	results := make([]Result, len(accs))
	for i, a := range accs {
		results[i] = a.Finalize()
	}

	if options.sizeProbing {
		log.Debug().Msgf("Evaluation took %s", time.Since(start))
	} else {
		log.Info().Msgf("Evaluation took %s", time.Since(start))
	}

	return results, nil
}

// EvaluateOne is the single-accumulator convenience around Evaluate.
func EvaluateOne(
	scorer model.Scorer,
	ts triples.TripleSet,
	acc Accumulator,
	opts ...Option,
) (Result, error) {
	results, err := Evaluate(scorer, ts, []Accumulator{acc}, opts...)
	if err != nil {
		return nil, err
	}
	return results[0], nil
}

type sideContext struct {
	filtered           []Accumulator
	unfiltered         []Accumulator
	sliceSize          int
	positives          triples.TripleSet
	relFilter          *filtering.RelationFilter
	restrictEntities   []int
	masksRequired      bool
	filteringNecessary bool
}

// evaluateSide processes one corruption side of one batch: score, extract
// true scores, filter, mask, restrict, and dispatch. It returns the relation
// filter for reuse on the batch's other side.
func evaluateSide(
	scorer model.Scorer,
	batch triples.TripleSet,
	side triples.Side,
	ctx sideContext,
) (*filtering.RelationFilter, error) {
	var scores *mat.Dense
	var err error
	if side == triples.SideTail {
		scores, err = scorer.ScoreTails(batch, ctx.sliceSize)
	} else {
		scores, err = scorer.ScoreHeads(batch, ctx.sliceSize)
	}
	if err != nil {
		return nil, fmt.Errorf("scoring %s side: %w", side, err)
	}

	// The query's own score is needed to restore it after filtering.
	trueScores := make([]float64, len(batch))
	for i, t := range batch {
		trueScores[i] = scores.At(i, t.Entity(side))
	}

	relFilter := ctx.relFilter
	var positiveEntries []filtering.Entry
	if ctx.filteringNecessary || ctx.masksRequired {
		positiveEntries, relFilter, err = filtering.PositiveFilter(batch, ctx.positives, side, relFilter)
		if err != nil {
			return nil, err
		}
	}

	var positiveMask *mat.Dense
	if ctx.masksRequired {
		rows, cols := scores.Dims()
		positiveMask = filtering.DensePositiveMask(rows, cols, positiveEntries)
	}

	// Restriction shrinks the candidate pool after scoring: all entities
	// were scored in one call to keep mask alignment, ranking only happens
	// against the restricted columns.
	unfilteredScores := scores
	restrictedMask := positiveMask
	if ctx.restrictEntities != nil {
		unfilteredScores = projectColumns(scores, ctx.restrictEntities)
		if positiveMask != nil {
			restrictedMask = projectColumns(positiveMask, ctx.restrictEntities)
		}
	}

	// Unfiltered accumulators must finish before the in-place NaN filter
	// mutates the shared score matrix.
	for _, a := range ctx.unfiltered {
		mask := restrictedMask
		if !a.RequiresPositiveMask() {
			mask = nil
		}
		a.Process(side, batch, trueScores, unfilteredScores, mask)
	}

	if ctx.filteringNecessary {
		filtering.FilterScores(scores, positiveEntries)

		// The true triple must never be excluded from its own ranking.
		for i, t := range batch {
			scores.Set(i, t.Entity(side), trueScores[i])
		}

		filteredScores := scores
		if ctx.restrictEntities != nil {
			filteredScores = projectColumns(scores, ctx.restrictEntities)
		}

		for _, a := range ctx.filtered {
			a.Process(side, batch, trueScores, filteredScores, nil)
		}
	}

	return relFilter, nil
}

// projectColumns copies the given columns of m, in order, into a new matrix.
func projectColumns(m *mat.Dense, cols []int) *mat.Dense {
	rows, _ := m.Dims()
	out := mat.NewDense(rows, len(cols), nil)
	for i := range rows {
		for k, c := range cols {
			out.Set(i, k, m.At(i, c))
		}
	}
	return out
}
