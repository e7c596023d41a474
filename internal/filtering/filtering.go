// Package filtering computes which candidate scores of a batch correspond to
// other known-true triples, and blanks them out of a score matrix so that
// filtered ranking metrics never count a true triple as a corruption.
package filtering

import (
	"errors"
	"fmt"
	"math"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/mat"

	"github.com/tessera-labs/kgeval/internal/triples"
)

// ErrInvalidSide is returned when a corruption side outside {head, tail} is
// passed to PositiveFilter. This is a programming-contract error.
var ErrInvalidSide = errors.New("corruption side must be head or tail")

// Entry addresses a single score-matrix cell that belongs to a known
// positive triple: the batch row and the entity ID on the corrupted column.
type Entry struct {
	Row    int
	Entity int
}

// RelationFilter marks, for each batch row i and positive-index row j,
// whether the j-th positive triple carries the same relation as the i-th
// batch triple. Relation membership does not depend on the corruption side,
// so one filter is reused across both sides of the same batch.
type RelationFilter struct {
	rows, cols int
	data       []bool
}

// NewRelationFilter computes the relation-match matrix for a batch against
// the positive index.
func NewRelationFilter(batch, positives triples.TripleSet) *RelationFilter {
	f := &RelationFilter{
		rows: len(batch),
		cols: len(positives),
		data: make([]bool, len(batch)*len(positives)),
	}
	for i, t := range batch {
		row := f.data[i*f.cols : (i+1)*f.cols]
		for j, p := range positives {
			row[j] = p.Relation == t.Relation
		}
	}
	return f
}

// Dims returns the (batch, positive-index) dimensions of the filter.
func (f *RelationFilter) Dims() (rows, cols int) {
	return f.rows, f.cols
}

// Row returns the boolean match row for batch row i.
func (f *RelationFilter) Row(i int) []bool {
	return f.data[i*f.cols : (i+1)*f.cols]
}

// PositiveFilter computes the sparse set of (batch row, entity ID) pairs
// whose scores must be treated as "not a corruption" when evaluating the
// given side. For tail corruption these are all positives sharing the batch
// row's relation and head; head corruption is symmetric.
//
// A nil rel computes a fresh relation filter; passing the returned filter
// back in for the second side of the same batch skips that work.
func PositiveFilter(
	batch, positives triples.TripleSet,
	side triples.Side,
	rel *RelationFilter,
) ([]Entry, *RelationFilter, error) {
	if !side.Valid() {
		return nil, nil, fmt.Errorf("%w, got %d", ErrInvalidSide, int(side))
	}

	if rel == nil {
		rel = NewRelationFilter(batch, positives)
	}

	// Join on relation first, then on the fixed column; the matching
	// positive contributes its entity on the corrupted column.
	var entries []Entry
	for i, t := range batch {
		anchor := t.Anchor(side)
		relRow := rel.Row(i)
		for j, p := range positives {
			if relRow[j] && p.Anchor(side) == anchor {
				entries = append(entries, Entry{Row: i, Entity: p.Entity(side)})
			}
		}
	}

	return entries, rel, nil
}

// DensePositiveMask scatters 1s into a zero matrix of the given shape at
// every filter coordinate. Consumers use it to tell true positives apart
// without NaN-corrupting the scores.
func DensePositiveMask(rows, cols int, entries []Entry) *mat.Dense {
	mask := mat.NewDense(rows, cols, nil)
	for _, e := range entries {
		mask.Set(e.Row, e.Entity, 1)
	}
	return mask
}

// FilterScores overwrites every filtered coordinate of scores with NaN, in
// place, and returns the same matrix. If filtering blanks an entire row it
// emits a non-fatal warning: every candidate replacement for that triple is
// itself a known truth, so its filtered metric is uninformative.
func FilterScores(scores *mat.Dense, entries []Entry) *mat.Dense {
	rows, cols := scores.Dims()

	for _, e := range entries {
		scores.Set(e.Row, e.Entity, math.NaN())
	}

	for i := range rows {
		row := scores.RawRowView(i)
		blanked := 0
		for _, v := range row {
			if math.IsNaN(v) {
				blanked++
			}
		}
		if blanked == cols {
			log.Warn().Msg("filtered metric computation requested, but every corrupted triple of a row also exists as a positive triple")
			break
		}
	}

	return scores
}
