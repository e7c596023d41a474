// Package model defines the scoring interface consumed by the evaluation
// engine, the memory-error classification used by adaptive sizing, and a
// reference embedding scorer.
package model

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/tessera-labs/kgeval/internal/triples"
)

// Scorer produces, for a batch of triples, the scores of every candidate
// replacement entity on one corruption side. Implementations must return an
// *OutOfMemoryError (possibly wrapped) when they cannot allocate, so the
// size controller can tell hardware limits apart from genuine failures.
type Scorer interface {
	// NumEntities returns the number of candidate entities, i.e. the column
	// count of every score matrix.
	NumEntities() int

	// KnownPositives returns the triples the scorer was trained on. They
	// seed the positive index for filtered evaluation.
	KnownPositives() triples.TripleSet

	// HasInverseTriples reports whether the triple set uses inverse
	// relations. When true, tail-side slicing alone suffices for sizing.
	HasInverseTriples() bool

	// CanSliceHeads and CanSliceTails report whether the scorer supports
	// computing a score matrix in entity-dimension slices on that side.
	CanSliceHeads() bool
	CanSliceTails() bool

	// ScoreHeads scores every candidate head for each (relation, tail) of
	// the batch. The result has shape (len(batch), NumEntities()).
	// A sliceSize of zero scores all entities in one pass.
	ScoreHeads(batch triples.TripleSet, sliceSize int) (*mat.Dense, error)

	// ScoreTails scores every candidate tail for each (head, relation) of
	// the batch, with the same shape and slicing contract as ScoreHeads.
	ScoreTails(batch triples.TripleSet, sliceSize int) (*mat.Dense, error)
}

// CacheReleaser is implemented by scorers that hold cached accelerator
// allocations. The size controller releases them between probe attempts so
// repeated probes measure genuine availability.
type CacheReleaser interface {
	ReleaseCache()
}

// OutOfMemoryError marks a scoring failure caused by memory exhaustion.
type OutOfMemoryError struct {
	Op  string
	Err error
}

func (e *OutOfMemoryError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("out of memory during %s", e.Op)
	}
	return fmt.Sprintf("out of memory during %s: %v", e.Op, e.Err)
}

func (e *OutOfMemoryError) Unwrap() error {
	return e.Err
}

// IsOutOfMemory reports whether err is classified as a memory-exhaustion
// failure. All other errors must propagate untouched.
func IsOutOfMemory(err error) bool {
	var oom *OutOfMemoryError
	return errors.As(err, &oom)
}
