package model

import (
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/tessera-labs/kgeval/internal/triples"
)

// EmbeddingScorer is a bilinear-diagonal scorer over dense entity and
// relation embeddings: the score of (h, r, t) is <e_h * w_r, e_t> with
// elementwise multiplication. It supports slicing on both sides, which makes
// it usable as a reference collaborator for the full sizing search.
type EmbeddingScorer struct {
	entities  *mat.Dense // (numEntities, dim)
	relations *mat.Dense // (numRelations, dim)
	dim       int
	known     triples.TripleSet
	inverse   bool
}

// EmbeddingScorerOption configures an EmbeddingScorer.
type EmbeddingScorerOption func(*EmbeddingScorer)

// WithInverseTriples marks the scorer's triple set as containing inverse
// relations.
func WithInverseTriples() EmbeddingScorerOption {
	return func(m *EmbeddingScorer) {
		m.inverse = true
	}
}

// NewEmbeddingScorer builds a scorer with deterministic, seed-derived
// embeddings. The known triples seed the positive index during filtered
// evaluation.
func NewEmbeddingScorer(
	numEntities, numRelations, dim int,
	seed uint64,
	known triples.TripleSet,
	opts ...EmbeddingScorerOption,
) *EmbeddingScorer {
	rng := rand.New(rand.NewPCG(seed, seed))

	entityData := make([]float64, numEntities*dim)
	for i := range entityData {
		entityData[i] = rng.NormFloat64()
	}
	relationData := make([]float64, numRelations*dim)
	for i := range relationData {
		relationData[i] = rng.NormFloat64()
	}

	m := &EmbeddingScorer{
		entities:  mat.NewDense(numEntities, dim, entityData),
		relations: mat.NewDense(numRelations, dim, relationData),
		dim:       dim,
		known:     known,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

func (m *EmbeddingScorer) NumEntities() int {
	n, _ := m.entities.Dims()
	return n
}

func (m *EmbeddingScorer) KnownPositives() triples.TripleSet {
	return m.known
}

func (m *EmbeddingScorer) HasInverseTriples() bool {
	return m.inverse
}

func (m *EmbeddingScorer) CanSliceHeads() bool { return true }

func (m *EmbeddingScorer) CanSliceTails() bool { return true }

// ScoreTails computes q_i = e_head * w_relation per batch row and scores all
// candidate tails as Q * E^T.
func (m *EmbeddingScorer) ScoreTails(batch triples.TripleSet, sliceSize int) (*mat.Dense, error) {
	q := mat.NewDense(len(batch), m.dim, nil)
	row := make([]float64, m.dim)
	for i, t := range batch {
		if err := m.checkIDs(t); err != nil {
			return nil, err
		}
		copy(row, m.entities.RawRowView(t.Head))
		floats.Mul(row, m.relations.RawRowView(t.Relation))
		q.SetRow(i, row)
	}
	return m.scoreCandidates(q, sliceSize), nil
}

// ScoreHeads computes q_i = w_relation * e_tail per batch row and scores all
// candidate heads as Q * E^T.
func (m *EmbeddingScorer) ScoreHeads(batch triples.TripleSet, sliceSize int) (*mat.Dense, error) {
	q := mat.NewDense(len(batch), m.dim, nil)
	row := make([]float64, m.dim)
	for i, t := range batch {
		if err := m.checkIDs(t); err != nil {
			return nil, err
		}
		copy(row, m.relations.RawRowView(t.Relation))
		floats.Mul(row, m.entities.RawRowView(t.Tail))
		q.SetRow(i, row)
	}
	return m.scoreCandidates(q, sliceSize), nil
}

func (m *EmbeddingScorer) scoreCandidates(q *mat.Dense, sliceSize int) *mat.Dense {
	rows, _ := q.Dims()
	n := m.NumEntities()
	out := mat.NewDense(rows, n, nil)

	if sliceSize <= 0 || sliceSize >= n {
		out.Mul(q, m.entities.T())
		return out
	}

	for lo := 0; lo < n; lo += sliceSize {
		hi := min(lo+sliceSize, n)
		part := m.entities.Slice(lo, hi, 0, m.dim)
		dst := out.Slice(0, rows, lo, hi).(*mat.Dense)
		dst.Mul(q, part.T())
	}
	return out
}

func (m *EmbeddingScorer) checkIDs(t triples.Triple) error {
	numEntities, _ := m.entities.Dims()
	numRelations, _ := m.relations.Dims()
	if t.Head < 0 || t.Head >= numEntities || t.Tail < 0 || t.Tail >= numEntities {
		return fmt.Errorf("entity ID out of range for triple %+v (num_entities=%d)", t, numEntities)
	}
	if t.Relation < 0 || t.Relation >= numRelations {
		return fmt.Errorf("relation ID out of range for triple %+v (num_relations=%d)", t, numRelations)
	}
	return nil
}
