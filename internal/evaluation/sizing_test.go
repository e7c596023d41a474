package evaluation

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/tessera-labs/kgeval/internal/model"
	"github.com/tessera-labs/kgeval/internal/triples"
)

// memScorer simulates hardware limits: batches above maxBatch fail with a
// memory error, and when maxSlice is set, only sliced calls up to maxSlice
// with a single-triple batch succeed.
type memScorer struct {
	n          int
	maxBatch   int
	maxSlice   int
	failAlways bool
	scoreErr   error
	sliceHeads bool
	sliceTails bool
	inverse    bool
	releases   int
	calls      int
}

func (s *memScorer) NumEntities() int                  { return s.n }
func (s *memScorer) KnownPositives() triples.TripleSet { return nil }
func (s *memScorer) HasInverseTriples() bool           { return s.inverse }
func (s *memScorer) CanSliceHeads() bool               { return s.sliceHeads }
func (s *memScorer) CanSliceTails() bool               { return s.sliceTails }
func (s *memScorer) ReleaseCache()                     { s.releases++ }

func (s *memScorer) ScoreTails(batch triples.TripleSet, sliceSize int) (*mat.Dense, error) {
	return s.score(batch, sliceSize)
}

func (s *memScorer) ScoreHeads(batch triples.TripleSet, sliceSize int) (*mat.Dense, error) {
	return s.score(batch, sliceSize)
}

func (s *memScorer) score(batch triples.TripleSet, sliceSize int) (*mat.Dense, error) {
	s.calls++
	if s.scoreErr != nil {
		return nil, s.scoreErr
	}
	if s.failAlways {
		return nil, &model.OutOfMemoryError{Op: "score"}
	}
	if s.maxSlice > 0 {
		if len(batch) > 1 || sliceSize == 0 || sliceSize > s.maxSlice {
			return nil, &model.OutOfMemoryError{Op: fmt.Sprintf("score with slice %d", sliceSize)}
		}
	} else if len(batch) > s.maxBatch {
		return nil, &model.OutOfMemoryError{Op: fmt.Sprintf("score batch %d", len(batch))}
	}
	return mat.NewDense(len(batch), s.n, nil), nil
}

func manyTriples(n int) triples.TripleSet {
	ts := make(triples.TripleSet, n)
	for i := range ts {
		ts[i] = triples.Triple{Head: i % 7, Relation: i % 3, Tail: (i + 1) % 7}
	}
	return ts
}

func TestSizeSearch_GrowsToLargestFittingBatch(t *testing.T) {
	scorer := &memScorer{n: 7, maxBatch: 64, sliceHeads: true, sliceTails: true}
	ts := manyTriples(1000)

	batchSize, sliceSize, err := SizeSearch(scorer, ts, nil, 8)
	if err != nil {
		t.Fatalf("SizeSearch: %v", err)
	}
	if batchSize != 64 {
		t.Fatalf("batch size = %d, want 64", batchSize)
	}
	if sliceSize != 0 {
		t.Fatalf("slice size = %d, want 0", sliceSize)
	}
	if scorer.releases == 0 {
		t.Fatal("expected cache releases between probes")
	}
}

func TestSizeSearch_ShrinksFromDefaultStart(t *testing.T) {
	scorer := &memScorer{n: 7, maxBatch: 32, sliceHeads: true, sliceTails: true}
	ts := manyTriples(1000)

	// startBatchSize 0 selects the default of 256.
	batchSize, sliceSize, err := SizeSearch(scorer, ts, nil, 0)
	if err != nil {
		t.Fatalf("SizeSearch: %v", err)
	}
	if batchSize != 32 || sliceSize != 0 {
		t.Fatalf("got (%d, %d), want (32, 0)", batchSize, sliceSize)
	}
}

func TestSizeSearch_ClampsToTripleCount(t *testing.T) {
	scorer := &memScorer{n: 7, maxBatch: 1000, sliceHeads: true, sliceTails: true}
	ts := manyTriples(10)

	batchSize, sliceSize, err := SizeSearch(scorer, ts, nil, 256)
	if err != nil {
		t.Fatalf("SizeSearch: %v", err)
	}
	if batchSize != 10 || sliceSize != 0 {
		t.Fatalf("got (%d, %d), want (10, 0)", batchSize, sliceSize)
	}
}

func TestSizeSearch_FallsBackToSliceSearch(t *testing.T) {
	// Even batch_size=1 without slicing fails; slices up to 16 fit.
	scorer := &memScorer{n: 64, maxSlice: 16, sliceHeads: true, sliceTails: true}
	ts := manyTriples(100)

	batchSize, sliceSize, err := SizeSearch(scorer, ts, nil, 8)
	if err != nil {
		t.Fatalf("SizeSearch: %v", err)
	}
	if batchSize != 1 {
		t.Fatalf("batch size = %d, want 1", batchSize)
	}
	if sliceSize != 16 {
		t.Fatalf("slice size = %d, want 16", sliceSize)
	}
}

func TestSizeSearch_ExhaustionRaisesSizingError(t *testing.T) {
	scorer := &memScorer{n: 50, failAlways: true, sliceHeads: true, sliceTails: true}
	ts := manyTriples(100)

	_, _, err := SizeSearch(scorer, ts, nil, 8)
	var sizingErr *SizingError
	if !errors.As(err, &sizingErr) {
		t.Fatalf("expected *SizingError, got %v", err)
	}
	if sizingErr.Param != "slice_size" {
		t.Fatalf("exhausted parameter = %q, want slice_size", sizingErr.Param)
	}
}

func TestSizeSearch_UnsupportedSlicingFailsBeforeProbing(t *testing.T) {
	scorer := &memScorer{n: 50, failAlways: true, sliceHeads: true, sliceTails: false}
	ts := manyTriples(100)

	_, _, err := SizeSearch(scorer, ts, nil, 1)
	var unsupported *SlicingUnsupportedError
	if !errors.As(err, &unsupported) {
		t.Fatalf("expected *SlicingUnsupportedError, got %v", err)
	}
	// The batch size search probes; the slice search fails before probing.
	if scorer.calls == 0 {
		t.Fatal("expected the batch size search to have probed")
	}
}

func TestSizeSearch_InverseTriplesOnlyNeedTailSlicing(t *testing.T) {
	scorer := &memScorer{
		n: 64, maxSlice: 8,
		sliceHeads: false, sliceTails: true,
		inverse: true,
	}
	ts := manyTriples(100)

	batchSize, sliceSize, err := SizeSearch(scorer, ts, nil, 4)
	if err != nil {
		t.Fatalf("SizeSearch: %v", err)
	}
	if batchSize != 1 || sliceSize != 8 {
		t.Fatalf("got (%d, %d), want (1, 8)", batchSize, sliceSize)
	}
}

func TestSizeSearch_NonMemoryErrorPropagates(t *testing.T) {
	scorer := &memScorer{n: 7, scoreErr: errors.New("cudnn version mismatch"), sliceHeads: true, sliceTails: true}
	ts := manyTriples(100)

	_, _, err := SizeSearch(scorer, ts, nil, 8)
	if err == nil || !strings.Contains(err.Error(), "cudnn version mismatch") {
		t.Fatalf("expected the original error to propagate, got %v", err)
	}
	var sizingErr *SizingError
	if errors.As(err, &sizingErr) {
		t.Fatal("non-memory errors must not be classified as sizing failures")
	}
	if scorer.calls != 1 {
		t.Fatalf("non-memory errors must not be retried, got %d probe calls", scorer.calls)
	}
}

func TestCheckSlicingAvailability(t *testing.T) {
	cases := []struct {
		name    string
		scorer  *memScorer
		wantErr bool
	}{
		{"both sides supported", &memScorer{sliceHeads: true, sliceTails: true}, false},
		{"heads missing", &memScorer{sliceHeads: false, sliceTails: true}, true},
		{"tails missing", &memScorer{sliceHeads: true, sliceTails: false}, true},
		{"inverse needs tails only", &memScorer{sliceHeads: false, sliceTails: true, inverse: true}, false},
		{"inverse without tails", &memScorer{sliceHeads: true, sliceTails: false, inverse: true}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := checkSlicingAvailability(tc.scorer, 1)
			if tc.wantErr && err == nil {
				t.Fatal("expected an error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}
