package evaluation

import (
	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/mat"

	"github.com/tessera-labs/kgeval/internal/model"
	"github.com/tessera-labs/kgeval/internal/triples"
)

const defaultStartBatchSize = 256

type sizeKey string

const (
	keyBatchSize sizeKey = "batch_size"
	keySliceSize sizeKey = "slice_size"
)

// SizeSearch finds the largest batch size for which a two-batch probe
// evaluation fits in available memory. When even batch_size=1 does not fit,
// it falls back to searching the largest entity-dimension slice size with
// the batch size pinned to 1. The returned slice size is 0 when no slicing
// is needed.
//
// The accumulators are only inspected for their capability flags: probing
// runs against throwaway accumulators with the same flags, so the probe
// exercises the same memory path without polluting caller state.
//
// A *SizingError is returned when neither parameter can be made to fit;
// a *SlicingUnsupportedError when the fallback is needed but the scorer
// cannot slice on the required side(s). Non-memory probe failures propagate
// with their original cause.
func SizeSearch(
	scorer model.Scorer,
	ts triples.TripleSet,
	accs []Accumulator,
	startBatchSize int,
) (batchSize, sliceSize int, err error) {
	probes := probeAccumulators(accs)

	batchSize, ok, err := paramSizeSearch(scorer, ts, probes, keyBatchSize, startBatchSize)
	if err != nil {
		return 0, 0, err
	}
	if ok {
		return batchSize, 0, nil
	}

	// The batch size search failed even at 1, i.e. one triple scored on
	// all entities does not fit; start from half the entities.
	sliceSize, ok, err = paramSizeSearch(scorer, ts, probes, keySliceSize, (scorer.NumEntities()+1)/2)
	if err != nil {
		return 0, 0, err
	}
	if !ok {
		return 0, 0, &SizingError{Param: string(keySliceSize)}
	}

	return batchSize, sliceSize, nil
}

// paramSizeSearch probes one tunable parameter with a grow-by-doubling,
// shrink-by-halving search. It reports the final value and whether a probe
// ever succeeded at it.
//
// The search is a two-phase state machine: growing until the first memory
// failure or the clamp, then confirming, which requires one repeated
// success at the same value before concluding (a guard against transient
// success), then done.
func paramSizeSearch(
	scorer model.Scorer,
	ts triples.TripleSet,
	probes []Accumulator,
	key sizeKey,
	startValue int,
) (value int, evaluatedOnce bool, err error) {
	maxTriples := len(ts)
	value = startValue

	switch key {
	case keyBatchSize:
		if value <= 0 {
			value = defaultStartBatchSize
		}
		if value > maxTriples {
			value = maxTriples
		}
	case keySliceSize:
		if err := checkSlicingAvailability(scorer, 1); err != nil {
			return 0, false, err
		}
	}

	state := searchGrowing
	succeeded := false
	log.Info().Msgf("Starting %s search for evaluation now", key)

	for {
		log.Debug().Msgf("Trying %s=%d", key, value)
		probeErr := runProbe(scorer, ts, probes, key, value)

		// Cached allocations of the previous attempt have to be released
		// so the next probe reflects genuine availability.
		releaseCache(scorer)

		if probeErr != nil {
			if !model.IsOutOfMemory(probeErr) {
				return 0, false, probeErr
			}
			if value == 1 {
				log.Debug().Msgf("Even %s=1 does not fit into memory with these parameters", key)
				return value, false, nil
			}
			log.Debug().Msgf("The %s %d was too big, trying less now", key, value)
			value /= 2
			state = searchConfirming
			succeeded = false
			continue
		}

		switch state {
		case searchGrowing:
			if probeBatchSize(key, value) < maxTriples {
				value *= 2
				succeeded = true
			} else if succeeded {
				log.Info().Msgf("Concluded %s search with %s=%d", key, key, value)
				return value, true, nil
			} else {
				succeeded = true
			}
		case searchConfirming:
			if succeeded {
				log.Info().Msgf("Concluded %s search with %s=%d", key, key, value)
				return value, true, nil
			}
			succeeded = true
		}
	}
}

type searchState int

const (
	searchGrowing searchState = iota
	searchConfirming
)

// probeBatchSize maps the probed parameter to the batch size the probe will
// run with; the slice search always pins the batch size to 1.
func probeBatchSize(key sizeKey, value int) int {
	if key == keySliceSize {
		return 1
	}
	return value
}

func runProbe(
	scorer model.Scorer,
	ts triples.TripleSet,
	probes []Accumulator,
	key sizeKey,
	value int,
) error {
	opts := []Option{withSizeProbing()}
	if key == keySliceSize {
		opts = append(opts, WithBatchSize(1), WithSliceSize(value))
	} else {
		opts = append(opts, WithBatchSize(value))
	}
	_, err := Evaluate(scorer, ts, probes, opts...)
	return err
}

// checkSlicingAvailability verifies that the scorer can slice on every side
// the configuration requires. With inverse triples only tail scoring is
// used, otherwise both sides must support slicing.
func checkSlicingAvailability(scorer model.Scorer, batchSize int) error {
	if scorer.HasInverseTriples() {
		if !scorer.CanSliceTails() {
			return &SlicingUnsupportedError{BatchSize: batchSize}
		}
		return nil
	}
	if !scorer.CanSliceTails() || !scorer.CanSliceHeads() {
		return &SlicingUnsupportedError{BatchSize: batchSize}
	}
	return nil
}

func releaseCache(scorer model.Scorer) {
	if r, ok := scorer.(model.CacheReleaser); ok {
		r.ReleaseCache()
	}
}

// probeAccumulator is a no-op accumulator mirroring the capability flags of
// a real one, so probes allocate filters and masks the way the real run
// will.
type probeAccumulator struct {
	filtered bool
	mask     bool
}

func (p *probeAccumulator) Filtered() bool             { return p.filtered }
func (p *probeAccumulator) RequiresPositiveMask() bool { return p.mask }

func (p *probeAccumulator) Process(_ triples.Side, _ triples.TripleSet, _ []float64, _ *mat.Dense, _ *mat.Dense) {
}

func (p *probeAccumulator) Finalize() Result { return nil }

func probeAccumulators(accs []Accumulator) []Accumulator {
	anyFiltered := false
	anyMask := false
	for _, a := range accs {
		if a.Filtered() {
			anyFiltered = true
		} else if a.RequiresPositiveMask() {
			anyMask = true
		}
	}

	probes := make([]Accumulator, 0, 2)
	if anyFiltered {
		probes = append(probes, &probeAccumulator{filtered: true})
	}
	if anyMask || !anyFiltered {
		probes = append(probes, &probeAccumulator{mask: anyMask})
	}
	return probes
}
