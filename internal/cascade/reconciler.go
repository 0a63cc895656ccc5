package cascade

import (
	"fmt"
	"time"
)

// IterationSummary reports how much work one iteration did, including
// the oracle traffic and wall time spent on it and on any cascade
// re-entries into earlier iterations that it triggered.
type IterationSummary struct {
	IterationNr      uint32
	BlockSize        uint32
	NrTopBlocks      int
	CorrectedBits    int
	CascadeCorrected int
	OracleCalls      uint64
	Duration         time.Duration
}

// Summary reports the outcome of a full Run. InitialErrors and
// FinalErrors are only populated when the Reconciler was built with a
// comparison key (the in-process simulator path); a deployment behind a
// RemoteOracle never sees Alice's key and those fields stay zero with
// HasErrorCounts false.
type Summary struct {
	HasErrorCounts bool
	InitialErrors  uint32
	FinalErrors    uint32
	OracleCalls    uint64
	Duration       time.Duration
	Iterations     []IterationSummary
}

// Complete reports whether the run ended with a perfectly reconciled
// key. It is only meaningful when HasErrorCounts is true.
func (s Summary) Complete() bool {
	return s.HasErrorCounts && s.FinalErrors == 0
}

// Reconciler drives the full Cascade protocol: it runs NrCascadeIterations
// ask/correct passes, each over a freshly (but deterministically)
// shuffled view of the same underlying noisy key, re-entering earlier
// iterations' block trees whenever a later iteration's correction
// invalidates their cached parities.
type Reconciler struct {
	comparisonKey *BitKey // nil unless built with a local correct key
	noisyKey      *BitKey
	oracle        ParityOracle
	schedule      BlockSizeSchedule
	seed          uint64
	hasSeed       bool
	iterations    []*Iteration
}

// NewReconciler builds a Reconciler over noisyKey, to be corrected in
// place via calls to oracle. comparisonKey, if non-nil, populates
// Summary's error counts and is installed as the correct key of every
// iteration's ShuffledView, which is where SimulatorOracle reads it. The
// reconciliation logic itself reads correct parities only through oracle.
func NewReconciler(comparisonKey, noisyKey *BitKey, oracle ParityOracle, schedule BlockSizeSchedule) *Reconciler {
	return &Reconciler{
		comparisonKey: comparisonKey,
		noisyKey:      noisyKey,
		oracle:        oracle,
		schedule:      schedule,
	}
}

// SetSeed fixes the seed used to derive every non-identity iteration's
// shuffle, for reproducible runs (tests, replay). Without a seed, each
// shuffle is drawn from process-wide randomness.
func (r *Reconciler) SetSeed(seed uint64) {
	r.seed = seed
	r.hasSeed = true
}

func (r *Reconciler) shuffleFor(iterationNr uint32) *Shuffle {
	nrBits := r.noisyKey.NrBits()
	if iterationNr == 1 {
		return NewIdentityShuffle(nrBits)
	}
	if r.hasSeed {
		return CachedShuffleFromSeed(iterationNr, nrBits, r.seed)
	}
	return NewRandomShuffle(iterationNr, nrBits)
}

// Run executes schedule.NrCascadeIterations() ask/correct passes,
// cascading each pass's corrections back through every earlier
// iteration, and returns a Summary of the outcome.
func (r *Reconciler) Run() (Summary, error) {
	runStart := time.Now()

	var summary Summary
	if r.comparisonKey != nil {
		initial, err := r.noisyKey.NrBitsDifferent(r.comparisonKey)
		if err != nil {
			return summary, fmt.Errorf("reconciler: comparison key: %w", err)
		}
		summary.HasErrorCounts = true
		summary.InitialErrors = initial
	}

	nrIterations := r.schedule.NrCascadeIterations()
	for k := uint32(1); k <= nrIterations; k++ {
		iterStart := time.Now()
		callsBefore := r.oracle.CallCount()

		view := NewShuffledView(r.comparisonKey, r.noisyKey, r.shuffleFor(k))
		it := NewIteration(k, view, r.schedule)

		if err := it.AskAllTopParities(r.oracle); err != nil {
			return summary, err
		}
		corrected, err := it.CorrectOnePass(r.oracle)
		if err != nil {
			return summary, err
		}

		r.iterations = append(r.iterations, it)

		cascadeCorrected := 0
		if len(corrected) > 0 {
			n, err := r.cascade(k, corrected)
			if err != nil {
				return summary, err
			}
			cascadeCorrected = n
		}

		summary.Iterations = append(summary.Iterations, IterationSummary{
			IterationNr:      k,
			BlockSize:        it.blockSize,
			NrTopBlocks:      len(it.TopBlocks()),
			CorrectedBits:    len(corrected),
			CascadeCorrected: cascadeCorrected,
			OracleCalls:      r.oracle.CallCount() - callsBefore,
			Duration:         time.Since(iterStart),
		})
	}

	summary.OracleCalls = r.oracle.CallCount()
	summary.Duration = time.Since(runStart)
	if r.comparisonKey != nil {
		final, err := r.noisyKey.NrBitsDifferent(r.comparisonKey)
		if err != nil {
			return summary, fmt.Errorf("reconciler: comparison key: %w", err)
		}
		summary.FinalErrors = final
	}

	return summary, nil
}

// cascade propagates the bits corrected at triggerIterationNr back
// through every earlier iteration: for each iteration j < trigger, it
// flips the cached parities from j's containing top block down to each
// corrected bit, re-runs a correction pass over j's (now possibly
// odd-parity) top blocks, and — if that pass corrects anything —
// recurses immediately with j itself as the new trigger, exactly as
// each iteration finishes, rather than pooling every earlier iteration's
// corrections into one batch. Pooling would let iteration j's downstream
// flip run against a tree iteration j+1's own pass had already mutated
// (or vice versa) and could re-flip an already-fixed bit, breaking
// monotone progress. It returns the total number of bits corrected by
// the cascade (not counting the trigger pass itself).
func (r *Reconciler) cascade(triggerIterationNr uint32, correctedOrigBits []uint32) (int, error) {
	total := 0

	for _, it := range r.iterations {
		if it.IterationNr() >= triggerIterationNr {
			continue
		}

		for _, origBitNr := range correctedOrigBits {
			shuffleBitNr := it.View().OrigToShuffle(origBitNr)
			top, ok := findContainingTopBlock(it, shuffleBitNr)
			if !ok {
				continue
			}
			flipParityDownstream(top, shuffleBitNr)
		}

		corrected, err := it.CorrectOnePass(r.oracle)
		if err != nil {
			return 0, fmt.Errorf("cascade into iteration %d: %w", it.IterationNr(), err)
		}
		if len(corrected) == 0 {
			continue
		}
		total += len(corrected)

		n, err := r.cascade(it.IterationNr(), corrected)
		if err != nil {
			return 0, err
		}
		total += n
	}

	return total, nil
}

func findContainingTopBlock(it *Iteration, shuffleBitNr uint32) (Block, bool) {
	for _, top := range it.TopBlocks() {
		if top.Contains(shuffleBitNr) {
			return top, true
		}
	}
	return Block{}, false
}
