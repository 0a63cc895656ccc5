package cascade

import (
	"math/rand"
	"testing"
)

func TestReconcilerCorrectsAKnownFlippedKey(t *testing.T) {
	correct, _ := FromBitString("1100101011001010110010101100101011001010110010101100101011001011")
	noisy := correct.Clone()
	_ = noisy.FlipBit(5)
	_ = noisy.FlipBit(40)

	oracle := NewSimulatorOracle()
	sched := NewOriginalSchedule(DefaultScheduleConfig())
	r := NewReconciler(correct, noisy, oracle, sched)
	r.SetSeed(1)

	summary, err := r.Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !summary.HasErrorCounts {
		t.Fatal("expected error counts when built with a comparison key")
	}
	if summary.InitialErrors != 2 {
		t.Fatalf("InitialErrors = %d, want 2", summary.InitialErrors)
	}
	if !summary.Complete() {
		t.Fatalf("reconciliation did not converge: final errors = %d", summary.FinalErrors)
	}
}

func TestReconcilerConvergesOnARandomlyNoisyLargeKey(t *testing.T) {
	const nrBits = 14400
	rng := rand.New(rand.NewSource(2026))

	bits := make([]byte, nrBits)
	for i := range bits {
		if rng.Intn(2) == 1 {
			bits[i] = '1'
		} else {
			bits[i] = '0'
		}
	}
	correct, err := FromBitString(string(bits))
	if err != nil {
		t.Fatalf("FromBitString: %v", err)
	}
	correct.SetEstimatedBER(0.02)

	noisy := correct.Clone()
	noisy.ApplyNoise(rng)

	oracle := NewSimulatorOracle()
	sched := NewOriginalSchedule(DefaultScheduleConfig())
	r := NewReconciler(correct, noisy, oracle, sched)
	r.SetSeed(99)

	summary, err := r.Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.FinalErrors != 0 {
		t.Fatalf("reconciliation over a %d-bit key left %d errors (initial: %d)", nrBits, summary.FinalErrors, summary.InitialErrors)
	}
	if len(summary.Iterations) != 4 {
		t.Fatalf("ran %d iterations, want 4 (the original schedule's default)", len(summary.Iterations))
	}
}

func TestReconcilerWithoutComparisonKeyReportsNoErrorCounts(t *testing.T) {
	correct, _ := FromBitString("11001010")
	noisy := correct.Clone()
	_ = noisy.FlipBit(2)

	// The reconciler never reads the correct key directly; the oracle
	// is given its own copy, exactly as a hosted deployment would.
	oracle := NewSimulatorOracle()
	sched := NewOriginalSchedule(DefaultScheduleConfig())
	r := NewReconciler(nil, noisy, &comparisonOracleAdapter{correct: correct, SimulatorOracle: oracle}, sched)
	r.SetSeed(5)

	summary, err := r.Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.HasErrorCounts {
		t.Fatal("expected HasErrorCounts to be false without a comparison key")
	}
}

// comparisonOracleAdapter lets a test drive CorrectRangeParity against a
// correct key that the Reconciler itself never sees, standing in for
// what internal/oraclesvc.RemoteOracle does over the network.
type comparisonOracleAdapter struct {
	*SimulatorOracle
	correct *BitKey
}

func (o *comparisonOracleAdapter) CorrectRangeParity(view *ShuffledView, start, end uint32) (uint8, error) {
	shadow := NewShuffledView(o.correct, o.correct, view.Shuffle())
	return o.SimulatorOracle.CorrectRangeParity(shadow, start, end)
}
