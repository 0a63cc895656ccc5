package cascade

// ParityOracle answers "what is the correct parity of this shuffle-space
// range" queries against Alice's key, standing in for the authenticated
// classical channel. Every Reconciler interaction with Alice's data flows
// through this interface, so a deployment can swap an in-process
// simulator for a network round-trip without touching engine logic.
type ParityOracle interface {
	// CorrectRangeParity returns the parity of [startBitNr, endBitNr]
	// (inclusive, shuffle-space) over Alice's key, as projected through
	// view's Shuffle.
	CorrectRangeParity(view *ShuffledView, startBitNr, endBitNr uint32) (uint8, error)

	// CallCount returns the number of queries answered so far, for
	// leakage/diagnostic accounting by the caller.
	CallCount() uint64
}

// SimulatorOracle answers directly from an in-process correct key, via
// ShuffledView.correctRangeParity. It exists for tests, benchmarks, and
// single-process demos; a real deployment replaces it with a client that
// never has access to Alice's key (see RemoteOracle in the oraclesvc
// package).
type SimulatorOracle struct {
	calls uint64
}

// NewSimulatorOracle returns a ParityOracle backed by whatever correct key
// each ShuffledView it's asked about already carries.
func NewSimulatorOracle() *SimulatorOracle {
	return &SimulatorOracle{}
}

// CorrectRangeParity implements ParityOracle.
func (o *SimulatorOracle) CorrectRangeParity(view *ShuffledView, startBitNr, endBitNr uint32) (uint8, error) {
	o.calls++
	return view.correctRangeParity(startBitNr, endBitNr)
}

// CallCount implements ParityOracle.
func (o *SimulatorOracle) CallCount() uint64 {
	return o.calls
}
