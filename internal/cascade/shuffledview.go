package cascade

// ShuffledView projects a mutable noisy key through a per-iteration
// permutation, so that all block arithmetic can be expressed in
// shuffle-space indices while actually reading/writing the underlying
// noisy key via π. It also carries a read-only handle to the correct key,
// used only by the in-process SimulatorOracle — a hosted ParityOracle
// never needs it (see the Open Question in spec.md §9).
type ShuffledView struct {
	correctKey *BitKey
	noisyKey   *BitKey
	shuffle    *Shuffle
}

// NewShuffledView composes a noisy key and a shuffle into one logical
// shuffled key. correctKey may be nil when the view is only ever used on
// the noisy-key side (e.g. by a reconciler whose parity queries go to a
// hosted oracle server, which projects its own copy of the correct key
// through the same shuffle).
func NewShuffledView(correctKey, noisyKey *BitKey, shuffle *Shuffle) *ShuffledView {
	return &ShuffledView{correctKey: correctKey, noisyKey: noisyKey, shuffle: shuffle}
}

// NrBits returns the length of the underlying key.
func (v *ShuffledView) NrBits() uint32 {
	return v.noisyKey.NrBits()
}

// Shuffle returns the permutation backing this view.
func (v *ShuffledView) Shuffle() *Shuffle {
	return v.shuffle
}

// EstimatedBER forwards to the underlying noisy key.
func (v *ShuffledView) EstimatedBER() float64 {
	return v.noisyKey.EstimatedBER()
}

// ShuffleToOrig maps a shuffle-space index to original space.
func (v *ShuffledView) ShuffleToOrig(shuffleBitNr uint32) uint32 {
	return v.shuffle.ShuffleToOrig(shuffleBitNr)
}

// OrigToShuffle maps an original-space index to shuffle space.
func (v *ShuffledView) OrigToShuffle(origBitNr uint32) uint32 {
	return v.shuffle.OrigToShuffle(origBitNr)
}

// GetBit reads the bit at shuffle-space index shuffleBitNr from the noisy
// key.
func (v *ShuffledView) GetBit(shuffleBitNr uint32) (uint8, error) {
	return v.noisyKey.GetBit(v.shuffle.ShuffleToOrig(shuffleBitNr))
}

// FlipBit flips the bit at shuffle-space index shuffleBitNr in the noisy
// key.
func (v *ShuffledView) FlipBit(shuffleBitNr uint32) error {
	return v.noisyKey.FlipBit(v.shuffle.ShuffleToOrig(shuffleBitNr))
}

// RangeParity computes the parity of a shuffle-space range by walking the
// permutation bit by bit. Except under the identity shuffle, this is in
// general not noisyKey.RangeParity over a contiguous original-space range;
// its cost is amortised because BINARY
// only ever flips cached parities afterward, never recomputes them.
func (v *ShuffledView) RangeParity(startBitNr, endBitNr uint32) (uint8, error) {
	if startBitNr > endBitNr {
		return 0, ErrMalformedInput
	}
	var parity uint8
	for bitNr := startBitNr; bitNr <= endBitNr; bitNr++ {
		bit, err := v.GetBit(bitNr)
		if err != nil {
			return 0, err
		}
		parity ^= bit
	}
	return parity, nil
}

// correctRangeParity computes the parity of a shuffle-space range against
// the read-only correct key. Used only by SimulatorOracle.
func (v *ShuffledView) correctRangeParity(startBitNr, endBitNr uint32) (uint8, error) {
	if v.correctKey == nil {
		return 0, ErrOracleUnavailable
	}
	if startBitNr > endBitNr {
		return 0, ErrMalformedInput
	}
	var parity uint8
	for bitNr := startBitNr; bitNr <= endBitNr; bitNr++ {
		origBitNr := v.shuffle.ShuffleToOrig(bitNr)
		bit, err := v.correctKey.GetBit(origBitNr)
		if err != nil {
			return 0, err
		}
		parity ^= bit
	}
	return parity, nil
}
