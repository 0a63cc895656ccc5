package cascade

import (
	"math/rand"
	"sync"
)

// Shuffle is a bijection between original-space and shuffle-space bit
// indices for one iteration. Iteration 1 is always the identity; later
// iterations are a Fisher-Yates permutation, optionally seeded for
// reproducibility.
type Shuffle struct {
	iterationNr    uint32
	nrBits         uint32
	hasSeed        bool
	seed           uint64
	origToShuffled []uint32
	shuffledToOrig []uint32
}

// shuffleKey identifies a cacheable Shuffle the way the Rust prototype's
// ShuffleIndex does.
type shuffleKey struct {
	iterationNr uint32
	nrBits      uint32
	hasSeed     bool
}

var (
	shuffleCacheMu sync.Mutex
	shuffleCache   = map[shuffleKey]*Shuffle{}
)

// NewIdentityShuffle returns the identity permutation, used at iteration 1
// and whenever a shuffle is needed without randomization.
func NewIdentityShuffle(nrBits uint32) *Shuffle {
	s := &Shuffle{iterationNr: 1, nrBits: nrBits}
	s.initIdentityMaps()
	return s
}

func (s *Shuffle) initIdentityMaps() {
	s.shuffledToOrig = make([]uint32, s.nrBits)
	s.origToShuffled = make([]uint32, s.nrBits)
	for i := uint32(0); i < s.nrBits; i++ {
		s.shuffledToOrig[i] = i
		s.origToShuffled[i] = i
	}
}

func newShuffle(iterationNr, nrBits uint32, seed uint64, hasSeed bool, rng *rand.Rand) *Shuffle {
	s := &Shuffle{
		iterationNr: iterationNr,
		nrBits:      nrBits,
		hasSeed:     hasSeed,
		seed:        seed,
	}
	s.shuffledToOrig = make([]uint32, nrBits)
	for i := uint32(0); i < nrBits; i++ {
		s.shuffledToOrig[i] = i
	}

	if iterationNr != 1 {
		r := rng
		if r == nil {
			r = rand.New(rand.NewSource(int64(seed)))
		}
		fisherYates(s.shuffledToOrig, r)
	}

	s.origToShuffled = make([]uint32, nrBits)
	for shuffledBitNr, origBitNr := range s.shuffledToOrig {
		s.origToShuffled[origBitNr] = uint32(shuffledBitNr)
	}
	return s
}

func fisherYates(xs []uint32, rng *rand.Rand) {
	for i := len(xs) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		xs[i], xs[j] = xs[j], xs[i]
	}
}

// NewShuffleFromSeed returns the deterministic Fisher-Yates permutation for
// (iterationNr, nrBits) built from seed. The iteration number is mixed
// into the RNG seed, so each iteration gets its own permutation. Iteration
// 1 is always identity regardless of the seed.
func NewShuffleFromSeed(iterationNr, nrBits uint32, seed uint64) *Shuffle {
	if iterationNr == 1 {
		return NewIdentityShuffle(nrBits)
	}
	return newShuffle(iterationNr, nrBits, seed, true, rand.New(rand.NewSource(int64(seed)+int64(iterationNr))))
}

// NewRandomShuffle returns a permutation drawn from a process-wide RNG,
// without a reproducible seed. Iteration 1 is always identity.
func NewRandomShuffle(iterationNr, nrBits uint32) *Shuffle {
	if iterationNr == 1 {
		return NewIdentityShuffle(nrBits)
	}
	return newShuffle(iterationNr, nrBits, 0, false, rand.New(rand.NewSource(rand.Int63())))
}

// CachedShuffleFromSeed is NewShuffleFromSeed memoised by
// (iterationNr, nrBits, hasSeed=true): cascading back into iteration k
// must reuse iteration k's original shuffle, not a freshly drawn one.
func CachedShuffleFromSeed(iterationNr, nrBits uint32, seed uint64) *Shuffle {
	key := shuffleKey{iterationNr: iterationNr, nrBits: nrBits, hasSeed: true}

	shuffleCacheMu.Lock()
	defer shuffleCacheMu.Unlock()
	if s, ok := shuffleCache[key]; ok {
		return s
	}
	s := NewShuffleFromSeed(iterationNr, nrBits, seed)
	shuffleCache[key] = s
	return s
}

// ClearShuffleCache empties the process-wide shuffle memo. Exposed for
// tests that need independent reconciliations not to share shuffles.
func ClearShuffleCache() {
	shuffleCacheMu.Lock()
	defer shuffleCacheMu.Unlock()
	shuffleCache = map[shuffleKey]*Shuffle{}
}

// IterationNr returns the iteration this shuffle was built for.
func (s *Shuffle) IterationNr() uint32 { return s.iterationNr }

// NrBits returns the key length this shuffle permutes.
func (s *Shuffle) NrBits() uint32 { return s.nrBits }

// Seed returns the seed used to build the shuffle (0 for the identity
// shuffle at iteration 1, per P3).
func (s *Shuffle) Seed() uint64 { return s.seed }

// OrigToShuffle maps an original-space bit index to its shuffle-space
// index.
func (s *Shuffle) OrigToShuffle(origBitNr uint32) uint32 {
	return s.origToShuffled[origBitNr]
}

// ShuffleToOrig maps a shuffle-space bit index back to its original-space
// index.
func (s *Shuffle) ShuffleToOrig(shuffleBitNr uint32) uint32 {
	return s.shuffledToOrig[shuffleBitNr]
}
