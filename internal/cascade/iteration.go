package cascade

import "fmt"

// Iteration owns one ShuffledView and the forest of top-level blocks
// tiling its full range, plus whatever sub-blocks BINARY creates while
// correcting them. It is the unit cascade() re-enters: an earlier
// iteration keeps its block tree alive for the lifetime of the
// Reconciler so that later corrections can flip cached parities upstream
// and downstream instead of recomputing from scratch.
type Iteration struct {
	iterationNr uint32
	view        *ShuffledView
	tree        *blockTree
	topBlocks   []Block
	blockSize   uint32
}

// NewIteration tiles view's full range into top-level blocks of the size
// schedule prescribes for iterationNr, and returns the Iteration that
// owns them.
func NewIteration(iterationNr uint32, view *ShuffledView, schedule BlockSizeSchedule) *Iteration {
	blockSize := schedule.BlockSize(iterationNr, view.EstimatedBER(), view.NrBits())
	if blockSize == 0 {
		blockSize = 1
	}

	tree := newBlockTree(view)
	nrBits := view.NrBits()

	var topBlocks []Block
	for start := uint32(0); start < nrBits; {
		end := start + blockSize - 1
		if end >= nrBits {
			end = nrBits - 1
		}
		topBlocks = append(topBlocks, tree.newTopLevelBlock(start, end))
		start = end + 1
	}

	return &Iteration{
		iterationNr: iterationNr,
		view:        view,
		tree:        tree,
		topBlocks:   topBlocks,
		blockSize:   blockSize,
	}
}

// IterationNr returns the 1-based index of this iteration.
func (it *Iteration) IterationNr() uint32 { return it.iterationNr }

// View returns the iteration's shuffled view.
func (it *Iteration) View() *ShuffledView { return it.view }

// TopBlocks returns the iteration's top-level blocks, in range order.
func (it *Iteration) TopBlocks() []Block { return it.topBlocks }

// AskAllTopParities queries the oracle for every top-level block's
// correct parity. It is idempotent per block (Block.AskCorrectParity
// skips blocks whose correct parity is already known).
func (it *Iteration) AskAllTopParities(oracle ParityOracle) error {
	for _, top := range it.topBlocks {
		if err := top.AskCorrectParity(oracle); err != nil {
			return fmt.Errorf("iteration %d: ask top block %s: %w", it.iterationNr, top, err)
		}
	}
	return nil
}

// CorrectOnePass runs BINARY over every top-level block whose error
// parity is currently odd, correcting exactly one bit per such block. It
// returns the original-space indices of every bit corrected this pass.
func (it *Iteration) CorrectOnePass(oracle ParityOracle) ([]uint32, error) {
	var correctedOrigBits []uint32
	for _, top := range it.topBlocks {
		odd, err := top.ErrorParity()
		if err != nil {
			return nil, fmt.Errorf("iteration %d: error parity of %s: %w", it.iterationNr, top, err)
		}
		if !odd {
			continue
		}
		shuffleBitNr, err := it.binaryCorrect(top, oracle)
		if err != nil {
			return nil, fmt.Errorf("iteration %d: correct %s: %w", it.iterationNr, top, err)
		}
		correctedOrigBits = append(correctedOrigBits, it.view.ShuffleToOrig(shuffleBitNr))
	}
	return correctedOrigBits, nil
}

// binaryCorrect implements BINARY: it bisects block, one oracle call per
// level (on the left half; the right half's parity is inferred), and
// descends into whichever half still carries an odd error count, until a
// single bit remains. That bit is flipped and the fix propagated upstream
// through the cached parities of block's ancestors. It returns the
// shuffle-space index of the corrected bit.
func (it *Iteration) binaryCorrect(top Block, oracle ParityOracle) (uint32, error) {
	current := top
	for current.NrBits() > 1 {
		left, err := getOrCreateChild(current, LeftChild)
		if err != nil {
			return 0, err
		}
		right, err := getOrCreateChild(current, RightChild)
		if err != nil {
			return 0, err
		}

		if err := left.AskCorrectParity(oracle); err != nil {
			return 0, err
		}
		if !right.TryInferCorrectParity() {
			if err := right.AskCorrectParity(oracle); err != nil {
				return 0, err
			}
		}

		leftOdd, err := left.ErrorParity()
		if err != nil {
			return 0, err
		}
		if leftOdd {
			current = left
		} else {
			current = right
		}
	}

	bitNr := current.StartBitNr()
	if err := current.CorrectBit(bitNr); err != nil {
		return 0, err
	}
	flipParityUpstream(current)
	return bitNr, nil
}

func getOrCreateChild(b Block, kind BlockKind) (Block, error) {
	if kind == LeftChild {
		if c, ok := b.LeftChild(); ok {
			return c, nil
		}
	} else {
		if c, ok := b.RightChild(); ok {
			return c, nil
		}
	}
	return b.CreateChild(kind)
}

// flipParityUpstream toggles the cached current parity of block and every
// ancestor of block, in O(depth) instead of recomputing each from
// scratch.
func flipParityUpstream(block Block) {
	b := block
	for {
		b.FlipCurrentParity()
		parent, ok := b.Parent()
		if !ok {
			return
		}
		b = parent
	}
}

// flipParityDownstream toggles the cached current parity of topBlock and
// every already-created descendant on the path toward bitNr (shuffle
// space), stopping at a leaf or at the deepest block created so far. It
// is used by the cascade effect: when bitNr gets corrected in a later
// iteration, every earlier iteration's top block containing it must have
// its cached parities invalidated the same way, without asking the
// oracle again.
func flipParityDownstream(topBlock Block, bitNr uint32) {
	b := topBlock
	for {
		b.FlipCurrentParity()
		if b.NrBits() == 1 {
			return
		}
		left, hasLeft := b.LeftChild()
		right, hasRight := b.RightChild()
		if !hasLeft || !hasRight {
			return
		}
		if left.Contains(bitNr) {
			b = left
		} else if right.Contains(bitNr) {
			b = right
		} else {
			return
		}
	}
}
