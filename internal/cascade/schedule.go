package cascade

import "math"

// minEstimatedBitErrRate floors the BER fed into block size calculations,
// mirroring the Rust prototype's Algorithm::MIN_ESTIMATED_BIT_ERR_RATE:
// a BER of exactly zero would otherwise divide by zero at iteration 1.
const minEstimatedBitErrRate = 1e-5

// BlockSizeSchedule decides the top-level block size for each cascade
// iteration, and carries the handful of protocol variant flags the
// original Cascade paper and its descendants (e.g. BICONF) expose.
type BlockSizeSchedule interface {
	// BlockSize returns the top-level block size to use at iterationNr
	// (1-based), given an estimated bit error rate and total key length.
	BlockSize(iterationNr uint32, estimatedBER float64, nrKeyBits uint32) uint32

	// NrCascadeIterations is how many ask/correct/cascade passes Run
	// performs before stopping.
	NrCascadeIterations() uint32
}

// ScheduleConfig holds the original Cascade algorithm's tunable flags, as
// named in the Rust prototype's InnerConfig. Only NrCascadeIterations
// currently affects Reconciler.Run; the BICONF-related flags are carried
// for forward compatibility with schedules that implement them, and so a
// caller can plumb config all the way from a CLI without the schedule
// interface needing to change shape again.
type ScheduleConfig struct {
	NrCascadeIterationsValue uint32
	NrBiconfIterations       uint32
	BiconfErrorFreeStreak    uint32
	BiconfCorrectComplement  bool
	BiconfCascade            bool
	AskParityUsingShuffleSeed bool
	CacheShuffles            bool
}

// DefaultScheduleConfig mirrors the Rust prototype's OriginalAlgorithm
// default: 4 cascade iterations, no BICONF, shuffle caching and
// ask-by-seed both enabled.
func DefaultScheduleConfig() ScheduleConfig {
	return ScheduleConfig{
		NrCascadeIterationsValue:  4,
		NrBiconfIterations:        0,
		BiconfErrorFreeStreak:     0,
		BiconfCorrectComplement:   false,
		BiconfCascade:             false,
		AskParityUsingShuffleSeed: true,
		CacheShuffles:             true,
	}
}

// OriginalSchedule implements the block-size formula from the original
// 1994 Brassard-Salvail Cascade paper: block 1 is sized so that an
// average of ~0.73 errors fall in it, and each later iteration doubles
// the previous block size.
type OriginalSchedule struct {
	config ScheduleConfig
}

// NewOriginalSchedule returns a BlockSizeSchedule using the original
// paper's formula and the given config.
func NewOriginalSchedule(config ScheduleConfig) *OriginalSchedule {
	return &OriginalSchedule{config: config}
}

// BlockSize implements BlockSizeSchedule.
func (s *OriginalSchedule) BlockSize(iterationNr uint32, estimatedBER float64, nrKeyBits uint32) uint32 {
	ber := estimatedBER
	if ber < minEstimatedBitErrRate {
		ber = minEstimatedBitErrRate
	}

	if iterationNr == 1 {
		return uint32(math.Ceil(0.73 / ber))
	}

	prev := s.BlockSize(iterationNr-1, estimatedBER, nrKeyBits)
	return prev * 2
}

// NrCascadeIterations implements BlockSizeSchedule.
func (s *OriginalSchedule) NrCascadeIterations() uint32 {
	return s.config.NrCascadeIterationsValue
}

// Config returns the schedule's variant flags.
func (s *OriginalSchedule) Config() ScheduleConfig {
	return s.config
}
