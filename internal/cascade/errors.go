package cascade

import "errors"

// Sentinel errors for the Cascade engine. MalformedInput, IndexOutOfRange,
// InvalidState and ParityUnknown indicate a programming error in the
// caller; OracleUnavailable is a transport failure in a hosted deployment;
// ReconciliationIncomplete is a result, carried in a Summary, never
// returned as an error from a successful run.
var (
	ErrMalformedInput          = errors.New("cascade: malformed input")
	ErrIndexOutOfRange         = errors.New("cascade: index out of range")
	ErrParityUnknown           = errors.New("cascade: correct parity not yet known")
	ErrInvalidState            = errors.New("cascade: invalid block state")
	ErrOracleUnavailable       = errors.New("cascade: parity oracle unavailable")
	ErrReconciliationIncomplete = errors.New("cascade: reconciliation incomplete")
)
