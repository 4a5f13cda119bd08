package runtime

import "github.com/rcrsr/rill/rillerr"

// Runtime error ids (spec §7 "Runtime / type", "Runtime / reference",
// "Runtime / resource", "Runtime / assertion").
const (
	ErrUndefinedVariable  = "RILL-R001"
	ErrMissingDictField   = "RILL-R002"
	ErrUnknownMethod      = "RILL-R003"
	ErrUnknownFunction    = "RILL-R004"
	ErrUndefinedTopLevel  = "RILL-R005" // reading $ with no bound pipe value
	ErrTypeMismatch       = "RILL-R006"
	ErrArityMismatch      = "RILL-R007"
	ErrDivisionByZero     = "RILL-R008"
	ErrInvalidSlice       = "RILL-R009"
	ErrIteratorShape      = "RILL-R010"
	ErrDispatchMiss       = "RILL-R011"
	ErrDestructureArity   = "RILL-R012"
	ErrAborted            = "RILL-R013"
	ErrAssertionFailed    = "RILL-R014"
	ErrExplicitError      = "RILL-R015"
	ErrRecoveryNode       = "RILL-R016"
	ErrCallStackOverflow  = "RILL-R017"
)

func newErr(id, format string, args ...any) *rillerr.Error {
	return rillerr.Newf(id, format, args...)
}
