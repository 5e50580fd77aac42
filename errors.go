package rln

import "errors"

// Kind identifies one of the error variants of spec.md §7. Structural
// problems are returned as *Error wrapping a Kind; cryptographic
// verification that simply fails is a successful call returning false, not
// an error.
type Kind int

const (
	// InvalidLength: a buffer is too short or too long for its declared shape.
	InvalidLength Kind = iota
	// NonCanonicalField: a 32-byte field element is ≥ the field modulus.
	NonCanonicalField
	// InvalidPoint: a curve point fails its subgroup/canonical/infinity check.
	InvalidPoint
	// IndexOutOfRange: a Merkle index ≥ 2^depth, a delete of an
	// empty/unassigned slot, or an insert past 2^depth.
	IndexOutOfRange
	// DepthMismatch: two Merkle depths disagree. NewWithRawParams returns it
	// when a raw params blob's depth header differs from the requested depth.
	DepthMismatch
	// SignalMismatch: during verify, the recomputed share_x disagrees with
	// the share_x carried in the parsed public inputs.
	SignalMismatch
	// RandomnessFailure: the CSPRNG returned an error.
	RandomnessFailure
	// InvariantViolation: a should-never-happen contract break. Callers that
	// want panic-worthy behavior should check for this kind explicitly.
	InvariantViolation
)

func (k Kind) String() string {
	switch k {
	case InvalidLength:
		return "InvalidLength"
	case NonCanonicalField:
		return "NonCanonicalField"
	case InvalidPoint:
		return "InvalidPoint"
	case IndexOutOfRange:
		return "IndexOutOfRange"
	case DepthMismatch:
		return "DepthMismatch"
	case SignalMismatch:
		return "SignalMismatch"
	case RandomnessFailure:
		return "RandomnessFailure"
	case InvariantViolation:
		return "InvariantViolation"
	default:
		return "UnknownKind"
	}
}

// Error is the typed error this package returns for every protocol-level
// violation named in spec.md §7. Op names the failing operation
// ("generate_proof", "update_next_member", ...) for context in logs.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Op + ": " + e.Kind.String() + ": " + e.Err.Error()
	}
	return e.Op + ": " + e.Kind.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error of the same Kind, so
// errors.Is(err, &rln.Error{Kind: rln.InvalidLength}) matches any *Error of
// that Kind. The package-level Is helper does the same from a bare Kind, and
// callers can also switch on a recovered *Error's Kind directly.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Kind == other.Kind
	}
	return false
}

func newErr(op string, kind Kind, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Is reports whether err is an *Error carrying the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}
