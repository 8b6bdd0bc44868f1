package executor

// sentinelError is a fatal-error taxonomy value: a constant,
// comparable error so callers can test the category with errors.Is
// while a human-readable detail is still attached via fmt.Errorf's
// %w. Grounded on giantswarm-k8senv's internal/sentinel package
// (type Error string implementing the error interface).
type sentinelError string

func (e sentinelError) Error() string { return string(e) }

// The five-entry fatal-error taxonomy the governing specification
// names in §7. Stack, underflow, capture and scheduler errors wrap
// exactly one of these; integer-parse failures and division by zero
// are returned without one.
const (
	// ErrUnderflow: an operator required more values on CURRENT (or
	// another named stack) than were present.
	ErrUnderflow sentinelError = "underflow"

	// ErrMissingStack: a name lookup failed to resolve through the
	// scope chain.
	ErrMissingStack sentinelError = "missing stack"

	// ErrTargetEmpty: POP found the named stack empty.
	ErrTargetEmpty sentinelError = "target stack empty"

	// ErrCapture: a BEGIN/END accounting mismatch. Never occurs if
	// BEGIN/END nesting in the source is balanced.
	ErrCapture sentinelError = "unbalanced block capture"

	// ErrInvariant: the executor dequeued a context id with no
	// backing Context — a scheduler bug, not a program error.
	ErrInvariant sentinelError = "invariant breach"
)
