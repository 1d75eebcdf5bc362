package topic

import "errors"

var (
	// ErrInvalidIdentifier is returned for empty names, nil identifiers and
	// zero patterns.
	ErrInvalidIdentifier = errors.New("invalid event identifier")

	// ErrInvalidPattern is returned when a glob or regular expression is malformed.
	ErrInvalidPattern = errors.New("invalid pattern")
)

// PatternError reports a pattern that failed to compile.
type PatternError struct {
	// Expr is the pattern source as given.
	Expr string

	// Err is the underlying compile error.
	Err error
}

// Error implements the error interface.
func (e *PatternError) Error() string {
	return "invalid pattern " + e.Expr + ": " + e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *PatternError) Unwrap() error {
	return e.Err
}

// Is allows errors.Is to match PatternError with ErrInvalidPattern and
// ErrInvalidIdentifier.
func (e *PatternError) Is(target error) bool {
	return target == ErrInvalidPattern || target == ErrInvalidIdentifier
}
