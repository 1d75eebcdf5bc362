package topic

import (
	"strings"

	"github.com/tidwall/match"
)

// Parse converts the textual identifier form into an Identifier:
//
//   - "*" is Any
//   - "/expr/" is a regular expression
//   - text containing glob metacharacters (* or ?) is a Glob
//   - anything else is an exact Name
//
// An empty string returns ErrInvalidIdentifier.
func Parse(s string) (Identifier, error) {
	switch {
	case s == "":
		return nil, ErrInvalidIdentifier
	case s == Wildcard:
		return Any(), nil
	case len(s) >= 2 && strings.HasPrefix(s, "/") && strings.HasSuffix(s, "/"):
		return Regexp(s[1 : len(s)-1])
	case match.IsPattern(s):
		return Glob(s)
	default:
		return Name(s), nil
	}
}

// MustParse is like Parse but panics on error.
func MustParse(s string) Identifier {
	id, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return id
}

// Normalize resolves the wildcard Name to Any and validates the identifier.
// It returns either a Name or a non-zero Pattern.
func Normalize(id Identifier) (Identifier, error) {
	switch v := id.(type) {
	case nil:
		return nil, ErrInvalidIdentifier
	case Name:
		if !v.IsValid() {
			return nil, ErrInvalidIdentifier
		}
		if v.IsWildcard() {
			return Any(), nil
		}
		return v, nil
	case Pattern:
		if v.IsZero() {
			return nil, ErrInvalidIdentifier
		}
		return v, nil
	case *Pattern:
		if v == nil || v.IsZero() {
			return nil, ErrInvalidIdentifier
		}
		return *v, nil
	default:
		return nil, ErrInvalidIdentifier
	}
}
