package topic

import (
	"errors"
	"regexp"
	"strings"

	"github.com/tidwall/match"
)

// Kind distinguishes pattern flavors.
type Kind int

const (
	// KindNone is the zero Pattern.
	KindNone Kind = iota

	// KindAny matches every name.
	KindAny

	// KindGlob matches with shell-style * and ? wildcards.
	KindGlob

	// KindRegexp matches with a regular expression.
	KindRegexp
)

// String returns a human-readable kind name.
func (k Kind) String() string {
	switch k {
	case KindAny:
		return "any"
	case KindGlob:
		return "glob"
	case KindRegexp:
		return "regexp"
	default:
		return "none"
	}
}

// Pattern matches event names. Patterns are immutable values; the zero
// Pattern matches nothing and is rejected by the registry.
type Pattern struct {
	kind Kind
	expr string
	re   *regexp.Regexp
}

func (Pattern) isIdentifier() {}

// Any returns the pattern matching every name.
func Any() Pattern {
	return Pattern{kind: KindAny, expr: Wildcard}
}

// Glob compiles a shell-style glob. "*" matches any run of characters and
// "?" a single character.
func Glob(expr string) (Pattern, error) {
	if expr == "" {
		return Pattern{}, &PatternError{Expr: expr, Err: errors.New("empty glob")}
	}
	if expr == Wildcard {
		return Any(), nil
	}
	if strings.HasSuffix(expr, `\`) && !strings.HasSuffix(expr, `\\`) {
		return Pattern{}, &PatternError{Expr: expr, Err: errors.New("trailing escape")}
	}
	return Pattern{kind: KindGlob, expr: expr}, nil
}

// MustGlob is like Glob but panics on error.
func MustGlob(expr string) Pattern {
	p, err := Glob(expr)
	if err != nil {
		panic(err)
	}
	return p
}

// Namespace returns the glob matching every name in the namespace.
//
// Example: Namespace("user") matches "user:login" and "user:logout".
func Namespace(ns string) Pattern {
	return Pattern{kind: KindGlob, expr: ns + Separator + Wildcard}
}

// Regexp compiles a regular expression pattern.
func Regexp(expr string) (Pattern, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return Pattern{}, &PatternError{Expr: expr, Err: err}
	}
	return Pattern{kind: KindRegexp, expr: expr, re: re}, nil
}

// MustRegexp is like Regexp but panics on error.
func MustRegexp(expr string) Pattern {
	p, err := Regexp(expr)
	if err != nil {
		panic(err)
	}
	return p
}

// FromRegexp wraps an already compiled regular expression.
func FromRegexp(re *regexp.Regexp) Pattern {
	if re == nil {
		return Pattern{}
	}
	return Pattern{kind: KindRegexp, expr: re.String(), re: re}
}

// Kind returns the pattern flavor.
func (p Pattern) Kind() Kind {
	return p.kind
}

// Expr returns the pattern source without delimiters.
func (p Pattern) Expr() string {
	return p.expr
}

// IsZero returns true for the zero Pattern.
func (p Pattern) IsZero() bool {
	return p.kind == KindNone
}

// String returns the textual form accepted by Parse. Regular expressions are
// wrapped in slashes.
func (p Pattern) String() string {
	if p.kind == KindRegexp {
		return "/" + p.expr + "/"
	}
	return p.expr
}

// Match returns true if the name matches the pattern.
func (p Pattern) Match(name string) bool {
	switch p.kind {
	case KindAny:
		return true
	case KindGlob:
		return match.Match(name, p.expr)
	case KindRegexp:
		return p.re.MatchString(name)
	default:
		return false
	}
}

// MatchName is Match for a Name.
func (p Pattern) MatchName(n Name) bool {
	return p.Match(string(n))
}

// Equal reports structural equality: same kind and same source.
func (p Pattern) Equal(other Pattern) bool {
	return p.kind == other.kind && p.expr == other.expr
}
