package topic

import (
	"fmt"
	"strings"
)

// Wildcard and separator constants.
const (
	// Wildcard is the identifier that matches every event name.
	Wildcard = "*"

	// Separator splits a namespace from the rest of a name.
	Separator = ":"
)

// Identifier is an exact Name or a Pattern.
type Identifier interface {
	// String returns the textual form accepted by Parse.
	String() string

	isIdentifier()
}

// Name is an exact event identifier.
// Examples: "user:login", "tick", "order:created"
type Name string

// String returns the name as a string.
func (n Name) String() string {
	return string(n)
}

func (Name) isIdentifier() {}

// IsWildcard returns true if the name is the literal wildcard "*".
// The registry treats it as a pattern matching everything.
func (n Name) IsWildcard() bool {
	return string(n) == Wildcard
}

// IsValid returns true if the name is usable as a registration key.
func (n Name) IsValid() bool {
	return n != ""
}

// Namespace returns the part before the first separator, or "" if the name
// has no namespace.
//
// Example: "user:login" -> "user"
func (n Name) Namespace() string {
	s := string(n)
	idx := strings.Index(s, Separator)
	if idx < 0 {
		return ""
	}
	return s[:idx]
}

// Base returns the part after the first separator, or the whole name.
//
// Example: "user:login" -> "login"
func (n Name) Base() string {
	s := string(n)
	idx := strings.Index(s, Separator)
	if idx < 0 {
		return s
	}
	return s[idx+1:]
}

// HasNamespace returns true if the name lives in the given namespace.
func (n Name) HasNamespace(ns string) bool {
	return n.Namespace() == ns
}

// Join joins a namespace and its segments into a Name.
//
// Example: Join("user", "login") -> "user:login"
func Join(parts ...string) Name {
	return Name(strings.Join(parts, Separator))
}

// NameOf stringifies a value into a Name. Numbers, fmt.Stringers and other
// values use their fmt representation.
func NameOf(v any) Name {
	switch x := v.(type) {
	case Name:
		return x
	case string:
		return Name(x)
	case fmt.Stringer:
		return Name(x.String())
	default:
		return Name(fmt.Sprint(v))
	}
}
