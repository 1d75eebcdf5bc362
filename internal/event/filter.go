package event

import (
	"strings"

	"github.com/dshills/relay/internal/event/topic"
)

// Common filter predicates for subscriptions.

// FilterByName creates a filter that only allows names matched by pattern.
// This is useful when subscribing to a broad pattern but wanting finer control.
func FilterByName(pattern topic.Pattern) FilterFunc {
	return func(e Event) bool {
		return pattern.MatchName(e.Name)
	}
}

// FilterByNamespace creates a filter for names in the namespace ns.
func FilterByNamespace(ns string) FilterFunc {
	return func(e Event) bool {
		return e.Name.HasNamespace(ns)
	}
}

// FilterByPrefix creates a filter for names starting with prefix.
func FilterByPrefix(prefix string) FilterFunc {
	return func(e Event) bool {
		return strings.HasPrefix(e.Name.String(), prefix)
	}
}

// FilterExcludeName creates a filter that rejects names matched by pattern.
func FilterExcludeName(pattern topic.Pattern) FilterFunc {
	return FilterNot(FilterByName(pattern))
}

// FilterArgCount creates a filter for emissions carrying at least n arguments.
func FilterArgCount(n int) FilterFunc {
	return func(e Event) bool {
		return len(e.Args) >= n
	}
}

// FilterPayload creates a filter based on the first argument.
// Events whose first argument is not a T are rejected.
func FilterPayload[T any](predicate func(payload T) bool) FilterFunc {
	return func(e Event) bool {
		payload, ok := PayloadOf[T](e)
		return ok && predicate(payload)
	}
}

// FilterAnd combines filters with AND logic.
func FilterAnd(filters ...FilterFunc) FilterFunc {
	return func(e Event) bool {
		for _, f := range filters {
			if !f(e) {
				return false
			}
		}
		return true
	}
}

// FilterOr combines filters with OR logic.
func FilterOr(filters ...FilterFunc) FilterFunc {
	return func(e Event) bool {
		for _, f := range filters {
			if f(e) {
				return true
			}
		}
		return false
	}
}

// FilterNot negates a filter.
func FilterNot(filter FilterFunc) FilterFunc {
	return func(e Event) bool {
		return !filter(e)
	}
}

// FilterAll allows all events.
func FilterAll() FilterFunc {
	return func(Event) bool {
		return true
	}
}

// FilterNone blocks all events.
func FilterNone() FilterFunc {
	return func(Event) bool {
		return false
	}
}
