// Package topic provides event identifiers for the dispatch registry.
//
// # Identifier Kinds
//
// An identifier is either an exact Name or a Pattern:
//
//	user:login        exact name
//	*                 matches every name
//	user:*            glob, matches user:login, user:logout
//	order.?           glob, single character
//	/^user:(in|out)$/ regular expression
//
// Names are compared byte for byte. Patterns are matched against the
// stringified event name at emission time.
//
// # Namespaces
//
// Names may carry a namespace prefix separated by a colon:
//
//	topic.Join("user", "login")  // "user:login"
//	topic.Namespace("user")      // glob "user:*"
//
// # Parsing
//
// Parse turns the textual form used by configuration files, scripts and
// event logs into an Identifier:
//
//	id, err := topic.Parse("/^user:/")
//	if err != nil {
//	    // malformed regular expression
//	}
package topic
