// Package payload provides helpers for events that carry JSON documents.
//
// Queries use gjson path syntax ("user.name", "items.#", "tags.0").
package payload

import (
	"encoding/json"
	"errors"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/dshills/relay/internal/event"
)

// ErrInvalidJSON is returned when a document is not valid JSON.
var ErrInvalidJSON = errors.New("payload is not valid JSON")

// JSON is a raw JSON document used as an event argument.
type JSON []byte

// Parse validates s and returns it as a JSON payload.
func Parse(s string) (JSON, error) {
	if !gjson.Valid(s) {
		return nil, ErrInvalidJSON
	}
	return JSON(s), nil
}

// Valid reports whether the document is valid JSON.
func (j JSON) Valid() bool {
	return gjson.ValidBytes(j)
}

// Get returns the value at path.
func (j JSON) Get(path string) gjson.Result {
	return gjson.GetBytes(j, path)
}

// Set returns a copy of the document with path set to v.
func (j JSON) Set(path string, v any) (JSON, error) {
	out, err := sjson.SetBytes(append([]byte(nil), j...), path, v)
	if err != nil {
		return nil, err
	}
	return JSON(out), nil
}

// Delete returns a copy of the document without path.
func (j JSON) Delete(path string) (JSON, error) {
	out, err := sjson.DeleteBytes(append([]byte(nil), j...), path)
	if err != nil {
		return nil, err
	}
	return JSON(out), nil
}

// Value decodes the document into Go values.
func (j JSON) Value() any {
	return gjson.ParseBytes(j).Value()
}

// String implements fmt.Stringer.
func (j JSON) String() string {
	return string(j)
}

// MarshalJSON emits the document unchanged.
func (j JSON) MarshalJSON() ([]byte, error) {
	if len(j) == 0 {
		return []byte("null"), nil
	}
	return j, nil
}

// FromEvent returns the first argument of e as JSON. It accepts JSON,
// []byte, json.RawMessage and strings holding valid JSON.
func FromEvent(e event.Event) (JSON, bool) {
	switch v := e.Arg(0).(type) {
	case JSON:
		return v, true
	case json.RawMessage:
		return JSON(v), true
	case []byte:
		if gjson.ValidBytes(v) {
			return JSON(v), true
		}
	case string:
		if gjson.Valid(v) {
			return JSON(v), true
		}
	}
	return nil, false
}

// Where creates a filter for events whose JSON payload has want at path,
// compared against the value's string form.
func Where(path, want string) event.FilterFunc {
	return func(e event.Event) bool {
		j, ok := FromEvent(e)
		if !ok {
			return false
		}
		r := j.Get(path)
		return r.Exists() && r.String() == want
	}
}

// Exists creates a filter for events whose JSON payload has a value at path.
func Exists(path string) event.FilterFunc {
	return func(e event.Event) bool {
		j, ok := FromEvent(e)
		return ok && j.Get(path).Exists()
	}
}

// Match creates a filter for events whose JSON payload satisfies the gjson
// query. The query must select something for the event to pass, for example
// `items.#(qty>5)`.
func Match(query string) event.FilterFunc {
	return Exists(query)
}
