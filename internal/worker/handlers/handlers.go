// Package handlers implements the worker's per-task-type logic: a
// name registered at init() time maps to a function run against a
// task's payload. There is no file-path or plugin-style dispatch —
// the table is fixed at compile time per the worker's "dynamic
// handler loading" redesign, which trades runtime extensibility for a
// single, auditable registry.
package handlers

import "encoding/json"

// Handler processes one task's payload and returns its result, both
// as raw JSON, or an error describing why the payload couldn't be
// handled. A returned error is never a transport or infrastructure
// failure — only a rejection of this specific payload.
type Handler func(payload json.RawMessage) (json.RawMessage, error)

var registry = make(map[string]Handler)

// register adds a handler under name. Called only from each handler
// file's init(), so a duplicate name is a programming error.
func register(name string, h Handler) {
	if _, exists := registry[name]; exists {
		panic("handlers: duplicate registration for " + name)
	}
	registry[name] = h
}

// Lookup returns the handler registered for typ.
func Lookup(typ string) (Handler, bool) {
	h, ok := registry[typ]
	return h, ok
}

// Types returns every registered task type, the set a worker
// validates its --type flag against and a single worker binary can
// only ever serve one of at a time.
func Types() []string {
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	return out
}

// decodeString unmarshals a payload that must be a bare JSON string,
// the shape reverse/upper/hash expect.
func decodeString(payload json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(payload, &s); err != nil {
		return "", errInvalidPayload{expected: "a string", cause: err}
	}
	return s, nil
}

func encodeString(s string) json.RawMessage {
	out, _ := json.Marshal(s)
	return out
}

type errInvalidPayload struct {
	expected string
	cause    error
}

func (e errInvalidPayload) Error() string {
	return "invalid payload: expected " + e.expected
}

func (e errInvalidPayload) Unwrap() error { return e.cause }
