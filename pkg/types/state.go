package types

// State is the mutable key/value mapping threaded through a pipeline
// execution. Keys are namespaced strings; values are arbitrary JSON-shaped
// payloads. A State is owned by exactly one task execution and is never
// shared across tasks.
type State map[string]interface{}

// Clone returns a shallow copy of the state.
func (s State) Clone() State {
	out := make(State, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Merge applies a partial update, overwriting existing keys (last-writer-wins).
func (s State) Merge(update State) {
	for k, v := range update {
		s[k] = v
	}
}

// Bool reads a key as a boolean. Missing keys and non-boolean values
// report false.
func (s State) Bool(key string) bool {
	v, ok := s[key]
	if !ok {
		return false
	}
	b, ok := v.(bool)
	return ok && b
}

// String reads a key as a string, returning "" when absent or mistyped.
func (s State) String(key string) string {
	v, ok := s[key]
	if !ok {
		return ""
	}
	str, _ := v.(string)
	return str
}

// Has reports whether the key is present.
func (s State) Has(key string) bool {
	_, ok := s[key]
	return ok
}
