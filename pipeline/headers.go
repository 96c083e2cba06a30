package pipeline

import "strings"

// Header is one request header.
type Header struct {
	Key   string
	Value string
}

// Headers is an ordered header list whose keys are unique ignoring case.
// Setting an existing key replaces its value in place, so a middleware that
// runs again on a retry never duplicates a header.
type Headers struct {
	entries []Header
}

// NewHeaders builds Headers from alternating key-value pairs.
func NewHeaders(kv ...string) Headers {
	var h Headers
	for i := 0; i+1 < len(kv); i += 2 {
		h.Set(kv[i], kv[i+1])
	}
	return h
}

// Set sets key to value, replacing any existing value for key.
func (h *Headers) Set(key, value string) {
	if i := h.index(key); i >= 0 {
		h.entries[i].Value = value
		return
	}
	h.entries = append(h.entries, Header{Key: key, Value: value})
}

// Get returns the value for key.
func (h *Headers) Get(key string) (string, bool) {
	if i := h.index(key); i >= 0 {
		return h.entries[i].Value, true
	}
	return "", false
}

// Value returns the value for key, or "".
func (h *Headers) Value(key string) string {
	v, _ := h.Get(key)
	return v
}

// Del removes key.
func (h *Headers) Del(key string) {
	if i := h.index(key); i >= 0 {
		h.entries = append(h.entries[:i], h.entries[i+1:]...)
	}
}

// Len returns the number of headers.
func (h *Headers) Len() int {
	return len(h.entries)
}

// All returns a copy of the headers in insertion order.
func (h *Headers) All() []Header {
	out := make([]Header, len(h.entries))
	copy(out, h.entries)
	return out
}

// Clone returns an independent copy.
func (h *Headers) Clone() Headers {
	return Headers{entries: h.All()}
}

func (h *Headers) index(key string) int {
	for i, e := range h.entries {
		if strings.EqualFold(e.Key, key) {
			return i
		}
	}
	return -1
}
