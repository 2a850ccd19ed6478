// Package normalization maps free-form configuration strings onto typed enums.
package normalization

import (
	"fmt"
	"sort"
	"strings"
)

// Enum normalizes case and surrounding whitespace before looking a value up.
type Enum[T comparable] struct {
	name     string
	values   map[string]T
	fallback T
	keys     []string
}

// NewEnum builds a normalizer for the named enum. fallback is returned by Normalize for
// unknown input.
func NewEnum[T comparable](name string, values map[string]T, fallback T) *Enum[T] {
	e := &Enum[T]{name: name, values: make(map[string]T, len(values)), fallback: fallback}
	for k, v := range values {
		key := clean(k)
		e.values[key] = v
		e.keys = append(e.keys, key)
	}
	sort.Strings(e.keys)
	return e
}

// Normalize returns the enum value for raw or the fallback.
func (e *Enum[T]) Normalize(raw string) T {
	if v, ok := e.values[clean(raw)]; ok {
		return v
	}
	return e.fallback
}

// Parse returns the enum value for raw or an error listing the accepted values.
func (e *Enum[T]) Parse(raw string) (T, error) {
	if v, ok := e.values[clean(raw)]; ok {
		return v, nil
	}
	var zero T
	return zero, fmt.Errorf("invalid %s %q, valid options: %v", e.name, raw, e.keys)
}

// Valid reports whether raw names a known value.
func (e *Enum[T]) Valid(raw string) bool {
	_, ok := e.values[clean(raw)]
	return ok
}

// Keys returns the accepted spellings in sorted order.
func (e *Enum[T]) Keys() []string {
	out := make([]string, len(e.keys))
	copy(out, e.keys)
	return out
}

func clean(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
