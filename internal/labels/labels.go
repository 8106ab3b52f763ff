// Package labels holds the fixed set of object labels a user may search for.
//
// A [Set] is built once at start-up from configuration and never changes
// afterwards; it is safe to share between goroutines.
package labels

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Default is the label set used when the configuration does not override it.
var Default = []string{
	"handbag", "umbrella", "laptop", "mouse", "remote", "keyboard", "book",
	"cup", "backpack", "suitcase", "glass", "fork", "knife", "spoon",
	"toothbrush", "bottle", "chair",
}

// Set is an immutable collection of normalised labels.
type Set struct {
	names []string
	index map[string]struct{}
}

// Normalize trims surrounding whitespace and lowercases label.
func Normalize(label string) string {
	return strings.ToLower(strings.TrimSpace(label))
}

// NewSet builds a Set from names. Names are normalised; empty names and
// duplicates after normalisation are rejected.
func NewSet(names []string) (*Set, error) {
	if len(names) == 0 {
		return nil, errors.New("labels: empty label set")
	}
	s := &Set{
		names: make([]string, 0, len(names)),
		index: make(map[string]struct{}, len(names)),
	}
	var errs []error
	for i, n := range names {
		norm := Normalize(n)
		if norm == "" {
			errs = append(errs, fmt.Errorf("labels[%d] is empty", i))
			continue
		}
		if _, dup := s.index[norm]; dup {
			errs = append(errs, fmt.Errorf("labels[%d] %q is a duplicate", i, norm))
			continue
		}
		s.index[norm] = struct{}{}
		s.names = append(s.names, norm)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("labels: %w", err)
	}
	return s, nil
}

// MustDefault returns the Set built from [Default].
func MustDefault() *Set {
	s, err := NewSet(Default)
	if err != nil {
		panic(err)
	}
	return s
}

// Contains reports whether label, once normalised, is in the set.
func (s *Set) Contains(label string) bool {
	_, ok := s.index[Normalize(label)]
	return ok
}

// Names returns the labels in configuration order. The caller owns the slice.
func (s *Set) Names() []string {
	return slices.Clone(s.names)
}

// Len returns the number of labels.
func (s *Set) Len() int { return len(s.names) }
