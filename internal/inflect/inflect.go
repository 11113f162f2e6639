// Package inflect provides the singular/plural rules used to match table
// names in pivot and polymorphic inference.
package inflect

import (
	"strings"

	"github.com/jinzhu/inflection"
)

// Inflector converts words between singular and plural forms
type Inflector interface {
	Plural(word string) string
	Singular(word string) string
}

// English uses jinzhu/inflection's English rules
type English struct{}

func (English) Plural(word string) string   { return inflection.Plural(word) }
func (English) Singular(word string) string { return inflection.Singular(word) }

// Default returns the English inflector
func Default() Inflector { return English{} }

// withIrregular checks exact overrides before falling back to a base inflector
type withIrregular struct {
	base      Inflector
	plurals   map[string]string
	singulars map[string]string
}

// WithIrregular extends base with singular -> plural pairs. Both directions
// are matched case-insensitively on the whole word or on the last
// snake_case segment.
func WithIrregular(base Inflector, pairs map[string]string) Inflector {
	w := &withIrregular{
		base:      base,
		plurals:   make(map[string]string, len(pairs)),
		singulars: make(map[string]string, len(pairs)),
	}
	for singular, plural := range pairs {
		w.plurals[strings.ToLower(singular)] = strings.ToLower(plural)
		w.singulars[strings.ToLower(plural)] = strings.ToLower(singular)
	}
	return w
}

func (w *withIrregular) Plural(word string) string {
	if out, ok := replaceLast(word, w.plurals); ok {
		return out
	}
	return w.base.Plural(word)
}

func (w *withIrregular) Singular(word string) string {
	if out, ok := replaceLast(word, w.singulars); ok {
		return out
	}
	return w.base.Singular(word)
}

func replaceLast(word string, table map[string]string) (string, bool) {
	prefix, last := "", word
	if i := strings.LastIndex(word, "_"); i >= 0 {
		prefix, last = word[:i+1], word[i+1:]
	}
	out, ok := table[strings.ToLower(last)]
	if !ok {
		return "", false
	}
	return prefix + out, true
}

// Same reports whether two words name the same thing regardless of number
func Same(in Inflector, a, b string) bool {
	a, b = strings.ToLower(a), strings.ToLower(b)
	return a == b || in.Singular(a) == in.Singular(b)
}
