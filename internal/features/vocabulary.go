package features

import (
	"errors"
	"fmt"
	"strings"
)

// Vocabulary is the fixed, ordered set of feature names every vector is aligned to.
type Vocabulary struct {
	names []string
	pos   map[string]int
}

// NewVocabulary validates names and fixes their order.
func NewVocabulary(names []string) (*Vocabulary, error) {
	if len(names) == 0 {
		return nil, errors.New("feature vocabulary is empty")
	}
	v := &Vocabulary{names: make([]string, len(names)), pos: make(map[string]int, len(names))}
	for i, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			return nil, fmt.Errorf("feature vocabulary: empty name at position %d", i)
		}
		if j, dup := v.pos[n]; dup {
			return nil, fmt.Errorf("feature vocabulary: %q appears at positions %d and %d", n, j, i)
		}
		v.names[i] = n
		v.pos[n] = i
	}
	return v, nil
}

// Len is the vector length F.
func (v *Vocabulary) Len() int { return len(v.names) }

// Names returns a copy of the ordered feature names.
func (v *Vocabulary) Names() []string {
	out := make([]string, len(v.names))
	copy(out, v.names)
	return out
}

// Position returns the vector index of a feature.
func (v *Vocabulary) Position(name string) (int, bool) {
	i, ok := v.pos[name]
	return i, ok
}
