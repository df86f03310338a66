package gesture

import "fmt"

// Library holds the single-hand and two-hand indices built from one
// exemplar set. It is immutable; reloading builds a new Library.
type Library struct {
	Single *Index
	Both   *Index

	exemplars []Exemplar
}

// EmptyLibrary returns a library with no exemplars.
func EmptyLibrary() *Library {
	lib, _ := NewLibrary(nil)
	return lib
}

// NewLibrary partitions exemplars by hand count and indexes each group.
func NewLibrary(exemplars []Exemplar) (*Library, error) {
	lib := &Library{exemplars: make([]Exemplar, len(exemplars))}
	copy(lib.exemplars, exemplars)

	var single, both []*Exemplar
	for i := range lib.exemplars {
		e := &lib.exemplars[i]
		if err := e.Validate(); err != nil {
			return nil, err
		}
		if e.BothHands() {
			both = append(both, e)
		} else {
			single = append(single, e)
		}
	}

	var err error
	if lib.Single, err = NewIndex(HandDims, single); err != nil {
		return nil, fmt.Errorf("single-hand index: %w", err)
	}
	if lib.Both, err = NewIndex(PairDims, both); err != nil {
		return nil, fmt.Errorf("two-hand index: %w", err)
	}
	return lib, nil
}

// Len returns the number of exemplars.
func (l *Library) Len() int {
	return len(l.exemplars)
}

// Exemplars returns a copy of the indexed exemplars.
func (l *Library) Exemplars() []Exemplar {
	out := make([]Exemplar, len(l.exemplars))
	copy(out, l.exemplars)
	return out
}
