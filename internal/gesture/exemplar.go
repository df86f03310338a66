// Package gesture classifies glove samples against stored gesture exemplars.
package gesture

import (
	"errors"
	"fmt"

	"github.com/ayusman/signify/internal/glove"
)

// Kind distinguishes momentary poses from motion gestures.
type Kind string

const (
	// KindStatic is a single-instant hand pose.
	KindStatic Kind = "static"
	// KindDynamic is a gesture defined by motion across a window.
	KindDynamic Kind = "dynamic"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k == KindStatic || k == KindDynamic
}

// ErrNoHands is returned when building an exemplar without any hand.
var ErrNoHands = errors.New("exemplar has no hands")

// Exemplar is a named reference gesture. It holds either one hand or both;
// the two shapes are never compared with each other.
type Exemplar struct {
	ID    string
	Name  string
	Kind  Kind
	Hands Features
}

// SingleHandExemplar builds an exemplar from one hand.
func SingleHandExemplar(name string, kind Kind, side glove.Side, h HandFeature) Exemplar {
	var f Features
	if side == glove.Left {
		f.Left = &h
	} else {
		f.Right = &h
	}
	return Exemplar{Name: name, Kind: kind, Hands: f}
}

// BothHandsExemplar builds an exemplar from both hands.
func BothHandsExemplar(name string, kind Kind, left, right HandFeature) Exemplar {
	return Exemplar{Name: name, Kind: kind, Hands: Features{Left: &left, Right: &right}}
}

// BothHands reports whether the exemplar covers both hands.
func (e Exemplar) BothHands() bool {
	return e.Hands.BothHands()
}

// Vector returns the exemplar's 14- or 28-dimensional feature vector.
func (e Exemplar) Vector() []float64 {
	return e.Hands.Vector()
}

// Validate checks that the exemplar is usable for indexing.
func (e Exemplar) Validate() error {
	if e.Name == "" {
		return errors.New("exemplar has no name")
	}
	if !e.Kind.Valid() {
		return fmt.Errorf("exemplar %q has unknown kind %q", e.Name, e.Kind)
	}
	if e.Hands.Empty() {
		return fmt.Errorf("exemplar %q: %w", e.Name, ErrNoHands)
	}
	return nil
}
