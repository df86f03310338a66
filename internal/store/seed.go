package store

import (
	_ "embed"
	"encoding/json"
	"fmt"
)

//go:embed seed.json
var seedJSON []byte

// SeedGestures returns the bundled starter vocabulary.
func SeedGestures() ([]*Gesture, error) {
	var gestures []*Gesture
	if err := json.Unmarshal(seedJSON, &gestures); err != nil {
		return nil, fmt.Errorf("decode seed gestures: %w", err)
	}
	return gestures, nil
}

// Seed stores the starter vocabulary if the store holds no gestures. It
// returns how many gestures were inserted.
func (s *Store) Seed() (int, error) {
	n, err := s.Gestures().Count()
	if err != nil {
		return 0, err
	}
	if n > 0 {
		return 0, nil
	}

	gestures, err := SeedGestures()
	if err != nil {
		return 0, err
	}
	for _, g := range gestures {
		if err := s.Gestures().Create(g); err != nil {
			return 0, fmt.Errorf("seed %s: %w", g.Name, err)
		}
	}
	return len(gestures), nil
}
