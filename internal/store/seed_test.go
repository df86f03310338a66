package store

import "testing"

func TestSeedGestures(t *testing.T) {
	gestures, err := SeedGestures()
	if err != nil {
		t.Fatalf("SeedGestures() error = %v", err)
	}
	if len(gestures) != 7 {
		t.Fatalf("got %d seed gestures, want 7", len(gestures))
	}

	for _, g := range gestures {
		if g.Kind != GestureKindStatic {
			t.Errorf("%s kind = %q, want static", g.Name, g.Kind)
		}
		if g.Left == nil && g.Right == nil {
			t.Errorf("%s has no hands", g.Name)
		}
	}

	dias := gestures[len(gestures)-1]
	if dias.Name != "DIAS" || dias.Left == nil || dias.Right == nil {
		t.Errorf("DIAS should have both hands: %+v", dias)
	}
}

func TestStore_Seed(t *testing.T) {
	s := newTestStore(t)

	n, err := s.Seed()
	if err != nil {
		t.Fatalf("Seed() error = %v", err)
	}
	if n != 7 {
		t.Errorf("Seed() inserted %d, want 7", n)
	}

	a, err := s.Gestures().GetByName("A")
	if err != nil {
		t.Fatalf("GetByName(A) error = %v", err)
	}
	if a.Right == nil || a.Right.Fingers != [5]int{54, 16, 28, 106, 160} {
		t.Errorf("A right hand = %+v", a.Right)
	}

	n, err = s.Seed()
	if err != nil || n != 0 {
		t.Errorf("second Seed() = %d, %v, want 0, nil", n, err)
	}
}
