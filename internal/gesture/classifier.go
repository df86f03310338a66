package gesture

import (
	"fmt"

	"github.com/ayusman/signify/internal/glove"
)

// Default acceptance bounds. Two-hand vectors concatenate two independent
// blocks, so their bound is much larger than the single-hand one.
const (
	DefaultStaticSingleBound = 150
	DefaultStaticBothBound   = 950
	DefaultDynamicBound      = 30
)

// Bounds are the maximum accepted distances.
type Bounds struct {
	StaticSingle float64
	StaticBoth   float64
	Dynamic      float64
}

// DefaultBounds returns the default acceptance bounds.
func DefaultBounds() Bounds {
	return Bounds{
		StaticSingle: DefaultStaticSingleBound,
		StaticBoth:   DefaultStaticBothBound,
		Dynamic:      DefaultDynamicBound,
	}
}

// Result is an accepted classification.
type Result struct {
	Name      string  `json:"name"`
	Kind      Kind    `json:"kind"`
	Distance  float64 `json:"distance"`
	BothHands bool    `json:"both_hands"`
	// Heuristic is set when a dynamic match was accepted on motion direction
	// rather than distance.
	Heuristic bool `json:"heuristic,omitempty"`
}

// ClassifierConfig configures a Classifier.
type ClassifierConfig struct {
	Bounds Bounds
	// Dominant is the hand used when a two-hand sample finds no two-hand
	// match. Nil disables the fallback.
	Dominant *glove.Side
}

// Classifier matches samples and dynamic features against a Library.
type Classifier struct {
	lib      *Library
	bounds   Bounds
	dominant *glove.Side
}

// NewClassifier creates a Classifier over lib.
func NewClassifier(lib *Library, cfg ClassifierConfig) *Classifier {
	if lib == nil {
		lib = EmptyLibrary()
	}
	return &Classifier{lib: lib, bounds: cfg.Bounds, dominant: cfg.Dominant}
}

// Library returns the exemplar library.
func (c *Classifier) Library() *Library {
	return c.lib
}

// Bounds returns the acceptance bounds.
func (c *Classifier) Bounds() Bounds {
	return c.bounds
}

// ClassifyStatic matches one sample. A two-hand sample is queried against
// the two-hand index only; if that misses and a dominant hand is set, the
// dominant hand alone is queried against the single-hand index.
func (c *Classifier) ClassifyStatic(s glove.Sample) (Result, bool, error) {
	f := StaticFeatures(s)
	if f.Empty() {
		return Result{}, false, glove.ErrNoHands
	}
	return c.classify(f, func(f Features, n Neighbor) (Result, bool) {
		bound := c.bounds.StaticSingle
		if f.BothHands() {
			bound = c.bounds.StaticBoth
		}
		if n.Distance <= bound {
			return resultFor(n, false), true
		}
		return Result{}, false
	})
}

// ClassifyDynamic matches an aggregated window. A neighbor is accepted if it
// is within the dynamic bound, or if the motion is still building along the
// neighbor's axis for at least one hand.
func (c *Classifier) ClassifyDynamic(f Features) (Result, bool, error) {
	if f.Empty() {
		return Result{}, false, glove.ErrNoHands
	}
	return c.classify(f, func(f Features, n Neighbor) (Result, bool) {
		if n.Distance <= c.bounds.Dynamic {
			return resultFor(n, false), true
		}
		if motionBuilding(f, n.Exemplar.Hands) {
			return resultFor(n, true), true
		}
		return Result{}, false
	})
}

type acceptFunc func(f Features, n Neighbor) (Result, bool)

func (c *Classifier) classify(f Features, accept acceptFunc) (Result, bool, error) {
	r, ok, err := c.query(f, accept)
	if err != nil || ok || !f.BothHands() || c.dominant == nil {
		return r, ok, err
	}
	return c.query(f.Only(*c.dominant), accept)
}

// query searches the index matching f's hand count.
func (c *Classifier) query(f Features, accept acceptFunc) (Result, bool, error) {
	ix := c.lib.Single
	if f.BothHands() {
		ix = c.lib.Both
	}

	n, found, err := ix.Nearest(f.Vector())
	if err != nil {
		return Result{}, false, fmt.Errorf("query: %w", err)
	}
	if !found {
		return Result{}, false, nil
	}

	r, ok := accept(f, n)
	return r, ok, nil
}

func resultFor(n Neighbor, heuristic bool) Result {
	return Result{
		Name:      n.Exemplar.Name,
		Kind:      n.Exemplar.Kind,
		Distance:  n.Distance,
		BothHands: n.Exemplar.BothHands(),
		Heuristic: heuristic,
	}
}

// motionBuilding reports whether any hand of sample is accelerating harder
// and more steadily than the neighbor along the neighbor's axis. A
// single-hand sample compares against the neighbor's only hand.
func motionBuilding(sample, neighbor Features) bool {
	if !sample.BothHands() {
		s, n := soleHand(sample), soleHand(neighbor)
		return s != nil && n != nil && handBuilding(*s, *n)
	}
	for _, side := range []glove.Side{glove.Left, glove.Right} {
		s, n := sample.Hand(side), neighbor.Hand(side)
		if s != nil && n != nil && handBuilding(*s, *n) {
			return true
		}
	}
	return false
}

func handBuilding(s, n HandFeature) bool {
	accel := s.MeanAccel > n.MeanAccel && s.StdAccel < n.StdAccel && s.AccelAxis == n.AccelAxis
	gyro := s.MeanAngular > n.MeanAngular && s.StdAngular < n.StdAngular && s.GyroAxis == n.GyroAxis
	return accel || gyro
}

func soleHand(f Features) *HandFeature {
	if f.Left != nil {
		return f.Left
	}
	return f.Right
}
