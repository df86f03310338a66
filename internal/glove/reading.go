// Package glove provides the sensor data model for the instrumented glove pair
// and the codec for the serial line format each glove emits.
package glove

import (
	"errors"
	"fmt"
	"time"

	"gonum.org/v1/gonum/floats"
)

// NumFingers is the number of flex sensors on each glove.
const NumFingers = 5

// Calibration sub-score bounds reported by the orientation sensor.
const (
	MinCalibration = 0
	MaxCalibration = 3
)

// ErrNoHands is returned when a sample is built without any hand reading.
var ErrNoHands = errors.New("sample has no hand readings")

// Side identifies which glove a reading came from.
type Side int

const (
	Left Side = iota
	Right
)

// String returns "left" or "right".
func (s Side) String() string {
	if s == Left {
		return "left"
	}
	return "right"
}

// Vector3 is a three-axis sensor vector.
type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Norm returns the Euclidean norm (the resultant) of the vector.
func (v Vector3) Norm() float64 {
	return floats.Norm([]float64{v.X, v.Y, v.Z}, 2)
}

// Slice returns the components as {X, Y, Z}.
func (v Vector3) Slice() []float64 {
	return []float64{v.X, v.Y, v.Z}
}

// Calibration holds the four fusion confidence sub-scores of one glove.
type Calibration struct {
	System int `json:"system"`
	Gyro   int `json:"gyro"`
	Accel  int `json:"accel"`
	Mag    int `json:"mag"`
}

// Scores returns the sub-scores in wire order.
func (c Calibration) Scores() [4]int {
	return [4]int{c.System, c.Gyro, c.Accel, c.Mag}
}

// Meets reports whether every sub-score is at least threshold.
func (c Calibration) Meets(threshold int) bool {
	for _, s := range c.Scores() {
		if s < threshold {
			return false
		}
	}
	return true
}

// String formats the sub-scores for operator output.
func (c Calibration) String() string {
	return fmt.Sprintf("System: %d/3, Gyroscope: %d/3, Accelerometer: %d/3, Magnetometer: %d/3",
		c.System, c.Gyro, c.Accel, c.Mag)
}

// HandReading is one decoded frame from one glove.
type HandReading struct {
	Roll        float64         `json:"roll"`
	Pitch       float64         `json:"pitch"`
	Yaw         float64         `json:"yaw"`
	Flex        [NumFingers]int `json:"flex"`
	Gyro        Vector3         `json:"gyro"`
	Accel       Vector3         `json:"accel"`
	Calibration Calibration     `json:"calibration"`
}

// Frame is a validated left/right pair read in the same acquisition cycle.
type Frame struct {
	Left  HandReading
	Right HandReading
	At    time.Time
}

// Sample is a static gesture sample. At least one hand is present.
type Sample struct {
	Left  *HandReading
	Right *HandReading
	At    time.Time
}

// NewSample builds a sample from optional hand readings.
func NewSample(left, right *HandReading, at time.Time) (Sample, error) {
	if left == nil && right == nil {
		return Sample{}, ErrNoHands
	}
	return Sample{Left: left, Right: right, At: at}, nil
}

// SampleFromFrame builds a two-hand sample from a frame.
func SampleFromFrame(f Frame) Sample {
	left, right := f.Left, f.Right
	return Sample{Left: &left, Right: &right, At: f.At}
}

// BothHands reports whether both hands are present.
func (s Sample) BothHands() bool {
	return s.Left != nil && s.Right != nil
}

// Hand returns the reading for the given side, or nil.
func (s Sample) Hand(side Side) *HandReading {
	if side == Left {
		return s.Left
	}
	return s.Right
}

// Only returns a single-hand sample keeping just the given side.
// The result has no hands if that side is absent.
func (s Sample) Only(side Side) (Sample, error) {
	if side == Left {
		return NewSample(s.Left, nil, s.At)
	}
	return NewSample(nil, s.Right, s.At)
}
