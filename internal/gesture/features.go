package gesture

import (
	"fmt"
	"math"

	"github.com/ayusman/signify/internal/glove"
)

// Feature vector dimensions.
const (
	HandDims = 14
	PairDims = 2 * HandDims
)

// Axis is a dominant motion axis. AxisNone marks the motion slots of a
// static feature, which has no axis.
type Axis int

const (
	AxisNone Axis = iota
	AxisX
	AxisY
	AxisZ
)

// String returns the lowercase axis name.
func (a Axis) String() string {
	switch a {
	case AxisX:
		return "x"
	case AxisY:
		return "y"
	case AxisZ:
		return "z"
	default:
		return "none"
	}
}

// ParseAxis parses "x", "y", "z" or "none" (also "" and the numeric forms).
func ParseAxis(s string) (Axis, error) {
	switch s {
	case "", "none", "0":
		return AxisNone, nil
	case "x", "X", "1":
		return AxisX, nil
	case "y", "Y", "2":
		return AxisY, nil
	case "z", "Z", "3":
		return AxisZ, nil
	}
	return AxisNone, fmt.Errorf("unknown axis %q", s)
}

// DominantAxis returns the component of v with the largest magnitude. Ties,
// including the zero vector, resolve to the earlier axis, so the result is
// always X, Y or Z.
func DominantAxis(v glove.Vector3) Axis {
	comps := v.Slice()
	best, bestMag := AxisX, math.Abs(comps[0])
	for i, c := range comps[1:] {
		if m := math.Abs(c); m > bestMag {
			best, bestMag = Axis(i+2), m
		}
	}
	return best
}

// HandFeature is the per-hand feature record shared by static readings,
// dynamic aggregates and stored exemplars.
type HandFeature struct {
	Roll  float64               `json:"roll"`
	Pitch float64               `json:"pitch"`
	Yaw   float64               `json:"yaw"`
	Flex  [glove.NumFingers]int `json:"flex"`

	MeanAccel   float64 `json:"mean_accel"`
	StdAccel    float64 `json:"std_accel"`
	MeanAngular float64 `json:"mean_angular"`
	StdAngular  float64 `json:"std_angular"`
	AccelAxis   Axis    `json:"accel_axis"`
	GyroAxis    Axis    `json:"gyro_axis"`
}

// StaticHandFeature builds the feature of a single reading. Motion statistics
// and axes are zero.
func StaticHandFeature(r glove.HandReading) HandFeature {
	return HandFeature{
		Roll:  r.Roll,
		Pitch: r.Pitch,
		Yaw:   r.Yaw,
		Flex:  r.Flex,
	}
}

// Vector returns the 14-dimensional layout:
// roll, pitch, yaw, five flex values, mean/std acceleration,
// mean/std angular velocity, accel axis, gyro axis.
func (h HandFeature) Vector() []float64 {
	v := make([]float64, 0, HandDims)
	return h.appendTo(v)
}

func (h HandFeature) appendTo(v []float64) []float64 {
	v = append(v, h.Roll, h.Pitch, h.Yaw)
	for _, f := range h.Flex {
		v = append(v, float64(f))
	}
	return append(v,
		h.MeanAccel, h.StdAccel,
		h.MeanAngular, h.StdAngular,
		float64(h.AccelAxis), float64(h.GyroAxis),
	)
}

// Features is an optional left/right pair of hand features.
type Features struct {
	Left  *HandFeature
	Right *HandFeature
}

// BothHands reports whether both hands are present.
func (f Features) BothHands() bool {
	return f.Left != nil && f.Right != nil
}

// Empty reports whether no hand is present.
func (f Features) Empty() bool {
	return f.Left == nil && f.Right == nil
}

// Hand returns the feature of one side, or nil.
func (f Features) Hand(side glove.Side) *HandFeature {
	if side == glove.Left {
		return f.Left
	}
	return f.Right
}

// Only keeps a single side.
func (f Features) Only(side glove.Side) Features {
	if side == glove.Left {
		return Features{Left: f.Left}
	}
	return Features{Right: f.Right}
}

// Vector returns the 28-dimensional vector when both hands are present and
// the 14-dimensional vector of the present hand otherwise.
func (f Features) Vector() []float64 {
	switch {
	case f.BothHands():
		return PairVector(f.Left, f.Right)
	case f.Left != nil:
		return f.Left.Vector()
	case f.Right != nil:
		return f.Right.Vector()
	}
	return nil
}

// PairVector concatenates left and right blocks. An absent hand is filled
// with NaN, which distance computations skip.
func PairVector(left, right *HandFeature) []float64 {
	v := make([]float64, 0, PairDims)
	for _, h := range []*HandFeature{left, right} {
		if h == nil {
			for i := 0; i < HandDims; i++ {
				v = append(v, math.NaN())
			}
			continue
		}
		v = h.appendTo(v)
	}
	return v
}

// StaticFeatures converts a sample to features.
func StaticFeatures(s glove.Sample) Features {
	var f Features
	if s.Left != nil {
		h := StaticHandFeature(*s.Left)
		f.Left = &h
	}
	if s.Right != nil {
		h := StaticHandFeature(*s.Right)
		f.Right = &h
	}
	return f
}
