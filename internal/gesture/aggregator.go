package gesture

import (
	"math"
	"sync"

	"gonum.org/v1/gonum/stat"

	"github.com/ayusman/signify/internal/glove"
)

// Window size limits.
const (
	DefaultWindow = 5
	MinWindow     = 2
	MaxWindow     = 20
)

// Aggregator buffers consecutive samples and reduces each full window to
// one dynamic feature. Windows do not overlap.
type Aggregator struct {
	mu     sync.Mutex
	window int
	buf    []glove.Sample
}

// NewAggregator creates an Aggregator. Out-of-range sizes use DefaultWindow.
func NewAggregator(window int) *Aggregator {
	if window < MinWindow || window > MaxWindow {
		window = DefaultWindow
	}
	return &Aggregator{window: window, buf: make([]glove.Sample, 0, window)}
}

// Window returns the window size.
func (a *Aggregator) Window() int {
	return a.window
}

// Len returns the number of buffered samples.
func (a *Aggregator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.buf)
}

// Add appends s. When the window fills it returns the aggregate and clears
// the buffer.
func (a *Aggregator) Add(s glove.Sample) (Features, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.buf = append(a.buf, s)
	if len(a.buf) < a.window {
		return Features{}, false
	}

	f := Aggregate(a.buf)
	a.buf = a.buf[:0]
	return f, !f.Empty()
}

// Reset drops buffered samples.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.buf = a.buf[:0]
}

// Aggregate reduces samples to per-hand dynamic features. A hand is present
// in the result if it is present in any sample.
func Aggregate(samples []glove.Sample) Features {
	var f Features
	for _, side := range []glove.Side{glove.Left, glove.Right} {
		var readings []glove.HandReading
		for _, s := range samples {
			if r := s.Hand(side); r != nil {
				readings = append(readings, *r)
			}
		}
		if len(readings) == 0 {
			continue
		}
		h := aggregateHand(readings)
		if side == glove.Left {
			f.Left = &h
		} else {
			f.Right = &h
		}
	}
	return f
}

func aggregateHand(readings []glove.HandReading) HandFeature {
	n := len(readings)
	rolls := make([]float64, n)
	pitches := make([]float64, n)
	yaws := make([]float64, n)
	accelNorms := make([]float64, n)
	gyroNorms := make([]float64, n)
	var flex [glove.NumFingers][]float64
	var gyroSum, accelSum glove.Vector3

	for i, r := range readings {
		rolls[i], pitches[i], yaws[i] = r.Roll, r.Pitch, r.Yaw
		for j, v := range r.Flex {
			flex[j] = append(flex[j], float64(v))
		}
		accelNorms[i] = r.Accel.Norm()
		gyroNorms[i] = r.Gyro.Norm()
		gyroSum = add(gyroSum, r.Gyro)
		accelSum = add(accelSum, r.Accel)
	}

	h := HandFeature{
		Roll:      stat.Mean(rolls, nil),
		Pitch:     stat.Mean(pitches, nil),
		Yaw:       stat.Mean(yaws, nil),
		GyroAxis:  DominantAxis(scale(gyroSum, 1/float64(n))),
		AccelAxis: DominantAxis(scale(accelSum, 1/float64(n))),
	}
	for j := range flex {
		h.Flex[j] = int(math.Round(stat.Mean(flex[j], nil)))
	}
	h.MeanAccel, h.StdAccel = stat.PopMeanStdDev(accelNorms, nil)
	h.MeanAngular, h.StdAngular = stat.PopMeanStdDev(gyroNorms, nil)
	return h
}

func add(a, b glove.Vector3) glove.Vector3 {
	return glove.Vector3{X: a.X + b.X, Y: a.Y + b.Y, Z: a.Z + b.Z}
}

func scale(v glove.Vector3, k float64) glove.Vector3 {
	return glove.Vector3{X: v.X * k, Y: v.Y * k, Z: v.Z * k}
}
