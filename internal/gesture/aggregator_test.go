package gesture

import (
	"math"
	"testing"

	"github.com/ayusman/signify/internal/glove"
)

func sampleWith(r glove.HandReading) glove.Sample {
	left, right := r, r
	return glove.Sample{Left: &left, Right: &right}
}

func TestAggregator_EmitsOnFullWindow(t *testing.T) {
	a := NewAggregator(3)

	for i := 0; i < 2; i++ {
		if _, ok := a.Add(sampleWith(glove.HandReading{})); ok {
			t.Fatalf("Add() #%d emitted before window filled", i)
		}
	}
	if a.Len() != 2 {
		t.Errorf("Len() = %d, want 2", a.Len())
	}

	f, ok := a.Add(sampleWith(glove.HandReading{}))
	if !ok {
		t.Fatal("Add() did not emit on full window")
	}
	if !f.BothHands() {
		t.Error("aggregate should have both hands")
	}
	if a.Len() != 0 {
		t.Errorf("Len() after emit = %d, want 0", a.Len())
	}
}

func TestAggregator_WindowBounds(t *testing.T) {
	tests := []struct{ in, want int }{
		{0, DefaultWindow},
		{1, DefaultWindow},
		{2, 2},
		{20, 20},
		{21, DefaultWindow},
	}
	for _, tt := range tests {
		if got := NewAggregator(tt.in).Window(); got != tt.want {
			t.Errorf("NewAggregator(%d).Window() = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestAggregator_Reset(t *testing.T) {
	a := NewAggregator(2)
	a.Add(sampleWith(glove.HandReading{}))
	a.Reset()
	if _, ok := a.Add(sampleWith(glove.HandReading{})); ok {
		t.Error("Add() after Reset emitted on first sample")
	}
}

func TestAggregate_Statistics(t *testing.T) {
	readings := []glove.HandReading{
		{Roll: 10, Pitch: 0, Yaw: 5, Flex: [glove.NumFingers]int{1, 2, 3, 4, 5}, Accel: glove.Vector3{X: 3, Y: 4}, Gyro: glove.Vector3{Z: -1}},
		{Roll: 20, Pitch: 2, Yaw: 5, Flex: [glove.NumFingers]int{2, 2, 3, 4, 6}, Accel: glove.Vector3{X: 6, Y: 8}, Gyro: glove.Vector3{Z: -3}},
	}

	var samples []glove.Sample
	for i := range readings {
		samples = append(samples, glove.Sample{Right: &readings[i]})
	}

	f := Aggregate(samples)
	if f.Left != nil || f.Right == nil {
		t.Fatalf("Aggregate() hands = %+v", f)
	}
	h := *f.Right

	if h.Roll != 15 || h.Pitch != 1 || h.Yaw != 5 {
		t.Errorf("euler = (%v, %v, %v), want (15, 1, 5)", h.Roll, h.Pitch, h.Yaw)
	}
	// 1.5 and 5.5 round away from zero
	wantFlex := [glove.NumFingers]int{2, 2, 3, 4, 6}
	if h.Flex != wantFlex {
		t.Errorf("flex = %v, want %v", h.Flex, wantFlex)
	}

	// accel norms 5 and 10
	if math.Abs(h.MeanAccel-7.5) > 1e-9 || math.Abs(h.StdAccel-2.5) > 1e-9 {
		t.Errorf("accel stats = %v/%v, want 7.5/2.5", h.MeanAccel, h.StdAccel)
	}
	// gyro norms 1 and 3
	if math.Abs(h.MeanAngular-2) > 1e-9 || math.Abs(h.StdAngular-1) > 1e-9 {
		t.Errorf("angular stats = %v/%v, want 2/1", h.MeanAngular, h.StdAngular)
	}

	if h.AccelAxis != AxisY {
		t.Errorf("AccelAxis = %v, want y", h.AccelAxis)
	}
	if h.GyroAxis != AxisZ {
		t.Errorf("GyroAxis = %v, want z", h.GyroAxis)
	}
}

func TestAggregate_StillWindowHasValidAxes(t *testing.T) {
	f := Aggregate([]glove.Sample{
		sampleWith(glove.HandReading{Roll: 10}),
		sampleWith(glove.HandReading{Roll: 12}),
	})

	for _, h := range []*HandFeature{f.Left, f.Right} {
		if h.AccelAxis != AxisX || h.GyroAxis != AxisX {
			t.Errorf("axes = %v/%v, want x/x for a window without motion", h.AccelAxis, h.GyroAxis)
		}
		if h.MeanAccel != 0 || h.StdAngular != 0 {
			t.Errorf("motion stats = %+v, want zero", h)
		}
	}
}
