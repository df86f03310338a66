package glove

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Wire format delimiters.
const (
	SegmentDelimiter = "*"
	ValueDelimiter   = ","
)

// Segment positions and cardinalities of the wire format:
// *roll,pitch,yaw*gx,gy,gz*ax,ay,az*f1,f2,f3,f4,f5*sys,gyro,accel,mag*
const (
	segEuler = iota
	segGyro
	segAccel
	segFlex
	segCalibration
	numSegments
)

var segmentSizes = [numSegments]int{3, 3, 3, NumFingers, 4}

// ErrInvalidFrame is returned for any line that does not match the wire format.
var ErrInvalidFrame = errors.New("invalid frame")

// ParseFrame decodes one serial line into a HandReading.
// It never panics; any malformed input yields an error wrapping ErrInvalidFrame.
func ParseFrame(line string) (HandReading, error) {
	segments := splitSegments(line)
	if len(segments) != numSegments {
		return HandReading{}, fmt.Errorf("%w: got %d segments, want %d", ErrInvalidFrame, len(segments), numSegments)
	}

	var r HandReading

	euler, err := parseFloats(segments[segEuler], segmentSizes[segEuler])
	if err != nil {
		return HandReading{}, fmt.Errorf("%w: euler: %v", ErrInvalidFrame, err)
	}
	r.Roll, r.Pitch, r.Yaw = euler[0], euler[1], euler[2]

	gyro, err := parseFloats(segments[segGyro], segmentSizes[segGyro])
	if err != nil {
		return HandReading{}, fmt.Errorf("%w: gyro: %v", ErrInvalidFrame, err)
	}
	r.Gyro = Vector3{X: gyro[0], Y: gyro[1], Z: gyro[2]}

	accel, err := parseFloats(segments[segAccel], segmentSizes[segAccel])
	if err != nil {
		return HandReading{}, fmt.Errorf("%w: accel: %v", ErrInvalidFrame, err)
	}
	r.Accel = Vector3{X: accel[0], Y: accel[1], Z: accel[2]}

	flex, err := parseInts(segments[segFlex], segmentSizes[segFlex])
	if err != nil {
		return HandReading{}, fmt.Errorf("%w: flex: %v", ErrInvalidFrame, err)
	}
	copy(r.Flex[:], flex)

	cal, err := parseInts(segments[segCalibration], segmentSizes[segCalibration])
	if err != nil {
		return HandReading{}, fmt.Errorf("%w: calibration: %v", ErrInvalidFrame, err)
	}
	for _, c := range cal {
		if c < MinCalibration || c > MaxCalibration {
			return HandReading{}, fmt.Errorf("%w: calibration score %d out of range", ErrInvalidFrame, c)
		}
	}
	r.Calibration = Calibration{System: cal[0], Gyro: cal[1], Accel: cal[2], Mag: cal[3]}

	return r, nil
}

// FormatFrame encodes a HandReading in the wire format.
func FormatFrame(r HandReading) string {
	var b strings.Builder
	b.WriteString(SegmentDelimiter)
	writeFloats(&b, r.Roll, r.Pitch, r.Yaw)
	writeFloats(&b, r.Gyro.X, r.Gyro.Y, r.Gyro.Z)
	writeFloats(&b, r.Accel.X, r.Accel.Y, r.Accel.Z)
	writeInts(&b, r.Flex[:]...)
	writeInts(&b, r.Calibration.System, r.Calibration.Gyro, r.Calibration.Accel, r.Calibration.Mag)
	return b.String()
}

// splitSegments strips the framing delimiters and drops empty segments.
func splitSegments(line string) []string {
	line = strings.TrimSpace(line)
	line = strings.Trim(line, SegmentDelimiter)
	if line == "" {
		return nil
	}

	var segments []string
	for _, part := range strings.Split(line, SegmentDelimiter) {
		if part != "" {
			segments = append(segments, part)
		}
	}
	return segments
}

func splitValues(segment string, want int) ([]string, error) {
	values := strings.Split(segment, ValueDelimiter)
	if len(values) != want {
		return nil, fmt.Errorf("got %d values, want %d", len(values), want)
	}
	for i := range values {
		values[i] = strings.TrimSpace(values[i])
	}
	return values, nil
}

func parseFloats(segment string, want int) ([]float64, error) {
	values, err := splitValues(segment, want)
	if err != nil {
		return nil, err
	}

	out := make([]float64, want)
	for i, v := range values {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, err
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("non-finite value %q", v)
		}
		out[i] = f
	}
	return out, nil
}

func parseInts(segment string, want int) ([]int, error) {
	values, err := splitValues(segment, want)
	if err != nil {
		return nil, err
	}

	out := make([]int, want)
	for i, v := range values {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}

func writeFloats(b *strings.Builder, values ...float64) {
	for i, v := range values {
		if i > 0 {
			b.WriteString(ValueDelimiter)
		}
		b.WriteString(strconv.FormatFloat(v, 'f', -1, 64))
	}
	b.WriteString(SegmentDelimiter)
}

func writeInts(b *strings.Builder, values ...int) {
	for i, v := range values {
		if i > 0 {
			b.WriteString(ValueDelimiter)
		}
		b.WriteString(strconv.Itoa(v))
	}
	b.WriteString(SegmentDelimiter)
}
