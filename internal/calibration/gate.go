// Package calibration holds classification back until both gloves report
// trustworthy orientation fusion.
package calibration

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ayusman/signify/internal/glove"
	"github.com/ayusman/signify/internal/log"
)

// Defaults for the gate.
const (
	DefaultThreshold = 2
	DefaultResample  = time.Second
)

// State is the calibration state machine position.
type State int

const (
	NotCalibrated State = iota
	CalibratingLeft
	CalibratingRight
	Calibrated
)

// String returns the state name used in logs and JSON.
func (s State) String() string {
	switch s {
	case NotCalibrated:
		return "not_calibrated"
	case CalibratingLeft:
		return "calibrating_left"
	case CalibratingRight:
		return "calibrating_right"
	case Calibrated:
		return "calibrated"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MarshalText lets State appear by name in JSON payloads.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name produced by MarshalText.
func (s *State) UnmarshalText(text []byte) error {
	for _, st := range []State{NotCalibrated, CalibratingLeft, CalibratingRight, Calibrated} {
		if st.String() == string(text) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown calibration state %q", text)
}

// Source supplies fresh frames to the gate.
type Source interface {
	Next(ctx context.Context) (glove.Frame, error)
	Clear() int
}

// Progress is one calibration report for the glove being calibrated.
type Progress struct {
	State       State             `json:"state"`
	Side        glove.Side        `json:"-"`
	Hand        string            `json:"hand"`
	Calibration glove.Calibration `json:"calibration"`
	Threshold   int               `json:"threshold"`
	Hint        string            `json:"hint"`
}

// Config configures a Gate.
type Config struct {
	// Threshold is the minimum accepted value for every sub-score, 1 to 3.
	Threshold int
	// Resample is the wait between calibration reads.
	Resample time.Duration
	// OnProgress receives every calibration report. Optional.
	OnProgress func(Progress)
}

// Gate drives the calibration state machine.
type Gate struct {
	source     Source
	threshold  int
	resample   time.Duration
	onProgress func(Progress)

	mu    sync.RWMutex
	state State
	last  [2]glove.Calibration
}

// NewGate creates a Gate reading from source.
func NewGate(source Source, cfg Config) *Gate {
	if cfg.Threshold < glove.MinCalibration+1 || cfg.Threshold > glove.MaxCalibration {
		cfg.Threshold = DefaultThreshold
	}
	if cfg.Resample < 0 {
		cfg.Resample = 0
	}
	return &Gate{
		source:     source,
		threshold:  cfg.Threshold,
		resample:   cfg.Resample,
		onProgress: cfg.OnProgress,
	}
}

// Threshold returns the sub-score threshold.
func (g *Gate) Threshold() int {
	return g.threshold
}

// State returns the current state.
func (g *Gate) State() State {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.state
}

// Last returns the most recent calibration vectors seen for left and right.
func (g *Gate) Last() (left, right glove.Calibration) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.last[glove.Left], g.last[glove.Right]
}

// NeedsCalibration reports whether any sub-score of either glove in f is
// below threshold. Calling it records f's calibration and drops the state
// back to NotCalibrated when the gloves have degraded.
func (g *Gate) NeedsCalibration(f glove.Frame) bool {
	needs := !f.Left.Calibration.Meets(g.threshold) || !f.Right.Calibration.Meets(g.threshold)

	g.mu.Lock()
	defer g.mu.Unlock()
	g.last[glove.Left] = f.Left.Calibration
	g.last[glove.Right] = f.Right.Calibration
	if needs {
		if g.state == Calibrated {
			g.state = NotCalibrated
		}
	} else {
		g.state = Calibrated
	}
	return needs
}

// Calibrate runs the state machine starting from frame f until both gloves
// meet the threshold. It returns ctx.Err() if ctx is cancelled mid-wait.
func (g *Gate) Calibrate(ctx context.Context, f glove.Frame) error {
	log.Infof("Calibration required (left %s, right %s)", f.Left.Calibration, f.Right.Calibration)

	current := f
	for _, side := range []glove.Side{glove.Left, glove.Right} {
		state := CalibratingLeft
		if side == glove.Right {
			state = CalibratingRight
		}
		g.setState(state)

		for {
			cal := handOf(current, side).Calibration
			g.record(current)
			g.report(state, side, cal)

			if cal.Meets(g.threshold) {
				log.Infof("%s glove calibrated: %s", side, cal)
				break
			}

			next, err := g.resampleFrame(ctx)
			if err != nil {
				g.setState(NotCalibrated)
				return err
			}
			current = next
		}
	}

	g.setState(Calibrated)
	log.Info("Both gloves calibrated")
	return nil
}

// resampleFrame discards the backlog, waits, and returns the next frame.
func (g *Gate) resampleFrame(ctx context.Context) (glove.Frame, error) {
	g.source.Clear()

	if g.resample > 0 {
		t := time.NewTimer(g.resample)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return glove.Frame{}, ctx.Err()
		}
	}

	return g.source.Next(ctx)
}

func (g *Gate) report(state State, side glove.Side, cal glove.Calibration) {
	p := Progress{
		State:       state,
		Side:        side,
		Hand:        side.String(),
		Calibration: cal,
		Threshold:   g.threshold,
		Hint:        Hint(cal, g.threshold),
	}
	log.Infow("Calibrating", "hand", p.Hand, "scores", cal.String(), "hint", p.Hint)
	if g.onProgress != nil {
		g.onProgress(p)
	}
}

func (g *Gate) setState(s State) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.state = s
}

func (g *Gate) record(f glove.Frame) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.last[glove.Left] = f.Left.Calibration
	g.last[glove.Right] = f.Right.Calibration
}

func handOf(f glove.Frame, side glove.Side) glove.HandReading {
	if side == glove.Left {
		return f.Left
	}
	return f.Right
}

// Hint returns operator guidance for the first sub-sensor still below
// threshold, or an empty string when all four meet it.
func Hint(cal glove.Calibration, threshold int) string {
	switch {
	case cal.Gyro < threshold:
		return "Gyroscope: place the glove on a flat surface and keep it still."
	case cal.Mag < threshold:
		return "Magnetometer: move the glove slowly through different orientations, rotating around all three axes."
	case cal.Accel < threshold:
		return "Accelerometer: move the glove slowly in a figure-eight motion."
	case cal.System < threshold:
		return "System: keep moving the glove slowly until sensor fusion settles."
	default:
		return ""
	}
}
