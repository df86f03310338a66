package app

import (
	"github.com/ayusman/signify/internal/calibration"
	"github.com/ayusman/signify/internal/capture"
	"github.com/ayusman/signify/internal/glove"
)

// Status is a snapshot of the pipeline.
type Status struct {
	Running     bool                `json:"running"`
	Enabled     bool                `json:"enabled"`
	Calibration calibration.State   `json:"calibration"`
	Left        glove.Calibration   `json:"left"`
	Right       glove.Calibration   `json:"right"`
	Threshold   int                 `json:"threshold"`
	Queue       capture.QueueStats  `json:"queue"`
	Reader      capture.ReaderStats `json:"reader"`
	Exemplars   ExemplarCounts      `json:"exemplars"`
	Processed   uint64              `json:"processed"`
	Dispatched  uint64              `json:"dispatched"`
	Suppressed  uint64              `json:"suppressed"`
	LastGesture *Dispatch           `json:"last_gesture,omitempty"`
}

// ExemplarCounts reports the indexed exemplars.
type ExemplarCounts struct {
	Total      int `json:"total"`
	SingleHand int `json:"single_hand"`
	BothHands  int `json:"both_hands"`
}

// Status returns a snapshot of the pipeline state.
func (a *App) Status() Status {
	left, right := a.gate.Last()
	dispatched, suppressed := a.dispatcher.Counts()
	lib := a.Classifier().Library()

	return Status{
		Running:     a.IsRunning(),
		Enabled:     a.IsEnabled(),
		Calibration: a.gate.State(),
		Left:        left,
		Right:       right,
		Threshold:   a.gate.Threshold(),
		Queue:       a.queue.Stats(),
		Reader:      a.reader.Stats(),
		Exemplars: ExemplarCounts{
			Total:      lib.Len(),
			SingleHand: lib.Single.Len(),
			BothHands:  lib.Both.Len(),
		},
		Processed:   a.processed.Load(),
		Dispatched:  dispatched,
		Suppressed:  suppressed,
		LastGesture: a.dispatcher.Last(),
	}
}
