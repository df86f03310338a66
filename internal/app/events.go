package app

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ayusman/signify/internal/calibration"
	"github.com/ayusman/signify/internal/gesture"
)

// EventType identifies what an Event reports.
type EventType string

const (
	// EventGesture reports a dispatched gesture.
	EventGesture EventType = "gesture"
	// EventCalibration reports calibration progress.
	EventCalibration EventType = "calibration"
	// EventEnabled reports a pause or resume.
	EventEnabled EventType = "enabled"
)

// Event is delivered to every registered Sink.
type Event struct {
	ID          string                `json:"id"`
	Type        EventType             `json:"type"`
	Time        time.Time             `json:"time"`
	Gesture     *gesture.Result       `json:"gesture,omitempty"`
	Calibration *calibration.Progress `json:"calibration,omitempty"`
	Enabled     *bool                 `json:"enabled,omitempty"`
}

func newEvent(t EventType, at time.Time) Event {
	return Event{ID: uuid.New().String(), Type: t, Time: at}
}

// Sink receives events. Publish must not block.
type Sink interface {
	Publish(Event)
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(Event)

// Publish calls f(e).
func (f SinkFunc) Publish(e Event) { f(e) }

// fanout delivers events to a changing set of sinks.
type fanout struct {
	mu    sync.RWMutex
	sinks []Sink
}

func (f *fanout) add(s Sink) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sinks = append(f.sinks, s)
}

func (f *fanout) Publish(e Event) {
	f.mu.RLock()
	sinks := f.sinks
	f.mu.RUnlock()

	for _, s := range sinks {
		s.Publish(e)
	}
}
