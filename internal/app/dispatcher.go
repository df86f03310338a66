package app

import (
	"sync"
	"time"

	"github.com/ayusman/signify/internal/gesture"
	"github.com/ayusman/signify/internal/log"
	"github.com/ayusman/signify/internal/speech"
)

// DefaultCooldown suppresses repeats of the same gesture.
const DefaultCooldown = 2 * time.Second

// Dispatch records one announced gesture.
type Dispatch struct {
	Name string    `json:"name"`
	At   time.Time `json:"at"`
}

// Dispatcher announces recognized gestures, suppressing a gesture that
// repeats the previous dispatch within the cooldown.
type Dispatcher struct {
	cooldown  time.Duration
	announcer speech.Announcer
	sink      Sink
	now       func() time.Time

	mu         sync.Mutex
	last       *Dispatch
	dispatched uint64
	suppressed uint64
}

// NewDispatcher creates a Dispatcher. sink may be nil.
func NewDispatcher(cooldown time.Duration, announcer speech.Announcer, sink Sink) *Dispatcher {
	if cooldown < 0 {
		cooldown = 0
	}
	return &Dispatcher{
		cooldown:  cooldown,
		announcer: announcer,
		sink:      sink,
		now:       time.Now,
	}
}

// Dispatch announces r unless it repeats the last dispatch within the
// cooldown. It reports whether r was announced.
func (d *Dispatcher) Dispatch(r gesture.Result) bool {
	now := d.now()

	d.mu.Lock()
	if d.last != nil && d.last.Name == r.Name && now.Sub(d.last.At) < d.cooldown {
		d.suppressed++
		d.mu.Unlock()
		log.Debugw("Gesture suppressed by cooldown", "gesture", r.Name)
		return false
	}
	d.last = &Dispatch{Name: r.Name, At: now}
	d.dispatched++
	d.mu.Unlock()

	log.Infow("Gesture recognized", "gesture", r.Name, "kind", r.Kind, "distance", r.Distance, "heuristic", r.Heuristic)

	if d.announcer != nil {
		d.announcer.Announce(r.Name, r.Name)
	}
	if d.sink != nil {
		e := newEvent(EventGesture, now)
		e.Gesture = &r
		d.sink.Publish(e)
	}
	return true
}

// Last returns the most recent dispatch, or nil.
func (d *Dispatcher) Last() *Dispatch {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.last == nil {
		return nil
	}
	last := *d.last
	return &last
}

// Counts returns the dispatched and suppressed totals.
func (d *Dispatcher) Counts() (dispatched, suppressed uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dispatched, d.suppressed
}
