// Package app provides the main application logic for the Signify glove
// interpreter.
package app

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ayusman/signify/internal/calibration"
	"github.com/ayusman/signify/internal/capture"
	"github.com/ayusman/signify/internal/gesture"
	"github.com/ayusman/signify/internal/glove"
	"github.com/ayusman/signify/internal/log"
	"github.com/ayusman/signify/internal/speech"
	"github.com/ayusman/signify/internal/store"
)

// Config holds configuration options for the application.
type Config struct {
	Store *store.Store
	Left  capture.Port
	Right capture.Port

	QueueSize   int
	SettleDelay time.Duration
	ResetDelay  time.Duration

	CalibrationThreshold int
	CalibrationResample  time.Duration

	Bounds   gesture.Bounds
	Window   int
	Cooldown time.Duration
	// Dominant is the hand used for single-hand fallback. Nil disables it.
	Dominant *glove.Side

	Announcer speech.Announcer
}

// App is the orchestrator: it runs acquisition, gates on calibration,
// classifies frames and dispatches recognized gestures.
type App struct {
	config     Config
	queue      *capture.Queue
	reader     *capture.Reader
	gate       *calibration.Gate
	aggregator *gesture.Aggregator
	dispatcher *Dispatcher
	classifier atomic.Pointer[gesture.Classifier]
	sinks      *fanout

	enabled   atomic.Bool
	running   atomic.Bool
	processed atomic.Uint64
	mu        sync.Mutex
}

// New creates a new App instance with the given configuration.
func New(config Config) *App {
	if config.Announcer == nil {
		config.Announcer = speech.NewLogAnnouncer()
	}
	if config.Bounds == (gesture.Bounds{}) {
		config.Bounds = gesture.DefaultBounds()
	}
	if config.Cooldown == 0 {
		config.Cooldown = DefaultCooldown
	}

	a := &App{
		config: config,
		queue:  capture.NewQueue(config.QueueSize),
		sinks:  &fanout{},
	}

	a.reader = capture.NewReader(capture.ReaderConfig{
		Left:        config.Left,
		Right:       config.Right,
		Queue:       a.queue,
		SettleDelay: config.SettleDelay,
		ResetDelay:  config.ResetDelay,
	})
	a.gate = calibration.NewGate(a.queue, calibration.Config{
		Threshold:  config.CalibrationThreshold,
		Resample:   config.CalibrationResample,
		OnProgress: a.publishProgress,
	})
	a.aggregator = gesture.NewAggregator(config.Window)
	a.dispatcher = NewDispatcher(config.Cooldown, config.Announcer, a.sinks)
	a.setLibrary(gesture.EmptyLibrary())
	a.enabled.Store(true)

	return a
}

// SetEnabled pauses or resumes classification. Frames are still drained
// while paused.
func (a *App) SetEnabled(enabled bool) {
	if a.enabled.Swap(enabled) == enabled {
		return
	}
	if !enabled {
		a.aggregator.Reset()
	}
	log.Infow("Classification toggled", "enabled", enabled)

	e := newEvent(EventEnabled, time.Now())
	e.Enabled = &enabled
	a.sinks.Publish(e)
}

// IsEnabled returns whether classification is currently enabled.
func (a *App) IsEnabled() bool {
	return a.enabled.Load()
}

// AddSink registers a receiver for gesture and calibration events.
func (a *App) AddSink(s Sink) {
	a.sinks.add(s)
}

// LoadGestures loads the exemplar store into a new library and swaps it in.
// It returns the number of exemplars loaded.
func (a *App) LoadGestures() (int, error) {
	if a.config.Store == nil {
		return 0, errors.New("no gesture store configured")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	gestures, err := a.config.Store.Gestures().List()
	if err != nil {
		return 0, err
	}

	exemplars := make([]gesture.Exemplar, 0, len(gestures))
	for _, g := range gestures {
		exemplars = append(exemplars, storeGestureToExemplar(g))
	}

	lib, err := gesture.NewLibrary(exemplars)
	if err != nil {
		return 0, err
	}
	a.setLibrary(lib)

	log.Infow("Loaded gestures from database", "total", lib.Len(), "single_hand", lib.Single.Len(), "both_hands", lib.Both.Len())
	return lib.Len(), nil
}

// ReloadIndex rebuilds the indices from the store. Classification in
// progress keeps using the previous indices until it finishes.
func (a *App) ReloadIndex() (int, error) {
	return a.LoadGestures()
}

// SetLibrary replaces the exemplar library directly.
func (a *App) SetLibrary(lib *gesture.Library) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.setLibrary(lib)
}

func (a *App) setLibrary(lib *gesture.Library) {
	a.classifier.Store(gesture.NewClassifier(lib, gesture.ClassifierConfig{
		Bounds:   a.config.Bounds,
		Dominant: a.config.Dominant,
	}))
}

// Classifier returns the active classifier.
func (a *App) Classifier() *gesture.Classifier {
	return a.classifier.Load()
}

// Queue returns the frame queue.
func (a *App) Queue() *capture.Queue {
	return a.queue
}

// Gate returns the calibration gate.
func (a *App) Gate() *calibration.Gate {
	return a.gate
}

// Dispatcher returns the gesture dispatcher.
func (a *App) Dispatcher() *Dispatcher {
	return a.dispatcher
}

func (a *App) publishProgress(p calibration.Progress) {
	e := newEvent(EventCalibration, time.Now())
	e.Calibration = &p
	a.sinks.Publish(e)
}

// storeGestureToExemplar converts a stored gesture to an exemplar.
func storeGestureToExemplar(g *store.Gesture) gesture.Exemplar {
	e := gesture.Exemplar{
		ID:   g.ID,
		Name: g.Name,
		Kind: gesture.Kind(g.Kind),
	}
	if g.Left != nil {
		h := storeHandToFeature(g.Left)
		e.Hands.Left = &h
	}
	if g.Right != nil {
		h := storeHandToFeature(g.Right)
		e.Hands.Right = &h
	}
	return e
}

// storeHandToFeature converts a stored hand row to a hand feature.
func storeHandToFeature(h *store.Hand) gesture.HandFeature {
	return gesture.HandFeature{
		Roll:        h.Roll,
		Pitch:       h.Pitch,
		Yaw:         h.Yaw,
		Flex:        h.Fingers,
		MeanAccel:   h.MeanAcceleration,
		StdAccel:    h.StdAcceleration,
		MeanAngular: h.MeanAngularVelocity,
		StdAngular:  h.StdAngularVelocity,
		AccelAxis:   gesture.Axis(h.AccelAxis),
		GyroAxis:    gesture.Axis(h.GyroAxis),
	}
}
