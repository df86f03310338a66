// Package tray provides a system tray front end for the Signify glove
// interpreter.
package tray

import (
	"sync"

	"github.com/getlantern/systray"

	"github.com/ayusman/signify/internal/app"
	"github.com/ayusman/signify/internal/calibration"
)

// Tray represents the system tray application. It is an app.Sink.
type Tray struct {
	onToggle    func(enabled bool)
	onQuit      func()
	enabled     bool
	lastGesture string
	calibration calibration.State
	mu          sync.RWMutex

	// Menu items stored for later updates
	menuToggle      *systray.MenuItem
	menuLastGesture *systray.MenuItem
	menuCalibration *systray.MenuItem
}

// New creates a new Tray instance with enabled state set to true by default.
func New() *Tray {
	return &Tray{
		enabled: true,
	}
}

// OnToggle sets the callback function to be called when the enabled state is toggled.
func (t *Tray) OnToggle(fn func(enabled bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onToggle = fn
}

// OnQuit sets the callback function to be called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until Quit is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit closes the tray, unblocking Run.
func (t *Tray) Quit() {
	systray.Quit()
}

// onReady sets up the menu structure.
func (t *Tray) onReady() {
	systray.SetTitle("Signify")
	systray.SetTooltip("Signify glove interpreter")

	t.mu.Lock()
	t.menuToggle = systray.AddMenuItem(toggleTitle(t.enabled), "Pause or resume recognition")
	systray.AddSeparator()

	t.menuLastGesture = systray.AddMenuItem(lastGestureTitle(t.lastGesture), "Last recognized gesture")
	t.menuLastGesture.Disable()
	t.menuCalibration = systray.AddMenuItem(calibrationTitle(t.calibration), "Glove calibration")
	t.menuCalibration.Disable()
	systray.AddSeparator()
	t.mu.Unlock()

	menuQuit := systray.AddMenuItem("Quit", "Quit Signify")

	go func() {
		for {
			select {
			case <-t.menuToggle.ClickedCh:
				t.handleToggle()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

func (t *Tray) onExit() {}

// handleToggle handles the toggle menu item click.
func (t *Tray) handleToggle() {
	t.mu.Lock()
	t.enabled = !t.enabled
	enabled := t.enabled
	if t.menuToggle != nil {
		t.menuToggle.SetTitle(toggleTitle(enabled))
	}
	callback := t.onToggle
	t.mu.Unlock()

	// Call the callback outside the lock to prevent deadlocks
	if callback != nil {
		callback(enabled)
	}
}

// handleQuit handles the quit menu item click.
func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}

	systray.Quit()
}

// Publish updates the menu from pipeline events.
func (t *Tray) Publish(e app.Event) {
	switch e.Type {
	case app.EventGesture:
		if e.Gesture != nil {
			t.SetLastGesture(e.Gesture.Name)
		}
	case app.EventCalibration:
		if e.Calibration != nil {
			t.SetCalibration(e.Calibration.State)
		}
	case app.EventEnabled:
		if e.Enabled != nil {
			t.setEnabled(*e.Enabled)
		}
	}
}

// SetLastGesture updates the last gesture display in the menu.
func (t *Tray) SetLastGesture(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.lastGesture = name
	if t.menuLastGesture != nil {
		t.menuLastGesture.SetTitle(lastGestureTitle(name))
	}
}

// SetCalibration updates the calibration display in the menu.
func (t *Tray) SetCalibration(s calibration.State) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.calibration = s
	if t.menuCalibration != nil {
		t.menuCalibration.SetTitle(calibrationTitle(s))
	}
}

// setEnabled mirrors a state change made elsewhere without firing OnToggle.
func (t *Tray) setEnabled(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.enabled = enabled
	if t.menuToggle != nil {
		t.menuToggle.SetTitle(toggleTitle(enabled))
	}
}

// IsEnabled returns the current enabled state.
func (t *Tray) IsEnabled() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.enabled
}

// LastGesture returns the last displayed gesture name.
func (t *Tray) LastGesture() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.lastGesture
}

// Calibration returns the displayed calibration state.
func (t *Tray) Calibration() calibration.State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.calibration
}

func toggleTitle(enabled bool) string {
	if enabled {
		return "● Enabled"
	}
	return "○ Paused"
}

func lastGestureTitle(name string) string {
	if name == "" {
		return "Last: none"
	}
	return "Last: " + name
}

func calibrationTitle(s calibration.State) string {
	switch s {
	case calibration.Calibrated:
		return "Gloves calibrated"
	case calibration.CalibratingLeft:
		return "Calibrating left glove..."
	case calibration.CalibratingRight:
		return "Calibrating right glove..."
	default:
		return "Gloves not calibrated"
	}
}
