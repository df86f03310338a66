// Package speech delivers recognized gesture text to a speech synthesizer.
package speech

import (
	"github.com/ayusman/signify/internal/log"
)

// Announcer speaks text. Announce never waits for playback.
type Announcer interface {
	Announce(gesture, text string)
	Close() error
}

// Request is written to the speech command's stdin as JSON.
type Request struct {
	Action  string `json:"action"`
	Gesture string `json:"gesture"`
	Text    string `json:"text"`
}

// Response is read from the speech command's stdout.
type Response struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// ActionAnnounce is the only request action.
const ActionAnnounce = "announce"

// LogAnnouncer logs announcements instead of speaking them.
type LogAnnouncer struct{}

// NewLogAnnouncer creates a LogAnnouncer.
func NewLogAnnouncer() *LogAnnouncer {
	return &LogAnnouncer{}
}

// Announce logs the gesture and its text.
func (LogAnnouncer) Announce(gesture, text string) {
	log.Infow("Announce", "gesture", gesture, "text", text)
}

// Close is a no-op.
func (LogAnnouncer) Close() error { return nil }
