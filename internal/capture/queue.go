package capture

import (
	"context"
	"sync/atomic"

	"github.com/ayusman/signify/internal/glove"
)

// DefaultQueueSize is the frame queue capacity.
const DefaultQueueSize = 50

// QueueStats reports queue counters.
type QueueStats struct {
	Pushed  uint64 `json:"pushed"`
	Dropped uint64 `json:"dropped"`
	Cleared uint64 `json:"cleared"`
	Len     int    `json:"len"`
	Cap     int    `json:"cap"`
}

// Queue is a bounded FIFO of validated frames shared by the acquisition
// loop and the orchestrator. Pushing to a full queue drops the frame.
type Queue struct {
	ch      chan glove.Frame
	pushed  atomic.Uint64
	dropped atomic.Uint64
	cleared atomic.Uint64
}

// NewQueue creates a queue holding at most size frames.
func NewQueue(size int) *Queue {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Queue{ch: make(chan glove.Frame, size)}
}

// TryPush enqueues f without blocking. It returns false if the queue was full.
func (q *Queue) TryPush(f glove.Frame) bool {
	select {
	case q.ch <- f:
		q.pushed.Add(1)
		return true
	default:
		q.dropped.Add(1)
		return false
	}
}

// Next blocks until a frame is available or ctx is done.
func (q *Queue) Next(ctx context.Context) (glove.Frame, error) {
	select {
	case f := <-q.ch:
		return f, nil
	case <-ctx.Done():
		return glove.Frame{}, ctx.Err()
	}
}

// Clear discards every queued frame and returns how many were dropped.
func (q *Queue) Clear() int {
	n := 0
	for {
		select {
		case <-q.ch:
			n++
		default:
			q.cleared.Add(uint64(n))
			return n
		}
	}
}

// Len returns the number of queued frames.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Stats returns a snapshot of the queue counters.
func (q *Queue) Stats() QueueStats {
	return QueueStats{
		Pushed:  q.pushed.Load(),
		Dropped: q.dropped.Load(),
		Cleared: q.cleared.Load(),
		Len:     len(q.ch),
		Cap:     cap(q.ch),
	}
}
