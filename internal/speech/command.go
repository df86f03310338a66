package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ayusman/signify/internal/log"
)

// Command announcer defaults.
const (
	DefaultTimeout = 10 * time.Second
	queueSize      = 8
	waitDelay      = 500 * time.Millisecond
)

// CommandAnnouncer runs an external speech program once per announcement.
// Announcements are queued and spoken one at a time by a worker; when the
// queue is full the announcement is dropped.
type CommandAnnouncer struct {
	path    string
	args    []string
	timeout time.Duration

	queue   chan Request
	done    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
	dropped atomic.Uint64
	failed  atomic.Uint64
}

// NewCommandAnnouncer starts an announcer running path with args.
func NewCommandAnnouncer(path string, args []string, timeout time.Duration) *CommandAnnouncer {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	a := &CommandAnnouncer{
		path:    path,
		args:    args,
		timeout: timeout,
		queue:   make(chan Request, queueSize),
		done:    make(chan struct{}),
	}

	a.wg.Add(1)
	go a.run()
	return a
}

// Announce queues text for speaking without blocking.
func (a *CommandAnnouncer) Announce(gesture, text string) {
	req := Request{Action: ActionAnnounce, Gesture: gesture, Text: text}

	select {
	case <-a.done:
		return
	default:
	}

	select {
	case a.queue <- req:
	default:
		a.dropped.Add(1)
		log.Warnw("Speech queue full, dropping announcement", "gesture", gesture)
	}
}

// Close stops the worker after the queued announcements are spoken.
func (a *CommandAnnouncer) Close() error {
	a.once.Do(func() {
		close(a.done)
	})
	a.wg.Wait()
	return nil
}

// Dropped returns how many announcements were dropped on a full queue.
func (a *CommandAnnouncer) Dropped() uint64 {
	return a.dropped.Load()
}

// Failed returns how many announcements the speech program rejected or failed.
func (a *CommandAnnouncer) Failed() uint64 {
	return a.failed.Load()
}

func (a *CommandAnnouncer) run() {
	defer a.wg.Done()

	for {
		select {
		case req := <-a.queue:
			a.speak(req)
		case <-a.done:
			for {
				select {
				case req := <-a.queue:
					a.speak(req)
				default:
					return
				}
			}
		}
	}
}

func (a *CommandAnnouncer) speak(req Request) {
	resp, err := a.Execute(context.Background(), req)
	if err == nil && !resp.Success {
		err = errors.New(resp.Error)
	}
	if err != nil {
		a.failed.Add(1)
		log.Errorw("Speech command failed", "gesture", req.Gesture, "error", err)
	}
}

// Execute runs the speech program with req on stdin and parses its reply.
func (a *CommandAnnouncer) Execute(ctx context.Context, req Request) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, a.path, a.args...)
	// Children of the program may hold stdout open after it is killed.
	cmd.WaitDelay = waitDelay

	reqJSON, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	cmd.Stdin = bytes.NewReader(reqJSON)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err = cmd.Run()

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, fmt.Errorf("speech command timeout after %v", a.timeout)
	}

	if err != nil {
		if s := stderr.String(); s != "" {
			return nil, fmt.Errorf("speech command failed: %w, stderr: %s", err, s)
		}
		return nil, fmt.Errorf("speech command failed: %w", err)
	}

	var response Response
	if err := json.Unmarshal(stdout.Bytes(), &response); err != nil {
		return nil, fmt.Errorf("failed to parse speech response: %w, stdout: %s", err, stdout.String())
	}

	return &response, nil
}
