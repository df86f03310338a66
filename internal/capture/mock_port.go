package capture

import (
	"sync"
	"time"
)

// MockPort plays back pre-recorded lines for testing
type MockPort struct {
	name      string
	lines     []string
	index     int
	loop      bool
	delay     time.Duration
	openErr   []error
	mu        sync.Mutex
	running   bool
	opens     int
	closes    int
	reads     int
	readHooks []func(n int)
}

// NewMockPort creates a closed port that replays lines, from the start
// again when loop is set.
func NewMockPort(name string, lines []string, loop bool) *MockPort {
	return &MockPort{
		name:  name,
		lines: lines,
		loop:  loop,
		delay: time.Millisecond,
	}
}

// SetOpenErrors queues errors returned by successive Open calls.
func (p *MockPort) SetOpenErrors(errs ...error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.openErr = errs
}

// SetReadDelay sets how long ReadLine blocks, standing in for the read timeout.
func (p *MockPort) SetReadDelay(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.delay = d
}

// OnRead registers a hook called after each successful read with the read count.
func (p *MockPort) OnRead(fn func(n int)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.readHooks = append(p.readHooks, fn)
}

// Open opens the port and rewinds playback.
func (p *MockPort) Open() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.opens++
	if len(p.openErr) > 0 {
		err := p.openErr[0]
		p.openErr = p.openErr[1:]
		if err != nil {
			return err
		}
	}

	p.running = true
	p.index = 0
	return nil
}

// Close closes the port.
func (p *MockPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		p.closes++
	}
	p.running = false
	return nil
}

// ReadLine returns the next recorded line, or ErrNoData once a non-looping
// recording is exhausted.
func (p *MockPort) ReadLine() (string, error) {
	p.mu.Lock()
	delay := p.delay
	p.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return "", ErrPortNotOpen
	}

	if p.index >= len(p.lines) {
		if !p.loop || len(p.lines) == 0 {
			p.mu.Unlock()
			return "", ErrNoData
		}
		p.index = 0
	}

	line := p.lines[p.index]
	p.index++
	p.reads++
	n := p.reads
	hooks := append([]func(int){}, p.readHooks...)
	p.mu.Unlock()

	for _, fn := range hooks {
		fn(n)
	}
	return line, nil
}

// IsOpen reports whether the port is open.
func (p *MockPort) IsOpen() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Name returns the port name.
func (p *MockPort) Name() string { return p.name }

// SetLines replaces the line sequence
func (p *MockPort) SetLines(lines []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lines = lines
	p.index = 0
}

// Opens returns how many times Open was called.
func (p *MockPort) Opens() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.opens
}

// Closes returns how many times an open port was closed.
func (p *MockPort) Closes() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closes
}
