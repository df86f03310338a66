package capture

import (
	"context"
	"errors"
	"os"
	"sync"
	"syscall"
	"testing"
	"time"
)

const validLine = "*1.0,0.0,0.0*0,0,0*0,0,0*30,25,20,15,10*3,3,3,3*"

func runReader(t *testing.T, r *Reader) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- r.Run(ctx) }()
	return cancel, errCh
}

func waitErr(t *testing.T, errCh <-chan error) error {
	t.Helper()
	select {
	case err := <-errCh:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return")
		return nil
	}
}

func TestReader_PublishesValidCycles(t *testing.T) {
	left := NewMockPort("left", []string{validLine}, true)
	right := NewMockPort("right", []string{validLine}, true)
	q := NewQueue(10)

	r := NewReader(ReaderConfig{Left: left, Right: right, Queue: q})
	cancel, errCh := runReader(t, r)

	f, err := q.Next(contextWithTimeout(t, time.Second))
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if f.Left.Flex[0] != 30 || f.Right.Calibration.Mag != 3 {
		t.Errorf("unexpected frame %+v", f)
	}
	if f.At.IsZero() {
		t.Error("frame timestamp not set")
	}

	cancel()
	if err := waitErr(t, errCh); err != nil {
		t.Errorf("Run() after cancel = %v, want nil", err)
	}
	if left.IsOpen() || right.IsOpen() {
		t.Error("ports should be closed after Run returns")
	}
}

func TestReader_DropsPartialCycles(t *testing.T) {
	left := NewMockPort("left", []string{validLine, validLine}, false)
	right := NewMockPort("right", []string{"*garbage*", validLine}, false)
	q := NewQueue(10)

	r := NewReader(ReaderConfig{Left: left, Right: right, Queue: q})
	cancel, errCh := runReader(t, r)

	if _, err := q.Next(contextWithTimeout(t, time.Second)); err != nil {
		t.Fatalf("Next() error = %v", err)
	}

	// Give the reader time to drain the remaining timeouts.
	time.Sleep(20 * time.Millisecond)
	cancel()
	waitErr(t, errCh)

	stats := r.Stats()
	if stats.Published != 1 {
		t.Errorf("Published = %d, want 1", stats.Published)
	}
	if stats.Invalid != 1 {
		t.Errorf("Invalid = %d, want 1", stats.Invalid)
	}
	if q.Len() != 0 {
		t.Errorf("queue Len = %d, want 0", q.Len())
	}
}

func TestReader_FullQueueDoesNotBlock(t *testing.T) {
	left := NewMockPort("left", []string{validLine}, true)
	right := NewMockPort("right", []string{validLine}, true)
	q := NewQueue(1)

	r := NewReader(ReaderConfig{Left: left, Right: right, Queue: q})
	cancel, errCh := runReader(t, r)

	deadline := time.Now().Add(time.Second)
	for q.Stats().Dropped == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	if err := waitErr(t, errCh); err != nil {
		t.Errorf("Run() = %v", err)
	}
	if q.Stats().Dropped == 0 {
		t.Error("expected dropped frames on a full queue")
	}
}

func TestReader_ResetsBusyPort(t *testing.T) {
	left := NewMockPort("left", []string{validLine}, true)
	left.SetOpenErrors(ErrPortBusy)
	right := NewMockPort("right", []string{validLine}, true)
	q := NewQueue(10)

	r := NewReader(ReaderConfig{Left: left, Right: right, Queue: q, ResetDelay: 10 * time.Millisecond})
	cancel, errCh := runReader(t, r)

	if _, err := q.Next(contextWithTimeout(t, time.Second)); err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	cancel()
	waitErr(t, errCh)

	if left.Opens() != 2 {
		t.Errorf("left Opens() = %d, want 2", left.Opens())
	}
}

func TestReader_OpenFailureIsFatal(t *testing.T) {
	tests := []struct {
		name string
		errs []error
	}{
		{"permission", []error{os.ErrPermission}},
		{"busy twice", []error{ErrPortBusy, ErrPortBusy}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			left := NewMockPort("left", []string{validLine}, true)
			right := NewMockPort("right", []string{validLine}, true)
			right.SetOpenErrors(tt.errs...)

			r := NewReader(ReaderConfig{Left: left, Right: right, Queue: NewQueue(1)})
			_, errCh := runReader(t, r)

			err := waitErr(t, errCh)
			if !errors.Is(err, ErrPortOpen) {
				t.Fatalf("Run() error = %v, want ErrPortOpen", err)
			}
			if left.IsOpen() {
				t.Error("left port should be closed after fatal error")
			}
		})
	}
}

// failingPort opens normally and then fails reads according to fail.
type failingPort struct {
	name  string
	fail  func(n int) bool
	mu    sync.Mutex
	open  bool
	reads int
}

func (p *failingPort) Open() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.open = true
	return nil
}

func (p *failingPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.open = false
	return nil
}

func (p *failingPort) ReadLine() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reads++
	if p.fail(p.reads) {
		return "", syscall.EIO
	}
	return validLine, nil
}

func (p *failingPort) IsOpen() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.open
}

func (p *failingPort) Name() string { return p.name }

func (p *failingPort) Reads() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reads
}

func TestReader_LostPortIsFatal(t *testing.T) {
	left := &failingPort{name: "left", fail: func(int) bool { return true }}
	right := NewMockPort("right", []string{validLine}, true)

	r := NewReader(ReaderConfig{Left: left, Right: right, Queue: NewQueue(1), MaxReadErrors: 3})
	_, errCh := runReader(t, r)

	err := waitErr(t, errCh)
	if !errors.Is(err, ErrPortLost) {
		t.Fatalf("Run() error = %v, want ErrPortLost", err)
	}
	if !errors.Is(err, syscall.EIO) {
		t.Errorf("Run() error = %v, should carry the read failure", err)
	}
	if left.Reads() != 3 {
		t.Errorf("left reads = %d, want 3", left.Reads())
	}
	if got := r.Stats().ReadErrors; got != 3 {
		t.Errorf("ReadErrors = %d, want 3", got)
	}
	if left.IsOpen() || right.IsOpen() {
		t.Error("ports should be closed after the link is lost")
	}
}

func TestReader_IntermittentReadErrorsAreRecovered(t *testing.T) {
	left := &failingPort{name: "left", fail: func(n int) bool { return n%2 == 1 }}
	right := NewMockPort("right", []string{validLine}, true)
	q := NewQueue(10)

	r := NewReader(ReaderConfig{Left: left, Right: right, Queue: q, MaxReadErrors: 2})
	cancel, errCh := runReader(t, r)

	if _, err := q.Next(contextWithTimeout(t, time.Second)); err != nil {
		t.Fatalf("Next() error = %v", err)
	}

	cancel()
	if err := waitErr(t, errCh); err != nil {
		t.Errorf("Run() = %v, want nil", err)
	}
	if r.Stats().ReadErrors == 0 {
		t.Error("failed reads should be counted")
	}
}

func TestReader_CancelDuringSettle(t *testing.T) {
	left := NewMockPort("left", []string{validLine}, true)
	right := NewMockPort("right", []string{validLine}, true)

	r := NewReader(ReaderConfig{Left: left, Right: right, Queue: NewQueue(1), SettleDelay: time.Hour})
	cancel, errCh := runReader(t, r)

	time.Sleep(10 * time.Millisecond)
	cancel()
	if err := waitErr(t, errCh); err != nil {
		t.Errorf("Run() = %v, want nil", err)
	}
	if r.Stats().Cycles != 0 {
		t.Errorf("Cycles = %d, want 0", r.Stats().Cycles)
	}
}

func TestReader_RequiresPorts(t *testing.T) {
	r := NewReader(ReaderConfig{Queue: NewQueue(1)})
	if err := r.Run(context.Background()); err == nil {
		t.Error("expected error without ports")
	}
}

func contextWithTimeout(t *testing.T, d time.Duration) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), d)
	t.Cleanup(cancel)
	return ctx
}
