package capture

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ayusman/signify/internal/glove"
	"github.com/ayusman/signify/internal/log"
)

// Acquisition timing defaults.
const (
	DefaultSettleDelay   = 4 * time.Second
	DefaultResetDelay    = time.Second
	DefaultMaxReadErrors = 5

	// readErrorBackoff throttles polling after a read error other than a timeout.
	readErrorBackoff = 100 * time.Millisecond
)

var (
	// ErrPortOpen marks a fatal failure to open a glove port.
	ErrPortOpen = errors.New("cannot open glove port")
	// ErrPortLost marks a glove port that keeps failing after it was opened,
	// typically an unplugged glove.
	ErrPortLost = errors.New("glove port lost")
)

// ReaderConfig configures a Reader.
type ReaderConfig struct {
	Left  Port
	Right Port
	Queue *Queue
	// SettleDelay is how long to wait after opening for the gloves to boot.
	SettleDelay time.Duration
	// ResetDelay is the pause between closing and reopening a busy port.
	ResetDelay time.Duration
	// MaxReadErrors is how many consecutive failed reads, other than
	// timeouts, a port may return before it is considered lost.
	MaxReadErrors int
}

// ReaderStats reports acquisition counters.
type ReaderStats struct {
	Cycles     uint64 `json:"cycles"`
	Published  uint64 `json:"published"`
	Invalid    uint64 `json:"invalid"`
	Timeouts   uint64 `json:"timeouts"`
	ReadErrors uint64 `json:"read_errors"`
}

// Reader polls both gloves and publishes paired frames to a Queue.
type Reader struct {
	cfg ReaderConfig
	now func() time.Time

	// failures counts consecutive read errors per port. Only Run touches it.
	failures map[Port]int

	cycles     atomic.Uint64
	published  atomic.Uint64
	invalid    atomic.Uint64
	timeouts   atomic.Uint64
	readErrors atomic.Uint64
}

// NewReader creates a Reader. Negative delays are treated as zero and a
// non-positive MaxReadErrors uses DefaultMaxReadErrors.
func NewReader(cfg ReaderConfig) *Reader {
	if cfg.SettleDelay < 0 {
		cfg.SettleDelay = 0
	}
	if cfg.ResetDelay < 0 {
		cfg.ResetDelay = 0
	}
	if cfg.MaxReadErrors <= 0 {
		cfg.MaxReadErrors = DefaultMaxReadErrors
	}
	return &Reader{cfg: cfg, now: time.Now, failures: make(map[Port]int, 2)}
}

// Run opens both ports and polls them until ctx is cancelled. It returns nil
// on cancellation, an error wrapping ErrPortOpen if a port cannot be opened
// and an error wrapping ErrPortLost if a port keeps failing mid-session.
// Both ports are closed before Run returns.
func (r *Reader) Run(ctx context.Context) error {
	if r.cfg.Left == nil || r.cfg.Right == nil || r.cfg.Queue == nil {
		return errors.New("reader requires two ports and a queue")
	}

	defer r.closePorts()

	for _, p := range []Port{r.cfg.Left, r.cfg.Right} {
		if err := r.open(ctx, p); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}

	log.Infof("Glove ports open (%s, %s), waiting %v for sensors to settle", r.cfg.Left.Name(), r.cfg.Right.Name(), r.cfg.SettleDelay)
	if err := sleep(ctx, r.cfg.SettleDelay); err != nil {
		return nil
	}

	for {
		if ctx.Err() != nil {
			return nil
		}

		frame, ok, err := r.readCycle()
		if err != nil {
			if errors.Is(err, ErrPortLost) {
				log.Errorw("Glove link lost", "error", err)
				return err
			}
			_ = sleep(ctx, readErrorBackoff)
		}
		if !ok {
			continue
		}

		if r.cfg.Queue.TryPush(frame) {
			r.published.Add(1)
		}
	}
}

// open opens p, power-cycling it once if another process holds it.
func (r *Reader) open(ctx context.Context, p Port) error {
	err := p.Open()
	if errors.Is(err, ErrPortBusy) {
		log.Warnf("Port %s is busy, resetting", p.Name())
		_ = p.Close()
		if serr := sleep(ctx, r.cfg.ResetDelay); serr != nil {
			return serr
		}
		err = p.Open()
	}
	if err != nil {
		return fmt.Errorf("%w %s: %v", ErrPortOpen, p.Name(), err)
	}
	return nil
}

// readCycle reads one line from each glove. The cycle is kept only if both
// lines decode. err reports a failed read; it wraps ErrPortLost once a port
// has failed MaxReadErrors times in a row.
func (r *Reader) readCycle() (frame glove.Frame, ok bool, err error) {
	r.cycles.Add(1)

	left, lok, lerr := r.readHand(r.cfg.Left)
	right, rok, rerr := r.readHand(r.cfg.Right)

	err = lerr
	if rerr != nil && (err == nil || errors.Is(rerr, ErrPortLost)) {
		err = rerr
	}
	if !lok || !rok {
		return glove.Frame{}, false, err
	}

	return glove.Frame{Left: left, Right: right, At: r.now()}, true, err
}

func (r *Reader) readHand(p Port) (reading glove.HandReading, ok bool, err error) {
	line, err := p.ReadLine()
	if err != nil {
		if errors.Is(err, ErrNoData) {
			r.timeouts.Add(1)
			r.failures[p] = 0
			return glove.HandReading{}, false, nil
		}
		return glove.HandReading{}, false, r.readFailed(p, err)
	}
	r.failures[p] = 0

	reading, err = glove.ParseFrame(line)
	if err != nil {
		r.invalid.Add(1)
		log.Debugf("Dropping line from %s: %v", p.Name(), err)
		return glove.HandReading{}, false, nil
	}
	return reading, true, nil
}

// readFailed records a failed read on p and decides whether p is lost.
func (r *Reader) readFailed(p Port, err error) error {
	r.readErrors.Add(1)
	r.failures[p]++
	n := r.failures[p]

	if n >= r.cfg.MaxReadErrors {
		return fmt.Errorf("%w %s after %d failed reads: %w", ErrPortLost, p.Name(), n, err)
	}
	if n == 1 {
		log.Warnf("Read from %s failed: %v", p.Name(), err)
	} else {
		log.Debugf("Read from %s failed (%d in a row): %v", p.Name(), n, err)
	}
	return fmt.Errorf("read %s: %w", p.Name(), err)
}

func (r *Reader) closePorts() {
	for _, p := range []Port{r.cfg.Left, r.cfg.Right} {
		if err := p.Close(); err != nil {
			log.Warnf("Error closing %s: %v", p.Name(), err)
		}
	}
	log.Info("Glove ports closed")
}

// Stats returns a snapshot of the acquisition counters.
func (r *Reader) Stats() ReaderStats {
	return ReaderStats{
		Cycles:     r.cycles.Load(),
		Published:  r.published.Load(),
		Invalid:    r.invalid.Load(),
		Timeouts:   r.timeouts.Load(),
		ReadErrors: r.readErrors.Load(),
	}
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
