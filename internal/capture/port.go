// Package capture acquires sensor frames from the two glove serial links.
package capture

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"syscall"
	"time"

	serial "github.com/jacobsa/go-serial/serial"
)

// Default serial settings
const (
	DefaultBaudRate    = 115200
	DefaultReadTimeout = 300 * time.Millisecond

	// maxPendingLine bounds the partial line carried across read timeouts.
	maxPendingLine = 4096
)

var (
	// ErrPortNotOpen is returned when reading from a port that is not open.
	ErrPortNotOpen = errors.New("serial port is not open")
	// ErrPortBusy is returned when the device is held by another process.
	ErrPortBusy = errors.New("serial port is busy")
	// ErrNoData is returned when a read timed out before a full line arrived.
	ErrNoData = errors.New("no data before read timeout")
)

// Port defines the interface for a line-oriented glove serial link.
type Port interface {
	Open() error
	Close() error
	// ReadLine returns one line without its terminator. It blocks at most
	// for the port read timeout and returns ErrNoData if no full line arrived.
	ReadLine() (string, error)
	IsOpen() bool
	Name() string
}

// SerialOptions configures a serial Port.
type SerialOptions struct {
	Device      string
	BaudRate    int
	ReadTimeout time.Duration
}

// serialPort reads lines from a serial device using go-serial.
type serialPort struct {
	opts    SerialOptions
	rwc     io.ReadWriteCloser
	reader  *bufio.Reader
	pending strings.Builder
	mu      sync.Mutex
}

// NewSerialPort creates a Port for the given device. The port is not opened.
func NewSerialPort(opts SerialOptions) Port {
	if opts.BaudRate <= 0 {
		opts.BaudRate = DefaultBaudRate
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = DefaultReadTimeout
	}
	return &serialPort{opts: opts}
}

// Open opens the device with 8N1 framing and the configured read timeout.
func (p *serialPort) Open() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.rwc != nil {
		return nil
	}

	rwc, err := serial.Open(serial.OpenOptions{
		PortName:              p.opts.Device,
		BaudRate:              uint(p.opts.BaudRate),
		DataBits:              8,
		StopBits:              1,
		ParityMode:            serial.PARITY_NONE,
		MinimumReadSize:       0,
		InterCharacterTimeout: interCharTimeout(p.opts.ReadTimeout),
	})
	if err != nil {
		if errors.Is(err, syscall.EBUSY) {
			return fmt.Errorf("%w: %s: %v", ErrPortBusy, p.opts.Device, err)
		}
		return err
	}

	p.rwc = rwc
	p.reader = bufio.NewReader(rwc)
	p.pending.Reset()
	return nil
}

// Close closes the device. Closing a closed port is a no-op.
func (p *serialPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.rwc == nil {
		return nil
	}

	err := p.rwc.Close()
	p.rwc = nil
	p.reader = nil
	return err
}

// ReadLine reads one newline-terminated line. A line cut by the read timeout
// is kept and completed by the next call.
func (p *serialPort) ReadLine() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.reader == nil {
		return "", ErrPortNotOpen
	}

	chunk, err := p.reader.ReadString('\n')
	if err == nil {
		p.pending.WriteString(chunk)
		line := strings.TrimRight(p.pending.String(), "\r\n")
		p.pending.Reset()
		return line, nil
	}

	if errors.Is(err, io.EOF) {
		p.pending.WriteString(chunk)
		if p.pending.Len() > maxPendingLine {
			p.pending.Reset()
		}
		return "", ErrNoData
	}

	return "", err
}

// IsOpen returns true if the device is open.
func (p *serialPort) IsOpen() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.rwc != nil
}

// Name returns the device path.
func (p *serialPort) Name() string {
	return p.opts.Device
}

// interCharTimeout converts a read timeout to go-serial milliseconds, which
// the termios VTIME field holds in tenths of a second.
func interCharTimeout(d time.Duration) uint {
	ms := uint(d / time.Millisecond)
	ms = ms / 100 * 100
	if ms < 100 {
		ms = 100
	}
	return ms
}
