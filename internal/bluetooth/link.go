package bluetooth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"go.bug.st/serial"
	"golang.org/x/time/rate"
)

// portResolver turns a device address into a serial device path, setting up
// whatever platform plumbing that needs. release undoes it.
type portResolver func(ctx context.Context, address string) (path string, release func() error, err error)

// openPort is swapped in tests.
var openPort = func(path string, mode *serial.Mode) (io.WriteCloser, error) {
	return serial.Open(path, mode)
}

// serialLink writes to a printer through a serial port, in paced chunks so
// the printer's small receive buffer is not overrun.
type serialLink struct {
	opts    Options
	resolve portResolver

	mu      sync.Mutex
	port    io.WriteCloser
	path    string
	release func() error
	limiter *rate.Limiter
}

func newSerialLink(opts Options, resolve portResolver) *serialLink {
	opts = opts.withDefaults()
	l := &serialLink{opts: opts, resolve: resolve}
	if opts.BytesPerSecond > 0 {
		burst := max(opts.WriteChunk, opts.BytesPerSecond)
		l.limiter = rate.NewLimiter(rate.Limit(opts.BytesPerSecond), burst)
	}
	return l
}

// Connect opens a connection to the printer at address.
func (l *serialLink) Connect(ctx context.Context, address string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.port != nil {
		return nil
	}

	path, release, err := l.resolve(ctx, address)
	if err != nil {
		return err
	}

	mode := &serial.Mode{
		BaudRate: l.opts.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := openPort(path, mode)
	if err != nil {
		if release != nil {
			release()
		}
		return fmt.Errorf("failed to open port %s: %w", path, err)
	}

	l.port = port
	l.path = path
	l.release = release
	l.opts.status(fmt.Sprintf("Connected: %s", path))
	return nil
}

// Write sends raw bytes to the printer.
func (l *serialLink) Write(ctx context.Context, data []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.port == nil {
		return ErrNotConnected
	}

	for start := 0; start < len(data); start += l.opts.WriteChunk {
		end := min(start+l.opts.WriteChunk, len(data))
		chunk := data[start:end]

		if l.limiter != nil {
			if err := l.limiter.WaitN(ctx, len(chunk)); err != nil {
				return fmt.Errorf("write paused at byte %d: %w", start, err)
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}

		if _, err := l.port.Write(chunk); err != nil {
			return fmt.Errorf("write failed: %w", err)
		}
	}
	return nil
}

// Disconnect closes the port and releases the platform channel. Calling it
// while disconnected is a no-op.
func (l *serialLink) Disconnect() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var errs []error
	if l.port != nil {
		if err := l.port.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", l.path, err))
		}
	}
	if l.release != nil {
		if err := l.release(); err != nil {
			errs = append(errs, err)
		}
	}
	l.port = nil
	l.path = ""
	l.release = nil
	return errors.Join(errs...)
}

func (l *serialLink) IsConnected() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.port != nil
}

// PortName returns the current port name
func (l *serialLink) PortName() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.path
}
