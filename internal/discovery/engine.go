// Package discovery finds nearby receipt printers: one timed discovery
// attempt (Engine), a bounded retry loop around it (Retrier), the
// likely-printer filter and a Scanner that keeps at most one search in
// flight.
package discovery

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"mercado-print/internal/bluetooth"
	"mercado-print/internal/logging"
	"mercado-print/internal/permission"
	"mercado-print/internal/platform"
)

// DefaultSettle is the pause after switching the radio on.
const DefaultSettle = 2 * time.Second

// Negotiator is the permission precondition of an attempt.
type Negotiator interface {
	Negotiate(ctx context.Context, profile platform.DeviceProfile) permission.Result
}

// Engine runs single discovery attempts:
// permissions, then radio, then a timed enumeration.
type Engine struct {
	perms  Negotiator
	radio  bluetooth.Radio
	settle time.Duration
	log    *log.Logger

	mu      sync.Mutex
	state   State
	onState func(State)
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithSettle sets the pause after the radio is switched on.
func WithSettle(d time.Duration) EngineOption {
	return func(e *Engine) {
		if d >= 0 {
			e.settle = d
		}
	}
}

// WithStateHook registers a callback invoked on every state transition.
// It runs synchronously and must not block.
func WithStateHook(fn func(State)) EngineOption {
	return func(e *Engine) { e.onState = fn }
}

// WithEngineLogger overrides the component logger.
func WithEngineLogger(l *log.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// NewEngine creates an engine in the Idle state.
func NewEngine(perms Negotiator, radio bluetooth.Radio, opts ...EngineOption) *Engine {
	e := &Engine{
		perms:  perms,
		radio:  radio,
		settle: DefaultSettle,
		log:    logging.For("discovery"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// State returns the current state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Engine) setState(s State) {
	e.mu.Lock()
	e.state = s
	hook := e.onState
	e.mu.Unlock()
	e.log.Debugf("state -> %s", s)
	if hook != nil {
		hook(s)
	}
}

type enumeration struct {
	devices []bluetooth.Device
	err     error
}

// DiscoverOnce runs one attempt. It never panics and never returns a bare
// bridge error: the outcome is always encoded in the result's State and Err.
func (e *Engine) DiscoverOnce(ctx context.Context, profile platform.DeviceProfile) (res AttemptResult) {
	start := time.Now()
	res.ID = uuid.NewString()

	defer func() {
		if r := recover(); r != nil {
			e.log.Errorf("bluetooth bridge panicked: %v", r)
			res.Devices = nil
			res.State = Error
			res.Err = fmt.Errorf("%w: bridge panic: %v", ErrScanFailed, r)
			e.setState(Error)
		}
		res.Duration = time.Since(start)
	}()

	finish := func(s State, err error) AttemptResult {
		res.State = s
		res.Err = err
		e.setState(s)
		return res
	}
	cancelled := func() AttemptResult {
		res.Devices = nil
		return finish(Idle, ErrScanCancelled)
	}

	// 1. permissions
	e.setState(CheckingPermissions)
	res.Permissions = e.perms.Negotiate(ctx, profile)
	if ctx.Err() != nil {
		return cancelled()
	}
	if !res.Permissions.Granted {
		return finish(Error, res.Permissions.Err())
	}

	// 2. radio
	e.setState(CheckingRadio)
	if err := e.ensureRadio(ctx); err != nil {
		if ctx.Err() != nil {
			return cancelled()
		}
		return finish(Error, err)
	}

	// 3. timed enumeration
	e.setState(Scanning)
	timeout := profile.ScanTimeout
	if timeout <= 0 {
		timeout = platform.Default().ScanTimeout
	}

	scanCtx, stop := context.WithCancel(ctx)
	defer stop()
	// Buffered so a late enumeration never blocks after losing the race.
	done := make(chan enumeration, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- enumeration{err: fmt.Errorf("bridge panic: %v", r)}
			}
		}()
		devices, err := e.radio.DiscoverUnpaired(scanCtx)
		done <- enumeration{devices: devices, err: err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return cancelled()
	case <-timer.C:
		e.log.Warnf("scan timeout after %s", timeout)
		return finish(TimedOut, fmt.Errorf("%w (%dms)", ErrScanTimeout, timeout.Milliseconds()))
	case out := <-done:
		if out.err != nil {
			if ctx.Err() != nil {
				return cancelled()
			}
			return finish(Error, fmt.Errorf("%w: %w", ErrScanFailed, out.err))
		}
		now := time.Now()
		for i := range out.devices {
			if out.devices[i].LastSeen.IsZero() {
				out.devices[i].LastSeen = now
			}
		}
		res.Devices = out.devices
		e.log.Infof("scan found %d device(s)", len(out.devices))
		return finish(Completed, nil)
	}
}

// ensureRadio switches the radio on if needed and waits for it to settle.
func (e *Engine) ensureRadio(ctx context.Context) error {
	on, err := e.radio.IsEnabled(ctx)
	if err != nil {
		e.log.Warnf("radio state unknown, trying to enable: %v", err)
	}
	if on {
		return nil
	}

	if err := e.radio.Enable(ctx); err != nil {
		return fmt.Errorf("%w: enable it manually (%w)", ErrRadioUnavailable, err)
	}
	e.log.Infof("radio enabled, settling for %s", e.settle)

	if e.settle <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(e.settle)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
