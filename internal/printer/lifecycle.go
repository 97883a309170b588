// Package printer owns the connection to the selected receipt printer: the
// connect/print/disconnect lifecycle, its status stream and the persisted
// default printer.
package printer

import (
	"context"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"

	"mercado-print/internal/bluetooth"
	"mercado-print/internal/logging"
)

// State of the printer connection.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Lifecycle is the sole writer to the printer link.
type Lifecycle struct {
	link   bluetooth.Link
	status *StatusStream
	log    *log.Logger

	mu      sync.Mutex
	state   State
	address string

	writeMu sync.Mutex
}

// NewLifecycle creates a disconnected lifecycle over link.
func NewLifecycle(link bluetooth.Link) *Lifecycle {
	return &Lifecycle{
		link:   link,
		status: NewStatusStream(),
		log:    logging.For("printer"),
	}
}

// Status returns the connection status stream.
func (l *Lifecycle) Status() *StatusStream { return l.status }

// State returns the current connection state.
func (l *Lifecycle) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Address returns the address of the connected or connecting printer.
func (l *Lifecycle) Address() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.address
}

// Connected reports whether a printer is connected.
func (l *Lifecycle) Connected() bool {
	return l.State() == Connected
}

// LinkOpen asks the bridge whether the channel is still open. It can
// disagree with State after a failed write or a dropped link.
func (l *Lifecycle) LinkOpen() bool {
	return l.link.IsConnected()
}

// Port returns the serial device the link writes to, when the bridge
// exposes one.
func (l *Lifecycle) Port() string {
	if p, ok := l.link.(interface{ PortName() string }); ok {
		return p.PortName()
	}
	return ""
}

// Connect opens the link to address. Connecting to the printer already
// connected is a no-op; connecting to another one drops the current link
// first. On failure the lifecycle is Disconnected and false is published.
func (l *Lifecycle) Connect(ctx context.Context, address string) error {
	l.mu.Lock()
	switch {
	case l.state == Connecting:
		l.mu.Unlock()
		return ErrBusy
	case l.state == Connected && l.address == address:
		l.mu.Unlock()
		return nil
	case l.state == Connected:
		l.mu.Unlock()
		l.log.Infof("switching printer %s -> %s", l.Address(), address)
		if err := l.Disconnect(); err != nil {
			l.log.Warnf("dropping previous link: %v", err)
		}
		l.mu.Lock()
		if l.state != Disconnected {
			l.mu.Unlock()
			return ErrBusy
		}
	}
	l.state = Connecting
	l.address = address
	l.mu.Unlock()

	l.log.Infof("connecting to %s", address)
	err := guard(func() error { return l.link.Connect(ctx, address) })

	l.mu.Lock()
	if err != nil {
		l.state = Disconnected
		l.address = ""
		l.mu.Unlock()
		l.log.Errorf("connect to %s: %v", address, err)
		l.status.publish(false)
		return &ConnectError{Address: address, Err: err}
	}
	l.state = Connected
	l.mu.Unlock()

	l.log.Infof("connected to %s", address)
	l.status.publish(true)
	return nil
}

// Print writes raw bytes to the connected printer. A failed write leaves
// the connection state unchanged.
func (l *Lifecycle) Print(ctx context.Context, data []byte) error {
	l.mu.Lock()
	state, address := l.state, l.address
	l.mu.Unlock()
	if state != Connected {
		return ErrNotConnected
	}

	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	if err := guard(func() error { return l.link.Write(ctx, data) }); err != nil {
		l.log.Errorf("write to %s: %v", address, err)
		return &WriteError{Address: address, Err: err}
	}
	l.log.Debugf("wrote %d bytes to %s", len(data), address)
	return nil
}

// Disconnect closes the link. It is a no-op when already disconnected. A
// failing bridge still leaves the lifecycle Disconnected.
func (l *Lifecycle) Disconnect() error {
	l.mu.Lock()
	switch l.state {
	case Disconnected:
		l.mu.Unlock()
		return nil
	case Connecting:
		l.mu.Unlock()
		return ErrBusy
	}
	address := l.address
	l.mu.Unlock()

	l.writeMu.Lock()
	err := guard(l.link.Disconnect)
	l.writeMu.Unlock()

	l.mu.Lock()
	l.state = Disconnected
	l.address = ""
	l.mu.Unlock()
	l.status.publish(false)

	if err != nil {
		l.log.Warnf("disconnect from %s: %v", address, err)
		return &DisconnectError{Address: address, Err: err}
	}
	l.log.Infof("disconnected from %s", address)
	return nil
}

// guard turns a bridge panic into an error.
func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("bluetooth bridge panic: %v", r)
		}
	}()
	return fn()
}
