package printer

import (
	"errors"
	"fmt"
)

var (
	ErrNotConnected = errors.New("printer not connected")
	ErrBusy         = errors.New("printer connection already in progress")
)

// ConnectError is returned when the bridge fails to open a connection.
type ConnectError struct {
	Address string
	Err     error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect to %s failed: %v", e.Address, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// WriteError is returned when sending print data fails. The connection is
// left as it was.
type WriteError struct {
	Address string
	Err     error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("print to %s failed: %v", e.Address, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// DisconnectError is returned when closing the link fails. The lifecycle
// is already Disconnected when it is returned.
type DisconnectError struct {
	Address string
	Err     error
}

func (e *DisconnectError) Error() string {
	return fmt.Sprintf("disconnect from %s failed: %v", e.Address, e.Err)
}

func (e *DisconnectError) Unwrap() error { return e.Err }
