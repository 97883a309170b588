package discovery

import (
	"time"

	"mercado-print/internal/bluetooth"
	"mercado-print/internal/permission"
)

// State is a step of one discovery attempt.
type State int

const (
	Idle State = iota
	CheckingPermissions
	CheckingRadio
	Scanning
	Completed
	Error
	TimedOut
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case CheckingPermissions:
		return "checking-permissions"
	case CheckingRadio:
		return "checking-radio"
	case Scanning:
		return "scanning"
	case Completed:
		return "completed"
	case Error:
		return "error"
	case TimedOut:
		return "timed-out"
	default:
		return "unknown"
	}
}

// Terminal reports whether an attempt ends in s. Idle is not terminal; it
// is where a cancelled attempt returns to.
func (s State) Terminal() bool {
	return s == Completed || s == Error || s == TimedOut
}

// AttemptResult describes one finished discovery attempt.
type AttemptResult struct {
	ID          string
	Devices     []bluetooth.Device
	State       State
	Err         error
	Duration    time.Duration
	Permissions permission.Result
}
