package discovery

import (
	"errors"
	"strings"

	"mercado-print/internal/bluetooth"
	"mercado-print/internal/permission"
)

// Discovery outcomes other than success. Permission denials are reported as
// *permission.DeniedError.
var (
	ErrRadioUnavailable = errors.New("bluetooth is off and could not be enabled")
	ErrScanTimeout      = errors.New("scan timeout")
	ErrScanCancelled    = errors.New("cancelled by user")
	ErrScanFailed       = errors.New("scan failed")
	ErrNoDevicesFound   = errors.New("no printers found")
)

// UserMessage renders err for the person holding the device.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case permission.IsDenied(err):
		return "Bluetooth permissions are missing. Grant them in Settings and tap Retry."
	case errors.Is(err, bluetooth.ErrNotSupported):
		return "Bluetooth printing is not supported on this device."
	case errors.Is(err, ErrRadioUnavailable):
		return "Bluetooth is off and could not be switched on. Enable it manually and tap Retry."
	case errors.Is(err, ErrScanTimeout):
		return "The printer search took too long. Move closer to the printer and tap Retry."
	case errors.Is(err, ErrScanCancelled):
		return "Search cancelled."
	case errors.Is(err, ErrNoDevicesFound):
		return "No printer found. Check that it is powered on and in pairing mode, then tap Retry."
	default:
		return "Printer search failed: " + err.Error()
	}
}

// RemediationSteps returns the vendor-specific guidance attached to err.
func RemediationSteps(err error) []string {
	var denied *permission.DeniedError
	if errors.As(err, &denied) {
		return denied.Hints
	}
	if errors.Is(err, ErrRadioUnavailable) && !errors.Is(err, bluetooth.ErrNotSupported) {
		return []string{"Open quick settings and switch Bluetooth on"}
	}
	return nil
}

// OfferRetry reports whether the UI should show a retry action. Every
// failure is retryable by hand except a user cancellation.
func OfferRetry(err error) bool {
	return err != nil && !errors.Is(err, ErrScanCancelled)
}

// Describe joins the message and remediation steps into one block.
func Describe(err error) string {
	msg := UserMessage(err)
	steps := RemediationSteps(err)
	if len(steps) == 0 {
		return msg
	}
	return msg + "\n\n- " + strings.Join(steps, "\n- ")
}

// autoRetryable reports whether the retry controller may try again after
// an attempt that ended with err. Only timeouts, empty results and
// enumeration failures qualify; anything needing the user does not.
func autoRetryable(err error) bool {
	switch {
	case err == nil:
		return true
	case permission.IsDenied(err),
		errors.Is(err, ErrRadioUnavailable),
		errors.Is(err, ErrScanCancelled),
		errors.Is(err, bluetooth.ErrNotSupported):
		return false
	default:
		return true
	}
}
