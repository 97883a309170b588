package printer

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/bytedance/sonic"

	"mercado-print/internal/bluetooth"
	"mercado-print/internal/logging"
)

// Preference keys.
const (
	KeyDefaultPrinter = "default_printer"
	KeyAutoReconnect  = "auto_reconnect"
)

// Preferences is the durable key-value storage the default printer lives
// in. fyne.Preferences satisfies it.
type Preferences interface {
	String(key string) string
	SetString(key string, value string)
	RemoveValue(key string)
}

// DefaultStore persists the user's default printer and the auto-reconnect
// flag.
type DefaultStore struct {
	prefs Preferences
}

// NewDefaultStore keeps the default printer in prefs.
func NewDefaultStore(prefs Preferences) *DefaultStore {
	return &DefaultStore{prefs: prefs}
}

// Get returns the saved default printer. ok is false when none is saved.
func (s *DefaultStore) Get() (d bluetooth.Device, ok bool, err error) {
	raw := s.prefs.String(KeyDefaultPrinter)
	if raw == "" {
		return bluetooth.Device{}, false, nil
	}
	if err := sonic.UnmarshalString(raw, &d); err != nil {
		return bluetooth.Device{}, false, fmt.Errorf("decode default printer: %w", err)
	}
	return d, d.Address != "", nil
}

// Save overwrites the default printer.
func (s *DefaultStore) Save(d bluetooth.Device) error {
	if d.Address == "" {
		return errors.New("default printer needs an address")
	}
	d.Connected = false
	raw, err := sonic.MarshalString(d)
	if err != nil {
		return fmt.Errorf("encode default printer: %w", err)
	}
	s.prefs.SetString(KeyDefaultPrinter, raw)
	return nil
}

// Clear forgets the default printer.
func (s *DefaultStore) Clear() {
	s.prefs.RemoveValue(KeyDefaultPrinter)
}

// AutoReconnect reports whether the app reconnects to the default printer on start.
func (s *DefaultStore) AutoReconnect() bool {
	return s.prefs.String(KeyAutoReconnect) == "true"
}

// SetAutoReconnect stores the auto-reconnect flag.
func (s *DefaultStore) SetAutoReconnect(on bool) {
	s.prefs.SetString(KeyAutoReconnect, strconv.FormatBool(on))
}

// AutoReconnect connects to the saved default printer when the user turned
// auto-reconnect on. It makes a single attempt; connected reports whether
// a connection is up afterwards.
func AutoReconnect(ctx context.Context, lc *Lifecycle, store *DefaultStore) (connected bool, err error) {
	if !store.AutoReconnect() {
		return false, nil
	}
	d, ok, err := store.Get()
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}

	logging.For("printer").Infof("auto-reconnecting to %s", d.DisplayName())
	if err := lc.Connect(ctx, d.Address); err != nil {
		return false, err
	}
	return true, nil
}
