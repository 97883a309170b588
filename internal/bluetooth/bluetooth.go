package bluetooth

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Common errors
var (
	ErrNotSupported      = errors.New("operation not supported on this platform")
	ErrNotConnected      = errors.New("printer not connected")
	ErrNoAdapter         = errors.New("no Bluetooth adapter found")
	ErrPrivilegeRequired = errors.New("root privileges required for RFCOMM")
	ErrRFCOMMMissing     = errors.New("rfcomm not found - install with: sudo apt install bluez")
)

// Device is a Bluetooth peer seen during discovery.
// An empty Name means the peer did not report one.
type Device struct {
	Address   string    `json:"address"`
	Name      string    `json:"name,omitempty"`
	Connected bool      `json:"connected"`
	LastSeen  time.Time `json:"last_seen"`
}

// HasName reports whether the device advertised a usable name.
func (d Device) HasName() bool {
	return strings.TrimSpace(d.Name) != ""
}

// DisplayName returns the name, or the address for unnamed devices.
func (d Device) DisplayName() string {
	if d.HasName() {
		return d.Name
	}
	return d.Address
}

// Radio controls the local adapter and enumerates nearby devices.
type Radio interface {
	IsEnabled(ctx context.Context) (bool, error)
	Enable(ctx context.Context) error
	// DiscoverUnpaired returns nearby devices that are not yet paired.
	// Implementations must return promptly once ctx is done.
	DiscoverUnpaired(ctx context.Context) ([]Device, error)
}

// Link is a serial channel to one device.
type Link interface {
	Connect(ctx context.Context, address string) error
	Write(ctx context.Context, data []byte) error
	Disconnect() error
	IsConnected() bool
}

// Bridge is the full native Bluetooth serial API.
type Bridge interface {
	Radio
	Link
}

// Options configures the platform bridge.
type Options struct {
	Adapter         string        // BlueZ adapter name, "hci0" when empty
	DiscoveryWindow time.Duration // how long one inquiry runs
	RFCOMMChannel   int
	BaudRate        int
	WriteChunk      int // bytes per write
	BytesPerSecond  int // write pacing, 0 disables
	StatusCallback  func(string)
}

func (o Options) withDefaults() Options {
	if o.Adapter == "" {
		o.Adapter = "hci0"
	}
	if o.DiscoveryWindow <= 0 {
		o.DiscoveryWindow = 8 * time.Second
	}
	if o.RFCOMMChannel <= 0 {
		o.RFCOMMChannel = 1
	}
	if o.BaudRate <= 0 {
		o.BaudRate = 115200
	}
	if o.WriteChunk <= 0 {
		o.WriteChunk = 512
	}
	return o
}

func (o Options) status(msg string) {
	if o.StatusCallback != nil {
		o.StatusCallback(msg)
	}
}
