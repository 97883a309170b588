//go:build !linux && !windows

package bluetooth

import "context"

type unsupportedBridge struct{}

// NewBridge returns a bridge whose every operation fails with ErrNotSupported.
func NewBridge(Options) Bridge {
	return unsupportedBridge{}
}

func (unsupportedBridge) IsEnabled(context.Context) (bool, error) { return false, ErrNotSupported }

func (unsupportedBridge) Enable(context.Context) error { return ErrNotSupported }

func (unsupportedBridge) DiscoverUnpaired(context.Context) ([]Device, error) {
	return nil, ErrNotSupported
}

func (unsupportedBridge) Connect(context.Context, string) error { return ErrNotSupported }

func (unsupportedBridge) Write(context.Context, []byte) error { return ErrNotSupported }

func (unsupportedBridge) Disconnect() error { return nil }

func (unsupportedBridge) IsConnected() bool { return false }
