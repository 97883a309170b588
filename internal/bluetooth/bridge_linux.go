//go:build linux

package bluetooth

import "context"

type linuxBridge struct {
	*bluezRadio
	*serialLink
}

// NewBridge returns the BlueZ bridge: D-Bus for the radio and discovery,
// an RFCOMM-bound serial port for the link.
func NewBridge(opts Options) Bridge {
	opts = opts.withDefaults()
	resolve := func(ctx context.Context, address string) (string, func() error, error) {
		b, err := establishRFCOMM(ctx, address, opts.RFCOMMChannel, opts.status)
		if err != nil {
			return "", nil, err
		}
		return b.DevicePath, b.Close, nil
	}
	return &linuxBridge{
		bluezRadio: newBluezRadio(opts),
		serialLink: newSerialLink(opts, resolve),
	}
}
