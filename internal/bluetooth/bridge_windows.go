//go:build windows

package bluetooth

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/sys/windows/registry"
)

// On Windows, paired SPP devices appear as COM ports automatically, so the
// radio is assumed on and discovery lists the Bluetooth COM ports. The
// device address is the COM port name.
type windowsRadio struct{}

func (windowsRadio) IsEnabled(context.Context) (bool, error) { return true, nil }

func (windowsRadio) Enable(context.Context) error { return nil }

func (windowsRadio) DiscoverUnpaired(ctx context.Context) ([]Device, error) {
	ports, err := bluetoothCOMPorts()
	if err != nil {
		return nil, fmt.Errorf("read SERIALCOMM: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	now := time.Now()
	names := make([]string, 0, len(ports))
	for name := range ports {
		names = append(names, name)
	}
	sort.Strings(names)

	devices := make([]Device, 0, len(names))
	for _, name := range names {
		port := ports[name]
		devices = append(devices, Device{
			Address:  port,
			Name:     fmt.Sprintf("Bluetooth serial printer (%s)", port),
			LastSeen: now,
		})
	}
	return devices, nil
}

// bluetoothCOMPorts reads Bluetooth COM port mappings from registry
func bluetoothCOMPorts() (map[string]string, error) {
	ports := make(map[string]string)

	key, err := registry.OpenKey(registry.LOCAL_MACHINE, `HARDWARE\DEVICEMAP\SERIALCOMM`, registry.READ)
	if err != nil {
		return nil, err
	}
	defer key.Close()

	names, err := key.ReadValueNames(-1)
	if err != nil {
		return nil, err
	}

	for _, name := range names {
		val, _, err := key.GetStringValue(name)
		if err != nil {
			continue
		}
		lower := strings.ToLower(name)
		if strings.Contains(lower, "bth") || strings.Contains(lower, "bluetooth") {
			ports[name] = val
		}
	}
	return ports, nil
}

// comPath validates a COM port name; ports above 9 need the \\.\COM10 form.
func comPath(port string) (string, error) {
	if !strings.HasPrefix(strings.ToUpper(port), "COM") {
		return "", fmt.Errorf("invalid COM port: %s", port)
	}
	if len(port) > 4 {
		return `\\.\` + port, nil
	}
	return port, nil
}

type windowsBridge struct {
	windowsRadio
	*serialLink
}

// NewBridge returns the Windows bridge over Bluetooth COM ports.
func NewBridge(opts Options) Bridge {
	opts = opts.withDefaults()
	resolve := func(_ context.Context, address string) (string, func() error, error) {
		path, err := comPath(address)
		if err != nil {
			return "", nil, err
		}
		opts.status(fmt.Sprintf("Using port %s...", address))
		return path, nil, nil
	}
	return &windowsBridge{serialLink: newSerialLink(opts, resolve)}
}
