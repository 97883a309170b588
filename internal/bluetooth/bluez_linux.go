//go:build linux

package bluetooth

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	dbus "github.com/godbus/dbus/v5"
)

const (
	bluezService    = "org.bluez"
	adapterIface    = "org.bluez.Adapter1"
	deviceIface     = "org.bluez.Device1"
	objManagerIface = "org.freedesktop.DBus.ObjectManager"
)

type managedObjects map[dbus.ObjectPath]map[string]map[string]dbus.Variant

// bluezRadio drives the local adapter through BlueZ on the system bus.
type bluezRadio struct {
	opts Options

	mu  sync.Mutex
	bus *dbus.Conn
}

func newBluezRadio(opts Options) *bluezRadio {
	return &bluezRadio{opts: opts.withDefaults()}
}

func (r *bluezRadio) adapterPath() dbus.ObjectPath {
	return dbus.ObjectPath("/org/bluez/" + r.opts.Adapter)
}

// conn connects to the system bus if not yet connected.
func (r *bluezRadio) conn() (*dbus.Conn, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.bus != nil {
		return r.bus, nil
	}
	c, err := dbus.SystemBus()
	if err != nil {
		return nil, fmt.Errorf("bluez: connect system bus: %w", err)
	}
	r.bus = c
	return c, nil
}

func (r *bluezRadio) adapter() (dbus.BusObject, error) {
	bus, err := r.conn()
	if err != nil {
		return nil, err
	}
	return bus.Object(bluezService, r.adapterPath()), nil
}

func (r *bluezRadio) IsEnabled(ctx context.Context) (bool, error) {
	obj, err := r.adapter()
	if err != nil {
		return false, err
	}
	v, err := obj.GetProperty(adapterIface + ".Powered")
	if err != nil {
		if strings.Contains(err.Error(), "No such") || strings.Contains(err.Error(), "UnknownObject") {
			return false, ErrNoAdapter
		}
		return false, fmt.Errorf("bluez: read Powered: %w", err)
	}
	powered, ok := v.Value().(bool)
	if !ok {
		return false, fmt.Errorf("bluez: unexpected Powered value %v", v)
	}
	return powered, nil
}

func (r *bluezRadio) Enable(ctx context.Context) error {
	obj, err := r.adapter()
	if err != nil {
		return err
	}
	if err := obj.SetProperty(adapterIface+".Powered", dbus.MakeVariant(true)); err != nil {
		return fmt.Errorf("bluez: power on %s: %w", r.opts.Adapter, err)
	}
	return nil
}

// DiscoverUnpaired runs one BR/EDR inquiry for the discovery window and
// returns the unpaired devices BlueZ knows about afterwards.
func (r *bluezRadio) DiscoverUnpaired(ctx context.Context) ([]Device, error) {
	bus, err := r.conn()
	if err != nil {
		return nil, err
	}
	adapter := bus.Object(bluezService, r.adapterPath())

	// Classic only; printers speak SPP, not GATT.
	filter := map[string]interface{}{"Transport": "bredr"}
	if call := adapter.CallWithContext(ctx, adapterIface+".SetDiscoveryFilter", 0, filter); call.Err != nil {
		r.opts.status(fmt.Sprintf("discovery filter not applied: %v", call.Err))
	}

	if call := adapter.CallWithContext(ctx, adapterIface+".StartDiscovery", 0); call.Err != nil {
		return nil, fmt.Errorf("bluez: StartDiscovery: %w", call.Err)
	}
	defer func() {
		// ctx may already be done; stopping must still happen.
		stopCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		adapter.CallWithContext(stopCtx, adapterIface+".StopDiscovery", 0)
	}()

	t := time.NewTimer(r.opts.DiscoveryWindow)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-t.C:
	}

	var objs managedObjects
	root := bus.Object(bluezService, "/")
	if err := root.CallWithContext(ctx, objManagerIface+".GetManagedObjects", 0).Store(&objs); err != nil {
		return nil, fmt.Errorf("bluez: GetManagedObjects: %w", err)
	}
	return unpairedDevices(objs, r.adapterPath(), time.Now()), nil
}

// unpairedDevices extracts the unpaired Device1 objects below adapter,
// ordered by object path.
func unpairedDevices(objs managedObjects, adapter dbus.ObjectPath, seen time.Time) []Device {
	prefix := string(adapter) + "/"
	paths := make([]string, 0, len(objs))
	for p := range objs {
		if strings.HasPrefix(string(p), prefix) {
			paths = append(paths, string(p))
		}
	}
	sort.Strings(paths)

	var out []Device
	for _, p := range paths {
		props, ok := objs[dbus.ObjectPath(p)][deviceIface]
		if !ok {
			continue
		}
		if paired, _ := variantBool(props["Paired"]); paired {
			continue
		}
		addr, _ := variantString(props["Address"])
		if addr == "" {
			addr = macFromPath(dbus.ObjectPath(p))
		}
		name, _ := variantString(props["Name"])
		connected, _ := variantBool(props["Connected"])
		out = append(out, Device{
			Address:   addr,
			Name:      name,
			Connected: connected,
			LastSeen:  seen,
		})
	}
	return out
}

func variantString(v dbus.Variant) (string, bool) {
	s, ok := v.Value().(string)
	return s, ok
}

func variantBool(v dbus.Variant) (bool, bool) {
	b, ok := v.Value().(bool)
	return b, ok
}

// macFromPath converts /org/bluez/hci0/dev_AA_BB_CC_DD_EE_FF to AA:BB:CC:DD:EE:FF.
func macFromPath(p dbus.ObjectPath) string {
	s := string(p)
	i := strings.LastIndex(s, "/dev_")
	if i < 0 {
		return ""
	}
	return strings.ReplaceAll(s[i+len("/dev_"):], "_", ":")
}
