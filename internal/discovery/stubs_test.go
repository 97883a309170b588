package discovery

import (
	"context"
	"sync"
	"time"

	"mercado-print/internal/bluetooth"
	"mercado-print/internal/permission"
	"mercado-print/internal/platform"
)

type stubNegotiator struct {
	mu    sync.Mutex
	res   permission.Result
	calls int
	trace *[]string
}

func granted() *stubNegotiator {
	return &stubNegotiator{res: permission.Result{Granted: true}}
}

func (s *stubNegotiator) Negotiate(context.Context, platform.DeviceProfile) permission.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.trace != nil {
		*s.trace = append(*s.trace, "negotiate")
	}
	return s.res
}

// stubRadio scripts the native Bluetooth bridge. scan receives the 1-based
// call number.
type stubRadio struct {
	mu         sync.Mutex
	enabled    bool
	enabledErr error
	enableErr  error
	scan       func(ctx context.Context, call int) ([]bluetooth.Device, error)
	trace      *[]string

	enables   int
	scans     int
	scanEnded chan struct{}
}

func (r *stubRadio) record(s string) {
	if r.trace != nil {
		*r.trace = append(*r.trace, s)
	}
}

func (r *stubRadio) IsEnabled(context.Context) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("is-enabled")
	return r.enabled, r.enabledErr
}

func (r *stubRadio) Enable(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("enable")
	r.enables++
	if r.enableErr != nil {
		return r.enableErr
	}
	r.enabled = true
	return nil
}

func (r *stubRadio) DiscoverUnpaired(ctx context.Context) ([]bluetooth.Device, error) {
	r.mu.Lock()
	r.record("discover")
	r.scans++
	call := r.scans
	scan := r.scan
	ended := r.scanEnded
	r.mu.Unlock()

	if ended != nil {
		defer close(ended)
	}
	if scan == nil {
		return nil, nil
	}
	return scan(ctx, call)
}

func (r *stubRadio) scanCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.scans
}

// block waits for ctx or d, whichever comes first, then returns devices.
func block(ctx context.Context, d time.Duration, devices ...bluetooth.Device) ([]bluetooth.Device, error) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-t.C:
		return devices, nil
	}
}

func named(name string) bluetooth.Device {
	return bluetooth.Device{Address: "addr-" + name, Name: name}
}

func testProfile(timeout, retryDelay time.Duration) platform.DeviceProfile {
	return platform.Default().WithScanTimeout(timeout).WithRetryDelay(retryDelay)
}
