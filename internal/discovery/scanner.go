package discovery

import (
	"context"
	"sync"

	"github.com/charmbracelet/log"

	"mercado-print/internal/bluetooth"
	"mercado-print/internal/logging"
	"mercado-print/internal/platform"
)

// Searcher is the retrying discovery loop.
type Searcher interface {
	Discover(ctx context.Context, profile platform.DeviceProfile) ([]bluetooth.Device, error)
}

// Outcome is the result of a successful scan. Devices holds everything the
// radio reported; Printers the filtered, ordered subset.
type Outcome struct {
	Devices  []bluetooth.Device
	Printers []bluetooth.Device
}

// Scanner keeps at most one search in flight: starting a scan cancels the
// running one and waits for it to unwind before touching the radio.
type Scanner struct {
	search Searcher
	log    *log.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewScanner creates a scanner over the retrying search.
func NewScanner(search Searcher) *Scanner {
	return &Scanner{search: search, log: logging.For("scanner")}
}

// Scan searches for printers. A scan that finds devices but no likely
// printer returns the outcome together with ErrNoDevicesFound.
func (s *Scanner) Scan(ctx context.Context, profile platform.DeviceProfile) (Outcome, error) {
	scanCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	s.mu.Lock()
	for s.cancel != nil {
		s.log.Info("cancelling previous scan")
		s.cancel()
		prev := s.done
		s.mu.Unlock()
		<-prev
		s.mu.Lock()
	}
	s.cancel, s.done = cancel, done
	s.mu.Unlock()

	defer func() {
		cancel()
		s.mu.Lock()
		if s.done == done {
			s.cancel, s.done = nil, nil
		}
		s.mu.Unlock()
		close(done)
	}()

	devices, err := s.search.Discover(scanCtx, profile)
	if err != nil {
		return Outcome{}, err
	}

	out := Outcome{Devices: devices, Printers: FilterLikelyPrinters(devices)}
	if len(out.Printers) == 0 {
		return out, ErrNoDevicesFound
	}
	return out, nil
}

// Cancel stops the running scan, if any. The scan returns ErrScanCancelled.
func (s *Scanner) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
}

// Busy reports whether a scan is in flight.
func (s *Scanner) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}
