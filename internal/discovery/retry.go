package discovery

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"

	"mercado-print/internal/bluetooth"
	"mercado-print/internal/logging"
	"mercado-print/internal/platform"
)

const (
	DefaultMaxAttempts        = 3
	DefaultSpecialMaxAttempts = 5
)

// Discoverer runs one discovery attempt.
type Discoverer interface {
	DiscoverOnce(ctx context.Context, profile platform.DeviceProfile) AttemptResult
}

// Retrier repeats discovery attempts with a linearly growing delay until
// one returns devices or the attempt budget is spent.
type Retrier struct {
	engine             Discoverer
	maxAttempts        int
	specialMaxAttempts int
	onAttempt          func(attempt int, res AttemptResult)
	log                *log.Logger
}

// RetryOption configures a Retrier.
type RetryOption func(*Retrier)

// WithMaxAttempts sets the budget for ordinary devices and for devices
// flagged for special handling.
func WithMaxAttempts(normal, special int) RetryOption {
	return func(r *Retrier) {
		if normal > 0 {
			r.maxAttempts = normal
		}
		if special > 0 {
			r.specialMaxAttempts = special
		}
	}
}

// WithAttemptHook observes every finished attempt, e.g. for diagnostics.
func WithAttemptHook(fn func(attempt int, res AttemptResult)) RetryOption {
	return func(r *Retrier) { r.onAttempt = fn }
}

// WithRetryLogger overrides the component logger.
func WithRetryLogger(l *log.Logger) RetryOption {
	return func(r *Retrier) {
		if l != nil {
			r.log = l
		}
	}
}

// NewRetrier wraps engine with the default attempt budgets.
func NewRetrier(engine Discoverer, opts ...RetryOption) *Retrier {
	r := &Retrier{
		engine:             engine,
		maxAttempts:        DefaultMaxAttempts,
		specialMaxAttempts: DefaultSpecialMaxAttempts,
		log:                logging.For("retry"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Budget returns the number of attempts allowed for the profile.
func (r *Retrier) Budget(profile platform.DeviceProfile) int {
	if profile.SpecialHandling {
		return r.specialMaxAttempts
	}
	return r.maxAttempts
}

// Discover returns the devices of the first attempt that finds any.
//
// Permission denials, an unavailable radio and cancellation end the loop at
// once. When the budget runs out the last attempt's error is returned; it
// is nil if that attempt completed with no devices.
func (r *Retrier) Discover(ctx context.Context, profile platform.DeviceProfile) ([]bluetooth.Device, error) {
	budget := r.Budget(profile)
	var last AttemptResult

	for attempt := 1; attempt <= budget; attempt++ {
		if ctx.Err() != nil {
			return nil, ErrScanCancelled
		}

		last = r.engine.DiscoverOnce(ctx, profile)
		if r.onAttempt != nil {
			r.onAttempt(attempt, last)
		}

		if errors.Is(last.Err, ErrScanCancelled) || ctx.Err() != nil {
			return nil, ErrScanCancelled
		}
		if len(last.Devices) > 0 {
			r.log.Infof("attempt %d/%d found %d device(s)", attempt, budget, len(last.Devices))
			return last.Devices, nil
		}
		if !autoRetryable(last.Err) {
			return nil, last.Err
		}

		if last.Err != nil {
			r.log.Warnf("attempt %d/%d failed: %v", attempt, budget, last.Err)
		} else {
			r.log.Infof("attempt %d/%d found nothing", attempt, budget)
		}

		if attempt < budget {
			delay := profile.RetryDelay * time.Duration(attempt)
			if !sleep(ctx, delay) {
				return nil, ErrScanCancelled
			}
		}
	}
	return nil, last.Err
}

// sleep waits for d; false means ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
