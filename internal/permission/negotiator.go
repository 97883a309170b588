// Package permission reconciles the permissions the catalog requires with
// what the OS has granted, requesting the missing ones in small batches.
package permission

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"mercado-print/internal/catalog"
	"mercado-print/internal/logging"
	"mercado-print/internal/platform"
)

const (
	DefaultBatchSize  = 3
	DefaultBatchPause = 500 * time.Millisecond
)

// Hints used when the negotiation itself fails rather than the user denying.
const (
	HintBridgeFailure = "The permission service did not respond; restart the app and try again"
	HintCancelled     = "Permission request was interrupted"
)

// Result is the outcome of one negotiation.
type Result struct {
	Granted bool
	Denied  []catalog.Permission
	Hints   []string
}

// Err converts a denial into a *DeniedError, or nil when granted.
func (r Result) Err() error {
	if r.Granted {
		return nil
	}
	return &DeniedError{Permissions: r.Denied, Hints: r.Hints}
}

// DeniedError reports required permissions that were not granted.
type DeniedError struct {
	Permissions []catalog.Permission
	Hints       []string
}

func (e *DeniedError) Error() string {
	if len(e.Permissions) == 0 {
		return "permission denied"
	}
	names := make([]string, len(e.Permissions))
	for i, p := range e.Permissions {
		names[i] = shortName(p)
	}
	return "permission denied: " + strings.Join(names, ", ")
}

// IsDenied reports whether err is or wraps a *DeniedError.
func IsDenied(err error) bool {
	var d *DeniedError
	return errors.As(err, &d)
}

func shortName(p catalog.Permission) string {
	s := string(p)
	if i := strings.LastIndexByte(s, '.'); i >= 0 {
		return s[i+1:]
	}
	return s
}

// Negotiator requests missing permissions in bounded batches.
type Negotiator struct {
	bridge     Bridge
	catalog    *catalog.Catalog
	batchSize  int
	batchPause time.Duration
	log        *log.Logger
}

// Option configures a Negotiator.
type Option func(*Negotiator)

// WithBatchSize sets how many permissions are requested at once.
func WithBatchSize(size int) Option {
	return func(n *Negotiator) {
		if size > 0 {
			n.batchSize = size
		}
	}
}

// WithBatchPause sets the pause between request batches.
func WithBatchPause(d time.Duration) Option {
	return func(n *Negotiator) {
		if d >= 0 {
			n.batchPause = d
		}
	}
}

// WithCatalog replaces the default capability catalog.
func WithCatalog(c *catalog.Catalog) Option {
	return func(n *Negotiator) {
		if c != nil {
			n.catalog = c
		}
	}
}

// WithLogger overrides the component logger.
func WithLogger(l *log.Logger) Option {
	return func(n *Negotiator) {
		if l != nil {
			n.log = l
		}
	}
}

// NewNegotiator creates a negotiator over the given bridge.
func NewNegotiator(bridge Bridge, opts ...Option) *Negotiator {
	n := &Negotiator{
		bridge:     bridge,
		catalog:    catalog.Default,
		batchSize:  DefaultBatchSize,
		batchPause: DefaultBatchPause,
		log:        logging.For("permission"),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Required returns the effective permission set for the profile.
func (n *Negotiator) Required(profile platform.DeviceProfile) catalog.Set {
	return n.catalog.EffectivePermissions(profile)
}

// Negotiate checks and, if needed, requests every required permission.
// It never returns an error: bridge failures become a denial with a hint.
func (n *Negotiator) Negotiate(ctx context.Context, profile platform.DeviceProfile) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			n.log.Errorf("permission bridge panicked: %v", r)
			res = Result{
				Granted: false,
				Denied:  n.Required(profile).Sorted(),
				Hints:   append([]string{HintBridgeFailure}, n.catalog.RemediationHints(profile.Manufacturer)...),
			}
		}
	}()

	required := n.Required(profile).Sorted()
	missing := n.missing(ctx, required)
	if len(missing) == 0 {
		n.log.Debugf("all %d permissions already granted", len(required))
		return Result{Granted: true, Hints: n.softHints(ctx, profile)}
	}

	n.log.Infof("requesting %d missing permissions in batches of %d", len(missing), n.batchSize)
	for start := 0; start < len(missing); start += n.batchSize {
		if start > 0 && !n.pause(ctx) {
			return n.denied(profile, missing[start:], HintCancelled)
		}

		end := min(start+n.batchSize, len(missing))
		batch := missing[start:end]
		granted, err := n.bridge.Request(ctx, batch)
		if err != nil {
			n.log.Warnf("permission request failed: %v", err)
			return n.denied(profile, missing[start:], HintBridgeFailure)
		}
		if !granted {
			n.log.Warnf("permission batch %d denied: %v", start/n.batchSize+1, batch)
			return n.denied(profile, missing[start:], "")
		}
	}

	return Result{Granted: true, Hints: n.softHints(ctx, profile)}
}

// missing checks each permission; a failed check counts as not granted.
func (n *Negotiator) missing(ctx context.Context, required []catalog.Permission) []catalog.Permission {
	var out []catalog.Permission
	for _, p := range required {
		ok, err := n.check(ctx, p)
		if err != nil {
			n.log.Warnf("check %s failed, treating as not granted: %v", shortName(p), err)
			ok = false
		}
		if !ok {
			out = append(out, p)
		}
	}
	return out
}

// check queries one permission, turning a bridge panic into an error.
func (n *Negotiator) check(ctx context.Context, p catalog.Permission) (ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			ok, err = false, fmt.Errorf("permission bridge panic: %v", r)
		}
	}()
	return n.bridge.Check(ctx, p)
}

func (n *Negotiator) pause(ctx context.Context) bool {
	if n.batchPause <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(n.batchPause)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (n *Negotiator) denied(profile platform.DeviceProfile, perms []catalog.Permission, extra string) Result {
	hints := n.catalog.RemediationHints(profile.Manufacturer)
	if extra != "" {
		hints = append([]string{extra}, hints...)
	}
	denied := make([]catalog.Permission, len(perms))
	copy(denied, perms)
	return Result{Granted: false, Denied: denied, Hints: hints}
}

// softHints evaluates informational requirements. Failing to probe one is
// reported as unmet; it never turns into a denial.
func (n *Negotiator) softHints(ctx context.Context, profile platform.DeviceProfile) []string {
	var hints []string
	for _, req := range n.catalog.SoftRequirements(profile) {
		if req.Name != catalog.LocationServices {
			continue
		}
		ls, ok := n.bridge.(LocationServices)
		if !ok {
			continue
		}
		on, err := ls.LocationEnabled(ctx)
		if err != nil {
			n.log.Debugf("location services probe failed: %v", err)
		}
		if err != nil || !on {
			hints = append(hints, req.Hint)
		}
	}
	return hints
}

// String renders the result for logs and diagnostics.
func (r Result) String() string {
	if r.Granted {
		return fmt.Sprintf("granted (%d hints)", len(r.Hints))
	}
	return fmt.Sprintf("denied %d permission(s)", len(r.Denied))
}
