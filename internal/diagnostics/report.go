package diagnostics

import (
	"fmt"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"mercado-print/internal/bluetooth"
	"mercado-print/internal/catalog"
	"mercado-print/internal/discovery"
	"mercado-print/internal/platform"
	"mercado-print/internal/printer"
)

// Source interfaces; the concrete pipeline types satisfy them.
type (
	Requirer interface {
		Required(profile platform.DeviceProfile) catalog.Set
	}
	EngineState interface {
		State() discovery.State
	}
	Connection interface {
		State() printer.State
		Address() string
		LinkOpen() bool
		Port() string
	}
	DefaultPrinter interface {
		Get() (bluetooth.Device, bool, error)
		AutoReconnect() bool
	}
)

// Reporter builds read-only snapshots of the pipeline.
type Reporter struct {
	profile platform.DeviceProfile
	catalog *catalog.Catalog
	perms   Requirer
	engine  EngineState
	journal *Journal
	conn    Connection
	store   DefaultPrinter
}

type Option func(*Reporter)

// WithRequirer adds the required permission set to reports.
func WithRequirer(r Requirer) Option {
	return func(rp *Reporter) { rp.perms = r }
}

// WithEngine adds the discovery engine state.
func WithEngine(e EngineState) Option {
	return func(rp *Reporter) { rp.engine = e }
}

// WithJournal adds attempts, seen devices and the last negotiation.
func WithJournal(j *Journal) Option {
	return func(rp *Reporter) { rp.journal = j }
}

// WithConnection adds the printer connection state.
func WithConnection(c Connection) Option {
	return func(rp *Reporter) { rp.conn = c }
}

// WithDefaultPrinter adds the saved default printer and auto-reconnect flag.
func WithDefaultPrinter(s DefaultPrinter) Option {
	return func(rp *Reporter) { rp.store = s }
}

// NewReporter creates a reporter for profile. Sources left unset report
// their zero state.
func NewReporter(profile platform.DeviceProfile, opts ...Option) *Reporter {
	r := &Reporter{profile: profile, catalog: catalog.Default}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type ProfileInfo struct {
	OS                       string `json:"os"`
	Manufacturer             string `json:"manufacturer"`
	APILevel                 int    `json:"api_level"`
	ScanTimeoutMs            int64  `json:"scan_timeout_ms"`
	RetryDelayMs             int64  `json:"retry_delay_ms"`
	RequiresLocationServices bool   `json:"requires_location_services"`
	SpecialHandling          bool   `json:"special_handling"`
}

type NegotiationInfo struct {
	Granted bool     `json:"granted"`
	Denied  []string `json:"denied,omitempty"`
	Hints   []string `json:"hints,omitempty"`
}

// Report is a point-in-time view of the pipeline.
type Report struct {
	GeneratedAt         time.Time          `json:"generated_at"`
	Profile             ProfileInfo        `json:"profile"`
	Required            []string           `json:"required_permissions"`
	SoftRequirements    []string           `json:"soft_requirements,omitempty"`
	LastNegotiation     *NegotiationInfo   `json:"last_negotiation,omitempty"`
	EngineState         string             `json:"engine_state"`
	Attempts            []AttemptRecord    `json:"attempts"`
	SeenDevices         []bluetooth.Device `json:"seen_devices"`
	Connection          string             `json:"connection"`
	ConnectedTo         string             `json:"connected_to,omitempty"`
	LinkOpen            bool               `json:"link_open"`
	Port                string             `json:"port,omitempty"`
	DefaultPrinter      *bluetooth.Device  `json:"default_printer,omitempty"`
	DefaultPrinterError string             `json:"default_printer_error,omitempty"`
	AutoReconnect       bool               `json:"auto_reconnect"`
}

// Snapshot gathers the current state from every configured source.
func (r *Reporter) Snapshot() Report {
	p := r.profile
	rep := Report{
		GeneratedAt: time.Now(),
		Profile: ProfileInfo{
			OS:                       p.OS.String(),
			Manufacturer:             p.Manufacturer.String(),
			APILevel:                 p.APILevel,
			ScanTimeoutMs:            p.ScanTimeout.Milliseconds(),
			RetryDelayMs:             p.RetryDelay.Milliseconds(),
			RequiresLocationServices: p.RequiresLocationServices,
			SpecialHandling:          p.SpecialHandling,
		},
		EngineState: discovery.Idle.String(),
		Connection:  printer.Disconnected.String(),
		Attempts:    []AttemptRecord{},
		SeenDevices: []bluetooth.Device{},
	}

	var required catalog.Set
	if r.perms != nil {
		required = r.perms.Required(p)
	} else {
		required = r.catalog.EffectivePermissions(p)
	}
	rep.Required = permNames(required.Sorted())
	for _, s := range r.catalog.SoftRequirements(p) {
		rep.SoftRequirements = append(rep.SoftRequirements, s.Name+": "+s.Hint)
	}

	if r.engine != nil {
		rep.EngineState = r.engine.State().String()
	}
	if r.journal != nil {
		rep.Attempts = r.journal.Attempts()
		if seen := r.journal.Seen(); len(seen) > 0 {
			rep.SeenDevices = seen
		}
		if res, ok := r.journal.LastPermissions(); ok {
			rep.LastNegotiation = &NegotiationInfo{
				Granted: res.Granted,
				Denied:  permNames(res.Denied),
				Hints:   res.Hints,
			}
		}
	}
	if r.conn != nil {
		rep.Connection = r.conn.State().String()
		rep.ConnectedTo = r.conn.Address()
		rep.LinkOpen = r.conn.LinkOpen()
		rep.Port = r.conn.Port()
	}
	if r.store != nil {
		d, ok, err := r.store.Get()
		switch {
		case err != nil:
			rep.DefaultPrinterError = err.Error()
		case ok:
			rep.DefaultPrinter = &d
		}
		rep.AutoReconnect = r.store.AutoReconnect()
	}
	return rep
}

func permNames(perms []catalog.Permission) []string {
	if len(perms) == 0 {
		return nil
	}
	out := make([]string, len(perms))
	for i, p := range perms {
		out[i] = string(p)
	}
	return out
}

// JSON encodes the report for copying into a support ticket.
func (rep Report) JSON() ([]byte, error) {
	return sonic.ConfigStd.MarshalIndent(rep, "", "  ")
}

// Text renders the report for the diagnostics dialog.
func (rep Report) Text() string {
	var b strings.Builder

	pr := rep.Profile
	fmt.Fprintf(&b, "Device: %s / %s", pr.OS, pr.Manufacturer)
	if pr.APILevel > 0 {
		fmt.Fprintf(&b, " (API %d)", pr.APILevel)
	}
	fmt.Fprintf(&b, "\nScan timeout: %dms, retry delay: %dms\n", pr.ScanTimeoutMs, pr.RetryDelayMs)
	if pr.SpecialHandling {
		b.WriteString("Extended retry budget: yes\n")
	}

	b.WriteString("\nRequired permissions:\n")
	if len(rep.Required) == 0 {
		b.WriteString("  none\n")
	}
	for _, p := range rep.Required {
		fmt.Fprintf(&b, "  %s\n", p)
	}
	for _, s := range rep.SoftRequirements {
		fmt.Fprintf(&b, "  (soft) %s\n", s)
	}

	if n := rep.LastNegotiation; n != nil {
		if n.Granted {
			b.WriteString("Last negotiation: granted\n")
		} else {
			fmt.Fprintf(&b, "Last negotiation: denied %s\n", strings.Join(n.Denied, ", "))
		}
	}

	fmt.Fprintf(&b, "\nDiscovery: %s\n", rep.EngineState)
	for _, a := range rep.Attempts {
		fmt.Fprintf(&b, "  #%d %s %d device(s) in %s", a.Attempt, a.State, a.Devices, a.Duration.Round(time.Millisecond))
		if a.Error != "" {
			fmt.Fprintf(&b, " - %s", a.Error)
		}
		b.WriteByte('\n')
	}

	if len(rep.SeenDevices) > 0 {
		b.WriteString("\nRecently seen:\n")
		for _, d := range rep.SeenDevices {
			fmt.Fprintf(&b, "  %s [%s]\n", d.DisplayName(), d.Address)
		}
	}

	fmt.Fprintf(&b, "\nPrinter: %s", rep.Connection)
	if rep.ConnectedTo != "" {
		fmt.Fprintf(&b, " (%s)", rep.ConnectedTo)
	}
	if rep.Port != "" {
		fmt.Fprintf(&b, " via %s", rep.Port)
	}
	if rep.Connection == printer.Connected.String() && !rep.LinkOpen {
		b.WriteString(", link closed")
	}
	b.WriteByte('\n')
	switch {
	case rep.DefaultPrinter != nil:
		fmt.Fprintf(&b, "Default printer: %s [%s]\n", rep.DefaultPrinter.DisplayName(), rep.DefaultPrinter.Address)
	case rep.DefaultPrinterError != "":
		fmt.Fprintf(&b, "Default printer: unreadable (%s)\n", rep.DefaultPrinterError)
	default:
		b.WriteString("Default printer: none\n")
	}
	fmt.Fprintf(&b, "Auto-reconnect: %t\n", rep.AutoReconnect)
	return b.String()
}
