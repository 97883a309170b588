// Package platform describes the device the client runs on.
//
// A DeviceProfile is derived once from a best-effort probe and then passed
// explicitly through the discovery pipeline. It is a value type; the With*
// helpers return modified copies.
package platform

import (
	"fmt"
	"strings"
	"time"
)

// OS identifies the operating system family.
type OS int

const (
	Other OS = iota
	Android
	Linux
	Windows
	Darwin
)

func (o OS) String() string {
	switch o {
	case Android:
		return "android"
	case Linux:
		return "linux"
	case Windows:
		return "windows"
	case Darwin:
		return "darwin"
	default:
		return "other"
	}
}

// Manufacturer is the closed set of vendors with known Bluetooth quirks.
type Manufacturer int

const (
	Unknown Manufacturer = iota
	Honor
	Samsung
	Huawei
	Xiaomi
)

// Manufacturers lists every known vendor, Unknown included.
var Manufacturers = []Manufacturer{Unknown, Honor, Samsung, Huawei, Xiaomi}

func (m Manufacturer) String() string {
	switch m {
	case Honor:
		return "honor"
	case Samsung:
		return "samsung"
	case Huawei:
		return "huawei"
	case Xiaomi:
		return "xiaomi"
	default:
		return "unknown"
	}
}

// ParseManufacturer maps a brand or model hint to a Manufacturer.
// Anything unrecognised is Unknown.
func ParseManufacturer(hint string) Manufacturer {
	h := strings.ToLower(strings.TrimSpace(hint))
	switch {
	case h == "":
		return Unknown
	case strings.Contains(h, "honor"):
		return Honor
	case strings.Contains(h, "huawei"):
		return Huawei
	case strings.Contains(h, "samsung"), strings.HasPrefix(h, "sm-"), strings.HasPrefix(h, "galaxy"):
		return Samsung
	case strings.Contains(h, "xiaomi"), strings.HasPrefix(h, "redmi"), strings.HasPrefix(h, "poco"), strings.HasPrefix(h, "mi "):
		return Xiaomi
	default:
		return Unknown
	}
}

// Quirk is the per-vendor tuning applied when a profile is derived.
type Quirk struct {
	ScanTimeout              time.Duration
	RetryDelay               time.Duration
	RequiresLocationServices bool
	SpecialHandling          bool
}

var quirks = map[Manufacturer]Quirk{
	Unknown: {ScanTimeout: 12 * time.Second, RetryDelay: 2 * time.Second},
	Honor:   {ScanTimeout: 20 * time.Second, RetryDelay: 3 * time.Second, RequiresLocationServices: true, SpecialHandling: true},
	Huawei:  {ScanTimeout: 20 * time.Second, RetryDelay: 3 * time.Second, RequiresLocationServices: true, SpecialHandling: true},
	Samsung: {ScanTimeout: 15 * time.Second, RetryDelay: 2 * time.Second, RequiresLocationServices: true},
	Xiaomi:  {ScanTimeout: 18 * time.Second, RetryDelay: 2500 * time.Millisecond, RequiresLocationServices: true},
}

// Quirks returns the tuning for m.
func Quirks(m Manufacturer) Quirk {
	if q, ok := quirks[m]; ok {
		return q
	}
	return quirks[Unknown]
}

// DeviceProfile is the immutable description of the running device.
type DeviceProfile struct {
	OS                       OS
	Manufacturer             Manufacturer
	APILevel                 int // Android API level, 0 elsewhere
	ScanTimeout              time.Duration
	RetryDelay               time.Duration
	RequiresLocationServices bool
	SpecialHandling          bool
}

// DefaultAPILevel is assumed when the probe cannot read the Android version.
const DefaultAPILevel = 29

// New builds a profile for the given platform, applying manufacturer quirks.
func New(os OS, m Manufacturer, apiLevel int) DeviceProfile {
	q := Quirks(m)
	p := DeviceProfile{
		OS:              os,
		Manufacturer:    m,
		APILevel:        apiLevel,
		ScanTimeout:     q.ScanTimeout,
		RetryDelay:      q.RetryDelay,
		SpecialHandling: q.SpecialHandling,
	}
	// Location services only gate classic discovery on Android.
	if os == Android {
		p.RequiresLocationServices = q.RequiresLocationServices
	}
	return p
}

// Default is the safe profile used when probing is inconclusive.
func Default() DeviceProfile {
	return New(Android, Unknown, DefaultAPILevel)
}

// WithScanTimeout returns a copy with the scan timeout replaced. Non-positive values are ignored.
func (p DeviceProfile) WithScanTimeout(d time.Duration) DeviceProfile {
	if d > 0 {
		p.ScanTimeout = d
	}
	return p
}

// WithRetryDelay returns a copy with the retry delay replaced. Negative values are ignored.
func (p DeviceProfile) WithRetryDelay(d time.Duration) DeviceProfile {
	if d >= 0 {
		p.RetryDelay = d
	}
	return p
}

// IsAndroid reports whether runtime permissions apply.
func (p DeviceProfile) IsAndroid() bool {
	return p.OS == Android
}

func (p DeviceProfile) String() string {
	if p.OS == Android {
		return fmt.Sprintf("android api %d (%s)", p.APILevel, p.Manufacturer)
	}
	return fmt.Sprintf("%s (%s)", p.OS, p.Manufacturer)
}
