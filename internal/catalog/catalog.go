// Package catalog holds the static knowledge of which runtime permissions
// Bluetooth printer discovery needs, per Android API tier and per
// manufacturer, plus the guidance shown when they are missing.
//
// Everything here is pure data and lookup; nothing performs I/O.
package catalog

import (
	"sort"

	"mercado-print/internal/platform"
)

// Permission names an OS permission. The value is opaque to the pipeline.
type Permission string

const (
	Bluetooth                Permission = "android.permission.BLUETOOTH"
	BluetoothAdmin           Permission = "android.permission.BLUETOOTH_ADMIN"
	BluetoothScan            Permission = "android.permission.BLUETOOTH_SCAN"
	BluetoothConnect         Permission = "android.permission.BLUETOOTH_CONNECT"
	AccessCoarseLocation     Permission = "android.permission.ACCESS_COARSE_LOCATION"
	AccessFineLocation       Permission = "android.permission.ACCESS_FINE_LOCATION"
	AccessBackgroundLocation Permission = "android.permission.ACCESS_BACKGROUND_LOCATION"
)

// Set is an unordered collection of permissions.
type Set map[Permission]struct{}

// NewSet builds a set from the given permissions; duplicates collapse.
func NewSet(perms ...Permission) Set {
	s := make(Set, len(perms))
	for _, p := range perms {
		s[p] = struct{}{}
	}
	return s
}

// Add inserts every permission of other into s.
func (s Set) Add(other Set) {
	for p := range other {
		s[p] = struct{}{}
	}
}

// Contains reports whether p is in the set.
func (s Set) Contains(p Permission) bool {
	_, ok := s[p]
	return ok
}

// Superset reports whether s contains every element of other.
func (s Set) Superset(other Set) bool {
	for p := range other {
		if !s.Contains(p) {
			return false
		}
	}
	return true
}

// Equal compares two sets ignoring order.
func (s Set) Equal(other Set) bool {
	return len(s) == len(other) && s.Superset(other)
}

// Sorted returns the elements in lexical order.
func (s Set) Sorted() []Permission {
	out := make([]Permission, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Tier is a group of permissions required from MinAPI upwards.
type Tier struct {
	MinAPI int
	Perms  Set
}

// SoftRequirement is an informational precondition, such as location
// services being switched on. Unmet ones become hints, never denials.
type SoftRequirement struct {
	Name string
	Hint string
}

// LocationServices is the soft requirement checked on vendors that hide
// nearby devices while location is off.
const LocationServices = "location-services"

// Catalog is the permission profile plus manufacturer guidance.
type Catalog struct {
	Base              Set
	VersionGated      []Tier
	ManufacturerExtra map[platform.Manufacturer]Set

	hints        map[platform.Manufacturer][]string
	locationHint map[platform.Manufacturer]string
}

// Default is the catalog for the supported Android releases.
var Default = &Catalog{
	Base: NewSet(Bluetooth, BluetoothAdmin, AccessCoarseLocation),
	VersionGated: []Tier{
		{MinAPI: 23, Perms: NewSet(AccessFineLocation)},
		{MinAPI: 31, Perms: NewSet(BluetoothScan, BluetoothConnect)},
	},
	ManufacturerExtra: map[platform.Manufacturer]Set{
		platform.Honor:  NewSet(AccessBackgroundLocation),
		platform.Huawei: NewSet(AccessBackgroundLocation),
		platform.Xiaomi: NewSet(AccessFineLocation),
	},
	hints:        remediation,
	locationHint: locationHints,
}

// EffectivePermissions returns base ∪ every tier at or below the profile's
// API level ∪ the manufacturer extras. Platforms without runtime
// permissions get an empty set.
func (c *Catalog) EffectivePermissions(p platform.DeviceProfile) Set {
	out := make(Set)
	if !p.IsAndroid() {
		return out
	}
	out.Add(c.Base)
	for _, tier := range c.VersionGated {
		if tier.MinAPI <= p.APILevel {
			out.Add(tier.Perms)
		}
	}
	out.Add(c.ManufacturerExtra[p.Manufacturer])
	return out
}

// RemediationHints returns the guidance shown after a denial.
func (c *Catalog) RemediationHints(m platform.Manufacturer) []string {
	hints, ok := c.hints[m]
	if !ok || len(hints) == 0 {
		hints = c.hints[platform.Unknown]
	}
	out := make([]string, len(hints))
	copy(out, hints)
	return out
}

// SoftRequirements lists the informational preconditions for the profile.
func (c *Catalog) SoftRequirements(p platform.DeviceProfile) []SoftRequirement {
	if !p.RequiresLocationServices {
		return nil
	}
	hint, ok := c.locationHint[p.Manufacturer]
	if !ok {
		hint = c.locationHint[platform.Unknown]
	}
	return []SoftRequirement{{Name: LocationServices, Hint: hint}}
}
