package discovery

import (
	"regexp"
	"sort"
	"strings"

	"mercado-print/internal/bluetooth"
)

// printerNames matches names used by common receipt printers and the
// generic terms vendors put in their Bluetooth names.
var printerNames = []*regexp.Regexp{
	regexp.MustCompile(`(?i)print`),
	regexp.MustCompile(`(?i)\bpos\b`),
	regexp.MustCompile(`(?i)thermal`),
	regexp.MustCompile(`(?i)receipt`),
	regexp.MustCompile(`(?i)^xp-`),
	regexp.MustCompile(`(?i)epson|\btm-[a-z0-9]`),
	regexp.MustCompile(`(?i)bixolon|\bspp-r`),
	regexp.MustCompile(`(?i)sunmi|innerprinter`),
	regexp.MustCompile(`(?i)goojprt|zjiang|munbyn|hprt|citizen|rongta`),
	regexp.MustCompile(`(?i)\bmtp-|\bmpt-|\brpp\d`),
	regexp.MustCompile(`(?i)\b(58|80)\s?mm\b`),
}

// IsLikelyPrinter reports whether d's name looks like a receipt printer.
// Unnamed devices never match.
func IsLikelyPrinter(d bluetooth.Device) bool {
	if !d.HasName() {
		return false
	}
	for _, re := range printerNames {
		if re.MatchString(d.Name) {
			return true
		}
	}
	return false
}

// FilterLikelyPrinters returns the likely printers in devices ordered by
// name (case-insensitive), then raw name, then address. The input is not
// modified and the output only depends on the set of devices given.
func FilterLikelyPrinters(devices []bluetooth.Device) []bluetooth.Device {
	out := make([]bluetooth.Device, 0, len(devices))
	for _, d := range devices {
		if IsLikelyPrinter(d) {
			out = append(out, d)
		}
	}
	SortDevices(out)
	return out
}

// SortDevices orders devices for display in place. Unnamed devices sort
// after named ones.
func SortDevices(devices []bluetooth.Device) {
	sort.SliceStable(devices, func(i, j int) bool {
		a, b := devices[i], devices[j]
		if a.HasName() != b.HasName() {
			return a.HasName()
		}
		al, bl := strings.ToLower(a.Name), strings.ToLower(b.Name)
		if al != bl {
			return al < bl
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.Address < b.Address
	})
}
