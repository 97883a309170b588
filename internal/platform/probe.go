package platform

import (
	"regexp"
	"runtime"
	"strconv"
	"strings"
)

// androidRelease maps the marketing version to its API level.
var androidRelease = map[string]int{
	"5":    21,
	"5.1":  22,
	"6":    23,
	"7":    24,
	"7.1":  25,
	"8":    26,
	"8.1":  27,
	"9":    28,
	"10":   29,
	"11":   30,
	"12":   31,
	"12.1": 32,
	"13":   33,
	"14":   34,
	"15":   35,
	"16":   36,
}

var androidUA = regexp.MustCompile(`(?i)android\s+([0-9]+(?:\.[0-9]+)?)(?:\.[0-9]+)*\s*;\s*([^;)]*)`)

// ProbeUserAgent derives a profile from an Android-style user agent such as
// "Mozilla/5.0 (Linux; Android 12; HONOR ANY-LX1) ...". Anything it cannot
// read falls back to Default values.
func ProbeUserAgent(ua string) DeviceProfile {
	m := androidUA.FindStringSubmatch(ua)
	if m == nil {
		manufacturer := ParseManufacturer(brandHint(ua))
		return New(Android, manufacturer, DefaultAPILevel)
	}

	api := apiLevel(m[1])
	model := strings.TrimSpace(m[2])
	// Some WebViews put "wv" or "K" where the model would be.
	manufacturer := ParseManufacturer(model)
	if manufacturer == Unknown {
		manufacturer = ParseManufacturer(brandHint(ua))
	}
	return New(Android, manufacturer, api)
}

// ProbeHost derives a profile for the desktop build from the Go runtime.
func ProbeHost() DeviceProfile {
	var os OS
	switch runtime.GOOS {
	case "android":
		return Default()
	case "linux":
		os = Linux
	case "windows":
		os = Windows
	case "darwin":
		os = Darwin
	default:
		os = Other
	}
	return New(os, Unknown, 0)
}

func apiLevel(release string) int {
	if api, ok := androidRelease[release]; ok {
		return api
	}
	major, _, _ := strings.Cut(release, ".")
	if api, ok := androidRelease[major]; ok {
		return api
	}
	if n, err := strconv.Atoi(major); err == nil && n > 16 {
		// Newer than the table: assume one level per release.
		return androidRelease["16"] + n - 16
	}
	return DefaultAPILevel
}

// brandHint looks for a vendor name anywhere in the string; browsers on
// some vendors append it outside the model slot.
func brandHint(ua string) string {
	l := strings.ToLower(ua)
	for _, m := range Manufacturers {
		if m == Unknown {
			continue
		}
		if strings.Contains(l, m.String()) {
			return m.String()
		}
	}
	return ""
}
