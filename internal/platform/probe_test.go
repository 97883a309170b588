package platform

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestProbeUserAgent(t *testing.T) {
	tests := []struct {
		name         string
		ua           string
		api          int
		manufacturer Manufacturer
	}{
		{"honor", "Mozilla/5.0 (Linux; Android 12; HONOR ANY-LX1) AppleWebKit/537.36", 31, Honor},
		{"samsung model prefix", "Mozilla/5.0 (Linux; Android 13; SM-A536B) AppleWebKit/537.36", 33, Samsung},
		{"huawei", "Mozilla/5.0 (Linux; Android 10; HUAWEI P30) AppleWebKit/537.36", 29, Huawei},
		{"redmi", "Mozilla/5.0 (Linux; Android 11; Redmi Note 10) AppleWebKit/537.36", 30, Xiaomi},
		{"patch release", "Mozilla/5.0 (Linux; Android 8.1.0; Moto G) AppleWebKit/537.36", 27, Unknown},
		{"brand outside model slot", "Mozilla/5.0 (Linux; Android 9; K) HuaweiBrowser/12.0", 28, Huawei},
		{"future release", "Mozilla/5.0 (Linux; Android 18; Pixel 11)", 38, Unknown},
		{"not android", "Mozilla/5.0 (X11; Linux x86_64)", DefaultAPILevel, Unknown},
		{"empty", "", DefaultAPILevel, Unknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := ProbeUserAgent(tt.ua)
			assert.Equal(t, Android, p.OS)
			assert.Equal(t, tt.api, p.APILevel)
			assert.Equal(t, tt.manufacturer, p.Manufacturer)
		})
	}
}

func TestDefaultProfile(t *testing.T) {
	p := Default()
	assert.Equal(t, Android, p.OS)
	assert.Equal(t, Unknown, p.Manufacturer)
	assert.Equal(t, DefaultAPILevel, p.APILevel)
	assert.False(t, p.SpecialHandling)
	assert.Positive(t, p.ScanTimeout)
}

func TestQuirksApplied(t *testing.T) {
	honor := New(Android, Honor, 31)
	assert.True(t, honor.SpecialHandling)
	assert.True(t, honor.RequiresLocationServices)
	assert.Equal(t, 20*time.Second, honor.ScanTimeout)

	desktop := New(Linux, Samsung, 0)
	assert.False(t, desktop.RequiresLocationServices, "location services only apply on android")
}

func TestWithOverridesCopy(t *testing.T) {
	p := Default()
	q := p.WithScanTimeout(time.Second).WithRetryDelay(0)

	assert.Equal(t, time.Second, q.ScanTimeout)
	assert.Zero(t, q.RetryDelay)
	assert.NotEqual(t, p.ScanTimeout, q.ScanTimeout, "original must be unchanged")
	assert.Equal(t, p.ScanTimeout, p.WithScanTimeout(0).ScanTimeout)
}

func TestParseManufacturer(t *testing.T) {
	assert.Equal(t, Samsung, ParseManufacturer("Galaxy S21"))
	assert.Equal(t, Honor, ParseManufacturer(" HONOR "))
	assert.Equal(t, Unknown, ParseManufacturer("Nokia"))
	for _, m := range Manufacturers {
		assert.Equal(t, m, ParseManufacturer(m.String()))
	}
}
