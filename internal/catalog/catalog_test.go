package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mercado-print/internal/platform"
)

func TestEffectivePermissionsIdempotent(t *testing.T) {
	for _, m := range platform.Manufacturers {
		p := platform.New(platform.Android, m, 31)
		first := Default.EffectivePermissions(p)
		second := Default.EffectivePermissions(p)
		assert.True(t, first.Equal(second), "manufacturer %s", m)
	}
}

func TestEffectivePermissionsMonotonic(t *testing.T) {
	levels := []int{21, 23, 26, 29, 30, 31, 33, 35}
	for _, m := range platform.Manufacturers {
		for i := 1; i < len(levels); i++ {
			lower := Default.EffectivePermissions(platform.New(platform.Android, m, levels[i-1]))
			higher := Default.EffectivePermissions(platform.New(platform.Android, m, levels[i]))
			assert.True(t, higher.Superset(lower), "%s: api %d must cover api %d", m, levels[i], levels[i-1])
		}
	}
}

func TestEffectivePermissionsUnion(t *testing.T) {
	got := Default.EffectivePermissions(platform.New(platform.Android, platform.Honor, 31))
	want := NewSet(
		Bluetooth, BluetoothAdmin, AccessCoarseLocation,
		AccessFineLocation,
		BluetoothScan, BluetoothConnect,
		AccessBackgroundLocation,
	)
	assert.Equal(t, want.Sorted(), got.Sorted())

	old := Default.EffectivePermissions(platform.New(platform.Android, platform.Unknown, 22))
	assert.Equal(t, []Permission{AccessCoarseLocation, Bluetooth, BluetoothAdmin}, old.Sorted())
}

func TestEffectivePermissionsDuplicatesCollapse(t *testing.T) {
	// Xiaomi's extra duplicates the API 23 tier.
	got := Default.EffectivePermissions(platform.New(platform.Android, platform.Xiaomi, 29))
	assert.Len(t, got, 4)
}

func TestEffectivePermissionsDesktopEmpty(t *testing.T) {
	got := Default.EffectivePermissions(platform.New(platform.Linux, platform.Unknown, 0))
	assert.Empty(t, got)
}

func TestRemediationHints(t *testing.T) {
	assert.Contains(t, Default.RemediationHints(platform.Honor), HonorBatteryHint)
	assert.Equal(t, Default.RemediationHints(platform.Unknown), Default.RemediationHints(platform.Manufacturer(99)))

	hints := Default.RemediationHints(platform.Samsung)
	hints[0] = "mutated"
	assert.NotEqual(t, "mutated", Default.RemediationHints(platform.Samsung)[0], "callers get a copy")
}

func TestSoftRequirements(t *testing.T) {
	reqs := Default.SoftRequirements(platform.New(platform.Android, platform.Samsung, 33))
	require.Len(t, reqs, 1)
	assert.Equal(t, LocationServices, reqs[0].Name)
	assert.Contains(t, reqs[0].Hint, "Samsung")

	assert.Empty(t, Default.SoftRequirements(platform.New(platform.Android, platform.Unknown, 33)))
}
