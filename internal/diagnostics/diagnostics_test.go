package diagnostics

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"fyne.io/fyne/v2/test"
	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mercado-print/internal/bluetooth"
	"mercado-print/internal/catalog"
	"mercado-print/internal/discovery"
	"mercado-print/internal/permission"
	"mercado-print/internal/platform"
	"mercado-print/internal/printer"
)

type nopLink struct{ connected bool }

func (l *nopLink) Connect(context.Context, string) error {
	l.connected = true
	return nil
}

func (l *nopLink) Write(context.Context, []byte) error { return nil }

func (l *nopLink) Disconnect() error {
	l.connected = false
	return nil
}

func (l *nopLink) IsConnected() bool { return l.connected }

func TestJournalKeepsLastAttempts(t *testing.T) {
	j := NewJournal(3, time.Minute)
	for i := 1; i <= 5; i++ {
		j.RecordAttempt(i, discovery.AttemptResult{
			ID:    fmt.Sprintf("id-%d", i),
			State: discovery.TimedOut,
			Err:   discovery.ErrScanTimeout,
		})
	}

	got := j.Attempts()

	require.Len(t, got, 3)
	assert.Equal(t, 3, got[0].Attempt)
	assert.Equal(t, 5, got[2].Attempt)
	assert.Equal(t, "timed-out", got[2].State)
	assert.Equal(t, "scan timeout", got[2].Error)
}

func TestJournalSeenDevices(t *testing.T) {
	j := NewJournal(0, 0)
	j.RecordAttempt(1, discovery.AttemptResult{
		State:   discovery.Completed,
		Devices: []bluetooth.Device{{Address: "02", Name: "POS-80"}, {Address: "01"}},
	})
	j.RecordAttempt(2, discovery.AttemptResult{
		State:   discovery.Completed,
		Devices: []bluetooth.Device{{Address: "02", Name: "POS-80 renamed"}},
	})

	seen := j.Seen()

	require.Len(t, seen, 2)
	assert.Equal(t, "POS-80 renamed", seen[0].Name)
	assert.Equal(t, "01", seen[1].Address)
}

func TestJournalPermissions(t *testing.T) {
	j := NewJournal(5, time.Minute)
	_, ok := j.LastPermissions()
	assert.False(t, ok)

	j.RecordAttempt(1, discovery.AttemptResult{State: discovery.Idle, Err: discovery.ErrScanCancelled})
	_, ok = j.LastPermissions()
	assert.False(t, ok, "an attempt cancelled before negotiation carries no result")

	j.RecordPermissions(permission.Result{Denied: []catalog.Permission{catalog.BluetoothScan}})
	res, ok := j.LastPermissions()
	require.True(t, ok)
	assert.False(t, res.Granted)

	j.RecordAttempt(2, discovery.AttemptResult{State: discovery.Completed, Permissions: permission.Result{Granted: true}})
	res, _ = j.LastPermissions()
	assert.True(t, res.Granted)
}

func TestReporterSnapshot(t *testing.T) {
	profile := platform.New(platform.Android, platform.Honor, 31)
	j := NewJournal(5, time.Minute)
	j.RecordAttempt(1, discovery.AttemptResult{
		State:       discovery.Error,
		Err:         errors.New("permission denied: BLUETOOTH_SCAN"),
		Permissions: permission.Result{Denied: []catalog.Permission{catalog.BluetoothScan}, Hints: []string{"hint"}},
	})

	lc := printer.NewLifecycle(&nopLink{})
	require.NoError(t, lc.Connect(context.Background(), "AA:BB"))
	store := printer.NewDefaultStore(test.NewApp().Preferences())
	require.NoError(t, store.Save(bluetooth.Device{Address: "AA:BB", Name: "POS-80"}))
	store.SetAutoReconnect(true)

	rep := NewReporter(profile,
		WithRequirer(permission.NewNegotiator(permission.HostBridge{})),
		WithEngine(discovery.NewEngine(nil, nil)),
		WithJournal(j),
		WithConnection(lc),
		WithDefaultPrinter(store),
	).Snapshot()

	assert.Equal(t, "honor", rep.Profile.Manufacturer)
	assert.True(t, rep.Profile.SpecialHandling)
	assert.Contains(t, rep.Required, string(catalog.AccessBackgroundLocation))
	assert.Contains(t, rep.Required, string(catalog.BluetoothConnect))
	assert.NotEmpty(t, rep.SoftRequirements)
	require.NotNil(t, rep.LastNegotiation)
	assert.Equal(t, []string{string(catalog.BluetoothScan)}, rep.LastNegotiation.Denied)
	assert.Equal(t, "idle", rep.EngineState)
	assert.Len(t, rep.Attempts, 1)
	assert.Equal(t, "connected", rep.Connection)
	assert.Equal(t, "AA:BB", rep.ConnectedTo)
	assert.True(t, rep.LinkOpen)
	require.NotNil(t, rep.DefaultPrinter)
	assert.Equal(t, "POS-80", rep.DefaultPrinter.Name)
	assert.True(t, rep.AutoReconnect)

	text := rep.Text()
	assert.Contains(t, text, "android / honor (API 31)")
	assert.Contains(t, text, "Printer: connected (AA:BB)")
	assert.Contains(t, text, "Default printer: POS-80 [AA:BB]")
	assert.Contains(t, text, "permission denied: BLUETOOTH_SCAN")

	raw, err := rep.JSON()
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, sonic.Unmarshal(raw, &decoded))
	assert.Equal(t, "connected", decoded["connection"])
	assert.Equal(t, true, decoded["auto_reconnect"])
}

func TestReporterMinimal(t *testing.T) {
	rep := NewReporter(platform.New(platform.Linux, platform.Unknown, 0)).Snapshot()

	assert.Empty(t, rep.Required)
	assert.Equal(t, "disconnected", rep.Connection)
	assert.Nil(t, rep.DefaultPrinter)
	assert.NotNil(t, rep.Attempts)

	text := rep.Text()
	assert.Contains(t, text, "  none\n")
	assert.Contains(t, text, "Default printer: none")
}
