package discovery

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mercado-print/internal/bluetooth"
	"mercado-print/internal/catalog"
	"mercado-print/internal/permission"
	"mercado-print/internal/platform"
)

// scripted replays a fixed list of attempt results, repeating the last one.
type scripted struct {
	mu      sync.Mutex
	results []AttemptResult
	calls   []time.Time
}

func (s *scripted) DiscoverOnce(context.Context, platform.DeviceProfile) AttemptResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, time.Now())
	i := len(s.calls) - 1
	if i >= len(s.results) {
		i = len(s.results) - 1
	}
	return s.results[i]
}

func (s *scripted) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func timedOut() AttemptResult {
	return AttemptResult{State: TimedOut, Err: ErrScanTimeout}
}

func TestRetryStopsAtFirstDevices(t *testing.T) {
	eng := &scripted{results: []AttemptResult{
		timedOut(),
		{State: Completed, Devices: []bluetooth.Device{named("POS-80")}},
		{State: Completed, Devices: []bluetooth.Device{named("never reached")}},
	}}
	var seen []int
	r := NewRetrier(eng, WithAttemptHook(func(n int, _ AttemptResult) { seen = append(seen, n) }))

	devices, err := r.Discover(context.Background(), testProfile(time.Second, 0))

	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.Equal(t, "POS-80", devices[0].Name)
	assert.Equal(t, 2, eng.count())
	assert.Equal(t, []int{1, 2}, seen)
}

func TestRetryStopsOnAnyNonEmptyScan(t *testing.T) {
	// Unnamed devices still end the loop; filtering happens afterwards.
	eng := &scripted{results: []AttemptResult{
		{State: Completed, Devices: []bluetooth.Device{{Address: "00:11"}}},
	}}
	devices, err := NewRetrier(eng).Discover(context.Background(), testProfile(time.Second, 0))

	require.NoError(t, err)
	assert.Len(t, devices, 1)
	assert.Equal(t, 1, eng.count())
}

func TestRetryExhaustionReturnsLastError(t *testing.T) {
	eng := &scripted{results: []AttemptResult{
		{State: Completed},
		{State: Error, Err: ErrScanFailed},
		timedOut(),
	}}
	devices, err := NewRetrier(eng).Discover(context.Background(), testProfile(time.Second, 0))

	assert.Nil(t, devices)
	assert.ErrorIs(t, err, ErrScanTimeout)
	assert.Equal(t, DefaultMaxAttempts, eng.count())
}

func TestRetryExhaustionAfterEmptyScans(t *testing.T) {
	eng := &scripted{results: []AttemptResult{{State: Completed}}}
	devices, err := NewRetrier(eng).Discover(context.Background(), testProfile(time.Second, 0))

	assert.NoError(t, err)
	assert.Empty(t, devices)
	assert.Equal(t, DefaultMaxAttempts, eng.count())
}

func TestRetrySpecialHandlingBudget(t *testing.T) {
	eng := &scripted{results: []AttemptResult{timedOut()}}
	r := NewRetrier(eng)
	profile := platform.New(platform.Android, platform.Honor, 31).WithRetryDelay(0)

	_, err := r.Discover(context.Background(), profile)

	assert.ErrorIs(t, err, ErrScanTimeout)
	assert.Equal(t, DefaultSpecialMaxAttempts, eng.count())
	assert.Equal(t, DefaultSpecialMaxAttempts, r.Budget(profile))
	assert.Equal(t, DefaultMaxAttempts, r.Budget(platform.Default()))
}

func TestRetryCustomBudget(t *testing.T) {
	eng := &scripted{results: []AttemptResult{timedOut()}}
	r := NewRetrier(eng, WithMaxAttempts(2, 0))

	_, _ = r.Discover(context.Background(), testProfile(time.Second, 0))

	assert.Equal(t, 2, eng.count())
	assert.Equal(t, DefaultSpecialMaxAttempts, r.specialMaxAttempts, "non-positive keeps the default")
}

func TestRetryDoesNotRepeatUserActionErrors(t *testing.T) {
	denied := permission.Result{Denied: []catalog.Permission{catalog.BluetoothConnect}}.Err()

	for name, res := range map[string]AttemptResult{
		"permission denied": {State: Error, Err: denied},
		"radio unavailable": {State: Error, Err: ErrRadioUnavailable},
		"not supported":     {State: Error, Err: bluetooth.ErrNotSupported},
	} {
		t.Run(name, func(t *testing.T) {
			eng := &scripted{results: []AttemptResult{res}}
			_, err := NewRetrier(eng).Discover(context.Background(), testProfile(time.Second, 0))

			assert.Equal(t, res.Err, err)
			assert.Equal(t, 1, eng.count())
		})
	}
}

func TestRetryCancelledDuringBackoff(t *testing.T) {
	eng := &scripted{results: []AttemptResult{timedOut()}}
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(30*time.Millisecond, cancel)

	start := time.Now()
	_, err := NewRetrier(eng).Discover(ctx, testProfile(time.Second, time.Minute))

	assert.ErrorIs(t, err, ErrScanCancelled)
	assert.Equal(t, 1, eng.count(), "no attempt after cancellation")
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestRetryCancelledBeforeStart(t *testing.T) {
	eng := &scripted{results: []AttemptResult{timedOut()}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewRetrier(eng).Discover(ctx, testProfile(time.Second, 0))

	assert.ErrorIs(t, err, ErrScanCancelled)
	assert.Zero(t, eng.count())
}

func TestRetryLinearBackoff(t *testing.T) {
	const delay = 40 * time.Millisecond
	eng := &scripted{results: []AttemptResult{timedOut()}}

	_, _ = NewRetrier(eng).Discover(context.Background(), testProfile(time.Second, delay))

	require.Len(t, eng.calls, 3)
	assert.GreaterOrEqual(t, eng.calls[1].Sub(eng.calls[0]), delay)
	assert.GreaterOrEqual(t, eng.calls[2].Sub(eng.calls[1]), 2*delay)
}

func TestRetryTimeoutThenSuccess(t *testing.T) {
	radio := &stubRadio{
		enabled: true,
		scan: func(ctx context.Context, call int) ([]bluetooth.Device, error) {
			if call == 1 {
				return block(ctx, 200*time.Millisecond, named("too slow"))
			}
			return []bluetooth.Device{named("POS-80")}, nil
		},
	}
	var states []State
	var mu sync.Mutex
	hook := func(_ int, res AttemptResult) {
		mu.Lock()
		defer mu.Unlock()
		states = append(states, res.State)
	}
	r := NewRetrier(NewEngine(granted(), radio), WithAttemptHook(hook))

	devices, err := r.Discover(context.Background(), testProfile(100*time.Millisecond, 10*time.Millisecond))

	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.Equal(t, "POS-80", devices[0].Name)
	assert.Equal(t, []State{TimedOut, Completed}, states)
	assert.Equal(t, 2, radio.scanCount())
}

func TestSleep(t *testing.T) {
	assert.True(t, sleep(context.Background(), 0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, sleep(ctx, time.Minute))
	assert.False(t, sleep(ctx, 0))
}
