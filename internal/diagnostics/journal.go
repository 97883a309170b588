// Package diagnostics collects what the printer pipeline did so support
// can see it. Nothing here feeds back into the pipeline.
package diagnostics

import (
	"sync"
	"time"

	ttl "github.com/FloatTech/ttl"

	"mercado-print/internal/bluetooth"
	"mercado-print/internal/discovery"
	"mercado-print/internal/permission"
)

const (
	DefaultJournalSize = 20
	DefaultSeenTTL     = 5 * time.Minute
)

// AttemptRecord is one discovery attempt as kept in the journal.
type AttemptRecord struct {
	Attempt  int           `json:"attempt"`
	ID       string        `json:"id"`
	State    string        `json:"state"`
	Devices  int           `json:"devices"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration_ns"`
	At       time.Time     `json:"at"`
}

// Journal keeps the most recent discovery attempts and the devices seen
// in the last few minutes.
type Journal struct {
	size int
	seen *ttl.Cache[string, bluetooth.Device]

	mu       sync.Mutex
	attempts []AttemptRecord
	perms    *permission.Result
}

// NewJournal keeps the last size attempts and remembers devices for seenTTL.
func NewJournal(size int, seenTTL time.Duration) *Journal {
	if size <= 0 {
		size = DefaultJournalSize
	}
	if seenTTL <= 0 {
		seenTTL = DefaultSeenTTL
	}
	return &Journal{
		size: size,
		seen: ttl.NewCache[string, bluetooth.Device](seenTTL),
	}
}

// RecordAttempt has the signature of discovery.WithAttemptHook.
func (j *Journal) RecordAttempt(attempt int, res discovery.AttemptResult) {
	rec := AttemptRecord{
		Attempt:  attempt,
		ID:       res.ID,
		State:    res.State.String(),
		Devices:  len(res.Devices),
		Duration: res.Duration,
		At:       time.Now(),
	}
	if res.Err != nil {
		rec.Error = res.Err.Error()
	}

	for _, d := range res.Devices {
		j.seen.Set(d.Address, d)
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	j.attempts = append(j.attempts, rec)
	if over := len(j.attempts) - j.size; over > 0 {
		j.attempts = append([]AttemptRecord(nil), j.attempts[over:]...)
	}
	if res.Permissions.Granted || len(res.Permissions.Denied) > 0 {
		p := res.Permissions
		j.perms = &p
	}
}

// RecordPermissions stores the outcome of a negotiation run outside a
// discovery attempt.
func (j *Journal) RecordPermissions(res permission.Result) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.perms = &res
}

// Attempts returns the journal, oldest first.
func (j *Journal) Attempts() []AttemptRecord {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]AttemptRecord(nil), j.attempts...)
}

// LastPermissions returns the most recent negotiation outcome.
func (j *Journal) LastPermissions() (permission.Result, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.perms == nil {
		return permission.Result{}, false
	}
	return *j.perms, true
}

// Seen returns the devices reported recently, in display order.
func (j *Journal) Seen() []bluetooth.Device {
	var out []bluetooth.Device
	_ = j.seen.Range(func(_ string, d bluetooth.Device) error {
		out = append(out, d)
		return nil
	})
	discovery.SortDevices(out)
	return out
}
