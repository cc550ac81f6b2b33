// internal/status/snapshot.go
package status

import (
	"context"
	"sync"
	"time"
)

// Snapshot is the engine health as exposed to the API and metrics.
// It holds current state only, no history.
type Snapshot struct {
	Health         uint16            `json:"health"`
	HealthName     string            `json:"healthName"`
	Link           string            `json:"link"`
	LastError      string            `json:"lastError,omitempty"`
	LastErrorCode  uint16            `json:"lastErrorCode"`
	SecondsInError uint16            `json:"secondsInError"`
	Cycles         uint64            `json:"cycles"`
	LastCycle      time.Time         `json:"lastCycle,omitempty"`
	CardErrors     map[string]string `json:"cardErrors,omitempty"`
}

// Tracker owns the snapshot. Poll outcomes and link changes feed it;
// a 1 Hz ticker counts seconds spent in error.
type Tracker struct {
	mu   sync.Mutex
	snap Snapshot
}

func NewTracker() *Tracker {
	return &Tracker{snap: Snapshot{Health: HealthUnknown, Link: "disconnected"}}
}

// CardFailure is one failed card read, named by card topic.
type CardFailure struct {
	Card string
	Err  error
}

// Cycle records one poll cycle. failures are in configuration order; the
// first one becomes the reported last error.
func (t *Tracker) Cycle(at time.Time, failures []CardFailure) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.snap.Health == HealthDisabled {
		return
	}

	t.snap.Cycles++
	t.snap.LastCycle = at

	if len(failures) == 0 {
		t.recoverLocked()
		return
	}

	t.snap.CardErrors = make(map[string]string, len(failures))
	for _, f := range failures {
		t.snap.CardErrors[f.Card] = f.Err.Error()
	}
	t.failLocked(failures[0].Err)
}

// Link records a connection state change. err is the cause of a drop.
func (t *Tracker) Link(state string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.snap.Health == HealthDisabled {
		return
	}
	t.snap.Link = state
	if err != nil {
		t.failLocked(err)
	}
}

// Disable marks the engine closed. Terminal.
func (t *Tracker) Disable() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snap.Health = HealthDisabled
	t.snap.Link = "disconnected"
}

// Second ticks the in-error counter while not OK.
func (t *Tracker) Second() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.snap.Health == HealthOK || t.snap.Health == HealthDisabled {
		return
	}
	if t.snap.SecondsInError < 65535 {
		t.snap.SecondsInError++
	}
}

// Run drives Second at 1 Hz until ctx is done.
func (t *Tracker) Run(ctx context.Context) {
	secTicker := time.NewTicker(time.Second)
	defer secTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-secTicker.C:
			t.Second()
		}
	}
}

// Snapshot returns a copy of the current state.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.snap
	s.HealthName = HealthName(s.Health)
	if t.snap.CardErrors != nil {
		s.CardErrors = make(map[string]string, len(t.snap.CardErrors))
		for k, v := range t.snap.CardErrors {
			s.CardErrors[k] = v
		}
	}
	return s
}

func (t *Tracker) recoverLocked() {
	t.snap.Health = HealthOK
	t.snap.LastError = ""
	t.snap.LastErrorCode = 0
	t.snap.SecondsInError = 0
	t.snap.CardErrors = nil
}

// failLocked enters the error state. seconds_in_error increments on the
// 1 Hz ticker only.
func (t *Tracker) failLocked(err error) {
	t.snap.Health = HealthError
	t.snap.LastError = err.Error()
	t.snap.LastErrorCode = ErrorCode(err)
}
