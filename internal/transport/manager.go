// internal/transport/manager.go
package transport

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// State of the coupler session.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
	ReconnectPending
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case ReconnectPending:
		return "reconnect-pending"
	default:
		return "disconnected"
	}
}

// DefaultReconnectDelay is the fixed wait between a lost link and the next
// connect attempt.
const DefaultReconnectDelay = 5 * time.Second

type Config struct {
	Dial           Dialer
	ReconnectDelay time.Duration
	Logger         zerolog.Logger
}

// Manager owns the single session to one coupler.
// At most one request is in flight at a time.
type Manager struct {
	dial  Dialer
	delay time.Duration
	log   zerolog.Logger

	slot chan struct{} // in-flight request token

	mu        sync.Mutex
	state     State
	client    Client
	timer     *time.Timer
	closed    bool
	lastErr   error
	listeners []func(State)
}

func NewManager(cfg Config) *Manager {
	delay := cfg.ReconnectDelay
	if delay <= 0 {
		delay = DefaultReconnectDelay
	}
	return &Manager{
		dial:  cfg.Dial,
		delay: delay,
		log:   cfg.Logger,
		slot:  make(chan struct{}, 1),
	}
}

// OnState registers a listener for state transitions.
// Listeners run on the goroutine that caused the transition.
func (m *Manager) OnState(fn func(State)) {
	m.mu.Lock()
	m.listeners = append(m.listeners, fn)
	m.mu.Unlock()
}

// State returns the current state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// LastError returns the error that caused the most recent disconnect.
func (m *Manager) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// Connect opens the session. A failed attempt schedules a retry after the
// reconnect delay. Calling Connect while connected is a no-op.
func (m *Manager) Connect() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if m.state == Connected || m.state == Connecting {
		m.mu.Unlock()
		return nil
	}
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.setLocked(Connecting)
	m.mu.Unlock()
	m.notify(Connecting)

	c, err := m.dial()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		if c != nil {
			_ = c.Close()
		}
		return ErrClosed
	}

	if err != nil {
		m.lastErr = err
		m.scheduleLocked()
		m.mu.Unlock()
		m.log.Warn().Err(err).Dur("retry_in", m.delay).Msg("connect failed")
		m.notify(ReconnectPending)
		return err
	}

	m.client = c
	m.lastErr = nil
	m.setLocked(Connected)
	m.mu.Unlock()

	m.log.Info().Msg("connected")
	m.notify(Connected)
	return nil
}

// Do runs fn against the live session while holding the in-flight slot.
// A non-exception error from fn drops the session and schedules a reconnect.
func (m *Manager) Do(ctx context.Context, fn func(Client) error) error {
	select {
	case m.slot <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-m.slot }()

	m.mu.Lock()
	c, st, closed := m.client, m.state, m.closed
	m.mu.Unlock()

	if closed {
		return ErrClosed
	}
	if st != Connected || c == nil {
		return ErrNotConnected
	}

	err := fn(c)
	if err != nil && !IsDeviceException(err) {
		m.lost(c, err)
	}
	return err
}

// lost tears down c after a transport failure.
func (m *Manager) lost(c Client, cause error) {
	m.mu.Lock()
	if m.closed || m.client != c {
		m.mu.Unlock()
		return
	}
	m.client = nil
	m.lastErr = cause
	m.setLocked(Disconnected)
	m.mu.Unlock()

	_ = c.Close()
	m.log.Warn().Err(cause).Dur("retry_in", m.delay).Msg("link lost")
	m.notify(Disconnected)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.scheduleLocked()
	m.mu.Unlock()
	m.notify(ReconnectPending)
}

// scheduleLocked arms the reconnect timer. Caller holds mu.
func (m *Manager) scheduleLocked() {
	m.setLocked(ReconnectPending)
	if m.timer != nil {
		return
	}
	m.timer = time.AfterFunc(m.delay, func() {
		m.mu.Lock()
		m.timer = nil
		closed := m.closed
		m.mu.Unlock()
		if closed {
			return
		}
		m.log.Info().Msg("reconnecting")
		_ = m.Connect()
	})
}

func (m *Manager) setLocked(s State) {
	m.state = s
}

func (m *Manager) notify(s State) {
	m.mu.Lock()
	ls := append(([]func(State))(nil), m.listeners...)
	m.mu.Unlock()
	for _, fn := range ls {
		fn(s)
	}
}

// Close stops any pending reconnect and closes the session.
// Safe to call more than once and while a reconnect wait is running.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	c := m.client
	m.client = nil
	m.setLocked(Disconnected)
	m.mu.Unlock()

	var err error
	if c != nil {
		err = c.Close()
	}
	m.notify(Disconnected)
	return err
}
