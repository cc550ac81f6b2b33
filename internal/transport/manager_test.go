package transport

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// ---- fakes ----

type fakeClient struct {
	mu     sync.Mutex
	closed bool
}

func (c *fakeClient) ReadCoils(addr, qty uint16) ([]bool, error) {
	return make([]bool, qty), nil
}
func (c *fakeClient) ReadDiscreteInputs(addr, qty uint16) ([]bool, error) {
	return make([]bool, qty), nil
}
func (c *fakeClient) ReadInputRegisters(addr, qty uint16) ([]uint16, error) {
	return make([]uint16, qty), nil
}
func (c *fakeClient) WriteSingleCoil(addr uint16, value bool) error { return nil }
func (c *fakeClient) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}
func (c *fakeClient) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

type fakeDialer struct {
	mu      sync.Mutex
	fail    bool
	dials   int
	clients []*fakeClient
}

func (d *fakeDialer) Dial() (Client, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	if d.fail {
		return nil, errors.New("connection refused")
	}
	c := &fakeClient{}
	d.clients = append(d.clients, c)
	return c, nil
}

func (d *fakeDialer) setFail(v bool) {
	d.mu.Lock()
	d.fail = v
	d.mu.Unlock()
}

func (d *fakeDialer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func newTestManager(d *fakeDialer, delay time.Duration) *Manager {
	return NewManager(Config{Dial: d.Dial, ReconnectDelay: delay, Logger: zerolog.Nop()})
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// ---- tests ----

func TestManager_ConnectAndDo(t *testing.T) {
	d := &fakeDialer{}
	m := newTestManager(d, time.Hour)
	defer m.Close()

	if err := m.Do(context.Background(), func(Client) error { return nil }); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected before connect, got %v", err)
	}

	if err := m.Connect(); err != nil {
		t.Fatalf("connect err=%v", err)
	}
	if m.State() != Connected {
		t.Fatalf("state=%s", m.State())
	}

	// idempotent
	if err := m.Connect(); err != nil {
		t.Fatalf("second connect err=%v", err)
	}
	if d.count() != 1 {
		t.Fatalf("expected 1 dial, got %d", d.count())
	}

	var got []uint16
	err := m.Do(context.Background(), func(c Client) error {
		var err error
		got, err = c.ReadInputRegisters(0, 4)
		return err
	})
	if err != nil || len(got) != 4 {
		t.Fatalf("do err=%v got=%v", err, got)
	}
}

func TestManager_TransportErrorReconnects(t *testing.T) {
	d := &fakeDialer{}
	m := newTestManager(d, 10*time.Millisecond)
	defer m.Close()

	var states []State
	var smu sync.Mutex
	m.OnState(func(s State) {
		smu.Lock()
		states = append(states, s)
		smu.Unlock()
	})

	if err := m.Connect(); err != nil {
		t.Fatalf("connect err=%v", err)
	}

	boom := errors.New("broken pipe")
	if err := m.Do(context.Background(), func(Client) error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	if !d.clients[0].isClosed() {
		t.Fatalf("lost session was not closed")
	}
	if !errors.Is(m.LastError(), boom) {
		t.Fatalf("last error=%v", m.LastError())
	}

	waitFor(t, "reconnect", func() bool { return m.State() == Connected && d.count() == 2 })

	smu.Lock()
	defer smu.Unlock()
	want := []State{Connecting, Connected, Disconnected, ReconnectPending, Connecting, Connected}
	if len(states) != len(want) {
		t.Fatalf("states=%v want %v", states, want)
	}
	for i := range want {
		if states[i] != want[i] {
			t.Fatalf("states=%v want %v", states, want)
		}
	}
}

func TestManager_DeviceExceptionKeepsLink(t *testing.T) {
	d := &fakeDialer{}
	m := newTestManager(d, 10*time.Millisecond)
	defer m.Close()

	_ = m.Connect()

	exc := &DeviceError{FunctionCode: 4, ExceptionCode: 2}
	err := m.Do(context.Background(), func(Client) error { return exc })
	if !errors.Is(err, ErrDeviceException) {
		t.Fatalf("expected device exception, got %v", err)
	}
	if m.State() != Connected {
		t.Fatalf("state=%s after device exception", m.State())
	}
	if d.clients[0].isClosed() {
		t.Fatalf("session closed after device exception")
	}
}

func TestManager_ConnectFailureRetries(t *testing.T) {
	d := &fakeDialer{fail: true}
	m := newTestManager(d, 10*time.Millisecond)
	defer m.Close()

	if err := m.Connect(); err == nil {
		t.Fatalf("expected connect error")
	}
	if m.State() != ReconnectPending {
		t.Fatalf("state=%s", m.State())
	}

	d.setFail(false)
	waitFor(t, "retry", func() bool { return m.State() == Connected })
	if d.count() < 2 {
		t.Fatalf("expected a retry, dials=%d", d.count())
	}
}

func TestManager_CloseDuringReconnectWait(t *testing.T) {
	d := &fakeDialer{fail: true}
	m := newTestManager(d, 20*time.Millisecond)

	_ = m.Connect()
	if err := m.Close(); err != nil {
		t.Fatalf("close err=%v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("second close err=%v", err)
	}

	time.Sleep(60 * time.Millisecond)
	if d.count() != 1 {
		t.Fatalf("reconnect ran after close, dials=%d", d.count())
	}
	if err := m.Connect(); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestManager_SingleInFlight(t *testing.T) {
	d := &fakeDialer{}
	m := newTestManager(d, time.Hour)
	defer m.Close()
	_ = m.Connect()

	var inFlight, peak int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = m.Do(context.Background(), func(Client) error {
				n := atomic.AddInt32(&inFlight, 1)
				for {
					p := atomic.LoadInt32(&peak)
					if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				atomic.AddInt32(&inFlight, -1)
				return nil
			})
		}()
	}
	wg.Wait()

	if peak != 1 {
		t.Fatalf("peak in-flight=%d want 1", peak)
	}
}

func TestManager_DoHonoursContext(t *testing.T) {
	d := &fakeDialer{}
	m := newTestManager(d, time.Hour)
	defer m.Close()
	_ = m.Connect()

	release := make(chan struct{})
	go func() {
		_ = m.Do(context.Background(), func(Client) error {
			<-release
			return nil
		})
	}()
	waitFor(t, "slot taken", func() bool { return len(m.slot) == 1 })

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := m.Do(ctx, func(Client) error { return nil }); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	close(release)
}

func TestManager_NotifiesEveryListener(t *testing.T) {
	d := &fakeDialer{}
	m := newTestManager(d, time.Hour)
	defer m.Close()

	var mu sync.Mutex
	var first, second []State
	m.OnState(func(s State) {
		mu.Lock()
		first = append(first, s)
		mu.Unlock()
		// registering from inside a listener must not deadlock
		m.OnState(func(State) {})
	})
	m.OnState(func(s State) {
		mu.Lock()
		second = append(second, s)
		mu.Unlock()
	})

	if err := m.Connect(); err != nil {
		t.Fatalf("connect err=%v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	want := []State{Connecting, Connected}
	for _, got := range [][]State{first, second} {
		if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
			t.Fatalf("states=%v want %v", got, want)
		}
	}
}
