// internal/engine/engine.go
package engine

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/tamzrod/coupler-io/internal/cards"
	"github.com/tamzrod/coupler-io/internal/config"
	"github.com/tamzrod/coupler-io/internal/decode"
	"github.com/tamzrod/coupler-io/internal/logging"
	"github.com/tamzrod/coupler-io/internal/metrics"
	"github.com/tamzrod/coupler-io/internal/poller"
	"github.com/tamzrod/coupler-io/internal/status"
	"github.com/tamzrod/coupler-io/internal/transport"
	"github.com/tamzrod/coupler-io/internal/writer"
)

// Sink receives every reading the engine emits.
type Sink interface {
	Publish(r decode.Reading) error
}

type Option func(*Engine)

// WithDialer replaces the driver selected by coupler.driver.
func WithDialer(d transport.Dialer) Option {
	return func(e *Engine) { e.dial = d }
}

// WithSink adds a reading sink.
func WithSink(s Sink) Option {
	return func(e *Engine) { e.sinks = append(e.sinks, s) }
}

type channelKey struct {
	card    int
	channel int
}

// Engine is one coupler instance: one session, one poll loop, one write path.
type Engine struct {
	id  string
	cfg *config.Config
	log zerolog.Logger

	registry   *cards.Registry
	configErrs []error

	dial     transport.Dialer
	manager  *transport.Manager
	poller   *poller.Poller
	writer   *writer.Dispatcher
	tracker  *status.Tracker
	metrics  *metrics.Metrics
	gatherer *prometheus.Registry
	sinks    []Sink

	mu     sync.RWMutex // guards latest and cond
	latest map[channelKey]decode.Reading
	cond   *conditioner

	runMu   sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	closed  bool
	closeMu sync.Once
}

// New builds the registry and every component. Cards that fail to resolve
// are logged and left out; the rest of the engine is built regardless.
func New(cfg *config.Config, log zerolog.Logger, opts ...Option) (*Engine, error) {
	if cfg == nil {
		return nil, errors.New("engine: nil config")
	}

	e := &Engine{
		id:     uuid.NewString(),
		cfg:    cfg,
		log:    log,
		latest: make(map[channelKey]decode.Reading),
		cond:   newConditioner(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.log = e.log.With().Str("instance", e.id).Str("endpoint", cfg.Coupler.Endpoint).Logger()

	// ---- registry ----
	reg, errs := cards.Build(cfg.Cards, cards.Defaults{
		WordOrder: cfg.Coupler.WordOrder,
		PollRate:  ms(cfg.Poll.IntervalMs),
		Base:      cfg.Coupler.Base,
	})
	for _, err := range errs {
		e.log.Warn().Err(err).Msg("card excluded")
	}
	e.registry = reg
	e.configErrs = errs
	if reg.Len() == 0 {
		return nil, errors.New("engine: no usable cards")
	}

	// ---- observability ----
	e.gatherer = prometheus.NewRegistry()
	e.metrics = metrics.New(e.gatherer)
	e.tracker = status.NewTracker()

	// ---- transport ----
	if e.dial == nil {
		d, err := DialerFor(cfg.Coupler)
		if err != nil {
			return nil, err
		}
		e.dial = d
	}
	e.manager = transport.NewManager(transport.Config{
		Dial:           e.dial,
		ReconnectDelay: ms(cfg.Coupler.ReconnectDelayMs),
		Logger:         logging.Component(e.log, "transport"),
	})
	e.manager.OnState(e.onLink)

	// ---- poller ----
	p, err := poller.Build(cfg.Poll, reg, e.manager, e.onCycle)
	if err != nil {
		return nil, err
	}
	e.poller = p

	// ---- writer ----
	w, err := writer.Build(reg, e.manager, logging.Component(e.log, "writer"))
	if err != nil {
		return nil, err
	}
	e.writer = w

	e.log.Info().
		Int("cards", reg.Len()).
		Int("outputs", len(reg.Outputs())).
		Int("excluded", len(errs)).
		Dur("tick", p.Tick()).
		Msg("engine built")
	return e, nil
}

func ms(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}

// ID is the random instance id of this engine.
func (e *Engine) ID() string { return e.id }

// Cards returns the accepted cards in configuration order.
func (e *Engine) Cards() []*cards.Descriptor { return e.registry.Cards() }

// ConfigErrors returns the cards excluded at build time.
func (e *Engine) ConfigErrors() []error { return e.configErrs }

// Gatherer exposes the engine's metrics registry.
func (e *Engine) Gatherer() prometheus.Gatherer { return e.gatherer }

// Link returns the coupler session state.
func (e *Engine) Link() transport.State { return e.manager.State() }

// Status returns the current health snapshot.
func (e *Engine) Status() status.Snapshot { return e.tracker.Snapshot() }

// Readings returns the latest reading per channel, in card then channel order.
func (e *Engine) Readings() []decode.Reading {
	e.mu.RLock()
	out := make([]decode.Reading, 0, len(e.latest))
	for _, r := range e.latest {
		out = append(out, r)
	}
	e.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CardIndex != out[j].CardIndex {
			return out[i].CardIndex < out[j].CardIndex
		}
		return out[i].Channel < out[j].Channel
	})
	return out
}

// ------------------------------------------------------------
// event handling
// ------------------------------------------------------------

func (e *Engine) onLink(s transport.State) {
	e.metrics.Link(s)

	var cause error
	if s == transport.Disconnected || s == transport.ReconnectPending {
		cause = e.manager.LastError()
	}
	e.tracker.Link(s.String(), cause)
	e.metrics.Status(e.tracker.Snapshot())
}

func (e *Engine) onCycle(res poller.CycleResult) {
	var failed []string
	var failures []status.CardFailure
	for _, f := range res.Failed {
		topic := f.Card.Topic()
		failed = append(failed, topic)
		failures = append(failures, status.CardFailure{Card: topic, Err: f.Err})
		e.log.Warn().Err(f.Err).Str("card", topic).Msg("card read failed")
	}
	e.tracker.Cycle(res.At, failures)
	e.metrics.Cycle(failed)
	e.metrics.Status(e.tracker.Snapshot())
}

// deliver conditions one reading, then fans it out to the cache, metrics
// and sinks.
func (e *Engine) deliver(r decode.Reading) {
	e.mu.Lock()
	if cs := e.registry.Cards(); r.CardIndex >= 0 && r.CardIndex < len(cs) {
		e.cond.apply(cs[r.CardIndex], &r)
	}
	e.latest[channelKey{r.CardIndex, r.Channel}] = r
	e.mu.Unlock()

	e.metrics.Reading(r)
	for _, s := range e.sinks {
		if err := s.Publish(r); err != nil {
			e.log.Warn().Err(err).Str("card", r.Topic).Int("channel", r.Channel).Msg("publish failed")
		}
	}
}

// ------------------------------------------------------------
// lifecycle
// ------------------------------------------------------------

// Run connects and pumps readings until ctx is done or Close is called.
func (e *Engine) Run(ctx context.Context) error {
	e.runMu.Lock()
	if e.closed {
		e.runMu.Unlock()
		return transport.ErrClosed
	}
	if e.cancel != nil {
		e.runMu.Unlock()
		return errors.New("engine: already running")
	}
	ctx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.runMu.Unlock()
	defer cancel()

	if err := e.manager.Connect(); err != nil && !errors.Is(err, transport.ErrClosed) {
		e.log.Warn().Err(err).Msg("initial connect failed, retrying in background")
	}

	readings := make(chan decode.Reading, 64)

	e.wg.Add(2)
	go func() {
		defer e.wg.Done()
		e.poller.Run(ctx, readings)
	}()
	go func() {
		defer e.wg.Done()
		e.tracker.Run(ctx)
	}()

	statusTicker := time.NewTicker(time.Second)
	defer statusTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case r := <-readings:
			e.deliver(r)
		case <-statusTicker.C:
			e.metrics.Status(e.tracker.Snapshot())
		}
	}
}

// Write dispatches one command. Read-back readings are delivered like
// polled ones.
func (e *Engine) Write(ctx context.Context, cmd writer.Command) (writer.Result, error) {
	res, err := e.writer.Dispatch(ctx, cmd)

	// unresolved targets are caller input, never a label
	card := "unknown"
	if res.Card != nil {
		card = res.Card.Topic()
	}
	e.metrics.Write(card, err)

	if err == nil && res.ReadBack != nil {
		e.deliver(*res.ReadBack)
	}
	return res, err
}

// Close stops the poll loop and the reconnect timer and closes the session.
// Safe to call repeatedly and from any state.
func (e *Engine) Close() error {
	var err error
	e.closeMu.Do(func() {
		e.runMu.Lock()
		e.closed = true
		cancel := e.cancel
		e.runMu.Unlock()

		if cancel != nil {
			cancel()
		}
		err = e.manager.Close()
		e.wg.Wait()
		e.tracker.Disable()
		e.metrics.Status(e.tracker.Snapshot())
		e.log.Info().Msg("engine closed")
	})
	return err
}
