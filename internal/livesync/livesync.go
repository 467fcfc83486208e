// Package livesync keeps a view of server state fresh by combining the push
// channel with interval polling.
//
// A Controller is always in one of three states. While Connecting it dials
// the push channel for the first time and polls until the dial settles.
// Once Live, relevant push events trigger a refetch and no timer runs. When
// the channel fails or closes the controller is Degraded: it polls on a
// fixed interval and redials in the background after a backoff that doubles
// up to a ceiling, staying Degraded until a redial succeeds. Refetches for
// the same key are coalesced, and results are applied in arrival order.
// After Kill nothing more is applied.
//
// Retries are silent. Fetch failures that another attempt may cure are only
// logged at debug level; OnError sees the ones it cannot, such as an expired
// session.
package livesync

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"golang.org/x/sync/singleflight"
	"gopkg.in/tomb.v2"

	"canteen/internal/model"
	"canteen/internal/push"
)

type State int

const (
	Connecting State = iota + 1
	Live
	Degraded
	Stopped
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Live:
		return "live"
	case Degraded:
		return "degraded"
	case Stopped:
		return "stopped"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

const (
	DefaultPollInterval     = 4 * time.Second
	DefaultReconnectInitial = 2 * time.Second
	DefaultReconnectMax     = 30 * time.Second
)

type Config[T any] struct {
	// View names the controller in logs and metrics.
	View string
	// Key identifies the synchronized resource for coalescing.
	Key string

	Fetch    func(ctx context.Context) (T, error)
	Relevant func(model.Event) bool
	Dialer   push.Dialer
	Clock    clock.Clock

	PollInterval     time.Duration
	ReconnectInitial time.Duration
	ReconnectMax     time.Duration

	// Callbacks run one at a time. They may call the controller's methods
	// except Wait. OnState fires once per state change, so an outage is
	// reported once however many redials it takes.
	OnUpdate func(T)
	OnError  func(error)
	OnState  func(State)

	Metrics *Metrics
}

func (cfg Config[T]) Validate() error {
	if cfg.Fetch == nil {
		return errors.NotValidf("nil Fetch")
	}
	if cfg.Dialer == nil {
		return errors.NotValidf("nil Dialer")
	}
	if cfg.OnUpdate == nil {
		return errors.NotValidf("nil OnUpdate")
	}
	if cfg.PollInterval < 0 || cfg.ReconnectInitial < 0 || cfg.ReconnectMax < 0 {
		return errors.NotValidf("negative interval")
	}
	return nil
}

func (cfg *Config[T]) setDefaults() {
	if cfg.View == "" {
		cfg.View = "view"
	}
	if cfg.Key == "" {
		cfg.Key = cfg.View
	}
	if cfg.Relevant == nil {
		cfg.Relevant = model.Event.IsOrderEvent
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.WallClock
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.ReconnectInitial == 0 {
		cfg.ReconnectInitial = DefaultReconnectInitial
	}
	if cfg.ReconnectMax == 0 {
		cfg.ReconnectMax = DefaultReconnectMax
	}
	if cfg.ReconnectMax < cfg.ReconnectInitial {
		cfg.ReconnectMax = cfg.ReconnectInitial
	}
}

// Controller synchronizes one view. It satisfies worker.Worker.
type Controller[T any] struct {
	cfg   Config[T]
	tomb  tomb.Tomb
	ctx   context.Context
	group singleflight.Group

	stopped atomic.Bool
	manual  chan struct{}

	// cbMu serializes callbacks.
	cbMu sync.Mutex

	mu     sync.Mutex
	state  State
	latest T
	have   bool
}

type dialResult struct {
	stream push.Stream
	err    error
}

// New starts a controller. The first fetch is issued immediately.
func New[T any](cfg Config[T]) (*Controller[T], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.setDefaults()
	c := &Controller[T]{cfg: cfg, manual: make(chan struct{}, 1)}
	c.ctx = c.tomb.Context(context.Background())
	c.tomb.Go(c.loop)
	return c, nil
}

// Kill stops the controller. A fetch still in flight may complete, but its
// result is dropped.
func (c *Controller[T]) Kill() {
	c.stopped.Store(true)
	c.tomb.Kill(nil)
}

func (c *Controller[T]) Wait() error {
	return c.tomb.Wait()
}

// State returns the current state.
func (c *Controller[T]) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Latest returns the last applied result.
func (c *Controller[T]) Latest() (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.latest, c.have
}

// Refresh requests a refetch, e.g. when a countdown reaches zero. It never
// blocks; requests made while one is pending are merged.
func (c *Controller[T]) Refresh() {
	select {
	case c.manual <- struct{}{}:
	default:
	}
}

func (c *Controller[T]) setState(s State) {
	c.mu.Lock()
	prev := c.state
	c.state = s
	c.mu.Unlock()
	if prev == s {
		return
	}
	c.cfg.Metrics.setState(c.cfg.View, s)
	if c.cfg.OnState != nil {
		c.cbMu.Lock()
		c.cfg.OnState(s)
		c.cbMu.Unlock()
	}
	slog.Debug("sync state changed", "view", c.cfg.View, "from", prev, "to", s)
}

// refetch joins the fetch already in flight for the key, or starts one.
// The singleflight call is registered before refetch returns. Only the
// caller that ran the fetch applies its result.
func (c *Controller[T]) refetch(reason string) {
	c.cfg.Metrics.requested(c.cfg.View, reason)
	var ran atomic.Bool
	ch := c.group.DoChan(c.cfg.Key, func() (any, error) {
		ran.Store(true)
		return c.cfg.Fetch(c.ctx)
	})
	c.tomb.Go(func() error {
		res := <-ch
		if !ran.Load() {
			c.cfg.Metrics.coalesce(c.cfg.View)
			return nil
		}
		v, _ := res.Val.(T)
		c.apply(v, res.Err)
		return nil
	})
}

func (c *Controller[T]) apply(v T, err error) {
	c.cbMu.Lock()
	defer c.cbMu.Unlock()
	if c.stopped.Load() {
		c.cfg.Metrics.fetched(c.cfg.View, "ignored")
		return
	}
	if err != nil {
		c.cfg.Metrics.fetched(c.cfg.View, "error")
		if retryable(err) {
			slog.Debug("sync fetch failed", "view", c.cfg.View, "error", err)
			return
		}
		slog.Warn("sync fetch failed", "view", c.cfg.View, "error", err)
		if c.cfg.OnError != nil {
			c.cfg.OnError(err)
		}
		return
	}
	c.cfg.Metrics.fetched(c.cfg.View, "ok")
	c.mu.Lock()
	c.latest, c.have = v, true
	c.mu.Unlock()
	c.cfg.OnUpdate(v)
}

// retryable reports whether a later poll may succeed where this one failed.
// Rejections of the session or the resource itself will not go away.
func retryable(err error) bool {
	switch {
	case errors.Is(err, errors.Unauthorized),
		errors.Is(err, errors.Forbidden),
		errors.Is(err, errors.NotFound):
		return false
	}
	return true
}

func (c *Controller[T]) dial() <-chan dialResult {
	out := make(chan dialResult)
	c.tomb.Go(func() error {
		s, err := c.cfg.Dialer.Dial(c.ctx)
		select {
		case out <- dialResult{stream: s, err: err}:
		case <-c.tomb.Dying():
			if s != nil {
				_ = s.Close()
			}
		}
		return nil
	})
	return out
}

func (c *Controller[T]) read(s push.Stream, events chan<- model.Event, lost chan<- error) error {
	for {
		ev, err := s.Read()
		if err != nil {
			select {
			case lost <- err:
			case <-c.tomb.Dying():
			}
			return nil
		}
		select {
		case events <- ev:
		case <-c.tomb.Dying():
			return nil
		}
	}
}

func stopTimer(t clock.Timer) {
	if t != nil {
		t.Stop()
	}
}

func timerChan(t clock.Timer) <-chan time.Time {
	if t == nil {
		return nil
	}
	return t.Chan()
}

func (c *Controller[T]) loop() error {
	var (
		stream  push.Stream
		events  chan model.Event
		lost    chan error
		poll    clock.Timer
		retry   clock.Timer
		backoff = c.cfg.ReconnectInitial
		missed  bool
	)
	defer func() {
		stopTimer(poll)
		stopTimer(retry)
		if stream != nil {
			_ = stream.Close()
		}
		c.setState(Stopped)
	}()

	startPolling := func() {
		if poll == nil {
			poll = c.cfg.Clock.NewTimer(c.cfg.PollInterval)
		}
	}
	degrade := func(reason error) {
		slog.Debug("push channel unavailable", "view", c.cfg.View, "error", reason, "retry", backoff)
		c.setState(Degraded)
		missed = true
		startPolling()
		stopTimer(retry)
		retry = c.cfg.Clock.NewTimer(backoff)
		backoff = min(backoff*2, c.cfg.ReconnectMax)
	}

	c.setState(Connecting)
	c.refetch("initial")
	startPolling()
	dialed := c.dial()

	for {
		select {
		case <-c.tomb.Dying():
			return tomb.ErrDying

		case r := <-dialed:
			dialed = nil
			if r.err != nil {
				if errors.Is(r.err, context.Canceled) {
					return tomb.ErrDying
				}
				degrade(r.err)
				continue
			}
			stream = r.stream
			events = make(chan model.Event)
			lost = make(chan error, 1)
			s, ev, l := stream, events, lost
			c.tomb.Go(func() error { return c.read(s, ev, l) })

			stopTimer(poll)
			poll = nil
			backoff = c.cfg.ReconnectInitial
			c.setState(Live)
			if missed {
				c.refetch("reconnect")
				missed = false
			}

		case ev := <-events:
			if c.cfg.Relevant(ev) {
				c.refetch("push")
			}

		case err := <-lost:
			_ = stream.Close()
			stream, events, lost = nil, nil, nil
			degrade(err)

		case <-c.manual:
			c.refetch("manual")

		case <-timerChan(poll):
			c.refetch("poll")
			poll.Reset(c.cfg.PollInterval)

		case <-timerChan(retry):
			// Redial without leaving Degraded; polling carries on meanwhile.
			retry = nil
			dialed = c.dial()
		}
	}
}
