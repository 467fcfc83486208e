// Package countdown presents the time left on a payment deadline.
package countdown

import (
	"fmt"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"gopkg.in/tomb.v2"
)

// PaymentWindow is how long the server gives a student to pay once an order
// is accepted.
const PaymentWindow = 10 * time.Minute

type Urgency int

const (
	Calm Urgency = iota
	Warning
	Critical
)

func (u Urgency) String() string {
	switch u {
	case Calm:
		return "calm"
	case Warning:
		return "warning"
	case Critical:
		return "critical"
	}
	return fmt.Sprintf("Urgency(%d)", int(u))
}

// Reading is what a countdown shows at one instant.
type Reading struct {
	Remaining  time.Duration
	Text       string
	Expired    bool
	Urgency    Urgency
	LastMinute bool
}

// Format renders d as MM:SS, truncated to whole seconds. Non-positive
// durations render as 00:00.
func Format(d time.Duration) string {
	if d <= 0 {
		return "00:00"
	}
	s := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d", s/60, s%60)
}

// Read computes the reading for expiry at now against window.
func Read(expiry, now time.Time, window time.Duration) Reading {
	remaining := expiry.Sub(now).Truncate(time.Second)
	if remaining < 0 {
		remaining = 0
	}
	r := Reading{
		Remaining:  remaining,
		Text:       Format(remaining),
		Expired:    remaining == 0,
		LastMinute: remaining > 0 && remaining <= time.Minute,
	}
	if window <= 0 {
		window = PaymentWindow
	}
	switch frac := float64(remaining) / float64(window); {
	case frac > 0.5:
		r.Urgency = Calm
	case frac > 0.25:
		r.Urgency = Warning
	default:
		r.Urgency = Critical
	}
	return r
}

type Config struct {
	Expiry time.Time
	Clock  clock.Clock
	// Window is the full length of the deadline, used for urgency.
	// Defaults to PaymentWindow.
	Window time.Duration
	// OnTick receives the first reading immediately and then one per
	// second. The expired reading is delivered exactly once.
	OnTick func(Reading)
	// OnExpire is called once per deadline, right after the expired
	// reading, so the caller can refetch the order.
	OnExpire func()
}

func (cfg Config) Validate() error {
	if cfg.Expiry.IsZero() {
		return errors.NotValidf("zero expiry")
	}
	if cfg.OnTick == nil {
		return errors.NotValidf("nil OnTick")
	}
	return nil
}

// Countdown ticks once a second until its deadline passes. It satisfies
// worker.Worker.
type Countdown struct {
	tomb  tomb.Tomb
	cfg   Config
	reset chan time.Time
}

func New(cfg Config) (*Countdown, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.WallClock
	}
	if cfg.Window <= 0 {
		cfg.Window = PaymentWindow
	}
	c := &Countdown{cfg: cfg, reset: make(chan time.Time)}
	c.tomb.Go(c.loop)
	return c, nil
}

// Reset moves the deadline, e.g. when the view switches to another order.
// The new deadline gets its own expired reading and OnExpire call.
func (c *Countdown) Reset(expiry time.Time) {
	select {
	case c.reset <- expiry:
	case <-c.tomb.Dying():
	}
}

func (c *Countdown) Kill() {
	c.tomb.Kill(nil)
}

func (c *Countdown) Wait() error {
	return c.tomb.Wait()
}

func (c *Countdown) loop() error {
	expiry := c.cfg.Expiry
	var timer clock.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		r := Read(expiry, c.cfg.Clock.Now(), c.cfg.Window)
		c.cfg.OnTick(r)

		var tick <-chan time.Time
		if r.Expired {
			if c.cfg.OnExpire != nil {
				c.cfg.OnExpire()
			}
		} else {
			if timer == nil {
				timer = c.cfg.Clock.NewTimer(time.Second)
			} else {
				timer.Reset(time.Second)
			}
			tick = timer.Chan()
		}

		select {
		case <-c.tomb.Dying():
			return tomb.ErrDying
		case <-tick:
		case expiry = <-c.reset:
			if timer != nil {
				timer.Stop()
			}
		}
	}
}
