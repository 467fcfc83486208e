package livesync

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/juju/errors"
	"github.com/juju/worker/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"canteen/internal/model"
	"canteen/internal/push"
)

const shortWait = 2 * time.Second

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeStream struct {
	events chan model.Event
	closed chan struct{}
	once   sync.Once
}

func newFakeStream() *fakeStream {
	return &fakeStream{events: make(chan model.Event), closed: make(chan struct{})}
}

func (s *fakeStream) Read() (model.Event, error) {
	select {
	case ev := <-s.events:
		return ev, nil
	case <-s.closed:
		return model.Event{}, io.EOF
	}
}

func (s *fakeStream) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}

func (s *fakeStream) send(t *testing.T, ev model.Event) {
	t.Helper()
	select {
	case s.events <- ev:
	case <-time.After(shortWait):
		t.Fatal("event not consumed")
	}
}

type fakeDialer struct {
	mu      sync.Mutex
	err     error
	streams []*fakeStream
	dials   int
}

func (d *fakeDialer) Dial(context.Context) (push.Stream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	if d.err != nil {
		return nil, d.err
	}
	s := newFakeStream()
	d.streams = append(d.streams, s)
	return s, nil
}

func (d *fakeDialer) stream(t *testing.T, i int) *fakeStream {
	t.Helper()
	var s *fakeStream
	require.Eventually(t, func() bool {
		d.mu.Lock()
		defer d.mu.Unlock()
		if len(d.streams) > i {
			s = d.streams[i]
			return true
		}
		return false
	}, shortWait, time.Millisecond)
	return s
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

type orderSource struct {
	calls   atomic.Int32
	block   func(n int32) bool
	started chan int32
	release chan struct{}
}

func newOrderSource() *orderSource {
	return &orderSource{started: make(chan int32, 10), release: make(chan struct{})}
}

func (s *orderSource) GetOrder(ctx context.Context, id int64) (*model.Order, error) {
	n := s.calls.Add(1)
	if s.block != nil && s.block(n) {
		s.started <- n
		<-s.release
	}
	return &model.Order{ID: id, Status: model.StatusPaid, QueuePosition: ptr(int(n))}, nil
}

func ptr[T any](v T) *T { return &v }

func orderEvent(id int64) model.Event {
	return model.Event{Type: model.EventOrderUpdated, Payload: model.EventPayload{OrderID: &id}}
}

func receive[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(shortWait):
		t.Fatal("nothing received")
	}
	var zero T
	return zero
}

func TestPushEventsCoalesceIntoOneRefetch(t *testing.T) {
	src := newOrderSource()
	src.block = func(n int32) bool { return n == 2 }
	dialer := &fakeDialer{}
	metrics := NewMetrics(prometheus.NewRegistry())
	updates := make(chan *model.Order, 10)

	cfg := OrderDetail(src, 42)
	cfg.Dialer = dialer
	cfg.Clock = testclock.NewClock(time.Now())
	cfg.Metrics = metrics
	cfg.OnUpdate = func(o *model.Order) { updates <- o }
	c, err := New(cfg)
	require.NoError(t, err)
	defer func() { assert.NoError(t, worker.Stop(c)) }()

	assert.Equal(t, 1, *receive(t, updates).QueuePosition)
	stream := dialer.stream(t, 0)
	require.Eventually(t, func() bool { return c.State() == Live }, shortWait, time.Millisecond)

	stream.send(t, orderEvent(42))
	assert.Equal(t, int32(2), receive(t, src.started))

	stream.send(t, orderEvent(7))
	stream.send(t, orderEvent(42))
	stream.send(t, orderEvent(42))
	pushes := metrics.triggers.WithLabelValues("order_detail", "push")
	require.Eventually(t, func() bool { return testutil.ToFloat64(pushes) == 3 }, shortWait, time.Millisecond)

	close(src.release)
	assert.Equal(t, 2, *receive(t, updates).QueuePosition)
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(metrics.coalesced.WithLabelValues("order_detail")) == 2
	}, shortWait, time.Millisecond)
	assert.Equal(t, int32(2), src.calls.Load())
	assert.Equal(t, 1, dialer.dialCount())
}

type listSource struct {
	calls atomic.Int32
}

func (s *listSource) ListOrders(context.Context) ([]model.Order, error) {
	n := s.calls.Add(1)
	if n == 1 {
		return nil, errors.Unauthorized
	}
	return make([]model.Order, n), nil
}

func TestPollsWhenPushNeverOpens(t *testing.T) {
	src := &listSource{}
	dialer := &fakeDialer{err: errors.New("connection refused")}
	clk := testclock.NewClock(time.Now())
	updates := make(chan int, 10)
	failures := make(chan error, 10)

	cfg := StudentOrders(src)
	cfg.Dialer = dialer
	cfg.Clock = clk
	cfg.ReconnectInitial = time.Minute
	cfg.OnUpdate = func(orders []model.Order) { updates <- len(orders) }
	cfg.OnError = func(err error) { failures <- err }
	c, err := New(cfg)
	require.NoError(t, err)
	defer func() { assert.NoError(t, worker.Stop(c)) }()

	assert.ErrorIs(t, receive(t, failures), errors.Unauthorized)
	require.Eventually(t, func() bool { return c.State() == Degraded }, shortWait, time.Millisecond)

	// Poll and reconnect timers.
	require.NoError(t, clk.WaitAdvance(4*time.Second, shortWait, 2))
	assert.Equal(t, 2, receive(t, updates))
	require.NoError(t, clk.WaitAdvance(4*time.Second, shortWait, 2))
	assert.Equal(t, 3, receive(t, updates))

	latest, ok := c.Latest()
	require.True(t, ok)
	assert.Len(t, latest, 3)
	assert.Equal(t, Degraded, c.State())
	assert.Equal(t, 1, dialer.dialCount())
}

func TestLateResultAfterKillIsIgnored(t *testing.T) {
	src := newOrderSource()
	src.block = func(n int32) bool { return n == 1 }
	metrics := NewMetrics(prometheus.NewRegistry())
	var applied atomic.Int32

	cfg := OrderDetail(src, 42)
	cfg.Dialer = &fakeDialer{}
	cfg.Clock = testclock.NewClock(time.Now())
	cfg.Metrics = metrics
	cfg.OnUpdate = func(*model.Order) { applied.Add(1) }
	c, err := New(cfg)
	require.NoError(t, err)

	receive(t, src.started)
	c.Kill()
	close(src.release)
	require.NoError(t, c.Wait())

	assert.Zero(t, applied.Load())
	_, ok := c.Latest()
	assert.False(t, ok)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.fetches.WithLabelValues("order_detail", "ignored")))
	assert.Equal(t, Stopped, c.State())
}

func TestReconnectAfterChannelLoss(t *testing.T) {
	src := newOrderSource()
	dialer := &fakeDialer{}
	clk := testclock.NewClock(time.Now())
	metrics := NewMetrics(prometheus.NewRegistry())
	var mu sync.Mutex
	var states []State

	cfg := OrderDetail(src, 42)
	cfg.Dialer = dialer
	cfg.Clock = clk
	cfg.Metrics = metrics
	cfg.OnUpdate = func(*model.Order) {}
	cfg.OnState = func(s State) {
		mu.Lock()
		states = append(states, s)
		mu.Unlock()
	}
	c, err := New(cfg)
	require.NoError(t, err)

	require.NoError(t, dialer.stream(t, 0).Close())
	require.Eventually(t, func() bool { return c.State() == Degraded }, shortWait, time.Millisecond)

	require.NoError(t, clk.WaitAdvance(2*time.Second, shortWait, 2))
	dialer.stream(t, 1)
	require.Eventually(t, func() bool { return c.State() == Live }, shortWait, time.Millisecond)
	reconnects := metrics.triggers.WithLabelValues("order_detail", "reconnect")
	require.Eventually(t, func() bool { return testutil.ToFloat64(reconnects) == 1 }, shortWait, time.Millisecond)

	require.NoError(t, worker.Stop(c))
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []State{Connecting, Live, Degraded, Live, Stopped}, states)
}

func TestBackoffGrowsToCeiling(t *testing.T) {
	src := newOrderSource()
	dialer := &fakeDialer{err: errors.New("refused")}
	clk := testclock.NewClock(time.Now())

	cfg := OrderDetail(src, 42)
	cfg.Dialer = dialer
	cfg.Clock = clk
	cfg.PollInterval = time.Hour
	cfg.OnUpdate = func(*model.Order) {}
	c, err := New(cfg)
	require.NoError(t, err)
	defer func() { assert.NoError(t, worker.Stop(c)) }()

	// Redials after 2s, then 4s, then 5s at most.
	for i, d := range []time.Duration{2 * time.Second, 4 * time.Second, 5 * time.Second, 5 * time.Second} {
		require.Eventually(t, func() bool { return dialer.dialCount() == i+1 }, shortWait, time.Millisecond)
		require.Eventually(t, func() bool { return c.State() == Degraded }, shortWait, time.Millisecond)
		require.NoError(t, clk.WaitAdvance(d-time.Millisecond, shortWait, 2))
		assert.Equal(t, i+1, dialer.dialCount())
		clk.Advance(time.Millisecond)
	}
	require.Eventually(t, func() bool { return dialer.dialCount() == 5 }, shortWait, time.Millisecond)
}

type failingSource struct {
	mu  sync.Mutex
	err error
}

func (s *failingSource) setErr(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

func (s *failingSource) GetOrder(context.Context, int64) (*model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return nil, s.err
}

func TestOutageIsReportedOnce(t *testing.T) {
	src := &failingSource{err: errors.New("connection reset")}
	dialer := &fakeDialer{err: errors.New("refused")}
	clk := testclock.NewClock(time.Now())
	metrics := NewMetrics(prometheus.NewRegistry())
	failures := make(chan error, 20)
	var mu sync.Mutex
	var states []State

	cfg := OrderDetail(src, 42)
	cfg.Dialer = dialer
	cfg.Clock = clk
	cfg.Metrics = metrics
	cfg.OnUpdate = func(*model.Order) {}
	cfg.OnError = func(err error) { failures <- err }
	cfg.OnState = func(s State) {
		mu.Lock()
		states = append(states, s)
		mu.Unlock()
	}
	c, err := New(cfg)
	require.NoError(t, err)
	defer func() { assert.NoError(t, worker.Stop(c)) }()

	fetchErrors := metrics.fetches.WithLabelValues("order_detail", "error")
	require.Eventually(t, func() bool { return testutil.ToFloat64(fetchErrors) == 1 }, shortWait, time.Millisecond)

	// Ten seconds of polling every 2s and redialing after 2s, then 4s.
	for sec := 1; sec <= 10; sec++ {
		require.NoError(t, clk.WaitAdvance(time.Second, shortWait, 2))
		if sec%2 == 0 {
			want := float64(sec/2 + 1)
			require.Eventually(t, func() bool { return testutil.ToFloat64(fetchErrors) == want }, shortWait, time.Millisecond)
		}
	}
	require.Eventually(t, func() bool { return dialer.dialCount() == 3 }, shortWait, time.Millisecond)
	assert.Equal(t, Degraded, c.State())
	assert.Empty(t, failures)

	src.setErr(errors.Unauthorized)
	c.Refresh()
	assert.ErrorIs(t, receive(t, failures), errors.Unauthorized)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []State{Connecting, Degraded}, states)
}

func TestPollsWhileFirstDialIsPending(t *testing.T) {
	src := newOrderSource()
	dialer := &blockingDialer{release: make(chan struct{})}
	clk := testclock.NewClock(time.Now())
	updates := make(chan *model.Order, 10)

	cfg := OrderDetail(src, 42)
	cfg.Dialer = dialer
	cfg.Clock = clk
	cfg.OnUpdate = func(o *model.Order) { updates <- o }
	c, err := New(cfg)
	require.NoError(t, err)
	defer func() { assert.NoError(t, worker.Stop(c)) }()

	assert.Equal(t, 1, *receive(t, updates).QueuePosition)
	require.NoError(t, clk.WaitAdvance(2*time.Second, shortWait, 1))
	assert.Equal(t, 2, *receive(t, updates).QueuePosition)
	assert.Equal(t, Connecting, c.State())
}

// blockingDialer holds every dial until release is closed or the
// controller stops.
type blockingDialer struct {
	release chan struct{}
}

func (d *blockingDialer) Dial(ctx context.Context) (push.Stream, error) {
	select {
	case <-d.release:
		return newFakeStream(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestRefreshOnDemand(t *testing.T) {
	src := newOrderSource()
	updates := make(chan *model.Order, 10)

	cfg := OrderDetail(src, 42)
	cfg.Dialer = &fakeDialer{}
	cfg.Clock = testclock.NewClock(time.Now())
	cfg.OnUpdate = func(o *model.Order) { updates <- o }
	c, err := New(cfg)
	require.NoError(t, err)
	defer func() { assert.NoError(t, worker.Stop(c)) }()

	receive(t, updates)
	c.Refresh()
	assert.Equal(t, 2, *receive(t, updates).QueuePosition)
}

func TestConfigValidate(t *testing.T) {
	_, err := New(Config[int]{})
	assert.ErrorIs(t, err, errors.NotValid)
	_, err = New(Config[int]{
		Fetch:        func(context.Context) (int, error) { return 0, nil },
		Dialer:       &fakeDialer{},
		OnUpdate:     func(int) {},
		PollInterval: -time.Second,
	})
	assert.ErrorIs(t, err, errors.NotValid)
}
