package livesync

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is shared by every controller of a process; views are told apart
// by label. A nil *Metrics records nothing.
type Metrics struct {
	fetches   *prometheus.CounterVec
	triggers  *prometheus.CounterVec
	coalesced *prometheus.CounterVec
	state     *prometheus.GaugeVec
}

// NewMetrics registers the sync metrics with reg. reg may be nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		fetches: f.NewCounterVec(prometheus.CounterOpts{
			Name: "canteen_sync_fetches_total",
			Help: "Completed fetches by view and result (ok, error, ignored).",
		}, []string{"view", "result"}),
		triggers: f.NewCounterVec(prometheus.CounterOpts{
			Name: "canteen_sync_refetch_requests_total",
			Help: "Refetch requests by view and reason.",
		}, []string{"view", "reason"}),
		coalesced: f.NewCounterVec(prometheus.CounterOpts{
			Name: "canteen_sync_coalesced_total",
			Help: "Refetch requests answered by a fetch already in flight.",
		}, []string{"view"}),
		state: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "canteen_sync_state",
			Help: "Current controller state (1 connecting, 2 live, 3 degraded, 4 stopped).",
		}, []string{"view"}),
	}
}

func (m *Metrics) fetched(view, result string) {
	if m != nil {
		m.fetches.WithLabelValues(view, result).Inc()
	}
}

func (m *Metrics) requested(view, reason string) {
	if m != nil {
		m.triggers.WithLabelValues(view, reason).Inc()
	}
}

func (m *Metrics) coalesce(view string) {
	if m != nil {
		m.coalesced.WithLabelValues(view).Inc()
	}
}

func (m *Metrics) setState(view string, s State) {
	if m != nil {
		m.state.WithLabelValues(view).Set(float64(s))
	}
}
