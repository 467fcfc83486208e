package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/juju/clock"

	"canteen/internal/model"
)

// Expirer moves orders whose payment window has lapsed to CANCELLED_TIMEOUT.
type Expirer interface {
	ExpireStale(ctx context.Context) []*model.Order
}

type ExpiryWorker struct {
	orders   Expirer
	clock    clock.Clock
	interval time.Duration
}

func NewExpiryWorker(orders Expirer, clk clock.Clock, interval time.Duration) *ExpiryWorker {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &ExpiryWorker{
		orders:   orders,
		clock:    clk,
		interval: interval,
	}
}

// Start sweeps until ctx is cancelled.
func (w *ExpiryWorker) Start(ctx context.Context) {
	slog.Info("starting expiry worker", "interval", w.interval)
	ticker := w.clock.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("expiry worker stopped")
			return
		case <-ticker.Chan():
			if expired := w.orders.ExpireStale(ctx); len(expired) > 0 {
				slog.Debug("expiry sweep", "expired", len(expired))
			}
		}
	}
}
