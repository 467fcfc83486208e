package main

import (
	"context"
	"time"

	"canteen/internal/countdown"
	"canteen/internal/livesync"
	"canteen/internal/model"
	"canteen/internal/push"
)

func runWatch(ctx context.Context, a *app, args []string) error {
	id, err := oneID(args, "order")
	if err != nil {
		return err
	}
	if _, err := currentUser(ctx, a); err != nil {
		return err
	}
	return watchOrder(ctx, a, id)
}

// watchOrder follows one order until it reaches a terminal status. While
// payment is due a countdown runs on the last line; when it runs out the
// order is refetched so the server's verdict is shown.
func watchOrder(ctx context.Context, a *app, id int64) error {
	client := a.session.Client()
	updates := make(chan *model.Order, 1)

	cfg := livesync.OrderDetail(client, id)
	cfg.Dialer = push.NewDialer(client.SocketURL(), a.session.Jar())
	cfg.OnUpdate = func(o *model.Order) {
		// Only the newest order matters.
		select {
		case <-updates:
		default:
		}
		updates <- o
	}
	cfg.OnError = a.out.syncError
	cfg.OnState = a.out.syncState
	ctrl, err := livesync.New(cfg)
	if err != nil {
		return err
	}
	defer stopWorker(ctrl)

	expired := make(chan struct{}, 1)
	var (
		timer  *countdown.Countdown
		expiry time.Time
	)
	stopTimer := func() {
		if timer != nil {
			_ = stopWorker(timer)
			timer = nil
		}
	}
	defer stopTimer()

	var last model.OrderStatus
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-expired:
			ctrl.Refresh()
		case o := <-updates:
			if last == "" {
				a.out.Order(o)
			} else if o.Status != last {
				a.out.notify(o)
			}
			last = o.Status

			if !o.AwaitingPayment() {
				stopTimer()
			} else if timer == nil {
				expiry = *o.PaymentExpiresAt
				timer, err = countdown.New(countdown.Config{
					Expiry: expiry,
					OnTick: a.out.Countdown,
					OnExpire: func() {
						select {
						case expired <- struct{}{}:
						default:
						}
					},
				})
				if err != nil {
					return err
				}
			} else if !o.PaymentExpiresAt.Equal(expiry) {
				expiry = *o.PaymentExpiresAt
				timer.Reset(expiry)
			}

			if o.Status.Terminal() {
				return nil
			}
		}
	}
}

// notify announces a status change of a watched order.
func (p *printer) notify(o *model.Order) {
	stamp := time.Now().Format(time.TimeOnly)
	c := statusColor[o.Status]
	if c == nil {
		c = dimColor
	}
	switch o.Status {
	case model.StatusPaymentPending:
		p.Colored(c, "%s accepted, pay %s now\n", stamp, rupees(o.TotalAmountCents))
		if o.Payment != nil && o.Payment.QRPayload != "" {
			p.Plain("  pay to: %s\n", o.Payment.QRPayload)
		}
		p.Colored(dimColor, "  then run 'canteenctl pay %d'\n", o.ID)
	case model.StatusPaid:
		if o.QueuePosition != nil {
			p.Colored(c, "%s payment received, queue position %d\n", stamp, *o.QueuePosition)
		} else {
			p.Colored(c, "%s payment received\n", stamp)
		}
		p.pickupCode(o)
	case model.StatusPreparing:
		p.Colored(c, "%s being prepared\n", stamp)
	case model.StatusReady:
		p.Colored(c, "%s ready for pickup\n", stamp)
		p.pickupCode(o)
	case model.StatusCollected:
		p.Colored(c, "%s collected, enjoy your meal\n", stamp)
	case model.StatusDeclined:
		reason := "no reason given"
		if o.DeclineReason != nil {
			reason = *o.DeclineReason
		}
		p.Colored(c, "%s declined: %s\n", stamp, reason)
	case model.StatusCancelledTimeout:
		p.Colored(c, "%s cancelled, the payment window expired\n", stamp)
	default:
		p.Colored(c, "%s %s\n", stamp, o.Status)
	}
}

func (p *printer) pickupCode(o *model.Order) {
	if o.PickupCode == nil {
		return
	}
	p.Plain("  pickup code: ")
	p.Colored(okColor, "%s\n", *o.PickupCode)
}
