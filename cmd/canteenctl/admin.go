package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/juju/errors"

	"canteen/internal/apiclient"
	"canteen/internal/livesync"
	"canteen/internal/model"
	"canteen/internal/push"
)

func runAdmin(ctx context.Context, a *app, args []string) error {
	return dispatch(ctx, a, "admin", map[string]subcommand{
		"queue":         {"[-status S|ACTIVE] [-watch]  list the order queue", adminQueue},
		"accept":        {"ORDER  accept a requested order", adminAccept},
		"decline":       {"-reason R ORDER  decline a requested order", adminDecline},
		"advance":       {"[-code C] ORDER  move an order to its next status", adminAdvance},
		"payment":       {"-status SUCCESS|FAILED|EXPIRED|PENDING ORDER  record the outcome of an online payment", adminPayment},
		"cancel-failed": {"ORDER  decline an order whose payment failed", adminCancelFailed},
		"daily":         {"[-date YYYY-MM-DD]  orders placed on a day", adminDaily},
		"count":         {"active orders against capacity", adminCount},
		"menu":          {"list your menu", adminMenu},
		"toggle-item":   {"ITEM  flip a menu item's availability", adminToggleItem},
		"toggle-orders": {"start or stop taking orders", adminToggleOrders},
		"profile":       {"[-name N] [-open HH:MM] [-close HH:MM] [-prep MIN] [-max N] [-upi ID]  show or update your canteen", adminProfile},
	}, args)
}

func requireCanteenAdmin(ctx context.Context, a *app) error {
	_, err := currentUser(ctx, a, model.RoleCanteenAdmin)
	return err
}

func adminQueue(ctx context.Context, a *app, args []string) error {
	fs := newFlags("queue")
	status := fs.String("status", "", "status filter, or ACTIVE")
	watch := fs.Bool("watch", false, "keep the queue updated")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if err := requireCanteenAdmin(ctx, a); err != nil {
		return err
	}
	client := a.session.Client()
	filter := apiclient.QueueFilter(*status)
	if !*watch {
		orders, err := client.AdminOrders(ctx, filter)
		if err != nil {
			return err
		}
		a.out.orderList(orders)
		return nil
	}

	cfg := livesync.AdminQueue(client, filter)
	cfg.Dialer = push.NewDialer(client.SocketURL(), a.session.Jar())
	cfg.OnUpdate = func(orders []model.Order) {
		a.out.Colored(dimColor, "-- %s, %d orders --\n", time.Now().Format(time.TimeOnly), len(orders))
		a.out.orderList(orders)
	}
	cfg.OnError = a.out.syncError
	cfg.OnState = a.out.syncState
	ctrl, err := livesync.New(cfg)
	if err != nil {
		return err
	}
	<-ctx.Done()
	return stopWorker(ctrl)
}

func adminAccept(ctx context.Context, a *app, args []string) error {
	id, err := oneID(args, "order")
	if err != nil {
		return err
	}
	if err := requireCanteenAdmin(ctx, a); err != nil {
		return err
	}
	o, err := a.session.Client().AcceptOrder(ctx, id)
	if err != nil {
		return err
	}
	a.out.Order(o)
	return nil
}

func adminDecline(ctx context.Context, a *app, args []string) error {
	fs := newFlags("decline")
	reason := fs.String("reason", "", "reason shown to the student")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	id, err := oneID(fs.Args(), "order")
	if err != nil {
		return err
	}
	if err := requireCanteenAdmin(ctx, a); err != nil {
		return err
	}
	o, err := a.session.Client().DeclineOrder(ctx, id, *reason)
	if err != nil {
		return err
	}
	a.out.Order(o)
	return nil
}

func adminAdvance(ctx context.Context, a *app, args []string) error {
	fs := newFlags("advance")
	code := fs.String("code", "", "pickup code presented by the student")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	id, err := oneID(fs.Args(), "order")
	if err != nil {
		return err
	}
	if err := requireCanteenAdmin(ctx, a); err != nil {
		return err
	}
	client := a.session.Client()
	cur, err := client.GetOrder(ctx, id)
	if err != nil {
		return err
	}
	next, ok := cur.Status.NextAdminStatus()
	if !ok {
		return errors.NewBadRequest(nil, fmt.Sprintf("order %d is %s, nothing to advance", id, cur.Status))
	}
	o, err := client.AdvanceOrder(ctx, id, next, *code)
	if err != nil {
		return err
	}
	a.out.Order(o)
	return nil
}

func adminPayment(ctx context.Context, a *app, args []string) error {
	fs := newFlags("payment")
	status := fs.String("status", "", "SUCCESS, FAILED, EXPIRED or PENDING")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if *status == "" {
		return errUsage
	}
	id, err := oneID(fs.Args(), "order")
	if err != nil {
		return err
	}
	if err := requireCanteenAdmin(ctx, a); err != nil {
		return err
	}
	o, err := a.session.Client().SetPaymentStatus(ctx, id, model.PaymentStatus(*status))
	if err != nil {
		return err
	}
	a.out.Order(o)
	if o.Payment != nil && o.Payment.Status == model.PaymentFailed {
		a.out.Colored(dimColor, "  run 'canteenctl admin cancel-failed %d' to decline it\n", o.ID)
	}
	return nil
}

func adminCancelFailed(ctx context.Context, a *app, args []string) error {
	id, err := oneID(args, "order")
	if err != nil {
		return err
	}
	if err := requireCanteenAdmin(ctx, a); err != nil {
		return err
	}
	o, err := a.session.Client().CancelFailedPayment(ctx, id)
	if err != nil {
		return err
	}
	a.out.Order(o)
	return nil
}

func adminDaily(ctx context.Context, a *app, args []string) error {
	fs := newFlags("daily")
	date := fs.String("date", "", "day to list (defaults to today)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	day := time.Now()
	if *date != "" {
		var err error
		if day, err = time.Parse(time.DateOnly, *date); err != nil {
			return errors.NewNotValid(nil, fmt.Sprintf("invalid date %q", *date))
		}
	}
	if err := requireCanteenAdmin(ctx, a); err != nil {
		return err
	}
	orders, err := a.session.Client().DailyOrders(ctx, day)
	if err != nil {
		return err
	}
	var revenue int64
	for _, o := range orders {
		if o.Status != model.StatusDeclined && o.Status != model.StatusCancelledTimeout {
			revenue += o.TotalAmountCents
		}
	}
	a.out.orderList(orders)
	a.out.Plain("%d orders on %s, %s taken\n", len(orders), day.Format(time.DateOnly), rupees(revenue))
	return nil
}

func adminCount(ctx context.Context, a *app, args []string) error {
	if len(args) != 0 {
		return errUsage
	}
	if err := requireCanteenAdmin(ctx, a); err != nil {
		return err
	}
	n, err := a.session.Client().ActiveOrdersCount(ctx)
	if err != nil {
		return err
	}
	c := okColor
	if n.MaxOrders > 0 && n.ActiveOrders >= n.MaxOrders {
		c = warnColor
	}
	a.out.Colored(c, "%d/%d active orders\n", n.ActiveOrders, n.MaxOrders)
	return nil
}

func adminMenu(ctx context.Context, a *app, args []string) error {
	if len(args) != 0 {
		return errUsage
	}
	if err := requireCanteenAdmin(ctx, a); err != nil {
		return err
	}
	items, err := a.session.Client().AdminMenu(ctx)
	if err != nil {
		return err
	}
	for i := range items {
		a.out.MenuItem(&items[i])
	}
	return nil
}

func adminToggleItem(ctx context.Context, a *app, args []string) error {
	id, err := oneID(args, "menu item")
	if err != nil {
		return err
	}
	if err := requireCanteenAdmin(ctx, a); err != nil {
		return err
	}
	item, err := a.session.Client().ToggleMenuItem(ctx, id)
	if err != nil {
		return err
	}
	a.out.MenuItem(item)
	return nil
}

func adminToggleOrders(ctx context.Context, a *app, args []string) error {
	if len(args) != 0 {
		return errUsage
	}
	if err := requireCanteenAdmin(ctx, a); err != nil {
		return err
	}
	c, err := a.session.Client().ToggleAcceptingOrders(ctx)
	if err != nil {
		return err
	}
	a.out.Canteen(c)
	return nil
}

// canteenFlags binds the editable canteen fields to fs. Unset flags leave
// the zero value, which the server keeps as is.
func canteenFlags(fs *flag.FlagSet, in *model.CanteenInput) {
	fs.StringVar(&in.Name, "name", "", "canteen name")
	fs.StringVar(&in.HoursOpen, "open", "", "opening time, HH:MM")
	fs.StringVar(&in.HoursClose, "close", "", "closing time, HH:MM")
	fs.IntVar(&in.AvgPrepMinutes, "prep", 0, "average preparation minutes")
	fs.IntVar(&in.MaxActiveOrders, "max", 0, "maximum active orders")
	fs.StringVar(&in.UPIID, "upi", "", "UPI id for payments")
}

func adminProfile(ctx context.Context, a *app, args []string) error {
	fs := newFlags("profile")
	var in model.CanteenInput
	canteenFlags(fs, &in)
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if err := requireCanteenAdmin(ctx, a); err != nil {
		return err
	}
	client := a.session.Client()
	var (
		c   *model.Canteen
		err error
	)
	if fs.NFlag() == 0 {
		c, err = client.AdminProfile(ctx)
	} else {
		c, err = client.UpdateAdminProfile(ctx, in)
	}
	if err != nil {
		return err
	}
	a.out.Canteen(c)
	if c.UPIID != "" {
		a.out.Colored(dimColor, "  upi %s\n", c.UPIID)
	}
	return nil
}
