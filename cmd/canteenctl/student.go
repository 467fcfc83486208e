package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/juju/errors"
	"github.com/juju/worker/v4"
	"golang.org/x/sync/errgroup"

	"canteen/internal/apiclient"
	"canteen/internal/cart"
	"canteen/internal/livesync"
	"canteen/internal/model"
	"canteen/internal/push"
)

func runCanteens(ctx context.Context, a *app, args []string) error {
	if len(args) != 0 {
		return errUsage
	}
	if _, err := currentUser(ctx, a); err != nil {
		return err
	}
	canteens, err := a.session.Client().ListCanteens(ctx)
	if err != nil {
		return err
	}
	if len(canteens) == 0 {
		a.out.Println("no canteens")
	}
	for i := range canteens {
		a.out.Canteen(&canteens[i])
	}
	return nil
}

// canteenView fetches the status and menu of a canteen concurrently.
func canteenView(ctx context.Context, a *app, canteenID int64) (*model.CanteenStatus, []model.MenuItem, error) {
	var (
		status *model.CanteenStatus
		items  []model.MenuItem
	)
	client := a.session.Client()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		status, err = client.CanteenStatus(gctx, canteenID)
		return err
	})
	g.Go(func() error {
		var err error
		items, err = client.Menu(gctx, canteenID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return status, items, nil
}

func (p *printer) canteenStatus(s *model.CanteenStatus) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.endInline()
	fmt.Fprintf(p.w, "hours %s-%s, now %s, %d/%d active orders  ", s.HoursOpen, s.HoursClose, s.CurrentTime, s.ActiveOrders, s.MaxOrders)
	switch {
	case s.Orderable():
		okColor.Fprintf(p.w, "taking orders")
	case s.AtCapacity():
		warnColor.Fprintf(p.w, "at capacity")
	case !s.IsOpen:
		warnColor.Fprintf(p.w, "closed")
	default:
		warnColor.Fprintf(p.w, "not taking orders")
	}
	fmt.Fprintln(p.w)
	contact := make([]string, 0, 3)
	for _, v := range []*string{s.AdminName, s.AdminPhone, s.AdminEmail} {
		if v != nil && *v != "" {
			contact = append(contact, *v)
		}
	}
	if len(contact) > 0 {
		dimColor.Fprintf(p.w, "contact: %s\n", strings.Join(contact, ", "))
	}
}

func runMenu(ctx context.Context, a *app, args []string) error {
	canteenID, err := oneID(args, "canteen")
	if err != nil {
		return err
	}
	if _, err := currentUser(ctx, a); err != nil {
		return err
	}
	status, items, err := canteenView(ctx, a, canteenID)
	if err != nil {
		return err
	}
	a.out.canteenStatus(status)
	for i := range items {
		a.out.MenuItem(&items[i])
	}
	return nil
}

// parseCartArg reads ITEM or ITEM=QTY.
func parseCartArg(s string) (int64, int, error) {
	idPart, qtyPart, hasQty := strings.Cut(s, "=")
	id, err := parseID(idPart, "menu item")
	if err != nil {
		return 0, 0, err
	}
	qty := 1
	if hasQty {
		qty, err = strconv.Atoi(qtyPart)
		if err != nil || qty < 1 {
			return 0, 0, errors.NewNotValid(nil, fmt.Sprintf("invalid quantity %q", qtyPart))
		}
	}
	return id, qty, nil
}

func runOrder(ctx context.Context, a *app, args []string) error {
	fs := newFlags("order")
	canteenID := fs.Int64("canteen", 0, "canteen id")
	method := fs.String("method", string(model.MethodOnline), "payment method (ONLINE or COUNTER)")
	watch := fs.Bool("watch", false, "follow the order after placing it")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if *canteenID <= 0 || fs.NArg() == 0 {
		return errUsage
	}
	pm, err := model.ParsePaymentMethod(*method)
	if err != nil {
		return errors.NewNotValid(nil, err.Error())
	}
	if _, err := currentUser(ctx, a, model.RoleStudent); err != nil {
		return err
	}

	status, items, err := canteenView(ctx, a, *canteenID)
	if err != nil {
		return err
	}
	menu := make(map[int64]model.MenuItem, len(items))
	for _, it := range items {
		menu[it.ID] = it
	}

	c := cart.New(a.cfg.Cart)
	for _, arg := range fs.Args() {
		id, qty, err := parseCartArg(arg)
		if err != nil {
			return err
		}
		item, ok := menu[id]
		if !ok {
			return errors.NewNotFound(nil, fmt.Sprintf("item %d is not on this canteen's menu", id))
		}
		if c.Contains(id) {
			if _, err := c.UpdateQuantity(id, qty); err != nil {
				return err
			}
			continue
		}
		if _, err := c.Toggle(item); err != nil {
			return errors.Annotatef(err, "%s", item.Name)
		}
		if qty > 1 {
			if _, err := c.UpdateQuantity(id, qty-1); err != nil {
				return errors.Annotatef(err, "%s", item.Name)
			}
		}
	}
	a.out.Plain("%d items, total %s\n", c.Len(), rupees(c.Total()))

	o, err := c.Submit(ctx, a.session.Client(), *canteenID, status, pm)
	if err != nil {
		return err
	}
	a.out.Order(o)
	if *watch {
		return watchOrder(ctx, a, o.ID)
	}
	a.out.Colored(dimColor, "run 'canteenctl watch %d' to follow it\n", o.ID)
	return nil
}

func runOrders(ctx context.Context, a *app, args []string) error {
	fs := newFlags("orders")
	watch := fs.Bool("watch", false, "keep the list updated")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if _, err := currentUser(ctx, a, model.RoleStudent); err != nil {
		return err
	}
	client := a.session.Client()
	if !*watch {
		orders, err := client.ListOrders(ctx)
		if err != nil {
			return err
		}
		a.out.orderList(orders)
		return nil
	}

	cfg := livesync.StudentOrders(client)
	cfg.Dialer = push.NewDialer(client.SocketURL(), a.session.Jar())
	cfg.OnUpdate = func(orders []model.Order) {
		a.out.Colored(dimColor, "-- %s --\n", time.Now().Format(time.TimeOnly))
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

func (p *printer) orderList(orders []model.Order) {
	if len(orders) == 0 {
		p.Println("no orders")
		return
	}
	for i := range orders {
		p.OrderLine(&orders[i])
	}
}

// syncError reports a refresh failure that retrying will not fix.
func (p *printer) syncError(err error) {
	p.Colored(warnColor, "refresh failed: %s\n", apiclient.Describe(err))
}

func (p *printer) syncState(s livesync.State) {
	switch s {
	case livesync.Live:
		p.Colored(dimColor, "(live)\n")
	case livesync.Degraded:
		p.Colored(warnColor, "(offline, polling)\n")
	}
}

// stopWorker kills w and waits for it. A worker that died because the
// command was interrupted is not an error.
func stopWorker(w worker.Worker) error {
	err := worker.Stop(w)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func runShow(ctx context.Context, a *app, args []string) error {
	id, err := oneID(args, "order")
	if err != nil {
		return err
	}
	if _, err := currentUser(ctx, a); err != nil {
		return err
	}
	o, err := a.session.Client().GetOrder(ctx, id)
	if err != nil {
		return err
	}
	a.out.Order(o)
	return nil
}

func runPay(ctx context.Context, a *app, args []string) error {
	id, err := oneID(args, "order")
	if err != nil {
		return err
	}
	if _, err := currentUser(ctx, a, model.RoleStudent); err != nil {
		return err
	}
	o, err := a.session.Client().PayOrder(ctx, id)
	if err != nil {
		return err
	}
	a.out.Order(o)
	return nil
}

func runMessMenu(ctx context.Context, a *app, args []string) error {
	fs := newFlags("messmenu")
	hostel := fs.String("hostel", "", "hostel name (defaults to your own)")
	day := fs.Int("day", -1, "day of week, 0=Monday (defaults to today)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	u, err := currentUser(ctx, a)
	if err != nil {
		return err
	}
	if *hostel == "" && u.HostelName != nil {
		*hostel = *u.HostelName
	}
	if *hostel == "" {
		return errUsage
	}

	client := a.session.Client()
	var m *model.MessMenu
	if *day < 0 {
		m, err = client.TodayMessMenu(ctx, *hostel)
	} else {
		if err := model.ValidDayOfWeek(*day); err != nil {
			return errors.NewNotValid(nil, err.Error())
		}
		m, err = client.MessMenu(ctx, *hostel, *day)
	}
	if err != nil {
		return err
	}
	a.out.MessMenu(m)
	return nil
}
