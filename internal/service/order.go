package service

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/url"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/juju/clock"
	"github.com/juju/errors"

	"canteen/internal/database"
	"canteen/internal/model"
)

const (
	CounterPaymentPayload = "COUNTER_PAYMENT"

	pickupCodeAttempts = 5
	maxDeclineReason   = 200
	defaultMaxOrders   = 20
)

var ist = time.FixedZone("IST", 5*60*60+30*60)

// Publisher receives every order change after it is stored.
type Publisher interface {
	Broadcast(eventType string, o *model.Order)
}

type OrderService struct {
	db             *database.DB
	clock          clock.Clock
	publisher      Publisher
	paymentTimeout time.Duration
}

func NewOrderService(db *database.DB, clk clock.Clock, pub Publisher, paymentTimeout time.Duration) *OrderService {
	return &OrderService{db: db, clock: clk, publisher: pub, paymentTimeout: paymentTimeout}
}

func (s *OrderService) publish(eventType string, orders ...*model.Order) {
	if s.publisher == nil {
		return
	}
	for _, o := range orders {
		s.publisher.Broadcast(eventType, o)
	}
}

func (s *OrderService) Create(ctx context.Context, student *model.User, req model.CreateOrderRequest) (*model.Order, error) {
	if len(req.Items) == 0 {
		return nil, errors.NewBadRequest(nil, "Order must include items")
	}
	method := model.MethodOnline
	if req.PaymentMethod != "" {
		m, err := model.ParsePaymentMethod(string(req.PaymentMethod))
		if err != nil {
			return nil, errors.NewNotValid(nil, err.Error())
		}
		method = m.Normalize()
	}
	for _, it := range req.Items {
		if it.Quantity < 1 {
			return nil, errors.NewNotValid(nil, fmt.Sprintf("item %d: quantity must be at least 1", it.MenuItemID))
		}
	}

	now := s.clock.Now().UTC()
	var created *model.Order
	var expired []*model.Order
	err := s.db.Update(func(t *database.Tables) error {
		canteen, ok := t.Canteens[req.CanteenID]
		if !ok || !canteen.IsActive {
			return errors.NewNotFound(nil, "Canteen not found")
		}
		expired = expireStale(t, now)
		if !canteen.AcceptingOrders {
			return errors.NewBadRequest(nil, "Canteen is not accepting orders")
		}
		if countActive(t, canteen.ID) >= canteen.MaxActiveOrders {
			return errors.NewBadRequest(nil, "Canteen at max active orders")
		}

		seen := make(map[int64]bool, len(req.Items))
		for _, it := range req.Items {
			if seen[it.MenuItemID] {
				return errors.NewBadRequest(nil, "Duplicate menu items not allowed")
			}
			seen[it.MenuItemID] = true
		}

		id := t.NextID("orders")
		o := &model.Order{
			ID:          id,
			OrderNumber: fmt.Sprintf("%s-%04d", now.In(ist).Format("20060102"), id),
			StudentID:   student.ID,
			CanteenID:   canteen.ID,
			Status:      model.StatusRequested,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		for _, it := range req.Items {
			menu, ok := t.MenuItems[it.MenuItemID]
			if !ok || menu.CanteenID != canteen.ID {
				return errors.NewBadRequest(nil, "Invalid menu item")
			}
			if !menu.IsAvailable {
				return errors.NewBadRequest(nil, menu.Name+" unavailable")
			}
			o.Items = append(o.Items, model.LineItem{
				ID:             t.NextID("order_items"),
				MenuItemID:     menu.ID,
				MenuItemName:   menu.Name,
				Quantity:       it.Quantity,
				UnitPriceCents: menu.PriceCents,
			})
			o.TotalAmountCents += menu.PriceCents * int64(it.Quantity)
		}
		o.Payment = &model.Payment{
			ID:          t.NextID("payments"),
			AmountCents: o.TotalAmountCents,
			Method:      method,
			Status:      model.PaymentPending,
			QRPayload:   paymentPayload(method, canteen.UPIID, o.TotalAmountCents, o.ID),
			CreatedAt:   now,
		}
		addEvent(t, o, "", model.StatusRequested, &student.ID, now)
		t.Orders[id] = o
		created = serialize(t, o)
		return nil
	})
	s.publish(model.EventOrderPaymentExpired, expired...)
	if err != nil {
		return nil, err
	}
	slog.Info("order created", "id", created.ID, "number", created.OrderNumber, "canteen", created.CanteenID)
	s.publish(model.EventOrderCreated, created)
	return created, nil
}

func paymentPayload(method model.PaymentMethod, upiID string, amountCents, orderID int64) string {
	if method == model.MethodCounter {
		return CounterPaymentPayload
	}
	return fmt.Sprintf("upi://pay?pa=%s&am=%d.%02d&cu=INR&tn=%s",
		upiID, amountCents/100, amountCents%100, url.PathEscape(fmt.Sprintf("Order %d", orderID)))
}

// ListByStudent returns the student's orders, newest first.
func (s *OrderService) ListByStudent(ctx context.Context, studentID int64) ([]model.Order, error) {
	s.ExpireStale(ctx)
	var orders []model.Order
	err := s.db.View(func(t *database.Tables) error {
		for _, o := range t.Orders {
			if o.StudentID == studentID {
				orders = append(orders, *serialize(t, o))
			}
		}
		return nil
	})
	sortNewestFirst(orders)
	return orders, err
}

// Get returns one order if user may see it: students their own, canteen
// admins those of their canteen, campus admins all.
func (s *OrderService) Get(ctx context.Context, user *model.User, id int64) (*model.Order, error) {
	s.ExpireStale(ctx)
	var out *model.Order
	err := s.db.View(func(t *database.Tables) error {
		o, ok := t.Orders[id]
		if !ok {
			return errors.NewNotFound(nil, "Order not found")
		}
		switch user.Role {
		case model.RoleStudent:
			if o.StudentID != user.ID {
				return errors.NewForbidden(nil, "Forbidden")
			}
		case model.RoleCanteenAdmin:
			if user.CanteenID == nil || o.CanteenID != *user.CanteenID {
				return errors.NewForbidden(nil, "Forbidden")
			}
		}
		out = serialize(t, o)
		return nil
	})
	return out, err
}

// Pay confirms payment of a PAYMENT_PENDING order. A payment after the
// window expires the order instead.
func (s *OrderService) Pay(ctx context.Context, student *model.User, id int64) (*model.Order, error) {
	now := s.clock.Now().UTC()
	var out *model.Order
	var expired bool
	err := s.db.Update(func(t *database.Tables) error {
		o, ok := t.Orders[id]
		if !ok || o.StudentID != student.ID {
			return errors.NewNotFound(nil, "Order not found")
		}
		if o.Status != model.StatusPaymentPending {
			return errors.NewBadRequest(nil, "Order not in PAYMENT_PENDING")
		}
		if o.PaymentExpiresAt == nil || now.After(*o.PaymentExpiresAt) {
			expire(t, o, now)
			out = serialize(t, o)
			expired = true
			return errors.NewBadRequest(nil, "Payment window expired")
		}
		code, err := pickupCode(t, o.CanteenID)
		if err != nil {
			return err
		}
		o.Status = model.StatusPaid
		o.PaidAt = &now
		o.PickupCode = &code
		if o.Payment != nil {
			o.Payment.Status = model.PaymentSuccess
			o.Payment.PaidAt = &now
		}
		addEvent(t, o, model.StatusPaymentPending, model.StatusPaid, &student.ID, now)
		out = serialize(t, o)
		return nil
	})
	if expired {
		s.publish(model.EventOrderPaymentExpired, out)
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	s.publish(model.EventOrderUpdated, out)
	return out, nil
}

// Accept moves a REQUESTED order on. Counter orders go straight to
// PREPARING with their payment settled; online orders wait for payment.
func (s *OrderService) Accept(ctx context.Context, admin *model.User, id int64) (*model.Order, error) {
	now := s.clock.Now().UTC()
	return s.mutate(admin, id, func(t *database.Tables, o *model.Order) error {
		if o.Status != model.StatusRequested {
			return errors.NewBadRequest(nil, "Order not in REQUESTED state")
		}
		o.AcceptedAt = &now
		if o.Payment != nil && o.Payment.Method == model.MethodCounter {
			code, err := pickupCode(t, o.CanteenID)
			if err != nil {
				return err
			}
			o.Status = model.StatusPreparing
			o.PaidAt = &now
			o.PickupCode = &code
			o.Payment.Status = model.PaymentSuccess
			o.Payment.PaidAt = &now
			addEvent(t, o, model.StatusRequested, model.StatusPreparing, &admin.ID, now)
			return nil
		}

		expires := now.Add(s.paymentTimeout)
		o.Status = model.StatusPaymentPending
		o.PaymentExpiresAt = &expires
		if o.Payment != nil {
			o.Payment.Status = model.PaymentPending
		}
		addEvent(t, o, model.StatusRequested, model.StatusPaymentPending, &admin.ID, now)
		return nil
	})
}

func (s *OrderService) Decline(ctx context.Context, admin *model.User, id int64, reason string) (*model.Order, error) {
	reason = strings.TrimSpace(reason)
	if n := utf8.RuneCountInString(reason); n == 0 || n > maxDeclineReason {
		return nil, errors.NewNotValid(nil, fmt.Sprintf("reason must be 1 to %d characters", maxDeclineReason))
	}
	now := s.clock.Now().UTC()
	return s.mutate(admin, id, func(t *database.Tables, o *model.Order) error {
		if o.Status != model.StatusRequested {
			return errors.NewBadRequest(nil, "Order not in REQUESTED state")
		}
		o.Status = model.StatusDeclined
		o.DeclineReason = &reason
		addEvent(t, o, model.StatusRequested, model.StatusDeclined, &admin.ID, now)
		return nil
	})
}

// UpdateStatus applies an admin status change. COLLECTED needs the pickup
// code and settles a pending counter payment.
func (s *OrderService) UpdateStatus(ctx context.Context, admin *model.User, id int64, req model.StatusUpdateRequest) (*model.Order, error) {
	if !req.Status.Valid() {
		return nil, errors.NewNotValid(nil, fmt.Sprintf("unknown status %q", req.Status))
	}
	now := s.clock.Now().UTC()
	return s.mutate(admin, id, func(t *database.Tables, o *model.Order) error {
		if req.Status == model.StatusCollected {
			if req.PickupCode == "" {
				return errors.NewBadRequest(nil, "Pickup code required for collection")
			}
			if o.PickupCode == nil || req.PickupCode != *o.PickupCode {
				return errors.NewBadRequest(nil, "Invalid pickup code")
			}
		}
		if !o.Status.CanTransition(req.Status) {
			return errors.NewBadRequest(nil, fmt.Sprintf("Invalid status transition from %s to %s", o.Status, req.Status))
		}
		prev := o.Status
		o.Status = req.Status
		if req.Status == model.StatusCollected {
			o.CollectedAt = &now
			if p := o.Payment; p != nil && p.Method == model.MethodCounter && p.Status == model.PaymentPending {
				p.Status = model.PaymentSuccess
				p.PaidAt = &now
			}
		}
		addEvent(t, o, prev, req.Status, &admin.ID, now)
		return nil
	})
}

// SetPaymentStatus records the admin's verdict on the payment of a
// PAYMENT_PENDING order. SUCCESS pays the order, EXPIRED cancels it, and
// FAILED or PENDING only mark the payment.
func (s *OrderService) SetPaymentStatus(ctx context.Context, admin *model.User, id int64, status model.PaymentStatus) (*model.Order, error) {
	if !status.Valid() {
		return nil, errors.NewBadRequest(nil, "Invalid payment status")
	}
	now := s.clock.Now().UTC()
	return s.mutate(admin, id, func(t *database.Tables, o *model.Order) error {
		if o.Payment == nil {
			return errors.NewBadRequest(nil, "Order has no payment")
		}
		if o.Status != model.StatusPaymentPending {
			return errors.NewBadRequest(nil, "Order not in PAYMENT_PENDING")
		}
		switch status {
		case model.PaymentSuccess:
			code, err := pickupCode(t, o.CanteenID)
			if err != nil {
				return err
			}
			o.Status = model.StatusPaid
			o.PaidAt = &now
			o.PickupCode = &code
			o.Payment.Status = model.PaymentSuccess
			o.Payment.PaidAt = &now
			addEvent(t, o, model.StatusPaymentPending, model.StatusPaid, &admin.ID, now)
		case model.PaymentExpired:
			expire(t, o, now)
		default:
			o.Payment.Status = status
		}
		return nil
	})
}

// CancelFailedPayment declines a PAYMENT_PENDING order whose payment was
// marked FAILED.
func (s *OrderService) CancelFailedPayment(ctx context.Context, admin *model.User, id int64) (*model.Order, error) {
	now := s.clock.Now().UTC()
	return s.mutate(admin, id, func(t *database.Tables, o *model.Order) error {
		if o.Status != model.StatusPaymentPending {
			return errors.NewBadRequest(nil, "Order not in PAYMENT_PENDING state")
		}
		if o.Payment != nil && o.Payment.Status != model.PaymentFailed {
			return errors.NewBadRequest(nil, "Can only cancel orders with failed payments")
		}
		reason := "Payment failed - cancelled by admin"
		o.Status = model.StatusDeclined
		o.CancelledAt = &now
		o.DeclineReason = &reason
		addEvent(t, o, model.StatusPaymentPending, model.StatusDeclined, &admin.ID, now)
		return nil
	})
}

// mutate runs fn on an order of the admin's canteen and publishes the
// result as order.updated.
func (s *OrderService) mutate(admin *model.User, id int64, fn func(t *database.Tables, o *model.Order) error) (*model.Order, error) {
	var out *model.Order
	err := s.db.Update(func(t *database.Tables) error {
		o, ok := t.Orders[id]
		if !ok || admin.CanteenID == nil || o.CanteenID != *admin.CanteenID {
			return errors.NewNotFound(nil, "Order not found")
		}
		if err := fn(t, o); err != nil {
			return err
		}
		o.UpdatedAt = s.clock.Now().UTC()
		out = serialize(t, o)
		return nil
	})
	if err != nil {
		return nil, err
	}
	slog.Info("order updated", "id", out.ID, "status", out.Status)
	s.publish(model.EventOrderUpdated, out)
	return out, nil
}

// AdminList lists the orders of the admin's canteen, newest first. filter
// is empty, ACTIVE or a single status, case-insensitive.
func (s *OrderService) AdminList(ctx context.Context, canteenID int64, filter string) ([]model.Order, error) {
	match := func(model.OrderStatus) bool { return true }
	switch f := strings.ToUpper(filter); {
	case f == "":
	case f == "ACTIVE":
		match = model.OrderStatus.Active
	default:
		st, err := model.ParseOrderStatus(f)
		if err != nil {
			return nil, errors.NewBadRequest(nil, "Invalid status filter")
		}
		match = func(s model.OrderStatus) bool { return s == st }
	}

	s.ExpireStale(ctx)
	var orders []model.Order
	err := s.db.View(func(t *database.Tables) error {
		for _, o := range t.Orders {
			if o.CanteenID == canteenID && match(o.Status) {
				orders = append(orders, *serialize(t, o))
			}
		}
		return nil
	})
	sortNewestFirst(orders)
	return orders, err
}

// Daily lists the canteen's orders created on day (YYYY-MM-DD, UTC).
func (s *OrderService) Daily(ctx context.Context, canteenID int64, day string) ([]model.Order, error) {
	start, err := time.Parse(time.DateOnly, day)
	if err != nil {
		return nil, errors.NewBadRequest(nil, "Invalid date format")
	}
	end := start.AddDate(0, 0, 1)
	var orders []model.Order
	err = s.db.View(func(t *database.Tables) error {
		for _, o := range t.Orders {
			if o.CanteenID == canteenID && !o.CreatedAt.Before(start) && o.CreatedAt.Before(end) {
				orders = append(orders, *serialize(t, o))
			}
		}
		return nil
	})
	sortNewestFirst(orders)
	return orders, err
}

func (s *OrderService) ActiveCount(ctx context.Context, canteenID int64) (*model.ActiveOrdersCount, error) {
	out := &model.ActiveOrdersCount{MaxOrders: defaultMaxOrders}
	err := s.db.View(func(t *database.Tables) error {
		out.ActiveOrders = countActive(t, canteenID)
		if c, ok := t.Canteens[canteenID]; ok {
			out.MaxOrders = c.MaxActiveOrders
		}
		return nil
	})
	return out, err
}

// Stats counts orders per canteen and status.
func (s *OrderService) Stats(ctx context.Context) ([]model.StatsRow, error) {
	type key struct {
		canteen int64
		status  model.OrderStatus
	}
	counts := make(map[key]int)
	rows := []model.StatsRow{}
	err := s.db.View(func(t *database.Tables) error {
		for _, o := range t.Orders {
			c, ok := t.Canteens[o.CanteenID]
			if !ok {
				continue
			}
			k := key{o.CanteenID, o.Status}
			if counts[k] == 0 {
				rows = append(rows, model.StatsRow{CanteenID: c.ID, CanteenName: c.Name, Status: o.Status})
			}
			counts[k]++
		}
		return nil
	})
	for i := range rows {
		rows[i].Count = counts[key{rows[i].CanteenID, rows[i].Status}]
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].CanteenID != rows[j].CanteenID {
			return rows[i].CanteenID < rows[j].CanteenID
		}
		return rows[i].Status < rows[j].Status
	})
	return rows, err
}

// ExpireStale cancels every PAYMENT_PENDING order whose window has passed
// and announces each as order.payment_expired.
func (s *OrderService) ExpireStale(ctx context.Context) []*model.Order {
	now := s.clock.Now().UTC()
	var expired []*model.Order
	_ = s.db.Update(func(t *database.Tables) error {
		expired = expireStale(t, now)
		return nil
	})
	for _, o := range expired {
		slog.Info("payment window expired", "id", o.ID, "canteen", o.CanteenID)
	}
	s.publish(model.EventOrderPaymentExpired, expired...)
	return expired
}

func expireStale(t *database.Tables, now time.Time) []*model.Order {
	var expired []*model.Order
	for _, o := range t.Orders {
		if o.Status == model.StatusPaymentPending && o.PaymentExpiresAt != nil && o.PaymentExpiresAt.Before(now) {
			expire(t, o, now)
			expired = append(expired, serialize(t, o))
		}
	}
	return expired
}

func expire(t *database.Tables, o *model.Order, now time.Time) {
	if o.Status != model.StatusPaymentPending {
		return
	}
	o.Status = model.StatusCancelledTimeout
	o.CancelledAt = &now
	o.UpdatedAt = now
	if o.Payment != nil {
		o.Payment.Status = model.PaymentExpired
	}
	addEvent(t, o, model.StatusPaymentPending, model.StatusCancelledTimeout, nil, now)
}

func countActive(t *database.Tables, canteenID int64) int {
	n := 0
	for _, o := range t.Orders {
		if o.CanteenID == canteenID && (o.Status == model.StatusRequested || o.Status.Active()) {
			n++
		}
	}
	return n
}

// pickupCode draws a 4-digit code not held by another uncollected order of
// the canteen.
func pickupCode(t *database.Tables, canteenID int64) (string, error) {
	for range pickupCodeAttempts {
		code := fmt.Sprintf("%04d", rand.IntN(10000))
		taken := false
		for _, o := range t.Orders {
			if o.CanteenID == canteenID && o.Status != model.StatusCollected && o.PickupCode != nil && *o.PickupCode == code {
				taken = true
				break
			}
		}
		if !taken {
			return code, nil
		}
	}
	return "", errors.New("Failed to generate pickup code")
}

func addEvent(t *database.Tables, o *model.Order, from, to model.OrderStatus, actor *int64, now time.Time) {
	ev := model.OrderEvent{ID: t.NextID("order_events"), ToStatus: to, CreatedAt: now}
	if from != "" {
		ev.FromStatus = &from
	}
	if actor != nil {
		id := *actor
		ev.ActorUserID = &id
	}
	o.Events = append(o.Events, ev)
	o.UpdatedAt = now
}

// serialize copies o for the wire, adding queue position and student
// contact details.
func serialize(t *database.Tables, o *model.Order) *model.Order {
	out := *o
	out.Items = append([]model.LineItem(nil), o.Items...)
	out.Events = append([]model.OrderEvent(nil), o.Events...)
	if o.Payment != nil {
		p := *o.Payment
		out.Payment = &p
	}
	if pos, ok := queuePosition(t, o); ok {
		avg := 10
		if c, ok := t.Canteens[o.CanteenID]; ok {
			avg = c.AvgPrepMinutes
		}
		minutes := avg * pos
		out.QueuePosition = &pos
		out.EstimatedMinutes = &minutes
	}
	if u, ok := t.Users[o.StudentID]; ok {
		out.StudentName = u.Name
		out.StudentRollNumber = u.RollNumber
		out.StudentPhoneNumber = u.PhoneNumber
	}
	return &out
}

func queued(o *model.Order) bool {
	return (o.Status == model.StatusPaid || o.Status == model.StatusPreparing) &&
		o.PaidAt != nil && (o.Payment == nil || o.Payment.Status == model.PaymentSuccess)
}

// queuePosition is 1 + the number of queued orders of the same canteen
// paid earlier.
func queuePosition(t *database.Tables, o *model.Order) (int, bool) {
	if !queued(o) {
		return 0, false
	}
	pos := 1
	for _, other := range t.Orders {
		if other.ID != o.ID && other.CanteenID == o.CanteenID && queued(other) && paidFirst(other, o) {
			pos++
		}
	}
	return pos, true
}

func paidFirst(a, b *model.Order) bool {
	if a.PaidAt.Equal(*b.PaidAt) {
		return a.ID < b.ID
	}
	return a.PaidAt.Before(*b.PaidAt)
}

func sortNewestFirst(orders []model.Order) {
	sort.Slice(orders, func(i, j int) bool {
		if !orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].CreatedAt.After(orders[j].CreatedAt)
		}
		return orders[i].ID > orders[j].ID
	})
}
