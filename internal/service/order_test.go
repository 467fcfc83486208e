package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"canteen/internal/database"
	"canteen/internal/model"
)

func TestOnlineOrderLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.user(t, mainAdminID)
	student := f.user(t, studentID)

	o := f.order(t, studentID, "",
		model.CreateOrderItem{MenuItemID: vegThali, Quantity: 2},
		model.CreateOrderItem{MenuItemID: roti, Quantity: 1},
	)
	assert.Equal(t, model.StatusRequested, o.Status)
	assert.Equal(t, int64(13500), o.TotalAmountCents)
	assert.Equal(t, "20260302-0001", o.OrderNumber)
	require.NotNil(t, o.Payment)
	assert.Equal(t, model.MethodOnline, o.Payment.Method)
	assert.Equal(t, "upi://pay?pa=main@upi&am=135.00&cu=INR&tn=Order%201", o.Payment.QRPayload)
	require.NotNil(t, o.StudentRollNumber)
	assert.Equal(t, "S001", *o.StudentRollNumber)

	o, err := f.orders.Accept(ctx, admin, o.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPaymentPending, o.Status)
	require.NotNil(t, o.PaymentExpiresAt)
	assert.Equal(t, testStart.Add(5*time.Minute), *o.PaymentExpiresAt)

	f.clock.Advance(time.Minute)
	o, err = f.orders.Pay(ctx, student, o.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPaid, o.Status)
	assert.Equal(t, model.PaymentSuccess, o.Payment.Status)
	require.NotNil(t, o.PickupCode)
	assert.Len(t, *o.PickupCode, 4)
	require.NotNil(t, o.QueuePosition)
	assert.Equal(t, 1, *o.QueuePosition)
	assert.Equal(t, 10, *o.EstimatedMinutes)
	code := *o.PickupCode

	for _, st := range []model.OrderStatus{model.StatusPreparing, model.StatusReady} {
		o, err = f.orders.UpdateStatus(ctx, admin, o.ID, model.StatusUpdateRequest{Status: st})
		require.NoError(t, err)
		assert.Equal(t, st, o.Status)
	}
	assert.Nil(t, o.QueuePosition, "ready orders leave the queue")

	_, err = f.orders.UpdateStatus(ctx, admin, o.ID, model.StatusUpdateRequest{Status: model.StatusCollected})
	assert.True(t, errors.Is(err, errors.BadRequest))
	assert.EqualError(t, err, "Pickup code required for collection")

	_, err = f.orders.UpdateStatus(ctx, admin, o.ID, model.StatusUpdateRequest{Status: model.StatusCollected, PickupCode: "x" + code})
	assert.EqualError(t, err, "Invalid pickup code")

	o, err = f.orders.UpdateStatus(ctx, admin, o.ID, model.StatusUpdateRequest{Status: model.StatusCollected, PickupCode: code})
	require.NoError(t, err)
	assert.Equal(t, model.StatusCollected, o.Status)
	assert.NotNil(t, o.CollectedAt)
	require.NoError(t, o.Validate())

	var trail []model.OrderStatus
	for _, ev := range o.Events {
		trail = append(trail, ev.ToStatus)
	}
	assert.Equal(t, []model.OrderStatus{
		model.StatusRequested, model.StatusPaymentPending, model.StatusPaid,
		model.StatusPreparing, model.StatusReady, model.StatusCollected,
	}, trail)
	assert.Nil(t, o.Events[0].FromStatus)

	assert.Equal(t, []string{
		model.EventOrderCreated,
		model.EventOrderUpdated, model.EventOrderUpdated,
		model.EventOrderUpdated, model.EventOrderUpdated, model.EventOrderUpdated,
	}, f.pub.types())
}

func TestCounterOrderSkipsPayment(t *testing.T) {
	f := newFixture(t)
	o := f.order(t, studentID, model.MethodCounter)
	assert.Equal(t, CounterPaymentPayload, o.Payment.QRPayload)

	o, err := f.orders.Accept(context.Background(), f.user(t, mainAdminID), o.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPreparing, o.Status)
	assert.Equal(t, model.PaymentSuccess, o.Payment.Status)
	assert.Nil(t, o.PaymentExpiresAt)
	require.NotNil(t, o.PickupCode)
	require.NotNil(t, o.QueuePosition)
	assert.Equal(t, 1, *o.QueuePosition)
}

func TestLegacyMethodsNormalizeToOnline(t *testing.T) {
	f := newFixture(t)
	o := f.order(t, studentID, model.MethodUPIQR)
	assert.Equal(t, model.MethodOnline, o.Payment.Method)
}

func TestPayAfterWindowExpiresOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.order(t, studentID, model.MethodOnline)
	_, err := f.orders.Accept(ctx, f.user(t, mainAdminID), o.ID)
	require.NoError(t, err)

	f.clock.Advance(5*time.Minute + time.Second)
	_, err = f.orders.Pay(ctx, f.user(t, studentID), o.ID)
	assert.True(t, errors.Is(err, errors.BadRequest))
	assert.EqualError(t, err, "Payment window expired")

	o, err = f.orders.Get(ctx, f.user(t, studentID), o.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelledTimeout, o.Status)
	assert.Equal(t, model.PaymentExpired, o.Payment.Status)
	assert.NotNil(t, o.CancelledAt)
	assert.Contains(t, f.pub.types(), model.EventOrderPaymentExpired)

	_, err = f.orders.Pay(ctx, f.user(t, studentID), o.ID)
	assert.EqualError(t, err, "Order not in PAYMENT_PENDING")
}

func TestExpireStale(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.user(t, mainAdminID)
	first := f.order(t, studentID, model.MethodOnline)
	_, err := f.orders.Accept(ctx, admin, first.ID)
	require.NoError(t, err)

	f.clock.Advance(2 * time.Minute)
	second := f.order(t, otherStudent, model.MethodOnline)
	_, err = f.orders.Accept(ctx, admin, second.ID)
	require.NoError(t, err)

	f.clock.Advance(3*time.Minute + time.Second)
	expired := f.orders.ExpireStale(ctx)
	require.Len(t, expired, 1)
	assert.Equal(t, first.ID, expired[0].ID)
	assert.Equal(t, model.StatusCancelledTimeout, expired[0].Status)
	assert.Empty(t, f.orders.ExpireStale(ctx))

	last := expired[0].Events[len(expired[0].Events)-1]
	assert.Nil(t, last.ActorUserID)
}

func TestCreateOrderRejects(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, f *fixture)
		req   model.CreateOrderRequest
		kind  errors.ConstError
		msg   string
	}{
		{
			name: "no items",
			req:  model.CreateOrderRequest{CanteenID: mainCanteen},
			kind: errors.BadRequest,
			msg:  "Order must include items",
		},
		{
			name: "zero quantity",
			req:  model.CreateOrderRequest{CanteenID: mainCanteen, Items: []model.CreateOrderItem{{MenuItemID: vegThali}}},
			kind: errors.NotValid,
		},
		{
			name: "unknown method",
			req: model.CreateOrderRequest{CanteenID: mainCanteen, PaymentMethod: "CARD",
				Items: []model.CreateOrderItem{{MenuItemID: vegThali, Quantity: 1}}},
			kind: errors.NotValid,
		},
		{
			name: "unknown canteen",
			req:  model.CreateOrderRequest{CanteenID: 99, Items: []model.CreateOrderItem{{MenuItemID: vegThali, Quantity: 1}}},
			kind: errors.NotFound,
			msg:  "Canteen not found",
		},
		{
			name: "duplicate items",
			req: model.CreateOrderRequest{CanteenID: mainCanteen, Items: []model.CreateOrderItem{
				{MenuItemID: vegThali, Quantity: 1}, {MenuItemID: vegThali, Quantity: 2},
			}},
			kind: errors.BadRequest,
			msg:  "Duplicate menu items not allowed",
		},
		{
			name: "item of another canteen",
			req:  model.CreateOrderRequest{CanteenID: mainCanteen, Items: []model.CreateOrderItem{{MenuItemID: maggi, Quantity: 1}}},
			kind: errors.BadRequest,
			msg:  "Invalid menu item",
		},
		{
			name: "unavailable item",
			setup: func(t *testing.T, f *fixture) {
				_, err := f.catalog.ToggleMenuItem(context.Background(), mainCanteen, chickenCurry)
				require.NoError(t, err)
			},
			req:  model.CreateOrderRequest{CanteenID: mainCanteen, Items: []model.CreateOrderItem{{MenuItemID: chickenCurry, Quantity: 1}}},
			kind: errors.BadRequest,
			msg:  "Chicken Curry unavailable",
		},
		{
			name: "not accepting orders",
			setup: func(t *testing.T, f *fixture) {
				_, err := f.catalog.ToggleAcceptingOrders(context.Background(), mainCanteen)
				require.NoError(t, err)
			},
			req:  model.CreateOrderRequest{CanteenID: mainCanteen, Items: []model.CreateOrderItem{{MenuItemID: vegThali, Quantity: 1}}},
			kind: errors.BadRequest,
			msg:  "Canteen is not accepting orders",
		},
		{
			name: "deactivated canteen",
			setup: func(t *testing.T, f *fixture) {
				require.NoError(t, f.campus.DeleteCanteen(context.Background(), mainCanteen))
			},
			req:  model.CreateOrderRequest{CanteenID: mainCanteen, Items: []model.CreateOrderItem{{MenuItemID: vegThali, Quantity: 1}}},
			kind: errors.NotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			if tt.setup != nil {
				tt.setup(t, f)
			}
			_, err := f.orders.Create(context.Background(), f.user(t, studentID), tt.req)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.kind), "got %v", err)
			if tt.msg != "" {
				assert.EqualError(t, err, tt.msg)
			}
			assert.Empty(t, f.pub.types())
		})
	}
}

func TestCreateOrderAtCapacity(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.db.Update(func(tb *database.Tables) error {
		tb.Canteens[mainCanteen].MaxActiveOrders = 2
		return nil
	}))
	f.order(t, studentID, model.MethodOnline)
	declined := f.order(t, otherStudent, model.MethodOnline)

	_, err := f.orders.Create(context.Background(), f.user(t, studentID), model.CreateOrderRequest{
		CanteenID: mainCanteen,
		Items:     []model.CreateOrderItem{{MenuItemID: roti, Quantity: 1}},
	})
	assert.EqualError(t, err, "Canteen at max active orders")

	// declined orders free their slot
	_, err = f.orders.Decline(context.Background(), f.user(t, mainAdminID), declined.ID, "Out of stock")
	require.NoError(t, err)
	f.order(t, otherStudent, model.MethodOnline)

	count, err := f.orders.ActiveCount(context.Background(), mainCanteen)
	require.NoError(t, err)
	assert.Equal(t, &model.ActiveOrdersCount{ActiveOrders: 2, MaxOrders: 2}, count)
}

func TestQueuePositionFollowsPaymentTime(t *testing.T) {
	f := newFixture(t)
	first := f.paid(t, studentID)
	f.clock.Advance(time.Minute)
	second := f.paid(t, otherStudent)

	assert.Equal(t, 1, *first.QueuePosition)
	assert.Equal(t, 2, *second.QueuePosition)
	assert.Equal(t, 20, *second.EstimatedMinutes)
	assert.NotEqual(t, *first.PickupCode, *second.PickupCode)

	_, err := f.orders.UpdateStatus(context.Background(), f.user(t, mainAdminID), first.ID,
		model.StatusUpdateRequest{Status: model.StatusReady})
	require.NoError(t, err)

	second, err = f.orders.Get(context.Background(), f.user(t, otherStudent), second.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, *second.QueuePosition)
}

func TestDecline(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.user(t, mainAdminID)
	o := f.order(t, studentID, model.MethodOnline)

	_, err := f.orders.Decline(ctx, admin, o.ID, "   ")
	assert.True(t, errors.Is(err, errors.NotValid))
	_, err = f.orders.Decline(ctx, admin, o.ID, strings.Repeat("a", 201))
	assert.True(t, errors.Is(err, errors.NotValid))

	o, err = f.orders.Decline(ctx, admin, o.ID, " Kitchen closed ")
	require.NoError(t, err)
	assert.Equal(t, model.StatusDeclined, o.Status)
	assert.Equal(t, "Kitchen closed", *o.DeclineReason)

	_, err = f.orders.Decline(ctx, admin, o.ID, "again")
	assert.EqualError(t, err, "Order not in REQUESTED state")
	_, err = f.orders.Accept(ctx, admin, o.ID)
	assert.EqualError(t, err, "Order not in REQUESTED state")
}

func TestUpdateStatusRejectsSkippedStates(t *testing.T) {
	f := newFixture(t)
	o := f.order(t, studentID, model.MethodOnline)
	_, err := f.orders.UpdateStatus(context.Background(), f.user(t, mainAdminID), o.ID,
		model.StatusUpdateRequest{Status: model.StatusReady})
	assert.True(t, errors.Is(err, errors.BadRequest))
	assert.EqualError(t, err, "Invalid status transition from REQUESTED to READY")

	_, err = f.orders.UpdateStatus(context.Background(), f.user(t, mainAdminID), o.ID,
		model.StatusUpdateRequest{Status: "COOKING"})
	assert.True(t, errors.Is(err, errors.NotValid))
}

func TestSetPaymentStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.user(t, mainAdminID)

	accepted := func() *model.Order {
		o := f.order(t, studentID, model.MethodOnline)
		o, err := f.orders.Accept(ctx, admin, o.ID)
		require.NoError(t, err)
		return o
	}

	o := accepted()
	_, err := f.orders.SetPaymentStatus(ctx, admin, o.ID, "REFUNDED")
	assert.True(t, errors.Is(err, errors.BadRequest))
	assert.EqualError(t, err, "Invalid payment status")

	o, err = f.orders.SetPaymentStatus(ctx, admin, o.ID, model.PaymentFailed)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPaymentPending, o.Status)
	assert.Equal(t, model.PaymentFailed, o.Payment.Status)

	o, err = f.orders.SetPaymentStatus(ctx, admin, o.ID, model.PaymentSuccess)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPaid, o.Status)
	assert.Equal(t, model.PaymentSuccess, o.Payment.Status)
	require.NotNil(t, o.PickupCode)
	assert.NotNil(t, o.PaidAt)
	require.NotNil(t, o.QueuePosition)
	assert.Equal(t, 1, *o.QueuePosition)

	_, err = f.orders.SetPaymentStatus(ctx, admin, o.ID, model.PaymentSuccess)
	assert.EqualError(t, err, "Order not in PAYMENT_PENDING")

	o = accepted()
	o, err = f.orders.SetPaymentStatus(ctx, admin, o.ID, model.PaymentExpired)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelledTimeout, o.Status)
	assert.Equal(t, model.PaymentExpired, o.Payment.Status)
	assert.NotNil(t, o.CancelledAt)

	_, err = f.orders.SetPaymentStatus(ctx, f.user(t, hostelAdminID), accepted().ID, model.PaymentSuccess)
	assert.True(t, errors.Is(err, errors.NotFound))

	assert.Equal(t, model.EventOrderUpdated, f.pub.types()[len(f.pub.types())-1])
}

func TestCancelFailedPayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.user(t, mainAdminID)

	o := f.order(t, studentID, model.MethodOnline)
	_, err := f.orders.CancelFailedPayment(ctx, admin, o.ID)
	assert.EqualError(t, err, "Order not in PAYMENT_PENDING state")

	o, err = f.orders.Accept(ctx, admin, o.ID)
	require.NoError(t, err)
	_, err = f.orders.CancelFailedPayment(ctx, admin, o.ID)
	assert.True(t, errors.Is(err, errors.BadRequest))
	assert.EqualError(t, err, "Can only cancel orders with failed payments")

	_, err = f.orders.SetPaymentStatus(ctx, admin, o.ID, model.PaymentFailed)
	require.NoError(t, err)
	o, err = f.orders.CancelFailedPayment(ctx, admin, o.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusDeclined, o.Status)
	require.NotNil(t, o.DeclineReason)
	assert.Equal(t, "Payment failed - cancelled by admin", *o.DeclineReason)
	assert.NotNil(t, o.CancelledAt)
	require.NoError(t, o.Validate())

	last := o.Events[len(o.Events)-1]
	require.NotNil(t, last.FromStatus)
	assert.Equal(t, model.StatusPaymentPending, *last.FromStatus)
	assert.Equal(t, model.StatusDeclined, last.ToStatus)
	require.NotNil(t, last.ActorUserID)
	assert.Equal(t, mainAdminID, *last.ActorUserID)
}

func TestOrderAccessIsScoped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.order(t, studentID, model.MethodOnline)

	_, err := f.orders.Accept(ctx, f.user(t, hostelAdminID), o.ID)
	assert.True(t, errors.Is(err, errors.NotFound))

	_, err = f.orders.Get(ctx, f.user(t, otherStudent), o.ID)
	assert.True(t, errors.Is(err, errors.Forbidden))
	_, err = f.orders.Get(ctx, f.user(t, hostelAdminID), o.ID)
	assert.True(t, errors.Is(err, errors.Forbidden))

	for _, id := range []int64{studentID, mainAdminID, campusAdminID} {
		got, err := f.orders.Get(ctx, f.user(t, id), o.ID)
		require.NoError(t, err)
		assert.Equal(t, o.ID, got.ID)
	}

	_, err = f.orders.Pay(ctx, f.user(t, otherStudent), o.ID)
	assert.True(t, errors.Is(err, errors.NotFound))
	_, err = f.orders.Get(ctx, f.user(t, studentID), 999)
	assert.True(t, errors.Is(err, errors.NotFound))
}

func TestListings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	requested := f.order(t, studentID, model.MethodOnline)
	f.clock.Advance(time.Minute)
	paid := f.paid(t, studentID)
	f.order(t, otherStudent, model.MethodOnline)

	mine, err := f.orders.ListByStudent(ctx, studentID)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, paid.ID, mine[0].ID, "newest first")
	assert.Equal(t, requested.ID, mine[1].ID)

	all, err := f.orders.AdminList(ctx, mainCanteen, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	active, err := f.orders.AdminList(ctx, mainCanteen, "active")
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, paid.ID, active[0].ID)

	pending, err := f.orders.AdminList(ctx, mainCanteen, "REQUESTED")
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	_, err = f.orders.AdminList(ctx, mainCanteen, "bogus")
	assert.EqualError(t, err, "Invalid status filter")

	other, err := f.orders.AdminList(ctx, 2, "")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestDaily(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.order(t, studentID, model.MethodOnline)
	f.clock.Advance(24 * time.Hour)
	f.order(t, studentID, model.MethodOnline)

	today, err := f.orders.Daily(ctx, mainCanteen, "2026-03-02")
	require.NoError(t, err)
	assert.Len(t, today, 1)

	none, err := f.orders.Daily(ctx, mainCanteen, "2026-03-01")
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = f.orders.Daily(ctx, mainCanteen, "02/03/2026")
	assert.EqualError(t, err, "Invalid date format")
}

func TestStats(t *testing.T) {
	f := newFixture(t)
	f.order(t, studentID, model.MethodOnline)
	f.order(t, otherStudent, model.MethodOnline)
	f.paid(t, studentID)

	rows, err := f.orders.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []model.StatsRow{
		{CanteenID: 1, CanteenName: "Main Canteen", Status: model.StatusPaid, Count: 1},
		{CanteenID: 1, CanteenName: "Main Canteen", Status: model.StatusRequested, Count: 2},
	}, rows)
}
