package livesync

import (
	"context"
	"fmt"
	"time"

	"canteen/internal/apiclient"
	"canteen/internal/model"
)

type OrderGetter interface {
	GetOrder(ctx context.Context, id int64) (*model.Order, error)
}

type OrderLister interface {
	ListOrders(ctx context.Context) ([]model.Order, error)
}

type QueueLister interface {
	AdminOrders(ctx context.Context, filter apiclient.QueueFilter) ([]model.Order, error)
}

// OrderDetail watches a single order. Only events about that order, or
// events that name no order, cause a refetch.
func OrderDetail(src OrderGetter, id int64) Config[*model.Order] {
	return Config[*model.Order]{
		View: "order_detail",
		Key:  fmt.Sprintf("order/%d", id),
		Fetch: func(ctx context.Context) (*model.Order, error) {
			return src.GetOrder(ctx, id)
		},
		Relevant:         func(ev model.Event) bool { return ev.Concerns(id) },
		PollInterval:     2 * time.Second,
		ReconnectInitial: 2 * time.Second,
		ReconnectMax:     5 * time.Second,
	}
}

// StudentOrders watches the logged-in student's order list.
func StudentOrders(src OrderLister) Config[[]model.Order] {
	return Config[[]model.Order]{
		View:         "student_orders",
		Key:          "orders",
		Fetch:        src.ListOrders,
		Relevant:     model.Event.IsOrderEvent,
		PollInterval: 4 * time.Second,
	}
}

// AdminQueue watches a canteen admin's order queue under filter.
func AdminQueue(src QueueLister, filter apiclient.QueueFilter) Config[[]model.Order] {
	return Config[[]model.Order]{
		View: "admin_queue",
		Key:  "admin/orders?status=" + string(filter),
		Fetch: func(ctx context.Context) ([]model.Order, error) {
			return src.AdminOrders(ctx, filter)
		},
		Relevant:     model.Event.IsOrderEvent,
		PollInterval: 3 * time.Second,
	}
}
