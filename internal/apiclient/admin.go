package apiclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"canteen/internal/model"
)

// QueueFilter selects orders of the admin queue: "" for all, "ACTIVE" for
// PAYMENT_PENDING/PAID/PREPARING/READY, or a single status.
type QueueFilter string

const (
	FilterAll    QueueFilter = ""
	FilterActive QueueFilter = "ACTIVE"
)

const maxDeclineReason = 200

func (c *Client) AdminOrders(ctx context.Context, filter QueueFilter) ([]model.Order, error) {
	var q url.Values
	if filter != FilterAll {
		f := QueueFilter(strings.ToUpper(string(filter)))
		if f != FilterActive && !model.OrderStatus(f).Valid() {
			return nil, invalid(fmt.Errorf("invalid status filter %q", filter))
		}
		q = url.Values{"status": {string(f)}}
	}
	return getList[model.Order](ctx, c, "/admin/orders", q)
}

// DailyOrders lists the canteen's orders created on the given calendar day.
func (c *Client) DailyOrders(ctx context.Context, day time.Time) ([]model.Order, error) {
	q := url.Values{"date": {day.Format(time.DateOnly)}}
	return getList[model.Order](ctx, c, "/admin/orders/daily", q)
}

func (c *Client) ActiveOrdersCount(ctx context.Context) (*model.ActiveOrdersCount, error) {
	var out model.ActiveOrdersCount
	if err := c.do(ctx, http.MethodGet, "/admin/stats/active-orders", nil, nil, &out); err != nil {
		return nil, err
	}
	if out.ActiveOrders < 0 || out.MaxOrders < 0 {
		return nil, malformed("/admin/stats/active-orders", fmt.Errorf("negative counters"))
	}
	return &out, nil
}

func (c *Client) AcceptOrder(ctx context.Context, id int64) (*model.Order, error) {
	return c.mutateOrder(ctx, http.MethodPost, fmt.Sprintf("/admin/orders/%d/accept", id), nil)
}

func (c *Client) DeclineOrder(ctx context.Context, id int64, reason string) (*model.Order, error) {
	reason = strings.TrimSpace(reason)
	if n := utf8.RuneCountInString(reason); n == 0 || n > maxDeclineReason {
		return nil, invalid(fmt.Errorf("decline reason must be 1 to %d characters", maxDeclineReason))
	}
	return c.mutateOrder(ctx, http.MethodPost, fmt.Sprintf("/admin/orders/%d/decline", id), model.DeclineRequest{Reason: reason})
}

// AdvanceOrder moves an order to status. Marking COLLECTED requires the
// pickup code the student presents.
func (c *Client) AdvanceOrder(ctx context.Context, id int64, status model.OrderStatus, pickupCode string) (*model.Order, error) {
	if !status.Valid() {
		return nil, invalid(fmt.Errorf("unknown status %q", status))
	}
	if status == model.StatusCollected && strings.TrimSpace(pickupCode) == "" {
		return nil, invalid(fmt.Errorf("pickup code required for collection"))
	}
	req := model.StatusUpdateRequest{Status: status, PickupCode: strings.TrimSpace(pickupCode)}
	return c.mutateOrder(ctx, http.MethodPost, fmt.Sprintf("/admin/orders/%d/status", id), req)
}

// SetPaymentStatus records the admin's verdict on an online payment.
func (c *Client) SetPaymentStatus(ctx context.Context, id int64, status model.PaymentStatus) (*model.Order, error) {
	status = model.PaymentStatus(strings.ToUpper(string(status)))
	if !status.Valid() {
		return nil, invalid(fmt.Errorf("unknown payment status %q", status))
	}
	return c.mutateOrder(ctx, http.MethodPost, fmt.Sprintf("/admin/orders/%d/payment-status", id), model.PaymentStatusRequest{Status: status})
}

// CancelFailedPayment declines an order whose payment was marked FAILED.
func (c *Client) CancelFailedPayment(ctx context.Context, id int64) (*model.Order, error) {
	return c.mutateOrder(ctx, http.MethodPost, fmt.Sprintf("/admin/orders/%d/cancel-failed-payment", id), nil)
}

func (c *Client) AdminProfile(ctx context.Context) (*model.Canteen, error) {
	return getOne[model.Canteen](ctx, c, "/admin/profile", nil)
}

func (c *Client) UpdateAdminProfile(ctx context.Context, in model.CanteenInput) (*model.Canteen, error) {
	if err := in.Validate(); err != nil {
		return nil, invalid(err)
	}
	return send[model.Canteen](ctx, c, http.MethodPut, "/admin/profile", in)
}

// ToggleAcceptingOrders flips the canteen's accepting_orders flag.
func (c *Client) ToggleAcceptingOrders(ctx context.Context) (*model.Canteen, error) {
	return send[model.Canteen](ctx, c, http.MethodPatch, "/admin/profile/toggle-orders", nil)
}

func (c *Client) AdminMenu(ctx context.Context) ([]model.MenuItem, error) {
	return getList[model.MenuItem](ctx, c, "/admin/menu", nil)
}

// ToggleMenuItem flips the availability of one of the admin's menu items.
func (c *Client) ToggleMenuItem(ctx context.Context, itemID int64) (*model.MenuItem, error) {
	return send[model.MenuItem](ctx, c, http.MethodPatch, fmt.Sprintf("/admin/menu/%d/toggle", itemID), nil)
}
