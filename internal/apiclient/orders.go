package apiclient

import (
	"context"
	"fmt"
	"net/http"

	"canteen/internal/model"
)

// orderEnvelope is the {"order": ...} body of order mutations.
type orderEnvelope struct {
	Order *model.Order `json:"order"`
}

func (e *orderEnvelope) Validate() error {
	if e.Order == nil {
		return fmt.Errorf("missing order")
	}
	return e.Order.Validate()
}

func (c *Client) mutateOrder(ctx context.Context, method, path string, body any) (*model.Order, error) {
	env, err := send[orderEnvelope](ctx, c, method, path, body)
	if err != nil {
		return nil, err
	}
	return env.Order, nil
}

// CreateOrder places an order. It is never retried automatically.
func (c *Client) CreateOrder(ctx context.Context, req model.CreateOrderRequest) (*model.Order, error) {
	if len(req.Items) == 0 {
		return nil, invalid(fmt.Errorf("order must include items"))
	}
	seen := make(map[int64]bool, len(req.Items))
	for _, it := range req.Items {
		if it.Quantity < 1 {
			return nil, invalid(fmt.Errorf("item %d: quantity must be at least 1", it.MenuItemID))
		}
		if seen[it.MenuItemID] {
			return nil, invalid(fmt.Errorf("duplicate menu item %d", it.MenuItemID))
		}
		seen[it.MenuItemID] = true
	}
	if req.PaymentMethod == "" {
		req.PaymentMethod = model.MethodOnline
	}
	return c.mutateOrder(ctx, http.MethodPost, "/orders", req)
}

// ListOrders returns the student's own orders, newest first.
func (c *Client) ListOrders(ctx context.Context) ([]model.Order, error) {
	return getList[model.Order](ctx, c, "/orders", nil)
}

func (c *Client) GetOrder(ctx context.Context, id int64) (*model.Order, error) {
	path := fmt.Sprintf("/orders/%d", id)
	o, err := getOne[model.Order](ctx, c, path, nil)
	if err != nil {
		return nil, err
	}
	if o.ID != id {
		return nil, malformed(path, fmt.Errorf("asked for order %d, got %d", id, o.ID))
	}
	return o, nil
}

// PayOrder confirms payment of a PAYMENT_PENDING order.
func (c *Client) PayOrder(ctx context.Context, id int64) (*model.Order, error) {
	return c.mutateOrder(ctx, http.MethodPost, fmt.Sprintf("/orders/%d/pay", id), nil)
}
