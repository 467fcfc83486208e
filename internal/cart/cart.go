// Package cart keeps a student's selection before checkout.
package cart

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/juju/errors"

	"canteen/internal/model"
)

var (
	ErrItemUnavailable    = fmt.Errorf("%w: item is unavailable", errors.NotValid)
	ErrEmptyCart          = fmt.Errorf("%w: cart is empty", errors.NotValid)
	ErrCanteenUnavailable = errors.ConstError("canteen is not accepting orders")
	ErrLimitExceeded      = fmt.Errorf("%w: cart limit reached", errors.NotValid)
	ErrNotInCart          = fmt.Errorf("%w: item is not in the cart", errors.NotFound)
	ErrMixedCanteens      = fmt.Errorf("%w: cart holds items from another canteen", errors.NotValid)
)

// Policy caps the cart. Zero values mean no limit.
type Policy struct {
	MaxQuantity int `yaml:"max_item_quantity"`
	MaxItems    int `yaml:"max_cart_items"`
}

// Entry is one selected menu item.
type Entry struct {
	Item     model.MenuItem
	Quantity int
}

func (e Entry) SubtotalCents() int64 {
	return int64(e.Quantity) * e.Item.PriceCents
}

// Placer creates orders. *apiclient.Client satisfies it.
type Placer interface {
	CreateOrder(ctx context.Context, req model.CreateOrderRequest) (*model.Order, error)
}

type Cart struct {
	policy Policy

	mu      sync.Mutex
	entries []Entry
}

func New(p Policy) *Cart {
	return &Cart{policy: p}
}

func (c *Cart) indexOf(itemID int64) int {
	for i, e := range c.entries {
		if e.Item.ID == itemID {
			return i
		}
	}
	return -1
}

// Toggle adds item with quantity 1, or removes it when it is already in
// the cart. An unavailable item leaves the cart unchanged.
func (c *Cart) Toggle(item model.MenuItem) (added bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !item.IsAvailable {
		return false, fmt.Errorf("%w: %s", ErrItemUnavailable, item.Name)
	}
	if i := c.indexOf(item.ID); i >= 0 {
		c.entries = append(c.entries[:i], c.entries[i+1:]...)
		return false, nil
	}
	if len(c.entries) > 0 && c.entries[0].Item.CanteenID != item.CanteenID {
		return false, ErrMixedCanteens
	}
	if c.policy.MaxItems > 0 && len(c.entries) >= c.policy.MaxItems {
		return false, fmt.Errorf("%w: at most %d items", ErrLimitExceeded, c.policy.MaxItems)
	}
	c.entries = append(c.entries, Entry{Item: item, Quantity: 1})
	return true, nil
}

// UpdateQuantity changes the quantity of itemID by delta. The result never
// drops below 1 and is clamped to the policy maximum.
func (c *Cart) UpdateQuantity(itemID int64, delta int) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexOf(itemID)
	if i < 0 {
		return 0, ErrNotInCart
	}
	q := c.entries[i].Quantity
	switch {
	case delta < 0 && q+delta < 1:
		q = 1
	case delta > 0 && q > math.MaxInt-delta:
		q = math.MaxInt
	default:
		q += delta
	}
	if c.policy.MaxQuantity > 0 && q > c.policy.MaxQuantity {
		q = c.policy.MaxQuantity
	}
	c.entries[i].Quantity = q
	return q, nil
}

// Remove drops itemID from the cart.
func (c *Cart) Remove(itemID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.indexOf(itemID)
	if i < 0 {
		return ErrNotInCart
	}
	c.entries = append(c.entries[:i], c.entries[i+1:]...)
	return nil
}

func (c *Cart) Contains(itemID int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.indexOf(itemID) >= 0
}

// Items returns a copy of the entries in insertion order.
func (c *Cart) Items() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

func (c *Cart) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Total is the sum of quantity times unit price, in cents.
func (c *Cart) Total() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	var total int64
	for _, e := range c.entries {
		total += e.SubtotalCents()
	}
	return total
}

func (c *Cart) Clear() {
	c.mu.Lock()
	c.entries = nil
	c.mu.Unlock()
}

// Submit places the cart as an order at canteenID and, on success, takes
// the ordered quantities out of the cart. Changes made while the order is
// in flight stay in the cart. status is the last fetched canteen status; when it is nil the
// server alone decides whether the order can be taken.
func (c *Cart) Submit(ctx context.Context, p Placer, canteenID int64, status *model.CanteenStatus, method model.PaymentMethod) (*model.Order, error) {
	c.mu.Lock()
	if len(c.entries) == 0 {
		c.mu.Unlock()
		return nil, ErrEmptyCart
	}
	req := model.CreateOrderRequest{
		CanteenID:     canteenID,
		Items:         make([]model.CreateOrderItem, 0, len(c.entries)),
		PaymentMethod: method.Normalize(),
	}
	for _, e := range c.entries {
		req.Items = append(req.Items, model.CreateOrderItem{MenuItemID: e.Item.ID, Quantity: e.Quantity})
	}
	c.mu.Unlock()

	if status != nil && !status.Orderable() {
		if status.AtCapacity() {
			return nil, fmt.Errorf("%w: at capacity (%d/%d)", ErrCanteenUnavailable, status.ActiveOrders, status.MaxOrders)
		}
		return nil, ErrCanteenUnavailable
	}

	o, err := p.CreateOrder(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("place order: %w", err)
	}
	c.consume(req.Items)
	return o, nil
}

// consume subtracts ordered quantities and drops entries that reach zero.
func (c *Cart) consume(ordered []model.CreateOrderItem) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, it := range ordered {
		i := c.indexOf(it.MenuItemID)
		if i < 0 {
			continue
		}
		if c.entries[i].Quantity > it.Quantity {
			c.entries[i].Quantity -= it.Quantity
			continue
		}
		c.entries = append(c.entries[:i], c.entries[i+1:]...)
	}
}
