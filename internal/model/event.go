package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const OrderEventPrefix = "order."

const (
	EventOrderCreated        = "order.created"
	EventOrderUpdated        = "order.updated"
	EventOrderPaymentExpired = "order.payment_expired"
)

// EventPayload is the body of a push message. Only OrderID matters to
// consumers; the rest is informational.
type EventPayload struct {
	OrderID   *int64      `json:"order_id,omitempty"`
	Status    OrderStatus `json:"status,omitempty"`
	CanteenID int64       `json:"canteen_id,omitempty"`
	StudentID int64       `json:"student_id,omitempty"`
	UpdatedAt string      `json:"updated_at,omitempty"`
	EventType string      `json:"event_type,omitempty"`
}

type Event struct {
	Type    string       `json:"type"`
	Payload EventPayload `json:"payload"`
}

// IsOrderEvent reports whether e may invalidate cached order state.
func (e Event) IsOrderEvent() bool {
	return strings.HasPrefix(e.Type, OrderEventPrefix)
}

// Concerns reports whether e may invalidate the order with the given id.
// Events without an order id concern every order.
func (e Event) Concerns(orderID int64) bool {
	if !e.IsOrderEvent() {
		return false
	}
	return e.Payload.OrderID == nil || *e.Payload.OrderID == orderID
}

var errEmptyEventType = errors.New("push message without type")

// ParseEvent decodes a push message. Unknown fields are ignored; a message
// without a type is rejected.
func ParseEvent(data []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return Event{}, fmt.Errorf("decode push message: %w", err)
	}
	if e.Type == "" {
		return Event{}, errEmptyEventType
	}
	return e, nil
}
