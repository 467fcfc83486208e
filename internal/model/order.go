package model

import (
	"errors"
	"fmt"
	"time"
)

type OrderStatus string

const (
	StatusRequested        OrderStatus = "REQUESTED"
	StatusPaymentPending   OrderStatus = "PAYMENT_PENDING"
	StatusPaid             OrderStatus = "PAID"
	StatusPreparing        OrderStatus = "PREPARING"
	StatusReady            OrderStatus = "READY"
	StatusCollected        OrderStatus = "COLLECTED"
	StatusDeclined         OrderStatus = "DECLINED"
	StatusCancelledTimeout OrderStatus = "CANCELLED_TIMEOUT"
)

// ActiveStatuses is the admin "ACTIVE" queue filter.
var ActiveStatuses = []OrderStatus{StatusPaymentPending, StatusPaid, StatusPreparing, StatusReady}

var transitions = map[OrderStatus][]OrderStatus{
	StatusRequested:        {StatusDeclined, StatusPaymentPending, StatusPreparing},
	StatusPaymentPending:   {StatusPaid, StatusPreparing, StatusCancelledTimeout},
	StatusPaid:             {StatusPreparing, StatusReady},
	StatusPreparing:        {StatusReady},
	StatusReady:            {StatusCollected},
	StatusDeclined:         nil,
	StatusCollected:        nil,
	StatusCancelledTimeout: nil,
}

func ParseOrderStatus(s string) (OrderStatus, error) {
	st := OrderStatus(s)
	if !st.Valid() {
		return "", fmt.Errorf("unknown order status %q", s)
	}
	return st, nil
}

func (s OrderStatus) Valid() bool {
	_, ok := transitions[s]
	return ok
}

func (s OrderStatus) Terminal() bool {
	next, ok := transitions[s]
	return ok && len(next) == 0
}

func (s OrderStatus) Active() bool {
	for _, a := range ActiveStatuses {
		if a == s {
			return true
		}
	}
	return false
}

// CanTransition reports whether the server lifecycle allows s -> to.
func (s OrderStatus) CanTransition(to OrderStatus) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// NextAdminStatus is the status a canteen admin advances an order to from s
// ("start preparing", "mark ready", "mark collected").
func (s OrderStatus) NextAdminStatus() (OrderStatus, bool) {
	switch s {
	case StatusPaid:
		return StatusPreparing, true
	case StatusPreparing:
		return StatusReady, true
	case StatusReady:
		return StatusCollected, true
	}
	return "", false
}

type PaymentMethod string

const (
	MethodOnline  PaymentMethod = "ONLINE"
	MethodCounter PaymentMethod = "COUNTER"

	// legacy aliases of ONLINE
	MethodUPIQR     PaymentMethod = "UPI_QR"
	MethodUPIIntent PaymentMethod = "UPI_INTENT"
)

func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch m := PaymentMethod(s); m {
	case MethodOnline, MethodCounter, MethodUPIQR, MethodUPIIntent:
		return m, nil
	}
	return "", fmt.Errorf("unknown payment method %q", s)
}

// Normalize folds legacy aliases into ONLINE.
func (m PaymentMethod) Normalize() PaymentMethod {
	if m == MethodUPIQR || m == MethodUPIIntent {
		return MethodOnline
	}
	return m
}

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "PENDING"
	PaymentSuccess PaymentStatus = "SUCCESS"
	PaymentFailed  PaymentStatus = "FAILED"
	PaymentExpired PaymentStatus = "EXPIRED"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentSuccess, PaymentFailed, PaymentExpired:
		return true
	}
	return false
}

// LineItem is frozen at order time: the name and unit price do not follow
// later menu edits.
type LineItem struct {
	ID             int64  `json:"id"`
	MenuItemID     int64  `json:"menu_item_id"`
	MenuItemName   string `json:"menu_item_name"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
}

func (l LineItem) SubtotalCents() int64 {
	return int64(l.Quantity) * l.UnitPriceCents
}

type Payment struct {
	ID          int64         `json:"id"`
	AmountCents int64         `json:"amount_cents"`
	Method      PaymentMethod `json:"method"`
	Status      PaymentStatus `json:"status"`
	QRPayload   string        `json:"qr_payload"`
	CreatedAt   time.Time     `json:"created_at"`
	PaidAt      *time.Time    `json:"paid_at,omitempty"`
}

type OrderEvent struct {
	ID          int64        `json:"id"`
	FromStatus  *OrderStatus `json:"from_status,omitempty"`
	ToStatus    OrderStatus  `json:"to_status"`
	CreatedAt   time.Time    `json:"created_at"`
	ActorUserID *int64       `json:"actor_user_id,omitempty"`
}

type Order struct {
	ID               int64        `json:"id"`
	OrderNumber      string       `json:"order_number"`
	StudentID        int64        `json:"student_id"`
	CanteenID        int64        `json:"canteen_id"`
	Status           OrderStatus  `json:"status"`
	TotalAmountCents int64        `json:"total_amount_cents"`
	PaymentExpiresAt *time.Time   `json:"payment_expires_at,omitempty"`
	AcceptedAt       *time.Time   `json:"accepted_at,omitempty"`
	PaidAt           *time.Time   `json:"paid_at,omitempty"`
	CollectedAt      *time.Time   `json:"collected_at,omitempty"`
	CancelledAt      *time.Time   `json:"cancelled_at,omitempty"`
	PickupCode       *string      `json:"pickup_code,omitempty"`
	DeclineReason    *string      `json:"decline_reason,omitempty"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
	Items            []LineItem   `json:"items"`
	Payment          *Payment     `json:"payment,omitempty"`
	Events           []OrderEvent `json:"events"`
	QueuePosition    *int         `json:"queue_position,omitempty"`
	EstimatedMinutes *int         `json:"estimated_minutes,omitempty"`

	StudentName        *string `json:"student_name,omitempty"`
	StudentRollNumber  *string `json:"student_roll_number,omitempty"`
	StudentPhoneNumber *string `json:"student_phone_number,omitempty"`
}

// ItemsTotalCents recomputes the total from the frozen line items.
func (o *Order) ItemsTotalCents() int64 {
	var total int64
	for _, it := range o.Items {
		total += it.SubtotalCents()
	}
	return total
}

// AwaitingPayment reports whether a payment countdown applies to o.
func (o *Order) AwaitingPayment() bool {
	return o.Status == StatusPaymentPending && o.PaymentExpiresAt != nil
}

var errMissingID = errors.New("missing id")

func (o *Order) Validate() error {
	if o.ID <= 0 {
		return errMissingID
	}
	if !o.Status.Valid() {
		return fmt.Errorf("order %d: unknown status %q", o.ID, o.Status)
	}
	if o.CanteenID <= 0 {
		return fmt.Errorf("order %d: missing canteen_id", o.ID)
	}
	if o.TotalAmountCents < 0 {
		return fmt.Errorf("order %d: negative total %d", o.ID, o.TotalAmountCents)
	}
	for i, it := range o.Items {
		if it.Quantity < 1 {
			return fmt.Errorf("order %d: item %d: quantity %d", o.ID, i, it.Quantity)
		}
		if it.UnitPriceCents < 0 {
			return fmt.Errorf("order %d: item %d: negative unit price", o.ID, i)
		}
	}
	if len(o.Items) > 0 && o.ItemsTotalCents() != o.TotalAmountCents {
		return fmt.Errorf("order %d: total %d does not match items %d", o.ID, o.TotalAmountCents, o.ItemsTotalCents())
	}
	if p := o.Payment; p != nil {
		if _, err := ParsePaymentMethod(string(p.Method)); err != nil {
			return fmt.Errorf("order %d: %w", o.ID, err)
		}
		if !p.Status.Valid() {
			return fmt.Errorf("order %d: unknown payment status %q", o.ID, p.Status)
		}
	}
	for _, ev := range o.Events {
		if !ev.ToStatus.Valid() {
			return fmt.Errorf("order %d: event %d: unknown status %q", o.ID, ev.ID, ev.ToStatus)
		}
		if ev.FromStatus != nil && !ev.FromStatus.Valid() {
			return fmt.Errorf("order %d: event %d: unknown status %q", o.ID, ev.ID, *ev.FromStatus)
		}
	}
	return nil
}

type CreateOrderItem struct {
	MenuItemID int64 `json:"menu_item_id"`
	Quantity   int   `json:"quantity"`
}

type CreateOrderRequest struct {
	CanteenID     int64             `json:"canteen_id"`
	Items         []CreateOrderItem `json:"items"`
	PaymentMethod PaymentMethod     `json:"payment_method"`
}

type StatusUpdateRequest struct {
	Status     OrderStatus `json:"status"`
	PickupCode string      `json:"pickup_code,omitempty"`
}

type DeclineRequest struct {
	Reason string `json:"reason"`
}

// PaymentStatusRequest is a canteen admin's verdict on an online payment.
type PaymentStatusRequest struct {
	Status PaymentStatus `json:"status"`
}

// StatsRow is one (canteen, status) bucket of the campus-wide report.
type StatsRow struct {
	CanteenID   int64       `json:"canteen_id"`
	CanteenName string      `json:"canteen_name"`
	Status      OrderStatus `json:"status"`
	Count       int         `json:"count"`
}
