package model

import (
	"fmt"
	"strings"
)

type Canteen struct {
	ID              int64  `json:"id"`
	Name            string `json:"name"`
	HoursOpen       string `json:"hours_open"`
	HoursClose      string `json:"hours_close"`
	AvgPrepMinutes  int    `json:"avg_prep_minutes"`
	UPIID           string `json:"upi_id"`
	MaxActiveOrders int    `json:"max_active_orders"`
	IsActive        bool   `json:"is_active"`
	AcceptingOrders bool   `json:"accepting_orders"`
}

func (c *Canteen) Validate() error {
	if c.ID <= 0 {
		return errMissingID
	}
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("canteen %d: empty name", c.ID)
	}
	if c.MaxActiveOrders < 0 {
		return fmt.Errorf("canteen %d: negative max_active_orders", c.ID)
	}
	return nil
}

// CanteenStatus is read-mostly and never mutated locally.
type CanteenStatus struct {
	IsOpen          bool    `json:"is_open"`
	AcceptingOrders bool    `json:"accepting_orders"`
	CurrentTime     string  `json:"current_time"`
	HoursOpen       string  `json:"hours_open"`
	HoursClose      string  `json:"hours_close"`
	ActiveOrders    int     `json:"active_orders"`
	MaxOrders       int     `json:"max_orders"`
	CanAcceptOrders bool    `json:"can_accept_orders"`
	AdminName       *string `json:"admin_name,omitempty"`
	AdminPhone      *string `json:"admin_phone,omitempty"`
	AdminEmail      *string `json:"admin_email,omitempty"`
}

// AtCapacity reports whether the active-order count has reached the limit.
func (s *CanteenStatus) AtCapacity() bool {
	return s.MaxOrders > 0 && s.ActiveOrders >= s.MaxOrders
}

// Orderable is the client-side guard used before checkout.
func (s *CanteenStatus) Orderable() bool {
	return s.AcceptingOrders && s.CanAcceptOrders && !s.AtCapacity()
}

func (s *CanteenStatus) Validate() error {
	if s.ActiveOrders < 0 || s.MaxOrders < 0 {
		return fmt.Errorf("canteen status: negative counters %d/%d", s.ActiveOrders, s.MaxOrders)
	}
	return nil
}

type MenuItem struct {
	ID          int64  `json:"id"`
	CanteenID   int64  `json:"canteen_id"`
	Name        string `json:"name"`
	PriceCents  int64  `json:"price_cents"`
	IsAvailable bool   `json:"is_available"`
}

func (m *MenuItem) Validate() error {
	if m.ID <= 0 {
		return errMissingID
	}
	if m.PriceCents <= 0 {
		return fmt.Errorf("menu item %d: price %d", m.ID, m.PriceCents)
	}
	return nil
}

type MenuItemInput struct {
	Name        string `json:"name"`
	PriceCents  int64  `json:"price_cents"`
	IsAvailable bool   `json:"is_available"`
}

func (in MenuItemInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return fmt.Errorf("menu item name is required")
	}
	if in.PriceCents <= 0 {
		return fmt.Errorf("invalid price %d", in.PriceCents)
	}
	return nil
}

// CanteenInput is used for campus-level create and update as well as the
// canteen admin's own profile update.
type CanteenInput struct {
	Name            string `json:"name,omitempty"`
	HoursOpen       string `json:"hours_open,omitempty"`
	HoursClose      string `json:"hours_close,omitempty"`
	AvgPrepMinutes  int    `json:"avg_prep_minutes,omitempty"`
	UPIID           string `json:"upi_id,omitempty"`
	MaxActiveOrders int    `json:"max_active_orders,omitempty"`
	AdminEmail      string `json:"admin_email,omitempty"`
}

func (in CanteenInput) Validate() error {
	if in.AvgPrepMinutes < 0 || in.AvgPrepMinutes > 120 {
		return fmt.Errorf("avg_prep_minutes must be within 1..120")
	}
	if in.MaxActiveOrders < 0 || in.MaxActiveOrders > 100 {
		return fmt.Errorf("max_active_orders must be within 1..100")
	}
	return nil
}

type AdminEmailUpdate struct {
	NewEmail string `json:"new_email"`
}

// AdminAssignment reports the canteen admin account after an email change.
// TemporaryPassword is only set when the account was just created.
type AdminAssignment struct {
	User              User   `json:"user"`
	IsNewUser         bool   `json:"is_new_user"`
	TemporaryPassword string `json:"temporary_password,omitempty"`
}

func (a *AdminAssignment) Validate() error {
	if err := a.User.Validate(); err != nil {
		return err
	}
	if a.User.Role != RoleCanteenAdmin {
		return fmt.Errorf("user %d: expected role %s, got %s", a.User.ID, RoleCanteenAdmin, a.User.Role)
	}
	if a.IsNewUser && a.TemporaryPassword == "" {
		return fmt.Errorf("user %d: new account without temporary password", a.User.ID)
	}
	return nil
}

type ActiveOrdersCount struct {
	ActiveOrders int `json:"active_orders"`
	MaxOrders    int `json:"max_orders"`
}
