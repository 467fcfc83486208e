package model

import (
	"fmt"
	"strings"
)

type Role string

const (
	RoleStudent      Role = "STUDENT"
	RoleCanteenAdmin Role = "CANTEEN_ADMIN"
	RoleCampusAdmin  Role = "CAMPUS_ADMIN"
)

func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleCanteenAdmin, RoleCampusAdmin:
		return true
	}
	return false
}

type User struct {
	ID          int64   `json:"id"`
	Role        Role    `json:"role"`
	Email       *string `json:"email,omitempty"`
	RollNumber  *string `json:"roll_number,omitempty"`
	CanteenID   *int64  `json:"canteen_id,omitempty"`
	Name        *string `json:"name,omitempty"`
	PhoneNumber *string `json:"phone_number,omitempty"`
	HostelName  *string `json:"hostel_name,omitempty"`
}

func (u *User) Validate() error {
	if u.ID <= 0 {
		return errMissingID
	}
	if !u.Role.Valid() {
		return fmt.Errorf("user %d: unknown role %q", u.ID, u.Role)
	}
	if u.Role == RoleCanteenAdmin && u.CanteenID == nil {
		return fmt.Errorf("user %d: canteen admin without canteen_id", u.ID)
	}
	return nil
}

// DisplayName picks the most human identifier available.
func (u *User) DisplayName() string {
	switch {
	case u.Name != nil && *u.Name != "":
		return *u.Name
	case u.Email != nil && *u.Email != "":
		return *u.Email
	case u.RollNumber != nil && *u.RollNumber != "":
		return *u.RollNumber
	}
	return fmt.Sprintf("user #%d", u.ID)
}

type LoginRequest struct {
	Email      string `json:"email,omitempty"`
	RollNumber string `json:"roll_number,omitempty"`
	Password   string `json:"password"`
}

func (r LoginRequest) Validate() error {
	if r.Email == "" && r.RollNumber == "" {
		return fmt.Errorf("email or roll number required")
	}
	if r.Password == "" {
		return fmt.Errorf("password required")
	}
	return nil
}

type AuthResponse struct {
	User        User   `json:"user"`
	AccessToken string `json:"access_token"`
}

type ProfileUpdate struct {
	Name        *string `json:"name,omitempty"`
	PhoneNumber *string `json:"phone_number,omitempty"`
	HostelName  *string `json:"hostel_name,omitempty"`
}

func (p ProfileUpdate) Validate() error {
	if p.Name != nil && strings.TrimSpace(*p.Name) == "" {
		return fmt.Errorf("name must not be empty")
	}
	if p.PhoneNumber != nil && (len(*p.PhoneNumber) < 10 || len(*p.PhoneNumber) > 20) {
		return fmt.Errorf("phone number must be 10 to 20 characters")
	}
	return nil
}

type PasswordChange struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func (p PasswordChange) Validate() error {
	if p.CurrentPassword == "" {
		return fmt.Errorf("current password required")
	}
	if len(p.NewPassword) < 6 || len(p.NewPassword) > 100 {
		return fmt.Errorf("new password must be 6 to 100 characters")
	}
	return nil
}
