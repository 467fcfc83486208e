package model

import (
	"fmt"
	"strings"
	"time"
)

type Hostel struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (h *Hostel) Validate() error {
	if h.ID <= 0 {
		return errMissingID
	}
	if strings.TrimSpace(h.Name) == "" {
		return fmt.Errorf("hostel %d: empty name", h.ID)
	}
	return nil
}

type HostelList struct {
	Total int      `json:"total"`
	Items []Hostel `json:"items"`
}

func (l *HostelList) Validate() error {
	for i := range l.Items {
		if err := l.Items[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}

// MessMenu is the weekly menu of one hostel for one day (0=Monday … 6=Sunday).
type MessMenu struct {
	ID         int64     `json:"id"`
	HostelName string    `json:"hostel_name"`
	DayOfWeek  int       `json:"day_of_week"`
	Breakfast  *string   `json:"breakfast,omitempty"`
	Lunch      *string   `json:"lunch,omitempty"`
	Snacks     *string   `json:"snacks,omitempty"`
	Dinner     *string   `json:"dinner,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func ValidDayOfWeek(d int) error {
	if d < 0 || d > 6 {
		return fmt.Errorf("invalid day_of_week %d: must be 0-6 (0=Monday, 6=Sunday)", d)
	}
	return nil
}

func (m *MessMenu) Validate() error {
	if m.ID <= 0 {
		return errMissingID
	}
	if strings.TrimSpace(m.HostelName) == "" {
		return fmt.Errorf("mess menu %d: empty hostel name", m.ID)
	}
	return ValidDayOfWeek(m.DayOfWeek)
}

type MessMenuList struct {
	Total int        `json:"total"`
	Items []MessMenu `json:"items"`
}

func (l *MessMenuList) Validate() error {
	for i := range l.Items {
		if err := l.Items[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}

type MessMenuInput struct {
	HostelName string  `json:"hostel_name"`
	DayOfWeek  int     `json:"day_of_week"`
	Breakfast  *string `json:"breakfast,omitempty"`
	Lunch      *string `json:"lunch,omitempty"`
	Snacks     *string `json:"snacks,omitempty"`
	Dinner     *string `json:"dinner,omitempty"`
}

func (in MessMenuInput) Validate() error {
	if strings.TrimSpace(in.HostelName) == "" {
		return fmt.Errorf("hostel name is required")
	}
	return ValidDayOfWeek(in.DayOfWeek)
}

// Weekday converts a Go weekday into the Monday-based index used by the API.
func Weekday(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}
