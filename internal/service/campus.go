package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/juju/clock"
	"github.com/juju/errors"

	"canteen/internal/database"
	"canteen/internal/model"
)

// CampusService backs the campus admin: canteens, their menus, hostels and
// mess menus.
type CampusService struct {
	db    *database.DB
	clock clock.Clock
}

func NewCampusService(db *database.DB, clk clock.Clock) *CampusService {
	return &CampusService{db: db, clock: clk}
}

func (s *CampusService) CreateCanteen(ctx context.Context, in model.CanteenInput) (*model.Canteen, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, errors.NewNotValid(nil, "canteen name is required")
	}
	if err := in.Validate(); err != nil {
		return nil, errors.NewNotValid(nil, err.Error())
	}
	c := &model.Canteen{
		Name:            name,
		HoursOpen:       orDefault(in.HoursOpen, "08:00"),
		HoursClose:      orDefault(in.HoursClose, "20:00"),
		AvgPrepMinutes:  in.AvgPrepMinutes,
		UPIID:           strings.TrimSpace(in.UPIID),
		MaxActiveOrders: in.MaxActiveOrders,
		IsActive:        true,
		AcceptingOrders: true,
	}
	if c.AvgPrepMinutes == 0 {
		c.AvgPrepMinutes = 10
	}
	if c.MaxActiveOrders == 0 {
		c.MaxActiveOrders = defaultMaxOrders
	}
	err := s.db.Update(func(t *database.Tables) error {
		c.ID = t.NextID("canteens")
		t.Canteens[c.ID] = c
		return nil
	})
	copied := *c
	return &copied, err
}

func orDefault(v, fallback string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return fallback
}

// AssignCanteenAdmin points the canteen's admin account at email. A canteen
// without an admin gets a new account with a temporary password, which is
// returned once and never stored in clear.
func (s *CampusService) AssignCanteenAdmin(ctx context.Context, canteenID int64, email string) (*model.AdminAssignment, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, errors.NewBadRequest(nil, "Email is required")
	}
	password := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	hash, err := s.db.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	var out model.AdminAssignment
	err = s.db.Update(func(t *database.Tables) error {
		c, ok := t.Canteens[canteenID]
		if !ok {
			return errNoCanteen
		}
		var admin *database.UserRecord
		for _, u := range t.Users {
			if u.Email != nil && strings.EqualFold(*u.Email, email) {
				return errors.NewBadRequest(nil, "Email already in use")
			}
			if u.Role == model.RoleCanteenAdmin && u.CanteenID != nil && *u.CanteenID == canteenID {
				admin = u
			}
		}
		if admin != nil {
			admin.Email = &email
			out.User = admin.User
			return nil
		}
		name, id := c.Name+" Admin", c.ID
		admin = &database.UserRecord{
			User: model.User{
				ID:        t.NextID("users"),
				Role:      model.RoleCanteenAdmin,
				Email:     &email,
				CanteenID: &id,
				Name:      &name,
			},
			PasswordHash: hash,
		}
		t.Users[admin.ID] = admin
		out = model.AdminAssignment{User: admin.User, IsNewUser: true, TemporaryPassword: password}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteCanteen deactivates the canteen; its orders stay.
func (s *CampusService) DeleteCanteen(ctx context.Context, canteenID int64) error {
	return s.db.Update(func(t *database.Tables) error {
		c, ok := t.Canteens[canteenID]
		if !ok {
			return errNoCanteen
		}
		c.IsActive = false
		return nil
	})
}

func (s *CampusService) CreateMenuItem(ctx context.Context, canteenID int64, in model.MenuItemInput) (*model.MenuItem, error) {
	if err := in.Validate(); err != nil {
		return nil, errors.NewNotValid(nil, err.Error())
	}
	var out *model.MenuItem
	err := s.db.Update(func(t *database.Tables) error {
		if _, ok := t.Canteens[canteenID]; !ok {
			return errNoCanteen
		}
		it := &model.MenuItem{
			ID:          t.NextID("menu_items"),
			CanteenID:   canteenID,
			Name:        strings.TrimSpace(in.Name),
			PriceCents:  in.PriceCents,
			IsAvailable: in.IsAvailable,
		}
		t.MenuItems[it.ID] = it
		copied := *it
		out = &copied
		return nil
	})
	return out, err
}

func (s *CampusService) UpdateMenuItem(ctx context.Context, canteenID, itemID int64, in model.MenuItemInput) (*model.MenuItem, error) {
	if err := in.Validate(); err != nil {
		return nil, errors.NewNotValid(nil, err.Error())
	}
	var out *model.MenuItem
	err := s.db.Update(func(t *database.Tables) error {
		it, ok := t.MenuItems[itemID]
		if !ok || it.CanteenID != canteenID {
			return errors.NewNotFound(nil, "Menu item not found")
		}
		it.Name = strings.TrimSpace(in.Name)
		it.PriceCents = in.PriceCents
		it.IsAvailable = in.IsAvailable
		copied := *it
		out = &copied
		return nil
	})
	return out, err
}

// DeleteMenuItem removes the item. Placed orders keep their frozen copy.
func (s *CampusService) DeleteMenuItem(ctx context.Context, canteenID, itemID int64) error {
	return s.db.Update(func(t *database.Tables) error {
		it, ok := t.MenuItems[itemID]
		if !ok || it.CanteenID != canteenID {
			return errors.NewNotFound(nil, "Menu item not found")
		}
		delete(t.MenuItems, itemID)
		return nil
	})
}

func (s *CampusService) CreateHostel(ctx context.Context, name string) (*model.Hostel, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.NewNotValid(nil, "hostel name is required")
	}
	now := s.clock.Now().UTC()
	var out *model.Hostel
	err := s.db.Update(func(t *database.Tables) error {
		if hostelNamed(t, name, 0) {
			return errors.NewAlreadyExists(nil, "Hostel with this name already exists")
		}
		h := &model.Hostel{ID: t.NextID("hostels"), Name: name, CreatedAt: now, UpdatedAt: now}
		t.Hostels[h.ID] = h
		copied := *h
		out = &copied
		return nil
	})
	return out, err
}

// RenameHostel also renames the hostel on its mess menus and residents.
func (s *CampusService) RenameHostel(ctx context.Context, id int64, name string) (*model.Hostel, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.NewNotValid(nil, "hostel name is required")
	}
	now := s.clock.Now().UTC()
	var out *model.Hostel
	err := s.db.Update(func(t *database.Tables) error {
		h, ok := t.Hostels[id]
		if !ok {
			return errors.NewNotFound(nil, "Hostel not found")
		}
		if hostelNamed(t, name, id) {
			return errors.NewAlreadyExists(nil, "Hostel with this name already exists")
		}
		old := h.Name
		for _, m := range t.MessMenus {
			if m.HostelName == old {
				m.HostelName = name
				m.UpdatedAt = now
			}
		}
		for _, u := range t.Users {
			if u.HostelName != nil && *u.HostelName == old {
				renamed := name
				u.HostelName = &renamed
			}
		}
		h.Name = name
		h.UpdatedAt = now
		copied := *h
		out = &copied
		return nil
	})
	return out, err
}

func (s *CampusService) DeleteHostel(ctx context.Context, id int64) error {
	return s.db.Update(func(t *database.Tables) error {
		if _, ok := t.Hostels[id]; !ok {
			return errors.NewNotFound(nil, "Hostel not found")
		}
		delete(t.Hostels, id)
		return nil
	})
}

func hostelNamed(t *database.Tables, name string, except int64) bool {
	for _, h := range t.Hostels {
		if h.ID != except && h.Name == name {
			return true
		}
	}
	return false
}

// MessMenus lists every mess menu ordered by hostel and day.
func (s *CampusService) MessMenus(ctx context.Context) (*model.MessMenuList, error) {
	out := &model.MessMenuList{Items: []model.MessMenu{}}
	err := s.db.View(func(t *database.Tables) error {
		for _, m := range t.MessMenus {
			out.Items = append(out.Items, *m)
		}
		return nil
	})
	sort.Slice(out.Items, func(i, j int) bool {
		a, b := out.Items[i], out.Items[j]
		if a.HostelName != b.HostelName {
			return a.HostelName < b.HostelName
		}
		return a.DayOfWeek < b.DayOfWeek
	})
	out.Total = len(out.Items)
	return out, err
}

func (s *CampusService) CreateMessMenu(ctx context.Context, in model.MessMenuInput) (*model.MessMenu, error) {
	if err := in.Validate(); err != nil {
		return nil, errors.NewNotValid(nil, err.Error())
	}
	now := s.clock.Now().UTC()
	var out *model.MessMenu
	err := s.db.Update(func(t *database.Tables) error {
		for _, m := range t.MessMenus {
			if m.HostelName == in.HostelName && m.DayOfWeek == in.DayOfWeek {
				return errors.NewAlreadyExists(nil, "Menu already exists for this hostel and day of week")
			}
		}
		m := &model.MessMenu{
			ID:         t.NextID("mess_menus"),
			HostelName: in.HostelName,
			DayOfWeek:  in.DayOfWeek,
			Breakfast:  in.Breakfast,
			Lunch:      in.Lunch,
			Snacks:     in.Snacks,
			Dinner:     in.Dinner,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		t.MessMenus[m.ID] = m
		copied := *m
		out = &copied
		return nil
	})
	return out, err
}

// UpdateMessMenu replaces the meals that in sets. Hostel and day stay.
func (s *CampusService) UpdateMessMenu(ctx context.Context, id int64, in model.MessMenuInput) (*model.MessMenu, error) {
	now := s.clock.Now().UTC()
	var out *model.MessMenu
	err := s.db.Update(func(t *database.Tables) error {
		m, ok := t.MessMenus[id]
		if !ok {
			return errors.NewNotFound(nil, "Menu not found")
		}
		if in.Breakfast != nil {
			m.Breakfast = in.Breakfast
		}
		if in.Lunch != nil {
			m.Lunch = in.Lunch
		}
		if in.Snacks != nil {
			m.Snacks = in.Snacks
		}
		if in.Dinner != nil {
			m.Dinner = in.Dinner
		}
		m.UpdatedAt = now
		copied := *m
		out = &copied
		return nil
	})
	return out, err
}

func (s *CampusService) DeleteMessMenu(ctx context.Context, id int64) error {
	return s.db.Update(func(t *database.Tables) error {
		if _, ok := t.MessMenus[id]; !ok {
			return errors.NewNotFound(nil, "Menu not found")
		}
		delete(t.MessMenus, id)
		return nil
	})
}
