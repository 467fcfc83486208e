package service

import (
	"context"
	"sort"
	"strings"

	"github.com/juju/clock"
	"github.com/juju/errors"

	"canteen/internal/database"
	"canteen/internal/model"
)

// CatalogService serves canteens and menus to students and to the canteen
// admin who runs them.
type CatalogService struct {
	db    *database.DB
	clock clock.Clock
}

func NewCatalogService(db *database.DB, clk clock.Clock) *CatalogService {
	return &CatalogService{db: db, clock: clk}
}

var errNoCanteen = errors.NewNotFound(nil, "Canteen not found")

func (s *CatalogService) ListCanteens(ctx context.Context) ([]model.Canteen, error) {
	canteens := []model.Canteen{}
	err := s.db.View(func(t *database.Tables) error {
		for _, c := range t.Canteens {
			if c.IsActive {
				canteens = append(canteens, *c)
			}
		}
		return nil
	})
	sort.Slice(canteens, func(i, j int) bool { return canteens[i].ID < canteens[j].ID })
	return canteens, err
}

// Status reports whether the canteen takes orders right now, with its load
// and the contact of its admin.
func (s *CatalogService) Status(ctx context.Context, canteenID int64) (*model.CanteenStatus, error) {
	var out *model.CanteenStatus
	err := s.db.View(func(t *database.Tables) error {
		c, ok := t.Canteens[canteenID]
		if !ok {
			return errNoCanteen
		}
		open := c.AcceptingOrders && c.IsActive
		active := countActive(t, c.ID)
		out = &model.CanteenStatus{
			IsOpen:          open,
			AcceptingOrders: c.AcceptingOrders,
			CurrentTime:     s.clock.Now().In(ist).Format("15:04"),
			HoursOpen:       c.HoursOpen,
			HoursClose:      c.HoursClose,
			ActiveOrders:    active,
			MaxOrders:       c.MaxActiveOrders,
			CanAcceptOrders: open && active < c.MaxActiveOrders,
		}
		admin := findUser(t, func(u *database.UserRecord) bool {
			return u.Role == model.RoleCanteenAdmin && u.CanteenID != nil && *u.CanteenID == c.ID
		})
		if admin != nil {
			out.AdminName = admin.Name
			out.AdminPhone = admin.PhoneNumber
			out.AdminEmail = admin.Email
		}
		return nil
	})
	return out, err
}

// Menu lists every item of a canteen, unavailable ones included.
func (s *CatalogService) Menu(ctx context.Context, canteenID int64) ([]model.MenuItem, error) {
	items := []model.MenuItem{}
	err := s.db.View(func(t *database.Tables) error {
		for _, it := range t.MenuItems {
			if it.CanteenID == canteenID {
				items = append(items, *it)
			}
		}
		return nil
	})
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, err
}

func (s *CatalogService) Canteen(ctx context.Context, canteenID int64) (*model.Canteen, error) {
	var out *model.Canteen
	err := s.db.View(func(t *database.Tables) error {
		c, ok := t.Canteens[canteenID]
		if !ok {
			return errNoCanteen
		}
		copied := *c
		out = &copied
		return nil
	})
	return out, err
}

// UpdateCanteen applies the non-zero fields of in.
func (s *CatalogService) UpdateCanteen(ctx context.Context, canteenID int64, in model.CanteenInput) (*model.Canteen, error) {
	if err := in.Validate(); err != nil {
		return nil, errors.NewNotValid(nil, err.Error())
	}
	return s.updateCanteen(canteenID, func(c *model.Canteen) {
		if v := strings.TrimSpace(in.Name); v != "" {
			c.Name = v
		}
		if v := strings.TrimSpace(in.HoursOpen); v != "" {
			c.HoursOpen = v
		}
		if v := strings.TrimSpace(in.HoursClose); v != "" {
			c.HoursClose = v
		}
		if in.AvgPrepMinutes > 0 {
			c.AvgPrepMinutes = in.AvgPrepMinutes
		}
		if v := strings.TrimSpace(in.UPIID); v != "" {
			c.UPIID = v
		}
		if in.MaxActiveOrders > 0 {
			c.MaxActiveOrders = in.MaxActiveOrders
		}
	})
}

func (s *CatalogService) ToggleAcceptingOrders(ctx context.Context, canteenID int64) (*model.Canteen, error) {
	return s.updateCanteen(canteenID, func(c *model.Canteen) {
		c.AcceptingOrders = !c.AcceptingOrders
	})
}

func (s *CatalogService) updateCanteen(canteenID int64, fn func(c *model.Canteen)) (*model.Canteen, error) {
	var out *model.Canteen
	err := s.db.Update(func(t *database.Tables) error {
		c, ok := t.Canteens[canteenID]
		if !ok {
			return errNoCanteen
		}
		fn(c)
		copied := *c
		out = &copied
		return nil
	})
	return out, err
}

// ToggleMenuItem flips availability of an item of the given canteen.
func (s *CatalogService) ToggleMenuItem(ctx context.Context, canteenID, itemID int64) (*model.MenuItem, error) {
	var out *model.MenuItem
	err := s.db.Update(func(t *database.Tables) error {
		it, ok := t.MenuItems[itemID]
		if !ok || it.CanteenID != canteenID {
			return errors.NewNotFound(nil, "Menu item not found")
		}
		it.IsAvailable = !it.IsAvailable
		copied := *it
		out = &copied
		return nil
	})
	return out, err
}

func (s *CatalogService) Hostels(ctx context.Context) (*model.HostelList, error) {
	out := &model.HostelList{Items: []model.Hostel{}}
	err := s.db.View(func(t *database.Tables) error {
		for _, h := range t.Hostels {
			out.Items = append(out.Items, *h)
		}
		return nil
	})
	sort.Slice(out.Items, func(i, j int) bool { return out.Items[i].Name < out.Items[j].Name })
	out.Total = len(out.Items)
	return out, err
}

func (s *CatalogService) MessMenu(ctx context.Context, hostel string, day int) (*model.MessMenu, error) {
	if err := model.ValidDayOfWeek(day); err != nil {
		return nil, errors.NewBadRequest(nil, "Invalid day_of_week. Must be 0-6 (0=Monday, 6=Sunday)")
	}
	var out *model.MessMenu
	err := s.db.View(func(t *database.Tables) error {
		for _, m := range t.MessMenus {
			if m.HostelName == hostel && m.DayOfWeek == day {
				copied := *m
				out = &copied
				return nil
			}
		}
		return errors.NewNotFound(nil, "No menu found for the specified hostel and day")
	})
	return out, err
}

// TodayMessMenu uses the weekday of the current date in India.
func (s *CatalogService) TodayMessMenu(ctx context.Context, hostel string) (*model.MessMenu, error) {
	return s.MessMenu(ctx, hostel, model.Weekday(s.clock.Now().In(ist)))
}
