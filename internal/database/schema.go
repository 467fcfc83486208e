package database

import (
	"fmt"
	"strings"
	"time"

	"canteen/internal/model"
)

const (
	SeedStudentPassword = "password123"
	SeedAdminPassword   = "admin123"
	SeedStudents        = 50
	CampusAdminEmail    = "campus.admin@campus.test"
)

type seedCanteen struct {
	name      string
	open      string
	close     string
	prep      int
	upi       string
	maxActive int
	menu      []seedItem
}

type seedItem struct {
	name  string
	price int64
}

var demoCanteens = []seedCanteen{
	{"Main Canteen", "07:00", "22:00", 10, "main@upi", 25, []seedItem{
		{"Veg Thali", 6000}, {"Chicken Curry", 9000}, {"Rice Plate", 4000}, {"Dal Fry", 5000}, {"Roti (2 pieces)", 1500},
	}},
	{"Hostel Canteen A", "18:00", "00:00", 8, "hostela@upi", 15, []seedItem{
		{"Maggi", 3000}, {"Egg Roll", 4000}, {"Paneer Roll", 5000}, {"Tea", 1000}, {"Coffee", 1500},
	}},
	{"Hostel Canteen B", "18:00", "23:30", 7, "hostelb@upi", 15, []seedItem{
		{"Fried Rice", 7000}, {"Chowmein", 6000}, {"Momos", 5000}, {"Cold Drink", 2500}, {"Samosa", 1000},
	}},
	{"Juice & Snacks Corner", "10:00", "20:00", 5, "juice@upi", 30, []seedItem{
		{"Orange Juice", 3000}, {"Banana Shake", 3500}, {"Sandwich", 4000}, {"Chips", 2000}, {"Biscuits", 1000},
	}},
	{"South Indian Canteen", "07:00", "15:00", 6, "south@upi", 20, []seedItem{
		{"Idli (2 pieces)", 3000}, {"Dosa", 4000}, {"Vada", 2500}, {"Sambhar", 2000}, {"Filter Coffee", 1500},
	}},
}

// CanteenAdminEmail is the login of the seeded admin of a canteen.
func CanteenAdminEmail(canteenName string) string {
	s := strings.ToLower(canteenName)
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, "&", "and")
	return s + "@campus.test"
}

// SeedRollNumber is the roll number of the i-th seeded student (1-based).
func SeedRollNumber(i int) string {
	return fmt.Sprintf("S%03d", i)
}

// Seed loads demo canteens, menus, hostels and users. It does nothing when
// canteens already exist.
func Seed(db *DB, now time.Time) error {
	studentHash, err := db.HashPassword(SeedStudentPassword)
	if err != nil {
		return fmt.Errorf("hash seed password: %w", err)
	}
	adminHash, err := db.HashPassword(SeedAdminPassword)
	if err != nil {
		return fmt.Errorf("hash seed password: %w", err)
	}

	return db.Update(func(t *Tables) error {
		if len(t.Canteens) > 0 {
			return nil
		}
		for _, sc := range demoCanteens {
			c := &model.Canteen{
				ID:              t.NextID("canteens"),
				Name:            sc.name,
				HoursOpen:       sc.open,
				HoursClose:      sc.close,
				AvgPrepMinutes:  sc.prep,
				UPIID:           sc.upi,
				MaxActiveOrders: sc.maxActive,
				IsActive:        true,
				AcceptingOrders: true,
			}
			t.Canteens[c.ID] = c
			for _, it := range sc.menu {
				id := t.NextID("menu_items")
				t.MenuItems[id] = &model.MenuItem{ID: id, CanteenID: c.ID, Name: it.name, PriceCents: it.price, IsAvailable: true}
			}

			id := t.NextID("users")
			t.Users[id] = &UserRecord{
				User: model.User{
					ID:          id,
					Role:        model.RoleCanteenAdmin,
					Email:       ptr(CanteenAdminEmail(c.Name)),
					CanteenID:   ptr(c.ID),
					Name:        ptr(c.Name + " Admin"),
					PhoneNumber: ptr(fmt.Sprintf("99999%05d", c.ID)),
				},
				PasswordHash: adminHash,
			}
		}

		for _, name := range []string{"Hostel 1", "Hostel 2", "Hostel 3"} {
			id := t.NextID("hostels")
			t.Hostels[id] = &model.Hostel{ID: id, Name: name, CreatedAt: now, UpdatedAt: now}
		}

		for i := 1; i <= SeedStudents; i++ {
			id := t.NextID("users")
			t.Users[id] = &UserRecord{
				User: model.User{
					ID:          id,
					Role:        model.RoleStudent,
					RollNumber:  ptr(SeedRollNumber(i)),
					Name:        ptr(fmt.Sprintf("Student %02d", i)),
					PhoneNumber: ptr(fmt.Sprintf("98765%05d", i)),
					HostelName:  ptr(fmt.Sprintf("Hostel %d", i%3+1)),
				},
				PasswordHash: studentHash,
			}
		}

		id := t.NextID("users")
		t.Users[id] = &UserRecord{
			User: model.User{
				ID:          id,
				Role:        model.RoleCampusAdmin,
				Email:       ptr(CampusAdminEmail),
				Name:        ptr("Campus Administrator"),
				PhoneNumber: ptr("9999900000"),
			},
			PasswordHash: adminHash,
		}
		return nil
	})
}

func ptr[T any](v T) *T { return &v }
