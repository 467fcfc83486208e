package service

import (
	"context"
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"canteen/internal/database"
	"canteen/internal/model"
)

func TestCreateCanteenDefaults(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c, err := f.campus.CreateCanteen(ctx, model.CanteenInput{Name: " Night Mess ", UPIID: "night@upi"})
	require.NoError(t, err)
	assert.Equal(t, int64(6), c.ID)
	assert.Equal(t, "Night Mess", c.Name)
	assert.Equal(t, "08:00", c.HoursOpen)
	assert.Equal(t, "20:00", c.HoursClose)
	assert.Equal(t, 10, c.AvgPrepMinutes)
	assert.Equal(t, 20, c.MaxActiveOrders)
	assert.True(t, c.IsActive)
	assert.True(t, c.AcceptingOrders)

	_, err = f.campus.CreateCanteen(ctx, model.CanteenInput{})
	assert.True(t, errors.Is(err, errors.NotValid))

	assert.True(t, errors.Is(f.campus.DeleteCanteen(ctx, 99), errors.NotFound))
}

func TestAssignCanteenAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	as, err := f.campus.AssignCanteenAdmin(ctx, mainCanteen, " chef@campus.test ")
	require.NoError(t, err)
	assert.False(t, as.IsNewUser)
	assert.Empty(t, as.TemporaryPassword)
	assert.Equal(t, mainAdminID, as.User.ID)
	assert.Equal(t, "chef@campus.test", *as.User.Email)

	u, err := f.auth.Authenticate(ctx, model.LoginRequest{Email: "chef@campus.test", Password: database.SeedAdminPassword})
	require.NoError(t, err)
	assert.Equal(t, mainAdminID, u.ID)

	_, err = f.campus.AssignCanteenAdmin(ctx, 2, database.CampusAdminEmail)
	assert.True(t, errors.Is(err, errors.BadRequest))
	assert.EqualError(t, err, "Email already in use")
	_, err = f.campus.AssignCanteenAdmin(ctx, mainCanteen, "  ")
	assert.True(t, errors.Is(err, errors.BadRequest))
	_, err = f.campus.AssignCanteenAdmin(ctx, 99, "ghost@campus.test")
	assert.True(t, errors.Is(err, errors.NotFound))

	c, err := f.campus.CreateCanteen(ctx, model.CanteenInput{Name: "Night Mess"})
	require.NoError(t, err)
	as, err = f.campus.AssignCanteenAdmin(ctx, c.ID, "night@campus.test")
	require.NoError(t, err)
	assert.True(t, as.IsNewUser)
	assert.Len(t, as.TemporaryPassword, 12)
	assert.Equal(t, model.RoleCanteenAdmin, as.User.Role)
	require.NotNil(t, as.User.CanteenID)
	assert.Equal(t, c.ID, *as.User.CanteenID)
	require.NoError(t, as.Validate())

	u, err = f.auth.Authenticate(ctx, model.LoginRequest{Email: "night@campus.test", Password: as.TemporaryPassword})
	require.NoError(t, err)
	assert.Equal(t, as.User.ID, u.ID)
}

func TestMenuItemCRUD(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	it, err := f.campus.CreateMenuItem(ctx, mainCanteen, model.MenuItemInput{Name: "Lassi", PriceCents: 2500, IsAvailable: true})
	require.NoError(t, err)
	assert.Equal(t, int64(26), it.ID)

	_, err = f.campus.CreateMenuItem(ctx, mainCanteen, model.MenuItemInput{Name: "Free", PriceCents: 0})
	assert.True(t, errors.Is(err, errors.NotValid))
	_, err = f.campus.CreateMenuItem(ctx, 99, model.MenuItemInput{Name: "Lassi", PriceCents: 2500})
	assert.True(t, errors.Is(err, errors.NotFound))

	it, err = f.campus.UpdateMenuItem(ctx, mainCanteen, it.ID, model.MenuItemInput{Name: "Sweet Lassi", PriceCents: 3000})
	require.NoError(t, err)
	assert.Equal(t, "Sweet Lassi", it.Name)
	assert.False(t, it.IsAvailable)

	_, err = f.campus.UpdateMenuItem(ctx, 2, it.ID, model.MenuItemInput{Name: "x", PriceCents: 1})
	assert.True(t, errors.Is(err, errors.NotFound))

	require.NoError(t, f.campus.DeleteMenuItem(ctx, mainCanteen, it.ID))
	assert.EqualError(t, f.campus.DeleteMenuItem(ctx, mainCanteen, it.ID), "Menu item not found")
}

func TestDeletedMenuItemKeepsOrderCopy(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.order(t, studentID, model.MethodOnline)
	require.NoError(t, f.campus.DeleteMenuItem(ctx, mainCanteen, vegThali))

	got, err := f.orders.Get(ctx, f.user(t, studentID), o.ID)
	require.NoError(t, err)
	assert.Equal(t, "Veg Thali", got.Items[0].MenuItemName)
	assert.Equal(t, int64(6000), got.Items[0].UnitPriceCents)
}

func TestHostels(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.campus.CreateHostel(ctx, "Hostel 2")
	assert.True(t, errors.Is(err, errors.AlreadyExists))
	_, err = f.campus.CreateHostel(ctx, " ")
	assert.True(t, errors.Is(err, errors.NotValid))

	h, err := f.campus.CreateHostel(ctx, "Hostel 4")
	require.NoError(t, err)

	list, err := f.catalog.Hostels(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, list.Total)
	assert.Equal(t, "Hostel 4", list.Items[3].Name)

	_, err = f.campus.RenameHostel(ctx, h.ID, "Hostel 1")
	assert.True(t, errors.Is(err, errors.AlreadyExists))

	require.NoError(t, f.campus.DeleteHostel(ctx, h.ID))
	assert.True(t, errors.Is(f.campus.DeleteHostel(ctx, h.ID), errors.NotFound))
}

func TestRenameHostelCascades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	dinner := "Paneer"
	_, err := f.campus.CreateMessMenu(ctx, model.MessMenuInput{HostelName: "Hostel 2", DayOfWeek: 3, Dinner: &dinner})
	require.NoError(t, err)

	// S001 lives in Hostel 2
	h, err := f.campus.RenameHostel(ctx, 2, "Ganga")
	require.NoError(t, err)
	assert.Equal(t, "Ganga", h.Name)

	m, err := f.catalog.MessMenu(ctx, "Ganga", 3)
	require.NoError(t, err)
	assert.Equal(t, dinner, *m.Dinner)
	assert.Equal(t, "Ganga", *f.user(t, studentID).HostelName)
}

func TestMessMenuCRUD(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	breakfast, lunch := "Poha", "Thali"

	m, err := f.campus.CreateMessMenu(ctx, model.MessMenuInput{HostelName: "Hostel 3", DayOfWeek: 6, Breakfast: &breakfast})
	require.NoError(t, err)
	_, err = f.campus.CreateMessMenu(ctx, model.MessMenuInput{HostelName: "Hostel 3", DayOfWeek: 6})
	assert.True(t, errors.Is(err, errors.AlreadyExists))
	_, err = f.campus.CreateMessMenu(ctx, model.MessMenuInput{HostelName: "Hostel 3", DayOfWeek: 9})
	assert.True(t, errors.Is(err, errors.NotValid))
	_, err = f.campus.CreateMessMenu(ctx, model.MessMenuInput{HostelName: "Hostel 1", DayOfWeek: 2})
	require.NoError(t, err)

	m, err = f.campus.UpdateMessMenu(ctx, m.ID, model.MessMenuInput{HostelName: "ignored", DayOfWeek: 0, Lunch: &lunch})
	require.NoError(t, err)
	assert.Equal(t, "Hostel 3", m.HostelName)
	assert.Equal(t, 6, m.DayOfWeek)
	assert.Equal(t, breakfast, *m.Breakfast)
	assert.Equal(t, lunch, *m.Lunch)

	list, err := f.campus.MessMenus(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, list.Total)
	assert.Equal(t, "Hostel 1", list.Items[0].HostelName)

	require.NoError(t, f.campus.DeleteMessMenu(ctx, m.ID))
	assert.EqualError(t, f.campus.DeleteMessMenu(ctx, m.ID), "Menu not found")
}
