package service

import (
	"context"
	"testing"
	"time"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"canteen/internal/model"
)

func TestCanteenStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.order(t, studentID, model.MethodOnline)

	st, err := f.catalog.Status(ctx, mainCanteen)
	require.NoError(t, err)
	assert.True(t, st.IsOpen)
	assert.True(t, st.CanAcceptOrders)
	assert.Equal(t, "12:00", st.CurrentTime)
	assert.Equal(t, 1, st.ActiveOrders)
	assert.Equal(t, 25, st.MaxOrders)
	require.NotNil(t, st.AdminEmail)
	assert.Equal(t, "main_canteen@campus.test", *st.AdminEmail)
	assert.True(t, st.Orderable())

	_, err = f.catalog.ToggleAcceptingOrders(ctx, mainCanteen)
	require.NoError(t, err)
	st, err = f.catalog.Status(ctx, mainCanteen)
	require.NoError(t, err)
	assert.False(t, st.IsOpen)
	assert.False(t, st.CanAcceptOrders)

	_, err = f.catalog.Status(ctx, 99)
	assert.True(t, errors.Is(err, errors.NotFound))
}

func TestListCanteensHidesInactive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.campus.DeleteCanteen(ctx, 3))

	canteens, err := f.catalog.ListCanteens(ctx)
	require.NoError(t, err)
	var ids []int64
	for _, c := range canteens {
		ids = append(ids, c.ID)
	}
	assert.Equal(t, []int64{1, 2, 4, 5}, ids)
	assert.Equal(t, "Juice & Snacks Corner", canteens[2].Name)
}

func TestMenuAndToggle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	items, err := f.catalog.Menu(ctx, mainCanteen)
	require.NoError(t, err)
	require.Len(t, items, 5)
	assert.Equal(t, "Veg Thali", items[0].Name)
	assert.Equal(t, int64(6000), items[0].PriceCents)

	it, err := f.catalog.ToggleMenuItem(ctx, mainCanteen, roti)
	require.NoError(t, err)
	assert.False(t, it.IsAvailable)

	_, err = f.catalog.ToggleMenuItem(ctx, mainCanteen, maggi)
	assert.EqualError(t, err, "Menu item not found")
}

func TestUpdateCanteenKeepsUnsetFields(t *testing.T) {
	f := newFixture(t)
	c, err := f.catalog.UpdateCanteen(context.Background(), mainCanteen, model.CanteenInput{HoursClose: "23:00", MaxActiveOrders: 40})
	require.NoError(t, err)
	assert.Equal(t, "Main Canteen", c.Name)
	assert.Equal(t, "07:00", c.HoursOpen)
	assert.Equal(t, "23:00", c.HoursClose)
	assert.Equal(t, 40, c.MaxActiveOrders)

	_, err = f.catalog.UpdateCanteen(context.Background(), mainCanteen, model.CanteenInput{MaxActiveOrders: 500})
	assert.True(t, errors.Is(err, errors.NotValid))
}

func TestMessMenuLookup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	lunch := "Rajma chawal"
	_, err := f.campus.CreateMessMenu(ctx, model.MessMenuInput{HostelName: "Hostel 1", DayOfWeek: 0, Lunch: &lunch})
	require.NoError(t, err)

	m, err := f.catalog.MessMenu(ctx, "Hostel 1", 0)
	require.NoError(t, err)
	assert.Equal(t, lunch, *m.Lunch)

	// 2026-03-02 is a Monday in India
	m, err = f.catalog.TodayMessMenu(ctx, "Hostel 1")
	require.NoError(t, err)
	assert.Equal(t, 0, m.DayOfWeek)

	f.clock.Advance(24 * time.Hour)
	_, err = f.catalog.TodayMessMenu(ctx, "Hostel 1")
	assert.EqualError(t, err, "No menu found for the specified hostel and day")

	_, err = f.catalog.MessMenu(ctx, "Hostel 1", 7)
	assert.True(t, errors.Is(err, errors.BadRequest))
}
