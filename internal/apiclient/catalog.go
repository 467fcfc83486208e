package apiclient

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"canteen/internal/model"
)

func (c *Client) ListCanteens(ctx context.Context) ([]model.Canteen, error) {
	return getList[model.Canteen](ctx, c, "/canteens", nil)
}

// CanteenStatus fetches open/accepting/capacity state and admin contact.
func (c *Client) CanteenStatus(ctx context.Context, canteenID int64) (*model.CanteenStatus, error) {
	return getOne[model.CanteenStatus](ctx, c, fmt.Sprintf("/canteens/%d/status", canteenID), nil)
}

// Menu returns every item of the canteen, unavailable ones included.
func (c *Client) Menu(ctx context.Context, canteenID int64) ([]model.MenuItem, error) {
	items, err := getList[model.MenuItem](ctx, c, fmt.Sprintf("/canteens/%d/menu", canteenID), nil)
	if err != nil {
		return nil, err
	}
	for _, it := range items {
		if it.CanteenID != canteenID {
			return nil, malformed("menu", fmt.Errorf("item %d belongs to canteen %d", it.ID, it.CanteenID))
		}
	}
	return items, nil
}

func (c *Client) ListHostels(ctx context.Context) (*model.HostelList, error) {
	return getOne[model.HostelList](ctx, c, "/hostels", nil)
}

func (c *Client) MessMenu(ctx context.Context, hostel string, dayOfWeek int) (*model.MessMenu, error) {
	if err := model.ValidDayOfWeek(dayOfWeek); err != nil {
		return nil, invalid(err)
	}
	q := url.Values{"hostel_name": {hostel}, "day_of_week": {strconv.Itoa(dayOfWeek)}}
	return getOne[model.MessMenu](ctx, c, "/mess-menu", q)
}

func (c *Client) TodayMessMenu(ctx context.Context, hostel string) (*model.MessMenu, error) {
	q := url.Values{"hostel_name": {hostel}}
	return getOne[model.MessMenu](ctx, c, "/mess-menu/today", q)
}
