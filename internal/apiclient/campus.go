package apiclient

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"canteen/internal/model"
)

type statsRows []model.StatsRow

func (r *statsRows) Validate() error {
	for _, row := range *r {
		if !row.Status.Valid() {
			return fmt.Errorf("canteen %d: unknown status %q", row.CanteenID, row.Status)
		}
	}
	return nil
}

// Stats returns order counts per canteen and status.
func (c *Client) Stats(ctx context.Context) ([]model.StatsRow, error) {
	rows, err := getOne[statsRows](ctx, c, "/admin/stats", nil)
	if err != nil {
		return nil, err
	}
	return *rows, nil
}

func (c *Client) CreateCanteen(ctx context.Context, in model.CanteenInput) (*model.Canteen, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, invalid(fmt.Errorf("canteen name is required"))
	}
	if err := in.Validate(); err != nil {
		return nil, invalid(err)
	}
	return send[model.Canteen](ctx, c, http.MethodPost, "/campus/canteens", in)
}

func (c *Client) UpdateCanteen(ctx context.Context, id int64, in model.CanteenInput) (*model.Canteen, error) {
	if err := in.Validate(); err != nil {
		return nil, invalid(err)
	}
	return send[model.Canteen](ctx, c, http.MethodPut, fmt.Sprintf("/campus/canteens/%d", id), in)
}

// AssignCanteenAdmin sets the login email of a canteen's admin, creating
// the account when the canteen has none.
func (c *Client) AssignCanteenAdmin(ctx context.Context, canteenID int64, email string) (*model.AdminAssignment, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, invalid(fmt.Errorf("email is required"))
	}
	return send[model.AdminAssignment](ctx, c, http.MethodPut, fmt.Sprintf("/campus/canteens/%d/admin-email", canteenID), model.AdminEmailUpdate{NewEmail: email})
}

func (c *Client) DeleteCanteen(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/campus/canteens/%d", id), nil, nil, nil)
}

func (c *Client) CreateMenuItem(ctx context.Context, canteenID int64, in model.MenuItemInput) (*model.MenuItem, error) {
	if err := in.Validate(); err != nil {
		return nil, invalid(err)
	}
	return send[model.MenuItem](ctx, c, http.MethodPost, fmt.Sprintf("/campus/canteens/%d/menu", canteenID), in)
}

func (c *Client) UpdateMenuItem(ctx context.Context, canteenID, itemID int64, in model.MenuItemInput) (*model.MenuItem, error) {
	if err := in.Validate(); err != nil {
		return nil, invalid(err)
	}
	return send[model.MenuItem](ctx, c, http.MethodPut, fmt.Sprintf("/campus/canteens/%d/menu/%d", canteenID, itemID), in)
}

func (c *Client) DeleteMenuItem(ctx context.Context, canteenID, itemID int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/campus/canteens/%d/menu/%d", canteenID, itemID), nil, nil, nil)
}

func (c *Client) CampusHostels(ctx context.Context) (*model.HostelList, error) {
	return getOne[model.HostelList](ctx, c, "/campus/hostels", nil)
}

func (c *Client) CreateHostel(ctx context.Context, name string) (*model.Hostel, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, invalid(fmt.Errorf("hostel name is required"))
	}
	return send[model.Hostel](ctx, c, http.MethodPost, "/campus/hostels", map[string]string{"name": name})
}

func (c *Client) RenameHostel(ctx context.Context, id int64, name string) (*model.Hostel, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, invalid(fmt.Errorf("hostel name is required"))
	}
	return send[model.Hostel](ctx, c, http.MethodPut, fmt.Sprintf("/campus/hostels/%d", id), map[string]string{"name": name})
}

func (c *Client) DeleteHostel(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/campus/hostels/%d", id), nil, nil, nil)
}

func (c *Client) MessMenus(ctx context.Context) (*model.MessMenuList, error) {
	return getOne[model.MessMenuList](ctx, c, "/campus/mess-menus", nil)
}

func (c *Client) CreateMessMenu(ctx context.Context, in model.MessMenuInput) (*model.MessMenu, error) {
	if err := in.Validate(); err != nil {
		return nil, invalid(err)
	}
	return send[model.MessMenu](ctx, c, http.MethodPost, "/campus/mess-menu", in)
}

func (c *Client) UpdateMessMenu(ctx context.Context, id int64, in model.MessMenuInput) (*model.MessMenu, error) {
	if err := in.Validate(); err != nil {
		return nil, invalid(err)
	}
	return send[model.MessMenu](ctx, c, http.MethodPut, fmt.Sprintf("/campus/mess-menu/%d", id), in)
}

func (c *Client) DeleteMessMenu(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/campus/mess-menu/%d", id), nil, nil, nil)
}
