package main

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/juju/errors"

	"canteen/internal/model"
)

func runCampus(ctx context.Context, a *app, args []string) error {
	return dispatch(ctx, a, "campus", map[string]subcommand{
		"stats":         {"order counts per canteen and status", campusStats},
		"canteen-add":   {"-name N [-admin EMAIL] [-open] [-close] [-prep] [-max] [-upi]  add a canteen", campusCanteenAdd},
		"canteen-set":   {"[-name] [-open] [-close] [-prep] [-max] [-upi] CANTEEN  edit a canteen", campusCanteenSet},
		"canteen-rm":    {"CANTEEN  deactivate a canteen", campusCanteenRemove},
		"canteen-admin": {"CANTEEN EMAIL  set or create the canteen admin login", campusCanteenAdmin},
		"item-add":      {"-name N -price RUPEES [-unavailable] CANTEEN  add a menu item", campusItemAdd},
		"item-set":      {"-name N -price RUPEES [-unavailable] CANTEEN ITEM  edit a menu item", campusItemSet},
		"item-rm":       {"CANTEEN ITEM  delete a menu item", campusItemRemove},
		"hostels":       {"list hostels", campusHostels},
		"hostel-add":    {"NAME  add a hostel", campusHostelAdd},
		"hostel-rename": {"HOSTEL NAME  rename a hostel", campusHostelRename},
		"hostel-rm":     {"HOSTEL  delete a hostel", campusHostelRemove},
		"messmenus":     {"list all mess menus", campusMessMenus},
		"messmenu-set":  {"-hostel H -day 0-6 [-id ID] [-breakfast] [-lunch] [-snacks] [-dinner]  create or update a mess menu", campusMessMenuSet},
		"messmenu-rm":   {"ID  delete a mess menu", campusMessMenuRemove},
	}, args)
}

func requireCampusAdmin(ctx context.Context, a *app) error {
	_, err := currentUser(ctx, a, model.RoleCampusAdmin)
	return err
}

// parseRupees reads an amount like "60" or "60.50" into paise.
func parseRupees(s string) (int64, error) {
	whole, frac, hasFrac := strings.Cut(strings.TrimPrefix(strings.TrimSpace(s), "₹"), ".")
	r, err := strconv.ParseInt(whole, 10, 64)
	if err != nil || r < 0 {
		return 0, errors.NewNotValid(nil, fmt.Sprintf("invalid amount %q", s))
	}
	var p int64
	if hasFrac {
		if len(frac) == 1 {
			frac += "0"
		}
		if len(frac) != 2 {
			return 0, errors.NewNotValid(nil, fmt.Sprintf("invalid amount %q", s))
		}
		if p, err = strconv.ParseInt(frac, 10, 64); err != nil || p < 0 {
			return 0, errors.NewNotValid(nil, fmt.Sprintf("invalid amount %q", s))
		}
	}
	return r*100 + p, nil
}

func campusStats(ctx context.Context, a *app, args []string) error {
	if len(args) != 0 {
		return errUsage
	}
	if err := requireCampusAdmin(ctx, a); err != nil {
		return err
	}
	rows, err := a.session.Client().Stats(ctx)
	if err != nil {
		return err
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].CanteenID != rows[j].CanteenID {
			return rows[i].CanteenID < rows[j].CanteenID
		}
		return rows[i].Status < rows[j].Status
	})
	var total int
	for _, row := range rows {
		a.out.Plain("%-3d %-26s %-18s %6s\n", row.CanteenID, row.CanteenName, row.Status, humanize.Comma(int64(row.Count)))
		total += row.Count
	}
	a.out.Plain("%d orders in total\n", total)
	return nil
}

func campusCanteenAdd(ctx context.Context, a *app, args []string) error {
	fs := newFlags("canteen-add")
	var in model.CanteenInput
	canteenFlags(fs, &in)
	fs.StringVar(&in.AdminEmail, "admin", "", "email of the canteen admin account to create")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if in.Name == "" || fs.NArg() != 0 {
		return errUsage
	}
	if err := requireCampusAdmin(ctx, a); err != nil {
		return err
	}
	client := a.session.Client()
	c, err := client.CreateCanteen(ctx, in)
	if err != nil {
		return err
	}
	a.out.Canteen(c)
	if in.AdminEmail == "" {
		return nil
	}
	assigned, err := client.AssignCanteenAdmin(ctx, c.ID, in.AdminEmail)
	if err != nil {
		return errors.Annotatef(err, "canteen %d created without admin", c.ID)
	}
	a.out.adminAssignment(assigned)
	return nil
}

func campusCanteenAdmin(ctx context.Context, a *app, args []string) error {
	if len(args) != 2 {
		return errUsage
	}
	id, err := parseID(args[0], "canteen")
	if err != nil {
		return err
	}
	if err := requireCampusAdmin(ctx, a); err != nil {
		return err
	}
	assigned, err := a.session.Client().AssignCanteenAdmin(ctx, id, args[1])
	if err != nil {
		return err
	}
	a.out.adminAssignment(assigned)
	return nil
}

func (p *printer) adminAssignment(as *model.AdminAssignment) {
	email := ""
	if as.User.Email != nil {
		email = *as.User.Email
	}
	if !as.IsNewUser {
		p.Plain("canteen admin login is now %s\n", email)
		return
	}
	p.Plain("created canteen admin %s\n", email)
	p.Plain("  temporary password: ")
	p.Colored(warnColor, "%s\n", as.TemporaryPassword)
	p.Colored(dimColor, "  share it with the admin and have them change it after logging in\n")
}

func campusCanteenSet(ctx context.Context, a *app, args []string) error {
	fs := newFlags("canteen-set")
	var in model.CanteenInput
	canteenFlags(fs, &in)
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	id, err := oneID(fs.Args(), "canteen")
	if err != nil {
		return err
	}
	if err := requireCampusAdmin(ctx, a); err != nil {
		return err
	}
	c, err := a.session.Client().UpdateCanteen(ctx, id, in)
	if err != nil {
		return err
	}
	a.out.Canteen(c)
	return nil
}

func campusCanteenRemove(ctx context.Context, a *app, args []string) error {
	id, err := oneID(args, "canteen")
	if err != nil {
		return err
	}
	if err := requireCampusAdmin(ctx, a); err != nil {
		return err
	}
	if err := a.session.Client().DeleteCanteen(ctx, id); err != nil {
		return err
	}
	a.out.Plain("canteen %d deactivated\n", id)
	return nil
}

func menuItemInput(name string, args []string) (model.MenuItemInput, []string, error) {
	fs := newFlags(name)
	var in model.MenuItemInput
	fs.StringVar(&in.Name, "name", "", "item name")
	price := fs.String("price", "", "price in rupees")
	unavailable := fs.Bool("unavailable", false, "add the item as out of stock")
	if err := parseFlags(fs, args); err != nil {
		return in, nil, err
	}
	if in.Name == "" || *price == "" {
		return in, nil, errUsage
	}
	var err error
	if in.PriceCents, err = parseRupees(*price); err != nil {
		return in, nil, err
	}
	in.IsAvailable = !*unavailable
	return in, fs.Args(), nil
}

func campusItemAdd(ctx context.Context, a *app, args []string) error {
	in, rest, err := menuItemInput("item-add", args)
	if err != nil {
		return err
	}
	canteenID, err := oneID(rest, "canteen")
	if err != nil {
		return err
	}
	if err := requireCampusAdmin(ctx, a); err != nil {
		return err
	}
	item, err := a.session.Client().CreateMenuItem(ctx, canteenID, in)
	if err != nil {
		return err
	}
	a.out.MenuItem(item)
	return nil
}

// twoIDs parses CANTEEN ITEM.
func twoIDs(args []string) (int64, int64, error) {
	if len(args) != 2 {
		return 0, 0, errUsage
	}
	canteenID, err := parseID(args[0], "canteen")
	if err != nil {
		return 0, 0, err
	}
	itemID, err := parseID(args[1], "menu item")
	if err != nil {
		return 0, 0, err
	}
	return canteenID, itemID, nil
}

func campusItemSet(ctx context.Context, a *app, args []string) error {
	in, rest, err := menuItemInput("item-set", args)
	if err != nil {
		return err
	}
	canteenID, itemID, err := twoIDs(rest)
	if err != nil {
		return err
	}
	if err := requireCampusAdmin(ctx, a); err != nil {
		return err
	}
	item, err := a.session.Client().UpdateMenuItem(ctx, canteenID, itemID, in)
	if err != nil {
		return err
	}
	a.out.MenuItem(item)
	return nil
}

func campusItemRemove(ctx context.Context, a *app, args []string) error {
	canteenID, itemID, err := twoIDs(args)
	if err != nil {
		return err
	}
	if err := requireCampusAdmin(ctx, a); err != nil {
		return err
	}
	if err := a.session.Client().DeleteMenuItem(ctx, canteenID, itemID); err != nil {
		return err
	}
	a.out.Plain("menu item %d deleted\n", itemID)
	return nil
}

func campusHostels(ctx context.Context, a *app, args []string) error {
	if len(args) != 0 {
		return errUsage
	}
	if err := requireCampusAdmin(ctx, a); err != nil {
		return err
	}
	list, err := a.session.Client().CampusHostels(ctx)
	if err != nil {
		return err
	}
	for _, h := range list.Items {
		a.out.Plain("%-3d %s\n", h.ID, h.Name)
	}
	a.out.Plain("%d hostels\n", list.Total)
	return nil
}

func campusHostelAdd(ctx context.Context, a *app, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	if err := requireCampusAdmin(ctx, a); err != nil {
		return err
	}
	h, err := a.session.Client().CreateHostel(ctx, strings.Join(args, " "))
	if err != nil {
		return err
	}
	a.out.Plain("hostel %d: %s\n", h.ID, h.Name)
	return nil
}

func campusHostelRename(ctx context.Context, a *app, args []string) error {
	if len(args) < 2 {
		return errUsage
	}
	id, err := parseID(args[0], "hostel")
	if err != nil {
		return err
	}
	if err := requireCampusAdmin(ctx, a); err != nil {
		return err
	}
	h, err := a.session.Client().RenameHostel(ctx, id, strings.Join(args[1:], " "))
	if err != nil {
		return err
	}
	a.out.Plain("hostel %d: %s\n", h.ID, h.Name)
	return nil
}

func campusHostelRemove(ctx context.Context, a *app, args []string) error {
	id, err := oneID(args, "hostel")
	if err != nil {
		return err
	}
	if err := requireCampusAdmin(ctx, a); err != nil {
		return err
	}
	if err := a.session.Client().DeleteHostel(ctx, id); err != nil {
		return err
	}
	a.out.Plain("hostel %d deleted\n", id)
	return nil
}

func campusMessMenus(ctx context.Context, a *app, args []string) error {
	if len(args) != 0 {
		return errUsage
	}
	if err := requireCampusAdmin(ctx, a); err != nil {
		return err
	}
	list, err := a.session.Client().MessMenus(ctx)
	if err != nil {
		return err
	}
	for i := range list.Items {
		a.out.MessMenu(&list.Items[i])
	}
	a.out.Plain("%d mess menus\n", list.Total)
	return nil
}

func campusMessMenuSet(ctx context.Context, a *app, args []string) error {
	fs := newFlags("messmenu-set")
	var in model.MessMenuInput
	id := fs.Int64("id", 0, "existing menu to update")
	fs.StringVar(&in.HostelName, "hostel", "", "hostel name")
	fs.IntVar(&in.DayOfWeek, "day", -1, "day of week, 0=Monday")
	meal := func(name string, dst **string) {
		fs.Func(name, name+" menu", func(s string) error { *dst = &s; return nil })
	}
	meal("breakfast", &in.Breakfast)
	meal("lunch", &in.Lunch)
	meal("snacks", &in.Snacks)
	meal("dinner", &in.Dinner)
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if in.HostelName == "" || in.DayOfWeek < 0 || fs.NArg() != 0 {
		return errUsage
	}
	if err := requireCampusAdmin(ctx, a); err != nil {
		return err
	}
	client := a.session.Client()
	var (
		m   *model.MessMenu
		err error
	)
	if *id > 0 {
		m, err = client.UpdateMessMenu(ctx, *id, in)
	} else {
		m, err = client.CreateMessMenu(ctx, in)
	}
	if err != nil {
		return err
	}
	a.out.MessMenu(m)
	return nil
}

func campusMessMenuRemove(ctx context.Context, a *app, args []string) error {
	id, err := oneID(args, "mess menu")
	if err != nil {
		return err
	}
	if err := requireCampusAdmin(ctx, a); err != nil {
		return err
	}
	if err := a.session.Client().DeleteMessMenu(ctx, id); err != nil {
		return err
	}
	a.out.Plain("mess menu %d deleted\n", id)
	return nil
}
