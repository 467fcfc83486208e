package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/juju/errors"

	"canteen/internal/model"
)

// newFlags returns a flag set for a command that reports errors instead of
// exiting.
func newFlags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	return nil
}

func parseID(s, what string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.NewNotValid(nil, fmt.Sprintf("invalid %s %q", what, s))
	}
	return id, nil
}

// oneID parses the single positional id argument of a command.
func oneID(args []string, what string) (int64, error) {
	if len(args) != 1 {
		return 0, errUsage
	}
	return parseID(args[0], what)
}

// currentUser loads the logged-in user from the server and checks its role.
func currentUser(ctx context.Context, a *app, roles ...model.Role) (*model.User, error) {
	if _, err := a.session.Refresh(ctx); err != nil {
		return nil, err
	}
	return a.session.Require(roles...)
}

func runLogin(ctx context.Context, a *app, args []string) error {
	fs := newFlags("login")
	email := fs.String("email", "", "admin email")
	roll := fs.String("roll", "", "student roll number")
	password := fs.String("password", os.Getenv("CANTEEN_PASSWORD"), "password")
	token := fs.String("token", "", "OAuth callback token to exchange")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	var (
		u   *model.User
		err error
	)
	if *token != "" {
		u, err = a.session.Exchange(ctx, *token)
	} else {
		if (*email == "") == (*roll == "") {
			return errUsage
		}
		u, err = a.session.Login(ctx, model.LoginRequest{
			Email:      *email,
			RollNumber: *roll,
			Password:   *password,
		})
	}
	if err != nil {
		return err
	}
	a.out.Colored(okColor, "logged in as %s (%s)\n", u.DisplayName(), u.Role)
	return nil
}

func runLogout(ctx context.Context, a *app, args []string) error {
	if len(args) != 0 {
		return errUsage
	}
	if err := a.session.Logout(ctx); err != nil {
		return err
	}
	a.out.Println("logged out")
	return nil
}

func runWhoami(ctx context.Context, a *app, args []string) error {
	if len(args) != 0 {
		return errUsage
	}
	u, err := currentUser(ctx, a)
	if err != nil {
		return err
	}
	a.out.User(u)
	if claims, err := a.session.Claims(); err == nil && !claims.ExpiresAt.IsZero() {
		a.out.Colored(dimColor, "  session expires %s\n", humanize.RelTime(claims.ExpiresAt, time.Now(), "ago", "from now"))
	}
	return nil
}

func runProfile(ctx context.Context, a *app, args []string) error {
	fs := newFlags("profile")
	var upd model.ProfileUpdate
	fs.Func("name", "display name", func(s string) error { upd.Name = &s; return nil })
	fs.Func("phone", "phone number", func(s string) error { upd.PhoneNumber = &s; return nil })
	fs.Func("hostel", "hostel name", func(s string) error { upd.HostelName = &s; return nil })
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 0 {
		return errUsage
	}

	if upd.Name == nil && upd.PhoneNumber == nil && upd.HostelName == nil {
		u, err := currentUser(ctx, a)
		if err != nil {
			return err
		}
		a.out.User(u)
		return nil
	}
	u, err := a.session.Client().UpdateProfile(ctx, upd)
	if err != nil {
		return err
	}
	a.out.User(u)
	return nil
}

func runPasswd(ctx context.Context, a *app, args []string) error {
	fs := newFlags("passwd")
	var req model.PasswordChange
	fs.StringVar(&req.CurrentPassword, "current", "", "current password")
	fs.StringVar(&req.NewPassword, "new", "", "new password")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if req.CurrentPassword == "" || req.NewPassword == "" {
		return errUsage
	}
	if err := a.session.Client().ChangePassword(ctx, req); err != nil {
		return err
	}
	a.out.Colored(okColor, "password changed\n")
	return nil
}
