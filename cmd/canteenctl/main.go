// Command canteenctl is a terminal client for the campus canteen service.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/juju/ansiterm"

	"canteen/internal/apiclient"
	"canteen/internal/config"
	"canteen/internal/logger"
	"canteen/internal/session"
)

type command struct {
	name    string
	args    string
	summary string
	run     func(ctx context.Context, a *app, args []string) error
}

// app is what every command gets: configuration, the session and stdout.
type app struct {
	cfg     *config.Client
	session *session.Session
	out     *printer
}

var errUsage = errors.New("usage")

func commands() []command {
	cmds := []command{
		{"login", "[-email E | -roll R] [-password P] | -token T", "log in and store the session", runLogin},
		{"logout", "", "end the session", runLogout},
		{"whoami", "", "show the logged-in user", runWhoami},
		{"profile", "[-name N] [-phone P] [-hostel H]", "show or update your profile", runProfile},
		{"passwd", "-current P -new P", "change your password", runPasswd},
		{"canteens", "", "list canteens", runCanteens},
		{"menu", "CANTEEN", "show a canteen's status and menu", runMenu},
		{"order", "-canteen ID [-method ONLINE|COUNTER] [-watch] ITEM[=QTY]...", "place an order", runOrder},
		{"orders", "[-watch]", "list your orders", runOrders},
		{"show", "ORDER", "show one order", runShow},
		{"watch", "ORDER", "follow an order live until it is done", runWatch},
		{"pay", "ORDER", "confirm payment of an accepted order", runPay},
		{"messmenu", "-hostel H [-day 0-6]", "show a hostel mess menu", runMessMenu},
		{"admin", "SUBCOMMAND ...", "canteen admin commands (run 'admin' for a list)", runAdmin},
		{"campus", "SUBCOMMAND ...", "campus admin commands (run 'campus' for a list)", runCampus},
	}
	return cmds
}

func usage(w io.Writer, fs *flag.FlagSet) {
	fmt.Fprintf(w, "usage: canteenctl [flags] COMMAND [ARGS]\n\ncommands:\n")
	for _, c := range commands() {
		fmt.Fprintf(w, "  %-10s %-52s %s\n", c.name, c.args, c.summary)
	}
	fmt.Fprintf(w, "\nflags:\n")
	fs.SetOutput(w)
	fs.PrintDefaults()
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("canteenctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	cfg, err := config.NewClient(fs, args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			usage(stderr, fs)
			return 0
		}
		fmt.Fprintln(stderr, "canteenctl:", err)
		return 2
	}
	if err := logger.Setup(stderr, cfg.LogLevel, cfg.LogFormat); err != nil {
		fmt.Fprintln(stderr, "canteenctl:", err)
		return 2
	}

	rest := fs.Args()
	if len(rest) == 0 {
		usage(stderr, fs)
		return 2
	}
	var cmd *command
	for _, c := range commands() {
		if c.name == rest[0] {
			cmd = &c
			break
		}
	}
	if cmd == nil {
		fmt.Fprintf(stderr, "canteenctl: unknown command %q\n", rest[0])
		usage(stderr, fs)
		return 2
	}

	s, err := session.Open(session.Config{
		APIURL:     cfg.APIURL,
		CookieFile: cfg.CookieFile,
		Timeout:    cfg.RequestTimeout,
	})
	if err != nil {
		fmt.Fprintln(stderr, "canteenctl:", err)
		return 1
	}
	defer func() {
		if err := s.Close(); err != nil {
			slog.Warn("closing session", "error", err)
		}
	}()

	out := ansiterm.NewWriter(stdout)
	if cfg.NoColor {
		out.SetColorCapable(false)
	}
	a := &app{cfg: cfg, session: s, out: newPrinter(out)}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.run(ctx, a, rest[1:]); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintf(stderr, "usage: canteenctl %s %s\n", cmd.name, cmd.args)
			return 2
		}
		if errors.Is(err, context.Canceled) {
			return 130
		}
		slog.Debug("command failed", "command", cmd.name, "error", err)
		fmt.Fprintln(stderr, "canteenctl:", apiclient.Describe(err))
		return 1
	}
	return 0
}

type subcommand struct {
	summary string
	run     func(ctx context.Context, a *app, args []string) error
}

// dispatch runs the subcommand named by args[0] out of subs.
func dispatch(ctx context.Context, a *app, group string, subs map[string]subcommand, args []string) error {
	if len(args) > 0 {
		if sub, ok := subs[args[0]]; ok {
			return sub.run(ctx, a, args[1:])
		}
	}
	names := make([]string, 0, len(subs))
	for name := range subs {
		names = append(names, name)
	}
	sort.Strings(names)
	var b strings.Builder
	fmt.Fprintf(&b, "%s subcommands:\n", group)
	for _, name := range names {
		fmt.Fprintf(&b, "  %-14s %s\n", name, subs[name].summary)
	}
	a.out.Plain(b.String())
	return errUsage
}
