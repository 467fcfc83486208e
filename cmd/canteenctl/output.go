package main

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/juju/ansiterm"

	"canteen/internal/countdown"
	"canteen/internal/model"
)

var statusColor = map[model.OrderStatus]*ansiterm.Context{
	model.StatusRequested:        ansiterm.Foreground(ansiterm.Yellow),
	model.StatusPaymentPending:   ansiterm.Foreground(ansiterm.BrightYellow),
	model.StatusPaid:             ansiterm.Foreground(ansiterm.BrightBlue),
	model.StatusPreparing:        ansiterm.Foreground(ansiterm.Cyan),
	model.StatusReady:            ansiterm.Foreground(ansiterm.BrightGreen),
	model.StatusCollected:        ansiterm.Foreground(ansiterm.Green),
	model.StatusDeclined:         ansiterm.Foreground(ansiterm.BrightRed),
	model.StatusCancelledTimeout: ansiterm.Foreground(ansiterm.Red),
}

var urgencyColor = map[countdown.Urgency]*ansiterm.Context{
	countdown.Calm:     ansiterm.Foreground(ansiterm.Green),
	countdown.Warning:  ansiterm.Foreground(ansiterm.Yellow),
	countdown.Critical: {Foreground: ansiterm.White, Background: ansiterm.Red},
}

var (
	okColor   = ansiterm.Foreground(ansiterm.BrightGreen)
	warnColor = ansiterm.Foreground(ansiterm.Yellow)
	dimColor  = ansiterm.Foreground(ansiterm.Gray)
)

// printer serializes output from the command and from background
// callbacks.
type printer struct {
	mu sync.Mutex
	w  *ansiterm.Writer
	// inline is set while a countdown line is waiting to be overwritten.
	inline bool
}

func newPrinter(w *ansiterm.Writer) *printer {
	return &printer{w: w}
}

func (p *printer) endInline() {
	if p.inline {
		fmt.Fprintln(p.w)
		p.inline = false
	}
}

func (p *printer) Plain(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.endInline()
	fmt.Fprintf(p.w, format, args...)
}

func (p *printer) Println(args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.endInline()
	fmt.Fprintln(p.w, args...)
}

func (p *printer) Colored(c *ansiterm.Context, format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.endInline()
	c.Fprintf(p.w, format, args...)
}

// Countdown rewrites the current line with r.
func (p *printer) Countdown(r countdown.Reading) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprint(p.w, "\r  pay within ")
	urgencyColor[r.Urgency].Fprintf(p.w, " %s ", r.Text)
	if r.LastMinute {
		warnColor.Fprintf(p.w, " last minute!")
	} else {
		fmt.Fprint(p.w, "              ")
	}
	p.inline = !r.Expired
	if r.Expired {
		fmt.Fprintln(p.w)
	}
}

func rupees(cents int64) string {
	sign := ""
	if cents < 0 {
		sign, cents = "-", -cents
	}
	return fmt.Sprintf("%s₹%s.%02d", sign, humanize.Comma(cents/100), cents%100)
}

func ago(t time.Time) string {
	return humanize.Time(t)
}

func (p *printer) status(s model.OrderStatus) {
	c, ok := statusColor[s]
	if !ok {
		c = ansiterm.Foreground(ansiterm.Default)
	}
	c.Fprintf(p.w, "%s", s)
}

// OrderLine prints a one-line summary of o.
func (p *printer) OrderLine(o *model.Order) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.endInline()
	fmt.Fprintf(p.w, "#%-5d %-14s %10s  %-16s ", o.ID, o.OrderNumber, rupees(o.TotalAmountCents), ago(o.CreatedAt))
	p.status(o.Status)
	if o.QueuePosition != nil {
		fmt.Fprintf(p.w, "  queue #%d", *o.QueuePosition)
	}
	if o.StudentRollNumber != nil {
		dimColor.Fprintf(p.w, "  %s", *o.StudentRollNumber)
	}
	fmt.Fprintln(p.w)
}

// Order prints the full detail of o.
func (p *printer) Order(o *model.Order) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.endInline()
	fmt.Fprintf(p.w, "Order #%d (%s)  ", o.ID, o.OrderNumber)
	p.status(o.Status)
	fmt.Fprintln(p.w)
	for _, it := range o.Items {
		fmt.Fprintf(p.w, "  %2d x %-24s %10s\n", it.Quantity, it.MenuItemName, rupees(it.SubtotalCents()))
	}
	fmt.Fprintf(p.w, "  %-29s %10s\n", "Total", rupees(o.TotalAmountCents))
	if pay := o.Payment; pay != nil {
		fmt.Fprintf(p.w, "  payment: %s, %s\n", pay.Method, pay.Status)
		if pay.Method == model.MethodOnline && o.Status == model.StatusPaymentPending {
			fmt.Fprintf(p.w, "  pay to:  %s\n", pay.QRPayload)
		}
	}
	if o.QueuePosition != nil && o.EstimatedMinutes != nil {
		fmt.Fprintf(p.w, "  queue position %d, about %d min\n", *o.QueuePosition, *o.EstimatedMinutes)
	}
	if o.PickupCode != nil {
		fmt.Fprint(p.w, "  pickup code: ")
		okColor.Fprintf(p.w, "%s", *o.PickupCode)
		fmt.Fprintln(p.w)
	}
	if o.DeclineReason != nil {
		fmt.Fprintf(p.w, "  declined: %s\n", *o.DeclineReason)
	}
	if len(o.Events) > 0 {
		fmt.Fprintln(p.w, "  timeline:")
		for _, ev := range o.Events {
			fmt.Fprintf(p.w, "    %s  %s\n", ev.CreatedAt.Local().Format("15:04:05"), ev.ToStatus)
		}
	}
}

func (p *printer) Canteen(c *model.Canteen) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.endInline()
	fmt.Fprintf(p.w, "%-3d %-26s %s-%s  prep ~%d min  max %d  ", c.ID, c.Name, c.HoursOpen, c.HoursClose, c.AvgPrepMinutes, c.MaxActiveOrders)
	switch {
	case !c.IsActive:
		dimColor.Fprintf(p.w, "inactive")
	case c.AcceptingOrders:
		okColor.Fprintf(p.w, "open")
	default:
		warnColor.Fprintf(p.w, "closed")
	}
	fmt.Fprintln(p.w)
}

func (p *printer) MenuItem(it *model.MenuItem) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.endInline()
	fmt.Fprintf(p.w, "%-4d %-26s %10s  ", it.ID, it.Name, rupees(it.PriceCents))
	if it.IsAvailable {
		okColor.Fprintf(p.w, "available")
	} else {
		dimColor.Fprintf(p.w, "out of stock")
	}
	fmt.Fprintln(p.w)
}

func (p *printer) MessMenu(m *model.MessMenu) {
	meal := func(name string, v *string) {
		if v != nil && strings.TrimSpace(*v) != "" {
			fmt.Fprintf(p.w, "  %-10s %s\n", name, *v)
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.endInline()
	fmt.Fprintf(p.w, "#%d %s, %s\n", m.ID, m.HostelName, weekdayName(m.DayOfWeek))
	meal("breakfast", m.Breakfast)
	meal("lunch", m.Lunch)
	meal("snacks", m.Snacks)
	meal("dinner", m.Dinner)
}

func weekdayName(day int) string {
	// 0 is Monday
	return time.Weekday((day + 1) % 7).String()
}

func (p *printer) User(u *model.User) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.endInline()
	fmt.Fprintf(p.w, "%s (%s, id %d)\n", u.DisplayName(), u.Role, u.ID)
	field := func(name string, v *string) {
		if v != nil && *v != "" {
			fmt.Fprintf(p.w, "  %-8s %s\n", name, *v)
		}
	}
	field("email", u.Email)
	field("roll", u.RollNumber)
	field("phone", u.PhoneNumber)
	field("hostel", u.HostelName)
	if u.CanteenID != nil {
		fmt.Fprintf(p.w, "  %-8s %d\n", "canteen", *u.CanteenID)
	}
}
