package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"canteen/internal/database"
	"canteen/internal/model"
)

// Seeded ids: canteen admins are users 1-5 (admin of canteen N is user N),
// students S001.. start at user 6, the campus admin is user 56.
const (
	mainCanteen   int64 = 1
	vegThali      int64 = 1
	chickenCurry  int64 = 2
	roti          int64 = 5
	maggi         int64 = 6
	mainAdminID   int64 = 1
	hostelAdminID int64 = 2
	studentID     int64 = 6
	otherStudent  int64 = 7
	campusAdminID int64 = 56
)

var testStart = time.Date(2026, 3, 2, 6, 30, 0, 0, time.UTC)

type published struct {
	Type   string
	Order  int64
	Status model.OrderStatus
}

type recorder struct {
	mu     sync.Mutex
	events []published
}

func (r *recorder) Broadcast(eventType string, o *model.Order) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, published{eventType, o.ID, o.Status})
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	db      *database.DB
	clock   *testclock.Clock
	pub     *recorder
	auth    *AuthService
	orders  *OrderService
	catalog *CatalogService
	campus  *CampusService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := database.NewDB()
	db.HashCost = bcrypt.MinCost
	clk := testclock.NewClock(testStart)
	require.NoError(t, database.Seed(db, clk.Now()))
	pub := &recorder{}
	return &fixture{
		db:      db,
		clock:   clk,
		pub:     pub,
		auth:    NewAuthService(db),
		orders:  NewOrderService(db, clk, pub, 5*time.Minute),
		catalog: NewCatalogService(db, clk),
		campus:  NewCampusService(db, clk),
	}
}

func (f *fixture) user(t *testing.T, id int64) *model.User {
	t.Helper()
	u, err := f.auth.User(context.Background(), id)
	require.NoError(t, err)
	return u
}

func (f *fixture) order(t *testing.T, studentID int64, method model.PaymentMethod, items ...model.CreateOrderItem) *model.Order {
	t.Helper()
	if len(items) == 0 {
		items = []model.CreateOrderItem{{MenuItemID: vegThali, Quantity: 1}}
	}
	o, err := f.orders.Create(context.Background(), f.user(t, studentID), model.CreateOrderRequest{
		CanteenID:     mainCanteen,
		Items:         items,
		PaymentMethod: method,
	})
	require.NoError(t, err)
	return o
}

// paid takes a fresh online order through acceptance and payment.
func (f *fixture) paid(t *testing.T, studentID int64) *model.Order {
	t.Helper()
	ctx := context.Background()
	o := f.order(t, studentID, model.MethodOnline)
	_, err := f.orders.Accept(ctx, f.user(t, mainAdminID), o.ID)
	require.NoError(t, err)
	o, err = f.orders.Pay(ctx, f.user(t, studentID), o.ID)
	require.NoError(t, err)
	return o
}
