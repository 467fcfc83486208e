package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"canteen/internal/model"
	"canteen/internal/mw"
	"canteen/internal/service"
)

type Services struct {
	Auth    *service.AuthService
	Orders  *service.OrderService
	Catalog *service.CatalogService
	Campus  *service.CampusService
}

type Options struct {
	Token TokenConfig
	// Push serves the /ws/orders push channel to logged-in users.
	Push http.Handler
	// Metrics is mounted on /metrics when set.
	Metrics        http.Handler
	AllowedOrigins []string
}

func NewRouter(svc Services, opts Options) http.Handler {
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, statusResponse{Status: "ok"})
	})
	if opts.Metrics != nil {
		r.Handle("/metrics", opts.Metrics)
	}
	r.Post("/auth/login", LoginHandler(svc.Auth, opts.Token))
	r.Post("/auth/logout", LogoutHandler(opts.Token.CookieName))
	r.Post("/auth/exchange-token", ExchangeTokenHandler(svc.Auth, opts.Token))
	r.Post("/auth/register-campus-admin", RegisterCampusAdminHandler(svc.Auth, opts.Token))
	r.Get("/hostels", HostelsHandler(svc.Catalog))

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(mw.AuthMiddleware(opts.Token.Secret, opts.Token.CookieName, svc.Auth))

		r.Get("/auth/me", MeHandler())
		r.Put("/profile", UpdateProfileHandler(svc.Auth))
		r.Post("/profile/change-password", ChangePasswordHandler(svc.Auth))

		r.Get("/canteens", ListCanteensHandler(svc.Catalog))
		r.Get("/canteens/{id}/status", CanteenStatusHandler(svc.Catalog))
		r.Get("/canteens/{id}/menu", MenuHandler(svc.Catalog))
		r.Get("/mess-menu", MessMenuHandler(svc.Catalog))
		r.Get("/mess-menu/today", TodayMessMenuHandler(svc.Catalog))
		r.Get("/orders/{id}", GetOrderHandler(svc.Orders))
		if opts.Push != nil {
			r.Handle("/ws/orders", opts.Push)
		}

		r.Group(func(r chi.Router) {
			r.Use(mw.RequireRole(model.RoleStudent))
			r.Post("/orders", CreateOrderHandler(svc.Orders))
			r.Get("/orders", ListOrdersHandler(svc.Orders))
			r.Post("/orders/{id}/pay", PayOrderHandler(svc.Orders))
		})

		r.Group(func(r chi.Router) {
			r.Use(mw.RequireRole(model.RoleCanteenAdmin))
			r.Get("/admin/orders", AdminOrdersHandler(svc.Orders))
			r.Get("/admin/orders/daily", DailyOrdersHandler(svc.Orders))
			r.Get("/admin/stats/active-orders", ActiveOrdersCountHandler(svc.Orders))
			r.Post("/admin/orders/{id}/accept", AcceptOrderHandler(svc.Orders))
			r.Post("/admin/orders/{id}/decline", DeclineOrderHandler(svc.Orders))
			r.Post("/admin/orders/{id}/status", UpdateStatusHandler(svc.Orders))
			r.Post("/admin/orders/{id}/payment-status", PaymentStatusHandler(svc.Orders))
			r.Post("/admin/orders/{id}/cancel-failed-payment", CancelFailedPaymentHandler(svc.Orders))
			r.Get("/admin/profile", AdminProfileHandler(svc.Catalog))
			r.Put("/admin/profile", UpdateAdminProfileHandler(svc.Catalog))
			r.Patch("/admin/profile/toggle-orders", ToggleOrdersHandler(svc.Catalog))
			r.Get("/admin/menu", AdminMenuHandler(svc.Catalog))
			r.Patch("/admin/menu/{id}/toggle", ToggleMenuItemHandler(svc.Catalog))
		})

		r.Group(func(r chi.Router) {
			r.Use(mw.RequireRole(model.RoleCampusAdmin))
			r.Get("/admin/stats", StatsHandler(svc.Orders))
			r.Post("/campus/canteens", CreateCanteenHandler(svc.Campus))
			r.Put("/campus/canteens/{id}", UpdateCanteenHandler(svc.Catalog))
			r.Delete("/campus/canteens/{id}", DeleteCanteenHandler(svc.Campus))
			r.Put("/campus/canteens/{id}/admin-email", AssignCanteenAdminHandler(svc.Campus))
			r.Post("/campus/canteens/{id}/menu", CreateMenuItemHandler(svc.Campus))
			r.Put("/campus/canteens/{id}/menu/{item}", UpdateMenuItemHandler(svc.Campus))
			r.Delete("/campus/canteens/{id}/menu/{item}", DeleteMenuItemHandler(svc.Campus))
			r.Get("/campus/hostels", HostelsHandler(svc.Catalog))
			r.Post("/campus/hostels", CreateHostelHandler(svc.Campus))
			r.Put("/campus/hostels/{id}", RenameHostelHandler(svc.Campus))
			r.Delete("/campus/hostels/{id}", DeleteHostelHandler(svc.Campus))
			r.Get("/campus/mess-menus", MessMenusHandler(svc.Campus))
			r.Post("/campus/mess-menu", CreateMessMenuHandler(svc.Campus))
			r.Put("/campus/mess-menu/{id}", UpdateMessMenuHandler(svc.Campus))
			r.Delete("/campus/mess-menu/{id}", DeleteMessMenuHandler(svc.Campus))
		})
	})

	return r
}
