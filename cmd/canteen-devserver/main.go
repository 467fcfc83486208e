package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/juju/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"canteen/internal/config"
	"canteen/internal/database"
	"canteen/internal/handler"
	"canteen/internal/hub"
	"canteen/internal/logger"
	"canteen/internal/service"
	"canteen/internal/worker"
)

func main() {
	fs := flag.NewFlagSet("canteen-devserver", flag.ExitOnError)
	cfg, err := config.NewServer(fs, os.Args[1:])
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(2)
	}
	if err := logger.Setup(os.Stderr, cfg.LogLevel, cfg.LogFormat); err != nil {
		slog.Error("failed to set up logging", "error", err)
		os.Exit(2)
	}

	db := database.NewDB()
	if cfg.Seed {
		if err := database.Seed(db, clock.WallClock.Now()); err != nil {
			slog.Error("failed to seed DB", "error", err)
			os.Exit(1)
		}
		slog.Info("demo data loaded",
			"campus_admin", database.CampusAdminEmail,
			"students", database.SeedRollNumber(1)+".."+database.SeedRollNumber(database.SeedStudents))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	pushHub := hub.New(reg)

	// Services
	svc := handler.Services{
		Auth:    service.NewAuthService(db),
		Orders:  service.NewOrderService(db, clock.WallClock, pushHub, cfg.PaymentTimeout),
		Catalog: service.NewCatalogService(db, clock.WallClock),
		Campus:  service.NewCampusService(db, clock.WallClock),
	}

	// Worker
	expiryWorker := worker.NewExpiryWorker(svc.Orders, clock.WallClock, cfg.ExpirySweepInterval)

	// Router
	r := handler.NewRouter(svc, handler.Options{
		Token: handler.TokenConfig{
			Secret:     cfg.JWTSecret,
			CookieName: cfg.CookieName,
			TTL:        cfg.TokenTTL,
			Clock:      clock.WallClock,
		},
		Push:    pushHub,
		Metrics: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	})

	// no WriteTimeout: the push channel is long-lived
	srv := &http.Server{
		Addr:              cfg.RunAddress,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	go expiryWorker.Start(ctx)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	slog.Info("starting server", "addr", cfg.RunAddress)
	slog.Debug("campus admin registration enabled", "setup_key", handler.SetupKey(cfg.JWTSecret))

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			quit <- syscall.SIGTERM
		}
	}()

	<-quit
	slog.Info("shutting down...")

	cancel() // stop worker
	pushHub.Close()
	ctxShut, cancelShut := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShut()

	if err := srv.Shutdown(ctxShut); err != nil {
		slog.Error("server shutdown failed", "error", err)
	}

	slog.Info("server stopped")
}
