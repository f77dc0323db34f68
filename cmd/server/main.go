package main

import (
	"context"
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/bus-seat-reservation/internal/config"
	"github.com/iliyamo/bus-seat-reservation/internal/database"
	"github.com/iliyamo/bus-seat-reservation/internal/handler"
	"github.com/iliyamo/bus-seat-reservation/internal/payment"
	"github.com/iliyamo/bus-seat-reservation/internal/queue"
	"github.com/iliyamo/bus-seat-reservation/internal/repository"
	"github.com/iliyamo/bus-seat-reservation/internal/router"
	"github.com/iliyamo/bus-seat-reservation/internal/service"
)

func main() {
	// .env is optional; real deployments set variables directly.
	_ = godotenv.Load()
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Println("redis unavailable; rate limiting and response cache disabled")
	}

	store := repository.NewStore(db)
	locks := service.NewLockTable()

	reservations := service.NewReservationService(store, locks, cfg.HoldTTL, cfg.MaxSeatsPerBooking)
	provider := payment.NewClient(cfg.ProviderURL, cfg.ProviderSecret, cfg.ProviderAttempts)
	payments := service.NewPaymentService(store, provider, locks, queue.PublishTicketIssued, cfg.ReturnURL)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Background workers: expired-hold reaper and ticket log consumer.
	go payments.RunReaper(ctx, cfg.ReapInterval)
	go queue.StartTicketConsumer()

	e := echo.New()
	e.HideBanner = true

	router.RegisterRoutes(e, router.Handlers{
		Departures:   handler.NewDepartureHandler(store.Departures, store.Seats),
		Reservations: handler.NewReservationHandler(reservations),
		Bookings:     handler.NewBookingHandler(store.Bookings, payments),
		Payments:     handler.NewPaymentHandler(payments, provider),
	}, cfg, rdb)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
