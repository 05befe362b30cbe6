package main // Entry point package

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/courtcaller/court-booking-engine/internal/config"
	"github.com/courtcaller/court-booking-engine/internal/database"
	"github.com/courtcaller/court-booking-engine/internal/handler"
	"github.com/courtcaller/court-booking-engine/internal/middleware"
	"github.com/courtcaller/court-booking-engine/internal/payment"
	"github.com/courtcaller/court-booking-engine/internal/queue"
	"github.com/courtcaller/court-booking-engine/internal/repository"
	"github.com/courtcaller/court-booking-engine/internal/router"
	"github.com/courtcaller/court-booking-engine/internal/service"
)

func main() {
	// .env is a development convenience; in production the variables
	// come from the orchestrator.
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file, using process environment")
	}
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName, cfg.DBMaxConns)
	if err != nil {
		log.Fatalf("connecting to mysql: %v", err)
	}
	defer db.Close()

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Println("redis unavailable; availability caching and rate limiting disabled")
	}

	branches := repository.NewBranchRepo(db)
	prices := repository.NewPriceRepo(db)
	bookings := repository.NewBookingRepo(db)
	payments := repository.NewPaymentRepo(db)

	coord := service.NewCoordinator(branches, prices, bookings, rdb, service.Policy{
		MaxSlotsPerBooking: cfg.MaxSlotsPerBooking,
		ReserveTTL:         cfg.ReserveTTL,
		ClaimTimeout:       cfg.ClaimTimeout,
		SweepInterval:      cfg.SweepInterval,
		AvailabilityTTL:    cfg.AvailabilityTTL,
	})
	gateway := payment.New(payment.Config{
		BaseURL: cfg.GatewayURL,
		APIKey:  cfg.GatewayKey,
		Timeout: cfg.GatewayTimeout,
	})
	saga := service.NewPaymentSaga(coord, payments, gateway, queue.PublishBookingConfirmed)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Background workers: the expiry sweeper returns lapsed reservations
	// to the pool, the consumer applies asynchronous payment results.
	go coord.RunExpirySweep(ctx)
	go queue.StartPaymentResultConsumer(ctx, saga)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))

	router.RegisterRoutes(e, db)
	router.RegisterBookings(e, handler.NewBookingHandler(coord, saga))
	router.RegisterAvailability(e, handler.NewAvailabilityHandler(coord))

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	go func() {
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server stopped: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
}
