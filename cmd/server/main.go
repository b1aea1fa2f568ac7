package main

import (
	"context"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/tixforge/tixforge/internal/config"
	"github.com/tixforge/tixforge/internal/database"
	"github.com/tixforge/tixforge/internal/handler"
	"github.com/tixforge/tixforge/internal/inventory"
	"github.com/tixforge/tixforge/internal/lock"
	"github.com/tixforge/tixforge/internal/payment"
	"github.com/tixforge/tixforge/internal/queue"
	"github.com/tixforge/tixforge/internal/repository"
	"github.com/tixforge/tixforge/internal/router"
)

func main() {
	// A local .env is a convenience for development; in production the
	// variables come from the environment directly.
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, relying on environment")
	}

	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	rdb := config.NewRedisClient()
	if rdb != nil {
		defer rdb.Close()
	}

	store := repository.NewStore(db)

	var locker lock.Locker
	switch cfg.LockMode {
	case "memory":
		// Single-instance deployments only: the lock lives in process
		// memory and protects nothing across replicas.
		locker = lock.NewMemoryLocker(cfg.LockWait)
	case "off":
		log.Println("WARNING: event locking disabled, oversells are possible")
		locker = lock.NopLocker{}
	default:
		locker = lock.NewSQLLocker(db, cfg.LockWait)
	}

	engine := inventory.NewEngine(store, locker,
		inventory.WithCartTTL(cfg.CartTTL),
		inventory.WithPaymentTTL(cfg.PaymentTTL),
	)
	snapshots := inventory.NewSnapshotCache(engine, rdb, 30*time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go engine.RunReclaimer(ctx, cfg.ReclaimInterval)
	go func() {
		if err := queue.StartOrderConsumer(); err != nil {
			log.Printf("order consumer: %v", err)
		}
	}()

	h := router.Handlers{
		Cart:         handler.NewCartHandler(engine, cfg.JWTSecret, 24*time.Hour),
		Order:        handler.NewOrderHandler(engine, store, payment.AutoConfirm{}),
		Availability: handler.NewAvailabilityHandler(snapshots),
		Organizer:    handler.NewOrganizerHandler(db),
	}

	e := echo.New()
	e.HideBanner = true
	router.Register(e, h, cfg.JWTSecret, rdb)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s, lock=%s)", addr, cfg.Env, cfg.LockMode)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
