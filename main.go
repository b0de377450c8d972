package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ms-reservation/internal/auth"
	"ms-reservation/internal/booking"
	booking_api "ms-reservation/internal/booking/api"
	bookingdb "ms-reservation/internal/booking/db"
	"ms-reservation/internal/config"
	"ms-reservation/internal/database/migrations"
	"ms-reservation/internal/inventory"
	"ms-reservation/internal/inventory/redislock"
	"ms-reservation/internal/kafka"
	"ms-reservation/internal/logger"
	"ms-reservation/internal/pricing"
	"ms-reservation/internal/reference"
	reference_api "ms-reservation/internal/reference/api"
	"ms-reservation/internal/route"
	"ms-reservation/internal/ticket"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
)

func verifyConnections(ctx context.Context, cfg *config.Config, log *logger.Logger) (*bun.DB, *redis.Client) {
	var sqldb *sql.DB
	var err error
	maxRetries := 5

	for i := 0; i < maxRetries; i++ {
		log.Info("DATABASE", fmt.Sprintf("Attempting to connect to PostgreSQL (attempt %d/%d)", i+1, maxRetries))
		sqldb, err = sql.Open("postgres", cfg.Database.DSN)
		if err == nil {
			err = sqldb.PingContext(ctx)
			if err == nil {
				break
			}
		}
		log.Error("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
		if i < maxRetries-1 {
			time.Sleep(2 * time.Second)
		}
	}
	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL after %d attempts: %v", maxRetries, err))
	}

	sqldb.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.Database.MaxLifetime)
	log.Info("DATABASE", "PostgreSQL connection successful")

	bunDB := bun.NewDB(sqldb, pgdialect.New())

	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.Redis.Addr,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Redis connection error: %v", err))
	}
	log.Info("DATABASE", fmt.Sprintf("Redis connection successful to %s", cfg.Redis.Addr))

	return bunDB, redisClient
}

// requestLogger writes one access line per request with the final
// status and wall time.
func requestLogger(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.LogAPI(r.Method, r.URL.Path, fmt.Sprintf("%d", ww.Status()), time.Since(start).String())
		})
	}
}

func main() {
	log := logger.NewLogger()
	defer log.Close()

	log.Info("APP", "Starting Reservation Service initialization")

	if err := godotenv.Load(); err != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		log.Info("CONFIG", "Loaded environment variables from .env file")
	}

	cfg := config.Load()
	ctx := context.Background()

	bunDB, redisClient := verifyConnections(ctx, cfg, log)
	defer bunDB.Close()
	defer redisClient.Close()

	if os.Getenv("AUTO_MIGRATE") != "false" {
		opts := migrations.DefaultOptions()
		opts.SeedData = os.Getenv("SEED_DATA") == "true"
		if err := migrations.NewRunner(bunDB, opts).Up(); err != nil {
			log.Fatal("DATABASE", fmt.Sprintf("Migrations failed: %v", err))
		}
		log.LogDatabase("MIGRATE", "schema_migrations", "Migrations applied")
	}

	var publisher booking.EventPublisher = kafka.NoopPublisher{}
	if cfg.Kafka.Enabled {
		topics := []string{
			cfg.Kafka.Topics.BookingCreated,
			cfg.Kafka.Topics.BookingCancelled,
			cfg.Kafka.Topics.PassengerPromoted,
		}
		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, topics); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		}
		producer := kafka.NewProducer(cfg.Kafka.Brokers,
			cfg.Kafka.Topics.BookingCreated,
			cfg.Kafka.Topics.BookingCancelled,
			cfg.Kafka.Topics.PassengerPromoted,
		)
		defer producer.Close()
		publisher = producer
		log.Info("KAFKA", "Kafka producer initialized successfully")
	} else {
		log.Warn("KAFKA", "Kafka disabled, booking events will not be published")
	}

	refDB := reference.NewDB(bunDB)
	validator := route.NewValidator(refDB)
	resolver := pricing.NewResolver(&pricing.DB{Bun: bunDB})
	store := inventory.NewStore(bunDB, cfg.Booking.WaitlistCap)
	locks := redislock.New(redisClient, cfg.Booking.SlotLockTTL, cfg.Booking.SlotLockRetry, cfg.Booking.SlotLockWait)

	bookingService := booking.NewService(
		&bookingdb.DB{Bun: bunDB},
		store,
		locks,
		validator,
		resolver,
		publisher,
		log,
	)
	bookingService.PNRLength = cfg.Booking.PNRLength
	bookingService.MaxTxRetries = cfg.Booking.MaxTxRetries
	bookingService.RetryBackoff = cfg.Booking.RetryBackoff

	ticketGen := ticket.NewGenerator(os.Getenv("TICKET_QR_SECRET"))

	bookingHandler := booking_api.NewHandler(bookingService, store, ticketGen, log)
	referenceHandler := reference_api.NewHandler(refDB, log)

	log.Info("HTTP", "Setting up router and middleware")
	r := chi.NewRouter()
	r.Use(requestLogger(log))

	registerRoutes := func(r chi.Router) {
		r.Route("/api/v1", func(r chi.Router) {
			r.Route("/trains", func(r chi.Router) {
				r.Get("/", referenceHandler.ListTrains)
				r.Get("/{trainId}", referenceHandler.GetTrain)
				r.Get("/{trainId}/route", referenceHandler.GetRoute)
				r.Get("/{trainId}/availability", bookingHandler.GetAvailability)
			})
			r.Get("/stations", referenceHandler.SearchStations)

			r.Route("/bookings", func(r chi.Router) {
				r.Post("/", bookingHandler.CreateBooking)
				r.Get("/{pnr}", bookingHandler.GetBooking)
				r.Delete("/{pnr}", bookingHandler.CancelBooking)
				r.Get("/{pnr}/ticket", bookingHandler.GetTicket)
			})
		})
	}

	if cfg.Auth.Enabled {
		middleware, err := auth.Middleware(cfg.Auth.OIDCIssuer)
		if err != nil {
			log.Fatal("AUTH", fmt.Sprintf("Failed to set up OIDC middleware: %v", err))
		}
		r.Group(func(r chi.Router) {
			r.Use(middleware)
			registerRoutes(r)
		})
		log.Info("AUTH", "OIDC middleware applied to API routes")
	} else {
		registerRoutes(r)
		log.Warn("AUTH", "Auth disabled, API routes are open")
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP", fmt.Sprintf("Reservation Service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	log.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-stop

	log.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	ctxShutdown, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	} else {
		log.Info("HTTP", "Reservation Service shutdown complete")
	}
}
