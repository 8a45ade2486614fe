package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/diagnosis/foodshare-donations/internal/delivery"
	"github.com/diagnosis/foodshare-donations/internal/http/handlers"
	"github.com/diagnosis/foodshare-donations/internal/repository"
	"github.com/diagnosis/foodshare-donations/internal/service"
	"github.com/diagnosis/foodshare-donations/pkg/config"
	"github.com/diagnosis/foodshare-donations/pkg/database"
	"github.com/diagnosis/foodshare-donations/pkg/events"
	"github.com/diagnosis/foodshare-donations/pkg/logger"
	mw "github.com/diagnosis/foodshare-donations/pkg/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	// Donation store
	var donationRepo repository.DonationRepository
	switch cfg.Store.Driver {
	case config.StorePostgres:
		pool, err := database.Connect(ctx, cfg.Database)
		if err != nil {
			logger.Error("Failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		donationRepo = repository.NewDonationRepository(pool)
	default:
		logger.Warn("Using in-memory donation store; data is lost on restart")
		donationRepo = repository.NewMemoryDonationRepository()
	}

	// Event bus
	var publisher events.Publisher = events.NopPublisher{}
	if cfg.NATS.URL != "" {
		natsPublisher, err := events.NewNATSPublisher(cfg.NATS.URL)
		if err != nil {
			logger.Error("Failed to connect to NATS", "error", err)
			os.Exit(1)
		}
		defer natsPublisher.Close()
		publisher = natsPublisher
	}

	gateway := delivery.NewClient(cfg.Delivery.BaseURL, cfg.Delivery.APIKey, cfg.Delivery.Timeout)
	donationService := service.NewDonationService(donationRepo, gateway, publisher)
	h := handlers.New(donationService, cfg.Auth)

	// Write routes: rate limit, then idempotent replay when Redis is configured
	limiter := mw.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
	write := []func(http.Handler) http.Handler{limiter.Middleware}
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			logger.Error("Invalid REDIS_URL", "error", err)
			os.Exit(1)
		}
		rdb := redis.NewClient(opts)
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Error("Failed to connect to Redis", "error", err)
			os.Exit(1)
		}
		write = append(write, mw.Idempotency(repository.NewIdempotencyRepository(rdb), cfg.Redis.IdempotencyTTL))
	}

	r := chi.NewRouter()
	r.Use(mw.RequestID)
	r.Use(mw.ServiceName("donations"))
	r.Use(mw.Logging)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", mw.IdempotencyHeader},
		ExposedHeaders:   []string{"X-Request-ID", "Idempotent-Replayed"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(mw.Health)
	r.Use(mw.Metrics)

	r.Mount("/v1", h.Routes(write...))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Graceful shutdown
	done := make(chan struct{})
	go func() {
		defer close(done)
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("Shutting down donations service...")

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Donations service shutdown error", "error", err)
		}
	}()

	logger.Info("Starting donations service", "port", cfg.Server.Port, "store", cfg.Store.Driver)
	start := time.Now()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Donations service error", "error", err)
		os.Exit(1)
	}
	<-done
	logger.Info("Donations service stopped", "uptime", time.Since(start).String())
}
