package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/fjod/go_inventory/internal/cache"
	h "github.com/fjod/go_inventory/internal/http"
	"github.com/fjod/go_inventory/internal/publisher"
	"github.com/fjod/go_inventory/internal/service"
	"github.com/fjod/go_inventory/internal/store"
)

type Config struct {
	HTTPPort        string
	StoreBackend    string
	RedisAddr       string
	KafkaBrokers    string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	DB              store.Credentials
}

func loadConfig() (*Config, error) {
	dbPort, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		return nil, errors.New("invalid DB_PORT")
	}

	return &Config{
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		StoreBackend:    getEnv("STORE", "postgres"),
		RedisAddr:       getEnv("REDIS_ADDR", ""),
		KafkaBrokers:    getEnv("KAFKA_BROKERS", ""),
		RequestTimeout:  30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		DB: store.Credentials{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              dbPort,
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", "postgres"),
			DBName:            getEnv("DB_NAME", "inventory"),
			MigrationsDirPath: getEnv("MIGRATIONS_PATH", "./migrations"),
		},
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	log.Println("inventory service starting...")
	_ = godotenv.Load()

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	var st store.Store
	switch cfg.StoreBackend {
	case "memory":
		st = store.NewMemoryStore()
		log.Println("Using in-memory store")
	default:
		pgStore, pgErr := store.NewPostgresStore(&cfg.DB)
		if pgErr != nil {
			log.Fatalf("Failed to connect to database: %v", pgErr)
		}
		if e2 := pgStore.RunMigrations(&cfg.DB); e2 != nil {
			log.Fatalf("Failed to run migrations: %v", e2)
		}
		log.Println("Database migrations completed")
		st = pgStore
	}
	defer st.Close()

	var productCache cache.ProductCache
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer redisClient.Close()
		productCache = cache.NewRedisCache(redisClient)
		log.Printf("Product cache enabled at %s", cfg.RedisAddr)
	}

	svc := service.NewInventoryService(st, productCache)
	handler := h.NewInventoryHandler(svc, cfg.RequestTimeout)

	var wg sync.WaitGroup
	pollerCtx, pollerCancel := context.WithCancel(context.Background())
	defer pollerCancel()

	if cfg.KafkaBrokers != "" {
		poller := publisher.NewOutboxPoller(st, cfg.KafkaBrokers)
		wg.Add(1)
		go func() {
			defer wg.Done()
			poller.Run(pollerCtx)
		}()
		log.Printf("Outbox poller publishing to %s", cfg.KafkaBrokers)
	}

	// Setup router
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(h.RequestIDHeader)
	r.Use(middleware.Timeout(cfg.RequestTimeout))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/products", func(r chi.Router) {
		r.Post("/", handler.AddProduct)
		r.Put("/stock/{productId}", handler.AddStock)
		r.Get("/stock/{productId}", handler.GetStock)
		r.Post("/reservation", handler.Reserve)
		r.Post("/order", handler.ConfirmOrder)
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Inventory service listening on port %s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to serve: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down inventory service...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	pollerCancel()
	wg.Wait()
	log.Println("Inventory service stopped")
}
