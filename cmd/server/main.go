package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sioma/spot-ingest/internal/api"
	"github.com/sioma/spot-ingest/internal/config"
	"github.com/sioma/spot-ingest/internal/ingest"
	"github.com/sioma/spot-ingest/internal/pkg/distlock"
	"github.com/sioma/spot-ingest/internal/pkg/httpretry"
	"github.com/sioma/spot-ingest/internal/sioma"
	"github.com/sioma/spot-ingest/internal/spots"
	"github.com/sioma/spot-ingest/internal/storage"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/redis/go-redis/v9"
)

// checkPortAvailable verifies that the target port is not already in use.
// This prevents confusion from stale processes occupying the port.
func checkPortAvailable(host string, port int) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("port %d is already in use (addr %s): %v\n"+
			"  Hint: Run 'lsof -i :%d' to find the blocking process", port, addr, err, port)
	}
	ln.Close()
	return nil
}

func main() {
	log.Println("SIOMA Spot Ingest Server starting")

	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if os.Getenv("DATABASE_URL") != "" {
		log.Println("[config] DATABASE_URL env override active")
	}

	if err := checkPortAvailable(cfg.Server.Host, cfg.Server.Port); err != nil {
		log.Fatalf("Pre-flight check FAILED: %v", err)
	}
	log.Printf("Pre-flight check passed: port %d is available", cfg.Server.Port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Run log is optional: an empty DSN runs the service stateless.
	var store *storage.Store
	if cfg.Storage.DSN != "" {
		db, err := sql.Open("postgres", cfg.Storage.DSN)
		if err != nil {
			log.Printf("Warning: failed to open run-log database: %v", err)
		} else {
			db.SetMaxOpenConns(10)
			db.SetMaxIdleConns(3)
			db.SetConnMaxLifetime(5 * time.Minute)

			pingCtx, pingCancel := context.WithTimeout(ctx, 3*time.Second)
			if err := db.PingContext(pingCtx); err != nil {
				log.Printf("Warning: run-log database ping failed: %v — run history disabled", err)
				db.Close()
			} else {
				store = storage.New(db)
				if err := store.EnsureSchema(ctx); err != nil {
					log.Fatalf("Failed to ensure run-log schema: %v", err)
				}
				log.Println("Run log connected (validation_runs)")
			}
			pingCancel()
		}
	} else {
		log.Println("Run log not configured (storage.dsn empty) — running stateless")
	}

	// Redis-backed catalog cache is also optional.
	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		pingCtx, pingCancel := context.WithTimeout(ctx, 3*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			log.Printf("Warning: Redis connection failed (%s): %v — caching lote catalogs in-process only", cfg.Redis.Addr, err)
			redisClient.Close()
			redisClient = nil
		} else {
			log.Printf("Redis connected: %s (lote catalog cache enabled)", cfg.Redis.Addr)
		}
		pingCancel()
	} else {
		log.Println("Redis not configured (redis.addr empty) — lote catalogs fetched per request")
	}

	retryDoer := httpretry.New(&http.Client{Timeout: cfg.Sioma.Timeout()}, cfg.Sioma.MaxRetries)
	siomaClient := sioma.NewClient(cfg.Sioma.BaseURL, cfg.Sioma.Token, retryDoer)
	catalog := sioma.NewCatalogCache(siomaClient, redisClient, cfg.Sioma.CatalogTTL())

	opts := spots.Options{AutoRemoveDuplicates: cfg.Validation.AutoRemoveDuplicatesOrDefault()}

	// S3 bucket watcher for hands-off field uploads.
	var watcher *ingest.Watcher
	if cfg.Ingest.Enabled && cfg.Ingest.S3Bucket != "" {
		watcher, err = ingest.NewWatcher(cfg.Ingest, catalog, store, opts)
		if err != nil {
			log.Printf("Warning: ingest watcher init failed: %v", err)
			watcher = nil
		} else {
			if redisClient != nil {
				watcher.SetLock(distlock.New(redisClient, "ingest:scan", 2*time.Minute))
				log.Println("Ingest scan lock enabled (Redis lease)")
			}
			watcher.Start()
			log.Printf("Ingest watcher started (bucket: %s, interval: %s)", cfg.Ingest.S3Bucket, cfg.Ingest.Interval())
		}
	} else {
		log.Println("Ingest watcher not configured (disabled or missing bucket)")
	}

	var watcherStatus api.IngestStatus
	if watcher != nil {
		watcherStatus = watcher
	}

	handlers := api.NewHandlers(siomaClient, catalog, store, watcherStatus, opts.AutoRemoveDuplicates)
	router := api.SetupRoutes(handlers, cfg.Server.AllowedOrigins)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Starting server on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	log.Println("All services initialized — server is ready")

	<-done
	log.Println("Shutting down...")

	if watcher != nil {
		watcher.Stop()
	}
	if redisClient != nil {
		redisClient.Close()
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server stopped")
}
