package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mtsdb/restaurant-system/internal/config"
	"github.com/mtsdb/restaurant-system/internal/router"
	"github.com/mtsdb/restaurant-system/internal/store"
)

func main() {
	cfg := config.Load()

	ctx := context.Background()
	st, cleanup, err := newStore(ctx, cfg)
	if err != nil {
		log.Fatalf("store: %v", err)
	}
	defer cleanup()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           router.New(cfg, st),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Starting server on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("ERROR: shutdown: %v", err)
	}
}

func newStore(ctx context.Context, cfg *config.Config) (store.Store, func(), error) {
	switch cfg.StoreDriver {
	case "memory":
		log.Println("Using in-memory store")
		return store.NewMemory(), func() {}, nil
	case "postgres":
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("ping: %w", err)
		}
		if err := store.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("migrate: %w", err)
		}
		log.Println("Connected to database")
		return store.NewPostgres(pool), pool.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}
