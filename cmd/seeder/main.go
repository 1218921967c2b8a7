package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/suitpax/orderchanges/config"
	"github.com/suitpax/orderchanges/internal/cache"
)

// Seeds a demo booking and a session token for local development.
func main() {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx := context.Background()

	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	userID := "user_demo"
	orderID := "ord_demo_1"

	_, err = pool.Exec(ctx, `INSERT INTO bookings (order_id, user_id, status, total_amount, total_currency, metadata)
		VALUES ($1, $2, 'confirmed', '450.00', 'USD', '{"cabin":"economy"}'::jsonb)
		ON CONFLICT (order_id) DO NOTHING`, orderID, userID)
	if err != nil {
		log.Fatalf("seed booking: %v", err)
	}

	redisCache := cache.NewRedisCache(cfg.Redis, time.Duration(cfg.Changes.EligibilityCacheTTL)*time.Second)

	token := uuid.NewString()
	sessionTTL := time.Duration(cfg.Auth.SessionTTLMinutes) * time.Minute
	if err := redisCache.StoreSession(ctx, token, userID, sessionTTL); err != nil {
		log.Fatalf("store session: %v", err)
	}

	log.Printf("seeded booking %s for %s", orderID, userID)
	log.Printf("session token: %s", token)
}
