package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/suitpax/orderchanges/config"
	"github.com/suitpax/orderchanges/internal/bootstrap"
	"github.com/suitpax/orderchanges/internal/cache"
	"github.com/suitpax/orderchanges/internal/duffel"
	"github.com/suitpax/orderchanges/internal/kafka"
	"github.com/suitpax/orderchanges/internal/repository"
	"github.com/suitpax/orderchanges/internal/service/changes"
)

func main() {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	redisCache := cache.NewRedisCache(cfg.Redis, time.Duration(cfg.Changes.EligibilityCacheTTL)*time.Second)
	producer := kafka.NewProducer(cfg.Kafka.Brokers)
	defer producer.Close()

	gateway := duffel.NewClient(cfg.Duffel)

	bookingRepo := repository.NewBookingRepository(pool)
	changeRepo := repository.NewChangeRequestRepository(pool)
	changeService := changes.NewChangeService(
		bookingRepo,
		changeRepo,
		gateway,
		redisCache,
		producer,
		cfg.Kafka.ChangesTopic,
		time.Duration(cfg.Changes.ConfirmLockTTLSeconds)*time.Second,
		changes.WithNotificationsTopic(cfg.Kafka.NotificationsTopic),
	)

	if err := bootstrap.Run(ctx, cfg, redisCache, changeService); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
