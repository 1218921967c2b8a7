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
	"github.com/suitpax/orderchanges/internal/cache"
	"github.com/suitpax/orderchanges/internal/duffel"
	"github.com/suitpax/orderchanges/internal/email"
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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	producer := kafka.NewProducer(cfg.Kafka.Brokers)
	defer producer.Close()
	redisCache := cache.NewRedisCache(cfg.Redis, time.Duration(cfg.Changes.EligibilityCacheTTL)*time.Second)
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

	consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.NotificationsTopic)
	defer consumer.Close()

	emailSender := email.NewSender()

	go func() {
		if err := consumer.Consume(ctx, emailSender.Send); err != nil {
			log.Printf("consumer stopped: %v", err)
		}
	}()

	sweepMinutes := cfg.Worker.ExpirationSweepMinutes
	if sweepMinutes <= 0 {
		sweepMinutes = 5
	}
	expireTicker := time.NewTicker(time.Duration(sweepMinutes) * time.Minute)
	defer expireTicker.Stop()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-expireTicker.C:
			expired, err := changeService.ExpirePendingChanges(ctx)
			if err != nil {
				log.Printf("expire change requests error: %v", err)
				continue
			}
			if len(expired) > 0 {
				log.Printf("expired %d pending change requests", len(expired))
			}
		case s := <-sig:
			log.Printf("received signal %v, shutting down", s)
			return
		}
	}
}
