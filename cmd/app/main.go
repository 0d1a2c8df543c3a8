package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hardik18-hk19/urbi-fix-sub000/config"
	"github.com/hardik18-hk19/urbi-fix-sub000/internal/bootstrap"
	"github.com/hardik18-hk19/urbi-fix-sub000/internal/cache"
	"github.com/hardik18-hk19/urbi-fix-sub000/internal/kafka"
	"github.com/hardik18-hk19/urbi-fix-sub000/internal/realtime"
	"github.com/hardik18-hk19/urbi-fix-sub000/internal/repository"
	"github.com/hardik18-hk19/urbi-fix-sub000/internal/service/booking"
	"github.com/hardik18-hk19/urbi-fix-sub000/internal/service/chat"
	"github.com/hardik18-hk19/urbi-fix-sub000/internal/service/proposals"
	"github.com/hardik18-hk19/urbi-fix-sub000/internal/storage"
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

	redisCache := cache.NewRedisCache(cfg.Redis, time.Duration(cfg.Negotiation.BookingCacheTTLSeconds)*time.Second)
	producer := kafka.NewProducer(cfg.Kafka.Brokers)
	defer producer.Close()

	hub := realtime.NewHub(time.Duration(cfg.Negotiation.TypingTTLMillis) * time.Millisecond)
	defer hub.Close()

	store, err := storage.NewLocalStore(cfg.Uploads.Dir, cfg.Uploads.MaxSizeBytes)
	if err != nil {
		log.Fatalf("init uploads dir: %v", err)
	}

	bookingRepo := repository.NewBookingRepository(pool)
	proposalRepo := repository.NewProposalRepository(pool)
	chatRepo := repository.NewChatRepository(pool)

	bookingService := booking.NewBookingService(bookingRepo, redisCache, producer, cfg.Kafka.EventsTopic)
	proposalService := proposals.NewProposalService(
		proposalRepo,
		bookingRepo,
		chatRepo,
		redisCache,
		producer,
		hub,
		cfg.Kafka.EventsTopic,
		time.Duration(cfg.Negotiation.DefaultProposalTTLHours)*time.Hour,
		time.Duration(cfg.Negotiation.MaxProposalTTLHours)*time.Hour,
	)
	chatService := chat.NewChatService(
		chatRepo,
		bookingRepo,
		redisCache,
		redisCache,
		producer,
		hub,
		store,
		cfg.Kafka.EventsTopic,
		time.Duration(cfg.Negotiation.PriceOfferTTLHours)*time.Hour,
	)

	deps := bootstrap.Deps{
		Bookings:  bookingService,
		Proposals: proposalService,
		Chat:      chatService,
		Hub:       hub,
		UploadDir: store.Dir(),
	}
	if err := bootstrap.Run(ctx, cfg, deps); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
