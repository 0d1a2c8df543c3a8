package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	kafkaGo "github.com/segmentio/kafka-go"

	"github.com/hardik18-hk19/urbi-fix-sub000/config"
	"github.com/hardik18-hk19/urbi-fix-sub000/internal/cache"
	"github.com/hardik18-hk19/urbi-fix-sub000/internal/kafka"
	"github.com/hardik18-hk19/urbi-fix-sub000/internal/notify"
	"github.com/hardik18-hk19/urbi-fix-sub000/internal/repository"
	"github.com/hardik18-hk19/urbi-fix-sub000/internal/service/booking"
	"github.com/hardik18-hk19/urbi-fix-sub000/internal/service/chat"
	"github.com/hardik18-hk19/urbi-fix-sub000/internal/service/proposals"
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
	redisCache := cache.NewRedisCache(cfg.Redis, time.Duration(cfg.Negotiation.BookingCacheTTLSeconds)*time.Second)

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
		nil,
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
		nil,
		nil,
		cfg.Kafka.EventsTopic,
		time.Duration(cfg.Negotiation.PriceOfferTTLHours)*time.Hour,
	)

	// Bookings created upstream land here and seed the negotiation store.
	bookingsConsumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.BookingsTopic)
	defer bookingsConsumer.Close()
	go func() {
		if err := bookingsConsumer.Consume(ctx, func(ctx context.Context, msg kafkaGo.Message) error {
			var record kafka.BookingRecord
			if err := json.Unmarshal(msg.Value, &record); err != nil {
				log.Printf("decode booking record error: %v", err)
				return nil
			}
			input, err := toIngestInput(record)
			if err != nil {
				log.Printf("invalid booking record %s: %v", record.ID, err)
				return nil
			}
			if _, err := bookingService.Ingest(ctx, input); err != nil {
				log.Printf("ingest booking %s error: %v", record.ID, err)
			}
			return nil
		}); err != nil {
			log.Printf("bookings consumer stopped: %v", err)
		}
	}()

	notificationsConsumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.NotificationsTopic)
	defer notificationsConsumer.Close()
	sender := notify.NewSender()
	go func() {
		if err := notificationsConsumer.Consume(ctx, func(ctx context.Context, msg kafkaGo.Message) error {
			var event kafka.NegotiationEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				log.Printf("decode event error: %v", err)
				return nil
			}
			return sender.Send(ctx, event)
		}); err != nil {
			log.Printf("notifications consumer stopped: %v", err)
		}
	}()

	sweepEvery := time.Duration(cfg.Worker.ExpirationSweepMinutes) * time.Minute
	if sweepEvery <= 0 {
		sweepEvery = time.Minute
	}
	expireTicker := time.NewTicker(sweepEvery)
	defer expireTicker.Stop()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-expireTicker.C:
			expiredProposals, err := proposalService.ExpirePending(ctx)
			if err != nil {
				log.Printf("expire proposals error: %v", err)
			} else if len(expiredProposals) > 0 {
				log.Printf("expired %d proposals", len(expiredProposals))
			}

			expiredOffers, err := chatService.ExpirePriceOffers(ctx)
			if err != nil {
				log.Printf("expire price offers error: %v", err)
			} else if len(expiredOffers) > 0 {
				log.Printf("expired %d price offers", len(expiredOffers))
			}
		case s := <-sig:
			log.Printf("received signal %v, shutting down", s)
			return
		}
	}
}

func toIngestInput(record kafka.BookingRecord) (booking.IngestBookingInput, error) {
	id, err := uuid.Parse(record.ID)
	if err != nil {
		return booking.IngestBookingInput{}, err
	}
	consumerID, err := uuid.Parse(record.ConsumerID)
	if err != nil {
		return booking.IngestBookingInput{}, err
	}
	providerID, err := uuid.Parse(record.ProviderID)
	if err != nil {
		return booking.IngestBookingInput{}, err
	}
	serviceID, err := uuid.Parse(record.ServiceID)
	if err != nil {
		return booking.IngestBookingInput{}, err
	}

	return booking.IngestBookingInput{
		ID:                  id,
		ConsumerID:          consumerID,
		ProviderID:          providerID,
		ServiceID:           serviceID,
		OriginalAmountCents: record.OriginalAmountCents,
		ScheduledDate:       record.ScheduledDate,
		ScheduledTime:       record.ScheduledTime,
		Notes:               record.Notes,
	}, nil
}
