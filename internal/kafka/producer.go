package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/segmentio/kafka-go"
)

// Event types emitted to external collaborators (notification service,
// booking ledger).
const (
	EventBookingStatusChanged = "booking.status_changed"
	EventProposalCreated      = "proposal.created"
	EventProposalAccepted     = "proposal.accepted"
	EventProposalRejected     = "proposal.rejected"
	EventProposalCancelled    = "proposal.cancelled"
	EventProposalExpired      = "proposal.expired"
	EventPriceOfferAccepted   = "price_offer.accepted"
	EventPriceOfferRejected   = "price_offer.rejected"
	EventPriceOfferExpired    = "price_offer.expired"
)

// NegotiationEvent is the wire format for every domain event the core emits.
type NegotiationEvent struct {
	Type          string    `json:"type"`
	BookingID     string    `json:"booking_id"`
	ProposalID    string    `json:"proposal_id,omitempty"`
	MessageID     string    `json:"message_id,omitempty"`
	ActorID       string    `json:"actor_id,omitempty"`
	BookingStatus string    `json:"booking_status,omitempty"`
	AmountCents   int64     `json:"amount_cents,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// BookingRecord is the payload the external Booking service publishes when a
// booking is created; the worker ingests it into the negotiation store.
type BookingRecord struct {
	ID                  string    `json:"id"`
	ConsumerID          string    `json:"consumer_id"`
	ProviderID          string    `json:"provider_id"`
	ServiceID           string    `json:"service_id"`
	OriginalAmountCents int64     `json:"original_amount_cents"`
	ScheduledDate       time.Time `json:"scheduled_date"`
	ScheduledTime       string    `json:"scheduled_time"`
	Notes               string    `json:"notes"`
}

type Producer struct {
	writer *kafka.Writer
}

func NewProducer(brokers []string) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 50 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
		Async:        false,
	}
	return &Producer{writer: writer}
}

func (p *Producer) Publish(ctx context.Context, topic, key string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	message := kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: data,
		Time:  time.Now(),
	}
	if err := p.writer.WriteMessages(ctx, message); err != nil {
		return fmt.Errorf("failed to write message to kafka: %w", err)
	}
	return nil
}

func (p *Producer) PublishWithRetry(ctx context.Context, topic, key string, payload interface{}, maxRetries int) error {
	var lastErr error
	for i := 0; i < maxRetries; i++ {
		if err := p.Publish(ctx, topic, key, payload); err == nil {
			return nil
		} else {
			lastErr = err
			log.Printf("kafka publish attempt %d failed: %v", i+1, err)
		}
		if i < maxRetries-1 {
			time.Sleep(time.Duration(i+1) * 500 * time.Millisecond)
		}
	}
	return fmt.Errorf("failed after %d retries: %w", maxRetries, lastErr)
}

func (p *Producer) Close() error {
	if p.writer != nil {
		return p.writer.Close()
	}
	return nil
}
