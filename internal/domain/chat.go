package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ChatRoom is the per-booking message channel. Exactly one room exists per
// booking; its participants are the booking's consumer and provider.
type ChatRoom struct {
	ID         uuid.UUID
	BookingID  uuid.UUID
	ConsumerID uuid.UUID
	ProviderID uuid.UUID
	CreatedAt  time.Time
}

func (r *ChatRoom) HasParticipant(userID uuid.UUID) bool {
	return r.ConsumerID == userID || r.ProviderID == userID
}

func (r *ChatRoom) Participants() []uuid.UUID {
	return []uuid.UUID{r.ConsumerID, r.ProviderID}
}

type MessageType string

const (
	MessageTypeText                 MessageType = "text"
	MessageTypePriceOffer           MessageType = "price_offer"
	MessageTypeScheduleModification MessageType = "schedule_modification"
	MessageTypeImage                MessageType = "image"
	MessageTypeDocument             MessageType = "document"
	MessageTypeSystem               MessageType = "system"
)

func (t MessageType) Valid() bool {
	switch t {
	case MessageTypeText, MessageTypePriceOffer, MessageTypeScheduleModification,
		MessageTypeImage, MessageTypeDocument, MessageTypeSystem:
		return true
	}
	return false
}

type OfferStatus string

const (
	OfferStatusPending  OfferStatus = "pending"
	OfferStatusAccepted OfferStatus = "accepted"
	OfferStatusRejected OfferStatus = "rejected"
	OfferStatusExpired  OfferStatus = "expired"
)

// PriceOffer is the chat-embedded lightweight price proposal. It has its own
// accept-once lifecycle; on acceptance it sets the booking's negotiated
// amount exactly like a price-kind proposal.
type PriceOffer struct {
	AmountCents int64       `json:"amount_cents"`
	Description string      `json:"description,omitempty"`
	ValidUntil  time.Time   `json:"valid_until"`
	Status      OfferStatus `json:"status"`
}

func (o *PriceOffer) Expired(now time.Time) bool {
	return o.Status == OfferStatusPending && now.After(o.ValidUntil)
}

// ScheduleModification is informational only: a proposed new slot delivered
// as a message, with no accept/reject lifecycle of its own.
type ScheduleModification struct {
	ProposedDate time.Time `json:"proposed_date"`
	ProposedTime string    `json:"proposed_time,omitempty"`
	Reason       string    `json:"reason,omitempty"`
}

type Attachment struct {
	Kind      MessageType `json:"kind"`
	URL       string      `json:"url"`
	Filename  string      `json:"filename"`
	SizeBytes int64       `json:"size_bytes"`
}

// MessageContent holds the type-specific payload; only the case matching the
// message type is set.
type MessageContent struct {
	Text                 string                `json:"text,omitempty"`
	PriceOffer           *PriceOffer           `json:"price_offer,omitempty"`
	ScheduleModification *ScheduleModification `json:"schedule_modification,omitempty"`
	Attachment           *Attachment           `json:"attachment,omitempty"`
}

// Message is an append-only chat log entry, totally ordered per room by the
// server-assigned Seq.
type Message struct {
	ID        uuid.UUID
	RoomID    uuid.UUID
	SenderID  uuid.UUID
	Seq       int64
	Type      MessageType
	Content   MessageContent
	ReplyTo   *uuid.UUID
	CreatedAt time.Time
}

// ValidateContent checks that the content payload matches the message type.
func (m *Message) ValidateContent() error {
	switch m.Type {
	case MessageTypeText, MessageTypeSystem:
		if m.Content.Text == "" {
			return fmt.Errorf("%w: %s message requires text", ErrValidation, m.Type)
		}
	case MessageTypePriceOffer:
		if m.Content.PriceOffer == nil {
			return fmt.Errorf("%w: price_offer message requires an offer payload", ErrValidation)
		}
	case MessageTypeScheduleModification:
		if m.Content.ScheduleModification == nil || m.Content.ScheduleModification.ProposedDate.IsZero() {
			return fmt.Errorf("%w: schedule_modification message requires a proposed date", ErrValidation)
		}
	case MessageTypeImage, MessageTypeDocument:
		if m.Content.Attachment == nil || m.Content.Attachment.URL == "" {
			return fmt.Errorf("%w: %s message requires an attachment reference", ErrValidation, m.Type)
		}
	default:
		return fmt.Errorf("%w: unknown message type %q", ErrValidation, m.Type)
	}
	return nil
}
