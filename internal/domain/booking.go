package domain

import (
	"time"

	"github.com/google/uuid"
)

type BookingStatus string

const (
	BookingStatusPending     BookingStatus = "pending"
	BookingStatusNegotiating BookingStatus = "negotiating"
	BookingStatusConfirmed   BookingStatus = "confirmed"
	BookingStatusInProgress  BookingStatus = "in_progress"
	BookingStatusCompleted   BookingStatus = "completed"
	BookingStatusCancelled   BookingStatus = "cancelled"
	BookingStatusRejected    BookingStatus = "rejected"
)

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// statusTransitions is the only source of truth for legal booking
// transitions. Terminal states have no outgoing edges.
var statusTransitions = map[BookingStatus][]BookingStatus{
	BookingStatusPending:     {BookingStatusNegotiating, BookingStatusConfirmed, BookingStatusCancelled, BookingStatusRejected},
	BookingStatusNegotiating: {BookingStatusConfirmed, BookingStatusCancelled, BookingStatusRejected},
	BookingStatusConfirmed:   {BookingStatusInProgress, BookingStatusCancelled},
	BookingStatusInProgress:  {BookingStatusCompleted, BookingStatusCancelled},
	BookingStatusCompleted:   {},
	BookingStatusCancelled:   {},
	BookingStatusRejected:    {},
}

func (s BookingStatus) Valid() bool {
	_, ok := statusTransitions[s]
	return ok
}

func (s BookingStatus) Terminal() bool {
	targets, ok := statusTransitions[s]
	return ok && len(targets) == 0
}

func (s BookingStatus) CanTransitionTo(target BookingStatus) bool {
	for _, t := range statusTransitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

type Role string

const (
	RoleConsumer Role = "consumer"
	RoleProvider Role = "provider"
	RoleAdmin    Role = "admin"
)

// Participant is the trusted identity resolved upstream (user id + role).
type Participant struct {
	UserID uuid.UUID
	Role   Role
}

// Booking is the authoritative lifecycle record for one service engagement.
// It is created by the external Booking service at "pending" and mutated only
// through the negotiation state machine.
type Booking struct {
	ID                    uuid.UUID
	ConsumerID            uuid.UUID
	ProviderID            uuid.UUID
	ServiceID             uuid.UUID
	Status                BookingStatus
	OriginalAmountCents   int64
	NegotiatedAmountCents *int64
	ScheduledDate         time.Time
	ScheduledTime         string
	Notes                 string
	PaymentStatus         PaymentStatus
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// CurrentAmountCents is the negotiated amount when one has been accepted,
// otherwise the original amount.
func (b *Booking) CurrentAmountCents() int64 {
	if b.NegotiatedAmountCents != nil {
		return *b.NegotiatedAmountCents
	}
	return b.OriginalAmountCents
}

func (b *Booking) IsParty(userID uuid.UUID) bool {
	return b.ConsumerID == userID || b.ProviderID == userID
}

// Counterparty returns the other negotiation party for a given participant.
func (b *Booking) Counterparty(userID uuid.UUID) (uuid.UUID, bool) {
	switch userID {
	case b.ConsumerID:
		return b.ProviderID, true
	case b.ProviderID:
		return b.ConsumerID, true
	}
	return uuid.Nil, false
}
