package booking

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/hardik18-hk19/urbi-fix-sub000/internal/domain"
	"github.com/hardik18-hk19/urbi-fix-sub000/internal/kafka"
	"github.com/hardik18-hk19/urbi-fix-sub000/internal/metrics"
	"github.com/hardik18-hk19/urbi-fix-sub000/internal/repository"
)

type BookingUseCase interface {
	Get(ctx context.Context, id uuid.UUID, actor domain.Participant) (*domain.Booking, error)
	ListForUser(ctx context.Context, actor domain.Participant) ([]domain.Booking, error)
	// Transition applies an explicit status change requested by a participant,
	// enforcing the state-machine guards and optimistic concurrency.
	Transition(ctx context.Context, bookingID uuid.UUID, actor domain.Participant, target domain.BookingStatus) (*domain.Booking, error)
	// Ingest registers a booking record created by the external Booking
	// service. Idempotent on booking id.
	Ingest(ctx context.Context, input IngestBookingInput) (*domain.Booking, error)
}

type Cache interface {
	GetBooking(ctx context.Context, id uuid.UUID) (*domain.Booking, error)
	SetBooking(ctx context.Context, booking *domain.Booking) error
	InvalidateBooking(ctx context.Context, id uuid.UUID) error
}

type Producer interface {
	Publish(ctx context.Context, topic, key string, value interface{}) error
}

type IngestBookingInput struct {
	ID                  uuid.UUID
	ConsumerID          uuid.UUID
	ProviderID          uuid.UUID
	ServiceID           uuid.UUID
	OriginalAmountCents int64
	ScheduledDate       time.Time
	ScheduledTime       string
	Notes               string
}

type BookingService struct {
	bookings    repository.BookingRepository
	cache       Cache
	producer    Producer
	eventsTopic string
}

func NewBookingService(bookings repository.BookingRepository, cache Cache, producer Producer, eventsTopic string) *BookingService {
	return &BookingService{
		bookings:    bookings,
		cache:       cache,
		producer:    producer,
		eventsTopic: eventsTopic,
	}
}

func (s *BookingService) Get(ctx context.Context, id uuid.UUID, actor domain.Participant) (*domain.Booking, error) {
	if s.cache != nil {
		if cached, err := s.cache.GetBooking(ctx, id); err == nil && cached != nil {
			if err := authorizeBookingRead(cached, actor); err != nil {
				return nil, err
			}
			return cached, nil
		}
	}

	booking, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorizeBookingRead(booking, actor); err != nil {
		return nil, err
	}
	if s.cache != nil {
		_ = s.cache.SetBooking(ctx, booking)
	}
	return booking, nil
}

func (s *BookingService) ListForUser(ctx context.Context, actor domain.Participant) ([]domain.Booking, error) {
	return s.bookings.ListByParticipant(ctx, actor.UserID)
}

func (s *BookingService) Transition(ctx context.Context, bookingID uuid.UUID, actor domain.Participant, target domain.BookingStatus) (*domain.Booking, error) {
	if !target.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", domain.ErrValidation, target)
	}

	current, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if err := authorizeTransition(current, actor, target); err != nil {
		return nil, err
	}
	if !current.Status.CanTransitionTo(target) {
		return nil, fmt.Errorf("cannot change status from %s to %s: %w", current.Status, target, domain.ErrConflict)
	}

	updated, err := s.bookings.UpdateStatus(ctx, bookingID, current.Status, target, nil)
	if err != nil {
		return nil, err
	}

	s.afterTransition(ctx, updated, actor.UserID)
	return updated, nil
}

func (s *BookingService) Ingest(ctx context.Context, input IngestBookingInput) (*domain.Booking, error) {
	if input.ID == uuid.Nil {
		return nil, fmt.Errorf("%w: booking id is required", domain.ErrValidation)
	}
	if input.ConsumerID == uuid.Nil || input.ProviderID == uuid.Nil {
		return nil, fmt.Errorf("%w: booking parties are required", domain.ErrValidation)
	}
	if input.OriginalAmountCents <= 0 {
		return nil, fmt.Errorf("%w: booking amount must be positive", domain.ErrValidation)
	}

	booking := &domain.Booking{
		ID:                  input.ID,
		ConsumerID:          input.ConsumerID,
		ProviderID:          input.ProviderID,
		ServiceID:           input.ServiceID,
		Status:              domain.BookingStatusPending,
		OriginalAmountCents: input.OriginalAmountCents,
		ScheduledDate:       input.ScheduledDate,
		ScheduledTime:       input.ScheduledTime,
		Notes:               input.Notes,
		PaymentStatus:       domain.PaymentStatusPending,
	}
	if err := s.bookings.Create(ctx, booking); err != nil {
		return nil, err
	}
	return booking, nil
}

// afterTransition publishes the status-changed event and drops the cached
// snapshot. Both are best-effort: the mutation has already succeeded.
func (s *BookingService) afterTransition(ctx context.Context, booking *domain.Booking, actorID uuid.UUID) {
	if s.cache != nil {
		_ = s.cache.InvalidateBooking(ctx, booking.ID)
	}
	if s.producer == nil || s.eventsTopic == "" {
		return
	}

	event := kafka.NegotiationEvent{
		Type:          kafka.EventBookingStatusChanged,
		BookingID:     booking.ID.String(),
		ActorID:       actorID.String(),
		BookingStatus: string(booking.Status),
		AmountCents:   booking.CurrentAmountCents(),
		OccurredAt:    time.Now(),
	}
	if err := s.producer.Publish(ctx, s.eventsTopic, booking.ID.String(), event); err != nil {
		log.Printf("WARNING: failed to publish %s for booking %s: %v", event.Type, booking.ID, err)
		return
	}
	metrics.DomainEventsPublished.WithLabelValues(event.Type).Inc()
}

func authorizeBookingRead(booking *domain.Booking, actor domain.Participant) error {
	if actor.Role == domain.RoleAdmin || booking.IsParty(actor.UserID) {
		return nil
	}
	return fmt.Errorf("%w: you are not part of this booking", domain.ErrForbidden)
}

// authorizeTransition enforces who may request which explicit transition:
// progress marks come only from the assigned provider, rejection is the
// provider's call, cancellation belongs to either party, and admins may
// override anything.
func authorizeTransition(booking *domain.Booking, actor domain.Participant, target domain.BookingStatus) error {
	if actor.Role == domain.RoleAdmin {
		return nil
	}
	if !booking.IsParty(actor.UserID) {
		return fmt.Errorf("%w: you are not part of this booking", domain.ErrForbidden)
	}

	switch target {
	case domain.BookingStatusInProgress, domain.BookingStatusCompleted:
		if actor.UserID != booking.ProviderID {
			return fmt.Errorf("%w: only the assigned provider can mark progress", domain.ErrForbidden)
		}
	case domain.BookingStatusConfirmed:
		if actor.UserID != booking.ProviderID {
			return fmt.Errorf("%w: only the provider can accept a booking", domain.ErrForbidden)
		}
	case domain.BookingStatusRejected:
		if actor.UserID != booking.ProviderID {
			return fmt.Errorf("%w: only the provider can reject a booking", domain.ErrForbidden)
		}
	}
	return nil
}

var _ BookingUseCase = (*BookingService)(nil)
