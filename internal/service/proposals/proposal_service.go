package proposals

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/hardik18-hk19/urbi-fix-sub000/internal/domain"
	"github.com/hardik18-hk19/urbi-fix-sub000/internal/kafka"
	"github.com/hardik18-hk19/urbi-fix-sub000/internal/metrics"
	"github.com/hardik18-hk19/urbi-fix-sub000/internal/realtime"
	"github.com/hardik18-hk19/urbi-fix-sub000/internal/repository"
	"github.com/hardik18-hk19/urbi-fix-sub000/internal/service/booking"
)

type ProposalUseCase interface {
	Create(ctx context.Context, input CreateProposalInput) (*domain.Proposal, error)
	Respond(ctx context.Context, input RespondInput) (*domain.Proposal, error)
	Cancel(ctx context.Context, proposalID uuid.UUID, actor domain.Participant) (*domain.Proposal, error)
	Get(ctx context.Context, proposalID uuid.UUID, actor domain.Participant) (*domain.Proposal, error)
	ListByBooking(ctx context.Context, bookingID uuid.UUID, actor domain.Participant) ([]domain.Proposal, error)
	ListForUser(ctx context.Context, actor domain.Participant, filter repository.ProposalFilter) ([]domain.Proposal, error)
	// ExpirePending sweeps proposals past their deadline and emits
	// proposal.expired for each. Lazy expiry at respond time already keeps
	// correctness; the sweep only keeps observers fresh.
	ExpirePending(ctx context.Context) ([]domain.Proposal, error)
}

// Broadcaster fans realtime events out to the booking's chat room.
type Broadcaster interface {
	Publish(roomID uuid.UUID, event realtime.Event)
}

const (
	ActionAccept = "accept"
	ActionReject = "reject"
)

type CreateProposalInput struct {
	BookingID       uuid.UUID
	Actor           domain.Participant
	Kind            domain.ProposalKind
	Changes         domain.ProposedChanges
	Justification   string
	ExpirationHours int
}

type RespondInput struct {
	ProposalID      uuid.UUID
	Actor           domain.Participant
	Action          string
	ResponseMessage string
}

type ProposalService struct {
	proposals   repository.ProposalRepository
	bookings    repository.BookingRepository
	rooms       repository.ChatRepository
	cache       booking.Cache
	producer    booking.Producer
	broadcaster Broadcaster
	eventsTopic string
	defaultTTL  time.Duration
	maxTTL      time.Duration
}

func NewProposalService(
	proposals repository.ProposalRepository,
	bookings repository.BookingRepository,
	rooms repository.ChatRepository,
	cache booking.Cache,
	producer booking.Producer,
	broadcaster Broadcaster,
	eventsTopic string,
	defaultTTL, maxTTL time.Duration,
) *ProposalService {
	if defaultTTL <= 0 {
		defaultTTL = 24 * time.Hour
	}
	if maxTTL <= 0 {
		maxTTL = 168 * time.Hour
	}
	return &ProposalService{
		proposals:   proposals,
		bookings:    bookings,
		rooms:       rooms,
		cache:       cache,
		producer:    producer,
		broadcaster: broadcaster,
		eventsTopic: eventsTopic,
		defaultTTL:  defaultTTL,
		maxTTL:      maxTTL,
	}
}

func (s *ProposalService) Create(ctx context.Context, input CreateProposalInput) (*domain.Proposal, error) {
	if !input.Kind.Valid() {
		return nil, fmt.Errorf("%w: invalid proposal type %q", domain.ErrValidation, input.Kind)
	}
	if input.Justification == "" {
		return nil, fmt.Errorf("%w: justification is required", domain.ErrValidation)
	}
	if err := input.Changes.ValidateFor(input.Kind); err != nil {
		return nil, err
	}

	ttl := s.defaultTTL
	if input.ExpirationHours != 0 {
		ttl = time.Duration(input.ExpirationHours) * time.Hour
		if ttl < time.Hour || ttl > s.maxTTL {
			return nil, fmt.Errorf("%w: expiration must be between 1 hour and %v", domain.ErrValidation, s.maxTTL)
		}
	}

	bk, err := s.bookings.GetByID(ctx, input.BookingID)
	if err != nil {
		return nil, err
	}
	if !bk.IsParty(input.Actor.UserID) {
		return nil, fmt.Errorf("%w: you are not part of this booking", domain.ErrForbidden)
	}
	if bk.Status.Terminal() {
		return nil, fmt.Errorf("cannot create proposal for %s booking: %w", bk.Status, domain.ErrConflict)
	}

	counterparty, _ := bk.Counterparty(input.Actor.UserID)
	proposal := &domain.Proposal{
		ID:            uuid.New(),
		BookingID:     input.BookingID,
		ProposedBy:    input.Actor.UserID,
		ProposedTo:    counterparty,
		Kind:          input.Kind,
		Changes:       input.Changes,
		Justification: input.Justification,
		ExpiresAt:     time.Now().Add(ttl),
	}
	if err := s.proposals.Create(ctx, proposal); err != nil {
		return nil, err
	}

	// A first counter-offer opens the negotiation phase.
	if bk.Status == domain.BookingStatusPending {
		s.advanceToNegotiating(ctx, bk, input.Actor.UserID)
	}

	s.emit(ctx, kafka.EventProposalCreated, proposal, input.Actor.UserID, 0)
	return proposal, nil
}

func (s *ProposalService) Respond(ctx context.Context, input RespondInput) (*domain.Proposal, error) {
	if input.Action != ActionAccept && input.Action != ActionReject {
		return nil, fmt.Errorf("%w: action must be %q or %q", domain.ErrValidation, ActionAccept, ActionReject)
	}

	proposal, err := s.proposals.GetByID(ctx, input.ProposalID)
	if err != nil {
		return nil, err
	}
	if proposal.ProposedBy == input.Actor.UserID {
		return nil, fmt.Errorf("%w: you cannot respond to your own proposal", domain.ErrForbidden)
	}
	if proposal.ProposedTo != input.Actor.UserID {
		return nil, fmt.Errorf("%w: you are not the recipient of this proposal", domain.ErrForbidden)
	}
	if proposal.Status != domain.ProposalStatusPending {
		return nil, fmt.Errorf("proposal is %s: %w", proposal.Status, domain.ErrConflict)
	}
	if proposal.Expired(time.Now()) {
		s.markExpired(ctx, proposal)
		return nil, fmt.Errorf("proposal has expired: %w", domain.ErrExpired)
	}

	if input.Action == ActionReject {
		resolved, err := s.proposals.Resolve(ctx, proposal.ID, domain.ProposalStatusRejected, input.ResponseMessage)
		if err != nil {
			return nil, err
		}
		s.emit(ctx, kafka.EventProposalRejected, resolved, input.Actor.UserID, 0)
		return resolved, nil
	}

	// Accept: the pending->accepted write is the exactly-once gate; a
	// concurrent acceptance loses there with a Conflict before any booking
	// effect is applied.
	resolved, err := s.proposals.Resolve(ctx, proposal.ID, domain.ProposalStatusAccepted, input.ResponseMessage)
	if err != nil {
		return nil, err
	}

	updated, err := s.applyAccepted(ctx, resolved)
	if err != nil {
		return nil, err
	}

	var amount int64
	if updated != nil {
		amount = updated.CurrentAmountCents()
	}
	s.emit(ctx, kafka.EventProposalAccepted, resolved, input.Actor.UserID, amount)
	return resolved, nil
}

func (s *ProposalService) Cancel(ctx context.Context, proposalID uuid.UUID, actor domain.Participant) (*domain.Proposal, error) {
	proposal, err := s.proposals.GetByID(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	if proposal.ProposedBy != actor.UserID {
		return nil, fmt.Errorf("%w: only the creator can cancel a proposal", domain.ErrForbidden)
	}
	if proposal.Status != domain.ProposalStatusPending {
		return nil, fmt.Errorf("proposal is %s: %w", proposal.Status, domain.ErrConflict)
	}
	if proposal.Expired(time.Now()) {
		s.markExpired(ctx, proposal)
		return nil, fmt.Errorf("proposal has expired: %w", domain.ErrExpired)
	}

	resolved, err := s.proposals.Resolve(ctx, proposalID, domain.ProposalStatusCancelled, "")
	if err != nil {
		return nil, err
	}
	s.emit(ctx, kafka.EventProposalCancelled, resolved, actor.UserID, 0)
	return resolved, nil
}

func (s *ProposalService) Get(ctx context.Context, proposalID uuid.UUID, actor domain.Participant) (*domain.Proposal, error) {
	proposal, err := s.proposals.GetByID(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	if actor.Role != domain.RoleAdmin && proposal.ProposedBy != actor.UserID && proposal.ProposedTo != actor.UserID {
		return nil, fmt.Errorf("%w: you are not part of this proposal", domain.ErrForbidden)
	}
	proposal.Status = proposal.EffectiveStatus(time.Now())
	return proposal, nil
}

func (s *ProposalService) ListByBooking(ctx context.Context, bookingID uuid.UUID, actor domain.Participant) ([]domain.Proposal, error) {
	bk, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if actor.Role != domain.RoleAdmin && !bk.IsParty(actor.UserID) {
		return nil, fmt.Errorf("%w: you are not part of this booking", domain.ErrForbidden)
	}

	proposals, err := s.proposals.ListByBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	for i := range proposals {
		proposals[i].Status = proposals[i].EffectiveStatus(now)
	}
	return proposals, nil
}

func (s *ProposalService) ListForUser(ctx context.Context, actor domain.Participant, filter repository.ProposalFilter) ([]domain.Proposal, error) {
	proposals, err := s.proposals.ListByUser(ctx, actor.UserID, filter)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	for i := range proposals {
		proposals[i].Status = proposals[i].EffectiveStatus(now)
	}
	return proposals, nil
}

func (s *ProposalService) ExpirePending(ctx context.Context) ([]domain.Proposal, error) {
	expired, err := s.proposals.ExpirePendingBefore(ctx, time.Now())
	if err != nil {
		return nil, err
	}
	for i := range expired {
		s.emit(ctx, kafka.EventProposalExpired, &expired[i], uuid.Nil, 0)
	}
	return expired, nil
}

// applyAccepted applies the kind-specific payload to the booking. Price and
// complete acceptances also advance the booking to confirmed when that edge
// is reachable; schedule and requirements change descriptive fields only.
func (s *ProposalService) applyAccepted(ctx context.Context, proposal *domain.Proposal) (*domain.Booking, error) {
	update := &repository.BookingUpdate{}
	confirms := false

	if proposal.Changes.Price != nil {
		amount := proposal.Changes.Price.AmountCents
		update.NegotiatedAmountCents = &amount
		confirms = true
	}
	if proposal.Changes.Schedule != nil {
		date := proposal.Changes.Schedule.Date
		update.ScheduledDate = &date
		if proposal.Changes.Schedule.Time != "" {
			t := proposal.Changes.Schedule.Time
			update.ScheduledTime = &t
		}
	}
	if proposal.Changes.Requirements != nil {
		notes := proposal.Changes.Requirements.Requirements
		update.Notes = &notes
	}

	// Retry once on a concurrent transition: the proposal is already
	// accepted, so the payload must land on whatever status the booking is
	// in now, as long as the state machine still allows it.
	for attempt := 0; attempt < 2; attempt++ {
		bk, err := s.bookings.GetByID(ctx, proposal.BookingID)
		if err != nil {
			return nil, err
		}
		if bk.Status.Terminal() {
			return nil, fmt.Errorf("booking is %s: %w", bk.Status, domain.ErrConflict)
		}

		target := bk.Status
		if confirms && bk.Status.CanTransitionTo(domain.BookingStatusConfirmed) {
			target = domain.BookingStatusConfirmed
		}

		updated, err := s.bookings.UpdateStatus(ctx, proposal.BookingID, bk.Status, target, update)
		if err != nil {
			if errors.Is(err, domain.ErrConflict) && attempt == 0 {
				continue
			}
			return nil, err
		}
		if s.cache != nil {
			_ = s.cache.InvalidateBooking(ctx, updated.ID)
		}
		return updated, nil
	}
	return nil, fmt.Errorf("booking kept changing while applying proposal: %w", domain.ErrConflict)
}

func (s *ProposalService) advanceToNegotiating(ctx context.Context, bk *domain.Booking, actorID uuid.UUID) {
	_, err := s.bookings.UpdateStatus(ctx, bk.ID, domain.BookingStatusPending, domain.BookingStatusNegotiating, nil)
	if err != nil {
		// A concurrent proposal or offer already opened negotiation.
		if !errors.Is(err, domain.ErrConflict) {
			log.Printf("WARNING: failed to open negotiation on booking %s: %v", bk.ID, err)
		}
		return
	}
	if s.cache != nil {
		_ = s.cache.InvalidateBooking(ctx, bk.ID)
	}
	s.emitStatusChanged(ctx, bk.ID, domain.BookingStatusNegotiating, actorID)
}

func (s *ProposalService) markExpired(ctx context.Context, proposal *domain.Proposal) {
	resolved, err := s.proposals.Resolve(ctx, proposal.ID, domain.ProposalStatusExpired, "")
	if err != nil {
		// Already resolved elsewhere; lazy expiry lost a benign race.
		return
	}
	s.emit(ctx, kafka.EventProposalExpired, resolved, uuid.Nil, 0)
}

func (s *ProposalService) emit(ctx context.Context, eventType string, proposal *domain.Proposal, actorID uuid.UUID, amountCents int64) {
	if s.producer != nil && s.eventsTopic != "" {
		event := kafka.NegotiationEvent{
			Type:        eventType,
			BookingID:   proposal.BookingID.String(),
			ProposalID:  proposal.ID.String(),
			AmountCents: amountCents,
			OccurredAt:  time.Now(),
		}
		if actorID != uuid.Nil {
			event.ActorID = actorID.String()
		}
		if err := s.producer.Publish(ctx, s.eventsTopic, proposal.BookingID.String(), event); err != nil {
			log.Printf("WARNING: failed to publish %s for proposal %s: %v", eventType, proposal.ID, err)
		} else {
			metrics.DomainEventsPublished.WithLabelValues(eventType).Inc()
		}
	}

	if s.broadcaster == nil {
		return
	}
	room, err := s.rooms.GetRoomByBooking(ctx, proposal.BookingID)
	if err != nil {
		// No room yet means nobody is listening live.
		return
	}
	s.broadcaster.Publish(room.ID, realtime.Event{
		Type:      eventType,
		RoomID:    room.ID,
		UserID:    actorID,
		Payload:   proposal,
		Timestamp: time.Now(),
	})
}

func (s *ProposalService) emitStatusChanged(ctx context.Context, bookingID uuid.UUID, status domain.BookingStatus, actorID uuid.UUID) {
	if s.producer == nil || s.eventsTopic == "" {
		return
	}
	event := kafka.NegotiationEvent{
		Type:          kafka.EventBookingStatusChanged,
		BookingID:     bookingID.String(),
		ActorID:       actorID.String(),
		BookingStatus: string(status),
		OccurredAt:    time.Now(),
	}
	if err := s.producer.Publish(ctx, s.eventsTopic, bookingID.String(), event); err != nil {
		log.Printf("WARNING: failed to publish %s for booking %s: %v", event.Type, bookingID, err)
		return
	}
	metrics.DomainEventsPublished.WithLabelValues(event.Type).Inc()
}

var _ ProposalUseCase = (*ProposalService)(nil)
