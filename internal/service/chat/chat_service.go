package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/hardik18-hk19/urbi-fix-sub000/internal/domain"
	"github.com/hardik18-hk19/urbi-fix-sub000/internal/kafka"
	"github.com/hardik18-hk19/urbi-fix-sub000/internal/metrics"
	"github.com/hardik18-hk19/urbi-fix-sub000/internal/realtime"
	"github.com/hardik18-hk19/urbi-fix-sub000/internal/repository"
	"github.com/hardik18-hk19/urbi-fix-sub000/internal/service/booking"
	"github.com/hardik18-hk19/urbi-fix-sub000/internal/storage"
)

type ChatUseCase interface {
	// GetOrCreateRoom returns the booking's room, creating it on first
	// access by either party.
	GetOrCreateRoom(ctx context.Context, bookingID uuid.UUID, actor domain.Participant) (*domain.ChatRoom, error)
	ListRooms(ctx context.Context, actor domain.Participant) ([]domain.ChatRoom, error)
	// Room loads a room the actor may observe.
	Room(ctx context.Context, roomID uuid.UUID, actor domain.Participant) (*domain.ChatRoom, error)
	ListMessages(ctx context.Context, roomID uuid.UUID, actor domain.Participant, page, pageSize int) ([]domain.Message, error)
	SendText(ctx context.Context, input SendTextInput) (*domain.Message, error)
	SendPriceOffer(ctx context.Context, input SendPriceOfferInput) (*domain.Message, error)
	RespondToPriceOffer(ctx context.Context, input RespondToOfferInput) (*domain.Message, error)
	SendScheduleModification(ctx context.Context, input SendScheduleInput) (*domain.Message, error)
	SendAttachment(ctx context.Context, input SendAttachmentInput) (*domain.Message, error)
	// ExpirePriceOffers sweeps pending offers past their deadline.
	ExpirePriceOffers(ctx context.Context) ([]domain.Message, error)
}

type Broadcaster interface {
	Publish(roomID uuid.UUID, event realtime.Event)
}

// RoomCache memoizes the booking -> room mapping, which never changes once
// the room exists.
type RoomCache interface {
	GetRoomID(ctx context.Context, bookingID uuid.UUID) (uuid.UUID, error)
	SetRoomID(ctx context.Context, bookingID, roomID uuid.UUID) error
}

// ObjectStore persists uploaded attachments.
type ObjectStore interface {
	Save(filename string, size int64, r io.Reader) (*storage.StoredFile, error)
}

const (
	ActionAccept = "accept"
	ActionReject = "reject"
)

type SendTextInput struct {
	RoomID  uuid.UUID
	Actor   domain.Participant
	Text    string
	ReplyTo *uuid.UUID
}

type SendPriceOfferInput struct {
	RoomID      uuid.UUID
	Actor       domain.Participant
	AmountCents int64
	Description string
	// ValidUntil is the explicit offer deadline; it must be in the future.
	// When nil, ValidHours (or the configured default) determines it.
	ValidUntil *time.Time
	ValidHours int
}

type RespondToOfferInput struct {
	RoomID    uuid.UUID
	MessageID uuid.UUID
	Actor     domain.Participant
	Action    string
}

type SendScheduleInput struct {
	RoomID       uuid.UUID
	Actor        domain.Participant
	ProposedDate time.Time
	ProposedTime string
	Reason       string
}

type SendAttachmentInput struct {
	RoomID   uuid.UUID
	Actor    domain.Participant
	Filename string
	Size     int64
	File     io.Reader
}

type ChatService struct {
	rooms       repository.ChatRepository
	bookings    repository.BookingRepository
	cache       booking.Cache
	roomCache   RoomCache
	producer    booking.Producer
	broadcaster Broadcaster
	store       ObjectStore
	eventsTopic string
	offerTTL    time.Duration
}

func NewChatService(
	rooms repository.ChatRepository,
	bookings repository.BookingRepository,
	cache booking.Cache,
	roomCache RoomCache,
	producer booking.Producer,
	broadcaster Broadcaster,
	store ObjectStore,
	eventsTopic string,
	offerTTL time.Duration,
) *ChatService {
	if offerTTL <= 0 {
		offerTTL = 24 * time.Hour
	}
	return &ChatService{
		rooms:       rooms,
		bookings:    bookings,
		cache:       cache,
		roomCache:   roomCache,
		producer:    producer,
		broadcaster: broadcaster,
		store:       store,
		eventsTopic: eventsTopic,
		offerTTL:    offerTTL,
	}
}

func (s *ChatService) GetOrCreateRoom(ctx context.Context, bookingID uuid.UUID, actor domain.Participant) (*domain.ChatRoom, error) {
	// The room carries its own participant set, so a cache hit skips the
	// booking read entirely.
	if s.roomCache != nil {
		if roomID, err := s.roomCache.GetRoomID(ctx, bookingID); err == nil && roomID != uuid.Nil {
			room, err := s.rooms.GetRoomByID(ctx, roomID)
			if err == nil {
				if actor.Role != domain.RoleAdmin && !room.HasParticipant(actor.UserID) {
					return nil, fmt.Errorf("%w: you are not part of this booking", domain.ErrForbidden)
				}
				return room, nil
			}
		}
	}

	bk, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if actor.Role != domain.RoleAdmin && !bk.IsParty(actor.UserID) {
		return nil, fmt.Errorf("%w: you are not part of this booking", domain.ErrForbidden)
	}

	room, err := s.rooms.GetRoomByBooking(ctx, bookingID)
	if errors.Is(err, domain.ErrNotFound) {
		room, err = s.rooms.CreateRoom(ctx, &domain.ChatRoom{
			ID:         uuid.New(),
			BookingID:  bookingID,
			ConsumerID: bk.ConsumerID,
			ProviderID: bk.ProviderID,
		})
	}
	if err != nil {
		return nil, err
	}
	if s.roomCache != nil {
		_ = s.roomCache.SetRoomID(ctx, bookingID, room.ID)
	}
	return room, nil
}

func (s *ChatService) ListRooms(ctx context.Context, actor domain.Participant) ([]domain.ChatRoom, error) {
	return s.rooms.ListRoomsByParticipant(ctx, actor.UserID)
}

func (s *ChatService) Room(ctx context.Context, roomID uuid.UUID, actor domain.Participant) (*domain.ChatRoom, error) {
	return s.memberRoom(ctx, roomID, actor, true)
}

func (s *ChatService) ListMessages(ctx context.Context, roomID uuid.UUID, actor domain.Participant, page, pageSize int) ([]domain.Message, error) {
	if _, err := s.memberRoom(ctx, roomID, actor, true); err != nil {
		return nil, err
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 50
	}

	messages, err := s.rooms.ListMessages(ctx, roomID, page, pageSize)
	if err != nil {
		return nil, err
	}
	// Surface expiry lazily; the sweep worker persists it later.
	now := time.Now()
	for i := range messages {
		if offer := messages[i].Content.PriceOffer; offer != nil && offer.Expired(now) {
			offer.Status = domain.OfferStatusExpired
		}
	}
	return messages, nil
}

func (s *ChatService) SendText(ctx context.Context, input SendTextInput) (*domain.Message, error) {
	room, err := s.memberRoom(ctx, input.RoomID, input.Actor, false)
	if err != nil {
		return nil, err
	}
	if input.ReplyTo != nil {
		parent, err := s.rooms.GetMessage(ctx, *input.ReplyTo)
		if err != nil {
			return nil, err
		}
		if parent.RoomID != room.ID {
			return nil, fmt.Errorf("%w: reply target belongs to another room", domain.ErrValidation)
		}
	}

	message := &domain.Message{
		ID:       uuid.New(),
		RoomID:   room.ID,
		SenderID: input.Actor.UserID,
		Type:     domain.MessageTypeText,
		Content:  domain.MessageContent{Text: input.Text},
		ReplyTo:  input.ReplyTo,
	}
	if err := s.append(ctx, message); err != nil {
		return nil, err
	}
	s.broadcast(room.ID, realtime.EventNewMessage, input.Actor.UserID, message)
	return message, nil
}

func (s *ChatService) SendPriceOffer(ctx context.Context, input SendPriceOfferInput) (*domain.Message, error) {
	if input.AmountCents <= 0 {
		return nil, fmt.Errorf("%w: offer amount must be positive", domain.ErrValidation)
	}
	now := time.Now()
	validUntil := now.Add(s.offerTTL)
	switch {
	case input.ValidUntil != nil:
		if !input.ValidUntil.After(now) {
			return nil, fmt.Errorf("%w: valid_until must be in the future", domain.ErrValidation)
		}
		validUntil = *input.ValidUntil
	case input.ValidHours < 0:
		return nil, fmt.Errorf("%w: valid_hours cannot be negative", domain.ErrValidation)
	case input.ValidHours > 0:
		validUntil = now.Add(time.Duration(input.ValidHours) * time.Hour)
	}

	room, err := s.memberRoom(ctx, input.RoomID, input.Actor, false)
	if err != nil {
		return nil, err
	}

	message := &domain.Message{
		ID:       uuid.New(),
		RoomID:   room.ID,
		SenderID: input.Actor.UserID,
		Type:     domain.MessageTypePriceOffer,
		Content: domain.MessageContent{PriceOffer: &domain.PriceOffer{
			AmountCents: input.AmountCents,
			Description: input.Description,
			ValidUntil:  validUntil,
			Status:      domain.OfferStatusPending,
		}},
	}
	if err := s.append(ctx, message); err != nil {
		return nil, err
	}

	// A first offer opens the negotiation phase, same as a formal proposal.
	s.openNegotiation(ctx, room.BookingID, input.Actor.UserID)

	s.broadcast(room.ID, realtime.EventNewPriceOffer, input.Actor.UserID, message)
	return message, nil
}

func (s *ChatService) RespondToPriceOffer(ctx context.Context, input RespondToOfferInput) (*domain.Message, error) {
	if input.Action != ActionAccept && input.Action != ActionReject {
		return nil, fmt.Errorf("%w: action must be %q or %q", domain.ErrValidation, ActionAccept, ActionReject)
	}
	room, err := s.memberRoom(ctx, input.RoomID, input.Actor, false)
	if err != nil {
		return nil, err
	}

	message, err := s.rooms.GetMessage(ctx, input.MessageID)
	if err != nil {
		return nil, err
	}
	if message.RoomID != room.ID {
		return nil, fmt.Errorf("message %s: %w", input.MessageID, domain.ErrNotFound)
	}
	offer := message.Content.PriceOffer
	if message.Type != domain.MessageTypePriceOffer || offer == nil {
		return nil, fmt.Errorf("%w: message is not a price offer", domain.ErrValidation)
	}
	if message.SenderID == input.Actor.UserID {
		return nil, fmt.Errorf("%w: you cannot respond to your own offer", domain.ErrForbidden)
	}
	if offer.Status != domain.OfferStatusPending {
		return nil, fmt.Errorf("price offer is %s: %w", offer.Status, domain.ErrConflict)
	}
	if offer.Expired(time.Now()) {
		s.markOfferExpired(ctx, room, message)
		return nil, fmt.Errorf("price offer has expired: %w", domain.ErrExpired)
	}

	if input.Action == ActionReject {
		resolved, err := s.rooms.ResolvePriceOffer(ctx, message.ID, domain.OfferStatusRejected)
		if err != nil {
			return nil, err
		}
		s.emitOffer(ctx, kafka.EventPriceOfferRejected, room, resolved, input.Actor.UserID)
		s.broadcast(room.ID, realtime.EventPriceOfferResponse, input.Actor.UserID, resolved)
		s.appendSystemReply(ctx, room, input.Actor.UserID, resolved.ID, "Price offer rejected")
		return resolved, nil
	}

	// Accept: the pending->accepted write is the exactly-once gate.
	resolved, err := s.rooms.ResolvePriceOffer(ctx, message.ID, domain.OfferStatusAccepted)
	if err != nil {
		return nil, err
	}
	if err := s.applyAcceptedOffer(ctx, room.BookingID, resolved.Content.PriceOffer.AmountCents); err != nil {
		return nil, err
	}

	s.emitOffer(ctx, kafka.EventPriceOfferAccepted, room, resolved, input.Actor.UserID)
	s.broadcast(room.ID, realtime.EventPriceOfferResponse, input.Actor.UserID, resolved)
	s.appendSystemReply(ctx, room, input.Actor.UserID, resolved.ID, "Price offer accepted")
	return resolved, nil
}

func (s *ChatService) SendScheduleModification(ctx context.Context, input SendScheduleInput) (*domain.Message, error) {
	room, err := s.memberRoom(ctx, input.RoomID, input.Actor, false)
	if err != nil {
		return nil, err
	}

	message := &domain.Message{
		ID:       uuid.New(),
		RoomID:   room.ID,
		SenderID: input.Actor.UserID,
		Type:     domain.MessageTypeScheduleModification,
		Content: domain.MessageContent{ScheduleModification: &domain.ScheduleModification{
			ProposedDate: input.ProposedDate,
			ProposedTime: input.ProposedTime,
			Reason:       input.Reason,
		}},
	}
	if err := s.append(ctx, message); err != nil {
		return nil, err
	}
	s.broadcast(room.ID, realtime.EventNewMessage, input.Actor.UserID, message)
	return message, nil
}

func (s *ChatService) SendAttachment(ctx context.Context, input SendAttachmentInput) (*domain.Message, error) {
	room, err := s.memberRoom(ctx, input.RoomID, input.Actor, false)
	if err != nil {
		return nil, err
	}
	if s.store == nil {
		return nil, fmt.Errorf("%w: attachments are not enabled", domain.ErrValidation)
	}

	stored, err := s.store.Save(input.Filename, input.Size, input.File)
	if err != nil {
		return nil, err
	}

	message := &domain.Message{
		ID:       uuid.New(),
		RoomID:   room.ID,
		SenderID: input.Actor.UserID,
		Type:     stored.Kind,
		Content: domain.MessageContent{Attachment: &domain.Attachment{
			Kind:      stored.Kind,
			URL:       stored.URL,
			Filename:  stored.Filename,
			SizeBytes: stored.SizeBytes,
		}},
	}
	if err := s.append(ctx, message); err != nil {
		return nil, err
	}
	s.broadcast(room.ID, realtime.EventNewMessage, input.Actor.UserID, message)
	return message, nil
}

func (s *ChatService) ExpirePriceOffers(ctx context.Context) ([]domain.Message, error) {
	expired, err := s.rooms.ExpirePriceOffersBefore(ctx, time.Now())
	if err != nil {
		return nil, err
	}
	for i := range expired {
		m := &expired[i]
		room, err := s.rooms.GetRoomByID(ctx, m.RoomID)
		if err != nil {
			continue
		}
		s.emitOffer(ctx, kafka.EventPriceOfferExpired, room, m, uuid.Nil)
		s.broadcast(room.ID, realtime.EventPriceOfferResponse, uuid.Nil, m)
	}
	return expired, nil
}

// memberRoom loads the room and checks the actor belongs to it. Admins may
// read but never write into someone else's negotiation.
func (s *ChatService) memberRoom(ctx context.Context, roomID uuid.UUID, actor domain.Participant, readOnly bool) (*domain.ChatRoom, error) {
	room, err := s.rooms.GetRoomByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if room.HasParticipant(actor.UserID) {
		return room, nil
	}
	if readOnly && actor.Role == domain.RoleAdmin {
		return room, nil
	}
	return nil, fmt.Errorf("%w: you are not a participant of this chat", domain.ErrForbidden)
}

func (s *ChatService) append(ctx context.Context, message *domain.Message) error {
	if err := message.ValidateContent(); err != nil {
		return err
	}
	return s.rooms.AppendMessage(ctx, message)
}

// applyAcceptedOffer sets the negotiated amount and confirms the booking when
// that edge is reachable. Retries once on a concurrent transition.
func (s *ChatService) applyAcceptedOffer(ctx context.Context, bookingID uuid.UUID, amountCents int64) error {
	update := &repository.BookingUpdate{NegotiatedAmountCents: &amountCents}
	for attempt := 0; attempt < 2; attempt++ {
		bk, err := s.bookings.GetByID(ctx, bookingID)
		if err != nil {
			return err
		}
		if bk.Status.Terminal() {
			return fmt.Errorf("booking is %s: %w", bk.Status, domain.ErrConflict)
		}
		target := bk.Status
		if bk.Status.CanTransitionTo(domain.BookingStatusConfirmed) {
			target = domain.BookingStatusConfirmed
		}
		if _, err := s.bookings.UpdateStatus(ctx, bookingID, bk.Status, target, update); err != nil {
			if errors.Is(err, domain.ErrConflict) && attempt == 0 {
				continue
			}
			return err
		}
		if s.cache != nil {
			_ = s.cache.InvalidateBooking(ctx, bookingID)
		}
		return nil
	}
	return fmt.Errorf("booking kept changing while applying offer: %w", domain.ErrConflict)
}

func (s *ChatService) openNegotiation(ctx context.Context, bookingID uuid.UUID, actorID uuid.UUID) {
	bk, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil || bk.Status != domain.BookingStatusPending {
		return
	}
	if _, err := s.bookings.UpdateStatus(ctx, bookingID, domain.BookingStatusPending, domain.BookingStatusNegotiating, nil); err != nil {
		if !errors.Is(err, domain.ErrConflict) {
			log.Printf("WARNING: failed to open negotiation on booking %s: %v", bookingID, err)
		}
		return
	}
	if s.cache != nil {
		_ = s.cache.InvalidateBooking(ctx, bookingID)
	}
	if s.producer == nil || s.eventsTopic == "" {
		return
	}
	event := kafka.NegotiationEvent{
		Type:          kafka.EventBookingStatusChanged,
		BookingID:     bookingID.String(),
		ActorID:       actorID.String(),
		BookingStatus: string(domain.BookingStatusNegotiating),
		OccurredAt:    time.Now(),
	}
	if err := s.producer.Publish(ctx, s.eventsTopic, bookingID.String(), event); err != nil {
		log.Printf("WARNING: failed to publish %s for booking %s: %v", event.Type, bookingID, err)
		return
	}
	metrics.DomainEventsPublished.WithLabelValues(event.Type).Inc()
}

func (s *ChatService) markOfferExpired(ctx context.Context, room *domain.ChatRoom, message *domain.Message) {
	resolved, err := s.rooms.ResolvePriceOffer(ctx, message.ID, domain.OfferStatusExpired)
	if err != nil {
		return
	}
	s.emitOffer(ctx, kafka.EventPriceOfferExpired, room, resolved, uuid.Nil)
	s.broadcast(room.ID, realtime.EventPriceOfferResponse, uuid.Nil, resolved)
}

func (s *ChatService) appendSystemReply(ctx context.Context, room *domain.ChatRoom, actorID uuid.UUID, replyTo uuid.UUID, text string) {
	reply := &domain.Message{
		ID:       uuid.New(),
		RoomID:   room.ID,
		SenderID: actorID,
		Type:     domain.MessageTypeSystem,
		Content:  domain.MessageContent{Text: text},
		ReplyTo:  &replyTo,
	}
	if err := s.append(ctx, reply); err != nil {
		log.Printf("WARNING: failed to append system reply in room %s: %v", room.ID, err)
		return
	}
	s.broadcast(room.ID, realtime.EventNewMessage, actorID, reply)
}

func (s *ChatService) emitOffer(ctx context.Context, eventType string, room *domain.ChatRoom, message *domain.Message, actorID uuid.UUID) {
	if s.producer == nil || s.eventsTopic == "" {
		return
	}
	event := kafka.NegotiationEvent{
		Type:       eventType,
		BookingID:  room.BookingID.String(),
		MessageID:  message.ID.String(),
		OccurredAt: time.Now(),
	}
	if actorID != uuid.Nil {
		event.ActorID = actorID.String()
	}
	if offer := message.Content.PriceOffer; offer != nil {
		event.AmountCents = offer.AmountCents
	}
	if err := s.producer.Publish(ctx, s.eventsTopic, room.BookingID.String(), event); err != nil {
		log.Printf("WARNING: failed to publish %s for message %s: %v", eventType, message.ID, err)
		return
	}
	metrics.DomainEventsPublished.WithLabelValues(eventType).Inc()
}

func (s *ChatService) broadcast(roomID uuid.UUID, eventType string, userID uuid.UUID, payload interface{}) {
	if s.broadcaster == nil {
		return
	}
	s.broadcaster.Publish(roomID, realtime.Event{
		Type:      eventType,
		RoomID:    roomID,
		UserID:    userID,
		Payload:   payload,
		Timestamp: time.Now(),
	})
}

var _ ChatUseCase = (*ChatService)(nil)
