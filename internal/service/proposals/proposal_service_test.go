package proposals

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/hardik18-hk19/urbi-fix-sub000/internal/domain"
	"github.com/hardik18-hk19/urbi-fix-sub000/internal/realtime"
	"github.com/hardik18-hk19/urbi-fix-sub000/internal/repository"
)

type MockProposalRepository struct {
	mock.Mock
}

func (m *MockProposalRepository) Create(ctx context.Context, proposal *domain.Proposal) error {
	args := m.Called(ctx, proposal)
	return args.Error(0)
}

func (m *MockProposalRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Proposal, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Proposal), args.Error(1)
}

func (m *MockProposalRepository) ListByBooking(ctx context.Context, bookingID uuid.UUID) ([]domain.Proposal, error) {
	args := m.Called(ctx, bookingID)
	return args.Get(0).([]domain.Proposal), args.Error(1)
}

func (m *MockProposalRepository) ListByUser(ctx context.Context, userID uuid.UUID, filter repository.ProposalFilter) ([]domain.Proposal, error) {
	args := m.Called(ctx, userID, filter)
	return args.Get(0).([]domain.Proposal), args.Error(1)
}

func (m *MockProposalRepository) Resolve(ctx context.Context, id uuid.UUID, status domain.ProposalStatus, responseMessage string) (*domain.Proposal, error) {
	args := m.Called(ctx, id, status, responseMessage)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Proposal), args.Error(1)
}

func (m *MockProposalRepository) ExpirePendingBefore(ctx context.Context, deadline time.Time) ([]domain.Proposal, error) {
	args := m.Called(ctx, deadline)
	return args.Get(0).([]domain.Proposal), args.Error(1)
}

type MockBookingRepository struct {
	mock.Mock
}

func (m *MockBookingRepository) Create(ctx context.Context, booking *domain.Booking) error {
	args := m.Called(ctx, booking)
	return args.Error(0)
}

func (m *MockBookingRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *MockBookingRepository) UpdateStatus(ctx context.Context, id uuid.UUID, expected, target domain.BookingStatus, update *repository.BookingUpdate) (*domain.Booking, error) {
	args := m.Called(ctx, id, expected, target, update)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *MockBookingRepository) ListByParticipant(ctx context.Context, userID uuid.UUID) ([]domain.Booking, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]domain.Booking), args.Error(1)
}

type MockBroadcaster struct {
	mock.Mock
}

func (m *MockBroadcaster) Publish(roomID uuid.UUID, event realtime.Event) {
	m.Called(roomID, event)
}

type MockProducer struct {
	mock.Mock
}

func (m *MockProducer) Publish(ctx context.Context, topic, key string, value interface{}) error {
	args := m.Called(ctx, topic, key, value)
	return args.Error(0)
}

func newService(proposalRepo *MockProposalRepository, bookingRepo *MockBookingRepository) *ProposalService {
	return NewProposalService(proposalRepo, bookingRepo, nil, nil, nil, nil, "", 24*time.Hour, 168*time.Hour)
}

func newBooking(status domain.BookingStatus) (*domain.Booking, domain.Participant, domain.Participant) {
	consumer := domain.Participant{UserID: uuid.New(), Role: domain.RoleConsumer}
	provider := domain.Participant{UserID: uuid.New(), Role: domain.RoleProvider}
	return &domain.Booking{
		ID:                  uuid.New(),
		ConsumerID:          consumer.UserID,
		ProviderID:          provider.UserID,
		Status:              status,
		OriginalAmountCents: 100000,
		ScheduledDate:       time.Now().Add(72 * time.Hour),
	}, consumer, provider
}

func pendingProposal(bk *domain.Booking, by, to uuid.UUID) *domain.Proposal {
	return &domain.Proposal{
		ID:            uuid.New(),
		BookingID:     bk.ID,
		ProposedBy:    by,
		ProposedTo:    to,
		Kind:          domain.ProposalKindPrice,
		Changes:       domain.ProposedChanges{Price: &domain.PriceChange{AmountCents: 90000}},
		Justification: "materials cost less than quoted",
		Status:        domain.ProposalStatusPending,
		ExpiresAt:     time.Now().Add(24 * time.Hour),
	}
}

func TestProposalService_Create_OpensNegotiation(t *testing.T) {
	proposalRepo := &MockProposalRepository{}
	bookingRepo := &MockBookingRepository{}
	svc := newService(proposalRepo, bookingRepo)

	bk, _, provider := newBooking(domain.BookingStatusPending)
	negotiating := *bk
	negotiating.Status = domain.BookingStatusNegotiating

	bookingRepo.On("GetByID", mock.Anything, bk.ID).Return(bk, nil)
	proposalRepo.On("Create", mock.Anything, mock.Anything).Return(nil)
	bookingRepo.On("UpdateStatus", mock.Anything, bk.ID, domain.BookingStatusPending, domain.BookingStatusNegotiating, (*repository.BookingUpdate)(nil)).Return(&negotiating, nil)

	proposal, err := svc.Create(context.Background(), CreateProposalInput{
		BookingID:     bk.ID,
		Actor:         provider,
		Kind:          domain.ProposalKindPrice,
		Changes:       domain.ProposedChanges{Price: &domain.PriceChange{AmountCents: 90000}},
		Justification: "travel costs are lower than estimated",
	})

	assert.NoError(t, err)
	assert.Equal(t, bk.ConsumerID, proposal.ProposedTo)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), proposal.ExpiresAt, time.Minute)
	bookingRepo.AssertExpectations(t)
}

func TestProposalService_Create_RequiresJustification(t *testing.T) {
	svc := newService(&MockProposalRepository{}, &MockBookingRepository{})

	_, err := svc.Create(context.Background(), CreateProposalInput{
		BookingID: uuid.New(),
		Kind:      domain.ProposalKindPrice,
		Changes:   domain.ProposedChanges{Price: &domain.PriceChange{AmountCents: 90000}},
	})

	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestProposalService_Create_ExpirationBounds(t *testing.T) {
	proposalRepo := &MockProposalRepository{}
	bookingRepo := &MockBookingRepository{}
	svc := newService(proposalRepo, bookingRepo)

	input := CreateProposalInput{
		BookingID:       uuid.New(),
		Kind:            domain.ProposalKindPrice,
		Changes:         domain.ProposedChanges{Price: &domain.PriceChange{AmountCents: 90000}},
		Justification:   "off-season discount",
		ExpirationHours: 200,
	}
	_, err := svc.Create(context.Background(), input)
	assert.ErrorIs(t, err, domain.ErrValidation)

	input.ExpirationHours = -1
	_, err = svc.Create(context.Background(), input)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestProposalService_Create_TerminalBooking(t *testing.T) {
	proposalRepo := &MockProposalRepository{}
	bookingRepo := &MockBookingRepository{}
	svc := newService(proposalRepo, bookingRepo)

	bk, consumer, _ := newBooking(domain.BookingStatusCancelled)
	bookingRepo.On("GetByID", mock.Anything, bk.ID).Return(bk, nil)

	_, err := svc.Create(context.Background(), CreateProposalInput{
		BookingID:     bk.ID,
		Actor:         consumer,
		Kind:          domain.ProposalKindPrice,
		Changes:       domain.ProposedChanges{Price: &domain.PriceChange{AmountCents: 90000}},
		Justification: "late adjustment",
	})

	assert.ErrorIs(t, err, domain.ErrConflict)
	proposalRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestProposalService_Create_StrangerForbidden(t *testing.T) {
	proposalRepo := &MockProposalRepository{}
	bookingRepo := &MockBookingRepository{}
	svc := newService(proposalRepo, bookingRepo)

	bk, _, _ := newBooking(domain.BookingStatusPending)
	bookingRepo.On("GetByID", mock.Anything, bk.ID).Return(bk, nil)

	_, err := svc.Create(context.Background(), CreateProposalInput{
		BookingID:     bk.ID,
		Actor:         domain.Participant{UserID: uuid.New(), Role: domain.RoleProvider},
		Kind:          domain.ProposalKindPrice,
		Changes:       domain.ProposedChanges{Price: &domain.PriceChange{AmountCents: 90000}},
		Justification: "unrelated party",
	})

	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestProposalService_Respond_AcceptPriceConfirmsBooking(t *testing.T) {
	proposalRepo := &MockProposalRepository{}
	bookingRepo := &MockBookingRepository{}
	svc := newService(proposalRepo, bookingRepo)

	bk, consumer, provider := newBooking(domain.BookingStatusNegotiating)
	proposal := pendingProposal(bk, provider.UserID, consumer.UserID)

	accepted := *proposal
	accepted.Status = domain.ProposalStatusAccepted

	amount := int64(90000)
	confirmed := *bk
	confirmed.Status = domain.BookingStatusConfirmed
	confirmed.NegotiatedAmountCents = &amount

	proposalRepo.On("GetByID", mock.Anything, proposal.ID).Return(proposal, nil)
	proposalRepo.On("Resolve", mock.Anything, proposal.ID, domain.ProposalStatusAccepted, "works for me").Return(&accepted, nil)
	bookingRepo.On("GetByID", mock.Anything, bk.ID).Return(bk, nil)
	bookingRepo.On("UpdateStatus", mock.Anything, bk.ID, domain.BookingStatusNegotiating, domain.BookingStatusConfirmed,
		mock.MatchedBy(func(u *repository.BookingUpdate) bool {
			return u != nil && u.NegotiatedAmountCents != nil && *u.NegotiatedAmountCents == 90000
		})).Return(&confirmed, nil)

	resolved, err := svc.Respond(context.Background(), RespondInput{
		ProposalID:      proposal.ID,
		Actor:           consumer,
		Action:          ActionAccept,
		ResponseMessage: "works for me",
	})

	assert.NoError(t, err)
	assert.Equal(t, domain.ProposalStatusAccepted, resolved.Status)
	bookingRepo.AssertExpectations(t)
}

func TestProposalService_Respond_AcceptScheduleKeepsStatus(t *testing.T) {
	proposalRepo := &MockProposalRepository{}
	bookingRepo := &MockBookingRepository{}
	svc := newService(proposalRepo, bookingRepo)

	bk, consumer, provider := newBooking(domain.BookingStatusNegotiating)
	newDate := time.Now().Add(96 * time.Hour)
	proposal := pendingProposal(bk, provider.UserID, consumer.UserID)
	proposal.Kind = domain.ProposalKindSchedule
	proposal.Changes = domain.ProposedChanges{Schedule: &domain.ScheduleChange{Date: newDate, Time: "14:00"}}

	accepted := *proposal
	accepted.Status = domain.ProposalStatusAccepted

	moved := *bk
	moved.ScheduledDate = newDate

	proposalRepo.On("GetByID", mock.Anything, proposal.ID).Return(proposal, nil)
	proposalRepo.On("Resolve", mock.Anything, proposal.ID, domain.ProposalStatusAccepted, "").Return(&accepted, nil)
	bookingRepo.On("GetByID", mock.Anything, bk.ID).Return(bk, nil)
	bookingRepo.On("UpdateStatus", mock.Anything, bk.ID, domain.BookingStatusNegotiating, domain.BookingStatusNegotiating,
		mock.MatchedBy(func(u *repository.BookingUpdate) bool {
			return u != nil && u.NegotiatedAmountCents == nil && u.ScheduledDate != nil && u.ScheduledDate.Equal(newDate)
		})).Return(&moved, nil)

	_, err := svc.Respond(context.Background(), RespondInput{
		ProposalID: proposal.ID,
		Actor:      consumer,
		Action:     ActionAccept,
	})

	assert.NoError(t, err)
	bookingRepo.AssertExpectations(t)
}

func TestProposalService_Respond_OwnProposalForbidden(t *testing.T) {
	proposalRepo := &MockProposalRepository{}
	svc := newService(proposalRepo, &MockBookingRepository{})

	bk, consumer, provider := newBooking(domain.BookingStatusNegotiating)
	proposal := pendingProposal(bk, provider.UserID, consumer.UserID)
	proposalRepo.On("GetByID", mock.Anything, proposal.ID).Return(proposal, nil)

	_, err := svc.Respond(context.Background(), RespondInput{
		ProposalID: proposal.ID,
		Actor:      provider,
		Action:     ActionAccept,
	})

	assert.ErrorIs(t, err, domain.ErrForbidden)
	proposalRepo.AssertNotCalled(t, "Resolve", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestProposalService_Respond_StrangerForbidden(t *testing.T) {
	proposalRepo := &MockProposalRepository{}
	svc := newService(proposalRepo, &MockBookingRepository{})

	bk, consumer, provider := newBooking(domain.BookingStatusNegotiating)
	proposal := pendingProposal(bk, provider.UserID, consumer.UserID)
	proposalRepo.On("GetByID", mock.Anything, proposal.ID).Return(proposal, nil)

	_, err := svc.Respond(context.Background(), RespondInput{
		ProposalID: proposal.ID,
		Actor:      domain.Participant{UserID: uuid.New()},
		Action:     ActionReject,
	})

	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestProposalService_Respond_ExpiredNeverSucceeds(t *testing.T) {
	proposalRepo := &MockProposalRepository{}
	bookingRepo := &MockBookingRepository{}
	svc := newService(proposalRepo, bookingRepo)

	bk, consumer, provider := newBooking(domain.BookingStatusNegotiating)
	proposal := pendingProposal(bk, provider.UserID, consumer.UserID)
	proposal.ExpiresAt = time.Now().Add(-time.Hour)

	expired := *proposal
	expired.Status = domain.ProposalStatusExpired

	proposalRepo.On("GetByID", mock.Anything, proposal.ID).Return(proposal, nil)
	proposalRepo.On("Resolve", mock.Anything, proposal.ID, domain.ProposalStatusExpired, "").Return(&expired, nil)

	_, err := svc.Respond(context.Background(), RespondInput{
		ProposalID: proposal.ID,
		Actor:      consumer,
		Action:     ActionAccept,
	})

	assert.ErrorIs(t, err, domain.ErrExpired)
	assert.ErrorIs(t, err, domain.ErrConflict)
	bookingRepo.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestProposalService_Respond_SecondAcceptLoses(t *testing.T) {
	proposalRepo := &MockProposalRepository{}
	bookingRepo := &MockBookingRepository{}
	svc := newService(proposalRepo, bookingRepo)

	bk, consumer, provider := newBooking(domain.BookingStatusNegotiating)
	proposal := pendingProposal(bk, provider.UserID, consumer.UserID)

	proposalRepo.On("GetByID", mock.Anything, proposal.ID).Return(proposal, nil)
	proposalRepo.On("Resolve", mock.Anything, proposal.ID, domain.ProposalStatusAccepted, "").
		Return(nil, domain.ErrConflict)

	_, err := svc.Respond(context.Background(), RespondInput{
		ProposalID: proposal.ID,
		Actor:      consumer,
		Action:     ActionAccept,
	})

	assert.ErrorIs(t, err, domain.ErrConflict)
	bookingRepo.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestProposalService_Respond_AcceptAfterBookingTerminal(t *testing.T) {
	proposalRepo := &MockProposalRepository{}
	bookingRepo := &MockBookingRepository{}
	svc := newService(proposalRepo, bookingRepo)

	bk, consumer, provider := newBooking(domain.BookingStatusCancelled)
	proposal := pendingProposal(bk, provider.UserID, consumer.UserID)

	accepted := *proposal
	accepted.Status = domain.ProposalStatusAccepted

	proposalRepo.On("GetByID", mock.Anything, proposal.ID).Return(proposal, nil)
	proposalRepo.On("Resolve", mock.Anything, proposal.ID, domain.ProposalStatusAccepted, "").Return(&accepted, nil)
	bookingRepo.On("GetByID", mock.Anything, bk.ID).Return(bk, nil)

	_, err := svc.Respond(context.Background(), RespondInput{
		ProposalID: proposal.ID,
		Actor:      consumer,
		Action:     ActionAccept,
	})

	assert.ErrorIs(t, err, domain.ErrConflict)
	bookingRepo.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestProposalService_Respond_AlreadyResolved(t *testing.T) {
	proposalRepo := &MockProposalRepository{}
	svc := newService(proposalRepo, &MockBookingRepository{})

	bk, consumer, provider := newBooking(domain.BookingStatusConfirmed)
	proposal := pendingProposal(bk, provider.UserID, consumer.UserID)
	proposal.Status = domain.ProposalStatusRejected
	proposalRepo.On("GetByID", mock.Anything, proposal.ID).Return(proposal, nil)

	_, err := svc.Respond(context.Background(), RespondInput{
		ProposalID: proposal.ID,
		Actor:      consumer,
		Action:     ActionAccept,
	})

	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestProposalService_Cancel_ProposerOnly(t *testing.T) {
	proposalRepo := &MockProposalRepository{}
	svc := newService(proposalRepo, &MockBookingRepository{})

	bk, consumer, provider := newBooking(domain.BookingStatusNegotiating)
	proposal := pendingProposal(bk, provider.UserID, consumer.UserID)

	cancelled := *proposal
	cancelled.Status = domain.ProposalStatusCancelled

	proposalRepo.On("GetByID", mock.Anything, proposal.ID).Return(proposal, nil)
	proposalRepo.On("Resolve", mock.Anything, proposal.ID, domain.ProposalStatusCancelled, "").Return(&cancelled, nil)

	_, err := svc.Cancel(context.Background(), proposal.ID, consumer)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	resolved, err := svc.Cancel(context.Background(), proposal.ID, provider)
	assert.NoError(t, err)
	assert.Equal(t, domain.ProposalStatusCancelled, resolved.Status)
}

func TestProposalService_Get_SurfacesLazyExpiry(t *testing.T) {
	proposalRepo := &MockProposalRepository{}
	svc := newService(proposalRepo, &MockBookingRepository{})

	bk, consumer, provider := newBooking(domain.BookingStatusNegotiating)
	proposal := pendingProposal(bk, provider.UserID, consumer.UserID)
	proposal.ExpiresAt = time.Now().Add(-time.Minute)
	proposalRepo.On("GetByID", mock.Anything, proposal.ID).Return(proposal, nil)

	got, err := svc.Get(context.Background(), proposal.ID, consumer)

	assert.NoError(t, err)
	assert.Equal(t, domain.ProposalStatusExpired, got.Status)
}

func TestProposalService_ExpirePending_EmitsEvents(t *testing.T) {
	proposalRepo := &MockProposalRepository{}
	producer := &MockProducer{}
	svc := NewProposalService(proposalRepo, &MockBookingRepository{}, nil, nil, producer, nil, "negotiation-events", 24*time.Hour, 168*time.Hour)

	expired := []domain.Proposal{
		{ID: uuid.New(), BookingID: uuid.New(), Status: domain.ProposalStatusExpired},
		{ID: uuid.New(), BookingID: uuid.New(), Status: domain.ProposalStatusExpired},
	}
	proposalRepo.On("ExpirePendingBefore", mock.Anything, mock.Anything).Return(expired, nil)
	producer.On("Publish", mock.Anything, "negotiation-events", mock.Anything, mock.Anything).Return(nil).Twice()

	got, err := svc.ExpirePending(context.Background())

	assert.NoError(t, err)
	assert.Len(t, got, 2)
	producer.AssertExpectations(t)
}
