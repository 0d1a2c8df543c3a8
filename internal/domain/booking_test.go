package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestBookingStatus_CanTransitionTo(t *testing.T) {
	cases := []struct {
		from    BookingStatus
		to      BookingStatus
		allowed bool
	}{
		{BookingStatusPending, BookingStatusNegotiating, true},
		{BookingStatusPending, BookingStatusConfirmed, true},
		{BookingStatusPending, BookingStatusCancelled, true},
		{BookingStatusPending, BookingStatusRejected, true},
		{BookingStatusPending, BookingStatusInProgress, false},
		{BookingStatusPending, BookingStatusCompleted, false},
		{BookingStatusNegotiating, BookingStatusConfirmed, true},
		{BookingStatusNegotiating, BookingStatusCancelled, true},
		{BookingStatusNegotiating, BookingStatusRejected, true},
		{BookingStatusNegotiating, BookingStatusPending, false},
		{BookingStatusConfirmed, BookingStatusInProgress, true},
		{BookingStatusConfirmed, BookingStatusCancelled, true},
		{BookingStatusConfirmed, BookingStatusRejected, false},
		{BookingStatusInProgress, BookingStatusCompleted, true},
		{BookingStatusInProgress, BookingStatusCancelled, true},
		{BookingStatusInProgress, BookingStatusConfirmed, false},
		{BookingStatusCompleted, BookingStatusCancelled, false},
		{BookingStatusCancelled, BookingStatusPending, false},
		{BookingStatusRejected, BookingStatusNegotiating, false},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.allowed, tc.from.CanTransitionTo(tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestBookingStatus_Terminal(t *testing.T) {
	assert.True(t, BookingStatusCompleted.Terminal())
	assert.True(t, BookingStatusCancelled.Terminal())
	assert.True(t, BookingStatusRejected.Terminal())

	assert.False(t, BookingStatusPending.Terminal())
	assert.False(t, BookingStatusNegotiating.Terminal())
	assert.False(t, BookingStatusConfirmed.Terminal())
	assert.False(t, BookingStatusInProgress.Terminal())
}

func TestBookingStatus_Valid(t *testing.T) {
	assert.True(t, BookingStatusPending.Valid())
	assert.False(t, BookingStatus("on_hold").Valid())
}

func TestBooking_CurrentAmountCents(t *testing.T) {
	b := Booking{OriginalAmountCents: 100000}
	assert.Equal(t, int64(100000), b.CurrentAmountCents())

	negotiated := int64(90000)
	b.NegotiatedAmountCents = &negotiated
	assert.Equal(t, int64(90000), b.CurrentAmountCents())
}

func TestBooking_Counterparty(t *testing.T) {
	consumer := uuid.New()
	provider := uuid.New()
	b := Booking{ConsumerID: consumer, ProviderID: provider}

	other, ok := b.Counterparty(consumer)
	assert.True(t, ok)
	assert.Equal(t, provider, other)

	other, ok = b.Counterparty(provider)
	assert.True(t, ok)
	assert.Equal(t, consumer, other)

	_, ok = b.Counterparty(uuid.New())
	assert.False(t, ok)
}
