package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestProposedChanges_ValidateFor(t *testing.T) {
	price := &PriceChange{AmountCents: 90000}
	schedule := &ScheduleChange{Date: time.Now().Add(48 * time.Hour)}
	reqs := &RequirementsChange{Requirements: "two cleaners instead of one"}

	assert.NoError(t, ProposedChanges{Price: price}.ValidateFor(ProposalKindPrice))
	assert.NoError(t, ProposedChanges{Schedule: schedule}.ValidateFor(ProposalKindSchedule))
	assert.NoError(t, ProposedChanges{Requirements: reqs}.ValidateFor(ProposalKindRequirements))
	assert.NoError(t, ProposedChanges{Price: price, Schedule: schedule, Requirements: reqs}.ValidateFor(ProposalKindComplete))

	assert.ErrorIs(t, ProposedChanges{}.ValidateFor(ProposalKindPrice), ErrValidation)
	assert.ErrorIs(t, ProposedChanges{Price: &PriceChange{AmountCents: 0}}.ValidateFor(ProposalKindPrice), ErrValidation)
	assert.ErrorIs(t, ProposedChanges{Price: &PriceChange{AmountCents: -5}}.ValidateFor(ProposalKindPrice), ErrValidation)
	assert.ErrorIs(t, ProposedChanges{Schedule: &ScheduleChange{}}.ValidateFor(ProposalKindSchedule), ErrValidation)
	assert.ErrorIs(t, ProposedChanges{Requirements: &RequirementsChange{}}.ValidateFor(ProposalKindRequirements), ErrValidation)
	assert.ErrorIs(t, ProposedChanges{Price: price, Schedule: schedule}.ValidateFor(ProposalKindComplete), ErrValidation)
}

func TestProposal_EffectiveStatus(t *testing.T) {
	now := time.Now()
	p := Proposal{Status: ProposalStatusPending, ExpiresAt: now.Add(time.Hour)}

	assert.Equal(t, ProposalStatusPending, p.EffectiveStatus(now))
	assert.Equal(t, ProposalStatusExpired, p.EffectiveStatus(now.Add(2*time.Hour)))

	// Resolved proposals never flip to expired, whatever the clock says.
	p.Status = ProposalStatusAccepted
	assert.Equal(t, ProposalStatusAccepted, p.EffectiveStatus(now.Add(48*time.Hour)))
}

func TestMessage_ValidateContent(t *testing.T) {
	text := Message{Type: MessageTypeText, Content: MessageContent{Text: "hello"}}
	assert.NoError(t, text.ValidateContent())

	empty := Message{Type: MessageTypeText}
	assert.ErrorIs(t, empty.ValidateContent(), ErrValidation)

	offer := Message{Type: MessageTypePriceOffer, Content: MessageContent{PriceOffer: &PriceOffer{AmountCents: 5000}}}
	assert.NoError(t, offer.ValidateContent())

	noOffer := Message{Type: MessageTypePriceOffer}
	assert.ErrorIs(t, noOffer.ValidateContent(), ErrValidation)

	attachment := Message{Type: MessageTypeImage, Content: MessageContent{Attachment: &Attachment{URL: "/uploads/a.png"}}}
	assert.NoError(t, attachment.ValidateContent())

	unknown := Message{Type: MessageType("sticker")}
	assert.ErrorIs(t, unknown.ValidateContent(), ErrValidation)
}
