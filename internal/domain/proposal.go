package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type ProposalKind string

const (
	ProposalKindPrice        ProposalKind = "price"
	ProposalKindSchedule     ProposalKind = "schedule"
	ProposalKindRequirements ProposalKind = "requirements"
	ProposalKindComplete     ProposalKind = "complete"
)

func (k ProposalKind) Valid() bool {
	switch k {
	case ProposalKindPrice, ProposalKindSchedule, ProposalKindRequirements, ProposalKindComplete:
		return true
	}
	return false
}

type ProposalStatus string

const (
	ProposalStatusPending   ProposalStatus = "pending"
	ProposalStatusAccepted  ProposalStatus = "accepted"
	ProposalStatusRejected  ProposalStatus = "rejected"
	ProposalStatusExpired   ProposalStatus = "expired"
	ProposalStatusCancelled ProposalStatus = "cancelled"
)

type PriceChange struct {
	AmountCents int64 `json:"amount_cents"`
}

type ScheduleChange struct {
	Date time.Time `json:"date"`
	Time string    `json:"time,omitempty"`
}

type RequirementsChange struct {
	Requirements        string   `json:"requirements"`
	AdditionalServices  []string `json:"additional_services,omitempty"`
	EstimatedDuration   string   `json:"estimated_duration,omitempty"`
	SpecialInstructions string   `json:"special_instructions,omitempty"`
}

// ProposedChanges carries the kind-specific payload. Exactly the cases the
// kind requires are set: price and schedule carry one case, requirements one,
// complete carries all three.
type ProposedChanges struct {
	Price        *PriceChange        `json:"price,omitempty"`
	Schedule     *ScheduleChange     `json:"schedule,omitempty"`
	Requirements *RequirementsChange `json:"requirements,omitempty"`
}

// ValidateFor checks that the payload matches the proposal kind.
func (c ProposedChanges) ValidateFor(kind ProposalKind) error {
	requirePrice := kind == ProposalKindPrice || kind == ProposalKindComplete
	requireSchedule := kind == ProposalKindSchedule || kind == ProposalKindComplete
	requireReqs := kind == ProposalKindRequirements || kind == ProposalKindComplete

	if requirePrice {
		if c.Price == nil {
			return fmt.Errorf("%w: %s proposal requires a price", ErrValidation, kind)
		}
		if c.Price.AmountCents <= 0 {
			return fmt.Errorf("%w: proposed amount must be positive", ErrValidation)
		}
	}
	if requireSchedule {
		if c.Schedule == nil || c.Schedule.Date.IsZero() {
			return fmt.Errorf("%w: %s proposal requires a scheduled date", ErrValidation, kind)
		}
	}
	if requireReqs {
		if c.Requirements == nil || c.Requirements.Requirements == "" {
			return fmt.Errorf("%w: %s proposal requires requirements text", ErrValidation, kind)
		}
	}
	return nil
}

// Proposal is a structured, justified counter-offer against one booking.
type Proposal struct {
	ID              uuid.UUID
	BookingID       uuid.UUID
	ProposedBy      uuid.UUID
	ProposedTo      uuid.UUID
	Kind            ProposalKind
	Changes         ProposedChanges
	Justification   string
	Status          ProposalStatus
	ResponseMessage string
	ExpiresAt       time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Expired reports whether a still-pending proposal has passed its deadline.
// Expiry is lazy: stored status may still say pending.
func (p *Proposal) Expired(now time.Time) bool {
	return p.Status == ProposalStatusPending && now.After(p.ExpiresAt)
}

// EffectiveStatus surfaces lazily-expired proposals as expired on read.
func (p *Proposal) EffectiveStatus(now time.Time) ProposalStatus {
	if p.Expired(now) {
		return ProposalStatusExpired
	}
	return p.Status
}
